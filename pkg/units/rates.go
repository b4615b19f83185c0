package units

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/apd/v3"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/lemonberrylabs/numberhub/pkg/stdlib"
	"github.com/lemonberrylabs/numberhub/pkg/types"
)

// RateSource supplies exchange rates: one unit of base buys rates[id] of
// currency id. Implementations may fail (network, missing data).
type RateSource interface {
	Rates(ctx context.Context, base string) (map[string]*apd.Decimal, error)
}

// StaticRates is a rate table quoted against a single base currency.
// Rates for other bases are derived as cross rates.
type StaticRates struct {
	Base  string
	Table map[string]*apd.Decimal
}

// Rates implements RateSource.
func (s *StaticRates) Rates(_ context.Context, base string) (map[string]*apd.Decimal, error) {
	if s == nil || len(s.Table) == 0 {
		return nil, fmt.Errorf("no rates loaded")
	}
	base = strings.ToLower(base)
	out := make(map[string]*apd.Decimal, len(s.Table)+1)
	if base == s.Base {
		for id, r := range s.Table {
			out[id] = r
		}
		out[s.Base] = apd.New(1, 0)
		return out, nil
	}

	baseRate, ok := s.Table[base]
	if !ok || baseRate.IsZero() {
		return nil, fmt.Errorf("no rates for base '%s'", base)
	}
	env := stdlib.NewEnv(stdlib.Radians)
	for id, r := range s.Table {
		if id == base {
			continue
		}
		cross, err := env.Quo(r, baseRate)
		if err != nil {
			return nil, err
		}
		out[id] = cross
	}
	inv, err := env.Quo(apd.New(1, 0), baseRate)
	if err != nil {
		return nil, err
	}
	out[s.Base] = inv
	out[base] = apd.New(1, 0)
	return out, nil
}

// rateFile is the on-disk layout of YAML and TOML rate files.
type rateFile struct {
	Base  string            `yaml:"base" toml:"base"`
	Rates map[string]string `yaml:"rates" toml:"rates"`
}

// LoadRateFile reads a YAML (.yaml, .yml) or TOML (.toml) rate table.
func LoadRateFile(path string) (*StaticRates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate file: %w", err)
	}

	var f rateFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	case ".toml":
		err = toml.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("unsupported rate file format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate file %s: %w", path, err)
	}
	if f.Base == "" {
		return nil, fmt.Errorf("rate file %s has no base currency", path)
	}

	s := &StaticRates{Base: strings.ToLower(f.Base), Table: make(map[string]*apd.Decimal, len(f.Rates))}
	for id, raw := range f.Rates {
		d, err := types.ParseDecimal(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("rate file %s: %s: %w", path, id, err)
		}
		if d.Sign() <= 0 {
			return nil, fmt.Errorf("rate file %s: %s: rate must be positive", path, id)
		}
		s.Table[strings.ToLower(id)] = d
	}
	return s, nil
}

// FileRates serves rates from a file that can be reloaded while running.
type FileRates struct {
	path string

	mu    sync.RWMutex
	rates *StaticRates
}

// NewFileRates loads path.
func NewFileRates(path string) (*FileRates, error) {
	f := &FileRates{path: path}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Path returns the watched file.
func (f *FileRates) Path() string {
	return f.path
}

// Reload re-reads the file. On failure the previous table stays active.
func (f *FileRates) Reload() error {
	r, err := LoadRateFile(f.path)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.rates = r
	f.mu.Unlock()
	return nil
}

// Rates implements RateSource.
func (f *FileRates) Rates(ctx context.Context, base string) (map[string]*apd.Decimal, error) {
	f.mu.RLock()
	r := f.rates
	f.mu.RUnlock()
	return r.Rates(ctx, base)
}

// Watch reloads the file whenever it changes and then calls onChange with
// the reload result. It blocks until ctx is done.
func (f *FileRates) Watch(ctx context.Context, onChange func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory so that editors replacing the file are seen.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", f.path, err)
	}
	target := filepath.Clean(f.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			err := f.Reload()
			if onChange != nil {
				onChange(err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onChange != nil {
				onChange(err)
			}
		}
	}
}
