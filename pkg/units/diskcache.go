package units

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/apd/v3"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/lemonberrylabs/numberhub/pkg/types"
)

// diskCacheVersion is bumped whenever the snapshot layout changes.
const diskCacheVersion = 1

// RateSnapshot is the rate table of one base currency fetched on Date
// (YYYY-MM-DD).
type RateSnapshot struct {
	Base  string
	Date  string
	Rates map[string]*apd.Decimal
}

type diskSnapshot struct {
	Base  string            `msgpack:"base"`
	Date  string            `msgpack:"date"`
	Rates map[string]string `msgpack:"rates"`
}

type diskFile struct {
	Version   int            `msgpack:"version"`
	Snapshots []diskSnapshot `msgpack:"snapshots"`
}

// DiskRateCache persists rate snapshots as a msgpack file so that the
// reverse-rate fallback keeps working across restarts.
type DiskRateCache struct {
	path string
	mu   sync.Mutex
}

// NewDiskRateCache returns a cache stored at path.
func NewDiskRateCache(path string) *DiskRateCache {
	return &DiskRateCache{path: path}
}

// Load returns every stored snapshot. A missing or outdated file is empty.
func (c *DiskRateCache) Load() ([]RateSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rate cache: %w", err)
	}

	var f diskFile
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode rate cache: %w", err)
	}
	if f.Version != diskCacheVersion {
		return nil, nil
	}

	out := make([]RateSnapshot, 0, len(f.Snapshots))
	for _, s := range f.Snapshots {
		snap := RateSnapshot{Base: s.Base, Date: s.Date, Rates: make(map[string]*apd.Decimal, len(s.Rates))}
		for id, raw := range s.Rates {
			d, err := types.ParseDecimal(raw)
			if err != nil {
				return nil, fmt.Errorf("rate cache: %s/%s: %w", s.Base, id, err)
			}
			snap.Rates[id] = d
		}
		out = append(out, snap)
	}
	return out, nil
}

// Save replaces the stored snapshots. The file is written atomically.
func (c *DiskRateCache) Save(snapshots []RateSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := diskFile{Version: diskCacheVersion}
	for _, s := range snapshots {
		ds := diskSnapshot{Base: s.Base, Date: s.Date, Rates: make(map[string]string, len(s.Rates))}
		for id, r := range s.Rates {
			ds.Rates[id] = types.PlainString(r)
		}
		f.Snapshots = append(f.Snapshots, ds)
	}

	data, err := msgpack.Marshal(&f)
	if err != nil {
		return fmt.Errorf("failed to encode rate cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write rate cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to replace rate cache: %w", err)
	}
	return nil
}
