// Package store keeps per-unit usage state: how often a unit was used,
// whether it is a favorite and which unit it was last paired with.
// Reads return value snapshots; every change is an explicit write.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrEmptyUnitID is returned when a unit id is blank.
var ErrEmptyUnitID = errors.New("unit id is required")

// UnitStats is a snapshot of one unit's usage state.
type UnitStats struct {
	UnitID       string    `json:"unitId"`
	Frequency    int64     `json:"frequency"`
	Favorite     bool      `json:"favorite"`
	PairedUnitID string    `json:"pairedUnitId,omitempty"`
	UpdateTime   time.Time `json:"updateTime,omitempty"`
}

// Repository persists UnitStats keyed by unit id. Unknown ids read as
// zero-valued stats.
type Repository interface {
	Get(ctx context.Context, unitID string) (UnitStats, error)
	List(ctx context.Context) ([]UnitStats, error)
	IncrementCounter(ctx context.Context, unitID string) (UnitStats, error)
	ToggleFavorite(ctx context.Context, unitID string) (UnitStats, error)
	SetPair(ctx context.Context, unitID, pairedUnitID string) (UnitStats, error)
	Close() error
}

// Memory is a thread-safe in-memory Repository.
type Memory struct {
	mu    sync.RWMutex
	units map[string]UnitStats
	now   func() time.Time
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		units: make(map[string]UnitStats),
		now:   time.Now,
	}
}

// Get returns the stats of unitID.
func (m *Memory) Get(_ context.Context, unitID string) (UnitStats, error) {
	if unitID == "" {
		return UnitStats{}, ErrEmptyUnitID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.units[unitID]; ok {
		return s, nil
	}
	return UnitStats{UnitID: unitID}, nil
}

// List returns every stored unit ordered by id.
func (m *Memory) List(_ context.Context) ([]UnitStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]UnitStats, 0, len(m.units))
	for _, s := range m.units {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitID < out[j].UnitID })
	return out, nil
}

// IncrementCounter adds one use to unitID.
func (m *Memory) IncrementCounter(_ context.Context, unitID string) (UnitStats, error) {
	return m.update(unitID, func(s *UnitStats) { s.Frequency++ })
}

// ToggleFavorite flips the favorite flag of unitID.
func (m *Memory) ToggleFavorite(_ context.Context, unitID string) (UnitStats, error) {
	return m.update(unitID, func(s *UnitStats) { s.Favorite = !s.Favorite })
}

// SetPair records pairedUnitID as the last unit converted to from unitID.
func (m *Memory) SetPair(_ context.Context, unitID, pairedUnitID string) (UnitStats, error) {
	return m.update(unitID, func(s *UnitStats) { s.PairedUnitID = pairedUnitID })
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

func (m *Memory) update(unitID string, fn func(*UnitStats)) (UnitStats, error) {
	if unitID == "" {
		return UnitStats{}, ErrEmptyUnitID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.units[unitID]
	if !ok {
		s = UnitStats{UnitID: unitID}
	}
	fn(&s)
	s.UpdateTime = m.now()
	m.units[unitID] = s
	return s, nil
}
