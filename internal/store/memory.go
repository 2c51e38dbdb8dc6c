package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of the Store interface.
// It uses maps guarded by an RWMutex and is suitable for development,
// testing, or single-instance deployments.
type MemoryStore struct {
	mu            sync.RWMutex
	participation map[Ledger]map[string][]ParticipationRecord
	audit         []AuditEntry
	rewards       map[string]Reward
	config        *WheelConfig
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		participation: map[Ledger]map[string][]ParticipationRecord{
			LedgerByUser:  {},
			LedgerByEmail: {},
		},
		rewards: make(map[string]Reward),
	}
}

// FindLatest returns the most recent participation record for the key.
func (m *MemoryStore) FindLatest(ctx context.Context, ledger Ledger, key string) (*ParticipationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.participation[ledger][key]
	if len(records) == 0 {
		return nil, nil
	}

	latest := records[0]
	for _, rec := range records[1:] {
		if rec.OccurredAt.After(latest.OccurredAt) {
			latest = rec
		}
	}
	return &latest, nil
}

// InsertParticipation appends a participation record.
func (m *MemoryStore) InsertParticipation(ctx context.Context, rec ParticipationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byKey, ok := m.participation[rec.Ledger]
	if !ok {
		byKey = make(map[string][]ParticipationRecord)
		m.participation[rec.Ledger] = byKey
	}
	byKey[rec.IdentityKey] = append(byKey[rec.IdentityKey], rec)
	return nil
}

// InsertAuditEntry appends an audit entry.
func (m *MemoryStore) InsertAuditEntry(ctx context.Context, entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

// AuditEntries returns a copy of all recorded audit entries. Only tests and
// the admin surface use this; the engine itself never reads audit data.
func (m *MemoryStore) AuditEntries() []AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AuditEntry, len(m.audit))
	copy(out, m.audit)
	return out
}

// InsertReward stores a new reward.
func (m *MemoryStore) InsertReward(ctx context.Context, r Reward) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewards[r.ID] = r
	return nil
}

// GetReward retrieves a reward by id.
func (m *MemoryStore) GetReward(ctx context.Context, id string) (*Reward, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rewards[id]
	if !ok {
		return nil, ErrRewardNotFound
	}
	return &r, nil
}

// MarkRewardClaimed flips the claimed flag on a reward.
func (m *MemoryStore) MarkRewardClaimed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rewards[id]
	if !ok {
		return ErrRewardNotFound
	}
	r.Claimed = true
	m.rewards[id] = r
	return nil
}

// GetWheelConfig returns the stored wheel config, or nil if none was set.
func (m *MemoryStore) GetWheelConfig(ctx context.Context) (*WheelConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return nil, nil
	}
	cfg := *m.config
	cfg.Segments = append([]Segment(nil), m.config.Segments...)
	return &cfg, nil
}

// PutWheelConfig replaces the wheel config.
func (m *MemoryStore) PutWheelConfig(ctx context.Context, cfg WheelConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg.Segments = append([]Segment(nil), cfg.Segments...)
	m.config = &cfg
	return nil
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}
