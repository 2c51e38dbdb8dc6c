// Package snapshot holds the point-in-time wheel configuration the engine
// reads before each decision. Admin edits publish a new snapshot; nothing
// ever mutates one in place, so "recompute under new settings" is just a
// call with the newer snapshot.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/verdantmarket/spinwheel/internal/store"
)

// Snapshot is an immutable view of the wheel configuration.
type Snapshot struct {
	ETag          string          `json:"etag"`
	Segments      []store.Segment `json:"segments"`
	CooldownHours float64         `json:"cooldownHours"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Cooldown returns the cooldown window as a duration. Non-positive
// cooldowns collapse to zero, meaning "always eligible".
func (s *Snapshot) Cooldown() time.Duration {
	if s.CooldownHours <= 0 {
		return 0
	}
	return time.Duration(s.CooldownHours * float64(time.Hour))
}

var current atomic.Pointer[Snapshot]

// Load returns the current snapshot. Before the first Update it returns an
// empty snapshot with no segments.
func Load() *Snapshot {
	if s := current.Load(); s != nil {
		return s
	}
	return &Snapshot{Segments: nil, UpdatedAt: time.Now().UTC()}
}

// Update installs a new snapshot and notifies subscribers with its ETag.
func Update(s *Snapshot) {
	current.Store(s)
	publishUpdate(s.ETag)
}

// BuildFromConfig derives a snapshot (with content ETag) from a stored
// wheel configuration.
func BuildFromConfig(cfg *store.WheelConfig) *Snapshot {
	if cfg == nil {
		return &Snapshot{Segments: nil, UpdatedAt: time.Now().UTC()}
	}

	blob, _ := json.Marshal(struct {
		Segments      []store.Segment `json:"segments"`
		CooldownHours float64         `json:"cooldownHours"`
	}{cfg.Segments, cfg.CooldownHours})
	sum := sha256.Sum256(blob)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`

	return &Snapshot{
		ETag:          etag,
		Segments:      append([]store.Segment(nil), cfg.Segments...),
		CooldownHours: cfg.CooldownHours,
		UpdatedAt:     time.Now().UTC(),
	}
}
