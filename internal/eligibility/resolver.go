// Package eligibility decides whether a participant may draw now and, if
// not, when the cooldown ends.
//
// Identity resolution spans two weakly-linked ledgers. A guest is looked up
// by normalized email only. An authenticated participant is looked up by
// account id AND by email, and the more recent record wins — so signing in
// with an account that shares an email already used as a guest (or signing
// out and drawing again as a guest) never resets the cooldown.
package eligibility

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/verdantmarket/spinwheel/internal/participant"
	"github.com/verdantmarket/spinwheel/internal/snapshot"
	"github.com/verdantmarket/spinwheel/internal/store"
)

// DefaultLookupTimeout bounds ledger queries. The original design would
// block indefinitely on a slow backend; here a timed-out lookup degrades to
// "eligible" instead of stalling the participant.
const DefaultLookupTimeout = 3 * time.Second

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now().
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// State is the derived eligibility of a participant. It is never persisted.
type State struct {
	CanDraw        bool       `json:"canDraw"`
	NextEligibleAt *time.Time `json:"nextEligibleAt,omitempty"`
}

// Resolver computes eligibility from the participation ledgers.
type Resolver struct {
	ledgers store.ParticipationStore
	clock   Clock
	timeout time.Duration
	log     zerolog.Logger
}

// NewResolver creates a resolver. A nil clock falls back to the system
// clock; a non-positive timeout falls back to DefaultLookupTimeout.
func NewResolver(ledgers store.ParticipationStore, clock Clock, timeout time.Duration, log zerolog.Logger) *Resolver {
	if clock == nil {
		clock = SystemClock{}
	}
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Resolver{ledgers: ledgers, clock: clock, timeout: timeout, log: log}
}

// Resolve returns the participant's eligibility under the given snapshot,
// along with the last participation record it was derived from. Callers
// cache the record so a config change can recompute the deadline without
// another ledger round trip (see Compute).
//
// Lookup failures are permissive: if a ledger cannot be queried the
// participant is treated as eligible and the failure is logged.
func (r *Resolver) Resolve(ctx context.Context, p participant.Participant, snap *snapshot.Snapshot) (State, *store.ParticipationRecord) {
	last := r.lastRecord(ctx, p)
	return Compute(last, snap.CooldownHours, r.clock.Now()), last
}

// lastRecord finds the most recent participation record across the ledgers
// that apply to this participant.
func (r *Resolver) lastRecord(ctx context.Context, p participant.Participant) *store.ParticipationRecord {
	var byUser, byEmail *store.ParticipationRecord

	if p.IsAuthenticated() {
		byUser = r.findLatest(ctx, store.LedgerByUser, p.UserID)
	}
	if p.Email != "" {
		byEmail = r.findLatest(ctx, store.LedgerByEmail, p.Email)
	}

	return MostRecentOf(byUser, byEmail)
}

func (r *Resolver) findLatest(ctx context.Context, ledger store.Ledger, key string) *store.ParticipationRecord {
	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rec, err := r.ledgers.FindLatest(lookupCtx, ledger, key)
	if err != nil {
		r.log.Warn().Err(err).Str("ledger", string(ledger)).
			Msg("participation lookup failed, treating participant as eligible")
		return nil
	}
	return rec
}

// MostRecentOf merges two optional records into the one with the later
// timestamp. It is pure and order-independent.
func MostRecentOf(a, b *store.ParticipationRecord) *store.ParticipationRecord {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.OccurredAt.After(a.OccurredAt):
		return b
	default:
		return a
	}
}

// Compute derives eligibility from a cached last-participation record and a
// cooldown width. It is pure: when the admin changes the cooldown
// mid-countdown, callers re-invoke Compute with the same record and the new
// width — the last-participation instant does not change, only the window
// length does.
func Compute(last *store.ParticipationRecord, cooldownHours float64, now time.Time) State {
	if last == nil || cooldownHours <= 0 {
		return State{CanDraw: true}
	}

	next := last.OccurredAt.Add(time.Duration(cooldownHours * float64(time.Hour)))
	return State{
		CanDraw:        !now.Before(next),
		NextEligibleAt: &next,
	}
}
