// Package engine orchestrates one draw transaction: record the attempt,
// check eligibility, sample a segment, reconcile the animation angle into
// the winning index, append participation records, and create the reward.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/verdantmarket/spinwheel/internal/draw"
	"github.com/verdantmarket/spinwheel/internal/eligibility"
	"github.com/verdantmarket/spinwheel/internal/guard"
	"github.com/verdantmarket/spinwheel/internal/participant"
	"github.com/verdantmarket/spinwheel/internal/reward"
	"github.com/verdantmarket/spinwheel/internal/snapshot"
	"github.com/verdantmarket/spinwheel/internal/store"
)

// ErrNoSegments is returned when the wheel has no configured segments.
var ErrNoSegments = errors.New("wheel has no configured segments")

// CooldownError reports a draw attempt inside the cooldown window.
type CooldownError struct {
	NextEligibleAt time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active until %s", e.NextEligibleAt.Format(time.RFC3339))
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now().
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// SpinRequest carries everything one draw attempt needs.
type SpinRequest struct {
	Participant participant.Participant
	Signals     guard.Signals
	Origin      string
}

// SpinResult is the settled outcome of a draw. WinningIndex is derived from
// FinalAngle after the plan is fixed; the pre-animation sample is discarded.
type SpinResult struct {
	WinningIndex   int           `json:"winningIndex"`
	Segment        store.Segment `json:"segment"`
	Plan           draw.SpinPlan `json:"plan"`
	Reward         *store.Reward `json:"reward,omitempty"`
	AutoClaimed    bool          `json:"autoClaimed"`
	NextEligibleAt time.Time     `json:"nextEligibleAt"`
}

// Engine runs draw transactions against the participation ledgers, the
// reward manager, and the abuse guard.
type Engine struct {
	ledgers  store.ParticipationStore
	resolver *eligibility.Resolver
	rewards  *reward.Manager
	recorder *guard.Recorder
	clock    Clock
	log      zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates an engine. A nil clock falls back to the system clock; a nil
// rng is seeded from the current time.
func New(ledgers store.ParticipationStore, resolver *eligibility.Resolver, rewards *reward.Manager,
	recorder *guard.Recorder, clock Clock, rng *rand.Rand, log zerolog.Logger) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		ledgers:  ledgers,
		resolver: resolver,
		rewards:  rewards,
		recorder: recorder,
		clock:    clock,
		rng:      rng,
		log:      log,
	}
}

// Eligibility resolves the participant's current eligibility state along
// with the record it was derived from.
func (e *Engine) Eligibility(ctx context.Context, p participant.Participant) (eligibility.State, *store.ParticipationRecord) {
	return e.resolver.Resolve(ctx, p, snapshot.Load())
}

// Spin executes one draw transaction.
//
// The steps run sequentially and are not wrapped in a transaction: a crash
// after the participation write but before the reward write leaves a
// participation that counts against the cooldown with no reward. That gap
// is accepted — participation is the anti-abuse record and must win.
func (e *Engine) Spin(ctx context.Context, req SpinRequest) (*SpinResult, error) {
	if err := req.Participant.Validate(); err != nil {
		return nil, err
	}

	snap := snapshot.Load()
	if len(snap.Segments) == 0 {
		return nil, ErrNoSegments
	}

	// Best effort, never blocks the draw.
	if req.Participant.Email != "" {
		e.recorder.RecordAttempt(req.Participant.Email, guard.Digest(req.Signals), req.Origin)
	}

	state, _ := e.resolver.Resolve(ctx, req.Participant, snap)
	if !state.CanDraw {
		return nil, &CooldownError{NextEligibleAt: *state.NextEligibleAt}
	}

	n := len(snap.Segments)
	e.mu.Lock()
	sampled := draw.Pick(e.rng, snap.Segments)
	plan := draw.Plan(e.rng, sampled, n)
	e.mu.Unlock()

	// The settled angle, not the sample, decides the outcome.
	winning := draw.SegmentUnderPointer(plan.FinalAngle, n)

	now := e.clock.Now()
	if err := e.persistParticipation(ctx, req.Participant, now); err != nil {
		return nil, err
	}

	seg := snap.Segments[winning]
	rw, err := e.rewards.Create(ctx, seg.Payload, req.Participant.Key(), snap.CooldownHours)
	if err != nil {
		// Participation is already written; the cooldown stands.
		e.log.Error().Err(err).Msg("reward creation failed after participation write")
		return nil, err
	}

	result := &SpinResult{
		WinningIndex:   winning,
		Segment:        seg,
		Plan:           plan,
		Reward:         rw,
		NextEligibleAt: now.Add(snap.Cooldown()),
	}
	result.AutoClaimed = e.rewards.AutoClaim(ctx, rw)

	e.log.Info().
		Int("winning_index", winning).
		Int("sampled_index", sampled).
		Str("payload", string(seg.Payload.Kind)).
		Str("participant", req.Participant.Key()).
		Msg("draw settled")

	return result, nil
}

// persistParticipation appends the records for this draw: always a by-email
// record when an email is known (this is what links the guest and account
// identity spaces), plus a by-user record for authenticated participants.
func (e *Engine) persistParticipation(ctx context.Context, p participant.Participant, now time.Time) error {
	if p.Email != "" {
		rec := store.ParticipationRecord{IdentityKey: p.Email, Ledger: store.LedgerByEmail, OccurredAt: now}
		if err := e.ledgers.InsertParticipation(ctx, rec); err != nil {
			return fmt.Errorf("record participation by email: %w", err)
		}
	}
	if p.IsAuthenticated() {
		rec := store.ParticipationRecord{IdentityKey: p.UserID, Ledger: store.LedgerByUser, OccurredAt: now}
		if err := e.ledgers.InsertParticipation(ctx, rec); err != nil {
			return fmt.Errorf("record participation by user: %w", err)
		}
	}
	return nil
}
