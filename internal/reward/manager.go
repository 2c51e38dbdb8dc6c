// Package reward turns winning draw outcomes into time-bounded rewards and
// performs idempotent claiming against the cart.
package reward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/verdantmarket/spinwheel/internal/store"
)

// ErrRewardExpired is returned when a claim is attempted after the reward's
// expiry. An expired reward is permanently unclaimable, even if its claimed
// flag never flipped.
var ErrRewardExpired = errors.New("reward has expired")

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now().
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// CartLine is what claiming a reward inserts into the cart.
type CartLine struct {
	RewardID  string    `json:"rewardId"`
	ItemRef   string    `json:"itemRef,omitempty"`
	PromoCode string    `json:"promoCode,omitempty"`
	AddedAt   time.Time `json:"addedAt"`
}

// Cart is the external cart collaborator.
type Cart interface {
	// Exists reports whether a line for the reward is already in the cart.
	Exists(ctx context.Context, rewardID string) (bool, error)
	Insert(ctx context.Context, line CartLine) error
}

// ClaimOutcome reports the result of a successful claim.
type ClaimOutcome struct {
	Reward         store.Reward `json:"reward"`
	AlreadyClaimed bool         `json:"alreadyClaimed"`
}

// Manager owns the reward lifecycle: creation at draw time, expiry
// enforcement, and idempotent claiming.
type Manager struct {
	rewards store.RewardStore
	cart    Cart
	clock   Clock
	log     zerolog.Logger
}

// NewManager creates a reward manager. A nil clock falls back to the system
// clock.
func NewManager(rewards store.RewardStore, cart Cart, clock Clock, log zerolog.Logger) *Manager {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Manager{rewards: rewards, cart: cart, clock: clock, log: log}
}

// Create persists a reward for a winning payload, or returns (nil, nil) for
// a no-payload segment. The claim deadline equals the next-draw cooldown
// window: time to use the reward and time until the next draw are the same
// span.
func (m *Manager) Create(ctx context.Context, payload store.Payload, participantKey string, cooldownHours float64) (*store.Reward, error) {
	if payload.Kind == store.PayloadNone || payload.Kind == "" {
		return nil, nil
	}

	now := m.clock.Now()
	r := store.Reward{
		ID:             uuid.NewString(),
		ParticipantKey: participantKey,
		WonAt:          now,
		ExpiresAt:      now.Add(time.Duration(cooldownHours * float64(time.Hour))),
		Payload:        payload,
	}

	if err := m.rewards.InsertReward(ctx, r); err != nil {
		return nil, fmt.Errorf("create reward: %w", err)
	}
	return &r, nil
}

// Get retrieves a reward by id.
func (m *Manager) Get(ctx context.Context, rewardID string) (*store.Reward, error) {
	return m.rewards.GetReward(ctx, rewardID)
}

// Claim redeems a reward into the cart.
//
//   - After expiry it fails with ErrRewardExpired.
//   - If the cart already holds the line, it succeeds as a no-op: claiming
//     twice never duplicates the cart line.
//   - Otherwise it inserts the line and flips the claimed flag.
func (m *Manager) Claim(ctx context.Context, rewardID string) (*ClaimOutcome, error) {
	r, err := m.rewards.GetReward(ctx, rewardID)
	if err != nil {
		return nil, err
	}

	if m.clock.Now().After(r.ExpiresAt) {
		return nil, ErrRewardExpired
	}

	exists, err := m.cart.Exists(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("check cart: %w", err)
	}
	if exists {
		return &ClaimOutcome{Reward: *r, AlreadyClaimed: true}, nil
	}

	line := CartLine{
		RewardID:  r.ID,
		ItemRef:   r.Payload.ItemRef,
		PromoCode: r.Payload.PromoCode,
		AddedAt:   m.clock.Now(),
	}
	if err := m.cart.Insert(ctx, line); err != nil {
		return nil, fmt.Errorf("insert cart line: %w", err)
	}

	if err := m.rewards.MarkRewardClaimed(ctx, r.ID); err != nil {
		// The cart line made it in; the flag is bookkeeping. Log and
		// report success so the participant is not asked to claim again.
		m.log.Warn().Err(err).Str("reward", r.ID).Msg("failed to mark reward claimed")
	}

	r.Claimed = true
	return &ClaimOutcome{Reward: *r}, nil
}

// AutoClaim applies the claim-triggering policy after a draw settles:
// item payloads go straight into the cart; promo codes are never
// auto-claimed — the participant copies the code manually before it
// expires. Failures are logged, not propagated: the draw already succeeded.
func (m *Manager) AutoClaim(ctx context.Context, r *store.Reward) bool {
	if r == nil || r.Payload.Kind != store.PayloadItem {
		return false
	}

	if _, err := m.Claim(ctx, r.ID); err != nil {
		m.log.Warn().Err(err).Str("reward", r.ID).Msg("auto-claim failed")
		return false
	}
	return true
}
