package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRewardNotFound is returned when a reward lookup finds no row.
var ErrRewardNotFound = errors.New("reward not found")

// Ledger names one of the two participation record spaces.
// Guest draws are keyed by normalized email; authenticated draws are keyed
// by account id but also leave an email record so the two spaces stay linked.
type Ledger string

const (
	LedgerByUser  Ledger = "by-user"
	LedgerByEmail Ledger = "by-email"
)

// PayloadKind describes what, if anything, a segment awards.
type PayloadKind string

const (
	PayloadNone      PayloadKind = "none"
	PayloadPromoCode PayloadKind = "promo_code"
	PayloadItem      PayloadKind = "item"
)

// Payload is a segment's reward content. Exactly one of PromoCode or ItemRef
// is meaningful depending on Kind.
type Payload struct {
	Kind      PayloadKind `json:"kind"`
	PromoCode string      `json:"promoCode,omitempty"`
	ItemRef   string      `json:"itemRef,omitempty"`
}

// Segment is one slice of the wheel.
type Segment struct {
	Weight  float64 `json:"weight"`
	Text    string  `json:"text,omitempty"`
	Image   string  `json:"image,omitempty"`
	Payload Payload `json:"payload"`
}

// WheelConfig is the admin-editable wheel configuration.
type WheelConfig struct {
	Segments      []Segment `json:"segments"`
	CooldownHours float64   `json:"cooldownHours"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ParticipationRecord is one append-only entry in a participation ledger.
type ParticipationRecord struct {
	IdentityKey string    `json:"identityKey"`
	Ledger      Ledger    `json:"ledger"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// AuditEntry is a write-only abuse-audit row. The engine never reads these
// back; they exist for after-the-fact review.
type AuditEntry struct {
	Email         string    `json:"email"`
	DeviceDigest  string    `json:"deviceDigest"`
	NetworkOrigin string    `json:"networkOrigin"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Reward is a claimable draw outcome with its own expiry.
type Reward struct {
	ID             string    `json:"id"`
	ParticipantKey string    `json:"participantKey"`
	WonAt          time.Time `json:"wonAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	Payload        Payload   `json:"payload"`
	Claimed        bool      `json:"claimed"`
}

// ParticipationStore provides access to the two participation ledgers.
type ParticipationStore interface {
	// FindLatest returns the most recent record for the key in the given
	// ledger, or (nil, nil) when the key has never participated.
	FindLatest(ctx context.Context, ledger Ledger, key string) (*ParticipationRecord, error)

	// InsertParticipation appends a record. Records are never updated or
	// deleted.
	InsertParticipation(ctx context.Context, rec ParticipationRecord) error
}

// AuditStore persists abuse-audit entries.
type AuditStore interface {
	InsertAuditEntry(ctx context.Context, entry AuditEntry) error
}

// RewardStore persists rewards.
type RewardStore interface {
	InsertReward(ctx context.Context, r Reward) error

	// GetReward returns ErrRewardNotFound when the id is unknown.
	GetReward(ctx context.Context, id string) (*Reward, error)

	// MarkRewardClaimed flips the claimed flag. It is the only mutation a
	// reward ever sees.
	MarkRewardClaimed(ctx context.Context, id string) error
}

// ConfigStore holds the single wheel configuration row.
type ConfigStore interface {
	// GetWheelConfig returns (nil, nil) when no config has been written yet.
	GetWheelConfig(ctx context.Context) (*WheelConfig, error)
	PutWheelConfig(ctx context.Context, cfg WheelConfig) error
}

// Store is the full persistence surface of the draw engine.
// Implementations must be safe for concurrent use.
type Store interface {
	ParticipationStore
	AuditStore
	RewardStore
	ConfigStore

	// Close releases any resources held by the store.
	Close() error
}

// WeightSumError reports segment weights that do not sum to 100. It is a
// soft failure: the wheel still operates, with the last segment acting as
// the overflow catch-all.
type WeightSumError struct {
	Sum float64
}

func (e *WeightSumError) Error() string {
	return fmt.Sprintf("segment weights sum to %.2f, expected 100", e.Sum)
}

// ValidateSegments checks a segment list before it is accepted as config.
// A hard error (empty list, negative weight, malformed payload) rejects the
// config; a *WeightSumError is advisory and the caller decides whether to
// warn or ignore.
func ValidateSegments(segments []Segment) error {
	if len(segments) == 0 {
		return errors.New("wheel requires at least one segment")
	}

	sum := 0.0
	for i, seg := range segments {
		if seg.Weight < 0 {
			return fmt.Errorf("segment %d: weight must not be negative", i)
		}
		switch seg.Payload.Kind {
		case PayloadNone, "":
		case PayloadPromoCode:
			if seg.Payload.PromoCode == "" {
				return fmt.Errorf("segment %d: promo_code payload requires a code", i)
			}
		case PayloadItem:
			if seg.Payload.ItemRef == "" {
				return fmt.Errorf("segment %d: item payload requires an item ref", i)
			}
		default:
			return fmt.Errorf("segment %d: unknown payload kind %q", i, seg.Payload.Kind)
		}
		sum += seg.Weight
	}

	if sum != 100 {
		return &WeightSumError{Sum: sum}
	}
	return nil
}
