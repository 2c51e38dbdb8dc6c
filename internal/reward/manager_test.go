package reward

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/verdantmarket/spinwheel/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newManager(t *testing.T) (*Manager, *store.MemoryStore, *MemoryCart, *fakeClock) {
	t.Helper()
	st := store.NewMemoryStore()
	cart := NewMemoryCart()
	clock := &fakeClock{t: baseTime}
	return NewManager(st, cart, clock, zerolog.Nop()), st, cart, clock
}

func TestCreate_NonePayloadYieldsNoReward(t *testing.T) {
	m, _, _, _ := newManager(t)

	for _, payload := range []store.Payload{{Kind: store.PayloadNone}, {}} {
		r, err := m.Create(context.Background(), payload, "user-1", 72)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if r != nil {
			t.Errorf("payload %+v: expected nil reward", payload)
		}
	}
}

func TestCreate_ExpirySpansTheCooldownWindow(t *testing.T) {
	m, st, _, _ := newManager(t)

	r, err := m.Create(context.Background(), store.Payload{Kind: store.PayloadPromoCode, PromoCode: "SPIN10"}, "user-1", 72)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r == nil {
		t.Fatal("expected a reward")
	}
	if !r.WonAt.Equal(baseTime) {
		t.Errorf("wonAt = %v, want %v", r.WonAt, baseTime)
	}
	if want := baseTime.Add(72 * time.Hour); !r.ExpiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, want %v", r.ExpiresAt, want)
	}
	if r.Claimed {
		t.Error("new reward must not be claimed")
	}

	stored, err := st.GetReward(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.ParticipantKey != "user-1" {
		t.Errorf("participantKey = %q", stored.ParticipantKey)
	}
}

func TestClaim_InsertsExactlyOneCartLine(t *testing.T) {
	m, _, cart, _ := newManager(t)
	ctx := context.Background()

	r, _ := m.Create(ctx, store.Payload{Kind: store.PayloadItem, ItemRef: "sku-tote"}, "user-1", 72)

	first, err := m.Claim(ctx, r.ID)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if first.AlreadyClaimed {
		t.Error("first claim reported as duplicate")
	}
	if !first.Reward.Claimed {
		t.Error("claimed flag not set")
	}

	second, err := m.Claim(ctx, r.ID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if !second.AlreadyClaimed {
		t.Error("second claim must report alreadyClaimed")
	}
	if cart.Len() != 1 {
		t.Errorf("cart has %d lines, want exactly 1", cart.Len())
	}
}

func TestClaim_ExpiredRewardAlwaysFails(t *testing.T) {
	m, _, cart, clock := newManager(t)
	ctx := context.Background()

	r, _ := m.Create(ctx, store.Payload{Kind: store.PayloadItem, ItemRef: "sku-tote"}, "user-1", 72)
	clock.advance(72*time.Hour + time.Minute)

	// Expired and never claimed: still unclaimable.
	if _, err := m.Claim(ctx, r.ID); !errors.Is(err, ErrRewardExpired) {
		t.Fatalf("err = %v, want ErrRewardExpired", err)
	}
	if cart.Len() != 0 {
		t.Errorf("expired claim must not touch the cart, got %d lines", cart.Len())
	}
}

func TestClaim_UnknownReward(t *testing.T) {
	m, _, _, _ := newManager(t)
	if _, err := m.Claim(context.Background(), "nope"); !errors.Is(err, store.ErrRewardNotFound) {
		t.Fatalf("err = %v, want ErrRewardNotFound", err)
	}
}

func TestAutoClaim_ItemOnly(t *testing.T) {
	m, _, cart, _ := newManager(t)
	ctx := context.Background()

	promo, _ := m.Create(ctx, store.Payload{Kind: store.PayloadPromoCode, PromoCode: "SPIN10"}, "user-1", 72)
	if m.AutoClaim(ctx, promo) {
		t.Error("promo codes must never auto-claim")
	}
	if cart.Len() != 0 {
		t.Errorf("cart has %d lines after promo auto-claim attempt", cart.Len())
	}

	item, _ := m.Create(ctx, store.Payload{Kind: store.PayloadItem, ItemRef: "sku-tote"}, "user-1", 72)
	if !m.AutoClaim(ctx, item) {
		t.Error("item payloads auto-claim after the draw settles")
	}
	if cart.Len() != 1 {
		t.Errorf("cart has %d lines, want 1", cart.Len())
	}

	if m.AutoClaim(ctx, nil) {
		t.Error("nil reward must not auto-claim")
	}
}

func TestMemoryCart_Remove(t *testing.T) {
	cart := NewMemoryCart()
	ctx := context.Background()
	_ = cart.Insert(ctx, CartLine{RewardID: "a", ItemRef: "sku-1"})
	_ = cart.Insert(ctx, CartLine{RewardID: "b", ItemRef: "sku-2"})

	removed := cart.Remove(func(l CartLine) bool { return l.ItemRef == "sku-1" })
	if removed != 1 || cart.Len() != 1 {
		t.Errorf("removed=%d len=%d, want 1 and 1", removed, cart.Len())
	}
}
