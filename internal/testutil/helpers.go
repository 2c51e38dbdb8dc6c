// Package testutil provides shared helpers for package tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/verdantmarket/spinwheel/internal/api"
	"github.com/verdantmarket/spinwheel/internal/eligibility"
	"github.com/verdantmarket/spinwheel/internal/engine"
	"github.com/verdantmarket/spinwheel/internal/guard"
	"github.com/verdantmarket/spinwheel/internal/reward"
	"github.com/verdantmarket/spinwheel/internal/snapshot"
	"github.com/verdantmarket/spinwheel/internal/store"
)

// Clock is a settable fake clock satisfying the Clock interfaces across
// the engine packages.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock creates a fake clock fixed at t.
func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Set pins the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// Env is a fully wired engine over an in-memory store, used by engine and
// API tests.
type Env struct {
	Store    *store.MemoryStore
	Cart     *reward.MemoryCart
	Clock    *Clock
	Engine   *engine.Engine
	Rewards  *reward.Manager
	Recorder *guard.Recorder
}

// NewEnv wires an engine over a fresh memory store with a deterministic rng
// and a fake clock, and installs the given wheel config as the current
// snapshot.
func NewEnv(t *testing.T, cfg *store.WheelConfig) *Env {
	t.Helper()

	st := store.NewMemoryStore()
	cart := reward.NewMemoryCart()
	clock := NewClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	log := zerolog.Nop()

	if cfg != nil {
		if err := st.PutWheelConfig(context.Background(), *cfg); err != nil {
			t.Fatalf("seed wheel config: %v", err)
		}
	}
	snapshot.Update(snapshot.BuildFromConfig(cfg))

	recorder := guard.NewRecorder(st, clock, 16, log)
	t.Cleanup(func() { _ = recorder.Close() })

	resolver := eligibility.NewResolver(st, clock, time.Second, log)
	rewards := reward.NewManager(st, cart, clock, log)
	rng := rand.New(rand.NewSource(1))
	eng := engine.New(st, resolver, rewards, recorder, clock, rng, log)

	return &Env{
		Store:    st,
		Cart:     cart,
		Clock:    clock,
		Engine:   eng,
		Rewards:  rewards,
		Recorder: recorder,
	}
}

// NewTestServer builds an API server over a fresh Env.
func NewTestServer(t *testing.T, cfg *store.WheelConfig, adminKey string) (*api.Server, *Env) {
	t.Helper()
	env := NewEnv(t, cfg)
	srv := api.NewServer(env.Engine, env.Rewards, env.Store, api.Options{
		AdminAPIKey:    adminKey,
		RateLimitPerIP: 1000,
		Logger:         zerolog.Nop(),
	})
	return srv, env
}

// PrizeWheel is a standard four-segment test wheel: one promo code, one
// claimable item, two losing segments.
func PrizeWheel(cooldownHours float64) *store.WheelConfig {
	return &store.WheelConfig{
		Segments: []store.Segment{
			{Weight: 10, Text: "10% off", Payload: store.Payload{Kind: store.PayloadPromoCode, PromoCode: "SPIN10"}},
			{Weight: 20, Text: "Free tote", Payload: store.Payload{Kind: store.PayloadItem, ItemRef: "sku-tote"}},
			{Weight: 30, Text: "Try again"},
			{Weight: 40, Text: "Next time"},
		},
		CooldownHours: cooldownHours,
		UpdatedAt:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the HTTP request and returns the response recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
