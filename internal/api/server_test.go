package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/verdantmarket/spinwheel/internal/api"
	"github.com/verdantmarket/spinwheel/internal/engine"
	"github.com/verdantmarket/spinwheel/internal/snapshot"
	"github.com/verdantmarket/spinwheel/internal/store"
	"github.com/verdantmarket/spinwheel/internal/testutil"
)

const adminKey = "test-admin-key"

func newHandler(t *testing.T) (http.Handler, *testutil.Env) {
	t.Helper()
	srv, env := testutil.NewTestServer(t, testutil.PrizeWheel(72), adminKey)
	return srv.Router(), env
}

func decodeBody(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decode response %q: %v", body, err)
	}
}

func TestHealthz(t *testing.T) {
	h, _ := newHandler(t)
	rr := (&testutil.HTTPRequest{Method: "GET", Path: "/healthz"}).Do(t, h)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestSnapshot_HidesPromoCodes(t *testing.T) {
	h, _ := newHandler(t)

	rr := (&testutil.HTTPRequest{Method: "GET", Path: "/v1/wheel/snapshot"}).Do(t, h)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	etag := rr.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag header")
	}

	var resp struct {
		ETag     string `json:"etag"`
		Segments []struct {
			Weight    float64 `json:"weight"`
			Text      string  `json:"text"`
			HasReward bool    `json:"hasReward"`
			Kind      string  `json:"kind"`
			PromoCode string  `json:"promoCode"`
			ItemRef   string  `json:"itemRef"`
		} `json:"segments"`
		CooldownHours float64 `json:"cooldownHours"`
	}
	decodeBody(t, rr.Body.Bytes(), &resp)

	if resp.ETag != etag {
		t.Errorf("body etag %q != header %q", resp.ETag, etag)
	}
	if len(resp.Segments) != 4 || resp.CooldownHours != 72 {
		t.Fatalf("segments=%d cooldown=%v", len(resp.Segments), resp.CooldownHours)
	}
	// Segment contents render the wheel; reward payloads stay server-side.
	if s := resp.Segments[0]; !s.HasReward || s.Kind != "promo_code" || s.PromoCode != "" {
		t.Errorf("promo segment leaked or mis-shaped: %+v", s)
	}
	if s := resp.Segments[1]; !s.HasReward || s.Kind != "item" || s.ItemRef != "" {
		t.Errorf("item segment leaked or mis-shaped: %+v", s)
	}
	if s := resp.Segments[2]; s.HasReward || s.Kind != "none" {
		t.Errorf("losing segment mis-shaped: %+v", s)
	}
}

func TestSnapshot_NotModified(t *testing.T) {
	h, _ := newHandler(t)

	first := (&testutil.HTTPRequest{Method: "GET", Path: "/v1/wheel/snapshot"}).Do(t, h)
	etag := first.Header().Get("ETag")

	again := (&testutil.HTTPRequest{
		Method:  "GET",
		Path:    "/v1/wheel/snapshot",
		Headers: map[string]string{"If-None-Match": etag},
	}).Do(t, h)
	if again.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", again.Code)
	}
	if again.Body.Len() != 0 {
		t.Errorf("304 carried a body: %s", again.Body.String())
	}

	stale := (&testutil.HTTPRequest{
		Method:  "GET",
		Path:    "/v1/wheel/snapshot",
		Headers: map[string]string{"If-None-Match": `W/"stale"`},
	}).Do(t, h)
	if stale.Code != http.StatusOK {
		t.Fatalf("stale etag status = %d, want 200", stale.Code)
	}
}

func doSpin(t *testing.T, h http.Handler, email string) *engine.SpinResult {
	t.Helper()
	rr := (&testutil.HTTPRequest{
		Method: "POST",
		Path:   "/v1/spin",
		Body:   fmt.Sprintf(`{"email":%q,"device":{"userAgent":"test"}}`, email),
	}).Do(t, h)
	if rr.Code != http.StatusOK {
		t.Fatalf("spin status = %d body=%s", rr.Code, rr.Body.String())
	}
	var res engine.SpinResult
	decodeBody(t, rr.Body.Bytes(), &res)
	return &res
}

func TestSpin_Success(t *testing.T) {
	h, _ := newHandler(t)

	res := doSpin(t, h, "shopper@example.com")
	if res.WinningIndex < 0 || res.WinningIndex > 3 {
		t.Errorf("winningIndex = %d", res.WinningIndex)
	}
	if res.Plan.Turns < 4 || res.Plan.Turns > 7 {
		t.Errorf("turns = %d", res.Plan.Turns)
	}
	if res.NextEligibleAt.IsZero() {
		t.Error("missing nextEligibleAt")
	}
}

func TestSpin_MissingIdentity(t *testing.T) {
	h, _ := newHandler(t)

	rr := (&testutil.HTTPRequest{Method: "POST", Path: "/v1/spin", Body: `{"device":{}}`}).Do(t, h)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var resp api.ErrorResponse
	decodeBody(t, rr.Body.Bytes(), &resp)
	if resp.Code != api.ErrCodeMissingField {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestSpin_BadJSON(t *testing.T) {
	h, _ := newHandler(t)
	rr := (&testutil.HTTPRequest{Method: "POST", Path: "/v1/spin", Body: `{`}).Do(t, h)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestSpin_CooldownConflict(t *testing.T) {
	h, env := newHandler(t)

	doSpin(t, h, "shopper@example.com")
	env.Clock.Advance(time.Hour)

	rr := (&testutil.HTTPRequest{
		Method: "POST",
		Path:   "/v1/spin",
		Body:   `{"email":"shopper@example.com","device":{}}`,
	}).Do(t, h)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	var resp api.ErrorResponse
	decodeBody(t, rr.Body.Bytes(), &resp)
	if resp.Code != api.ErrCodeCooldownActive {
		t.Errorf("code = %q", resp.Code)
	}
	if resp.NextEligibleAt == nil {
		t.Error("cooldown response must carry nextEligibleAt")
	} else if want := env.Clock.Now().Add(71 * time.Hour); !resp.NextEligibleAt.Equal(want) {
		t.Errorf("nextEligibleAt = %v, want %v", resp.NextEligibleAt, want)
	}
}

func TestEligibility_Query(t *testing.T) {
	h, _ := newHandler(t)

	rr := (&testutil.HTTPRequest{Method: "GET", Path: "/v1/eligibility?email=shopper@example.com"}).Do(t, h)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var state struct {
		CanDraw        bool       `json:"canDraw"`
		NextEligibleAt *time.Time `json:"nextEligibleAt"`
	}
	decodeBody(t, rr.Body.Bytes(), &state)
	if !state.CanDraw || state.NextEligibleAt != nil {
		t.Fatalf("fresh identity: %+v", state)
	}

	doSpin(t, h, "shopper@example.com")

	rr =(&testutil.HTTPRequest{Method: "GET", Path: "/v1/eligibility?email=Shopper@Example.com"}).Do(t, h)
	decodeBody(t, rr.Body.Bytes(), &state)
	if state.CanDraw || state.NextEligibleAt == nil {
		t.Fatalf("inside cooldown: %+v", state)
	}

	missing := (&testutil.HTTPRequest{Method: "GET", Path: "/v1/eligibility"}).Do(t, h)
	if missing.Code != http.StatusBadRequest {
		t.Errorf("no identity status = %d, want 400", missing.Code)
	}
}

// winReward spins fresh identities until one lands a promo segment, which is
// never auto-claimed and so exercises the manual claim path.
func winReward(t *testing.T, h http.Handler, env *testutil.Env) *store.Reward {
	t.Helper()
	for i := 0; i < 200; i++ {
		res := doSpin(t, h, fmt.Sprintf("shopper-%d@example.com", i))
		if res.Reward != nil && res.Reward.Payload.Kind == store.PayloadPromoCode {
			return res.Reward
		}
	}
	t.Fatal("no promo win in 200 draws")
	return nil
}

func TestClaim_FlowAndIdempotence(t *testing.T) {
	h, env := newHandler(t)
	rw := winReward(t, h, env)

	claim := func() (int, struct {
		Reward         store.Reward `json:"reward"`
		AlreadyClaimed bool         `json:"alreadyClaimed"`
	}) {
		rr := (&testutil.HTTPRequest{Method: "POST", Path: "/v1/rewards/" + rw.ID + "/claim"}).Do(t, h)
		var out struct {
			Reward         store.Reward `json:"reward"`
			AlreadyClaimed bool         `json:"alreadyClaimed"`
		}
		if rr.Code == http.StatusOK {
			decodeBody(t, rr.Body.Bytes(), &out)
		}
		return rr.Code, out
	}

	code, first := claim()
	if code != http.StatusOK || first.AlreadyClaimed {
		t.Fatalf("first claim: code=%d alreadyClaimed=%v", code, first.AlreadyClaimed)
	}
	if !first.Reward.Claimed {
		t.Error("claimed flag not set")
	}

	code, second := claim()
	if code != http.StatusOK || !second.AlreadyClaimed {
		t.Fatalf("second claim: code=%d alreadyClaimed=%v", code, second.AlreadyClaimed)
	}
	if env.Cart.Len() != 1 {
		t.Errorf("cart has %d lines, want 1", env.Cart.Len())
	}
}

func TestClaim_ExpiredReturns410(t *testing.T) {
	h, env := newHandler(t)
	rw := winReward(t, h, env)

	env.Clock.Advance(72*time.Hour + time.Minute)

	rr := (&testutil.HTTPRequest{Method: "POST", Path: "/v1/rewards/" + rw.ID + "/claim"}).Do(t, h)
	if rr.Code != http.StatusGone {
		t.Fatalf("status = %d, want 410", rr.Code)
	}
	var resp api.ErrorResponse
	decodeBody(t, rr.Body.Bytes(), &resp)
	if resp.Code != api.ErrCodeExpiredReward {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestClaim_UnknownReward(t *testing.T) {
	h, _ := newHandler(t)
	rr := (&testutil.HTTPRequest{Method: "POST", Path: "/v1/rewards/nope/claim"}).Do(t, h)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestGetReward(t *testing.T) {
	h, env := newHandler(t)
	rw := winReward(t, h, env)

	rr := (&testutil.HTTPRequest{Method: "GET", Path: "/v1/rewards/" + rw.ID}).Do(t, h)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var got store.Reward
	decodeBody(t, rr.Body.Bytes(), &got)
	if got.ID != rw.ID || got.Payload.PromoCode != "SPIN10" {
		t.Errorf("got %+v", got)
	}

	missing := (&testutil.HTTPRequest{Method: "GET", Path: "/v1/rewards/nope"}).Do(t, h)
	if missing.Code != http.StatusNotFound {
		t.Errorf("unknown reward status = %d", missing.Code)
	}
}

func TestAdmin_RequiresBearerKey(t *testing.T) {
	h, _ := newHandler(t)

	for _, hdr := range []map[string]string{
		nil,
		{"Authorization": "Bearer wrong-key"},
		{"Authorization": adminKey}, // missing Bearer prefix
	} {
		rr := (&testutil.HTTPRequest{Method: "GET", Path: "/v1/wheel/", Headers: hdr}).Do(t, h)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("headers %v: status = %d, want 401", hdr, rr.Code)
		}
	}

	ok := (&testutil.HTTPRequest{
		Method:  "GET",
		Path:    "/v1/wheel/",
		Headers: map[string]string{"Authorization": "Bearer " + adminKey},
	}).Do(t, h)
	if ok.Code != http.StatusOK {
		t.Fatalf("authorized status = %d body=%s", ok.Code, ok.Body.String())
	}
}

func TestPutWheel_SwapsSnapshot(t *testing.T) {
	h, _ := newHandler(t)

	before := snapshot.Load().ETag

	rr := (&testutil.HTTPRequest{
		Method:  "PUT",
		Path:    "/v1/wheel/",
		Headers: map[string]string{"Authorization": "Bearer " + adminKey},
		Body: `{"segments":[
			{"weight":50,"text":"Half off","payload":{"kind":"promo_code","promoCode":"HALF"}},
			{"weight":50,"text":"Try again"}
		],"cooldownHours":24}`,
	}).Do(t, h)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		OK      bool   `json:"ok"`
		ETag    string `json:"etag"`
		Warning string `json:"warning"`
	}
	decodeBody(t, rr.Body.Bytes(), &resp)
	if !resp.OK || resp.Warning != "" {
		t.Fatalf("resp = %+v", resp)
	}

	snap := snapshot.Load()
	if snap.ETag == before || snap.ETag != resp.ETag {
		t.Errorf("snapshot etag not swapped: before=%q now=%q resp=%q", before, snap.ETag, resp.ETag)
	}
	if len(snap.Segments) != 2 || snap.CooldownHours != 24 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestPutWheel_OffHundredWeightsWarn(t *testing.T) {
	h, _ := newHandler(t)

	rr := (&testutil.HTTPRequest{
		Method:  "PUT",
		Path:    "/v1/wheel/",
		Headers: map[string]string{"Authorization": "Bearer " + adminKey},
		Body:    `{"segments":[{"weight":30,"text":"A"},{"weight":30,"text":"B"}],"cooldownHours":24}`,
	}).Do(t, h)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		OK      bool   `json:"ok"`
		Warning string `json:"warning"`
	}
	decodeBody(t, rr.Body.Bytes(), &resp)
	if !resp.OK || resp.Warning == "" {
		t.Fatalf("off-100 weights must warn, got %+v", resp)
	}
}

func TestPutWheel_RejectsNegativeWeight(t *testing.T) {
	h, _ := newHandler(t)

	rr := (&testutil.HTTPRequest{
		Method:  "PUT",
		Path:    "/v1/wheel/",
		Headers: map[string]string{"Authorization": "Bearer " + adminKey},
		Body:    `{"segments":[{"weight":-5,"text":"A"}],"cooldownHours":24}`,
	}).Do(t, h)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestGetWheel_ReturnsStoredConfig(t *testing.T) {
	h, _ := newHandler(t)

	rr := (&testutil.HTTPRequest{
		Method:  "GET",
		Path:    "/v1/wheel/",
		Headers: map[string]string{"Authorization": "Bearer " + adminKey},
	}).Do(t, h)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var cfg store.WheelConfig
	decodeBody(t, rr.Body.Bytes(), &cfg)
	if len(cfg.Segments) != 4 || cfg.CooldownHours != 72 {
		t.Errorf("cfg = %+v", cfg)
	}
	// The admin surface, unlike the public snapshot, exposes payloads.
	if cfg.Segments[0].Payload.PromoCode != "SPIN10" {
		t.Errorf("admin view must include payloads: %+v", cfg.Segments[0])
	}
}
