package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/verdantmarket/spinwheel/internal/auth"
	"github.com/verdantmarket/spinwheel/internal/countdown"
	"github.com/verdantmarket/spinwheel/internal/engine"
	"github.com/verdantmarket/spinwheel/internal/guard"
	"github.com/verdantmarket/spinwheel/internal/participant"
	"github.com/verdantmarket/spinwheel/internal/reward"
	"github.com/verdantmarket/spinwheel/internal/snapshot"
	"github.com/verdantmarket/spinwheel/internal/store"
	"github.com/verdantmarket/spinwheel/internal/telemetry"
)

// Options configures the API server.
type Options struct {
	AdminAPIKey     string
	AdminAPIKeyHash string
	RateLimitPerIP  int
	Scheduler       *countdown.Scheduler
	Logger          zerolog.Logger
}

// Server exposes the draw engine over HTTP.
type Server struct {
	engine    *engine.Engine
	rewards   *reward.Manager
	configs   store.ConfigStore
	scheduler *countdown.Scheduler
	opts      Options
	log       zerolog.Logger
}

// NewServer creates an API server around the engine and its collaborators.
func NewServer(eng *engine.Engine, rewards *reward.Manager, configs store.ConfigStore, opts Options) *Server {
	if opts.Scheduler == nil {
		opts.Scheduler = countdown.NewScheduler()
	}
	if opts.RateLimitPerIP <= 0 {
		opts.RateLimitPerIP = 30
	}
	return &Server{
		engine:    eng,
		rewards:   rewards,
		configs:   configs,
		scheduler: opts.Scheduler,
		opts:      opts,
		log:       opts.Logger,
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(telemetry.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// public: wheel snapshot (ETag)
	r.Get("/v1/wheel/snapshot", s.handleSnapshot)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.With(httprate.LimitByIP(s.opts.RateLimitPerIP, time.Minute)).
			Post("/v1/spin", s.handleSpin)
		r.Get("/v1/eligibility", s.handleEligibility)
		r.Get("/v1/rewards/{id}", s.handleGetReward)
		r.Post("/v1/rewards/{id}/claim", s.handleClaim)
	})

	// countdown stream holds the connection open; no timeout middleware
	r.Get("/v1/eligibility/stream", s.handleCountdownStream)

	// admin (protected): wheel config
	r.Route("/v1/wheel", func(r chi.Router) {
		r.Use(s.authAdmin)
		r.Get("/", s.handleGetWheel)
		r.Put("/", s.handlePutWheel)
	})

	return r
}

// authAdmin guards config writes. ADMIN_API_KEY_HASH takes precedence over
// the plain key when both are configured.
func (s *Server) authAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.ExtractBearerToken(r.Header.Get("Authorization"))
		ok := false
		if s.opts.AdminAPIKeyHash != "" {
			ok = auth.VerifyKeyHash(token, s.opts.AdminAPIKeyHash)
		} else {
			ok = auth.VerifyKey(token, s.opts.AdminAPIKey)
		}
		if !ok {
			writeError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid admin key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ---- handlers ----

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := snapshot.Load()
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == snap.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", snap.ETag)
	writeJSON(w, http.StatusOK, publicSnapshot(snap))
}

// publicSnapshotView is the snapshot with reward contents stripped: the
// storefront needs segment labels and weights to render the wheel, but not
// promo codes.
type publicSnapshotView struct {
	ETag          string              `json:"etag"`
	Segments      []publicSegmentView `json:"segments"`
	CooldownHours float64             `json:"cooldownHours"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

type publicSegmentView struct {
	Weight    float64           `json:"weight"`
	Text      string            `json:"text,omitempty"`
	Image     string            `json:"image,omitempty"`
	HasReward bool              `json:"hasReward"`
	Kind      store.PayloadKind `json:"kind"`
}

func publicSnapshot(snap *snapshot.Snapshot) publicSnapshotView {
	segments := make([]publicSegmentView, len(snap.Segments))
	for i, seg := range snap.Segments {
		kind := seg.Payload.Kind
		if kind == "" {
			kind = store.PayloadNone
		}
		segments[i] = publicSegmentView{
			Weight:    seg.Weight,
			Text:      seg.Text,
			Image:     seg.Image,
			HasReward: kind != store.PayloadNone,
			Kind:      kind,
		}
	}
	return publicSnapshotView{
		ETag:          snap.ETag,
		Segments:      segments,
		CooldownHours: snap.CooldownHours,
		UpdatedAt:     snap.UpdatedAt,
	}
}

type spinRequest struct {
	Email  string        `json:"email,omitempty"`
	UserID string        `json:"userId,omitempty"`
	Device guard.Signals `json:"device"`
}

func (req *spinRequest) participant() participant.Participant {
	if req.UserID != "" {
		return participant.Authenticated(req.UserID, req.Email)
	}
	return participant.Guest(req.Email)
}

func (s *Server) handleSpin(w http.ResponseWriter, r *http.Request) {
	var req spinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidJSON, "invalid JSON")
		return
	}

	p := req.participant()
	if err := p.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeMissingField, "email or userId is required")
		return
	}

	result, err := s.engine.Spin(r.Context(), engine.SpinRequest{
		Participant: p,
		Signals:     req.Device,
		Origin:      callerOrigin(r),
	})
	if err != nil {
		var cooldown *engine.CooldownError
		switch {
		case errors.As(err, &cooldown):
			telemetry.Spins.WithLabelValues("cooldown").Inc()
			writeCooldownError(w, r, cooldown.NextEligibleAt)
		case errors.Is(err, engine.ErrNoSegments):
			telemetry.Spins.WithLabelValues("error").Inc()
			writeError(w, r, http.StatusConflict, ErrCodeWheelEmpty, "wheel is not configured")
		default:
			telemetry.Spins.WithLabelValues("error").Inc()
			s.log.Error().Err(err).Msg("spin failed")
			writeError(w, r, http.StatusInternalServerError, ErrCodeInternal, "spin failed")
		}
		return
	}

	if result.Reward != nil {
		telemetry.Spins.WithLabelValues("win").Inc()
	} else {
		telemetry.Spins.WithLabelValues("no_prize").Inc()
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	p, ok := participantFromQuery(w, r)
	if !ok {
		return
	}
	state, _ := s.engine.Eligibility(r.Context(), p)
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleGetReward(w http.ResponseWriter, r *http.Request) {
	rw, err := s.rewards.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrRewardNotFound) {
			writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "reward not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternal, "reward lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, rw)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.rewards.Claim(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrRewardNotFound):
			telemetry.RewardClaims.WithLabelValues("error").Inc()
			writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "reward not found")
		case errors.Is(err, reward.ErrRewardExpired):
			telemetry.RewardClaims.WithLabelValues("expired").Inc()
			writeError(w, r, http.StatusGone, ErrCodeExpiredReward, "reward has expired")
		default:
			telemetry.RewardClaims.WithLabelValues("error").Inc()
			s.log.Error().Err(err).Msg("claim failed")
			writeError(w, r, http.StatusInternalServerError, ErrCodeInternal, "claim failed")
		}
		return
	}

	if outcome.AlreadyClaimed {
		telemetry.RewardClaims.WithLabelValues("duplicate").Inc()
	} else {
		telemetry.RewardClaims.WithLabelValues("claimed").Inc()
	}
	writeJSON(w, http.StatusOK, outcome)
}

type putWheelRequest struct {
	Segments      []store.Segment `json:"segments"`
	CooldownHours float64         `json:"cooldownHours"`
}

type putWheelResponse struct {
	OK      bool   `json:"ok"`
	ETag    string `json:"etag"`
	Warning string `json:"warning,omitempty"`
}

func (s *Server) handlePutWheel(w http.ResponseWriter, r *http.Request) {
	var req putWheelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidJSON, "invalid JSON")
		return
	}

	warning := ""
	if err := store.ValidateSegments(req.Segments); err != nil {
		var weightErr *store.WeightSumError
		if !errors.As(err, &weightErr) {
			writeError(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		// Soft failure: the wheel still operates with the last segment as
		// overflow catch-all.
		warning = weightErr.Error()
		s.log.Warn().Float64("sum", weightErr.Sum).Msg("accepting wheel config with off-100 weights")
	}

	cfg := store.WheelConfig{
		Segments:      req.Segments,
		CooldownHours: req.CooldownHours,
		UpdatedAt:     time.Now().UTC(),
	}
	if err := s.configs.PutWheelConfig(r.Context(), cfg); err != nil {
		s.log.Error().Err(err).Msg("wheel config write failed")
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternal, "config write failed")
		return
	}

	snap := snapshot.BuildFromConfig(&cfg)
	snapshot.Update(snap)

	writeJSON(w, http.StatusOK, putWheelResponse{OK: true, ETag: snap.ETag, Warning: warning})
}

func (s *Server) handleGetWheel(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.configs.GetWheelConfig(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternal, "config read failed")
		return
	}
	if cfg == nil {
		writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "wheel is not configured")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func participantFromQuery(w http.ResponseWriter, r *http.Request) (participant.Participant, bool) {
	email := r.URL.Query().Get("email")
	userID := r.URL.Query().Get("userId")

	var p participant.Participant
	if userID != "" {
		p = participant.Authenticated(userID, email)
	} else {
		p = participant.Guest(email)
	}
	if err := p.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeMissingField, "email or userId is required")
		return participant.Participant{}, false
	}
	return p, true
}
