package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/verdantmarket/spinwheel/internal/countdown"
	"github.com/verdantmarket/spinwheel/internal/eligibility"
	"github.com/verdantmarket/spinwheel/internal/snapshot"
	"github.com/verdantmarket/spinwheel/internal/store"
	"github.com/verdantmarket/spinwheel/internal/telemetry"
)

// handleCountdownStream serves the cooldown countdown as server-sent
// events: a "tick" with remaining {hours,minutes,seconds} every second and
// a terminal "eligible" event. The session subscribes to snapshot changes,
// so an admin edit mid-countdown recomputes the deadline from the cached
// last-participation record — no fresh ledger query — and restarts the
// countdown against the new deadline.
func (s *Server) handleCountdownStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternal, "streaming unsupported")
		return
	}

	p, ok := participantFromQuery(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// One ledger round trip for the whole session; config changes only move
	// the window, never the last-participation instant.
	state, last := s.engine.Eligibility(r.Context(), p)
	s.log.Debug().Str("participant", p.Key()).
		Str("last_participation", lastRecordTimestamp(last)).
		Bool("can_draw", state.CanDraw).
		Msg("countdown stream opened")

	// Callbacks run on the countdown goroutine and must never block, or
	// cancelling the handle would deadlock. Ticks drop when the client is
	// slow; the single terminal event gets a dedicated buffered slot.
	ticks := make(chan countdown.Remaining, 4)
	expired := make(chan struct{}, 1)
	changes, unsubscribe := snapshot.Subscribe()
	defer unsubscribe()

	telemetry.ActiveCountdowns.Inc()
	defer telemetry.ActiveCountdowns.Dec()

	var handle *countdown.Handle
	stopCountdown := func() {
		if handle != nil {
			handle.Cancel()
			handle = nil
		}
	}
	defer stopCountdown()

	startCountdown := func(deadline time.Time) {
		stopCountdown()
		// The previous worker has fully exited; clear any terminal event
		// it left behind before arming the next one.
		select {
		case <-expired:
		default:
		}
		handle = s.scheduler.Start(deadline,
			func(rem countdown.Remaining) {
				select {
				case ticks <- rem:
				default:
				}
			},
			func() {
				select {
				case expired <- struct{}{}:
				default:
				}
			},
		)
	}

	if state.CanDraw {
		// A spent cooldown never re-arms; hold the stream open until the
		// client draws or disconnects.
		writeSSE(w, flusher, "eligible", state)
	} else {
		startCountdown(*state.NextEligibleAt)
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case rem := <-ticks:
			writeSSE(w, flusher, "tick", rem)
		case <-expired:
			stopCountdown()
			writeSSE(w, flusher, "eligible", eligibility.State{CanDraw: true})
		case <-changes:
			// Recompute under the new snapshot with the same cached record.
			next := eligibility.Compute(last, snapshot.Load().CooldownHours, time.Now())
			if next.CanDraw {
				stopCountdown()
				writeSSE(w, flusher, "eligible", next)
			} else {
				startCountdown(*next.NextEligibleAt)
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}

func lastRecordTimestamp(last *store.ParticipationRecord) string {
	if last == nil {
		return "never"
	}
	return last.OccurredAt.Format(time.RFC3339)
}
