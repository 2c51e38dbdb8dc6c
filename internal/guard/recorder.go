package guard

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/verdantmarket/spinwheel/internal/store"
)

const (
	// DefaultQueueSize is the audit queue buffer. Entries are dropped,
	// not blocked on, when the queue is full.
	DefaultQueueSize = 256

	writeTimeout = 5 * time.Second
)

// OriginUnknown is recorded when the caller's network origin could not be
// determined.
const OriginUnknown = "unknown"

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now().
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Recorder writes draw attempts to the audit ledger asynchronously.
// RecordAttempt is fire-and-forget: a full queue or a failing sink never
// blocks or fails the draw that triggered it.
type Recorder struct {
	sink   store.AuditStore
	clock  Clock
	log    zerolog.Logger
	queue  chan store.AuditEntry
	stopCh chan struct{}
	done   chan struct{}
	closed int32
}

// NewRecorder creates a recorder and starts its background worker.
func NewRecorder(sink store.AuditStore, clock Clock, queueSize int, log zerolog.Logger) *Recorder {
	if clock == nil {
		clock = SystemClock{}
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	r := &Recorder{
		sink:   sink,
		clock:  clock,
		log:    log,
		queue:  make(chan store.AuditEntry, queueSize),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go r.worker()
	return r
}

// RecordAttempt queues an audit entry for the given attempt. The entry is
// written for every attempt carrying an email, including attempts by
// participants who turn out to be authenticated under the same address.
func (r *Recorder) RecordAttempt(email, deviceDigest, networkOrigin string) {
	if networkOrigin == "" {
		networkOrigin = OriginUnknown
	}

	entry := store.AuditEntry{
		Email:         email,
		DeviceDigest:  deviceDigest,
		NetworkOrigin: networkOrigin,
		OccurredAt:    r.clock.Now(),
	}

	select {
	case r.queue <- entry:
	default:
		r.log.Warn().Str("email", email).Msg("audit queue full, dropping attempt record")
	}
}

func (r *Recorder) worker() {
	defer close(r.done)
	for {
		select {
		case entry := <-r.queue:
			r.write(entry)
		case <-r.stopCh:
			// Drain remaining entries before stopping.
			for {
				select {
				case entry := <-r.queue:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry store.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.sink.InsertAuditEntry(ctx, entry); err != nil {
		r.log.Warn().Err(err).Msg("audit write failed")
	}
}

// Close stops the worker after draining queued entries. It is safe to call
// multiple times.
func (r *Recorder) Close() error {
	if !atomic.CompareAndSwapInt32(&r.closed, 0, 1) {
		return nil
	}
	close(r.stopCh)
	<-r.done
	return nil
}
