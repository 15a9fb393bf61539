package audit

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/peopleops/hrms-backend/pkg/httputil"
	"github.com/peopleops/hrms-backend/pkg/logger"
)

// Sink persists audit entries. Satisfied by *Repository.
type Sink interface {
	Create(ctx context.Context, entry *Entry) error
}

// Recorder buffers data-mutation entries on a bounded queue drained by a
// worker. When the queue is saturated the oldest entry is dropped and the
// dropped counter increments; delivery is at-least-once, best-effort, and
// may be reordered. Auth events bypass the queue via RecordSync.
type Recorder struct {
	sink    Sink
	queue   chan *Entry
	logger  *logger.Logger
	dropped atomic.Int64

	mu      sync.Mutex
	done    chan struct{}
	started bool
}

// NewRecorder creates a recorder with the given queue capacity.
func NewRecorder(sink Sink, queueSize int, log *logger.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Recorder{
		sink:   sink,
		queue:  make(chan *Entry, queueSize),
		logger: log,
		done:   make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	go r.worker()
}

// Stop drains the queue and stops the worker.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return
	}
	r.started = false
	close(r.queue)
	<-r.done
}

// Dropped reports how many entries were discarded due to saturation.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Record enqueues a mutation entry without blocking the request path. The
// actor, remote address and user agent are taken from the request context;
// the actor falls back to "system" when none is present.
func (r *Recorder) Record(ctx context.Context, action, entityKind, entityID string, payload interface{}) {
	entry := r.build(ctx, action, entityKind, entityID, payload)

	for {
		select {
		case r.queue <- entry:
			return
		default:
		}
		// Queue full: drop the oldest entry and retry.
		select {
		case <-r.queue:
			r.dropped.Add(1)
		default:
		}
	}
}

// RecordSync writes an entry inline. Used for LOGIN, LOGOUT and
// ACCESS_DENIED, which must be durable before the response completes.
func (r *Recorder) RecordSync(ctx context.Context, action, entityKind, entityID string, payload interface{}) {
	entry := r.build(ctx, action, entityKind, entityID, payload)
	if err := r.sink.Create(ctx, entry); err != nil {
		r.logger.Error().Err(err).Str("action", action).Msg("failed to write audit entry")
	}
}

func (r *Recorder) build(ctx context.Context, action, entityKind, entityID string, payload interface{}) *Entry {
	actor := httputil.GetUsername(ctx)
	if actor == "" {
		actor = "system"
	}

	var raw json.RawMessage
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			raw = b
		}
	}

	return &Entry{
		Actor:      actor,
		Action:     action,
		EntityKind: entityKind,
		EntityID:   entityID,
		Payload:    raw,
		RemoteIP:   httputil.GetRemoteIP(ctx),
		UserAgent:  httputil.GetUserAgent(ctx),
	}
}

func (r *Recorder) worker() {
	defer close(r.done)

	for entry := range r.queue {
		// Detached context: the originating request may already be done.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.sink.Create(ctx, entry); err != nil {
			r.logger.Error().Err(err).
				Str("action", entry.Action).
				Str("entity_kind", entry.EntityKind).
				Msg("failed to persist audit entry")
		}
		cancel()
	}
}
