package audit

import (
	"context"
	"log/slog"
	"time"

	"accountd.io/internal/obs"
)

const defaultTimeout = 3 * time.Second

// Recorder turns events into entries, logs them and persists them. Writes
// are best effort: a failure is logged and counted, never returned.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger overrides the logger (defaults to obs.Logger at write time).
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// WithTimeout bounds each store write.
func WithTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{store: store, now: time.Now, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record writes ev. The write survives cancellation of ctx so that a client
// hanging up does not drop the trail.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	if r == nil {
		return
	}
	e := r.entry(ctx, ev)
	log := r.log()
	log.LogAttrs(ctx, slogLevel(e.Level), "audit",
		slog.String("type", "audit"),
		slog.String("action", string(e.Action)),
		slog.String("entity", e.EntityName),
		slog.Any("entity_id", e.EntityID),
		slog.Any("actor_id", e.ActorID),
		slog.String("ip", e.IPAddress),
		slog.String("request_id", e.RequestID),
	)
	if r.store == nil {
		return
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	err := r.store.Append(wctx, &e)
	obs.ObserveAuditWrite(err)
	if err != nil {
		log.ErrorContext(ctx, "audit write failed",
			slog.String("action", string(e.Action)),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Recorder) entry(ctx context.Context, ev Event) Entry {
	level := ev.Level
	if level == "" {
		level = LevelInfo
	}
	e := Entry{
		Timestamp:  r.now().UTC(),
		ActorID:    ev.ActorID,
		EntityName: ev.Entity,
		EntityID:   ev.EntityID,
		OldValue:   ev.OldValue,
		NewValue:   ev.NewValue,
		Action:     ev.Action,
		Level:      level,
		IPAddress:  ClientIPFromContext(ctx),
		RequestID:  RequestIDFromContext(ctx),
	}
	if ev.Field != "" {
		e.FieldName = String(ev.Field)
	}
	return e
}

func (r *Recorder) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return obs.Logger()
}

func slogLevel(l Level) slog.Level {
	switch l {
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
