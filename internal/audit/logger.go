package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const persistTimeout = 5 * time.Second

// SecurityResource is the resource name used for security events.
const SecurityResource = "security"

// Logger appends audit events without ever failing the caller's request.
// Persistence errors are reported to the process log only. Writes run on a
// context detached from the request so a client disconnect does not lose
// the trail.
type Logger struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewLogger constructs a Logger.
func NewLogger(store Store, logger *slog.Logger) *Logger {
	return &Logger{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// WithNow overrides the event clock for testing.
func (l *Logger) WithNow(fn func() time.Time) {
	if fn != nil {
		l.now = fn
	}
}

// ResourceAccess records a view/create/update/delete on a portal resource.
func (l *Logger) ResourceAccess(ctx context.Context, actorID, resource, resourceID string, action Action, outcome Outcome, meta map[string]any) {
	l.record(ctx, Event{
		ActorID:    actorID,
		Resource:   resource,
		ResourceID: resourceID,
		Action:     action,
		Outcome:    outcome,
		Context:    meta,
	})
}

// SecurityEvent records a security observation such as an unexpected
// upstream failure. The kind and diagnostic payload land in the event
// context, never in the client response.
func (l *Logger) SecurityEvent(ctx context.Context, actorID, kind, clientAddr string, meta map[string]any) {
	if meta == nil {
		meta = make(map[string]any, 2)
	}
	meta["kind"] = kind
	if clientAddr != "" {
		meta["client_addr"] = clientAddr
	}
	l.record(ctx, Event{
		ActorID:    actorID,
		Resource:   SecurityResource,
		ResourceID: kind,
		Action:     ActionCreate,
		Outcome:    OutcomeError,
		Context:    meta,
	})
}

func (l *Logger) record(ctx context.Context, event Event) {
	if l == nil || l.store == nil {
		return
	}
	event.ID = uuid.NewString()
	event.At = l.now()
	if event.ActorID == "" {
		event.ActorID = "anonymous"
	}

	// Detach from the request context so cancellation cannot abort the write.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := l.store.Insert(ctx, event); err != nil && l.logger != nil {
		l.logger.Error("audit append",
			slog.String("resource", event.Resource),
			slog.String("action", string(event.Action)),
			slog.Any("error", err))
	}
}
