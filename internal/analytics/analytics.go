package analytics

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"todo-list-backend/internal/identity"
)

const (
	EventTaskCreated          = "task_created"
	EventTaskCompleted        = "task_completed"
	EventTaskUncompleted      = "task_uncompleted"
	EventTaskImportanceChange = "task_importance_changed"
	EventTaskDeleted          = "task_deleted"
	EventStoreReset           = "store_reset"
	EventAppOpened            = "app_opened"
	EventViewChanged          = "view_changed"
)

// Envelope is what we store with every event.
type Envelope struct {
	SessionID    string
	Platform     string
	AppVersion   string
	DeviceLocale string
}

type Event struct {
	ID             string
	Name           string
	Time           time.Time
	Principal      identity.Principal
	Envelope       Envelope
	SourceEventKey string
	Props          map[string]any
}

// Sink stores events. Implementations must be safe for concurrent use.
type Sink interface {
	Log(ctx context.Context, ev Event) error
}

type NopSink struct{}

func (NopSink) Log(context.Context, Event) error { return nil }

// FromRequest extracts event envelope fields from request.
// Backend-trustable fields only.
func FromRequest(r *http.Request) Envelope {
	platform := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Platform")))
	switch platform {
	case "ios", "android", "web":
	default:
		platform = "unknown"
	}

	locale := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if locale == "" {
		locale = strings.TrimSpace(r.Header.Get("X-Device-Locale"))
	}

	return Envelope{
		SessionID:    strings.TrimSpace(r.Header.Get("X-Session-Id")),
		Platform:     platform,
		AppVersion:   strings.TrimSpace(r.Header.Get("X-App-Version")),
		DeviceLocale: locale,
	}
}

// SourceEventKeyFromRequest returns the client idempotency key, if any.
// Events with a duplicate key are dropped by the sink.
func SourceEventKeyFromRequest(r *http.Request) string {
	k := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if k != "" {
		return k
	}
	return strings.TrimSpace(r.Header.Get("X-Source-Event-Key"))
}

// Tracker builds events from requests and hands them to a Sink.
// A failing sink never fails the caller's operation.
type Tracker struct {
	sink   Sink
	logger *log.Logger
	now    func() time.Time
}

func NewTracker(sink Sink, logger *log.Logger) *Tracker {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Tracker{sink: sink, logger: logger, now: time.Now}
}

func (t *Tracker) Track(r *http.Request, p identity.Principal, name string, props map[string]any) {
	if t == nil || name == "" {
		return
	}

	ev := Event{
		ID:             uuid.NewString(),
		Name:           name,
		Time:           t.now().UTC(),
		Principal:      p,
		Envelope:       FromRequest(r),
		SourceEventKey: SourceEventKeyFromRequest(r),
		Props:          props,
	}

	if err := t.sink.Log(r.Context(), ev); err != nil {
		t.logger.Printf("[WARN] analytics %s for %s failed: %v", name, p, err)
	}
}
