// Package delivery provides the publishing abstraction for road object delta
// events. Publications are scoped to a session: a session buffers asynchronous
// publishes and its Flush returns only after every one of them has been
// acknowledged by the broker, or fails the session as a whole. Callers must
// not commit progress for work published in a session until Flush succeeds.
package delivery

import (
	"context"
	"fmt"
	"time"

	"roadmirror/internal/events"
)

// StreamName is the JetStream stream holding all per-type subjects.
const StreamName = "ROADOBJECTS"

// SubjectPrefix is prepended to the numeric type id to form a subject.
const SubjectPrefix = "roadobjects"

// Subject returns the deterministic subject for a monitored type.
func Subject(typeID int) string {
	return fmt.Sprintf("%s.%d", SubjectPrefix, typeID)
}

// Sink creates publish sessions against the broker.
type Sink interface {
	// Begin opens a new publish session.
	Begin(ctx context.Context) (Session, error)

	// Close releases broker resources.
	Close() error
}

// Session is one flush-scoped batch of publications.
type Session interface {
	// Publish enqueues a delta keyed by objectID onto the type's subject.
	// It may buffer; acknowledgment is only guaranteed after Flush.
	Publish(ctx context.Context, typeID int, objectID int64, delta *events.Delta) error

	// Flush blocks until every publication issued in this session has been
	// acknowledged. There is no partial success: a non-nil error means the
	// caller must treat the whole session as unconfirmed.
	Flush(ctx context.Context) error
}

// Options configures a sink.
type Options struct {
	// AckTimeout bounds the wait for a single publication's acknowledgment
	// during Flush. Defaults to 30s.
	AckTimeout time.Duration

	// OnPublish, when set, is called after each publish enqueue (for metrics).
	OnPublish func(subject string, err error, latency time.Duration)
}
