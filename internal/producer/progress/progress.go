// Package progress provides resumable-state persistence for the producer.
// One record per monitored type; pure storage, no policy.
package progress

import (
	"context"
	"time"
)

// Mode is the producer's operational phase for a type.
type Mode string

const (
	// ModeBackfill is the initial paginated full scan.
	ModeBackfill Mode = "backfill"

	// ModeUpdates is the steady-state change-log polling phase.
	ModeUpdates Mode = "updates"
)

// Record is the resumable state for one monitored type. Absence of a record
// means the type is not initialized; the scheduler treats that as a no-op.
type Record struct {
	// TypeID is the monitored object type.
	TypeID int `bson:"_id"`

	// Mode selects which runner a tick dispatches to.
	Mode Mode `bson:"mode"`

	// LastProcessedID is the backfill high-water mark. Nil means the scan
	// has not started.
	LastProcessedID *int64 `bson:"last_processed_id,omitempty"`

	// ChangeID is the change-log cursor. Captured once before the backfill
	// starts so no change occurring during the scan is missed.
	ChangeID *int64 `bson:"change_id,omitempty"`

	// Observability only.
	BackfillStartedAt   *time.Time `bson:"backfill_started_at,omitempty"`
	BackfillCompletedAt *time.Time `bson:"backfill_completed_at,omitempty"`

	// LastError is the latest failure description; overwritten on the next
	// successful mutation.
	LastError string `bson:"last_error,omitempty"`

	// UpdatedAt is the time of the last mutation.
	UpdatedAt time.Time `bson:"updated_at"`
}

// Clone returns a deep copy. Runners mutate copies and persist them, so a
// failed save never leaves a half-mutated shared record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.LastProcessedID != nil {
		v := *r.LastProcessedID
		c.LastProcessedID = &v
	}
	if r.ChangeID != nil {
		v := *r.ChangeID
		c.ChangeID = &v
	}
	if r.BackfillStartedAt != nil {
		v := *r.BackfillStartedAt
		c.BackfillStartedAt = &v
	}
	if r.BackfillCompletedAt != nil {
		v := *r.BackfillCompletedAt
		c.BackfillCompletedAt = &v
	}
	return &c
}

// Store persists producer progress records. All operations are atomic with
// respect to a single record and durable before returning.
type Store interface {
	// Find returns the record for typeID, or nil if none exists.
	Find(ctx context.Context, typeID int) (*Record, error)

	// Save upserts the record.
	Save(ctx context.Context, rec *Record) error

	// Delete removes the record for typeID. Deleting a missing record is
	// not an error.
	Delete(ctx context.Context, typeID int) error
}
