// Package producer implements the per-type ingestion state machine that
// mirrors the road-network registry into per-type delta event streams.
//
// Each monitored type is either in an initial full-scan phase (backfill) or a
// steady-state incremental-polling phase (updates). A scheduler ticks the
// producer per type on a fixed cadence; one tick drives at most one bounded
// batch or cycle, guarded by a per-type single-flight flag. The progress
// cursor is persisted only after every publication of the batch has been
// acknowledged by the broker, so a crash loses no committed progress and
// redelivers at most the in-flight batch.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"roadmirror/internal/delivery"
	"roadmirror/internal/events"
	"roadmirror/internal/producer/progress"
	"roadmirror/internal/registry"
)

// ErrBackfillInProgress is returned by StartBackfill when the type already
// has an active backfill.
var ErrBackfillInProgress = errors.New("producer: backfill already in progress")

// Gateway is the registry read access the producer needs.
// *registry.Client satisfies it.
type Gateway interface {
	StreamObjects(ctx context.Context, typeID, limit int, afterID *int64, fn func(registry.RoadObject) error) error
	StreamChanges(ctx context.Context, typeID, limit int, afterID *int64, fn func(registry.ChangeEvent) error) error
	LatestChangeID(ctx context.Context, typeID int) (int64, error)
	FetchObject(ctx context.Context, typeID int, objectID int64) (*registry.RoadObject, error)
}

// Enricher attaches side-loaded data to a translated object. Enrichment is
// best effort and must never fail the object.
type Enricher interface {
	Enrich(ctx context.Context, obj *events.RoadObject) *events.RoadObject
}

// Config holds the producer's batch sizing.
type Config struct {
	// BackfillBatchSize bounds one backfill page. Defaults to 100.
	BackfillBatchSize int

	// UpdatesBatchSize bounds one change-log page. Defaults to 100.
	UpdatesBatchSize int
}

// ApplyDefaults fills in missing values with defaults.
func (c *Config) ApplyDefaults() {
	if c.BackfillBatchSize <= 0 {
		c.BackfillBatchSize = 100
	}
	if c.UpdatesBatchSize <= 0 {
		c.UpdatesBatchSize = 100
	}
}

// Producer coordinates per-type ingestion. It is safe for concurrent use;
// within one type at most one runner executes at a time.
type Producer struct {
	cfg      Config
	gateway  Gateway
	sink     delivery.Sink
	store    progress.Store
	enricher Enricher // optional
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[int]*atomic.Bool
}

// New creates a Producer. enricher may be nil to disable enrichment.
func New(cfg Config, gateway Gateway, sink delivery.Sink, store progress.Store, enricher Enricher, logger *slog.Logger) *Producer {
	cfg.ApplyDefaults()
	return &Producer{
		cfg:      cfg,
		gateway:  gateway,
		sink:     sink,
		store:    store,
		enricher: enricher,
		logger:   logger.With("component", "producer"),
		inFlight: make(map[int]*atomic.Bool),
	}
}

// guard returns the single-flight flag for typeID, creating it lazily.
func (p *Producer) guard(typeID int) *atomic.Bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.inFlight[typeID]
	if !ok {
		g = &atomic.Bool{}
		p.inFlight[typeID] = g
	}
	return g
}

// OnTick drives one unit of work for the type. A tick arriving while a runner
// is in flight is dropped, not queued. An uninitialized type is a no-op.
// Runner failures are absorbed here; nothing propagates to the scheduler.
func (p *Producer) OnTick(ctx context.Context, typeID int) {
	guard := p.guard(typeID)
	if !guard.CompareAndSwap(false, true) {
		p.logger.Debug("processing already in progress, skipping tick", "type", typeID)
		observeTickSkipped(typeID)
		return
	}
	defer guard.Store(false)

	rec, err := p.store.Find(ctx, typeID)
	if err != nil {
		p.logger.Error("failed to read progress", "type", typeID, "error", err)
		return
	}
	if rec == nil {
		p.logger.Debug("type not initialized, skipping", "type", typeID)
		return
	}

	switch rec.Mode {
	case progress.ModeBackfill:
		p.logger.Info("processing type in backfill mode", "type", typeID)
		p.runBackfill(ctx, rec)
	case progress.ModeUpdates:
		p.logger.Debug("processing type in updates mode", "type", typeID)
		p.runUpdates(ctx, rec)
	default:
		p.logger.Error("unknown producer mode", "type", typeID, "mode", rec.Mode)
	}
}

// StartBackfill initializes ingestion for a type. The registry's current
// newest change-log id is captured before the scan starts, so changes landing
// during the scan are replayed once the type reaches updates mode. A type
// already in backfill mode is left untouched.
func (p *Producer) StartBackfill(ctx context.Context, typeID int) error {
	existing, err := p.store.Find(ctx, typeID)
	if err != nil {
		return fmt.Errorf("read progress for type %d: %w", typeID, err)
	}
	if existing != nil && existing.Mode == progress.ModeBackfill {
		p.logger.Warn("backfill already in progress", "type", typeID)
		return ErrBackfillInProgress
	}

	latest, err := p.gateway.LatestChangeID(ctx, typeID)
	if err != nil {
		return fmt.Errorf("query latest change id for type %d: %w", typeID, err)
	}

	now := time.Now().UTC()
	rec := &progress.Record{
		TypeID:            typeID,
		Mode:              progress.ModeBackfill,
		ChangeID:          &latest,
		BackfillStartedAt: &now,
		UpdatedAt:         now,
	}
	if err := p.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save progress for type %d: %w", typeID, err)
	}

	p.logger.Info("started backfill", "type", typeID, "changeId", latest)
	return nil
}

// StopBackfill removes the type's progress record, halting ingestion.
func (p *Producer) StopBackfill(ctx context.Context, typeID int) error {
	if err := p.store.Delete(ctx, typeID); err != nil {
		return fmt.Errorf("delete progress for type %d: %w", typeID, err)
	}
	p.logger.Info("stopped backfill", "type", typeID)
	return nil
}

// ResetBackfill deletes any existing progress and starts a fresh backfill,
// capturing a new change cursor.
func (p *Producer) ResetBackfill(ctx context.Context, typeID int) error {
	if err := p.StopBackfill(ctx, typeID); err != nil {
		return err
	}
	p.logger.Info("reset backfill", "type", typeID)
	return p.StartBackfill(ctx, typeID)
}

// GetStatus returns the current progress record, or nil when the type is not
// initialized.
func (p *Producer) GetStatus(ctx context.Context, typeID int) (*progress.Record, error) {
	return p.store.Find(ctx, typeID)
}

// failTick records the failure on the otherwise-unmodified record and
// persists it. The cursor is untouched; the tick is retried on the next
// scheduling cycle from the same position.
func (p *Producer) failTick(ctx context.Context, rec *progress.Record, cause error) *progress.Record {
	failed := rec.Clone()
	failed.LastError = cause.Error()
	failed.UpdatedAt = time.Now().UTC()
	if err := p.store.Save(ctx, failed); err != nil {
		p.logger.Error("failed to persist error state", "type", rec.TypeID, "error", err)
	}
	return failed
}
