package producer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"roadmirror/internal/events"
	"roadmirror/internal/producer/progress"
	"roadmirror/internal/registry"
)

// runBackfill drives one bounded full-scan batch: fetch one page strictly
// after the persisted high-water mark, translate and publish each object,
// flush, then persist the advanced cursor. An empty page completes the scan
// and flips the type to updates mode, keeping the change cursor captured at
// backfill start.
func (p *Producer) runBackfill(ctx context.Context, rec *progress.Record) *progress.Record {
	typeID := rec.TypeID
	start := time.Now()
	defer observeBatch(typeID, phaseBackfill, start)

	session, err := p.sink.Begin(ctx)
	if err != nil {
		p.logger.Error("failed to open publish session", "type", typeID, "error", err)
		observePublishError(typeID)
		return p.failTick(ctx, rec, err)
	}

	var lastID *int64
	count := 0

	err = p.gateway.StreamObjects(ctx, typeID, p.cfg.BackfillBatchSize, rec.LastProcessedID, func(raw registry.RoadObject) error {
		obj, err := translateObject(raw)
		if err != nil {
			return err
		}
		if p.enricher != nil {
			obj = p.enricher.Enrich(ctx, obj)
		}

		delta := &events.Delta{EventID: uuid.NewString(), After: obj}
		if err := session.Publish(ctx, typeID, obj.ID, delta); err != nil {
			return err
		}

		id := obj.ID
		lastID = &id
		count++
		return nil
	})
	if err != nil {
		p.logger.Error("backfill batch failed", "type", typeID, "error", err)
		observePublishError(typeID)
		return p.failTick(ctx, rec, err)
	}

	// The cursor must never be persisted ahead of acknowledged publications:
	// a crash between persisting and flushing would silently drop events on
	// resume.
	if err := session.Flush(ctx); err != nil {
		p.logger.Error("backfill flush failed", "type", typeID, "count", count, "error", err)
		observePublishError(typeID)
		return p.failTick(ctx, rec, err)
	}

	now := time.Now().UTC()
	updated := rec.Clone()
	updated.LastError = ""
	updated.UpdatedAt = now

	if count == 0 {
		updated.Mode = progress.ModeUpdates
		updated.BackfillCompletedAt = &now
		if err := p.store.Save(ctx, updated); err != nil {
			p.logger.Error("failed to persist backfill completion", "type", typeID, "error", err)
			return p.failTick(ctx, rec, err)
		}
		p.logger.Info("backfill complete, transitioning to updates mode",
			"type", typeID, "changeId", derefInt64(updated.ChangeID))
		return updated
	}

	updated.LastProcessedID = lastID
	if err := p.store.Save(ctx, updated); err != nil {
		p.logger.Error("failed to persist backfill progress", "type", typeID, "error", err)
		return p.failTick(ctx, rec, err)
	}

	observePublished(typeID, phaseBackfill, count)
	observeCursorCommit(typeID, phaseBackfill)
	p.logger.Info("backfill batch processed", "type", typeID, "count", count, "lastId", *lastID)
	return updated
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
