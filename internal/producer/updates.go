package producer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"roadmirror/internal/events"
	"roadmirror/internal/producer/progress"
	"roadmirror/internal/registry"
)

// runUpdates drives one bounded incremental-poll cycle: read one page of
// change notifications strictly after the change cursor, fetch each object's
// current state, translate, publish, flush, then persist the advanced cursor.
//
// A failed single-object fetch is isolated: it is logged and skipped so the
// rest of the page still publishes, but the cursor stops advancing at the
// last success before the first failure. The skipped change is therefore
// re-polled on the next cycle instead of being stranded behind a later
// success. Mapping faults are not isolated; they indicate a schema assumption
// violation and abort the cycle.
func (p *Producer) runUpdates(ctx context.Context, rec *progress.Record) *progress.Record {
	typeID := rec.TypeID

	if rec.ChangeID == nil {
		// Configuration-integrity fault: updates mode without a captured
		// cursor. Abort without mutating the record.
		p.logger.Error("no change cursor stored for type in updates mode", "type", typeID)
		return rec
	}

	start := time.Now()
	defer observeBatch(typeID, phaseUpdates, start)

	session, err := p.sink.Begin(ctx)
	if err != nil {
		p.logger.Error("failed to open publish session", "type", typeID, "error", err)
		observePublishError(typeID)
		return p.failTick(ctx, rec, err)
	}

	var lastGood *int64
	count := 0
	skipped := 0

	err = p.gateway.StreamChanges(ctx, typeID, p.cfg.UpdatesBatchSize, rec.ChangeID, func(change registry.ChangeEvent) error {
		raw, err := p.gateway.FetchObject(ctx, typeID, change.ObjectID)
		if err != nil {
			p.logger.Error("failed to fetch object for change, skipping",
				"type", typeID, "changeId", change.ChangeID, "objectId", change.ObjectID, "error", err)
			observeChangeSkipped(typeID)
			skipped++
			return nil
		}

		obj, err := translateObject(*raw)
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
		count++

		// Advance only while no earlier item in the page has been skipped,
		// so a skipped change is retried rather than dropped.
		if skipped == 0 {
			id := change.ChangeID
			lastGood = &id
		}
		return nil
	})
	if err != nil {
		p.logger.Error("update cycle failed", "type", typeID, "error", err)
		observePublishError(typeID)
		return p.failTick(ctx, rec, err)
	}

	if count == 0 && skipped == 0 {
		p.logger.Debug("no new changes", "type", typeID)
		return rec
	}

	if err := session.Flush(ctx); err != nil {
		p.logger.Error("update flush failed", "type", typeID, "count", count, "error", err)
		observePublishError(typeID)
		return p.failTick(ctx, rec, err)
	}

	observePublished(typeID, phaseUpdates, count)

	if lastGood == nil {
		// Every item up to the first success was skipped; nothing safe to
		// commit. The whole page is re-polled next cycle.
		p.logger.Warn("update cycle advanced no cursor", "type", typeID, "skipped", skipped)
		return rec
	}

	updated := rec.Clone()
	updated.ChangeID = lastGood
	updated.LastError = ""
	updated.UpdatedAt = time.Now().UTC()
	if err := p.store.Save(ctx, updated); err != nil {
		p.logger.Error("failed to persist update progress", "type", typeID, "error", err)
		return p.failTick(ctx, rec, err)
	}

	observeCursorCommit(typeID, phaseUpdates)
	p.logger.Info("updates processed", "type", typeID, "count", count, "skipped", skipped, "changeId", *lastGood)
	return updated
}
