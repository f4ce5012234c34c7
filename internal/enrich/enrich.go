// Package enrich attaches road-network geometry to translated road objects.
// Enrichment is a best-effort side lookup: a failed or empty lookup leaves
// the object unchanged and never fails the enclosing batch.
package enrich

import (
	"context"
	"log/slog"

	"roadmirror/internal/events"
	"roadmirror/internal/registry"
)

// LinkFetcher is the registry access enrichment needs.
// *registry.Client satisfies it.
type LinkFetcher interface {
	FetchLinkSequences(ctx context.Context, ids []int64) ([]registry.LinkSequence, error)
}

// Enricher resolves placement sequence ids to WKT geometries.
type Enricher struct {
	fetcher LinkFetcher
	logger  *slog.Logger
}

// New creates an Enricher.
func New(fetcher LinkFetcher, logger *slog.Logger) *Enricher {
	return &Enricher{
		fetcher: fetcher,
		logger:  logger.With("component", "enrich"),
	}
}

// Enrich returns obj with geometry strings for its placements attached.
// On lookup failure the original object is returned unchanged.
func (e *Enricher) Enrich(ctx context.Context, obj *events.RoadObject) *events.RoadObject {
	if obj == nil || len(obj.Placements) == 0 {
		return obj
	}

	ids := make([]int64, 0, len(obj.Placements))
	seen := make(map[int64]bool, len(obj.Placements))
	for _, placement := range obj.Placements {
		if !seen[placement.SequenceID] {
			seen[placement.SequenceID] = true
			ids = append(ids, placement.SequenceID)
		}
	}

	sequences, err := e.fetcher.FetchLinkSequences(ctx, ids)
	if err != nil {
		e.logger.Warn("failed to enrich object with geometry", "objectId", obj.ID, "error", err)
		return obj
	}

	var geometries []string
	for _, seq := range sequences {
		for _, link := range seq.Links {
			if link.Geometry != nil && link.Geometry.WKT != "" {
				geometries = append(geometries, link.Geometry.WKT)
			}
		}
	}
	if len(geometries) == 0 {
		e.logger.Debug("no geometries found for object", "objectId", obj.ID)
		return obj
	}

	enriched := *obj
	enriched.Geometries = geometries
	e.logger.Debug("enriched object", "objectId", obj.ID, "geometries", len(geometries))
	return &enriched
}
