package enrich

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadmirror/internal/events"
	"roadmirror/internal/registry"
)

type mockFetcher struct {
	sequences []registry.LinkSequence
	err       error
	gotIDs    []int64
}

func (m *mockFetcher) FetchLinkSequences(ctx context.Context, ids []int64) ([]registry.LinkSequence, error) {
	m.gotIDs = ids
	return m.sequences, m.err
}

func object(sequenceIDs ...int64) *events.RoadObject {
	obj := &events.RoadObject{ID: 95001, Type: 915}
	for _, id := range sequenceIDs {
		obj.Placements = append(obj.Placements, events.Placement{SequenceID: id})
	}
	return obj
}

func sequence(id int64, wkts ...string) registry.LinkSequence {
	seq := registry.LinkSequence{SequenceID: id}
	for _, wkt := range wkts {
		seq.Links = append(seq.Links, registry.RoadLink{Geometry: &registry.Geometry{WKT: wkt, SRID: 5973}})
	}
	return seq
}

func TestEnrich_AttachesGeometries(t *testing.T) {
	fetcher := &mockFetcher{sequences: []registry.LinkSequence{
		sequence(42, "LINESTRING(1 2,3 4)"),
		sequence(43, "LINESTRING(5 6,7 8)", "LINESTRING(9 10,11 12)"),
	}}
	e := New(fetcher, slog.Default())

	obj := object(42, 43)
	enriched := e.Enrich(context.Background(), obj)

	assert.Equal(t, []int64{42, 43}, fetcher.gotIDs)
	assert.Equal(t, []string{
		"LINESTRING(1 2,3 4)",
		"LINESTRING(5 6,7 8)",
		"LINESTRING(9 10,11 12)",
	}, enriched.Geometries)
	// The input object is not mutated.
	assert.Nil(t, obj.Geometries)
}

func TestEnrich_DeduplicatesSequenceIDs(t *testing.T) {
	fetcher := &mockFetcher{sequences: []registry.LinkSequence{sequence(42, "LINESTRING(1 2,3 4)")}}
	e := New(fetcher, slog.Default())

	e.Enrich(context.Background(), object(42, 42, 42))

	assert.Equal(t, []int64{42}, fetcher.gotIDs)
}

func TestEnrich_FetchFailureReturnsObjectUnchanged(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("registry unreachable")}
	e := New(fetcher, slog.Default())

	obj := object(42)
	enriched := e.Enrich(context.Background(), obj)

	require.Same(t, obj, enriched)
	assert.Nil(t, enriched.Geometries)
}

func TestEnrich_NoGeometriesReturnsObjectUnchanged(t *testing.T) {
	fetcher := &mockFetcher{sequences: []registry.LinkSequence{
		{SequenceID: 42, Links: []registry.RoadLink{{Geometry: nil}, {Geometry: &registry.Geometry{WKT: ""}}}},
	}}
	e := New(fetcher, slog.Default())

	obj := object(42)
	assert.Same(t, obj, e.Enrich(context.Background(), obj))
}

func TestEnrich_NoPlacementsSkipsLookup(t *testing.T) {
	fetcher := &mockFetcher{}
	e := New(fetcher, slog.Default())

	obj := &events.RoadObject{ID: 1}
	assert.Same(t, obj, e.Enrich(context.Background(), obj))
	assert.Nil(t, fetcher.gotIDs)

	assert.Nil(t, e.Enrich(context.Background(), nil))
}
