package producer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deliverytest "roadmirror/internal/delivery/testing"
	"roadmirror/internal/producer/progress"
	"roadmirror/internal/registry"
)

const testType = 915

// mockGateway is an in-memory registry for producer tests.
type mockGateway struct {
	mu sync.Mutex

	objects []registry.RoadObject
	changes []registry.ChangeEvent
	latest  int64

	fetchErrs map[int64]error

	streamObjectsErr error
	streamChangesErr error
	latestErr        error

	// objectCalls records the afterID passed to each StreamObjects call.
	objectCalls []*int64

	// blockStream, when set, is closed-waited inside StreamObjects so tests
	// can hold a runner in flight.
	blockStream chan struct{}
	streaming   chan struct{}
}

func newMockGateway() *mockGateway {
	return &mockGateway{fetchErrs: make(map[int64]error)}
}

func (g *mockGateway) StreamObjects(ctx context.Context, typeID, limit int, afterID *int64, fn func(registry.RoadObject) error) error {
	g.mu.Lock()
	g.objectCalls = append(g.objectCalls, cloneID(afterID))
	objects := append([]registry.RoadObject(nil), g.objects...)
	block := g.blockStream
	streaming := g.streaming
	err := g.streamObjectsErr
	g.mu.Unlock()

	if streaming != nil {
		streaming <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return err
	}

	count := 0
	for _, obj := range objects {
		if afterID != nil && obj.ID <= *afterID {
			continue
		}
		if count >= limit {
			break
		}
		if err := fn(obj); err != nil {
			return err
		}
		count++
	}
	return nil
}

func (g *mockGateway) StreamChanges(ctx context.Context, typeID, limit int, afterID *int64, fn func(registry.ChangeEvent) error) error {
	g.mu.Lock()
	changes := append([]registry.ChangeEvent(nil), g.changes...)
	err := g.streamChangesErr
	g.mu.Unlock()

	if err != nil {
		return err
	}

	count := 0
	for _, change := range changes {
		if afterID != nil && change.ChangeID <= *afterID {
			continue
		}
		if count >= limit {
			break
		}
		if err := fn(change); err != nil {
			return err
		}
		count++
	}
	return nil
}

func (g *mockGateway) LatestChangeID(ctx context.Context, typeID int) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.latestErr != nil {
		return 0, g.latestErr
	}
	return g.latest, nil
}

func (g *mockGateway) FetchObject(ctx context.Context, typeID int, objectID int64) (*registry.RoadObject, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fetchErrs[objectID]; err != nil {
		return nil, err
	}
	for _, obj := range g.objects {
		if obj.ID == objectID {
			o := obj
			return &o, nil
		}
	}
	obj := rawObject(objectID)
	return &obj, nil
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// rawObject builds a translatable raw object.
func rawObject(id int64) registry.RoadObject {
	return registry.RoadObject{
		ID:     id,
		TypeID: testType,
		Properties: map[string]registry.PropertyValue{
			"1101": {Kind: registry.PropertyInteger, IntValue: 80},
		},
		Location: &registry.Location{
			Kind: registry.LocationLines,
			Lines: []registry.PlacementLine{
				{SequenceID: 42, StartPosition: 0.1, EndPosition: 0.9},
			},
		},
	}
}

func newTestProducer(t *testing.T) (*Producer, *mockGateway, *deliverytest.MockSink, *progress.MemStore) {
	t.Helper()
	gateway := newMockGateway()
	sink := deliverytest.NewMockSink()
	store := progress.NewMemStore()
	p := New(Config{BackfillBatchSize: 100, UpdatesBatchSize: 100}, gateway, sink, store, nil, slog.Default())
	return p, gateway, sink, store
}

func int64p(v int64) *int64 { return &v }

func TestOnTick_Uninitialized(t *testing.T) {
	p, gateway, sink, _ := newTestProducer(t)

	p.OnTick(context.Background(), testType)

	assert.Empty(t, gateway.objectCalls)
	assert.Empty(t, sink.Published())
}

func TestOnTick_StoreError(t *testing.T) {
	p, _, sink, store := newTestProducer(t)
	store.SetFindError(errors.New("store down"))

	p.OnTick(context.Background(), testType)

	assert.Empty(t, sink.Published())
}

func TestOnTick_DispatchesBackfill(t *testing.T) {
	p, gateway, sink, store := newTestProducer(t)
	gateway.objects = []registry.RoadObject{rawObject(10)}
	require.NoError(t, store.Save(context.Background(), &progress.Record{
		TypeID: testType, Mode: progress.ModeBackfill, ChangeID: int64p(500),
	}))

	p.OnTick(context.Background(), testType)

	require.Len(t, sink.Published(), 1)
	rec, err := store.Find(context.Background(), testType)
	require.NoError(t, err)
	require.NotNil(t, rec.LastProcessedID)
	assert.Equal(t, int64(10), *rec.LastProcessedID)
}

func TestOnTick_SingleFlight(t *testing.T) {
	p, gateway, sink, store := newTestProducer(t)
	gateway.objects = []registry.RoadObject{rawObject(10)}
	gateway.blockStream = make(chan struct{})
	gateway.streaming = make(chan struct{}, 2)
	require.NoError(t, store.Save(context.Background(), &progress.Record{
		TypeID: testType, Mode: progress.ModeBackfill, ChangeID: int64p(500),
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.OnTick(context.Background(), testType)
	}()

	// Wait until the first tick is inside the gateway call, then tick again.
	<-gateway.streaming
	p.OnTick(context.Background(), testType)

	close(gateway.blockStream)
	wg.Wait()

	// Exactly one runner executed.
	gateway.mu.Lock()
	calls := len(gateway.objectCalls)
	gateway.mu.Unlock()
	assert.Equal(t, 1, calls)
	assert.Len(t, sink.Published(), 1)
}

func TestOnTick_GuardReleasedAfterFailure(t *testing.T) {
	p, gateway, _, store := newTestProducer(t)
	gateway.streamObjectsErr = errors.New("registry unreachable")
	require.NoError(t, store.Save(context.Background(), &progress.Record{
		TypeID: testType, Mode: progress.ModeBackfill, ChangeID: int64p(500),
	}))

	p.OnTick(context.Background(), testType)

	gateway.mu.Lock()
	gateway.streamObjectsErr = nil
	gateway.objects = []registry.RoadObject{rawObject(10)}
	gateway.mu.Unlock()

	// The guard must be free again for the next tick.
	p.OnTick(context.Background(), testType)

	rec, err := store.Find(context.Background(), testType)
	require.NoError(t, err)
	require.NotNil(t, rec.LastProcessedID)
	assert.Equal(t, int64(10), *rec.LastProcessedID)
	assert.Empty(t, rec.LastError)
}

func TestStartBackfill_CapturesChangeCursor(t *testing.T) {
	p, gateway, _, store := newTestProducer(t)
	gateway.latest = 500

	require.NoError(t, p.StartBackfill(context.Background(), testType))

	rec, err := store.Find(context.Background(), testType)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, progress.ModeBackfill, rec.Mode)
	assert.Nil(t, rec.LastProcessedID)
	require.NotNil(t, rec.ChangeID)
	assert.Equal(t, int64(500), *rec.ChangeID)
	assert.NotNil(t, rec.BackfillStartedAt)
}

func TestStartBackfill_RejectsActiveBackfill(t *testing.T) {
	p, gateway, _, store := newTestProducer(t)
	gateway.latest = 999
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.Save(context.Background(), &progress.Record{
		TypeID:            testType,
		Mode:              progress.ModeBackfill,
		ChangeID:          int64p(500),
		BackfillStartedAt: &started,
	}))

	err := p.StartBackfill(context.Background(), testType)
	assert.ErrorIs(t, err, ErrBackfillInProgress)

	// Existing record untouched.
	rec, err := store.Find(context.Background(), testType)
	require.NoError(t, err)
	assert.Equal(t, int64(500), *rec.ChangeID)
	assert.Equal(t, started, *rec.BackfillStartedAt)
}

func TestStartBackfill_AllowedInUpdatesMode(t *testing.T) {
	p, gateway, _, store := newTestProducer(t)
	gateway.latest = 700
	require.NoError(t, store.Save(context.Background(), &progress.Record{
		TypeID: testType, Mode: progress.ModeUpdates, ChangeID: int64p(500),
	}))

	require.NoError(t, p.StartBackfill(context.Background(), testType))

	rec, err := store.Find(context.Background(), testType)
	require.NoError(t, err)
	assert.Equal(t, progress.ModeBackfill, rec.Mode)
	assert.Equal(t, int64(700), *rec.ChangeID)
}

func TestStartBackfill_GatewayError(t *testing.T) {
	p, gateway, _, store := newTestProducer(t)
	gateway.latestErr = errors.New("registry unreachable")

	err := p.StartBackfill(context.Background(), testType)
	assert.Error(t, err)

	rec, findErr := store.Find(context.Background(), testType)
	require.NoError(t, findErr)
	assert.Nil(t, rec)
}

func TestStopBackfill_DeletesRecord(t *testing.T) {
	p, _, _, store := newTestProducer(t)
	require.NoError(t, store.Save(context.Background(), &progress.Record{
		TypeID: testType, Mode: progress.ModeBackfill,
	}))

	require.NoError(t, p.StopBackfill(context.Background(), testType))

	rec, err := store.Find(context.Background(), testType)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestResetBackfill_CapturesFreshCursor(t *testing.T) {
	p, gateway, _, store := newTestProducer(t)
	gateway.latest = 800
	require.NoError(t, store.Save(context.Background(), &progress.Record{
		TypeID:          testType,
		Mode:            progress.ModeUpdates,
		LastProcessedID: int64p(12),
		ChangeID:        int64p(500),
	}))

	require.NoError(t, p.ResetBackfill(context.Background(), testType))

	rec, err := store.Find(context.Background(), testType)
	require.NoError(t, err)
	assert.Equal(t, progress.ModeBackfill, rec.Mode)
	assert.Nil(t, rec.LastProcessedID)
	assert.Equal(t, int64(800), *rec.ChangeID)
}

func TestGetStatus(t *testing.T) {
	p, _, _, store := newTestProducer(t)

	rec, err := p.GetStatus(context.Background(), testType)
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, store.Save(context.Background(), &progress.Record{
		TypeID: testType, Mode: progress.ModeUpdates, ChangeID: int64p(500),
	}))

	rec, err = p.GetStatus(context.Background(), testType)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, progress.ModeUpdates, rec.Mode)
}
