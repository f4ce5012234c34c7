// Package testing provides mock implementations of delivery interfaces.
package testing

import (
	"context"
	"sync"

	"roadmirror/internal/delivery"
	"roadmirror/internal/events"
)

// Published records one delta handed to a mock session.
type Published struct {
	TypeID   int
	ObjectID int64
	Delta    *events.Delta
}

// MockSink implements delivery.Sink. All sessions share the sink's recorded
// state, so tests can assert across batches.
type MockSink struct {
	mu sync.Mutex

	published []Published // confirmed by a successful Flush
	pending   []Published // published but not yet flushed

	beginErr   error
	publishErr error
	flushErr   error
	flushCount int
	closed     bool
}

var _ delivery.Sink = (*MockSink)(nil)

// NewMockSink creates an empty MockSink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// Begin opens a mock session.
func (m *MockSink) Begin(ctx context.Context) (delivery.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return &mockSession{sink: m}, nil
}

// Close marks the sink closed.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Published returns deltas confirmed by a successful Flush.
func (m *MockSink) Published() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Published(nil), m.published...)
}

// Pending returns deltas published in sessions that have not flushed.
func (m *MockSink) Pending() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Published(nil), m.pending...)
}

// FlushCount returns the number of successful flushes.
func (m *MockSink) FlushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushCount
}

// SetBeginError makes Begin fail.
func (m *MockSink) SetBeginError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beginErr = err
}

// SetPublishError makes Publish fail.
func (m *MockSink) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErr = err
}

// SetFlushError makes Flush fail; published items stay pending, matching the
// broker contract that a failed flush confirms nothing.
func (m *MockSink) SetFlushError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushErr = err
}

// Reset clears all recorded state and injected errors.
func (m *MockSink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
	m.pending = nil
	m.beginErr = nil
	m.publishErr = nil
	m.flushErr = nil
	m.flushCount = 0
	m.closed = false
}

type mockSession struct {
	sink  *MockSink
	batch []Published
}

func (s *mockSession) Publish(ctx context.Context, typeID int, objectID int64, delta *events.Delta) error {
	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()
	if s.sink.publishErr != nil {
		return s.sink.publishErr
	}
	p := Published{TypeID: typeID, ObjectID: objectID, Delta: delta}
	s.batch = append(s.batch, p)
	s.sink.pending = append(s.sink.pending, p)
	return nil
}

func (s *mockSession) Flush(ctx context.Context) error {
	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()
	if s.sink.flushErr != nil {
		return s.sink.flushErr
	}
	s.sink.published = append(s.sink.published, s.batch...)
	s.sink.pending = s.sink.pending[:len(s.sink.pending)-len(s.batch)]
	s.batch = nil
	s.sink.flushCount++
	return nil
}
