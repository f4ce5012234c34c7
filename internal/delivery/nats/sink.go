// Package nats implements the delivery sink on NATS JetStream. Publishes are
// issued with PublishMsgAsync and a session's Flush waits on every returned
// ack future, so the commit-after-flush contract is enforced structurally.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"roadmirror/internal/delivery"
	"roadmirror/internal/events"
)

// KeyHeader carries the partition key (object id) on published messages.
const KeyHeader = "Roadmirror-Key"

// Sink is a JetStream-backed delivery.Sink.
type Sink struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	opts   delivery.Options
	logger *slog.Logger
}

var _ delivery.Sink = (*Sink)(nil)

// NewSink connects to NATS, initializes JetStream and provisions the road
// objects stream.
func NewSink(ctx context.Context, url string, opts delivery.Options, logger *slog.Logger) (*Sink, error) {
	if opts.AckTimeout == 0 {
		opts.AckTimeout = 30 * time.Second
	}

	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     delivery.StreamName,
		Subjects: []string{delivery.SubjectPrefix + ".>"},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", delivery.StreamName, err)
	}

	logger.Info("Connected to NATS", "url", url, "stream", delivery.StreamName)
	return &Sink{nc: nc, js: js, opts: opts, logger: logger.With("component", "delivery")}, nil
}

// Begin opens a new publish session.
func (s *Sink) Begin(ctx context.Context) (delivery.Session, error) {
	return &session{sink: s}, nil
}

// Close closes the NATS connection.
func (s *Sink) Close() error {
	if s.nc != nil {
		s.logger.Info("Closing NATS connection...")
		s.nc.Close()
		s.nc = nil
		s.js = nil
	}
	return nil
}

// session tracks the ack futures of one flush scope.
type session struct {
	sink    *Sink
	futures []jetstream.PubAckFuture
}

// Publish enqueues a delta. The broker acknowledgment is collected by Flush.
func (p *session) Publish(ctx context.Context, typeID int, objectID int64, delta *events.Delta) error {
	start := time.Now()
	subject := delivery.Subject(typeID)

	data, err := delta.Marshal()
	if err != nil {
		return fmt.Errorf("marshal delta for object %d: %w", objectID, err)
	}

	msg := nats.NewMsg(subject)
	msg.Header.Set(KeyHeader, strconv.FormatInt(objectID, 10))
	msg.Data = data

	future, err := p.sink.js.PublishMsgAsync(msg)

	if p.sink.opts.OnPublish != nil {
		p.sink.opts.OnPublish(subject, err, time.Since(start))
	}

	if err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	p.futures = append(p.futures, future)
	return nil
}

// Flush waits for every outstanding acknowledgment. The first failure fails
// the whole session.
func (p *session) Flush(ctx context.Context) error {
	timeout := time.NewTimer(p.sink.opts.AckTimeout)
	defer timeout.Stop()

	for i, future := range p.futures {
		select {
		case <-future.Ok():
		case err := <-future.Err():
			return fmt.Errorf("publication %d of %d not acknowledged: %w", i+1, len(p.futures), err)
		case <-timeout.C:
			return fmt.Errorf("timed out awaiting acknowledgment %d of %d", i+1, len(p.futures))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.futures = nil
	return nil
}
