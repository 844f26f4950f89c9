// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var (
	mon = monkit.Package()

	// Error is the default events errs class.
	Error = errs.Class("events")
)

// PublisherConfig configures the JetStream publisher.
type PublisherConfig struct {
	// QueueSize bounds the background publish queue.
	QueueSize int
	// PublishTimeout is the per-publish deadline, independent of the
	// originating request context.
	PublishTimeout time.Duration
	// DrainTimeout bounds how long Close waits for the queue to empty.
	DrainTimeout time.Duration
}

// DefaultPublisherConfig returns the defaults used by the peer.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		QueueSize:      4096,
		PublishTimeout: 2 * time.Second,
		DrainTimeout:   5 * time.Second,
	}
}

type envelope struct {
	subject string
	payload []byte
}

// JetStreamPublisher publishes events to a JetStream stream from a single
// background task so publication survives early client disconnects and
// never blocks the hot path.
//
// architecture: Event Stream
type JetStreamPublisher struct {
	log *zap.Logger
	js  jetstream.JetStream
	cfg PublisherConfig

	queue  chan envelope
	done   chan struct{}
	closed sync.Once
}

// Connect dials NATS with automatic reconnect, the single shared connection
// owned by the process.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return conn, nil
}

// NewJetStreamPublisher ensures the stream exists and starts the background
// publish task.
func NewJetStreamPublisher(ctx context.Context, log *zap.Logger, conn *nats.Conn, cfg PublisherConfig) (*JetStreamPublisher, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  StreamSubjects,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	if cfg.QueueSize <= 0 {
		cfg = DefaultPublisherConfig()
	}

	publisher := &JetStreamPublisher{
		log:   log,
		js:    js,
		cfg:   cfg,
		queue: make(chan envelope, cfg.QueueSize),
		done:  make(chan struct{}),
	}
	go publisher.run()
	return publisher, nil
}

// ScoreUpdated implements Publisher.
func (p *JetStreamPublisher) ScoreUpdated(ctx context.Context, event ScoreUpdated) {
	p.enqueue(SubjectScoreUpdated, event)
}

// LeaderboardCreated implements Publisher.
func (p *JetStreamPublisher) LeaderboardCreated(ctx context.Context, event LeaderboardCreated) {
	p.enqueue(SubjectLeaderboardCreated, event)
}

// LeaderboardDeleted implements Publisher.
func (p *JetStreamPublisher) LeaderboardDeleted(ctx context.Context, event LeaderboardDeleted) {
	p.enqueue(SubjectLeaderboardDeleted, event)
}

func (p *JetStreamPublisher) enqueue(subject string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error("event marshal failed", zap.String("subject", subject), zap.Error(err))
		return
	}

	select {
	case p.queue <- envelope{subject: subject, payload: payload}:
	default:
		// Dropping here trades durability for hot-path latency; the
		// sorted set stays authoritative for ranking.
		p.log.Error("event queue full, dropping event", zap.String("subject", subject))
		mon.Counter("event_dropped").Inc(1)
	}
}

func (p *JetStreamPublisher) run() {
	defer close(p.done)
	for env := range p.queue {
		p.publish(env)
	}
}

func (p *JetStreamPublisher) publish(env envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PublishTimeout)
	defer cancel()

	_, err := p.js.Publish(ctx, env.subject, env.payload)
	if err != nil {
		p.log.Error("event publish failed",
			zap.String("subject", env.subject),
			zap.Error(err))
		mon.Counter("event_publish_failed").Inc(1)
	}
}

// Close stops accepting events and waits for the queue to drain within the
// configured grace period.
func (p *JetStreamPublisher) Close() error {
	p.closed.Do(func() { close(p.queue) })
	select {
	case <-p.done:
		return nil
	case <-time.After(p.cfg.DrainTimeout):
		return Error.New("publisher drain timed out")
	}
}
