// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

// Package worker consumes the durable event stream and projects it into the
// relational score-event log and the sorted-set metadata. Delivery is
// at-least-once; every handler is idempotent so redelivery is harmless.
package worker

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/podiumhq/podium/accounting"
	"github.com/podiumhq/podium/events"
	"github.com/podiumhq/podium/scoring/scoredb"
)

var (
	mon = monkit.Package()

	// Error is the default worker errs class.
	Error = errs.Class("worker")
)

// Config configures the projection worker.
type Config struct {
	// ConsumerName is the durable consumer name; restarts resume from the
	// last acknowledged message.
	ConsumerName string
	// AckWait is how long the server waits for an ack before redelivering.
	AckWait time.Duration
	// MaxDeliver bounds redelivery of a poisoned message.
	MaxDeliver int
}

// DefaultConfig returns the worker defaults.
func DefaultConfig() Config {
	return Config{
		ConsumerName: "podium-worker",
		AckWait:      30 * time.Second,
		MaxDeliver:   10,
	}
}

// Service runs the durable consumer and dispatches messages by subject.
type Service struct {
	log    *zap.Logger
	config Config

	consumer jetstream.Consumer
	handlers *Handlers
}

// NewService ensures the durable consumer exists on the stream and binds the
// projection handlers.
func NewService(ctx context.Context, log *zap.Logger, conn *nats.Conn, config Config,
	scoreEvents accounting.ScoreEvents, sets *scoredb.Client) (*Service, error) {

	if config.ConsumerName == "" {
		config = DefaultConfig()
	}

	js, err := jetstream.New(conn)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	stream, err := js.Stream(ctx, events.StreamName)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       config.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       config.AckWait,
		MaxDeliver:    config.MaxDeliver,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	return &Service{
		log:      log,
		config:   config,
		consumer: consumer,
		handlers: NewHandlers(log, scoreEvents, sets),
	}, nil
}

// Run consumes until the context is canceled. Handler failures nak the
// message so the server redelivers it.
func (service *Service) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	consume, err := service.consumer.Consume(func(msg jetstream.Msg) {
		if err := service.dispatch(ctx, msg); err != nil {
			service.log.Error("event handling failed",
				zap.String("subject", msg.Subject()),
				zap.Error(err))
			if err := msg.Nak(); err != nil {
				service.log.Error("nak failed", zap.Error(err))
			}
			return
		}
		if err := msg.Ack(); err != nil {
			service.log.Error("ack failed", zap.Error(err))
		}
	})
	if err != nil {
		return Error.Wrap(err)
	}
	defer consume.Stop()

	<-ctx.Done()
	return nil
}

func (service *Service) dispatch(ctx context.Context, msg jetstream.Msg) error {
	switch msg.Subject() {
	case events.SubjectScoreUpdated:
		return service.handlers.ScoreUpdated(ctx, msg.Data())
	case events.SubjectLeaderboardCreated:
		return service.handlers.LeaderboardCreated(ctx, msg.Data())
	case events.SubjectLeaderboardDeleted:
		return service.handlers.LeaderboardDeleted(ctx, msg.Data())
	default:
		// Unknown subjects under the bound space are acked and skipped so a
		// newer publisher cannot wedge an older worker.
		service.log.Warn("unknown subject, skipping", zap.String("subject", msg.Subject()))
		return nil
	}
}

// Close releases worker resources; the consumer itself is durable and stays
// on the server.
func (service *Service) Close() error { return nil }
