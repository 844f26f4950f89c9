// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

// Package podium assembles the process peers: the api peer serving the
// public and internal HTTP planes, and the worker peer projecting the event
// stream.
package podium

import (
	"context"
	"errors"
	"net"

	"github.com/nats-io/nats.go"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/podiumhq/podium/accounting"
	"github.com/podiumhq/podium/console"
	"github.com/podiumhq/podium/console/consoledb"
	"github.com/podiumhq/podium/events"
	"github.com/podiumhq/podium/gateway"
	"github.com/podiumhq/podium/gateway/ratelimit"
	"github.com/podiumhq/podium/scoring"
	"github.com/podiumhq/podium/scoring/scoredb"
	"github.com/podiumhq/podium/worker"
)

// Error is the default podium errs class.
var Error = errs.Class("podium")

// Peer is the api process: control plane, scoring hot path and gateway.
//
// architecture: Peer
type Peer struct {
	Log    *zap.Logger
	Config Config

	DB    *consoledb.DB
	Cache *scoredb.Client
	NATS  *nats.Conn

	Events struct {
		Publisher *events.JetStreamPublisher
	}

	Console struct {
		Service *console.Service
	}

	Accounting struct {
		Service *accounting.Service
	}

	Scoring struct {
		Engine   *scoring.Engine
		Resetter *scoring.Resetter
	}

	Gateway struct {
		Listener  net.Listener
		AuthCache *gateway.AuthCache
		Limiter   *ratelimit.Limiter
		Usage     *gateway.UsageTracker
		Server    *gateway.Server
	}
}

// New constructs the api peer, dialing all dependencies in order: database,
// cache, stream, then the services on top.
func New(ctx context.Context, log *zap.Logger, config Config) (peer *Peer, err error) {
	if err := config.Verify(); err != nil {
		return nil, err
	}

	peer = &Peer{Log: log, Config: config}
	defer func() {
		if err != nil {
			_ = peer.Close()
		}
	}()

	{ // setup databases
		peer.DB, err = consoledb.Open(ctx, log.Named("consoledb"), config.DatabaseURL)
		if err != nil {
			return nil, Error.Wrap(err)
		}

		peer.Cache, err = scoredb.Dial(ctx, log.Named("scoredb"), config.CacheURL)
		if err != nil {
			return nil, Error.Wrap(err)
		}
	}

	{ // setup event stream
		peer.NATS, err = events.Connect(config.StreamURL)
		if err != nil {
			return nil, Error.Wrap(err)
		}

		peer.Events.Publisher, err = events.NewJetStreamPublisher(ctx,
			log.Named("events"), peer.NATS, config.Publisher)
		if err != nil {
			return nil, Error.Wrap(err)
		}
	}

	{ // setup gateway infrastructure on the shared cache connection
		peer.Gateway.AuthCache = gateway.NewAuthCache(peer.Cache.Redis(), config.AuthCacheTTL)
		peer.Gateway.Limiter = ratelimit.NewLimiter(log.Named("ratelimit"),
			peer.Cache.Redis(), config.RateLimit)
		peer.Gateway.Usage = gateway.NewUsageTracker(log.Named("usage"),
			peer.Cache.Redis(), config.UsageRetention)
	}

	{ // setup services
		peer.Console.Service, err = console.NewService(log.Named("console"),
			peer.DB, peer.Events.Publisher, peer.Gateway.AuthCache, console.DefaultKeyHashCost)
		if err != nil {
			return nil, Error.Wrap(err)
		}

		peer.Accounting.Service = accounting.NewService(log.Named("accounting"),
			peer.DB.Usage(), peer.DB)

		peer.Scoring.Engine = scoring.NewEngine(log.Named("scoring"),
			peer.Cache, peer.Events.Publisher)
		peer.Scoring.Resetter = scoring.NewResetter(log.Named("resetter"),
			peer.DB, peer.Cache, peer.Events.Publisher, config.Resetter)
	}

	{ // setup gateway server
		peer.Gateway.Listener, err = net.Listen("tcp", config.Address)
		if err != nil {
			return nil, Error.Wrap(err)
		}

		gatewayConfig := gateway.Config{
			Address:        config.Address,
			InternalSecret: config.InternalSecret,
			AuthCacheTTL:   config.AuthCacheTTL,
			RequestTimeout: config.RequestTimeout,
			UsageRetention: config.UsageRetention,
			RateLimit:      config.RateLimit,
		}
		peer.Gateway.Server = gateway.NewServer(log.Named("gateway"), gatewayConfig,
			peer.Gateway.Listener,
			peer.Console.Service,
			peer.Scoring.Engine,
			peer.Accounting.Service,
			peer.Gateway.Limiter,
			peer.Gateway.AuthCache,
			peer.Gateway.Usage,
			map[string]gateway.Pinger{
				"database": peer.DB,
				"cache":    peer.Cache,
				"stream":   natsPinger{peer.NATS},
			})
	}

	return peer, nil
}

// Run starts the peer's long-running tasks until the context is canceled or
// one of them fails.
func (peer *Peer) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		peer.Log.Info("gateway listening",
			zap.String("address", peer.Gateway.Listener.Addr().String()))
		return peer.Gateway.Server.Run(ctx)
	})
	if peer.Config.Resetter.Enabled {
		group.Go(func() error {
			err := peer.Scoring.Resetter.Run(ctx)
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			return err
		})
	}

	return group.Wait()
}

// Close shuts the peer down in reverse construction order.
func (peer *Peer) Close() error {
	var group errs.Group

	if peer.Gateway.Server != nil {
		group.Add(peer.Gateway.Server.Close())
	}
	if peer.Events.Publisher != nil {
		group.Add(peer.Events.Publisher.Close())
	}
	if peer.NATS != nil {
		peer.NATS.Close()
	}
	if peer.Cache != nil {
		group.Add(peer.Cache.Close())
	}
	if peer.DB != nil {
		group.Add(peer.DB.Close())
	}

	return Error.Wrap(group.Err())
}

// WorkerPeer is the projection process consuming the durable stream.
//
// architecture: Peer
type WorkerPeer struct {
	Log    *zap.Logger
	Config Config

	DB    *consoledb.DB
	Cache *scoredb.Client
	NATS  *nats.Conn

	Worker struct {
		Service *worker.Service
	}
}

// NewWorker constructs the worker peer. The stream must already exist; the
// api peer creates it on startup.
func NewWorker(ctx context.Context, log *zap.Logger, config Config) (peer *WorkerPeer, err error) {
	if err := config.Verify(); err != nil {
		return nil, err
	}

	peer = &WorkerPeer{Log: log, Config: config}
	defer func() {
		if err != nil {
			_ = peer.Close()
		}
	}()

	peer.DB, err = consoledb.Open(ctx, log.Named("consoledb"), config.DatabaseURL)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	peer.Cache, err = scoredb.Dial(ctx, log.Named("scoredb"), config.CacheURL)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	peer.NATS, err = events.Connect(config.StreamURL)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	peer.Worker.Service, err = worker.NewService(ctx, log.Named("worker"),
		peer.NATS, config.Worker, peer.DB.ScoreEvents(), peer.Cache)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	return peer, nil
}

// Run consumes the stream until the context is canceled.
func (peer *WorkerPeer) Run(ctx context.Context) error {
	return peer.Worker.Service.Run(ctx)
}

// Close shuts the worker peer down in reverse construction order.
func (peer *WorkerPeer) Close() error {
	var group errs.Group

	if peer.Worker.Service != nil {
		group.Add(peer.Worker.Service.Close())
	}
	if peer.NATS != nil {
		peer.NATS.Close()
	}
	if peer.Cache != nil {
		group.Add(peer.Cache.Close())
	}
	if peer.DB != nil {
		group.Add(peer.DB.Close())
	}

	return Error.Wrap(group.Err())
}

// natsPinger adapts the NATS connection to the health endpoint.
type natsPinger struct{ conn *nats.Conn }

func (p natsPinger) Ping(ctx context.Context) error {
	if !p.conn.IsConnected() {
		return Error.New("nats disconnected")
	}
	return nil
}
