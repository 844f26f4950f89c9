// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

// Package scoredb wraps the sorted-set store. It owns the key layout derived
// from the leaderboard fingerprint and exposes the per-key atomic commands
// the scoring engine builds on.
package scoredb

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var (
	mon = monkit.Package()

	// Error is the default scoredb errs class.
	Error = errs.Class("scoredb")
)

// Client is a thin wrapper over the shared redis connection.
type Client struct {
	log *zap.Logger
	db  *redis.Client
}

// Dial parses a redis URL, connects and verifies the connection.
func Dial(ctx context.Context, log *zap.Logger, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	db := redis.NewClient(opts)
	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, Error.Wrap(err)
	}
	return &Client{log: log, db: db}, nil
}

// NewClientFrom wraps an existing redis client, used by tests and by
// components sharing the process-wide connection.
func NewClientFrom(log *zap.Logger, db *redis.Client) *Client {
	return &Client{log: log, db: db}
}

// Redis exposes the underlying connection so the gateway's cache and rate
// limiter share the pool.
func (client *Client) Redis() *redis.Client { return client.db }

// Ping verifies the connection, used by the health endpoint.
func (client *Client) Ping(ctx context.Context) error { return Error.Wrap(client.db.Ping(ctx).Err()) }

// Close closes the underlying connection.
func (client *Client) Close() error { return Error.Wrap(client.db.Close()) }

// Entry is one member of a score set.
type Entry struct {
	Member string
	Score  float64
}

// Add unconditionally sets the member's score.
func (client *Client) Add(ctx context.Context, fp Fingerprint, member string, score float64) (err error) {
	defer mon.Task()(&ctx)(&err)
	return Error.Wrap(client.db.ZAdd(ctx, fp.Key(), redis.Z{Member: member, Score: score}).Err())
}

// IncrBy atomically adds delta to the member's score, creating it at delta
// when absent, and returns the new score.
func (client *Client) IncrBy(ctx context.Context, fp Fingerprint, member string, delta float64) (_ float64, err error) {
	defer mon.Task()(&ctx)(&err)
	score, err := client.db.ZIncrBy(ctx, fp.Key(), delta, member).Result()
	return score, Error.Wrap(err)
}

// Score returns the member's score, with ok=false when the member is absent.
func (client *Client) Score(ctx context.Context, fp Fingerprint, member string) (_ float64, ok bool, err error) {
	defer mon.Task()(&ctx)(&err)
	score, err := client.db.ZScore(ctx, fp.Key(), member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	return score, err == nil, Error.Wrap(err)
}

// Rank returns the member's 0-based rank in the given direction, with
// ok=false when the member is absent.
func (client *Client) Rank(ctx context.Context, fp Fingerprint, member string, desc bool) (_ int64, ok bool, err error) {
	defer mon.Task()(&ctx)(&err)

	var rank int64
	if desc {
		rank, err = client.db.ZRevRank(ctx, fp.Key(), member).Result()
	} else {
		rank, err = client.db.ZRank(ctx, fp.Key(), member).Result()
	}
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	return rank, err == nil, Error.Wrap(err)
}

// Range returns entries between the 0-based indices start and stop
// inclusive, ordered in the given direction.
func (client *Client) Range(ctx context.Context, fp Fingerprint, start, stop int64, desc bool) (_ []Entry, err error) {
	defer mon.Task()(&ctx)(&err)

	var raw []redis.Z
	if desc {
		raw, err = client.db.ZRevRangeWithScores(ctx, fp.Key(), start, stop).Result()
	} else {
		raw, err = client.db.ZRangeWithScores(ctx, fp.Key(), start, stop).Result()
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, z := range raw {
		member, _ := z.Member.(string)
		entries = append(entries, Entry{Member: member, Score: z.Score})
	}
	return entries, nil
}

// Card returns the number of members in the score set.
func (client *Client) Card(ctx context.Context, fp Fingerprint) (_ int64, err error) {
	defer mon.Task()(&ctx)(&err)
	n, err := client.db.ZCard(ctx, fp.Key()).Result()
	return n, Error.Wrap(err)
}

// Expire (re)arms the score set's TTL. Only the score set expires; the
// metadata hash persists without TTL.
func (client *Client) Expire(ctx context.Context, fp Fingerprint, ttl time.Duration) (err error) {
	defer mon.Task()(&ctx)(&err)
	return Error.Wrap(client.db.Expire(ctx, fp.Key(), ttl).Err())
}

// Purge deletes the score set and the metadata hash.
func (client *Client) Purge(ctx context.Context, fp Fingerprint) (err error) {
	defer mon.Task()(&ctx)(&err)
	return Error.Wrap(client.db.Del(ctx, fp.Key(), fp.MetaKey()).Err())
}

// Metadata is the leaderboard configuration colocated with the score set,
// written by the worker on leaderboard.created.
type Metadata struct {
	Name       string
	ProjectID  string
	TenantID   string
	CreatedAt  time.Time
	TTLDays    int
	UpdateMode string
	SortOrder  string
}

// GetMetadata reads the metadata hash; it returns nil when the hash is
// absent so callers can apply defaults.
func (client *Client) GetMetadata(ctx context.Context, fp Fingerprint) (_ *Metadata, err error) {
	defer mon.Task()(&ctx)(&err)

	fields, err := client.db.HGetAll(ctx, fp.MetaKey()).Result()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	meta := &Metadata{
		Name:       fields["name"],
		ProjectID:  fields["projectId"],
		TenantID:   fields["tenantId"],
		UpdateMode: fields["updateMode"],
		SortOrder:  fields["sortOrder"],
	}
	if raw := fields["createdAt"]; raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			meta.CreatedAt = time.Unix(unix, 0).UTC()
		}
	}
	if raw := fields["ttlDays"]; raw != "" {
		if days, err := strconv.Atoi(raw); err == nil {
			meta.TTLDays = days
		}
	}
	return meta, nil
}

// PutMetadata upserts the metadata hash. The hash never carries a TTL.
func (client *Client) PutMetadata(ctx context.Context, fp Fingerprint, meta Metadata) (err error) {
	defer mon.Task()(&ctx)(&err)

	fields := map[string]any{
		"name":       meta.Name,
		"projectId":  meta.ProjectID,
		"tenantId":   meta.TenantID,
		"createdAt":  strconv.FormatInt(meta.CreatedAt.Unix(), 10),
		"ttlDays":    strconv.Itoa(meta.TTLDays),
		"updateMode": meta.UpdateMode,
		"sortOrder":  meta.SortOrder,
	}
	return Error.Wrap(client.db.HSet(ctx, fp.MetaKey(), fields).Err())
}
