package ports

import (
	"context"
	"time"
)

// StateStore is the abstract key/value interface the ingestion pipeline,
// detectors, and API layer depend on. It is deliberately narrow: only the
// primitives the pipeline actually exercises (hashes, sets, lists, pub/sub,
// pipelining, counters) rather than a general client wrapper. A Valkey-backed
// implementation and an in-memory fallback both satisfy it; callers never
// know which one they're talking to.
//
// Semantics implementations must uphold:
//   - Pipeline operations are committed in the order they were queued.
//   - Publish delivery is best-effort and at-most-once per subscriber; a
//     subscriber that is slow or absent simply misses the message.
//   - TTLs are a soft expiry at second precision.
type StateStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	HashSet(ctx context.Context, key string, fields map[string]string) error
	HashGetAll(ctx context.Context, key string) (map[string]string, error)

	SetAdd(ctx context.Context, key string, members ...string) error
	SetDelete(ctx context.Context, key string) error
	SetMembers(ctx context.Context, key string) ([]string, error)

	ListPushLeft(ctx context.Context, key string, value string) error
	ListTrim(ctx context.Context, key string, start, stop int) error
	ListRange(ctx context.Context, key string, start, stop int) ([]string, error)
	ListSetIndex(ctx context.Context, key string, index int, value string) error

	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	// Pipeline returns a batch that queues operations and commits them
	// together, in order, when Exec is called.
	Pipeline() Pipeline
}

// Pipeline batches writes for the atomic-write step of a poll tick and
// similar multi-key writes (crowd report fan-out, intervention storage).
type Pipeline interface {
	HashSet(key string, fields map[string]string)
	Expire(key string, ttl time.Duration)
	Delete(key string)
	SetAdd(key string, members ...string)
	SetWithTTL(key string, value []byte, ttl time.Duration)
	ListPushLeft(key string, value string)
	ListTrim(key string, start, stop int)
	Incr(key string)
	Exec(ctx context.Context) error
}

// Subscription is a live pub/sub subscription to a single channel.
type Subscription interface {
	// Receive blocks until a message arrives, timeout elapses (ok=false,
	// err=nil), or the subscription is closed/broken (err != nil). A 1s
	// timeout lets callers poll for disconnects without blocking forever,
	// per the WS fanout's receive loop.
	Receive(ctx context.Context, timeout time.Duration) (message []byte, ok bool, err error)
	Close() error
}
