// Package memstore is the in-memory ports.StateStore fallback used when a
// Valkey server is unreachable at startup. It implements the same
// semantics the Valkey-backed store does — including best-effort,
// at-most-once publish — except its publish/subscribe pair is deliberately
// a no-op: there is no process boundary to fan out across, and more
// importantly the WS fanout must observe the absence of pub/sub traffic
// and degrade to polling, exactly as it would against a real server whose
// pub/sub was failing.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/transitiq/nervecentre/internal/core/ports"
)

type entry struct {
	value []byte
}

// Store is a mutex-guarded, single-process implementation of ports.StateStore.
// TTLs are tracked in one expireAt map shared across all key types (strings,
// hashes, sets, lists) so Expire behaves the same way regardless of which
// shape the key holds — the vehicle hashes and the intervention list both
// need to actually expire, not just string values.
type Store struct {
	mu       sync.Mutex
	strings  map[string]entry
	hashes   map[string]map[string]string
	sets     map[string]map[string]struct{}
	lists    map[string][]string
	counts   map[string]int64
	expireAt map[string]time.Time // zero/absent means no expiry
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		strings:  map[string]entry{},
		hashes:   map[string]map[string]string{},
		sets:     map[string]map[string]struct{}{},
		lists:    map[string][]string{},
		counts:   map[string]int64{},
		expireAt: map[string]time.Time{},
	}
}

// expired reports whether key's TTL has elapsed. Callers hold s.mu.
func (s *Store) expired(key string, now time.Time) bool {
	at, ok := s.expireAt[key]
	return ok && now.After(at)
}

// purge drops key from every key-space and its expiry entry. Callers hold s.mu.
func (s *Store) purge(key string) {
	delete(s.strings, key)
	delete(s.hashes, key)
	delete(s.sets, key)
	delete(s.lists, key)
	delete(s.expireAt, key)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired(key, time.Now()) {
		s.purge(key)
		return nil, false, nil
	}
	e, ok := s.strings[key]
	if !ok {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strings[key] = entry{value: value}
	if ttl > 0 {
		s.expireAt[key] = time.Now().Add(ttl)
	} else {
		delete(s.expireAt, key)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge(key)
	return nil
}

func (s *Store) HashSet(ctx context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		h = map[string]string{}
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (s *Store) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired(key, time.Now()) {
		s.purge(key)
		return map[string]string{}, nil
	}
	h := s.hashes[key]
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, nil
}

func (s *Store) SetAdd(ctx context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		set = map[string]struct{}{}
		s.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

func (s *Store) SetDelete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, key)
	delete(s.expireAt, key)
	return nil
}

func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired(key, time.Now()) {
		s.purge(key)
		return nil, nil
	}
	set := s.sets[key]
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ListPushLeft(ctx context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append([]string{value}, s.lists[key]...)
	return nil
}

func (s *Store) ListTrim(ctx context.Context, key string, start, stop int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired(key, time.Now()) {
		s.purge(key)
		return nil
	}
	list := s.lists[key]
	start, stop = clampRange(len(list), start, stop)
	if start > stop {
		s.lists[key] = nil
		return nil
	}
	s.lists[key] = append([]string(nil), list[start:stop+1]...)
	return nil
}

func (s *Store) ListRange(ctx context.Context, key string, start, stop int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired(key, time.Now()) {
		s.purge(key)
		return nil, nil
	}
	list := s.lists[key]
	start, stop = clampRange(len(list), start, stop)
	if start > stop {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

func (s *Store) ListSetIndex(ctx context.Context, key string, index int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired(key, time.Now()) {
		s.purge(key)
		return nil
	}
	list := s.lists[key]
	if index < 0 {
		index += len(list)
	}
	if index < 0 || index >= len(list) {
		return nil
	}
	list[index] = value
	return nil
}

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[key]++
	return s.counts[key], nil
}

// Expire sets key's TTL regardless of which key-space (string, hash, set,
// or list) it lives in, since callers expire vehicle hashes and
// intervention lists just as often as plain string values.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl > 0 {
		s.expireAt[key] = time.Now().Add(ttl)
	} else {
		delete(s.expireAt, key)
	}
	return nil
}

// Publish is a no-op: see package doc.
func (s *Store) Publish(ctx context.Context, channel string, message []byte) error {
	return nil
}

// Subscribe returns a subscription whose Receive always times out, so
// callers detect the absence of traffic and fall back to polling.
func (s *Store) Subscribe(ctx context.Context, channel string) (ports.Subscription, error) {
	return noopSubscription{}, nil
}

func (s *Store) Pipeline() ports.Pipeline {
	return &memPipeline{store: s}
}

func clampRange(n, start, stop int) (int, int) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	return start, stop
}

type noopSubscription struct{}

func (noopSubscription) Receive(ctx context.Context, timeout time.Duration) ([]byte, bool, error) {
	select {
	case <-time.After(timeout):
		return nil, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (noopSubscription) Close() error { return nil }
