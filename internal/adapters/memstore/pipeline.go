package memstore

import (
	"context"
	"time"
)

// memPipeline queues closures and applies them against the owning Store
// under a single lock when Exec runs, giving the same "all-or-nothing
// ordering" observable behaviour pipelining provides against Valkey: no
// reader can observe a partially-applied batch.
type memPipeline struct {
	store *Store
	ops   []func()
}

func (p *memPipeline) HashSet(key string, fields map[string]string) {
	p.ops = append(p.ops, func() { _ = applyHashSet(p.store, key, fields) })
}

func (p *memPipeline) Expire(key string, ttl time.Duration) {
	p.ops = append(p.ops, func() {
		p.store.mu.Lock()
		if ttl > 0 {
			p.store.expireAt[key] = time.Now().Add(ttl)
		} else {
			delete(p.store.expireAt, key)
		}
		p.store.mu.Unlock()
	})
}

func (p *memPipeline) Delete(key string) {
	p.ops = append(p.ops, func() {
		p.store.mu.Lock()
		p.store.purge(key)
		p.store.mu.Unlock()
	})
}

func (p *memPipeline) SetAdd(key string, members ...string) {
	p.ops = append(p.ops, func() {
		p.store.mu.Lock()
		set, ok := p.store.sets[key]
		if !ok {
			set = map[string]struct{}{}
			p.store.sets[key] = set
		}
		for _, m := range members {
			set[m] = struct{}{}
		}
		p.store.mu.Unlock()
	})
}

func (p *memPipeline) SetWithTTL(key string, value []byte, ttl time.Duration) {
	p.ops = append(p.ops, func() {
		p.store.mu.Lock()
		p.store.strings[key] = entry{value: value}
		if ttl > 0 {
			p.store.expireAt[key] = time.Now().Add(ttl)
		} else {
			delete(p.store.expireAt, key)
		}
		p.store.mu.Unlock()
	})
}

func (p *memPipeline) ListPushLeft(key string, value string) {
	p.ops = append(p.ops, func() {
		p.store.mu.Lock()
		p.store.lists[key] = append([]string{value}, p.store.lists[key]...)
		p.store.mu.Unlock()
	})
}

func (p *memPipeline) ListTrim(key string, start, stop int) {
	p.ops = append(p.ops, func() {
		p.store.mu.Lock()
		list := p.store.lists[key]
		s, e := clampRange(len(list), start, stop)
		if s > e {
			p.store.lists[key] = nil
		} else {
			p.store.lists[key] = append([]string(nil), list[s:e+1]...)
		}
		p.store.mu.Unlock()
	})
}

func (p *memPipeline) Incr(key string) {
	p.ops = append(p.ops, func() {
		p.store.mu.Lock()
		p.store.counts[key]++
		p.store.mu.Unlock()
	})
}

func (p *memPipeline) Exec(ctx context.Context) error {
	for _, op := range p.ops {
		op()
	}
	return nil
}

func applyHashSet(s *Store, key string, fields map[string]string) error {
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
