package memstore

import (
	"context"
	"testing"
	"time"
)

func TestStore_ListPushTrimRange(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, v := range []string{"a", "b", "c"} {
		if err := s.ListPushLeft(ctx, "k", v); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	// Left-push of a,b,c in order yields [c,b,a].
	got, err := s.ListRange(ctx, "k", 0, -1)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	want := []string{"c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	if err := s.ListTrim(ctx, "k", 0, 1); err != nil {
		t.Fatalf("trim: %v", err)
	}
	got, _ = s.ListRange(ctx, "k", 0, -1)
	if len(got) != 2 {
		t.Fatalf("after trim: %v", got)
	}
}

func TestStore_ListSetIndex(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.ListPushLeft(ctx, "k", "x")
	s.ListPushLeft(ctx, "k", "y") // list: [y, x]
	if err := s.ListSetIndex(ctx, "k", 1, "z"); err != nil {
		t.Fatalf("set index: %v", err)
	}
	got, _ := s.ListRange(ctx, "k", 0, -1)
	if got[1] != "z" {
		t.Fatalf("expected index 1 = z, got %v", got)
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.SetWithTTL(ctx, "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatal("expected value present immediately")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("expected value expired")
	}
}

func TestStore_ExpireAppliesToHashAndListKeys(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.HashSet(ctx, "vehicle:1", map[string]string{"route_id": "R1"}); err != nil {
		t.Fatalf("hash set: %v", err)
	}
	if err := s.Expire(ctx, "vehicle:1", 10*time.Millisecond); err != nil {
		t.Fatalf("expire hash: %v", err)
	}
	if err := s.ListPushLeft(ctx, "interventions:active", "a"); err != nil {
		t.Fatalf("list push: %v", err)
	}
	if err := s.Expire(ctx, "interventions:active", 10*time.Millisecond); err != nil {
		t.Fatalf("expire list: %v", err)
	}

	h, _ := s.HashGetAll(ctx, "vehicle:1")
	if h["route_id"] != "R1" {
		t.Fatalf("expected hash present before expiry, got %v", h)
	}
	list, _ := s.ListRange(ctx, "interventions:active", 0, -1)
	if len(list) != 1 {
		t.Fatalf("expected list present before expiry, got %v", list)
	}

	time.Sleep(20 * time.Millisecond)

	h, _ = s.HashGetAll(ctx, "vehicle:1")
	if len(h) != 0 {
		t.Fatalf("expected hash expired, got %v", h)
	}
	list, _ = s.ListRange(ctx, "interventions:active", 0, -1)
	if len(list) != 0 {
		t.Fatalf("expected list expired, got %v", list)
	}
}

func TestStore_PublishIsNoOpAndSubscribeTimesOut(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Publish(ctx, "live", []byte("hello")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	sub, err := s.Subscribe(ctx, "live")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()
	_, ok, err := sub.Receive(ctx, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if ok {
		t.Fatal("expected no message on a no-op publish path")
	}
}

func TestStore_Pipeline(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := s.Pipeline()
	p.HashSet("vehicle:1", map[string]string{"route_id": "R1"})
	p.SetAdd("fleet", "1")
	p.Incr("counter")
	if err := p.Exec(ctx); err != nil {
		t.Fatalf("exec: %v", err)
	}
	h, _ := s.HashGetAll(ctx, "vehicle:1")
	if h["route_id"] != "R1" {
		t.Fatalf("hash not applied: %v", h)
	}
	members, _ := s.SetMembers(ctx, "fleet")
	if len(members) != 1 || members[0] != "1" {
		t.Fatalf("set not applied: %v", members)
	}
}
