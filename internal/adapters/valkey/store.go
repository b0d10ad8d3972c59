// Package valkey implements ports.StateStore against a Valkey (Redis wire
// protocol compatible) server using the valkey-go command-builder client.
package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/transitiq/nervecentre/internal/core/ports"
)

// Store implements ports.StateStore using valkey-go.
type Store struct {
	client valkey.Client
}

// New connects a Store to addr (host:port).
func New(addr string) (*Store, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the underlying connections.
func (s *Store) Close() {
	s.client.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	cmd := s.client.Do(ctx, s.client.B().Get().Key(key).Build())
	if cmd.Error() != nil {
		if valkey.IsValkeyNil(cmd.Error()) {
			return nil, false, nil
		}
		return nil, false, cmd.Error()
	}
	b, err := cmd.AsBytes()
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.client.B().Set().Key(key).Value(string(value))
	if ttl > 0 {
		return s.client.Do(ctx, cmd.Ex(ttl).Build()).Error()
	}
	return s.client.Do(ctx, cmd.Build()).Error()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error()
}

func (s *Store) HashSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	cmd := s.client.B().Hset().Key(key).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	return s.client.Do(ctx, cmd.Build()).Error()
}

func (s *Store) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	cmd := s.client.Do(ctx, s.client.B().Hgetall().Key(key).Build())
	if cmd.Error() != nil {
		return nil, cmd.Error()
	}
	return cmd.AsStrMap()
}

func (s *Store) SetAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return s.client.Do(ctx, s.client.B().Sadd().Key(key).Member(members...).Build()).Error()
}

func (s *Store) SetDelete(ctx context.Context, key string) error {
	return s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error()
}

func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	cmd := s.client.Do(ctx, s.client.B().Smembers().Key(key).Build())
	if cmd.Error() != nil {
		return nil, cmd.Error()
	}
	return cmd.AsStrSlice()
}

func (s *Store) ListPushLeft(ctx context.Context, key string, value string) error {
	return s.client.Do(ctx, s.client.B().Lpush().Key(key).Element(value).Build()).Error()
}

func (s *Store) ListTrim(ctx context.Context, key string, start, stop int) error {
	return s.client.Do(ctx, s.client.B().Ltrim().Key(key).Start(int64(start)).Stop(int64(stop)).Build()).Error()
}

func (s *Store) ListRange(ctx context.Context, key string, start, stop int) ([]string, error) {
	cmd := s.client.Do(ctx, s.client.B().Lrange().Key(key).Start(int64(start)).Stop(int64(stop)).Build())
	if cmd.Error() != nil {
		return nil, cmd.Error()
	}
	return cmd.AsStrSlice()
}

func (s *Store) ListSetIndex(ctx context.Context, key string, index int, value string) error {
	return s.client.Do(ctx, s.client.B().Lset().Key(key).Index(int64(index)).Element(value).Build()).Error()
}

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	cmd := s.client.Do(ctx, s.client.B().Incr().Key(key).Build())
	if cmd.Error() != nil {
		return 0, cmd.Error()
	}
	return cmd.ToInt64()
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Do(ctx, s.client.B().Expire().Key(key).Seconds(int64(ttl.Seconds())).Build()).Error()
}

func (s *Store) Publish(ctx context.Context, channel string, message []byte) error {
	return s.client.Do(ctx, s.client.B().Publish().Channel(channel).Message(string(message)).Build()).Error()
}

func (s *Store) Subscribe(ctx context.Context, channel string) (ports.Subscription, error) {
	return newSubscription(s.client, channel), nil
}

func (s *Store) Pipeline() ports.Pipeline {
	return &pipeline{client: s.client}
}

