package valkey

import (
	"context"
	"time"

	"github.com/valkey-io/valkey-go"
)

// subscription adapts valkey-go's callback-based Receive into the blocking,
// poll-friendly ports.Subscription shape the WS fanout loop wants. Delivery
// is best-effort: a full buffer drops the newest message rather than
// growing without bound, since a slow subscriber should fall behind, not
// hold up the publisher.
type subscription struct {
	msgs   chan []byte
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func newSubscription(client valkey.Client, channel string) *subscription {
	ctx, cancel := context.WithCancel(context.Background())
	s := &subscription{
		msgs:   make(chan []byte, 64),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		s.err = client.Receive(ctx, client.B().Subscribe().Channel(channel).Build(), func(msg valkey.PubSubMessage) {
			select {
			case s.msgs <- []byte(msg.Message):
			default:
			}
		})
	}()
	return s
}

func (s *subscription) Receive(ctx context.Context, timeout time.Duration) ([]byte, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m, ok := <-s.msgs:
		if !ok {
			return nil, false, s.err
		}
		return m, true, nil
	case <-timer.C:
		return nil, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-s.done:
		return nil, false, s.err
	}
}

func (s *subscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}
