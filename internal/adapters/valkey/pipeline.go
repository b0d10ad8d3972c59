package valkey

import (
	"context"
	"time"

	"github.com/valkey-io/valkey-go"
)

// pipeline queues commands and submits them together via DoMulti, which
// valkey-go sends as a single round trip and executes in the order queued —
// matching the "pipelined operations are committed in order" requirement
// without needing a scripted transaction for the common case.
type pipeline struct {
	client valkey.Client
	cmds   []valkey.Completed
}

func (p *pipeline) HashSet(key string, fields map[string]string) {
	if len(fields) == 0 {
		return
	}
	cmd := p.client.B().Hset().Key(key).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	p.cmds = append(p.cmds, cmd.Build())
}

func (p *pipeline) Expire(key string, ttl time.Duration) {
	p.cmds = append(p.cmds, p.client.B().Expire().Key(key).Seconds(int64(ttl.Seconds())).Build())
}

func (p *pipeline) Delete(key string) {
	p.cmds = append(p.cmds, p.client.B().Del().Key(key).Build())
}

func (p *pipeline) SetAdd(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	p.cmds = append(p.cmds, p.client.B().Sadd().Key(key).Member(members...).Build())
}

func (p *pipeline) SetWithTTL(key string, value []byte, ttl time.Duration) {
	cmd := p.client.B().Set().Key(key).Value(string(value))
	if ttl > 0 {
		p.cmds = append(p.cmds, cmd.Ex(ttl).Build())
		return
	}
	p.cmds = append(p.cmds, cmd.Build())
}

func (p *pipeline) ListPushLeft(key string, value string) {
	p.cmds = append(p.cmds, p.client.B().Lpush().Key(key).Element(value).Build())
}

func (p *pipeline) ListTrim(key string, start, stop int) {
	p.cmds = append(p.cmds, p.client.B().Ltrim().Key(key).Start(int64(start)).Stop(int64(stop)).Build())
}

func (p *pipeline) Incr(key string) {
	p.cmds = append(p.cmds, p.client.B().Incr().Key(key).Build())
}

func (p *pipeline) Exec(ctx context.Context) error {
	if len(p.cmds) == 0 {
		return nil
	}
	results := p.client.DoMulti(ctx, p.cmds...)
	for _, r := range results {
		if err := r.Error(); err != nil {
			return err
		}
	}
	return nil
}
