package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/transitiq/nervecentre/internal/core/ports"
	"github.com/transitiq/nervecentre/internal/core/usecases"
)

// liveSnapshotMessage is the payload sent to a WS client, both as the
// initial frame on connect and as every subsequent fresh-snapshot push.
type liveSnapshotMessage struct {
	Type      string      `json:"type"`
	Vehicles  interface{} `json:"vehicles"`
	Timestamp time.Time   `json:"timestamp"`
	Count     int         `json:"count"`
}

const (
	wsReceiveTimeout = 1 * time.Second
	wsPollInterval   = 5 * time.Second
)

// LiveFeedHandler streams fleet snapshots to one connected client: an
// initial snapshot on accept, then either a pub/sub relay of the "live"
// channel or, when pub/sub degrades to a no-op (in-memory store fallback),
// a 5s polling loop that only pushes when fleet:ts actually changed.
func LiveFeedHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()
		ctx := context.Background()

		if err := sendSnapshot(c, deps, ctx); err != nil {
			return
		}

		sub, err := deps.Store.Subscribe(ctx, usecases.ChannelLive)
		if err != nil {
			slog.Warn("ws subscribe failed, falling back to polling", "error", err)
			pollLoop(c, deps, ctx)
			return
		}
		defer sub.Close()

		relayLoop(c, deps, ctx, sub)
	}
}

// relayLoop pumps pub/sub messages to the client, honoring a 1s timeout per
// receive so a disconnect is noticed promptly. A subscription that never
// delivers anything (the in-memory store's no-op implementation) looks
// identical to an idle-but-healthy one from in here, so this loop also
// checks fleet:ts on the polling cadence and pushes a fresh snapshot if it
// moved — the same degrade path pollLoop takes, just layered under pub/sub.
func relayLoop(c *websocket.Conn, deps *Dependencies, ctx context.Context, sub ports.Subscription) {
	lastPoll := time.Now()
	var lastTS time.Time

	for {
		msg, received, err := sub.Receive(ctx, wsReceiveTimeout)
		if err != nil {
			return
		}
		if received {
			if writeErr := c.WriteMessage(websocket.TextMessage, msg); writeErr != nil {
				return
			}
			continue
		}

		if time.Since(lastPoll) < wsPollInterval {
			continue
		}
		lastPoll = time.Now()

		ts, found, tsErr := usecases.FleetTimestamp(ctx, deps.Store)
		if tsErr != nil || !found || !ts.After(lastTS) {
			if clientDisconnected(c) {
				return
			}
			continue
		}
		lastTS = ts
		if err := sendSnapshot(c, deps, ctx); err != nil {
			return
		}
	}
}

// pollLoop is the fully-degraded path: no usable pub/sub at all, so every
// wsPollInterval re-read fleet:ts and only push a fresh snapshot when it
// moved.
func pollLoop(c *websocket.Conn, deps *Dependencies, ctx context.Context) {
	var lastTS time.Time
	ticker := time.NewTicker(wsPollInterval)
	defer ticker.Stop()

	for range ticker.C {
		ts, found, err := usecases.FleetTimestamp(ctx, deps.Store)
		if err != nil || !found || !ts.After(lastTS) {
			if clientDisconnected(c) {
				return
			}
			continue
		}
		lastTS = ts
		if err := sendSnapshot(c, deps, ctx); err != nil {
			return
		}
	}
}

func sendSnapshot(c *websocket.Conn, deps *Dependencies, ctx context.Context) error {
	vehicles, ts, err := usecases.ListFleet(ctx, deps.Store)
	if err != nil {
		slog.Error("ws snapshot fetch failed", "error", err)
		return err
	}
	payload, err := json.Marshal(liveSnapshotMessage{
		Type:      "snapshot",
		Vehicles:  vehicles,
		Timestamp: ts,
		Count:     len(vehicles),
	})
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, payload)
}

// clientDisconnected probes liveness with a ping; a write failure means the
// client is gone and the loop should stop rather than buffer further work.
func clientDisconnected(c *websocket.Conn) bool {
	return c.WriteMessage(websocket.PingMessage, nil) != nil
}
