package ports

import "context"

// FeedSource fetches the two upstream GTFS-realtime feeds as raw protobuf
// bytes. Decoding is the poller's job; this port only owns the transport
// concern (auth header, timeout, status-code handling) so the poller can be
// tested against a fake that never touches the network.
type FeedSource interface {
	// FetchVehiclePositions fetches the required feed. A 429 response must
	// be surfaced as an error the poller's backoff recognizes; any other
	// non-2xx status is also an error.
	FetchVehiclePositions(ctx context.Context) ([]byte, error)
	// FetchTripUpdates fetches the best-effort feed. Callers treat any
	// error from this method as "no delay data this tick", not a reason to
	// back off.
	FetchTripUpdates(ctx context.Context) ([]byte, error)
}
