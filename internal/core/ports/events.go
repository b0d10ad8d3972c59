package ports

import (
	"context"

	"github.com/transitiq/nervecentre/internal/core/domain"
)

// AuditPublisher durably records intervention lifecycle transitions for
// later replay or compliance review. Unlike the best-effort "live" pub/sub
// channel, delivery here is allowed to be at-least-once: a controller
// approving an intervention is a business event worth retrying, not a
// perishable telemetry frame.
type AuditPublisher interface {
	PublishInterventionEvent(ctx context.Context, kind string, iv domain.Intervention) error
	Close() error
}

// HistoryArchiver persists data the core does not require durability for,
// but which is useful to keep around longer than the store's TTLs allow
// (historical vehicle positions, stats snapshots). A nil archiver is valid
// everywhere it's used; archival is always best-effort and optional.
type HistoryArchiver interface {
	ArchiveVehicles(ctx context.Context, snapshot domain.FleetSnapshot) error
	ArchiveStatsSnapshot(ctx context.Context, raw []byte, generatedAt int64) error
	Close()
}
