package domain

import "time"

// InterventionType is the action family a controller can take.
type InterventionType string

const (
	InterventionHold    InterventionType = "HOLD"
	InterventionDeploy  InterventionType = "DEPLOY"
	InterventionSurge   InterventionType = "SURGE"
	InterventionExpress InterventionType = "EXPRESS"
)

// InterventionPriority ranks interventions for ordering and capping; lower
// rank sorts first.
type InterventionPriority string

const (
	PriorityCritical InterventionPriority = "critical"
	PriorityHigh     InterventionPriority = "high"
	PriorityMedium   InterventionPriority = "medium"
	PriorityLow      InterventionPriority = "low"
)

// Rank returns the sort position for a priority; unknown priorities sort last.
func (p InterventionPriority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// InterventionStatus is the lifecycle state of an intervention record.
type InterventionStatus string

const (
	StatusPending   InterventionStatus = "pending"
	StatusApproved  InterventionStatus = "approved"
	StatusDismissed InterventionStatus = "dismissed"
	StatusExpired   InterventionStatus = "expired"
)

// InterventionTrigger names the detector family that produced the record.
type InterventionTrigger string

const (
	TriggerBunching InterventionTrigger = "bunching"
	TriggerGhost    InterventionTrigger = "ghost"
	TriggerCrowding InterventionTrigger = "crowding"
)

// Intervention is a single controller-facing recommendation. It carries
// copies of everything a dashboard needs to render and act on it; it never
// holds a reference back to the VehicleRecord or detector output that
// produced it, since those are transient and the intervention must survive
// independently in the store.
type Intervention struct {
	ID                   string               `json:"id"`
	Type                 InterventionType     `json:"type"`
	Priority             InterventionPriority `json:"priority"`
	Status               InterventionStatus   `json:"status"`
	Headline             string               `json:"headline"`
	Description          string               `json:"description"`
	RouteID              string               `json:"route_id"`
	RouteName            string               `json:"route_name"`
	Trigger              InterventionTrigger  `json:"trigger"`
	VehicleID            string               `json:"vehicle_id,omitempty"`
	TargetStop           string               `json:"target_stop,omitempty"`
	HoldSeconds          int                  `json:"hold_seconds,omitempty"`
	DepotName            string               `json:"depot_name,omitempty"`
	PassengersAffected   int                  `json:"passengers_affected"`
	WaitTimeImpactSecs   int                  `json:"wait_time_impact_seconds"`
	Confidence           float64              `json:"confidence"`
	Latitude             float64              `json:"latitude"`
	Longitude            float64              `json:"longitude"`
	CreatedAt            time.Time            `json:"created_at"`
	ExpiresAt            time.Time            `json:"expires_at"`
	ActionedAt           *time.Time           `json:"actioned_at,omitempty"`
}

// InterventionAction is the closed set of verbs a controller may apply,
// validated at the HTTP boundary rather than dispatched dynamically.
type InterventionAction string

const (
	ActionApprove InterventionAction = "approve"
	ActionDismiss InterventionAction = "dismiss"
)

// Valid reports whether a is one of the known actions.
func (a InterventionAction) Valid() bool {
	return a == ActionApprove || a == ActionDismiss
}

// ResultingStatus returns the InterventionStatus an action transitions to.
func (a InterventionAction) ResultingStatus() InterventionStatus {
	if a == ActionApprove {
		return StatusApproved
	}
	return StatusDismissed
}
