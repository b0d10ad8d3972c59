package http

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/transitiq/nervecentre/internal/core/domain"
	"github.com/transitiq/nervecentre/internal/core/usecases"
)

// interventionSummary groups the active list by status and priority.
type interventionSummary struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Approved  int `json:"approved"`
	Dismissed int `json:"dismissed"`
	Critical  int `json:"critical"`
	High      int `json:"high"`
}

// ListInterventionsHandler returns the active intervention list, grouped by
// type, with a status/priority summary. refresh=true forces regeneration
// from the current detector outputs rather than serving the cached list.
func ListInterventionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		now := time.Now()
		refresh := c.QueryBool("refresh", false)

		interventions, err := usecases.ActiveInterventions(ctx, deps.Store)
		if err != nil {
			return errInternal(c, "read active interventions: "+err.Error())
		}

		if refresh || len(interventions) == 0 {
			interventions, err = regenerateInterventions(ctx, deps, now)
			if err != nil {
				return errInternal(c, "generate interventions: "+err.Error())
			}
		}

		byType := map[string][]domain.Intervention{}
		for _, iv := range interventions {
			byType[string(iv.Type)] = append(byType[string(iv.Type)], iv)
		}

		summary := interventionSummary{Total: len(interventions)}
		for _, iv := range interventions {
			switch iv.Status {
			case domain.StatusPending:
				summary.Pending++
			case domain.StatusApproved:
				summary.Approved++
			case domain.StatusDismissed:
				summary.Dismissed++
			}
			switch iv.Priority {
			case domain.PriorityCritical:
				summary.Critical++
			case domain.PriorityHigh:
				summary.High++
			}
		}

		return ok(c, fiber.Map{
			"interventions": interventions,
			"by_type":       byType,
			"summary":       summary,
		})
	}
}

// regenerateInterventions re-runs the three detectors and feeds their
// output into the Intervention Engine, the same composition
// cmd/engine's scheduled workflow runs — this is the request-driven
// trigger path, not a separate generation algorithm.
func regenerateInterventions(ctx context.Context, deps *Dependencies, now time.Time) ([]domain.Intervention, error) {
	ghosts, err := usecases.DetectGhosts(ctx, deps.Store, deps.Catalog, now)
	if err != nil {
		return nil, err
	}
	bunching, err := usecases.DetectBunching(ctx, deps.Store, deps.Catalog, now)
	if err != nil {
		return nil, err
	}
	crowding, err := usecases.AggregateCrowding(ctx, deps.Store)
	if err != nil {
		return nil, err
	}
	return usecases.GenerateInterventions(ctx, deps.Store, deps.Catalog, ghosts, bunching, crowding, now)
}

// ActionInterventionHandler approves or dismisses one pending intervention.
func ActionInterventionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var body struct {
			Action string `json:"action"`
		}
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body: "+err.Error())
		}
		action := domain.InterventionAction(body.Action)
		if !action.Valid() {
			return errBadRequest(c, "action must be 'approve' or 'dismiss'")
		}

		iv, found, err := usecases.ActionIntervention(c.UserContext(), deps.Store, id, action, time.Now())
		if err != nil {
			return errInternal(c, "action intervention: "+err.Error())
		}
		if !found {
			return errNotFound(c, "intervention not found: "+id)
		}

		if deps.Audit != nil {
			kind := "dismissed"
			if action == domain.ActionApprove {
				kind = "approved"
			}
			if pubErr := deps.Audit.PublishInterventionEvent(c.UserContext(), kind, iv); pubErr != nil {
				LoggerFromCtx(c.UserContext()).Warn("publish intervention event failed", "error", pubErr)
			}
		}

		return okAction(c, iv, string(body.Action))
	}
}

// InterventionHistoryHandler returns a page of history entries, offset-paginated
// via ?offset=&limit=, with RFC 8288 Link headers for the adjacent pages.
func InterventionHistoryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := 50
		if raw := c.Query("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				limit = n
			}
		}
		offset := c.QueryInt("offset", 0)

		all, err := usecases.InterventionHistory(c.UserContext(), deps.Store, 0, usecases.MaxHistoryLimit)
		if err != nil {
			return errInternal(c, "read intervention history: "+err.Error())
		}

		page, err := usecases.InterventionHistory(c.UserContext(), deps.Store, offset, limit)
		if err != nil {
			return errInternal(c, "read intervention history: "+err.Error())
		}

		SetLinkHeaders(c, Pagination{Offset: offset, Limit: limit, Total: len(all)})

		return ok(c, PaginatedResponse{
			Data: fiber.Map{
				"history": page,
			},
			Pagination: Pagination{Offset: offset, Limit: limit, Total: len(all)},
		})
	}
}

// NetworkHealthHandler returns the composite network health score.
func NetworkHealthHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report, err := usecases.ComputeHealth(c.UserContext(), deps.Store, deps.Catalog, time.Now())
		if err != nil {
			return errInternal(c, "compute health: "+err.Error())
		}
		return ok(c, report)
	}
}

// StatsSummaryHandler summarizes the append-only stats file written by the
// stats snapshotter.
func StatsSummaryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.StatsFile == "" {
			return errNotFound(c, "stats file not configured")
		}
		summary, err := usecases.SummarizeStatsFile(deps.StatsFile)
		if err != nil {
			return errNotFound(c, "stats file unavailable: "+err.Error())
		}
		return ok(c, summary)
	}
}
