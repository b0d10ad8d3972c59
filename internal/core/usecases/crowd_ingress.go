package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/transitiq/nervecentre/internal/core/domain"
	"github.com/transitiq/nervecentre/internal/core/ports"
)

// CrowdReportInput is the anonymous payload a rider submits.
type CrowdReportInput struct {
	VehicleID      string
	RouteID        string
	RouteShortName string
	CrowdingLevel  domain.CrowdLevel
	Latitude       float64
	Longitude      float64
}

// SubmitCrowdReport stamps an id and timestamp on the report, fans it out
// to the recent/per-route/per-vehicle lists, bumps the global counter, and
// publishes it on the live channel.
func SubmitCrowdReport(ctx context.Context, store ports.StateStore, in CrowdReportInput, now time.Time) (domain.CrowdReport, error) {
	report := domain.CrowdReport{
		ID:             fmt.Sprintf("%s:%d", in.VehicleID, now.UnixMilli()),
		VehicleID:      in.VehicleID,
		RouteID:        in.RouteID,
		RouteShortName: in.RouteShortName,
		CrowdingLevel:  in.CrowdingLevel,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		ReportedAt:     now,
	}

	raw, err := json.Marshal(report)
	if err != nil {
		return domain.CrowdReport{}, fmt.Errorf("marshal crowd report: %w", err)
	}

	p := store.Pipeline()
	p.ListPushLeft(KeyCrowdReports, string(raw))
	p.ListTrim(KeyCrowdReports, 0, crowdReportsListCap-1)
	p.Expire(KeyCrowdReports, crowdReportTTLSeconds*time.Second)
	p.ListPushLeft(CrowdRouteKey(report.RouteID), string(raw))
	p.ListTrim(CrowdRouteKey(report.RouteID), 0, crowdRouteListCap-1)
	p.Expire(CrowdRouteKey(report.RouteID), crowdReportTTLSeconds*time.Second)
	p.SetWithTTL(CrowdVehicleKey(report.VehicleID), raw, crowdReportTTLSeconds*time.Second)
	p.Incr(KeyCrowdTotalCount)
	if err := p.Exec(ctx); err != nil {
		return domain.CrowdReport{}, fmt.Errorf("store crowd report: %w", err)
	}

	msg, err := json.Marshal(crowdReportMessage{Type: "crowd_report", Report: report})
	if err == nil {
		_ = store.Publish(ctx, ChannelLive, msg)
	}

	return report, nil
}
