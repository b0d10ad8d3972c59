package ports

import "github.com/transitiq/nervecentre/internal/core/domain"

// StaticCatalog is the read-only, process-local view of the schedule
// archive. It is populated once at startup and never mutated afterward, so
// implementations may be shared across goroutines without synchronization.
type StaticCatalog interface {
	// RouteShortName returns the mapped short name for a route, or the raw
	// id itself if the route is unknown to the catalog.
	RouteShortName(routeID string) string
	// RouteShortNameByTrip resolves trip -> route -> short name, returning
	// empty string if the trip is unknown.
	RouteShortNameByTrip(tripID string) string
	// RouteIDByTrip resolves a trip to its route id, empty if unknown.
	RouteIDByTrip(tripID string) string
	// AllRouteIDs returns every route id known to the static schedule.
	AllRouteIDs() []string
	// Stop returns static stop info, or false if unknown.
	Stop(stopID string) (domain.StopInfo, bool)
	// RepresentativeStop returns one stop known to be served by route,
	// used as a fallback coordinate when no live vehicle is on the route.
	RepresentativeStop(routeID string) (domain.StopInfo, bool)
	// NearestStop returns the stop_map entry closest to (lat, lon).
	NearestStop(lat, lon float64) (domain.StopInfo, bool)
	// RouteCount reports how many routes the catalog knows about, used as
	// the denominator for route-coverage health scoring.
	RouteCount() int
	// ShapeGeoJSON returns the representative-shape GeoJSON FeatureCollection
	// for one route, or every route's representative shape if routeID is "".
	ShapeGeoJSON(routeID string) ([]byte, error)
	// StopsGeoJSON returns every stop as a GeoJSON Point FeatureCollection.
	StopsGeoJSON() ([]byte, error)
}
