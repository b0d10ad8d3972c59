package usecases

import "github.com/transitiq/nervecentre/internal/core/domain"

// fakeCatalog is a minimal in-memory ports.StaticCatalog stand-in for
// detector and intervention-engine tests, avoiding a dependency on the real
// GTFS-static loader and its ZIP/CSV parsing.
type fakeCatalog struct {
	routes     map[string]string // routeID -> short name
	tripRoutes map[string]string // tripID -> routeID
	stops      map[string]domain.StopInfo
	repStops   map[string]domain.StopInfo // routeID -> representative stop
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		routes:     map[string]string{},
		tripRoutes: map[string]string{},
		stops:      map[string]domain.StopInfo{},
		repStops:   map[string]domain.StopInfo{},
	}
}

func (c *fakeCatalog) RouteShortName(routeID string) string {
	if name, ok := c.routes[routeID]; ok {
		return name
	}
	return routeID
}

func (c *fakeCatalog) RouteShortNameByTrip(tripID string) string {
	routeID, ok := c.tripRoutes[tripID]
	if !ok {
		return ""
	}
	return c.RouteShortName(routeID)
}

func (c *fakeCatalog) RouteIDByTrip(tripID string) string {
	return c.tripRoutes[tripID]
}

func (c *fakeCatalog) AllRouteIDs() []string {
	ids := make([]string, 0, len(c.routes))
	for id := range c.routes {
		ids = append(ids, id)
	}
	return ids
}

func (c *fakeCatalog) Stop(stopID string) (domain.StopInfo, bool) {
	s, ok := c.stops[stopID]
	return s, ok
}

func (c *fakeCatalog) RepresentativeStop(routeID string) (domain.StopInfo, bool) {
	s, ok := c.repStops[routeID]
	return s, ok
}

func (c *fakeCatalog) NearestStop(lat, lon float64) (domain.StopInfo, bool) {
	for _, s := range c.stops {
		return s, true
	}
	return domain.StopInfo{}, false
}

func (c *fakeCatalog) RouteCount() int {
	return len(c.routes)
}

func (c *fakeCatalog) ShapeGeoJSON(routeID string) ([]byte, error) {
	return []byte(`{"type":"FeatureCollection","features":[]}`), nil
}

func (c *fakeCatalog) StopsGeoJSON() ([]byte, error) {
	return []byte(`{"type":"FeatureCollection","features":[]}`), nil
}
