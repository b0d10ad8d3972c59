package gtfsstatic

import (
	"math"
	"sort"

	"github.com/transitiq/nervecentre/internal/core/domain"
	"github.com/transitiq/nervecentre/internal/pkg/geospatial"
)

// RouteShortName returns the mapped short name, or the raw id if the route
// has none. The trip_route_map re-scan looks up the same route id again, so
// it never finds a name the first lookup missed.
func (l *Loader) RouteShortName(routeID string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if name, ok := l.routeShortName[routeID]; ok {
		return name
	}
	for _, rid := range l.tripRoute {
		if rid == routeID {
			if name, ok := l.routeShortName[rid]; ok {
				return name
			}
		}
	}
	return routeID
}

// RouteShortNameByTrip resolves trip -> route -> short name.
func (l *Loader) RouteShortNameByTrip(tripID string) string {
	l.mu.RLock()
	routeID, ok := l.tripRoute[tripID]
	l.mu.RUnlock()
	if !ok {
		return ""
	}
	return l.RouteShortName(routeID)
}

// RouteIDByTrip resolves a trip to its route id.
func (l *Loader) RouteIDByTrip(tripID string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tripRoute[tripID]
}

// AllRouteIDs returns every known route id.
func (l *Loader) AllRouteIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.routeShortName))
	for id := range l.routeShortName {
		ids = append(ids, id)
	}
	return ids
}

// RouteCount reports how many routes the catalog knows about.
func (l *Loader) RouteCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.routeShortName)
}

// Stop returns static info for a stop id.
func (l *Loader) Stop(stopID string) (domain.StopInfo, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.stops[stopID]
	return s, ok
}

// RepresentativeStop returns one stop known to be served by routeID. Map
// iteration order is non-deterministic in Go, but the source's own
// "first entry from stop_map" has no stronger guarantee either; any member
// of the set is an equally valid representative coordinate.
func (l *Loader) RepresentativeStop(routeID string) (domain.StopInfo, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	stopIDs, ok := l.routeStops[routeID]
	if !ok {
		return domain.StopInfo{}, false
	}
	for stopID := range stopIDs {
		if info, ok := l.stops[stopID]; ok {
			return info, true
		}
	}
	return domain.StopInfo{}, false
}

// NearestStop performs a linear scan over every known stop and returns the
// closest one by great-circle distance. The catalog is small enough (tens
// of thousands of stops at most) that this stays well under a millisecond;
// a spatial index is not warranted here.
func (l *Loader) NearestStop(lat, lon float64) (domain.StopInfo, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var (
		best   domain.StopInfo
		bestD  = math.Inf(1)
		found  bool
	)
	for _, info := range l.stops {
		d := geospatial.Haversine(lat, lon, info.Latitude, info.Longitude)
		if d < bestD {
			bestD = d
			best = info
			found = true
		}
	}
	return best, found
}

// representativeShape returns the shape with the most points among those
// linked to routeID via trips — the source's "most points wins" rule.
func (l *Loader) representativeShape(routeID string) ([]domain.ShapePoint, bool) {
	shapeIDs, ok := l.routeShapes[routeID]
	if !ok || len(shapeIDs) == 0 {
		return nil, false
	}
	var best []domain.ShapePoint
	for shapeID := range shapeIDs {
		pts := l.shapePoints[shapeID]
		if len(pts) > len(best) {
			best = pts
		}
	}
	return best, len(best) > 0
}

// sortedRouteIDs is a small helper kept local to this file since only the
// GeoJSON export needs a deterministic route ordering.
func (l *Loader) sortedRouteIDs() []string {
	ids := make([]string, 0, len(l.routeShapes))
	for id := range l.routeShapes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
