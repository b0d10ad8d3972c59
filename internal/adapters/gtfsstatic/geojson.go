package gtfsstatic

import "encoding/json"

type geoFeatureCollection struct {
	Type     string        `json:"type"`
	Features []geoFeature  `json:"features"`
}

type geoFeature struct {
	Type       string         `json:"type"`
	Geometry   geoGeometry    `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geoGeometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// ShapeGeoJSON returns the representative-shape LineString for one route, or
// every route's representative shape when routeID is empty. Coordinates use
// [lon, lat] ordering per the GeoJSON spec.
func (l *Loader) ShapeGeoJSON(routeID string) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	fc := geoFeatureCollection{Type: "FeatureCollection"}

	ids := []string{routeID}
	if routeID == "" {
		ids = l.sortedRouteIDs()
	}

	for _, rid := range ids {
		pts, ok := l.representativeShape(rid)
		if !ok {
			continue
		}
		coords := make([][2]float64, len(pts))
		for i, p := range pts {
			coords[i] = [2]float64{p.Longitude, p.Latitude}
		}
		fc.Features = append(fc.Features, geoFeature{
			Type: "Feature",
			Geometry: geoGeometry{
				Type:        "LineString",
				Coordinates: coords,
			},
			Properties: map[string]any{
				"route_id":         rid,
				"route_short_name": l.routeShortName[rid],
			},
		})
	}

	return json.Marshal(fc)
}

// StopsGeoJSON returns every stop as a Point feature, skipping the (0,0)
// sentinel some feeds use for stops with unknown coordinates.
func (l *Loader) StopsGeoJSON() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	fc := geoFeatureCollection{Type: "FeatureCollection"}
	for stopID, info := range l.stops {
		if info.Latitude == 0 && info.Longitude == 0 {
			continue
		}
		fc.Features = append(fc.Features, geoFeature{
			Type: "Feature",
			Geometry: geoGeometry{
				Type:        "Point",
				Coordinates: [2]float64{info.Longitude, info.Latitude},
			},
			Properties: map[string]any{
				"stop_id": stopID,
				"name":    info.Name,
			},
		})
	}
	return json.Marshal(fc)
}
