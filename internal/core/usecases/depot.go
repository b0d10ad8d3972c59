package usecases

import (
	"math"

	"github.com/transitiq/nervecentre/internal/core/domain"
	"github.com/transitiq/nervecentre/internal/pkg/geospatial"
)

// Depots is the compile-time fleet depot table. DEPLOY interventions pick
// the nearest entry by great-circle distance; there is no live feed of
// depot capacity or vehicle availability, so this table is the only source
// of truth for where a backup bus could come from.
var Depots = []domain.Depot{
	{Name: "Phibsborough Garage", Lat: 53.3610, Lon: -6.2730, Capacity: 90},
	{Name: "Broadstone Depot", Lat: 53.3550, Lon: -6.2730, Capacity: 120},
	{Name: "Ringsend Garage", Lat: 53.3430, Lon: -6.2280, Capacity: 70},
	{Name: "Clontarf Garage", Lat: 53.3660, Lon: -6.2050, Capacity: 60},
	{Name: "Harristown Garage", Lat: 53.4080, Lon: -6.3560, Capacity: 100},
	{Name: "Summerhill Garage", Lat: 53.3570, Lon: -6.2480, Capacity: 50},
	{Name: "Conyngham Road Garage", Lat: 53.3480, Lon: -6.3070, Capacity: 80},
}

// NearestDepot returns the depot closest to (lat, lon) and the distance in
// meters.
func NearestDepot(lat, lon float64) (domain.Depot, float64) {
	best := Depots[0]
	bestD := math.Inf(1)
	for _, d := range Depots {
		dist := geospatial.Haversine(lat, lon, d.Lat, d.Lon)
		if dist < bestD {
			bestD = dist
			best = d
		}
	}
	return best, bestD
}
