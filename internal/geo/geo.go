// Package geo ranks providers by straight-line distance to a position.
// Everything here is pure and safe for concurrent use.
package geo

import (
	"math"
	"sort"

	"github.com/example/roadside-matching/internal/models"
)

const (
	EarthRadiusKm   = 6371.0
	DefaultRadiusKm = 10.0
)

// Valid reports whether p is a usable coordinate.
func Valid(p models.Position) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Distance is the haversine great-circle distance between a and b in km.
func Distance(a, b models.Position) float64 {
	return haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180.0 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Nearby keeps the candidates within radiusKm of origin (inclusive) and
// orders them by ascending distance. Equal distances keep input order.
// A non-positive radius, an invalid origin or an empty candidate list
// yield an empty result; candidates with invalid coordinates are skipped.
func Nearby(origin models.Position, candidates []models.Provider, radiusKm float64) []models.NearbyProvider {
	out := []models.NearbyProvider{}
	if !(radiusKm > 0) || !Valid(origin) {
		return out
	}
	for _, p := range candidates {
		if !Valid(p.Position) {
			continue
		}
		d := Distance(origin, p.Position)
		if d <= radiusKm {
			out = append(out, models.NearbyProvider{Provider: p, DistanceKm: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out
}
