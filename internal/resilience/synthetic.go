package resilience

import (
	"fmt"
	"math"
	"strings"

	"github.com/example/roadside-matching/internal/geo"
	"github.com/example/roadside-matching/internal/models"
)

const (
	DefaultSyntheticCount = 5
	syntheticPrefix       = "synthetic-"
)

// IsSynthetic reports whether id was produced by SyntheticProviders.
func IsSynthetic(id string) bool {
	return strings.HasPrefix(id, syntheticPrefix)
}

// SyntheticProviders lays out up to n placeholder providers on a spiral
// around origin, all strictly inside radiusKm and ordered by distance.
// They are clearly marked and must never be sent back as real provider ids.
func SyntheticProviders(origin models.Position, radiusKm float64, n int) []models.NearbyProvider {
	out := []models.NearbyProvider{}
	if n <= 0 {
		n = DefaultSyntheticCount
	}
	if !geo.Valid(origin) || math.IsNaN(radiusKm) || radiusKm <= 0 {
		return out
	}
	// placeholders stay within 1 km of origin
	spread := math.Min(radiusKm, 1.0)
	for i := 0; i < n; i++ {
		d := spread * float64(i+1) / float64(n+1)
		bearing := float64(i) * 2 * math.Pi / float64(n)
		pos := destination(origin, d, bearing)
		if !geo.Valid(pos) {
			continue
		}
		dist := geo.Distance(origin, pos)
		if dist > radiusKm {
			continue
		}
		out = append(out, models.NearbyProvider{
			Provider: models.Provider{
				ID:           fmt.Sprintf("%s%d", syntheticPrefix, i+1),
				Name:         fmt.Sprintf("Garage %d (offline)", i+1),
				Description:  "Placeholder shown while the service is unreachable",
				OpeningHours: "unknown",
				Position:     pos,
				Address:      "unavailable offline",
				ServiceTags:  []string{},
				Skills:       []string{},
			},
			DistanceKm: dist,
		})
	}
	return out
}

// destination moves d km from p along bearing (radians from north).
func destination(p models.Position, d, bearing float64) models.Position {
	lat1 := p.Lat * math.Pi / 180
	lon1 := p.Lon * math.Pi / 180
	ad := d / geo.EarthRadiusKm
	lat2 := math.Asin(math.Sin(lat1)*math.Cos(ad) + math.Cos(lat1)*math.Sin(ad)*math.Cos(bearing))
	lon2 := lon1 + math.Atan2(math.Sin(bearing)*math.Sin(ad)*math.Cos(lat1), math.Cos(ad)-math.Sin(lat1)*math.Sin(lat2))
	lon := math.Mod(lon2*180/math.Pi+540, 360) - 180
	return models.Position{Lat: lat2 * 180 / math.Pi, Lon: lon}
}
