package resilience

import (
	"fmt"
	"math"

	"github.com/example/roadside-matching/internal/models"
)

// NearbyKey rounds coordinates to 1e-4 degrees (about 11 m) so that jitter
// in a device position still hits the same entry.
func NearbyKey(origin models.Position, radiusKm float64) string {
	return fmt.Sprintf("nearby:%.4f:%.4f:%g", round4(origin.Lat), round4(origin.Lon), radiusKm)
}

// RequestKey is scoped to the viewing account: a request cached for one
// party must never be served to another while the backend is down.
func RequestKey(accountID, id string) string { return "request:" + accountID + ":" + id }

func RequestListKey(accountID string, role models.Role) string {
	return fmt.Sprintf("requests:%s:%s", role, accountID)
}

func round4(v float64) float64 {
	r := math.Round(v*1e4) / 1e4
	if r == 0 {
		return 0 // fold -0
	}
	return r
}
