package binder

import (
	"sort"

	"routebinder/internal/models"
)

// SortStops returns a copy of stops ordered by their order field. Equal
// orders keep their relative position.
func SortStops(stops []models.Stop) []models.Stop {
	out := make([]models.Stop, len(stops))
	copy(out, stops)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}

// RenumberOrders rewrites order values to 10, 20, 30... in the given sequence
func RenumberOrders(stops []models.Stop) []models.Stop {
	out := make([]models.Stop, len(stops))
	for i, s := range stops {
		s.Order = (i + 1) * 10
		out[i] = s
	}
	return out
}

// FilterAllowed keeps stops whose route number is in allowed
func FilterAllowed(stops []models.Stop, allowed map[string]bool) []models.Stop {
	out := make([]models.Stop, 0, len(stops))
	for _, s := range stops {
		if allowed[s.Site.RouteNumber] {
			out = append(out, s)
		}
	}
	return out
}

// CanComplete reports whether the completion gate is satisfied: arrived, not
// already complete, plow done, and salt/sidewalk done whenever required.
func CanComplete(s models.Stop) bool {
	if s.Status() != models.StopStatusArrived {
		return false
	}
	if !s.Checks.PlowDone {
		return false
	}
	if s.RequiresSalt() && !s.Checks.SaltDone {
		return false
	}
	if s.RequiresSidewalk() && !s.Checks.SidewalkDone {
		return false
	}
	return true
}

func indexOf(stops []models.Stop, id string) int {
	for i := range stops {
		if stops[i].ID == id {
			return i
		}
	}
	return -1
}
