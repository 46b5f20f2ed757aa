package models

import "strings"

// Truck represents the identity a truck key resolves to
type Truck struct {
	ID           string   `json:"id"`
	RouteName    string   `json:"routeName"`
	RouteLabel   string   `json:"routeLabel"`
	RouteNumbers []string `json:"routeNumbers,omitempty"`
}

// TruckInput is the wire form of a truck in a bootstrap payload
type TruckInput struct {
	ID           FlexString   `json:"id"`
	RouteName    string       `json:"routeName"`
	RouteLabel   string       `json:"routeLabel"`
	RouteNumbers []FlexString `json:"routeNumbers,omitempty"`
}

// Truck converts the wire form, defaulting the route name to "Route <id>"
func (t TruckInput) Truck() Truck {
	id := strings.TrimSpace(t.ID.String())
	out := Truck{
		ID:         id,
		RouteName:  t.RouteName,
		RouteLabel: t.RouteLabel,
	}
	if out.RouteName == "" && id != "" {
		out.RouteName = "Route " + id
	}
	for _, n := range t.RouteNumbers {
		out.RouteNumbers = append(out.RouteNumbers, n.String())
	}
	return out
}

// AllowedRoutes returns the set of route numbers this truck may work.
// A truck with no explicit route numbers works the route matching its id.
func (t Truck) AllowedRoutes() map[string]bool {
	allowed := make(map[string]bool)
	for _, n := range t.RouteNumbers {
		allowed[n] = true
	}
	if len(allowed) == 0 {
		allowed[t.ID] = true
	}
	return allowed
}

// NormalizeTruckKey upper-cases a key and strips everything outside A-Z0-9,
// so "rb948-8f2k 9d7q" and "RB9488F2K9D7Q" are the same key
func NormalizeTruckKey(input string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(input) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BootstrapPayload is the response of GET /api/hub/bootstrap
type BootstrapPayload struct {
	OK         bool        `json:"ok"`
	Error      string      `json:"error,omitempty"`
	Truck      *TruckInput `json:"truck,omitempty"`
	Stops      []StopInput `json:"stops"`
	InboxItems []InboxItem `json:"inboxItems"`
}

// Input converts a truck to its wire form
func (t Truck) Input() *TruckInput {
	out := &TruckInput{
		ID:         FlexString(t.ID),
		RouteName:  t.RouteName,
		RouteLabel: t.RouteLabel,
	}
	for _, n := range t.RouteNumbers {
		out.RouteNumbers = append(out.RouteNumbers, FlexString(n))
	}
	return out
}
