package export

import (
	"encoding/json"
	"math"
	"regexp"
	"time"

	"routebinder/internal/models"
)

const PayloadVersion = 1

// Input is the slice of binder state an export is computed from
type Input struct {
	TruckID       string
	RouteName     string
	RouteLabel    string
	Stops         []models.Stop // sorted by order
	InboxItems    []models.InboxItem
	RouteDoneAtTs *int64
}

// Summary is the run roll-up shown at route end and written into exports
type Summary struct {
	Truck      string `json:"truck"`
	RouteName  string `json:"routeName"`
	RouteLabel string `json:"routeLabel"`

	AllComplete    bool `json:"allComplete"`
	TotalStops     int  `json:"totalStops"`
	CompletedStops int  `json:"completedStops"`

	StartedAtTs *int64 `json:"startedAtTs"`
	EndedAtTs   *int64 `json:"endedAtTs"`

	RouteSpanSec int64 `json:"routeSpanSec"`
	OnSiteSec    int64 `json:"onSiteSec"`

	InjectedCount int `json:"injectedCount"`
	AssistCount   int `json:"assistCount"`

	SaltStops     int     `json:"saltStops"`
	SidewalkStops int     `json:"sidewalkStops"`
	SaltTotal     float64 `json:"saltTotal"`
	SidewalkTotal float64 `json:"sidewalkTotal"`

	InboxRemaining int `json:"inboxRemaining"`
}

// Summarize rolls up a run. It returns nil when there are no stops.
//
// The run starts at the earliest arrival and ends at the route-done stamp,
// or the latest completion when the route was never marked done.
func Summarize(in Input) *Summary {
	if len(in.Stops) == 0 {
		return nil
	}
	sum := &Summary{
		Truck:          in.TruckID,
		RouteName:      in.RouteName,
		RouteLabel:     in.RouteLabel,
		TotalStops:     len(in.Stops),
		InboxRemaining: len(in.InboxItems),
	}

	var firstArrive, lastComplete *int64
	for i := range in.Stops {
		s := &in.Stops[i]
		if ts := s.Progress.ArrivedAtTs; ts != nil && (firstArrive == nil || *ts < *firstArrive) {
			v := *ts
			firstArrive = &v
		}
		if s.IsComplete() {
			sum.CompletedStops++
			sum.OnSiteSec += s.Progress.DurationSec
			if ts := s.Progress.CompleteAtTs; lastComplete == nil || *ts > *lastComplete {
				v := *ts
				lastComplete = &v
			}
		}
		if s.Meta.Injected {
			sum.InjectedCount++
		}
		if s.Meta.Assist {
			sum.AssistCount++
		}
		if s.RequiresSalt() {
			sum.SaltStops++
		}
		if s.RequiresSidewalk() {
			sum.SidewalkStops++
		}
		if models.IsFinite(s.Work.Salt.Amount) {
			sum.SaltTotal += *s.Work.Salt.Amount
		}
		if models.IsFinite(s.Work.Sidewalk.Amount) {
			sum.SidewalkTotal += *s.Work.Sidewalk.Amount
		}
	}
	sum.AllComplete = sum.CompletedStops == sum.TotalStops

	end := lastComplete
	if in.RouteDoneAtTs != nil {
		v := *in.RouteDoneAtTs
		end = &v
	}
	sum.StartedAtTs = firstArrive
	sum.EndedAtTs = end
	if firstArrive != nil && end != nil && *end >= *firstArrive {
		sum.RouteSpanSec = int64(math.Floor(float64(*end-*firstArrive) / 1000))
	}
	return sum
}

// Payload is the export document, versioned for later readers
type Payload struct {
	Version      int    `json:"version"`
	ExportedAtTs int64  `json:"exportedAtTs"`
	TruckID      string `json:"truckId"`
	RouteName    string `json:"routeName"`
	RouteLabel   string `json:"routeLabel"`

	RouteDoneAtTs *int64 `json:"routeDoneAtTs"`
	StartedAtTs   *int64 `json:"startedAtTs"`
	EndedAtTs     *int64 `json:"endedAtTs"`

	Summary        *Summary           `json:"summary"`
	InboxRemaining []models.InboxItem `json:"inboxRemaining"`
	Stops          []Row              `json:"stops"`
}

// BuildPayload assembles the export document. Inbox payloads are passed
// through untouched.
func BuildPayload(in Input, now time.Time) Payload {
	sum := Summarize(in)
	p := Payload{
		Version:        PayloadVersion,
		ExportedAtTs:   now.UnixMilli(),
		TruckID:        in.TruckID,
		RouteName:      in.RouteName,
		RouteLabel:     in.RouteLabel,
		RouteDoneAtTs:  in.RouteDoneAtTs,
		Summary:        sum,
		InboxRemaining: make([]models.InboxItem, 0, len(in.InboxItems)),
		Stops:          make([]Row, 0, len(in.Stops)),
	}
	if sum != nil {
		p.StartedAtTs = sum.StartedAtTs
		p.EndedAtTs = sum.EndedAtTs
	}
	for _, it := range in.InboxItems {
		if len(it.Payload) == 0 {
			it.Payload = json.RawMessage("{}")
		}
		p.InboxRemaining = append(p.InboxRemaining, it)
	}
	for _, s := range in.Stops {
		p.Stops = append(p.Stops, StopRow(s))
	}
	return p
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Filename names an export file after the route, the truck and the run date.
// The date comes from the first known of start, end, route-done and export
// time.
func Filename(p Payload, ext string) string {
	ts := p.ExportedAtTs
	for _, t := range []*int64{p.StartedAtTs, p.EndedAtTs, p.RouteDoneAtTs} {
		if t != nil && *t != 0 {
			ts = *t
			break
		}
	}
	name := "route_" + p.TruckID
	if p.RouteName != "" {
		name = whitespaceRe.ReplaceAllString(p.RouteName, "_")
	}
	return name + "_" + p.TruckID + "_" + DateStamp(ts) + "." + ext
}

// DateStamp formats epoch milliseconds as a local YYYYMMDD date
func DateStamp(ts int64) string {
	return time.UnixMilli(ts).Format("20060102")
}
