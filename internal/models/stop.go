package models

import "math"

// StopStatus is derived from a stop's progress timestamps, never stored
type StopStatus string

const (
	StopStatusPending  StopStatus = "pending"  // Not arrived yet
	StopStatusArrived  StopStatus = "arrived"  // On site, work unlocked
	StopStatusComplete StopStatus = "complete" // Completion stamped
)

// Stop represents one serviceable location on a truck's route
type Stop struct {
	ID           string   `json:"id"`
	Order        int      `json:"order"`
	Meta         StopMeta `json:"meta"`
	Sheet        Sheet    `json:"sheet"`
	Site         Site     `json:"site"`
	Schedule     Schedule `json:"schedule"`
	Work         Work     `json:"work"`
	SpecialNotes string   `json:"specialNotes"`
	Progress     Progress `json:"progress"`
	Checks       Checks   `json:"checks"`
	Notes        string   `json:"notes"`
}

// StopMeta carries provenance flags
type StopMeta struct {
	Injected bool `json:"injected"` // Added from the inbox at runtime
	Assist   bool `json:"assist"`
}

// Sheet is the reference route sheet for a stop
type Sheet struct {
	ImageSrc string        `json:"imageSrc"`
	Legend   []LegendEntry `json:"legend"`
}

type LegendEntry struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Note  string `json:"note"`
}

type Site struct {
	RouteNumber string `json:"routeNumber"`
	SlangName   string `json:"slangName"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	Zip         string `json:"zip"`
	Geo         Geo    `json:"geo"`
}

// Geo holds a resolved coordinate pair, nil until resolved
type Geo struct {
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Label  string   `json:"label"`
	Source string   `json:"source"`
}

// Schedule values are free-text hints shown to the operator
type Schedule struct {
	ServiceDays         string `json:"serviceDays"`
	FirstCompletionTime string `json:"firstCompletionTime"`
	TimeOpen            string `json:"timeOpen"`
	TimeClosed          string `json:"timeClosed"`
}

type Work struct {
	Plow      Plow      `json:"plow"`
	Salt      Material  `json:"salt"`
	Sidewalk  Material  `json:"sidewalk"`
	Satellite Satellite `json:"satellite"`
}

type Plow struct {
	TargetInches *float64 `json:"targetInches"`
	Notes        string   `json:"notes"`
}

// Material describes a salt or sidewalk application. A nil or zero
// amount means the task has no required material.
type Material struct {
	Product     string   `json:"product"`
	Amount      *float64 `json:"amount"`
	Unit        string   `json:"unit"`
	PerformedBy string   `json:"performedBy"`
}

type Satellite struct {
	Salt string `json:"salt"`
}

// Progress timestamps are epoch milliseconds
type Progress struct {
	ArrivedAt    string `json:"arrivedAt"`
	ArrivedAtTs  *int64 `json:"arrivedAtTs"`
	CompleteAt   string `json:"completeAt"`
	CompleteAtTs *int64 `json:"completeAtTs"`
	DurationSec  int64  `json:"durationSec"`
}

type Checks struct {
	PlowDone         bool `json:"plowDone"`
	SaltDone         bool `json:"saltDone"`
	SidewalkDone     bool `json:"sidewalkDone"`
	SatelliteChecked bool `json:"satelliteChecked"`
	PhotoCaptured    bool `json:"photoCaptured"`
}

// Status derives the stop's lifecycle state from its progress fields
func (s *Stop) Status() StopStatus {
	if s.Progress.CompleteAtTs != nil {
		return StopStatusComplete
	}
	if s.Progress.ArrivedAtTs != nil {
		return StopStatusArrived
	}
	return StopStatusPending
}

// IsComplete returns true once completion has been stamped
func (s *Stop) IsComplete() bool {
	return s.Progress.CompleteAtTs != nil
}

// RequiresSalt returns true when a positive salt amount is specified
func (s *Stop) RequiresSalt() bool {
	return s.Work.Salt.Requires()
}

// RequiresSidewalk returns true when a positive sidewalk amount is specified
func (s *Stop) RequiresSidewalk() bool {
	return s.Work.Sidewalk.Requires()
}

// Requires reports whether the amount is a finite number greater than zero
func (m Material) Requires() bool {
	return IsFinite(m.Amount) && *m.Amount > 0
}

// HasLocation reports whether the pair is usable. Coordinates within one
// degree of the origin on both axes are treated as no location.
func (g Geo) HasLocation() bool {
	if !IsFinite(g.Lat) || !IsFinite(g.Lon) {
		return false
	}
	return !NullIsland(*g.Lat, *g.Lon)
}

// NullIsland reports whether both coordinates are within one degree of 0,0
func NullIsland(lat, lon float64) bool {
	return math.Abs(lat) <= 1 && math.Abs(lon) <= 1
}

// IsFinite returns false for nil, NaN and infinities
func IsFinite(f *float64) bool {
	return f != nil && !math.IsNaN(*f) && !math.IsInf(*f, 0)
}

// AddressLine joins the non-empty address parts with ", "
func (s Site) AddressLine() string {
	line := ""
	for _, part := range []string{s.Address, s.City, s.State, s.Zip} {
		if part == "" {
			continue
		}
		if line != "" {
			line += ", "
		}
		line += part
	}
	return line
}

// DefaultLegend is the route sheet legend printed on every seed sheet
func DefaultLegend() []LegendEntry {
	return []LegendEntry{
		{Key: "noSnow", Label: "No snow", Note: "Red fill"},
		{Key: "snow", Label: "Snow", Note: "Green fill"},
		{Key: "plowHazard", Label: "Plow hazard", Note: "Yellow fill"},
		{Key: "notDone", Label: "Not done", Note: "X mark"},
		{Key: "handicap", Label: "Handicap", Note: "Blue icon"},
		{Key: "vip", Label: "VIP", Note: "Orange icon"},
		{Key: "dumpster", Label: "Dumpster", Note: "Dumpster icon"},
	}
}
