package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexString accepts either a JSON string or a JSON number. Route numbers
// and ids arrive both ways from dispatch sheets. Other JSON types decode to
// the empty string.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		// booleans, objects and arrays carry no usable text
		return nil
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// StopInput is the loosely-shaped form a stop arrives in: bootstrap
// payloads, stored snapshots and inbox conversions. Every field is optional
// and legacy flat site/schedule fields sit next to the nested sections.
type StopInput struct {
	ID    FlexString `json:"id,omitempty"`
	Order *int       `json:"order,omitempty"`

	Meta     *StopMetaInput `json:"meta,omitempty"`
	Sheet    *SheetInput    `json:"sheet,omitempty"`
	Site     *SiteInput     `json:"site,omitempty"`
	Schedule *ScheduleInput `json:"schedule,omitempty"`
	Work     *WorkInput     `json:"work,omitempty"`
	Progress *ProgressInput `json:"progress,omitempty"`
	Checks   *ChecksInput   `json:"checks,omitempty"`

	SpecialNotes string `json:"specialNotes,omitempty"`
	Notes        string `json:"notes,omitempty"`

	// Legacy flat fields
	RouteNumber         FlexString `json:"routeNumber,omitempty"`
	SlangName           string     `json:"slangName,omitempty"`
	Address             string     `json:"address,omitempty"`
	City                string     `json:"city,omitempty"`
	State               string     `json:"state,omitempty"`
	Zip                 string     `json:"zip,omitempty"`
	ServiceDays         string     `json:"serviceDays,omitempty"`
	FirstCompletionTime string     `json:"firstCompletionTime,omitempty"`
	TimeOpen            string     `json:"timeOpen,omitempty"`
	TimeClosed          string     `json:"timeClosed,omitempty"`
}

func (in *StopInput) UnmarshalJSON(b []byte) error {
	type plain StopInput
	aux := struct {
		*plain
		Order json.RawMessage `json:"order"`
	}{plain: (*plain)(in)}
	if err := DecodeLenient(b, &aux); err != nil {
		return err
	}
	in.Order = flexInt(aux.Order)
	return nil
}

type StopMetaInput struct {
	Injected bool `json:"injected,omitempty"`
	Assist   bool `json:"assist,omitempty"`
}

type SheetInput struct {
	ImageSrc string        `json:"imageSrc,omitempty"`
	Legend   []LegendEntry `json:"legend,omitempty"`
}

type SiteInput struct {
	RouteNumber FlexString `json:"routeNumber,omitempty"`
	SlangName   string     `json:"slangName,omitempty"`
	Address     string     `json:"address,omitempty"`
	City        string     `json:"city,omitempty"`
	State       string     `json:"state,omitempty"`
	Zip         string     `json:"zip,omitempty"`
	Geo         *GeoInput  `json:"geo,omitempty"`
}

type GeoInput struct {
	Lat    *float64 `json:"lat,omitempty"`
	Lon    *float64 `json:"lon,omitempty"`
	Label  string   `json:"label,omitempty"`
	Source string   `json:"source,omitempty"`
}

// Lat and Lon take numbers or numeric strings; anything else is dropped
func (g *GeoInput) UnmarshalJSON(b []byte) error {
	type plain GeoInput
	aux := struct {
		*plain
		Lat json.RawMessage `json:"lat"`
		Lon json.RawMessage `json:"lon"`
	}{plain: (*plain)(g)}
	if err := DecodeLenient(b, &aux); err != nil {
		return err
	}
	g.Lat, g.Lon = flexFloat(aux.Lat), flexFloat(aux.Lon)
	return nil
}

type ScheduleInput struct {
	ServiceDays         string `json:"serviceDays,omitempty"`
	FirstCompletionTime string `json:"firstCompletionTime,omitempty"`
	TimeOpen            string `json:"timeOpen,omitempty"`
	TimeClosed          string `json:"timeClosed,omitempty"`
}

type WorkInput struct {
	Plow      *PlowInput      `json:"plow,omitempty"`
	Salt      *MaterialInput  `json:"salt,omitempty"`
	Sidewalk  *MaterialInput  `json:"sidewalk,omitempty"`
	Satellite *SatelliteInput `json:"satellite,omitempty"`
}

type PlowInput struct {
	TargetInches *float64 `json:"targetInches,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

func (p *PlowInput) UnmarshalJSON(b []byte) error {
	type plain PlowInput
	aux := struct {
		*plain
		TargetInches json.RawMessage `json:"targetInches"`
	}{plain: (*plain)(p)}
	if err := DecodeLenient(b, &aux); err != nil {
		return err
	}
	p.TargetInches = flexFloat(aux.TargetInches)
	return nil
}

type MaterialInput struct {
	Product     string   `json:"product,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	PerformedBy string   `json:"performedBy,omitempty"`
}

func (m *MaterialInput) UnmarshalJSON(b []byte) error {
	type plain MaterialInput
	aux := struct {
		*plain
		Amount json.RawMessage `json:"amount"`
	}{plain: (*plain)(m)}
	if err := DecodeLenient(b, &aux); err != nil {
		return err
	}
	m.Amount = flexFloat(aux.Amount)
	return nil
}

type SatelliteInput struct {
	Salt string `json:"salt,omitempty"`
}

type ProgressInput struct {
	ArrivedAt    string `json:"arrivedAt,omitempty"`
	ArrivedAtTs  *int64 `json:"arrivedAtTs,omitempty"`
	CompleteAt   string `json:"completeAt,omitempty"`
	CompleteAtTs *int64 `json:"completeAtTs,omitempty"`
	DurationSec  *int64 `json:"durationSec,omitempty"`
}

func (p *ProgressInput) UnmarshalJSON(b []byte) error {
	type plain ProgressInput
	aux := struct {
		*plain
		ArrivedAtTs  json.RawMessage `json:"arrivedAtTs"`
		CompleteAtTs json.RawMessage `json:"completeAtTs"`
		DurationSec  json.RawMessage `json:"durationSec"`
	}{plain: (*plain)(p)}
	if err := DecodeLenient(b, &aux); err != nil {
		return err
	}
	p.ArrivedAtTs = FlexInt64(aux.ArrivedAtTs)
	p.CompleteAtTs = FlexInt64(aux.CompleteAtTs)
	p.DurationSec = FlexInt64(aux.DurationSec)
	return nil
}

type ChecksInput struct {
	PlowDone         bool `json:"plowDone,omitempty"`
	SaltDone         bool `json:"saltDone,omitempty"`
	SidewalkDone     bool `json:"sidewalkDone,omitempty"`
	SatelliteChecked bool `json:"satelliteChecked,omitempty"`
	PhotoCaptured    bool `json:"photoCaptured,omitempty"`
}

// AsInput converts a canonical stop back into ingestion form
func (s Stop) AsInput() StopInput {
	order := s.Order
	duration := s.Progress.DurationSec
	return StopInput{
		ID:    FlexString(s.ID),
		Order: &order,
		Meta:  &StopMetaInput{Injected: s.Meta.Injected, Assist: s.Meta.Assist},
		Sheet: &SheetInput{ImageSrc: s.Sheet.ImageSrc, Legend: s.Sheet.Legend},
		Site: &SiteInput{
			RouteNumber: FlexString(s.Site.RouteNumber),
			SlangName:   s.Site.SlangName,
			Address:     s.Site.Address,
			City:        s.Site.City,
			State:       s.Site.State,
			Zip:         s.Site.Zip,
			Geo: &GeoInput{
				Lat:    copyFloat(s.Site.Geo.Lat),
				Lon:    copyFloat(s.Site.Geo.Lon),
				Label:  s.Site.Geo.Label,
				Source: s.Site.Geo.Source,
			},
		},
		Schedule: &ScheduleInput{
			ServiceDays:         s.Schedule.ServiceDays,
			FirstCompletionTime: s.Schedule.FirstCompletionTime,
			TimeOpen:            s.Schedule.TimeOpen,
			TimeClosed:          s.Schedule.TimeClosed,
		},
		Work: &WorkInput{
			Plow:      &PlowInput{TargetInches: copyFloat(s.Work.Plow.TargetInches), Notes: s.Work.Plow.Notes},
			Salt:      s.Work.Salt.asInput(),
			Sidewalk:  s.Work.Sidewalk.asInput(),
			Satellite: &SatelliteInput{Salt: s.Work.Satellite.Salt},
		},
		Progress: &ProgressInput{
			ArrivedAt:    s.Progress.ArrivedAt,
			ArrivedAtTs:  copyInt(s.Progress.ArrivedAtTs),
			CompleteAt:   s.Progress.CompleteAt,
			CompleteAtTs: copyInt(s.Progress.CompleteAtTs),
			DurationSec:  &duration,
		},
		Checks: &ChecksInput{
			PlowDone:         s.Checks.PlowDone,
			SaltDone:         s.Checks.SaltDone,
			SidewalkDone:     s.Checks.SidewalkDone,
			SatelliteChecked: s.Checks.SatelliteChecked,
			PhotoCaptured:    s.Checks.PhotoCaptured,
		},
		SpecialNotes: s.SpecialNotes,
		Notes:        s.Notes,
	}
}

func (m Material) asInput() *MaterialInput {
	return &MaterialInput{
		Product:     m.Product,
		Amount:      copyFloat(m.Amount),
		Unit:        m.Unit,
		PerformedBy: m.PerformedBy,
	}
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func copyInt(i *int64) *int64 {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

// Float returns a pointer to f
func Float(f float64) *float64 { return &f }

// Int64 returns a pointer to i
func Int64(i int64) *int64 { return &i }

// FormatFloat renders a nullable float the way reports expect, empty for nil
func FormatFloat(f *float64) string {
	if !IsFinite(f) {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
