package models

import (
	"bytes"
	"encoding/json"
)

// Nullable distinguishes an absent patch field from one explicitly set to
// null. Set is true whenever the field was present; Value is nil for null.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// SetTo returns a Nullable holding v
func SetTo[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

// SetNull returns a Nullable that clears the target field
func SetNull[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

// StopPatch is a partial update of one stop. Nil sections are left alone;
// present sections are merged key-wise.
type StopPatch struct {
	Order        *int           `json:"order,omitempty"`
	Meta         *MetaPatch     `json:"meta,omitempty"`
	Sheet        *SheetPatch    `json:"sheet,omitempty"`
	Site         *SitePatch     `json:"site,omitempty"`
	Schedule     *SchedulePatch `json:"schedule,omitempty"`
	Work         *WorkPatch     `json:"work,omitempty"`
	SpecialNotes *string        `json:"specialNotes,omitempty"`
	Progress     *ProgressPatch `json:"progress,omitempty"`
	Checks       *ChecksPatch   `json:"checks,omitempty"`
	Notes        *string        `json:"notes,omitempty"`
}

type MetaPatch struct {
	Injected *bool `json:"injected,omitempty"`
	Assist   *bool `json:"assist,omitempty"`
}

type SheetPatch struct {
	ImageSrc *string       `json:"imageSrc,omitempty"`
	Legend   []LegendEntry `json:"legend,omitempty"`
}

type SitePatch struct {
	RouteNumber *string   `json:"routeNumber,omitempty"`
	SlangName   *string   `json:"slangName,omitempty"`
	Address     *string   `json:"address,omitempty"`
	City        *string   `json:"city,omitempty"`
	State       *string   `json:"state,omitempty"`
	Zip         *string   `json:"zip,omitempty"`
	Geo         *GeoPatch `json:"geo,omitempty"`
}

// GeoPatch coordinates that are not finite are stored as null
type GeoPatch struct {
	Lat    Nullable[float64] `json:"lat"`
	Lon    Nullable[float64] `json:"lon"`
	Label  *string           `json:"label,omitempty"`
	Source *string           `json:"source,omitempty"`
}

type SchedulePatch struct {
	ServiceDays         *string `json:"serviceDays,omitempty"`
	FirstCompletionTime *string `json:"firstCompletionTime,omitempty"`
	TimeOpen            *string `json:"timeOpen,omitempty"`
	TimeClosed          *string `json:"timeClosed,omitempty"`
}

type WorkPatch struct {
	Plow      *PlowPatch      `json:"plow,omitempty"`
	Salt      *MaterialPatch  `json:"salt,omitempty"`
	Sidewalk  *MaterialPatch  `json:"sidewalk,omitempty"`
	Satellite *SatellitePatch `json:"satellite,omitempty"`
}

type PlowPatch struct {
	TargetInches Nullable[float64] `json:"targetInches"`
	Notes        *string           `json:"notes,omitempty"`
}

type MaterialPatch struct {
	Product     *string           `json:"product,omitempty"`
	Amount      Nullable[float64] `json:"amount"`
	Unit        *string           `json:"unit,omitempty"`
	PerformedBy *string           `json:"performedBy,omitempty"`
}

type SatellitePatch struct {
	Salt *string `json:"salt,omitempty"`
}

type ProgressPatch struct {
	ArrivedAt    *string         `json:"arrivedAt,omitempty"`
	ArrivedAtTs  Nullable[int64] `json:"arrivedAtTs"`
	CompleteAt   *string         `json:"completeAt,omitempty"`
	CompleteAtTs Nullable[int64] `json:"completeAtTs"`
	DurationSec  *int64          `json:"durationSec,omitempty"`
}

type ChecksPatch struct {
	PlowDone         *bool `json:"plowDone,omitempty"`
	SaltDone         *bool `json:"saltDone,omitempty"`
	SidewalkDone     *bool `json:"sidewalkDone,omitempty"`
	SatelliteChecked *bool `json:"satelliteChecked,omitempty"`
	PhotoCaptured    *bool `json:"photoCaptured,omitempty"`
}

// Bool returns a pointer to b
func Bool(b bool) *bool { return &b }

// String returns a pointer to s
func String(s string) *string { return &s }
