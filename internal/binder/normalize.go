package binder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"routebinder/internal/models"
)

const (
	DefaultState        = "OH"
	DefaultSaltUnit     = "scoops"
	DefaultSidewalkUnit = "bags"
	DefaultPerformer    = "you"
)

// NormalizeStop coerces a partial stop into the canonical shape. idx is the
// stop's position in its source list and seeds the fallback id and order.
// Nested site/schedule fields win over the legacy flat ones.
func NormalizeStop(in models.StopInput, idx int) models.Stop {
	meta := valueOr(in.Meta)
	sheet := valueOr(in.Sheet)
	site := valueOr(in.Site)
	geo := valueOr(site.Geo)
	schedule := valueOr(in.Schedule)
	work := valueOr(in.Work)
	plow := valueOr(work.Plow)
	salt := valueOr(work.Salt)
	sidewalk := valueOr(work.Sidewalk)
	satellite := valueOr(work.Satellite)
	progress := valueOr(in.Progress)
	checks := valueOr(in.Checks)

	id := strings.TrimSpace(in.ID.String())
	if id == "" {
		id = fmt.Sprintf("stop_%d", idx+1)
	}
	order := (idx + 1) * 10
	if in.Order != nil {
		order = *in.Order
	}

	legend := make([]models.LegendEntry, len(sheet.Legend))
	copy(legend, sheet.Legend)

	return models.Stop{
		ID:    id,
		Order: order,
		Meta: models.StopMeta{
			Injected: meta.Injected,
			Assist:   meta.Assist,
		},
		Sheet: models.Sheet{
			ImageSrc: sheet.ImageSrc,
			Legend:   legend,
		},
		Site: models.Site{
			RouteNumber: firstNonEmpty(site.RouteNumber.String(), in.RouteNumber.String()),
			SlangName:   firstNonEmpty(site.SlangName, in.SlangName),
			Address:     firstNonEmpty(site.Address, in.Address),
			City:        firstNonEmpty(site.City, in.City),
			State:       firstNonEmpty(site.State, in.State, DefaultState),
			Zip:         firstNonEmpty(site.Zip, in.Zip),
			Geo: models.Geo{
				Lat:    finiteOrNil(geo.Lat),
				Lon:    finiteOrNil(geo.Lon),
				Label:  geo.Label,
				Source: geo.Source,
			},
		},
		Schedule: models.Schedule{
			ServiceDays:         firstNonEmpty(schedule.ServiceDays, in.ServiceDays),
			FirstCompletionTime: firstNonEmpty(schedule.FirstCompletionTime, in.FirstCompletionTime),
			TimeOpen:            firstNonEmpty(schedule.TimeOpen, in.TimeOpen),
			TimeClosed:          firstNonEmpty(schedule.TimeClosed, in.TimeClosed),
		},
		Work: models.Work{
			Plow: models.Plow{
				TargetInches: finiteOrNil(plow.TargetInches),
				Notes:        plow.Notes,
			},
			Salt:     normalizeMaterial(salt, DefaultSaltUnit),
			Sidewalk: normalizeMaterial(sidewalk, DefaultSidewalkUnit),
			Satellite: models.Satellite{
				Salt: satellite.Salt,
			},
		},
		SpecialNotes: in.SpecialNotes,
		Progress:     normalizeProgress(progress),
		Checks: models.Checks{
			PlowDone:         checks.PlowDone,
			SaltDone:         checks.SaltDone,
			SidewalkDone:     checks.SidewalkDone,
			SatelliteChecked: checks.SatelliteChecked,
			PhotoCaptured:    checks.PhotoCaptured,
		},
		Notes: in.Notes,
	}
}

func normalizeMaterial(m models.MaterialInput, unit string) models.Material {
	return models.Material{
		Product:     m.Product,
		Amount:      finiteOrNil(m.Amount),
		Unit:        firstNonEmpty(m.Unit, unit),
		PerformedBy: firstNonEmpty(m.PerformedBy, DefaultPerformer),
	}
}

// normalizeProgress keeps completion only when arrival is stamped, and a
// duration only when completion is stamped
func normalizeProgress(p models.ProgressInput) models.Progress {
	out := models.Progress{}
	if p.ArrivedAtTs == nil {
		return out
	}
	arrived := *p.ArrivedAtTs
	out.ArrivedAtTs = &arrived
	out.ArrivedAt = p.ArrivedAt
	if p.CompleteAtTs == nil {
		return out
	}
	complete := *p.CompleteAtTs
	out.CompleteAtTs = &complete
	out.CompleteAt = p.CompleteAt
	if p.DurationSec != nil && *p.DurationSec >= 0 {
		out.DurationSec = *p.DurationSec
	}
	return out
}

// NormalizeInboxItem fills the id and title of a raw inbox item and makes
// sure the payload is a JSON object
func NormalizeInboxItem(raw models.InboxItem, idx int) models.InboxItem {
	out := raw
	out.ID = strings.TrimSpace(raw.ID)
	if out.ID == "" {
		out.ID = fmt.Sprintf("inbox_%d", idx+1)
	}
	if out.Title == "" {
		out.Title = "Inbox"
	}
	payload := bytes.TrimSpace(raw.Payload)
	if len(payload) == 0 || payload[0] != '{' || !json.Valid(payload) {
		out.Payload = json.RawMessage("{}")
	} else {
		out.Payload = append(json.RawMessage(nil), payload...)
	}
	return out
}

// NormalizeStops normalizes a list, using each element's position as idx
func NormalizeStops(in []models.StopInput) []models.Stop {
	out := make([]models.Stop, 0, len(in))
	for i, s := range in {
		out = append(out, NormalizeStop(s, i))
	}
	return out
}

// NormalizeInbox normalizes a list of inbox items
func NormalizeInbox(in []models.InboxItem) []models.InboxItem {
	out := make([]models.InboxItem, 0, len(in))
	for i, it := range in {
		out = append(out, NormalizeInboxItem(it, i))
	}
	return out
}

func valueOr[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

func finiteOrNil(f *float64) *float64 {
	if !models.IsFinite(f) {
		return nil
	}
	v := *f
	return &v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
