package binder

import (
	"routebinder/internal/models"
)

// ApplyPatch merges p into s section by section and renormalizes the result.
// Non-finite coordinates in the patch become null.
func ApplyPatch(s models.Stop, p models.StopPatch) models.Stop {
	in := s.AsInput()

	if p.Order != nil {
		order := *p.Order
		in.Order = &order
	}
	if p.Meta != nil {
		setBool(&in.Meta.Injected, p.Meta.Injected)
		setBool(&in.Meta.Assist, p.Meta.Assist)
	}
	if p.Sheet != nil {
		setString(&in.Sheet.ImageSrc, p.Sheet.ImageSrc)
		if p.Sheet.Legend != nil {
			in.Sheet.Legend = append([]models.LegendEntry(nil), p.Sheet.Legend...)
		}
	}
	if p.Site != nil {
		applySite(in.Site, p.Site)
	}
	if p.Schedule != nil {
		setString(&in.Schedule.ServiceDays, p.Schedule.ServiceDays)
		setString(&in.Schedule.FirstCompletionTime, p.Schedule.FirstCompletionTime)
		setString(&in.Schedule.TimeOpen, p.Schedule.TimeOpen)
		setString(&in.Schedule.TimeClosed, p.Schedule.TimeClosed)
	}
	if p.Work != nil {
		applyWork(in.Work, p.Work)
	}
	setString(&in.SpecialNotes, p.SpecialNotes)
	if p.Progress != nil {
		setString(&in.Progress.ArrivedAt, p.Progress.ArrivedAt)
		setNullable(&in.Progress.ArrivedAtTs, p.Progress.ArrivedAtTs)
		setString(&in.Progress.CompleteAt, p.Progress.CompleteAt)
		setNullable(&in.Progress.CompleteAtTs, p.Progress.CompleteAtTs)
		if p.Progress.DurationSec != nil {
			d := *p.Progress.DurationSec
			in.Progress.DurationSec = &d
		}
	}
	if p.Checks != nil {
		setBool(&in.Checks.PlowDone, p.Checks.PlowDone)
		setBool(&in.Checks.SaltDone, p.Checks.SaltDone)
		setBool(&in.Checks.SidewalkDone, p.Checks.SidewalkDone)
		setBool(&in.Checks.SatelliteChecked, p.Checks.SatelliteChecked)
		setBool(&in.Checks.PhotoCaptured, p.Checks.PhotoCaptured)
	}
	setString(&in.Notes, p.Notes)

	return NormalizeStop(in, 0)
}

func applySite(site *models.SiteInput, p *models.SitePatch) {
	if p.RouteNumber != nil {
		site.RouteNumber = models.FlexString(*p.RouteNumber)
	}
	setString(&site.SlangName, p.SlangName)
	setString(&site.Address, p.Address)
	setString(&site.City, p.City)
	setString(&site.State, p.State)
	setString(&site.Zip, p.Zip)
	if p.Geo == nil {
		return
	}
	setNullable(&site.Geo.Lat, p.Geo.Lat)
	setNullable(&site.Geo.Lon, p.Geo.Lon)
	setString(&site.Geo.Label, p.Geo.Label)
	setString(&site.Geo.Source, p.Geo.Source)
}

func applyWork(work *models.WorkInput, p *models.WorkPatch) {
	if p.Plow != nil {
		setNullable(&work.Plow.TargetInches, p.Plow.TargetInches)
		setString(&work.Plow.Notes, p.Plow.Notes)
	}
	if p.Salt != nil {
		applyMaterial(work.Salt, p.Salt)
	}
	if p.Sidewalk != nil {
		applyMaterial(work.Sidewalk, p.Sidewalk)
	}
	if p.Satellite != nil {
		setString(&work.Satellite.Salt, p.Satellite.Salt)
	}
}

func applyMaterial(m *models.MaterialInput, p *models.MaterialPatch) {
	setString(&m.Product, p.Product)
	setNullable(&m.Amount, p.Amount)
	setString(&m.Unit, p.Unit)
	setString(&m.PerformedBy, p.PerformedBy)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setNullable[T any](dst **T, src models.Nullable[T]) {
	if !src.Set {
		return
	}
	if src.Value == nil {
		*dst = nil
		return
	}
	v := *src.Value
	*dst = &v
}
