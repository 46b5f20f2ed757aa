package binder

import (
	"regexp"

	"routebinder/internal/models"
)

var (
	windowOpenRe  = regexp.MustCompile(`(?i)open\s*([0-9]{1,2}:[0-9]{2})`)
	windowCloseRe = regexp.MustCompile(`(?i)close\s*([0-9]{1,2}:[0-9]{2})`)
)

// ParseWindow extracts the times from a free-text "Open HH:MM, Close HH:MM"
// window. Missing parts come back empty.
func ParseWindow(window string) (open, closed string) {
	if m := windowOpenRe.FindStringSubmatch(window); m != nil {
		open = m[1]
	}
	if m := windowCloseRe.FindStringSubmatch(window); m != nil {
		closed = m[1]
	}
	return open, closed
}

// StopFromInbox builds an injected stop from an inbox item. Structured
// fields win over flat ones, and the parsed window is the last resort for
// the open/close times. truckID backs a missing route number.
func StopFromInbox(item models.InboxItem, id, truckID string) models.Stop {
	p := item.DecodePayload()
	site := valueOr(p.Site)
	geo := valueOr(site.Geo)
	schedule := valueOr(p.Schedule)
	sheet := valueOr(p.Sheet)
	work := valueOr(p.Work)
	plow := valueOr(work.Plow)
	salt := valueOr(work.Salt)
	sidewalk := valueOr(work.Sidewalk)
	satellite := valueOr(work.Satellite)

	windowOpen, windowClose := ParseWindow(p.Window)

	in := models.StopInput{
		ID:   models.FlexString(id),
		Meta: &models.StopMetaInput{Injected: true, Assist: p.Assist},
		Sheet: &models.SheetInput{
			ImageSrc: firstNonEmpty(sheet.ImageSrc, p.SheetImageSrc),
			Legend:   sheet.Legend,
		},
		Site: &models.SiteInput{
			RouteNumber: models.FlexString(firstNonEmpty(site.RouteNumber.String(), p.RouteNumber.String(), truckID)),
			SlangName:   firstNonEmpty(site.SlangName, p.SlangName, p.Name, item.Title, "Injected stop"),
			Address:     firstNonEmpty(site.Address, p.Address),
			City:        firstNonEmpty(site.City, p.City),
			State:       firstNonEmpty(site.State, p.State),
			Zip:         firstNonEmpty(site.Zip, p.Zip),
			Geo:         &geo,
		},
		Schedule: &models.ScheduleInput{
			ServiceDays:         firstNonEmpty(schedule.ServiceDays, p.ServiceDays),
			FirstCompletionTime: firstNonEmpty(schedule.FirstCompletionTime, p.FirstCompletionTime),
			TimeOpen:            firstNonEmpty(schedule.TimeOpen, p.TimeOpen, windowOpen),
			TimeClosed:          firstNonEmpty(schedule.TimeClosed, p.TimeClosed, windowClose),
		},
		Work: &models.WorkInput{
			Plow: &plow,
			Salt: &models.MaterialInput{
				Product:     firstNonEmpty(salt.Product, p.SaltSpec),
				Amount:      salt.Amount,
				Unit:        salt.Unit,
				PerformedBy: salt.PerformedBy,
			},
			Sidewalk: &models.MaterialInput{
				Product:     firstNonEmpty(sidewalk.Product, p.ShovelSpec),
				Amount:      sidewalk.Amount,
				Unit:        sidewalk.Unit,
				PerformedBy: sidewalk.PerformedBy,
			},
			Satellite: &satellite,
		},
		SpecialNotes: p.SpecialNotes,
	}
	return NormalizeStop(in, 0)
}

// InsertAfter places s right after the stop with id afterID in sorted order,
// or at the end when afterID is not found, and renumbers the list
func InsertAfter(stops []models.Stop, afterID string, s models.Stop) []models.Stop {
	sorted := SortStops(stops)
	at := len(sorted)
	if i := indexOf(sorted, afterID); i >= 0 {
		at = i + 1
	}
	out := make([]models.Stop, 0, len(sorted)+1)
	out = append(out, sorted[:at]...)
	out = append(out, s)
	out = append(out, sorted[at:]...)
	return RenumberOrders(out)
}
