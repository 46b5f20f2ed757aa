package export

import (
	"bytes"
	"encoding/json"
	"strconv"

	"routebinder/internal/models"
)

// Cell is one column of a flat export row
type Cell struct {
	Key   string
	Value any
}

// Row is a flat, ordered record. Column order is fixed so the CSV header and
// the JSON object keys line up.
type Row []Cell

// Keys returns the column names in order
func (r Row) Keys() []string {
	keys := make([]string, len(r))
	for i, c := range r {
		keys[i] = c.Key
	}
	return keys
}

// Get returns the value of the named column
func (r Row) Get(key string) (any, bool) {
	for _, c := range r {
		if c.Key == key {
			return c.Value, true
		}
	}
	return nil, false
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(c.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// StopRow flattens a stop into one export row. Missing numbers export as "".
func StopRow(s models.Stop) Row {
	return Row{
		{"id", s.ID},
		{"order", s.Order},
		{"routeNumber", s.Site.RouteNumber},
		{"name", s.Site.SlangName},
		{"address", s.Site.Address},
		{"city", s.Site.City},
		{"state", s.Site.State},
		{"zip", s.Site.Zip},
		{"lat", floatOrBlank(s.Site.Geo.Lat)},
		{"lon", floatOrBlank(s.Site.Geo.Lon)},
		{"geoLabel", s.Site.Geo.Label},
		{"geoSource", s.Site.Geo.Source},
		{"timeOpen", s.Schedule.TimeOpen},
		{"timeClosed", s.Schedule.TimeClosed},
		{"serviceDays", s.Schedule.ServiceDays},
		{"firstCompletionTime", s.Schedule.FirstCompletionTime},
		{"arrivedAt", s.Progress.ArrivedAt},
		{"arrivedAtTs", intOrBlank(s.Progress.ArrivedAtTs)},
		{"completeAt", s.Progress.CompleteAt},
		{"completeAtTs", intOrBlank(s.Progress.CompleteAtTs)},
		{"durationSec", s.Progress.DurationSec},
		{"injected", s.Meta.Injected},
		{"assist", s.Meta.Assist},
		{"plowTargetInches", floatOrBlank(s.Work.Plow.TargetInches)},
		{"plowNotes", s.Work.Plow.Notes},
		{"saltProduct", s.Work.Salt.Product},
		{"saltAmount", floatOrBlank(s.Work.Salt.Amount)},
		{"saltUnit", s.Work.Salt.Unit},
		{"saltPerformedBy", s.Work.Salt.PerformedBy},
		{"sidewalkProduct", s.Work.Sidewalk.Product},
		{"sidewalkAmount", floatOrBlank(s.Work.Sidewalk.Amount)},
		{"sidewalkUnit", s.Work.Sidewalk.Unit},
		{"sidewalkPerformedBy", s.Work.Sidewalk.PerformedBy},
		{"satelliteSalt", s.Work.Satellite.Salt},
		{"plowDone", s.Checks.PlowDone},
		{"saltDone", s.Checks.SaltDone},
		{"sidewalkDone", s.Checks.SidewalkDone},
		{"satelliteChecked", s.Checks.SatelliteChecked},
		{"photoCaptured", s.Checks.PhotoCaptured},
		{"specialNotes", s.SpecialNotes},
		{"notes", s.Notes},
		{"sheetImageSrc", s.Sheet.ImageSrc},
	}
}

func floatOrBlank(f *float64) any {
	if !models.IsFinite(f) {
		return ""
	}
	return *f
}

func intOrBlank(i *int64) any {
	if i == nil {
		return ""
	}
	return *i
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
