package binder

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routebinder/internal/models"
)

func TestNormalizeStopDefaults(t *testing.T) {
	s := NormalizeStop(models.StopInput{}, 2)

	assert.Equal(t, "stop_3", s.ID)
	assert.Equal(t, 30, s.Order)
	assert.Equal(t, "OH", s.Site.State)
	assert.Equal(t, "scoops", s.Work.Salt.Unit)
	assert.Equal(t, "bags", s.Work.Sidewalk.Unit)
	assert.Equal(t, "you", s.Work.Salt.PerformedBy)
	assert.Equal(t, "you", s.Work.Sidewalk.PerformedBy)
	assert.Nil(t, s.Site.Geo.Lat)
	assert.Nil(t, s.Work.Salt.Amount)
	assert.NotNil(t, s.Sheet.Legend)
	assert.Empty(t, s.Sheet.Legend)
	assert.Equal(t, models.StopStatusPending, s.Status())
}

func TestNormalizeStopNestedWinsOverFlat(t *testing.T) {
	raw := `{
		"routeNumber": 900,
		"address": "flat address",
		"city": "Flatville",
		"site": {"routeNumber": "948", "address": "1700 Center Ridge Rd"},
		"timeOpen": "04:00",
		"schedule": {"timeClosed": "17:00"}
	}`
	var in models.StopInput
	require.NoError(t, json.Unmarshal([]byte(raw), &in))

	s := NormalizeStop(in, 0)
	assert.Equal(t, "948", s.Site.RouteNumber)
	assert.Equal(t, "1700 Center Ridge Rd", s.Site.Address)
	assert.Equal(t, "Flatville", s.Site.City)
	assert.Equal(t, "04:00", s.Schedule.TimeOpen)
	assert.Equal(t, "17:00", s.Schedule.TimeClosed)
}

func TestNormalizeStopDropsNonFiniteNumbers(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)
	in := models.StopInput{
		Site: &models.SiteInput{Geo: &models.GeoInput{Lat: &nan, Lon: &inf}},
		Work: &models.WorkInput{Salt: &models.MaterialInput{Amount: &nan}},
	}
	s := NormalizeStop(in, 0)
	assert.Nil(t, s.Site.Geo.Lat)
	assert.Nil(t, s.Site.Geo.Lon)
	assert.Nil(t, s.Work.Salt.Amount)
}

func TestNormalizeStopProgressInvariant(t *testing.T) {
	t.Run("completion without arrival is dropped", func(t *testing.T) {
		s := NormalizeStop(models.StopInput{Progress: &models.ProgressInput{
			CompleteAtTs: models.Int64(5000),
			CompleteAt:   "10:00",
			DurationSec:  models.Int64(12),
		}}, 0)
		assert.Nil(t, s.Progress.CompleteAtTs)
		assert.Empty(t, s.Progress.CompleteAt)
		assert.Zero(t, s.Progress.DurationSec)
		assert.Equal(t, models.StopStatusPending, s.Status())
	})

	t.Run("duration only when complete", func(t *testing.T) {
		s := NormalizeStop(models.StopInput{Progress: &models.ProgressInput{
			ArrivedAtTs: models.Int64(1000),
			DurationSec: models.Int64(99),
		}}, 0)
		assert.Equal(t, models.StopStatusArrived, s.Status())
		assert.Zero(t, s.Progress.DurationSec)
	})

	t.Run("complete keeps duration", func(t *testing.T) {
		s := NormalizeStop(models.StopInput{Progress: &models.ProgressInput{
			ArrivedAtTs:  models.Int64(1000),
			CompleteAtTs: models.Int64(61000),
			DurationSec:  models.Int64(60),
		}}, 0)
		assert.Equal(t, models.StopStatusComplete, s.Status())
		assert.Equal(t, int64(60), s.Progress.DurationSec)
	})
}

func TestNormalizeStopIsIdempotent(t *testing.T) {
	inputs := []models.StopInput{
		{},
		{ID: "x", RouteNumber: "948", Address: "25000 Lorain Rd", TimeOpen: "18:00"},
		{
			Order: intPtr(70),
			Meta:  &models.StopMetaInput{Injected: true},
			Site: &models.SiteInput{
				RouteNumber: "900",
				Geo:         &models.GeoInput{Lat: models.Float(41.3), Lon: models.Float(-81.8), Label: "Strongsville"},
			},
			Sheet:    &models.SheetInput{Legend: models.DefaultLegend()},
			Work:     &models.WorkInput{Salt: &models.MaterialInput{Product: "ECO2", Amount: models.Float(1.15)}},
			Progress: &models.ProgressInput{ArrivedAtTs: models.Int64(1), CompleteAtTs: models.Int64(2001), DurationSec: models.Int64(2)},
			Checks:   &models.ChecksInput{PlowDone: true},
		},
	}
	for i, in := range inputs {
		once := NormalizeStop(in, i)
		twice := NormalizeStop(once.AsInput(), i)
		assert.Equal(t, once, twice)
	}
}

func TestNormalizeInboxItem(t *testing.T) {
	it := NormalizeInboxItem(models.InboxItem{Payload: json.RawMessage(`"nope"`)}, 4)
	assert.Equal(t, "inbox_5", it.ID)
	assert.Equal(t, "Inbox", it.Title)
	assert.JSONEq(t, `{}`, string(it.Payload))

	kept := NormalizeInboxItem(models.InboxItem{ID: "inbox_1", Title: "Add stop", Payload: json.RawMessage(`{"name":"x"}`)}, 0)
	assert.Equal(t, "inbox_1", kept.ID)
	assert.JSONEq(t, `{"name":"x"}`, string(kept.Payload))
}

func TestApplyPatch(t *testing.T) {
	base := NormalizeStop(models.StopInput{
		ID:    "a",
		Order: intPtr(10),
		Site:  &models.SiteInput{Address: "1 Main", Geo: &models.GeoInput{Lat: models.Float(41), Lon: models.Float(-81)}},
		Work:  &models.WorkInput{Salt: &models.MaterialInput{Product: "ECO2", Amount: models.Float(1)}},
	}, 0)

	t.Run("merges one level into work", func(t *testing.T) {
		out := ApplyPatch(base, models.StopPatch{
			Work: &models.WorkPatch{Salt: &models.MaterialPatch{Amount: models.SetTo(2.5)}},
		})
		assert.Equal(t, "ECO2", out.Work.Salt.Product)
		require.NotNil(t, out.Work.Salt.Amount)
		assert.Equal(t, 2.5, *out.Work.Salt.Amount)
		assert.Equal(t, "1 Main", out.Site.Address)
	})

	t.Run("explicit null clears", func(t *testing.T) {
		out := ApplyPatch(base, models.StopPatch{
			Work: &models.WorkPatch{Salt: &models.MaterialPatch{Amount: models.SetNull[float64]()}},
		})
		assert.Nil(t, out.Work.Salt.Amount)
		assert.False(t, out.RequiresSalt())
	})

	t.Run("non-finite coordinates become null", func(t *testing.T) {
		out := ApplyPatch(base, models.StopPatch{
			Site: &models.SitePatch{Geo: &models.GeoPatch{Lat: models.SetTo(math.NaN()), Lon: models.SetTo(math.Inf(-1))}},
		})
		assert.Nil(t, out.Site.Geo.Lat)
		assert.Nil(t, out.Site.Geo.Lon)
	})

	t.Run("absent geo fields untouched", func(t *testing.T) {
		out := ApplyPatch(base, models.StopPatch{
			Site: &models.SitePatch{Geo: &models.GeoPatch{Label: models.String("HQ")}},
		})
		require.NotNil(t, out.Site.Geo.Lat)
		assert.Equal(t, 41.0, *out.Site.Geo.Lat)
		assert.Equal(t, "HQ", out.Site.Geo.Label)
	})

	t.Run("decoded from json", func(t *testing.T) {
		var p models.StopPatch
		require.NoError(t, json.Unmarshal([]byte(`{"checks":{"plowDone":true},"site":{"geo":{"lat":null}}}`), &p))
		out := ApplyPatch(base, p)
		assert.True(t, out.Checks.PlowDone)
		assert.Nil(t, out.Site.Geo.Lat)
		require.NotNil(t, out.Site.Geo.Lon)
	})
}

func intPtr(i int) *int { return &i }
