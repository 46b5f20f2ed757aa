package binder

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routebinder/internal/models"
)

func stopsWithOrders(orders ...int) []models.Stop {
	out := make([]models.Stop, len(orders))
	for i, o := range orders {
		out[i] = models.Stop{ID: string(rune('a' + i)), Order: o}
	}
	return out
}

func TestSortStopsIsStable(t *testing.T) {
	sorted := SortStops(stopsWithOrders(20, 10, 20, 5))
	ids := []string{}
	for _, s := range sorted {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"d", "b", "a", "c"}, ids)
}

func TestRenumberOrders(t *testing.T) {
	perms := [][]int{
		{10, 20, 30},
		{30, 10, 20},
		{7, 7, 7, 1},
		{100},
	}
	for _, p := range perms {
		in := SortStops(stopsWithOrders(p...))
		out := RenumberOrders(in)
		require.Len(t, out, len(in))
		for i := range out {
			assert.Equal(t, (i+1)*10, out[i].Order)
			assert.Equal(t, in[i].ID, out[i].ID)
		}
	}
}

func TestCanComplete(t *testing.T) {
	arrived := func(mod func(*models.Stop)) models.Stop {
		s := NormalizeStop(models.StopInput{ID: "s", Progress: &models.ProgressInput{ArrivedAtTs: models.Int64(1000)}}, 0)
		mod(&s)
		return s
	}

	assert.False(t, CanComplete(NormalizeStop(models.StopInput{Checks: &models.ChecksInput{PlowDone: true}}, 0)), "not arrived")
	assert.False(t, CanComplete(arrived(func(s *models.Stop) {})), "plow not done")
	assert.True(t, CanComplete(arrived(func(s *models.Stop) { s.Checks.PlowDone = true })))

	assert.False(t, CanComplete(arrived(func(s *models.Stop) {
		s.Checks.PlowDone = true
		s.Progress.CompleteAtTs = models.Int64(2000)
	})), "already complete")

	assert.False(t, CanComplete(arrived(func(s *models.Stop) {
		s.Checks.PlowDone = true
		s.Work.Salt.Amount = models.Float(1.15)
	})), "salt required")
	assert.True(t, CanComplete(arrived(func(s *models.Stop) {
		s.Checks.PlowDone = true
		s.Checks.SaltDone = true
		s.Work.Salt.Amount = models.Float(1.15)
	})))

	assert.False(t, CanComplete(arrived(func(s *models.Stop) {
		s.Checks.PlowDone = true
		s.Work.Sidewalk.Amount = models.Float(0.8)
	})), "sidewalk required")

	assert.True(t, CanComplete(arrived(func(s *models.Stop) {
		s.Checks.PlowDone = true
		s.Work.Salt.Amount = models.Float(0)
		s.Work.Sidewalk.Amount = nil
	})), "zero and null amounts require nothing")
}

func TestParseWindow(t *testing.T) {
	open, closed := ParseWindow("Open 18:00, Close 06:00")
	assert.Equal(t, "18:00", open)
	assert.Equal(t, "06:00", closed)

	open, closed = ParseWindow("open4:30")
	assert.Equal(t, "4:30", open)
	assert.Empty(t, closed)

	open, closed = ParseWindow("")
	assert.Empty(t, open)
	assert.Empty(t, closed)
}

func TestStopFromInbox(t *testing.T) {
	t.Run("legacy flat payload", func(t *testing.T) {
		item := models.InboxItem{
			ID:    "inbox_1",
			Title: "Add stop, sheet attached",
			Payload: json.RawMessage(`{
				"name": "Lorain Road Plaza",
				"address": "25000 Lorain Rd",
				"city": "North Olmsted",
				"window": "Open 18:00, Close 06:00",
				"saltSpec": "Rock salt",
				"shovelSpec": "Ice melt",
				"sheetImageSrc": "/placeholders/route_sheet_placeholder.jpg",
				"assist": true
			}`),
		}
		s := StopFromInbox(item, "stop_injected_1", "948")
		assert.Equal(t, "stop_injected_1", s.ID)
		assert.True(t, s.Meta.Injected)
		assert.True(t, s.Meta.Assist)
		assert.Equal(t, "948", s.Site.RouteNumber)
		assert.Equal(t, "Lorain Road Plaza", s.Site.SlangName)
		assert.Equal(t, "OH", s.Site.State)
		assert.Equal(t, "18:00", s.Schedule.TimeOpen)
		assert.Equal(t, "06:00", s.Schedule.TimeClosed)
		assert.Equal(t, "Rock salt", s.Work.Salt.Product)
		assert.Equal(t, "Ice melt", s.Work.Sidewalk.Product)
		assert.Equal(t, "/placeholders/route_sheet_placeholder.jpg", s.Sheet.ImageSrc)
	})

	t.Run("structured fields win", func(t *testing.T) {
		item := models.InboxItem{
			Title: "Add stop",
			Payload: json.RawMessage(`{
				"routeNumber": "900",
				"timeOpen": "19:00",
				"window": "Open 18:00, Close 06:00",
				"saltSpec": "Rock salt",
				"site": {"routeNumber": 948, "slangName": "Plaza"},
				"schedule": {"timeOpen": "20:00"},
				"work": {"salt": {"product": "ECO2", "amount": 4}}
			}`),
		}
		s := StopFromInbox(item, "x", "1")
		assert.Equal(t, "948", s.Site.RouteNumber)
		assert.Equal(t, "Plaza", s.Site.SlangName)
		assert.Equal(t, "20:00", s.Schedule.TimeOpen)
		assert.Equal(t, "06:00", s.Schedule.TimeClosed)
		assert.Equal(t, "ECO2", s.Work.Salt.Product)
		require.NotNil(t, s.Work.Salt.Amount)
		assert.Equal(t, 4.0, *s.Work.Salt.Amount)
		assert.Equal(t, "scoops", s.Work.Salt.Unit)
	})

	t.Run("numeric strings in payload", func(t *testing.T) {
		item := models.InboxItem{
			Title: "Add stop",
			Payload: json.RawMessage(`{
				"name": "Lorain Road Plaza",
				"address": "25000 Lorain Rd",
				"saltSpec": "Rock salt",
				"site": {"geo": {"lat": "41.4", "lon": "west"}},
				"work": {"salt": {"amount": "4"}, "plow": {"targetInches": true}}
			}`),
		}
		s := StopFromInbox(item, "x", "948")
		assert.Equal(t, "Lorain Road Plaza", s.Site.SlangName)
		assert.Equal(t, "25000 Lorain Rd", s.Site.Address)
		assert.Equal(t, "Rock salt", s.Work.Salt.Product)
		require.NotNil(t, s.Work.Salt.Amount)
		assert.Equal(t, 4.0, *s.Work.Salt.Amount)
		require.NotNil(t, s.Site.Geo.Lat)
		assert.Equal(t, 41.4, *s.Site.Geo.Lat)
		assert.Nil(t, s.Site.Geo.Lon)
		assert.Nil(t, s.Work.Plow.TargetInches)
	})

	t.Run("empty payload falls back to title", func(t *testing.T) {
		s := StopFromInbox(models.InboxItem{Title: "Dispatch add"}, "x", "948")
		assert.Equal(t, "Dispatch add", s.Site.SlangName)
		assert.Equal(t, "948", s.Site.RouteNumber)

		s = StopFromInbox(models.InboxItem{}, "x", "948")
		assert.Equal(t, "Injected stop", s.Site.SlangName)
	})
}

func TestInsertAfter(t *testing.T) {
	stops := stopsWithOrders(10, 20, 30)
	out := InsertAfter(stops, "a", models.Stop{ID: "new"})
	ids := []string{}
	for _, s := range out {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"a", "new", "b", "c"}, ids)
	assert.Equal(t, 20, out[1].Order)
	assert.Equal(t, 40, out[3].Order)

	out = InsertAfter(stops, "missing", models.Stop{ID: "new"})
	assert.Equal(t, "new", out[3].ID)
}
