package binder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routebinder/internal/models"
	"routebinder/internal/storage"
)

const (
	key948 = "RB9488F2K9D7QM3LX"
	key900 = "RB900ZK4P1H8N6R2T"
)

type fakeHub struct {
	mu       sync.Mutex
	calls    int
	trucks   map[string]models.TruckInput
	stops    []models.StopInput
	inbox    []models.InboxItem
	geocode  *models.GeocodeResult
	queries  []string
	failWith error
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		trucks: map[string]models.TruckInput{
			key948: {ID: "948", RouteName: "Route 948", RouteLabel: "West Side Commercial", RouteNumbers: []models.FlexString{"948"}},
			key900: {ID: "900", RouteName: "Route 900", RouteLabel: "South Run", RouteNumbers: []models.FlexString{"900"}},
		},
		stops: []models.StopInput{
			{
				ID: "stop-900-1", Order: intPtr(10),
				Site: &models.SiteInput{RouteNumber: "900", SlangName: "Beckett Gas", Address: "21819 Royalton Rd", City: "Strongsville", Zip: "44149"},
				Work: &models.WorkInput{
					Salt:     &models.MaterialInput{Product: "ECO2", Amount: models.Float(1.15)},
					Sidewalk: &models.MaterialInput{Product: "Reliable Blue", Amount: models.Float(0.8)},
				},
			},
			{
				ID: "stop-948-1", Order: intPtr(10),
				Site: &models.SiteInput{RouteNumber: "948", SlangName: "Beckett Gas", Address: "1700 Center Ridge Rd", City: "Westlake", Zip: "44145"},
			},
			{
				ID: "stop-948-2", Order: intPtr(20),
				Site: &models.SiteInput{RouteNumber: "948", SlangName: "Westlake Shops"},
			},
		},
		inbox: []models.InboxItem{{
			ID:      "inbox_1",
			From:    "Dispatch",
			Title:   "Add stop, sheet attached",
			Payload: json.RawMessage(`{"routeNumber":948,"name":"Lorain Road Plaza","window":"Open 18:00, Close 06:00","saltSpec":"Rock salt"}`),
		}},
	}
}

func (h *fakeHub) Bootstrap(_ context.Context, key string) (*models.BootstrapPayload, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.failWith != nil {
		return nil, h.failWith
	}
	truck, ok := h.trucks[models.NormalizeTruckKey(key)]
	if !ok {
		return nil, ErrKeyRejected
	}
	return &models.BootstrapPayload{OK: true, Truck: &truck, Stops: h.stops, InboxItems: h.inbox}, nil
}

func (h *fakeHub) Geocode(_ context.Context, q string) (*models.GeocodeResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queries = append(h.queries, q)
	if h.geocode == nil {
		return nil, errors.New("no results")
	}
	res := *h.geocode
	return &res, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	hub   *fakeHub
	kv    *storage.MemoryStore
	store *storage.Persistence
	clock *testClock
}

func newFixture() *fixture {
	kv := storage.NewMemoryStore()
	return &fixture{
		hub:   newFakeHub(),
		kv:    kv,
		store: storage.NewPersistence(kv, nil),
		clock: &testClock{now: time.Date(2026, 1, 14, 4, 0, 0, 0, time.Local)},
	}
}

func (f *fixture) binder() *Binder {
	n := 0
	return New(f.hub, f.store,
		WithClock(f.clock.Now),
		WithStopIDs(func(time.Time) string {
			n++
			return fmt.Sprintf("stop_injected_%d", n)
		}))
}

func bound(t *testing.T, f *fixture, key string) *Binder {
	t.Helper()
	b := f.binder()
	require.NoError(t, b.BindTruckKey(context.Background(), key))
	return b
}

func stopIDs(stops []models.Stop) []string {
	ids := make([]string, len(stops))
	for i, s := range stops {
		ids[i] = s.ID
	}
	return ids
}

func TestBootstrapFiltersToAllowedRoutes(t *testing.T) {
	f := newFixture()
	b := bound(t, f, key948)

	assert.Equal(t, []string{"stop-948-1", "stop-948-2"}, stopIDs(b.SortedStops()))
	assert.Equal(t, "948", b.Truck().ID)
	assert.Equal(t, "Route 948", b.Truck().RouteName)
	assert.Equal(t, BootStatus{}, b.Boot())

	active, ok := b.ActiveStop()
	require.True(t, ok)
	assert.Equal(t, "stop-948-1", active.ID)
	assert.Len(t, b.State().InboxItems, 1)
}

func TestBootstrapRejectedKey(t *testing.T) {
	f := newFixture()
	b := f.binder()

	err := b.BindTruckKey(context.Background(), "NOTAKEY")
	require.ErrorIs(t, err, ErrKeyRejected)

	boot := b.Boot()
	assert.True(t, boot.NeedsKey)
	assert.Equal(t, "Invalid truck key", boot.Error)
	assert.Empty(t, b.SortedStops())
	assert.Empty(t, f.store.BoundKey())
}

func TestBootstrapMalformedPayload(t *testing.T) {
	f := newFixture()
	f.hub.trucks[key948] = models.TruckInput{}
	b := f.binder()

	err := b.BindTruckKey(context.Background(), key948)
	require.ErrorIs(t, err, ErrMalformedBootstrap)
	assert.True(t, b.Boot().NeedsKey)
}

func TestHydrate(t *testing.T) {
	t.Run("no stored key", func(t *testing.T) {
		f := newFixture()
		b := f.binder()
		require.ErrorIs(t, b.Hydrate(context.Background()), ErrNeedsKey)
		assert.True(t, b.Boot().NeedsKey)
		assert.Empty(t, b.Boot().Error)
	})

	t.Run("silent failure", func(t *testing.T) {
		f := newFixture()
		f.store.SetBoundKey("STALEKEY")
		b := f.binder()
		require.ErrorIs(t, b.Hydrate(context.Background()), ErrKeyRejected)
		assert.True(t, b.Boot().NeedsKey)
		assert.Empty(t, b.Boot().Error)
		assert.Empty(t, f.store.BoundKey())
	})

	t.Run("hub unreachable keeps the key", func(t *testing.T) {
		f := newFixture()
		first := bound(t, f, key948)
		require.True(t, first.MarkArrived("stop-948-1"))

		f.hub.failWith = errors.New("connection refused")
		second := f.binder()
		err := second.Hydrate(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrKeyRejected)
		assert.False(t, second.Boot().NeedsKey)
		assert.Equal(t, "Hub unreachable", second.Boot().Error)
		assert.Equal(t, key948, f.store.BoundKey())
		assert.NotNil(t, f.store.Load("948"))

		f.hub.failWith = nil
		third := f.binder()
		require.NoError(t, third.Hydrate(context.Background()))
		active, _ := third.ActiveStop()
		assert.Equal(t, models.StopStatusArrived, active.Status())
	})

	t.Run("resumes stored progress", func(t *testing.T) {
		f := newFixture()
		first := bound(t, f, key948)
		require.True(t, first.MarkArrived("stop-948-1"))
		require.True(t, first.SelectStop("stop-948-1"))

		second := f.binder()
		require.NoError(t, second.Hydrate(context.Background()))
		active, ok := second.ActiveStop()
		require.True(t, ok)
		assert.Equal(t, models.StopStatusArrived, active.Status())
		assert.Equal(t, first.State(), second.State())
	})
}

func TestReconcileRejectsSnapshotFromAnotherKey(t *testing.T) {
	f := newFixture()
	first := bound(t, f, key948)
	require.True(t, first.MarkArrived("stop-948-1"))

	// Same truck under a second key
	f.hub.trucks["RB9488F2K9D7QM3LY"] = f.hub.trucks[key948]
	second := bound(t, f, "RB9488F2K9D7QM3LY")
	active, _ := second.ActiveStop()
	assert.Equal(t, models.StopStatusPending, active.Status())
}

func TestStartFreshRunDropsProgress(t *testing.T) {
	f := newFixture()
	b := bound(t, f, key948)
	require.True(t, b.MarkArrived("stop-948-1"))

	require.NoError(t, b.StartFreshRun(context.Background()))
	for _, s := range b.SortedStops() {
		assert.Equal(t, models.StopStatusPending, s.Status())
	}
	assert.Equal(t, key948, f.store.BoundKey())
}

func TestStartFreshRunWithoutTruck(t *testing.T) {
	f := newFixture()
	assert.ErrorIs(t, f.binder().StartFreshRun(context.Background()), ErrNoTruck)
}

func TestResetTruckKeyPurgesStorage(t *testing.T) {
	f := newFixture()
	b := bound(t, f, key948)
	_, err := b.ExportJSON()
	require.NoError(t, err)

	b.ResetTruckKey()
	keys, err := f.kv.Keys(context.Background(), "routebinder_")
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.True(t, b.Boot().NeedsKey)
	assert.Empty(t, b.Truck().ID)
}

func TestStopLifecycle(t *testing.T) {
	f := newFixture()
	b := bound(t, f, key948)
	id := "stop-948-1"

	assert.False(t, b.MarkComplete(id), "cannot complete before arrival")

	require.True(t, b.MarkArrived(id))
	arrivedAt := f.clock.Now().UnixMilli()
	f.clock.Advance(time.Minute)
	assert.False(t, b.MarkArrived(id), "second arrival is a no-op")

	active, _ := b.ActiveStop()
	assert.Equal(t, arrivedAt, *active.Progress.ArrivedAtTs)
	assert.Equal(t, "04:00", active.Progress.ArrivedAt)

	assert.False(t, b.MarkComplete(id), "plow not done")
	require.True(t, b.UpdateStop(id, models.StopPatch{Checks: &models.ChecksPatch{PlowDone: models.Bool(true)}}))

	f.clock.Advance(90*time.Second + 500*time.Millisecond)
	require.True(t, b.MarkComplete(id))
	active, _ = b.ActiveStop()
	assert.Equal(t, models.StopStatusComplete, active.Status())
	assert.Equal(t, int64(150), active.Progress.DurationSec)
	assert.Equal(t, int64(150), b.ActiveElapsed())
	assert.False(t, b.MarkComplete(id), "completion is idempotent")

	require.True(t, b.UndoComplete(id))
	active, _ = b.ActiveStop()
	assert.Equal(t, models.StopStatusArrived, active.Status())
	assert.Zero(t, active.Progress.DurationSec)
	assert.Empty(t, active.Progress.CompleteAt)

	f.clock.Advance(30 * time.Second)
	require.True(t, b.MarkComplete(id))
	active, _ = b.ActiveStop()
	assert.Equal(t, int64(180), active.Progress.DurationSec)
}

func TestSaltRequirementGatesCompletion(t *testing.T) {
	f := newFixture()
	b := bound(t, f, key900)
	id := "stop-900-1"

	require.True(t, b.MarkArrived(id))
	require.True(t, b.UpdateStop(id, models.StopPatch{Checks: &models.ChecksPatch{PlowDone: models.Bool(true)}}))
	assert.False(t, b.MarkComplete(id))

	require.True(t, b.UpdateStop(id, models.StopPatch{Checks: &models.ChecksPatch{SaltDone: models.Bool(true)}}))
	assert.False(t, b.MarkComplete(id), "sidewalk still required")

	require.True(t, b.UpdateStop(id, models.StopPatch{Checks: &models.ChecksPatch{SidewalkDone: models.Bool(true)}}))
	assert.True(t, b.MarkComplete(id))
}

func completeStop(t *testing.T, b *Binder, id string) {
	t.Helper()
	require.True(t, b.MarkArrived(id))
	require.True(t, b.UpdateStop(id, models.StopPatch{Checks: &models.ChecksPatch{PlowDone: models.Bool(true)}}))
	require.True(t, b.MarkComplete(id))
}

func TestGoNextLocked(t *testing.T) {
	f := newFixture()
	b := bound(t, f, key948)

	assert.False(t, b.GoNextLocked(), "active stop not complete")

	completeStop(t, b, "stop-948-1")
	require.True(t, b.GoNextLocked())
	active, _ := b.ActiveStop()
	assert.Equal(t, "stop-948-2", active.ID)
	assert.Nil(t, b.State().RouteDoneAtTs)

	completeStop(t, b, "stop-948-2")
	f.clock.Advance(time.Minute)
	require.True(t, b.GoNextLocked())
	done := b.State().RouteDoneAtTs
	require.NotNil(t, done)
	assert.Equal(t, f.clock.Now().UnixMilli(), *done)

	require.True(t, b.GoPrev())
	active, _ = b.ActiveStop()
	assert.Equal(t, "stop-948-1", active.ID)
	assert.False(t, b.GoPrev())

	require.True(t, b.SelectStop("stop-948-2"))
	assert.Nil(t, b.State().RouteDoneAtTs)
	assert.Equal(t, 100, b.ProgressPercent())
}

func TestClearRouteDone(t *testing.T) {
	f := newFixture()
	b := bound(t, f, key948)
	completeStop(t, b, "stop-948-1")
	require.True(t, b.GoNextLocked())
	completeStop(t, b, "stop-948-2")
	require.True(t, b.GoNextLocked())
	require.NotNil(t, b.State().RouteDoneAtTs)

	b.ClearRouteDone()
	assert.Nil(t, b.State().RouteDoneAtTs)

	resumed := f.binder()
	require.NoError(t, resumed.Hydrate(context.Background()))
	assert.Nil(t, resumed.State().RouteDoneAtTs)
	assert.Equal(t, 100, resumed.ProgressPercent())
}

func TestSelectStop(t *testing.T) {
	f := newFixture()
	b := bound(t, f, key948)
	b.SetMode(models.ModeQueue)

	assert.False(t, b.SelectStop("nope"))
	require.True(t, b.SelectStop("stop-948-2"))
	assert.Equal(t, models.ModeWork, b.State().Mode)
	active, _ := b.ActiveStop()
	assert.Equal(t, "stop-948-2", active.ID)
}

func TestAcceptInboxItem(t *testing.T) {
	f := newFixture()
	b := bound(t, f, key948)
	require.True(t, b.SelectStop("stop-948-1"))

	id, ok := b.AcceptInboxItem("inbox_1")
	require.True(t, ok)
	assert.Equal(t, "stop_injected_1", id)

	sorted := b.SortedStops()
	assert.Equal(t, []string{"stop-948-1", "stop_injected_1", "stop-948-2"}, stopIDs(sorted))
	for i, s := range sorted {
		assert.Equal(t, (i+1)*10, s.Order)
	}
	injected := sorted[1]
	assert.True(t, injected.Meta.Injected)
	assert.Equal(t, "Lorain Road Plaza", injected.Site.SlangName)
	assert.Equal(t, "18:00", injected.Schedule.TimeOpen)
	assert.Equal(t, "Rock salt", injected.Work.Salt.Product)

	assert.Empty(t, b.State().InboxItems)
	assert.Nil(t, b.State().RouteDoneAtTs)

	_, ok = b.AcceptInboxItem("inbox_1")
	assert.False(t, ok)
}

func TestAcceptInboxItemClearsRouteDone(t *testing.T) {
	f := newFixture()
	b := bound(t, f, key948)
	completeStop(t, b, "stop-948-1")
	require.True(t, b.GoNextLocked())
	completeStop(t, b, "stop-948-2")
	require.True(t, b.GoNextLocked())
	require.NotNil(t, b.State().RouteDoneAtTs)

	_, ok := b.AcceptInboxItem("inbox_1")
	require.True(t, ok)
	assert.Nil(t, b.State().RouteDoneAtTs)
	assert.Equal(t, []string{"stop-948-1", "stop-948-2", "stop_injected_1"}, stopIDs(b.SortedStops()))
	assert.Equal(t, 67, b.ProgressPercent())
}

func TestRejectInboxItem(t *testing.T) {
	f := newFixture()
	b := bound(t, f, key948)
	before := b.SortedStops()

	require.True(t, b.RejectInboxItem("inbox_1"))
	assert.Empty(t, b.State().InboxItems)
	assert.Equal(t, before, b.SortedStops())
	assert.False(t, b.RejectInboxItem("inbox_1"))
}

func TestQueueStops(t *testing.T) {
	f := newFixture()
	b := bound(t, f, key948)
	completeStop(t, b, "stop-948-1")

	b.SetQueueFilter(models.QueueFilterPending)
	assert.Equal(t, []string{"stop-948-2"}, stopIDs(b.QueueStops()))
	b.SetQueueFilter(models.QueueFilterComplete)
	assert.Equal(t, []string{"stop-948-1"}, stopIDs(b.QueueStops()))
	b.SetQueueFilter("bogus")
	assert.Len(t, b.QueueStops(), 2)

	assert.Equal(t, models.RouteStats{Total: 2, Complete: 1, Pending: 1}, b.Stats())
	assert.Equal(t, 50, b.ProgressPercent())
}

func TestLocateStop(t *testing.T) {
	f := newFixture()
	f.hub.geocode = &models.GeocodeResult{Lat: 41.45, Lon: -81.93, Label: "Westlake, Ohio"}
	b := bound(t, f, key948)

	res, err := b.LocateStop(context.Background(), "stop-948-1")
	require.NoError(t, err)
	assert.Equal(t, 41.45, res.Lat)
	assert.Equal(t, []string{"1700 Center Ridge Rd, Westlake, OH, 44145"}, f.hub.queries)

	active, _ := b.ActiveStop()
	require.True(t, active.Site.Geo.HasLocation())
	assert.Equal(t, -81.93, *active.Site.Geo.Lon)
	assert.Equal(t, "Westlake, Ohio", active.Site.Geo.Label)
	assert.Equal(t, "nominatim", active.Site.Geo.Source)

	_, err = b.LocateStop(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrStopNotFound)
}

func TestMutationsPersist(t *testing.T) {
	f := newFixture()
	b := bound(t, f, key948)
	require.True(t, b.MarkArrived("stop-948-1"))

	snap := f.store.Load("948")
	require.NotNil(t, snap)
	assert.Equal(t, key948, snap.BoundKey)
	assert.Equal(t, "948", snap.TruckID)
	require.Len(t, snap.Stops, 2)
	require.NotNil(t, snap.Stops[0].Progress)
	assert.NotNil(t, snap.Stops[0].Progress.ArrivedAtTs)
}

type failingKV struct{ storage.KV }

func (failingKV) Set(context.Context, string, string) error { return errors.New("disk full") }

func TestPersistenceFailuresAreSwallowed(t *testing.T) {
	f := newFixture()
	store := storage.NewPersistence(failingKV{storage.NewMemoryStore()}, nil)
	b := New(f.hub, store, WithClock(f.clock.Now))

	require.NoError(t, b.Bootstrap(context.Background(), key948, BootstrapOptions{}))
	assert.True(t, b.MarkArrived("stop-948-1"))
}

func TestExports(t *testing.T) {
	f := newFixture()
	b := bound(t, f, key948)
	completeStop(t, b, "stop-948-1")

	out, err := b.ExportJSON()
	require.NoError(t, err)
	assert.Equal(t, "application/json", out.ContentType)
	assert.Equal(t, "Route_948_948_20260114.json", out.Filename)
	assert.Equal(t, 1, out.Payload.Summary.CompletedStops)
	assert.Contains(t, string(out.Body), `"truckId": "948"`)

	csvOut, err := b.ExportCSV()
	require.NoError(t, err)
	assert.Equal(t, "Route_948_948_20260114.csv", csvOut.Filename)
	lines := strings.Split(strings.TrimSuffix(string(csvOut.Body), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "id,order,routeNumber,name"))

	last, ok := f.store.LastExport("948")
	require.True(t, ok)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(last, &payload))
	assert.Equal(t, "948", payload["truckId"])
}

func TestExportWithoutTruck(t *testing.T) {
	f := newFixture()
	_, err := f.binder().ExportCSV()
	assert.ErrorIs(t, err, ErrNoTruck)
}
