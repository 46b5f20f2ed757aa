package binder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"routebinder/internal/export"
	"routebinder/internal/models"
	"routebinder/internal/storage"
)

// Hub is the server side a binder talks to
type Hub interface {
	Bootstrap(ctx context.Context, key string) (*models.BootstrapPayload, error)
	Geocode(ctx context.Context, query string) (*models.GeocodeResult, error)
}

// BootStatus reports where the binder is in binding a truck key
type BootStatus struct {
	Busy     bool   `json:"busy"`
	Error    string `json:"error,omitempty"`
	NeedsKey bool   `json:"needsKey"`
}

// BootstrapOptions tune a bootstrap. Silent suppresses the "Invalid truck
// key" message on failure; ForceFresh ignores any stored snapshot.
type BootstrapOptions struct {
	Silent     bool
	ForceFresh bool
}

// Binder owns one truck's live route: the stops, the dispatch inbox, the
// active-stop cursor and the rules for moving through them. Every mutation
// is written to the persistence layer before the lock is released.
type Binder struct {
	mu sync.Mutex

	hub       Hub
	store     *storage.Persistence
	logger    *zap.Logger
	now       func() time.Time
	newStopID func(time.Time) string

	truckKey string
	truck    models.Truck
	boot     BootStatus

	stops         []models.Stop
	inbox         []models.InboxItem
	activeStopID  string
	mode          models.Mode
	queueFilter   models.QueueFilter
	routeDoneAtTs *int64
}

type Option func(*Binder)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(b *Binder) { b.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(b *Binder) { b.logger = logger }
}

// WithStopIDs replaces the generator for injected stop ids
func WithStopIDs(fn func(time.Time) string) Option {
	return func(b *Binder) { b.newStopID = fn }
}

func New(hub Hub, store *storage.Persistence, opts ...Option) *Binder {
	b := &Binder{
		hub:         hub,
		store:       store,
		logger:      zap.NewNop(),
		now:         time.Now,
		newStopID:   injectedStopID,
		mode:        models.ModeWork,
		queueFilter: models.QueueFilterAll,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func injectedStopID(now time.Time) string {
	return fmt.Sprintf("stop_injected_%d_%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Hydrate restores the binder from the key stored on this device. With no
// stored key it returns ErrNeedsKey.
func (b *Binder) Hydrate(ctx context.Context) error {
	key := b.store.BoundKey()
	if key == "" {
		b.mu.Lock()
		b.clearRouteLocked()
		b.truckKey = ""
		b.truck = models.Truck{}
		b.boot = BootStatus{NeedsKey: true}
		b.mu.Unlock()
		return ErrNeedsKey
	}
	b.mu.Lock()
	b.truckKey = key
	b.mu.Unlock()
	return b.Bootstrap(ctx, key, BootstrapOptions{Silent: true})
}

// BindTruckKey stores key on the device and bootstraps with it
func (b *Binder) BindTruckKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	b.store.SetBoundKey(key)
	b.mu.Lock()
	b.truckKey = key
	b.mu.Unlock()
	return b.Bootstrap(ctx, key, BootstrapOptions{})
}

// ResetTruckKey forgets the key and wipes every stored snapshot and export
func (b *Binder) ResetTruckKey() {
	b.store.Purge()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.truckKey = ""
	b.truck = models.Truck{}
	b.clearRouteLocked()
	b.boot = BootStatus{NeedsKey: true}
}

// StartFreshRun drops this truck's snapshot and reloads the hub seed
func (b *Binder) StartFreshRun(ctx context.Context) error {
	b.mu.Lock()
	truckID, key := b.truck.ID, b.truckKey
	b.mu.Unlock()
	if truckID == "" || key == "" {
		return ErrNoTruck
	}
	b.store.RemoveSnapshotFor(truckID)
	return b.Bootstrap(ctx, key, BootstrapOptions{Silent: true, ForceFresh: true})
}

// Bootstrap resolves key against the hub and loads the route, preferring a
// matching stored snapshot over the seed unless ForceFresh is set. A rejected
// key or malformed payload clears the stored key and the binder asks for a
// new one; a hub that cannot be reached leaves the key and snapshot alone.
func (b *Binder) Bootstrap(ctx context.Context, key string, opts BootstrapOptions) error {
	b.mu.Lock()
	b.boot = BootStatus{Busy: true}
	b.clearRouteLocked()
	b.mu.Unlock()

	payload, err := b.hub.Bootstrap(ctx, key)
	if err == nil && (payload == nil || !payload.OK || payload.Truck == nil || payload.Truck.Truck().ID == "") {
		err = ErrMalformedBootstrap
	}
	if errors.Is(err, ErrKeyRejected) || errors.Is(err, ErrMalformedBootstrap) {
		b.failBootstrap(opts.Silent)
		return err
	}
	if err != nil {
		// the key was never judged, so it stays bound for the next attempt
		b.mu.Lock()
		b.boot = BootStatus{Error: "Hub unreachable"}
		b.mu.Unlock()
		b.logger.Warn("bootstrap failed", zap.Error(err))
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	truck := payload.Truck.Truck()
	allowed := truck.AllowedRoutes()
	var stored *storage.StoredSnapshot
	if !opts.ForceFresh {
		stored = b.store.Load(truck.ID)
	}
	res := Reconcile(ReconcileInput{
		TruckID:   truck.ID,
		Key:       key,
		Allowed:   allowed,
		SeedStops: FilterAllowed(NormalizeStops(payload.Stops), allowed),
		SeedInbox: NormalizeInbox(payload.InboxItems),
		Stored:    stored,
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	b.truckKey = key
	b.truck = truck
	b.stops = res.State.Stops
	b.inbox = res.State.InboxItems
	b.activeStopID = res.State.ActiveStopID
	b.mode = res.State.Mode
	b.queueFilter = res.State.QueueFilter
	b.routeDoneAtTs = res.State.RouteDoneAtTs
	b.boot = BootStatus{}
	b.healActiveLocked()
	b.persistLocked()

	b.logger.Info("route loaded",
		zap.String("truck", truck.ID),
		zap.String("source", string(res.Decision)),
		zap.Int("stops", len(b.stops)),
		zap.Int("inbox", len(b.inbox)))
	return nil
}

func (b *Binder) failBootstrap(silent bool) {
	b.store.ClearBoundKey()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.truckKey = ""
	b.truck = models.Truck{}
	b.clearRouteLocked()
	b.boot = BootStatus{NeedsKey: true}
	if !silent {
		b.boot.Error = "Invalid truck key"
	}
}

// SelectStop moves the cursor to id, switches to work mode and clears the
// route-done banner. Unknown ids are ignored.
func (b *Binder) SelectStop(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if indexOf(b.stops, id) < 0 {
		return false
	}
	b.activeStopID = id
	b.mode = models.ModeWork
	b.routeDoneAtTs = nil
	b.persistLocked()
	return true
}

// UpdateStop merges patch into the stop with the given id
func (b *Binder) UpdateStop(id string, patch models.StopPatch) bool {
	return b.mutateStop(id, func(s models.Stop) (models.Stop, bool) {
		return ApplyPatch(s, patch), true
	})
}

// MarkArrived stamps the arrival time. Already-arrived stops are left alone.
func (b *Binder) MarkArrived(id string) bool {
	return b.mutateStop(id, func(s models.Stop) (models.Stop, bool) {
		if s.Progress.ArrivedAtTs != nil {
			return s, false
		}
		now := b.now()
		ts := now.UnixMilli()
		s.Progress.ArrivedAtTs = &ts
		s.Progress.ArrivedAt = clockTime(now)
		return s, true
	})
}

// MarkComplete stamps completion when CanComplete allows it, otherwise it
// does nothing and returns false
func (b *Binder) MarkComplete(id string) bool {
	return b.mutateStop(id, func(s models.Stop) (models.Stop, bool) {
		if !CanComplete(s) {
			return s, false
		}
		now := b.now()
		end := now.UnixMilli()
		s.Progress.CompleteAtTs = &end
		s.Progress.CompleteAt = clockTime(now)
		s.Progress.DurationSec = int64(math.Floor(float64(end-*s.Progress.ArrivedAtTs) / 1000))
		return s, true
	})
}

// UndoComplete clears completion unconditionally
func (b *Binder) UndoComplete(id string) bool {
	return b.mutateStop(id, func(s models.Stop) (models.Stop, bool) {
		s.Progress.CompleteAt = ""
		s.Progress.CompleteAtTs = nil
		s.Progress.DurationSec = 0
		return s, true
	})
}

func (b *Binder) mutateStop(id string, fn func(models.Stop) (models.Stop, bool)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := indexOf(b.stops, id)
	if i < 0 {
		return false
	}
	next, changed := fn(b.stops[i])
	if !changed {
		return false
	}
	stops := make([]models.Stop, len(b.stops))
	copy(stops, b.stops)
	stops[i] = next
	b.stops = stops
	b.healActiveLocked()
	b.persistLocked()
	return true
}

// GoNextLocked advances past a completed active stop. On the last stop it
// stamps the route as done instead.
func (b *Binder) GoNextLocked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	active := b.activeLocked()
	if active == nil || !active.IsComplete() {
		return false
	}
	if next := b.neighbourLocked(1); next != nil {
		b.activeStopID = next.ID
		b.routeDoneAtTs = nil
	} else {
		ts := b.now().UnixMilli()
		b.routeDoneAtTs = &ts
	}
	b.persistLocked()
	return true
}

// GoPrev moves the cursor back one stop, ungated
func (b *Binder) GoPrev() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.neighbourLocked(-1)
	if prev == nil {
		return false
	}
	b.activeStopID = prev.ID
	b.persistLocked()
	return true
}

func (b *Binder) ClearRouteDone() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routeDoneAtTs = nil
	b.persistLocked()
}

// AcceptInboxItem converts an inbox item into an injected stop placed right
// after the active stop, and returns the new stop's id
func (b *Binder) AcceptInboxItem(inboxID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := -1
	for i := range b.inbox {
		if b.inbox[i].ID == inboxID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", false
	}
	item := b.inbox[idx]
	stop := StopFromInbox(item, b.newStopID(b.now()), b.truck.ID)

	afterID := ""
	if active := b.activeLocked(); active != nil {
		afterID = active.ID
	}
	b.stops = InsertAfter(b.stops, afterID, stop)
	b.inbox = removeInboxAt(b.inbox, idx)
	b.routeDoneAtTs = nil
	b.healActiveLocked()
	b.persistLocked()

	b.logger.Info("inbox item accepted", zap.String("inbox", inboxID), zap.String("stop", stop.ID))
	return stop.ID, true
}

// RejectInboxItem discards an inbox item
func (b *Binder) RejectInboxItem(inboxID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.inbox {
		if b.inbox[i].ID == inboxID {
			b.inbox = removeInboxAt(b.inbox, i)
			b.persistLocked()
			return true
		}
	}
	return false
}

func removeInboxAt(items []models.InboxItem, i int) []models.InboxItem {
	out := make([]models.InboxItem, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}

func (b *Binder) SetMode(m models.Mode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mode = parseMode(string(m))
	b.persistLocked()
}

func (b *Binder) SetQueueFilter(f models.QueueFilter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queueFilter = parseQueueFilter(string(f))
	b.persistLocked()
}

// LocateStop geocodes a stop's address through the hub and writes the result
// into its geo block. The lock is not held during the lookup; the patch is
// applied by id so a cursor move in the meantime does not misplace it.
func (b *Binder) LocateStop(ctx context.Context, id string) (*models.GeocodeResult, error) {
	b.mu.Lock()
	i := indexOf(b.stops, id)
	var addr string
	if i >= 0 {
		addr = b.stops[i].Site.AddressLine()
	}
	b.mu.Unlock()
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrStopNotFound, id)
	}
	if addr == "" {
		return nil, ErrNoAddress
	}

	res, err := b.hub.Geocode(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", addr, err)
	}
	label := firstNonEmpty(res.Label, addr)
	source := firstNonEmpty(res.Source, "nominatim")
	ok := b.UpdateStop(id, models.StopPatch{
		Site: &models.SitePatch{Geo: &models.GeoPatch{
			Lat:    models.SetTo(res.Lat),
			Lon:    models.SetTo(res.Lon),
			Label:  &label,
			Source: &source,
		}},
	})
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStopNotFound, id)
	}
	return res, nil
}

// healActiveLocked points the cursor at the first stop when it names a stop
// that is not on the route
func (b *Binder) healActiveLocked() {
	if len(b.stops) == 0 {
		b.activeStopID = ""
		return
	}
	if indexOf(b.stops, b.activeStopID) >= 0 {
		return
	}
	b.activeStopID = SortStops(b.stops)[0].ID
}

func (b *Binder) activeLocked() *models.Stop {
	if len(b.stops) == 0 {
		return nil
	}
	sorted := SortStops(b.stops)
	if i := indexOf(sorted, b.activeStopID); i >= 0 {
		return &sorted[i]
	}
	return &sorted[0]
}

func (b *Binder) neighbourLocked(step int) *models.Stop {
	sorted := SortStops(b.stops)
	if len(sorted) == 0 {
		return nil
	}
	i := indexOf(sorted, b.activeStopID)
	if i < 0 {
		i = 0
	}
	j := i + step
	if j < 0 || j >= len(sorted) {
		return nil
	}
	return &sorted[j]
}

func (b *Binder) clearRouteLocked() {
	b.stops = nil
	b.inbox = nil
	b.activeStopID = ""
	b.mode = models.ModeWork
	b.queueFilter = models.QueueFilterAll
	b.routeDoneAtTs = nil
}

func (b *Binder) persistLocked() {
	if b.truck.ID == "" {
		return
	}
	b.store.Save(b.truck.ID, b.truckKey, b.stateLocked())
}

func (b *Binder) stateLocked() models.RouteBinderState {
	stops := make([]models.Stop, len(b.stops))
	copy(stops, b.stops)
	inbox := make([]models.InboxItem, len(b.inbox))
	copy(inbox, b.inbox)
	var done *int64
	if b.routeDoneAtTs != nil {
		v := *b.routeDoneAtTs
		done = &v
	}
	return models.RouteBinderState{
		Stops:         stops,
		InboxItems:    inbox,
		ActiveStopID:  b.activeStopID,
		Mode:          b.mode,
		QueueFilter:   b.queueFilter,
		RouteDoneAtTs: done,
	}
}

// State returns a copy of the aggregate
func (b *Binder) State() models.RouteBinderState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Binder) Truck() models.Truck {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truck
}

func (b *Binder) Boot() BootStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.boot
}

// SortedStops returns the stops in display order
func (b *Binder) SortedStops() []models.Stop {
	b.mu.Lock()
	defer b.mu.Unlock()
	return SortStops(b.stops)
}

// QueueStops returns the sorted stops narrowed by the queue filter
func (b *Binder) QueueStops() []models.Stop {
	b.mu.Lock()
	defer b.mu.Unlock()
	sorted := SortStops(b.stops)
	if b.queueFilter == models.QueueFilterAll {
		return sorted
	}
	out := make([]models.Stop, 0, len(sorted))
	for _, s := range sorted {
		if s.IsComplete() == (b.queueFilter == models.QueueFilterComplete) {
			out = append(out, s)
		}
	}
	return out
}

// ActiveStop returns the stop under the cursor, falling back to the first
func (b *Binder) ActiveStop() (models.Stop, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s := b.activeLocked(); s != nil {
		return *s, true
	}
	return models.Stop{}, false
}

func (b *Binder) NextStop() (models.Stop, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s := b.neighbourLocked(1); s != nil {
		return *s, true
	}
	return models.Stop{}, false
}

func (b *Binder) PrevStop() (models.Stop, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s := b.neighbourLocked(-1); s != nil {
		return *s, true
	}
	return models.Stop{}, false
}

func (b *Binder) Stats() models.RouteStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := models.RouteStats{Total: len(b.stops)}
	for i := range b.stops {
		if b.stops[i].IsComplete() {
			st.Complete++
		}
	}
	st.Pending = st.Total - st.Complete
	return st
}

// ProgressPercent is the share of completed stops, rounded to 0..100
func (b *Binder) ProgressPercent() int {
	st := b.Stats()
	total := st.Total
	if total < 1 {
		total = 1
	}
	pct := math.Round(float64(st.Complete) / float64(total) * 100)
	return int(math.Max(0, math.Min(100, pct)))
}

// ActiveElapsed is the active stop's on-site time in seconds: the recorded
// duration once complete, the running time since arrival before that
func (b *Binder) ActiveElapsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.activeLocked()
	if s == nil || s.Progress.ArrivedAtTs == nil {
		return 0
	}
	if s.IsComplete() {
		return s.Progress.DurationSec
	}
	return int64(math.Floor(float64(b.now().UnixMilli()-*s.Progress.ArrivedAtTs) / 1000))
}

func (b *Binder) exportInputLocked() export.Input {
	st := b.stateLocked()
	return export.Input{
		TruckID:       b.truck.ID,
		RouteName:     b.truck.RouteName,
		RouteLabel:    b.truck.RouteLabel,
		Stops:         SortStops(st.Stops),
		InboxItems:    st.InboxItems,
		RouteDoneAtTs: st.RouteDoneAtTs,
	}
}

// Summary rolls up the current run, nil when there are no stops
func (b *Binder) Summary() *export.Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return export.Summarize(b.exportInputLocked())
}

// ExportFile is a rendered export ready to be written out
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
	Payload     export.Payload
}

// ExportJSON builds the export document, records it locally and renders it
// as indented JSON
func (b *Binder) ExportJSON() (*ExportFile, error) {
	p, err := b.buildExport()
	if err != nil {
		return nil, err
	}
	body, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return &ExportFile{
		Filename:    export.Filename(p, "json"),
		ContentType: "application/json",
		Body:        body,
		Payload:     p,
	}, nil
}

// ExportCSV builds the export document, records it locally and renders the
// stop rows as CSV
func (b *Binder) ExportCSV() (*ExportFile, error) {
	p, err := b.buildExport()
	if err != nil {
		return nil, err
	}
	body, err := export.ToCSV(p.Stops)
	if err != nil {
		return nil, err
	}
	return &ExportFile{
		Filename:    export.Filename(p, "csv"),
		ContentType: "text/csv",
		Body:        []byte(body),
		Payload:     p,
	}, nil
}

func (b *Binder) buildExport() (export.Payload, error) {
	b.mu.Lock()
	if b.truck.ID == "" {
		b.mu.Unlock()
		return export.Payload{}, ErrNoTruck
	}
	now := b.now()
	p := export.BuildPayload(b.exportInputLocked(), now)
	truckID := b.truck.ID
	doneTs := now.UnixMilli()
	if b.routeDoneAtTs != nil {
		doneTs = *b.routeDoneAtTs
	}
	b.mu.Unlock()

	if err := b.store.SaveExport(truckID, doneTs, p); err != nil {
		b.logger.Warn("failed to record export", zap.String("truck", truckID), zap.Error(err))
	}
	return p, nil
}

func clockTime(t time.Time) string {
	return t.Format("15:04")
}
