package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"routebinder/internal/models"
)

const (
	TruckKeyStorageKey = "routebinder_truck_key_v1"

	keyspace         = "routebinder_"
	statePrefix      = "routebinder_state_v1_"
	exportPrefix     = "routebinder_export_v1_"
	lastExportPrefix = "routebinder_last_export_v1_"

	SnapshotVersion = 1

	opTimeout = 5 * time.Second
)

// Snapshot is what gets written for a truck after every mutation
type Snapshot struct {
	Version   int    `json:"version"`
	SavedAtTs int64  `json:"savedAtTs"`
	TruckID   string `json:"truckId"`
	BoundKey  string `json:"boundKey"`
	models.RouteBinderState
}

// StoredSnapshot is a snapshot as read back. Stops stay in their loose input
// form until the binder renormalizes them.
type StoredSnapshot struct {
	Version       int                `json:"version"`
	SavedAtTs     int64              `json:"savedAtTs"`
	TruckID       string             `json:"truckId"`
	BoundKey      string             `json:"boundKey"`
	Stops         []models.StopInput `json:"stops"`
	InboxItems    []models.InboxItem `json:"inboxItems"`
	ActiveStopID  string             `json:"activeStopId"`
	Mode          string             `json:"mode"`
	QueueFilter   string             `json:"queueFilter"`
	RouteDoneAtTs *int64             `json:"routeDoneAtTs"`
}

func (s *StoredSnapshot) UnmarshalJSON(b []byte) error {
	type plain StoredSnapshot
	aux := struct {
		*plain
		RouteDoneAtTs json.RawMessage `json:"routeDoneAtTs"`
	}{plain: (*plain)(s)}
	if err := models.DecodeLenient(b, &aux); err != nil {
		return err
	}
	s.RouteDoneAtTs = models.FlexInt64(aux.RouteDoneAtTs)
	return nil
}

type lastExportPointer struct {
	DoneTs int64 `json:"doneTs"`
}

// StateKey is the per-truck snapshot key
func StateKey(truckID string) string {
	if truckID == "" {
		truckID = "unknown"
	}
	return statePrefix + truckID
}

// ExportKey indexes an export by truck and route-done timestamp
func ExportKey(truckID string, doneTs int64) string {
	return exportPrefix + truckID + "_" + strconv.FormatInt(doneTs, 10)
}

func LastExportKey(truckID string) string {
	return lastExportPrefix + truckID
}

// Persistence is the binder's view of the KV store. Every failure is logged
// and swallowed: the binder treats a store that cannot read as empty and a
// write that fails as lost.
type Persistence struct {
	kv     KV
	logger *zap.Logger
	now    func() time.Time
}

func NewPersistence(kv KV, logger *zap.Logger) *Persistence {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persistence{kv: kv, logger: logger, now: time.Now}
}

func (p *Persistence) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

// BoundKey returns the truck key stored on this device, or ""
func (p *Persistence) BoundKey() string {
	if p == nil {
		return ""
	}
	ctx, cancel := p.ctx()
	defer cancel()
	v, ok, err := p.kv.Get(ctx, TruckKeyStorageKey)
	if err != nil {
		p.logger.Warn("failed to read truck key", zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func (p *Persistence) SetBoundKey(key string) {
	if p == nil {
		return
	}
	ctx, cancel := p.ctx()
	defer cancel()
	if err := p.kv.Set(ctx, TruckKeyStorageKey, key); err != nil {
		p.logger.Warn("failed to store truck key", zap.Error(err))
	}
}

func (p *Persistence) ClearBoundKey() {
	p.remove(TruckKeyStorageKey)
}

// Load reads the snapshot for truckID. Missing and unparseable snapshots
// both return nil.
func (p *Persistence) Load(truckID string) *StoredSnapshot {
	if p == nil || truckID == "" {
		return nil
	}
	ctx, cancel := p.ctx()
	defer cancel()
	raw, ok, err := p.kv.Get(ctx, StateKey(truckID))
	if err != nil {
		p.logger.Warn("failed to read snapshot", zap.String("truck", truckID), zap.Error(err))
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var snap StoredSnapshot
	if err := models.DecodeLenient([]byte(raw), &snap); err != nil {
		p.logger.Warn("discarding unreadable snapshot", zap.String("truck", truckID), zap.Error(err))
		return nil
	}
	return &snap
}

// Save writes the state for truckID, stamped with the bound key
func (p *Persistence) Save(truckID, boundKey string, state models.RouteBinderState) {
	if p == nil || truckID == "" {
		return
	}
	snap := Snapshot{
		Version:          SnapshotVersion,
		SavedAtTs:        p.now().UnixMilli(),
		TruckID:          truckID,
		BoundKey:         boundKey,
		RouteBinderState: state,
	}
	b, err := json.Marshal(snap)
	if err != nil {
		p.logger.Warn("failed to encode snapshot", zap.Error(err))
		return
	}
	ctx, cancel := p.ctx()
	defer cancel()
	if err := p.kv.Set(ctx, StateKey(truckID), string(b)); err != nil {
		p.logger.Warn("failed to save snapshot", zap.String("truck", truckID), zap.Error(err))
	}
}

// RemoveSnapshotFor drops the stored state for one truck
func (p *Persistence) RemoveSnapshotFor(truckID string) {
	p.remove(StateKey(truckID))
}

// Purge removes every routebinder entry: the bound key, all snapshots and
// all export records
func (p *Persistence) Purge() {
	if p == nil {
		return
	}
	ctx, cancel := p.ctx()
	defer cancel()
	keys, err := p.kv.Keys(ctx, keyspace)
	if err != nil {
		p.logger.Warn("failed to list stored keys", zap.Error(err))
		return
	}
	for _, k := range keys {
		if err := p.kv.Delete(ctx, k); err != nil {
			p.logger.Warn("failed to purge key", zap.String("key", k), zap.Error(err))
		}
	}
}

// SaveExport records an export payload under its route-done timestamp and
// points the truck's last-export entry at it
func (p *Persistence) SaveExport(truckID string, doneTs int64, payload any) error {
	if p == nil {
		return nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	key := ExportKey(truckID, doneTs)
	ptr, err := json.Marshal(lastExportPointer{DoneTs: doneTs})
	if err != nil {
		return fmt.Errorf("failed to encode export pointer: %w", err)
	}
	ctx, cancel := p.ctx()
	defer cancel()
	if err := p.kv.Set(ctx, key, string(b)); err != nil {
		return err
	}
	return p.kv.Set(ctx, LastExportKey(truckID), string(ptr))
}

// LastExport returns the most recently saved export payload for truckID
func (p *Persistence) LastExport(truckID string) (json.RawMessage, bool) {
	if p == nil {
		return nil, false
	}
	ctx, cancel := p.ctx()
	defer cancel()
	raw, ok, err := p.kv.Get(ctx, LastExportKey(truckID))
	if err != nil || !ok {
		return nil, false
	}
	var ptr lastExportPointer
	if err := json.Unmarshal([]byte(raw), &ptr); err != nil {
		return nil, false
	}
	body, ok, err := p.kv.Get(ctx, ExportKey(truckID, ptr.DoneTs))
	if err != nil || !ok {
		return nil, false
	}
	return json.RawMessage(body), true
}

func (p *Persistence) remove(key string) {
	if p == nil {
		return
	}
	ctx, cancel := p.ctx()
	defer cancel()
	if err := p.kv.Delete(ctx, key); err != nil {
		p.logger.Warn("failed to remove key", zap.String("key", key), zap.Error(err))
	}
}
