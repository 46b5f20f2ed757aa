package binder

import (
	"routebinder/internal/models"
	"routebinder/internal/storage"
)

// Decision records which side of a bootstrap reconciliation won
type Decision string

const (
	DecisionSeed   Decision = "seed"
	DecisionResume Decision = "resume"
)

// ReconcileInput is everything a bootstrap knows after talking to the hub.
// SeedStops must already be filtered to the allowed routes.
type ReconcileInput struct {
	TruckID   string
	Key       string
	Allowed   map[string]bool
	SeedStops []models.Stop
	SeedInbox []models.InboxItem
	Stored    *storage.StoredSnapshot
}

type ReconcileResult struct {
	Decision Decision
	State    models.RouteBinderState
}

// Reconcile picks between the stored snapshot and the hub seed. The
// snapshot is adopted wholesale only when it was saved for the same truck
// under the same key and still has stops on an allowed route.
func Reconcile(in ReconcileInput) ReconcileResult {
	if st := in.Stored; st != nil && st.TruckID == in.TruckID && st.BoundKey == in.Key && len(st.Stops) > 0 {
		stops := FilterAllowed(NormalizeStops(st.Stops), in.Allowed)
		if len(stops) > 0 {
			return ReconcileResult{
				Decision: DecisionResume,
				State: models.RouteBinderState{
					Stops:         stops,
					InboxItems:    NormalizeInbox(st.InboxItems),
					ActiveStopID:  st.ActiveStopID,
					Mode:          parseMode(st.Mode),
					QueueFilter:   parseQueueFilter(st.QueueFilter),
					RouteDoneAtTs: st.RouteDoneAtTs,
				},
			}
		}
	}
	return ReconcileResult{
		Decision: DecisionSeed,
		State: models.RouteBinderState{
			Stops:       in.SeedStops,
			InboxItems:  in.SeedInbox,
			Mode:        models.ModeWork,
			QueueFilter: models.QueueFilterAll,
		},
	}
}

func parseMode(s string) models.Mode {
	switch m := models.Mode(s); m {
	case models.ModeWork, models.ModeQueue, models.ModeInbox, models.ModeSummary:
		return m
	}
	return models.ModeWork
}

func parseQueueFilter(s string) models.QueueFilter {
	switch f := models.QueueFilter(s); f {
	case models.QueueFilterAll, models.QueueFilterPending, models.QueueFilterComplete:
		return f
	}
	return models.QueueFilterAll
}
