package binder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"routebinder/internal/models"
	"routebinder/internal/storage"
)

func TestReconcile(t *testing.T) {
	allowed := map[string]bool{"948": true}
	seed := []models.Stop{NormalizeStop(models.StopInput{ID: "seed", RouteNumber: "948"}, 0)}
	stored := func(mod func(*storage.StoredSnapshot)) *storage.StoredSnapshot {
		s := &storage.StoredSnapshot{
			TruckID:      "948",
			BoundKey:     "KEY",
			Stops:        []models.StopInput{{ID: "local", RouteNumber: "948", Progress: &models.ProgressInput{ArrivedAtTs: models.Int64(1)}}},
			ActiveStopID: "local",
			Mode:         "queue",
			QueueFilter:  "pending",
		}
		if mod != nil {
			mod(s)
		}
		return s
	}
	in := func(st *storage.StoredSnapshot) ReconcileInput {
		return ReconcileInput{TruckID: "948", Key: "KEY", Allowed: allowed, SeedStops: seed, Stored: st}
	}

	res := Reconcile(in(stored(nil)))
	assert.Equal(t, DecisionResume, res.Decision)
	assert.Equal(t, "local", res.State.Stops[0].ID)
	assert.Equal(t, models.ModeQueue, res.State.Mode)
	assert.Equal(t, models.QueueFilterPending, res.State.QueueFilter)
	assert.NotNil(t, res.State.InboxItems)

	cases := map[string]*storage.StoredSnapshot{
		"nothing stored":        nil,
		"other key":             stored(func(s *storage.StoredSnapshot) { s.BoundKey = "OTHER" }),
		"other truck":           stored(func(s *storage.StoredSnapshot) { s.TruckID = "900" }),
		"no stops":              stored(func(s *storage.StoredSnapshot) { s.Stops = nil }),
		"no stops on the route": stored(func(s *storage.StoredSnapshot) { s.Stops[0].RouteNumber = "900" }),
	}
	for name, st := range cases {
		t.Run(name, func(t *testing.T) {
			res := Reconcile(in(st))
			assert.Equal(t, DecisionSeed, res.Decision)
			assert.Equal(t, seed, res.State.Stops)
			assert.Equal(t, models.ModeWork, res.State.Mode)
			assert.Equal(t, models.QueueFilterAll, res.State.QueueFilter)
			assert.Nil(t, res.State.RouteDoneAtTs)
		})
	}

	t.Run("unknown mode falls back to work", func(t *testing.T) {
		res := Reconcile(in(stored(func(s *storage.StoredSnapshot) { s.Mode = "map" })))
		assert.Equal(t, models.ModeWork, res.State.Mode)
	})
}
