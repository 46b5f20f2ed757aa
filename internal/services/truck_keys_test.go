package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"routebinder/internal/database"
	"routebinder/internal/models"
)

type fakeTruckStore struct {
	creds []database.TruckCredential
	err   error
	calls int
}

func (f *fakeTruckStore) ListTruckCredentials(context.Context) ([]database.TruckCredential, error) {
	f.calls++
	return f.creds, f.err
}

func credential(t *testing.T, key string, truck models.Truck) database.TruckCredential {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return database.TruckCredential{Truck: truck, KeyHash: string(hash)}
}

func TestTruckKeyResolver(t *testing.T) {
	store := &fakeTruckStore{creds: []database.TruckCredential{
		credential(t, "RB900ZK4P1H8N6R2T", models.Truck{ID: "900", RouteName: "Route 900"}),
		credential(t, "RB9488F2K9D7QM3LX", models.Truck{ID: "948", RouteName: "Route 948"}),
	}}
	r := NewTruckKeyResolver(store, 16, 0, nil)
	ctx := context.Background()

	truck, err := r.Resolve(ctx, "rb948-8f2k 9d7q-m3lx")
	require.NoError(t, err)
	assert.Equal(t, "948", truck.ID)
	assert.Equal(t, 1, store.calls)

	truck, err = r.Resolve(ctx, "RB9488F2K9D7QM3LX")
	require.NoError(t, err)
	assert.Equal(t, "948", truck.ID)
	assert.Equal(t, 1, store.calls, "accepted keys are cached")

	_, err = r.Resolve(ctx, "RB000")
	assert.ErrorIs(t, err, ErrUnknownTruckKey)

	_, err = r.Resolve(ctx, " -- ")
	assert.ErrorIs(t, err, ErrUnknownTruckKey)
}

func TestTruckKeyResolverStoreError(t *testing.T) {
	boom := errors.New("db down")
	r := NewTruckKeyResolver(&fakeTruckStore{err: boom}, 4, 0, nil)

	_, err := r.Resolve(context.Background(), "RB9488F2K9D7QM3LX")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrUnknownTruckKey)
}

func TestTruckKeyResolverForgetsRevokedKey(t *testing.T) {
	store := &fakeTruckStore{creds: []database.TruckCredential{
		credential(t, "RB9488F2K9D7QM3LX", models.Truck{ID: "948"}),
	}}
	r := NewTruckKeyResolver(store, 16, 50*time.Millisecond, nil)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "RB9488F2K9D7QM3LX")
	require.NoError(t, err)

	store.creds = []database.TruckCredential{
		credential(t, "RB948NEWKEY000000", models.Truck{ID: "948"}),
	}
	_, err = r.Resolve(ctx, "RB9488F2K9D7QM3LX")
	require.NoError(t, err, "still cached")

	time.Sleep(120 * time.Millisecond)
	_, err = r.Resolve(ctx, "RB9488F2K9D7QM3LX")
	assert.ErrorIs(t, err, ErrUnknownTruckKey)
	assert.Equal(t, 2, store.calls)
}
