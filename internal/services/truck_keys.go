package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"routebinder/internal/database"
	"routebinder/internal/models"
)

var ErrUnknownTruckKey = errors.New("key not accepted")

// KeyCacheTTL bounds how long an accepted key skips the bcrypt scan, so a
// revoked or rotated key stops working within it
const KeyCacheTTL = time.Minute

// TruckStore lists trucks with their hashed keys
type TruckStore interface {
	ListTruckCredentials(ctx context.Context) ([]database.TruckCredential, error)
}

// TruckKeyResolver maps a presented truck key to its truck. Keys are stored
// as bcrypt hashes so every lookup compares against each truck in turn;
// accepted keys are remembered for ttl.
type TruckKeyResolver struct {
	store  TruckStore
	cache  *expirable.LRU[string, models.Truck]
	logger *zap.Logger
}

// NewTruckKeyResolver uses KeyCacheTTL when ttl is not positive
func NewTruckKeyResolver(store TruckStore, cacheSize int, ttl time.Duration, logger *zap.Logger) *TruckKeyResolver {
	if ttl <= 0 {
		ttl = KeyCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TruckKeyResolver{
		store:  store,
		cache:  expirable.NewLRU[string, models.Truck](cacheSize, nil, ttl),
		logger: logger,
	}
}

// Resolve normalizes key and returns the truck it belongs to
func (r *TruckKeyResolver) Resolve(ctx context.Context, key string) (models.Truck, error) {
	norm := models.NormalizeTruckKey(key)
	if norm == "" {
		return models.Truck{}, ErrUnknownTruckKey
	}
	if truck, ok := r.cache.Get(norm); ok {
		return truck, nil
	}

	creds, err := r.store.ListTruckCredentials(ctx)
	if err != nil {
		return models.Truck{}, fmt.Errorf("failed to load trucks: %w", err)
	}
	for _, c := range creds {
		if bcrypt.CompareHashAndPassword([]byte(c.KeyHash), []byte(norm)) == nil {
			r.cache.Add(norm, c.Truck)
			r.logger.Info("truck key accepted", zap.String("truck", c.Truck.ID), zap.String("hint", c.KeyHint))
			return c.Truck, nil
		}
	}
	return models.Truck{}, ErrUnknownTruckKey
}
