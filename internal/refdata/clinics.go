package refdata

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/physiodesk/clinic-api/internal/model"
	"github.com/physiodesk/clinic-api/internal/repository"
)

const (
	clinicCacheTTL     = 5 * time.Minute
	clinicCacheCleanup = 10 * time.Minute
)

// ClinicCache is a read-through cache over the clinic registry. Clinic rows
// change rarely but are consulted on every acceptance to evaluate the
// assessment requirement.
type ClinicCache struct {
	repo  repository.ClinicRepository
	cache *cache.Cache
}

func NewClinicCache(repo repository.ClinicRepository) *ClinicCache {
	return &ClinicCache{
		repo:  repo,
		cache: cache.New(clinicCacheTTL, clinicCacheCleanup),
	}
}

func (c *ClinicCache) Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	if cached, ok := c.cache.Get(id.String()); ok {
		return cached.(*model.Clinic), nil
	}

	clinic, err := c.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c.cache.Set(id.String(), clinic, cache.DefaultExpiration)
	return clinic, nil
}

// Code resolves a clinic id to its human-readable code.
func (c *ClinicCache) Code(ctx context.Context, id uuid.UUID) (string, error) {
	clinic, err := c.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return clinic.Code, nil
}

// Invalidate drops a clinic from the cache after a write.
func (c *ClinicCache) Invalidate(id uuid.UUID) {
	c.cache.Delete(id.String())
}
