package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/barber-api/internal/model"
	"github.com/jwalitptl/barber-api/internal/repository"
	"github.com/jwalitptl/barber-api/pkg/metrics"
)

const slotsKey = "reserved_slots"

// SlotCache keeps the public slot listing in memory for a short TTL.
// Writes that go through it drop the cached listing. Exclusivity is still
// decided by the wrapped store.
type SlotCache struct {
	repository.ReservationRepository

	cache   *gocache.Cache
	gen     atomic.Uint64
	metrics *metrics.Metrics
}

func NewSlotCache(next repository.ReservationRepository, ttl time.Duration, m *metrics.Metrics) *SlotCache {
	return &SlotCache{
		ReservationRepository: next,
		cache:                 gocache.New(ttl, 2*ttl),
		metrics:               m,
	}
}

func (c *SlotCache) ListSlots(ctx context.Context) ([]model.Slot, error) {
	if v, ok := c.cache.Get(slotsKey); ok {
		c.count("hit")
		return append([]model.Slot(nil), v.([]model.Slot)...), nil
	}
	c.count("miss")

	gen := c.gen.Load()
	slots, err := c.ReservationRepository.ListSlots(ctx)
	if err != nil {
		return nil, err
	}
	// a write that landed while we were reading makes this result stale
	if c.gen.Load() == gen {
		c.cache.SetDefault(slotsKey, append([]model.Slot(nil), slots...))
	}
	return slots, nil
}

func (c *SlotCache) Insert(ctx context.Context, r model.NewReservation) (int64, error) {
	id, err := c.ReservationRepository.Insert(ctx, r)
	// a conflict means another instance booked the slot, so our copy is stale too
	if err == nil || errors.Is(err, repository.ErrConflict) {
		c.invalidate()
	}
	return id, err
}

func (c *SlotCache) DeleteByID(ctx context.Context, id int64) (bool, error) {
	removed, err := c.ReservationRepository.DeleteByID(ctx, id)
	if removed {
		c.invalidate()
	}
	return removed, err
}

func (c *SlotCache) invalidate() {
	c.gen.Add(1)
	c.cache.Delete(slotsKey)
}

func (c *SlotCache) count(result string) {
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}
