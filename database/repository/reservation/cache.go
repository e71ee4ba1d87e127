package reservationRepo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"slotwise/models"
)

const cacheTTL = 5 * time.Minute

func cacheKey(id string) string { return "reservation:" + id }

// ReservationCache is a best-effort read-through cache for single-document
// reservation lookups. A miss or a failed write only costs a trip to the
// store.
type ReservationCache interface {
	Get(ctx context.Context, id string) (*models.Reservation, bool)
	Set(ctx context.Context, r *models.Reservation)
	Del(ctx context.Context, id string)
}

// RedisReservationCache stores reservation documents as JSON with a TTL.
type RedisReservationCache struct {
	client *redis.Client
}

var _ ReservationCache = (*RedisReservationCache)(nil)

func NewRedisReservationCache(client *redis.Client) *RedisReservationCache {
	return &RedisReservationCache{client: client}
}

func (c *RedisReservationCache) Get(ctx context.Context, id string) (*models.Reservation, bool) {
	raw, err := c.client.Get(ctx, cacheKey(id)).Result()
	if err != nil {
		return nil, false
	}
	var r models.Reservation
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, false
	}
	return &r, true
}

func (c *RedisReservationCache) Set(ctx context.Context, r *models.Reservation) {
	if raw, err := json.Marshal(r); err == nil {
		c.client.Set(ctx, cacheKey(r.ID), raw, cacheTTL)
	}
}

func (c *RedisReservationCache) Del(ctx context.Context, id string) {
	c.client.Del(ctx, cacheKey(id))
}

// CachedReservationRepo decorates a ReservationRepository with read-through
// caching of GetByID. Any CompareAndSwap outcome that can leave the cached
// copy behind the store drops the entry, so a reader that lost a version race
// converges on the store's row instead of retrying against the same stale
// document.
type CachedReservationRepo struct {
	inner ReservationRepository
	cache ReservationCache
}

var _ ReservationRepository = (*CachedReservationRepo)(nil)

func NewCachedReservationRepo(inner ReservationRepository, cache ReservationCache) *CachedReservationRepo {
	return &CachedReservationRepo{inner: inner, cache: cache}
}

func (repo *CachedReservationRepo) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	if r, ok := repo.cache.Get(ctx, id); ok {
		return r, nil
	}
	r, err := repo.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	repo.cache.Set(ctx, r)
	return r, nil
}

func (repo *CachedReservationRepo) Insert(ctx context.Context, r *models.Reservation) error {
	if err := repo.inner.Insert(ctx, r); err != nil {
		return err
	}
	repo.cache.Set(ctx, r)
	return nil
}

func (repo *CachedReservationRepo) CompareAndSwap(
	ctx context.Context,
	id string,
	expectedVersion int64,
	mutate func(*models.Reservation),
) (*models.Reservation, error) {
	updated, err := repo.inner.CompareAndSwap(ctx, id, expectedVersion, mutate)
	if err != nil {
		// On a mismatch the cached copy is what fed the loser its stale
		// version; dropping it makes the caller's re-read hit the store.
		repo.cache.Del(ctx, id)
		return nil, err
	}
	repo.cache.Set(ctx, updated)
	return updated, nil
}

func (repo *CachedReservationRepo) FindByShopAndWindow(ctx context.Context, shopID string, w models.Window, excludeID string) ([]models.Reservation, error) {
	return repo.inner.FindByShopAndWindow(ctx, shopID, w, excludeID)
}

func (repo *CachedReservationRepo) FindActiveByShopAndDate(ctx context.Context, shopID, date string) ([]models.Reservation, error) {
	return repo.inner.FindActiveByShopAndDate(ctx, shopID, date)
}

func (repo *CachedReservationRepo) AppendAudit(ctx context.Context, entry *models.StateAuditEntry) error {
	return repo.inner.AppendAudit(ctx, entry)
}

func (repo *CachedReservationRepo) ListAuditByReservation(ctx context.Context, reservationID string) ([]models.StateAuditEntry, error) {
	return repo.inner.ListAuditByReservation(ctx, reservationID)
}

func (repo *CachedReservationRepo) FindRequestedCreatedBefore(ctx context.Context, cutoff time.Time, limit int64) ([]models.Reservation, error) {
	return repo.inner.FindRequestedCreatedBefore(ctx, cutoff, limit)
}

func (repo *CachedReservationRepo) FindConfirmedByDateUpTo(ctx context.Context, dateCeil string, limit int64) ([]models.Reservation, error) {
	return repo.inner.FindConfirmedByDateUpTo(ctx, dateCeil, limit)
}
