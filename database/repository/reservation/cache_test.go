package reservationRepo

import (
	"context"
	"errors"
	"testing"

	"slotwise/models"
)

// stubStore is a minimal in-memory ReservationRepository; only the methods
// the cache decorator touches per-document are implemented.
type stubStore struct {
	ReservationRepository
	rows map[string]*models.Reservation
}

func newStubStore() *stubStore {
	return &stubStore{rows: make(map[string]*models.Reservation)}
}

func (s *stubStore) put(r *models.Reservation) {
	clone := *r
	s.rows[r.ID] = &clone
}

func (s *stubStore) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	r, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (s *stubStore) Insert(ctx context.Context, r *models.Reservation) error {
	s.put(r)
	return nil
}

func (s *stubStore) CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutate func(*models.Reservation)) (*models.Reservation, error) {
	r, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Version != expectedVersion {
		return nil, ErrVersionMismatch
	}
	clone := *r
	mutate(&clone)
	clone.Version = expectedVersion + 1
	s.rows[id] = &clone
	out := clone
	return &out, nil
}

type mapCache struct {
	entries map[string]models.Reservation
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]models.Reservation)}
}

func (c *mapCache) Get(ctx context.Context, id string) (*models.Reservation, bool) {
	r, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	clone := r
	return &clone, true
}

func (c *mapCache) Set(ctx context.Context, r *models.Reservation) {
	c.entries[r.ID] = *r
}

func (c *mapCache) Del(ctx context.Context, id string) {
	delete(c.entries, id)
}

func cachedFixture() (*CachedReservationRepo, *stubStore, *mapCache) {
	store := newStubStore()
	cache := newMapCache()
	return NewCachedReservationRepo(store, cache), store, cache
}

func confirmedRow(id string, version int64) *models.Reservation {
	return &models.Reservation{
		ID:      id,
		ShopID:  "shop-1",
		Status:  models.StatusConfirmed,
		Window:  models.Window{Date: "2026-03-14", Start: 600, End: 660},
		Version: version,
	}
}

func TestCachedGetReadsThroughAndFills(t *testing.T) {
	repo, store, cache := cachedFixture()
	store.put(confirmedRow("res-1", 1))

	got, err := repo.GetByID(context.Background(), "res-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}
	if _, ok := cache.entries["res-1"]; !ok {
		t.Error("read did not fill the cache")
	}
}

func TestCachedSwapRefreshesEntry(t *testing.T) {
	repo, _, cache := cachedFixture()
	if err := repo.Insert(context.Background(), confirmedRow("res-1", 1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	updated, err := repo.CompareAndSwap(context.Background(), "res-1", 1, func(r *models.Reservation) {
		r.Status = models.StatusCompleted
	})
	if err != nil {
		t.Fatalf("CompareAndSwap: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("version = %d, want 2", updated.Version)
	}

	entry, ok := cache.entries["res-1"]
	if !ok {
		t.Fatal("swap removed the cache entry instead of refreshing it")
	}
	if entry.Version != 2 || entry.Status != models.StatusCompleted {
		t.Errorf("cached copy = v%d/%s, want v2/completed", entry.Version, entry.Status)
	}
}

// A cached copy can fall behind the store when another writer swaps the row
// between a read and its write-back. The version mismatch must drop the
// entry, so the caller's re-read hits the store and the retry converges
// instead of replaying the same stale version until the TTL expires.
func TestCachedSwapMismatchDropsStaleEntry(t *testing.T) {
	repo, store, cache := cachedFixture()
	store.put(confirmedRow("res-1", 2))
	cache.Set(context.Background(), confirmedRow("res-1", 1))

	stale, err := repo.GetByID(context.Background(), "res-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stale.Version != 1 {
		t.Fatalf("expected the seeded stale copy, got version %d", stale.Version)
	}

	if _, err := repo.CompareAndSwap(context.Background(), "res-1", stale.Version, func(r *models.Reservation) {
		r.Status = models.StatusCompleted
	}); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("CompareAndSwap error = %v, want ErrVersionMismatch", err)
	}
	if _, ok := cache.entries["res-1"]; ok {
		t.Fatal("version mismatch left the stale copy cached")
	}

	fresh, err := repo.GetByID(context.Background(), "res-1")
	if err != nil {
		t.Fatalf("re-read: %v", err)
	}
	if fresh.Version != 2 {
		t.Fatalf("re-read version = %d, want the store's 2", fresh.Version)
	}

	updated, err := repo.CompareAndSwap(context.Background(), "res-1", fresh.Version, func(r *models.Reservation) {
		r.Status = models.StatusCompleted
	})
	if err != nil {
		t.Fatalf("retry CompareAndSwap: %v", err)
	}
	if updated.Version != 3 || updated.Status != models.StatusCompleted {
		t.Errorf("retry result = v%d/%s, want v3/completed", updated.Version, updated.Status)
	}
}
