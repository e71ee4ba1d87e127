package reservation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	conflictRepo "slotwise/database/repository/conflict"
	reservationRepo "slotwise/database/repository/reservation"
	"slotwise/models"
)

var errStoreOffline = errors.New("store offline")

// memRepo is an in-memory ReservationRepository with fault injection knobs.
type memRepo struct {
	mu     sync.Mutex
	rows   map[string]*models.Reservation
	audits []models.StateAuditEntry

	// failGetsFor fails the next N GetByID calls per reservation id.
	failGetsFor map[string]int
	// failCASFor fails the next N CompareAndSwap calls per reservation id.
	failCASFor map[string]int
}

var _ reservationRepo.ReservationRepository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		rows:        make(map[string]*models.Reservation),
		failGetsFor: make(map[string]int),
		failCASFor:  make(map[string]int),
	}
}

func (m *memRepo) put(r *models.Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *r
	m.rows[r.ID] = &clone
}

func (m *memRepo) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGetsFor[id] > 0 {
		m.failGetsFor[id]--
		return nil, errStoreOffline
	}
	r, ok := m.rows[id]
	if !ok {
		return nil, reservationRepo.ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (m *memRepo) Insert(ctx context.Context, r *models.Reservation) error {
	m.put(r)
	return nil
}

func (m *memRepo) FindByShopAndWindow(ctx context.Context, shopID string, w models.Window, excludeID string) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reservation
	for _, r := range m.rows {
		if r.ShopID != shopID || r.ID == excludeID || !r.Status.Active() {
			continue
		}
		if r.Window.Overlaps(w) {
			out = append(out, *r)
		}
	}
	sortByStartThenID(out)
	return out, nil
}

func (m *memRepo) FindActiveByShopAndDate(ctx context.Context, shopID, date string) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reservation
	for _, r := range m.rows {
		if r.ShopID == shopID && r.Window.Date == date && r.Status.Active() {
			out = append(out, *r)
		}
	}
	sortByStartThenID(out)
	return out, nil
}

func (m *memRepo) CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutate func(*models.Reservation)) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCASFor[id] > 0 {
		m.failCASFor[id]--
		return nil, errStoreOffline
	}
	r, ok := m.rows[id]
	if !ok {
		return nil, reservationRepo.ErrNotFound
	}
	if r.Version != expectedVersion {
		return nil, reservationRepo.ErrVersionMismatch
	}
	clone := *r
	mutate(&clone)
	clone.Version = expectedVersion + 1
	m.rows[id] = &clone
	out := clone
	return &out, nil
}

func (m *memRepo) AppendAudit(ctx context.Context, entry *models.StateAuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, *entry)
	return nil
}

func (m *memRepo) ListAuditByReservation(ctx context.Context, reservationID string) ([]models.StateAuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StateAuditEntry
	for _, e := range m.audits {
		if e.ReservationID == reservationID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memRepo) FindRequestedCreatedBefore(ctx context.Context, cutoff time.Time, limit int64) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reservation
	for _, r := range m.rows {
		if r.Status == models.StatusRequested && r.CreatedAt.Before(cutoff) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) FindConfirmedByDateUpTo(ctx context.Context, dateCeil string, limit int64) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reservation
	for _, r := range m.rows {
		if r.Status == models.StatusConfirmed && r.Window.Date <= dateCeil {
			out = append(out, *r)
		}
	}
	sortByStartThenID(out)
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortByStartThenID(rs []models.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Window.Start != rs[j].Window.Start {
			return rs[i].Window.Start < rs[j].Window.Start
		}
		return rs[i].ID < rs[j].ID
	})
}

// memConflicts is an in-memory ConflictRepository.
type memConflicts struct {
	mu      sync.Mutex
	records map[string]*models.ConflictRecord
}

var _ conflictRepo.ConflictRepository = (*memConflicts)(nil)

func newMemConflicts() *memConflicts {
	return &memConflicts{records: make(map[string]*models.ConflictRecord)}
}

func (m *memConflicts) put(rec *models.ConflictRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *rec
	m.records[rec.ID] = &clone
}

func (m *memConflicts) GetByID(ctx context.Context, id string) (*models.ConflictRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, conflictRepo.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *memConflicts) UpsertOpen(ctx context.Context, record *models.ConflictRecord) (*models.ConflictRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.Status == models.ConflictOpen && rec.ShopID == record.ShopID && rec.Window == record.Window {
			clone := *rec
			return &clone, nil
		}
	}
	clone := *record
	m.records[record.ID] = &clone
	out := clone
	return &out, nil
}

func (m *memConflicts) ListOpen(ctx context.Context, shopID string, limit int64) ([]models.ConflictRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ConflictRecord
	for _, rec := range m.records {
		if rec.Status != models.ConflictOpen {
			continue
		}
		if shopID != "" && rec.ShopID != shopID {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memConflicts) MarkResolved(ctx context.Context, id string, strategy models.ResolutionStrategy, resolvedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return conflictRepo.ErrNotFound
	}
	rec.Status = models.ConflictResolved
	rec.Strategy = strategy
	rec.ResolvedAt = &resolvedAt
	return nil
}

// fakeClock is a settable Clock. A nonzero step makes each Now call tick the
// clock forward, simulating wall time passing during a run.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

func (c *fakeClock) Location() *time.Location { return time.UTC }

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// memLocker is a non-blocking in-process SingletonLocker. A held key fails
// immediately; the tests are single-actor so retry loops are unnecessary.
type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

var _ SingletonLocker = (*memLocker)(nil)

func newMemLocker() *memLocker { return &memLocker{held: make(map[string]bool)} }

func (l *memLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, ErrLockNotObtained
	}
	l.held[key] = true
	return &memLock{locker: l, key: key}, nil
}

func (l *memLocker) TryObtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	return l.Obtain(ctx, key, ttl)
}

func (l *memLocker) hold(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[key] = true
}

type memLock struct {
	locker *memLocker
	key    string
}

func (lk *memLock) Release(ctx context.Context) error {
	lk.locker.mu.Lock()
	defer lk.locker.mu.Unlock()
	delete(lk.locker.held, lk.key)
	return nil
}

// refundCall records one refund-queue invocation.
type refundCall struct {
	reservationID    string
	cancellationType models.ReservationStatus
	reason           string
}

type fakeRefunds struct {
	mu    sync.Mutex
	calls []refundCall
}

func (f *fakeRefunds) CalculateAndQueueRefund(ctx context.Context, reservationID string, cancellationType models.ReservationStatus, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, refundCall{reservationID, cancellationType, reason})
	return nil
}

func (f *fakeRefunds) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) Notify(ctx context.Context, userID, eventType string, payload map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return nil
}

// fixture bundles a fully wired engine stack over the in-memory fakes.
type fixture struct {
	repo      *memRepo
	conflicts *memConflicts
	clock     *fakeClock
	locker    *memLocker
	refunds   *fakeRefunds
	notify    *fakeNotifier
	engine    *Engine
	detector  *Detector
	resched   *Rescheduler
	service   *DefaultReservationService
}

// testNow is 09:00 UTC on the fixture's reference day.
var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

const testDay = "2026-03-14"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemRepo()
	conflicts := newMemConflicts()
	clock := newFakeClock(testNow)
	locker := newMemLocker()
	refunds := &fakeRefunds{}
	notify := &fakeNotifier{}
	logger := zap.NewNop()

	engine := &Engine{
		Repo:    repo,
		Locker:  locker,
		Clock:   clock,
		Refunds: refunds,
		Notify:  notify,
		Logger:  logger,
	}
	detector := &Detector{
		Repo:           repo,
		Conflicts:      conflicts,
		Logger:         logger,
		DayStart:       9 * 60,
		DayEnd:         21 * 60,
		ProbeIncrement: 30,
	}
	resched := &Rescheduler{
		Repo:             repo,
		Detector:         detector,
		Locker:           locker,
		Clock:            clock,
		Notify:           notify,
		Logger:           logger,
		MinNotice:        2 * time.Hour,
		AlternativeLimit: 3,
	}
	service := &DefaultReservationService{
		Repo:     repo,
		Engine:   engine,
		Detector: detector,
		Resched:  resched,
		Locker:   locker,
		Clock:    clock,
		Logger:   logger,
	}
	return &fixture{
		repo:      repo,
		conflicts: conflicts,
		clock:     clock,
		locker:    locker,
		refunds:   refunds,
		notify:    notify,
		engine:    engine,
		detector:  detector,
		resched:   resched,
		service:   service,
	}
}

func (f *fixture) newResolver(minSplit int) *Resolver {
	return &Resolver{
		Repo:             f.repo,
		Conflicts:        f.conflicts,
		Detector:         f.detector,
		Engine:           f.engine,
		Resched:          f.resched,
		Clock:            f.clock,
		Logger:           zap.NewNop(),
		MinSplitDuration: minSplit,
		AlternativeLimit: 3,
	}
}

func (f *fixture) newScheduler(t *testing.T) *ProgressionScheduler {
	t.Helper()
	grace, err := NewGracePolicy(GraceConfig{
		Default: GraceWindows{
			ConfirmationExpiryHours: 24,
			CompletionGraceMinutes:  30,
			NoShowGraceMinutes:      15,
		},
	})
	if err != nil {
		t.Fatalf("building grace policy: %v", err)
	}
	return &ProgressionScheduler{
		Repo:   f.repo,
		Engine: f.engine,
		Grace:  grace,
		Clock:  f.clock,
		Locker: f.locker,
		Logger: zap.NewNop(),
		Cfg: SchedulerConfig{
			Enabled:    true,
			Interval:   time.Minute,
			BatchSize:  100,
			MaxRetries: 1,
			RetryDelay: time.Millisecond,
			RunBudget:  time.Hour,
		},
	}
}

// seed inserts a reservation with sane defaults, applying mutators on top.
func (f *fixture) seed(t *testing.T, id string, status models.ReservationStatus, w models.Window, muts ...func(*models.Reservation)) *models.Reservation {
	t.Helper()
	r := &models.Reservation{
		ID:            id,
		ShopID:        "shop-1",
		CustomerID:    "cust-1",
		ServiceIDs:    []string{"svc-cut"},
		ServiceType:   "haircut",
		Window:        w,
		Status:        status,
		TotalAmount:   30000,
		DepositAmount: 10000,
		CreatedAt:     testNow.Add(-time.Hour),
		UpdatedAt:     testNow.Add(-time.Hour),
		Version:       1,
	}
	for _, mut := range muts {
		mut(r)
	}
	f.repo.put(r)
	return r
}

func window(start, end int) models.Window {
	return models.Window{Date: testDay, Start: start, End: end}
}

func (f *fixture) mustGet(t *testing.T, id string) *models.Reservation {
	t.Helper()
	r, err := f.repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reading reservation %s: %v", id, err)
	}
	return r
}
