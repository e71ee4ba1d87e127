package reservation

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	conflictRepo "slotwise/database/repository/conflict"
	reservationRepo "slotwise/database/repository/reservation"
	"slotwise/models"
)

// Detector finds overlapping reservations for a shop and candidate window,
// and scans persisted rows for conflicts that slipped in (migrations, forced
// overrides).
type Detector struct {
	Repo      reservationRepo.ReservationRepository
	Conflicts conflictRepo.ConflictRepository
	Logger    *zap.Logger

	// Business-hours bounds and probe step for alternative-window search,
	// minutes from midnight.
	DayStart       int
	DayEnd         int
	ProbeIncrement int
}

// Detect returns active reservations of the shop overlapping the half-open
// window, ordered by start time then id. excludeID removes the reservation
// being rescheduled from its own conflict set.
func (d *Detector) Detect(ctx context.Context, shopID string, w models.Window, excludeID string) ([]models.Reservation, error) {
	found, err := d.Repo.FindByShopAndWindow(ctx, shopID, w, excludeID)
	if err != nil {
		return nil, &TransientStoreError{Op: "detect conflicts", Err: err}
	}
	return found, nil
}

// FindAlternatives probes the shop's day in fixed increments for windows of
// the same duration as desired that conflict with nothing, nearest to the
// desired start first.
func (d *Detector) FindAlternatives(ctx context.Context, shopID string, desired models.Window, limit int) ([]models.Window, error) {
	active, err := d.Repo.FindActiveByShopAndDate(ctx, shopID, desired.Date)
	if err != nil {
		return nil, &TransientStoreError{Op: "probe availability", Err: err}
	}

	duration := desired.Duration()
	step := d.ProbeIncrement
	if step <= 0 {
		step = 30
	}

	var candidates []models.Window
	for start := d.DayStart; start+duration <= d.DayEnd; start += step {
		w := models.Window{Date: desired.Date, Start: start, End: start + duration}
		free := true
		for _, r := range active {
			if r.Window.Overlaps(w) {
				free = false
				break
			}
		}
		if free {
			candidates = append(candidates, w)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		di, dj := absDiff(candidates[i].Start, desired.Start), absDiff(candidates[j].Start, desired.Start)
		if di != dj {
			return di < dj
		}
		return candidates[i].Start < candidates[j].Start
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// ScanShop looks for clusters of mutually overlapping active reservations on
// a date and records each cluster as an open ConflictRecord. Steady-state
// data has none; clusters come from legacy rows or forced overrides.
func (d *Detector) ScanShop(ctx context.Context, shopID, date string, now time.Time) ([]models.ConflictRecord, error) {
	active, err := d.Repo.FindActiveByShopAndDate(ctx, shopID, date)
	if err != nil {
		return nil, &TransientStoreError{Op: "scan shop for conflicts", Err: err}
	}
	if len(active) < 2 {
		return nil, nil
	}

	// active arrives ordered by start; sweep into clusters while the next
	// window begins before the running envelope ends.
	var records []models.ConflictRecord
	cluster := []models.Reservation{active[0]}
	envelopeEnd := active[0].Window.End
	flush := func() error {
		if len(cluster) < 2 {
			return nil
		}
		rec := &models.ConflictRecord{
			ID:     uuid.New().String(),
			ShopID: shopID,
			Window: models.Window{
				Date:  date,
				Start: cluster[0].Window.Start,
				End:   envelopeEnd,
			},
			ReservationIDs: reservationIDs(cluster),
			Status:         models.ConflictOpen,
			CreatedAt:      now,
		}
		stored, err := d.Conflicts.UpsertOpen(ctx, rec)
		if err != nil {
			return &TransientStoreError{Op: "record conflict", Err: err}
		}
		records = append(records, *stored)
		return nil
	}

	for _, r := range active[1:] {
		if r.Window.Start < envelopeEnd {
			cluster = append(cluster, r)
		} else {
			if err := flush(); err != nil {
				return records, err
			}
			cluster = []models.Reservation{r}
			envelopeEnd = r.Window.End
		}
		if r.Window.End > envelopeEnd {
			envelopeEnd = r.Window.End
		}
	}
	if err := flush(); err != nil {
		return records, err
	}

	if len(records) > 0 {
		d.Logger.Warn("conflict scan found overlapping reservations",
			zap.String("shopID", shopID), zap.String("date", date), zap.Int("conflicts", len(records)))
	}
	return records, nil
}

func reservationIDs(rs []models.Reservation) []string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	sort.Strings(ids)
	return ids
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
