package conflictRepo

import (
	"context"
	"errors"
	"time"

	"slotwise/models"
)

// ErrNotFound means no conflict record exists with the given id.
var ErrNotFound = errors.New("conflict record not found")

// ConflictRepository persists conflict records between detection and
// resolution.
type ConflictRepository interface {
	// GetByID retrieves a conflict record.
	GetByID(ctx context.Context, id string) (*models.ConflictRecord, error)
	// UpsertOpen records an open conflict for the shop+window, reusing an
	// existing open record covering the same set when one exists. Returns
	// the stored record.
	UpsertOpen(ctx context.Context, record *models.ConflictRecord) (*models.ConflictRecord, error)
	// ListOpen returns open conflicts, oldest first.
	ListOpen(ctx context.Context, shopID string, limit int64) ([]models.ConflictRecord, error)
	// MarkResolved closes a record with the strategy that resolved it.
	MarkResolved(ctx context.Context, id string, strategy models.ResolutionStrategy, resolvedAt time.Time) error
}
