// Package store defines the persistence boundary the import pipeline
// reconciles against: account lookup, category provisioning and the
// transaction store with its atomic batch commit.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finwise/statement-ingest/internal/models"
)

// DedupWindow is the date tolerance used when matching a candidate
// import row against stored transactions.
const DedupWindow = 2 * 24 * time.Hour

// AccountDirectory lists a user's eligible destination accounts.
type AccountDirectory interface {
	// ListEligible returns the user's non-deleted accounts in stable
	// creation order, optionally filtered by declared type.
	ListEligible(ctx context.Context, userID, typeFilter string) ([]models.Account, error)
}

// CategoryDirectory reads and provisions a user's categories.
type CategoryDirectory interface {
	// EnsureDefaults provisions the fixed default category set for users
	// with no categories, and guarantees an "Others" catch-all exists
	// even for users who already have some.
	EnsureDefaults(ctx context.Context, userID string) error
	List(ctx context.Context, userID string) ([]models.Category, error)
}

// DuplicateQuery describes one candidate row for duplicate matching.
// An empty AccountID widens the match to all of the user's accounts,
// and an empty Currency matches rows in any currency; preview uses
// both, since neither the account nor its currency is decided yet.
type DuplicateQuery struct {
	UserID      string
	AccountID   string
	Date        time.Time
	Amount      decimal.Decimal
	Currency    string
	Description string
}

// Batch is one import's worth of writes, applied all-or-nothing:
// the inserted rows plus the accumulated per-account balance deltas.
type Batch struct {
	UserID        string
	Inserts       []models.Transaction
	BalanceDeltas map[string]decimal.Decimal
}

// TransactionStore persists reconciled transactions.
type TransactionStore interface {
	// FindDuplicate returns a stored, non-deleted transaction whose date
	// is within DedupWindow of the query date and whose amount, currency
	// and normalized description match, or nil. Empty query fields
	// (AccountID, Currency) are wildcards.
	FindDuplicate(ctx context.Context, q DuplicateQuery) (*models.Transaction, error)

	// CommitBatch inserts the batch's transactions and applies its
	// balance deltas in a single all-or-nothing unit. A failure partway
	// must leave no rows and no balance changes behind.
	CommitBatch(ctx context.Context, b Batch) error
}
