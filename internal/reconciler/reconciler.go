// Package reconciler turns normalized statement rows into persisted
// transactions: it infers the destination account and category per row,
// skips probable duplicates within the date-tolerance window, and
// commits the surviving rows plus per-account balance deltas atomically.
package reconciler

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finwise/statement-ingest/internal/models"
	"github.com/finwise/statement-ingest/internal/normalizer"
	"github.com/finwise/statement-ingest/internal/store"
)

// DedupScope selects how wide duplicate matching looks.
type DedupScope int

const (
	// DedupScopeAccount matches only within the row's inferred account.
	// This is the commit-time policy.
	DedupScopeAccount DedupScope = iota
	// DedupScopeUser matches across all of the user's accounts. Preview
	// uses this: the destination account is not final yet.
	DedupScopeUser
)

// Reconciler is the only pipeline stage that touches persistent state.
type Reconciler struct {
	accounts   store.AccountDirectory
	categories store.CategoryDirectory
	txns       store.TransactionStore
	log        *zap.Logger
}

func New(accounts store.AccountDirectory, categories store.CategoryDirectory, txns store.TransactionStore, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{accounts: accounts, categories: categories, txns: txns, log: log}
}

// ImportParams describes one commit request.
type ImportParams struct {
	UserID           string
	Rows             []models.ParsedTransaction
	DefaultAccountID string
	AccountType      string
	Scope            DedupScope
}

// ImportResult reports what happened to the batch. Inserted and Skipped
// are orthogonal to normalization-time drops: skipped rows were
// understood but already exist.
type ImportResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// Import reconciles and commits a full normalized row set. All inserts
// and balance increments happen in one all-or-nothing storage unit; on
// any storage fault the caller sees models.ErrImportFailed and zero
// rows retained.
func (r *Reconciler) Import(ctx context.Context, p ImportParams) (ImportResult, error) {
	var res ImportResult
	if len(p.Rows) == 0 {
		return res, models.ErrNoRowsDetected
	}

	accounts, err := r.accounts.ListEligible(ctx, p.UserID, p.AccountType)
	if err != nil {
		return res, fmt.Errorf("listing accounts: %w", err)
	}
	if len(accounts) == 0 {
		return res, models.ErrNoAccountsAvailable
	}

	if err := r.categories.EnsureDefaults(ctx, p.UserID); err != nil {
		return res, fmt.Errorf("ensuring categories: %w", err)
	}
	categories, err := r.categories.List(ctx, p.UserID)
	if err != nil {
		return res, fmt.Errorf("listing categories: %w", err)
	}

	batch := store.Batch{
		UserID:        p.UserID,
		BalanceDeltas: make(map[string]decimal.Decimal),
	}

	for _, row := range p.Rows {
		acc := inferAccount(row, accounts, p.DefaultAccountID)
		cat := inferCategory(row.Description, categories)
		currency := row.Currency
		if currency == "" {
			currency = acc.Currency
		}
		desc := normalizer.NormalizeDescription(row.Description)

		q := store.DuplicateQuery{
			UserID:      p.UserID,
			Date:        row.Date,
			Amount:      row.Amount,
			Currency:    currency,
			Description: desc,
		}
		if p.Scope == DedupScopeAccount {
			q.AccountID = acc.ID
		}
		existing, err := r.txns.FindDuplicate(ctx, q)
		if err != nil {
			return ImportResult{}, fmt.Errorf("%w: %v", models.ErrImportFailed, err)
		}
		if existing != nil || batchContains(batch.Inserts, q) {
			res.Skipped++
			continue
		}

		status := row.Status
		if status == "" {
			status = models.StatusPosted
		}
		batch.Inserts = append(batch.Inserts, models.Transaction{
			UserID:      p.UserID,
			AccountID:   acc.ID,
			Date:        row.Date,
			Amount:      row.Amount,
			Currency:    currency,
			Description: desc,
			CategoryID:  cat,
			Status:      status,
			Tags:        []string{},
		})
		res.Inserted++

		// pending rows are recorded but do not move the balance
		if status == models.StatusPosted {
			batch.BalanceDeltas[acc.ID] = batch.BalanceDeltas[acc.ID].Add(row.Amount)
		}
	}

	if len(batch.Inserts) > 0 {
		if err := r.txns.CommitBatch(ctx, batch); err != nil {
			r.log.Error("batch commit failed",
				zap.String("user_id", p.UserID),
				zap.Int("rows", len(batch.Inserts)),
				zap.Error(err))
			return ImportResult{}, fmt.Errorf("%w: %v", models.ErrImportFailed, err)
		}
	}

	r.log.Info("statement imported",
		zap.String("user_id", p.UserID),
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// batchContains applies the store's duplicate-matching rules to the
// rows already pending in this batch, so a file repeating the same row
// inserts it once. The store cannot see pending rows until commit.
func batchContains(pending []models.Transaction, q store.DuplicateQuery) bool {
	lo := q.Date.Add(-store.DedupWindow)
	hi := q.Date.Add(store.DedupWindow)
	for _, t := range pending {
		if q.AccountID != "" && t.AccountID != q.AccountID {
			continue
		}
		if t.Date.Before(lo) || t.Date.After(hi) {
			continue
		}
		if q.Currency != "" && t.Currency != q.Currency {
			continue
		}
		if !t.Amount.Equal(q.Amount) || t.Description != q.Description {
			continue
		}
		return true
	}
	return false
}

// CountDuplicates runs the read-only duplicate check the preview uses,
// across all of the user's accounts and currencies: a currency-less CSV
// still has to recognize its own committed rows, which were stored with
// the account's currency filled in. It mutates nothing.
func (r *Reconciler) CountDuplicates(ctx context.Context, userID string, rows []models.ParsedTransaction) (int, error) {
	count := 0
	for _, row := range rows {
		existing, err := r.txns.FindDuplicate(ctx, store.DuplicateQuery{
			UserID:      userID,
			Date:        row.Date,
			Amount:      row.Amount,
			Description: normalizer.NormalizeDescription(row.Description),
		})
		if err != nil {
			return 0, err
		}
		if existing != nil {
			count++
		}
	}
	return count, nil
}

// inferAccount picks the destination account for a row, best effort:
// caller default, sole eligible account, name-hint substring match,
// sole currency match, then the first eligible account. Ambiguous rows
// still import, possibly to the wrong account; this trade-off is
// deliberate so a row never fails outright.
func inferAccount(row models.ParsedTransaction, accounts []models.Account, defaultID string) models.Account {
	if defaultID != "" {
		for _, a := range accounts {
			if a.ID == defaultID {
				return a
			}
		}
	}
	if len(accounts) == 1 {
		return accounts[0]
	}
	if row.AccountNameHint != "" {
		hint := strings.ToLower(row.AccountNameHint)
		var hit *models.Account
		matches := 0
		for i := range accounts {
			if strings.Contains(strings.ToLower(accounts[i].Name), hint) {
				hit = &accounts[i]
				matches++
			}
		}
		if matches == 1 {
			return *hit
		}
	}
	if row.Currency != "" {
		var hit *models.Account
		matches := 0
		for i := range accounts {
			if accounts[i].Currency == row.Currency {
				hit = &accounts[i]
				matches++
			}
		}
		if matches == 1 {
			return *hit
		}
	}
	return accounts[0]
}

// inferCategory maps a normalized description to a category id via the
// keyword table, falling back to "Others" and then to the first
// category. A transaction is never left uncategorized while the user
// has any category at all.
func inferCategory(desc string, categories []models.Category) string {
	if len(categories) == 0 {
		return ""
	}

	byName := make(map[string]models.Category, len(categories))
	for _, c := range categories {
		byName[strings.ToLower(c.Name)] = c
	}

	text := strings.ToLower(desc)
	for _, kw := range categoryKeywords {
		if strings.Contains(text, kw.keyword) {
			if c, ok := byName[strings.ToLower(kw.category)]; ok {
				return c.ID
			}
			break
		}
	}
	if c, ok := byName[strings.ToLower(catchAllCategory)]; ok {
		return c.ID
	}
	return categories[0].ID
}
