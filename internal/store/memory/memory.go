// Package memory is an in-process store implementation used by tests
// and as the default backend for local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finwise/statement-ingest/internal/models"
	"github.com/finwise/statement-ingest/internal/store"
)

// Store keeps accounts, categories and transactions in maps guarded by
// one mutex. CommitBatch is atomic by construction: everything is
// applied under the lock after validation.
type Store struct {
	mu         sync.Mutex
	accounts   map[string]models.Account
	accOrder   map[string]int
	categories map[string]models.Category
	txns       map[string]models.Transaction
	seq        int
}

func New() *Store {
	return &Store{
		accounts:   make(map[string]models.Account),
		accOrder:   make(map[string]int),
		categories: make(map[string]models.Category),
		txns:       make(map[string]models.Transaction),
	}
}

// AddAccount seeds an account, assigning an id when absent, and returns
// the stored value.
func (s *Store) AddAccount(a models.Account) models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	s.accounts[a.ID] = a
	s.accOrder[a.ID] = s.seq
	s.seq++
	return a
}

// AccountBalance returns the current balance for an account.
func (s *Store) AccountBalance(id string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id].Balance
}

// Transactions returns all stored transactions for a user.
func (s *Store) Transactions(userID string) []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, t := range s.txns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) ListEligible(ctx context.Context, userID, typeFilter string) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Account
	for _, a := range s.accounts {
		if a.UserID != userID || a.Deleted {
			continue
		}
		if typeFilter != "" && !strings.EqualFold(a.Type, typeFilter) {
			continue
		}
		out = append(out, a)
	}
	// map iteration is unordered; account inference needs stable creation order
	sort.Slice(out, func(i, j int) bool { return s.accOrder[out[i].ID] < s.accOrder[out[j].ID] })
	return out, nil
}

func (s *Store) EnsureDefaults(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hasAny := false
	hasOthers := false
	for _, c := range s.categories {
		if c.UserID != userID {
			continue
		}
		hasAny = true
		if strings.EqualFold(c.Name, "Others") {
			hasOthers = true
		}
	}
	if hasAny {
		if !hasOthers {
			s.put(models.Category{UserID: userID, Name: "Others", Color: "#9CA3AF"})
		}
		return nil
	}
	for _, c := range store.DefaultCategories {
		c.UserID = userID
		s.put(c)
	}
	return nil
}

func (s *Store) put(c models.Category) {
	c.ID = uuid.New().String()
	s.categories[c.ID] = c
}

func (s *Store) List(ctx context.Context, userID string) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Category
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) FindDuplicate(ctx context.Context, q store.DuplicateQuery) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lo := q.Date.Add(-store.DedupWindow)
	hi := q.Date.Add(store.DedupWindow)
	for _, t := range s.txns {
		if t.UserID != q.UserID || t.Deleted {
			continue
		}
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
		found := t
		return &found, nil
	}
	return nil, nil
}

func (s *Store) CommitBatch(ctx context.Context, b store.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// validate before mutating anything
	for accID := range b.BalanceDeltas {
		if _, ok := s.accounts[accID]; !ok {
			return errAccountMissing(accID)
		}
	}

	now := time.Now().UTC()
	for _, t := range b.Inserts {
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		s.txns[t.ID] = t
	}
	for accID, delta := range b.BalanceDeltas {
		a := s.accounts[accID]
		a.Balance = a.Balance.Add(delta)
		s.accounts[accID] = a
	}
	return nil
}

type errAccountMissing string

func (e errAccountMissing) Error() string {
	return "unknown account in balance delta: " + string(e)
}
