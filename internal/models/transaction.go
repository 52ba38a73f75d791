package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxnStatus distinguishes rows that affect the account balance (POSTED)
// from rows that are recorded but not yet counted (PENDING).
type TxnStatus string

const (
	StatusPosted  TxnStatus = "POSTED"
	StatusPending TxnStatus = "PENDING"
)

// ParsedTransaction is the canonical output of statement normalization.
// It lives only for the duration of one import request; reconciliation
// turns it into a persisted Transaction.
type ParsedTransaction struct {
	Date            time.Time       `json:"date"`
	Description     string          `json:"description"` // normalized, at most 256 characters
	Amount          decimal.Decimal `json:"amount"`      // positive = credit, negative = debit
	Currency        string          `json:"currency,omitempty"`
	AccountNameHint string          `json:"accountNameHint,omitempty"`
	Status          TxnStatus       `json:"status"`
}

// Account is a destination account for imported rows. The pipeline reads
// accounts and adjusts balances; it never creates or deletes them.
type Account struct {
	ID       string          `json:"id"`
	UserID   string          `json:"-"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
	Deleted  bool            `json:"-"`
}

// Category is a user-owned spending category.
type Category struct {
	ID     string `json:"id"`
	UserID string `json:"-"`
	Name   string `json:"name"`
	Color  string `json:"color"`
}

// Transaction is the persisted result of reconciling one imported row.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	AccountID   string          `json:"accountId"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	CategoryID  string          `json:"categoryId,omitempty"`
	Status      TxnStatus       `json:"status"`
	Tags        []string        `json:"tags"`
	CreatedAt   time.Time       `json:"createdAt"`
	Deleted     bool            `json:"-"`
}
