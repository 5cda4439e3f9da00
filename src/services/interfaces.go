package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/username/ledgerly/backend/src/models"
	"github.com/username/ledgerly/backend/src/money"
)

// Validation errors surfaced to callers before any write.
var (
	ErrInvalidAmount  = errors.New("purchase amount must be positive")
	ErrUnknownAccount = errors.New("unknown account reference")
	ErrMissingMerchant = errors.New("merchant is required")
)

// SweepResult is the summary one sweep execution returns.
type SweepResult struct {
	Mode               models.SweepMode `json:"mode"`
	UsersSwept         int              `json:"users_swept"`
	AlertsCreated      int              `json:"alerts_created"`
	AlertsUpdated      int              `json:"alerts_updated"`
	AlertsResolved     int              `json:"alerts_resolved"`
	SuggestionsCreated int              `json:"suggestions_created"`
}

// SweepService drives the automation sweep: it loads current state, computes
// the desired alert and suggestion sets, reconciles them against what is
// persisted and applies the diff. Re-running with unchanged state converges.
type SweepService interface {
	// RunSweep executes one sweep for one user.
	RunSweep(ctx context.Context, userID int64, mode models.SweepMode) (SweepResult, error)
	// RunAll sweeps every user. Per-user failures are logged and skipped;
	// the aggregate counts cover the users that succeeded.
	RunAll(ctx context.Context, mode models.SweepMode) SweepResult
}

// PurchaseSplit is one caller-supplied allocation of a purchase. Weights are
// proportional, not required to sum to anything in particular.
type PurchaseSplit struct {
	Label     string          `json:"label"`
	Weight    decimal.Decimal `json:"weight"`
	AccountID *int64          `json:"account_id,omitempty"`
}

// PurchaseInput is the caller's description of a purchase to post.
type PurchaseInput struct {
	Merchant  string          `json:"merchant"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	AccountID int64           `json:"account_id"`
	Splits    []PurchaseSplit `json:"splits"`
}

// LedgerService posts purchases as double-sided ledger entries with exact
// minor-unit arithmetic and recorded FX snapshots.
type LedgerService interface {
	PostPurchase(ctx context.Context, userID int64, input PurchaseInput) (*models.PurchasePosting, error)
}

// FxService supplies the USD-quoted rate table. It degrades to an empty
// table on storage failure so conversions fall back to synthetic identity
// instead of failing.
type FxService interface {
	Quotes(ctx context.Context) map[string]money.FxQuote
}

// AuditService is the best-effort write-behind audit log. Record never
// blocks and never fails the caller.
type AuditService interface {
	Record(ctx context.Context, record models.AuditRecord)
	Close()
}
