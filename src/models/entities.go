package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// User is the owning identity for every record below. Authentication lives in
// the identity provider; the row here only anchors foreign keys.
type User struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	CreatedAt   int64  `json:"created_at"`
}

// Account is a cash account a purchase can be funded from.
type Account struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	Name            string          `json:"name"`
	Currency        string          `json:"currency"`
	Balance         decimal.Decimal `json:"balance"`
	LowBalanceFloor decimal.Decimal `json:"low_balance_floor"`
	CreatedAt       int64           `json:"created_at"`
}

// Income is a recurring income source (salary, rent received, ...).
type Income struct {
	ID       int64           `json:"id"`
	UserID   int64           `json:"user_id"`
	Source   string          `json:"source"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Cadence  string          `json:"cadence"`
	PayDay   int             `json:"pay_day"`
	AnchorAt int64           `json:"anchor_at"`
}

// Bill is a recurring outgoing payment. Cadence "monthly" uses DueDay;
// "weekly", "biweekly" and "custom" use IntervalDays anchored at AnchorAt.
type Bill struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Cadence        string          `json:"cadence"`
	DueDay         int             `json:"due_day"`
	IntervalDays   int             `json:"interval_days"`
	AnchorAt       int64           `json:"anchor_at"`
	IsSubscription bool            `json:"is_subscription"`
}

// Loan is a loan with a fixed monthly payment due on DueDay.
type Loan struct {
	ID       int64           `json:"id"`
	UserID   int64           `json:"user_id"`
	Name     string          `json:"name"`
	Payment  decimal.Decimal `json:"payment"`
	Currency string          `json:"currency"`
	DueDay   int             `json:"due_day"`
}

// AllocationRule routes income to budget buckets by matching the income's
// source string.
type AllocationRule struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Pattern   string    `json:"pattern"`
	MatchMode MatchMode `json:"match_mode"`
	Enabled   bool      `json:"enabled"`
}

// Alert is a persisted automation alert. The fingerprint identifies the
// logical condition across sweep runs; the same condition re-detected on a
// later run updates the existing row instead of creating a duplicate.
type Alert struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"user_id"`
	Fingerprint string      `json:"fingerprint"`
	Title       string      `json:"title"`
	Detail      string      `json:"detail"`
	Severity    Severity    `json:"severity"`
	EntityType  string      `json:"entity_type"`
	EntityID    int64       `json:"entity_id"`
	DueAt       int64       `json:"due_at"`
	CycleKey    string      `json:"cycle_key"`
	Status      AlertStatus `json:"status"`
	Source      AlertSource `json:"source"`
	CreatedAt   int64       `json:"created_at"`
	UpdatedAt   int64       `json:"updated_at"`
	ResolvedAt  *int64      `json:"resolved_at,omitempty"`
}

// Suggestion is a persisted automation suggestion awaiting user review.
type Suggestion struct {
	ID          int64            `json:"id"`
	UserID      int64            `json:"user_id"`
	Fingerprint string           `json:"fingerprint"`
	Kind        SuggestionKind   `json:"kind"`
	Status      SuggestionStatus `json:"status"`
	Payload     json.RawMessage  `json:"payload"`
	CreatedAt   int64            `json:"created_at"`
	ReviewedAt  *int64           `json:"reviewed_at,omitempty"`
}

// SubscriptionPrice is one observed price point for a subscription bill.
// The newest row per bill is the baseline the next sweep compares against.
type SubscriptionPrice struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	BillID     int64           `json:"bill_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	RecordedAt int64           `json:"recorded_at"`
}

// FxSnapshot records the conversion applied to one amount at posting time.
// Synthetic marks a fabricated identity rate used because no real quote
// existed; it is recorded for audit transparency, never hidden.
type FxSnapshot struct {
	BaseMinor    int64           `json:"base_minor"`
	BaseCurrency string          `json:"base_currency"`
	Rate         decimal.Decimal `json:"rate"`
	AsOf         int64           `json:"as_of"`
	Source       string          `json:"source"`
	Synthetic    bool            `json:"synthetic"`
}

// Purchase is one user-recorded purchase, stored in integer minor units.
type Purchase struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Reference   string     `json:"reference"`
	Merchant    string     `json:"merchant"`
	AmountMinor int64      `json:"amount_minor"`
	Currency    string     `json:"currency"`
	AccountID   int64      `json:"account_id"`
	Fx          FxSnapshot `json:"fx"`
	CreatedAt   int64      `json:"created_at"`
}

// LedgerEntry is the double-sided posting for one purchase. It owns exactly
// one funding line and at least one allocation line; the signed minor amounts
// of all lines sum to zero. AmountMinor carries the funding sign, so a 10.00
// purchase posts an entry of -1000.
type LedgerEntry struct {
	ID          int64        `json:"id"`
	UserID      int64        `json:"user_id"`
	PurchaseID  int64        `json:"purchase_id"`
	AmountMinor int64        `json:"amount_minor"`
	Currency    string       `json:"currency"`
	CreatedAt   int64        `json:"created_at"`
	Lines       []LedgerLine `json:"lines"`
}

// LedgerLine is one side of a posting. The funding line is the credit side
// (negative signed amount); allocation lines are debits (positive).
type LedgerLine struct {
	ID          int64         `json:"id"`
	EntryID     int64         `json:"entry_id"`
	Direction   LineDirection `json:"direction"`
	AmountMinor int64         `json:"amount_minor"`
	Currency    string        `json:"currency"`
	AccountID   *int64        `json:"account_id,omitempty"`
	Label       string        `json:"label"`
	Fx          FxSnapshot    `json:"fx"`
}

// PurchasePosting bundles the purchase with its ledger entry for responses.
type PurchasePosting struct {
	Purchase Purchase    `json:"purchase"`
	Entry    LedgerEntry `json:"entry"`
}

// CycleRun marks a completed monthly cycle for a user.
type CycleRun struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	CycleKey    string `json:"cycle_key"`
	CompletedAt int64  `json:"completed_at"`
}

// AuditRecord is one best-effort audit log row.
type AuditRecord struct {
	UserID    int64  `json:"user_id"`
	Action    string `json:"action"`
	Detail    string `json:"detail"`
	CreatedAt int64  `json:"created_at"`
}
