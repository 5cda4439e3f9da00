package storage

import (
	"context"
	"errors"

	"github.com/username/ledgerly/backend/src/models"
	"github.com/username/ledgerly/backend/src/money"
)

var ErrNotFound = errors.New("record not found")

// Store is the persistence collaborator the automation core runs against.
// The core treats these as plain collection operations and assumes no
// particular engine; the sqlite implementation below is the default one.
type Store interface {
	// Users and preferences
	UserIDs(ctx context.Context) ([]int64, error)
	UserPreferences(ctx context.Context, userID int64) (models.UserPreferences, error)
	DashboardPreferences(ctx context.Context, userID int64) (models.DashboardPreferences, error)

	// Reference data
	AccountsByUser(ctx context.Context, userID int64) ([]models.Account, error)
	IncomesByUser(ctx context.Context, userID int64) ([]models.Income, error)
	BillsByUser(ctx context.Context, userID int64) ([]models.Bill, error)
	LoansByUser(ctx context.Context, userID int64) ([]models.Loan, error)
	AllocationRulesByUser(ctx context.Context, userID int64) ([]models.AllocationRule, error)

	// Alerts
	AlertsByUser(ctx context.Context, userID int64) ([]models.Alert, error)
	UnresolvedAlertsByUser(ctx context.Context, userID int64) ([]models.Alert, error)
	InsertAlert(ctx context.Context, alert *models.Alert) error
	PatchAlert(ctx context.Context, id int64, desired models.Alert, nowMs int64) (bool, error)
	ResolveAlert(ctx context.Context, id int64, nowMs int64) (bool, error)
	SnoozeAlert(ctx context.Context, userID, id int64) (bool, error)

	// Suggestions
	SuggestionsByUser(ctx context.Context, userID int64) ([]models.Suggestion, error)
	OpenSuggestionFingerprints(ctx context.Context, userID int64) (map[string]bool, error)
	InsertSuggestion(ctx context.Context, suggestion *models.Suggestion) error
	ReviewSuggestion(ctx context.Context, userID, id int64, status models.SuggestionStatus, nowMs int64) (bool, error)

	// Subscription price observations
	LatestSubscriptionPrices(ctx context.Context, userID int64) (map[int64]models.SubscriptionPrice, error)
	InsertSubscriptionPrice(ctx context.Context, price *models.SubscriptionPrice) error

	// Cycle runs
	CycleRunDone(ctx context.Context, userID int64, cycleKey string) (bool, error)
	MarkCycleRun(ctx context.Context, userID int64, cycleKey string, nowMs int64) error

	// FX and currency metadata
	FxQuotes(ctx context.Context) (map[string]money.FxQuote, error)
	CurrencyFractionDigits(ctx context.Context) (map[string]int, error)

	// Ledger
	InsertPosting(ctx context.Context, purchase *models.Purchase, entry *models.LedgerEntry) error
	PurchaseByID(ctx context.Context, userID, id int64) (*models.PurchasePosting, error)

	// Audit
	InsertAuditRecord(ctx context.Context, record models.AuditRecord) error
}
