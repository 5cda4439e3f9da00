package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/username/ledgerly/backend/src/logger"
	"github.com/username/ledgerly/backend/src/models"
	"github.com/username/ledgerly/backend/src/money"
)

type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an already opened and migrated database handle.
func NewSQLiteStore(db *sql.DB) Store {
	return &sqliteStore{db: db}
}

// decFrom tolerantly parses a stored decimal column. Legacy rows with
// malformed values resolve to zero instead of failing the whole query.
func decFrom(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		logger.L.Warn("Malformed decimal column, defaulting to zero", "value", raw)
		return decimal.Zero
	}
	return d
}

func (s *sqliteStore) UserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *sqliteStore) UserPreferences(ctx context.Context, userID int64) (models.UserPreferences, error) {
	prefs := models.UserPreferences{UserID: userID, DueRemindersEnabled: true}
	err := s.db.QueryRowContext(ctx, `
		SELECT timezone, base_currency, due_reminder_days, due_reminders_enabled, monthly_cycle_enabled
		FROM user_preferences WHERE user_id = ?`, userID).
		Scan(&prefs.Timezone, &prefs.BaseCurrency, &prefs.DueReminderDays,
			&prefs.DueRemindersEnabled, &prefs.MonthlyCycleEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return prefs, nil
	}
	if err != nil {
		return prefs, fmt.Errorf("querying preferences for user %d: %w", userID, err)
	}
	return prefs, nil
}

func (s *sqliteStore) DashboardPreferences(ctx context.Context, userID int64) (models.DashboardPreferences, error) {
	prefs := models.DashboardPreferences{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT timezone, base_currency FROM dashboard_preferences WHERE user_id = ?`, userID).
		Scan(&prefs.Timezone, &prefs.BaseCurrency)
	if errors.Is(err, sql.ErrNoRows) {
		return prefs, nil
	}
	if err != nil {
		return prefs, fmt.Errorf("querying dashboard preferences for user %d: %w", userID, err)
	}
	return prefs, nil
}

func (s *sqliteStore) AccountsByUser(ctx context.Context, userID int64) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, currency, balance, low_balance_floor, created_at
		FROM accounts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying accounts for user %d: %w", userID, err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		var balance, floor string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Currency, &balance, &floor, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Balance = decFrom(balance)
		a.LowBalanceFloor = decFrom(floor)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *sqliteStore) IncomesByUser(ctx context.Context, userID int64) ([]models.Income, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, source, amount, currency, cadence, pay_day, anchor_at
		FROM incomes WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying incomes for user %d: %w", userID, err)
	}
	defer rows.Close()

	var incomes []models.Income
	for rows.Next() {
		var in models.Income
		var amount string
		if err := rows.Scan(&in.ID, &in.UserID, &in.Source, &amount, &in.Currency, &in.Cadence, &in.PayDay, &in.AnchorAt); err != nil {
			return nil, err
		}
		in.Amount = decFrom(amount)
		incomes = append(incomes, in)
	}
	return incomes, rows.Err()
}

func (s *sqliteStore) BillsByUser(ctx context.Context, userID int64) ([]models.Bill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, category, amount, currency, cadence, due_day, interval_days, anchor_at, is_subscription
		FROM bills WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying bills for user %d: %w", userID, err)
	}
	defer rows.Close()

	var bills []models.Bill
	for rows.Next() {
		var b models.Bill
		var amount string
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.Category, &amount, &b.Currency,
			&b.Cadence, &b.DueDay, &b.IntervalDays, &b.AnchorAt, &b.IsSubscription); err != nil {
			return nil, err
		}
		b.Amount = decFrom(amount)
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func (s *sqliteStore) LoansByUser(ctx context.Context, userID int64) ([]models.Loan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, payment, currency, due_day
		FROM loans WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying loans for user %d: %w", userID, err)
	}
	defer rows.Close()

	var loans []models.Loan
	for rows.Next() {
		var l models.Loan
		var payment string
		if err := rows.Scan(&l.ID, &l.UserID, &l.Name, &payment, &l.Currency, &l.DueDay); err != nil {
			return nil, err
		}
		l.Payment = decFrom(payment)
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

func (s *sqliteStore) AllocationRulesByUser(ctx context.Context, userID int64) ([]models.AllocationRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, pattern, match_mode, enabled
		FROM allocation_rules WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying allocation rules for user %d: %w", userID, err)
	}
	defer rows.Close()

	var rules []models.AllocationRule
	for rows.Next() {
		var r models.AllocationRule
		var mode string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Pattern, &mode, &r.Enabled); err != nil {
			return nil, err
		}
		r.MatchMode = models.NormalizeMatchMode(mode)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

const alertColumns = `id, user_id, fingerprint, title, detail, severity, entity_type, entity_id,
	due_at, cycle_key, status, source, created_at, updated_at, resolved_at`

func scanAlert(rows *sql.Rows) (models.Alert, error) {
	var a models.Alert
	var severity, status, source string
	err := rows.Scan(&a.ID, &a.UserID, &a.Fingerprint, &a.Title, &a.Detail, &severity,
		&a.EntityType, &a.EntityID, &a.DueAt, &a.CycleKey, &status, &source,
		&a.CreatedAt, &a.UpdatedAt, &a.ResolvedAt)
	if err != nil {
		return a, err
	}
	a.Severity = models.NormalizeSeverity(severity)
	a.Status = models.NormalizeAlertStatus(status)
	a.Source = models.NormalizeAlertSource(source)
	return a, nil
}

func (s *sqliteStore) alertsWhere(ctx context.Context, where string, args ...any) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE `+where+` ORDER BY due_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *sqliteStore) AlertsByUser(ctx context.Context, userID int64) ([]models.Alert, error) {
	return s.alertsWhere(ctx, `user_id = ?`, userID)
}

func (s *sqliteStore) UnresolvedAlertsByUser(ctx context.Context, userID int64) ([]models.Alert, error) {
	return s.alertsWhere(ctx, `user_id = ? AND status != 'resolved'`, userID)
}

func (s *sqliteStore) InsertAlert(ctx context.Context, alert *models.Alert) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (user_id, fingerprint, title, detail, severity, entity_type, entity_id,
			due_at, cycle_key, status, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.UserID, alert.Fingerprint, alert.Title, alert.Detail, string(alert.Severity),
		alert.EntityType, alert.EntityID, alert.DueAt, alert.CycleKey,
		string(alert.Status), string(alert.Source), alert.CreatedAt, alert.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting alert %s: %w", alert.Fingerprint, err)
	}
	alert.ID, err = res.LastInsertId()
	return err
}

func (s *sqliteStore) PatchAlert(ctx context.Context, id int64, desired models.Alert, nowMs int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET title = ?, detail = ?, severity = ?, entity_type = ?, entity_id = ?,
			due_at = ?, cycle_key = ?, status = 'open', updated_at = ?
		WHERE id = ? AND status != 'resolved'`,
		desired.Title, desired.Detail, string(desired.Severity), desired.EntityType, desired.EntityID,
		desired.DueAt, desired.CycleKey, nowMs, id)
	if err != nil {
		return false, fmt.Errorf("patching alert %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *sqliteStore) ResolveAlert(ctx context.Context, id int64, nowMs int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET status = 'resolved', resolved_at = ?, updated_at = ?
		WHERE id = ? AND status != 'resolved'`, nowMs, nowMs, id)
	if err != nil {
		return false, fmt.Errorf("resolving alert %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *sqliteStore) SnoozeAlert(ctx context.Context, userID, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET status = 'snoozed' WHERE id = ? AND user_id = ? AND status = 'open'`, id, userID)
	if err != nil {
		return false, fmt.Errorf("snoozing alert %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *sqliteStore) SuggestionsByUser(ctx context.Context, userID int64) ([]models.Suggestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, fingerprint, kind, status, payload, created_at, reviewed_at
		FROM suggestions WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying suggestions for user %d: %w", userID, err)
	}
	defer rows.Close()

	var suggestions []models.Suggestion
	for rows.Next() {
		var sg models.Suggestion
		var kind, status, payload string
		if err := rows.Scan(&sg.ID, &sg.UserID, &sg.Fingerprint, &kind, &status, &payload, &sg.CreatedAt, &sg.ReviewedAt); err != nil {
			return nil, err
		}
		sg.Kind = models.SuggestionKind(kind)
		sg.Status = models.NormalizeSuggestionStatus(status)
		sg.Payload = []byte(payload)
		suggestions = append(suggestions, sg)
	}
	return suggestions, rows.Err()
}

func (s *sqliteStore) OpenSuggestionFingerprints(ctx context.Context, userID int64) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fingerprint FROM suggestions WHERE user_id = ? AND status = 'open'`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying open suggestion fingerprints for user %d: %w", userID, err)
	}
	defer rows.Close()

	open := make(map[string]bool)
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, err
		}
		open[fp] = true
	}
	return open, rows.Err()
}

func (s *sqliteStore) InsertSuggestion(ctx context.Context, suggestion *models.Suggestion) error {
	payload := string(suggestion.Payload)
	if payload == "" {
		payload = "{}"
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO suggestions (user_id, fingerprint, kind, status, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		suggestion.UserID, suggestion.Fingerprint, string(suggestion.Kind),
		string(suggestion.Status), payload, suggestion.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting suggestion %s: %w", suggestion.Fingerprint, err)
	}
	suggestion.ID, err = res.LastInsertId()
	return err
}

func (s *sqliteStore) ReviewSuggestion(ctx context.Context, userID, id int64, status models.SuggestionStatus, nowMs int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE suggestions SET status = ?, reviewed_at = ?
		WHERE id = ? AND user_id = ? AND status = 'open'`, string(status), nowMs, id, userID)
	if err != nil {
		return false, fmt.Errorf("reviewing suggestion %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *sqliteStore) LatestSubscriptionPrices(ctx context.Context, userID int64) (map[int64]models.SubscriptionPrice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, bill_id, amount, currency, recorded_at
		FROM subscription_prices WHERE user_id = ? ORDER BY bill_id, recorded_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying subscription prices for user %d: %w", userID, err)
	}
	defer rows.Close()

	// later rows overwrite earlier ones, leaving the newest per bill
	latest := make(map[int64]models.SubscriptionPrice)
	for rows.Next() {
		var p models.SubscriptionPrice
		var amount string
		if err := rows.Scan(&p.ID, &p.UserID, &p.BillID, &amount, &p.Currency, &p.RecordedAt); err != nil {
			return nil, err
		}
		p.Amount = decFrom(amount)
		latest[p.BillID] = p
	}
	return latest, rows.Err()
}

func (s *sqliteStore) InsertSubscriptionPrice(ctx context.Context, price *models.SubscriptionPrice) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO subscription_prices (user_id, bill_id, amount, currency, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		price.UserID, price.BillID, price.Amount.String(), price.Currency, price.RecordedAt)
	if err != nil {
		return fmt.Errorf("inserting subscription price for bill %d: %w", price.BillID, err)
	}
	price.ID, err = res.LastInsertId()
	return err
}

func (s *sqliteStore) CycleRunDone(ctx context.Context, userID int64, cycleKey string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM cycle_runs WHERE user_id = ? AND cycle_key = ?`, userID, cycleKey).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying cycle run %s for user %d: %w", cycleKey, userID, err)
	}
	return n > 0, nil
}

func (s *sqliteStore) MarkCycleRun(ctx context.Context, userID int64, cycleKey string, nowMs int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycle_runs (user_id, cycle_key, completed_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id, cycle_key) DO NOTHING`, userID, cycleKey, nowMs)
	if err != nil {
		return fmt.Errorf("marking cycle run %s for user %d: %w", cycleKey, userID, err)
	}
	return nil
}

func (s *sqliteStore) FxQuotes(ctx context.Context) (map[string]money.FxQuote, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT currency, rate, as_of, source, synthetic FROM fx_rates`)
	if err != nil {
		return nil, fmt.Errorf("querying fx rates: %w", err)
	}
	defer rows.Close()

	quotes := make(map[string]money.FxQuote)
	for rows.Next() {
		var code, rate string
		var q money.FxQuote
		if err := rows.Scan(&code, &rate, &q.AsOf, &q.Source, &q.Synthetic); err != nil {
			return nil, err
		}
		q.Rate = decFrom(rate)
		quotes[money.NormalizeCurrency(code)] = q
	}
	return quotes, rows.Err()
}

func (s *sqliteStore) CurrencyFractionDigits(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, fraction_digits FROM currencies`)
	if err != nil {
		return nil, fmt.Errorf("querying currencies: %w", err)
	}
	defer rows.Close()

	digits := make(map[string]int)
	for rows.Next() {
		var code string
		var d int
		if err := rows.Scan(&code, &d); err != nil {
			return nil, err
		}
		digits[money.NormalizeCurrency(code)] = d
	}
	return digits, rows.Err()
}

func (s *sqliteStore) InsertPosting(ctx context.Context, purchase *models.Purchase, entry *models.LedgerEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning posting transaction: %w", err)
	}
	defer tx.Rollback()

	if purchase.Reference == "" {
		purchase.Reference = uuid.New().String()
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO purchases (user_id, reference, merchant, amount_minor, currency, account_id,
			base_minor, base_currency, fx_rate, fx_as_of, fx_source, fx_synthetic, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		purchase.UserID, purchase.Reference, purchase.Merchant, purchase.AmountMinor, purchase.Currency,
		purchase.AccountID, purchase.Fx.BaseMinor, purchase.Fx.BaseCurrency, purchase.Fx.Rate.String(),
		purchase.Fx.AsOf, purchase.Fx.Source, purchase.Fx.Synthetic, purchase.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting purchase: %w", err)
	}
	if purchase.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	entry.PurchaseID = purchase.ID
	res, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (user_id, purchase_id, amount_minor, currency, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.UserID, entry.PurchaseID, entry.AmountMinor, entry.Currency, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting ledger entry: %w", err)
	}
	if entry.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	for i := range entry.Lines {
		line := &entry.Lines[i]
		line.EntryID = entry.ID
		res, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_lines (entry_id, direction, amount_minor, currency, account_id, label,
				base_minor, base_currency, fx_rate, fx_as_of, fx_source, fx_synthetic)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			line.EntryID, string(line.Direction), line.AmountMinor, line.Currency, line.AccountID, line.Label,
			line.Fx.BaseMinor, line.Fx.BaseCurrency, line.Fx.Rate.String(), line.Fx.AsOf, line.Fx.Source, line.Fx.Synthetic)
		if err != nil {
			return fmt.Errorf("inserting ledger line %d: %w", i, err)
		}
		if line.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *sqliteStore) PurchaseByID(ctx context.Context, userID, id int64) (*models.PurchasePosting, error) {
	var p models.Purchase
	var rate string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, reference, merchant, amount_minor, currency, account_id,
			base_minor, base_currency, fx_rate, fx_as_of, fx_source, fx_synthetic, created_at
		FROM purchases WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&p.ID, &p.UserID, &p.Reference, &p.Merchant, &p.AmountMinor, &p.Currency, &p.AccountID,
			&p.Fx.BaseMinor, &p.Fx.BaseCurrency, &rate, &p.Fx.AsOf, &p.Fx.Source, &p.Fx.Synthetic, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying purchase %d: %w", id, err)
	}
	p.Fx.Rate = decFrom(rate)

	var entry models.LedgerEntry
	err = s.db.QueryRowContext(ctx, `
		SELECT id, user_id, purchase_id, amount_minor, currency, created_at
		FROM ledger_entries WHERE purchase_id = ?`, p.ID).
		Scan(&entry.ID, &entry.UserID, &entry.PurchaseID, &entry.AmountMinor, &entry.Currency, &entry.CreatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("querying ledger entry for purchase %d: %w", p.ID, err)
	}

	if entry.ID != 0 {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, entry_id, direction, amount_minor, currency, account_id, label,
				base_minor, base_currency, fx_rate, fx_as_of, fx_source, fx_synthetic
			FROM ledger_lines WHERE entry_id = ? ORDER BY id`, entry.ID)
		if err != nil {
			return nil, fmt.Errorf("querying ledger lines for entry %d: %w", entry.ID, err)
		}
		defer rows.Close()
		for rows.Next() {
			var line models.LedgerLine
			var direction, lineRate string
			if err := rows.Scan(&line.ID, &line.EntryID, &direction, &line.AmountMinor, &line.Currency,
				&line.AccountID, &line.Label, &line.Fx.BaseMinor, &line.Fx.BaseCurrency, &lineRate,
				&line.Fx.AsOf, &line.Fx.Source, &line.Fx.Synthetic); err != nil {
				return nil, err
			}
			line.Direction = models.LineDirection(direction)
			line.Fx.Rate = decFrom(lineRate)
			entry.Lines = append(entry.Lines, line)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	return &models.PurchasePosting{Purchase: p, Entry: entry}, nil
}

func (s *sqliteStore) InsertAuditRecord(ctx context.Context, record models.AuditRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (user_id, action, detail, created_at) VALUES (?, ?, ?, ?)`,
		record.UserID, record.Action, record.Detail, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}
	return nil
}
