package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/ledgerly/backend/src/logger"
	"github.com/username/ledgerly/backend/src/models"
	"github.com/username/ledgerly/backend/src/money"
	"github.com/username/ledgerly/backend/src/processors"
	"github.com/username/ledgerly/backend/src/schedule"
	"github.com/username/ledgerly/backend/src/storage"
)

// SweepDefaults are the fallbacks applied when a user has no stored
// preference. They come from configuration.
type SweepDefaults struct {
	Timezone        string
	BaseCurrency    string
	DueReminderDays int
}

type sweepServiceImpl struct {
	store       storage.Store
	clock       *schedule.Clock
	converter   *money.Converter
	fx          FxService
	audit       AuditService
	alerts      *processors.AlertProcessor
	suggestions *processors.SuggestionProcessor
	defaults    SweepDefaults
	now         func() int64
}

func NewSweepService(store storage.Store, clock *schedule.Clock, converter *money.Converter, fx FxService, audit AuditService, defaults SweepDefaults) SweepService {
	return &sweepServiceImpl{
		store:       store,
		clock:       clock,
		converter:   converter,
		fx:          fx,
		audit:       audit,
		alerts:      processors.NewAlertProcessor(clock),
		suggestions: processors.NewSuggestionProcessor(),
		defaults:    defaults,
		now:         func() int64 { return time.Now().UnixMilli() },
	}
}

func (s *sweepServiceImpl) RunSweep(ctx context.Context, userID int64, mode models.SweepMode) (SweepResult, error) {
	result := SweepResult{Mode: mode, UsersSwept: 1}
	nowMs := s.now()

	prefs, err := s.store.UserPreferences(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("loading preferences for user %d: %w", userID, err)
	}
	dash, err := s.store.DashboardPreferences(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("loading dashboard preferences for user %d: %w", userID, err)
	}
	tz := models.EffectiveTimezone("", prefs, dash, s.defaults.Timezone)
	baseCurrency := models.EffectiveBaseCurrency("", prefs, dash, s.defaults.BaseCurrency)
	reminderDays := models.EffectiveDueReminderDays(0, prefs, s.defaults.DueReminderDays)

	accounts, err := s.store.AccountsByUser(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("loading accounts: %w", err)
	}
	bills, err := s.store.BillsByUser(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("loading bills: %w", err)
	}
	loans, err := s.store.LoansByUser(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("loading loans: %w", err)
	}
	incomes, err := s.store.IncomesByUser(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("loading incomes: %w", err)
	}
	rules, err := s.store.AllocationRulesByUser(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("loading allocation rules: %w", err)
	}
	latestPrices, err := s.store.LatestSubscriptionPrices(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("loading subscription prices: %w", err)
	}
	openFingerprints, err := s.store.OpenSuggestionFingerprints(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("loading open suggestions: %w", err)
	}
	current, err := s.store.UnresolvedAlertsByUser(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("loading unresolved alerts: %w", err)
	}

	// The cycle-run check only runs in monthly mode. Other modes leave
	// existing cycle alerts untouched rather than resolving a condition
	// they never evaluated.
	cycleDone := true
	if mode == models.SweepMonthly && prefs.MonthlyCycleEnabled {
		cycleKey := s.clock.CycleKey(nowMs, tz)
		cycleDone, err = s.store.CycleRunDone(ctx, userID, cycleKey)
		if err != nil {
			return result, fmt.Errorf("checking cycle run: %w", err)
		}
	} else {
		filtered := current[:0]
		for _, alert := range current {
			if alert.EntityType != "cycle" {
				filtered = append(filtered, alert)
			}
		}
		current = filtered
	}

	quotes := s.fx.Quotes(ctx)

	desiredAlerts := s.alerts.DesiredAlerts(userID, processors.AlertInputs{
		Now:                 nowMs,
		Mode:                mode,
		Timezone:            tz,
		DueReminderDays:     reminderDays,
		DueRemindersEnabled: prefs.DueRemindersEnabled,
		MonthlyCycleEnabled: prefs.MonthlyCycleEnabled,
		CycleRunDone:        cycleDone,
		Accounts:            accounts,
		Bills:               bills,
		Loans:               loans,
	})

	desiredSuggestions := s.suggestions.DesiredSuggestions(userID, processors.SuggestionInputs{
		Incomes:           s.incomesInBase(ctx, incomes, baseCurrency, quotes),
		Rules:             rules,
		Bills:             bills,
		LatestPrices:      latestPrices,
		OpenFingerprints:  openFingerprints,
		MonthlyBillsTotal: s.monthlyBillsTotal(bills, baseCurrency, quotes),
	})

	diff := processors.ReconcileAlerts(nowMs, desiredAlerts, current)

	for i := range diff.Creates {
		alert := diff.Creates[i]
		alert.CreatedAt = nowMs
		alert.UpdatedAt = nowMs
		if err := s.store.InsertAlert(ctx, &alert); err != nil {
			return result, fmt.Errorf("inserting alert %q: %w", alert.Fingerprint, err)
		}
		result.AlertsCreated++
	}
	for _, upd := range diff.Updates {
		ok, err := s.store.PatchAlert(ctx, upd.ID, upd.Desired, nowMs)
		if err != nil {
			return result, fmt.Errorf("updating alert %d: %w", upd.ID, err)
		}
		if !ok {
			// Resolved or deleted between load and patch. Next sweep catches up.
			logger.WarnFromContext(ctx, "alert vanished before update", "alert_id", upd.ID)
			continue
		}
		result.AlertsUpdated++
	}
	for _, id := range diff.ResolveIDs {
		ok, err := s.store.ResolveAlert(ctx, id, nowMs)
		if err != nil {
			return result, fmt.Errorf("resolving alert %d: %w", id, err)
		}
		if ok {
			result.AlertsResolved++
		}
	}

	for i := range desiredSuggestions {
		sugg := desiredSuggestions[i]
		sugg.CreatedAt = nowMs
		if err := s.store.InsertSuggestion(ctx, &sugg); err != nil {
			return result, fmt.Errorf("inserting suggestion %q: %w", sugg.Fingerprint, err)
		}
		result.SuggestionsCreated++
		if sugg.Kind == models.KindSubscriptionPrice {
			s.recordPriceObservation(ctx, userID, sugg, nowMs)
		}
	}

	s.audit.Record(ctx, models.AuditRecord{
		UserID: userID,
		Action: "sweep.completed",
		Detail: fmt.Sprintf("mode=%s created=%d updated=%d resolved=%d suggestions=%d",
			mode, result.AlertsCreated, result.AlertsUpdated, result.AlertsResolved, result.SuggestionsCreated),
	})
	return result, nil
}

func (s *sweepServiceImpl) RunAll(ctx context.Context, mode models.SweepMode) SweepResult {
	total := SweepResult{Mode: mode}
	userIDs, err := s.store.UserIDs(ctx)
	if err != nil {
		logger.ErrorFromContext(ctx, "failed to list users for sweep", "error", err)
		return total
	}
	for _, userID := range userIDs {
		res, err := s.RunSweep(ctx, userID, mode)
		if err != nil {
			logger.ErrorFromContext(ctx, "sweep failed for user", "user_id", userID, "error", err)
			continue
		}
		total.UsersSwept++
		total.AlertsCreated += res.AlertsCreated
		total.AlertsUpdated += res.AlertsUpdated
		total.AlertsResolved += res.AlertsResolved
		total.SuggestionsCreated += res.SuggestionsCreated
	}
	return total
}

// recordPriceObservation persists the amount a subscription suggestion was
// raised for, so the next sweep compares against it instead of raising the
// same suggestion again.
func (s *sweepServiceImpl) recordPriceObservation(ctx context.Context, userID int64, sugg models.Suggestion, nowMs int64) {
	var payload models.PriceChangePayload
	if err := json.Unmarshal(sugg.Payload, &payload); err != nil || payload.BillID == 0 {
		logger.WarnFromContext(ctx, "skipping price observation for malformed payload", "fingerprint", sugg.Fingerprint)
		return
	}
	price := models.SubscriptionPrice{
		UserID:     userID,
		BillID:     payload.BillID,
		Amount:     payload.NewAmount,
		Currency:   payload.Currency,
		RecordedAt: nowMs,
	}
	if err := s.store.InsertSubscriptionPrice(ctx, &price); err != nil {
		logger.WarnFromContext(ctx, "failed to record subscription price observation", "bill_id", payload.BillID, "error", err)
	}
}

// incomesInBase converts income amounts to the user's base currency so the
// coverage ratio compares like with like.
func (s *sweepServiceImpl) incomesInBase(ctx context.Context, incomes []models.Income, baseCurrency string, quotes map[string]money.FxQuote) []models.Income {
	out := make([]models.Income, len(incomes))
	for i, inc := range incomes {
		conv := s.converter.Convert(inc.Amount, inc.Currency, baseCurrency, quotes)
		inc.Amount = conv.Amount.Value
		inc.Currency = baseCurrency
		out[i] = inc
	}
	return out
}

// monthlyBillsTotal sums all bills as monthly amounts in the base currency.
// Interval cadences are scaled to a 30-day month.
func (s *sweepServiceImpl) monthlyBillsTotal(bills []models.Bill, baseCurrency string, quotes map[string]money.FxQuote) decimal.Decimal {
	total := decimal.Zero
	for _, bill := range bills {
		amount := s.converter.Convert(bill.Amount, bill.Currency, baseCurrency, quotes).Amount.Value
		rule := schedule.NormalizeCadence(bill.Cadence, bill.DueDay, 0, 0, bill.IntervalDays, bill.AnchorAt)
		if rule.Kind == schedule.IntervalDays {
			amount = amount.Mul(decimal.NewFromInt(30)).Div(decimal.NewFromInt(int64(rule.Days)))
		}
		total = total.Add(amount)
	}
	return total
}
