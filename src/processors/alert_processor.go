package processors

import (
	"fmt"

	"github.com/username/ledgerly/backend/src/models"
	"github.com/username/ledgerly/backend/src/schedule"
)

const dayMs = 24 * 60 * 60 * 1000

// Reminders fire at 09:00 local time on the due day.
const dueHour = 9

// AlertInputs is the per-user state snapshot one sweep computes desired
// alerts from. Everything is loaded up front; the processor itself is pure.
type AlertInputs struct {
	Now             int64
	Mode            models.SweepMode
	Timezone        string
	DueReminderDays int

	DueRemindersEnabled bool
	MonthlyCycleEnabled bool
	CycleRunDone        bool

	Accounts []models.Account
	Bills    []models.Bill
	Loans    []models.Loan
}

// AlertProcessor computes the desired alert set for one user from current
// account, bill and loan state.
type AlertProcessor struct {
	clock *schedule.Clock
}

func NewAlertProcessor(clock *schedule.Clock) *AlertProcessor {
	return &AlertProcessor{clock: clock}
}

// DesiredAlerts returns the alerts that should be open right now. The
// fingerprints are stable across runs for unchanged input state; the
// reconciliation diff joins on them.
func (p *AlertProcessor) DesiredAlerts(userID int64, in AlertInputs) []models.Alert {
	var desired []models.Alert

	if in.DueRemindersEnabled {
		for _, bill := range in.Bills {
			if alert, ok := p.billDueAlert(userID, bill, in); ok {
				desired = append(desired, alert)
			}
		}
		for _, loan := range in.Loans {
			if alert, ok := p.loanDueAlert(userID, loan, in); ok {
				desired = append(desired, alert)
			}
		}
	}

	for _, acct := range in.Accounts {
		if alert, ok := p.lowBalanceAlert(userID, acct, in); ok {
			desired = append(desired, alert)
		}
	}

	if in.Mode == models.SweepMonthly && in.MonthlyCycleEnabled && !in.CycleRunDone {
		desired = append(desired, p.cycleRunAlert(userID, in))
	}

	return desired
}

func (p *AlertProcessor) billDueAlert(userID int64, bill models.Bill, in AlertInputs) (models.Alert, bool) {
	rule := schedule.NormalizeCadence(bill.Cadence, bill.DueDay, dueHour, 0, bill.IntervalDays, bill.AnchorAt)
	dueAt := p.clock.NextOccurrence(in.Now, rule, in.Timezone)
	daysUntil := int((dueAt - in.Now) / dayMs)
	if daysUntil > in.DueReminderDays {
		return models.Alert{}, false
	}

	fingerprint := fmt.Sprintf("bill-due:%d:%d", bill.ID, bill.DueDay)
	if rule.Kind == schedule.IntervalDays {
		fingerprint = fmt.Sprintf("bill-due:%d:interval:%d", bill.ID, rule.Days)
	}

	return models.Alert{
		UserID:      userID,
		Fingerprint: fingerprint,
		Title:       fmt.Sprintf("Bill due: %s", bill.Name),
		Detail:      p.dueDetail(bill.Name, daysUntil, dueAt, in.Timezone),
		Severity:    dueSeverity(daysUntil),
		EntityType:  "bill",
		EntityID:    bill.ID,
		DueAt:       dueAt,
		CycleKey:    p.clock.CycleKey(dueAt, in.Timezone),
		Status:      models.AlertOpen,
		Source:      models.SourceAutomation,
	}, true
}

func (p *AlertProcessor) loanDueAlert(userID int64, loan models.Loan, in AlertInputs) (models.Alert, bool) {
	rule := schedule.Monthly(loan.DueDay, dueHour, 0)
	dueAt := p.clock.NextOccurrence(in.Now, rule, in.Timezone)
	daysUntil := int((dueAt - in.Now) / dayMs)
	if daysUntil > in.DueReminderDays {
		return models.Alert{}, false
	}

	return models.Alert{
		UserID:      userID,
		Fingerprint: fmt.Sprintf("loan-due:%d:%d", loan.ID, loan.DueDay),
		Title:       fmt.Sprintf("Loan payment due: %s", loan.Name),
		Detail:      p.dueDetail(loan.Name, daysUntil, dueAt, in.Timezone),
		Severity:    dueSeverity(daysUntil),
		EntityType:  "loan",
		EntityID:    loan.ID,
		DueAt:       dueAt,
		CycleKey:    p.clock.CycleKey(dueAt, in.Timezone),
		Status:      models.AlertOpen,
		Source:      models.SourceAutomation,
	}, true
}

func (p *AlertProcessor) lowBalanceAlert(userID int64, acct models.Account, in AlertInputs) (models.Alert, bool) {
	if !acct.LowBalanceFloor.IsPositive() || acct.Balance.GreaterThanOrEqual(acct.LowBalanceFloor) {
		return models.Alert{}, false
	}
	return models.Alert{
		UserID:      userID,
		Fingerprint: fmt.Sprintf("low-balance:%d", acct.ID),
		Title:       fmt.Sprintf("Low balance: %s", acct.Name),
		Detail: fmt.Sprintf("%s is at %s %s, below its floor of %s %s",
			acct.Name, acct.Balance.String(), acct.Currency, acct.LowBalanceFloor.String(), acct.Currency),
		Severity:   models.SeverityHigh,
		EntityType: "account",
		EntityID:   acct.ID,
		DueAt:      in.Now,
		CycleKey:   p.clock.CycleKey(in.Now, in.Timezone),
		Status:     models.AlertOpen,
		Source:     models.SourceAutomation,
	}, true
}

func (p *AlertProcessor) cycleRunAlert(userID int64, in AlertInputs) models.Alert {
	cycleKey := p.clock.CycleKey(in.Now, in.Timezone)
	return models.Alert{
		UserID:      userID,
		Fingerprint: fmt.Sprintf("cycle-run:%s", cycleKey),
		Title:       "Monthly cycle not completed",
		Detail:      fmt.Sprintf("The budget cycle for %s has not been run yet", cycleKey),
		Severity:    models.SeverityMedium,
		EntityType:  "cycle",
		DueAt:       in.Now,
		CycleKey:    cycleKey,
		Status:      models.AlertOpen,
		Source:      models.SourceAutomation,
	}
}

func (p *AlertProcessor) dueDetail(name string, daysUntil int, dueAt int64, tz string) string {
	parts := p.clock.ResolveCalendar(dueAt, tz)
	date := fmt.Sprintf("%04d-%02d-%02d", parts.Year, parts.Month, parts.Day)
	switch daysUntil {
	case 0:
		return fmt.Sprintf("%s is due today (%s)", name, date)
	case 1:
		return fmt.Sprintf("%s is due tomorrow (%s)", name, date)
	default:
		return fmt.Sprintf("%s is due in %d days (%s)", name, daysUntil, date)
	}
}

func dueSeverity(daysUntil int) models.Severity {
	if daysUntil <= 1 {
		return models.SeverityHigh
	}
	return models.SeverityMedium
}
