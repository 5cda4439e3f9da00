package processors

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/ledgerly/backend/src/models"
	"github.com/username/ledgerly/backend/src/schedule"
)

func utcMillis(year int, month time.Month, day, hour int) int64 {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC).UnixMilli()
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func baseInputs(now int64) AlertInputs {
	return AlertInputs{
		Now:                 now,
		Mode:                models.SweepHourly,
		Timezone:            "UTC",
		DueReminderDays:     3,
		DueRemindersEnabled: true,
	}
}

func TestBillDueOnDayThirtyOneInFebruary(t *testing.T) {
	p := NewAlertProcessor(schedule.NewClock("UTC"))

	in := baseInputs(utcMillis(2024, time.February, 25, 12))
	in.Bills = []models.Bill{{ID: 7, Name: "Rent", Amount: dec("1200"), Currency: "USD", Cadence: "monthly", DueDay: 31}}

	alerts := p.DesiredAlerts(1, in)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	alert := alerts[0]
	if alert.Fingerprint != "bill-due:7:31" {
		t.Errorf("Fingerprint = %q, want bill-due:7:31", alert.Fingerprint)
	}
	if want := utcMillis(2024, time.February, 29, 9); alert.DueAt != want {
		t.Errorf("DueAt = %d, want %d (Feb 29 09:00 UTC)", alert.DueAt, want)
	}
	if alert.Severity != models.SeverityMedium {
		t.Errorf("Severity = %s, want medium", alert.Severity)
	}
	if alert.CycleKey != "2024-02" {
		t.Errorf("CycleKey = %q, want 2024-02", alert.CycleKey)
	}
	if alert.Source != models.SourceAutomation || alert.Status != models.AlertOpen {
		t.Errorf("Source/Status = %s/%s, want automation/open", alert.Source, alert.Status)
	}
}

func TestBillOutsideReminderWindow(t *testing.T) {
	p := NewAlertProcessor(schedule.NewClock("UTC"))

	in := baseInputs(utcMillis(2024, time.February, 10, 0))
	in.Bills = []models.Bill{{ID: 7, Name: "Rent", Cadence: "monthly", DueDay: 28}}

	if alerts := p.DesiredAlerts(1, in); len(alerts) != 0 {
		t.Errorf("got %d alerts, want none outside the window", len(alerts))
	}
}

func TestBillDueTomorrowIsHighSeverity(t *testing.T) {
	p := NewAlertProcessor(schedule.NewClock("UTC"))

	in := baseInputs(utcMillis(2024, time.March, 14, 8))
	in.Bills = []models.Bill{{ID: 2, Name: "Internet", Cadence: "monthly", DueDay: 15}}

	alerts := p.DesiredAlerts(1, in)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	if alerts[0].Severity != models.SeverityHigh {
		t.Errorf("Severity = %s, want high for a bill due tomorrow", alerts[0].Severity)
	}
}

func TestIntervalBillFingerprint(t *testing.T) {
	p := NewAlertProcessor(schedule.NewClock("UTC"))

	anchor := utcMillis(2024, time.March, 1, 9)
	in := baseInputs(utcMillis(2024, time.March, 13, 0))
	in.Bills = []models.Bill{{ID: 4, Name: "Cleaner", Cadence: "weekly", AnchorAt: anchor}}

	alerts := p.DesiredAlerts(1, in)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	if alerts[0].Fingerprint != "bill-due:4:interval:7" {
		t.Errorf("Fingerprint = %q, want bill-due:4:interval:7", alerts[0].Fingerprint)
	}
	if want := anchor + 14*dayMs; alerts[0].DueAt != want {
		t.Errorf("DueAt = %d, want %d", alerts[0].DueAt, want)
	}
}

func TestDueRemindersDisabled(t *testing.T) {
	p := NewAlertProcessor(schedule.NewClock("UTC"))

	in := baseInputs(utcMillis(2024, time.March, 14, 8))
	in.DueRemindersEnabled = false
	in.Bills = []models.Bill{{ID: 2, Name: "Internet", Cadence: "monthly", DueDay: 15}}
	in.Loans = []models.Loan{{ID: 9, Name: "Car", DueDay: 15}}

	if alerts := p.DesiredAlerts(1, in); len(alerts) != 0 {
		t.Errorf("got %d alerts with reminders disabled, want none", len(alerts))
	}
}

func TestLoanDueAlert(t *testing.T) {
	p := NewAlertProcessor(schedule.NewClock("UTC"))

	in := baseInputs(utcMillis(2024, time.March, 13, 0))
	in.Loans = []models.Loan{{ID: 9, Name: "Car", Payment: dec("310.55"), Currency: "USD", DueDay: 15}}

	alerts := p.DesiredAlerts(1, in)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	if alerts[0].Fingerprint != "loan-due:9:15" {
		t.Errorf("Fingerprint = %q, want loan-due:9:15", alerts[0].Fingerprint)
	}
	if alerts[0].EntityType != "loan" || alerts[0].EntityID != 9 {
		t.Errorf("entity = %s/%d, want loan/9", alerts[0].EntityType, alerts[0].EntityID)
	}
}

func TestLowBalanceAlert(t *testing.T) {
	p := NewAlertProcessor(schedule.NewClock("UTC"))
	now := utcMillis(2024, time.June, 1, 10)

	tests := []struct {
		name    string
		balance string
		floor   string
		want    int
	}{
		{"below floor", "45.00", "100.00", 1},
		{"at floor", "100.00", "100.00", 0},
		{"above floor", "250.00", "100.00", 0},
		{"floor unset", "-5.00", "0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInputs(now)
			in.Accounts = []models.Account{{ID: 3, Name: "Checking", Currency: "USD",
				Balance: dec(tt.balance), LowBalanceFloor: dec(tt.floor)}}
			alerts := p.DesiredAlerts(1, in)
			if len(alerts) != tt.want {
				t.Fatalf("got %d alerts, want %d", len(alerts), tt.want)
			}
			if tt.want == 1 {
				if alerts[0].Fingerprint != "low-balance:3" {
					t.Errorf("Fingerprint = %q, want low-balance:3", alerts[0].Fingerprint)
				}
				if alerts[0].Severity != models.SeverityHigh {
					t.Errorf("Severity = %s, want high", alerts[0].Severity)
				}
			}
		})
	}
}

func TestCycleRunAlert(t *testing.T) {
	p := NewAlertProcessor(schedule.NewClock("UTC"))
	now := utcMillis(2024, time.April, 1, 6)

	tests := []struct {
		name    string
		mode    models.SweepMode
		enabled bool
		done    bool
		want    int
	}{
		{"monthly pending", models.SweepMonthly, true, false, 1},
		{"monthly already done", models.SweepMonthly, true, true, 0},
		{"monthly disabled", models.SweepMonthly, false, false, 0},
		{"hourly never checks", models.SweepHourly, true, false, 0},
		{"manual never checks", models.SweepManual, true, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInputs(now)
			in.Mode = tt.mode
			in.MonthlyCycleEnabled = tt.enabled
			in.CycleRunDone = tt.done
			alerts := p.DesiredAlerts(1, in)
			if len(alerts) != tt.want {
				t.Fatalf("got %d alerts, want %d", len(alerts), tt.want)
			}
			if tt.want == 1 && alerts[0].Fingerprint != "cycle-run:2024-04" {
				t.Errorf("Fingerprint = %q, want cycle-run:2024-04", alerts[0].Fingerprint)
			}
		})
	}
}

func TestFingerprintStableAcrossRuns(t *testing.T) {
	p := NewAlertProcessor(schedule.NewClock("UTC"))

	in := baseInputs(utcMillis(2024, time.February, 25, 12))
	in.Bills = []models.Bill{{ID: 7, Name: "Rent", Cadence: "monthly", DueDay: 31}}

	first := p.DesiredAlerts(1, in)
	in.Now += 2 * 60 * 60 * 1000
	second := p.DesiredAlerts(1, in)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("got %d/%d alerts, want 1/1", len(first), len(second))
	}
	if first[0].Fingerprint != second[0].Fingerprint {
		t.Errorf("fingerprint changed between runs: %q vs %q", first[0].Fingerprint, second[0].Fingerprint)
	}
}
