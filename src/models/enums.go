package models

import "strings"

// Stored enum columns arrive as free-form strings from the database or from
// older schema versions. Each enum has a single normalization function that
// maps anything unrecognized onto its default, so the rest of the code can
// switch on closed values.

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func NormalizeSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityLow:
		return SeverityLow
	case SeverityHigh:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

type AlertStatus string

const (
	AlertOpen     AlertStatus = "open"
	AlertSnoozed  AlertStatus = "snoozed"
	AlertResolved AlertStatus = "resolved"
)

func NormalizeAlertStatus(s string) AlertStatus {
	switch AlertStatus(strings.ToLower(strings.TrimSpace(s))) {
	case AlertSnoozed:
		return AlertSnoozed
	case AlertResolved:
		return AlertResolved
	default:
		return AlertOpen
	}
}

type AlertSource string

const (
	SourceAutomation AlertSource = "automation"
	SourceManual     AlertSource = "manual"
)

func NormalizeAlertSource(s string) AlertSource {
	if AlertSource(strings.ToLower(strings.TrimSpace(s))) == SourceManual {
		return SourceManual
	}
	return SourceAutomation
}

type SuggestionStatus string

const (
	SuggestionOpen      SuggestionStatus = "open"
	SuggestionAccepted  SuggestionStatus = "accepted"
	SuggestionDismissed SuggestionStatus = "dismissed"
	SuggestionSnoozed   SuggestionStatus = "snoozed"
)

func NormalizeSuggestionStatus(s string) SuggestionStatus {
	switch SuggestionStatus(strings.ToLower(strings.TrimSpace(s))) {
	case SuggestionAccepted:
		return SuggestionAccepted
	case SuggestionDismissed:
		return SuggestionDismissed
	case SuggestionSnoozed:
		return SuggestionSnoozed
	default:
		return SuggestionOpen
	}
}

type SuggestionKind string

const (
	KindIncomeAllocation  SuggestionKind = "income_allocation"
	KindSubscriptionPrice SuggestionKind = "subscription_price"
)

type MatchMode string

const (
	MatchContains   MatchMode = "contains"
	MatchEquals     MatchMode = "equals"
	MatchStartsWith MatchMode = "starts_with"
	MatchEndsWith   MatchMode = "ends_with"
	MatchRegex      MatchMode = "regex"
)

func NormalizeMatchMode(s string) MatchMode {
	switch MatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case MatchEquals:
		return MatchEquals
	case MatchStartsWith:
		return MatchStartsWith
	case MatchEndsWith:
		return MatchEndsWith
	case MatchRegex:
		return MatchRegex
	default:
		return MatchContains
	}
}

type LineDirection string

const (
	DirectionDebit  LineDirection = "debit"
	DirectionCredit LineDirection = "credit"
)

type SweepMode string

const (
	SweepHourly  SweepMode = "hourly"
	SweepMonthly SweepMode = "monthly"
	SweepManual  SweepMode = "manual"
)

func NormalizeSweepMode(s string) SweepMode {
	switch SweepMode(strings.ToLower(strings.TrimSpace(s))) {
	case SweepMonthly:
		return SweepMonthly
	case SweepManual:
		return SweepManual
	default:
		return SweepHourly
	}
}
