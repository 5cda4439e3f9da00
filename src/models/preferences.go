package models

import "strings"

// UserPreferences are the stored per-user automation settings.
type UserPreferences struct {
	UserID              int64  `json:"user_id"`
	Timezone            string `json:"timezone"`
	BaseCurrency        string `json:"base_currency"`
	DueReminderDays     int    `json:"due_reminder_days"`
	DueRemindersEnabled bool   `json:"due_reminders_enabled"`
	MonthlyCycleEnabled bool   `json:"monthly_cycle_enabled"`
}

// DashboardPreferences are the display settings the dashboard saved for a
// user. They rank below the stored automation preferences.
type DashboardPreferences struct {
	UserID       int64  `json:"user_id"`
	Timezone     string `json:"timezone"`
	BaseCurrency string `json:"base_currency"`
}

// Effective preference resolution. Precedence is always:
// explicit argument > stored preference > dashboard preference > hard default.

func EffectiveTimezone(explicit string, prefs UserPreferences, dash DashboardPreferences, fallback string) string {
	if tz := strings.TrimSpace(explicit); tz != "" {
		return tz
	}
	if tz := strings.TrimSpace(prefs.Timezone); tz != "" {
		return tz
	}
	if tz := strings.TrimSpace(dash.Timezone); tz != "" {
		return tz
	}
	return fallback
}

func EffectiveBaseCurrency(explicit string, prefs UserPreferences, dash DashboardPreferences, fallback string) string {
	if c := strings.ToUpper(strings.TrimSpace(explicit)); c != "" {
		return c
	}
	if c := strings.ToUpper(strings.TrimSpace(prefs.BaseCurrency)); c != "" {
		return c
	}
	if c := strings.ToUpper(strings.TrimSpace(dash.BaseCurrency)); c != "" {
		return c
	}
	return fallback
}

func EffectiveDueReminderDays(explicit int, prefs UserPreferences, fallback int) int {
	if explicit > 0 {
		return explicit
	}
	if prefs.DueReminderDays > 0 {
		return prefs.DueReminderDays
	}
	return fallback
}
