package processors

import "github.com/username/ledgerly/backend/src/models"

// AlertUpdate patches a still-true alert's fields from the freshly computed
// desired record, forcing it back to open.
type AlertUpdate struct {
	ID      int64
	Desired models.Alert
}

// AlertDiff is the three-way reconciliation result for one sweep: rows to
// insert, rows to patch, and row ids to mark resolved.
type AlertDiff struct {
	Creates    []models.Alert
	Updates    []AlertUpdate
	ResolveIDs []int64
}

// ReconcileAlerts joins the desired set against the currently persisted set
// by fingerprint. It is a pure set diff: applying it twice with the same
// desired set converges to the same state.
//
// A snoozed record whose dueAt has passed counts as open again (expired
// snooze); other snoozed records and all resolved ones are invisible to the
// matching, so a re-appearing condition creates a fresh open record. Only
// automation-sourced records are ever auto-resolved.
func ReconcileAlerts(nowMs int64, desired, current []models.Alert) AlertDiff {
	matchable := make(map[string]models.Alert)
	for _, cur := range current {
		if !countsAsOpen(cur, nowMs) {
			continue
		}
		if prev, ok := matchable[cur.Fingerprint]; ok && prev.Status == models.AlertOpen {
			continue
		}
		matchable[cur.Fingerprint] = cur
	}

	var diff AlertDiff
	desiredSet := make(map[string]bool, len(desired))
	for _, want := range desired {
		desiredSet[want.Fingerprint] = true
		if cur, ok := matchable[want.Fingerprint]; ok {
			diff.Updates = append(diff.Updates, AlertUpdate{ID: cur.ID, Desired: want})
		} else {
			diff.Creates = append(diff.Creates, want)
		}
	}

	for fingerprint, cur := range matchable {
		if desiredSet[fingerprint] {
			continue
		}
		if cur.Source != models.SourceAutomation {
			continue
		}
		diff.ResolveIDs = append(diff.ResolveIDs, cur.ID)
	}

	return diff
}

func countsAsOpen(alert models.Alert, nowMs int64) bool {
	switch alert.Status {
	case models.AlertOpen:
		return true
	case models.AlertSnoozed:
		return alert.DueAt > 0 && alert.DueAt < nowMs
	default:
		return false
	}
}
