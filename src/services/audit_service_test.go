package services

import (
	"context"
	"testing"

	"github.com/username/ledgerly/backend/src/models"
)

func TestAuditRecordFlushedOnClose(t *testing.T) {
	store, db := openTestStore(t)
	userID := seedUser(t, db, "a@example.com")

	audit := NewAuditService(store, 8)
	audit.Record(context.Background(), models.AuditRecord{
		UserID: userID,
		Action: "sweep.completed",
		Detail: "created=1 updated=0 resolved=0",
	})
	audit.Close()

	var action string
	var createdAt int64
	err := db.QueryRow(`SELECT action, created_at FROM audit_log WHERE user_id = ?`, userID).Scan(&action, &createdAt)
	if err != nil {
		t.Fatalf("reading audit row: %v", err)
	}
	if action != "sweep.completed" {
		t.Errorf("action = %q, want sweep.completed", action)
	}
	if createdAt == 0 {
		t.Error("CreatedAt was not backfilled")
	}
}

func TestAuditRecordAfterCloseDropsSafely(t *testing.T) {
	store, db := openTestStore(t)
	userID := seedUser(t, db, "a@example.com")

	audit := NewAuditService(store, 8)
	audit.Close()
	audit.Close()

	audit.Record(context.Background(), models.AuditRecord{UserID: userID, Action: "late"})

	var n int
	if err := db.QueryRow(`SELECT COUNT(1) FROM audit_log WHERE user_id = ?`, userID).Scan(&n); err != nil {
		t.Fatalf("counting audit rows: %v", err)
	}
	if n != 0 {
		t.Errorf("got %d audit rows after close, want 0", n)
	}
}

func TestAuditFullQueueDropsWithoutBlocking(t *testing.T) {
	store, db := openTestStore(t)
	userID := seedUser(t, db, "a@example.com")

	s := &auditServiceImpl{
		store: store,
		queue: make(chan models.AuditRecord, 1),
		done:  make(chan struct{}),
	}
	// No writer running yet, so the second record finds the queue full.
	s.Record(context.Background(), models.AuditRecord{UserID: userID, Action: "first"})
	s.Record(context.Background(), models.AuditRecord{UserID: userID, Action: "second"})

	go s.run()
	s.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(1) FROM audit_log WHERE user_id = ?`, userID).Scan(&n); err != nil {
		t.Fatalf("counting audit rows: %v", err)
	}
	if n != 1 {
		t.Errorf("got %d audit rows, want 1", n)
	}
}
