package services

import (
	"context"
	"sync"
	"time"

	"github.com/username/ledgerly/backend/src/logger"
	"github.com/username/ledgerly/backend/src/models"
	"github.com/username/ledgerly/backend/src/storage"
)

type auditServiceImpl struct {
	store storage.Store
	queue chan models.AuditRecord
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewAuditService starts the background writer. Records are queued and
// flushed asynchronously; a full queue drops the record with a warning
// rather than blocking the hot path.
func NewAuditService(store storage.Store, queueSize int) AuditService {
	if queueSize <= 0 {
		queueSize = 256
	}
	s := &auditServiceImpl{
		store: store,
		queue: make(chan models.AuditRecord, queueSize),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *auditServiceImpl) run() {
	defer close(s.done)
	for record := range s.queue {
		if err := s.store.InsertAuditRecord(context.Background(), record); err != nil {
			logger.L.Warn("failed to persist audit record", "action", record.Action, "user_id", record.UserID, "error", err)
		}
	}
}

// Record never fails or blocks the caller. Records arriving after Close are
// dropped with a warning, like records hitting a full queue.
func (s *auditServiceImpl) Record(ctx context.Context, record models.AuditRecord) {
	if record.CreatedAt == 0 {
		record.CreatedAt = time.Now().UnixMilli()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		logger.WarnFromContext(ctx, "audit service closed, dropping record", "action", record.Action, "user_id", record.UserID)
		return
	}
	select {
	case s.queue <- record:
	default:
		logger.WarnFromContext(ctx, "audit queue full, dropping record", "action", record.Action, "user_id", record.UserID)
	}
}

// Close drains the queue and stops the writer. Safe to call more than once.
func (s *auditServiceImpl) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}
