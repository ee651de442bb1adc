package scheduler

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/carpenike/repcoach/internal/logger"
	"github.com/carpenike/repcoach/internal/models"
)

// Status holds the result of the last maintenance run.
type Status struct {
	LastRun        time.Time
	NextRun        time.Time
	PendingExpired int64
	ReceiptsPruned int64
	MessagesPruned int64
	Interval       time.Duration
	Retention      time.Duration
}

// Scheduler runs periodic maintenance tasks in the background.
type Scheduler struct {
	db        *sql.DB
	interval  time.Duration
	retention time.Duration
	log       *logger.Logger
	now       func() time.Time
	stop      chan struct{}
	done      chan struct{}

	mu     sync.RWMutex
	status Status
}

// New creates a Scheduler that runs every interval and prunes conversation
// turns and inbound receipts older than retention.
func New(db *sql.DB, interval, retention time.Duration, log *logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		db:        db,
		interval:  interval,
		retention: retention,
		log:       log.With("component", "scheduler"),
		now:       time.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins running maintenance tasks. It runs an initial pass immediately,
// then repeats at the configured interval. Call Stop to shut down gracefully.
func (s *Scheduler) Start() {
	go s.run()
	s.log.Info("background scheduler started", "interval", s.interval.String(), "retention", s.retention.String())
}

// Stop signals the scheduler to shut down and waits for it to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// Status returns the result of the last maintenance run.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Scheduler) run() {
	defer close(s.done)

	s.runMaintenance()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runMaintenance()
		case <-s.stop:
			return
		}
	}
}

// runMaintenance executes all periodic cleanup tasks.
func (s *Scheduler) runMaintenance() {
	ctx := context.Background()
	now := s.now()

	expired := s.deleteExpiredPending(ctx, now)
	var receipts, messages int64
	if s.retention > 0 {
		cutoff := now.Add(-s.retention)
		receipts = s.pruneReceipts(ctx, cutoff)
		messages = s.pruneMessages(ctx, cutoff)
	}

	s.mu.Lock()
	s.status = Status{
		LastRun:        now,
		NextRun:        now.Add(s.interval),
		PendingExpired: expired,
		ReceiptsPruned: receipts,
		MessagesPruned: messages,
		Interval:       s.interval,
		Retention:      s.retention,
	}
	s.mu.Unlock()

	s.log.Debug("scheduled maintenance complete",
		"pending_expired", expired, "receipts_pruned", receipts, "messages_pruned", messages)
}

// deleteExpiredPending removes confirmations nobody answered in time.
func (s *Scheduler) deleteExpiredPending(ctx context.Context, now time.Time) int64 {
	deleted, err := models.DeleteExpiredPendingConfirmations(ctx, s.db, now)
	if err != nil {
		s.log.Error("maintenance: delete expired confirmations", "error", err)
		return 0
	}
	if deleted > 0 {
		s.log.Info("maintenance: expired pending confirmations deleted", "count", deleted)
	}
	return deleted
}

func (s *Scheduler) pruneReceipts(ctx context.Context, cutoff time.Time) int64 {
	deleted, err := models.PruneInboundReceipts(ctx, s.db, cutoff)
	if err != nil {
		s.log.Error("maintenance: prune inbound receipts", "error", err)
		return 0
	}
	return deleted
}

func (s *Scheduler) pruneMessages(ctx context.Context, cutoff time.Time) int64 {
	deleted, err := models.PruneMessages(ctx, s.db, cutoff)
	if err != nil {
		s.log.Error("maintenance: prune conversation turns", "error", err)
		return 0
	}
	if deleted > 0 {
		s.log.Info("maintenance: old conversation turns pruned", "count", deleted)
	}
	return deleted
}
