package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/carpenike/repcoach/internal/database"
	"github.com/carpenike/repcoach/internal/logger"
	"github.com/carpenike/repcoach/internal/models"
)

// testDB creates a fresh in-memory SQLite database with migrations applied.
func testDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchedulerStartStop(t *testing.T) {
	db := testDB(t)
	s := New(db, time.Hour, 24*time.Hour, logger.Nop())
	s.Start()
	// Stop should return without blocking.
	s.Stop()

	if s.Status().LastRun.IsZero() {
		t.Error("initial maintenance pass did not run")
	}
}

func TestMaintenanceCleanup(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	alice, _, err := models.EnsureUserProfile(ctx, db, "+15550001")
	if err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
	bob, _, err := models.EnsureUserProfile(ctx, db, "+15550002")
	if err != nil {
		t.Fatalf("ensure profile: %v", err)
	}

	// Alice's question expired an hour ago, Bob's is still open.
	for _, p := range []*models.PendingConfirmation{
		{Phone: alice.Phone, UserID: alice.ID, DetectedExercise: "Squat", VideoRef: "gs://b/video/a.mp4",
			State: models.PendingDetected, CreatedAt: now.Add(-25 * time.Hour), ExpiresAt: now.Add(-time.Hour)},
		{Phone: bob.Phone, UserID: bob.ID, DetectedExercise: "Deadlift", VideoRef: "gs://b/video/b.mp4",
			State: models.PendingDetected, CreatedAt: now, ExpiresAt: now.Add(23 * time.Hour)},
	} {
		if err := models.UpsertPendingConfirmation(ctx, db, p); err != nil {
			t.Fatalf("upsert pending: %v", err)
		}
	}

	if err := models.AppendMessage(ctx, db, alice.ID, models.RoleUser, "old"); err != nil {
		t.Fatalf("append message: %v", err)
	}
	if err := models.AppendMessage(ctx, db, alice.ID, models.RoleUser, "recent"); err != nil {
		t.Fatalf("append message: %v", err)
	}
	old := now.Add(-100 * 24 * time.Hour).UnixMilli()
	db.Exec(`UPDATE conversation_messages SET created_at = ? WHERE content = 'old'`, old)
	db.Exec(`UPDATE conversation_messages SET created_at = ? WHERE content = 'recent'`, now.UnixMilli())

	models.RecordInbound(ctx, db, "SM-old", alice.Phone)
	models.RecordInbound(ctx, db, "SM-new", alice.Phone)
	db.Exec(`UPDATE inbound_receipts SET received_at = ? WHERE message_id = 'SM-old'`, old)
	db.Exec(`UPDATE inbound_receipts SET received_at = ? WHERE message_id = 'SM-new'`, now.UnixMilli())

	s := New(db, time.Hour, 90*24*time.Hour, logger.Nop())
	s.now = func() time.Time { return now }
	s.runMaintenance()

	if _, err := models.GetPendingConfirmation(ctx, db, alice.Phone); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expired confirmation still present: %v", err)
	}
	if _, err := models.GetPendingConfirmation(ctx, db, bob.Phone); err != nil {
		t.Errorf("open confirmation deleted: %v", err)
	}

	msgs, _ := models.RecentMessages(ctx, db, alice.ID, 10)
	if len(msgs) != 1 || msgs[0].Content != "recent" {
		t.Errorf("messages remaining = %v, want only the recent one", msgs)
	}

	fresh, _ := models.RecordInbound(ctx, db, "SM-old", alice.Phone)
	if !fresh {
		t.Error("old receipt was not pruned")
	}
	fresh, _ = models.RecordInbound(ctx, db, "SM-new", alice.Phone)
	if fresh {
		t.Error("recent receipt was pruned")
	}

	st := s.Status()
	if st.PendingExpired != 1 || st.MessagesPruned != 1 || st.ReceiptsPruned != 1 {
		t.Errorf("status = %+v, want one of each pruned", st)
	}
	if !st.NextRun.Equal(now.Add(time.Hour)) {
		t.Errorf("next run = %v, want %v", st.NextRun, now.Add(time.Hour))
	}
}

func TestMaintenanceZeroRetentionKeepsHistory(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p, _, _ := models.EnsureUserProfile(ctx, db, "+15550001")
	models.AppendMessage(ctx, db, p.ID, models.RoleUser, "hola")
	db.Exec(`UPDATE conversation_messages SET created_at = 0`)

	s := New(db, time.Hour, 0, logger.Nop())
	s.runMaintenance()

	msgs, _ := models.RecentMessages(ctx, db, p.ID, 10)
	if len(msgs) != 1 {
		t.Errorf("messages remaining = %d, want 1", len(msgs))
	}
}
