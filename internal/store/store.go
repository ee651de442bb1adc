// Package store is the persistence boundary of the coaching core: the named
// store operations consumed by the router, dialogue, record engine and
// workout service.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/carpenike/repcoach/internal/models"
)

// ErrNotFound is returned when a lookup finds nothing.
var ErrNotFound = models.ErrNotFound

// Store groups every persistence operation the core consumes.
type Store interface {
	GetUserProfile(ctx context.Context, phone string) (*models.UserProfile, error)
	EnsureUserProfile(ctx context.Context, phone string) (*models.UserProfile, bool, error)
	UpsertUserProfile(ctx context.Context, p *models.UserProfile) (*models.UserProfile, error)
	SetLastMedia(ctx context.Context, phone string, kind models.MediaKind, ref string) error
	DeleteUserProfile(ctx context.Context, phone string) error

	GetPendingConfirmation(ctx context.Context, phone string) (*models.PendingConfirmation, error)
	UpsertPendingConfirmation(ctx context.Context, p *models.PendingConfirmation) error
	DeletePendingConfirmation(ctx context.Context, phone string) error

	GetLatestRecord(ctx context.Context, userID int64, exerciseKey string, typ models.RecordType) (*models.PersonalRecord, error)
	InsertPersonalRecord(ctx context.Context, r *models.PersonalRecord) error
	ListCurrentRecords(ctx context.Context, userID int64) ([]*models.PersonalRecord, error)
	ListRecordHistory(ctx context.Context, userID int64, exerciseKey string) ([]*models.PersonalRecord, error)

	InsertExerciseHistory(ctx context.Context, h *models.ExerciseHistory) error
	ListExerciseHistory(ctx context.Context, userID int64, exerciseKey string, limit int) ([]*models.ExerciseHistory, error)

	InsertWorkoutSession(ctx context.Context, s *models.WorkoutSession) (*models.WorkoutSession, error)

	CreateBodyScan(ctx context.Context, b *models.BodyScan) error
	LatestBodyScan(ctx context.Context, userID int64) (*models.BodyScan, error)

	AppendMessage(ctx context.Context, userID int64, role, content string) error
	RecentMessages(ctx context.Context, userID int64, n int) ([]models.Message, error)
	RecordInbound(ctx context.Context, messageID, phone string) (bool, error)
}

// SQLite implements Store on the SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps an open, migrated database.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// DB exposes the underlying handle for maintenance jobs.
func (s *SQLite) DB() *sql.DB { return s.db }

func (s *SQLite) GetUserProfile(ctx context.Context, phone string) (*models.UserProfile, error) {
	return models.GetUserProfileByPhone(ctx, s.db, phone)
}

func (s *SQLite) EnsureUserProfile(ctx context.Context, phone string) (*models.UserProfile, bool, error) {
	return models.EnsureUserProfile(ctx, s.db, phone)
}

func (s *SQLite) UpsertUserProfile(ctx context.Context, p *models.UserProfile) (*models.UserProfile, error) {
	return models.UpsertUserProfile(ctx, s.db, p)
}

func (s *SQLite) SetLastMedia(ctx context.Context, phone string, kind models.MediaKind, ref string) error {
	return models.SetLastMedia(ctx, s.db, phone, kind, ref)
}

func (s *SQLite) DeleteUserProfile(ctx context.Context, phone string) error {
	return models.DeleteUserProfile(ctx, s.db, phone)
}

func (s *SQLite) GetPendingConfirmation(ctx context.Context, phone string) (*models.PendingConfirmation, error) {
	return models.GetPendingConfirmation(ctx, s.db, phone)
}

func (s *SQLite) UpsertPendingConfirmation(ctx context.Context, p *models.PendingConfirmation) error {
	return models.UpsertPendingConfirmation(ctx, s.db, p)
}

func (s *SQLite) DeletePendingConfirmation(ctx context.Context, phone string) error {
	return models.DeletePendingConfirmation(ctx, s.db, phone)
}

func (s *SQLite) GetLatestRecord(ctx context.Context, userID int64, exerciseKey string, typ models.RecordType) (*models.PersonalRecord, error) {
	return models.LatestPersonalRecord(ctx, s.db, userID, exerciseKey, typ)
}

func (s *SQLite) InsertPersonalRecord(ctx context.Context, r *models.PersonalRecord) error {
	return models.InsertPersonalRecord(ctx, s.db, r)
}

func (s *SQLite) ListCurrentRecords(ctx context.Context, userID int64) ([]*models.PersonalRecord, error) {
	return models.ListCurrentPersonalRecords(ctx, s.db, userID)
}

func (s *SQLite) ListRecordHistory(ctx context.Context, userID int64, exerciseKey string) ([]*models.PersonalRecord, error) {
	return models.ListPersonalRecordHistory(ctx, s.db, userID, exerciseKey)
}

func (s *SQLite) InsertExerciseHistory(ctx context.Context, h *models.ExerciseHistory) error {
	return models.InsertExerciseHistory(ctx, s.db, h)
}

func (s *SQLite) ListExerciseHistory(ctx context.Context, userID int64, exerciseKey string, limit int) ([]*models.ExerciseHistory, error) {
	return models.ListExerciseHistory(ctx, s.db, userID, exerciseKey, limit)
}

func (s *SQLite) InsertWorkoutSession(ctx context.Context, ws *models.WorkoutSession) (*models.WorkoutSession, error) {
	return models.CreateWorkoutSession(ctx, s.db, ws)
}

func (s *SQLite) CreateBodyScan(ctx context.Context, b *models.BodyScan) error {
	return models.CreateBodyScan(ctx, s.db, b)
}

func (s *SQLite) LatestBodyScan(ctx context.Context, userID int64) (*models.BodyScan, error) {
	return models.LatestBodyScan(ctx, s.db, userID)
}

func (s *SQLite) AppendMessage(ctx context.Context, userID int64, role, content string) error {
	return models.AppendMessage(ctx, s.db, userID, role, content)
}

func (s *SQLite) RecentMessages(ctx context.Context, userID int64, n int) ([]models.Message, error) {
	return models.RecentMessages(ctx, s.db, userID, n)
}

func (s *SQLite) RecordInbound(ctx context.Context, messageID, phone string) (bool, error) {
	return models.RecordInbound(ctx, s.db, messageID, phone)
}

// PendingReader reads pending confirmations.
type PendingReader interface {
	GetPendingConfirmation(ctx context.Context, phone string) (*models.PendingConfirmation, error)
}

// LivePending returns the pending confirmation for phone if one exists and
// has not expired at now. Expired rows are reported as absent.
func LivePending(ctx context.Context, s PendingReader, phone string, now time.Time) (*models.PendingConfirmation, error) {
	p, err := s.GetPendingConfirmation(ctx, phone)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Expired(now) {
		return nil, nil
	}
	return p, nil
}
