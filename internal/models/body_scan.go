package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// BodyScan is the stored result of a body-composition analysis of a photo.
type BodyScan struct {
	ID         int64
	UserID     int64
	ImageRef   string
	BodyFatPct sql.NullFloat64
	MuscleMass sql.NullString
	Summary    string
	Raw        string // analyzer JSON as returned
	CreatedAt  time.Time
}

const bodyScanColumns = `id, user_id, image_ref, body_fat_pct, muscle_mass, summary, raw, created_at`

func scanBodyScan(row interface{ Scan(...any) error }) (*BodyScan, error) {
	b := &BodyScan{}
	var created int64
	if err := row.Scan(&b.ID, &b.UserID, &b.ImageRef, &b.BodyFatPct, &b.MuscleMass, &b.Summary, &b.Raw, &created); err != nil {
		return nil, err
	}
	b.CreatedAt = fromMillis(created)
	return b, nil
}

// CreateBodyScan stores a scan and sets b.ID.
func CreateBodyScan(ctx context.Context, db DBTX, b *BodyScan) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.Raw == "" {
		b.Raw = "{}"
	}
	err := db.QueryRowContext(ctx, `
		INSERT INTO body_scans (user_id, image_ref, body_fat_pct, muscle_mass, summary, raw, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		b.UserID, b.ImageRef, b.BodyFatPct, b.MuscleMass, b.Summary, b.Raw, toMillis(b.CreatedAt),
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("models: create body scan for user %d: %w", b.UserID, err)
	}
	return nil
}

// LatestBodyScan returns the user's most recent scan, or nil when none exist.
func LatestBodyScan(ctx context.Context, db DBTX, userID int64) (*BodyScan, error) {
	b, err := scanBodyScan(db.QueryRowContext(ctx,
		`SELECT `+bodyScanColumns+` FROM body_scans WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("models: latest body scan for user %d: %w", userID, err)
	}
	return b, nil
}

// ListBodyScans returns up to limit scans, newest first.
func ListBodyScans(ctx context.Context, db DBTX, userID int64, limit int) ([]*BodyScan, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bodyScanColumns+` FROM body_scans WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("models: list body scans for user %d: %w", userID, err)
	}
	defer rows.Close()

	var scans []*BodyScan
	for rows.Next() {
		b, err := scanBodyScan(rows)
		if err != nil {
			return nil, fmt.Errorf("models: scan body scan: %w", err)
		}
		scans = append(scans, b)
	}
	return scans, rows.Err()
}
