package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Pending confirmation states as stored in the state column.
const (
	PendingDetected           = "detected"
	PendingAwaitingCorrection = "awaiting_correction"
)

// PendingConfirmation is the single outstanding "is this the right exercise?"
// question for a phone number. The phone primary key guarantees at most one
// per user.
type PendingConfirmation struct {
	Phone            string
	UserID           int64
	DetectedExercise string
	VideoRef         string
	VideoURL         string
	State            string
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// AwaitingCorrection reports whether the user already rejected the detected
// exercise and the next text is the corrected name.
func (p *PendingConfirmation) AwaitingCorrection() bool {
	return p.State == PendingAwaitingCorrection
}

// Expired reports whether the confirmation is past its expiry at now.
func (p *PendingConfirmation) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// GetPendingConfirmation returns the pending confirmation for phone, or
// ErrNotFound. Expired rows are returned; callers decide how to treat them.
func GetPendingConfirmation(ctx context.Context, db DBTX, phone string) (*PendingConfirmation, error) {
	p := &PendingConfirmation{}
	var created, expires int64
	err := db.QueryRowContext(ctx, `
		SELECT phone, user_id, detected_exercise, video_ref, video_url, state, created_at, expires_at
		FROM pending_confirmations WHERE phone = ?`, phone,
	).Scan(&p.Phone, &p.UserID, &p.DetectedExercise, &p.VideoRef, &p.VideoURL, &p.State, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("models: get pending confirmation %s: %w", phone, err)
	}
	p.CreatedAt = fromMillis(created)
	p.ExpiresAt = fromMillis(expires)
	return p, nil
}

// UpsertPendingConfirmation creates the pending confirmation for p.Phone or
// replaces the existing one in place.
func UpsertPendingConfirmation(ctx context.Context, db DBTX, p *PendingConfirmation) error {
	if p.State == "" {
		p.State = PendingDetected
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO pending_confirmations (phone, user_id, detected_exercise, video_ref, video_url, state, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET
			user_id = excluded.user_id,
			detected_exercise = excluded.detected_exercise,
			video_ref = excluded.video_ref,
			video_url = excluded.video_url,
			state = excluded.state,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		p.Phone, p.UserID, p.DetectedExercise, p.VideoRef, p.VideoURL, p.State,
		toMillis(p.CreatedAt), toMillis(p.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("models: upsert pending confirmation %s: %w", p.Phone, err)
	}
	return nil
}

// DeletePendingConfirmation clears the pending confirmation for phone.
// Deleting an absent row is not an error.
func DeletePendingConfirmation(ctx context.Context, db DBTX, phone string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM pending_confirmations WHERE phone = ?`, phone); err != nil {
		return fmt.Errorf("models: delete pending confirmation %s: %w", phone, err)
	}
	return nil
}

// DeleteExpiredPendingConfirmations removes every confirmation whose expiry
// is at or before now and returns how many were removed.
func DeleteExpiredPendingConfirmations(ctx context.Context, db DBTX, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM pending_confirmations WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("models: delete expired pending confirmations: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
