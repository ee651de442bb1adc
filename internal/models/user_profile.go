package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a query finds no matching row.
var ErrNotFound = errors.New("not found")

// Experience tiers accepted by the user_profiles CHECK constraint.
const (
	ExperienceBeginner     = "beginner"
	ExperienceIntermediate = "intermediate"
	ExperienceAdvanced     = "advanced"
)

// MediaKind selects which "last seen media" pointer SetLastMedia updates.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// UserProfile is a WhatsApp user keyed by phone number. Fields are filled in
// incrementally as the conversation collects them.
type UserProfile struct {
	ID                 int64
	Phone              string
	Name               sql.NullString
	Age                sql.NullInt64
	Sex                sql.NullString
	WeightKg           sql.NullFloat64
	HeightCm           sql.NullFloat64
	Goal               sql.NullString
	Experience         sql.NullString
	Equipment          []string
	TrainingDays       sql.NullInt64
	OnboardingComplete bool
	LastImageRef       sql.NullString
	LastVideoRef       sql.NullString
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// OnboardingReady reports whether every field required before body analysis
// has been collected.
func (p *UserProfile) OnboardingReady() bool {
	return p.Age.Valid && p.Sex.Valid && p.WeightKg.Valid && p.HeightCm.Valid &&
		p.Goal.Valid && p.Experience.Valid
}

const profileColumns = `id, phone, name, age, sex, weight_kg, height_cm, goal, experience,
	equipment, training_days, onboarding_complete, last_image_ref, last_video_ref,
	created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (*UserProfile, error) {
	p := &UserProfile{}
	var equipment string
	err := row.Scan(&p.ID, &p.Phone, &p.Name, &p.Age, &p.Sex, &p.WeightKg, &p.HeightCm,
		&p.Goal, &p.Experience, &equipment, &p.TrainingDays, &p.OnboardingComplete,
		&p.LastImageRef, &p.LastVideoRef, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(equipment), &p.Equipment); err != nil {
		return nil, fmt.Errorf("decode equipment: %w", err)
	}
	return p, nil
}

// GetUserProfileByPhone retrieves a profile by phone number.
func GetUserProfileByPhone(ctx context.Context, db DBTX, phone string) (*UserProfile, error) {
	p, err := scanProfile(db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE phone = ?`, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("models: get user profile %s: %w", phone, err)
	}
	return p, nil
}

// EnsureUserProfile returns the profile for phone, creating an empty one on
// first contact. created reports whether a new row was inserted.
func EnsureUserProfile(ctx context.Context, db DBTX, phone string) (p *UserProfile, created bool, err error) {
	res, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO user_profiles (phone) VALUES (?)`, phone)
	if err != nil {
		return nil, false, fmt.Errorf("models: ensure user profile %s: %w", phone, err)
	}
	n, _ := res.RowsAffected()

	p, err = GetUserProfileByPhone(ctx, db, phone)
	if err != nil {
		return nil, false, err
	}
	return p, n > 0, nil
}

// UpsertUserProfile inserts or fully replaces the profile keyed by p.Phone.
// The onboarding flag is derived from the stored fields, never taken from p.
func UpsertUserProfile(ctx context.Context, db DBTX, p *UserProfile) (*UserProfile, error) {
	equipment := p.Equipment
	if equipment == nil {
		equipment = []string{}
	}
	eq, err := json.Marshal(equipment)
	if err != nil {
		return nil, fmt.Errorf("models: encode equipment: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO user_profiles (phone, name, age, sex, weight_kg, height_cm, goal, experience,
		                           equipment, training_days, onboarding_complete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET
			name = excluded.name,
			age = excluded.age,
			sex = excluded.sex,
			weight_kg = excluded.weight_kg,
			height_cm = excluded.height_cm,
			goal = excluded.goal,
			experience = excluded.experience,
			equipment = excluded.equipment,
			training_days = excluded.training_days,
			onboarding_complete = excluded.onboarding_complete`,
		p.Phone, p.Name, p.Age, p.Sex, p.WeightKg, p.HeightCm, p.Goal, p.Experience,
		string(eq), p.TrainingDays, p.OnboardingReady(),
	)
	if err != nil {
		return nil, fmt.Errorf("models: upsert user profile %s: %w", p.Phone, err)
	}
	return GetUserProfileByPhone(ctx, db, p.Phone)
}

// SetLastMedia records the reference of the most recent image or video the
// user sent.
func SetLastMedia(ctx context.Context, db DBTX, phone string, kind MediaKind, ref string) error {
	var column string
	switch kind {
	case MediaImage:
		column = "last_image_ref"
	case MediaVideo:
		column = "last_video_ref"
	default:
		return fmt.Errorf("models: unknown media kind %q", kind)
	}

	res, err := db.ExecContext(ctx, `UPDATE user_profiles SET `+column+` = ? WHERE phone = ?`, ref, phone)
	if err != nil {
		return fmt.Errorf("models: set last %s for %s: %w", kind, phone, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUserProfile erases a user and, through ON DELETE CASCADE, every
// session, record, scan, message and pending confirmation they own.
func DeleteUserProfile(ctx context.Context, db DBTX, phone string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM user_profiles WHERE phone = ?`, phone)
	if err != nil {
		return fmt.Errorf("models: delete user profile %s: %w", phone, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
