package models

import (
	"context"
	"fmt"
	"time"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn.
type Message struct {
	ID        int64
	UserID    int64
	Role      string
	Content   string
	CreatedAt time.Time
}

// AppendMessage records a conversation turn.
func AppendMessage(ctx context.Context, db DBTX, userID int64, role, content string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO conversation_messages (user_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		userID, role, content, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("models: append %s message for user %d: %w", role, userID, err)
	}
	return nil
}

// RecentMessages returns the last n turns for a user in chronological order.
func RecentMessages(ctx context.Context, db DBTX, userID int64, n int) ([]Message, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, role, content, created_at FROM (
			SELECT id, user_id, role, content, created_at
			FROM conversation_messages
			WHERE user_id = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id`, userID, n)
	if err != nil {
		return nil, fmt.Errorf("models: recent messages for user %d: %w", userID, err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var created int64
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("models: scan message: %w", err)
		}
		m.CreatedAt = fromMillis(created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// PruneMessages deletes turns created before cutoff.
func PruneMessages(ctx context.Context, db DBTX, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM conversation_messages WHERE created_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("models: prune messages: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RecordInbound marks a transport message id as seen. It returns false when
// the id was already recorded, meaning the delivery is a duplicate.
func RecordInbound(ctx context.Context, db DBTX, messageID, phone string) (bool, error) {
	res, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO inbound_receipts (message_id, phone, received_at) VALUES (?, ?, ?)`,
		messageID, phone, toMillis(time.Now()))
	if err != nil {
		return false, fmt.Errorf("models: record inbound %s: %w", messageID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// PruneInboundReceipts deletes receipts older than cutoff.
func PruneInboundReceipts(ctx context.Context, db DBTX, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM inbound_receipts WHERE received_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("models: prune inbound receipts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
