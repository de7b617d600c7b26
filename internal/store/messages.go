package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/menjalnica/internal/model"
)

// CreateMessage inserts a message into a user's inbox. A nil senderID
// marks a system notification.
func CreateMessage(ctx context.Context, db DBTX, senderID *int64, receiverID int64, content string) (*model.Message, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO messages (sender_id, receiver_id, content) VALUES (?, ?, ?)`,
		senderID, receiverID, content,
	)
	if err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting message id: %w", err)
	}

	return GetMessage(ctx, db, id)
}

// GetMessage returns a message by ID.
func GetMessage(ctx context.Context, db DBTX, id int64) (*model.Message, error) {
	m := &model.Message{}
	var senderName sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT m.id, m.sender_id, m.receiver_id, m.content, m.seen, m.created_at,
		        u.username AS sender_name
		 FROM messages m
		 LEFT JOIN users u ON u.id = m.sender_id
		 WHERE m.id = ?`, id,
	).Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Seen, &m.CreatedAt, &senderName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}
	m.SenderName = senderName.String
	return m, nil
}

// ListMessagesForUser returns a user's inbox, newest first.
func ListMessagesForUser(ctx context.Context, db DBTX, receiverID int64) ([]model.Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT m.id, m.sender_id, m.receiver_id, m.content, m.seen, m.created_at,
		        u.username AS sender_name
		 FROM messages m
		 LEFT JOIN users u ON u.id = m.sender_id
		 WHERE m.receiver_id = ?
		 ORDER BY m.created_at DESC, m.id DESC`, receiverID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		var senderName sql.NullString
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Seen, &m.CreatedAt, &senderName); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.SenderName = senderName.String
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkMessageSeen marks one of the user's messages as seen. The receiver
// check keeps users from flagging other inboxes.
func MarkMessageSeen(ctx context.Context, db DBTX, id, receiverID int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE messages SET seen = 1 WHERE id = ? AND receiver_id = ?`,
		id, receiverID,
	)
	if err != nil {
		return fmt.Errorf("marking message seen: %w", err)
	}
	return nil
}

// CountUnseenMessages returns how many unseen messages a user has.
func CountUnseenMessages(ctx context.Context, db DBTX, receiverID int64) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND seen = 0`,
		receiverID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unseen messages: %w", err)
	}
	return count, nil
}
