package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/menjalnica/internal/model"
)

// CreateExchange inserts a new unanswered exchange. The caller is expected
// to run this on a transaction that also performed the pending-conflict
// check, so two concurrent proposals cannot both commit against the same item.
func CreateExchange(ctx context.Context, db DBTX, senderID, receiverID, senderItemID, receiverItemID int64) (*model.Exchange, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO exchanges (sender_id, receiver_id, sender_item_id, receiver_item_id)
		 VALUES (?, ?, ?, ?)`,
		senderID, receiverID, senderItemID, receiverItemID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating exchange: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting exchange id: %w", err)
	}

	return GetExchange(ctx, db, id)
}

// GetExchange returns an exchange by ID.
func GetExchange(ctx context.Context, db DBTX, id int64) (*model.Exchange, error) {
	ex := &model.Exchange{}
	err := db.QueryRowContext(ctx,
		`SELECT id, sender_id, receiver_id, sender_item_id, receiver_item_id,
		        answered, accepted, created_at, resolved_at
		 FROM exchanges WHERE id = ?`, id,
	).Scan(&ex.ID, &ex.SenderID, &ex.ReceiverID, &ex.SenderItemID, &ex.ReceiverItemID,
		&ex.Answered, &ex.Accepted, &ex.CreatedAt, &ex.ResolvedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting exchange: %w", err)
	}
	return ex, nil
}

// ItemHasPendingExchange reports whether any unanswered exchange references
// the item, in either role.
func ItemHasPendingExchange(ctx context.Context, db DBTX, itemID int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM exchanges
		 WHERE answered = 0 AND (sender_item_id = ? OR receiver_item_id = ?)`,
		itemID, itemID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking pending exchanges: %w", err)
	}
	return count > 0, nil
}

// ResolveExchange marks an exchange as answered with the given outcome.
// Returns sql.ErrNoRows if the exchange was missing or already answered,
// so a racing second resolution cannot slip through.
func ResolveExchange(ctx context.Context, db DBTX, id int64, accepted bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE exchanges SET answered = 1, accepted = ?, resolved_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND answered = 0`,
		accepted, id,
	)
	if err != nil {
		return fmt.Errorf("resolving exchange: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking resolve result: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPendingForReceiver returns the unanswered exchanges addressed to a
// user, oldest first, each enriched with the sender's name and current
// snapshots of both items.
func ListPendingForReceiver(ctx context.Context, db DBTX, receiverID int64) ([]model.PendingExchange, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT e.id, e.sender_id, e.receiver_id, e.sender_item_id, e.receiver_item_id,
		        e.answered, e.accepted, e.created_at, e.resolved_at,
		        u.username AS sender_name,
		        si.name, si.year, COALESCE(si.image_mime, ''),
		        ri.name, ri.year, COALESCE(ri.image_mime, '')
		 FROM exchanges e
		 JOIN users u ON u.id = e.sender_id
		 JOIN items si ON si.id = e.sender_item_id
		 JOIN items ri ON ri.id = e.receiver_item_id
		 WHERE e.answered = 0 AND e.receiver_id = ?
		 ORDER BY e.created_at, e.id`, receiverID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing pending exchanges: %w", err)
	}
	defer rows.Close()

	var pending []model.PendingExchange
	for rows.Next() {
		var p model.PendingExchange
		if err := rows.Scan(&p.ID, &p.SenderID, &p.ReceiverID, &p.SenderItemID, &p.ReceiverItemID,
			&p.Answered, &p.Accepted, &p.CreatedAt, &p.ResolvedAt,
			&p.SenderName,
			&p.SenderItem.Name, &p.SenderItem.Year, &p.SenderItem.ImageMime,
			&p.ReceiverItem.Name, &p.ReceiverItem.Year, &p.ReceiverItem.ImageMime); err != nil {
			return nil, fmt.Errorf("scanning pending exchange: %w", err)
		}
		p.SenderItem.ID = p.SenderItemID
		p.ReceiverItem.ID = p.ReceiverItemID
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// ListExchangesForUser returns every exchange the user took part in, in
// either role, newest first. Resolved exchanges are retained indefinitely.
func ListExchangesForUser(ctx context.Context, db DBTX, userID int64) ([]model.Exchange, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, sender_id, receiver_id, sender_item_id, receiver_item_id,
		        answered, accepted, created_at, resolved_at
		 FROM exchanges
		 WHERE sender_id = ? OR receiver_id = ?
		 ORDER BY created_at DESC, id DESC`, userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []model.Exchange
	for rows.Next() {
		var ex model.Exchange
		if err := rows.Scan(&ex.ID, &ex.SenderID, &ex.ReceiverID, &ex.SenderItemID, &ex.ReceiverItemID,
			&ex.Answered, &ex.Accepted, &ex.CreatedAt, &ex.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scanning exchange: %w", err)
		}
		exchanges = append(exchanges, ex)
	}
	return exchanges, rows.Err()
}
