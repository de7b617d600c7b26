// Package exchange implements the stamp-trading negotiation engine: it
// creates exchange proposals between two users' items, guards items
// against being committed to more than one pending exchange, and swaps
// ownership atomically when the receiver accepts.
package exchange

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/menjalnica/internal/model"
	"github.com/erazemk/menjalnica/internal/store"
)

// Catalog is the engine's view of the item catalog. Methods take a
// store.DBTX so they can participate in the engine's transaction.
type Catalog interface {
	Item(ctx context.Context, db store.DBTX, id int64) (*model.Item, error)
	TransferOwnership(ctx context.Context, db store.DBTX, id, newOwnerID int64) error
}

// Notifier delivers a one-line message to a user. Delivery is
// best-effort: a notification failure never undoes a resolution.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// opTimeout bounds how long one engine operation may block on the store.
const opTimeout = 5 * time.Second

// Engine validates and creates exchange proposals and executes the
// accept/refuse transition. All serialization happens inside its
// transactions; callers hold no locks.
type Engine struct {
	db      *sql.DB
	catalog Catalog
	notify  Notifier
}

// NewEngine creates an engine on the given database handle and collaborators.
func NewEngine(db *sql.DB, catalog Catalog, notifier Notifier) *Engine {
	return &Engine{db: db, catalog: catalog, notify: notifier}
}

// Propose creates a new exchange: the sender offers senderItemID for
// receiverItemID. The receiver is derived as the current owner of the
// requested item. All checks and the insert run in one transaction so
// two concurrent proposals naming the same item cannot both succeed.
func (e *Engine) Propose(ctx context.Context, senderID, senderItemID, receiverItemID int64) (*model.Exchange, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	requested, err := e.catalog.Item(ctx, tx, receiverItemID)
	if err != nil {
		return nil, err
	}
	if requested == nil {
		return nil, ErrItemNotFound
	}

	receiverID := requested.OwnerID
	if receiverID == senderID {
		return nil, ErrSelfTrade
	}

	offered, err := e.catalog.Item(ctx, tx, senderItemID)
	if err != nil {
		return nil, err
	}
	if offered == nil {
		return nil, ErrItemNotFound
	}

	if !offered.Public || !requested.Public {
		return nil, ErrItemNotPublic
	}
	if offered.OwnerID != senderID {
		return nil, ErrNotOwner
	}

	// At most one pending exchange may reference an item, in either role.
	for _, itemID := range []int64{senderItemID, receiverItemID} {
		pending, err := store.ItemHasPendingExchange(ctx, tx, itemID)
		if err != nil {
			return nil, err
		}
		if pending {
			return nil, ErrItemAlreadyPending
		}
	}

	ex, err := store.CreateExchange(ctx, tx, senderID, receiverID, senderItemID, receiverItemID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing exchange: %w", err)
	}

	slog.Info("exchange proposed", "exchange", ex.ID,
		"sender", senderID, "receiver", receiverID,
		"offered", senderItemID, "requested", receiverItemID)
	return ex, nil
}

// Resolve answers an exchange. Only the receiver may answer, exactly
// once. On accept the two ownership writes and the status write commit
// as one unit, after re-checking that both items are still owned as
// recorded at proposal time. On refuse nothing moves.
func (e *Engine) Resolve(ctx context.Context, exchangeID, actingUserID int64, accept bool) (*model.Exchange, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	ex, err := store.GetExchange(ctx, tx, exchangeID)
	if err != nil {
		return nil, err
	}
	if ex == nil {
		return nil, ErrExchangeNotFound
	}
	if ex.Answered {
		return nil, ErrAlreadyResolved
	}
	if ex.ReceiverID != actingUserID {
		return nil, ErrNotAuthorized
	}

	if accept {
		if err := e.swap(ctx, tx, ex); err != nil {
			return nil, err
		}
	}

	if err := store.ResolveExchange(ctx, tx, ex.ID, accept); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAlreadyResolved
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing resolution: %w", err)
	}

	ex.Answered = true
	ex.Accepted = accept
	now := time.Now()
	ex.ResolvedAt = &now

	// Notification is deliberately outside the transaction: a failed
	// delivery must not roll back a completed swap.
	outcome := "refused"
	if accept {
		outcome = "accepted"
	}
	text := fmt.Sprintf("Your exchange proposal #%d was %s.", ex.ID, outcome)
	if err := e.notify.Notify(ctx, ex.SenderID, text); err != nil {
		slog.Warn("exchange notification failed", "exchange", ex.ID, "user", ex.SenderID, "error", err)
	}

	slog.Info("exchange resolved", "exchange", ex.ID, "accepted", accept, "by", actingUserID)
	return ex, nil
}

// swap re-validates ownership of both items against what the exchange
// recorded and then moves each to the counterparty. Runs on the
// resolution transaction, so either both transfers and the status write
// commit or none do.
func (e *Engine) swap(ctx context.Context, tx *sql.Tx, ex *model.Exchange) error {
	offered, err := e.catalog.Item(ctx, tx, ex.SenderItemID)
	if err != nil {
		return err
	}
	if offered == nil || offered.OwnerID != ex.SenderID {
		return ErrOwnershipChanged
	}

	requested, err := e.catalog.Item(ctx, tx, ex.ReceiverItemID)
	if err != nil {
		return err
	}
	if requested == nil || requested.OwnerID != ex.ReceiverID {
		return ErrOwnershipChanged
	}

	if err := e.catalog.TransferOwnership(ctx, tx, ex.SenderItemID, ex.ReceiverID); err != nil {
		return err
	}
	if err := e.catalog.TransferOwnership(ctx, tx, ex.ReceiverItemID, ex.SenderID); err != nil {
		return err
	}
	return nil
}

// ListPending returns the unanswered exchanges addressed to the user,
// oldest first, enriched with the sender's name and current item
// snapshots. Read-only; call again for a fresh view.
func (e *Engine) ListPending(ctx context.Context, userID int64) ([]model.PendingExchange, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return store.ListPendingForReceiver(ctx, e.db, userID)
}

// History returns every exchange the user took part in, newest first.
func (e *Engine) History(ctx context.Context, userID int64) ([]model.Exchange, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return store.ListExchangesForUser(ctx, e.db, userID)
}
