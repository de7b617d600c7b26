package exchange

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/erazemk/menjalnica/internal/db"
	"github.com/erazemk/menjalnica/internal/model"
	"github.com/erazemk/menjalnica/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *sql.DB) {
	t.Helper()
	database := db.NewTestDB(t)
	engine := NewEngine(database, SQLCatalog{}, &MessageNotifier{DB: database})
	return engine, database
}

func createUser(t *testing.T, database *sql.DB, username string) *model.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), database, username, "x", model.RoleUser)
	if err != nil {
		t.Fatalf("creating user %s: %v", username, err)
	}
	return u
}

func createItem(t *testing.T, database *sql.DB, ownerID int64, name string, public bool) *model.Item {
	t.Helper()
	item, err := store.CreateItem(context.Background(), database, ownerID, name, 1950, public)
	if err != nil {
		t.Fatalf("creating item %s: %v", name, err)
	}
	return item
}

func itemOwner(t *testing.T, database *sql.DB, itemID int64) int64 {
	t.Helper()
	item, err := store.GetItem(context.Background(), database, itemID)
	if err != nil || item == nil {
		t.Fatalf("getting item %d: %v", itemID, err)
	}
	return item.OwnerID
}

func TestProposeAndAccept(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")
	stampA := createItem(t, database, alice.ID, "Penny Black", true)
	stampB := createItem(t, database, bob.ID, "Blue Mauritius", true)

	ex, err := engine.Propose(ctx, alice.ID, stampA.ID, stampB.ID)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if ex.Answered {
		t.Error("new exchange should be unanswered")
	}
	if ex.ReceiverID != bob.ID {
		t.Errorf("expected receiver %d, got %d", bob.ID, ex.ReceiverID)
	}

	// No ownership change at proposal time.
	if itemOwner(t, database, stampA.ID) != alice.ID {
		t.Error("proposal must not change ownership")
	}

	resolved, err := engine.Resolve(ctx, ex.ID, bob.ID, true)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !resolved.Answered || !resolved.Accepted {
		t.Errorf("expected answered+accepted, got answered=%v accepted=%v", resolved.Answered, resolved.Accepted)
	}

	// Both items swapped, not just one.
	if got := itemOwner(t, database, stampA.ID); got != bob.ID {
		t.Errorf("expected stampA owned by bob, got %d", got)
	}
	if got := itemOwner(t, database, stampB.ID); got != alice.ID {
		t.Errorf("expected stampB owned by alice, got %d", got)
	}

	// Sender got a system notification.
	messages, err := store.ListMessagesForUser(ctx, database, alice.ID)
	if err != nil {
		t.Fatalf("listing messages: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].SenderID != nil {
		t.Error("notification should have no sender (system message)")
	}
	if !strings.Contains(messages[0].Content, "accepted") {
		t.Errorf("expected acceptance notice, got %q", messages[0].Content)
	}
}

func TestProposeAndRefuse(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")
	stampA := createItem(t, database, alice.ID, "Penny Black", true)
	stampB := createItem(t, database, bob.ID, "Blue Mauritius", true)

	ex, err := engine.Propose(ctx, alice.ID, stampA.ID, stampB.ID)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	resolved, err := engine.Resolve(ctx, ex.ID, bob.ID, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !resolved.Answered || resolved.Accepted {
		t.Errorf("expected answered+refused, got answered=%v accepted=%v", resolved.Answered, resolved.Accepted)
	}

	// Refusal never moves ownership.
	if itemOwner(t, database, stampA.ID) != alice.ID || itemOwner(t, database, stampB.ID) != bob.ID {
		t.Error("refusal must not change ownership")
	}

	messages, _ := store.ListMessagesForUser(ctx, database, alice.ID)
	if len(messages) != 1 || !strings.Contains(messages[0].Content, "refused") {
		t.Errorf("expected refusal notice, got %v", messages)
	}
}

func TestProposeItemNotFound(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")
	stampA := createItem(t, database, alice.ID, "Penny Black", true)
	stampB := createItem(t, database, bob.ID, "Blue Mauritius", true)

	if _, err := engine.Propose(ctx, alice.ID, stampA.ID, 9999); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound for missing requested item, got %v", err)
	}
	if _, err := engine.Propose(ctx, alice.ID, 9999, stampB.ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound for missing offered item, got %v", err)
	}
}

func TestProposeSelfTrade(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	alice := createUser(t, database, "alice")
	stampA := createItem(t, database, alice.ID, "Penny Black", true)
	stampB := createItem(t, database, alice.ID, "Penny Red", true)

	if _, err := engine.Propose(ctx, alice.ID, stampA.ID, stampB.ID); !errors.Is(err, ErrSelfTrade) {
		t.Errorf("expected ErrSelfTrade, got %v", err)
	}
}

func TestProposeNotPublic(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")
	private := createItem(t, database, alice.ID, "Private", false)
	public := createItem(t, database, alice.ID, "Public", true)
	bobPrivate := createItem(t, database, bob.ID, "Bob private", false)
	bobPublic := createItem(t, database, bob.ID, "Bob public", true)

	if _, err := engine.Propose(ctx, alice.ID, private.ID, bobPublic.ID); !errors.Is(err, ErrItemNotPublic) {
		t.Errorf("expected ErrItemNotPublic for private offered item, got %v", err)
	}
	if _, err := engine.Propose(ctx, alice.ID, public.ID, bobPrivate.ID); !errors.Is(err, ErrItemNotPublic) {
		t.Errorf("expected ErrItemNotPublic for private requested item, got %v", err)
	}
}

func TestProposeNotOwner(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")
	carol := createUser(t, database, "carol")
	stampA := createItem(t, database, alice.ID, "Penny Black", true)
	stampB := createItem(t, database, bob.ID, "Blue Mauritius", true)

	// Carol offers Alice's stamp.
	if _, err := engine.Propose(ctx, carol.ID, stampA.ID, stampB.ID); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
}

func TestProposePendingConflict(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")
	carol := createUser(t, database, "carol")
	stampA := createItem(t, database, alice.ID, "Penny Black", true)
	stampA2 := createItem(t, database, alice.ID, "Penny Red", true)
	stampB := createItem(t, database, bob.ID, "Blue Mauritius", true)
	stampB2 := createItem(t, database, bob.ID, "Red Mauritius", true)
	stampC := createItem(t, database, carol.ID, "Inverted Jenny", true)

	if _, err := engine.Propose(ctx, alice.ID, stampA.ID, stampB.ID); err != nil {
		t.Fatalf("Propose: %v", err)
	}

	// Ownership check fires before the pending check.
	if _, err := engine.Propose(ctx, carol.ID, stampA.ID, stampB2.ID); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}

	// Offered item already committed.
	if _, err := engine.Propose(ctx, alice.ID, stampA.ID, stampB2.ID); !errors.Is(err, ErrItemAlreadyPending) {
		t.Errorf("expected ErrItemAlreadyPending for offered item, got %v", err)
	}

	// Requested item already committed (in its receiver role).
	if _, err := engine.Propose(ctx, carol.ID, stampC.ID, stampB.ID); !errors.Is(err, ErrItemAlreadyPending) {
		t.Errorf("expected ErrItemAlreadyPending for requested item, got %v", err)
	}

	// Unrelated items are unaffected.
	if _, err := engine.Propose(ctx, alice.ID, stampA2.ID, stampC.ID); err != nil {
		t.Errorf("unrelated proposal should succeed, got %v", err)
	}
}

func TestConcurrentProposeSingleWinner(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")
	stampA := createItem(t, database, alice.ID, "Penny Black", true)
	stampB := createItem(t, database, bob.ID, "Blue Mauritius", true)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Propose(ctx, alice.ID, stampA.ID, stampB.ID)
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrItemAlreadyPending):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly 1 successful proposal, got %d", successes)
	}
	if conflicts != attempts-1 {
		t.Errorf("expected %d conflicts, got %d", attempts-1, conflicts)
	}
}

func TestResolveNotFound(t *testing.T) {
	engine, database := newTestEngine(t)
	alice := createUser(t, database, "alice")

	if _, err := engine.Resolve(context.Background(), 42, alice.ID, true); !errors.Is(err, ErrExchangeNotFound) {
		t.Errorf("expected ErrExchangeNotFound, got %v", err)
	}
}

func TestResolveOnlyOnce(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")
	stampA := createItem(t, database, alice.ID, "Penny Black", true)
	stampB := createItem(t, database, bob.ID, "Blue Mauritius", true)

	ex, _ := engine.Propose(ctx, alice.ID, stampA.ID, stampB.ID)
	if _, err := engine.Resolve(ctx, ex.ID, bob.ID, true); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}

	// Second resolution always fails and never mutates ownership again.
	if _, err := engine.Resolve(ctx, ex.ID, bob.ID, true); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("expected ErrAlreadyResolved, got %v", err)
	}
	if itemOwner(t, database, stampA.ID) != bob.ID || itemOwner(t, database, stampB.ID) != alice.ID {
		t.Error("second resolve must not move ownership")
	}
}

func TestResolveOnlyReceiver(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")
	carol := createUser(t, database, "carol")
	stampA := createItem(t, database, alice.ID, "Penny Black", true)
	stampB := createItem(t, database, bob.ID, "Blue Mauritius", true)

	ex, _ := engine.Propose(ctx, alice.ID, stampA.ID, stampB.ID)

	// The sender may not answer their own proposal, in either direction.
	if _, err := engine.Resolve(ctx, ex.ID, alice.ID, true); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized for sender accept, got %v", err)
	}
	if _, err := engine.Resolve(ctx, ex.ID, alice.ID, false); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized for sender refuse, got %v", err)
	}
	if _, err := engine.Resolve(ctx, ex.ID, carol.ID, true); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized for third party, got %v", err)
	}

	// Still pending afterwards.
	current, _ := store.GetExchange(ctx, database, ex.ID)
	if current.Answered {
		t.Error("failed resolutions must leave the exchange unanswered")
	}
}

func TestResolveOwnershipChanged(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")
	carol := createUser(t, database, "carol")
	stampA := createItem(t, database, alice.ID, "Penny Black", true)
	stampB := createItem(t, database, bob.ID, "Blue Mauritius", true)

	ex, _ := engine.Propose(ctx, alice.ID, stampA.ID, stampB.ID)

	// External drift: the offered stamp changes hands outside the engine.
	if err := store.TransferItemOwnership(ctx, database, stampA.ID, carol.ID); err != nil {
		t.Fatalf("transferring item: %v", err)
	}

	if _, err := engine.Resolve(ctx, ex.ID, bob.ID, true); !errors.Is(err, ErrOwnershipChanged) {
		t.Errorf("expected ErrOwnershipChanged, got %v", err)
	}

	// Nothing moved, exchange still pending.
	if itemOwner(t, database, stampB.ID) != bob.ID {
		t.Error("failed accept must not move the requested item")
	}
	current, _ := store.GetExchange(ctx, database, ex.ID)
	if current.Answered {
		t.Error("failed accept must leave the exchange unanswered")
	}
}

func TestVisibilityToggleDoesNotInvalidatePending(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")
	stampA := createItem(t, database, alice.ID, "Penny Black", true)
	stampB := createItem(t, database, bob.ID, "Blue Mauritius", true)

	ex, _ := engine.Propose(ctx, alice.ID, stampA.ID, stampB.ID)

	// Visibility is only checked at proposal time; toggling to private
	// afterwards does not retroactively invalidate the pending exchange.
	if err := store.UpdateItem(ctx, database, stampA.ID, stampA.Name, stampA.Year, false); err != nil {
		t.Fatalf("updating item: %v", err)
	}

	if _, err := engine.Resolve(ctx, ex.ID, bob.ID, true); err != nil {
		t.Fatalf("Resolve after visibility toggle: %v", err)
	}
	if itemOwner(t, database, stampA.ID) != bob.ID {
		t.Error("expected swap to complete")
	}
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, int64, string) error {
	return errors.New("sink unavailable")
}

func TestNotifierFailureDoesNotUndoSwap(t *testing.T) {
	database := db.NewTestDB(t)
	engine := NewEngine(database, SQLCatalog{}, failingNotifier{})
	ctx := context.Background()

	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")
	stampA := createItem(t, database, alice.ID, "Penny Black", true)
	stampB := createItem(t, database, bob.ID, "Blue Mauritius", true)

	ex, _ := engine.Propose(ctx, alice.ID, stampA.ID, stampB.ID)
	resolved, err := engine.Resolve(ctx, ex.ID, bob.ID, true)
	if err != nil {
		t.Fatalf("Resolve with failing notifier: %v", err)
	}
	if !resolved.Accepted {
		t.Error("expected accepted exchange")
	}
	if itemOwner(t, database, stampA.ID) != bob.ID || itemOwner(t, database, stampB.ID) != alice.ID {
		t.Error("swap must survive a notification failure")
	}
}

func TestListPending(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")
	carol := createUser(t, database, "carol")
	stampA := createItem(t, database, alice.ID, "Penny Black", true)
	stampA2 := createItem(t, database, alice.ID, "Penny Red", true)
	stampB := createItem(t, database, bob.ID, "Blue Mauritius", true)
	stampB2 := createItem(t, database, bob.ID, "Red Mauritius", true)
	stampB3 := createItem(t, database, bob.ID, "Basel Dove", true)
	stampC := createItem(t, database, carol.ID, "Inverted Jenny", true)

	first, _ := engine.Propose(ctx, alice.ID, stampA.ID, stampB.ID)
	second, _ := engine.Propose(ctx, alice.ID, stampA2.ID, stampB2.ID)
	// Addressed to carol, must not show up in bob's inbox.
	if _, err := engine.Propose(ctx, bob.ID, stampB3.ID, stampC.ID); err != nil {
		t.Fatalf("Propose to carol: %v", err)
	}

	pending, err := engine.ListPending(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending exchanges for bob, got %d", len(pending))
	}

	// Oldest first.
	if pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Errorf("expected order [%d %d], got [%d %d]", first.ID, second.ID, pending[0].ID, pending[1].ID)
	}

	// Enriched with the counterparty's name and item snapshots.
	if pending[0].SenderName != "alice" {
		t.Errorf("expected sender name alice, got %q", pending[0].SenderName)
	}
	if pending[0].SenderItem.Name != "Penny Black" || pending[0].ReceiverItem.Name != "Blue Mauritius" {
		t.Errorf("unexpected item snapshots: %+v", pending[0])
	}

	// Resolved exchanges drop out.
	if _, err := engine.Resolve(ctx, first.ID, bob.ID, false); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	pending, _ = engine.ListPending(ctx, bob.ID)
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Errorf("expected only the second exchange to remain pending, got %+v", pending)
	}
}

func TestHistoryRetainsResolvedExchanges(t *testing.T) {
	engine, database := newTestEngine(t)
	ctx := context.Background()

	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")
	stampA := createItem(t, database, alice.ID, "Penny Black", true)
	stampB := createItem(t, database, bob.ID, "Blue Mauritius", true)

	ex, _ := engine.Propose(ctx, alice.ID, stampA.ID, stampB.ID)
	engine.Resolve(ctx, ex.ID, bob.ID, false)

	for _, userID := range []int64{alice.ID, bob.ID} {
		history, err := engine.History(ctx, userID)
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(history) != 1 || history[0].ID != ex.ID {
			t.Errorf("expected exchange %d in history for user %d, got %+v", ex.ID, userID, history)
		}
		if !history[0].Answered || history[0].Accepted {
			t.Errorf("expected refused exchange in history, got %+v", history[0])
		}
	}
}
