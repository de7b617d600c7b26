package exchange

import (
	"context"
	"database/sql"

	"github.com/erazemk/menjalnica/internal/store"
)

// MessageNotifier delivers notifications as system messages in the
// receiver's inbox (nil sender).
type MessageNotifier struct {
	DB *sql.DB
}

func (n *MessageNotifier) Notify(ctx context.Context, userID int64, text string) error {
	_, err := store.CreateMessage(ctx, n.DB, nil, userID, text)
	return err
}
