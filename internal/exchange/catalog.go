package exchange

import (
	"context"

	"github.com/erazemk/menjalnica/internal/model"
	"github.com/erazemk/menjalnica/internal/store"
)

// SQLCatalog is the items-table implementation of Catalog.
type SQLCatalog struct{}

func (SQLCatalog) Item(ctx context.Context, db store.DBTX, id int64) (*model.Item, error) {
	return store.GetItem(ctx, db, id)
}

func (SQLCatalog) TransferOwnership(ctx context.Context, db store.DBTX, id, newOwnerID int64) error {
	return store.TransferItemOwnership(ctx, db, id, newOwnerID)
}
