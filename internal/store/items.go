package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/menjalnica/internal/model"
)

// CreateItem creates a new stamp in the owner's catalog.
func CreateItem(ctx context.Context, db DBTX, ownerID int64, name string, year int, public bool) (*model.Item, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO items (owner_id, name, year, public) VALUES (?, ?, ?, ?)`,
		ownerID, name, year, public,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns a non-deleted item by ID.
func GetItem(ctx context.Context, db DBTX, id int64) (*model.Item, error) {
	item := &model.Item{}
	var imageMime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, year, public, image_mime, created_at, updated_at, deleted_at
		 FROM items WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&item.ID, &item.OwnerID, &item.Name, &item.Year, &item.Public, &imageMime,
		&item.CreatedAt, &item.UpdatedAt, &item.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	item.ImageMime = imageMime.String
	return item, nil
}

// ListPublicItems returns all public, non-deleted items with their owner's
// name, for the trading gallery.
func ListPublicItems(ctx context.Context, db DBTX) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT i.id, i.owner_id, i.name, i.year, i.public, i.image_mime,
		        i.created_at, i.updated_at, i.deleted_at, u.username AS owner_name
		 FROM items i
		 JOIN users u ON u.id = i.owner_id
		 WHERE i.deleted_at IS NULL AND i.public = 1
		 ORDER BY i.name, i.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing public items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// ListItemsForOwner returns all non-deleted items in one user's catalog.
func ListItemsForOwner(ctx context.Context, db DBTX, ownerID int64) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT i.id, i.owner_id, i.name, i.year, i.public, i.image_mime,
		        i.created_at, i.updated_at, i.deleted_at, u.username AS owner_name
		 FROM items i
		 JOIN users u ON u.id = i.owner_id
		 WHERE i.deleted_at IS NULL AND i.owner_id = ?
		 ORDER BY i.name, i.id`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items for owner: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func scanItems(rows *sql.Rows) ([]model.Item, error) {
	var items []model.Item
	for rows.Next() {
		var item model.Item
		var imageMime sql.NullString
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.Name, &item.Year, &item.Public,
			&imageMime, &item.CreatedAt, &item.UpdatedAt, &item.DeletedAt, &item.OwnerName); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		item.ImageMime = imageMime.String
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateItem updates an item's metadata and visibility.
func UpdateItem(ctx context.Context, db DBTX, id int64, name string, year int, public bool) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET name = ?, year = ?, public = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		name, year, public, id,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return nil
}

// TransferItemOwnership moves an item to a new owner. Returns sql.ErrNoRows
// if no live item matched.
func TransferItemOwnership(ctx context.Context, db DBTX, id, newOwnerID int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET owner_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		newOwnerID, id,
	)
	if err != nil {
		return fmt.Errorf("transferring item ownership: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking transfer result: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteItem soft-deletes an item.
func DeleteItem(ctx context.Context, db DBTX, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

// SetItemImage sets an item's scan image.
func SetItemImage(ctx context.Context, db DBTX, id int64, image []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return nil
}

// GetItemImage returns an item's scan image and MIME type.
func GetItemImage(ctx context.Context, db DBTX, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}
