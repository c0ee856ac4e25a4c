package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"hhmart/billing/internal/domain"
	"hhmart/billing/internal/store"
)

const itemColumns = `item_id, barcode, name, price, buy_price, gst, stock, category, created_at, updated_at`

func (s *Store) ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.CatalogItem, error) {
	conditions := []string{}
	args := map[string]any{}

	if keyword := strings.TrimSpace(filter.Search); keyword != "" {
		conditions = append(conditions, "(name ILIKE :keyword OR barcode ILIKE :keyword)")
		args["keyword"] = "%" + keyword + "%"
	}
	switch filter.Stock {
	case domain.StockInStock:
		conditions = append(conditions, "stock > :threshold")
		args["threshold"] = domain.LowStockThreshold
	case domain.StockLow:
		conditions = append(conditions, "stock > 0 AND stock <= :threshold")
		args["threshold"] = domain.LowStockThreshold
	case domain.StockOut:
		conditions = append(conditions, "stock <= 0")
	}

	query := "SELECT " + itemColumns + " FROM items"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY lower(name), item_id"

	query, bound, err := s.db.BindNamed(query, args)
	if err != nil {
		return nil, err
	}
	items := make([]domain.CatalogItem, 0, 64)
	if err := s.db.SelectContext(ctx, &items, query, bound...); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) InventorySummary(ctx context.Context) (domain.InventorySummary, error) {
	var summary struct {
		Total      int `db:"total"`
		InStock    int `db:"in_stock"`
		Low        int `db:"low"`
		OutOfStock int `db:"out_of_stock"`
	}
	err := s.db.GetContext(ctx, &summary, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE stock > $1) AS in_stock,
			COUNT(*) FILTER (WHERE stock > 0 AND stock <= $1) AS low,
			COUNT(*) FILTER (WHERE stock <= 0) AS out_of_stock
		FROM items
	`, domain.LowStockThreshold)
	if err != nil {
		return domain.InventorySummary{}, err
	}
	return domain.InventorySummary(summary), nil
}

func (s *Store) SearchItems(ctx context.Context, keyword string, limit int) ([]domain.CatalogItem, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []domain.CatalogItem{}, nil
	}
	if limit <= 0 || limit > domain.SearchLimit {
		limit = domain.SearchLimit
	}

	items := make([]domain.CatalogItem, 0, limit)
	err := s.db.SelectContext(ctx, &items, `
		SELECT `+itemColumns+`
		FROM items
		WHERE name ILIKE $1 OR barcode ILIKE $1
		ORDER BY lower(name), item_id
		LIMIT $2
	`, "%"+keyword+"%", limit)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetItem(ctx context.Context, itemID int64) (*domain.CatalogItem, error) {
	var item domain.CatalogItem
	err := s.db.GetContext(ctx, &item, `SELECT `+itemColumns+` FROM items WHERE item_id = $1`, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetItemByBarcode(ctx context.Context, barcode string) (*domain.CatalogItem, error) {
	code := strings.TrimSpace(barcode)
	if code == "" {
		return nil, store.ErrNotFound
	}

	var item domain.CatalogItem
	err := s.db.GetContext(ctx, &item, `SELECT `+itemColumns+` FROM items WHERE barcode = $1`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetStockMap(ctx context.Context, itemIDs []int64) (map[int64]int, error) {
	stock := make(map[int64]int, len(itemIDs))
	if len(itemIDs) == 0 {
		return stock, nil
	}

	query, args, err := sqlx.In(`SELECT item_id, stock FROM items WHERE item_id IN (?)`, itemIDs)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ItemID int64 `db:"item_id"`
		Stock  int   `db:"stock"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, row := range rows {
		stock[row.ItemID] = row.Stock
	}
	return stock, nil
}

func (s *Store) CreateItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	rows, err := s.db.NamedQueryContext(ctx, `
		INSERT INTO items (barcode, name, price, buy_price, gst, stock, category, created_at, updated_at)
		VALUES (:barcode, :name, :price, :buy_price, :gst, :stock, :category, now(), now())
		RETURNING `+itemColumns, item)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	defer rows.Close()

	var created domain.CatalogItem
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			if isUniqueViolation(err) {
				return nil, store.ErrConflict
			}
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	if err := rows.StructScan(&created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) UpdateItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	var updated domain.CatalogItem
	err := s.db.GetContext(ctx, &updated, `
		UPDATE items
		SET barcode = $2, name = $3, price = $4, buy_price = $5, gst = $6,
			stock = $7, category = $8, updated_at = now()
		WHERE item_id = $1
		RETURNING `+itemColumns,
		item.ItemID, item.Barcode, item.Name, item.Price, item.BuyPrice, item.GSTRate, item.Stock, item.Category,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteItem(ctx context.Context, itemID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE item_id = $1`, itemID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
