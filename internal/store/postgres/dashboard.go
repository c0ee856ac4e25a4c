package postgres

import (
	"context"
	"time"

	"hhmart/billing/internal/domain"
	"hhmart/billing/internal/store"
)

func (s *Store) SalesTotals(ctx context.Context, from time.Time, to time.Time) (domain.SalesTotals, error) {
	var totals domain.SalesTotals
	err := s.db.GetContext(ctx, &totals, `
		SELECT
			COALESCE(SUM(bi.qty * bi.price), 0) AS total_sales,
			(SELECT COUNT(*) FROM bills WHERE created_at >= $1 AND created_at < $2) AS bills_count,
			COALESCE(SUM(bi.qty), 0) AS items_sold,
			COALESCE(SUM(bi.qty * (bi.price - COALESCE(i.buy_price, 0))), 0) AS profit
		FROM bill_items bi
		JOIN bills b ON b.id = bi.bill_id
		LEFT JOIN items i ON i.item_id = bi.item_id
		WHERE b.created_at >= $1 AND b.created_at < $2
	`, from.UTC(), to.UTC())
	if err != nil {
		return domain.SalesTotals{}, err
	}
	return totals, nil
}

func (s *Store) DailySales(ctx context.Context, from time.Time, to time.Time) ([]domain.DailySales, error) {
	var rows []struct {
		Day   time.Time `db:"day"`
		Sales string    `db:"sales"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT
			date_trunc('day', b.created_at AT TIME ZONE 'UTC') AS day,
			SUM(bi.qty * bi.price)::text AS sales
		FROM bill_items bi
		JOIN bills b ON b.id = bi.bill_id
		WHERE b.created_at >= $1 AND b.created_at < $2
		GROUP BY day
		ORDER BY day
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}

	result := make([]domain.DailySales, 0, len(rows))
	for _, row := range rows {
		var point domain.DailySales
		point.Date = store.DayKey(row.Day)
		if err := point.Sales.Scan(row.Sales); err != nil {
			return nil, err
		}
		result = append(result, point)
	}
	return result, nil
}

func (s *Store) LowStock(ctx context.Context, threshold int, limit int) ([]domain.LowStockItem, error) {
	items := make([]domain.LowStockItem, 0, limit)
	err := s.db.SelectContext(ctx, &items, `
		SELECT item_id, name, stock
		FROM items
		WHERE stock <= $1
		ORDER BY stock ASC, lower(name)
		LIMIT $2
	`, threshold, limit)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) TopItems(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.ItemSales, error) {
	items := make([]domain.ItemSales, 0, limit)
	err := s.db.SelectContext(ctx, &items, `
		SELECT bi.item_name, SUM(bi.qty) AS qty
		FROM bill_items bi
		JOIN bills b ON b.id = bi.bill_id
		WHERE b.created_at >= $1 AND b.created_at < $2
		GROUP BY bi.item_name
		HAVING SUM(bi.qty) > 0
		ORDER BY qty DESC, bi.item_name
		LIMIT $3
	`, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return items, nil
}
