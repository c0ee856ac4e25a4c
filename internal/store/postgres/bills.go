package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"hhmart/billing/internal/billing"
	"hhmart/billing/internal/domain"
	"hhmart/billing/internal/store"
)

type billRow struct {
	ID              int64           `db:"id"`
	IdempotencyKey  sql.NullString  `db:"idempotency_key"`
	TerminalID      string          `db:"terminal_id"`
	CashierUsername string          `db:"cashier_username"`
	CustomerName    string          `db:"customer_name"`
	CustomerPhone   string          `db:"customer_phone"`
	CustomerEmail   string          `db:"customer_email"`
	PaymentType     string          `db:"payment_type"`
	Subtotal        decimal.Decimal `db:"subtotal"`
	GSTTotal        decimal.Decimal `db:"gst_total"`
	Discount        decimal.Decimal `db:"discount"`
	Total           decimal.Decimal `db:"total"`
	ItemCount       int             `db:"item_count"`
	Notes           string          `db:"notes"`
	ReturnOfBillID  sql.NullInt64   `db:"return_of_bill_id"`
	CreatedAt       time.Time       `db:"created_at"`
}

type billItemRow struct {
	BillID   int64           `db:"bill_id"`
	LineNo   int             `db:"line_no"`
	ItemID   int64           `db:"item_id"`
	ItemName string          `db:"item_name"`
	Qty      int             `db:"qty"`
	Price    decimal.Decimal `db:"price"`
	GSTRate  decimal.Decimal `db:"gst"`
	Total    decimal.Decimal `db:"total"`
}

const billColumns = `id, idempotency_key, terminal_id, cashier_username, customer_name, customer_phone,
	customer_email, payment_type, subtotal, gst_total, discount, total, item_count, notes,
	return_of_bill_id, created_at`

// CreateBill stores header, lines and stock movement in one serializable
// transaction. Positive quantities leave stock, negative ones return it.
func (s *Store) CreateBill(ctx context.Context, bill domain.Bill) (*domain.Bill, error) {
	if len(bill.Items) == 0 {
		return nil, billing.Invalid("items", "cart is empty")
	}
	if bill.IdempotencyKey != "" {
		existing, err := s.FindBillByIdempotencyKey(ctx, bill.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	movement := map[int64]int{}
	for _, line := range bill.Items {
		movement[line.ItemID] += line.Qty
	}
	ids := make([]int64, 0, len(movement))
	for id := range movement {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := sqlx.In(`SELECT item_id, name, stock FROM items WHERE item_id IN (?) ORDER BY item_id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	var locked []struct {
		ItemID int64  `db:"item_id"`
		Name   string `db:"name"`
		Stock  int    `db:"stock"`
	}
	if err := tx.SelectContext(ctx, &locked, tx.Rebind(query), args...); err != nil {
		return nil, err
	}
	if len(locked) != len(ids) {
		found := make(map[int64]struct{}, len(locked))
		for _, row := range locked {
			found[row.ItemID] = struct{}{}
		}
		for _, id := range ids {
			if _, ok := found[id]; ok {
				continue
			}
			// Returned lines of a deleted item are kept on the bill without restock.
			if movement[id] > 0 {
				return nil, fmt.Errorf("item %d: %w", id, store.ErrNotFound)
			}
			delete(movement, id)
		}
	}
	for _, row := range locked {
		sold := movement[row.ItemID]
		if sold > 0 && row.Stock-sold < 0 {
			return nil, &billing.StockError{ItemID: row.ItemID, Name: row.Name, Available: row.Stock, Requested: sold}
		}
	}

	createdAt := bill.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var billID int64
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO bills (
			idempotency_key, terminal_id, cashier_username, customer_name, customer_phone,
			customer_email, payment_type, subtotal, gst_total, discount, total, item_count,
			notes, return_of_bill_id, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id
	`,
		nullIfEmpty(bill.IdempotencyKey),
		bill.TerminalID,
		bill.CashierUsername,
		bill.Customer.Name,
		bill.Customer.Phone,
		bill.Customer.Email,
		bill.PaymentType,
		billing.Round2(bill.Subtotal),
		billing.Round2(bill.GSTTotal),
		billing.Round2(bill.Discount),
		billing.Round2(bill.Total),
		bill.ItemCount,
		bill.Notes,
		bill.ReturnOfBillID,
		createdAt,
	).Scan(&billID)
	if err != nil {
		if isUniqueViolation(err) && bill.IdempotencyKey != "" {
			_ = tx.Rollback()
			return s.FindBillByIdempotencyKey(ctx, bill.IdempotencyKey)
		}
		return nil, err
	}

	rows := make([]billItemRow, 0, len(bill.Items))
	for i, line := range bill.Items {
		rows = append(rows, billItemRow{
			BillID:   billID,
			LineNo:   i + 1,
			ItemID:   line.ItemID,
			ItemName: line.ItemName,
			Qty:      line.Qty,
			Price:    billing.Round2(line.Price),
			GSTRate:  line.GSTRate,
			Total:    billing.Round2(line.Total),
		})
	}
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO bill_items (bill_id, line_no, item_id, item_name, qty, price, gst, total)
		VALUES (:bill_id, :line_no, :item_id, :item_name, :qty, :price, :gst, :total)
	`, rows); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if movement[id] == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE items SET stock = stock - $2, updated_at = now() WHERE item_id = $1
		`, id, movement[id]); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	// Built from what the transaction wrote; a read after commit could fail
	// and hide a stored bill from the caller.
	header := billRow{
		ID:              billID,
		IdempotencyKey:  sql.NullString{String: bill.IdempotencyKey, Valid: bill.IdempotencyKey != ""},
		TerminalID:      bill.TerminalID,
		CashierUsername: bill.CashierUsername,
		CustomerName:    bill.Customer.Name,
		CustomerPhone:   bill.Customer.Phone,
		CustomerEmail:   bill.Customer.Email,
		PaymentType:     bill.PaymentType,
		Subtotal:        billing.Round2(bill.Subtotal),
		GSTTotal:        billing.Round2(bill.GSTTotal),
		Discount:        billing.Round2(bill.Discount),
		Total:           billing.Round2(bill.Total),
		ItemCount:       bill.ItemCount,
		Notes:           bill.Notes,
		CreatedAt:       createdAt,
	}
	if bill.ReturnOfBillID != nil {
		header.ReturnOfBillID = sql.NullInt64{Int64: *bill.ReturnOfBillID, Valid: true}
	}
	saved := header.toDomain()
	saved.Items = make([]domain.BillLine, 0, len(rows))
	for _, row := range rows {
		saved.Items = append(saved.Items, domain.BillLine{
			ItemID:   row.ItemID,
			ItemName: row.ItemName,
			Qty:      row.Qty,
			Price:    row.Price,
			GSTRate:  row.GSTRate,
			Total:    row.Total,
		})
	}
	return &saved, nil
}

func (s *Store) FindBillByIdempotencyKey(ctx context.Context, key string) (*domain.Bill, error) {
	if key == "" {
		return nil, store.ErrNotFound
	}
	return s.findBill(ctx, "idempotency_key", key)
}

func (s *Store) GetBill(ctx context.Context, billID int64) (*domain.Bill, error) {
	return s.findBill(ctx, "id", billID)
}

func (s *Store) findBill(ctx context.Context, column string, value any) (*domain.Bill, error) {
	var row billRow
	err := s.db.GetContext(ctx, &row, `SELECT `+billColumns+` FROM bills WHERE `+column+` = $1`, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	var lines []billItemRow
	if err := s.db.SelectContext(ctx, &lines, `
		SELECT bill_id, line_no, item_id, item_name, qty, price, gst, total
		FROM bill_items
		WHERE bill_id = $1
		ORDER BY line_no
	`, row.ID); err != nil {
		return nil, err
	}

	bill := row.toDomain()
	bill.Items = make([]domain.BillLine, 0, len(lines))
	for _, line := range lines {
		bill.Items = append(bill.Items, domain.BillLine{
			ItemID:   line.ItemID,
			ItemName: line.ItemName,
			Qty:      line.Qty,
			Price:    line.Price,
			GSTRate:  line.GSTRate,
			Total:    line.Total,
		})
	}
	return &bill, nil
}

func (s *Store) ListBills(ctx context.Context, filter domain.BillFilter) ([]domain.BillSummary, error) {
	conditions := []string{}
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.From != nil {
		conditions = append(conditions, "created_at >= "+next(filter.From.UTC()))
	}
	if filter.To != nil {
		conditions = append(conditions, "created_at < "+next(filter.To.UTC()))
	}
	if keyword := strings.TrimSpace(filter.Search); keyword != "" {
		p := next("%" + keyword + "%")
		conditions = append(conditions, fmt.Sprintf("(customer_name ILIKE %s OR customer_phone ILIKE %s OR id::text = %s)", p, p, next(keyword)))
	}

	query := `SELECT id, customer_name, customer_phone, payment_type, total, created_at FROM bills`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + next(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + next(filter.Offset)
	}

	bills := make([]domain.BillSummary, 0, 64)
	if err := s.db.SelectContext(ctx, &bills, query, args...); err != nil {
		return nil, err
	}
	for i := range bills {
		bills[i].CreatedAt = bills[i].CreatedAt.UTC()
	}
	return bills, nil
}

func (r billRow) toDomain() domain.Bill {
	payment, err := billing.ParsePaymentLabel(r.PaymentType)
	if err != nil {
		payment = billing.Cash()
	}
	bill := domain.Bill{
		ID:              r.ID,
		IdempotencyKey:  r.IdempotencyKey.String,
		TerminalID:      r.TerminalID,
		CashierUsername: r.CashierUsername,
		Customer: domain.Customer{
			Name:  r.CustomerName,
			Phone: r.CustomerPhone,
			Email: r.CustomerEmail,
		},
		Payment:     payment,
		PaymentType: r.PaymentType,
		Notes:       r.Notes,
		Subtotal:    r.Subtotal,
		GSTTotal:    r.GSTTotal,
		Discount:    r.Discount,
		Total:       r.Total,
		ItemCount:   r.ItemCount,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.ReturnOfBillID.Valid {
		id := r.ReturnOfBillID.Int64
		bill.ReturnOfBillID = &id
	}
	return bill
}
