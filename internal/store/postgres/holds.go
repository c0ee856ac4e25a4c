package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"hhmart/billing/internal/billing"
	"hhmart/billing/internal/domain"
	"hhmart/billing/internal/store"
	"hhmart/billing/internal/xid"
)

func (s *Store) CreateHold(ctx context.Context, hold domain.HoldBill) (*domain.HoldBill, error) {
	if len(hold.Items) == 0 {
		return nil, billing.Invalid("items", "cart is empty")
	}
	if hold.ID == "" {
		hold.ID = xid.New("hold")
	}
	if hold.CreatedAt.IsZero() {
		hold.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(hold)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO hold_bills (id, terminal_id, data, created_at)
		VALUES ($1, $2, $3, $4)
	`, hold.ID, hold.TerminalID, data, hold.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &hold, nil
}

func (s *Store) ListHolds(ctx context.Context, terminalID string, limit int) ([]domain.HoldBill, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}

	var raws [][]byte
	err := s.db.SelectContext(ctx, &raws, `
		SELECT data
		FROM hold_bills
		WHERE ($1 = '' OR terminal_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, terminalID, limit)
	if err != nil {
		return nil, err
	}

	holds := make([]domain.HoldBill, 0, len(raws))
	for _, raw := range raws {
		var hold domain.HoldBill
		if err := json.Unmarshal(raw, &hold); err != nil {
			return nil, err
		}
		holds = append(holds, hold)
	}
	return holds, nil
}

// PopHold deletes and returns the hold in a single statement, so two
// concurrent callers can never both receive it.
func (s *Store) PopHold(ctx context.Context, holdID string) (*domain.HoldBill, error) {
	var raw []byte
	err := s.db.QueryRowxContext(ctx, `
		DELETE FROM hold_bills
		WHERE id = $1
		RETURNING data
	`, holdID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	var hold domain.HoldBill
	if err := json.Unmarshal(raw, &hold); err != nil {
		return nil, err
	}
	return &hold, nil
}

func (s *Store) DeleteHold(ctx context.Context, holdID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM hold_bills WHERE id = $1`, holdID)
	return err
}
