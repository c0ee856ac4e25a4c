package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"hhmart/billing/internal/billing"
	"hhmart/billing/internal/cart"
	"hhmart/billing/internal/domain"
)

const (
	defaultBillPageSize = 50
	maxBillPageSize     = 500
)

func (s *Service) GetBill(ctx context.Context, billID int64) (domain.Bill, error) {
	if billID <= 0 {
		return domain.Bill{}, billing.Invalid("bill_id", "bill id must be positive")
	}
	bill, err := s.repo.GetBill(ctx, billID)
	if err != nil {
		return domain.Bill{}, storeErr("load bill", err)
	}
	return *bill, nil
}

func (s *Service) ListBills(ctx context.Context, filter domain.BillFilter) (domain.BillListResponse, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Limit <= 0 {
		filter.Limit = defaultBillPageSize
	}
	if filter.Limit > maxBillPageSize {
		filter.Limit = maxBillPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return domain.BillListResponse{}, billing.Invalid("to", "to must not be before from")
	}

	bills, err := s.repo.ListBills(ctx, filter)
	if err != nil {
		return domain.BillListResponse{}, storeErr("list bills", err)
	}
	if bills == nil {
		bills = []domain.BillSummary{}
	}
	return domain.BillListResponse{Bills: bills}, nil
}

func (s *Service) RenderReceipt(ctx context.Context, billID int64) (domain.Receipt, error) {
	bill, err := s.GetBill(ctx, billID)
	if err != nil {
		return domain.Receipt{}, err
	}
	return s.receipts.Render(bill)
}

// LoadForReturn turns a stored bill into a return cart on the terminal.
// The stored bill itself is never touched.
func (s *Service) LoadForReturn(ctx context.Context, terminalID string, billID int64) (domain.SessionView, error) {
	bill, err := s.GetBill(ctx, billID)
	if err != nil {
		return domain.SessionView{}, err
	}
	if bill.ReturnOfBillID != nil {
		return domain.SessionView{}, billing.Invalid("bill_id", "a return bill cannot be returned again")
	}

	ids := make([]int64, 0, len(bill.Items))
	for _, line := range bill.Items {
		ids = append(ids, line.ItemID)
	}
	stock, err := s.repo.GetStockMap(ctx, ids)
	if err != nil {
		return domain.SessionView{}, storeErr("load stock", err)
	}

	view, err := s.mutate(terminalID, func(sess *cart.Session) error {
		if sess.Cart.Len() > 0 {
			return billing.Invalid("items", "current cart is not empty; hold or clear it first")
		}
		sess.LoadReturn(bill, stock)
		return nil
	})
	if err != nil {
		return view, err
	}

	s.log.Info("return loaded",
		zap.Int64("bill_id", bill.ID),
		zap.String("terminal_id", view.TerminalID),
		zap.String("actor", actorName(ctx)),
	)
	return view, nil
}
