package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"hhmart/billing/internal/billing"
	"hhmart/billing/internal/cart"
	"hhmart/billing/internal/domain"
)

var errCheckoutInProgress = billing.Invalid("checkout", "checkout already in progress")

// mutate runs fn with the terminal's session locked. Sessions with a checkout
// in flight refuse changes.
func (s *Service) mutate(terminalID string, fn func(sess *cart.Session) error) (domain.SessionView, error) {
	terminalID, err := normalizeTerminal(terminalID)
	if err != nil {
		return domain.SessionView{}, err
	}
	sess := s.sessions.Get(terminalID)
	sess.Lock()
	defer sess.Unlock()

	if sess.Saving() {
		return sess.View(), errCheckoutInProgress
	}
	if err := fn(sess); err != nil {
		return sess.View(), err
	}
	return sess.View(), nil
}

func (s *Service) View(terminalID string) (domain.SessionView, error) {
	terminalID, err := normalizeTerminal(terminalID)
	if err != nil {
		return domain.SessionView{}, err
	}
	sess := s.sessions.Get(terminalID)
	sess.Lock()
	defer sess.Unlock()
	return sess.View(), nil
}

// Scan adds the item with the given barcode. A scan that would exceed the
// stock snapshot leaves the cart alone and returns a warning in the view.
func (s *Service) Scan(ctx context.Context, terminalID string, barcode string) (domain.SessionView, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return domain.SessionView{}, billing.Invalid("barcode", "barcode is required")
	}
	item, err := s.repo.GetItemByBarcode(ctx, barcode)
	if err != nil {
		return domain.SessionView{}, storeErr("look up barcode", err)
	}
	return s.addCatalogItem(terminalID, *item)
}

func (s *Service) AddItem(ctx context.Context, terminalID string, itemID int64) (domain.SessionView, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return domain.SessionView{}, storeErr("load item", err)
	}
	return s.addCatalogItem(terminalID, *item)
}

func (s *Service) addCatalogItem(terminalID string, item domain.CatalogItem) (domain.SessionView, error) {
	warning := ""
	view, err := s.mutate(terminalID, func(sess *cart.Session) error {
		if !sess.Cart.AddOrIncrement(item) {
			warning = fmt.Sprintf("Only %d of %s available", item.Stock, item.Name)
		}
		return nil
	})
	view.Warning = warning
	return view, err
}

func (s *Service) SetQuantity(terminalID string, itemID int64, qty int) (domain.SessionView, error) {
	return s.mutate(terminalID, func(sess *cart.Session) error {
		err := sess.Cart.SetQuantity(itemID, qty)
		if errors.Is(err, billing.ErrNotFound) {
			return fmt.Errorf("item %d not in cart: %w", itemID, billing.ErrNotFound)
		}
		return err
	})
}

func (s *Service) RemoveItem(terminalID string, itemID int64) (domain.SessionView, error) {
	return s.mutate(terminalID, func(sess *cart.Session) error {
		if !sess.Cart.Remove(itemID) {
			return fmt.Errorf("item %d not in cart: %w", itemID, billing.ErrNotFound)
		}
		return nil
	})
}

// Clear resets the whole checkout session, not just the cart lines.
func (s *Service) Clear(terminalID string) (domain.SessionView, error) {
	return s.mutate(terminalID, func(sess *cart.Session) error {
		sess.Reset()
		return nil
	})
}

func (s *Service) SetCustomer(terminalID string, customer domain.Customer) (domain.SessionView, error) {
	customer = domain.Customer{
		Name:  strings.TrimSpace(customer.Name),
		Phone: strings.TrimSpace(customer.Phone),
		Email: strings.TrimSpace(customer.Email),
	}
	if len(customer.Name) > 120 {
		return domain.SessionView{}, billing.Invalid("customer.name", "customer name is too long")
	}
	return s.mutate(terminalID, func(sess *cart.Session) error {
		sess.Customer = customer
		return nil
	})
}

func (s *Service) SetNotes(terminalID string, notes string) (domain.SessionView, error) {
	notes = strings.TrimSpace(notes)
	if len(notes) > 500 {
		return domain.SessionView{}, billing.Invalid("notes", "notes must be at most 500 characters")
	}
	return s.mutate(terminalID, func(sess *cart.Session) error {
		sess.Notes = notes
		return nil
	})
}

func (s *Service) SetDiscount(terminalID string, discount domain.DiscountSpec) (domain.SessionView, error) {
	discount.Type = domain.DiscountType(strings.ToLower(strings.TrimSpace(string(discount.Type))))
	if err := billing.ValidateDiscount(discount); err != nil {
		return domain.SessionView{}, err
	}
	return s.mutate(terminalID, func(sess *cart.Session) error {
		sess.Discount = discount
		return nil
	})
}

// SetPayment stores the chosen method. Split amounts are checked against
// the grand total only at checkout since the cart may still change.
func (s *Service) SetPayment(terminalID string, method domain.PaymentMethod) (domain.SessionView, error) {
	method = billing.NormalizePayment(method)
	if method.Kind == domain.PaymentSplit && method.Split != nil &&
		(method.Split.Cash.IsNegative() || method.Split.UPI.IsNegative()) {
		return domain.SessionView{}, billing.Invalid("payment", "Amounts cannot be negative")
	}
	if !billing.KnownPaymentKind(method.Kind) {
		return domain.SessionView{}, billing.Invalid("payment", fmt.Sprintf("unknown payment type %q", method.Kind))
	}
	return s.mutate(terminalID, func(sess *cart.Session) error {
		sess.Payment = method
		return nil
	})
}

// PreviewTotals computes totals for an arbitrary set of lines without
// touching any session.
func (s *Service) PreviewTotals(req domain.TotalsRequest) (domain.Totals, error) {
	if err := billing.ValidateDiscount(req.Discount); err != nil {
		return domain.Totals{}, err
	}
	return billing.RoundTotals(billing.ComputeTotals(req.Items, req.Discount)), nil
}

// Checkout saves the session as a bill. The session lock is released while
// the store works; the saving flag keeps a second submit out meanwhile, and
// the session's idempotency key turns a retried submit into a replay of the
// stored bill.
func (s *Service) Checkout(ctx context.Context, terminalID string) (domain.CheckoutResponse, error) {
	terminalID, err := normalizeTerminal(terminalID)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	sess := s.sessions.Get(terminalID)

	sess.Lock()
	bill, err := s.prepareBill(ctx, sess)
	if err == nil {
		err = sess.BeginSave()
	}
	sess.Unlock()
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	saved, duplicate, saveErr := s.saveBill(ctx, bill)

	sess.Lock()
	sess.FinishSave(saveErr == nil)
	sess.Unlock()

	if saveErr != nil {
		s.log.Warn("bill save failed",
			zap.String("terminal_id", terminalID),
			zap.String("idempotency_key", bill.IdempotencyKey),
			zap.Error(saveErr),
		)
		return domain.CheckoutResponse{}, saveErr
	}

	s.log.Info("bill saved",
		zap.Int64("bill_id", saved.ID),
		zap.String("terminal_id", terminalID),
		zap.String("total", saved.Total.StringFixed(2)),
		zap.Bool("duplicate", duplicate),
		zap.String("actor", actorName(ctx)),
	)

	out := domain.CheckoutResponse{Bill: *saved, Duplicate: duplicate}
	rendered, err := s.receipts.Render(*saved)
	if err != nil {
		// The bill is stored; the receipt can be fetched again later.
		s.log.Warn("receipt render failed", zap.Int64("bill_id", saved.ID), zap.Error(err))
		return out, nil
	}
	out.Receipt = rendered
	return out, nil
}

// prepareBill validates the session and freezes it into a bill. Callers hold
// the session lock.
func (s *Service) prepareBill(ctx context.Context, sess *cart.Session) (domain.Bill, error) {
	if sess.Saving() {
		return domain.Bill{}, errCheckoutInProgress
	}
	if sess.Cart.Len() == 0 {
		return domain.Bill{}, billing.Invalid("items", "cart is empty")
	}
	if strings.TrimSpace(sess.Customer.Name) == "" {
		return domain.Bill{}, billing.Invalid("customer.name", "customer name required")
	}

	totals := billing.RoundTotals(sess.Totals())
	payment := billing.NormalizePayment(sess.Payment)
	if err := billing.ValidatePayment(payment, totals.GrandTotal); err != nil {
		return domain.Bill{}, err
	}

	items := sess.Cart.Items()
	lines := make([]domain.BillLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, domain.BillLine{
			ItemID:   item.ItemID,
			ItemName: item.Name,
			Qty:      item.Quantity,
			Price:    item.UnitPrice,
			GSTRate:  item.GSTRate,
			Total:    billing.Round2(billing.LineTotal(item)),
		})
	}

	bill := domain.Bill{
		IdempotencyKey:  sess.CheckoutKey(),
		TerminalID:      sess.TerminalID,
		CashierUsername: actorName(ctx),
		Customer:        sess.Customer,
		Payment:         payment,
		PaymentType:     billing.PaymentLabel(payment),
		Notes:           sess.Notes,
		Subtotal:        totals.Subtotal,
		GSTTotal:        totals.GSTTotal,
		Discount:        totals.Discount,
		Total:           totals.GrandTotal,
		ItemCount:       totals.ItemCount,
		Items:           lines,
	}
	if sess.ReturnOfBillID != nil {
		id := *sess.ReturnOfBillID
		bill.ReturnOfBillID = &id
	}
	return bill, nil
}

func (s *Service) saveBill(ctx context.Context, bill domain.Bill) (*domain.Bill, bool, error) {
	existing, err := s.repo.FindBillByIdempotencyKey(ctx, bill.IdempotencyKey)
	switch {
	case err == nil:
		return existing, true, nil
	case !errors.Is(err, billing.ErrNotFound):
		return nil, false, billing.Persistence("check idempotency key", err)
	}

	saved, err := s.repo.CreateBill(ctx, bill)
	if err != nil {
		return nil, false, storeErr("save bill", err)
	}
	return saved, false, nil
}
