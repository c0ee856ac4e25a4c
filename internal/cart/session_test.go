package cart

import (
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"hhmart/billing/internal/billing"
	"hhmart/billing/internal/domain"
)

func TestResetClearsDependentState(t *testing.T) {
	s := NewSession("t1")
	s.Cart.AddOrIncrement(catalogItem(1, "10", "0", 5))
	s.Customer = domain.Customer{Name: "Asha", Phone: "9999"}
	s.Notes = "gift wrap"
	s.Discount = domain.DiscountSpec{Type: domain.DiscountFixed, Value: decimal.NewFromInt(5)}
	s.Payment = domain.PaymentMethod{Kind: domain.PaymentCard}

	s.Reset()

	view := s.View()
	if len(view.Items) != 0 || view.Customer.Name != "" || view.Notes != "" || !view.Discount.Value.IsZero() {
		t.Fatalf("expected full reset, got %+v", view)
	}
	if view.Payment.Kind != domain.PaymentCash {
		t.Fatalf("expected payment back to cash, got %s", view.Payment.Kind)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := NewSession("t1")
	s.Cart.AddOrIncrement(catalogItem(1, "10", "18", 5))
	s.Cart.AddOrIncrement(catalogItem(1, "10", "18", 5))
	s.Customer = domain.Customer{Name: "Ravi"}
	s.Notes = "call back"
	s.Discount = domain.DiscountSpec{Type: domain.DiscountPercent, Value: decimal.NewFromInt(10)}

	snap := s.Snapshot()
	s.Reset()

	other := NewSession("t2")
	other.Restore(snap)
	view := other.View()
	if len(view.Items) != 1 || view.Items[0].Quantity != 2 {
		t.Fatalf("unexpected restored items %+v", view.Items)
	}
	if view.Customer.Name != "Ravi" || view.Notes != "call back" {
		t.Fatalf("unexpected restored session %+v", view)
	}
	if !view.Totals.GrandTotal.Equal(snap.Totals.GrandTotal) {
		t.Fatalf("expected totals %s, got %s", snap.Totals.GrandTotal, view.Totals.GrandTotal)
	}
}

func TestLoadReturnNegatesQuantities(t *testing.T) {
	bill := domain.Bill{
		ID:       42,
		Customer: domain.Customer{Name: "Meera"},
		Subtotal: decimal.NewFromInt(230),
		Items: []domain.BillLine{
			{ItemID: 1, ItemName: "Rice", Qty: 2, Price: decimal.NewFromInt(100), GSTRate: decimal.NewFromInt(5)},
			{ItemID: 2, ItemName: "Salt", Qty: 1, Price: decimal.NewFromInt(30)},
		},
	}

	s := NewSession("t1")
	s.LoadReturn(bill, map[int64]int{1: 7})

	items := s.Cart.Items()
	if len(items) != 2 || items[0].Quantity != -2 || items[1].Quantity != -1 {
		t.Fatalf("unexpected return lines %+v", items)
	}
	if items[0].StockAvailable != 7 {
		t.Fatalf("expected stock snapshot 7, got %d", items[0].StockAvailable)
	}
	if !s.Totals().Subtotal.Equal(bill.Subtotal.Neg()) {
		t.Fatalf("expected subtotal %s, got %s", bill.Subtotal.Neg(), s.Totals().Subtotal)
	}
	if !s.Cart.ReturnMode() || s.ReturnOfBillID == nil || *s.ReturnOfBillID != 42 {
		t.Fatalf("expected return mode for bill 42")
	}
	if s.Customer.Name != "Meera" {
		t.Fatalf("expected original customer, got %q", s.Customer.Name)
	}
	if bill.Items[0].Qty != 2 {
		t.Fatalf("expected original bill untouched")
	}
}

func TestBeginSaveRejectsSecondSubmit(t *testing.T) {
	s := NewSession("t1")
	key := s.IdempotencyKey()

	if err := s.BeginSave(); err != nil {
		t.Fatalf("first begin: %v", err)
	}
	if err := s.BeginSave(); !errors.Is(err, billing.ErrValidation) {
		t.Fatalf("expected in-progress rejection, got %v", err)
	}

	s.FinishSave(false)
	if s.IdempotencyKey() != key {
		t.Fatalf("expected key to survive a failed save")
	}
	if err := s.BeginSave(); err != nil {
		t.Fatalf("expected retry to begin, got %v", err)
	}
	s.FinishSave(true)
	if s.IdempotencyKey() == key {
		t.Fatalf("expected key rotation after a saved bill")
	}
}

func TestCheckoutKeyTracksContentAfterFailedSave(t *testing.T) {
	s := NewSession("t1")
	s.Cart.AddOrIncrement(catalogItem(1, "10", "0", 5))
	s.Customer = domain.Customer{Name: "Asha"}

	key := s.CheckoutKey()
	s.FinishSave(false)
	if got := s.CheckoutKey(); got != key {
		t.Fatalf("expected unchanged sale to keep key %s, got %s", key, got)
	}
	s.FinishSave(false)

	s.Cart.AddOrIncrement(catalogItem(1, "10", "0", 5))
	changed := s.CheckoutKey()
	if changed == key {
		t.Fatalf("expected a new key after the cart changed")
	}
	s.FinishSave(false)

	s.Customer = domain.Customer{Name: "Ravi"}
	if s.CheckoutKey() == changed {
		t.Fatalf("expected a new key after the customer changed")
	}

	before := s.IdempotencyKey()
	s.Reset()
	if s.IdempotencyKey() == before {
		t.Fatalf("expected reset to issue a new key")
	}
}

func TestRegistryReturnsSameSessionPerTerminal(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	got := make([]*Session, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = reg.Get(" counter-1 ")
		}(i)
	}
	wg.Wait()

	for _, s := range got {
		if s != got[0] {
			t.Fatalf("expected one session per terminal")
		}
	}
	if reg.Get("counter-2") == got[0] {
		t.Fatalf("expected distinct sessions per terminal")
	}
}
