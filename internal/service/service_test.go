package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"hhmart/billing/internal/billing"
	"hhmart/billing/internal/domain"
	"hhmart/billing/internal/receipt"
	"hhmart/billing/internal/store"
	"hhmart/billing/internal/store/memory"
)

const (
	riceBarcode   = "8901030865278"
	butterBarcode = "8901262150019"
	chaiBarcode   = "8906002930011"
)

// countingRepo records bill store traffic and can inject failures.
type countingRepo struct {
	store.Repository

	createCalls atomic.Int32
	findCalls   atomic.Int32

	mu         sync.Mutex
	createHook func(ctx context.Context, bill domain.Bill) (*domain.Bill, error)
}

func (r *countingRepo) CreateBill(ctx context.Context, bill domain.Bill) (*domain.Bill, error) {
	r.createCalls.Add(1)
	r.mu.Lock()
	hook := r.createHook
	r.mu.Unlock()
	if hook != nil {
		return hook(ctx, bill)
	}
	return r.Repository.CreateBill(ctx, bill)
}

func (r *countingRepo) FindBillByIdempotencyKey(ctx context.Context, key string) (*domain.Bill, error) {
	r.findCalls.Add(1)
	return r.Repository.FindBillByIdempotencyKey(ctx, key)
}

func (r *countingRepo) setCreateHook(hook func(ctx context.Context, bill domain.Bill) (*domain.Bill, error)) {
	r.mu.Lock()
	r.createHook = hook
	r.mu.Unlock()
}

func newTestService() (*Service, *countingRepo) {
	repo := &countingRepo{Repository: memory.NewSeeded()}
	return New(repo, Options{Receipts: receipt.NewRenderer("HH Mart", 42)}), repo
}

func adminContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func cashierContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "cashier", Role: domain.RoleCashier})
}

func mustScan(t *testing.T, svc *Service, terminal string, barcode string) domain.SessionView {
	t.Helper()
	view, err := svc.Scan(context.Background(), terminal, barcode)
	if err != nil {
		t.Fatalf("scan %s: %v", barcode, err)
	}
	return view
}

func TestScanMergesRepeatedItems(t *testing.T) {
	svc, _ := newTestService()

	mustScan(t, svc, "t1", riceBarcode)
	view := mustScan(t, svc, "t1", riceBarcode)

	if len(view.Items) != 1 || view.Items[0].Quantity != 2 {
		t.Fatalf("expected one line with qty 2, got %+v", view.Items)
	}
	if !view.Totals.Subtotal.Equal(decimal.NewFromInt(240)) {
		t.Fatalf("expected subtotal 240, got %s", view.Totals.Subtotal)
	}
	if !view.Totals.GSTTotal.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected gst 12, got %s", view.Totals.GSTTotal)
	}
}

func TestScanOutOfStockReturnsWarning(t *testing.T) {
	svc, _ := newTestService()

	view, err := svc.Scan(context.Background(), "t1", butterBarcode)
	if err != nil {
		t.Fatalf("expected warning instead of error, got %v", err)
	}
	if view.Warning == "" {
		t.Fatalf("expected stock warning")
	}
	if len(view.Items) != 0 {
		t.Fatalf("expected cart unchanged, got %+v", view.Items)
	}
}

func TestScanUnknownBarcode(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Scan(context.Background(), "t1", "0000")
	if !errors.Is(err, billing.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetQuantityAboveStockKeepsPrevious(t *testing.T) {
	svc, _ := newTestService()

	view := mustScan(t, svc, "t1", chaiBarcode)
	itemID := view.Items[0].ItemID
	if _, err := svc.SetQuantity("t1", itemID, 2); err != nil {
		t.Fatalf("set qty: %v", err)
	}

	view, err := svc.SetQuantity("t1", itemID, 10)
	if !errors.Is(err, billing.ErrStockExceeded) {
		t.Fatalf("expected stock exceeded, got %v", err)
	}
	if view.Items[0].Quantity != 2 {
		t.Fatalf("expected qty to stay 2, got %d", view.Items[0].Quantity)
	}
}

func TestClearResetsWholeSession(t *testing.T) {
	svc, _ := newTestService()

	mustScan(t, svc, "t1", riceBarcode)
	if _, err := svc.SetCustomer("t1", domain.Customer{Name: "Priya"}); err != nil {
		t.Fatalf("set customer: %v", err)
	}
	if _, err := svc.SetNotes("t1", "gift wrap"); err != nil {
		t.Fatalf("set notes: %v", err)
	}
	if _, err := svc.SetDiscount("t1", domain.DiscountSpec{Type: domain.DiscountFixed, Value: decimal.NewFromInt(5)}); err != nil {
		t.Fatalf("set discount: %v", err)
	}

	view, err := svc.Clear("t1")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(view.Items) != 0 || view.Customer.Name != "" || view.Notes != "" || !view.Totals.Discount.IsZero() {
		t.Fatalf("expected empty session, got %+v", view)
	}
}

func TestSessionsAreIsolatedPerTerminal(t *testing.T) {
	svc, _ := newTestService()

	mustScan(t, svc, "t1", riceBarcode)
	view, err := svc.View("t2")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("expected t2 to be empty, got %+v", view.Items)
	}
}

func TestCheckoutEmptyCartSkipsStore(t *testing.T) {
	svc, repo := newTestService()

	_, err := svc.Checkout(cashierContext(), "t1")
	if !errors.Is(err, billing.ErrValidation) || !strings.Contains(err.Error(), "cart is empty") {
		t.Fatalf("expected cart is empty validation, got %v", err)
	}
	if repo.createCalls.Load() != 0 || repo.findCalls.Load() != 0 {
		t.Fatalf("expected no bill store calls")
	}
}

func TestCheckoutRequiresCustomerName(t *testing.T) {
	svc, repo := newTestService()
	mustScan(t, svc, "t1", riceBarcode)

	_, err := svc.Checkout(cashierContext(), "t1")
	if !errors.Is(err, billing.ErrValidation) || !strings.Contains(err.Error(), "customer name required") {
		t.Fatalf("expected customer name validation, got %v", err)
	}
	if repo.createCalls.Load() != 0 {
		t.Fatalf("expected no bill store call")
	}
}

func TestCheckoutRejectsMismatchedSplit(t *testing.T) {
	svc, repo := newTestService()
	mustScan(t, svc, "t1", riceBarcode)
	if _, err := svc.SetCustomer("t1", domain.Customer{Name: "Priya"}); err != nil {
		t.Fatalf("set customer: %v", err)
	}
	if _, err := svc.SetPayment("t1", billing.Split(decimal.NewFromInt(60), decimal.NewFromInt(30))); err != nil {
		t.Fatalf("set payment: %v", err)
	}

	_, err := svc.Checkout(cashierContext(), "t1")
	if !errors.Is(err, billing.ErrValidation) || !strings.Contains(err.Error(), "Cash + UPI must equal Total (126)") {
		t.Fatalf("expected split validation, got %v", err)
	}
	if repo.createCalls.Load() != 0 {
		t.Fatalf("expected no bill store call")
	}
}

func TestSetPaymentRejectsNegativeSplit(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.SetPayment("t1", billing.Split(decimal.NewFromInt(-1), decimal.NewFromInt(10)))
	if !errors.Is(err, billing.ErrValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
	if _, err := svc.SetPayment("t1", domain.PaymentMethod{Kind: "bitcoin"}); !errors.Is(err, billing.ErrValidation) {
		t.Fatalf("expected unknown kind to fail, got %v", err)
	}
}

func TestCheckoutSavesBillAndResetsSession(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierContext()

	mustScan(t, svc, "t1", riceBarcode)
	mustScan(t, svc, "t1", riceBarcode)
	if _, err := svc.SetCustomer("t1", domain.Customer{Name: "Priya", Phone: "98450"}); err != nil {
		t.Fatalf("set customer: %v", err)
	}
	if _, err := svc.SetPayment("t1", billing.Split(decimal.NewFromInt(200), decimal.NewFromInt(52))); err != nil {
		t.Fatalf("set payment: %v", err)
	}

	resp, err := svc.Checkout(ctx, "t1")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if resp.Duplicate {
		t.Fatalf("first checkout should not be a duplicate")
	}
	if resp.Bill.ID == 0 || !resp.Bill.Total.Equal(decimal.NewFromInt(252)) {
		t.Fatalf("unexpected bill %+v", resp.Bill)
	}
	if resp.Bill.PaymentType != "Split | Cash: 200 | UPI: 52" {
		t.Fatalf("unexpected payment label %q", resp.Bill.PaymentType)
	}
	if resp.Bill.CashierUsername != "cashier" {
		t.Fatalf("expected cashier recorded, got %q", resp.Bill.CashierUsername)
	}
	if resp.Receipt.BillID != resp.Bill.ID || resp.Receipt.EscposBase64 == "" {
		t.Fatalf("expected receipt for saved bill, got %+v", resp.Receipt)
	}

	item, err := svc.FindByBarcode(context.Background(), riceBarcode)
	if err != nil {
		t.Fatalf("find item: %v", err)
	}
	if item.Stock != 38 {
		t.Fatalf("expected stock 38 after sale, got %d", item.Stock)
	}

	view, _ := svc.View("t1")
	if len(view.Items) != 0 || view.Customer.Name != "" || view.Payment.Kind != domain.PaymentCash {
		t.Fatalf("expected session reset after checkout, got %+v", view)
	}
}

func TestCheckoutInProgressBlocksSecondSubmit(t *testing.T) {
	svc, repo := newTestService()
	mustScan(t, svc, "t1", riceBarcode)
	if _, err := svc.SetCustomer("t1", domain.Customer{Name: "Priya"}); err != nil {
		t.Fatalf("set customer: %v", err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	inner := repo.Repository
	repo.setCreateHook(func(ctx context.Context, bill domain.Bill) (*domain.Bill, error) {
		close(entered)
		<-release
		return inner.CreateBill(ctx, bill)
	})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Checkout(cashierContext(), "t1")
		done <- err
	}()

	<-entered
	if _, err := svc.Checkout(cashierContext(), "t1"); !errors.Is(err, billing.ErrValidation) || !strings.Contains(err.Error(), "checkout already in progress") {
		t.Fatalf("expected in-progress rejection, got %v", err)
	}
	if _, err := svc.Scan(context.Background(), "t1", riceBarcode); !errors.Is(err, billing.ErrValidation) {
		t.Fatalf("expected mutation during save to be rejected, got %v", err)
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	if got := repo.createCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one bill write, got %d", got)
	}
}

func TestCheckoutFailureKeepsCartAndReplaysOnRetry(t *testing.T) {
	svc, repo := newTestService()
	mustScan(t, svc, "t1", riceBarcode)
	if _, err := svc.SetCustomer("t1", domain.Customer{Name: "Priya"}); err != nil {
		t.Fatalf("set customer: %v", err)
	}

	// The write lands but the caller only sees a broken connection.
	inner := repo.Repository
	repo.setCreateHook(func(ctx context.Context, bill domain.Bill) (*domain.Bill, error) {
		if _, err := inner.CreateBill(ctx, bill); err != nil {
			return nil, err
		}
		return nil, errors.New("connection reset by peer")
	})

	_, err := svc.Checkout(cashierContext(), "t1")
	if !errors.Is(err, billing.ErrPersistence) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	view, _ := svc.View("t1")
	if len(view.Items) != 1 || view.Customer.Name != "Priya" {
		t.Fatalf("expected cart preserved after failure, got %+v", view)
	}

	repo.setCreateHook(nil)
	resp, err := svc.Checkout(cashierContext(), "t1")
	if err != nil {
		t.Fatalf("retry checkout: %v", err)
	}
	if !resp.Duplicate {
		t.Fatalf("expected retry to replay the stored bill")
	}

	list, err := svc.ListBills(context.Background(), domain.BillFilter{})
	if err != nil {
		t.Fatalf("list bills: %v", err)
	}
	if len(list.Bills) != 1 {
		t.Fatalf("expected one stored bill, got %d", len(list.Bills))
	}
}

func TestCheckoutAfterLostResponseBillsChangedCart(t *testing.T) {
	svc, repo := newTestService()
	mustScan(t, svc, "t1", riceBarcode)
	if _, err := svc.SetCustomer("t1", domain.Customer{Name: "Priya"}); err != nil {
		t.Fatalf("set customer: %v", err)
	}

	inner := repo.Repository
	repo.setCreateHook(func(ctx context.Context, bill domain.Bill) (*domain.Bill, error) {
		if _, err := inner.CreateBill(ctx, bill); err != nil {
			return nil, err
		}
		return nil, errors.New("connection reset by peer")
	})
	if _, err := svc.Checkout(cashierContext(), "t1"); !errors.Is(err, billing.ErrPersistence) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	repo.setCreateHook(nil)

	// The cashier moves on to a different sale on the same terminal.
	if _, err := svc.Clear("t1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	mustScan(t, svc, "t1", chaiBarcode)
	if _, err := svc.SetCustomer("t1", domain.Customer{Name: "Kiran"}); err != nil {
		t.Fatalf("set customer: %v", err)
	}

	resp, err := svc.Checkout(cashierContext(), "t1")
	if err != nil {
		t.Fatalf("second checkout: %v", err)
	}
	if resp.Duplicate {
		t.Fatalf("expected a new bill, got a replay of bill %d", resp.Bill.ID)
	}
	chai, _ := svc.FindByBarcode(context.Background(), chaiBarcode)
	if resp.Bill.Customer.Name != "Kiran" || len(resp.Bill.Items) != 1 || resp.Bill.Items[0].ItemID != chai.ItemID {
		t.Fatalf("unexpected bill %+v", resp.Bill)
	}

	list, err := svc.ListBills(context.Background(), domain.BillFilter{})
	if err != nil {
		t.Fatalf("list bills: %v", err)
	}
	if len(list.Bills) != 2 {
		t.Fatalf("expected two distinct bills, got %d", len(list.Bills))
	}
	chai, _ = svc.FindByBarcode(context.Background(), chaiBarcode)
	if chai.Stock != 2 {
		t.Fatalf("expected chai stock 2, got %d", chai.Stock)
	}
}

func TestCheckoutAfterFailedSaveWithEditedCartIsNotAReplay(t *testing.T) {
	svc, repo := newTestService()
	mustScan(t, svc, "t1", riceBarcode)
	if _, err := svc.SetCustomer("t1", domain.Customer{Name: "Priya"}); err != nil {
		t.Fatalf("set customer: %v", err)
	}

	inner := repo.Repository
	repo.setCreateHook(func(ctx context.Context, bill domain.Bill) (*domain.Bill, error) {
		if _, err := inner.CreateBill(ctx, bill); err != nil {
			return nil, err
		}
		return nil, errors.New("connection reset by peer")
	})
	if _, err := svc.Checkout(cashierContext(), "t1"); err == nil {
		t.Fatalf("expected failure")
	}
	repo.setCreateHook(nil)

	mustScan(t, svc, "t1", riceBarcode)
	resp, err := svc.Checkout(cashierContext(), "t1")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if resp.Duplicate || resp.Bill.ItemCount != 2 {
		t.Fatalf("expected a fresh bill for two items, got duplicate=%v count=%d", resp.Duplicate, resp.Bill.ItemCount)
	}
	rice, _ := svc.FindByBarcode(context.Background(), riceBarcode)
	if rice.Stock != 37 {
		t.Fatalf("expected stock 37 after both bills, got %d", rice.Stock)
	}
}

func TestCheckoutStockRaceReturnsStockExceeded(t *testing.T) {
	svc, _ := newTestService()

	for _, terminal := range []string{"t1", "t2"} {
		for i := 0; i < 3; i++ {
			mustScan(t, svc, terminal, chaiBarcode)
		}
		if _, err := svc.SetCustomer(terminal, domain.Customer{Name: "Guest " + terminal}); err != nil {
			t.Fatalf("set customer: %v", err)
		}
	}

	if _, err := svc.Checkout(cashierContext(), "t1"); err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	_, err := svc.Checkout(cashierContext(), "t2")
	if !errors.Is(err, billing.ErrStockExceeded) {
		t.Fatalf("expected stock exceeded for stale snapshot, got %v", err)
	}
	view, _ := svc.View("t2")
	if len(view.Items) != 1 {
		t.Fatalf("expected t2 cart kept for correction")
	}
}

func TestHoldResumeResumeAgain(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	mustScan(t, svc, "t1", riceBarcode)
	if _, err := svc.SetNotes("t1", "back in 5"); err != nil {
		t.Fatalf("set notes: %v", err)
	}
	hold, err := svc.Hold(ctx, "t1")
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if view, _ := svc.View("t1"); len(view.Items) != 0 {
		t.Fatalf("expected session reset after hold")
	}

	view, found, err := svc.ResumeHold(ctx, "t1", hold.HoldID)
	if err != nil || !found {
		t.Fatalf("expected first resume to succeed, found=%v err=%v", found, err)
	}
	if len(view.Items) != 1 || view.Notes != "back in 5" {
		t.Fatalf("unexpected restored session %+v", view)
	}

	if _, err := svc.Clear("t1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	_, found, err = svc.ResumeHold(ctx, "t1", hold.HoldID)
	if err != nil {
		t.Fatalf("expected not found without error, got %v", err)
	}
	if found {
		t.Fatalf("expected second resume to report not found")
	}
}

func TestHoldRejectsEmptyCart(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Hold(context.Background(), "t1")
	if !errors.Is(err, billing.ErrValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
}

func TestResumeRefusesToOverwriteOpenCart(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	mustScan(t, svc, "t1", riceBarcode)
	hold, err := svc.Hold(ctx, "t1")
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	mustScan(t, svc, "t1", chaiBarcode)

	if _, _, err := svc.ResumeHold(ctx, "t1", hold.HoldID); !errors.Is(err, billing.ErrValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
	list, err := svc.ListHolds(ctx, "")
	if err != nil {
		t.Fatalf("list holds: %v", err)
	}
	if len(list.Holds) != 1 {
		t.Fatalf("expected hold to stay active, got %d", len(list.Holds))
	}
}

func TestConcurrentResumeAcrossTerminals(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	mustScan(t, svc, "t1", riceBarcode)
	hold, err := svc.Hold(ctx, "t1")
	if err != nil {
		t.Fatalf("hold: %v", err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for _, terminal := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(terminal string) {
			defer wg.Done()
			_, found, err := svc.ResumeHold(ctx, terminal, hold.HoldID)
			if err != nil {
				t.Errorf("resume on %s: %v", terminal, err)
				return
			}
			if found {
				wins.Add(1)
			}
		}(terminal)
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one resume to win, got %d", wins.Load())
	}
}

func TestListHoldsReturnsNewestHundred(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierContext()

	for i := 0; i < holdListLimit+5; i++ {
		mustScan(t, svc, "t1", riceBarcode)
		if _, err := svc.Hold(ctx, "t1"); err != nil {
			t.Fatalf("hold %d: %v", i, err)
		}
	}

	list, err := svc.ListHolds(ctx, "")
	if err != nil {
		t.Fatalf("list holds: %v", err)
	}
	if len(list.Holds) != holdListLimit {
		t.Fatalf("expected %d holds, got %d", holdListLimit, len(list.Holds))
	}
}

func TestDeleteHoldIsIdempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	mustScan(t, svc, "t1", riceBarcode)
	hold, err := svc.Hold(ctx, "t1")
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := svc.DeleteHold(ctx, hold.HoldID); err != nil {
			t.Fatalf("delete #%d: %v", i+1, err)
		}
	}
	list, _ := svc.ListHolds(ctx, "")
	if len(list.Holds) != 0 {
		t.Fatalf("expected no active holds")
	}
}

func TestReturnRoundTrip(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierContext()

	mustScan(t, svc, "t1", riceBarcode)
	mustScan(t, svc, "t1", riceBarcode)
	if _, err := svc.SetCustomer("t1", domain.Customer{Name: "Priya"}); err != nil {
		t.Fatalf("set customer: %v", err)
	}
	sale, err := svc.Checkout(ctx, "t1")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	view, err := svc.LoadForReturn(ctx, "t1", sale.Bill.ID)
	if err != nil {
		t.Fatalf("load for return: %v", err)
	}
	if !view.ReturnMode || view.ReturnOfBillID == nil || *view.ReturnOfBillID != sale.Bill.ID {
		t.Fatalf("expected return mode for bill %d, got %+v", sale.Bill.ID, view)
	}
	if len(view.Items) != 1 || view.Items[0].Quantity != -2 {
		t.Fatalf("expected negated qty, got %+v", view.Items)
	}
	if !view.Totals.Subtotal.Equal(sale.Bill.Subtotal.Neg()) {
		t.Fatalf("expected subtotal %s, got %s", sale.Bill.Subtotal.Neg(), view.Totals.Subtotal)
	}
	if view.Customer.Name != "Priya" {
		t.Fatalf("expected customer inherited")
	}

	refund, err := svc.Checkout(ctx, "t1")
	if err != nil {
		t.Fatalf("return checkout: %v", err)
	}
	if refund.Bill.ReturnOfBillID == nil || *refund.Bill.ReturnOfBillID != sale.Bill.ID {
		t.Fatalf("expected return bill linked to source")
	}
	if !refund.Bill.Total.IsZero() {
		t.Fatalf("expected floored total 0, got %s", refund.Bill.Total)
	}

	item, _ := svc.FindByBarcode(context.Background(), riceBarcode)
	if item.Stock != 40 {
		t.Fatalf("expected stock restored to 40, got %d", item.Stock)
	}

	original, err := svc.GetBill(ctx, sale.Bill.ID)
	if err != nil {
		t.Fatalf("get bill: %v", err)
	}
	if original.Items[0].Qty != 2 {
		t.Fatalf("expected source bill untouched")
	}

	if _, err := svc.LoadForReturn(ctx, "t1", refund.Bill.ID); !errors.Is(err, billing.ErrValidation) {
		t.Fatalf("expected a return bill to be rejected, got %v", err)
	}
}

func TestReturnOfDeletedItemIsSavedWithoutRestock(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierContext()

	mustScan(t, svc, "t1", riceBarcode)
	mustScan(t, svc, "t1", chaiBarcode)
	if _, err := svc.SetCustomer("t1", domain.Customer{Name: "Priya"}); err != nil {
		t.Fatalf("set customer: %v", err)
	}
	sale, err := svc.Checkout(ctx, "t1")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	rice, _ := svc.FindByBarcode(context.Background(), riceBarcode)
	if err := svc.DeleteItem(adminContext(), rice.ItemID); err != nil {
		t.Fatalf("delete item: %v", err)
	}

	if _, err := svc.LoadForReturn(ctx, "t1", sale.Bill.ID); err != nil {
		t.Fatalf("load for return: %v", err)
	}
	refund, err := svc.Checkout(ctx, "t1")
	if err != nil {
		t.Fatalf("return checkout: %v", err)
	}
	if len(refund.Bill.Items) != 2 {
		t.Fatalf("expected both lines on the return bill, got %+v", refund.Bill.Items)
	}
	for _, line := range refund.Bill.Items {
		if line.Qty != -1 {
			t.Fatalf("expected negated lines, got %+v", refund.Bill.Items)
		}
	}

	chai, _ := svc.FindByBarcode(context.Background(), chaiBarcode)
	if chai.Stock != 3 {
		t.Fatalf("expected chai restocked to 3, got %d", chai.Stock)
	}
	if _, err := svc.GetItem(context.Background(), rice.ItemID); !errors.Is(err, billing.ErrNotFound) {
		t.Fatalf("expected deleted item to stay deleted, got %v", err)
	}
}

func TestLoadForReturnUnknownBill(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.LoadForReturn(context.Background(), "t1", 999); !errors.Is(err, billing.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCatalogWritesRequireAdmin(t *testing.T) {
	svc, _ := newTestService()

	req := domain.ItemCreateRequest{Name: "Ghee 500ml", Barcode: "123", Price: decimal.NewFromInt(310)}
	if _, err := svc.CreateItem(cashierContext(), req); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for cashier, got %v", err)
	}
	item, err := svc.CreateItem(adminContext(), req)
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if item.Category != domain.DefaultCategory {
		t.Fatalf("expected default category, got %q", item.Category)
	}

	if _, err := svc.CreateItem(adminContext(), req); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected duplicate barcode conflict, got %v", err)
	}
}

func TestCreateItemValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminContext()

	cases := []domain.ItemCreateRequest{
		{Barcode: "1", Price: decimal.NewFromInt(1)},
		{Name: "X", Price: decimal.NewFromInt(1)},
		{Name: "X", Barcode: "1"},
		{Name: "X", Barcode: "1", Price: decimal.NewFromInt(1), GSTRate: decimal.NewFromInt(101)},
		{Name: "X", Barcode: "1", Price: decimal.NewFromInt(1), Stock: -1},
	}
	for i, req := range cases {
		if _, err := svc.CreateItem(ctx, req); !errors.Is(err, billing.ErrValidation) {
			t.Fatalf("case %d: expected validation, got %v", i, err)
		}
	}
}

func TestQuickCreateDefaults(t *testing.T) {
	svc, _ := newTestService()

	item, err := svc.QuickCreate(cashierContext(), domain.QuickItemRequest{Name: " Loose Jaggery ", Price: decimal.NewFromInt(60)})
	if err != nil {
		t.Fatalf("quick create: %v", err)
	}
	if item.Name != "Loose Jaggery" || item.Stock != 0 || !item.GSTRate.IsZero() || item.Category != domain.DefaultCategory {
		t.Fatalf("unexpected defaults %+v", item)
	}
}

func TestSearchCapsLimit(t *testing.T) {
	svc, _ := newTestService()

	items, err := svc.SearchItems(context.Background(), "RICE", 500)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 1 || items[0].Barcode != riceBarcode {
		t.Fatalf("unexpected search result %+v", items)
	}
}

func TestPreviewTotals(t *testing.T) {
	svc, _ := newTestService()

	totals, err := svc.PreviewTotals(domain.TotalsRequest{
		Items:    []domain.LineItem{{ItemID: 1, UnitPrice: decimal.NewFromInt(100), GSTRate: decimal.NewFromInt(18), Quantity: 2}},
		Discount: domain.DiscountSpec{Type: domain.DiscountFixed, Value: decimal.NewFromInt(20)},
	})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !totals.GrandTotal.Equal(decimal.NewFromInt(216)) {
		t.Fatalf("expected 216, got %s", totals.GrandTotal)
	}
}

func TestDashboardStats(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierContext()

	mustScan(t, svc, "t1", riceBarcode)
	mustScan(t, svc, "t1", riceBarcode)
	if _, err := svc.SetCustomer("t1", domain.Customer{Name: "Priya"}); err != nil {
		t.Fatalf("set customer: %v", err)
	}
	if _, err := svc.Checkout(ctx, "t1"); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	mustScan(t, svc, "t1", chaiBarcode)
	if _, err := svc.SetCustomer("t1", domain.Customer{Name: "Ravi"}); err != nil {
		t.Fatalf("set customer: %v", err)
	}
	if _, err := svc.Checkout(ctx, "t1"); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	stats, err := svc.DashboardStats(context.Background(), domain.RangeWeekly, "", "")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	// 2 x 120 rice + 1 x 110 chai; cost 2 x 95 + 88.
	if !stats.TotalSales.Equal(decimal.NewFromInt(350)) {
		t.Fatalf("expected sales 350, got %s", stats.TotalSales)
	}
	if stats.BillsCount != 2 || stats.ItemsSold != 3 {
		t.Fatalf("unexpected counts %+v", stats)
	}
	if !stats.AvgBill.Equal(decimal.NewFromInt(175)) {
		t.Fatalf("expected avg 175, got %s", stats.AvgBill)
	}
	if !stats.Profit.Equal(decimal.NewFromInt(72)) {
		t.Fatalf("expected profit 72, got %s", stats.Profit)
	}
	if len(stats.TopItems) == 0 || stats.TopItems[0].ItemName != "Basmati Rice 1kg" {
		t.Fatalf("unexpected top items %+v", stats.TopItems)
	}
	if len(stats.LowStock) == 0 || stats.LowStock[0].Stock != 0 {
		t.Fatalf("expected out of stock item first, got %+v", stats.LowStock)
	}
}

func TestDashboardCustomRangeValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.DashboardStats(ctx, domain.RangeCustom, "", ""); !errors.Is(err, billing.ErrValidation) {
		t.Fatalf("expected missing dates to fail, got %v", err)
	}
	if _, err := svc.DashboardStats(ctx, domain.RangeCustom, "2026-05-10", "2026-05-01"); !errors.Is(err, billing.ErrValidation) {
		t.Fatalf("expected inverted range to fail, got %v", err)
	}
	if _, err := svc.DashboardStats(ctx, "yearly", "", ""); !errors.Is(err, billing.ErrValidation) {
		t.Fatalf("expected unknown range to fail, got %v", err)
	}

	stats, err := svc.DashboardStats(ctx, domain.RangeCustom, "2026-05-01", "2026-05-01")
	if err != nil {
		t.Fatalf("custom range: %v", err)
	}
	if stats.To.Sub(stats.From) != 24*time.Hour {
		t.Fatalf("expected a one-day window, got %s..%s", stats.From, stats.To)
	}
	if !stats.AvgBill.IsZero() {
		t.Fatalf("expected zero avg with no bills")
	}
}

func TestMonthlyRangeStartsOnFirst(t *testing.T) {
	svc, _ := newTestService()
	svc.now = func() time.Time { return time.Date(2026, 5, 17, 15, 0, 0, 0, time.UTC) }

	win, err := svc.resolveRange(domain.RangeMonthly, "", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !win.from.Equal(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)) || !win.to.Equal(time.Date(2026, 5, 18, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window %s..%s", win.from, win.to)
	}
}
