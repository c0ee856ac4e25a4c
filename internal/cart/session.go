package cart

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"

	"hhmart/billing/internal/billing"
	"hhmart/billing/internal/domain"
	"hhmart/billing/internal/xid"
)

// Session is the checkout state of one terminal. Callers hold Lock while
// reading or mutating it.
type Session struct {
	mu sync.Mutex

	TerminalID     string
	Cart           *Cart
	Customer       domain.Customer
	Notes          string
	Discount       domain.DiscountSpec
	Payment        domain.PaymentMethod
	ReturnOfBillID *int64

	idempotencyKey string
	submitted      string
	saving         bool
}

func NewSession(terminalID string) *Session {
	return &Session{
		TerminalID:     terminalID,
		Cart:           New(),
		Payment:        billing.Cash(),
		idempotencyKey: xid.New("bill"),
	}
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Reset empties the cart together with customer, notes, discount, payment
// and return state.
func (s *Session) Reset() {
	s.Cart.Clear()
	s.Customer = domain.Customer{}
	s.Notes = ""
	s.Discount = domain.DiscountSpec{}
	s.Payment = billing.Cash()
	s.ReturnOfBillID = nil
	s.rotateKey()
}

func (s *Session) rotateKey() {
	s.idempotencyKey = xid.New("bill")
	s.submitted = ""
}

func (s *Session) Totals() domain.Totals {
	return s.Cart.Totals(s.Discount)
}

func (s *Session) View() domain.SessionView {
	return domain.SessionView{
		TerminalID:     s.TerminalID,
		Items:          s.Cart.Items(),
		Customer:       s.Customer,
		Notes:          s.Notes,
		Discount:       s.Discount,
		Payment:        s.Payment,
		Totals:         billing.RoundTotals(s.Totals()),
		ReturnMode:     s.Cart.ReturnMode(),
		ReturnOfBillID: s.ReturnOfBillID,
	}
}

// Snapshot captures everything a hold needs to restore the session later.
func (s *Session) Snapshot() domain.HoldBill {
	return domain.HoldBill{
		TerminalID:     s.TerminalID,
		Items:          s.Cart.Items(),
		Customer:       s.Customer,
		Payment:        s.Payment,
		Notes:          s.Notes,
		Discount:       s.Discount,
		Totals:         billing.RoundTotals(s.Totals()),
		ReturnMode:     s.Cart.ReturnMode(),
		ReturnOfBillID: s.ReturnOfBillID,
	}
}

// Restore replaces the session contents with a held snapshot.
func (s *Session) Restore(hold domain.HoldBill) {
	s.Cart = FromItems(hold.Items, hold.ReturnMode)
	s.Customer = hold.Customer
	s.Notes = hold.Notes
	s.Discount = hold.Discount
	s.Payment = billing.NormalizePayment(hold.Payment)
	s.ReturnOfBillID = hold.ReturnOfBillID
	s.rotateKey()
}

// LoadReturn switches the session to return mode with the lines of a
// previous bill negated.
func (s *Session) LoadReturn(bill domain.Bill, stock map[int64]int) {
	items := make([]domain.LineItem, 0, len(bill.Items))
	for _, line := range bill.Items {
		qty := line.Qty
		if qty > 0 {
			qty = -qty
		}
		items = append(items, domain.LineItem{
			ItemID:         line.ItemID,
			Name:           line.ItemName,
			UnitPrice:      line.Price,
			GSTRate:        line.GSTRate,
			Quantity:       qty,
			StockAvailable: stock[line.ItemID],
		})
	}

	s.Reset()
	s.Cart = FromItems(items, true)
	s.Customer = bill.Customer
	id := bill.ID
	s.ReturnOfBillID = &id
}

func (s *Session) IdempotencyKey() string {
	return s.idempotencyKey
}

// CheckoutKey returns the idempotency key for submitting the current
// contents. After a failed save the key stays pinned to what was submitted;
// any change to the sale since then gets a fresh key.
func (s *Session) CheckoutKey() string {
	digest := s.fingerprint()
	if s.submitted != "" && s.submitted != digest {
		s.rotateKey()
	}
	s.submitted = digest
	return s.idempotencyKey
}

// fingerprint covers what ends up on the bill. Stock snapshots are left out.
func (s *Session) fingerprint() string {
	type line struct {
		ItemID   int64  `json:"item_id"`
		Quantity int    `json:"qty"`
		Price    string `json:"price"`
		GSTRate  string `json:"gst"`
	}
	items := s.Cart.Items()
	lines := make([]line, 0, len(items))
	for _, item := range items {
		lines = append(lines, line{item.ItemID, item.Quantity, item.UnitPrice.String(), item.GSTRate.String()})
	}
	raw, _ := json.Marshal(struct {
		Lines          []line               `json:"lines"`
		Customer       domain.Customer      `json:"customer"`
		Notes          string               `json:"notes"`
		Discount       domain.DiscountSpec  `json:"discount"`
		Payment        domain.PaymentMethod `json:"payment"`
		ReturnOfBillID *int64               `json:"return_of_bill_id"`
	}{lines, s.Customer, s.Notes, s.Discount, billing.NormalizePayment(s.Payment), s.ReturnOfBillID})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// BeginSave marks a checkout in flight. A second call before FinishSave
// fails so one submit produces at most one bill.
func (s *Session) BeginSave() error {
	if s.saving {
		return billing.Invalid("checkout", "checkout already in progress")
	}
	s.saving = true
	return nil
}

// FinishSave clears the in-flight flag. After a saved bill the session is
// reset, which issues a fresh idempotency key; on failure the cart and key
// stay so an unchanged retry replays the same submit.
func (s *Session) FinishSave(saved bool) {
	s.saving = false
	if !saved {
		return
	}
	s.Reset()
}

func (s *Session) Saving() bool {
	return s.saving
}

// Registry hands out one Session per terminal id, created on first use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[string]*Session{}}
}

func (r *Registry) Get(terminalID string) *Session {
	key := strings.TrimSpace(terminalID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		return s
	}
	s := NewSession(key)
	r.sessions[key] = s
	return s
}
