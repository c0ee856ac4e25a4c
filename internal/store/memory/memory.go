package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"hhmart/billing/internal/billing"
	"hhmart/billing/internal/domain"
	"hhmart/billing/internal/store"
	"hhmart/billing/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	nextItemID      int64
	nextBillID      int64
	items           map[int64]domain.CatalogItem
	bills           map[int64]*domain.Bill
	billsByIdem     map[string]int64
	holdsByID       map[string]domain.HoldBill
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Passwords come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD, with
// dev defaults when unset.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		zap.L().Warn("memory store is using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			zap.L().Fatal("failed to hash seed password", zap.String("username", u.username), zap.Error(err))
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		items:           make(map[int64]domain.CatalogItem),
		bills:           make(map[int64]*domain.Bill),
		billsByIdem:     make(map[string]int64),
		holdsByID:       make(map[string]domain.HoldBill),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store with a small demo catalog and the seed users.
func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()

	for _, item := range []struct {
		barcode  string
		name     string
		price    string
		buyPrice string
		gst      string
		stock    int
		category string
	}{
		{"8901030865278", "Basmati Rice 1kg", "120", "95", "5", 40, "Grocery"},
		{"8901063092313", "Toor Dal 1kg", "160", "130", "5", 25, "Grocery"},
		{"8901725181222", "Sunflower Oil 1L", "185", "150", "5", 18, "Grocery"},
		{"8901058851427", "Tata Salt 1kg", "28", "22", "0", 60, "Grocery"},
		{"8901030793915", "Surf Excel 1kg", "140", "112", "18", 12, "Household"},
		{"8901399000102", "Parle-G Biscuits", "10", "8", "18", 100, "Snacks"},
		{"8901491101837", "Dairy Milk 50g", "45", "36", "28", 4, "Snacks"},
		{"8906002930011", "Masala Chai 250g", "110", "88", "5", 3, "Beverages"},
		{"8901262150019", "Amul Butter 100g", "56", "48", "12", 0, "Dairy"},
	} {
		_, _ = s.CreateItem(context.Background(), domain.CatalogItem{
			Barcode:  item.barcode,
			Name:     item.name,
			Price:    decimal.RequireFromString(item.price),
			BuyPrice: decimal.RequireFromString(item.buyPrice),
			GSTRate:  decimal.RequireFromString(item.gst),
			Stock:    item.stock,
			Category: item.category,
		})
	}
	return s
}

func (s *Store) ListItems(_ context.Context, filter domain.ItemFilter) ([]domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keyword := strings.ToLower(strings.TrimSpace(filter.Search))
	items := make([]domain.CatalogItem, 0, len(s.items))
	for _, item := range s.items {
		if keyword != "" && !matchesKeyword(item, keyword) {
			continue
		}
		if !matchesStock(item.Stock, filter.Stock) {
			continue
		}
		items = append(items, item)
	}
	slices.SortFunc(items, compareItemByName)
	return items, nil
}

func (s *Store) InventorySummary(_ context.Context) (domain.InventorySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summary domain.InventorySummary
	for _, item := range s.items {
		summary.Total++
		switch {
		case matchesStock(item.Stock, domain.StockOut):
			summary.OutOfStock++
		case matchesStock(item.Stock, domain.StockLow):
			summary.Low++
		default:
			summary.InStock++
		}
	}
	return summary, nil
}

func (s *Store) SearchItems(ctx context.Context, keyword string, limit int) ([]domain.CatalogItem, error) {
	if strings.TrimSpace(keyword) == "" {
		return []domain.CatalogItem{}, nil
	}
	items, err := s.ListItems(ctx, domain.ItemFilter{Search: keyword})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) GetItem(_ context.Context, itemID int64) (*domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[itemID]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) GetItemByBarcode(_ context.Context, barcode string) (*domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code := strings.TrimSpace(barcode)
	if code == "" {
		return nil, store.ErrNotFound
	}
	for _, item := range s.items {
		if item.Barcode == code {
			found := item
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetStockMap(_ context.Context, itemIDs []int64) (map[int64]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stock := make(map[int64]int, len(itemIDs))
	for _, id := range itemIDs {
		if item, ok := s.items[id]; ok {
			stock[id] = item.Stock
		}
	}
	return stock, nil
}

func (s *Store) CreateItem(_ context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.Barcode != "" && s.barcodeTaken(item.Barcode, 0) {
		return nil, store.ErrConflict
	}

	s.nextItemID++
	now := time.Now().UTC()
	item.ItemID = s.nextItemID
	item.CreatedAt = now
	item.UpdatedAt = now
	s.items[item.ItemID] = item
	created := item
	return &created, nil
}

func (s *Store) UpdateItem(_ context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.items[item.ItemID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if item.Barcode != "" && s.barcodeTaken(item.Barcode, item.ItemID) {
		return nil, store.ErrConflict
	}
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = time.Now().UTC()
	s.items[item.ItemID] = item
	updated := item
	return &updated, nil
}

func (s *Store) DeleteItem(_ context.Context, itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[itemID]; !exists {
		return store.ErrNotFound
	}
	delete(s.items, itemID)
	return nil
}

func (s *Store) CreateBill(_ context.Context, bill domain.Bill) (*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bill.IdempotencyKey != "" {
		if id, ok := s.billsByIdem[bill.IdempotencyKey]; ok {
			return cloneBill(s.bills[id]), nil
		}
	}
	if len(bill.Items) == 0 {
		return nil, billing.Invalid("items", "cart is empty")
	}

	movement := map[int64]int{}
	for _, line := range bill.Items {
		movement[line.ItemID] += line.Qty
	}
	for id, sold := range movement {
		item, exists := s.items[id]
		if !exists {
			// Returned lines of a deleted item are kept on the bill without restock.
			if sold > 0 {
				return nil, fmt.Errorf("item %d: %w", id, store.ErrNotFound)
			}
			delete(movement, id)
			continue
		}
		if sold > 0 && item.Stock-sold < 0 {
			return nil, &billing.StockError{ItemID: item.ItemID, Name: item.Name, Available: item.Stock, Requested: sold}
		}
	}

	for id, qty := range movement {
		item := s.items[id]
		item.Stock -= qty
		item.UpdatedAt = time.Now().UTC()
		s.items[id] = item
	}

	s.nextBillID++
	saved := cloneBill(&bill)
	saved.ID = s.nextBillID
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now().UTC()
	}
	roundBill(saved)
	s.bills[saved.ID] = saved
	if saved.IdempotencyKey != "" {
		s.billsByIdem[saved.IdempotencyKey] = saved.ID
	}
	return cloneBill(saved), nil
}

func (s *Store) FindBillByIdempotencyKey(_ context.Context, key string) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.billsByIdem[key]
	if !ok || key == "" {
		return nil, store.ErrNotFound
	}
	return cloneBill(s.bills[id]), nil
}

func (s *Store) GetBill(_ context.Context, billID int64) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bill, exists := s.bills[billID]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneBill(bill), nil
}

func (s *Store) ListBills(_ context.Context, filter domain.BillFilter) ([]domain.BillSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keyword := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]*domain.Bill, 0, len(s.bills))
	for _, bill := range s.bills {
		if filter.From != nil && bill.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !bill.CreatedAt.Before(*filter.To) {
			continue
		}
		if keyword != "" &&
			!strings.Contains(strings.ToLower(bill.Customer.Name), keyword) &&
			!strings.Contains(bill.Customer.Phone, keyword) &&
			fmt.Sprint(bill.ID) != keyword {
			continue
		}
		matched = append(matched, bill)
	}
	slices.SortFunc(matched, func(a, b *domain.Bill) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return int(b.ID - a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	result := make([]domain.BillSummary, 0, len(matched))
	for _, bill := range matched {
		result = append(result, domain.BillSummary{
			ID:            bill.ID,
			CustomerName:  bill.Customer.Name,
			CustomerPhone: bill.Customer.Phone,
			PaymentType:   bill.PaymentType,
			Total:         bill.Total,
			CreatedAt:     bill.CreatedAt,
		})
	}
	return result, nil
}

func (s *Store) CreateHold(_ context.Context, hold domain.HoldBill) (*domain.HoldBill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(hold.Items) == 0 {
		return nil, billing.Invalid("items", "cart is empty")
	}
	if hold.ID == "" {
		hold.ID = xid.New("hold")
	}
	if hold.CreatedAt.IsZero() {
		hold.CreatedAt = time.Now().UTC()
	}

	s.holdsByID[hold.ID] = cloneHold(hold)
	saved := cloneHold(s.holdsByID[hold.ID])
	return &saved, nil
}

func (s *Store) ListHolds(_ context.Context, terminalID string, limit int) ([]domain.HoldBill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.HoldBill, 0, len(s.holdsByID))
	for _, hold := range s.holdsByID {
		if terminalID != "" && hold.TerminalID != terminalID {
			continue
		}
		result = append(result, cloneHold(hold))
	}
	slices.SortFunc(result, func(a, b domain.HoldBill) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) PopHold(_ context.Context, holdID string) (*domain.HoldBill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hold, exists := s.holdsByID[holdID]
	if !exists {
		return nil, store.ErrNotFound
	}
	delete(s.holdsByID, holdID)
	result := cloneHold(hold)
	return &result, nil
}

func (s *Store) DeleteHold(_ context.Context, holdID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.holdsByID, holdID)
	return nil
}

func (s *Store) SalesTotals(_ context.Context, from time.Time, to time.Time) (domain.SalesTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := domain.SalesTotals{TotalSales: decimal.Zero, Profit: decimal.Zero}
	for _, bill := range s.bills {
		if !inWindow(bill.CreatedAt, from, to) {
			continue
		}
		totals.BillsCount++
		for _, line := range bill.Items {
			qty := decimal.NewFromInt(int64(line.Qty))
			totals.TotalSales = totals.TotalSales.Add(line.Price.Mul(qty))
			totals.ItemsSold += int64(line.Qty)
			cost := decimal.Zero
			if item, ok := s.items[line.ItemID]; ok {
				cost = item.BuyPrice
			}
			totals.Profit = totals.Profit.Add(line.Price.Sub(cost).Mul(qty))
		}
	}
	return totals, nil
}

func (s *Store) DailySales(_ context.Context, from time.Time, to time.Time) ([]domain.DailySales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := map[string]decimal.Decimal{}
	for _, bill := range s.bills {
		if !inWindow(bill.CreatedAt, from, to) {
			continue
		}
		day := store.DayKey(bill.CreatedAt)
		sales := byDay[day]
		for _, line := range bill.Items {
			sales = sales.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Qty))))
		}
		byDay[day] = sales
	}

	result := make([]domain.DailySales, 0, len(byDay))
	for day, sales := range byDay {
		result = append(result, domain.DailySales{Date: day, Sales: sales})
	}
	slices.SortFunc(result, func(a, b domain.DailySales) int {
		return cmpString(a.Date, b.Date)
	})
	return result, nil
}

func (s *Store) LowStock(_ context.Context, threshold int, limit int) ([]domain.LowStockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.LowStockItem, 0, 8)
	for _, item := range s.items {
		if item.Stock > threshold {
			continue
		}
		result = append(result, domain.LowStockItem{ItemID: item.ItemID, Name: item.Name, Stock: item.Stock})
	}
	slices.SortFunc(result, func(a, b domain.LowStockItem) int {
		if a.Stock == b.Stock {
			return cmpString(a.Name, b.Name)
		}
		return a.Stock - b.Stock
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) TopItems(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.ItemSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byName := map[string]int64{}
	for _, bill := range s.bills {
		if !inWindow(bill.CreatedAt, from, to) {
			continue
		}
		for _, line := range bill.Items {
			byName[line.ItemName] += int64(line.Qty)
		}
	}

	result := make([]domain.ItemSales, 0, len(byName))
	for name, qty := range byName {
		if qty <= 0 {
			continue
		}
		result = append(result, domain.ItemSales{ItemName: name, Qty: qty})
	}
	slices.SortFunc(result, func(a, b domain.ItemSales) int {
		if a.Qty == b.Qty {
			return cmpString(a.ItemName, b.ItemName)
		}
		if a.Qty > b.Qty {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return billing.Invalid("username", "username and password are required")
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return billing.Invalid("password", "username and password are required")
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) barcodeTaken(barcode string, exceptID int64) bool {
	for id, item := range s.items {
		if id != exceptID && item.Barcode == barcode {
			return true
		}
	}
	return false
}

func matchesKeyword(item domain.CatalogItem, keyword string) bool {
	return strings.Contains(strings.ToLower(item.Name), keyword) ||
		strings.Contains(strings.ToLower(item.Barcode), keyword)
}

func matchesStock(stock int, filter domain.StockFilter) bool {
	switch filter {
	case domain.StockInStock:
		return stock > domain.LowStockThreshold
	case domain.StockLow:
		return stock > 0 && stock <= domain.LowStockThreshold
	case domain.StockOut:
		return stock <= 0
	default:
		return true
	}
}

func compareItemByName(a, b domain.CatalogItem) int {
	if c := cmpString(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
		return c
	}
	return int(a.ItemID - b.ItemID)
}

func inWindow(at time.Time, from time.Time, to time.Time) bool {
	return !at.Before(from) && at.Before(to)
}

func roundBill(bill *domain.Bill) {
	bill.Subtotal = billing.Round2(bill.Subtotal)
	bill.GSTTotal = billing.Round2(bill.GSTTotal)
	bill.Discount = billing.Round2(bill.Discount)
	bill.Total = billing.Round2(bill.Total)
	for i := range bill.Items {
		bill.Items[i].Price = billing.Round2(bill.Items[i].Price)
		bill.Items[i].Total = billing.Round2(bill.Items[i].Total)
	}
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneBill(src *domain.Bill) *domain.Bill {
	if src == nil {
		return nil
	}
	dup := *src
	dup.Items = make([]domain.BillLine, len(src.Items))
	copy(dup.Items, src.Items)
	if src.Payment.Split != nil {
		split := *src.Payment.Split
		dup.Payment.Split = &split
	}
	if src.ReturnOfBillID != nil {
		id := *src.ReturnOfBillID
		dup.ReturnOfBillID = &id
	}
	return &dup
}

func cloneHold(src domain.HoldBill) domain.HoldBill {
	dup := src
	dup.Items = make([]domain.LineItem, len(src.Items))
	copy(dup.Items, src.Items)
	if src.Payment.Split != nil {
		split := *src.Payment.Split
		dup.Payment.Split = &split
	}
	if src.ReturnOfBillID != nil {
		id := *src.ReturnOfBillID
		dup.ReturnOfBillID = &id
	}
	return dup
}
