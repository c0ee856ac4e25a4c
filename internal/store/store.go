package store

import (
	"context"
	"errors"
	"time"

	"hhmart/billing/internal/billing"
	"hhmart/billing/internal/domain"
)

var (
	ErrNotFound          = billing.ErrNotFound
	ErrInsufficientStock = billing.ErrStockExceeded
	ErrConflict          = errors.New("conflict")
)

type CatalogStore interface {
	ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.CatalogItem, error)
	InventorySummary(ctx context.Context) (domain.InventorySummary, error)
	SearchItems(ctx context.Context, keyword string, limit int) ([]domain.CatalogItem, error)
	GetItem(ctx context.Context, itemID int64) (*domain.CatalogItem, error)
	GetItemByBarcode(ctx context.Context, barcode string) (*domain.CatalogItem, error)
	GetStockMap(ctx context.Context, itemIDs []int64) (map[int64]int, error)
	CreateItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error)
	UpdateItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error)
	DeleteItem(ctx context.Context, itemID int64) error
}

// BillStore persists bills. CreateBill writes the header, the lines and the
// stock movement as one unit; a repeated idempotency key yields the bill
// stored the first time.
type BillStore interface {
	CreateBill(ctx context.Context, bill domain.Bill) (*domain.Bill, error)
	FindBillByIdempotencyKey(ctx context.Context, key string) (*domain.Bill, error)
	GetBill(ctx context.Context, billID int64) (*domain.Bill, error)
	ListBills(ctx context.Context, filter domain.BillFilter) ([]domain.BillSummary, error)
}

// HoldStore keeps parked sessions. PopHold reads and deletes in one atomic
// step and returns ErrNotFound once a hold is gone; DeleteHold ignores
// missing ids.
type HoldStore interface {
	CreateHold(ctx context.Context, hold domain.HoldBill) (*domain.HoldBill, error)
	ListHolds(ctx context.Context, terminalID string, limit int) ([]domain.HoldBill, error)
	PopHold(ctx context.Context, holdID string) (*domain.HoldBill, error)
	DeleteHold(ctx context.Context, holdID string) error
}

type DashboardStore interface {
	SalesTotals(ctx context.Context, from time.Time, to time.Time) (domain.SalesTotals, error)
	DailySales(ctx context.Context, from time.Time, to time.Time) ([]domain.DailySales, error)
	LowStock(ctx context.Context, threshold int, limit int) ([]domain.LowStockItem, error)
	TopItems(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.ItemSales, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type Repository interface {
	CatalogStore
	BillStore
	HoldStore
	DashboardStore
	UserStore
}

// DayKey formats the bucket used by daily sales series.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
