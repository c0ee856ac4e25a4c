package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"

	DefaultCategory   = "General"
	LowStockThreshold = 5
	SearchLimit       = 50
)

type CatalogItem struct {
	ItemID    int64           `json:"item_id" db:"item_id"`
	Barcode   string          `json:"barcode" db:"barcode"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	BuyPrice  decimal.Decimal `json:"buy_price" db:"buy_price"`
	GSTRate   decimal.Decimal `json:"gst_rate" db:"gst"`
	Stock     int             `json:"stock" db:"stock"`
	Category  string          `json:"category" db:"category"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

type ItemCreateRequest struct {
	Barcode  string          `json:"barcode"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	BuyPrice decimal.Decimal `json:"buy_price"`
	GSTRate  decimal.Decimal `json:"gst_rate"`
	Stock    int             `json:"stock"`
	Category string          `json:"category"`
}

// QuickItemRequest mirrors the cashier's quick-add form: only name and price
// are mandatory.
type QuickItemRequest struct {
	Name     string           `json:"name"`
	Price    decimal.Decimal  `json:"price"`
	GSTRate  *decimal.Decimal `json:"gst_rate,omitempty"`
	Stock    *int             `json:"stock,omitempty"`
	Barcode  string           `json:"barcode,omitempty"`
	Category string           `json:"category,omitempty"`
}

type ItemUpdateRequest struct {
	Barcode  *string          `json:"barcode,omitempty"`
	Name     *string          `json:"name,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	BuyPrice *decimal.Decimal `json:"buy_price,omitempty"`
	GSTRate  *decimal.Decimal `json:"gst_rate,omitempty"`
	Stock    *int             `json:"stock,omitempty"`
	Category *string          `json:"category,omitempty"`
}

type StockFilter string

const (
	StockAll     StockFilter = "all"
	StockInStock StockFilter = "in_stock"
	StockLow     StockFilter = "low"
	StockOut     StockFilter = "out"
)

type ItemFilter struct {
	Search string
	Stock  StockFilter
}

type InventorySummary struct {
	Total      int `json:"total"`
	InStock    int `json:"in_stock"`
	Low        int `json:"low"`
	OutOfStock int `json:"out_of_stock"`
}

type ItemListResponse struct {
	Items   []CatalogItem    `json:"items"`
	Summary InventorySummary `json:"summary"`
}

// LineItem is one product row in a cart. Quantity is negative only for
// returned goods.
type LineItem struct {
	ItemID         int64           `json:"item_id"`
	Barcode        string          `json:"barcode,omitempty"`
	Name           string          `json:"name"`
	Category       string          `json:"category,omitempty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	GSTRate        decimal.Decimal `json:"gst_rate"`
	Quantity       int             `json:"quantity"`
	StockAvailable int             `json:"stock_available"`
}

type DiscountType string

const (
	DiscountFixed   DiscountType = "fixed"
	DiscountPercent DiscountType = "percent"
)

type DiscountSpec struct {
	Type  DiscountType    `json:"type"`
	Value decimal.Decimal `json:"value"`
}

type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	GSTTotal   decimal.Decimal `json:"gst_total"`
	Discount   decimal.Decimal `json:"discount"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	ItemCount  int             `json:"item_count"`
}

type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type PaymentKind string

const (
	PaymentCash   PaymentKind = "cash"
	PaymentCard   PaymentKind = "card"
	PaymentUPI    PaymentKind = "upi"
	PaymentCheque PaymentKind = "cheque"
	PaymentCredit PaymentKind = "credit"
	PaymentSplit  PaymentKind = "split"
)

// PaymentMethod is a tagged variant. Split is set only when Kind is
// PaymentSplit.
type PaymentMethod struct {
	Kind  PaymentKind   `json:"kind"`
	Split *SplitPayment `json:"split,omitempty"`
}

type SplitPayment struct {
	Cash decimal.Decimal `json:"cash"`
	UPI  decimal.Decimal `json:"upi"`
}

type Bill struct {
	ID              int64           `json:"id"`
	IdempotencyKey  string          `json:"idempotency_key,omitempty"`
	TerminalID      string          `json:"terminal_id"`
	CashierUsername string          `json:"cashier_username,omitempty"`
	Customer        Customer        `json:"customer"`
	Payment         PaymentMethod   `json:"payment"`
	PaymentType     string          `json:"payment_type"`
	Notes           string          `json:"notes,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	GSTTotal        decimal.Decimal `json:"gst_total"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	ItemCount       int             `json:"item_count"`
	ReturnOfBillID  *int64          `json:"return_of_bill_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Items           []BillLine      `json:"items"`
}

// BillLine is a frozen copy of a cart row at the time of sale.
type BillLine struct {
	ItemID   int64           `json:"item_id" db:"item_id"`
	ItemName string          `json:"item_name" db:"item_name"`
	Qty      int             `json:"qty" db:"qty"`
	Price    decimal.Decimal `json:"price" db:"price"`
	GSTRate  decimal.Decimal `json:"gst" db:"gst"`
	Total    decimal.Decimal `json:"total" db:"total"`
}

type BillSummary struct {
	ID            int64           `json:"id" db:"id"`
	CustomerName  string          `json:"customer_name" db:"customer_name"`
	CustomerPhone string          `json:"customer_phone" db:"customer_phone"`
	PaymentType   string          `json:"payment_type" db:"payment_type"`
	Total         decimal.Decimal `json:"total" db:"total"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

type BillFilter struct {
	From   *time.Time
	To     *time.Time
	Search string
	Limit  int
	Offset int
}

type BillListResponse struct {
	Bills []BillSummary `json:"bills"`
}

type HoldBill struct {
	ID             string        `json:"id"`
	TerminalID     string        `json:"terminal_id"`
	Items          []LineItem    `json:"items"`
	Customer       Customer      `json:"customer"`
	Payment        PaymentMethod `json:"payment"`
	Notes          string        `json:"notes,omitempty"`
	Discount       DiscountSpec  `json:"discount"`
	Totals         Totals        `json:"totals"`
	ReturnMode     bool          `json:"return_mode"`
	ReturnOfBillID *int64        `json:"return_of_bill_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

type HoldListResponse struct {
	Holds []HoldBill `json:"holds"`
}

type HoldResponse struct {
	HoldID string `json:"hold_id"`
}

type SessionView struct {
	TerminalID     string        `json:"terminal_id"`
	Items          []LineItem    `json:"items"`
	Customer       Customer      `json:"customer"`
	Notes          string        `json:"notes,omitempty"`
	Discount       DiscountSpec  `json:"discount"`
	Payment        PaymentMethod `json:"payment"`
	Totals         Totals        `json:"totals"`
	ReturnMode     bool          `json:"return_mode"`
	ReturnOfBillID *int64        `json:"return_of_bill_id,omitempty"`
	Warning        string        `json:"warning,omitempty"`
}

type ScanRequest struct {
	Barcode string `json:"barcode"`
}

type AddItemRequest struct {
	ItemID int64 `json:"item_id"`
}

type QuantityRequest struct {
	Quantity int `json:"quantity"`
}

type NotesRequest struct {
	Notes string `json:"notes"`
}

type ReturnRequest struct {
	BillID     int64  `json:"bill_id"`
	ManagerPIN string `json:"manager_pin"`
}

type TotalsRequest struct {
	Items    []LineItem   `json:"items"`
	Discount DiscountSpec `json:"discount"`
}

type Receipt struct {
	BillID       int64  `json:"bill_id"`
	EscposBase64 string `json:"escpos_base64"`
	PreviewText  string `json:"preview_text"`
	HTML         string `json:"html"`
	FileName     string `json:"file_name"`
}

type CheckoutResponse struct {
	Bill      Bill    `json:"bill"`
	Receipt   Receipt `json:"receipt"`
	Duplicate bool    `json:"duplicate"`
}

type DashboardRange string

const (
	RangeDaily   DashboardRange = "daily"
	RangeWeekly  DashboardRange = "weekly"
	RangeMonthly DashboardRange = "monthly"
	RangeCustom  DashboardRange = "custom"
)

type DailySales struct {
	Date  string          `json:"date" db:"date"`
	Sales decimal.Decimal `json:"sales" db:"sales"`
}

type LowStockItem struct {
	ItemID int64  `json:"item_id" db:"item_id"`
	Name   string `json:"name" db:"name"`
	Stock  int    `json:"stock" db:"stock"`
}

type ItemSales struct {
	ItemName string `json:"item_name" db:"item_name"`
	Qty      int64  `json:"qty" db:"qty"`
}

// SalesTotals aggregates bill lines in a time window.
type SalesTotals struct {
	TotalSales decimal.Decimal `db:"total_sales"`
	BillsCount int64           `db:"bills_count"`
	ItemsSold  int64           `db:"items_sold"`
	Profit     decimal.Decimal `db:"profit"`
}

type DashboardStats struct {
	Range      DashboardRange  `json:"range"`
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	TotalSales decimal.Decimal `json:"total_sales"`
	BillsCount int64           `json:"bills_count"`
	AvgBill    decimal.Decimal `json:"avg_bill"`
	ItemsSold  int64           `json:"items_sold"`
	Profit     decimal.Decimal `json:"profit"`
	GraphData  []DailySales    `json:"graph_data"`
	LowStock   []LowStockItem  `json:"low_stock"`
	TopItems   []ItemSales     `json:"top_items"`
}

type SalesOverview struct {
	TodaySales  decimal.Decimal `json:"today_sales"`
	Weekly      []DailySales    `json:"weekly"`
	Monthly     []DailySales    `json:"monthly"`
	BestSellers []ItemSales     `json:"best_sellers"`
}

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
