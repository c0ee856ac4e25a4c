package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"hhmart/billing/internal/billing"
	"hhmart/billing/internal/domain"
)

var maxGST = decimal.NewFromInt(100)

func (s *Service) ListItems(ctx context.Context, filter domain.ItemFilter) (domain.ItemListResponse, error) {
	switch filter.Stock {
	case "", domain.StockAll, domain.StockInStock, domain.StockLow, domain.StockOut:
	default:
		return domain.ItemListResponse{}, billing.Invalid("stock", "stock filter must be all, in_stock, low or out")
	}

	items, err := s.repo.ListItems(ctx, filter)
	if err != nil {
		return domain.ItemListResponse{}, storeErr("list items", err)
	}
	summary, err := s.repo.InventorySummary(ctx)
	if err != nil {
		return domain.ItemListResponse{}, storeErr("summarize inventory", err)
	}
	return domain.ItemListResponse{Items: items, Summary: summary}, nil
}

func (s *Service) SearchItems(ctx context.Context, keyword string, limit int) ([]domain.CatalogItem, error) {
	if limit <= 0 || limit > domain.SearchLimit {
		limit = domain.SearchLimit
	}
	items, err := s.repo.SearchItems(ctx, strings.TrimSpace(keyword), limit)
	if err != nil {
		return nil, storeErr("search items", err)
	}
	return items, nil
}

func (s *Service) GetItem(ctx context.Context, itemID int64) (domain.CatalogItem, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return domain.CatalogItem{}, storeErr("load item", err)
	}
	return *item, nil
}

func (s *Service) FindByBarcode(ctx context.Context, barcode string) (domain.CatalogItem, error) {
	item, err := s.repo.GetItemByBarcode(ctx, strings.TrimSpace(barcode))
	if err != nil {
		return domain.CatalogItem{}, storeErr("look up barcode", err)
	}
	return *item, nil
}

// CreateItem backs the full add-item form.
func (s *Service) CreateItem(ctx context.Context, req domain.ItemCreateRequest) (domain.CatalogItem, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.CatalogItem{}, err
	}

	item := domain.CatalogItem{
		Barcode:  strings.TrimSpace(req.Barcode),
		Name:     strings.TrimSpace(req.Name),
		Price:    req.Price,
		BuyPrice: req.BuyPrice,
		GSTRate:  req.GSTRate,
		Stock:    req.Stock,
		Category: defaultString(req.Category, domain.DefaultCategory),
	}
	if item.Barcode == "" {
		return domain.CatalogItem{}, billing.Invalid("barcode", "barcode is required")
	}
	if !item.Price.IsPositive() {
		return domain.CatalogItem{}, billing.Invalid("price", "price is required")
	}
	if err := validateItem(item); err != nil {
		return domain.CatalogItem{}, err
	}

	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return domain.CatalogItem{}, storeErr("create item", err)
	}
	s.log.Info("item created",
		zap.Int64("item_id", created.ItemID),
		zap.String("barcode", created.Barcode),
		zap.String("actor", actorName(ctx)),
	)
	return *created, nil
}

// QuickCreate adds an item from the billing screen. Only name and price are
// needed; GST and stock default to zero.
func (s *Service) QuickCreate(ctx context.Context, req domain.QuickItemRequest) (domain.CatalogItem, error) {
	item := domain.CatalogItem{
		Barcode:  strings.TrimSpace(req.Barcode),
		Name:     strings.TrimSpace(req.Name),
		Price:    req.Price,
		GSTRate:  decimal.Zero,
		Category: defaultString(req.Category, domain.DefaultCategory),
	}
	if req.GSTRate != nil {
		item.GSTRate = *req.GSTRate
	}
	if req.Stock != nil {
		item.Stock = *req.Stock
	}
	if err := validateItem(item); err != nil {
		return domain.CatalogItem{}, err
	}

	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return domain.CatalogItem{}, storeErr("create item", err)
	}
	s.log.Info("item quick-created", zap.Int64("item_id", created.ItemID), zap.String("actor", actorName(ctx)))
	return *created, nil
}

func (s *Service) UpdateItem(ctx context.Context, itemID int64, req domain.ItemUpdateRequest) (domain.CatalogItem, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.CatalogItem{}, err
	}

	existing, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return domain.CatalogItem{}, storeErr("load item", err)
	}

	updated := *existing
	if req.Barcode != nil {
		updated.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.Price != nil {
		updated.Price = *req.Price
	}
	if req.BuyPrice != nil {
		updated.BuyPrice = *req.BuyPrice
	}
	if req.GSTRate != nil {
		updated.GSTRate = *req.GSTRate
	}
	if req.Stock != nil {
		updated.Stock = *req.Stock
	}
	if req.Category != nil {
		updated.Category = defaultString(*req.Category, domain.DefaultCategory)
	}
	if err := validateItem(updated); err != nil {
		return domain.CatalogItem{}, err
	}

	saved, err := s.repo.UpdateItem(ctx, updated)
	if err != nil {
		return domain.CatalogItem{}, storeErr("update item", err)
	}
	s.log.Info("item updated", zap.Int64("item_id", saved.ItemID), zap.String("actor", actorName(ctx)))
	return *saved, nil
}

func (s *Service) DeleteItem(ctx context.Context, itemID int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteItem(ctx, itemID); err != nil {
		return storeErr("delete item", err)
	}
	s.log.Info("item deleted", zap.Int64("item_id", itemID), zap.String("actor", actorName(ctx)))
	return nil
}

func validateItem(item domain.CatalogItem) error {
	if item.Name == "" {
		return billing.Invalid("name", "name is required")
	}
	if item.Price.IsNegative() {
		return billing.Invalid("price", "price cannot be negative")
	}
	if item.BuyPrice.IsNegative() {
		return billing.Invalid("buy_price", "buy price cannot be negative")
	}
	if item.GSTRate.IsNegative() || item.GSTRate.GreaterThan(maxGST) {
		return billing.Invalid("gst_rate", "gst must be between 0 and 100")
	}
	if item.Stock < 0 {
		return billing.Invalid("stock", "stock cannot be negative")
	}
	return nil
}
