package cart

import (
	"slices"

	"hhmart/billing/internal/billing"
	"hhmart/billing/internal/domain"
)

// Cart is an ordered set of lines keyed by item id. It is not safe for
// concurrent use; the owning Session serializes access.
type Cart struct {
	lines      []domain.LineItem
	returnMode bool
}

func New() *Cart {
	return &Cart{}
}

// FromItems rebuilds a cart from a snapshot, dropping zero-quantity rows and
// merging repeated item ids.
func FromItems(items []domain.LineItem, returnMode bool) *Cart {
	c := &Cart{returnMode: returnMode}
	for _, item := range items {
		if item.Quantity == 0 {
			continue
		}
		if idx := c.index(item.ItemID); idx >= 0 {
			c.lines[idx].Quantity += item.Quantity
			if c.lines[idx].Quantity == 0 {
				c.lines = slices.Delete(c.lines, idx, idx+1)
			}
			continue
		}
		c.lines = append(c.lines, item)
	}
	return c
}

func FromCatalog(item domain.CatalogItem) domain.LineItem {
	return domain.LineItem{
		ItemID:         item.ItemID,
		Barcode:        item.Barcode,
		Name:           item.Name,
		Category:       item.Category,
		UnitPrice:      item.Price,
		GSTRate:        item.GSTRate,
		Quantity:       1,
		StockAvailable: item.Stock,
	}
}

// AddOrIncrement adds one unit of item. It reports false and leaves the cart
// untouched when the new quantity would exceed the stock snapshot.
func (c *Cart) AddOrIncrement(item domain.CatalogItem) bool {
	idx := c.index(item.ItemID)
	if idx < 0 {
		if item.Stock < 1 {
			return false
		}
		c.lines = append(c.lines, FromCatalog(item))
		return true
	}

	line := &c.lines[idx]
	line.StockAvailable = item.Stock
	next := line.Quantity + 1
	if next > 0 && next > line.StockAvailable {
		return false
	}
	if next == 0 {
		c.lines = slices.Delete(c.lines, idx, idx+1)
		return true
	}
	line.Quantity = next
	return true
}

// SetQuantity replaces the quantity of a line. Non-positive quantities remove
// the line, except in return mode where negative quantities are kept.
// Positive quantities above the stock snapshot are rejected with a
// *billing.StockError and the previous quantity stays.
func (c *Cart) SetQuantity(itemID int64, qty int) error {
	idx := c.index(itemID)
	if idx < 0 {
		return billing.ErrNotFound
	}
	if qty == 0 || (qty < 0 && !c.returnMode) {
		c.lines = slices.Delete(c.lines, idx, idx+1)
		return nil
	}

	line := &c.lines[idx]
	if qty > 0 && qty > line.StockAvailable {
		return &billing.StockError{
			ItemID:    line.ItemID,
			Name:      line.Name,
			Available: line.StockAvailable,
			Requested: qty,
		}
	}
	line.Quantity = qty
	return nil
}

func (c *Cart) Remove(itemID int64) bool {
	idx := c.index(itemID)
	if idx < 0 {
		return false
	}
	c.lines = slices.Delete(c.lines, idx, idx+1)
	return true
}

func (c *Cart) Clear() {
	c.lines = nil
	c.returnMode = false
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []domain.LineItem {
	out := make([]domain.LineItem, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) ReturnMode() bool {
	return c.returnMode
}

func (c *Cart) Totals(discount domain.DiscountSpec) domain.Totals {
	return billing.ComputeTotals(c.lines, discount)
}

func (c *Cart) index(itemID int64) int {
	return slices.IndexFunc(c.lines, func(line domain.LineItem) bool {
		return line.ItemID == itemID
	})
}
