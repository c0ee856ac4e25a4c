package billing

import (
	"github.com/shopspring/decimal"

	"hhmart/billing/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// ComputeTotals derives the bill figures from the cart lines. It never rounds;
// callers round with Round2 when the figures are persisted or displayed.
func ComputeTotals(items []domain.LineItem, discount domain.DiscountSpec) domain.Totals {
	subtotal := decimal.Zero
	gstTotal := decimal.Zero
	count := 0
	for _, item := range items {
		line := LineTotal(item)
		subtotal = subtotal.Add(line)
		gstTotal = gstTotal.Add(line.Mul(item.GSTRate).Div(hundred))
		count += item.Quantity
	}

	amount := DiscountAmount(subtotal, discount)
	grand := subtotal.Add(gstTotal).Sub(amount)
	if grand.IsNegative() {
		grand = decimal.Zero
	}

	return domain.Totals{
		Subtotal:   subtotal,
		GSTTotal:   gstTotal,
		Discount:   amount,
		GrandTotal: grand,
		ItemCount:  count,
	}
}

func LineTotal(item domain.LineItem) decimal.Decimal {
	return item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// DiscountAmount resolves a discount against the subtotal and clamps it to
// [0, max(0, subtotal)].
func DiscountAmount(subtotal decimal.Decimal, discount domain.DiscountSpec) decimal.Decimal {
	var amount decimal.Decimal
	switch discount.Type {
	case domain.DiscountPercent:
		amount = subtotal.Mul(discount.Value).Div(hundred)
	case domain.DiscountFixed:
		amount = discount.Value
	default:
		return decimal.Zero
	}

	ceiling := decimal.Max(decimal.Zero, subtotal)
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(ceiling) {
		return ceiling
	}
	return amount
}

func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

func RoundTotals(t domain.Totals) domain.Totals {
	return domain.Totals{
		Subtotal:   Round2(t.Subtotal),
		GSTTotal:   Round2(t.GSTTotal),
		Discount:   Round2(t.Discount),
		GrandTotal: Round2(t.GrandTotal),
		ItemCount:  t.ItemCount,
	}
}

func ValidateDiscount(discount domain.DiscountSpec) error {
	switch discount.Type {
	case "", domain.DiscountFixed, domain.DiscountPercent:
	default:
		return Invalid("discount.type", "discount type must be fixed or percent")
	}
	if discount.Value.IsNegative() {
		return Invalid("discount.value", "discount cannot be negative")
	}
	return nil
}
