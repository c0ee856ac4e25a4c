package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"hhmart/billing/internal/domain"
)

var paymentLabels = map[domain.PaymentKind]string{
	domain.PaymentCash:   "Cash",
	domain.PaymentCard:   "Card",
	domain.PaymentUPI:    "UPI",
	domain.PaymentCheque: "Cheque",
	domain.PaymentCredit: "Credit",
	domain.PaymentSplit:  "Split",
}

func Cash() domain.PaymentMethod {
	return domain.PaymentMethod{Kind: domain.PaymentCash}
}

func Split(cash decimal.Decimal, upi decimal.Decimal) domain.PaymentMethod {
	return domain.PaymentMethod{
		Kind:  domain.PaymentSplit,
		Split: &domain.SplitPayment{Cash: cash, UPI: upi},
	}
}

func KnownPaymentKind(kind domain.PaymentKind) bool {
	_, ok := paymentLabels[kind]
	return ok
}

// PaymentLabel renders the stored payment_type column, e.g.
// "Split | Cash: 60 | UPI: 40".
func PaymentLabel(method domain.PaymentMethod) string {
	if method.Kind == domain.PaymentSplit && method.Split != nil {
		return fmt.Sprintf("Split | Cash: %s | UPI: %s", Round2(method.Split.Cash).String(), Round2(method.Split.UPI).String())
	}
	if label, ok := paymentLabels[method.Kind]; ok {
		return label
	}
	return paymentLabels[domain.PaymentCash]
}

// ParsePaymentLabel reads a stored payment_type back into a PaymentMethod.
func ParsePaymentLabel(raw string) (domain.PaymentMethod, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Cash(), nil
	}

	parts := strings.Split(value, "|")
	head := strings.TrimSpace(parts[0])
	if !strings.EqualFold(head, "split") {
		for kind, label := range paymentLabels {
			if kind != domain.PaymentSplit && strings.EqualFold(label, head) {
				return domain.PaymentMethod{Kind: kind}, nil
			}
		}
		return domain.PaymentMethod{}, Invalid("payment", fmt.Sprintf("unknown payment type %q", head))
	}

	if len(parts) != 3 {
		return domain.PaymentMethod{}, Invalid("payment", "split payment must list cash and UPI amounts")
	}
	cash, err := parseSplitPart(parts[1], "cash")
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	upi, err := parseSplitPart(parts[2], "upi")
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	return Split(cash, upi), nil
}

func parseSplitPart(part string, want string) (decimal.Decimal, error) {
	name, amount, ok := strings.Cut(part, ":")
	if !ok || !strings.EqualFold(strings.TrimSpace(name), want) {
		return decimal.Zero, Invalid("payment", fmt.Sprintf("split payment is missing %s amount", want))
	}
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Zero, Invalid("payment", fmt.Sprintf("invalid %s amount", want))
	}
	return value, nil
}

// ValidatePayment checks a payment against the grand total it settles.
func ValidatePayment(method domain.PaymentMethod, grandTotal decimal.Decimal) error {
	if !KnownPaymentKind(method.Kind) {
		return Invalid("payment", fmt.Sprintf("unknown payment type %q", method.Kind))
	}
	if method.Kind != domain.PaymentSplit {
		return nil
	}
	if method.Split == nil {
		return Invalid("payment", "split payment requires cash and UPI amounts")
	}

	cash := Round2(method.Split.Cash)
	upi := Round2(method.Split.UPI)
	if cash.IsNegative() || upi.IsNegative() {
		return Invalid("payment", "Amounts cannot be negative")
	}
	total := Round2(grandTotal)
	if !cash.Add(upi).Equal(total) {
		return Invalid("payment", fmt.Sprintf("Cash + UPI must equal Total (%s)", total.String()))
	}
	return nil
}

// NormalizePayment fills the default kind and drops split amounts from
// non-split methods.
func NormalizePayment(method domain.PaymentMethod) domain.PaymentMethod {
	method.Kind = domain.PaymentKind(strings.ToLower(strings.TrimSpace(string(method.Kind))))
	if method.Kind == "" {
		method.Kind = domain.PaymentCash
	}
	if method.Kind != domain.PaymentSplit {
		method.Split = nil
	}
	return method
}
