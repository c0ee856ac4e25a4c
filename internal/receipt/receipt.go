package receipt

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"

	"hhmart/billing/internal/domain"
)

type Renderer struct {
	shopName string
	width    int
	invoice  *template.Template
}

func NewRenderer(shopName string, width int) *Renderer {
	if shopName == "" {
		shopName = "HH Mart"
	}
	return &Renderer{
		shopName: shopName,
		width:    width,
		invoice:  template.Must(template.New("invoice").Funcs(template.FuncMap{"money": money}).Parse(invoiceTemplate)),
	}
}

// Render prints a saved bill three ways: ESC/POS bytes, a plain-text preview
// and a printable HTML invoice.
func (r *Renderer) Render(bill domain.Bill) (domain.Receipt, error) {
	doc := NewDocument(r.width)
	doc.SetAlign(AlignCenter).
		SetBold(true).
		SetFontSize(FontDouble).
		Text(r.shopName).
		SetFontSize(FontNormal).
		SetBold(false)
	if bill.ReturnOfBillID != nil {
		doc.TextF("RETURN of bill #%d", *bill.ReturnOfBillID)
	}
	doc.SetAlign(AlignLeft).
		Separator('=').
		KeyValue("Bill No", fmt.Sprintf("#%d", bill.ID)).
		KeyValue("Date", bill.CreatedAt.Format("2006-01-02 15:04")).
		KeyValue("Customer", bill.Customer.Name)
	if bill.Customer.Phone != "" {
		doc.KeyValue("Phone", bill.Customer.Phone)
	}
	doc.Separator('-')

	for _, line := range bill.Items {
		doc.ItemLine(line.Qty, line.ItemName, money(line.Total))
		doc.TextF("   @ %s  GST %s%%", money(line.Price), line.GSTRate.String())
	}

	doc.Separator('-').
		KeyValue("Subtotal", money(bill.Subtotal)).
		KeyValue("GST", money(bill.GSTTotal))
	if !bill.Discount.IsZero() {
		doc.KeyValue("Discount", "-"+money(bill.Discount))
	}
	doc.SetBold(true).
		KeyValue("TOTAL", money(bill.Total)).
		SetBold(false).
		KeyValue("Paid by", bill.PaymentType)
	if bill.Notes != "" {
		doc.Separator('-').Text(bill.Notes)
	}
	doc.Separator('=').
		SetAlign(AlignCenter).
		Text("Thank you, visit again").
		FeedLines(3).
		PartialCut()

	var html bytes.Buffer
	if err := r.invoice.Execute(&html, invoiceData{ShopName: r.shopName, Bill: bill}); err != nil {
		return domain.Receipt{}, err
	}

	return domain.Receipt{
		BillID:       bill.ID,
		EscposBase64: base64.StdEncoding.EncodeToString(doc.Bytes()),
		PreviewText:  doc.Preview(),
		HTML:         html.String(),
		FileName:     fmt.Sprintf("receipt-%d.bin", bill.ID),
	}, nil
}

func money(v decimal.Decimal) string {
	return v.StringFixed(2)
}

type invoiceData struct {
	ShopName string
	Bill     domain.Bill
}

const invoiceTemplate = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Invoice #{{.Bill.ID}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 24px; color: #1f2937; }
h1 { margin-bottom: 4px; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
th, td { border: 1px solid #d1d5db; padding: 6px 8px; text-align: left; }
td.num, th.num { text-align: right; }
.totals td { border: none; }
</style>
</head>
<body>
<h1>{{.ShopName}}</h1>
<p>Invoice #{{.Bill.ID}} &middot; {{.Bill.CreatedAt.Format "2006-01-02 15:04"}}</p>
{{with .Bill.ReturnOfBillID}}<p><strong>Return against bill #{{.}}</strong></p>{{end}}
<p>Customer: {{.Bill.Customer.Name}}{{with .Bill.Customer.Phone}} &middot; {{.}}{{end}}{{with .Bill.Customer.Email}} &middot; {{.}}{{end}}</p>
<table>
<thead><tr><th>Item</th><th class="num">Qty</th><th class="num">Price</th><th class="num">GST %</th><th class="num">Amount</th></tr></thead>
<tbody>
{{range .Bill.Items}}<tr><td>{{.ItemName}}</td><td class="num">{{.Qty}}</td><td class="num">{{money .Price}}</td><td class="num">{{.GSTRate.String}}</td><td class="num">{{money .Total}}</td></tr>
{{end}}</tbody>
</table>
<table class="totals">
<tr><td class="num">Subtotal</td><td class="num">{{money .Bill.Subtotal}}</td></tr>
<tr><td class="num">GST</td><td class="num">{{money .Bill.GSTTotal}}</td></tr>
<tr><td class="num">Discount</td><td class="num">{{money .Bill.Discount}}</td></tr>
<tr><td class="num"><strong>Total</strong></td><td class="num"><strong>{{money .Bill.Total}}</strong></td></tr>
<tr><td class="num">Payment</td><td class="num">{{.Bill.PaymentType}}</td></tr>
</table>
{{with .Bill.Notes}}<p>Notes: {{.}}</p>{{end}}
</body>
</html>
`
