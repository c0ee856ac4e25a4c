package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/tealeg/xlsx"

	"hhmart/billing/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

var billHeaders = []string{"Bill ID", "Date", "Customer", "Phone", "Payment", "Total"}

func BillsCSV(w io.Writer, bills []domain.BillSummary) error {
	out := csv.NewWriter(w)
	if err := out.Write(billHeaders); err != nil {
		return err
	}
	for _, bill := range bills {
		if err := out.Write([]string{
			strconv.FormatInt(bill.ID, 10),
			bill.CreatedAt.UTC().Format(timeLayout),
			bill.CustomerName,
			bill.CustomerPhone,
			bill.PaymentType,
			bill.Total.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

func BillsXLSX(w io.Writer, bills []domain.BillSummary) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Bills")
	if err != nil {
		return err
	}

	header := sheet.AddRow()
	for _, h := range billHeaders {
		header.AddCell().SetValue(h)
	}
	for _, bill := range bills {
		row := sheet.AddRow()
		row.AddCell().SetValue(bill.ID)
		row.AddCell().SetValue(bill.CreatedAt.UTC().Format(timeLayout))
		row.AddCell().SetValue(bill.CustomerName)
		row.AddCell().SetValue(bill.CustomerPhone)
		row.AddCell().SetValue(bill.PaymentType)
		row.AddCell().SetValue(bill.Total.Round(2).InexactFloat64())
	}

	return file.Write(w)
}

// DashboardCSV writes stats as section,key,value rows.
func DashboardCSV(w io.Writer, stats domain.DashboardStats) error {
	rows := [][]string{
		{"section", "key", "value"},
		{"summary", "range", string(stats.Range)},
		{"summary", "from", stats.From.UTC().Format(timeLayout)},
		{"summary", "to", stats.To.UTC().Format(timeLayout)},
		{"summary", "total_sales", stats.TotalSales.StringFixed(2)},
		{"summary", "bills_count", strconv.FormatInt(stats.BillsCount, 10)},
		{"summary", "avg_bill", stats.AvgBill.StringFixed(2)},
		{"summary", "items_sold", strconv.FormatInt(stats.ItemsSold, 10)},
		{"summary", "profit", stats.Profit.StringFixed(2)},
	}
	for _, point := range stats.GraphData {
		rows = append(rows, []string{"daily_sales", point.Date, point.Sales.StringFixed(2)})
	}
	for _, item := range stats.TopItems {
		rows = append(rows, []string{"top_item", item.ItemName, strconv.FormatInt(item.Qty, 10)})
	}
	for _, item := range stats.LowStock {
		rows = append(rows, []string{"low_stock", item.Name, fmt.Sprint(item.Stock)})
	}

	out := csv.NewWriter(w)
	if err := out.WriteAll(rows); err != nil {
		return err
	}
	return out.Error()
}
