package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hhmart/billing/internal/domain"
	"hhmart/billing/internal/report"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (a *API) handleListBills(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.BillFilter{
		Search: query.Get("search"),
		Limit:  parsePositiveLimit(query.Get("limit"), 50, 500),
	}
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("offset must be a non-negative integer"))
			return
		}
		filter.Offset = offset
	}
	from, err := parseDate(query.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("from: %w", err))
		return
	}
	to, err := parseDate(query.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("to: %w", err))
		return
	}
	filter.From = from
	if to != nil {
		// Dates are inclusive days; the store treats to as exclusive.
		end := to.AddDate(0, 0, 1)
		filter.To = &end
	}

	resp, err := a.service.ListBills(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	switch strings.ToLower(query.Get("format")) {
	case "", "json":
		writeJSON(w, http.StatusOK, resp)
	case "csv":
		var buf bytes.Buffer
		if err := report.BillsCSV(&buf, resp.Bills); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeAttachment(w, contentTypeCSV, "bills.csv", buf.Bytes())
	case "xlsx":
		var buf bytes.Buffer
		if err := report.BillsXLSX(&buf, resp.Bills); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeAttachment(w, contentTypeXLSX, "bills.xlsx", buf.Bytes())
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("format must be json, csv or xlsx"))
	}
}

func (a *API) handleGetBill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	bill, err := a.service.GetBill(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bill": bill})
}

// handleBillReceipt re-renders a stored bill. format=html returns the
// printable invoice page directly.
func (a *API) handleBillReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	receipt, err := a.service.RenderReceipt(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(receipt.HTML))
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (a *API) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	stats, err := a.service.DashboardStats(r.Context(), domain.DashboardRange(query.Get("range")), query.Get("from"), query.Get("to"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if strings.EqualFold(query.Get("format"), "csv") {
		var buf bytes.Buffer
		if err := report.DashboardCSV(&buf, stats); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeAttachment(w, contentTypeCSV, fmt.Sprintf("dashboard-%s.csv", stats.Range), buf.Bytes())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleSalesOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := a.service.SalesOverview(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (a *API) handleListCashiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"cashiers": a.auth.ListCashiers(r.Context())})
}

func (a *API) handleCreateCashier(w http.ResponseWriter, r *http.Request) {
	var req domain.CashierCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cashier, err := a.auth.CreateCashier(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cashier": cashier})
}

func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("expected YYYY-MM-DD")
	}
	return &t, nil
}

func writeAttachment(w http.ResponseWriter, contentType string, fileName string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
