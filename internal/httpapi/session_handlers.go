package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"hhmart/billing/internal/domain"
)

func (a *API) handleViewSession(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.View(r.PathValue("terminal"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleClearSession(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.Clear(r.PathValue("terminal"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleScan(w http.ResponseWriter, r *http.Request) {
	var req domain.ScanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.Scan(r.Context(), r.PathValue("terminal"), req.Barcode)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req domain.AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.AddItem(r.Context(), r.PathValue("terminal"), req.ItemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req domain.QuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.SetQuantity(r.PathValue("terminal"), itemID, req.Quantity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.RemoveItem(r.PathValue("terminal"), itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleSetCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.Customer
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.SetCustomer(r.PathValue("terminal"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleSetNotes(w http.ResponseWriter, r *http.Request) {
	var req domain.NotesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.SetNotes(r.PathValue("terminal"), req.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleSetDiscount(w http.ResponseWriter, r *http.Request) {
	var req domain.DiscountSpec
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.SetDiscount(r.PathValue("terminal"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleSetPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentMethod
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.SetPayment(r.PathValue("terminal"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.Checkout(r.Context(), r.PathValue("terminal"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (a *API) handleHold(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.Hold(r.Context(), r.PathValue("terminal"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleLoadReturn is gated by the manager PIN.
func (a *API) handleLoadReturn(w http.ResponseWriter, r *http.Request) {
	if !a.pinLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many manager pin attempts"))
		return
	}
	var req domain.ReturnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !a.auth.ValidateManagerPIN(req.ManagerPIN) {
		a.log.Warn("manager pin rejected", zap.String("terminal_id", r.PathValue("terminal")), zap.String("client", clientKey(r)))
		writeError(w, http.StatusForbidden, errors.New("invalid manager pin"))
		return
	}

	view, err := a.service.LoadForReturn(r.Context(), r.PathValue("terminal"), req.BillID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handlePreviewTotals(w http.ResponseWriter, r *http.Request) {
	var req domain.TotalsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	totals, err := a.service.PreviewTotals(req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (a *API) handleListHolds(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.ListHolds(r.Context(), r.URL.Query().Get("terminal"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleResumeHold(w http.ResponseWriter, r *http.Request) {
	view, found, err := a.service.ResumeHold(r.Context(), r.URL.Query().Get("terminal"), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, errors.New("hold not found"))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleDeleteHold(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteHold(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}
