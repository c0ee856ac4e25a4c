package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"hhmart/billing/internal/billing"
	"hhmart/billing/internal/domain"
	"hhmart/billing/internal/logger"
	"hhmart/billing/internal/service"
	"hhmart/billing/internal/store"
)

const maxBodyBytes = 1 << 20

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	pinLimiter    *attemptLimiter
	csrfSecret    []byte
	log           *zap.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, log *zap.Logger) *API {
	log = logger.OrNop(log)
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		log.Fatal("csrf secret generation failed", zap.Error(err))
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		pinLimiter:    newAttemptLimiter(8, time.Minute),
		csrfSecret:    csrfSecret,
		log:           log,
	}
}

var (
	anyRole   = []string{domain.RoleCashier, domain.RoleAdmin}
	adminOnly = []string{domain.RoleAdmin}
)

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/csrf-token", a.handleCSRFToken)

	mux.HandleFunc("GET /api/v1/items", a.requireAuth(a.handleListItems, anyRole...))
	mux.HandleFunc("POST /api/v1/items", a.requireAuth(a.handleCreateItem, adminOnly...))
	mux.HandleFunc("POST /api/v1/items/quick", a.requireAuth(a.handleQuickCreate, anyRole...))
	mux.HandleFunc("GET /api/v1/items/barcode/{code}", a.requireAuth(a.handleItemByBarcode, anyRole...))
	mux.HandleFunc("GET /api/v1/items/{id}", a.requireAuth(a.handleGetItem, anyRole...))
	mux.HandleFunc("PATCH /api/v1/items/{id}", a.requireAuth(a.handleUpdateItem, adminOnly...))
	mux.HandleFunc("DELETE /api/v1/items/{id}", a.requireAuth(a.handleDeleteItem, adminOnly...))

	mux.HandleFunc("GET /api/v1/sessions/{terminal}", a.requireAuth(a.handleViewSession, anyRole...))
	mux.HandleFunc("DELETE /api/v1/sessions/{terminal}", a.requireAuth(a.handleClearSession, anyRole...))
	mux.HandleFunc("POST /api/v1/sessions/{terminal}/scan", a.requireAuth(a.handleScan, anyRole...))
	mux.HandleFunc("POST /api/v1/sessions/{terminal}/items", a.requireAuth(a.handleAddItem, anyRole...))
	mux.HandleFunc("PATCH /api/v1/sessions/{terminal}/items/{itemId}", a.requireAuth(a.handleSetQuantity, anyRole...))
	mux.HandleFunc("DELETE /api/v1/sessions/{terminal}/items/{itemId}", a.requireAuth(a.handleRemoveItem, anyRole...))
	mux.HandleFunc("PUT /api/v1/sessions/{terminal}/customer", a.requireAuth(a.handleSetCustomer, anyRole...))
	mux.HandleFunc("PUT /api/v1/sessions/{terminal}/notes", a.requireAuth(a.handleSetNotes, anyRole...))
	mux.HandleFunc("PUT /api/v1/sessions/{terminal}/discount", a.requireAuth(a.handleSetDiscount, anyRole...))
	mux.HandleFunc("PUT /api/v1/sessions/{terminal}/payment", a.requireAuth(a.handleSetPayment, anyRole...))
	mux.HandleFunc("POST /api/v1/sessions/{terminal}/checkout", a.requireAuth(a.handleCheckout, anyRole...))
	mux.HandleFunc("POST /api/v1/sessions/{terminal}/hold", a.requireAuth(a.handleHold, anyRole...))
	mux.HandleFunc("POST /api/v1/sessions/{terminal}/return", a.requireAuth(a.handleLoadReturn, anyRole...))
	mux.HandleFunc("POST /api/v1/totals", a.requireAuth(a.handlePreviewTotals, anyRole...))

	mux.HandleFunc("GET /api/v1/holds", a.requireAuth(a.handleListHolds, anyRole...))
	mux.HandleFunc("POST /api/v1/holds/{id}/resume", a.requireAuth(a.handleResumeHold, anyRole...))
	mux.HandleFunc("DELETE /api/v1/holds/{id}", a.requireAuth(a.handleDeleteHold, anyRole...))

	mux.HandleFunc("GET /api/v1/bills", a.requireAuth(a.handleListBills, anyRole...))
	mux.HandleFunc("GET /api/v1/bills/{id}", a.requireAuth(a.handleGetBill, anyRole...))
	mux.HandleFunc("GET /api/v1/bills/{id}/receipt", a.requireAuth(a.handleBillReceipt, anyRole...))

	mux.HandleFunc("GET /api/v1/dashboard/stats", a.requireAuth(a.handleDashboardStats, adminOnly...))
	mux.HandleFunc("GET /api/v1/dashboard/overview", a.requireAuth(a.handleSalesOverview, adminOnly...))

	mux.HandleFunc("GET /api/v1/users/cashiers", a.requireAuth(a.handleListCashiers, adminOnly...))
	mux.HandleFunc("POST /api/v1/users/cashiers", a.requireAuth(a.handleCreateCashier, adminOnly...))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		actor, err := a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		a.log.Info("login rejected", zap.String("username", req.Username), zap.String("client", clientKey(r)))
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless token for the X-CSRF-Token header of
// mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	return a.csrfTokenForHour(time.Now().UTC().Truncate(time.Hour).Unix())
}

// validateCSRFToken accepts the current and the previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	current := time.Now().UTC().Truncate(time.Hour).Unix()
	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current-3600)))
}

var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	if !a.validateCSRFToken(strings.TrimSpace(r.Header.Get("X-CSRF-Token"))) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(startedAt)),
		)
	})
}

// writeServiceError maps the billing error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, billing.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, billing.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, billing.ErrStockExceeded), errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue(name)), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; the details go to the log.
	msg := err.Error()
	if status >= 500 {
		zap.L().Error("internal error", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
