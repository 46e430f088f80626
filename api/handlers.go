/*
handlers.go - HTTP API handlers for the sale ledger

PURPOSE:
  Exposes the ledger, the catalog and the reporting views via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Sales:
    POST   /api/sales                  Create sale (idempotent)
    GET    /api/sales?limit=           Recent sales, most recent first
    GET    /api/sales/{id}             One sale

  Products:
    GET    /api/products               Active products
    GET    /api/products/low-stock     Active products at or below critical stock
    GET    /api/products/{id}          One product
    PATCH  /api/products/{id}          Edit metadata (never stock)

  Analytics:
    GET    /api/analytics?period=&productId=
    GET    /api/analytics/products?period=
    GET    /api/analytics/staff?period=

IDEMPOTENCY:
  The key comes from clientRequestId in the body, or from the
  Idempotency-Key header when the body leaves it empty. A new sale answers
  201, a replay answers 200 with the stored sale.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input ({error, message, mutated:false})
  - 404: Sale or product not found
  - 500: Internal errors

SECURITY NOTE:
  No authentication. Creator identity is taken from the request body.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/sale-ledger/catalog"
	"github.com/warp/sale-ledger/ledger"
	"github.com/warp/sale-ledger/logging"
	"github.com/warp/sale-ledger/reports"
)

// IdempotencyKeyHeader carries the client request id when the body omits it.
const IdempotencyKeyHeader = "Idempotency-Key"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger  *ledger.Ledger
	Catalog catalog.Catalog
	Views   *reports.Views
	Logger  *zap.Logger

	// DefaultLimit applies to GET /api/sales without ?limit=.
	DefaultLimit int

	// Ping reports backend health for /healthz. Optional.
	Ping func(ctx context.Context) error
}

// NewHandler creates a handler. Views defaults to reading from l.
func NewHandler(l *ledger.Ledger, inventory catalog.Catalog, views *reports.Views) *Handler {
	if views == nil {
		views = reports.NewViews(l, nil)
	}
	return &Handler{
		Ledger:       l,
		Catalog:      inventory,
		Views:        views,
		Logger:       zap.NewNop(),
		DefaultLimit: 50,
	}
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// CreateSale commits a sale once per idempotency key.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ClientRequestID == "" {
		req.ClientRequestID = strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	}

	// Field rules are the ledger's; it applies them after the idempotency
	// lookup so a retry of a committed key still replays.
	res, err := h.Ledger.Commit(r.Context(), req.toDomain())
	if err != nil {
		if ledger.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Sale rejected", err)
			return
		}
		h.logger(r).Error("failed to commit sale", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to commit sale", err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, toSaleDTO(res.Sale))
}

// ListSales returns recent sales, most recent first.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	limit := h.DefaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = n
	}

	sales, err := h.Views.ListSales(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sales", err)
		return
	}

	dtos := make([]SaleDTO, len(sales))
	for i, s := range sales {
		dtos[i] = toSaleDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.Ledger.Get(r.Context(), ledger.SaleID(chi.URLParam(r, "id")))
	if err != nil {
		if ledger.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Sale not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get sale", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(sale))
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Catalog.ListActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list products", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTOs(products))
}

func (h *Handler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.Catalog.ListLowStock(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list low-stock products", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTOs(products))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.Get(r.Context(), catalog.ProductID(chi.URLParam(r, "id")))
	if err != nil {
		writeProductError(w, "Failed to get product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

// UpdateProduct edits product metadata. Stock is not accepted.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := catalog.ProductID(chi.URLParam(r, "id"))
	p, err := h.Catalog.UpdateMetadata(r.Context(), id, req.toDomain())
	if err != nil {
		writeProductError(w, "Failed to update product", err)
		return
	}

	h.logger(r).Info("product metadata updated", zap.String("product_id", string(id)))
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

func writeProductError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "Product not found", err)
	case errors.Is(err, catalog.ErrInvalidProduct):
		writeError(w, http.StatusBadRequest, "Invalid product", err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// =============================================================================
// ANALYTICS HANDLERS
// =============================================================================

// GetAnalytics summarizes a period, optionally for one product.
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	period, ok := parsePeriod(w, r)
	if !ok {
		return
	}
	productID := catalog.ProductID(r.URL.Query().Get("productId"))

	summary, err := h.Views.PeriodSummary(r.Context(), period, productID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute analytics", err)
		return
	}

	dto := toSummaryDTO(period, summary)
	dto.ProductID = string(productID)
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) GetProductAnalytics(w http.ResponseWriter, r *http.Request) {
	period, ok := parsePeriod(w, r)
	if !ok {
		return
	}

	rows, err := h.Views.ProductBreakdown(r.Context(), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute analytics", err)
		return
	}

	dtos := make([]ProductSummaryDTO, len(rows))
	for i, row := range rows {
		dtos[i] = ProductSummaryDTO{
			ProductID:  string(row.ProductID),
			Name:       row.Name,
			SummaryDTO: toSummaryDTO(period, row.Summary),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetStaffAnalytics(w http.ResponseWriter, r *http.Request) {
	period, ok := parsePeriod(w, r)
	if !ok {
		return
	}

	rows, err := h.Views.StaffBreakdown(r.Context(), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute analytics", err)
		return
	}

	dtos := make([]StaffSummaryDTO, len(rows))
	for i, row := range rows {
		dtos[i] = StaffSummaryDTO{
			StaffID:    row.StaffID,
			Name:       row.Name,
			Role:       row.Role,
			SummaryDTO: toSummaryDTO(period, row.Summary),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// parsePeriod reads ?period=, defaulting to daily.
func parsePeriod(w http.ResponseWriter, r *http.Request) (reports.Period, bool) {
	s := r.URL.Query().Get("period")
	if s == "" {
		return reports.Daily, true
	}
	p, err := reports.ParsePeriod(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return "", false
	}
	return p, true
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) logger(r *http.Request) *zap.Logger {
	return logging.FromContext(r.Context(), h.Logger)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps err onto the error body. Validation failures carry the
// offending field and mutated:false.
func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: errorCode(status), Message: message}

	var verr *ledger.ValidationError
	if errors.As(err, &verr) {
		mutated := verr.Mutated()
		resp.Error = "validation_error"
		resp.Message = verr.Error()
		resp.Field = verr.Field
		resp.Mutated = &mutated
	} else if err != nil {
		resp.Message = message + ": " + err.Error()
	}
	writeJSON(w, status, resp)
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "internal_error"
	}
}
