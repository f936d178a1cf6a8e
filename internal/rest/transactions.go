package rest

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/scangate/gateway/internal/auth"
	"github.com/scangate/gateway/internal/storage"
)

type checkoutItemRequest struct {
	ProductID *int64  `json:"product_id"`
	ItemName  string  `json:"item_name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int64   `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
	LineTotal float64 `json:"line_total"`
}

type checkoutRequest struct {
	Code          string                `json:"code"`
	Subtotal      float64               `json:"subtotal"`
	DiscountTotal float64               `json:"discount_total"`
	TaxTotal      float64               `json:"tax_total"`
	Total         float64               `json:"total"`
	PaidAmount    float64               `json:"paid_amount"`
	PaymentMethod string                `json:"payment_method"`
	Items         []checkoutItemRequest `json:"items"`
}

func (s *Server) countCheckout(outcome string) {
	if s.metrics != nil {
		s.metrics.CheckoutTotal.WithLabelValues(outcome).Inc()
	}
}

// parseTimeQueryParam parses an RFC3339 query parameter, returning nil if
// the parameter is absent.
func parseTimeQueryParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	start, err := parseTimeQueryParam(r, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start parameter")
		return
	}
	end, err := parseTimeQueryParam(r, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end parameter")
		return
	}

	headers, err := s.db.ListTransactions(r.Context(), claims.UserID, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	writeJSON(w, http.StatusOK, headers)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	header, err := s.db.GetTransaction(r.Context(), claims.UserID, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get transaction")
		return
	}
	writeJSON(w, http.StatusOK, header)
}

func (s *Server) handleListTransactionItems(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	items, err := s.db.ListTransactionItems(r.Context(), claims.UserID, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list transaction items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]storage.CheckoutItem, 0, len(req.Items))
	for _, item := range req.Items {
		ci := storage.CheckoutItem{
			ItemName:  item.ItemName,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
			LineTotal: item.LineTotal,
		}
		if item.ProductID != nil {
			ci.ProductID = sql.NullInt64{Int64: *item.ProductID, Valid: true}
		}
		items = append(items, ci)
	}

	headerID, err := s.db.Checkout(r.Context(), storage.CheckoutRequest{
		UserID:        claims.UserID,
		Code:          req.Code,
		Status:        "PAID",
		Subtotal:      req.Subtotal,
		DiscountTotal: req.DiscountTotal,
		TaxTotal:      req.TaxTotal,
		Total:         req.Total,
		PaidAmount:    req.PaidAmount,
		PaymentMethod: req.PaymentMethod,
		Items:         items,
	})
	if errors.Is(err, storage.ErrDuplicateTransaction) {
		s.countCheckout("duplicate")
		writeError(w, http.StatusBadRequest, "duplicate transaction code")
		return
	}
	if err != nil {
		s.countCheckout("error")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.countCheckout("committed")
	writeJSON(w, http.StatusOK, map[string]int64{"id": headerID})
}

func (s *Server) handleCancelTransaction(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	err = s.db.CancelTransaction(r.Context(), claims.UserID, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to cancel transaction")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
