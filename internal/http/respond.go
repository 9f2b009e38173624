package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/service"
	"github.com/Bassamalsaqqa/delivery-app-backend/pkg/logger"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(ctx).Error("failed to encode response", zap.Error(err))
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	respondJSON(ctx, w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// respondServiceError maps service errors onto HTTP statuses. Anything
// unrecognised is logged and reported as a bare 500.
func respondServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(ctx).Error("request failed", zap.Error(err))
		respondError(ctx, w, status, code, "internal server error")
		return
	}
	respondJSON(ctx, w, status, ErrorResponse{
		Error:   err.Error(),
		Code:    code,
		Details: errorDetails(err),
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrIdempotencyConflict):
		return http.StatusConflict, "request_in_progress"
	case errors.Is(err, service.ErrProductUnavailable):
		return http.StatusBadRequest, "product_unavailable"
	case errors.Is(err, service.ErrInsufficientStock):
		return http.StatusBadRequest, "insufficient_stock"
	case errors.Is(err, service.ErrNoItemsProvided):
		return http.StatusBadRequest, "no_items"
	case errors.Is(err, service.ErrShippingAddressRequired):
		return http.StatusBadRequest, "shipping_address_required"
	case errors.Is(err, service.ErrInvalidAddress):
		return http.StatusBadRequest, "invalid_address"
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusBadRequest, "invalid_transition"
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func errorDetails(err error) string {
	var unavailable *service.ProductUnavailableError
	if errors.As(err, &unavailable) {
		return fmt.Sprintf("product_id=%s", unavailable.ProductID)
	}
	var insufficient *service.InsufficientStockError
	if errors.As(err, &insufficient) {
		return fmt.Sprintf("product_id=%s requested=%d available=%d",
			insufficient.ProductID, insufficient.Requested, insufficient.Available)
	}
	return ""
}

// decodeJSON rejects unknown fields and trailing data. An empty body decodes
// to the zero value when allowEmpty is set.
func decodeJSON(r *http.Request, dst interface{}, allowEmpty bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}
