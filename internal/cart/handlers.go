package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/toko-cart/internal/common"
)

var defaultValidate = validator.New(validator.WithRequiredStructEnabled())

// Handler wires cart services to HTTP. Every route expects the owner
// identity on the request context (see auth.Middleware).
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// Amount bounds mirror AmountCeiling; the configured per-line cap is
// enforced by the service.
type addItemRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Amount    int    `json:"amount" validate:"gte=1,lte=1000000"`
}

type updateItemRequest struct {
	Amount *int `json:"amount" validate:"required,gte=0,lte=1000000"`
}

func (h *Handler) validate() *validator.Validate {
	if h.Validate != nil {
		return h.Validate
	}
	return defaultValidate
}

// Get returns the owner's cart, creating it unless failIfMissing=true.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	failIfMissing := false
	if raw := strings.TrimSpace(r.URL.Query().Get("failIfMissing")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "failIfMissing must be true or false", nil)
			return
		}
		failIfMissing = parsed
	}
	c, err := h.Svc.FetchOrCreateCart(r.Context(), owner, FetchOptions{FailIfMissing: failIfMissing})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewCartView(c))
}

// Count returns the number of units in the owner's cart.
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	n, err := h.Svc.ItemCount(r.Context(), owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"numItemsInCart": n})
}

// AddItem adds or increments a cart line item.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var payload addItemRequest
	if !h.decode(w, r, &payload) {
		return
	}
	c, err := h.Svc.AddToCart(r.Context(), owner, strings.TrimSpace(payload.ProductID), payload.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewCartView(c))
}

// UpdateItem sets the amount of a cart line item.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var payload updateItemRequest
	if !h.decode(w, r, &payload) {
		return
	}
	c, err := h.Svc.UpdateCartItemAmount(r.Context(), owner, chi.URLParam(r, "itemId"), *payload.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewCartView(c))
}

// RemoveItem deletes a cart item.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	c, err := h.Svc.RemoveCartItem(r.Context(), owner, chi.URLParam(r, "itemId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewCartView(c))
}

// Clear removes every item from the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	c, err := h.Svc.ClearCart(r.Context(), owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewCartView(c))
}

// Recompute re-derives the cart totals from current product prices.
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	c, err := h.Svc.RecomputeCart(r.Context(), owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewCartView(c))
}

func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return "", false
	}
	userID, ok := common.UserID(r.Context())
	if !ok || strings.TrimSpace(userID) == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", Message(ErrInvalidOwner), nil)
		return "", false
	}
	return userID, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	if err := h.validate().Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			code, message := "BAD_REQUEST", "invalid payload"
			details := make([]map[string]string, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, map[string]string{"field": fe.Field(), "rule": fe.Tag()})
				if fe.Field() == "Amount" && fe.Tag() != "required" {
					code, message = "INVALID_QUANTITY", Message(ErrInvalidQuantity)
				}
			}
			common.JSONError(w, http.StatusBadRequest, code, message, details)
			return false
		}
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	common.WriteAppError(w, toAppError(err), http.StatusInternalServerError)
}

func toAppError(err error) *common.AppError {
	if err == nil {
		return common.NewAppError("INTERNAL", "unknown error", http.StatusInternalServerError, nil)
	}
	msg := Message(err)
	switch {
	case errors.Is(err, ErrInvalidOwner):
		return common.Unauthorized(msg, err)
	case errors.Is(err, ErrInvalidQuantity):
		return common.NewAppError("INVALID_QUANTITY", msg, http.StatusBadRequest, err)
	case errors.Is(err, ErrProductNotFound):
		return common.NewAppError("PRODUCT_NOT_FOUND", msg, http.StatusNotFound, err)
	case errors.Is(err, ErrCartNotFound):
		return common.NewAppError("CART_NOT_FOUND", msg, http.StatusNotFound, err)
	case errors.Is(err, ErrCartItemNotFound):
		return common.NewAppError("CART_ITEM_NOT_FOUND", msg, http.StatusNotFound, err)
	case errors.Is(err, context.DeadlineExceeded):
		return common.NewAppError("TIMEOUT", msg, http.StatusGatewayTimeout, err)
	default:
		return common.NewAppError("INTERNAL", msg, http.StatusInternalServerError, err)
	}
}
