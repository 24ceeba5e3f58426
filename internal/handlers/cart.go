package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/storelift/api/internal/platform/httpx"
	"github.com/storelift/api/internal/services"
)

// CartHandlers exposes the session cart endpoints.
type CartHandlers struct {
	carts services.CartService
}

const maxCartBodySize = 64 * 1024

// NewCartHandlers constructs handlers bound to the cart service.
func NewCartHandlers(carts services.CartService) *CartHandlers {
	return &CartHandlers{carts: carts}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{cartID}", h.getCart)
	r.Put("/{cartID}/lines", h.replaceLines)
	r.Delete("/{cartID}", h.clearCart)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	cartID := strings.TrimSpace(chi.URLParam(r, "cartID"))
	if cartID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "cart id is required", http.StatusBadRequest))
		return
	}

	cart, err := h.carts.GetCart(ctx, cartID)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) replaceLines(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	cartID := strings.TrimSpace(chi.URLParam(r, "cartID"))
	if cartID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "cart id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	cmd, err := parseReplaceLinesRequest(cartID, body)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	cart, err := h.carts.ReplaceLines(ctx, cmd)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	cartID := strings.TrimSpace(chi.URLParam(r, "cartID"))
	if cartID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "cart id is required", http.StatusBadRequest))
		return
	}

	if err := h.carts.ClearCart(ctx, cartID); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "cart not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to process cart", http.StatusInternalServerError))
	}
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type cartPayload struct {
	ID            string            `json:"id"`
	SessionID     string            `json:"session_id,omitempty"`
	Currency      string            `json:"currency"`
	Items         []cartLinePayload `json:"items"`
	TotalItems    int               `json:"total_items"`
	TotalAmount   float64           `json:"total_amount"`
	TotalDiscount float64           `json:"total_discount"`
	TotalProducts int               `json:"total_products"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
	CreatedAt     string            `json:"created_at,omitempty"`
	UpdatedAt     string            `json:"updated_at,omitempty"`
}

type cartLinePayload struct {
	ItemID              string   `json:"item_id"`
	ProductID           string   `json:"product_id"`
	VariantID           string   `json:"variant_id,omitempty"`
	Quantity            int      `json:"quantity"`
	UnitPrice           float64  `json:"unit_price"`
	DiscountedUnitPrice *float64 `json:"discounted_unit_price,omitempty"`
	Weight              float64  `json:"weight,omitempty"`
	Currency            string   `json:"currency"`
	AddedAt             string   `json:"added_at,omitempty"`
}

func buildCartPayload(cart services.Cart) cartPayload {
	payload := cartPayload{
		ID:            strings.TrimSpace(cart.ID),
		SessionID:     strings.TrimSpace(cart.SessionID),
		Currency:      strings.ToUpper(strings.TrimSpace(cart.Currency)),
		Items:         buildCartLines(cart.Items),
		TotalItems:    cart.TotalItems,
		TotalAmount:   cart.TotalAmount,
		TotalDiscount: cart.TotalDiscount,
		TotalProducts: cart.TotalProducts,
		Metadata:      cloneMap(cart.Metadata),
	}
	if !cart.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(cart.CreatedAt)
	}
	if !cart.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(cart.UpdatedAt)
	}
	return payload
}

func buildCartLines(lines []services.CartLine) []cartLinePayload {
	payload := make([]cartLinePayload, 0, len(lines))
	for _, line := range lines {
		entry := cartLinePayload{
			ItemID:    strings.TrimSpace(line.ItemID),
			ProductID: strings.TrimSpace(line.ProductID),
			VariantID: strings.TrimSpace(line.VariantID),
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Weight:    line.Weight,
			Currency:  strings.ToUpper(strings.TrimSpace(line.Currency)),
		}
		if line.DiscountedUnitPrice != nil {
			entry.DiscountedUnitPrice = floatPointer(*line.DiscountedUnitPrice)
		}
		if !line.AddedAt.IsZero() {
			entry.AddedAt = formatTime(line.AddedAt)
		}
		payload = append(payload, entry)
	}
	return payload
}

type replaceLinesRequest struct {
	SessionID string            `json:"session_id"`
	Currency  string            `json:"currency"`
	Lines     []cartLineRequest `json:"lines"`
	Metadata  map[string]any    `json:"metadata"`
}

type cartLineRequest struct {
	ItemID              string   `json:"item_id"`
	ProductID           string   `json:"product_id"`
	VariantID           string   `json:"variant_id"`
	Quantity            int      `json:"quantity"`
	UnitPrice           float64  `json:"unit_price"`
	DiscountedUnitPrice *float64 `json:"discounted_unit_price"`
	Weight              float64  `json:"weight"`
	Currency            string   `json:"currency"`
}

func parseReplaceLinesRequest(cartID string, body []byte) (services.ReplaceCartLinesCommand, error) {
	var req replaceLinesRequest
	decoder := json.NewDecoder(strings.NewReader(string(body)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return services.ReplaceCartLinesCommand{}, errors.New("invalid JSON payload")
	}
	if req.Lines == nil {
		return services.ReplaceCartLinesCommand{}, errors.New("lines is required")
	}

	cmd := services.ReplaceCartLinesCommand{
		CartID:    cartID,
		SessionID: strings.TrimSpace(req.SessionID),
		Currency:  strings.TrimSpace(req.Currency),
		Metadata:  req.Metadata,
		Lines:     make([]services.CartLine, 0, len(req.Lines)),
	}
	for _, line := range req.Lines {
		entry := services.CartLine{
			ItemID:    strings.TrimSpace(line.ItemID),
			ProductID: strings.TrimSpace(line.ProductID),
			VariantID: strings.TrimSpace(line.VariantID),
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Weight:    line.Weight,
			Currency:  strings.TrimSpace(line.Currency),
		}
		if line.DiscountedUnitPrice != nil {
			entry.DiscountedUnitPrice = floatPointer(*line.DiscountedUnitPrice)
		}
		cmd.Lines = append(cmd.Lines, entry)
	}
	return cmd, nil
}
