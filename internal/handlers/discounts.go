package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storelift/api/internal/domain"
	"github.com/storelift/api/internal/platform/httpx"
	"github.com/storelift/api/internal/services"
)

// DiscountHandlers exposes discount management endpoints including type
// migration.
type DiscountHandlers struct {
	discounts services.DiscountService
}

const maxDiscountBodySize = 64 * 1024

// NewDiscountHandlers constructs handlers bound to the discount service.
func NewDiscountHandlers(discounts services.DiscountService) *DiscountHandlers {
	return &DiscountHandlers{discounts: discounts}
}

// Routes wires the /discounts endpoints onto the provided router.
func (h *DiscountHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listDiscounts)
	r.Post("/", h.createDiscount)
	r.Get("/{discountID}", h.getDiscount)
	r.Put("/{discountID}", h.updateDiscount)
	r.Delete("/{discountID}", h.deleteDiscount)
	r.Post("/{discountID}:retype", h.retypeDiscount)
}

func (h *DiscountHandlers) listDiscounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.discounts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("discount_service_unavailable", "discount service is unavailable", http.StatusServiceUnavailable))
		return
	}

	pager, err := parsePagination(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.discounts.ListDiscounts(ctx, pager)
	if err != nil {
		h.writeDiscountError(ctx, w, err)
		return
	}

	items := make([]discountPayload, 0, len(page.Items))
	for _, discount := range page.Items {
		items = append(items, buildDiscountPayload(discount))
	}
	writeJSONResponse(w, http.StatusOK, discountListResponse{Discounts: items, NextPageToken: page.NextPageToken})
}

func (h *DiscountHandlers) createDiscount(w http.ResponseWriter, r *http.Request) {
	h.upsertDiscount(w, r, "", http.StatusCreated)
}

func (h *DiscountHandlers) updateDiscount(w http.ResponseWriter, r *http.Request) {
	discountID := strings.TrimSpace(chi.URLParam(r, "discountID"))
	if discountID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "discount id is required", http.StatusBadRequest))
		return
	}
	h.upsertDiscount(w, r, discountID, http.StatusOK)
}

func (h *DiscountHandlers) upsertDiscount(w http.ResponseWriter, r *http.Request, discountID string, successStatus int) {
	ctx := r.Context()
	if h.discounts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("discount_service_unavailable", "discount service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxDiscountBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	cmd, err := parseDiscountRequest(discountID, body)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var discount services.Discount
	if discountID == "" {
		discount, err = h.discounts.CreateDiscount(ctx, cmd)
	} else {
		discount, err = h.discounts.UpdateDiscount(ctx, cmd)
	}
	if err != nil {
		h.writeDiscountError(ctx, w, err)
		return
	}

	writeJSONResponse(w, successStatus, discountResponse{Discount: buildDiscountPayload(discount)})
}

func (h *DiscountHandlers) getDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.discounts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("discount_service_unavailable", "discount service is unavailable", http.StatusServiceUnavailable))
		return
	}

	discountID := strings.TrimSpace(chi.URLParam(r, "discountID"))
	if discountID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "discount id is required", http.StatusBadRequest))
		return
	}

	discount, err := h.discounts.GetDiscount(ctx, discountID)
	if err != nil {
		h.writeDiscountError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, discountResponse{Discount: buildDiscountPayload(discount)})
}

func (h *DiscountHandlers) deleteDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.discounts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("discount_service_unavailable", "discount service is unavailable", http.StatusServiceUnavailable))
		return
	}

	discountID := strings.TrimSpace(chi.URLParam(r, "discountID"))
	if discountID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "discount id is required", http.StatusBadRequest))
		return
	}

	if err := h.discounts.DeleteDiscount(ctx, discountID); err != nil {
		h.writeDiscountError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *DiscountHandlers) retypeDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.discounts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("discount_service_unavailable", "discount service is unavailable", http.StatusServiceUnavailable))
		return
	}

	discountID := strings.TrimSpace(chi.URLParam(r, "discountID"))
	if discountID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "discount id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxDiscountBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req retypeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	newType := strings.ToUpper(strings.TrimSpace(req.Type))
	if newType == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "type is required", http.StatusBadRequest))
		return
	}

	discount, err := h.discounts.ChangeType(ctx, services.ChangeDiscountTypeCommand{
		DiscountID: discountID,
		NewType:    domain.DiscountType(newType),
	})
	if err != nil {
		h.writeDiscountError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, discountResponse{Discount: buildDiscountPayload(discount)})
}

func (h *DiscountHandlers) writeDiscountError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrDiscountUnknownType):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_discount_type", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrDiscountInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrDiscountNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("discount_not_found", "discount not found", http.StatusNotFound))
	case errors.Is(err, services.ErrDiscountConflict):
		httpx.WriteError(ctx, w, httpx.NewError("discount_conflict", "discount already exists", http.StatusConflict))
	case errors.Is(err, services.ErrDiscountUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("discount_service_unavailable", "discount service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("discount_error", "failed to process discount request", http.StatusInternalServerError))
	}
}

type discountListResponse struct {
	Discounts     []discountPayload `json:"discounts"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type discountResponse struct {
	Discount discountPayload `json:"discount"`
}

type discountPayload struct {
	ID               string        `json:"id"`
	Type             string        `json:"type"`
	Title            string        `json:"title"`
	Description      string        `json:"description,omitempty"`
	StartsAt         string        `json:"starts_at,omitempty"`
	EndsAt           string        `json:"ends_at,omitempty"`
	UsageLimit       *int          `json:"usage_limit,omitempty"`
	PerCustomerLimit *int          `json:"per_customer_limit,omitempty"`
	MinCartAmount    *float64      `json:"min_cart_amount,omitempty"`
	MinCartQuantity  *int          `json:"min_cart_quantity,omitempty"`
	IsAllProducts    bool          `json:"is_all_products"`
	ProductIDs       []string      `json:"product_ids,omitempty"`
	IsAllCustomers   bool          `json:"is_all_customers"`
	CustomerGroupIDs []string      `json:"customer_group_ids,omitempty"`
	Currencies       []string      `json:"currencies"`
	Active           bool          `json:"active"`
	Value            float64       `json:"value,omitempty"`
	Amount           float64       `json:"amount,omitempty"`
	Tiers            []tierPayload `json:"tiers,omitempty"`
	CreatedAt        string        `json:"created_at,omitempty"`
	UpdatedAt        string        `json:"updated_at,omitempty"`
}

type tierPayload struct {
	MinValue float64 `json:"min_value"`
	Value    float64 `json:"value"`
}

func buildDiscountPayload(discount services.Discount) discountPayload {
	payload := discountPayload{
		ID:               discount.ID,
		Type:             string(discount.Type),
		Title:            discount.Title,
		Description:      discount.Description,
		UsageLimit:       discount.UsageLimit,
		PerCustomerLimit: discount.PerCustomerLimit,
		MinCartAmount:    discount.MinCartAmount,
		MinCartQuantity:  discount.MinCartQuantity,
		IsAllProducts:    discount.IsAllProducts,
		ProductIDs:       append([]string(nil), discount.ProductIDs...),
		IsAllCustomers:   discount.IsAllCustomers,
		CustomerGroupIDs: append([]string(nil), discount.CustomerGroupIDs...),
		Currencies:       append([]string(nil), discount.Currencies...),
		Active:           discount.Active,
		Value:            discount.Value,
		Amount:           discount.Amount,
	}
	if discount.StartsAt != nil {
		payload.StartsAt = formatTime(*discount.StartsAt)
	}
	if discount.EndsAt != nil {
		payload.EndsAt = formatTime(*discount.EndsAt)
	}
	if len(discount.Tiers) > 0 {
		payload.Tiers = make([]tierPayload, 0, len(discount.Tiers))
		for _, tier := range discount.Tiers {
			payload.Tiers = append(payload.Tiers, tierPayload{MinValue: tier.MinValue, Value: tier.Value})
		}
	}
	if !discount.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(discount.CreatedAt)
	}
	if !discount.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(discount.UpdatedAt)
	}
	return payload
}

type retypeRequest struct {
	Type string `json:"type"`
}

type discountRequest struct {
	Type             string        `json:"type"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	StartsAt         string        `json:"starts_at"`
	EndsAt           string        `json:"ends_at"`
	UsageLimit       *int          `json:"usage_limit"`
	PerCustomerLimit *int          `json:"per_customer_limit"`
	MinCartAmount    *float64      `json:"min_cart_amount"`
	MinCartQuantity  *int          `json:"min_cart_quantity"`
	IsAllProducts    bool          `json:"is_all_products"`
	ProductIDs       []string      `json:"product_ids"`
	IsAllCustomers   bool          `json:"is_all_customers"`
	CustomerGroupIDs []string      `json:"customer_group_ids"`
	Currencies       []string      `json:"currencies"`
	Active           *bool         `json:"active"`
	Value            float64       `json:"value"`
	Amount           float64       `json:"amount"`
	Tiers            []tierPayload `json:"tiers"`
}

func parseDiscountRequest(discountID string, body []byte) (services.UpsertDiscountCommand, error) {
	var req discountRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return services.UpsertDiscountCommand{}, errors.New("invalid JSON payload")
	}

	discount := services.Discount{
		ID:               discountID,
		Type:             domain.DiscountType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Title:            strings.TrimSpace(req.Title),
		Description:      strings.TrimSpace(req.Description),
		UsageLimit:       req.UsageLimit,
		PerCustomerLimit: req.PerCustomerLimit,
		MinCartAmount:    req.MinCartAmount,
		MinCartQuantity:  req.MinCartQuantity,
		IsAllProducts:    req.IsAllProducts,
		ProductIDs:       append([]string(nil), req.ProductIDs...),
		IsAllCustomers:   req.IsAllCustomers,
		CustomerGroupIDs: append([]string(nil), req.CustomerGroupIDs...),
		Currencies:       append([]string(nil), req.Currencies...),
		Active:           true,
		Value:            req.Value,
		Amount:           req.Amount,
	}
	if req.Active != nil {
		discount.Active = *req.Active
	}
	if raw := strings.TrimSpace(req.StartsAt); raw != "" {
		parsed, err := parseRFC3339(raw)
		if err != nil {
			return services.UpsertDiscountCommand{}, errors.New("starts_at must be an RFC3339 timestamp")
		}
		discount.StartsAt = timePointer(parsed)
	}
	if raw := strings.TrimSpace(req.EndsAt); raw != "" {
		parsed, err := parseRFC3339(raw)
		if err != nil {
			return services.UpsertDiscountCommand{}, errors.New("ends_at must be an RFC3339 timestamp")
		}
		discount.EndsAt = timePointer(parsed)
	}
	if len(req.Tiers) > 0 {
		discount.Tiers = make([]services.DiscountTier, 0, len(req.Tiers))
		for _, tier := range req.Tiers {
			discount.Tiers = append(discount.Tiers, services.DiscountTier{MinValue: tier.MinValue, Value: tier.Value})
		}
	}

	return services.UpsertDiscountCommand{Discount: discount}, nil
}

func timePointer(t time.Time) *time.Time {
	return &t
}
