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

// VariantHandlers exposes per-product variant group and combination endpoints.
type VariantHandlers struct {
	variants services.VariantService
}

const maxVariantBodySize = 128 * 1024

// NewVariantHandlers constructs handlers bound to the variant service.
func NewVariantHandlers(variants services.VariantService) *VariantHandlers {
	return &VariantHandlers{variants: variants}
}

// Routes wires the /products variant endpoints onto the provided router.
func (h *VariantHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{productID}/variant-groups", h.listGroups)
	r.Put("/{productID}/variant-groups", h.saveGroups)
	r.Get("/{productID}/combinations", h.listCombinations)
	r.Post("/{productID}/combinations:regenerate", h.regenerateCombinations)
}

func (h *VariantHandlers) listGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID, ok := h.requireProduct(w, r)
	if !ok {
		return
	}

	groups, err := h.variants.ListGroups(ctx, productID)
	if err != nil {
		h.writeVariantError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, groupListResponse{Groups: buildGroupPayloads(groups)})
}

func (h *VariantHandlers) saveGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID, ok := h.requireProduct(w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxVariantBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	cmd, err := parseSaveGroupsRequest(productID, body)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	combinations, err := h.variants.SaveGroups(ctx, cmd)
	if err != nil {
		h.writeVariantError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, combinationListResponse{Combinations: buildCombinationPayloads(combinations)})
}

func (h *VariantHandlers) listCombinations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID, ok := h.requireProduct(w, r)
	if !ok {
		return
	}

	combinations, err := h.variants.ListCombinations(ctx, productID)
	if err != nil {
		h.writeVariantError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, combinationListResponse{Combinations: buildCombinationPayloads(combinations)})
}

func (h *VariantHandlers) regenerateCombinations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID, ok := h.requireProduct(w, r)
	if !ok {
		return
	}

	combinations, err := h.variants.RegenerateCombinations(ctx, productID)
	if err != nil {
		h.writeVariantError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, combinationListResponse{Combinations: buildCombinationPayloads(combinations)})
}

func (h *VariantHandlers) requireProduct(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()
	if h.variants == nil {
		httpx.WriteError(ctx, w, httpx.NewError("variant_service_unavailable", "variant service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return "", false
	}
	return productID, true
}

func (h *VariantHandlers) writeVariantError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrVariantInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrVariantUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("variant_service_unavailable", "variant service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("variant_error", "failed to process variant request", http.StatusInternalServerError))
	}
}

type groupListResponse struct {
	Groups []groupPayload `json:"groups"`
}

type groupPayload struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Options []optionPayload `json:"options"`
}

type optionPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type combinationListResponse struct {
	Combinations []combinationPayload `json:"combinations"`
}

type combinationPayload struct {
	ID           string               `json:"id"`
	ProductID    string               `json:"product_id"`
	Selections   []selectionPayload   `json:"selections"`
	SKU          string               `json:"sku"`
	Barcode      *string              `json:"barcode,omitempty"`
	Prices       []pricePayload       `json:"prices"`
	Stock        int                  `json:"stock"`
	Active       bool                 `json:"active"`
	Translations []translationPayload `json:"translations"`
	CreatedAt    string               `json:"created_at,omitempty"`
	UpdatedAt    string               `json:"updated_at,omitempty"`
}

type selectionPayload struct {
	GroupID  string `json:"group_id"`
	OptionID string `json:"option_id"`
}

type pricePayload struct {
	Currency        string   `json:"currency"`
	Price           float64  `json:"price"`
	DiscountedPrice *float64 `json:"discounted_price,omitempty"`
}

type translationPayload struct {
	Locale      string `json:"locale"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

func buildGroupPayloads(groups []services.VariantGroup) []groupPayload {
	payload := make([]groupPayload, 0, len(groups))
	for _, group := range groups {
		entry := groupPayload{
			ID:      group.ID,
			Name:    group.Name,
			Options: make([]optionPayload, 0, len(group.Options)),
		}
		for _, opt := range group.Options {
			entry.Options = append(entry.Options, optionPayload{ID: opt.ID, Name: opt.Name})
		}
		payload = append(payload, entry)
	}
	return payload
}

func buildCombinationPayloads(combinations []services.VariantCombination) []combinationPayload {
	payload := make([]combinationPayload, 0, len(combinations))
	for _, combo := range combinations {
		entry := combinationPayload{
			ID:           combo.ID,
			ProductID:    combo.ProductID,
			Selections:   make([]selectionPayload, 0, len(combo.Selections)),
			SKU:          combo.SKU,
			Prices:       make([]pricePayload, 0, len(combo.Prices)),
			Stock:        combo.Stock,
			Active:       combo.Active,
			Translations: make([]translationPayload, 0, len(combo.Translations)),
		}
		if combo.Barcode != nil {
			barcode := *combo.Barcode
			entry.Barcode = &barcode
		}
		for _, sel := range combo.Selections {
			entry.Selections = append(entry.Selections, selectionPayload{GroupID: sel.GroupID, OptionID: sel.OptionID})
		}
		for _, price := range combo.Prices {
			p := pricePayload{Currency: price.Currency, Price: price.Price}
			if price.DiscountedPrice != nil {
				p.DiscountedPrice = floatPointer(*price.DiscountedPrice)
			}
			entry.Prices = append(entry.Prices, p)
		}
		for _, tr := range combo.Translations {
			entry.Translations = append(entry.Translations, translationPayload{Locale: tr.Locale, Title: tr.Title, Description: tr.Description})
		}
		if !combo.CreatedAt.IsZero() {
			entry.CreatedAt = formatTime(combo.CreatedAt)
		}
		if !combo.UpdatedAt.IsZero() {
			entry.UpdatedAt = formatTime(combo.UpdatedAt)
		}
		payload = append(payload, entry)
	}
	return payload
}

type saveGroupsRequest struct {
	Groups []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Options []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"options"`
	} `json:"groups"`
}

func parseSaveGroupsRequest(productID string, body []byte) (services.SaveVariantGroupsCommand, error) {
	var req saveGroupsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return services.SaveVariantGroupsCommand{}, errors.New("invalid JSON payload")
	}
	if req.Groups == nil {
		return services.SaveVariantGroupsCommand{}, errors.New("groups is required")
	}

	cmd := services.SaveVariantGroupsCommand{
		ProductID: productID,
		Groups:    make([]services.VariantGroup, 0, len(req.Groups)),
	}
	for _, group := range req.Groups {
		entry := services.VariantGroup{
			ID:      strings.TrimSpace(group.ID),
			Name:    strings.TrimSpace(group.Name),
			Options: make([]services.VariantOption, 0, len(group.Options)),
		}
		for _, opt := range group.Options {
			entry.Options = append(entry.Options, services.VariantOption{
				ID:   strings.TrimSpace(opt.ID),
				Name: strings.TrimSpace(opt.Name),
			})
		}
		cmd.Groups = append(cmd.Groups, entry)
	}
	return cmd, nil
}
