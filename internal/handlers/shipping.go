package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storelift/api/internal/domain"
	"github.com/storelift/api/internal/platform/httpx"
	"github.com/storelift/api/internal/services"
)

// ShippingHandlers exposes cargo zone management and cart quoting endpoints.
type ShippingHandlers struct {
	shipping services.ShippingService
	limiter  rateLimiter
}

const maxZoneBodySize = 128 * 1024

// ShippingOption customises the shipping handlers.
type ShippingOption func(*ShippingHandlers)

// WithQuoteRateLimit throttles the public quote endpoint per client address.
func WithQuoteRateLimit(limit int, window time.Duration) ShippingOption {
	return func(h *ShippingHandlers) {
		h.limiter = newSimpleRateLimiter(limit, window, time.Now)
	}
}

// NewShippingHandlers constructs handlers bound to the shipping service.
func NewShippingHandlers(shipping services.ShippingService, opts ...ShippingOption) *ShippingHandlers {
	h := &ShippingHandlers{shipping: shipping}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /shipping endpoints onto the provided router.
func (h *ShippingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/zones", h.listZones)
	r.Post("/zones", h.createZone)
	r.Get("/zones/{zoneID}", h.getZone)
	r.Put("/zones/{zoneID}", h.replaceZone)
	r.Delete("/zones/{zoneID}", h.deleteZone)
	r.Post("/quote", h.quoteCart)
}

func (h *ShippingHandlers) listZones(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shipping == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shipping_service_unavailable", "shipping service is unavailable", http.StatusServiceUnavailable))
		return
	}

	pager, err := parsePagination(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.shipping.ListZones(ctx, pager)
	if err != nil {
		h.writeShippingError(ctx, w, err)
		return
	}

	zones := make([]zonePayload, 0, len(page.Items))
	for _, zone := range page.Items {
		zones = append(zones, buildZonePayload(zone))
	}
	writeJSONResponse(w, http.StatusOK, zoneListResponse{Zones: zones, NextPageToken: page.NextPageToken})
}

func (h *ShippingHandlers) createZone(w http.ResponseWriter, r *http.Request) {
	h.upsertZone(w, r, "", http.StatusCreated)
}

func (h *ShippingHandlers) replaceZone(w http.ResponseWriter, r *http.Request) {
	zoneID := strings.TrimSpace(chi.URLParam(r, "zoneID"))
	if zoneID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "zone id is required", http.StatusBadRequest))
		return
	}
	h.upsertZone(w, r, zoneID, http.StatusOK)
}

func (h *ShippingHandlers) upsertZone(w http.ResponseWriter, r *http.Request, zoneID string, successStatus int) {
	ctx := r.Context()
	if h.shipping == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shipping_service_unavailable", "shipping service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxZoneBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	cmd, err := parseZoneRequest(zoneID, body)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var zone services.CargoZone
	if zoneID == "" {
		zone, err = h.shipping.CreateZone(ctx, cmd)
	} else {
		zone, err = h.shipping.ReplaceZone(ctx, cmd)
	}
	if err != nil {
		h.writeShippingError(ctx, w, err)
		return
	}

	writeJSONResponse(w, successStatus, zoneResponse{Zone: buildZonePayload(zone)})
}

func (h *ShippingHandlers) getZone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shipping == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shipping_service_unavailable", "shipping service is unavailable", http.StatusServiceUnavailable))
		return
	}

	zoneID := strings.TrimSpace(chi.URLParam(r, "zoneID"))
	if zoneID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "zone id is required", http.StatusBadRequest))
		return
	}

	zone, err := h.shipping.GetZone(ctx, zoneID)
	if err != nil {
		h.writeShippingError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, zoneResponse{Zone: buildZonePayload(zone)})
}

func (h *ShippingHandlers) deleteZone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shipping == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shipping_service_unavailable", "shipping service is unavailable", http.StatusServiceUnavailable))
		return
	}

	zoneID := strings.TrimSpace(chi.URLParam(r, "zoneID"))
	if zoneID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "zone id is required", http.StatusBadRequest))
		return
	}

	if err := h.shipping.DeleteZone(ctx, zoneID); err != nil {
		h.writeShippingError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ShippingHandlers) quoteCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shipping == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shipping_service_unavailable", "shipping service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(clientAddress(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many quote requests; retry later", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxZoneBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req quoteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	cmd := services.ShippingQuoteCommand{
		CartID: strings.TrimSpace(req.CartID),
		Destination: services.Destination{
			CountryID: strings.TrimSpace(req.Destination.CountryID),
			StateID:   strings.TrimSpace(req.Destination.StateID),
			CityID:    strings.TrimSpace(req.Destination.CityID),
		},
	}

	quote, err := h.shipping.QuoteCart(ctx, cmd)
	if err != nil {
		h.writeShippingError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, quoteResponse{Quote: quotePayload{
		ZoneID:   quote.ZoneID,
		ZoneName: quote.ZoneName,
		RuleID:   quote.RuleID,
		RuleName: quote.RuleName,
		Currency: quote.Currency,
		Price:    quote.Price,
	}})
}

func (h *ShippingHandlers) writeShippingError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrShippingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "cart not found", http.StatusNotFound))
	case errors.Is(err, services.ErrZoneNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("zone_not_found", "cargo zone not found", http.StatusNotFound))
	case errors.Is(err, services.ErrNoZoneMatched):
		httpx.WriteError(ctx, w, httpx.NewError("no_zone_matched", "no cargo zone covers the destination", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrNoShippingRule):
		httpx.WriteError(ctx, w, httpx.NewError("no_shipping_rule", "no shipping rule matches the cart", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrShippingUnavailable), errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("shipping_service_unavailable", "shipping service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("shipping_error", "failed to process shipping request", http.StatusInternalServerError))
	}
}

func clientAddress(r *http.Request) string {
	if r == nil {
		return ""
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

type zoneListResponse struct {
	Zones         []zonePayload `json:"zones"`
	NextPageToken string        `json:"next_page_token,omitempty"`
}

type zoneResponse struct {
	Zone zonePayload `json:"zone"`
}

type zonePayload struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Locations []locationPayload `json:"locations"`
	Rules     []rulePayload     `json:"rules"`
	CreatedAt string            `json:"created_at,omitempty"`
	UpdatedAt string            `json:"updated_at,omitempty"`
}

type locationPayload struct {
	CountryID   string   `json:"country_id"`
	CountryType string   `json:"country_type"`
	StateIDs    []string `json:"state_ids,omitempty"`
	CityIDs     []string `json:"city_ids,omitempty"`
}

type rulePayload struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Currency      string   `json:"currency"`
	Price         float64  `json:"price"`
	ConditionType string   `json:"condition_type"`
	MinValue      *float64 `json:"min_value,omitempty"`
	MaxValue      *float64 `json:"max_value,omitempty"`
}

type quoteRequest struct {
	CartID      string `json:"cart_id"`
	Destination struct {
		CountryID string `json:"country_id"`
		StateID   string `json:"state_id"`
		CityID    string `json:"city_id"`
	} `json:"destination"`
}

type quoteResponse struct {
	Quote quotePayload `json:"quote"`
}

type quotePayload struct {
	ZoneID   string  `json:"zone_id"`
	ZoneName string  `json:"zone_name"`
	RuleID   string  `json:"rule_id"`
	RuleName string  `json:"rule_name"`
	Currency string  `json:"currency"`
	Price    float64 `json:"price"`
}

func buildZonePayload(zone services.CargoZone) zonePayload {
	payload := zonePayload{
		ID:        zone.ID,
		Name:      zone.Name,
		Locations: make([]locationPayload, 0, len(zone.Locations)),
		Rules:     make([]rulePayload, 0, len(zone.Rules)),
	}
	for _, loc := range zone.Locations {
		payload.Locations = append(payload.Locations, locationPayload{
			CountryID:   loc.CountryID,
			CountryType: string(loc.CountryType),
			StateIDs:    append([]string(nil), loc.StateIDs...),
			CityIDs:     append([]string(nil), loc.CityIDs...),
		})
	}
	for _, rule := range zone.Rules {
		entry := rulePayload{
			ID:            rule.ID,
			Name:          rule.Name,
			Currency:      rule.Currency,
			Price:         rule.Price,
			ConditionType: string(rule.ConditionType),
		}
		if rule.MinValue != nil {
			entry.MinValue = floatPointer(*rule.MinValue)
		}
		if rule.MaxValue != nil {
			entry.MaxValue = floatPointer(*rule.MaxValue)
		}
		payload.Rules = append(payload.Rules, entry)
	}
	if !zone.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(zone.CreatedAt)
	}
	if !zone.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(zone.UpdatedAt)
	}
	return payload
}

type zoneRequest struct {
	Name      string `json:"name"`
	Locations []struct {
		CountryID   string   `json:"country_id"`
		CountryType string   `json:"country_type"`
		StateIDs    []string `json:"state_ids"`
		CityIDs     []string `json:"city_ids"`
	} `json:"locations"`
	Rules []struct {
		ID            string   `json:"id"`
		Name          string   `json:"name"`
		Currency      string   `json:"currency"`
		Price         float64  `json:"price"`
		ConditionType string   `json:"condition_type"`
		MinValue      *float64 `json:"min_value"`
		MaxValue      *float64 `json:"max_value"`
	} `json:"rules"`
}

func parseZoneRequest(zoneID string, body []byte) (services.UpsertZoneCommand, error) {
	var req zoneRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return services.UpsertZoneCommand{}, errors.New("invalid JSON payload")
	}

	cmd := services.UpsertZoneCommand{
		ZoneID:    zoneID,
		Name:      strings.TrimSpace(req.Name),
		Locations: make([]services.Location, 0, len(req.Locations)),
		Rules:     make([]services.CargoRule, 0, len(req.Rules)),
	}
	for _, loc := range req.Locations {
		cmd.Locations = append(cmd.Locations, services.Location{
			CountryID:   strings.TrimSpace(loc.CountryID),
			CountryType: domain.CountryType(strings.ToUpper(strings.TrimSpace(loc.CountryType))),
			StateIDs:    append([]string(nil), loc.StateIDs...),
			CityIDs:     append([]string(nil), loc.CityIDs...),
		})
	}
	for _, rule := range req.Rules {
		entry := services.CargoRule{
			ID:            strings.TrimSpace(rule.ID),
			Name:          strings.TrimSpace(rule.Name),
			Currency:      strings.TrimSpace(rule.Currency),
			Price:         rule.Price,
			ConditionType: domain.CargoCondition(strings.ToUpper(strings.TrimSpace(rule.ConditionType))),
		}
		if rule.MinValue != nil {
			entry.MinValue = floatPointer(*rule.MinValue)
		}
		if rule.MaxValue != nil {
			entry.MaxValue = floatPointer(*rule.MaxValue)
		}
		cmd.Rules = append(cmd.Rules, entry)
	}
	return cmd, nil
}
