package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/storelift/api/internal/domain"
	"github.com/storelift/api/internal/services"
)

type stubDiscountHandlerService struct {
	createFunc func(ctx context.Context, cmd services.UpsertDiscountCommand) (services.Discount, error)
	updateFunc func(ctx context.Context, cmd services.UpsertDiscountCommand) (services.Discount, error)
	getFunc    func(ctx context.Context, discountID string) (services.Discount, error)
	listFunc   func(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.Discount], error)
	deleteFunc func(ctx context.Context, discountID string) error
	retypeFunc func(ctx context.Context, cmd services.ChangeDiscountTypeCommand) (services.Discount, error)
}

func (s *stubDiscountHandlerService) CreateDiscount(ctx context.Context, cmd services.UpsertDiscountCommand) (services.Discount, error) {
	if s.createFunc == nil {
		return services.Discount{}, errors.New("unexpected CreateDiscount call")
	}
	return s.createFunc(ctx, cmd)
}

func (s *stubDiscountHandlerService) UpdateDiscount(ctx context.Context, cmd services.UpsertDiscountCommand) (services.Discount, error) {
	if s.updateFunc == nil {
		return services.Discount{}, errors.New("unexpected UpdateDiscount call")
	}
	return s.updateFunc(ctx, cmd)
}

func (s *stubDiscountHandlerService) GetDiscount(ctx context.Context, discountID string) (services.Discount, error) {
	if s.getFunc == nil {
		return services.Discount{}, errors.New("unexpected GetDiscount call")
	}
	return s.getFunc(ctx, discountID)
}

func (s *stubDiscountHandlerService) ListDiscounts(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.Discount], error) {
	if s.listFunc == nil {
		return domain.CursorPage[services.Discount]{}, errors.New("unexpected ListDiscounts call")
	}
	return s.listFunc(ctx, pager)
}

func (s *stubDiscountHandlerService) DeleteDiscount(ctx context.Context, discountID string) error {
	if s.deleteFunc == nil {
		return errors.New("unexpected DeleteDiscount call")
	}
	return s.deleteFunc(ctx, discountID)
}

func (s *stubDiscountHandlerService) ChangeType(ctx context.Context, cmd services.ChangeDiscountTypeCommand) (services.Discount, error) {
	if s.retypeFunc == nil {
		return services.Discount{}, errors.New("unexpected ChangeType call")
	}
	return s.retypeFunc(ctx, cmd)
}

var _ services.DiscountService = (*stubDiscountHandlerService)(nil)

func TestDiscountHandlersCreateDiscount(t *testing.T) {
	var captured services.UpsertDiscountCommand
	service := &stubDiscountHandlerService{
		createFunc: func(ctx context.Context, cmd services.UpsertDiscountCommand) (services.Discount, error) {
			captured = cmd
			created := cmd.Discount
			created.ID = "disc-1"
			return created, nil
		},
	}

	handler := NewDiscountHandlers(service)
	router := chi.NewRouter()
	router.Route("/discounts", handler.Routes)

	payload := `{
		"type": "percentage",
		"title": "Summer Sale",
		"value": 15,
		"currencies": ["TRY"]
	}`
	req := httptest.NewRequest(http.MethodPost, "/discounts/", strings.NewReader(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Discount.Type != domain.DiscountPercentage {
		t.Fatalf("expected type normalised to PERCENTAGE, got %q", captured.Discount.Type)
	}
	if captured.Discount.Title != "Summer Sale" || captured.Discount.Value != 15 {
		t.Fatalf("unexpected discount: %+v", captured.Discount)
	}
	if !captured.Discount.Active {
		t.Fatalf("expected active to default to true")
	}

	var body struct {
		Discount struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"discount"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Discount.ID != "disc-1" || body.Discount.Type != "PERCENTAGE" {
		t.Fatalf("unexpected response: %+v", body.Discount)
	}
}

func TestDiscountHandlersRetype(t *testing.T) {
	var captured services.ChangeDiscountTypeCommand
	service := &stubDiscountHandlerService{
		retypeFunc: func(ctx context.Context, cmd services.ChangeDiscountTypeCommand) (services.Discount, error) {
			captured = cmd
			return services.Discount{
				ID:    cmd.DiscountID,
				Type:  cmd.NewType,
				Title: "Summer Sale",
				Tiers: []services.DiscountTier{},
			}, nil
		},
	}

	handler := NewDiscountHandlers(service)
	router := chi.NewRouter()
	router.Route("/discounts", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/discounts/disc-1:retype", strings.NewReader(`{"type": "percentage_grow_quantity"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.DiscountID != "disc-1" {
		t.Fatalf("expected discount disc-1, got %q", captured.DiscountID)
	}
	if captured.NewType != domain.DiscountPercentageGrowQuantity {
		t.Fatalf("expected PERCENTAGE_GROW_QUANTITY, got %q", captured.NewType)
	}
}

func TestDiscountHandlersRetypeRequiresType(t *testing.T) {
	service := &stubDiscountHandlerService{}
	handler := NewDiscountHandlers(service)
	router := chi.NewRouter()
	router.Route("/discounts", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/discounts/disc-1:retype", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestDiscountHandlersRetypeUnknownType(t *testing.T) {
	service := &stubDiscountHandlerService{
		retypeFunc: func(ctx context.Context, cmd services.ChangeDiscountTypeCommand) (services.Discount, error) {
			return services.Discount{}, services.ErrDiscountUnknownType
		},
	}

	handler := NewDiscountHandlers(service)
	router := chi.NewRouter()
	router.Route("/discounts", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/discounts/disc-1:retype", strings.NewReader(`{"type": "MYSTERY"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestDiscountHandlersListDiscounts(t *testing.T) {
	service := &stubDiscountHandlerService{
		listFunc: func(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.Discount], error) {
			return domain.CursorPage[services.Discount]{
				Items: []services.Discount{
					{ID: "disc-1", Type: domain.DiscountFreeShipping, Title: "Free Cargo", Active: true},
				},
				NextPageToken: "after-disc-1",
			}, nil
		},
	}

	handler := NewDiscountHandlers(service)
	router := chi.NewRouter()
	router.Route("/discounts", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/discounts/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body struct {
		Discounts []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"discounts"`
		NextPageToken string `json:"next_page_token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(body.Discounts) != 1 || body.Discounts[0].Type != "FREE_SHIPPING" {
		t.Fatalf("unexpected list payload: %+v", body.Discounts)
	}
	if body.NextPageToken != "after-disc-1" {
		t.Fatalf("expected next page token, got %q", body.NextPageToken)
	}
}

func TestDiscountHandlersGetDiscountNotFound(t *testing.T) {
	service := &stubDiscountHandlerService{
		getFunc: func(ctx context.Context, discountID string) (services.Discount, error) {
			return services.Discount{}, services.ErrDiscountNotFound
		},
	}

	handler := NewDiscountHandlers(service)
	router := chi.NewRouter()
	router.Route("/discounts", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/discounts/missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestDiscountHandlersDeleteDiscount(t *testing.T) {
	deleted := ""
	service := &stubDiscountHandlerService{
		deleteFunc: func(ctx context.Context, discountID string) error {
			deleted = discountID
			return nil
		},
	}

	handler := NewDiscountHandlers(service)
	router := chi.NewRouter()
	router.Route("/discounts", handler.Routes)

	req := httptest.NewRequest(http.MethodDelete, "/discounts/disc-9", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if deleted != "disc-9" {
		t.Fatalf("expected disc-9 deleted, got %q", deleted)
	}
}
