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

	"github.com/storelift/api/internal/services"
)

type stubVariantService struct {
	saveFunc       func(ctx context.Context, cmd services.SaveVariantGroupsCommand) ([]services.VariantCombination, error)
	listGroupsFunc func(ctx context.Context, productID string) ([]services.VariantGroup, error)
	listCombosFunc func(ctx context.Context, productID string) ([]services.VariantCombination, error)
	regenFunc      func(ctx context.Context, productID string) ([]services.VariantCombination, error)
}

func (s *stubVariantService) SaveGroups(ctx context.Context, cmd services.SaveVariantGroupsCommand) ([]services.VariantCombination, error) {
	if s.saveFunc == nil {
		return nil, errors.New("unexpected SaveGroups call")
	}
	return s.saveFunc(ctx, cmd)
}

func (s *stubVariantService) ListGroups(ctx context.Context, productID string) ([]services.VariantGroup, error) {
	if s.listGroupsFunc == nil {
		return nil, errors.New("unexpected ListGroups call")
	}
	return s.listGroupsFunc(ctx, productID)
}

func (s *stubVariantService) ListCombinations(ctx context.Context, productID string) ([]services.VariantCombination, error) {
	if s.listCombosFunc == nil {
		return nil, errors.New("unexpected ListCombinations call")
	}
	return s.listCombosFunc(ctx, productID)
}

func (s *stubVariantService) RegenerateCombinations(ctx context.Context, productID string) ([]services.VariantCombination, error) {
	if s.regenFunc == nil {
		return nil, errors.New("unexpected RegenerateCombinations call")
	}
	return s.regenFunc(ctx, productID)
}

var _ services.VariantService = (*stubVariantService)(nil)

func TestVariantHandlersSaveGroups(t *testing.T) {
	var captured services.SaveVariantGroupsCommand
	service := &stubVariantService{
		saveFunc: func(ctx context.Context, cmd services.SaveVariantGroupsCommand) ([]services.VariantCombination, error) {
			captured = cmd
			return []services.VariantCombination{
				{
					ID:        "grp-color:opt-red",
					ProductID: cmd.ProductID,
					Selections: []services.VariantSelection{
						{GroupID: "grp-color", OptionID: "opt-red"},
					},
					SKU:    "PROD1234-RED",
					Active: true,
				},
			}, nil
		},
	}

	handler := NewVariantHandlers(service)
	router := chi.NewRouter()
	router.Route("/products", handler.Routes)

	payload := `{
		"groups": [
			{"id": "grp-color", "name": "Color", "options": [{"id": "opt-red", "name": "Red"}]}
		]
	}`
	req := httptest.NewRequest(http.MethodPut, "/products/prod-1/variant-groups", strings.NewReader(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.ProductID != "prod-1" {
		t.Fatalf("expected product prod-1, got %q", captured.ProductID)
	}
	if len(captured.Groups) != 1 || captured.Groups[0].ID != "grp-color" || len(captured.Groups[0].Options) != 1 {
		t.Fatalf("unexpected groups: %+v", captured.Groups)
	}

	var body struct {
		Combinations []struct {
			ID         string `json:"id"`
			SKU        string `json:"sku"`
			Selections []struct {
				GroupID string `json:"group_id"`
			} `json:"selections"`
		} `json:"combinations"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(body.Combinations) != 1 || body.Combinations[0].SKU != "PROD1234-RED" {
		t.Fatalf("unexpected combinations payload: %+v", body.Combinations)
	}
}

func TestVariantHandlersSaveGroupsRejectsMissingGroups(t *testing.T) {
	service := &stubVariantService{}
	handler := NewVariantHandlers(service)
	router := chi.NewRouter()
	router.Route("/products", handler.Routes)

	req := httptest.NewRequest(http.MethodPut, "/products/prod-1/variant-groups", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestVariantHandlersListCombinations(t *testing.T) {
	service := &stubVariantService{
		listCombosFunc: func(ctx context.Context, productID string) ([]services.VariantCombination, error) {
			if productID != "prod-2" {
				t.Fatalf("unexpected product id %q", productID)
			}
			return []services.VariantCombination{}, nil
		},
	}

	handler := NewVariantHandlers(service)
	router := chi.NewRouter()
	router.Route("/products", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/products/prod-2/combinations", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body struct {
		Combinations []json.RawMessage `json:"combinations"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Combinations == nil {
		t.Fatalf("expected empty array, got null")
	}
}

func TestVariantHandlersRegenerate(t *testing.T) {
	called := false
	service := &stubVariantService{
		regenFunc: func(ctx context.Context, productID string) ([]services.VariantCombination, error) {
			called = true
			if productID != "prod-3" {
				t.Fatalf("unexpected product id %q", productID)
			}
			return []services.VariantCombination{{ID: "a", ProductID: productID}}, nil
		},
	}

	handler := NewVariantHandlers(service)
	router := chi.NewRouter()
	router.Route("/products", handler.Routes)

	req := httptest.NewRequest(http.MethodPost, "/products/prod-3/combinations:regenerate", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !called {
		t.Fatalf("expected regenerate to be invoked")
	}
}

func TestVariantHandlersInvalidInput(t *testing.T) {
	service := &stubVariantService{
		saveFunc: func(ctx context.Context, cmd services.SaveVariantGroupsCommand) ([]services.VariantCombination, error) {
			return nil, services.ErrVariantInvalidInput
		},
	}

	handler := NewVariantHandlers(service)
	router := chi.NewRouter()
	router.Route("/products", handler.Routes)

	req := httptest.NewRequest(http.MethodPut, "/products/prod-1/variant-groups", strings.NewReader(`{"groups": []}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
