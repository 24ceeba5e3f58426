package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/storelift/api/internal/domain"
	"github.com/storelift/api/internal/platform/events"
)

type stubDiscountRepository struct {
	insertFunc   func(ctx context.Context, discount domain.Discount) (domain.Discount, error)
	updateFunc   func(ctx context.Context, discount domain.Discount) (domain.Discount, error)
	findByIDFunc func(ctx context.Context, discountID string) (domain.Discount, error)
	listFunc     func(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Discount], error)
	deleteFunc   func(ctx context.Context, discountID string) error
}

func (s *stubDiscountRepository) Insert(ctx context.Context, discount domain.Discount) (domain.Discount, error) {
	if s.insertFunc == nil {
		return discount, nil
	}
	return s.insertFunc(ctx, discount)
}

func (s *stubDiscountRepository) Update(ctx context.Context, discount domain.Discount) (domain.Discount, error) {
	if s.updateFunc == nil {
		return discount, nil
	}
	return s.updateFunc(ctx, discount)
}

func (s *stubDiscountRepository) FindByID(ctx context.Context, discountID string) (domain.Discount, error) {
	if s.findByIDFunc == nil {
		return domain.Discount{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByIDFunc(ctx, discountID)
}

func (s *stubDiscountRepository) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Discount], error) {
	if s.listFunc == nil {
		return domain.CursorPage[domain.Discount]{}, nil
	}
	return s.listFunc(ctx, pager)
}

func (s *stubDiscountRepository) Delete(ctx context.Context, discountID string) error {
	if s.deleteFunc == nil {
		return nil
	}
	return s.deleteFunc(ctx, discountID)
}

func TestRetypeDiscountPreservesCommonFields(t *testing.T) {
	starts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limit := 100
	current := domain.Discount{
		ID:          "disc-1",
		Type:        domain.DiscountFixedAmount,
		Title:       "Winter sale",
		Description: "10 TL off",
		StartsAt:    &starts,
		UsageLimit:  &limit,
		Currencies:  []string{"TRY", "USD"},
		Amount:      10,
		Active:      true,
	}

	got, err := RetypeDiscount(current, domain.DiscountPercentage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Title != "Winter sale" {
		t.Fatalf("expected title preserved, got %q", got.Title)
	}
	if got.Description != "10 TL off" || got.StartsAt == nil || got.UsageLimit == nil {
		t.Fatalf("expected common fields preserved, got %+v", got)
	}
	if got.Type != domain.DiscountPercentage {
		t.Fatalf("expected type switched, got %q", got.Type)
	}
	if got.Amount != 0 {
		t.Fatalf("expected prior payload discarded, got amount %v", got.Amount)
	}
	if got.Value != 0 {
		t.Fatalf("expected fresh zeroed value, got %v", got.Value)
	}
	if current.Amount != 10 {
		t.Fatalf("input discount mutated: %+v", current)
	}
}

func TestRetypeDiscountZeroesNewPayload(t *testing.T) {
	current := domain.Discount{Type: domain.DiscountPercentage, Title: "Promo", Value: 15}

	got, err := RetypeDiscount(current, domain.DiscountFixedAmount)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Amount != 0 {
		t.Fatalf("expected discountAmount freshly defaulted to 0, got %v", got.Amount)
	}
	if got.Value != 0 {
		t.Fatalf("expected prior value discarded, got %v", got.Value)
	}
}

func TestRetypeDiscountGrowTypesGetEmptyTiers(t *testing.T) {
	growing := []domain.DiscountType{
		domain.DiscountPercentageGrowQuantity,
		domain.DiscountPercentageGrowPrice,
		domain.DiscountFixedAmountGrowQty,
		domain.DiscountFixedAmountGrowPrice,
	}

	current := domain.Discount{
		Type:  domain.DiscountPercentage,
		Title: "Promo",
		Value: 5,
		Tiers: []domain.DiscountTier{{MinValue: 3, Value: 10}},
	}

	for _, newType := range growing {
		got, err := RetypeDiscount(current, newType)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", newType, err)
		}
		if got.Tiers == nil || len(got.Tiers) != 0 {
			t.Fatalf("%s: expected empty tier list, got %+v", newType, got.Tiers)
		}
		if got.Value != 0 {
			t.Fatalf("%s: expected scalar payload discarded, got %v", newType, got.Value)
		}
	}

	flat, err := RetypeDiscount(current, domain.DiscountFreeShipping)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flat.Tiers != nil {
		t.Fatalf("expected no tiers for flat type, got %+v", flat.Tiers)
	}
}

func TestRetypeDiscountFillsDefaults(t *testing.T) {
	got, err := RetypeDiscount(domain.Discount{Title: "Bare"}, domain.DiscountBuyXGetY)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !got.IsAllProducts {
		t.Fatalf("expected isAllProducts to default true")
	}
	if !got.IsAllCustomers {
		t.Fatalf("expected isAllCustomers to default true")
	}
	if len(got.Currencies) != 1 || got.Currencies[0] != "TRY" {
		t.Fatalf("expected default currencies [TRY], got %+v", got.Currencies)
	}
	if got.UsageLimit != nil || got.MinCartAmount != nil {
		t.Fatalf("expected numeric limits to stay unset, got %+v", got)
	}
}

func TestRetypeDiscountScopedRecordKeepsScope(t *testing.T) {
	current := domain.Discount{
		Title:      "Scoped",
		ProductIDs: []string{"prod-1"},
	}

	got, err := RetypeDiscount(current, domain.DiscountPercentage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.IsAllProducts {
		t.Fatalf("expected product-scoped discount to stay scoped")
	}
}

func TestRetypeDiscountRejectsUnknownType(t *testing.T) {
	_, err := RetypeDiscount(domain.Discount{Title: "Promo"}, "MYSTERY")
	if !errors.Is(err, ErrDiscountUnknownType) {
		t.Fatalf("expected ErrDiscountUnknownType, got %v", err)
	}
}

func TestDiscountServiceChangeTypePersistsAndPublishes(t *testing.T) {
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	publisher := &capturePublisher{}
	var updated domain.Discount

	repo := &stubDiscountRepository{
		findByIDFunc: func(ctx context.Context, discountID string) (domain.Discount, error) {
			return domain.Discount{
				ID:    discountID,
				Type:  domain.DiscountPercentage,
				Title: "Summer",
				Value: 20,
			}, nil
		},
		updateFunc: func(ctx context.Context, discount domain.Discount) (domain.Discount, error) {
			updated = discount
			return discount, nil
		},
	}

	service, err := NewDiscountService(DiscountServiceDeps{
		Repository: repo,
		Publisher:  publisher,
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing discount service: %v", err)
	}

	got, err := service.ChangeType(context.Background(), ChangeDiscountTypeCommand{
		DiscountID: "disc-1",
		NewType:    domain.DiscountFixedAmountGrowQty,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Type != domain.DiscountFixedAmountGrowQty {
		t.Fatalf("expected persisted type switch, got %q", updated.Type)
	}
	if got.Title != "Summer" {
		t.Fatalf("expected title preserved, got %q", got.Title)
	}
	if got.Value != 0 || len(got.Tiers) != 0 || got.Tiers == nil {
		t.Fatalf("expected fresh tier payload, got %+v", got)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Fatalf("expected updatedAt %v, got %v", now, got.UpdatedAt)
	}
	if len(publisher.events) != 1 || publisher.events[0].Name != events.EventDiscountRetyped {
		t.Fatalf("expected discount retyped event, got %+v", publisher.events)
	}
}

func TestDiscountServiceCreateAssignsIDAndDefaults(t *testing.T) {
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	var inserted domain.Discount

	repo := &stubDiscountRepository{
		insertFunc: func(ctx context.Context, discount domain.Discount) (domain.Discount, error) {
			inserted = discount
			return discount, nil
		},
	}

	service, err := NewDiscountService(DiscountServiceDeps{
		Repository:      repo,
		Clock:           func() time.Time { return now },
		DefaultCurrency: "TRY",
		IDGenerator:     func() string { return "disc-generated" },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing discount service: %v", err)
	}

	got, err := service.CreateDiscount(context.Background(), UpsertDiscountCommand{
		Discount: Discount{Type: domain.DiscountPercentage, Title: "Launch", Value: 10},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inserted.ID != "disc-generated" {
		t.Fatalf("expected generated id, got %q", inserted.ID)
	}
	if len(got.Currencies) != 1 || got.Currencies[0] != "TRY" {
		t.Fatalf("expected default currencies, got %+v", got.Currencies)
	}
	if !got.IsAllProducts || !got.IsAllCustomers {
		t.Fatalf("expected unscoped defaults, got %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("expected createdAt %v, got %v", now, got.CreatedAt)
	}
}

func TestDiscountServiceCreateRejectsUnknownType(t *testing.T) {
	service, err := NewDiscountService(DiscountServiceDeps{
		Repository: &stubDiscountRepository{},
		Clock:      time.Now,
	})
	if err != nil {
		t.Fatalf("unexpected error constructing discount service: %v", err)
	}

	_, err = service.CreateDiscount(context.Background(), UpsertDiscountCommand{
		Discount: Discount{Type: "MYSTERY", Title: "Promo"},
	})
	if !errors.Is(err, ErrDiscountUnknownType) {
		t.Fatalf("expected ErrDiscountUnknownType, got %v", err)
	}
}

func TestDiscountServiceGetTranslatesNotFound(t *testing.T) {
	service, err := NewDiscountService(DiscountServiceDeps{
		Repository: &stubDiscountRepository{},
		Clock:      time.Now,
	})
	if err != nil {
		t.Fatalf("unexpected error constructing discount service: %v", err)
	}

	if _, err := service.GetDiscount(context.Background(), "missing"); !errors.Is(err, ErrDiscountNotFound) {
		t.Fatalf("expected ErrDiscountNotFound, got %v", err)
	}
}
