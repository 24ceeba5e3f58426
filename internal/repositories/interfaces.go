package repositories

import (
	"context"

	domain "github.com/storelift/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartRepository persists carts together with their lines and derived totals.
type CartRepository interface {
	Get(ctx context.Context, cartID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	Delete(ctx context.Context, cartID string) error
}

// CargoZoneRepository stores shipping zones with their locations and rules.
// Replace swaps a zone's entire location and rule set atomically so readers
// never observe a half-written zone.
type CargoZoneRepository interface {
	Insert(ctx context.Context, zone domain.CargoZone) (domain.CargoZone, error)
	Replace(ctx context.Context, zone domain.CargoZone) (domain.CargoZone, error)
	FindByID(ctx context.Context, zoneID string) (domain.CargoZone, error)
	ListAll(ctx context.Context) ([]domain.CargoZone, error)
	List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.CargoZone], error)
	Delete(ctx context.Context, zoneID string) error
}

// VariantRepository persists variant groups and generated combinations per product.
// ReplaceCombinations swaps the product's combination set atomically.
type VariantRepository interface {
	SaveGroups(ctx context.Context, productID string, groups []domain.VariantGroup) error
	ListGroups(ctx context.Context, productID string) ([]domain.VariantGroup, error)
	ListCombinations(ctx context.Context, productID string) ([]domain.VariantCombination, error)
	ReplaceCombinations(ctx context.Context, productID string, combinations []domain.VariantCombination) ([]domain.VariantCombination, error)
}

// DiscountRepository stores discount definitions.
type DiscountRepository interface {
	Insert(ctx context.Context, discount domain.Discount) (domain.Discount, error)
	Update(ctx context.Context, discount domain.Discount) (domain.Discount, error)
	FindByID(ctx context.Context, discountID string) (domain.Discount, error)
	List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Discount], error)
	Delete(ctx context.Context, discountID string) error
}

// HealthRepository aggregates dependency probes for health endpoints.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
