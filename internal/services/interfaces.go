package services

import (
	"context"

	domain "github.com/storelift/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination             = domain.Pagination
	Cart                   = domain.Cart
	CartLine               = domain.CartLine
	Location               = domain.Location
	Destination            = domain.Destination
	CargoZone              = domain.CargoZone
	CargoRule              = domain.CargoRule
	CargoCondition         = domain.CargoCondition
	ZoneSelection          = domain.ZoneSelection
	VariantGroup           = domain.VariantGroup
	VariantOption          = domain.VariantOption
	VariantSelection       = domain.VariantSelection
	VariantCombination     = domain.VariantCombination
	CombinationPrice       = domain.CombinationPrice
	CombinationTranslation = domain.CombinationTranslation
	Discount               = domain.Discount
	DiscountType           = domain.DiscountType
	DiscountTier           = domain.DiscountTier
	SystemHealthReport     = domain.SystemHealthReport
)

// CartService loads carts and recalculates their aggregate totals whenever the
// line set changes.
type CartService interface {
	GetCart(ctx context.Context, cartID string) (Cart, error)
	ReplaceLines(ctx context.Context, cmd ReplaceCartLinesCommand) (Cart, error)
	ClearCart(ctx context.Context, cartID string) error
}

// ShippingService resolves shipping prices for carts and manages cargo zones.
type ShippingService interface {
	QuoteCart(ctx context.Context, cmd ShippingQuoteCommand) (ShippingQuote, error)
	CreateZone(ctx context.Context, cmd UpsertZoneCommand) (CargoZone, error)
	ReplaceZone(ctx context.Context, cmd UpsertZoneCommand) (CargoZone, error)
	GetZone(ctx context.Context, zoneID string) (CargoZone, error)
	ListZones(ctx context.Context, pager Pagination) (domain.CursorPage[CargoZone], error)
	DeleteZone(ctx context.Context, zoneID string) error
}

// VariantService manages variant groups per product and derives the
// combination set from them.
type VariantService interface {
	SaveGroups(ctx context.Context, cmd SaveVariantGroupsCommand) ([]VariantCombination, error)
	ListGroups(ctx context.Context, productID string) ([]VariantGroup, error)
	ListCombinations(ctx context.Context, productID string) ([]VariantCombination, error)
	RegenerateCombinations(ctx context.Context, productID string) ([]VariantCombination, error)
}

// DiscountService manages discount records including type migration.
type DiscountService interface {
	CreateDiscount(ctx context.Context, cmd UpsertDiscountCommand) (Discount, error)
	UpdateDiscount(ctx context.Context, cmd UpsertDiscountCommand) (Discount, error)
	GetDiscount(ctx context.Context, discountID string) (Discount, error)
	ListDiscounts(ctx context.Context, pager Pagination) (domain.CursorPage[Discount], error)
	DeleteDiscount(ctx context.Context, discountID string) error
	ChangeType(ctx context.Context, cmd ChangeDiscountTypeCommand) (Discount, error)
}

// SystemService aggregates health reporting for the service.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// Command and DTO definitions ------------------------------------------------

// ReplaceCartLinesCommand swaps the full line set of a cart. The cart is
// created when absent.
type ReplaceCartLinesCommand struct {
	CartID    string
	SessionID string
	Currency  string
	Lines     []CartLine
	Metadata  map[string]any
}

// ShippingQuoteCommand asks for a shipping price for a cart delivered to a
// destination.
type ShippingQuoteCommand struct {
	CartID      string
	Destination Destination
}

// ShippingQuote reports the rule that priced the delivery.
type ShippingQuote struct {
	ZoneID   string
	ZoneName string
	RuleID   string
	RuleName string
	Currency string
	Price    float64
}

// CartMetrics carries the cart aggregates rules are evaluated against.
type CartMetrics struct {
	Weight     float64
	SalesPrice float64
}

// UpsertZoneCommand carries the full desired state of a cargo zone. Replace
// semantics: the stored location and rule set is swapped wholesale.
type UpsertZoneCommand struct {
	ZoneID    string
	Name      string
	Locations []Location
	Rules     []CargoRule
}

// SaveVariantGroupsCommand stores a product's variation axes and regenerates
// its combination set.
type SaveVariantGroupsCommand struct {
	ProductID string
	Groups    []VariantGroup
}

// UpsertDiscountCommand carries a discount create or update payload.
type UpsertDiscountCommand struct {
	Discount Discount
}

// ChangeDiscountTypeCommand switches a stored discount to a new type,
// preserving common fields and resetting the type payload.
type ChangeDiscountTypeCommand struct {
	DiscountID string
	NewType    DiscountType
}
