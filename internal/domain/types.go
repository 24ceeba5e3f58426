package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// CartLine stores a single purchasable entry within a cart. DiscountedUnitPrice
// is nil when no discount applies to the line.
type CartLine struct {
	ItemID              string
	ProductID           string
	VariantID           string
	Quantity            int
	UnitPrice           float64
	DiscountedUnitPrice *float64
	Weight              float64
	Currency            string
	AddedAt             time.Time
}

// Cart aggregates the mutable shopping cart state for a session. The Total*
// fields are derived wholesale from Items on every mutation and are never
// updated incrementally.
type Cart struct {
	ID            string
	SessionID     string
	Currency      string
	Items         []CartLine
	TotalItems    int
	TotalAmount   float64
	TotalDiscount float64
	TotalProducts int
	Metadata      map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CountryType scopes a zone location to a whole country, specific states, or
// specific cities.
type CountryType string

const (
	// CountryTypeNone matches the whole country regardless of state or city.
	CountryTypeNone CountryType = "NONE"
	// CountryTypeState restricts the location to the listed states.
	CountryTypeState CountryType = "STATE"
	// CountryTypeCity restricts the location to the listed cities.
	CountryTypeCity CountryType = "CITY"
)

// Location describes where a cargo zone applies. Fields not matching
// CountryType must be empty (validated at the write path).
type Location struct {
	CountryID   string
	CountryType CountryType
	StateIDs    []string
	CityIDs     []string
}

// Destination identifies the delivery target used during zone selection.
type Destination struct {
	CountryID string
	StateID   string
	CityID    string
}

// CargoCondition selects the cart metric a rule is evaluated against.
type CargoCondition string

const (
	// ConditionProductWeight matches rules against the cart's aggregate weight.
	ConditionProductWeight CargoCondition = "PRODUCT_WEIGHT"
	// ConditionSalesPrice matches rules against the cart's sales subtotal.
	ConditionSalesPrice CargoCondition = "SALES_PRICE"
)

// CargoRule prices shipping for carts whose metric falls within the
// [MinValue, MaxValue] interval. A nil bound is unbounded on that side; zero
// bounds are normalised to nil at persistence time.
type CargoRule struct {
	ID            string
	Name          string
	Currency      string
	Price         float64
	ConditionType CargoCondition
	MinValue      *float64
	MaxValue      *float64
}

// CargoZone aggregates the locations a shipping zone covers and the rules
// that price deliveries into it.
type CargoZone struct {
	ID        string
	Name      string
	Locations []Location
	Rules     []CargoRule
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ZoneSelection controls how overlapping zones are disambiguated when more
// than one zone covers a destination.
type ZoneSelection string

const (
	// ZoneSelectFirstMatch picks the first zone in list order that covers the
	// destination.
	ZoneSelectFirstMatch ZoneSelection = "first_match"
	// ZoneSelectMostSpecific prefers a city-level match over a state-level
	// match over a country-level match.
	ZoneSelectMostSpecific ZoneSelection = "most_specific"
)

// VariantOption is a single choice on a variation axis (e.g. "Red").
type VariantOption struct {
	ID   string
	Name string
}

// VariantGroup represents one axis of product variation (e.g. "Color").
type VariantGroup struct {
	ID      string
	Name    string
	Options []VariantOption
}

// VariantSelection pins one option of one group inside a combination.
type VariantSelection struct {
	GroupID  string
	OptionID string
}

// CombinationPrice stores a per-currency price entry for a combination.
type CombinationPrice struct {
	Currency        string
	Price           float64
	DiscountedPrice *float64
}

// CombinationTranslation stores localised presentation text for a combination.
type CombinationTranslation struct {
	Locale      string
	Title       string
	Description string
}

// VariantCombination is one point in the Cartesian product of a product's
// variant groups. Combinations are regenerated whenever the group set
// changes; surviving combinations keep their commercial data.
type VariantCombination struct {
	ID           string
	ProductID    string
	Selections   []VariantSelection
	SKU          string
	Barcode      *string
	Prices       []CombinationPrice
	Stock        int
	Active       bool
	Translations []CombinationTranslation
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DiscountType discriminates the discount tagged union.
type DiscountType string

const (
	DiscountPercentage             DiscountType = "PERCENTAGE"
	DiscountPercentageGrowQuantity DiscountType = "PERCENTAGE_GROW_QUANTITY"
	DiscountPercentageGrowPrice    DiscountType = "PERCENTAGE_GROW_PRICE"
	DiscountFixedAmount            DiscountType = "FIXED_AMOUNT"
	DiscountFixedAmountGrowQty     DiscountType = "FIXED_AMOUNT_GROW_QUANTITY"
	DiscountFixedAmountGrowPrice   DiscountType = "FIXED_AMOUNT_GROW_PRICE"
	DiscountFreeShipping           DiscountType = "FREE_SHIPPING"
	DiscountBuyXGetY               DiscountType = "BUY_X_GET_Y"
)

// DiscountTier is one step of a growing discount: once the cart reaches
// MinValue (units or amount depending on the discount type), Value applies.
type DiscountTier struct {
	MinValue float64
	Value    float64
}

// Discount is a tagged union keyed by Type. The common fields survive a type
// change; the type-specific payload (Value, Amount, or Tiers) is reset when
// the type changes.
type Discount struct {
	ID   string
	Type DiscountType

	Title            string
	Description      string
	StartsAt         *time.Time
	EndsAt           *time.Time
	UsageLimit       *int
	PerCustomerLimit *int
	MinCartAmount    *float64
	MinCartQuantity  *int
	IsAllProducts    bool
	ProductIDs       []string
	IsAllCustomers   bool
	CustomerGroupIDs []string
	Currencies       []string
	Active           bool

	// Type-specific payload. Exactly one of the following carries meaning for
	// a given Type; the others stay at their zero value.
	Value  float64
	Amount float64
	Tiers  []DiscountTier

	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but the service keeps running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
