package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/storelift/api/internal/domain"
	"github.com/storelift/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart service cannot fulfil the request due to backend issues.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartNotFound indicates the requested cart does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// CartServiceDeps wires the repository and clock dependencies for cart operations.
type CartServiceDeps struct {
	Repository      repositories.CartRepository
	Clock           func() time.Time
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
	IDGenerator     func() string
}

type cartService struct {
	repo     repositories.CartRepository
	newID    func() string
	now      func() time.Time
	currency string
	logger   func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	defaultCurrency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if defaultCurrency == "" {
		defaultCurrency = "TRY"
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &cartService{
		repo:     deps.Repository,
		newID:    idGen,
		now:      func() time.Time { return deps.Clock().UTC() },
		currency: defaultCurrency,
		logger:   logger,
	}, nil
}

// RecalculateCart derives the cart aggregates wholesale from the supplied
// lines. The input cart is not mutated; the returned value carries the new
// line set and totals. Lines with a discounted unit price contribute to the
// discount total only when the discounted price is strictly below the unit
// price.
func RecalculateCart(cart domain.Cart, lines []domain.CartLine) domain.Cart {
	out := cart
	out.Items = cloneCartLines(lines)
	out.TotalItems = 0
	out.TotalAmount = 0
	out.TotalDiscount = 0
	out.TotalProducts = len(out.Items)

	for _, line := range out.Items {
		out.TotalItems += line.Quantity
		out.TotalAmount += line.UnitPrice * float64(line.Quantity)
		if line.DiscountedUnitPrice != nil && *line.DiscountedUnitPrice < line.UnitPrice {
			out.TotalDiscount += (line.UnitPrice - *line.DiscountedUnitPrice) * float64(line.Quantity)
		}
	}
	return out
}

// CartShippingMetrics aggregates the quantities shipping rules are matched
// against: the summed line weight and the discounted sales subtotal.
func CartShippingMetrics(cart domain.Cart) CartMetrics {
	var metrics CartMetrics
	for _, line := range cart.Items {
		qty := float64(line.Quantity)
		metrics.Weight += line.Weight * qty
		price := line.UnitPrice
		if line.DiscountedUnitPrice != nil && *line.DiscountedUnitPrice < line.UnitPrice {
			price = *line.DiscountedUnitPrice
		}
		metrics.SalesPrice += price * qty
	}
	return metrics
}

func (s *cartService) GetCart(ctx context.Context, cartID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	id := strings.TrimSpace(cartID)
	if id == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.repo.Get(ctx, id)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(cart, id), nil
}

func (s *cartService) ReplaceLines(ctx context.Context, cmd ReplaceCartLinesCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	cartID := strings.TrimSpace(cmd.CartID)
	if cartID == "" {
		return Cart{}, ErrCartInvalidInput
	}

	lines, err := s.sanitiseLines(cmd.Lines)
	if err != nil {
		return Cart{}, err
	}

	cart, err := s.repo.Get(ctx, cartID)
	if err != nil {
		if isRepoNotFound(err) {
			cart = s.newCart(cartID, cmd.SessionID, cmd.Currency)
		} else {
			return Cart{}, s.translateRepoError(err)
		}
	}
	cart = s.normaliseCart(cart, cartID)
	if session := strings.TrimSpace(cmd.SessionID); session != "" {
		cart.SessionID = session
	}
	if len(cmd.Metadata) > 0 {
		cart.Metadata = cloneAnyMap(cmd.Metadata)
	}

	for _, line := range lines {
		if !strings.EqualFold(line.Currency, cart.Currency) {
			return Cart{}, fmt.Errorf("%w: line currency must match cart currency", ErrCartInvalidInput)
		}
	}

	cart = RecalculateCart(cart, lines)
	cart.UpdatedAt = s.now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = cart.UpdatedAt
	}

	saved, err := s.repo.Save(ctx, cart)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}

	s.logger(ctx, "cart.lines_replaced", map[string]any{
		"cartId":     cartID,
		"lineCount":  len(lines),
		"totalItems": saved.TotalItems,
	})
	return s.normaliseCart(saved, cartID), nil
}

func (s *cartService) ClearCart(ctx context.Context, cartID string) error {
	if s == nil || s.repo == nil {
		return ErrCartUnavailable
	}

	id := strings.TrimSpace(cartID)
	if id == "" {
		return ErrCartInvalidInput
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *cartService) sanitiseLines(lines []CartLine) ([]domain.CartLine, error) {
	out := make([]domain.CartLine, 0, len(lines))
	now := s.now()
	for _, line := range lines {
		line.ProductID = strings.TrimSpace(line.ProductID)
		if line.ProductID == "" {
			return nil, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be greater than zero", ErrCartInvalidInput)
		}
		if line.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: unit price must be non-negative", ErrCartInvalidInput)
		}
		if line.DiscountedUnitPrice != nil && *line.DiscountedUnitPrice > line.UnitPrice {
			return nil, fmt.Errorf("%w: discounted price may not exceed unit price", ErrCartInvalidInput)
		}
		if line.Weight < 0 {
			return nil, fmt.Errorf("%w: weight must be non-negative", ErrCartInvalidInput)
		}
		line.ItemID = strings.TrimSpace(line.ItemID)
		if line.ItemID == "" {
			line.ItemID = strings.TrimSpace(s.newID())
		}
		line.Currency = strings.ToUpper(strings.TrimSpace(line.Currency))
		if line.Currency == "" {
			line.Currency = s.currency
		}
		if line.AddedAt.IsZero() {
			line.AddedAt = now
		}
		out = append(out, line)
	}
	return out, nil
}

func (s *cartService) newCart(cartID, sessionID, currency string) domain.Cart {
	now := s.now()
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = s.currency
	}
	return domain.Cart{
		ID:        cartID,
		SessionID: strings.TrimSpace(sessionID),
		Currency:  code,
		Items:     []domain.CartLine{},
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *cartService) normaliseCart(cart domain.Cart, cartID string) domain.Cart {
	if cart.ID = strings.TrimSpace(cart.ID); cart.ID == "" {
		cart.ID = cartID
	}
	cart.Currency = strings.ToUpper(strings.TrimSpace(cart.Currency))
	if cart.Currency == "" {
		cart.Currency = s.currency
	}
	if cart.Items == nil {
		cart.Items = []domain.CartLine{}
	}
	if cart.Metadata == nil {
		cart.Metadata = map[string]any{}
	}
	return cart
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartNotFound
		}
		return ErrCartUnavailable
	}
	return ErrCartUnavailable
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func cloneCartLines(lines []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	for i := range out {
		if out[i].DiscountedUnitPrice != nil {
			dup := *out[i].DiscountedUnitPrice
			out[i].DiscountedUnitPrice = &dup
		}
	}
	return out
}

func cloneAnyMap(values map[string]any) map[string]any {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
