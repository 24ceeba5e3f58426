package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/storelift/api/internal/domain"
	"github.com/storelift/api/internal/platform/events"
	"github.com/storelift/api/internal/repositories"
)

var (
	errDiscountRepositoryRequired = errors.New("discount service: repository is required")
	errDiscountClockRequired      = errors.New("discount service: clock is required")
)

// ErrDiscountInvalidInput indicates the caller supplied invalid input.
var ErrDiscountInvalidInput = errors.New("discount service: invalid input")

// ErrDiscountUnavailable indicates the discount service cannot fulfil the request due to backend issues.
var ErrDiscountUnavailable = errors.New("discount service: unavailable")

// ErrDiscountNotFound indicates the requested discount does not exist.
var ErrDiscountNotFound = errors.New("discount service: not found")

// ErrDiscountConflict indicates the discount already exists or was modified concurrently.
var ErrDiscountConflict = errors.New("discount service: conflict")

// ErrDiscountUnknownType indicates the supplied discount type is not part of the union.
var ErrDiscountUnknownType = errors.New("discount service: unknown discount type")

// DiscountServiceDeps wires the repository and eventing used by discount operations.
type DiscountServiceDeps struct {
	Repository      repositories.DiscountRepository
	Publisher       events.Publisher
	Clock           func() time.Time
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
	IDGenerator     func() string
}

type discountService struct {
	repo      repositories.DiscountRepository
	publisher events.Publisher
	currency  string
	newID     func() string
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewDiscountService constructs a DiscountService enforcing dependency validation.
func NewDiscountService(deps DiscountServiceDeps) (DiscountService, error) {
	if deps.Repository == nil {
		return nil, errDiscountRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errDiscountClockRequired
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "TRY"
	}

	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &discountService{
		repo:      deps.Repository,
		publisher: publisher,
		currency:  currency,
		newID:     idGen,
		now:       func() time.Time { return deps.Clock().UTC() },
		logger:    logger,
	}, nil
}

// RetypeDiscount reshapes a discount to a new type. The common field set is
// copied with defaults filled in for absent values; the prior type payload is
// discarded and the new type's payload starts fresh (zeroed scalar or empty
// tier list). The input value is not mutated.
func RetypeDiscount(current domain.Discount, newType domain.DiscountType) (domain.Discount, error) {
	out := current
	out.Type = newType

	if !out.IsAllProducts && len(out.ProductIDs) == 0 {
		out.IsAllProducts = true
	}
	if !out.IsAllCustomers && len(out.CustomerGroupIDs) == 0 {
		out.IsAllCustomers = true
	}
	if len(out.Currencies) == 0 {
		out.Currencies = []string{"TRY"}
	} else {
		currencies := make([]string, len(out.Currencies))
		copy(currencies, out.Currencies)
		out.Currencies = currencies
	}

	out.Value = 0
	out.Amount = 0
	out.Tiers = nil

	switch newType {
	case domain.DiscountPercentage,
		domain.DiscountFixedAmount,
		domain.DiscountFreeShipping,
		domain.DiscountBuyXGetY:
		// Flat types carry a zeroed scalar or no payload at all.
	case domain.DiscountPercentageGrowQuantity,
		domain.DiscountPercentageGrowPrice,
		domain.DiscountFixedAmountGrowQty,
		domain.DiscountFixedAmountGrowPrice:
		out.Tiers = []domain.DiscountTier{}
	default:
		return domain.Discount{}, fmt.Errorf("%w: %q", ErrDiscountUnknownType, newType)
	}
	return out, nil
}

func (s *discountService) CreateDiscount(ctx context.Context, cmd UpsertDiscountCommand) (Discount, error) {
	if s == nil || s.repo == nil {
		return Discount{}, ErrDiscountUnavailable
	}

	discount, err := s.sanitiseDiscount(cmd.Discount, true)
	if err != nil {
		return Discount{}, err
	}

	saved, err := s.repo.Insert(ctx, discount)
	if err != nil {
		return Discount{}, s.translateRepoError(err)
	}
	return saved, nil
}

func (s *discountService) UpdateDiscount(ctx context.Context, cmd UpsertDiscountCommand) (Discount, error) {
	if s == nil || s.repo == nil {
		return Discount{}, ErrDiscountUnavailable
	}

	discount, err := s.sanitiseDiscount(cmd.Discount, false)
	if err != nil {
		return Discount{}, err
	}

	current, err := s.repo.FindByID(ctx, discount.ID)
	if err != nil {
		return Discount{}, s.translateRepoError(err)
	}
	discount.CreatedAt = current.CreatedAt

	saved, err := s.repo.Update(ctx, discount)
	if err != nil {
		return Discount{}, s.translateRepoError(err)
	}
	return saved, nil
}

func (s *discountService) GetDiscount(ctx context.Context, discountID string) (Discount, error) {
	if s == nil || s.repo == nil {
		return Discount{}, ErrDiscountUnavailable
	}

	id := strings.TrimSpace(discountID)
	if id == "" {
		return Discount{}, ErrDiscountInvalidInput
	}

	discount, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Discount{}, s.translateRepoError(err)
	}
	return discount, nil
}

func (s *discountService) ListDiscounts(ctx context.Context, pager Pagination) (domain.CursorPage[Discount], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[Discount]{}, ErrDiscountUnavailable
	}

	page, err := s.repo.List(ctx, pager)
	if err != nil {
		return domain.CursorPage[Discount]{}, s.translateRepoError(err)
	}
	return page, nil
}

func (s *discountService) DeleteDiscount(ctx context.Context, discountID string) error {
	if s == nil || s.repo == nil {
		return ErrDiscountUnavailable
	}

	id := strings.TrimSpace(discountID)
	if id == "" {
		return ErrDiscountInvalidInput
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *discountService) ChangeType(ctx context.Context, cmd ChangeDiscountTypeCommand) (Discount, error) {
	if s == nil || s.repo == nil {
		return Discount{}, ErrDiscountUnavailable
	}

	id := strings.TrimSpace(cmd.DiscountID)
	if id == "" {
		return Discount{}, ErrDiscountInvalidInput
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Discount{}, s.translateRepoError(err)
	}

	previousType := current.Type
	reshaped, err := RetypeDiscount(current, cmd.NewType)
	if err != nil {
		return Discount{}, err
	}
	reshaped.UpdatedAt = s.now()

	saved, err := s.repo.Update(ctx, reshaped)
	if err != nil {
		return Discount{}, s.translateRepoError(err)
	}

	payload, _ := json.Marshal(map[string]any{
		"discountId":   saved.ID,
		"previousType": previousType,
		"newType":      saved.Type,
	})
	if _, err := s.publisher.Publish(ctx, events.Event{
		Name:      events.EventDiscountRetyped,
		SubjectID: saved.ID,
		Payload:   payload,
		Attributes: map[string]string{
			"previousType": string(previousType),
			"newType":      string(saved.Type),
		},
	}); err != nil {
		s.logger(ctx, "discounts.publish_failed", map[string]any{
			"discountId": saved.ID,
			"error":      err.Error(),
		})
	}

	return saved, nil
}

func (s *discountService) sanitiseDiscount(discount Discount, assignID bool) (domain.Discount, error) {
	discount.Title = strings.TrimSpace(discount.Title)
	if discount.Title == "" {
		return domain.Discount{}, fmt.Errorf("%w: title is required", ErrDiscountInvalidInput)
	}

	switch discount.Type {
	case domain.DiscountPercentage,
		domain.DiscountPercentageGrowQuantity,
		domain.DiscountPercentageGrowPrice,
		domain.DiscountFixedAmount,
		domain.DiscountFixedAmountGrowQty,
		domain.DiscountFixedAmountGrowPrice,
		domain.DiscountFreeShipping,
		domain.DiscountBuyXGetY:
	default:
		return domain.Discount{}, fmt.Errorf("%w: %q", ErrDiscountUnknownType, discount.Type)
	}

	if discount.StartsAt != nil && discount.EndsAt != nil && discount.EndsAt.Before(*discount.StartsAt) {
		return domain.Discount{}, fmt.Errorf("%w: end date precedes start date", ErrDiscountInvalidInput)
	}

	if len(discount.Currencies) == 0 {
		discount.Currencies = []string{s.currency}
	}
	if !discount.IsAllProducts && len(discount.ProductIDs) == 0 {
		discount.IsAllProducts = true
	}
	if !discount.IsAllCustomers && len(discount.CustomerGroupIDs) == 0 {
		discount.IsAllCustomers = true
	}

	discount.ID = strings.TrimSpace(discount.ID)
	if discount.ID == "" {
		if !assignID {
			return domain.Discount{}, fmt.Errorf("%w: discount id is required", ErrDiscountInvalidInput)
		}
		discount.ID = s.newID()
	}

	now := s.now()
	if assignID {
		discount.CreatedAt = now
	}
	discount.UpdatedAt = now
	return discount, nil
}

func (s *discountService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrDiscountNotFound
		case repoErr.IsConflict():
			return ErrDiscountConflict
		}
		return ErrDiscountUnavailable
	}
	return ErrDiscountUnavailable
}
