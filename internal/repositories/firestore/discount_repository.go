package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/storelift/api/internal/domain"
	pfirestore "github.com/storelift/api/internal/platform/firestore"
	"github.com/storelift/api/internal/repositories"
)

const discountCollection = "discounts"

// DiscountRepository persists discount definitions in Firestore.
type DiscountRepository struct {
	base     *pfirestore.BaseRepository[discountDocument]
	provider *pfirestore.Provider
}

// NewDiscountRepository constructs a Firestore-backed discount repository.
func NewDiscountRepository(provider *pfirestore.Provider) (*DiscountRepository, error) {
	if provider == nil {
		return nil, errors.New("discount repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[discountDocument](provider, discountCollection, nil, nil)
	return &DiscountRepository{base: base, provider: provider}, nil
}

// Insert creates the discount document. Fails when the ID is already taken.
func (r *DiscountRepository) Insert(ctx context.Context, discount domain.Discount) (domain.Discount, error) {
	if r == nil || r.base == nil {
		return domain.Discount{}, errors.New("discount repository not initialised")
	}
	id := strings.TrimSpace(discount.ID)
	if id == "" {
		return domain.Discount{}, errors.New("discount repository: discount id is required")
	}

	now := time.Now().UTC()
	doc := newDiscountDocument(discount, now, now)

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return domain.Discount{}, err
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return domain.Discount{}, pfirestore.WrapError("discounts.insert", err)
	}
	return doc.toDomain(id, now, now), nil
}

// Update overwrites the discount document.
func (r *DiscountRepository) Update(ctx context.Context, discount domain.Discount) (domain.Discount, error) {
	if r == nil || r.base == nil {
		return domain.Discount{}, errors.New("discount repository not initialised")
	}
	id := strings.TrimSpace(discount.ID)
	if id == "" {
		return domain.Discount{}, errors.New("discount repository: discount id is required")
	}

	now := time.Now().UTC()
	createdAt := discount.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	doc := newDiscountDocument(discount, createdAt, now)

	result, err := r.base.Set(ctx, id, doc)
	if err != nil {
		return domain.Discount{}, err
	}
	return doc.toDomain(id, createdAt, result.UpdateTime), nil
}

// FindByID loads a discount by ID.
func (r *DiscountRepository) FindByID(ctx context.Context, discountID string) (domain.Discount, error) {
	if r == nil || r.base == nil {
		return domain.Discount{}, errors.New("discount repository not initialised")
	}
	id := strings.TrimSpace(discountID)
	if id == "" {
		return domain.Discount{}, errors.New("discount repository: discount id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Discount{}, err
	}
	return doc.Data.toDomain(doc.ID, doc.CreateTime, doc.UpdateTime), nil
}

// List returns a page of discounts ordered by creation time descending.
func (r *DiscountRepository) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Discount], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Discount]{}, errors.New("discount repository not initialised")
	}

	limit := pager.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(pager.PageToken); token != "" {
		tokenTime, tokenID, err := decodeCursorToken(token)
		if err != nil {
			return domain.CursorPage[domain.Discount]{}, fmt.Errorf("discount repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Discount]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		docs = docs[:limit]
		last := docs[len(docs)-1]
		tokenTime := last.Data.CreatedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = encodeCursorToken(tokenTime, last.ID)
	}

	items := make([]domain.Discount, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(doc.ID, doc.CreateTime, doc.UpdateTime))
	}

	return domain.CursorPage[domain.Discount]{Items: items, NextPageToken: nextToken}, nil
}

// Delete removes the discount document.
func (r *DiscountRepository) Delete(ctx context.Context, discountID string) error {
	if r == nil || r.base == nil {
		return errors.New("discount repository not initialised")
	}
	id := strings.TrimSpace(discountID)
	if id == "" {
		return errors.New("discount repository: discount id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("discounts.delete", err)
	}
	return nil
}

type discountDocument struct {
	Type             string                 `firestore:"type"`
	Title            string                 `firestore:"title"`
	Description      string                 `firestore:"description,omitempty"`
	StartsAt         *time.Time             `firestore:"startsAt,omitempty"`
	EndsAt           *time.Time             `firestore:"endsAt,omitempty"`
	UsageLimit       *int                   `firestore:"usageLimit,omitempty"`
	PerCustomerLimit *int                   `firestore:"perCustomerLimit,omitempty"`
	MinCartAmount    *float64               `firestore:"minCartAmount,omitempty"`
	MinCartQuantity  *int                   `firestore:"minCartQuantity,omitempty"`
	IsAllProducts    bool                   `firestore:"isAllProducts"`
	ProductIDs       []string               `firestore:"productIds,omitempty"`
	IsAllCustomers   bool                   `firestore:"isAllCustomers"`
	CustomerGroupIDs []string               `firestore:"customerGroupIds,omitempty"`
	Currencies       []string               `firestore:"currencies"`
	Active           bool                   `firestore:"active"`
	Value            float64                `firestore:"value"`
	Amount           float64                `firestore:"amount"`
	Tiers            []discountTierDocument `firestore:"tiers,omitempty"`
	CreatedAt        time.Time              `firestore:"createdAt"`
	UpdatedAt        time.Time              `firestore:"updatedAt"`
}

type discountTierDocument struct {
	MinValue float64 `firestore:"minValue"`
	Value    float64 `firestore:"value"`
}

func newDiscountDocument(discount domain.Discount, createdAt, updatedAt time.Time) discountDocument {
	tiers := make([]discountTierDocument, 0, len(discount.Tiers))
	for _, tier := range discount.Tiers {
		tiers = append(tiers, discountTierDocument{MinValue: tier.MinValue, Value: tier.Value})
	}
	currencies := append([]string(nil), discount.Currencies...)
	for i, currency := range currencies {
		currencies[i] = strings.ToUpper(strings.TrimSpace(currency))
	}
	return discountDocument{
		Type:             string(discount.Type),
		Title:            strings.TrimSpace(discount.Title),
		Description:      strings.TrimSpace(discount.Description),
		StartsAt:         utcTimePtr(discount.StartsAt),
		EndsAt:           utcTimePtr(discount.EndsAt),
		UsageLimit:       discount.UsageLimit,
		PerCustomerLimit: discount.PerCustomerLimit,
		MinCartAmount:    discount.MinCartAmount,
		MinCartQuantity:  discount.MinCartQuantity,
		IsAllProducts:    discount.IsAllProducts,
		ProductIDs:       append([]string(nil), discount.ProductIDs...),
		IsAllCustomers:   discount.IsAllCustomers,
		CustomerGroupIDs: append([]string(nil), discount.CustomerGroupIDs...),
		Currencies:       currencies,
		Active:           discount.Active,
		Value:            discount.Value,
		Amount:           discount.Amount,
		Tiers:            tiers,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}
}

func (d discountDocument) toDomain(id string, createTime, updateTime time.Time) domain.Discount {
	tiers := make([]domain.DiscountTier, 0, len(d.Tiers))
	for _, tier := range d.Tiers {
		tiers = append(tiers, domain.DiscountTier{MinValue: tier.MinValue, Value: tier.Value})
	}

	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = createTime
	}
	updatedAt := updateTime
	if updatedAt.IsZero() {
		updatedAt = d.UpdatedAt
	}

	return domain.Discount{
		ID:               id,
		Type:             domain.DiscountType(d.Type),
		Title:            d.Title,
		Description:      d.Description,
		StartsAt:         d.StartsAt,
		EndsAt:           d.EndsAt,
		UsageLimit:       d.UsageLimit,
		PerCustomerLimit: d.PerCustomerLimit,
		MinCartAmount:    d.MinCartAmount,
		MinCartQuantity:  d.MinCartQuantity,
		IsAllProducts:    d.IsAllProducts,
		ProductIDs:       append([]string(nil), d.ProductIDs...),
		IsAllCustomers:   d.IsAllCustomers,
		CustomerGroupIDs: append([]string(nil), d.CustomerGroupIDs...),
		Currencies:       append([]string(nil), d.Currencies...),
		Active:           d.Active,
		Value:            d.Value,
		Amount:           d.Amount,
		Tiers:            tiers,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}
}

func utcTimePtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := value.UTC()
	return &v
}

var _ repositories.DiscountRepository = (*DiscountRepository)(nil)
