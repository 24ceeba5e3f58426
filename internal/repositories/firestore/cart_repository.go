package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/storelift/api/internal/domain"
	pfirestore "github.com/storelift/api/internal/platform/firestore"
	"github.com/storelift/api/internal/repositories"
)

const cartCollection = "carts"

// CartRepository persists carts with their embedded lines in Firestore.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil)
	return &CartRepository{base: base, provider: provider}, nil
}

// Get loads the cart for the given ID.
func (r *CartRepository) Get(ctx context.Context, cartID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	id := strings.TrimSpace(cartID)
	if id == "" {
		return domain.Cart{}, errors.New("cart repository: cart id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Cart{}, err
	}
	return doc.Data.toDomain(doc.ID, doc.CreateTime, doc.UpdateTime), nil
}

// Save upserts the cart document, lines and totals included.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	id := strings.TrimSpace(cart.ID)
	if id == "" {
		return domain.Cart{}, errors.New("cart repository: cart id is required")
	}

	now := time.Now().UTC()
	if !cart.UpdatedAt.IsZero() {
		now = cart.UpdatedAt.UTC()
	}
	createdAt := cart.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := newCartDocument(cart, createdAt, now)
	result, err := r.base.Set(ctx, id, doc)
	if err != nil {
		return domain.Cart{}, err
	}

	saved := doc.toDomain(id, createdAt, result.UpdateTime)
	return saved, nil
}

// Delete removes the cart document.
func (r *CartRepository) Delete(ctx context.Context, cartID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	id := strings.TrimSpace(cartID)
	if id == "" {
		return errors.New("cart repository: cart id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("carts.delete", err)
	}
	return nil
}

type cartDocument struct {
	SessionID     string             `firestore:"sessionId,omitempty"`
	Currency      string             `firestore:"currency"`
	Items         []cartLineDocument `firestore:"items"`
	TotalItems    int                `firestore:"totalItems"`
	TotalAmount   float64            `firestore:"totalAmount"`
	TotalDiscount float64            `firestore:"totalDiscount"`
	TotalProducts int                `firestore:"totalProducts"`
	Metadata      map[string]any     `firestore:"metadata,omitempty"`
	CreatedAt     time.Time          `firestore:"createdAt"`
	UpdatedAt     time.Time          `firestore:"updatedAt"`
}

type cartLineDocument struct {
	ItemID              string    `firestore:"itemId"`
	ProductID           string    `firestore:"productId,omitempty"`
	VariantID           string    `firestore:"variantId,omitempty"`
	Quantity            int       `firestore:"quantity"`
	UnitPrice           float64   `firestore:"unitPrice"`
	DiscountedUnitPrice *float64  `firestore:"discountedUnitPrice,omitempty"`
	Weight              float64   `firestore:"weight,omitempty"`
	Currency            string    `firestore:"currency,omitempty"`
	AddedAt             time.Time `firestore:"addedAt,omitempty"`
}

func newCartDocument(cart domain.Cart, createdAt, updatedAt time.Time) cartDocument {
	items := make([]cartLineDocument, 0, len(cart.Items))
	for _, line := range cart.Items {
		items = append(items, cartLineDocument{
			ItemID:              strings.TrimSpace(line.ItemID),
			ProductID:           strings.TrimSpace(line.ProductID),
			VariantID:           strings.TrimSpace(line.VariantID),
			Quantity:            line.Quantity,
			UnitPrice:           line.UnitPrice,
			DiscountedUnitPrice: line.DiscountedUnitPrice,
			Weight:              line.Weight,
			Currency:            strings.ToUpper(strings.TrimSpace(line.Currency)),
			AddedAt:             line.AddedAt.UTC(),
		})
	}
	return cartDocument{
		SessionID:     strings.TrimSpace(cart.SessionID),
		Currency:      strings.ToUpper(strings.TrimSpace(cart.Currency)),
		Items:         items,
		TotalItems:    cart.TotalItems,
		TotalAmount:   cart.TotalAmount,
		TotalDiscount: cart.TotalDiscount,
		TotalProducts: cart.TotalProducts,
		Metadata:      cloneAnyMap(cart.Metadata),
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
}

func (d cartDocument) toDomain(id string, createTime, updateTime time.Time) domain.Cart {
	items := make([]domain.CartLine, 0, len(d.Items))
	for _, line := range d.Items {
		items = append(items, domain.CartLine{
			ItemID:              line.ItemID,
			ProductID:           line.ProductID,
			VariantID:           line.VariantID,
			Quantity:            line.Quantity,
			UnitPrice:           line.UnitPrice,
			DiscountedUnitPrice: line.DiscountedUnitPrice,
			Weight:              line.Weight,
			Currency:            line.Currency,
			AddedAt:             line.AddedAt,
		})
	}

	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = createTime
	}
	updatedAt := updateTime
	if updatedAt.IsZero() {
		updatedAt = d.UpdatedAt
	}

	return domain.Cart{
		ID:            id,
		SessionID:     d.SessionID,
		Currency:      d.Currency,
		Items:         items,
		TotalItems:    d.TotalItems,
		TotalAmount:   d.TotalAmount,
		TotalDiscount: d.TotalDiscount,
		TotalProducts: d.TotalProducts,
		Metadata:      cloneAnyMap(d.Metadata),
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
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

var _ repositories.CartRepository = (*CartRepository)(nil)
