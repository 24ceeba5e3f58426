package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/storelift/api/internal/domain"
	pfirestore "github.com/storelift/api/internal/platform/firestore"
	"github.com/storelift/api/internal/repositories"
)

const (
	productVariantCollection = "productVariants"
	combinationsSubcol       = "combinations"
)

// VariantRepository persists a product's variant groups and its generated
// combinations. Combinations are keyed by their canonical selection key so a
// regenerated combination lands on the same document as its predecessor.
type VariantRepository struct {
	base     *pfirestore.BaseRepository[productVariantDocument]
	provider *pfirestore.Provider
}

// NewVariantRepository constructs a Firestore-backed variant repository.
func NewVariantRepository(provider *pfirestore.Provider) (*VariantRepository, error) {
	if provider == nil {
		return nil, errors.New("variant repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productVariantDocument](provider, productVariantCollection, nil, nil)
	return &VariantRepository{base: base, provider: provider}, nil
}

// SaveGroups upserts the variant group definitions for a product.
func (r *VariantRepository) SaveGroups(ctx context.Context, productID string, groups []domain.VariantGroup) error {
	if r == nil || r.base == nil {
		return errors.New("variant repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return errors.New("variant repository: product id is required")
	}

	doc := productVariantDocument{
		Groups:    encodeVariantGroups(groups),
		UpdatedAt: time.Now().UTC(),
	}
	_, err := r.base.Set(ctx, id, doc)
	return err
}

// ListGroups returns the stored variant groups for a product. A product with
// no stored groups yields an empty slice, not an error.
func (r *VariantRepository) ListGroups(ctx context.Context, productID string) ([]domain.VariantGroup, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("variant repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return nil, errors.New("variant repository: product id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return []domain.VariantGroup{}, nil
		}
		return nil, err
	}
	return decodeVariantGroups(doc.Data.Groups), nil
}

// ListCombinations returns the product's stored combinations in canonical key order.
func (r *VariantRepository) ListCombinations(ctx context.Context, productID string) ([]domain.VariantCombination, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("variant repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return nil, errors.New("variant repository: product id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	iter := client.Collection(productVariantCollection).Doc(id).
		Collection(combinationsSubcol).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var combos []domain.VariantCombination
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("productVariants.combinations.list", err)
		}
		var doc combinationDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode combination %s: %w", snap.Ref.ID, err)
		}
		combos = append(combos, doc.toDomain(snap.Ref.ID, id, snap.CreateTime, snap.UpdateTime))
	}
	return combos, nil
}

// ReplaceCombinations swaps the product's combination set in one transaction:
// combinations absent from the new set are deleted, the rest upserted under
// their canonical key.
func (r *VariantRepository) ReplaceCombinations(ctx context.Context, productID string, combinations []domain.VariantCombination) ([]domain.VariantCombination, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("variant repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return nil, errors.New("variant repository: product id is required")
	}
	for _, combo := range combinations {
		if strings.TrimSpace(combo.ID) == "" {
			return nil, errors.New("variant repository: combination id is required")
		}
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	productRef := client.Collection(productVariantCollection).Doc(id)
	now := time.Now().UTC()

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		keep := make(map[string]struct{}, len(combinations))
		for _, combo := range combinations {
			keep[combo.ID] = struct{}{}
		}

		comboIter := tx.Documents(productRef.Collection(combinationsSubcol))
		var stale []*firestore.DocumentRef
		created := make(map[string]time.Time)
		for {
			snap, err := comboIter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return err
			}
			if _, ok := keep[snap.Ref.ID]; ok {
				created[snap.Ref.ID] = snap.CreateTime
				continue
			}
			stale = append(stale, snap.Ref)
		}

		for _, ref := range stale {
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		for _, combo := range combinations {
			createdAt := created[combo.ID]
			if createdAt.IsZero() {
				createdAt = now
			}
			doc := newCombinationDocument(combo, createdAt, now)
			if err := tx.Set(productRef.Collection(combinationsSubcol).Doc(combo.ID), doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, pfirestore.WrapError("productVariants.combinations.replace", err)
	}

	return r.ListCombinations(ctx, id)
}

type productVariantDocument struct {
	Groups    []variantGroupDocument `firestore:"groups"`
	UpdatedAt time.Time              `firestore:"updatedAt"`
}

type variantGroupDocument struct {
	GroupID string                  `firestore:"groupId"`
	Name    string                  `firestore:"name,omitempty"`
	Options []variantOptionDocument `firestore:"options"`
}

type variantOptionDocument struct {
	OptionID string `firestore:"optionId"`
	Name     string `firestore:"name"`
}

type combinationDocument struct {
	Selections   []variantSelectionDocument `firestore:"selections"`
	SKU          string                     `firestore:"sku"`
	Barcode      *string                    `firestore:"barcode,omitempty"`
	Prices       []combinationPriceDocument `firestore:"prices"`
	Stock        int                        `firestore:"stock"`
	Active       bool                       `firestore:"active"`
	Translations []translationDocument      `firestore:"translations"`
	CreatedAt    time.Time                  `firestore:"createdAt"`
	UpdatedAt    time.Time                  `firestore:"updatedAt"`
}

type variantSelectionDocument struct {
	GroupID  string `firestore:"groupId"`
	OptionID string `firestore:"optionId"`
}

type combinationPriceDocument struct {
	Currency        string   `firestore:"currency"`
	Price           float64  `firestore:"price"`
	DiscountedPrice *float64 `firestore:"discountedPrice,omitempty"`
}

type translationDocument struct {
	Locale      string `firestore:"locale"`
	Title       string `firestore:"title"`
	Description string `firestore:"description"`
}

func encodeVariantGroups(groups []domain.VariantGroup) []variantGroupDocument {
	out := make([]variantGroupDocument, 0, len(groups))
	for _, group := range groups {
		options := make([]variantOptionDocument, 0, len(group.Options))
		for _, option := range group.Options {
			options = append(options, variantOptionDocument{
				OptionID: strings.TrimSpace(option.ID),
				Name:     strings.TrimSpace(option.Name),
			})
		}
		out = append(out, variantGroupDocument{
			GroupID: strings.TrimSpace(group.ID),
			Name:    strings.TrimSpace(group.Name),
			Options: options,
		})
	}
	return out
}

func decodeVariantGroups(docs []variantGroupDocument) []domain.VariantGroup {
	out := make([]domain.VariantGroup, 0, len(docs))
	for _, doc := range docs {
		options := make([]domain.VariantOption, 0, len(doc.Options))
		for _, option := range doc.Options {
			options = append(options, domain.VariantOption{ID: option.OptionID, Name: option.Name})
		}
		out = append(out, domain.VariantGroup{ID: doc.GroupID, Name: doc.Name, Options: options})
	}
	return out
}

func newCombinationDocument(combo domain.VariantCombination, createdAt, updatedAt time.Time) combinationDocument {
	selections := make([]variantSelectionDocument, 0, len(combo.Selections))
	for _, sel := range combo.Selections {
		selections = append(selections, variantSelectionDocument{
			GroupID:  sel.GroupID,
			OptionID: sel.OptionID,
		})
	}
	prices := make([]combinationPriceDocument, 0, len(combo.Prices))
	for _, price := range combo.Prices {
		prices = append(prices, combinationPriceDocument{
			Currency:        strings.ToUpper(strings.TrimSpace(price.Currency)),
			Price:           price.Price,
			DiscountedPrice: price.DiscountedPrice,
		})
	}
	translations := make([]translationDocument, 0, len(combo.Translations))
	for _, tr := range combo.Translations {
		translations = append(translations, translationDocument{
			Locale:      tr.Locale,
			Title:       tr.Title,
			Description: tr.Description,
		})
	}
	return combinationDocument{
		Selections:   selections,
		SKU:          strings.TrimSpace(combo.SKU),
		Barcode:      combo.Barcode,
		Prices:       prices,
		Stock:        combo.Stock,
		Active:       combo.Active,
		Translations: translations,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
}

func (d combinationDocument) toDomain(id, productID string, createTime, updateTime time.Time) domain.VariantCombination {
	selections := make([]domain.VariantSelection, 0, len(d.Selections))
	for _, sel := range d.Selections {
		selections = append(selections, domain.VariantSelection{GroupID: sel.GroupID, OptionID: sel.OptionID})
	}
	prices := make([]domain.CombinationPrice, 0, len(d.Prices))
	for _, price := range d.Prices {
		prices = append(prices, domain.CombinationPrice{
			Currency:        price.Currency,
			Price:           price.Price,
			DiscountedPrice: price.DiscountedPrice,
		})
	}
	translations := make([]domain.CombinationTranslation, 0, len(d.Translations))
	for _, tr := range d.Translations {
		translations = append(translations, domain.CombinationTranslation{
			Locale:      tr.Locale,
			Title:       tr.Title,
			Description: tr.Description,
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

	return domain.VariantCombination{
		ID:           id,
		ProductID:    productID,
		Selections:   selections,
		SKU:          d.SKU,
		Barcode:      d.Barcode,
		Prices:       prices,
		Stock:        d.Stock,
		Active:       d.Active,
		Translations: translations,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
}

var _ repositories.VariantRepository = (*VariantRepository)(nil)
