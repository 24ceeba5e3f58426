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
	cargoZoneCollection     = "cargoZones"
	cargoZoneRulesSubcol    = "rules"
	cargoZoneListFetchLimit = 500
)

// CargoZoneRepository persists shipping zones. Zone headers carry the covered
// locations inline; pricing rules live in a per-zone subcollection so a
// replace can swap the whole rule set in one transaction.
type CargoZoneRepository struct {
	base     *pfirestore.BaseRepository[cargoZoneDocument]
	provider *pfirestore.Provider
}

// NewCargoZoneRepository constructs a Firestore-backed cargo zone repository.
func NewCargoZoneRepository(provider *pfirestore.Provider) (*CargoZoneRepository, error) {
	if provider == nil {
		return nil, errors.New("cargo zone repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cargoZoneDocument](provider, cargoZoneCollection, nil, nil)
	return &CargoZoneRepository{base: base, provider: provider}, nil
}

// Insert creates the zone header and its rules. Fails when the zone already exists.
func (r *CargoZoneRepository) Insert(ctx context.Context, zone domain.CargoZone) (domain.CargoZone, error) {
	if r == nil || r.provider == nil {
		return domain.CargoZone{}, errors.New("cargo zone repository not initialised")
	}
	id := strings.TrimSpace(zone.ID)
	if id == "" {
		return domain.CargoZone{}, errors.New("cargo zone repository: zone id is required")
	}

	now := time.Now().UTC()
	header, rules := encodeCargoZone(zone, now, now)

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CargoZone{}, err
	}

	zoneRef := client.Collection(cargoZoneCollection).Doc(id)
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(zoneRef, header); err != nil {
			return err
		}
		for ruleID, rule := range rules {
			if err := tx.Create(zoneRef.Collection(cargoZoneRulesSubcol).Doc(ruleID), rule); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.CargoZone{}, pfirestore.WrapError("cargoZones.insert", err)
	}

	return r.FindByID(ctx, id)
}

// Replace atomically swaps the zone's locations and rule set. Every existing
// rule is deleted and the new set written inside a single transaction, so a
// concurrent reader sees either the old zone or the new one.
func (r *CargoZoneRepository) Replace(ctx context.Context, zone domain.CargoZone) (domain.CargoZone, error) {
	if r == nil || r.provider == nil {
		return domain.CargoZone{}, errors.New("cargo zone repository not initialised")
	}
	id := strings.TrimSpace(zone.ID)
	if id == "" {
		return domain.CargoZone{}, errors.New("cargo zone repository: zone id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CargoZone{}, err
	}

	zoneRef := client.Collection(cargoZoneCollection).Doc(id)
	now := time.Now().UTC()

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(zoneRef)
		if err != nil {
			return err
		}
		var existing cargoZoneDocument
		if err := snap.DataTo(&existing); err != nil {
			return fmt.Errorf("decode cargo zone %s: %w", id, err)
		}

		// Reads must precede writes within a Firestore transaction.
		ruleIter := tx.Documents(zoneRef.Collection(cargoZoneRulesSubcol))
		var staleRules []*firestore.DocumentRef
		for {
			ruleSnap, err := ruleIter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return err
			}
			staleRules = append(staleRules, ruleSnap.Ref)
		}

		createdAt := existing.CreatedAt
		if createdAt.IsZero() {
			createdAt = snap.CreateTime
		}
		header, rules := encodeCargoZone(zone, createdAt, now)

		for _, ref := range staleRules {
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		if err := tx.Set(zoneRef, header); err != nil {
			return err
		}
		for ruleID, rule := range rules {
			if err := tx.Set(zoneRef.Collection(cargoZoneRulesSubcol).Doc(ruleID), rule); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.CargoZone{}, pfirestore.WrapError("cargoZones.replace", err)
	}

	return r.FindByID(ctx, id)
}

// FindByID loads the zone header and its rules.
func (r *CargoZoneRepository) FindByID(ctx context.Context, zoneID string) (domain.CargoZone, error) {
	if r == nil || r.base == nil {
		return domain.CargoZone{}, errors.New("cargo zone repository not initialised")
	}
	id := strings.TrimSpace(zoneID)
	if id == "" {
		return domain.CargoZone{}, errors.New("cargo zone repository: zone id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.CargoZone{}, err
	}

	rules, err := r.loadRules(ctx, id)
	if err != nil {
		return domain.CargoZone{}, err
	}

	return doc.Data.toDomain(doc.ID, rules, doc.CreateTime, doc.UpdateTime), nil
}

// ListAll returns every zone with its rules, ordered by creation time. The
// zone matcher evaluates zones in this order.
func (r *CargoZoneRepository) ListAll(ctx context.Context) ([]domain.CargoZone, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("cargo zone repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Asc).Limit(cargoZoneListFetchLimit)
	})
	if err != nil {
		return nil, err
	}

	zones := make([]domain.CargoZone, 0, len(docs))
	for _, doc := range docs {
		rules, err := r.loadRules(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		zones = append(zones, doc.Data.toDomain(doc.ID, rules, doc.CreateTime, doc.UpdateTime))
	}
	return zones, nil
}

// List returns a page of zones ordered by creation time descending.
func (r *CargoZoneRepository) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.CargoZone], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.CargoZone]{}, errors.New("cargo zone repository not initialised")
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
			return domain.CursorPage[domain.CargoZone]{}, fmt.Errorf("cargo zone repository: invalid page token: %w", err)
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
		return domain.CursorPage[domain.CargoZone]{}, err
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

	items := make([]domain.CargoZone, 0, len(docs))
	for _, doc := range docs {
		rules, err := r.loadRules(ctx, doc.ID)
		if err != nil {
			return domain.CursorPage[domain.CargoZone]{}, err
		}
		items = append(items, doc.Data.toDomain(doc.ID, rules, doc.CreateTime, doc.UpdateTime))
	}

	return domain.CursorPage[domain.CargoZone]{Items: items, NextPageToken: nextToken}, nil
}

// Delete removes the zone header and all of its rules in one transaction.
func (r *CargoZoneRepository) Delete(ctx context.Context, zoneID string) error {
	if r == nil || r.provider == nil {
		return errors.New("cargo zone repository not initialised")
	}
	id := strings.TrimSpace(zoneID)
	if id == "" {
		return errors.New("cargo zone repository: zone id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	zoneRef := client.Collection(cargoZoneCollection).Doc(id)

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(zoneRef); err != nil {
			return err
		}
		ruleIter := tx.Documents(zoneRef.Collection(cargoZoneRulesSubcol))
		var rules []*firestore.DocumentRef
		for {
			ruleSnap, err := ruleIter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return err
			}
			rules = append(rules, ruleSnap.Ref)
		}
		for _, ref := range rules {
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		return tx.Delete(zoneRef)
	})
	if err != nil {
		return pfirestore.WrapError("cargoZones.delete", err)
	}
	return nil
}

func (r *CargoZoneRepository) loadRules(ctx context.Context, zoneID string) ([]domain.CargoRule, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	iter := client.Collection(cargoZoneCollection).Doc(zoneID).
		Collection(cargoZoneRulesSubcol).
		OrderBy("position", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var rules []domain.CargoRule
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("cargoZones.rules.list", err)
		}
		var doc cargoRuleDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode cargo rule %s: %w", snap.Ref.ID, err)
		}
		rules = append(rules, doc.toDomain(snap.Ref.ID))
	}
	return rules, nil
}

type cargoZoneDocument struct {
	Name      string                  `firestore:"name"`
	Locations []cargoLocationDocument `firestore:"locations"`
	CreatedAt time.Time               `firestore:"createdAt"`
	UpdatedAt time.Time               `firestore:"updatedAt"`
}

type cargoLocationDocument struct {
	CountryID   string   `firestore:"countryId"`
	CountryType string   `firestore:"countryType"`
	StateIDs    []string `firestore:"stateIds,omitempty"`
	CityIDs     []string `firestore:"cityIds,omitempty"`
}

type cargoRuleDocument struct {
	Name          string   `firestore:"name"`
	Currency      string   `firestore:"currency"`
	Price         float64  `firestore:"price"`
	ConditionType string   `firestore:"conditionType"`
	MinValue      *float64 `firestore:"minValue,omitempty"`
	MaxValue      *float64 `firestore:"maxValue,omitempty"`
	Position      int      `firestore:"position"`
}

func encodeCargoZone(zone domain.CargoZone, createdAt, updatedAt time.Time) (cargoZoneDocument, map[string]cargoRuleDocument) {
	locations := make([]cargoLocationDocument, 0, len(zone.Locations))
	for _, loc := range zone.Locations {
		locations = append(locations, cargoLocationDocument{
			CountryID:   strings.TrimSpace(loc.CountryID),
			CountryType: string(loc.CountryType),
			StateIDs:    append([]string(nil), loc.StateIDs...),
			CityIDs:     append([]string(nil), loc.CityIDs...),
		})
	}

	rules := make(map[string]cargoRuleDocument, len(zone.Rules))
	for i, rule := range zone.Rules {
		rules[strings.TrimSpace(rule.ID)] = cargoRuleDocument{
			Name:          strings.TrimSpace(rule.Name),
			Currency:      strings.ToUpper(strings.TrimSpace(rule.Currency)),
			Price:         rule.Price,
			ConditionType: string(rule.ConditionType),
			MinValue:      normaliseBound(rule.MinValue),
			MaxValue:      normaliseBound(rule.MaxValue),
			Position:      i,
		}
	}

	return cargoZoneDocument{
		Name:      strings.TrimSpace(zone.Name),
		Locations: locations,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, rules
}

// normaliseBound maps zero-valued bounds to nil so an absent bound and an
// explicit zero behave identically: unbounded.
func normaliseBound(value *float64) *float64 {
	if value == nil || *value == 0 {
		return nil
	}
	v := *value
	return &v
}

func (d cargoZoneDocument) toDomain(id string, rules []domain.CargoRule, createTime, updateTime time.Time) domain.CargoZone {
	locations := make([]domain.Location, 0, len(d.Locations))
	for _, loc := range d.Locations {
		locations = append(locations, domain.Location{
			CountryID:   loc.CountryID,
			CountryType: domain.CountryType(loc.CountryType),
			StateIDs:    append([]string(nil), loc.StateIDs...),
			CityIDs:     append([]string(nil), loc.CityIDs...),
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

	return domain.CargoZone{
		ID:        id,
		Name:      d.Name,
		Locations: locations,
		Rules:     rules,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

func (d cargoRuleDocument) toDomain(id string) domain.CargoRule {
	return domain.CargoRule{
		ID:            id,
		Name:          d.Name,
		Currency:      d.Currency,
		Price:         d.Price,
		ConditionType: domain.CargoCondition(d.ConditionType),
		MinValue:      d.MinValue,
		MaxValue:      d.MaxValue,
	}
}

var _ repositories.CargoZoneRepository = (*CargoZoneRepository)(nil)
