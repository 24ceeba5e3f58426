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
	errShippingZonesRequired = errors.New("shipping service: zone repository is required")
	errShippingCartsRequired = errors.New("shipping service: cart repository is required")
	errShippingClockRequired = errors.New("shipping service: clock is required")
)

// ErrShippingInvalidInput indicates the caller supplied invalid input.
var ErrShippingInvalidInput = errors.New("shipping service: invalid input")

// ErrShippingUnavailable indicates the shipping service cannot fulfil the request due to backend issues.
var ErrShippingUnavailable = errors.New("shipping service: unavailable")

// ErrZoneNotFound indicates the requested cargo zone does not exist.
var ErrZoneNotFound = errors.New("shipping service: zone not found")

// ErrNoZoneMatched indicates no configured zone covers the destination.
// Checkout must treat this as blocking rather than assume a default price.
var ErrNoZoneMatched = errors.New("shipping service: no zone matched destination")

// ErrNoShippingRule indicates the matched zone has no rule covering the cart
// metric. Like ErrNoZoneMatched this blocks checkout; there is no fallback
// price.
var ErrNoShippingRule = errors.New("shipping service: no rule matched cart")

// ShippingServiceDeps wires the repositories and eventing used by shipping operations.
type ShippingServiceDeps struct {
	Zones       repositories.CargoZoneRepository
	Carts       repositories.CartRepository
	Publisher   events.Publisher
	Clock       func() time.Time
	Strategy    ZoneSelection
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type shippingService struct {
	zones     repositories.CargoZoneRepository
	carts     repositories.CartRepository
	publisher events.Publisher
	strategy  ZoneSelection
	newID     func() string
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewShippingService constructs a ShippingService enforcing dependency validation.
func NewShippingService(deps ShippingServiceDeps) (ShippingService, error) {
	if deps.Zones == nil {
		return nil, errShippingZonesRequired
	}
	if deps.Carts == nil {
		return nil, errShippingCartsRequired
	}
	if deps.Clock == nil {
		return nil, errShippingClockRequired
	}

	strategy := deps.Strategy
	switch strategy {
	case domain.ZoneSelectFirstMatch, domain.ZoneSelectMostSpecific:
	case "":
		strategy = domain.ZoneSelectMostSpecific
	default:
		return nil, fmt.Errorf("shipping service: unknown zone selection strategy %q", strategy)
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

	return &shippingService{
		zones:     deps.Zones,
		carts:     deps.Carts,
		publisher: publisher,
		strategy:  strategy,
		newID:     idGen,
		now:       func() time.Time { return deps.Clock().UTC() },
		logger:    logger,
	}, nil
}

// ResolveShippingCost scans the zone's rules in list order and returns the
// first rule whose interval contains the cart metric for that rule's
// condition type. A nil bound is unbounded on that side. Rules are evaluated
// exactly as stored; no sorting or tightest-fit selection takes place.
func ResolveShippingCost(zone domain.CargoZone, metrics CartMetrics) (domain.CargoRule, error) {
	for _, rule := range zone.Rules {
		metric := metrics.Weight
		if rule.ConditionType == domain.ConditionSalesPrice {
			metric = metrics.SalesPrice
		}
		if rule.MinValue != nil && metric < *rule.MinValue {
			continue
		}
		if rule.MaxValue != nil && metric > *rule.MaxValue {
			continue
		}
		return rule, nil
	}
	return domain.CargoRule{}, ErrNoShippingRule
}

// SelectZone picks the cargo zone covering the destination. With the
// first-match strategy the first zone in list order wins; with most-specific,
// a city-level location beats a state-level one beats a whole-country one,
// and list order breaks remaining ties.
func SelectZone(zones []domain.CargoZone, dest domain.Destination, strategy domain.ZoneSelection) (domain.CargoZone, error) {
	if strategy == domain.ZoneSelectFirstMatch {
		for _, zone := range zones {
			if zoneSpecificity(zone, dest) > 0 {
				return zone, nil
			}
		}
		return domain.CargoZone{}, ErrNoZoneMatched
	}

	best := -1
	bestScore := 0
	for i, zone := range zones {
		score := zoneSpecificity(zone, dest)
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	if best < 0 {
		return domain.CargoZone{}, ErrNoZoneMatched
	}
	return zones[best], nil
}

// zoneSpecificity returns 0 when the zone does not cover the destination,
// otherwise the specificity of its best matching location (country 1,
// state 2, city 3).
func zoneSpecificity(zone domain.CargoZone, dest domain.Destination) int {
	score := 0
	for _, loc := range zone.Locations {
		if !strings.EqualFold(strings.TrimSpace(loc.CountryID), strings.TrimSpace(dest.CountryID)) {
			continue
		}
		switch loc.CountryType {
		case domain.CountryTypeNone:
			if score < 1 {
				score = 1
			}
		case domain.CountryTypeState:
			if containsFold(loc.StateIDs, dest.StateID) && score < 2 {
				score = 2
			}
		case domain.CountryTypeCity:
			if containsFold(loc.CityIDs, dest.CityID) {
				score = 3
			}
		}
	}
	return score
}

func containsFold(values []string, target string) bool {
	needle := strings.TrimSpace(target)
	if needle == "" {
		return false
	}
	for _, value := range values {
		if strings.EqualFold(strings.TrimSpace(value), needle) {
			return true
		}
	}
	return false
}

func (s *shippingService) QuoteCart(ctx context.Context, cmd ShippingQuoteCommand) (ShippingQuote, error) {
	if s == nil || s.zones == nil || s.carts == nil {
		return ShippingQuote{}, ErrShippingUnavailable
	}

	cartID := strings.TrimSpace(cmd.CartID)
	if cartID == "" {
		return ShippingQuote{}, ErrShippingInvalidInput
	}
	if strings.TrimSpace(cmd.Destination.CountryID) == "" {
		return ShippingQuote{}, fmt.Errorf("%w: destination country is required", ErrShippingInvalidInput)
	}

	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		if isRepoNotFound(err) {
			return ShippingQuote{}, ErrCartNotFound
		}
		return ShippingQuote{}, ErrShippingUnavailable
	}

	zones, err := s.zones.ListAll(ctx)
	if err != nil {
		return ShippingQuote{}, s.translateRepoError(err)
	}

	zone, err := SelectZone(zones, cmd.Destination, s.strategy)
	if err != nil {
		s.logger(ctx, "shipping.no_zone", map[string]any{
			"cartId":  cartID,
			"country": cmd.Destination.CountryID,
		})
		return ShippingQuote{}, err
	}

	rule, err := ResolveShippingCost(zone, CartShippingMetrics(cart))
	if err != nil {
		s.logger(ctx, "shipping.no_rule", map[string]any{
			"cartId": cartID,
			"zoneId": zone.ID,
		})
		return ShippingQuote{}, err
	}

	return ShippingQuote{
		ZoneID:   zone.ID,
		ZoneName: zone.Name,
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Currency: rule.Currency,
		Price:    rule.Price,
	}, nil
}

func (s *shippingService) CreateZone(ctx context.Context, cmd UpsertZoneCommand) (CargoZone, error) {
	if s == nil || s.zones == nil {
		return CargoZone{}, ErrShippingUnavailable
	}

	zone, err := s.buildZone(cmd, true)
	if err != nil {
		return CargoZone{}, err
	}

	saved, err := s.zones.Insert(ctx, zone)
	if err != nil {
		return CargoZone{}, s.translateRepoError(err)
	}
	return saved, nil
}

func (s *shippingService) ReplaceZone(ctx context.Context, cmd UpsertZoneCommand) (CargoZone, error) {
	if s == nil || s.zones == nil {
		return CargoZone{}, ErrShippingUnavailable
	}

	if strings.TrimSpace(cmd.ZoneID) == "" {
		return CargoZone{}, fmt.Errorf("%w: zone id is required", ErrShippingInvalidInput)
	}

	zone, err := s.buildZone(cmd, false)
	if err != nil {
		return CargoZone{}, err
	}

	saved, err := s.zones.Replace(ctx, zone)
	if err != nil {
		return CargoZone{}, s.translateRepoError(err)
	}

	payload, _ := json.Marshal(map[string]any{
		"zoneId":    saved.ID,
		"name":      saved.Name,
		"ruleCount": len(saved.Rules),
	})
	if _, err := s.publisher.Publish(ctx, events.Event{
		Name:       events.EventZoneReplaced,
		SubjectID:  saved.ID,
		Payload:    payload,
		Attributes: map[string]string{"zoneName": saved.Name},
	}); err != nil {
		s.logger(ctx, "shipping.publish_failed", map[string]any{
			"zoneId": saved.ID,
			"error":  err.Error(),
		})
	}

	return saved, nil
}

func (s *shippingService) GetZone(ctx context.Context, zoneID string) (CargoZone, error) {
	if s == nil || s.zones == nil {
		return CargoZone{}, ErrShippingUnavailable
	}

	id := strings.TrimSpace(zoneID)
	if id == "" {
		return CargoZone{}, ErrShippingInvalidInput
	}

	zone, err := s.zones.FindByID(ctx, id)
	if err != nil {
		return CargoZone{}, s.translateRepoError(err)
	}
	return zone, nil
}

func (s *shippingService) ListZones(ctx context.Context, pager Pagination) (domain.CursorPage[CargoZone], error) {
	if s == nil || s.zones == nil {
		return domain.CursorPage[CargoZone]{}, ErrShippingUnavailable
	}

	page, err := s.zones.List(ctx, pager)
	if err != nil {
		return domain.CursorPage[CargoZone]{}, s.translateRepoError(err)
	}
	return page, nil
}

func (s *shippingService) DeleteZone(ctx context.Context, zoneID string) error {
	if s == nil || s.zones == nil {
		return ErrShippingUnavailable
	}

	id := strings.TrimSpace(zoneID)
	if id == "" {
		return ErrShippingInvalidInput
	}

	if err := s.zones.Delete(ctx, id); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *shippingService) buildZone(cmd UpsertZoneCommand, assignID bool) (domain.CargoZone, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return domain.CargoZone{}, fmt.Errorf("%w: zone name is required", ErrShippingInvalidInput)
	}
	if len(cmd.Locations) == 0 {
		return domain.CargoZone{}, fmt.Errorf("%w: at least one location is required", ErrShippingInvalidInput)
	}

	locations := make([]domain.Location, 0, len(cmd.Locations))
	for _, loc := range cmd.Locations {
		loc.CountryID = strings.TrimSpace(loc.CountryID)
		if loc.CountryID == "" {
			return domain.CargoZone{}, fmt.Errorf("%w: location country is required", ErrShippingInvalidInput)
		}
		switch loc.CountryType {
		case domain.CountryTypeNone:
			if len(loc.StateIDs) > 0 || len(loc.CityIDs) > 0 {
				return domain.CargoZone{}, fmt.Errorf("%w: country-wide location may not list states or cities", ErrShippingInvalidInput)
			}
		case domain.CountryTypeState:
			if len(loc.StateIDs) == 0 || len(loc.CityIDs) > 0 {
				return domain.CargoZone{}, fmt.Errorf("%w: state location requires states and no cities", ErrShippingInvalidInput)
			}
		case domain.CountryTypeCity:
			if len(loc.CityIDs) == 0 || len(loc.StateIDs) > 0 {
				return domain.CargoZone{}, fmt.Errorf("%w: city location requires cities and no states", ErrShippingInvalidInput)
			}
		default:
			return domain.CargoZone{}, fmt.Errorf("%w: unknown country type %q", ErrShippingInvalidInput, loc.CountryType)
		}
		locations = append(locations, loc)
	}

	rules := make([]domain.CargoRule, 0, len(cmd.Rules))
	for _, rule := range cmd.Rules {
		rule.Name = strings.TrimSpace(rule.Name)
		if rule.Name == "" {
			return domain.CargoZone{}, fmt.Errorf("%w: rule name is required", ErrShippingInvalidInput)
		}
		rule.Currency = strings.ToUpper(strings.TrimSpace(rule.Currency))
		if rule.Currency == "" {
			return domain.CargoZone{}, fmt.Errorf("%w: rule currency is required", ErrShippingInvalidInput)
		}
		switch rule.ConditionType {
		case domain.ConditionProductWeight, domain.ConditionSalesPrice:
		default:
			return domain.CargoZone{}, fmt.Errorf("%w: unknown rule condition %q", ErrShippingInvalidInput, rule.ConditionType)
		}
		if rule.Price < 0 {
			return domain.CargoZone{}, fmt.Errorf("%w: rule price must be non-negative", ErrShippingInvalidInput)
		}
		// A zero bound means unset in stored rules; treat it as unbounded.
		if rule.MinValue != nil && *rule.MinValue == 0 {
			rule.MinValue = nil
		}
		if rule.MaxValue != nil && *rule.MaxValue == 0 {
			rule.MaxValue = nil
		}
		if rule.MinValue != nil && rule.MaxValue != nil && *rule.MinValue > *rule.MaxValue {
			return domain.CargoZone{}, fmt.Errorf("%w: rule minimum exceeds maximum", ErrShippingInvalidInput)
		}
		if strings.TrimSpace(rule.ID) == "" {
			rule.ID = s.newID()
		}
		rules = append(rules, rule)
	}

	zoneID := strings.TrimSpace(cmd.ZoneID)
	if zoneID == "" {
		if !assignID {
			return domain.CargoZone{}, fmt.Errorf("%w: zone id is required", ErrShippingInvalidInput)
		}
		zoneID = s.newID()
	}

	return domain.CargoZone{
		ID:        zoneID,
		Name:      name,
		Locations: locations,
		Rules:     rules,
	}, nil
}

func (s *shippingService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrZoneNotFound
		}
		return ErrShippingUnavailable
	}
	return ErrShippingUnavailable
}
