package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	domain "github.com/storelift/api/internal/domain"
	"github.com/storelift/api/internal/platform/events"
	"github.com/storelift/api/internal/platform/textutil"
	"github.com/storelift/api/internal/repositories"
)

var (
	errVariantRepositoryRequired = errors.New("variant service: repository is required")
	errVariantClockRequired      = errors.New("variant service: clock is required")
)

const (
	skuRootLength     = 8
	skuFragmentLength = 4
)

// ErrVariantInvalidInput indicates the caller supplied invalid input.
var ErrVariantInvalidInput = errors.New("variant service: invalid input")

// ErrVariantUnavailable indicates the variant service cannot fulfil the request due to backend issues.
var ErrVariantUnavailable = errors.New("variant service: unavailable")

// CombinationDefaults parameterise the values synthesised for combinations
// that have no surviving prior record.
type CombinationDefaults struct {
	Currency string
	Locale   string
}

// VariantServiceDeps wires the repository and eventing used by variant operations.
type VariantServiceDeps struct {
	Repository      repositories.VariantRepository
	Publisher       events.Publisher
	Clock           func() time.Time
	DefaultCurrency string
	DefaultLocale   string
	Logger          func(context.Context, string, map[string]any)
}

type variantService struct {
	repo      repositories.VariantRepository
	publisher events.Publisher
	defaults  CombinationDefaults
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewVariantService constructs a VariantService enforcing dependency validation.
func NewVariantService(deps VariantServiceDeps) (VariantService, error) {
	if deps.Repository == nil {
		return nil, errVariantRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errVariantClockRequired
	}

	defaults := CombinationDefaults{
		Currency: strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency)),
		Locale:   strings.ToLower(strings.TrimSpace(deps.DefaultLocale)),
	}
	if defaults.Currency == "" {
		defaults.Currency = "TRY"
	}
	if defaults.Locale == "" {
		defaults.Locale = "tr"
	}

	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &variantService{
		repo:      deps.Repository,
		publisher: publisher,
		defaults:  defaults,
		now:       func() time.Time { return deps.Clock().UTC() },
		logger:    logger,
	}, nil
}

// GenerateCombinations derives the full combination set for the product's
// variant groups. Groups are deduplicated by id; the Cartesian product
// preserves group order with the first group varying slowest. Prior
// combinations still addressable under the current groups keep their
// commercial data with their selections rewritten from the fresh group set;
// everything else gets a synthesised default record. An empty group list
// yields an empty result.
func GenerateCombinations(groups []domain.VariantGroup, existing []domain.VariantCombination, productID string, defaults CombinationDefaults) []domain.VariantCombination {
	deduped := dedupeGroups(groups)
	if len(deduped) == 0 {
		return []domain.VariantCombination{}
	}

	points := cartesianSelections(deduped)
	prior := indexValidPriorCombinations(deduped, existing)
	names := optionNameIndex(deduped)

	out := make([]domain.VariantCombination, 0, len(points))
	for _, selections := range points {
		key := CanonicalCombinationKey(selections)
		combo, ok := prior[key]
		if ok {
			combo.Selections = selections
		} else {
			combo = defaultCombination(productID, selections, names, defaults)
		}
		combo.ID = key
		combo.ProductID = strings.TrimSpace(productID)
		out = append(out, combo)
	}
	return out
}

func optionNameIndex(groups []domain.VariantGroup) map[domain.VariantSelection]string {
	names := make(map[domain.VariantSelection]string)
	for _, group := range groups {
		for _, option := range group.Options {
			names[domain.VariantSelection{GroupID: group.ID, OptionID: option.ID}] = option.Name
		}
	}
	return names
}

// CanonicalCombinationKey builds the identity key for a selection set:
// groupID:optionID pairs sorted by group id and joined with '|'.
func CanonicalCombinationKey(selections []domain.VariantSelection) string {
	ordered := make([]domain.VariantSelection, len(selections))
	copy(ordered, selections)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].GroupID != ordered[j].GroupID {
			return ordered[i].GroupID < ordered[j].GroupID
		}
		return ordered[i].OptionID < ordered[j].OptionID
	})
	pairs := make([]string, 0, len(ordered))
	for _, sel := range ordered {
		pairs = append(pairs, sel.GroupID+":"+sel.OptionID)
	}
	return strings.Join(pairs, "|")
}

func dedupeGroups(groups []domain.VariantGroup) []domain.VariantGroup {
	seen := make(map[string]struct{}, len(groups))
	out := make([]domain.VariantGroup, 0, len(groups))
	for _, group := range groups {
		id := strings.TrimSpace(group.ID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, group)
	}
	return out
}

// cartesianSelections recursively expands the tail first, then prefixes each
// head option onto every tail combination, so the first group varies slowest.
func cartesianSelections(groups []domain.VariantGroup) [][]domain.VariantSelection {
	if len(groups) == 0 {
		return [][]domain.VariantSelection{{}}
	}
	head := groups[0]
	tails := cartesianSelections(groups[1:])
	out := make([][]domain.VariantSelection, 0, len(head.Options)*len(tails))
	for _, option := range head.Options {
		for _, tail := range tails {
			selections := make([]domain.VariantSelection, 0, len(tail)+1)
			selections = append(selections, domain.VariantSelection{GroupID: head.ID, OptionID: option.ID})
			selections = append(selections, tail...)
			out = append(out, selections)
		}
	}
	return out
}

// indexValidPriorCombinations keys surviving prior combinations by canonical
// key. A prior combination survives only when its selection count matches the
// current group count and every referenced pair still exists; invalid records
// are dropped, not repaired.
func indexValidPriorCombinations(groups []domain.VariantGroup, existing []domain.VariantCombination) map[string]domain.VariantCombination {
	options := make(map[string]map[string]struct{}, len(groups))
	for _, group := range groups {
		set := make(map[string]struct{}, len(group.Options))
		for _, option := range group.Options {
			set[option.ID] = struct{}{}
		}
		options[group.ID] = set
	}

	prior := make(map[string]domain.VariantCombination, len(existing))
	for _, combo := range existing {
		if len(combo.Selections) != len(groups) {
			continue
		}
		valid := true
		for _, sel := range combo.Selections {
			set, ok := options[sel.GroupID]
			if !ok {
				valid = false
				break
			}
			if _, ok := set[sel.OptionID]; !ok {
				valid = false
				break
			}
		}
		if valid {
			prior[CanonicalCombinationKey(combo.Selections)] = combo
		}
	}
	return prior
}

func defaultCombination(productID string, selections []domain.VariantSelection, names map[domain.VariantSelection]string, defaults CombinationDefaults) domain.VariantCombination {
	return domain.VariantCombination{
		Selections:   selections,
		SKU:          defaultCombinationSKU(productID, selections, names),
		Barcode:      nil,
		Prices:       []domain.CombinationPrice{{Currency: defaults.Currency, Price: 0}},
		Stock:        0,
		Active:       true,
		Translations: []domain.CombinationTranslation{{Locale: defaults.Locale}},
	}
}

// defaultCombinationSKU joins the product root with one Turkish-uppercased
// fragment per selected option name, in selection order.
func defaultCombinationSKU(productID string, selections []domain.VariantSelection, names map[domain.VariantSelection]string) string {
	fragments := make([]string, 0, len(selections))
	for _, sel := range selections {
		fragments = append(fragments, textutil.SKUFragment(names[sel], skuFragmentLength))
	}
	return textutil.BuildSKU(textutil.SKURoot(productID, skuRootLength), fragments...)
}

func (s *variantService) SaveGroups(ctx context.Context, cmd SaveVariantGroupsCommand) ([]VariantCombination, error) {
	if s == nil || s.repo == nil {
		return nil, ErrVariantUnavailable
	}

	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return nil, ErrVariantInvalidInput
	}

	groups, err := sanitiseGroups(cmd.Groups)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SaveGroups(ctx, productID, groups); err != nil {
		return nil, s.translateRepoError(err)
	}
	return s.regenerate(ctx, productID, groups)
}

func (s *variantService) ListGroups(ctx context.Context, productID string) ([]VariantGroup, error) {
	if s == nil || s.repo == nil {
		return nil, ErrVariantUnavailable
	}

	id := strings.TrimSpace(productID)
	if id == "" {
		return nil, ErrVariantInvalidInput
	}

	groups, err := s.repo.ListGroups(ctx, id)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return groups, nil
}

func (s *variantService) ListCombinations(ctx context.Context, productID string) ([]VariantCombination, error) {
	if s == nil || s.repo == nil {
		return nil, ErrVariantUnavailable
	}

	id := strings.TrimSpace(productID)
	if id == "" {
		return nil, ErrVariantInvalidInput
	}

	combos, err := s.repo.ListCombinations(ctx, id)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return combos, nil
}

func (s *variantService) RegenerateCombinations(ctx context.Context, productID string) ([]VariantCombination, error) {
	if s == nil || s.repo == nil {
		return nil, ErrVariantUnavailable
	}

	id := strings.TrimSpace(productID)
	if id == "" {
		return nil, ErrVariantInvalidInput
	}

	groups, err := s.repo.ListGroups(ctx, id)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return s.regenerate(ctx, id, groups)
}

func (s *variantService) regenerate(ctx context.Context, productID string, groups []domain.VariantGroup) ([]VariantCombination, error) {
	existing, err := s.repo.ListCombinations(ctx, productID)
	if err != nil {
		return nil, s.translateRepoError(err)
	}

	generated := GenerateCombinations(groups, existing, productID, s.defaults)
	saved, err := s.repo.ReplaceCombinations(ctx, productID, generated)
	if err != nil {
		return nil, s.translateRepoError(err)
	}

	payload, _ := json.Marshal(map[string]any{
		"productId":        productID,
		"groupCount":       len(groups),
		"combinationCount": len(saved),
	})
	if _, err := s.publisher.Publish(ctx, events.Event{
		Name:      events.EventCombinationsRegenerated,
		SubjectID: productID,
		Payload:   payload,
	}); err != nil {
		s.logger(ctx, "variants.publish_failed", map[string]any{
			"productId": productID,
			"error":     err.Error(),
		})
	}

	s.logger(ctx, "variants.regenerated", map[string]any{
		"productId":        productID,
		"combinationCount": len(saved),
	})
	return saved, nil
}

func sanitiseGroups(groups []VariantGroup) ([]domain.VariantGroup, error) {
	out := make([]domain.VariantGroup, 0, len(groups))
	for _, group := range groups {
		group.ID = strings.TrimSpace(group.ID)
		group.Name = strings.TrimSpace(group.Name)
		if group.ID == "" {
			return nil, fmt.Errorf("%w: group id is required", ErrVariantInvalidInput)
		}
		options := make([]domain.VariantOption, 0, len(group.Options))
		for _, option := range group.Options {
			option.ID = strings.TrimSpace(option.ID)
			option.Name = strings.TrimSpace(option.Name)
			if option.ID == "" {
				return nil, fmt.Errorf("%w: option id is required", ErrVariantInvalidInput)
			}
			options = append(options, option)
		}
		if len(options) == 0 {
			return nil, fmt.Errorf("%w: group %s has no options", ErrVariantInvalidInput, group.ID)
		}
		group.Options = options
		out = append(out, group)
	}
	return out, nil
}

func (s *variantService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		if repoErr.IsNotFound() {
			return ErrVariantInvalidInput
		}
		return ErrVariantUnavailable
	}
	return ErrVariantUnavailable
}
