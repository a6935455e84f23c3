package rules

import (
	"fmt"
	"time"

	"ingestion-pipeline/internal/domain"
)

// Spec describes one configured rule binding. Params are rule-specific
// string options; unknown params are rejected so typos surface at startup.
type Spec struct {
	Name     string
	Weight   float64
	Blocking bool
	Params   map[string]string
}

type constructor func(params map[string]string) (Rule, error)

// registry maps configured rule names to constructors. Rules are resolved
// here once, at configuration-load time, never by name lookup at call time.
var registry = map[string]constructor{
	"required_fields":   func(map[string]string) (Rule, error) { return requiredFields{}, nil },
	"normalize_name":    func(map[string]string) (Rule, error) { return normalizeName{}, nil },
	"normalize_barcode": func(map[string]string) (Rule, error) { return normalizeBarcode{}, nil },
	"parse_pack_size":   func(map[string]string) (Rule, error) { return parsePackSize{}, nil },
	"price_sanity":      func(map[string]string) (Rule, error) { return priceSanity{}, nil },
	"timestamp_sanity":  newTimestampSanity,
}

func newTimestampSanity(params map[string]string) (Rule, error) {
	min := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	if raw, ok := params["min_date"]; ok {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("timestamp_sanity: bad min_date %q: %w", raw, err)
		}
		min = parsed
	}
	skew := 24 * time.Hour
	if raw, ok := params["max_skew"]; ok {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("timestamp_sanity: bad max_skew %q: %w", raw, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("timestamp_sanity: max_skew must be positive, got %q", raw)
		}
		skew = parsed
	}
	return timestampSanity{minDate: min, maxSkew: skew, now: time.Now}, nil
}

// Build resolves specs into an ordered Set. Unknown rule names, duplicate
// names, and non-positive weights are configuration errors: the caller is
// expected to refuse to start.
func Build(version string, specs []Spec) (*Set, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: rule set is empty", domain.ErrInvalidArgument)
	}
	seen := make(map[string]bool, len(specs))
	set := &Set{Version: version, Bindings: make([]Binding, 0, len(specs))}
	for _, spec := range specs {
		ctor, ok := registry[spec.Name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown rule %q", domain.ErrInvalidArgument, spec.Name)
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("%w: duplicate rule %q", domain.ErrInvalidArgument, spec.Name)
		}
		seen[spec.Name] = true

		weight := spec.Weight
		if weight == 0 {
			weight = 1.0
		}
		if weight < 0 {
			return nil, fmt.Errorf("%w: rule %q has negative weight", domain.ErrInvalidArgument, spec.Name)
		}
		rule, err := ctor(spec.Params)
		if err != nil {
			return nil, err
		}
		set.Bindings = append(set.Bindings, Binding{Rule: rule, Weight: weight, Blocking: spec.Blocking})
	}
	return set, nil
}
