package assessment

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/xkilldash9x/ari/api/schemas"
)

// Rank orders keys by score, highest first. Equal scores keep the order in
// which keys were given, which callers pass as question bank declaration
// order. The result is therefore deterministic for a fixed score vector.
// Keys absent from scores count as zero.
func Rank(scores map[string]int, keys []string) []string {
	out := slices.Clone(keys)
	slices.SortStableFunc(out, func(a, b string) int {
		return cmp.Compare(scores[b], scores[a])
	})
	return out
}

// SelectPhase2Options keeps one option for each of the top count domains in
// ranked, in rank order. Fewer domains than count means all of them.
func SelectPhase2Options(s schemas.Scenario, ranked []string, count int) ([]schemas.Option, error) {
	if count > len(ranked) {
		count = len(ranked)
	}
	selected := make([]schemas.Option, 0, count)
	for _, domain := range ranked[:count] {
		idx := slices.IndexFunc(s.Options, func(o schemas.Option) bool { return o.Domain == domain })
		if idx < 0 {
			return nil, fmt.Errorf("%w: scenario %s has no option for domain %q", ErrOptionsNotFound, s.ID, domain)
		}
		selected = append(selected, s.Options[idx])
	}
	return selected, nil
}

// SelectPhase3Options returns every option the scenario offers for the
// primary domain.
func SelectPhase3Options(s schemas.ArchetypeScenario, primary string) ([]schemas.Option, error) {
	opts := s.OptionsByDomain[primary]
	if len(opts) == 0 {
		return nil, fmt.Errorf("%w: scenario %s has no options for domain %q", ErrOptionsNotFound, s.ID, primary)
	}
	return slices.Clone(opts), nil
}
