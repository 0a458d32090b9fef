package assessment

import (
	"fmt"
	"slices"
	"sort"

	"github.com/xkilldash9x/ari/api/schemas"
)

// UnknownKeyPolicy decides what happens to answer keys that are not declared
// in the question bank.
type UnknownKeyPolicy string

const (
	// UnknownKeysIgnore drops undeclared keys silently.
	UnknownKeysIgnore UnknownKeyPolicy = "ignore"
	// UnknownKeysCreate scores undeclared keys like declared ones. They are
	// kept in the score map but never chosen as a top domain or archetype.
	UnknownKeysCreate UnknownKeyPolicy = "create"
	// UnknownKeysReject fails the submission with ErrMalformedAnswerPayload.
	UnknownKeysReject UnknownKeyPolicy = "reject"
)

// ApplyAnswers adds each delta to scores[key]. Accumulation is plain integer
// addition with no clamping. On error scores is left untouched.
func ApplyAnswers(scores map[string]int, answers map[string]int, policy UnknownKeyPolicy, declared func(string) bool) error {
	if len(answers) == 0 {
		return fmt.Errorf("%w: empty answer set", ErrMalformedAnswerPayload)
	}
	keys := make([]string, 0, len(answers))
	for k := range answers {
		if !declared(k) {
			switch policy {
			case UnknownKeysReject:
				return fmt.Errorf("%w: unknown key %q", ErrMalformedAnswerPayload, k)
			case UnknownKeysCreate:
			default:
				continue
			}
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		scores[k] += answers[k]
	}
	return nil
}

// ApplyRanking awards len(ranking)-index points to the archetype at each index
// of ranking, after undeclared keys have been handled per policy. A ranking of
// N keys therefore distributes N*(N+1)/2 points.
func ApplyRanking(scores map[string]int, ranking []string, policy UnknownKeyPolicy, declared func(string) bool) error {
	if len(ranking) == 0 {
		return fmt.Errorf("%w: empty ranking", ErrMalformedAnswerPayload)
	}
	seen := make(map[string]bool, len(ranking))
	kept := make([]string, 0, len(ranking))
	for _, k := range ranking {
		if seen[k] {
			return fmt.Errorf("%w: %q ranked twice", ErrMalformedAnswerPayload, k)
		}
		seen[k] = true
		if !declared(k) {
			switch policy {
			case UnknownKeysReject:
				return fmt.Errorf("%w: archetype %q is not in the primary domain", ErrMalformedAnswerPayload, k)
			case UnknownKeysCreate:
			default:
				continue
			}
		}
		kept = append(kept, k)
	}
	if len(kept) == 0 {
		return fmt.Errorf("%w: no rankable archetypes", ErrMalformedAnswerPayload)
	}
	n := len(kept)
	for i, k := range kept {
		scores[k] += n - i
	}
	return nil
}

// RequireFullRanking fails unless ranking names the archetype of every
// offered option. A partial ranking would leave the missing archetypes
// without their last-place points.
func RequireFullRanking(ranking []string, offered []schemas.Option) error {
	for _, o := range offered {
		if !slices.Contains(ranking, o.Archetype) {
			return fmt.Errorf("%w: ranking is missing archetype %q", ErrMalformedAnswerPayload, o.Archetype)
		}
	}
	return nil
}
