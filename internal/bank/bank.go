// Package bank loads, validates and caches the question bank.
package bank

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/ari/api/schemas"
)

//go:embed data/question_bank.yaml
var defaultBankYAML []byte

// DefaultYAML returns the embedded default question bank document.
func DefaultYAML() []byte {
	return bytes.Clone(defaultBankYAML)
}

// Default parses the embedded question bank.
func Default() (*schemas.QuestionBank, error) {
	return Parse(defaultBankYAML)
}

// Parse decodes a question bank from JSON or YAML. JSON is detected by a
// leading '{'.
func Parse(data []byte) (*schemas.QuestionBank, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("question bank document is empty")
	}
	var b schemas.QuestionBank
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return nil, fmt.Errorf("decode question bank json: %w", err)
		}
		return &b, nil
	}
	if err := yaml.Unmarshal(trimmed, &b); err != nil {
		return nil, fmt.Errorf("decode question bank yaml: %w", err)
	}
	return &b, nil
}

// Validate checks the structural invariants the engine relies on. Problems
// that make the bank unusable are returned joined in err; missing profile text
// only produces warnings.
func Validate(b *schemas.QuestionBank) (warnings []string, err error) {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if b.Domains.Len() == 0 {
		fail("no domains declared")
	}
	for _, domain := range b.Archetypes.Keys() {
		if !b.Domains.Has(domain) {
			fail("archetypes declared for unknown domain %q", domain)
		}
	}
	for _, domain := range b.Domains.Keys() {
		if len(b.ArchetypesOf(domain)) == 0 {
			fail("domain %q has no archetypes", domain)
		}
	}
	seenArchetype := map[string]string{}
	for _, domain := range b.Archetypes.Keys() {
		for _, a := range b.ArchetypesOf(domain) {
			if other, dup := seenArchetype[a]; dup {
				fail("archetype %q declared under both %q and %q", a, other, domain)
			}
			seenArchetype[a] = domain
		}
	}

	if len(b.Phase1) == 0 {
		fail("phase1 has no scenarios")
	}
	if len(b.Phase2) == 0 {
		fail("phase2 has no scenarios")
	}
	if len(b.Phase3) == 0 {
		fail("phase3 has no scenarios")
	}

	checkIDs := func(phase string, ids []string) {
		seen := map[string]bool{}
		for _, id := range ids {
			if id == "" {
				fail("%s: scenario without id", phase)
				continue
			}
			if seen[id] {
				fail("%s: duplicate scenario id %q", phase, id)
			}
			seen[id] = true
		}
	}
	checkIDs("phase1", scenarioIDs(b.Phase1))
	checkIDs("phase2", scenarioIDs(b.Phase2))
	p3ids := make([]string, len(b.Phase3))
	for i, s := range b.Phase3 {
		p3ids[i] = s.ID
	}
	checkIDs("phase3", p3ids)

	for _, s := range b.Phase1 {
		if len(s.Options) == 0 {
			fail("phase1 %s: no options", s.ID)
		}
		for _, o := range s.Options {
			if !b.Domains.Has(o.Domain) {
				fail("phase1 %s: option tagged with unknown domain %q", s.ID, o.Domain)
			}
		}
	}

	for _, s := range b.Phase2 {
		count := map[string]int{}
		for _, o := range s.Options {
			if !b.Domains.Has(o.Domain) {
				fail("phase2 %s: option tagged with unknown domain %q", s.ID, o.Domain)
				continue
			}
			count[o.Domain]++
		}
		for _, domain := range b.Domains.Keys() {
			if count[domain] != 1 {
				fail("phase2 %s: expected exactly one option for domain %q, found %d", s.ID, domain, count[domain])
			}
		}
	}

	for _, s := range b.Phase3 {
		for key := range s.OptionsByDomain {
			if !b.Domains.Has(key) {
				fail("phase3 %s: options for unknown domain %q", s.ID, key)
			}
		}
		for _, domain := range b.Domains.Keys() {
			opts := s.OptionsByDomain[domain]
			if len(opts) == 0 {
				fail("phase3 %s: no options for domain %q", s.ID, domain)
				continue
			}
			group, _ := b.Archetypes.Get(domain)
			seen := map[string]bool{}
			for _, o := range opts {
				if !group.Has(o.Archetype) {
					fail("phase3 %s: option tagged with archetype %q outside domain %q", s.ID, o.Archetype, domain)
					continue
				}
				if seen[o.Archetype] {
					fail("phase3 %s: archetype %q offered twice for domain %q", s.ID, o.Archetype, domain)
				}
				seen[o.Archetype] = true
			}
			for _, a := range group.Keys() {
				if !seen[a] {
					warnings = append(warnings, fmt.Sprintf("phase3 %s: archetype %q has no option", s.ID, a))
				}
			}
		}
	}

	for archetype := range seenArchetype {
		if _, ok := b.Profiles[archetype]; !ok {
			warnings = append(warnings, fmt.Sprintf("no profile for archetype %q", archetype))
		}
	}

	return warnings, errors.Join(errs...)
}

func scenarioIDs(list []schemas.Scenario) []string {
	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	return ids
}
