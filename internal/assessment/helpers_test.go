package assessment

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/ari/api/schemas"
)

// testBank is a compact bank with four domains: two phase 1 questions, two
// phase 2 questions and two phase 3 questions.
func testBank() *schemas.QuestionBank {
	domainKeys := []string{"alpha", "beta", "gamma", "delta"}
	domains := schemas.NewOrderedMap(domainKeys, map[string]schemas.Domain{
		"alpha": {Name: "Alpha", Description: "First domain"},
		"beta":  {Name: "Beta", Description: "Second domain"},
		"gamma": {Name: "Gamma", Description: "Third domain"},
		"delta": {Name: "Delta", Description: "Fourth domain"},
	})
	archetypes := schemas.NewOrderedMap(domainKeys, map[string]schemas.OrderedMap[string]{
		"alpha": schemas.NewOrderedMap([]string{"a1", "a2", "a3"}, map[string]string{"a1": "Alpha One", "a2": "Alpha Two", "a3": "Alpha Three"}),
		"beta":  schemas.NewOrderedMap([]string{"b1", "b2"}, map[string]string{"b1": "Beta One", "b2": "Beta Two"}),
		"gamma": schemas.NewOrderedMap([]string{"g1"}, map[string]string{"g1": "Gamma One"}),
		"delta": schemas.NewOrderedMap([]string{"d1"}, map[string]string{"d1": "Delta One"}),
	})

	perDomain := func(id string) schemas.Scenario {
		s := schemas.Scenario{ID: id, Scenario: "Scenario " + id}
		for _, d := range domainKeys {
			s.Options = append(s.Options, schemas.Option{Text: id + " " + d, Domain: d})
		}
		return s
	}
	archetypeScenario := func(id string) schemas.ArchetypeScenario {
		s := schemas.ArchetypeScenario{ID: id, Scenario: "Scenario " + id, OptionsByDomain: map[string][]schemas.Option{}}
		for _, d := range domainKeys {
			group, _ := archetypes.Get(d)
			for _, a := range group.Keys() {
				s.OptionsByDomain[d] = append(s.OptionsByDomain[d], schemas.Option{Text: id + " " + a, Archetype: a})
			}
		}
		return s
	}

	return &schemas.QuestionBank{
		Domains:    domains,
		Archetypes: archetypes,
		Phase1: []schemas.Scenario{
			{ID: "p1_a", Scenario: "First", Options: []schemas.Option{
				{Text: "alpha", Domain: "alpha"}, {Text: "beta", Domain: "beta"}, {Text: "gamma", Domain: "gamma"},
			}},
			{ID: "p1_b", Scenario: "Second", Options: []schemas.Option{
				{Text: "beta", Domain: "beta"}, {Text: "gamma", Domain: "gamma"}, {Text: "delta", Domain: "delta"},
			}},
		},
		Phase2: []schemas.Scenario{perDomain("p2_a"), perDomain("p2_b")},
		Phase3: []schemas.ArchetypeScenario{archetypeScenario("p3_a"), archetypeScenario("p3_b")},
		Profiles: map[string]schemas.Profile{
			"a1": {Quote: "Alpha first", TeamRole: "Lead"},
		},
	}
}

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testEnv(b *schemas.QuestionBank) Env {
	return Env{
		Bank:   b,
		Policy: DefaultPolicy(),
		Rand:   NewSource(7),
		Now:    func() time.Time { return testTime },
		NewID:  func() string { return "sess_test" },
	}
}

func answers(t *testing.T, scores map[string]int) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(schemas.AnswerPayload{Answers: scores})
	require.NoError(t, err)
	return raw
}

func ranking(t *testing.T, keys ...string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(schemas.RankingPayload{Ranking: keys})
	require.NoError(t, err)
	return raw
}

// step applies one action and requires it to succeed.
func step(t *testing.T, env Env, s *schemas.Session, action schemas.Action, payload json.RawMessage) (*schemas.Session, *schemas.AssessmentResponse) {
	t.Helper()
	next, resp, err := Transition(env, s, action, payload)
	require.NoError(t, err, "action %s", action)
	require.NoError(t, next.Validate())
	return next, resp
}

func optionDomains(opts []schemas.Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Domain
	}
	return out
}

func optionArchetypes(opts []schemas.Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Archetype
	}
	return out
}
