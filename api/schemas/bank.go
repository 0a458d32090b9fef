package schemas

// -- Question Bank --

// QuestionBank is the static scenario data an assessment is driven by. It is
// stored as a single document under "<product>-question-bank".
type QuestionBank struct {
	// Domains maps a domain key to its display data, in declaration order.
	Domains OrderedMap[Domain] `json:"domains" yaml:"domains"`
	// Archetypes maps a domain key to its archetypes (key -> display name).
	Archetypes OrderedMap[OrderedMap[string]] `json:"archetypes" yaml:"archetypes"`
	Phase1     []Scenario                      `json:"phase1" yaml:"phase1"`
	Phase2     []Scenario                      `json:"phase2" yaml:"phase2"`
	Phase3     []ArchetypeScenario             `json:"phase3" yaml:"phase3"`
	Profiles   map[string]Profile              `json:"profiles" yaml:"profiles"`
}

// Domain is a top level trait category.
type Domain struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Option is a single answer choice. Phase 1 and 2 options carry a domain tag,
// phase 3 options carry an archetype tag.
type Option struct {
	Text      string `json:"text" yaml:"text"`
	Domain    string `json:"domain,omitempty" yaml:"domain,omitempty"`
	Archetype string `json:"archetype,omitempty" yaml:"archetype,omitempty"`
}

// Scenario is a phase 1 or phase 2 question.
type Scenario struct {
	ID       string   `json:"id" yaml:"id"`
	Scenario string   `json:"scenario" yaml:"scenario"`
	Options  []Option `json:"options" yaml:"options"`
}

// ArchetypeScenario is a phase 3 question with one option set per domain.
type ArchetypeScenario struct {
	ID              string              `json:"id" yaml:"id"`
	Scenario        string              `json:"scenario" yaml:"scenario"`
	OptionsByDomain map[string][]Option `json:"optionsByDomain" yaml:"optionsByDomain"`
}

// Profile is the descriptive write-up returned with final results.
type Profile struct {
	Quote      string         `json:"quote" yaml:"quote"`
	TeamRole   string         `json:"teamRole" yaml:"teamRole"`
	Strengths  []string       `json:"strengths" yaml:"strengths"`
	Blindspots []string       `json:"blindspots" yaml:"blindspots"`
	Impact     ProfileImpact  `json:"impact" yaml:"impact"`
	Synergy    ProfileSynergy `json:"synergy" yaml:"synergy"`
}

type ProfileImpact struct {
	Dos   []string `json:"dos" yaml:"dos"`
	Avoid []string `json:"avo" yaml:"avo"`
}

type ProfileSynergy struct {
	High []string `json:"high" yaml:"high"`
	Low  []string `json:"low" yaml:"low"`
}

// Phase1Threshold is the number of the last phase 1 question.
func (b *QuestionBank) Phase1Threshold() int { return len(b.Phase1) }

// Phase2Threshold is the number of the last phase 2 question.
func (b *QuestionBank) Phase2Threshold() int { return len(b.Phase1) + len(b.Phase2) }

// TotalQuestions counts every question a respondent answers.
func (b *QuestionBank) TotalQuestions() int {
	return len(b.Phase1) + len(b.Phase2) + len(b.Phase3)
}

// Phase1Scenario looks up a phase 1 question by id.
func (b *QuestionBank) Phase1Scenario(id string) (Scenario, bool) {
	return findScenario(b.Phase1, id)
}

// Phase2Scenario looks up a phase 2 question by id.
func (b *QuestionBank) Phase2Scenario(id string) (Scenario, bool) {
	return findScenario(b.Phase2, id)
}

// Phase3Scenario looks up a phase 3 question by id.
func (b *QuestionBank) Phase3Scenario(id string) (ArchetypeScenario, bool) {
	for _, s := range b.Phase3 {
		if s.ID == id {
			return s, true
		}
	}
	return ArchetypeScenario{}, false
}

func findScenario(list []Scenario, id string) (Scenario, bool) {
	for _, s := range list {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

// ArchetypesOf returns the archetype keys of a domain in declaration order.
func (b *QuestionBank) ArchetypesOf(domain string) []string {
	group, ok := b.Archetypes.Get(domain)
	if !ok {
		return nil
	}
	return group.Keys()
}

// DomainOfArchetype returns the domain an archetype is nested under.
func (b *QuestionBank) DomainOfArchetype(archetype string) (string, bool) {
	for _, domain := range b.Archetypes.Keys() {
		group, _ := b.Archetypes.Get(domain)
		if group.Has(archetype) {
			return domain, true
		}
	}
	return "", false
}

// ArchetypeName returns the display name of an archetype, or the key itself.
func (b *QuestionBank) ArchetypeName(archetype string) string {
	if domain, ok := b.DomainOfArchetype(archetype); ok {
		group, _ := b.Archetypes.Get(domain)
		if name, _ := group.Get(archetype); name != "" {
			return name
		}
	}
	return archetype
}

// HasArchetype reports whether the archetype is declared under any domain.
func (b *QuestionBank) HasArchetype(archetype string) bool {
	_, ok := b.DomainOfArchetype(archetype)
	return ok
}
