package schemas

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"
)

// -- Session --

// Phase is the state of an assessment session.
type Phase int

const (
	PhaseUnknown Phase = iota
	Phase1
	Phase2
	Phase3
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case Phase1:
		return "phase1"
	case Phase2:
		return "phase2"
	case Phase3:
		return "phase3"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown(" + strconv.Itoa(int(p)) + ")"
	}
}

// Phase1Data holds the queues that are still needed while in phase 1.
type Phase1Data struct {
	Phase1Queue []string `json:"phase1Queue"`
	Phase2Queue []string `json:"phase2Queue"`
	Phase3Queue []string `json:"phase3Queue"`
}

// Phase2Data holds the queues that are still needed while in phase 2.
type Phase2Data struct {
	Phase2Queue []string `json:"phase2Queue"`
	Phase3Queue []string `json:"phase3Queue"`
}

// Phase3Data exists once the primary domain is known.
type Phase3Data struct {
	PrimaryDomain   string         `json:"primaryDomain"`
	SecondaryDomain string         `json:"secondaryDomain"`
	ArchetypeScores map[string]int `json:"archetypeScores"`
	Phase3Queue     []string       `json:"phase3Queue"`
}

// CompleteData is the terminal state.
type CompleteData struct {
	PrimaryDomain   string         `json:"primaryDomain"`
	SecondaryDomain string         `json:"secondaryDomain"`
	ArchetypeScores map[string]int `json:"archetypeScores"`
	FinalArchetype  string         `json:"finalArchetype"`
}

// Advance migrates phase 1 state into phase 2 state.
func (d *Phase1Data) Advance() *Phase2Data {
	return &Phase2Data{
		Phase2Queue: slices.Clone(d.Phase2Queue),
		Phase3Queue: slices.Clone(d.Phase3Queue),
	}
}

// Advance migrates phase 2 state into phase 3 state. Archetype scores start
// at zero for every archetype of the primary domain.
func (d *Phase2Data) Advance(primary, secondary string, archetypes []string) *Phase3Data {
	scores := make(map[string]int, len(archetypes))
	for _, a := range archetypes {
		scores[a] = 0
	}
	return &Phase3Data{
		PrimaryDomain:   primary,
		SecondaryDomain: secondary,
		ArchetypeScores: scores,
		Phase3Queue:     slices.Clone(d.Phase3Queue),
	}
}

// Complete migrates phase 3 state into the terminal state.
func (d *Phase3Data) Complete(final string) *CompleteData {
	return &CompleteData{
		PrimaryDomain:   d.PrimaryDomain,
		SecondaryDomain: d.SecondaryDomain,
		ArchetypeScores: maps.Clone(d.ArchetypeScores),
		FinalArchetype:  final,
	}
}

// SessionState is the restorable part of a session. Exactly one of the phase
// pointers is set and it matches Phase.
type SessionState struct {
	Phase          Phase          `json:"phase"`
	QuestionNumber int            `json:"questionNumber"`
	Scores         map[string]int `json:"scores"`
	LastQuestionID string         `json:"lastQuestionId"`

	Phase1   *Phase1Data   `json:"phase1,omitempty"`
	Phase2   *Phase2Data   `json:"phase2,omitempty"`
	Phase3   *Phase3Data   `json:"phase3,omitempty"`
	Complete *CompleteData `json:"complete,omitempty"`
}

// Session is the persisted record of one respondent's assessment.
type Session struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`
	SessionState
	History   []SessionState `json:"history"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy of the state.
func (s SessionState) Clone() SessionState {
	out := SessionState{
		Phase:          s.Phase,
		QuestionNumber: s.QuestionNumber,
		Scores:         maps.Clone(s.Scores),
		LastQuestionID: s.LastQuestionID,
	}
	if s.Phase1 != nil {
		out.Phase1 = &Phase1Data{
			Phase1Queue: slices.Clone(s.Phase1.Phase1Queue),
			Phase2Queue: slices.Clone(s.Phase1.Phase2Queue),
			Phase3Queue: slices.Clone(s.Phase1.Phase3Queue),
		}
	}
	if s.Phase2 != nil {
		out.Phase2 = &Phase2Data{
			Phase2Queue: slices.Clone(s.Phase2.Phase2Queue),
			Phase3Queue: slices.Clone(s.Phase2.Phase3Queue),
		}
	}
	if s.Phase3 != nil {
		p := *s.Phase3
		p.ArchetypeScores = maps.Clone(p.ArchetypeScores)
		p.Phase3Queue = slices.Clone(p.Phase3Queue)
		out.Phase3 = &p
	}
	if s.Complete != nil {
		c := *s.Complete
		c.ArchetypeScores = maps.Clone(c.ArchetypeScores)
		out.Complete = &c
	}
	return out
}

// Clone returns a deep copy of the session including its history.
func (s *Session) Clone() *Session {
	out := &Session{
		ID:           s.ID,
		Version:      s.Version,
		SessionState: s.SessionState.Clone(),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if s.History != nil {
		out.History = make([]SessionState, len(s.History))
		for i, h := range s.History {
			out.History[i] = h.Clone()
		}
	}
	return out
}

// Validate checks that the variant matches the phase tag.
func (s SessionState) Validate() error {
	set := 0
	for _, p := range []bool{s.Phase1 != nil, s.Phase2 != nil, s.Phase3 != nil, s.Complete != nil} {
		if p {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("session state has %d phase variants set", set)
	}
	ok := false
	switch s.Phase {
	case Phase1:
		ok = s.Phase1 != nil
	case Phase2:
		ok = s.Phase2 != nil
	case Phase3:
		ok = s.Phase3 != nil
	case PhaseComplete:
		ok = s.Complete != nil
	}
	if !ok {
		return fmt.Errorf("session state variant does not match %s", s.Phase)
	}
	return nil
}

// ArchetypeScores returns the archetype scores, empty before phase 3.
func (s SessionState) ArchetypeScores() map[string]int {
	switch {
	case s.Phase3 != nil:
		return s.Phase3.ArchetypeScores
	case s.Complete != nil:
		return s.Complete.ArchetypeScores
	}
	return map[string]int{}
}

func (s SessionState) PrimaryDomain() string {
	switch {
	case s.Phase3 != nil:
		return s.Phase3.PrimaryDomain
	case s.Complete != nil:
		return s.Complete.PrimaryDomain
	}
	return ""
}

func (s SessionState) SecondaryDomain() string {
	switch {
	case s.Phase3 != nil:
		return s.Phase3.SecondaryDomain
	case s.Complete != nil:
		return s.Complete.SecondaryDomain
	}
	return ""
}

func (s SessionState) FinalArchetype() string {
	if s.Complete != nil {
		return s.Complete.FinalArchetype
	}
	return ""
}

// Queue returns the remaining question ids of the current phase.
func (s SessionState) Queue() []string {
	switch {
	case s.Phase1 != nil:
		return s.Phase1.Phase1Queue
	case s.Phase2 != nil:
		return s.Phase2.Phase2Queue
	case s.Phase3 != nil:
		return s.Phase3.Phase3Queue
	}
	return nil
}
