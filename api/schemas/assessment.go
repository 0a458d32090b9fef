package schemas

import "encoding/json"

// -- Assessment Wire Types --

// Action is the discriminator of an assessment request.
type Action string

const (
	ActionStart                  Action = "start"
	ActionSubmitAnswer           Action = "submitAnswer"
	ActionGoBack                 Action = "goBack"
	ActionSubmitArchetypeRanking Action = "submitArchetypeRanking"
	ActionStartArchetypeTest     Action = "startArchetypeTest"
)

// ResponseStatus is the discriminator of an assessment response.
type ResponseStatus string

const (
	StatusNextQuestion        ResponseStatus = "nextQuestion"
	StatusArchetypeQuestion   ResponseStatus = "archetypeQuestion"
	StatusDomainResults       ResponseStatus = "domainResults"
	StatusStartArchetypePhase ResponseStatus = "startArchetypePhase"
	StatusFinalResults        ResponseStatus = "finalResults"
)

// AssessmentRequest is the body of POST /api/assessment.
type AssessmentRequest struct {
	Action    Action          `json:"action"`
	SessionID string          `json:"sessionId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// AnswerPayload carries per-domain score deltas for phase 1 and 2.
type AnswerPayload struct {
	Answers map[string]int `json:"answers"`
}

// RankingPayload carries archetype keys from most to least preferred.
type RankingPayload struct {
	Ranking []string `json:"ranking"`
}

// QuestionView is a question as presented to the respondent.
type QuestionView struct {
	ID       string   `json:"id"`
	Scenario string   `json:"scenario"`
	Options  []Option `json:"options"`
}

// DomainInfo describes a ranked domain in results.
type DomainInfo struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Score       int    `json:"score"`
}

// AssessmentResponse is the body returned by POST /api/assessment.
type AssessmentResponse struct {
	Status         ResponseStatus `json:"status"`
	SessionID      string         `json:"sessionId"`
	Phase          int            `json:"phase"`
	QuestionNumber int            `json:"questionNumber"`
	TotalQuestions int            `json:"totalQuestions"`
	Question       *QuestionView  `json:"question,omitempty"`
	CanGoBack      bool           `json:"canGoBack"`

	PrimaryDomain   *DomainInfo    `json:"primaryDomain,omitempty"`
	SecondaryDomain *DomainInfo    `json:"secondaryDomain,omitempty"`
	Scores          map[string]int `json:"scores,omitempty"`
	ArchetypeScores map[string]int `json:"archetypeScores,omitempty"`

	FinalArchetype string   `json:"finalArchetype,omitempty"`
	ArchetypeName  string   `json:"archetypeName,omitempty"`
	ProfileData    *Profile `json:"profileData,omitempty"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}
