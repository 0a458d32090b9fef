package assessment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xkilldash9x/ari/api/schemas"
)

// Policy holds the configurable behaviour of the state machine.
type Policy struct {
	ShufflePhase1     bool
	UnknownKeys       UnknownKeyPolicy
	Phase2OptionCount int
	// DomainResultsInterstitial answers the phase 2 to 3 transition with
	// domainResults instead of the first archetype question.
	DomainResultsInterstitial bool
}

// DefaultPolicy matches the default configuration.
func DefaultPolicy() Policy {
	return Policy{UnknownKeys: UnknownKeysIgnore, Phase2OptionCount: 3}
}

// Env is everything a transition may read besides the session itself.
type Env struct {
	Bank   *schemas.QuestionBank
	Policy Policy
	Rand   Source
	Now    func() time.Time
	NewID  func() string
}

func (env Env) now() time.Time {
	if env.Now != nil {
		return env.Now().UTC()
	}
	return time.Now().UTC()
}

// Transition applies one action to a session and returns the next session and
// the response to send. current is never modified; for ActionStart it is
// ignored and a new session is created. On error no new session is returned.
func Transition(env Env, current *schemas.Session, action schemas.Action, payload json.RawMessage) (*schemas.Session, *schemas.AssessmentResponse, error) {
	if env.Bank == nil {
		return nil, nil, ErrQuestionBankUnavailable
	}
	if action == schemas.ActionStart {
		return start(env)
	}
	if current == nil {
		return nil, nil, ErrSessionNotFound
	}
	if err := current.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: stored session is corrupt: %v", ErrSessionNotFound, err)
	}

	next := current.Clone()
	var (
		resp *schemas.AssessmentResponse
		err  error
	)
	switch action {
	case schemas.ActionSubmitAnswer:
		resp, err = submitAnswer(env, next, payload)
	case schemas.ActionSubmitArchetypeRanking:
		resp, err = submitRanking(env, next, payload)
	case schemas.ActionGoBack:
		resp, err = goBack(env, next)
	case schemas.ActionStartArchetypeTest:
		resp, err = startArchetypeTest(env, next)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if err != nil {
		return nil, nil, err
	}
	next.UpdatedAt = env.now()
	return next, resp, nil
}

func start(env Env) (*schemas.Session, *schemas.AssessmentResponse, error) {
	b := env.Bank
	newID := env.NewID
	if newID == nil {
		newID = NewSessionID
	}

	scores := make(map[string]int, b.Domains.Len())
	for _, d := range b.Domains.Keys() {
		scores[d] = 0
	}

	phase1 := make([]string, len(b.Phase1))
	for i, s := range b.Phase1 {
		phase1[i] = s.ID
	}
	if env.Policy.ShufflePhase1 {
		phase1 = Shuffle(env.Rand, phase1)
	}
	phase2 := make([]string, len(b.Phase2))
	for i, s := range b.Phase2 {
		phase2[i] = s.ID
	}
	phase3 := make([]string, len(b.Phase3))
	for i, s := range b.Phase3 {
		phase3[i] = s.ID
	}

	now := env.now()
	s := &schemas.Session{
		ID: newID(),
		SessionState: schemas.SessionState{
			Phase:          schemas.Phase1,
			QuestionNumber: 1,
			Scores:         scores,
			Phase1: &schemas.Phase1Data{
				Phase1Queue: phase1,
				Phase2Queue: Shuffle(env.Rand, phase2),
				Phase3Queue: Shuffle(env.Rand, phase3),
			},
		},
		History:   []schemas.SessionState{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := deliverNext(s); err != nil {
		return nil, nil, err
	}
	resp, err := questionResponse(env, s, schemas.StatusNextQuestion)
	if err != nil {
		return nil, nil, err
	}
	return s, resp, nil
}

func submitAnswer(env Env, s *schemas.Session, payload json.RawMessage) (*schemas.AssessmentResponse, error) {
	if s.Phase != schemas.Phase1 && s.Phase != schemas.Phase2 {
		return nil, fmt.Errorf("%w: submitAnswer in %s", ErrActionNotAllowed, s.Phase)
	}
	var p schemas.AnswerPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}

	recordSnapshot(s)
	if err := ApplyAnswers(s.Scores, p.Answers, env.Policy.UnknownKeys, env.Bank.Domains.Has); err != nil {
		return nil, err
	}
	answered := s.QuestionNumber
	s.QuestionNumber++

	switch s.Phase {
	case schemas.Phase1:
		if answered >= env.Bank.Phase1Threshold() {
			s.Phase2 = s.Phase1.Advance()
			s.Phase1 = nil
			s.Phase = schemas.Phase2
		}
		if err := deliverNext(s); err != nil {
			return nil, err
		}
		return questionResponse(env, s, schemas.StatusNextQuestion)

	default: // Phase2
		if answered < env.Bank.Phase2Threshold() {
			if err := deliverNext(s); err != nil {
				return nil, err
			}
			return questionResponse(env, s, schemas.StatusNextQuestion)
		}
		ranked := Rank(s.Scores, env.Bank.Domains.Keys())
		primary := ranked[0]
		secondary := ""
		if len(ranked) > 1 {
			secondary = ranked[1]
		}
		s.Phase3 = s.Phase2.Advance(primary, secondary, env.Bank.ArchetypesOf(primary))
		s.Phase2 = nil
		s.Phase = schemas.Phase3
		if err := deliverNext(s); err != nil {
			return nil, err
		}
		if env.Policy.DomainResultsInterstitial {
			return domainResultsResponse(env, s), nil
		}
		return questionResponse(env, s, schemas.StatusArchetypeQuestion)
	}
}

func submitRanking(env Env, s *schemas.Session, payload json.RawMessage) (*schemas.AssessmentResponse, error) {
	if s.Phase != schemas.Phase3 {
		return nil, fmt.Errorf("%w: submitArchetypeRanking in %s", ErrActionNotAllowed, s.Phase)
	}
	var p schemas.RankingPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}

	primary := s.Phase3.PrimaryDomain
	group, _ := env.Bank.Archetypes.Get(primary)

	sc, ok := env.Bank.Phase3Scenario(s.LastQuestionID)
	if !ok {
		return nil, fmt.Errorf("%w: phase3 scenario %q", ErrScenarioDataNotFound, s.LastQuestionID)
	}
	offered, err := SelectPhase3Options(sc, primary)
	if err != nil {
		return nil, err
	}
	if err := RequireFullRanking(p.Ranking, offered); err != nil {
		return nil, err
	}

	recordSnapshot(s)
	if err := ApplyRanking(s.Phase3.ArchetypeScores, p.Ranking, env.Policy.UnknownKeys, group.Has); err != nil {
		return nil, err
	}
	s.QuestionNumber++

	if len(s.Phase3.Phase3Queue) > 0 {
		if err := deliverNext(s); err != nil {
			return nil, err
		}
		return questionResponse(env, s, schemas.StatusArchetypeQuestion)
	}

	ranked := Rank(s.Phase3.ArchetypeScores, group.Keys())
	if len(ranked) == 0 {
		return nil, fmt.Errorf("%w: domain %q has no archetypes", ErrScenarioDataNotFound, primary)
	}
	s.Complete = s.Phase3.Complete(ranked[0])
	s.Phase3 = nil
	s.Phase = schemas.PhaseComplete
	return finalResponse(env, s), nil
}

func goBack(env Env, s *schemas.Session) (*schemas.AssessmentResponse, error) {
	if err := undo(s); err != nil {
		return nil, err
	}
	status := schemas.StatusNextQuestion
	if s.Phase == schemas.Phase3 {
		status = schemas.StatusArchetypeQuestion
	}
	return questionResponse(env, s, status)
}

func startArchetypeTest(env Env, s *schemas.Session) (*schemas.AssessmentResponse, error) {
	if s.Phase != schemas.Phase3 {
		return nil, fmt.Errorf("%w: startArchetypeTest in %s", ErrActionNotAllowed, s.Phase)
	}
	return questionResponse(env, s, schemas.StatusStartArchetypePhase)
}

// deliverNext pops the next id of the current phase's queue into LastQuestionID.
func deliverNext(s *schemas.Session) error {
	var queue *[]string
	switch s.Phase {
	case schemas.Phase1:
		queue = &s.Phase1.Phase1Queue
	case schemas.Phase2:
		queue = &s.Phase2.Phase2Queue
	case schemas.Phase3:
		queue = &s.Phase3.Phase3Queue
	default:
		return fmt.Errorf("%w: no queue in %s", ErrScenarioDataNotFound, s.Phase)
	}
	if len(*queue) == 0 {
		return fmt.Errorf("%w: %s queue exhausted at question %d", ErrScenarioDataNotFound, s.Phase, s.QuestionNumber)
	}
	s.LastQuestionID = (*queue)[0]
	*queue = (*queue)[1:]
	return nil
}

func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: missing payload", ErrMalformedAnswerPayload)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedAnswerPayload, err)
	}
	return nil
}
