package assessment

import (
	"fmt"
	"maps"

	"github.com/xkilldash9x/ari/api/schemas"
)

// currentQuestion rebuilds the question identified by LastQuestionID from the
// bank and the session's phase data. Nothing about the question is stored in
// the session besides its id.
func currentQuestion(env Env, s *schemas.Session) (*schemas.QuestionView, error) {
	b := env.Bank
	id := s.LastQuestionID
	var opts []schemas.Option
	var text string

	switch s.Phase {
	case schemas.Phase1:
		sc, ok := b.Phase1Scenario(id)
		if !ok {
			return nil, fmt.Errorf("%w: phase1 scenario %q", ErrScenarioDataNotFound, id)
		}
		text, opts = sc.Scenario, sc.Options

	case schemas.Phase2:
		sc, ok := b.Phase2Scenario(id)
		if !ok {
			return nil, fmt.Errorf("%w: phase2 scenario %q", ErrScenarioDataNotFound, id)
		}
		selected, err := SelectPhase2Options(sc, Rank(s.Scores, b.Domains.Keys()), env.Policy.Phase2OptionCount)
		if err != nil {
			return nil, err
		}
		text, opts = sc.Scenario, selected

	case schemas.Phase3:
		sc, ok := b.Phase3Scenario(id)
		if !ok {
			return nil, fmt.Errorf("%w: phase3 scenario %q", ErrScenarioDataNotFound, id)
		}
		selected, err := SelectPhase3Options(sc, s.Phase3.PrimaryDomain)
		if err != nil {
			return nil, err
		}
		text, opts = sc.Scenario, selected

	default:
		return nil, fmt.Errorf("%w: no question in %s", ErrScenarioDataNotFound, s.Phase)
	}

	// Display order only. Selection above is already fixed.
	return &schemas.QuestionView{ID: id, Scenario: text, Options: Shuffle(env.Rand, opts)}, nil
}

func baseResponse(env Env, s *schemas.Session, status schemas.ResponseStatus) *schemas.AssessmentResponse {
	phase := int(s.Phase)
	if s.Phase == schemas.PhaseComplete {
		phase = int(schemas.Phase3)
	}
	return &schemas.AssessmentResponse{
		Status:         status,
		SessionID:      s.ID,
		Phase:          phase,
		QuestionNumber: s.QuestionNumber,
		TotalQuestions: env.Bank.TotalQuestions(),
		CanGoBack:      len(s.History) > 0,
	}
}

func questionResponse(env Env, s *schemas.Session, status schemas.ResponseStatus) (*schemas.AssessmentResponse, error) {
	q, err := currentQuestion(env, s)
	if err != nil {
		return nil, err
	}
	resp := baseResponse(env, s, status)
	resp.Question = q
	if s.Phase == schemas.Phase3 {
		resp.PrimaryDomain = domainInfo(env.Bank, s.Scores, s.Phase3.PrimaryDomain)
		resp.SecondaryDomain = domainInfo(env.Bank, s.Scores, s.Phase3.SecondaryDomain)
	}
	return resp, nil
}

func domainResultsResponse(env Env, s *schemas.Session) *schemas.AssessmentResponse {
	resp := baseResponse(env, s, schemas.StatusDomainResults)
	resp.PrimaryDomain = domainInfo(env.Bank, s.Scores, s.Phase3.PrimaryDomain)
	resp.SecondaryDomain = domainInfo(env.Bank, s.Scores, s.Phase3.SecondaryDomain)
	resp.Scores = maps.Clone(s.Scores)
	return resp
}

func finalResponse(env Env, s *schemas.Session) *schemas.AssessmentResponse {
	c := s.Complete
	resp := baseResponse(env, s, schemas.StatusFinalResults)
	resp.PrimaryDomain = domainInfo(env.Bank, s.Scores, c.PrimaryDomain)
	resp.SecondaryDomain = domainInfo(env.Bank, s.Scores, c.SecondaryDomain)
	resp.Scores = maps.Clone(s.Scores)
	resp.ArchetypeScores = maps.Clone(c.ArchetypeScores)
	resp.FinalArchetype = c.FinalArchetype
	resp.ArchetypeName = env.Bank.ArchetypeName(c.FinalArchetype)
	if profile, ok := env.Bank.Profiles[c.FinalArchetype]; ok {
		resp.ProfileData = &profile
	}
	return resp
}

func domainInfo(b *schemas.QuestionBank, scores map[string]int, key string) *schemas.DomainInfo {
	if key == "" {
		return nil
	}
	d, _ := b.Domains.Get(key)
	return &schemas.DomainInfo{Key: key, Name: d.Name, Description: d.Description, Score: scores[key]}
}

// Results rebuilds the finalResults response of a completed session.
func Results(b *schemas.QuestionBank, s *schemas.Session) (*schemas.AssessmentResponse, error) {
	if s.Phase != schemas.PhaseComplete || s.Complete == nil {
		return nil, fmt.Errorf("%w: session is in %s", ErrActionNotAllowed, s.Phase)
	}
	return finalResponse(Env{Bank: b}, s), nil
}
