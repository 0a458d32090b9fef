package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ari/api/schemas"
	"github.com/xkilldash9x/ari/internal/observability"
)

// BankLoader yields the active question bank.
type BankLoader interface {
	Load(ctx context.Context) (*schemas.QuestionBank, error)
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithRand sets the randomness used for queue and option shuffles.
func WithRand(src Source) EngineOption {
	return func(e *Engine) { e.rand = src }
}

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(f func() string) EngineOption {
	return func(e *Engine) { e.newID = f }
}

// WithMetrics attaches action and completion counters.
func WithMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// Engine persists sessions in a key-value store and serializes concurrent
// actions on the same session.
type Engine struct {
	store      schemas.KeyValueStore
	bank       BankLoader
	policy     Policy
	sessionTTL time.Duration
	rand       Source
	now        func() time.Time
	newID      func() string
	metrics    *observability.Metrics
	logger     *zap.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewEngine creates an Engine. A zero sessionTTL keeps sessions until deleted.
func NewEngine(store schemas.KeyValueStore, bank BankLoader, policy Policy, sessionTTL time.Duration, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:      store,
		bank:       bank,
		policy:     policy,
		sessionTTL: sessionTTL,
		rand:       NewRandomSource(),
		now:        time.Now,
		newID:      NewSessionID,
		logger:     logger.Named("assessment"),
		locks:      make(map[string]*sessionLock),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle executes one assessment request end to end.
func (e *Engine) Handle(ctx context.Context, req schemas.AssessmentRequest) (*schemas.AssessmentResponse, error) {
	log := observability.FromContext(ctx, e.logger).With(
		zap.String("action", string(req.Action)),
		zap.String("session_id", req.SessionID),
	)

	resp, err := e.handle(ctx, req)
	switch {
	case err == nil:
		e.metrics.ObserveAction(string(req.Action), "ok")
		if resp.Status == schemas.StatusFinalResults {
			e.metrics.ObserveCompletion(resp.FinalArchetype)
			log.Info("Assessment completed", zap.String("archetype", resp.FinalArchetype))
		}
	case IsIntegrityError(err):
		e.metrics.ObserveAction(string(req.Action), "integrity_error")
		log.Error("Question bank and session disagree", zap.Error(err))
	default:
		e.metrics.ObserveAction(string(req.Action), "rejected")
		log.Debug("Action rejected", zap.Error(err))
	}
	return resp, err
}

func (e *Engine) handle(ctx context.Context, req schemas.AssessmentRequest) (*schemas.AssessmentResponse, error) {
	if !validAction(req.Action) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}
	qb, err := e.bank.Load(ctx)
	if err != nil {
		return nil, err
	}
	env := Env{Bank: qb, Policy: e.policy, Rand: e.rand, Now: e.now, NewID: e.newID}

	if req.Action == schemas.ActionStart {
		next, resp, err := Transition(env, nil, req.Action, req.Payload)
		if err != nil {
			return nil, err
		}
		next.Version = 1
		if err := e.save(ctx, next); err != nil {
			return nil, err
		}
		return resp, nil
	}

	if req.SessionID == "" {
		return nil, fmt.Errorf("%w: sessionId is required", ErrSessionNotFound)
	}
	unlock := e.lock(req.SessionID)
	defer unlock()

	current, err := e.LoadSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	next, resp, err := Transition(env, current, req.Action, req.Payload)
	if err != nil {
		return nil, err
	}
	next.Version = current.Version + 1
	if err := e.save(ctx, next); err != nil {
		return nil, err
	}
	return resp, nil
}

// LoadSession reads a stored session. Ids outside the session key space and
// missing, expired and undecodable sessions all report ErrSessionNotFound.
func (e *Engine) LoadSession(ctx context.Context, id string) (*schemas.Session, error) {
	if !strings.HasPrefix(id, schemas.SessionKeyPrefix) {
		return nil, fmt.Errorf("%w: %q is not a session id", ErrSessionNotFound, id)
	}
	raw, err := e.store.Get(ctx, id)
	if errors.Is(err, schemas.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var s schemas.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: stored session %s is unreadable: %v", ErrSessionNotFound, id, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: stored session %s is corrupt: %v", ErrSessionNotFound, id, err)
	}
	return &s, nil
}

// Results returns the final results of a completed session using the
// currently active bank for names and profiles.
func (e *Engine) Results(ctx context.Context, id string) (*schemas.AssessmentResponse, *schemas.Session, error) {
	s, err := e.LoadSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	qb, err := e.bank.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	resp, err := Results(qb, s)
	if err != nil {
		return nil, nil, err
	}
	return resp, s, nil
}

func (e *Engine) save(ctx context.Context, s *schemas.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := e.store.Set(ctx, s.ID, raw, e.sessionTTL); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// lock takes the per-session mutex and returns its release func. Entries are
// reference counted so the map does not grow with finished sessions.
func (e *Engine) lock(id string) func() {
	e.mu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &sessionLock{}
		e.locks[id] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, id)
		}
		e.mu.Unlock()
	}
}

func validAction(a schemas.Action) bool {
	switch a {
	case schemas.ActionStart, schemas.ActionSubmitAnswer, schemas.ActionGoBack,
		schemas.ActionSubmitArchetypeRanking, schemas.ActionStartArchetypeTest:
		return true
	}
	return false
}
