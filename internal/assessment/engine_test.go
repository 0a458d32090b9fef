package assessment

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/ari/api/schemas"
	"github.com/xkilldash9x/ari/internal/bank"
	"github.com/xkilldash9x/ari/internal/observability"
	"github.com/xkilldash9x/ari/internal/store"
)

type staticBank struct {
	b   *schemas.QuestionBank
	err error
}

func (s staticBank) Load(context.Context) (*schemas.QuestionBank, error) { return s.b, s.err }

func newTestEngine(t *testing.T, qb *schemas.QuestionBank, opts ...EngineOption) (*Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	base := []EngineOption{
		WithRand(NewSource(3)),
		WithClock(func() time.Time { return testTime }),
	}
	e := NewEngine(mem, staticBank{b: qb}, DefaultPolicy(), time.Hour, zap.NewNop(), append(base, opts...)...)
	return e, mem
}

func request(action schemas.Action, sessionID string, payload json.RawMessage) schemas.AssessmentRequest {
	return schemas.AssessmentRequest{Action: action, SessionID: sessionID, Payload: payload}
}

// -- Engine --

func TestEngine_PersistsSessions(t *testing.T) {
	ctx := context.Background()
	e, mem := newTestEngine(t, testBank())

	resp, err := e.Handle(ctx, request(schemas.ActionStart, "", nil))
	require.NoError(t, err)
	require.NotEmpty(t, resp.SessionID)

	keys, err := mem.Keys(ctx, schemas.SessionKeyPrefix+"*")
	require.NoError(t, err)
	assert.Equal(t, []string{resp.SessionID}, keys)

	stored, err := e.LoadSession(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, schemas.Phase1, stored.Phase)

	_, err = e.Handle(ctx, request(schemas.ActionSubmitAnswer, resp.SessionID, answers(t, map[string]int{"alpha": 1})))
	require.NoError(t, err)

	stored, err = e.LoadSession(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, 2, stored.QuestionNumber)
	assert.Len(t, stored.History, 1)
}

func TestEngine_RejectedActionDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, testBank())

	resp, err := e.Handle(ctx, request(schemas.ActionStart, "", nil))
	require.NoError(t, err)

	_, err = e.Handle(ctx, request(schemas.ActionGoBack, resp.SessionID, nil))
	require.ErrorIs(t, err, ErrNoHistoryAvailable)

	stored, err := e.LoadSession(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}

func TestEngine_SessionErrors(t *testing.T) {
	ctx := context.Background()
	e, mem := newTestEngine(t, testBank())

	_, err := e.Handle(ctx, request(schemas.ActionSubmitAnswer, "", answers(t, map[string]int{"alpha": 1})))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = e.Handle(ctx, request(schemas.ActionSubmitAnswer, "sess_missing", answers(t, map[string]int{"alpha": 1})))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, mem.Set(ctx, "sess_garbage", []byte(`{"phase":`), 0))
	_, err = e.Handle(ctx, request(schemas.ActionSubmitAnswer, "sess_garbage", answers(t, map[string]int{"alpha": 1})))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = e.Handle(ctx, request(schemas.Action("nope"), "sess_missing", nil))
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestEngine_LoadSessionRejectsForeignKeys(t *testing.T) {
	ctx := context.Background()
	e, mem := newTestEngine(t, testBank())

	resp, err := e.Handle(ctx, request(schemas.ActionStart, "", nil))
	require.NoError(t, err)
	raw, err := mem.Get(ctx, resp.SessionID)
	require.NoError(t, err)

	// A valid session document stored under another record's key.
	require.NoError(t, mem.Set(ctx, "download:abc", raw, 0))
	for _, id := range []string{"download:abc", "submission:*", "abc"} {
		_, err := e.LoadSession(ctx, id)
		assert.ErrorIs(t, err, ErrSessionNotFound, id)
	}

	_, err = e.Handle(ctx, request(schemas.ActionGoBack, "download:abc", nil))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestEngine_ExpiredSession(t *testing.T) {
	ctx := context.Background()
	now := testTime
	mem := store.NewMemory().WithClock(func() time.Time { return now })
	e := NewEngine(mem, staticBank{b: testBank()}, DefaultPolicy(), time.Minute, nil, WithRand(NewSource(1)))

	resp, err := e.Handle(ctx, request(schemas.ActionStart, "", nil))
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = e.Handle(ctx, request(schemas.ActionSubmitAnswer, resp.SessionID, answers(t, map[string]int{"alpha": 1})))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestEngine_BankUnavailable(t *testing.T) {
	e := NewEngine(store.NewMemory(), staticBank{err: bank.ErrUnavailable}, DefaultPolicy(), 0, nil)
	_, err := e.Handle(context.Background(), request(schemas.ActionStart, "", nil))
	assert.ErrorIs(t, err, ErrQuestionBankUnavailable)
}

func TestEngine_ConcurrentSubmitsAreSerialized(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, testBank())

	resp, err := e.Handle(ctx, request(schemas.ActionStart, "", nil))
	require.NoError(t, err)
	id := resp.SessionID

	// Two submits bring the session to phase 2; a lost update would leave it
	// with a single history entry.
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Handle(ctx, request(schemas.ActionSubmitAnswer, id, answers(t, map[string]int{"beta": 1})))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := e.LoadSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.Version)
	assert.Len(t, stored.History, 2)
	assert.Equal(t, 2, stored.Scores["beta"])
	assert.Equal(t, schemas.Phase2, stored.Phase)
	assert.Empty(t, e.locks, "lock table must drain")
}

func TestEngine_MetricsAndLogging(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	core, logs := observer.New(zapcore.DebugLevel)

	b := testBank()
	b.Phase2[0].Options = b.Phase2[0].Options[:1]
	b.Phase2[1].Options = b.Phase2[1].Options[:1]
	mem := store.NewMemory()
	e := NewEngine(mem, staticBank{b: b}, DefaultPolicy(), 0, zap.New(core), WithRand(NewSource(2)), WithMetrics(metrics))

	resp, err := e.Handle(ctx, request(schemas.ActionStart, "", nil))
	require.NoError(t, err)
	_, err = e.Handle(ctx, request(schemas.ActionSubmitAnswer, resp.SessionID, answers(t, map[string]int{"beta": 1})))
	require.NoError(t, err)
	_, err = e.Handle(ctx, request(schemas.ActionSubmitAnswer, resp.SessionID, answers(t, map[string]int{"beta": 1})))
	require.ErrorIs(t, err, ErrOptionsNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActionCounter("start", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActionCounter("submitAnswer", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActionCounter("submitAnswer", "integrity_error")))

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Question bank and session disagree", entries[0].Message)
	assert.Equal(t, resp.SessionID, entries[0].ContextMap()["session_id"])
}

func TestEngine_Results(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, testBank())

	resp, err := e.Handle(ctx, request(schemas.ActionStart, "", nil))
	require.NoError(t, err)
	id := resp.SessionID

	_, _, err = e.Results(ctx, id)
	assert.ErrorIs(t, err, ErrActionNotAllowed)

	for range 4 {
		_, err = e.Handle(ctx, request(schemas.ActionSubmitAnswer, id, answers(t, map[string]int{"alpha": 1})))
		require.NoError(t, err)
	}
	for range 2 {
		resp, err = e.Handle(ctx, request(schemas.ActionSubmitArchetypeRanking, id, ranking(t, "a3", "a2", "a1")))
		require.NoError(t, err)
	}
	require.Equal(t, schemas.StatusFinalResults, resp.Status)

	results, session, err := e.Results(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "a3", results.FinalArchetype)
	assert.Equal(t, "alpha", session.PrimaryDomain())
}
