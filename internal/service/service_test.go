package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ari/api/schemas"
	"github.com/xkilldash9x/ari/internal/assessment"
	"github.com/xkilldash9x/ari/internal/bank"
	"github.com/xkilldash9x/ari/internal/config"
	"github.com/xkilldash9x/ari/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.DownloadCfg.Secret = "s3cret"
	cfg.BlobCfg.Dir = filepath.Join(t.TempDir(), "reports")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	kv, err := OpenStore(ctx, config.StoreConfig{Driver: "memory"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &store.Memory{}, kv)

	kv, err = OpenStore(ctx, config.StoreConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "ari.db")}, zap.NewNop())
	require.NoError(t, err)
	assert.Implements(t, (*ExpirySweeper)(nil), kv)
	require.NoError(t, kv.Close())

	_, err = OpenStore(ctx, config.StoreConfig{Driver: "postgres"}, zap.NewNop())
	assert.ErrorContains(t, err, "ARI_DATABASE_URL")

	_, err = OpenStore(ctx, config.StoreConfig{Driver: "redis"}, zap.NewNop())
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestNewPolicy(t *testing.T) {
	p := NewPolicy(config.AssessmentConfig{
		ShufflePhase1:             true,
		UnknownKeys:               "reject",
		Phase2OptionCount:         2,
		DomainResultsInterstitial: true,
	})
	assert.Equal(t, assessment.Policy{
		ShufflePhase1:             true,
		UnknownKeys:               assessment.UnknownKeysReject,
		Phase2OptionCount:         2,
		DomainResultsInterstitial: true,
	}, p)
}

func TestFactory_CreateAndServe(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	c, err := NewComponentFactory().Create(ctx, cfg, nil)
	require.NoError(t, err)
	defer c.Shutdown()

	qb, err := bank.Default()
	require.NoError(t, err)
	_, err = bank.Seed(ctx, c.Store, cfg.Assessment().BankKey(), qb)
	require.NoError(t, err)

	h := c.Server().Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/assessment", strings.NewReader(`{"action":"start"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"nextQuestion"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ari_assessment_actions_total{action="start",outcome="ok"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestFactory_UnseededBankIsUnavailable(t *testing.T) {
	c, err := NewComponentFactory().Create(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer c.Shutdown()

	_, err = c.Engine.Handle(context.Background(), schemas.AssessmentRequest{Action: schemas.ActionStart})
	assert.ErrorIs(t, err, assessment.ErrQuestionBankUnavailable)
}

func TestFactory_FailureShutsDownPartialComponents(t *testing.T) {
	cfg := testConfig(t)
	cfg.EmailCfg.Provider = "pigeon"

	_, err := NewComponentFactory().Create(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "email sender")
}

func TestFactory_SQLiteStartsJanitor(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig(t)
	cfg.StoreCfg = config.StoreConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "ari.db")}

	c, err := NewComponentFactory().Create(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, c.janitorWG)
	c.Shutdown()
}

type countingSweeper struct{ calls atomic.Int32 }

func (s *countingSweeper) DeleteExpired(context.Context) (int64, error) {
	s.calls.Add(1)
	return 1, nil
}

func TestStartJanitor(t *testing.T) {
	defer goleak.VerifyNone(t)

	sweeper := &countingSweeper{}
	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	StartJanitor(ctx, wg, sweeper, 5*time.Millisecond, zap.NewNop())

	require.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	wg.Wait()
}
