package bank

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ari/api/schemas"
	"github.com/xkilldash9x/ari/internal/store"
)

func TestDefaultBank(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"mentis", "imperii", "operis", "foederis"}, b.Domains.Keys())
	assert.Len(t, b.Phase1, 8)
	assert.Len(t, b.Phase2, 10)
	assert.Len(t, b.Phase3, 7)
	assert.Equal(t, 8, b.Phase1Threshold())
	assert.Equal(t, 18, b.Phase2Threshold())
	assert.Equal(t, 25, b.TotalQuestions())
	assert.Equal(t, []string{"commander", "vanguard", "pathfinder", "advocate"}, b.ArchetypesOf("imperii"))
	assert.Equal(t, "Forgemaster", b.ArchetypeName("forgemaster"))

	warnings, err := Validate(b)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestParse_JSONKeepsDeclarationOrder(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)

	raw, err := json.Marshal(b)
	require.NoError(t, err)
	decoded, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, b.Domains.Keys(), decoded.Domains.Keys())
	assert.Equal(t, b.ArchetypesOf("foederis"), decoded.ArchetypesOf("foederis"))
	assert.Equal(t, b.Profiles["analyst"].Impact.Avoid, decoded.Profiles["analyst"].Impact.Avoid)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("   "))
	assert.Error(t, err)
	_, err = Parse([]byte(`{"domains": [}`))
	assert.Error(t, err)
	_, err = Parse([]byte("domains: [unclosed"))
	assert.Error(t, err)
}

func TestValidate_DetectsIntegrityViolations(t *testing.T) {
	base := func(t *testing.T) *schemas.QuestionBank {
		b, err := Default()
		require.NoError(t, err)
		return b
	}

	t.Run("phase2 missing a domain", func(t *testing.T) {
		b := base(t)
		b.Phase2[0].Options = b.Phase2[0].Options[:3]
		_, err := Validate(b)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected exactly one option")
	})

	t.Run("phase1 unknown domain", func(t *testing.T) {
		b := base(t)
		b.Phase1[0].Options[0].Domain = "ghost"
		_, err := Validate(b)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown domain "ghost"`)
	})

	t.Run("phase3 archetype outside domain", func(t *testing.T) {
		b := base(t)
		b.Phase3[0].OptionsByDomain["mentis"][0].Archetype = "commander"
		_, err := Validate(b)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "outside domain")
	})

	t.Run("duplicate ids", func(t *testing.T) {
		b := base(t)
		b.Phase1[1].ID = b.Phase1[0].ID
		_, err := Validate(b)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate scenario id")
	})

	t.Run("missing profile is a warning", func(t *testing.T) {
		b := base(t)
		delete(b.Profiles, "shepherd")
		warnings, err := Validate(b)
		require.NoError(t, err)
		assert.Contains(t, warnings, `no profile for archetype "shepherd"`)
	})
}

func TestProvider(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()

	t.Run("unseeded store is unavailable", func(t *testing.T) {
		p := NewProvider(kv, "ari-question-bank", time.Minute, zap.NewNop())
		_, err := p.Load(ctx)
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	b, err := Default()
	require.NoError(t, err)
	_, err = Seed(ctx, kv, "ari-question-bank", b)
	require.NoError(t, err)

	t.Run("caches the parsed bank", func(t *testing.T) {
		p := NewProvider(kv, "ari-question-bank", time.Minute, zap.NewNop())
		first, err := p.Load(ctx)
		require.NoError(t, err)
		second, err := p.Load(ctx)
		require.NoError(t, err)
		assert.Same(t, first, second)

		p.Invalidate()
		third, err := p.Load(ctx)
		require.NoError(t, err)
		assert.NotSame(t, first, third)
	})

	t.Run("zero ttl disables caching", func(t *testing.T) {
		p := NewProvider(kv, "ari-question-bank", 0, zap.NewNop())
		first, err := p.Load(ctx)
		require.NoError(t, err)
		second, err := p.Load(ctx)
		require.NoError(t, err)
		assert.NotSame(t, first, second)
	})

	t.Run("corrupt document is unavailable", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "broken", []byte(`{"domains":`), 0))
		p := NewProvider(kv, "broken", 0, zap.NewNop())
		_, err := p.Load(ctx)
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("seed rejects invalid banks", func(t *testing.T) {
		_, err := Seed(ctx, kv, "other", &schemas.QuestionBank{})
		assert.Error(t, err)
		_, err = kv.Get(ctx, "other")
		assert.ErrorIs(t, err, schemas.ErrNotFound)
	})
}
