package bank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ari/api/schemas"
)

// ErrUnavailable is returned when the question bank cannot be loaded.
var ErrUnavailable = errors.New("question bank unavailable")

// Provider reads the question bank from the key-value store and keeps the
// parsed result in a short lived cache.
type Provider struct {
	store schemas.KeyValueStore
	key   string
	cache *expirable.LRU[string, *schemas.QuestionBank]
	log   *zap.Logger
}

// NewProvider creates a Provider for the bank stored under key. A cacheTTL of
// zero disables caching and every Load reads the store.
func NewProvider(store schemas.KeyValueStore, key string, cacheTTL time.Duration, logger *zap.Logger) *Provider {
	p := &Provider{store: store, key: key, log: logger.Named("bank")}
	if cacheTTL > 0 {
		p.cache = expirable.NewLRU[string, *schemas.QuestionBank](4, nil, cacheTTL)
	}
	return p
}

// Key returns the store key the provider reads.
func (p *Provider) Key() string { return p.key }

// Load returns the current question bank. The returned value is shared and
// must be treated as read-only.
func (p *Provider) Load(ctx context.Context) (*schemas.QuestionBank, error) {
	if p.cache != nil {
		if b, ok := p.cache.Get(p.key); ok {
			return b, nil
		}
	}

	raw, err := p.store.Get(ctx, p.key)
	if errors.Is(err, schemas.ErrNotFound) {
		return nil, fmt.Errorf("%w: key %q is not seeded", ErrUnavailable, p.key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	b, err := Parse(raw)
	if err != nil {
		p.log.Error("Stored question bank is unreadable", zap.String("key", p.key), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if p.cache != nil {
		p.cache.Add(p.key, b)
	}
	return b, nil
}

// Invalidate drops any cached copy.
func (p *Provider) Invalidate() {
	if p.cache != nil {
		p.cache.Purge()
	}
}

// Seed validates b and writes it to the store under key as JSON.
func Seed(ctx context.Context, store schemas.KeyValueStore, key string, b *schemas.QuestionBank) ([]string, error) {
	warnings, err := Validate(b)
	if err != nil {
		return warnings, fmt.Errorf("question bank is invalid: %w", err)
	}
	data, err := json.Marshal(b)
	if err != nil {
		return warnings, fmt.Errorf("encode question bank: %w", err)
	}
	if err := store.Set(ctx, key, data, 0); err != nil {
		return warnings, fmt.Errorf("store question bank: %w", err)
	}
	return warnings, nil
}
