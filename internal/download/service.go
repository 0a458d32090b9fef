package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ari/api/schemas"
	"github.com/xkilldash9x/ari/internal/blob"
	"github.com/xkilldash9x/ari/internal/config"
	"github.com/xkilldash9x/ari/internal/observability"
)

// BankLoader yields the active question bank.
type BankLoader interface {
	Load(ctx context.Context) (*schemas.QuestionBank, error)
}

// Service grants download links and resolves them to PDF streams.
type Service struct {
	store    schemas.KeyValueStore
	blobs    schemas.BlobStore
	bank     BankLoader
	tokens   *Tokens
	ttl      time.Duration
	trackTTL time.Duration
	oneShot  bool
	now      func() time.Time
	metrics  *observability.Metrics
	log      *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source for tokens and record ages.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service from the download configuration.
func NewService(cfg config.DownloadConfig, store schemas.KeyValueStore, blobs schemas.BlobStore, bank BankLoader, logger *zap.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:    store,
		blobs:    blobs,
		bank:     bank,
		ttl:      cfg.TTL,
		trackTTL: cfg.TrackTTL,
		oneShot:  cfg.OneShot,
		now:      time.Now,
		log:      logger.Named("download"),
	}
	for _, opt := range opts {
		opt(s)
	}
	tokens, err := NewTokens(cfg.Secret, cfg.TTL, s.now)
	if err != nil {
		return nil, err
	}
	s.tokens = tokens
	return s, nil
}

// Grant mints a link token and stores its grant record.
func (s *Service) Grant(ctx context.Context, firstName, email, archetype string) (string, error) {
	token, id, err := s.tokens.Mint(archetype)
	if err != nil {
		return "", err
	}
	grant := schemas.DownloadGrant{
		TokenID:   id,
		FirstName: firstName,
		Email:     email,
		Archetype: archetype,
		CreatedAt: s.now().UTC(),
	}
	raw, err := json.Marshal(grant)
	if err != nil {
		return "", err
	}
	if err := s.store.Set(ctx, schemas.DownloadKeyPrefix+id, raw, s.ttl); err != nil {
		return "", fmt.Errorf("failed to store download grant: %w", err)
	}
	return token, nil
}

// Download is a resolved link. The caller closes Body.
type Download struct {
	Grant    schemas.DownloadGrant
	Filename string
	Body     io.ReadCloser
}

// Resolve verifies token, checks its grant record and opens the PDF.
func (s *Service) Resolve(ctx context.Context, token, userAgent string) (*Download, error) {
	d, err := s.resolve(ctx, token, userAgent)
	s.metrics.ObserveDownload(downloadOutcome(err))
	return d, err
}

func (s *Service) resolve(ctx context.Context, token, userAgent string) (*Download, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	key := schemas.DownloadKeyPrefix + claims.ID
	log := observability.FromContext(ctx, s.log).With(zap.String("token_id", claims.ID))

	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, schemas.ErrNotFound) {
		return nil, fmt.Errorf("%w: no grant for token", ErrExpiredOrInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load download grant: %w", err)
	}
	var grant schemas.DownloadGrant
	if err := json.Unmarshal(raw, &grant); err != nil {
		return nil, fmt.Errorf("%w: unreadable grant: %v", ErrExpiredOrInvalid, err)
	}

	if s.now().Sub(grant.CreatedAt) > s.ttl {
		if err := s.store.Del(ctx, key); err != nil {
			log.Warn("Failed to remove expired download grant", zap.Error(err))
		}
		return nil, ErrExpired
	}

	qb, err := s.bank.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !qb.HasArchetype(grant.Archetype) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidArchetype, grant.Archetype)
	}

	body, err := s.blobs.Open(ctx, blob.ReportName(grant.Archetype))
	if errors.Is(err, schemas.ErrBlobNotFound) {
		log.Error("Report PDF is missing from blob storage", zap.String("archetype", grant.Archetype))
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, grant.Archetype)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}

	s.track(ctx, log, grant, userAgent)
	if s.oneShot {
		if err := s.store.Del(ctx, key); err != nil {
			log.Warn("Failed to consume one-shot download grant", zap.Error(err))
		}
	}
	log.Info("Serving report", zap.String("archetype", grant.Archetype))

	return &Download{
		Grant:    grant,
		Filename: fmt.Sprintf("%s-%s-profile.pdf", safeFilenamePart(grant.FirstName), grant.Archetype),
		Body:     body,
	}, nil
}

// track writes the downloaded:<id> record. Failures are logged only.
func (s *Service) track(ctx context.Context, log *zap.Logger, grant schemas.DownloadGrant, userAgent string) {
	if userAgent == "" {
		userAgent = "unknown"
	}
	raw, err := json.Marshal(schemas.DownloadEvent{
		TokenID:      grant.TokenID,
		Archetype:    grant.Archetype,
		Email:        grant.Email,
		UserAgent:    userAgent,
		DownloadedAt: s.now().UTC(),
	})
	if err == nil {
		err = s.store.Set(ctx, schemas.DownloadedKeyPrefix+grant.TokenID, raw, s.trackTTL)
	}
	if err != nil {
		log.Warn("Download tracking failed", zap.Error(err))
	}
}

// safeFilenamePart keeps a header-safe version of a user supplied name.
func safeFilenamePart(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '"' || r == '\\' || r == '/' || unicode.IsControl(r):
			return -1
		case unicode.IsSpace(r):
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if cleaned == "" {
		return "report"
	}
	return cleaned
}

func downloadOutcome(err error) string {
	switch {
	case err == nil:
		return "served"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrExpiredOrInvalid):
		return "invalid"
	case errors.Is(err, ErrReportNotFound):
		return "missing_pdf"
	default:
		return "error"
	}
}
