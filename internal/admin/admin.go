// Package admin implements the maintenance operations behind the manage-data
// endpoint and the "ari admin" commands.
package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/ari/api/schemas"
)

// DefaultPattern is used when list or export get no pattern.
const DefaultPattern = schemas.SubmissionKeyPrefix + "*"

// StatsSampleSize caps how many submissions Stats reads.
const StatsSampleSize = 50

const fetchConcurrency = 8

// ErrMissingParameter is returned when an operation lacks its key or pattern.
var ErrMissingParameter = errors.New("missing parameter")

var json = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

// Service runs admin operations against a key-value store.
type Service struct {
	store schemas.KeyValueStore
	log   *zap.Logger
}

func NewService(store schemas.KeyValueStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, log: logger.Named("admin")}
}

// Authorized reports whether header carries "Bearer <key>". An empty key
// authorizes nothing.
func Authorized(header, key string) bool {
	if key == "" {
		return false
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1
}

// -- List / Delete --

// ListResult is the answer to action=list.
type ListResult struct {
	Pattern string   `json:"pattern"`
	Count   int      `json:"count"`
	Keys    []string `json:"keys"`
}

func (s *Service) List(ctx context.Context, pattern string) (*ListResult, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	keys, err := s.store.Keys(ctx, pattern)
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []string{}
	}
	return &ListResult{Pattern: pattern, Count: len(keys), Keys: keys}, nil
}

func (s *Service) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("%w: key", ErrMissingParameter)
	}
	if err := s.store.Del(ctx, key); err != nil {
		return err
	}
	s.log.Info("Deleted key", zap.String("key", key))
	return nil
}

// DeletePattern deletes every key matching pattern and returns how many were
// removed. A failure stops the sweep and reports the count so far.
func (s *Service) DeletePattern(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		return 0, fmt.Errorf("%w: pattern", ErrMissingParameter)
	}
	keys, err := s.store.Keys(ctx, pattern)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, k := range keys {
		if err := s.store.Del(ctx, k); err != nil {
			return deleted, fmt.Errorf("failed to delete %s: %w", k, err)
		}
		deleted++
	}
	s.log.Info("Deleted keys by pattern", zap.String("pattern", pattern), zap.Int("count", deleted))
	return deleted, nil
}

// -- Export --

// Record is one exported value: its decoded JSON object plus a "key" field.
type Record map[string]any

// Export reads every value matching pattern. Values that vanish between the
// scan and the read are skipped; values that are not JSON objects are
// exported under "value".
func (s *Service) Export(ctx context.Context, pattern string) ([]Record, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	keys, err := s.store.Keys(ctx, pattern)
	if err != nil {
		return nil, err
	}
	slots, err := s.fetch(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(slots))
	for i, raw := range slots {
		if raw == nil {
			continue
		}
		rec := Record{}
		if err := json.Unmarshal(raw, &rec); err != nil || rec == nil {
			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				v = string(raw)
			}
			rec = Record{"value": v}
		}
		rec["key"] = keys[i]
		out = append(out, rec)
	}
	return out, nil
}

// fetch reads keys concurrently. The result is index aligned with keys and
// holds nil for keys that no longer exist.
func (s *Service) fetch(ctx context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, k := range keys {
		g.Go(func() error {
			raw, err := s.store.Get(gctx, k)
			if errors.Is(err, schemas.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", k, err)
			}
			out[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportFilename is the attachment name for an export made at t.
func ExportFilename(t time.Time, format string) string {
	return fmt.Sprintf("submissions_%s.%s", t.UTC().Format(time.DateOnly), format)
}

// -- Stats --

// Stats is the answer to action=stats.
type Stats struct {
	TotalSubmissions   int            `json:"totalSubmissions"`
	ActiveDownloads    int            `json:"activeDownloads"`
	SummaryRecords     int            `json:"summaryRecords"`
	SampleSize         int            `json:"sampleSize"`
	ArchetypeBreakdown map[string]int `json:"archetypeBreakdown"`
	DomainBreakdown    map[string]int `json:"domainBreakdown"`
	OldestSubmission   *time.Time     `json:"oldestSubmission"`
	NewestSubmission   *time.Time     `json:"newestSubmission"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var submissions, downloads, summaries []string
	g, gctx := errgroup.WithContext(ctx)
	for pattern, dst := range map[string]*[]string{
		schemas.SubmissionKeyPrefix + "*": &submissions,
		schemas.DownloadKeyPrefix + "*":   &downloads,
		schemas.SummaryKeyPrefix + "*":    &summaries,
	} {
		g.Go(func() error {
			keys, err := s.store.Keys(gctx, pattern)
			*dst = keys
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sample := submissions[:min(StatsSampleSize, len(submissions))]
	raws, err := s.fetch(ctx, sample)
	if err != nil {
		return nil, err
	}

	st := &Stats{
		TotalSubmissions:   len(submissions),
		ActiveDownloads:    len(downloads),
		SummaryRecords:     len(summaries),
		SampleSize:         len(sample),
		ArchetypeBreakdown: map[string]int{},
		DomainBreakdown:    map[string]int{},
	}
	for _, raw := range raws {
		if raw == nil {
			continue
		}
		var sub schemas.Submission
		if err := json.Unmarshal(raw, &sub); err != nil || sub.Archetype == "" {
			continue
		}
		st.ArchetypeBreakdown[sub.Archetype]++
		if sub.PrimaryDomain != "" {
			st.DomainBreakdown[sub.PrimaryDomain]++
		}
		if sub.CompletedAt.IsZero() {
			continue
		}
		at := sub.CompletedAt
		if st.OldestSubmission == nil || at.Before(*st.OldestSubmission) {
			st.OldestSubmission = &at
		}
		if st.NewestSubmission == nil || at.After(*st.NewestSubmission) {
			st.NewestSubmission = &at
		}
	}
	return st, nil
}

// -- Usage --

// Usage is returned when no action is given.
func Usage() map[string]any {
	return map[string]any{
		"message": "Data Management API",
		"usage": map[string]string{
			"list":          "/api/manage-data?action=list&pattern=submission:*",
			"delete":        "/api/manage-data?action=delete&key=submission:sess_123...",
			"deletePattern": "/api/manage-data?action=delete-pattern&pattern=submission:*",
			"exportJSON":    "/api/manage-data?action=export&pattern=submission:*",
			"exportCSV":     "/api/manage-data?action=export&pattern=submission:*&format=csv",
			"stats":         "/api/manage-data?action=stats",
		},
		"note": "Requires Authorization header with admin key",
	}
}
