package admin

import (
	"bytes"
	"context"
	stdjson "encoding/json"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/ari/api/schemas"
	"github.com/xkilldash9x/ari/internal/store"
)

func seed(t *testing.T, kv schemas.KeyValueStore, key string, v any) {
	t.Helper()
	raw, err := stdjson.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), key, raw, 0))
}

func submission(id, archetype, domain string, at time.Time) schemas.Submission {
	return schemas.Submission{
		ID:            id,
		FirstName:     "User " + id,
		Email:         id + "@example.com",
		Archetype:     archetype,
		PrimaryDomain: domain,
		Scores:        map[string]int{domain: 7},
		CompletedAt:   at,
	}
}

func seeded(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	seed(t, mem, "submission:a", submission("a", "analyst", "mentis", base.Add(2*time.Hour)))
	seed(t, mem, "submission:b", submission("b", "analyst", "mentis", base))
	seed(t, mem, "submission:c", submission("c", "guardian", "foederis", base.Add(time.Hour)))
	seed(t, mem, "summary:a", schemas.Summary{ID: "a", Archetype: "analyst"})
	seed(t, mem, "download:t1", schemas.DownloadGrant{TokenID: "t1"})
	seed(t, mem, "sess_x", map[string]any{"phase": 1})
	return NewService(mem, nil), mem
}

// -- Authorization --

func TestAuthorized(t *testing.T) {
	assert.True(t, Authorized("Bearer k3y", "k3y"))
	assert.False(t, Authorized("Bearer wrong", "k3y"))
	assert.False(t, Authorized("k3y", "k3y"))
	assert.False(t, Authorized("Bearer ", ""), "empty key disables access")
}

// -- Operations --

func TestList(t *testing.T) {
	svc, _ := seeded(t)
	ctx := context.Background()

	res, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultPattern, res.Pattern)
	assert.Equal(t, []string{"submission:a", "submission:b", "submission:c"}, res.Keys)
	assert.Equal(t, 3, res.Count)

	res, err = svc.List(ctx, "nothing:*")
	require.NoError(t, err)
	assert.NotNil(t, res.Keys)
	assert.Zero(t, res.Count)
}

func TestDelete(t *testing.T) {
	svc, mem := seeded(t)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, "summary:a"))
	_, err := mem.Get(ctx, "summary:a")
	assert.ErrorIs(t, err, schemas.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, ""), ErrMissingParameter)

	n, err := svc.DeletePattern(ctx, "submission:*")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	keys, err := mem.Keys(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"download:t1", "sess_x"}, keys)

	_, err = svc.DeletePattern(ctx, "")
	assert.ErrorIs(t, err, ErrMissingParameter)
}

func TestExport(t *testing.T) {
	svc, mem := seeded(t)
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, "submission:raw", []byte(`"just text"`), 0))

	records, err := svc.Export(ctx, "")
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "submission:a", records[0]["key"])
	assert.Equal(t, "analyst", records[0]["archetype"])
	assert.Equal(t, "just text", records[3]["value"])

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, records[:1]))
	var decoded []map[string]any
	require.NoError(t, stdjson.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "a@example.com", decoded[0]["email"])
}

func TestWriteCSV(t *testing.T) {
	records := []Record{
		{"key": "submission:a", "archetype": "analyst", "scores": map[string]any{"mentis": 7}, "note": `say "hi"`},
		{"key": "submission:b", "archetype": "guardian", "extra": "dropped"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"archetype", "key", "note", "scores"}, rows[0])
	assert.Equal(t, []string{"analyst", "submission:a", `say "hi"`, `{"mentis":7}`}, rows[1])
	assert.Equal(t, []string{"guardian", "submission:b", "", ""}, rows[2])

	buf.Reset()
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "No data found\n", buf.String())
}

func TestStats(t *testing.T) {
	svc, _ := seeded(t)

	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalSubmissions)
	assert.Equal(t, 1, st.ActiveDownloads)
	assert.Equal(t, 1, st.SummaryRecords)
	assert.Equal(t, 3, st.SampleSize)
	assert.Equal(t, map[string]int{"analyst": 2, "guardian": 1}, st.ArchetypeBreakdown)
	assert.Equal(t, map[string]int{"mentis": 2, "foederis": 1}, st.DomainBreakdown)
	require.NotNil(t, st.OldestSubmission)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), st.OldestSubmission.UTC())
	assert.Equal(t, time.Date(2026, 4, 1, 2, 0, 0, 0, time.UTC), st.NewestSubmission.UTC())
}

func TestStats_SampleIsCapped(t *testing.T) {
	mem := store.NewMemory()
	for i := range StatsSampleSize + 5 {
		seed(t, mem, "submission:"+strings.Repeat("x", i+1), submission("s", "analyst", "mentis", time.Now()))
	}
	st, err := NewService(mem, nil).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatsSampleSize+5, st.TotalSubmissions)
	assert.Equal(t, StatsSampleSize, st.SampleSize)
	assert.Equal(t, StatsSampleSize, st.ArchetypeBreakdown["analyst"])
}

type brokenStore struct{ *store.Memory }

func (brokenStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection reset")
}

func TestExport_PropagatesReadErrors(t *testing.T) {
	_, mem := seeded(t)
	svc := NewService(brokenStore{mem}, nil)
	_, err := svc.Export(context.Background(), "")
	assert.ErrorContains(t, err, "connection reset")
}

func TestExportFilename(t *testing.T) {
	at := time.Date(2026, 10, 18, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "submissions_2026-10-18.csv", ExportFilename(at, "csv"))
}
