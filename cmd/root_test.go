package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/ari/internal/observability"
)

type env struct {
	dir     string
	cfgPath string
	blobDir string
}

// newEnv writes a config that points every backend into a temp directory.
func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	e := env{
		dir:     dir,
		cfgPath: filepath.Join(dir, "config.yaml"),
		blobDir: filepath.Join(dir, "blobs"),
	}
	cfg := fmt.Sprintf(`logger:
  level: error
store:
  driver: sqlite
  sqlite_path: %s
download:
  secret: cli-test-secret
blob:
  driver: dir
  dir: %s
`, filepath.Join(dir, "ari.db"), e.blobDir)
	require.NoError(t, os.WriteFile(e.cfgPath, []byte(cfg), 0o600))
	t.Cleanup(observability.ResetForTest)
	return e
}

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "ari "+Version+"\n", out)
}

func TestConfigErrors(t *testing.T) {
	t.Run("missing explicit file", func(t *testing.T) {
		_, _, err := run(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "admin", "stats")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize configuration")
	})

	t.Run("invalid driver", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: redis\ndownload:\n  secret: s\n"), 0o600))
		t.Cleanup(observability.ResetForTest)

		_, _, err := run(t, "--config", path, "admin", "stats")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown store driver "redis"`)
	})
}

func TestSeedAndAdmin(t *testing.T) {
	e := newEnv(t)

	out, _, err := run(t, "--config", e.cfgPath, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, `Seeded question bank "ari-question-bank"`)

	out, _, err = run(t, "--config", e.cfgPath, "admin", "list", "--pattern", "ari-*")
	require.NoError(t, err)
	assert.Contains(t, out, `"count": 1`)
	assert.Contains(t, out, `"ari-question-bank"`)

	out, _, err = run(t, "--config", e.cfgPath, "admin", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, `"totalSubmissions": 0`)

	exportPath := filepath.Join(e.dir, "bank.json")
	_, errOut, err := run(t, "--config", e.cfgPath, "admin", "export", "--pattern", "ari-*", "-o", exportPath)
	require.NoError(t, err)
	assert.Contains(t, errOut, "Exported 1 records")
	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"key": "ari-question-bank"`)

	_, _, err = run(t, "--config", e.cfgPath, "admin", "export", "--format", "xml")
	require.Error(t, err)

	out, _, err = run(t, "--config", e.cfgPath, "admin", "delete", "ari-question-bank")
	require.NoError(t, err)
	assert.Equal(t, "Deleted key: ari-question-bank\n", out)

	out, _, err = run(t, "--config", e.cfgPath, "admin", "list", "--pattern", "ari-*")
	require.NoError(t, err)
	assert.Contains(t, out, `"count": 0`)
}

func TestSeed_RejectsInvalidFile(t *testing.T) {
	e := newEnv(t)
	bad := filepath.Join(e.dir, "bank.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("domains: {}\n"), 0o600))

	_, _, err := run(t, "--config", e.cfgPath, "seed", "-f", bad)
	require.Error(t, err)
}

func TestUploadPDFs(t *testing.T) {
	e := newEnv(t)
	src := filepath.Join(e.dir, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	for name, body := range map[string]string{
		"analyst.pdf":  "%PDF-analyst",
		"finisher.PDF": "%PDF-finisher",
		"notes.txt":    "ignored",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(src, name), []byte(body), 0o600))
	}

	out, _, err := run(t, "--config", e.cfgPath, "upload-pdfs", "--dir", src)
	require.NoError(t, err)
	assert.Contains(t, out, "uploaded: analyst.pdf")
	assert.Contains(t, out, "2 of 2 files uploaded")

	got, err := os.ReadFile(filepath.Join(e.blobDir, "analyst.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-analyst", string(got))

	_, _, err = run(t, "--config", e.cfgPath, "upload-pdfs", "--dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no PDF files found")
}

func TestGetConfigFromContext_NotLoaded(t *testing.T) {
	_, err := getConfigFromContext(context.Background())
	assert.EqualError(t, err, "configuration not loaded")
}
