// Package blob stores and serves the archetype PDF reports.
package blob

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ari/api/schemas"
	"github.com/xkilldash9x/ari/internal/config"
)

// New returns the BlobStore selected by cfg.Driver.
func New(cfg config.BlobConfig, logger *zap.Logger) (schemas.BlobStore, error) {
	switch cfg.Driver {
	case "http":
		return NewHTTP(cfg.BaseURL, cfg.Token, cfg.Timeout, logger)
	case "dir":
		return NewDir(cfg.Dir, logger)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// ReportName is the object name of an archetype's PDF.
func ReportName(archetype string) string {
	return archetype + ".pdf"
}

// checkName rejects names that could escape the store's namespace.
func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid blob name %q", name)
	}
	return nil
}
