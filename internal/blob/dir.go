package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ari/api/schemas"
)

// Dir keeps objects as files in a local directory.
type Dir struct {
	root string
	log  *zap.Logger
}

// NewDir creates the directory if needed.
func NewDir(root string, logger *zap.Logger) (*Dir, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if root == "" {
		return nil, errors.New("blob directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Dir{root: root, log: logger.Named("blob")}, nil
}

func (d *Dir) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(d.root, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", schemas.ErrBlobNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Put writes through a temporary file so readers never see a partial object.
func (d *Dir) Put(ctx context.Context, name string, r io.Reader, _ string) error {
	if err := checkName(name); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.root, "."+name+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(d.root, name)); err != nil {
		return err
	}
	d.log.Info("Stored blob", zap.String("name", name))
	return nil
}
