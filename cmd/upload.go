package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ari/api/schemas"
	"github.com/xkilldash9x/ari/internal/blob"
	"github.com/xkilldash9x/ari/internal/observability"
)

func newUploadPDFsCmd() *cobra.Command {
	var dir string

	uploadCmd := &cobra.Command{
		Use:   "upload-pdfs",
		Short: "Upload the archetype PDF reports to blob storage",
		Long: `Upload every *.pdf file in --dir to the configured blob storage. Files are
stored under their base name, which must be "<archetype>.pdf".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				return fmt.Errorf("failed to read reports directory: %w", err)
			}
			var files []string
			for _, e := range entries {
				if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
					files = append(files, e.Name())
				}
			}
			slices.Sort(files)
			if len(files) == 0 {
				return fmt.Errorf("no PDF files found in %s", dir)
			}

			store, err := blob.New(cfg.Blob(), logger)
			if err != nil {
				return fmt.Errorf("failed to initialize blob storage: %w", err)
			}

			failed := 0
			for _, name := range files {
				if err := uploadFile(ctx, store, dir, name); err != nil {
					failed++
					logger.Error("Upload failed", zap.String("file", name), zap.Error(err))
					cmd.PrintErrf("failed: %s: %v\n", name, err)
					continue
				}
				cmd.Printf("uploaded: %s\n", name)
			}
			cmd.Printf("%d of %d files uploaded\n", len(files)-failed, len(files))
			if failed > 0 {
				return fmt.Errorf("%d uploads failed", failed)
			}
			return nil
		},
	}
	uploadCmd.Flags().StringVarP(&dir, "dir", "d", "reports", "directory containing the PDF files")
	return uploadCmd
}

func uploadFile(ctx context.Context, store schemas.BlobStore, dir, name string) error {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer f.Close()
	return store.Put(ctx, name, f, "application/pdf")
}
