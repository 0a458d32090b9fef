package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ari/api/schemas"
	"github.com/xkilldash9x/ari/internal/bank"
	"github.com/xkilldash9x/ari/internal/config"
	"github.com/xkilldash9x/ari/internal/observability"
	"github.com/xkilldash9x/ari/internal/service"
)

// openStore opens the configured store for a one-shot command. The caller
// closes it.
func openStore(ctx context.Context) (schemas.KeyValueStore, *config.Config, error) {
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	kv, err := service.OpenStore(ctx, cfg.Store(), observability.GetLogger())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	return kv, cfg, nil
}

func newSeedCmd() *cobra.Command {
	var file string

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Validate a question bank and write it to the store",
		Long: `Seed validates the question bank and stores it under the configured key
(assessment.question_bank_key, default "<product>-question-bank").
Without --file the built-in bank is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			var (
				qb  *schemas.QuestionBank
				err error
			)
			if file != "" {
				data, readErr := os.ReadFile(file)
				if readErr != nil {
					return fmt.Errorf("failed to read question bank: %w", readErr)
				}
				qb, err = bank.Parse(data)
			} else {
				qb, err = bank.Default()
			}
			if err != nil {
				return err
			}

			kv, cfg, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer kv.Close()

			key := cfg.Assessment().BankKey()
			warnings, err := bank.Seed(ctx, kv, key, qb)
			for _, w := range warnings {
				logger.Warn("Question bank warning", zap.String("detail", w))
				cmd.PrintErrln("warning:", w)
			}
			if err != nil {
				return err
			}

			cmd.Printf("Seeded question bank %q: %d domains, %d archetypes, %d/%d/%d scenarios\n",
				key, qb.Domains.Len(), countArchetypes(qb), len(qb.Phase1), len(qb.Phase2), len(qb.Phase3))
			return nil
		},
	}
	seedCmd.Flags().StringVarP(&file, "file", "f", "", "question bank file (YAML or JSON)")
	return seedCmd
}

func countArchetypes(qb *schemas.QuestionBank) int {
	n := 0
	for _, domain := range qb.Domains.Keys() {
		if group, ok := qb.Archetypes.Get(domain); ok {
			n += group.Len()
		}
	}
	return n
}
