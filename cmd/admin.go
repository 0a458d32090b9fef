package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/ari/internal/admin"
	"github.com/xkilldash9x/ari/internal/observability"
)

var prettyJSON = jsoniter.Config{EscapeHTML: false, SortMapKeys: true, IndentionStep: 2}.Froze()

// withAdmin opens the store, runs fn with an admin service and closes the
// store afterwards.
func withAdmin(cmd *cobra.Command, fn func(svc *admin.Service) error) error {
	kv, _, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer kv.Close()
	return fn(admin.NewService(kv, observability.GetLogger()))
}

func printJSON(w io.Writer, v any) error {
	b, err := prettyJSON.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}

func newAdminCmd() *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Inspect and maintain stored records",
	}
	adminCmd.AddCommand(
		newAdminListCmd(),
		newAdminDeleteCmd(),
		newAdminDeletePatternCmd(),
		newAdminExportCmd(),
		newAdminStatsCmd(),
	)
	return adminCmd
}

func newAdminListCmd() *cobra.Command {
	var pattern string
	c := &cobra.Command{
		Use:   "list",
		Short: "List keys matching a pattern",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAdmin(cmd, func(svc *admin.Service) error {
				res, err := svc.List(cmd.Context(), pattern)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	c.Flags().StringVarP(&pattern, "pattern", "p", admin.DefaultPattern, "key glob pattern")
	return c
}

func newAdminDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete one key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, func(svc *admin.Service) error {
				if err := svc.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				cmd.Printf("Deleted key: %s\n", args[0])
				return nil
			})
		},
	}
}

func newAdminDeletePatternCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-pattern <pattern>",
		Short: "Delete every key matching a pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, func(svc *admin.Service) error {
				n, err := svc.DeletePattern(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				cmd.Printf("Deleted %d keys matching pattern: %s\n", n, args[0])
				return nil
			})
		},
	}
}

func newAdminExportCmd() *cobra.Command {
	var (
		pattern string
		format  string
		output  string
	)
	c := &cobra.Command{
		Use:   "export",
		Short: "Export records as JSON or CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			write := admin.WriteJSON
			switch format {
			case "json":
			case "csv":
				write = admin.WriteCSV
			default:
				return fmt.Errorf("unsupported format %q (use json or csv)", format)
			}
			return withAdmin(cmd, func(svc *admin.Service) error {
				records, err := svc.Export(cmd.Context(), pattern)
				if err != nil {
					return err
				}
				if output == "" {
					return write(cmd.OutOrStdout(), records)
				}
				if output == "auto" {
					output = admin.ExportFilename(time.Now(), format)
				}
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				if err := write(f, records); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				cmd.PrintErrf("Exported %d records to %s\n", len(records), output)
				return nil
			})
		},
	}
	c.Flags().StringVarP(&pattern, "pattern", "p", admin.DefaultPattern, "key glob pattern")
	c.Flags().StringVar(&format, "format", "json", "output format: json or csv")
	c.Flags().StringVarP(&output, "output", "o", "", `output file ("auto" names it by date; default stdout)`)
	return c
}

func newAdminStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show submission statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAdmin(cmd, func(svc *admin.Service) error {
				st, err := svc.Stats(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), st)
			})
		},
	}
}
