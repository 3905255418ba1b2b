package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/entityscan/internal/analyzer"
	"github.com/dshills/entityscan/internal/format"
)

func (a *app) newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <dir>",
		Short: "Find entities in every text file below a directory",
		Long: `Walk a directory in lexical order and print {"path": ..., "entities": [...]}
for each text file, one JSON line per file. Hidden directories and binary
files are skipped; files that fail are logged and the walk continues.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bindFlags(cmd, analysisFlagKeys); err != nil {
				return err
			}

			rt, err := a.setup(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			stats, err := rt.analyzer.AnalyzeDir(cmd.Context(), args[0], func(r *analyzer.Report) error {
				return format.WriteFileResult(out, r.Path, r.Hits)
			})
			if err != nil {
				return err
			}

			rt.logger.Debug("scan finished", zap.Int("files", stats.Files))
			return nil
		},
	}

	addAnalysisFlags(cmd.Flags())
	return cmd
}
