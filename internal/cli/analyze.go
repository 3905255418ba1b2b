package cli

import (
	"github.com/spf13/cobra"

	"github.com/dshills/entityscan/internal/format"
)

func (a *app) newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <filename>",
		Short: "Find entities in a text file",
		Long: `Analyze one text file and print {"entities": [...]} as a single JSON line.
Each entity carries its 0-based line, line-relative start and end and the
previous, current and next line.`,
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

			report, err := rt.analyzer.AnalyzeFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return format.WriteResult(cmd.OutOrStdout(), report.Hits)
		},
	}

	addAnalysisFlags(cmd.Flags())
	return cmd
}
