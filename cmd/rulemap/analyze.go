package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/rulemap/internal/pipeline"
)

var analyzeOutputDir string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <repository>",
	Short: "Extract rules from a repository and render all outputs",
	Long: `Analyze walks the repository, extracts business rules from SQL and
application code, and writes the DMN diagram, Markdown report, and JSON
interchange document to the output directory.

Examples:
  # Analyze the current directory
  rulemap analyze .

  # Analyze with a config file and custom output directory
  rulemap analyze --config rulemap.yaml --output ./artifacts ~/src/shop`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOutputDir, "output", "o", "", "output directory (overrides config)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if analyzeOutputDir != "" {
		cfg.Output.Dir = analyzeOutputDir
	}

	result, err := pipeline.New(cfg, logger).Run(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Analyzed %d files: %d rules in %d groups, %d dependencies\n",
		result.FilesScanned,
		len(result.Model.Rules),
		len(result.Model.Groups),
		len(result.Model.Dependencies),
	)
	if result.FlaggedSecrets > 0 {
		fmt.Fprintf(out, "WARNING: %d rule snippets contain secret-shaped material (see report)\n",
			result.FlaggedSecrets)
	}
	fmt.Fprintf(out, "  diagram:     %s\n", result.DMNPath)
	fmt.Fprintf(out, "  report:      %s\n", result.ReportPath)
	fmt.Fprintf(out, "  interchange: %s\n", result.InterchangePath)
	return nil
}
