package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/rulemap/internal/pipeline"
	"github.com/fyrsmithlabs/rulemap/internal/trace"
)

var (
	validateModelPath string
	validateRepoPath  string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Verify that a diagram's traceability records still match the sources",
	Long: `Validate parses a generated DMN diagram and checks every traceability
record against the repository: the source file must exist, the recorded
line range must be inside it, and the stored snippet must match the
text at that range. Exits non-zero when any record fails or when the
diagram carries no records at all.

Examples:
  rulemap validate --model rulemap-out/rules.dmn --repo .`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateModelPath, "model", "m",
		filepath.Join("rulemap-out", pipeline.DMNFileName), "path to the DMN diagram")
	validateCmd.Flags().StringVarP(&validateRepoPath, "repo", "r", ".", "repository root")
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	result, err := trace.NewValidator(validateRepoPath, logger).ValidateFile(validateModelPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if result.OK() {
		fmt.Fprintf(out, "OK: %d traceability records verified\n", result.Records)
		return nil
	}

	for _, issue := range result.Issues {
		fmt.Fprintln(out, issue.String())
	}
	if result.Records == 0 {
		return fmt.Errorf("validation failed: diagram carries no traceability records")
	}
	return fmt.Errorf("validation failed: %d of %d records have issues",
		len(result.Issues), result.Records)
}
