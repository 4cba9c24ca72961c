package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/rulemap/internal/embeddings"
	"github.com/fyrsmithlabs/rulemap/internal/index"
)

var searchTopK int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed rules by meaning",
	Long: `Search embeds the query with the configured embedding provider and
returns the closest rules from the persistent index. Run analyze with
index.enabled first to populate it.

Examples:
  rulemap search "discount for large orders"
  rulemap search --top 10 "age eligibility"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top", "k", 5, "number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Enrichment.Embeddings.Provider,
		Model:    cfg.Enrichment.Embeddings.Model,
		BaseURL:  cfg.Enrichment.Embeddings.BaseURL,
		CacheDir: cfg.Enrichment.Embeddings.CacheDir,
	})
	if err != nil {
		return fmt.Errorf("initializing embedding provider: %w", err)
	}

	store, err := index.New(cfg.Index, provider, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	hits, err := store.Search(cmd.Context(), args[0], searchTopK)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(hits) == 0 {
		fmt.Fprintln(out, "no matches")
		return nil
	}
	for i, hit := range hits {
		location := hit.Metadata["file"]
		if line := hit.Metadata["start_line"]; line != "" {
			location += "#L" + line
		}
		summary := hit.Content
		if idx := strings.IndexByte(summary, '\n'); idx >= 0 {
			summary = summary[:idx]
		}
		fmt.Fprintf(out, "%2d. [%.3f] %s (%s)\n    %s\n", i+1, hit.Score, hit.ID, location, summary)
	}
	return nil
}
