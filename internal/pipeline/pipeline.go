// Package pipeline runs the full analysis sequence: walk the
// repository, extract rules per file, normalize, enrich, group, infer
// dependencies, and render the diagram, report, and interchange
// outputs. Stages are synchronous over the whole collection; only
// extraction fans out, bounded by pipeline.workers, with per-file slot
// writes so output order never depends on scheduling.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/rulemap/internal/cluster"
	"github.com/fyrsmithlabs/rulemap/internal/config"
	"github.com/fyrsmithlabs/rulemap/internal/dmn"
	"github.com/fyrsmithlabs/rulemap/internal/embeddings"
	"github.com/fyrsmithlabs/rulemap/internal/enrich"
	"github.com/fyrsmithlabs/rulemap/internal/extract"
	"github.com/fyrsmithlabs/rulemap/internal/index"
	"github.com/fyrsmithlabs/rulemap/internal/ingest"
	"github.com/fyrsmithlabs/rulemap/internal/logging"
	"github.com/fyrsmithlabs/rulemap/internal/normalize"
	"github.com/fyrsmithlabs/rulemap/internal/provenance"
	"github.com/fyrsmithlabs/rulemap/internal/rules"
	"github.com/fyrsmithlabs/rulemap/internal/secrets"
)

// Output file names under the configured output directory.
const (
	DMNFileName         = "rules.dmn"
	ReportFileName      = "report.md"
	InterchangeFileName = "rules.json"
)

// Result summarizes a completed run.
type Result struct {
	Model           *rules.DecisionModel
	DMNPath         string
	ReportPath      string
	InterchangePath string
	FilesScanned    int
	FlaggedSecrets  int
}

// Pipeline wires the stages together from configuration.
type Pipeline struct {
	cfg    *config.Config
	logger *logging.Logger
}

// New creates a pipeline. The configuration must already be validated.
func New(cfg *config.Config, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{cfg: cfg, logger: logger.Named("pipeline")}
}

// Run analyzes the repository at repoPath and writes all outputs.
func (p *Pipeline) Run(ctx context.Context, repoPath string) (*Result, error) {
	started := time.Now()

	files, err := ingest.NewWalker(p.cfg.Repository, p.logger).Walk(repoPath)
	if err != nil {
		return nil, fmt.Errorf("walking repository: %w", err)
	}

	extracted, err := p.extract(ctx, repoPath, files)
	if err != nil {
		return nil, err
	}

	rs := normalize.New(p.cfg.Pipeline.MinConfidence, p.logger).Process(extracted)

	adapter, err := p.buildAdapter()
	if err != nil {
		return nil, err
	}
	if err := enrich.New(adapter, !p.cfg.Enrichment.DisableConcepts, p.logger).Enrich(ctx, rs); err != nil {
		return nil, fmt.Errorf("enriching rules: %w", err)
	}

	flagged := 0
	if p.cfg.Secrets.Enabled {
		scanner, err := secrets.NewScanner(p.logger)
		if err != nil {
			return nil, fmt.Errorf("initializing secret scanner: %w", err)
		}
		flagged = scanner.ScanRules(rs)
	}

	groups := cluster.New(p.cfg.Clustering, p.logger).Cluster(rs)
	deps := cluster.InferDependencies(groups)

	model := &rules.DecisionModel{Rules: rs, Groups: groups, Dependencies: deps}
	p.stampMetadata(model, repoPath, started)

	result := &Result{
		Model:          model,
		FilesScanned:   len(files),
		FlaggedSecrets: flagged,
	}
	if err := p.writeOutputs(model, result); err != nil {
		return nil, err
	}

	if p.cfg.Index.Enabled {
		p.indexRules(ctx, rs)
	}

	p.logger.Info("analysis complete",
		zap.Int("files", len(files)),
		zap.Int("rules", len(rs)),
		zap.Int("groups", len(groups)),
		zap.Int("dependencies", len(deps)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// extract fans out across files. Each worker writes into its own slot,
// so the flattened rule order follows the walk order. Per-file failures
// are logged and skipped; only cancellation aborts the batch.
func (p *Pipeline) extract(ctx context.Context, repoPath string, files []ingest.SourceFile) ([]*rules.Rule, error) {
	sqlExtractor := extract.NewSQLExtractor(p.logger)
	appExtractors := make(map[string]*extract.AppCodeExtractor, len(p.cfg.Repository.CodeExtensions))
	for lang := range p.cfg.Repository.CodeExtensions {
		appExtractors[lang] = extract.NewAppCodeExtractor(lang, p.logger)
	}

	perFile := make([][]*rules.Rule, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Pipeline.Workers)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			content, err := os.ReadFile(filepath.Join(repoPath, filepath.FromSlash(f.Path)))
			if err != nil {
				p.logger.Warn("skipping unreadable file",
					zap.String("path", f.Path),
					zap.Error(err),
				)
				return nil
			}

			if f.Language == ingest.LanguageSQL {
				perFile[i] = sqlExtractor.Extract(f.Path, string(content))
			} else if e, ok := appExtractors[f.Language]; ok {
				perFile[i] = e.Extract(f.Path, string(content))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extraction canceled: %w", err)
	}

	var flat []*rules.Rule
	for _, rs := range perFile {
		flat = append(flat, rs...)
	}
	return flat, nil
}

// buildAdapter resolves the enrichment adapter from configuration.
func (p *Pipeline) buildAdapter() (enrich.Adapter, error) {
	if p.cfg.Enrichment.Provider != config.EnrichLLM {
		return enrich.NewStubAdapter(), nil
	}

	provider, err := p.embeddingProvider()
	if err != nil {
		return nil, err
	}

	var describer *enrich.ClaudeDescriber
	if p.cfg.Enrichment.Describe.Enabled {
		key := os.Getenv(p.cfg.Enrichment.Describe.APIKeyEnv)
		if key == "" {
			p.logger.Warn("describe enabled but API key env is empty, descriptions stay template-based",
				zap.String("env", p.cfg.Enrichment.Describe.APIKeyEnv),
			)
		} else {
			describer, err = enrich.NewClaudeDescriber(key, p.cfg.Enrichment.Describe.Model, p.logger)
			if err != nil {
				return nil, fmt.Errorf("initializing describer: %w", err)
			}
		}
	}
	return enrich.NewLLMAdapter(provider, describer), nil
}

func (p *Pipeline) embeddingProvider() (embeddings.Provider, error) {
	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: p.cfg.Enrichment.Embeddings.Provider,
		Model:    p.cfg.Enrichment.Embeddings.Model,
		BaseURL:  p.cfg.Enrichment.Embeddings.BaseURL,
		CacheDir: p.cfg.Enrichment.Embeddings.CacheDir,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing embedding provider: %w", err)
	}
	return provider, nil
}

func (p *Pipeline) stampMetadata(model *rules.DecisionModel, repoPath string, started time.Time) {
	model.SetMeta("run_id", uuid.NewString())
	model.SetMeta("generated_at", started.UTC().Format(time.RFC3339))
	model.SetMeta("repository", repoPath)

	stats := rules.Stats(model.Rules)
	model.SetMeta("total_rules", strconv.Itoa(stats.TotalRules))
	model.SetMeta("total_groups", strconv.Itoa(len(model.Groups)))

	provenance.Collect(repoPath, p.logger).Stamp(model)
}

func (p *Pipeline) writeOutputs(model *rules.DecisionModel, result *Result) error {
	outDir := p.cfg.Output.Dir
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", outDir, err)
	}

	result.DMNPath = filepath.Join(outDir, DMNFileName)
	gen := dmn.NewGenerator(p.cfg.DMN, p.logger)
	if err := gen.WriteFile(model, result.DMNPath); err != nil {
		return fmt.Errorf("writing diagram: %w", err)
	}

	result.ReportPath = filepath.Join(outDir, ReportFileName)
	report := dmn.Report(model, time.Now())
	if err := os.WriteFile(result.ReportPath, []byte(report), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	result.InterchangePath = filepath.Join(outDir, InterchangeFileName)
	interchange, err := dmn.MarshalInterchange(model)
	if err != nil {
		return fmt.Errorf("marshaling interchange document: %w", err)
	}
	if err := os.WriteFile(result.InterchangePath, interchange, 0o644); err != nil {
		return fmt.Errorf("writing interchange document: %w", err)
	}
	return nil
}

// indexRules upserts rules into the search index. Index failures never
// fail the run: the diagram and report are already on disk.
func (p *Pipeline) indexRules(ctx context.Context, rs []*rules.Rule) {
	if len(rs) == 0 {
		return
	}
	provider, err := p.embeddingProvider()
	if err != nil {
		p.logger.Error("index skipped", zap.Error(err))
		return
	}
	store, err := index.New(p.cfg.Index, provider, p.logger)
	if err != nil {
		p.logger.Error("index skipped", zap.Error(err))
		return
	}
	defer store.Close()

	if err := store.Index(ctx, index.DocumentsFromRules(rs)); err != nil {
		p.logger.Error("indexing failed", zap.Error(err))
	}
}
