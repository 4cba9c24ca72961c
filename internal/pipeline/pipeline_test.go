package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/rulemap/internal/config"
	"github.com/fyrsmithlabs/rulemap/internal/index"
	"github.com/fyrsmithlabs/rulemap/internal/trace"
)

const pipelineSQL = `CREATE TABLE orders (
    total NUMERIC CHECK (total >= 0),
    status TEXT
);
SELECT CASE WHEN total > 1000 THEN 'high' WHEN total > 500 THEN 'medium' ELSE 'low' END FROM orders;
`

const pipelinePython = `def apply_discount(order):
    if order.total > 1000:
        order.discount = 0.1
`

func writePipelineRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "schema.sql"), []byte(pipelineSQL), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "app"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "app", "orders.py"), []byte(pipelinePython), 0o644))
	return root
}

func pipelineConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Output.Dir = filepath.Join(t.TempDir(), "out")
	cfg.Index.Enabled = true
	cfg.Index.Path = filepath.Join(t.TempDir(), "idx")
	cfg.Index.Collection = "rules"
	return cfg
}

func TestRunProducesAllOutputs(t *testing.T) {
	root := writePipelineRepo(t)
	cfg := pipelineConfig(t)

	result, err := New(cfg, nil).Run(context.Background(), root)
	require.NoError(t, err)

	require.Equal(t, 2, result.FilesScanned)
	require.NotEmpty(t, result.Model.Rules)
	require.NotEmpty(t, result.Model.Groups)

	for _, path := range []string{result.DMNPath, result.ReportPath, result.InterchangePath} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Greater(t, info.Size(), int64(0))
	}

	report, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)
	require.Contains(t, string(report), "# Business Rules Report")

	meta := result.Model.Metadata
	require.NotEmpty(t, meta["run_id"])
	require.Equal(t, root, meta["repository"])
	require.NotEmpty(t, meta["generated_at"])
	require.NotEmpty(t, meta["total_rules"])
}

func TestRunOutputTracesBackToSource(t *testing.T) {
	root := writePipelineRepo(t)
	cfg := pipelineConfig(t)

	result, err := New(cfg, nil).Run(context.Background(), root)
	require.NoError(t, err)

	vres, err := trace.NewValidator(root, nil).ValidateFile(result.DMNPath)
	require.NoError(t, err)
	require.True(t, vres.OK(), "issues: %v", vres.Issues)
}

func TestRunIsDeterministic(t *testing.T) {
	root := writePipelineRepo(t)

	first, err := New(pipelineConfig(t), nil).Run(context.Background(), root)
	require.NoError(t, err)
	second, err := New(pipelineConfig(t), nil).Run(context.Background(), root)
	require.NoError(t, err)

	require.Equal(t, len(first.Model.Rules), len(second.Model.Rules))
	for i := range first.Model.Rules {
		require.Equal(t, first.Model.Rules[i].ID, second.Model.Rules[i].ID)
	}
}

func TestRunPopulatesIndex(t *testing.T) {
	root := writePipelineRepo(t)
	cfg := pipelineConfig(t)

	result, err := New(cfg, nil).Run(context.Background(), root)
	require.NoError(t, err)
	require.NotEmpty(t, result.Model.Rules)

	provider, err := New(cfg, nil).embeddingProvider()
	require.NoError(t, err)
	store, err := index.New(cfg.Index, provider, nil)
	require.NoError(t, err)
	defer store.Close()

	hits, err := store.Search(context.Background(), "order total threshold", 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
}

func TestRunCanceledContext(t *testing.T) {
	root := writePipelineRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(pipelineConfig(t), nil).Run(ctx, root)
	require.Error(t, err)
}
