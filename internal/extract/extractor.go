package extract

import (
	"github.com/fyrsmithlabs/rulemap/internal/logging"
	"github.com/fyrsmithlabs/rulemap/internal/rules"
	"go.uber.org/zap"
)

// Extractor produces rules from one file's raw text. Implementations
// never fail the file: partial results are always better than none.
type Extractor interface {
	Extract(path, content string) []*rules.Rule
}

// strategy is one independent extraction pass over a unit of text.
// startLine is the 1-based line the text begins at in the file.
type strategy struct {
	name string
	fn   func(path, text string, startLine int) []*rules.Rule
}

// runStrategy applies one strategy with panic isolation. A panicking
// strategy contributes nothing; siblings still run.
func runStrategy(logger *logging.Logger, s strategy, path, text string, startLine int) (out []*rules.Rule) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("extraction strategy panicked, skipping",
				zap.String("strategy", s.name),
				zap.String("file", path),
				zap.Any("panic", r),
			)
			out = nil
		}
	}()
	return s.fn(path, text, startLine)
}

func countLines(s string) int {
	n := 0
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
