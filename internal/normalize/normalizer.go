// Package normalize canonicalizes extracted rule expressions and removes
// duplicates so that downstream clustering and diagram generation see one
// representative per distinct rule.
package normalize

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/rulemap/internal/logging"
	"github.com/fyrsmithlabs/rulemap/internal/rules"
)

// DefaultMinConfidence is the floor applied when no threshold is configured.
const DefaultMinConfidence = 0.5

// Multi-character operators are swapped for placeholder tokens before
// single-character spacing runs, so ">=" never becomes "> =". Tokens are
// lowercase because canonicalization lowercases first.
var multiCharOps = []struct {
	op    string
	token string
}{
	{"==", "\x00eq\x00"},
	{"!=", "\x00ne\x00"},
	{"<>", "\x00lg\x00"},
	{">=", "\x00ge\x00"},
	{"<=", "\x00le\x00"},
}

var (
	singleOpRe   = regexp.MustCompile(`\s*([<>=])\s*`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalizer canonicalizes, deduplicates, and confidence-filters rules.
type Normalizer struct {
	minConfidence float64
	logger        *logging.Logger
}

// New creates a normalizer. A non-positive minConfidence falls back to
// DefaultMinConfidence.
func New(minConfidence float64, logger *logging.Logger) *Normalizer {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Normalizer{
		minConfidence: minConfidence,
		logger:        logger.Named("normalize"),
	}
}

// Process runs the full pass: canonicalize every expression, drop
// duplicates, then drop rules below the confidence floor.
func (n *Normalizer) Process(rs []*rules.Rule) []*rules.Rule {
	n.Normalize(rs)
	deduped := n.Deduplicate(rs)
	kept := n.FilterByConfidence(deduped)

	n.logger.Info("normalization pass complete",
		zap.Int("input", len(rs)),
		zap.Int("after_dedup", len(deduped)),
		zap.Int("kept", len(kept)),
	)
	return kept
}

// Normalize canonicalizes each rule's expression and identifier sets in
// place.
func (n *Normalizer) Normalize(rs []*rules.Rule) {
	for _, r := range rs {
		r.NormalizedExpression = Expression(r.NormalizedExpression)
		r.Variables = Identifiers(r.Variables)
		r.Tables = Identifiers(r.Tables)
		r.Columns = Identifiers(r.Columns)
	}
}

// Deduplicate keeps the first rule for each (expression, file, start line)
// fingerprint. Input order is preserved, so higher-priority strategies win
// when extractors emit overlapping rules.
func (n *Normalizer) Deduplicate(rs []*rules.Rule) []*rules.Rule {
	seen := make(map[string]struct{}, len(rs))
	out := make([]*rules.Rule, 0, len(rs))
	for _, r := range rs {
		fp := fingerprint(r)
		if _, dup := seen[fp]; dup {
			n.logger.Debug("dropping duplicate rule",
				zap.String("rule_id", r.ID),
				zap.String("file", r.Source.FilePath),
				zap.Int("line", r.Source.StartLine),
			)
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, r)
	}
	return out
}

// FilterByConfidence drops rules below the configured floor.
func (n *Normalizer) FilterByConfidence(rs []*rules.Rule) []*rules.Rule {
	out := make([]*rules.Rule, 0, len(rs))
	for _, r := range rs {
		if r.Confidence < n.minConfidence {
			n.logger.Debug("dropping low-confidence rule",
				zap.String("rule_id", r.ID),
				zap.Float64("confidence", r.Confidence),
			)
			continue
		}
		out = append(out, r)
	}
	return out
}

func fingerprint(r *rules.Rule) string {
	return fmt.Sprintf("%s\x00%s\x00%d", r.NormalizedExpression, r.Source.FilePath, r.Source.StartLine)
}

// Expression canonicalizes one expression: lowercase outside string
// literals, uniform spacing around comparison operators, collapsed
// whitespace. The function is idempotent.
func Expression(expr string) string {
	s := lowerOutsideQuotes(strings.TrimSpace(expr))

	for _, mc := range multiCharOps {
		s = strings.ReplaceAll(s, mc.op, " "+mc.token+" ")
	}
	s = singleOpRe.ReplaceAllString(s, " $1 ")
	for _, mc := range multiCharOps {
		s = strings.ReplaceAll(s, mc.token, mc.op)
	}

	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Identifiers canonicalizes an identifier list: lowercased, outer
// quotes and backticks stripped, empties dropped, set-deduplicated,
// sorted. The function is idempotent.
func Identifiers(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.Trim(strings.ToLower(strings.TrimSpace(id)), "\"'`")
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// lowerOutsideQuotes lowercases everything except the contents of
// single-quoted literals, which carry data values.
func lowerOutsideQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inQuote := false
	for _, r := range s {
		if r == '\'' {
			inQuote = !inQuote
			b.WriteRune(r)
			continue
		}
		if inQuote {
			b.WriteRune(r)
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
