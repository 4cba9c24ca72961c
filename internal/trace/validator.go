// Package trace validates that a generated diagram's provenance records
// still match the repository they were extracted from. Validation is
// read-only; it never rewrites the diagram or the sources.
package trace

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/rulemap/internal/logging"
)

// snippetCompareLen bounds snippet comparison: stored snippets are
// truncated, so matching tolerates substrings over a fixed prefix.
const snippetCompareLen = 200

// Issue is one failed provenance check.
type Issue struct {
	RuleID  string `json:"rule_id,omitempty"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.RuleID == "" {
		return i.Message
	}
	return fmt.Sprintf("%s (%s#L%d): %s", i.RuleID, i.File, i.Line, i.Message)
}

// Result aggregates a validation run.
type Result struct {
	Records int     `json:"records"`
	Issues  []Issue `json:"issues,omitempty"`
}

// OK reports whether the diagram traced cleanly: at least one record,
// all of them verified.
func (r *Result) OK() bool {
	return r.Records > 0 && len(r.Issues) == 0
}

// Validator checks diagram provenance against a repository root.
type Validator struct {
	root   string
	logger *logging.Logger
}

// NewValidator creates a validator rooted at the repository path.
func NewValidator(root string, logger *logging.Logger) *Validator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Validator{root: root, logger: logger.Named("trace")}
}

// ValidateFile parses the diagram at dmnPath and verifies every
// traceability record. A diagram with no records fails.
func (v *Validator) ValidateFile(dmnPath string) (*Result, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(dmnPath); err != nil {
		return nil, fmt.Errorf("parsing diagram %s: %w", dmnPath, err)
	}
	return v.validate(doc), nil
}

// ValidateBytes verifies a diagram already held in memory.
func (v *Validator) ValidateBytes(diagram []byte) (*Result, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(diagram); err != nil {
		return nil, fmt.Errorf("parsing diagram: %w", err)
	}
	return v.validate(doc), nil
}

func (v *Validator) validate(doc *etree.Document) *Result {
	records := doc.FindElements("//ext:source")
	result := &Result{Records: len(records)}
	if len(records) == 0 {
		result.Issues = append(result.Issues, Issue{Message: "no traceability records found"})
		return result
	}

	cache := make(map[string][]string)
	for _, rec := range records {
		if issue := v.checkRecord(rec, cache); issue != nil {
			result.Issues = append(result.Issues, *issue)
		}
	}

	v.logger.Info("traceability validation complete",
		zap.Int("records", result.Records),
		zap.Int("issues", len(result.Issues)),
	)
	return result
}

func (v *Validator) checkRecord(rec *etree.Element, cache map[string][]string) *Issue {
	ruleID := rec.SelectAttrValue("ruleId", "")
	file := rec.SelectAttrValue("file", "")

	startLine, err1 := strconv.Atoi(rec.SelectAttrValue("startLine", ""))
	endLine, err2 := strconv.Atoi(rec.SelectAttrValue("endLine", ""))
	if err1 != nil || err2 != nil {
		return &Issue{RuleID: ruleID, File: file, Message: "malformed line attributes"}
	}

	lines, ok := v.fileLines(file, cache)
	if !ok {
		return &Issue{RuleID: ruleID, File: file, Line: startLine, Message: "source file not found"}
	}

	if startLine < 1 || endLine < startLine || endLine > len(lines) {
		return &Issue{
			RuleID: ruleID, File: file, Line: startLine,
			Message: fmt.Sprintf("line range %d..%d outside file of %d lines", startLine, endLine, len(lines)),
		}
	}

	snippet := ""
	if sn := rec.SelectElement("ext:snippet"); sn != nil {
		snippet = sn.Text()
	}
	actual := strings.Join(lines[startLine-1:endLine], "\n")
	if !snippetMatches(snippet, actual) {
		return &Issue{
			RuleID: ruleID, File: file, Line: startLine,
			Message: "snippet does not match source at recorded range",
		}
	}
	return nil
}

func (v *Validator) fileLines(file string, cache map[string][]string) ([]string, bool) {
	if lines, ok := cache[file]; ok {
		return lines, lines != nil
	}

	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		cache[file] = nil
		return nil, false
	}
	lines := strings.Split(string(content), "\n")
	cache[file] = lines
	return lines, true
}

// snippetMatches compares a stored snippet with the source text at its
// recorded range: exact after trimming, or substring-tolerant over a
// bounded prefix in either direction, because stored snippets are
// truncated and extraction ranges may span surrounding statement text.
func snippetMatches(snippet, actual string) bool {
	snippet = strings.TrimSpace(snippet)
	actual = strings.TrimSpace(actual)
	if snippet == actual {
		return true
	}
	if snippet == "" || actual == "" {
		return snippet == actual
	}
	return strings.Contains(actual, clip(snippet, snippetCompareLen)) ||
		strings.Contains(snippet, clip(actual, snippetCompareLen))
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
