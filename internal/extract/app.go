package extract

import (
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/rulemap/internal/logging"
	"github.com/fyrsmithlabs/rulemap/internal/rules"
	"go.uber.org/zap"
)

// Surface languages the application-code extractor understands.
const (
	LangPython     = "python"
	LangJava       = "java"
	LangJavaScript = "javascript"
)

const (
	confSQLStringPython = 0.8
	confSQLStringOther  = 0.75
	confConditional     = 0.7

	// minSQLStringLen filters out fragments too short to be real queries.
	minSQLStringLen = 10
)

// SQL string literals per language. Longer delimiters first so triple
// quotes are not consumed as empty single-quoted strings.
var sqlStringPatterns = map[string][]*regexp.Regexp{
	LangPython: {
		regexp.MustCompile(`(?is)"""(.*?SELECT.*?)"""`),
		regexp.MustCompile(`(?is)'''(.*?SELECT.*?)'''`),
		regexp.MustCompile(`(?is)"(.*?SELECT.*?)"`),
		regexp.MustCompile(`(?is)'(.*?SELECT.*?)'`),
	},
	LangJava: {
		regexp.MustCompile(`(?is)"(.*?SELECT.*?)"`),
	},
	LangJavaScript: {
		regexp.MustCompile("(?is)`(.*?SELECT.*?)`"),
		regexp.MustCompile(`(?is)"(.*?SELECT.*?)"`),
		regexp.MustCompile(`(?is)'(.*?SELECT.*?)'`),
	},
}

// Conditional statements per language.
var conditionalPatterns = map[string]*regexp.Regexp{
	LangPython:     regexp.MustCompile(`if\s+(.+?):\s*\n`),
	LangJava:       regexp.MustCompile(`if\s*\((.+?)\)\s*\{`),
	LangJavaScript: regexp.MustCompile(`if\s*\((.+?)\)\s*\{`),
}

var (
	whereKeywordRe = regexp.MustCompile(`(?i)WHERE`)
	numericCmpRe   = regexp.MustCompile(`[<>=]+\s*\d+`)

	// Bind placeholders in embedded SQL: %(name)s and :name.
	pyNamedPlaceholderRe = regexp.MustCompile(`%\((\w+)\)s`)
	namedPlaceholderRe   = regexp.MustCompile(`:(\w+)`)
)

// businessVocabulary separates business-logic conditionals from purely
// technical control flow. A predicate qualifies when it mentions one of
// these words or compares against a numeric literal.
var businessVocabulary = []string{
	"price", "amount", "total", "discount", "rate", "fee",
	"age", "date", "status", "eligible", "valid", "approved",
	"limit", "threshold", "minimum", "maximum", "balance",
}

// Keyword stoplists for identifier harvesting per language.
var (
	pythonStopwords = map[string]struct{}{
		"if": {}, "else": {}, "elif": {}, "for": {}, "while": {}, "in": {},
		"is": {}, "not": {}, "and": {}, "or": {}, "true": {}, "false": {}, "none": {},
	}
	javaStopwords = map[string]struct{}{
		"if": {}, "else": {}, "for": {}, "while": {}, "return": {},
		"new": {}, "this": {}, "true": {}, "false": {}, "null": {},
	}
)

// AppCodeExtractor extracts rules from application source code: embedded
// SQL with filtering logic, and conditionals whose predicate carries a
// business-logic signal.
type AppCodeExtractor struct {
	language string
	logger   *logging.Logger
}

// NewAppCodeExtractor creates an extractor for one surface language.
// Unknown languages yield an extractor that extracts nothing.
func NewAppCodeExtractor(language string, logger *logging.Logger) *AppCodeExtractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AppCodeExtractor{
		language: language,
		logger:   logger.Named("extract.app"),
	}
}

// Extract applies the embedded-SQL and conditional strategies to content.
func (e *AppCodeExtractor) Extract(path, content string) []*rules.Rule {
	if _, known := conditionalPatterns[e.language]; !known {
		e.logger.Warn("unknown surface language, skipping file",
			zap.String("language", e.language),
			zap.String("file", path),
		)
		return nil
	}

	strategies := []strategy{
		{"embedded_sql", e.embeddedSQLRules},
		{"business_conditional", e.conditionalRules},
	}

	var out []*rules.Rule
	for _, s := range strategies {
		out = append(out, runStrategy(e.logger, s, path, content, 1)...)
	}
	return out
}

// embeddedSQLRules surfaces string literals that look like filtering SQL.
func (e *AppCodeExtractor) embeddedSQLRules(path, content string, _ int) []*rules.Rule {
	confidence := confSQLStringOther
	if e.language == LangPython {
		confidence = confSQLStringPython
	}

	var out []*rules.Rule
	var claimed [][2]int
	for _, re := range sqlStringPatterns[e.language] {
		for _, m := range re.FindAllStringSubmatchIndex(content, -1) {
			sqlContent := strings.TrimSpace(content[m[2]:m[3]])
			if len(sqlContent) < minSQLStringLen {
				continue
			}
			if !whereKeywordRe.MatchString(sqlContent) {
				continue
			}
			// A triple-quoted literal also matches the plain pattern over
			// its interior; the first (longest-delimiter) match wins.
			if overlapsAny(claimed, m[0], m[1]) {
				continue
			}
			claimed = append(claimed, [2]int{m[0], m[1]})

			lineNum := countLines(content[:m[0]]) + 1
			out = append(out, &rules.Rule{
				ID:                   rules.NewID(path, sqlContent),
				Type:                 rules.TypeValidation,
				Description:          "SQL query with filtering condition",
				NormalizedExpression: truncate(sqlContent, 200),
				Variables:            extractPlaceholders(sqlContent),
				Tables:               harvestTableNames(sqlContent),
				Source: rules.SourceLocation{
					FilePath:  path,
					StartLine: lineNum,
					EndLine:   lineNum + countLines(sqlContent),
					Snippet:   rules.TruncateSnippet(sqlContent),
				},
				Confidence: confidence,
				Metadata:   map[string]string{"language": e.language},
			})
		}
	}
	return out
}

// conditionalRules surfaces if-statements whose predicate looks like
// business logic rather than technical control flow.
func (e *AppCodeExtractor) conditionalRules(path, content string, _ int) []*rules.Rule {
	re := conditionalPatterns[e.language]

	var out []*rules.Rule
	for _, m := range re.FindAllStringSubmatchIndex(content, -1) {
		whole := content[m[0]:m[1]]
		condition := strings.TrimSpace(content[m[2]:m[3]])
		if !isBusinessLogic(condition) {
			continue
		}

		lineNum := countLines(content[:m[0]]) + 1
		out = append(out, &rules.Rule{
			ID:                   rules.NewID(path, condition),
			Type:                 rules.TypeConditional,
			Description:          capitalizeFirst(e.language) + " conditional: " + truncate(condition, 50),
			NormalizedExpression: "IF " + condition,
			Variables:            e.harvestConditionVariables(condition),
			Source: rules.SourceLocation{
				FilePath:  path,
				StartLine: lineNum,
				EndLine:   lineNum,
				Snippet:   rules.TruncateSnippet(whole),
			},
			Confidence: confConditional,
			Metadata:   map[string]string{"language": e.language},
		})
	}
	return out
}

func (e *AppCodeExtractor) harvestConditionVariables(condition string) []string {
	if e.language == LangPython {
		return harvestWith(condition, pythonStopwords)
	}
	return harvestWith(condition, javaStopwords)
}

// isBusinessLogic reports whether a predicate carries a business-logic
// signal: a domain vocabulary word or a numeric comparison.
func isBusinessLogic(condition string) bool {
	lower := strings.ToLower(condition)
	for _, word := range businessVocabulary {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return numericCmpRe.MatchString(condition)
}

func overlapsAny(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && end > s[0] {
			return true
		}
	}
	return false
}

// extractPlaceholders harvests bind placeholders from embedded SQL.
func extractPlaceholders(sql string) []string {
	seen := make(map[string]struct{})
	for _, m := range pyNamedPlaceholderRe.FindAllStringSubmatch(sql, -1) {
		seen[m[1]] = struct{}{}
	}
	for _, m := range namedPlaceholderRe.FindAllStringSubmatch(sql, -1) {
		seen[m[1]] = struct{}{}
	}
	return sortedKeys(seen)
}

func capitalizeFirst(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var _ Extractor = (*AppCodeExtractor)(nil)
