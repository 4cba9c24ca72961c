package extract

import (
	"fmt"
	"regexp"

	"github.com/xwb1989/sqlparser"

	"github.com/fyrsmithlabs/rulemap/internal/logging"
	"github.com/fyrsmithlabs/rulemap/internal/rules"
)

// Confidence per strategy. The grammar tier is more certain than the
// regex tier; DDL patterns sit in between because their shapes are rigid.
const (
	confGrammarCase  = 0.9
	confGrammarWhere = 0.85
	confRegexCase    = 0.7
	confProceduralIf = 0.85
	confConstraint   = 0.95
	confTrigger      = 0.9
)

var (
	caseRe     = regexp.MustCompile(`(?is)CASE\s+(?:WHEN\s+(.+?)\s+THEN\s+(.+?)\s*)+(?:ELSE\s+(.+?)\s+)?END`)
	ifBlockRe  = regexp.MustCompile(`(?is)IF\s+(.+?)\s+THEN\s+(.*?)(?:ELSIF\s+(.+?)\s+THEN\s+(.*?))*(?:ELSE\s+(.*?))?END\s+IF`)
	checkRe    = regexp.MustCompile(`(?i)CHECK\s*\(([^)]+)\)`)
	triggerRe  = regexp.MustCompile(`(?i)CREATE\s+(?:OR\s+REPLACE\s+)?TRIGGER`)
	trigNameRe = regexp.MustCompile(`(?i)TRIGGER\s+(\w+)`)
)

// SQLExtractor extracts rules from SQL text.
type SQLExtractor struct {
	logger *logging.Logger
}

// NewSQLExtractor creates a SQL extractor.
func NewSQLExtractor(logger *logging.Logger) *SQLExtractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SQLExtractor{logger: logger.Named("extract.sql")}
}

// Extract splits content into statements and applies the two-tier
// strategy cascade to each.
func (e *SQLExtractor) Extract(path, content string) []*rules.Rule {
	var out []*rules.Rule
	for _, st := range splitStatements(content) {
		out = append(out, e.extractStatement(path, st)...)
	}
	return out
}

func (e *SQLExtractor) extractStatement(path string, st statement) []*rules.Rule {
	var strategies []strategy

	if parsed, ok := parseStatement(st.Text); ok {
		strategies = append(strategies,
			strategy{"grammar_case", func(p, text string, line int) []*rules.Rule {
				return e.grammarCaseRules(p, parsed, text, line)
			}},
			strategy{"grammar_where", func(p, text string, line int) []*rules.Rule {
				return e.grammarWhereRules(p, parsed, text, line)
			}},
		)
	} else {
		strategies = append(strategies,
			strategy{"regex_case", e.regexCaseRules},
			strategy{"procedural_if", e.proceduralIfRules},
		)
	}

	// DDL constraint bodies are invisible to the grammar tier, so these
	// run on every statement and their outputs are additive.
	strategies = append(strategies,
		strategy{"check_constraint", e.checkConstraintRules},
		strategy{"trigger", e.triggerRules},
	)

	var out []*rules.Rule
	for _, s := range strategies {
		out = append(out, runStrategy(e.logger, s, path, st.Text, st.StartLine)...)
	}
	return out
}

// grammarCaseRules emits one conditional rule per WHEN branch plus one
// for the ELSE branch of every CASE expression in the parsed tree.
func (e *SQLExtractor) grammarCaseRules(path string, parsed sqlparser.Statement, stmtText string, startLine int) []*rules.Rule {
	var out []*rules.Rule
	tables := treeTables(parsed)

	for _, caseExpr := range findCaseExprs(parsed) {
		caseText := sqlparser.String(caseExpr)

		for _, when := range caseExpr.Whens {
			if when.Cond == nil || when.Val == nil {
				continue
			}
			cond := sqlparser.String(when.Cond)
			val := sqlparser.String(when.Val)
			cols := treeColumns(when.Cond)

			out = append(out, &rules.Rule{
				ID:                   rules.NewID(path, cond),
				Type:                 rules.TypeConditional,
				Description:          "CASE condition: " + cond,
				NormalizedExpression: fmt.Sprintf("IF %s THEN %s", cond, val),
				Variables:            cols,
				Tables:               tables,
				Columns:              cols,
				Source: rules.SourceLocation{
					FilePath:  path,
					StartLine: startLine,
					EndLine:   startLine + countLines(stmtText),
					Snippet:   rules.TruncateSnippet(stmtText),
				},
				Confidence: confGrammarCase,
			})
		}

		if caseExpr.Else != nil {
			out = append(out, &rules.Rule{
				ID:                   rules.NewID(path, "CASE_ELSE_"+caseText),
				Type:                 rules.TypeConditional,
				Description:          "CASE default condition",
				NormalizedExpression: "ELSE " + sqlparser.String(caseExpr.Else),
				Source: rules.SourceLocation{
					FilePath:  path,
					StartLine: startLine,
					EndLine:   startLine + countLines(stmtText),
					Snippet:   rules.TruncateSnippet(stmtText),
				},
				Confidence: confGrammarCase,
			})
		}
	}
	return out
}

// grammarWhereRules emits one validation rule per WHERE clause.
func (e *SQLExtractor) grammarWhereRules(path string, parsed sqlparser.Statement, stmtText string, startLine int) []*rules.Rule {
	var out []*rules.Rule
	tables := treeTables(parsed)

	for _, where := range findWhereClauses(parsed) {
		cond := sqlparser.String(where.Expr)
		cols := treeColumns(where.Expr)

		out = append(out, &rules.Rule{
			ID:                   rules.NewID(path, cond),
			Type:                 rules.TypeValidation,
			Description:          "WHERE condition: " + cond,
			NormalizedExpression: cond,
			Variables:            cols,
			Tables:               tables,
			Columns:              cols,
			Source: rules.SourceLocation{
				FilePath:  path,
				StartLine: startLine,
				EndLine:   startLine + countLines(stmtText),
				Snippet:   rules.TruncateSnippet(stmtText),
			},
			Confidence: confGrammarWhere,
		})
	}
	return out
}

// regexCaseRules is the fallback for CASE expressions in statements the
// grammar tier could not parse.
func (e *SQLExtractor) regexCaseRules(path, text string, startLine int) []*rules.Rule {
	var out []*rules.Rule
	for _, loc := range caseRe.FindAllStringIndex(text, -1) {
		caseText := text[loc[0]:loc[1]]
		lineOffset := countLines(text[:loc[0]])
		vars := harvestIdentifiers(caseText)

		out = append(out, &rules.Rule{
			ID:                   rules.NewID(path, caseText),
			Type:                 rules.TypeConditional,
			Description:          "CASE expression (regex extracted)",
			NormalizedExpression: caseText,
			Variables:            vars,
			Source: rules.SourceLocation{
				FilePath:  path,
				StartLine: startLine + lineOffset,
				EndLine:   startLine + lineOffset + countLines(caseText),
				Snippet:   rules.TruncateSnippet(caseText),
			},
			Confidence: confRegexCase,
		})
	}
	return out
}

// proceduralIfRules extracts IF...THEN...END IF blocks from procedural
// bodies (PL/pgSQL, PL/SQL), which never survive the grammar tier.
func (e *SQLExtractor) proceduralIfRules(path, text string, startLine int) []*rules.Rule {
	var out []*rules.Rule
	for _, m := range ifBlockRe.FindAllStringSubmatchIndex(text, -1) {
		whole := text[m[0]:m[1]]
		cond := text[m[2]:m[3]]
		thenClause := text[m[4]:m[5]]
		lineOffset := countLines(text[:m[0]])
		vars := harvestIdentifiers(cond)

		out = append(out, &rules.Rule{
			ID:                   rules.NewID(path, cond),
			Type:                 rules.TypeConditional,
			Description:          "Procedural IF: " + cond,
			NormalizedExpression: fmt.Sprintf("IF %s THEN %s...", cond, truncate(thenClause, 100)),
			Variables:            vars,
			Columns:              vars,
			Source: rules.SourceLocation{
				FilePath:  path,
				StartLine: startLine + lineOffset,
				EndLine:   startLine + lineOffset + countLines(whole),
				Snippet:   rules.TruncateSnippet(whole),
			},
			Confidence: confProceduralIf,
		})
	}
	return out
}

// checkConstraintRules emits one constraint rule per CHECK (...) match.
func (e *SQLExtractor) checkConstraintRules(path, text string, startLine int) []*rules.Rule {
	var out []*rules.Rule
	for _, m := range checkRe.FindAllStringSubmatchIndex(text, -1) {
		whole := text[m[0]:m[1]]
		constraint := text[m[2]:m[3]]
		lineOffset := countLines(text[:m[0]])
		vars := harvestIdentifiers(constraint)

		out = append(out, &rules.Rule{
			ID:                   rules.NewID(path, constraint),
			Type:                 rules.TypeConstraint,
			Description:          "CHECK constraint: " + constraint,
			NormalizedExpression: constraint,
			Variables:            vars,
			Columns:              vars,
			Source: rules.SourceLocation{
				FilePath:  path,
				StartLine: startLine + lineOffset,
				EndLine:   startLine + lineOffset + countLines(whole),
				Snippet:   rules.TruncateSnippet(whole),
			},
			Confidence: confConstraint,
		})
	}
	return out
}

// triggerRules emits one trigger rule per CREATE TRIGGER statement.
func (e *SQLExtractor) triggerRules(path, text string, startLine int) []*rules.Rule {
	if !triggerRe.MatchString(text) {
		return nil
	}

	name := "unknown_trigger"
	if m := trigNameRe.FindStringSubmatch(text); m != nil {
		name = m[1]
	}

	return []*rules.Rule{{
		ID:                   rules.NewID(path, text),
		Type:                 rules.TypeTrigger,
		Description:          "Trigger: " + name,
		NormalizedExpression: truncate(text, 200),
		Tables:               harvestTableNames(text),
		Source: rules.SourceLocation{
			FilePath:  path,
			StartLine: startLine,
			EndLine:   startLine + countLines(text),
			Snippet:   rules.TruncateSnippet(text),
		},
		Confidence: confTrigger,
	}}
}

var _ Extractor = (*SQLExtractor)(nil)
