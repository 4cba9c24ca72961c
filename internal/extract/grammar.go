package extract

import (
	"strings"

	"github.com/xwb1989/sqlparser"
)

// parseStatement runs the grammar tier's parser. The boolean reports
// whether the statement was well formed; callers fall back to the regex
// tier when it is not.
func parseStatement(sql string) (sqlparser.Statement, bool) {
	stmt, err := sqlparser.Parse(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	if err != nil || stmt == nil {
		return nil, false
	}
	return stmt, true
}

// findCaseExprs collects every CASE expression in the tree.
func findCaseExprs(stmt sqlparser.Statement) []*sqlparser.CaseExpr {
	var cases []*sqlparser.CaseExpr
	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		if c, ok := node.(*sqlparser.CaseExpr); ok {
			cases = append(cases, c)
		}
		return true, nil
	}, stmt)
	return cases
}

// findWhereClauses collects every WHERE clause in the tree. HAVING
// clauses share the node type but are filter predicates over aggregates,
// not row validations, so they are excluded.
func findWhereClauses(stmt sqlparser.Statement) []*sqlparser.Where {
	var wheres []*sqlparser.Where
	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		if w, ok := node.(*sqlparser.Where); ok && w != nil && w.Expr != nil {
			if w.Type == sqlparser.WhereStr {
				wheres = append(wheres, w)
			}
		}
		return true, nil
	}, stmt)
	return wheres
}

// treeColumns returns the distinct column names referenced under node,
// sorted for deterministic output.
func treeColumns(node sqlparser.SQLNode) []string {
	seen := make(map[string]struct{})
	_ = sqlparser.Walk(func(n sqlparser.SQLNode) (bool, error) {
		if col, ok := n.(*sqlparser.ColName); ok {
			name := col.Name.String()
			if name != "" {
				seen[name] = struct{}{}
			}
		}
		return true, nil
	}, node)
	return sortedKeys(seen)
}

// treeTables returns the distinct table names referenced under node,
// sorted for deterministic output.
func treeTables(node sqlparser.SQLNode) []string {
	seen := make(map[string]struct{})
	_ = sqlparser.Walk(func(n sqlparser.SQLNode) (bool, error) {
		if tbl, ok := n.(sqlparser.TableName); ok {
			name := tbl.Name.String()
			if name != "" {
				seen[name] = struct{}{}
			}
		}
		return true, nil
	}, node)
	return sortedKeys(seen)
}
