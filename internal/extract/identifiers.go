package extract

import (
	"regexp"
	"sort"
	"strings"
)

var (
	identRe     = regexp.MustCompile(`\b[a-zA-Z_][a-zA-Z0-9_]*\b`)
	fromTableRe = regexp.MustCompile(`(?i)FROM\s+(\w+)`)
	joinTableRe = regexp.MustCompile(`(?i)JOIN\s+(\w+)`)
)

// sqlStopwords are keywords excluded from identifier harvesting.
var sqlStopwords = map[string]struct{}{
	"if": {}, "then": {}, "else": {}, "case": {}, "when": {}, "end": {},
	"and": {}, "or": {}, "not": {}, "select": {}, "from": {}, "where": {},
}

// harvestIdentifiers returns the distinct identifiers in text, minus the
// SQL keyword stoplist, sorted for deterministic output.
func harvestIdentifiers(text string) []string {
	return harvestWith(text, sqlStopwords)
}

func harvestWith(text string, stopwords map[string]struct{}) []string {
	seen := make(map[string]struct{})
	for _, m := range identRe.FindAllString(text, -1) {
		if _, stop := stopwords[strings.ToLower(m)]; stop {
			continue
		}
		seen[m] = struct{}{}
	}
	return sortedKeys(seen)
}

// harvestTableNames returns the distinct FROM/JOIN targets in sql, sorted.
func harvestTableNames(sql string) []string {
	seen := make(map[string]struct{})
	for _, m := range fromTableRe.FindAllStringSubmatch(sql, -1) {
		seen[m[1]] = struct{}{}
	}
	for _, m := range joinTableRe.FindAllStringSubmatch(sql, -1) {
		seen[m[1]] = struct{}{}
	}
	return sortedKeys(seen)
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
