package enrich

import (
	"sort"
	"strings"

	"github.com/fyrsmithlabs/rulemap/internal/rules"
)

// MetadataConceptsKey is the metadata key holding comma-joined concepts.
const MetadataConceptsKey = rules.MetadataDomainConcepts

// domainConcepts maps a concept name to the vocabulary that signals it.
var domainConcepts = map[string][]string{
	"pricing":     {"price", "discount", "rate", "fee", "cost", "amount", "total"},
	"eligibility": {"eligible", "qualify", "criteria", "requirement", "minimum", "maximum", "threshold"},
	"customer":    {"customer", "client", "account", "member", "user"},
	"order":       {"order", "purchase", "cart", "checkout", "shipment"},
	"inventory":   {"stock", "inventory", "quantity", "warehouse", "supply"},
	"payment":     {"payment", "invoice", "billing", "balance", "credit", "refund"},
	"date":        {"date", "expiry", "deadline", "period", "duration"},
	"validation":  {"valid", "check", "verify", "constraint", "required"},
}

// Concepts returns the sorted domain concepts whose vocabulary appears in
// the rule's description or expression.
func Concepts(r *rules.Rule) []string {
	text := strings.ToLower(r.Description + " " + r.NormalizedExpression)

	var out []string
	for concept, words := range domainConcepts {
		for _, w := range words {
			if strings.Contains(text, w) {
				out = append(out, concept)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func tagConcepts(r *rules.Rule) {
	concepts := Concepts(r)
	if len(concepts) == 0 {
		return
	}
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[MetadataConceptsKey] = strings.Join(concepts, ",")
}
