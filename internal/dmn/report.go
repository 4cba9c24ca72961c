package dmn

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/rulemap/internal/rules"
)

// reportMaxRulesPerGroup bounds the member listing per group section.
const reportMaxRulesPerGroup = 5

// Report renders the human-readable markdown companion to the diagram.
func Report(model *rules.DecisionModel, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Business Rules Report\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", now.Format(time.RFC3339))

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Total rules: %d\n", len(model.Rules))
	fmt.Fprintf(&sb, "- Rule groups: %d\n", len(model.Groups))
	fmt.Fprintf(&sb, "- Dependencies: %d\n\n", len(model.Dependencies))

	sb.WriteString("## Rule Groups\n\n")
	for _, g := range model.Groups {
		fmt.Fprintf(&sb, "### %s\n\n", g.Name)
		fmt.Fprintf(&sb, "**Category:** %s\n", g.Category)
		fmt.Fprintf(&sb, "**Confidence:** %.2f\n", g.Confidence)
		fmt.Fprintf(&sb, "**Rules:** %d\n\n", len(g.Rules))

		sb.WriteString("#### Rules:\n\n")
		for i, r := range g.Rules {
			if i >= reportMaxRulesPerGroup {
				fmt.Fprintf(&sb, "... and %d more\n", len(g.Rules)-reportMaxRulesPerGroup)
				break
			}
			fmt.Fprintf(&sb, "- [%s](%s#L%d): %s\n", r.ID, r.Source.FilePath, r.Source.StartLine, r.Description)
		}
		sb.WriteString("\n")
	}

	if flagged := flaggedRules(model); len(flagged) > 0 {
		sb.WriteString("## Flagged Secrets\n\n")
		sb.WriteString("Snippets below matched secret-detection rules; review before sharing this report.\n\n")
		for _, r := range flagged {
			fmt.Fprintf(&sb, "- %s (%s#L%d): %s\n",
				r.ID, r.Source.FilePath, r.Source.StartLine, r.Metadata[rules.MetadataSecretFindings])
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func flaggedRules(model *rules.DecisionModel) []*rules.Rule {
	var out []*rules.Rule
	for _, r := range model.Rules {
		if r.Metadata[rules.MetadataSecretFindings] != "" {
			out = append(out, r)
		}
	}
	return out
}
