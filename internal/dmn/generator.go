// Package dmn renders a decision model as DMN 1.3 XML with embedded
// traceability records, plus the markdown report and JSON interchange
// document derived from the same model.
package dmn

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/rulemap/internal/config"
	"github.com/fyrsmithlabs/rulemap/internal/logging"
	"github.com/fyrsmithlabs/rulemap/internal/rules"
)

const (
	// DMNNamespace is the DMN 1.3 model namespace.
	DMNNamespace = "https://www.omg.org/spec/DMN/20191111/MODEL/"

	// ExtNamespace is the vendor extension namespace carrying the
	// traceability records the validator checks.
	ExtNamespace = "https://rulemap.fyrsmithlabs.com/traceability"

	// modelNamespace identifies generated models themselves.
	modelNamespace = "https://rulemap.fyrsmithlabs.com/models"

	exporterName    = "rulemap"
	exporterVersion = "0.1.0"

	// literalExpressionMax is the largest group rendered as a literal
	// expression; bigger groups become decision tables.
	literalExpressionMax = 3

	// inputEntryMaxLen bounds table cell text.
	inputEntryMaxLen = 100
)

// Generator renders DecisionModels as DMN XML.
type Generator struct {
	cfg    config.DMNConfig
	logger *logging.Logger
}

// NewGenerator creates a generator for the given configuration.
func NewGenerator(cfg config.DMNConfig, logger *logging.Logger) *Generator {
	if cfg.MaxTableRows <= 0 {
		cfg.MaxTableRows = 10
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{cfg: cfg, logger: logger.Named("dmn")}
}

// Document builds the DMN document tree for the model.
func (g *Generator) Document(model *rules.DecisionModel) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("definitions")
	root.CreateAttr("xmlns", DMNNamespace)
	root.CreateAttr("xmlns:ext", ExtNamespace)
	root.CreateAttr("id", "Definitions_rulemap")
	root.CreateAttr("name", modelName(model))
	root.CreateAttr("namespace", modelNamespace)
	root.CreateAttr("exporter", exporterName)
	root.CreateAttr("exporterVersion", exporterVersion)

	outgoing := dependenciesBySource(model.Dependencies)
	for _, group := range model.Groups {
		g.writeDecision(root, group, outgoing[group.ID])
	}

	g.writeInputData(root, model)
	g.writeKnowledgeSources(root, model)

	if g.cfg.Pretty {
		doc.Indent(2)
	}
	return doc
}

// Generate serializes the model to DMN XML bytes.
func (g *Generator) Generate(model *rules.DecisionModel) ([]byte, error) {
	out, err := g.Document(model).WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serializing DMN document: %w", err)
	}
	g.logger.Debug("generated DMN document",
		zap.Int("groups", len(model.Groups)),
		zap.Int("bytes", len(out)),
	)
	return out, nil
}

// WriteFile renders the model and writes it to path.
func (g *Generator) WriteFile(model *rules.DecisionModel, path string) error {
	out, err := g.Generate(model)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing DMN file: %w", err)
	}
	g.logger.Info("wrote DMN diagram", zap.String("path", path))
	return nil
}

func (g *Generator) writeDecision(root *etree.Element, group *rules.RuleGroup, deps []rules.RuleDependency) {
	decisionID := "Decision_" + NCName(group.ID)

	dec := root.CreateElement("decision")
	dec.CreateAttr("id", decisionID)
	dec.CreateAttr("name", group.Name)

	writeTraceability(dec, group)

	variable := dec.CreateElement("variable")
	variable.CreateAttr("id", "Variable_"+NCName(group.ID))
	variable.CreateAttr("name", group.Name)
	variable.CreateAttr("typeRef", "string")

	seen := make(map[string]struct{})
	for _, d := range deps {
		if _, dup := seen[d.TargetID]; dup {
			continue
		}
		seen[d.TargetID] = struct{}{}
		req := dec.CreateElement("informationRequirement")
		req.CreateAttr("id", fmt.Sprintf("InformationRequirement_%s_%s", NCName(group.ID), NCName(d.TargetID)))
		req.CreateElement("requiredDecision").CreateAttr("href", "#Decision_"+NCName(d.TargetID))
	}

	if len(group.Rules) <= literalExpressionMax {
		g.writeLiteralExpression(dec, group)
	} else {
		g.writeDecisionTable(dec, group)
	}
}

// writeTraceability records every member rule's provenance; the
// validator round-trips these records against the working tree.
func writeTraceability(dec *etree.Element, group *rules.RuleGroup) {
	ext := dec.CreateElement("extensionElements")
	tr := ext.CreateElement("ext:traceability")
	for _, r := range group.Rules {
		src := tr.CreateElement("ext:source")
		src.CreateAttr("ruleId", r.ID)
		src.CreateAttr("file", r.Source.FilePath)
		src.CreateAttr("startLine", fmt.Sprintf("%d", r.Source.StartLine))
		src.CreateAttr("endLine", fmt.Sprintf("%d", r.Source.EndLine))
		src.CreateAttr("confidence", fmt.Sprintf("%.2f", r.Confidence))
		src.CreateElement("ext:snippet").SetText(r.Source.Snippet)
	}
}

func (g *Generator) writeLiteralExpression(dec *etree.Element, group *rules.RuleGroup) {
	text := ""
	for i, r := range group.Rules {
		if i > 0 {
			text += "\n"
		}
		text += r.NormalizedExpression
	}
	lit := dec.CreateElement("literalExpression")
	lit.CreateAttr("id", "LiteralExpression_"+NCName(group.ID))
	lit.CreateElement("text").SetText(text)
}

func (g *Generator) writeDecisionTable(dec *etree.Element, group *rules.RuleGroup) {
	table := dec.CreateElement("decisionTable")
	table.CreateAttr("id", "DecisionTable_"+NCName(group.ID))
	table.CreateAttr("hitPolicy", "FIRST")

	input := table.CreateElement("input")
	input.CreateAttr("id", "Input_"+NCName(group.ID))
	input.CreateAttr("label", "ruleInput")
	inputExpr := input.CreateElement("inputExpression")
	inputExpr.CreateAttr("id", "InputExpression_"+NCName(group.ID))
	inputExpr.CreateAttr("typeRef", "string")
	inputExpr.CreateElement("text").SetText("ruleInput")

	output := table.CreateElement("output")
	output.CreateAttr("id", "Output_"+NCName(group.ID))
	output.CreateAttr("label", "ruleOutput")
	output.CreateAttr("typeRef", "string")

	rows := group.Rules
	if len(rows) > g.cfg.MaxTableRows {
		g.logger.Warn("decision table truncated",
			zap.String("group_id", group.ID),
			zap.Int("rules", len(rows)),
			zap.Int("max_rows", g.cfg.MaxTableRows),
		)
		rows = rows[:g.cfg.MaxTableRows]
	}
	for i, r := range rows {
		row := table.CreateElement("rule")
		row.CreateAttr("id", fmt.Sprintf("Rule_%s_%d", NCName(group.ID), i+1))
		entry := row.CreateElement("inputEntry")
		entry.CreateAttr("id", fmt.Sprintf("InputEntry_%s_%d", NCName(group.ID), i+1))
		entry.CreateElement("text").SetText(clip(r.NormalizedExpression, inputEntryMaxLen))
		out := row.CreateElement("outputEntry")
		out.CreateAttr("id", fmt.Sprintf("OutputEntry_%s_%d", NCName(group.ID), i+1))
		out.CreateElement("text").SetText(`"true"`)
	}
}

func (g *Generator) writeInputData(root *etree.Element, model *rules.DecisionModel) {
	pool := newIDPool()
	for _, col := range modelColumns(model) {
		in := root.CreateElement("inputData")
		in.CreateAttr("id", pool.get("InputData_", col))
		in.CreateAttr("name", col)
		variable := in.CreateElement("variable")
		variable.CreateAttr("id", pool.get("InputDataVariable_", col))
		variable.CreateAttr("name", col)
		variable.CreateAttr("typeRef", "string")
	}
}

func (g *Generator) writeKnowledgeSources(root *etree.Element, model *rules.DecisionModel) {
	pool := newIDPool()
	for _, file := range modelFiles(model) {
		ks := root.CreateElement("knowledgeSource")
		ks.CreateAttr("id", pool.get("KnowledgeSource_", file))
		ks.CreateAttr("name", filepath.Base(file))
		ks.CreateAttr("locationURI", file)
	}
}

func dependenciesBySource(deps []rules.RuleDependency) map[string][]rules.RuleDependency {
	out := make(map[string][]rules.RuleDependency)
	for _, d := range deps {
		out[d.SourceID] = append(out[d.SourceID], d)
	}
	return out
}

func modelName(model *rules.DecisionModel) string {
	if repo := model.Metadata["repository"]; repo != "" {
		return filepath.Base(repo) + " business rules"
	}
	return "business rules"
}

func modelColumns(model *rules.DecisionModel) []string {
	return distinctSorted(model.Rules, func(r *rules.Rule) []string { return r.Columns })
}

func modelFiles(model *rules.DecisionModel) []string {
	return distinctSorted(model.Rules, func(r *rules.Rule) []string { return []string{r.Source.FilePath} })
}

func distinctSorted(rs []*rules.Rule, pick func(*rules.Rule) []string) []string {
	set := make(map[string]struct{})
	for _, r := range rs {
		for _, v := range pick(r) {
			if v != "" {
				set[v] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
