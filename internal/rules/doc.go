// Package rules defines the shared entity schema for extracted business
// rules: the Rule itself, its provenance (SourceLocation), semantic
// groupings (RuleGroup), inter-group relationships (RuleDependency), and
// the DecisionModel aggregate consumed by the diagram generator.
//
// Rule identity is content-addressed: NewID derives a stable id from the
// originating file path and the raw extracted text, so re-ingesting
// unchanged source always yields identical ids and repeated pipeline runs
// are idempotent.
package rules
