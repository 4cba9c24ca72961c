package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrInvalidSource indicates a source location that violates the
	// 1 <= start_line <= end_line invariant or lacks a file path.
	ErrInvalidSource = errors.New("invalid source location")

	// ErrUnknownType indicates a rule type outside the closed enum.
	ErrUnknownType = errors.New("unknown rule type")

	// ErrConfidenceRange indicates a confidence outside [0, 1].
	ErrConfidenceRange = errors.New("confidence out of range")
)

// Type classifies what kind of business logic a rule captures.
// The set is closed: rule types carry no per-type behavior, only a
// descriptive tag and extractor confidence defaults.
type Type string

const (
	TypeConditional Type = "conditional"
	TypeValidation  Type = "validation"
	TypeCalculation Type = "calculation"
	TypeConstraint  Type = "constraint"
	TypeTrigger     Type = "trigger"
)

// Valid reports whether t is a member of the closed type enum.
func (t Type) Valid() bool {
	switch t {
	case TypeConditional, TypeValidation, TypeCalculation, TypeConstraint, TypeTrigger:
		return true
	}
	return false
}

// Types returns all rule types in a stable order.
func Types() []Type {
	return []Type{TypeConditional, TypeValidation, TypeCalculation, TypeConstraint, TypeTrigger}
}

// SnippetMaxLen bounds stored snippet length. Snippets are truncated for
// storage but never altered in content; the traceability validator
// compares with substring tolerance for exactly this reason.
const SnippetMaxLen = 500

// SourceLocation is the unit of traceability: the file and 1-based line
// range a rule was extracted from, plus the literal source snippet
// spanning those lines.
type SourceLocation struct {
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Snippet   string `json:"snippet,omitempty"`
}

// Validate checks the location invariants.
func (s SourceLocation) Validate() error {
	if s.FilePath == "" {
		return fmt.Errorf("%w: empty file path", ErrInvalidSource)
	}
	if s.StartLine < 1 {
		return fmt.Errorf("%w: start line %d < 1", ErrInvalidSource, s.StartLine)
	}
	if s.EndLine < s.StartLine {
		return fmt.Errorf("%w: end line %d < start line %d", ErrInvalidSource, s.EndLine, s.StartLine)
	}
	return nil
}

// Rule is one atomic extracted business-logic fact with provenance.
//
// Rules are created by extractors, rewritten in place by the normalizer
// and the enrichment step (canonical expression, embedding, domain tags),
// and removed only by deduplication or confidence filtering. The ID never
// changes after creation.
type Rule struct {
	ID                   string            `json:"id"`
	Type                 Type              `json:"rule_type"`
	Description          string            `json:"description"`
	NormalizedExpression string            `json:"normalized_expression"`
	Variables            []string          `json:"variables,omitempty"`
	Tables               []string          `json:"tables,omitempty"`
	Columns              []string          `json:"columns,omitempty"`
	Source               SourceLocation    `json:"source"`
	Confidence           float64           `json:"confidence"`
	Metadata             map[string]string `json:"metadata,omitempty"`
	Embedding            []float32         `json:"-"`
}

// NewID derives a stable, content-addressed rule id from the originating
// file path and the raw extracted text. The digest is truncated to 12 hex
// characters; collisions within one repository are vanishingly unlikely at
// that width and ids stay short enough for diagram element names.
func NewID(filePath, rawContent string) string {
	sum := sha256.Sum256([]byte(filePath + ":" + rawContent))
	return "rule_" + hex.EncodeToString(sum[:])[:12]
}

// Validate checks the rule invariants: a non-empty content-derived id, a
// known type, confidence in [0,1], and a valid source location.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return errors.New("rule id is empty")
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownType, r.Type)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: %f", ErrConfidenceRange, r.Confidence)
	}
	return r.Source.Validate()
}

// MetadataSecretFindings is the metadata key listing secret-detection
// rule ids that matched a rule's snippet (comma-joined). Snippets are
// never altered; flagging is report-only.
const MetadataSecretFindings = "secret_findings"

// MetadataDomainConcepts is the metadata key holding comma-joined domain
// concept tags assigned during enrichment.
const MetadataDomainConcepts = "domain_concepts"

// SetMeta records a metadata key, allocating the bag on first use.
func (r *Rule) SetMeta(key, value string) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string, 1)
	}
	r.Metadata[key] = value
}

// TruncateSnippet clamps s to SnippetMaxLen bytes without altering the
// retained prefix.
func TruncateSnippet(s string) string {
	if len(s) <= SnippetMaxLen {
		return s
	}
	return s[:SnippetMaxLen]
}
