// Package secrets flags extracted snippets that contain secret-shaped
// material. Flagging is report-only: snippets are never altered, because
// traceability requires them to match the source text verbatim.
package secrets

import (
	"fmt"
	"strings"

	"github.com/zricethezav/gitleaks/v8/detect"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/rulemap/internal/logging"
	"github.com/fyrsmithlabs/rulemap/internal/rules"
)

// Finding is one detected secret inside a rule snippet.
type Finding struct {
	RuleID      string // gitleaks rule id, e.g. "github-pat"
	Description string
	Line        int
}

// Scanner wraps the gitleaks detector with its default ruleset.
type Scanner struct {
	detector *detect.Detector
	logger   *logging.Logger
}

// NewScanner builds a scanner over the default gitleaks config.
func NewScanner(logger *logging.Logger) (*Scanner, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("creating secret detector: %w", err)
	}
	return &Scanner{detector: detector, logger: logger.Named("secrets")}, nil
}

// Scan detects secrets in a single text.
func (s *Scanner) Scan(content string) []Finding {
	matches := s.detector.DetectString(content)
	findings := make([]Finding, 0, len(matches))
	for _, m := range matches {
		findings = append(findings, Finding{
			RuleID:      m.RuleID,
			Description: m.Description,
			Line:        m.StartLine,
		})
	}
	return findings
}

// ScanRules scans every rule's snippet and records findings in the
// rule's metadata. Returns the number of flagged rules.
func (s *Scanner) ScanRules(rs []*rules.Rule) int {
	flagged := 0
	for _, r := range rs {
		findings := s.Scan(r.Source.Snippet)
		if len(findings) == 0 {
			continue
		}

		ids := make([]string, 0, len(findings))
		seen := make(map[string]struct{}, len(findings))
		for _, f := range findings {
			if _, ok := seen[f.RuleID]; ok {
				continue
			}
			seen[f.RuleID] = struct{}{}
			ids = append(ids, f.RuleID)
		}
		r.SetMeta(rules.MetadataSecretFindings, strings.Join(ids, ","))
		flagged++

		s.logger.Warn("secret material in rule snippet",
			zap.String("rule_id", r.ID),
			zap.String("file", r.Source.FilePath),
			zap.Strings("detectors", ids),
		)
	}
	if flagged > 0 {
		s.logger.Info("secret scan complete", zap.Int("flagged_rules", flagged))
	}
	return flagged
}
