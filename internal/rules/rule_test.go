package rules

import (
	"strings"
	"testing"
)

func TestNewIDDeterministic(t *testing.T) {
	a := NewID("db/schema.sql", "CHECK (price > 0)")
	b := NewID("db/schema.sql", "CHECK (price > 0)")
	if a != b {
		t.Errorf("same input produced different ids: %s vs %s", a, b)
	}
}

func TestNewIDFormat(t *testing.T) {
	id := NewID("app/orders.py", "if total > 1000:")
	if !strings.HasPrefix(id, "rule_") {
		t.Errorf("id missing prefix: %s", id)
	}
	if len(id) != len("rule_")+12 {
		t.Errorf("id has wrong width: %s", id)
	}
}

func TestNewIDDistinguishesInputs(t *testing.T) {
	tests := []struct {
		name          string
		pathA, textA  string
		pathB, textB  string
	}{
		{"different content", "a.sql", "x > 1", "a.sql", "x > 2"},
		{"different path", "a.sql", "x > 1", "b.sql", "x > 1"},
		{"path/content boundary", "a.sql:x", "> 1", "a.sql", ":x > 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if NewID(tt.pathA, tt.textA) == NewID(tt.pathB, tt.textB) {
				t.Errorf("distinct inputs collided")
			}
		})
	}
}

func TestTypeValid(t *testing.T) {
	for _, typ := range Types() {
		if !typ.Valid() {
			t.Errorf("enum member %q reported invalid", typ)
		}
	}
	if Type("heuristic").Valid() {
		t.Error("unknown type reported valid")
	}
	if Type("").Valid() {
		t.Error("empty type reported valid")
	}
}

func TestSourceLocationValidate(t *testing.T) {
	tests := []struct {
		name    string
		loc     SourceLocation
		wantErr bool
	}{
		{"valid", SourceLocation{FilePath: "a.sql", StartLine: 1, EndLine: 3}, false},
		{"single line", SourceLocation{FilePath: "a.sql", StartLine: 7, EndLine: 7}, false},
		{"missing path", SourceLocation{StartLine: 1, EndLine: 1}, true},
		{"zero start", SourceLocation{FilePath: "a.sql", StartLine: 0, EndLine: 1}, true},
		{"end before start", SourceLocation{FilePath: "a.sql", StartLine: 5, EndLine: 4}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.loc.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRuleValidate(t *testing.T) {
	valid := func() Rule {
		return Rule{
			ID:         NewID("a.sql", "price > 0"),
			Type:       TypeConstraint,
			Confidence: 0.95,
			Source:     SourceLocation{FilePath: "a.sql", StartLine: 2, EndLine: 2},
		}
	}

	r := valid()
	if err := r.Validate(); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	r = valid()
	r.ID = ""
	if err := r.Validate(); err == nil {
		t.Error("empty id accepted")
	}

	r = valid()
	r.Type = "verdict"
	if err := r.Validate(); err == nil {
		t.Error("unknown type accepted")
	}

	r = valid()
	r.Confidence = 1.2
	if err := r.Validate(); err == nil {
		t.Error("confidence > 1 accepted")
	}

	r = valid()
	r.Confidence = -0.1
	if err := r.Validate(); err == nil {
		t.Error("negative confidence accepted")
	}
}

func TestTruncateSnippet(t *testing.T) {
	short := "SELECT 1"
	if got := TruncateSnippet(short); got != short {
		t.Errorf("short snippet altered: %q", got)
	}

	long := strings.Repeat("x", SnippetMaxLen+100)
	got := TruncateSnippet(long)
	if len(got) != SnippetMaxLen {
		t.Errorf("truncated length = %d, want %d", len(got), SnippetMaxLen)
	}
	if got != long[:SnippetMaxLen] {
		t.Error("truncation altered retained prefix")
	}
}

func TestSetMeta(t *testing.T) {
	var r Rule
	r.SetMeta("language", "python")
	r.SetMeta("language", "java")
	if r.Metadata["language"] != "java" {
		t.Errorf("metadata not overwritten: %v", r.Metadata)
	}
}
