package extract

import (
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	content := "SELECT 1;\nSELECT 2\nFROM t;\n"
	stmts := splitStatements(content)

	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2", len(stmts))
	}
	if stmts[0].StartLine != 1 || stmts[0].EndLine != 1 {
		t.Errorf("first statement lines = %d..%d, want 1..1", stmts[0].StartLine, stmts[0].EndLine)
	}
	if stmts[1].StartLine != 2 || stmts[1].EndLine != 3 {
		t.Errorf("second statement lines = %d..%d, want 2..3", stmts[1].StartLine, stmts[1].EndLine)
	}
	if stmts[1].Text != "SELECT 2\nFROM t;" {
		t.Errorf("second statement text = %q", stmts[1].Text)
	}
}

func TestSplitStatementsQuotedSemicolon(t *testing.T) {
	stmts := splitStatements(`SELECT 'a;b' FROM t; SELECT 2;`)
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2", len(stmts))
	}
	if !strings.Contains(stmts[0].Text, "'a;b'") {
		t.Errorf("quoted semicolon split the statement: %q", stmts[0].Text)
	}
}

func TestSplitStatementsCommentSemicolon(t *testing.T) {
	content := "SELECT 1 -- trailing; not a boundary\nFROM t;\n/* block; comment */ SELECT 2;"
	stmts := splitStatements(content)
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2", len(stmts))
	}
}

func TestSplitStatementsSlashStarSlash(t *testing.T) {
	// "/*/" opens a comment, it does not open and close one. The
	// semicolon before the real "*/" is inside the comment.
	content := "SELECT 1 /*/ not a boundary; still comment */ FROM t; SELECT 2;"
	stmts := splitStatements(content)
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2", len(stmts))
	}
	if !strings.Contains(stmts[0].Text, "FROM t;") {
		t.Errorf("first statement ended inside the comment: %q", stmts[0].Text)
	}
}

func TestSplitStatementsMinimalBlockComment(t *testing.T) {
	stmts := splitStatements("SELECT 1 /**/; SELECT 2;")
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2", len(stmts))
	}
}

func TestSplitStatementsNoBoundary(t *testing.T) {
	content := "BEGIN\n  things\nEND"
	stmts := splitStatements(content)
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1", len(stmts))
	}
	if stmts[0].StartLine != 1 || stmts[0].EndLine != 3 {
		t.Errorf("lines = %d..%d, want 1..3", stmts[0].StartLine, stmts[0].EndLine)
	}
}

func TestSplitStatementsEmpty(t *testing.T) {
	if stmts := splitStatements("   \n\n  "); len(stmts) != 0 {
		t.Errorf("got %d statements from blank input, want 0", len(stmts))
	}
}

func TestSplitStatementsLineRangesCoverContent(t *testing.T) {
	content := "SELECT 1;\n\n\nSELECT 2;\nSELECT 3;"
	lines := strings.Split(content, "\n")
	for _, st := range splitStatements(content) {
		if st.StartLine < 1 || st.EndLine > len(lines) || st.StartLine > st.EndLine {
			t.Errorf("statement %q has bad line range %d..%d", st.Text, st.StartLine, st.EndLine)
		}
		if !strings.HasPrefix(lines[st.StartLine-1], strings.Split(st.Text, "\n")[0][:6]) {
			t.Errorf("statement %q does not start at line %d", st.Text, st.StartLine)
		}
	}
}
