package extract

import "strings"

// statement is one logical SQL statement with its 1-based line range.
type statement struct {
	Text      string
	StartLine int
	EndLine   int
}

// splitStatements splits SQL text into logical statements on unquoted,
// uncommented semicolons, tracking line numbers. It never fails: text
// with no boundary (or only malformed boundaries) comes back as a
// single statement spanning the whole input.
func splitStatements(content string) []statement {
	var stmts []statement

	line := 1
	startLine := 1
	var buf strings.Builder

	flush := func() {
		text := buf.String()
		buf.Reset()
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return
		}
		// Leading blank lines belong to the gap, not the statement.
		lead := countLines(text[:len(text)-len(strings.TrimLeft(text, " \t\r\n"))])
		start := startLine + lead
		stmts = append(stmts, statement{
			Text:      trimmed,
			StartLine: start,
			EndLine:   start + countLines(trimmed),
		})
	}

	const (
		stateCode = iota
		stateSingleQuote
		stateDoubleQuote
		stateLineComment
		stateBlockComment
	)
	state := stateCode
	blockStart := 0

	for i := 0; i < len(content); i++ {
		c := content[i]
		if c == '\n' {
			line++
		}

		switch state {
		case stateCode:
			switch {
			case c == '\'':
				state = stateSingleQuote
			case c == '"':
				state = stateDoubleQuote
			case c == '-' && i+1 < len(content) && content[i+1] == '-':
				state = stateLineComment
			case c == '/' && i+1 < len(content) && content[i+1] == '*':
				state = stateBlockComment
				blockStart = i
			case c == ';':
				buf.WriteByte(c)
				flush()
				startLine = line
				continue
			}
		case stateSingleQuote:
			if c == '\'' {
				state = stateCode
			}
		case stateDoubleQuote:
			if c == '"' {
				state = stateCode
			}
		case stateLineComment:
			if c == '\n' {
				state = stateCode
			}
		case stateBlockComment:
			// The closing slash must sit past the opener, so "/*/" stays
			// inside the comment and the shortest close is "/**/".
			if c == '/' && content[i-1] == '*' && i >= blockStart+3 {
				state = stateCode
			}
		}

		buf.WriteByte(c)
	}
	flush()

	if len(stmts) == 0 && strings.TrimSpace(content) != "" {
		stmts = append(stmts, statement{
			Text:      content,
			StartLine: 1,
			EndLine:   1 + countLines(content),
		})
	}
	return stmts
}
