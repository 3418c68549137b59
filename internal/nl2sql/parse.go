package nl2sql

import (
	"regexp"
	"strings"
)

var statementStarts = []string{
	"SELECT", "WITH", "INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE",
	"GRANT", "REVOKE", "EXPLAIN", "VALUES", "SHOW", "SET", "COPY", "CALL", "EXEC", "MERGE",
	"DECLARE", "BEGIN", "COMMIT", "ROLLBACK", "TABLE",
}

// sqlTail matches text that reads like the remainder of a SQL clause rather
// than an English sentence.
var sqlTail = regexp.MustCompile(`(?i)\bFROM\b|\bAS\b|[(*=,]`)

// ParseStatements splits a model reply into semicolon-terminated statements.
// Markdown fences, comment-only lines and leading prose are dropped.
func ParseStatements(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyResponse
	}

	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, line)
	}

	var statements []string
	for _, piece := range splitStatements(strings.Join(kept, "\n")) {
		stmt := trimLeadingProse(piece.text)
		if stmt == "" {
			continue
		}
		// Text after the last semicolon is an explanation once the reply
		// has terminated statements of its own.
		if !piece.terminated && len(statements) > 0 {
			continue
		}
		statements = append(statements, stmt+";")
	}
	if len(statements) == 0 {
		return nil, ErrNoStatementsParsed
	}
	return statements, nil
}

type statementPiece struct {
	text       string
	terminated bool
}

// splitStatements splits on semicolons that sit outside single-quoted
// literals. Only the final piece can be unterminated.
func splitStatements(text string) []statementPiece {
	var (
		out      []statementPiece
		current  strings.Builder
		inString bool
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\'':
			if inString && i+1 < len(text) && text[i+1] == '\'' {
				current.WriteString("''")
				i++
				continue
			}
			inString = !inString
			current.WriteByte(c)
		case c == ';' && !inString:
			out = append(out, statementPiece{text: current.String(), terminated: true})
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	out = append(out, statementPiece{text: current.String()})
	return out
}

func trimLeadingProse(piece string) string {
	lines := strings.Split(piece, "\n")
	for i, line := range lines {
		if startsStatement(lines, i) {
			return strings.TrimSpace(strings.Join(lines[i:], "\n"))
		}
	}
	return ""
}

// startsStatement reports whether lines[i] opens a SQL statement. A keyword
// written in upper case is enough; otherwise the rest of the line, or a FROM
// on the next line, has to read like SQL.
func startsStatement(lines []string, i int) bool {
	line := strings.TrimSpace(lines[i])
	kw, ok := statementKeyword(line)
	if !ok {
		return false
	}
	if strings.HasPrefix(line, kw) {
		return true
	}
	rest := strings.TrimSpace(line[len(kw):])
	if strings.HasSuffix(rest, ".") || strings.HasSuffix(rest, ":") || strings.HasSuffix(rest, "?") || strings.HasSuffix(rest, "!") {
		return false
	}
	if sqlTail.MatchString(rest) {
		return true
	}
	for _, next := range lines[i+1:] {
		next = strings.TrimSpace(next)
		if next == "" {
			continue
		}
		return keywordAt(strings.ToUpper(next), "FROM")
	}
	return false
}

func statementKeyword(line string) (string, bool) {
	upper := strings.ToUpper(line)
	for _, kw := range statementStarts {
		if keywordAt(upper, kw) {
			return kw, true
		}
	}
	return "", false
}

// keywordAt reports whether upper begins with kw followed by a token
// boundary.
func keywordAt(upper, kw string) bool {
	if !strings.HasPrefix(upper, kw) {
		return false
	}
	if len(upper) == len(kw) {
		return true
	}
	switch upper[len(kw)] {
	case ' ', '\t', '(', '*':
		return true
	}
	return false
}
