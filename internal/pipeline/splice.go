package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/boundarybytes/boundarybytes/internal/nl2sql"
)

var (
	placeholderPattern = regexp.MustCompile(`(?i)RESOLVED_(?:PLAYER|BATTER|BOWLER)_NAME`)
	playerEquality     = regexp.MustCompile(`(?i)\b((?:[A-Za-z_]\w*\.)?(striker|non_striker|player_dismissed|bowler))\s*(=|ILIKE|LIKE)\s*'((?:[^']|'')*)'`)
	nameTokens         = regexp.MustCompile(`[A-Za-z]+`)
)

// Splice substitutes resolved player names into sql. With one name every
// placeholder takes it; with two the first is the batter and the second the
// bowler. Equality literals on player columns that still carry the
// unresolved name are rewritten to the resolved one.
func Splice(sql string, names []string) (string, error) {
	if len(names) == 0 {
		if placeholderPattern.MatchString(sql) {
			return "", ErrUnresolvedPlaceholder
		}
		return sql, nil
	}
	if len(names) > 2 {
		return "", fmt.Errorf("%w: %d names resolved", ErrInvalidSequence, len(names))
	}
	batter, bowler := names[0], names[0]
	if len(names) == 2 {
		bowler = names[1]
	}
	values := map[string]string{
		nl2sql.PlaceholderPlayer: batter,
		nl2sql.PlaceholderBatter: batter,
		nl2sql.PlaceholderBowler: bowler,
	}

	out := replacePlaceholders(sql, values)
	out = rewritePlayerEqualities(out, batter, bowler)

	if placeholderPattern.MatchString(out) {
		return "", ErrUnresolvedPlaceholder
	}
	return out, nil
}

func replacePlaceholders(sql string, values map[string]string) string {
	var b strings.Builder
	b.Grow(len(sql) + 32)
	inString := false
	for i := 0; i < len(sql); {
		c := sql[i]
		if c == '\'' {
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				b.WriteString("''")
				i += 2
				continue
			}
			inString = !inString
			b.WriteByte(c)
			i++
			continue
		}
		if !inString && c == '"' {
			if token, value, ok := matchPlaceholder(sql[i+1:], values); ok && strings.HasPrefix(sql[i+1+len(token):], `"`) {
				b.WriteString(quoteLiteral(value))
				i += len(token) + 2
				continue
			}
		}
		if token, value, ok := matchPlaceholder(sql[i:], values); ok && (inString || boundary(sql, i, len(token))) {
			if inString {
				b.WriteString(escapeLiteral(value))
			} else {
				b.WriteString(quoteLiteral(value))
			}
			i += len(token)
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

func matchPlaceholder(s string, values map[string]string) (string, string, bool) {
	for token, value := range values {
		if len(s) >= len(token) && strings.EqualFold(s[:len(token)], token) {
			return token, value, true
		}
	}
	return "", "", false
}

func boundary(s string, start, length int) bool {
	if start > 0 && isWordByte(s[start-1]) {
		return false
	}
	end := start + length
	return end >= len(s) || !isWordByte(s[end])
}

func rewritePlayerEqualities(sql, batter, bowler string) string {
	return playerEquality.ReplaceAllStringFunc(sql, func(clause string) string {
		m := playerEquality.FindStringSubmatch(clause)
		column, literal := m[1], strings.ReplaceAll(m[4], "''", "'")
		resolved := batter
		if strings.EqualFold(m[2], "bowler") {
			resolved = bowler
		}
		if strings.EqualFold(literal, resolved) || !resemblesName(literal, resolved) {
			return clause
		}
		return column + " = " + quoteLiteral(resolved)
	})
}

// resemblesName reports whether a literal is a partial spelling of the
// resolved name: every name token in the literal must also be a token of the
// resolved name, and at least one of them must be longer than an initial.
// 'Kaur' resembles 'HC Kaur'; 'HC Kaur' does not resemble 'A Kaur'.
func resemblesName(literal, resolved string) bool {
	resolvedTokens := map[string]struct{}{}
	for _, token := range nameTokens.FindAllString(strings.ToLower(resolved), -1) {
		resolvedTokens[token] = struct{}{}
	}
	literalTokens := nameTokens.FindAllString(strings.ToLower(literal), -1)
	if len(literalTokens) == 0 {
		return false
	}
	surname := false
	for _, token := range literalTokens {
		if _, ok := resolvedTokens[token]; !ok {
			return false
		}
		if len(token) >= 3 {
			surname = true
		}
	}
	return surname
}

func escapeLiteral(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

func quoteLiteral(value string) string {
	return "'" + escapeLiteral(value) + "'"
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
