// Package sqlguard decides whether a generated SQL string is safe to run
// against the WPL statistics store.
package sqlguard

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

var deniedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE",
	"EXEC", "EXECUTE", "DECLARE", "GRANT", "REVOKE", "COMMIT", "ROLLBACK",
	"SAVEPOINT", "MERGE", "CALL", "REPLACE", "LOAD", "COPY", "BULK",
	"BACKUP", "RESTORE", "ATTACH", "DETACH",
}

var systemCatalogPatterns = []string{
	"information_schema", "pg_", "sys.", "master.", "msdb.", "tempdb.",
}

var allowedTables = map[string]struct{}{
	"wpl_match":           {},
	"wpl_delivery":        {},
	"wpl_match_info":      {},
	"wpl_team":            {},
	"wpl_player":          {},
	"wpl_official":        {},
	"wpl_person_registry": {},
}

var allowedTableFunctions = map[string]struct{}{
	"unnest":          {},
	"generate_series": {},
}

var injectionSignatures = []struct {
	pattern *regexp.Regexp
	label   string
}{
	{regexp.MustCompile(`;\s*--`), "comment after statement terminator"},
	{regexp.MustCompile(`;\s*/\*`), "block comment after statement terminator"},
	{regexp.MustCompile(`(?i)\bUNION\s+(?:ALL\s+)?SELECT\b`), "UNION SELECT"},
	{regexp.MustCompile(`(?i)'\s*OR\s*'1'\s*=\s*'1`), "string tautology"},
	{regexp.MustCompile(`(?i)\bOR\s+1\s*=\s*1\b`), "numeric tautology"},
	{regexp.MustCompile(`(?i)xp_cmdshell`), "xp_cmdshell"},
	{regexp.MustCompile(`(?i)sp_executesql`), "sp_executesql"},
}

var (
	cteNamePattern      = regexp.MustCompile(`(?i)([A-Za-z_][A-Za-z0-9_$]*)\s*(?:\([^()]*\))?\s+AS\s*(?:NOT\s+)?(?:MATERIALIZED\s+)?\(`)
	distinctFromPattern = regexp.MustCompile(`(?i)\bIS\s+(?:NOT\s+)?DISTINCT\s+FROM\b`)
	fromFunctionPattern = regexp.MustCompile(`(?i)\b(?:EXTRACT|SUBSTRING|TRIM|OVERLAY)\s*\(`)
	sourceKeyword       = regexp.MustCompile(`(?i)\b(FROM|JOIN)\b`)
	limitPattern        = regexp.MustCompile(`(?i)\bLIMIT\b`)
	selectStarPattern   = regexp.MustCompile(`(?i)\bSELECT\s+(?:DISTINCT\s+)?\*`)
)

// AllowedTables returns the sorted table allow-list.
func AllowedTables() []string {
	out := make([]string, 0, len(allowedTables))
	for name := range allowedTables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Validate checks sql against the read-only policy and returns every violation found.
func Validate(sql string) Result {
	res := Result{Errors: []string{}, Warnings: []string{}}
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		res.Errors = append(res.Errors, "SQL query cannot be empty")
		return res
	}

	upper := strings.ToUpper(trimmed)
	for _, keyword := range deniedKeywords {
		if strings.Contains(upper, keyword) {
			res.Errors = append(res.Errors, fmt.Sprintf("forbidden keyword detected: %s", keyword))
		}
	}

	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		res.Errors = append(res.Errors, "only SELECT queries are allowed")
	}

	lower := strings.ToLower(trimmed)
	for _, pattern := range systemCatalogPatterns {
		if strings.Contains(lower, pattern) {
			res.Errors = append(res.Errors, fmt.Sprintf("access to system catalog is not allowed: %s", pattern))
		}
	}

	masked := maskLiteralsAndComments(trimmed)
	res.Errors = append(res.Errors, checkTables(masked)...)

	for _, sig := range injectionSignatures {
		if sig.pattern.MatchString(trimmed) {
			res.Errors = append(res.Errors, fmt.Sprintf("potential SQL injection detected: %s", sig.label))
		}
	}

	if strings.Contains(strings.TrimSuffix(strings.TrimSpace(masked), ";"), ";") {
		res.Errors = append(res.Errors, "multiple statements are not allowed")
	}

	if !limitPattern.MatchString(masked) {
		res.Warnings = append(res.Warnings, "query has no LIMIT clause and may return a large result set")
	}
	if selectStarPattern.MatchString(masked) {
		res.Warnings = append(res.Warnings, "SELECT * returns every column; prefer explicit columns")
	}

	res.Valid = len(res.Errors) == 0
	return res
}

func checkTables(masked string) []string {
	// CTE name -> offset of its first declaration. A reference only resolves
	// to a CTE declared before it.
	ctes := map[string]int{}
	for _, m := range cteNamePattern.FindAllStringSubmatchIndex(masked, -1) {
		name := strings.ToLower(masked[m[2]:m[3]])
		if _, dup := ctes[name]; !dup {
			ctes[name] = m[2]
		}
	}

	text := neutralizeNonTableFrom(masked)
	var errs []string
	seen := map[string]struct{}{}
	reject := func(msg string) {
		if _, ok := seen[msg]; ok {
			return
		}
		seen[msg] = struct{}{}
		errs = append(errs, msg)
	}

	for _, loc := range sourceKeyword.FindAllStringSubmatchIndex(text, -1) {
		isFrom := strings.EqualFold(text[loc[2]:loc[3]], "FROM")
		sc := scanner{src: text, pos: loc[1]}
		for {
			sc.skipSpace()
			if sc.peekWord("LATERAL") || sc.peekWord("ONLY") {
				sc.readWord()
				sc.skipSpace()
			}
			if sc.peek() == '(' {
				break
			}
			name, ok := sc.readQualifiedName()
			if !ok {
				break
			}
			sc.skipSpace()
			if sc.peek() == '(' {
				if _, fn := allowedTableFunctions[name]; !fn {
					reject(fmt.Sprintf("table function not allowed: %s", name))
				}
				sc.skipParens()
			} else if declared, cte := ctes[name]; !cte || declared > loc[0] {
				if _, allowed := allowedTables[name]; !allowed {
					reject(fmt.Sprintf("access to table not allowed: %s", name))
				}
			}
			if !isFrom {
				break
			}
			sc.skipAlias()
			sc.skipSpace()
			if sc.peek() != ',' {
				break
			}
			sc.pos++
		}
	}
	return errs
}

// neutralizeNonTableFrom hides FROM tokens that do not introduce a relation.
func neutralizeNonTableFrom(text string) string {
	text = distinctFromPattern.ReplaceAllStringFunc(text, func(m string) string {
		return strings.Repeat(" ", len(m))
	})
	buf := []byte(text)
	for _, loc := range fromFunctionPattern.FindAllStringIndex(text, -1) {
		depth := 0
		for i := loc[1] - 1; i < len(buf); i++ {
			switch buf[i] {
			case '(':
				depth++
			case ')':
				depth--
			}
			if depth == 0 {
				break
			}
			if depth == 1 && i+4 <= len(buf) && strings.EqualFold(string(buf[i:i+4]), "FROM") &&
				!isIdentByte(prevByte(buf, i)) && (i+4 == len(buf) || !isIdentByte(buf[i+4])) {
				copy(buf[i:i+4], "    ")
			}
		}
	}
	return string(buf)
}

// maskLiteralsAndComments blanks string literal bodies and comments while keeping offsets.
func maskLiteralsAndComments(sql string) string {
	buf := []byte(sql)
	for i := 0; i < len(buf); i++ {
		switch {
		case buf[i] == '\'':
			i++
			for i < len(buf) {
				if buf[i] == '\'' {
					if i+1 < len(buf) && buf[i+1] == '\'' {
						buf[i], buf[i+1] = ' ', ' '
						i += 2
						continue
					}
					break
				}
				buf[i] = ' '
				i++
			}
		case buf[i] == '-' && i+1 < len(buf) && buf[i+1] == '-':
			for i < len(buf) && buf[i] != '\n' {
				buf[i] = ' '
				i++
			}
		case buf[i] == '/' && i+1 < len(buf) && buf[i+1] == '*':
			for i < len(buf) {
				if buf[i] == '*' && i+1 < len(buf) && buf[i+1] == '/' {
					buf[i], buf[i+1] = ' ', ' '
					i++
					break
				}
				buf[i] = ' '
				i++
			}
		}
	}
	return string(buf)
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) peek() byte {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case ' ', '\t', '\n', '\r', '\f':
			s.pos++
		default:
			return
		}
	}
}

func (s *scanner) readWord() string {
	start := s.pos
	for s.pos < len(s.src) && isIdentByte(s.src[s.pos]) {
		s.pos++
	}
	return s.src[start:s.pos]
}

func (s *scanner) peekWord(word string) bool {
	end := s.pos + len(word)
	if end > len(s.src) || !strings.EqualFold(s.src[s.pos:end], word) {
		return false
	}
	return end == len(s.src) || !isIdentByte(s.src[end])
}

func (s *scanner) readIdent() (string, bool) {
	if s.peek() == '"' {
		end := strings.IndexByte(s.src[s.pos+1:], '"')
		if end < 0 {
			return "", false
		}
		ident := s.src[s.pos+1 : s.pos+1+end]
		s.pos += end + 2
		return strings.ToLower(ident), ident != ""
	}
	if c := s.peek(); c == 0 || !isIdentByte(c) || (c >= '0' && c <= '9') {
		return "", false
	}
	return strings.ToLower(s.readWord()), true
}

// readQualifiedName reads [schema.]name and returns the unqualified, lower-cased name.
func (s *scanner) readQualifiedName() (string, bool) {
	name, ok := s.readIdent()
	if !ok {
		return "", false
	}
	for {
		save := s.pos
		s.skipSpace()
		if s.peek() != '.' {
			s.pos = save
			return name, true
		}
		s.pos++
		s.skipSpace()
		next, ok := s.readIdent()
		if !ok {
			s.pos = save
			return name, true
		}
		name = next
	}
}

var aliasStopWords = map[string]struct{}{
	"where": {}, "join": {}, "inner": {}, "left": {}, "right": {}, "full": {}, "cross": {},
	"natural": {}, "on": {}, "using": {}, "group": {}, "order": {}, "having": {}, "limit": {},
	"offset": {}, "union": {}, "intersect": {}, "except": {}, "window": {}, "fetch": {}, "for": {},
	"lateral": {}, "tablesample": {},
}

func (s *scanner) skipAlias() {
	s.skipSpace()
	if s.peekWord("AS") {
		s.readWord()
		s.skipSpace()
		_, _ = s.readIdent()
	} else {
		save := s.pos
		ident, ok := s.readIdent()
		if !ok {
			return
		}
		if _, stop := aliasStopWords[ident]; stop {
			s.pos = save
			return
		}
	}
	s.skipSpace()
	if s.peek() == '(' {
		s.skipParens()
	}
}

func (s *scanner) skipParens() {
	depth := 0
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				s.pos++
				return
			}
		}
		s.pos++
	}
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func prevByte(buf []byte, i int) byte {
	if i == 0 {
		return ' '
	}
	return buf[i-1]
}
