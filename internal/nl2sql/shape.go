package nl2sql

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	lookupShape      = regexp.MustCompile(`(?is)^\s*SELECT\s+(?:DISTINCT\s+)?(?:[A-Za-z_]\w*\.)?"?(?:player_name|playername|name)"?(?:\s+AS\s+"?\w+"?)?\s+FROM\s+(?:[A-Za-z_]\w*\.)?"?wpl_player"?(?:\s|$).*\bLIMIT\s+1\s*;?\s*$`)
	fuzzyMatch       = regexp.MustCompile(`(?i)\bILIKE\b`)
	prioritisedOrder = regexp.MustCompile(`(?i)\bORDER\s+BY\s+CASE\b`)
)

// IsLookupStatement reports whether sql selects a single player name from the roster.
func IsLookupStatement(sql string) bool {
	return lookupShape.MatchString(sql)
}

// ValidateSequentialQueries checks the structure of a multi-statement reply
// before anything is executed.
func ValidateSequentialQueries(statements []string) error {
	if len(statements) == 0 {
		return ErrNoStatementsParsed
	}
	// A main statement may be a CTE; lookups are held to the SELECT shape below.
	if len(statements) > 1 {
		for i, stmt := range statements {
			upper := strings.ToUpper(strings.TrimSpace(stmt))
			if !keywordAt(upper, "SELECT") && !keywordAt(upper, "WITH") {
				return fmt.Errorf("%w: statement %d", ErrNonSelectInSequence, i+1)
			}
		}
	}
	for i, stmt := range statements {
		if !IsLookupStatement(stmt) {
			break
		}
		if !fuzzyMatch.MatchString(stmt) || !prioritisedOrder.MatchString(stmt) {
			return fmt.Errorf("%w: statement %d", ErrMalformedLookupQuery, i+1)
		}
	}
	return nil
}
