package nl2sql

import (
	"errors"
	"testing"
)

const kaurLookup = "SELECT player_name FROM wpl_player WHERE player_name ILIKE '%Kaur%' ORDER BY CASE WHEN player_name ILIKE 'Kaur' THEN 1 WHEN player_name ILIKE 'Kaur%' THEN 2 ELSE 3 END LIMIT 1;"

func TestIsLookupStatement(t *testing.T) {
	tests := map[string]bool{
		kaurLookup: true,
		"select name from public.wpl_player where name ilike '%x%' limit 1": true,
		"SELECT p.player_name AS resolved FROM wpl_player p LIMIT 1":        true,
		"SELECT player_name FROM wpl_player LIMIT 10;":                      false,
		"SELECT striker FROM wpl_delivery LIMIT 1;":                         false,
		"SELECT player_name FROM wpl_player_stats LIMIT 1;":                 false,
		"SELECT COUNT(*) FROM wpl_player LIMIT 1;":                          false,
	}
	for sql, want := range tests {
		if got := IsLookupStatement(sql); got != want {
			t.Fatalf("IsLookupStatement(%q) = %v, want %v", sql, got, want)
		}
	}
}

func TestValidateSequentialQueries(t *testing.T) {
	main := "SELECT SUM(runs_off_bat) FROM wpl_delivery WHERE striker = 'RESOLVED_PLAYER_NAME' LIMIT 1;"
	if err := ValidateSequentialQueries([]string{kaurLookup, main}); err != nil {
		t.Fatalf("valid sequence error = %v", err)
	}
	if err := ValidateSequentialQueries([]string{"WITH x AS (SELECT 1) SELECT * FROM x;"}); err != nil {
		t.Fatalf("single statement error = %v", err)
	}

	malformed := "SELECT player_name FROM wpl_player WHERE player_name = 'Kaur' LIMIT 1;"
	if err := ValidateSequentialQueries([]string{malformed, main}); !errors.Is(err, ErrMalformedLookupQuery) {
		t.Fatalf("malformed lookup error = %v", err)
	}
	noCase := "SELECT player_name FROM wpl_player WHERE player_name ILIKE '%Kaur%' ORDER BY player_name LIMIT 1;"
	if err := ValidateSequentialQueries([]string{noCase, main}); !errors.Is(err, ErrMalformedLookupQuery) {
		t.Fatalf("lookup without CASE error = %v", err)
	}

	cteMain := "WITH runs AS (SELECT striker, SUM(runs_off_bat) AS total FROM wpl_delivery GROUP BY striker) SELECT total FROM runs WHERE striker = 'RESOLVED_PLAYER_NAME' LIMIT 1;"
	if err := ValidateSequentialQueries([]string{kaurLookup, cteMain}); err != nil {
		t.Fatalf("lookup with CTE main error = %v", err)
	}
	cteLookup := "WITH p AS (SELECT player_name FROM wpl_player) SELECT player_name FROM p WHERE player_name = 'Kaur' LIMIT 1;"
	if err := ValidateSequentialQueries([]string{cteLookup, main}); err != nil {
		t.Fatalf("CTE first statement error = %v", err)
	}

	nonSelect := [][]string{
		{"SELECT 1;", "DELETE FROM wpl_match;"},
		{kaurLookup, "EXPLAIN SELECT 1;"},
		{"WITHDRAW 1;", main},
	}
	for _, seq := range nonSelect {
		if err := ValidateSequentialQueries(seq); !errors.Is(err, ErrNonSelectInSequence) {
			t.Fatalf("ValidateSequentialQueries(%q) error = %v, want ErrNonSelectInSequence", seq, err)
		}
	}
	if err := ValidateSequentialQueries(nil); !errors.Is(err, ErrNoStatementsParsed) {
		t.Fatalf("empty error = %v", err)
	}
}
