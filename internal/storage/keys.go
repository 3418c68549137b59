package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

const (
	matchSuffix  = ".csv"
	infoSuffix   = "_info.csv"
	exportPrefix = "exports"
)

var keyComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// MatchKeys returns the ball-by-ball and info object keys of a match.
func MatchKeys(prefix, matchID string) (deliveries, info string, err error) {
	if err := validateKeyComponent(matchID, "match id"); err != nil {
		return "", "", err
	}
	return path.Join(prefix, matchID+matchSuffix), path.Join(prefix, matchID+infoSuffix), nil
}

// MatchIDFromKey extracts the match id from a ball-by-ball file key. Info
// files and anything that is not a CSV are not match files.
func MatchIDFromKey(key string) (string, bool) {
	base := path.Base(key)
	if !strings.HasSuffix(base, matchSuffix) || strings.HasSuffix(base, infoSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(base, matchSuffix)
	if validateKeyComponent(id, "match id") != nil {
		return "", false
	}
	return id, true
}

// ExportKey is where the CSV export of a table lives.
func ExportKey(table string) (string, error) {
	if err := validateKeyComponent(table, "table name"); err != nil {
		return "", err
	}
	return path.Join(exportPrefix, table+matchSuffix), nil
}

// IsExportKey reports whether key lives under the table export prefix.
func IsExportKey(key string) bool {
	return strings.HasPrefix(strings.TrimPrefix(key, "/"), exportPrefix+"/")
}

func validateKeyComponent(value, field string) error {
	if !keyComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
