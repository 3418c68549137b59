package query

import (
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type float64er interface {
	Float64() float64
}

// ScanRows reads every row into column-keyed records with normalised values.
func ScanRows(rows *sql.Rows) ([]string, []map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("query columns: %w", err)
	}
	dbTypes := make([]string, len(columns))
	if columnTypes, err := rows.ColumnTypes(); err == nil {
		for i, ct := range columnTypes {
			dbTypes[i] = strings.ToUpper(ct.DatabaseTypeName())
		}
	}

	records := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		record := make(map[string]any, len(columns))
		for i, column := range columns {
			record[column] = NormalizeValue(values[i], dbTypes[i])
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, records, nil
}

// NormalizeValue converts driver values into JSON-friendly ones.
func NormalizeValue(value any, dbType string) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case []byte:
		if isNumericType(dbType) {
			return decimalOrString(string(typed))
		}
		return string(typed)
	case string:
		if isNumericType(dbType) {
			return decimalOrString(typed)
		}
		return typed
	case time.Time:
		return typed.UTC().Format(time.RFC3339Nano)
	case *big.Int:
		if typed == nil {
			return nil
		}
		if typed.IsInt64() {
			return typed.Int64()
		}
		f, _ := new(big.Float).SetInt(typed).Float64()
		return f
	case decimal.Decimal:
		return typed.InexactFloat64()
	case float64er:
		return typed.Float64()
	default:
		return typed
	}
}

func isNumericType(dbType string) bool {
	return dbType == "NUMERIC" || dbType == "DECIMAL" || strings.HasPrefix(dbType, "DECIMAL(")
}

func decimalOrString(raw string) any {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	return d.InexactFloat64()
}
