package oracle

import (
	"context"
	"fmt"
	"io"
	"time"
)

// RowSet is the serialized result of a row-returning statement: one mapping
// from column name to value per row.
type RowSet struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"rowCount"`
	// Truncated is set when the fetch stopped at maxRows with rows remaining.
	Truncated bool `json:"truncated,omitempty"`
}

// QueryRows runs a row-returning statement and collects at most maxRows rows
// (no cap when maxRows <= 0).
func QueryRows(ctx context.Context, q Querier, sqlText string, maxRows int, args ...any) (*RowSet, error) {
	rows, err := q.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	numCols := len(columns)
	result := &RowSet{
		Columns: columns,
		Rows:    make([]map[string]any, 0),
	}

	for rows.Next() {
		if maxRows > 0 && result.RowCount >= maxRows {
			result.Truncated = true
			break
		}

		values := make([]any, numCols)
		valuePtrs := make([]any, numCols)
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, numCols)
		for i, v := range values {
			row[columns[i]] = convertValue(v)
		}
		result.Rows = append(result.Rows, row)
		result.RowCount++
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// ExecStatement runs a non-row statement and reports the affected row count.
// The count is -1 when the driver does not provide one (typical for DDL).
func ExecStatement(ctx context.Context, q Querier, sqlText string, args ...any) (int64, error) {
	execResult, err := q.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return 0, fmt.Errorf("statement execution failed: %w", err)
	}

	rowsAffected, err := execResult.RowsAffected()
	if err != nil {
		return -1, nil
	}
	return rowsAffected, nil
}

// convertValue converts database values to JSON-serializable types.
// CLOB columns (when the driver returns io.Reader or []byte) are read in full
// and returned as string.
func convertValue(v any) any {
	if v == nil {
		return nil
	}

	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case io.Reader:
		b, err := io.ReadAll(val)
		if closer, ok := v.(io.Closer); ok {
			_ = closer.Close()
		}
		if err != nil {
			return "<CLOB read error: " + err.Error() + ">"
		}
		return string(b)
	default:
		return val
	}
}
