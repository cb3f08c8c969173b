package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ekaya-inc/herdwise/pkg/models"
)

// QueryConn runs one statement on a dedicated connection taken from db and
// materializes the result. The connection is returned to db on every path.
func QueryConn(ctx context.Context, db *sql.DB, backend, statement string) (*models.ResultSet, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, ClassifyError(backend, err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, statement)
	if err != nil {
		return nil, ClassifyError(backend, err)
	}
	defer rows.Close()

	rs, err := ScanRows(rows)
	if err != nil {
		return nil, ClassifyError(backend, err)
	}
	return rs, nil
}

// ScanRows drains rows into a ResultSet. Byte slices become strings so the
// result serializes as text rather than base64.
func ScanRows(rows *sql.Rows) (*models.ResultSet, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	rs := &models.ResultSet{Columns: columns, Rows: make([]map[string]any, 0)}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = NormalizeValue(values[i])
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return rs, nil
}

// NormalizeValue converts driver values into JSON-friendly forms.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.RFC3339)
	default:
		return v
	}
}

// PlaceholderStyle renders the n-th (1-based) bind parameter.
type PlaceholderStyle func(n int) string

// Placeholder styles used by the registered adapters.
var (
	QuestionPlaceholders PlaceholderStyle = func(int) string { return "?" }
	DollarPlaceholders   PlaceholderStyle = func(n int) string { return fmt.Sprintf("$%d", n) }
	AtPPlaceholders      PlaceholderStyle = func(n int) string { return fmt.Sprintf("@p%d", n) }
)

// BuildInsert renders an INSERT of one record into swine_alert. Absent fields
// are omitted so the store default (NULL) applies.
func BuildInsert(rec *models.AnalyticsRecord, style PlaceholderStyle) (string, []any) {
	cols := []string{"unique_id"}
	args := []any{rec.UniqueID}
	for _, col := range models.SwineAlertColumns {
		if col.Name == "unique_id" {
			continue
		}
		if v, ok := rec.Fields[col.Name]; ok {
			cols = append(cols, col.Name)
			args = append(args, v)
		}
	}

	marks := make([]string, len(cols))
	for i := range cols {
		marks[i] = style(i + 1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		models.SwineAlertTable, strings.Join(cols, ", "), strings.Join(marks, ", "))
	return stmt, args
}

// InsertRecords writes records through db in one transaction.
func InsertRecords(ctx context.Context, db *sql.DB, backend string, style PlaceholderStyle, records []*models.AnalyticsRecord) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, ClassifyError(backend, err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, rec := range records {
		stmt, args := BuildInsert(rec, style)
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return 0, fmt.Errorf("insert record %d (%s): %w", i, rec.UniqueID, ClassifyError(backend, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, ClassifyError(backend, err)
	}
	return len(records), nil
}
