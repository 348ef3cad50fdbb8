package cache

import (
	"context"
	"fmt"
	"slices"
	"strconv"
)

// Tables lists the persisted tables in export order.
func (s *Store) Tables() []string {
	return slices.Clone(tables)
}

// Dump reads a whole table as strings, header first. Only names returned by
// Tables are accepted.
func (s *Store) Dump(ctx context.Context, table string) ([]string, [][]string, error) {
	if !slices.Contains(tables, table) {
		return nil, nil, fmt.Errorf("unknown table %q", table)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+table+" ORDER BY rowid")
	if err != nil {
		return nil, nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]string
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan %s: %w", table, err)
		}
		rec := make([]string, len(cols))
		for i, v := range vals {
			rec[i] = formatValue(v)
		}
		out = append(out, rec)
	}
	return cols, out, rows.Err()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
