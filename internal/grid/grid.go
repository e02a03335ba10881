// Package grid lists entities as table rows: column definitions, TSV export,
// column and custom filters, sorting and paging.
package grid

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"
)

// ColumnDef describes one column of a grid over rows of type T.
type ColumnDef[T any] struct {
	Identifier string
	Header     string
	Value      func(T) string
}

// RenderTSV renders a header line of tab separated column headers followed
// by one line per row. Every line, including the last, ends with
// lineSeparator.
func RenderTSV[T any](rows []T, columns []ColumnDef[T], lineSeparator string) string {
	var b strings.Builder
	cells := make([]string, len(columns))
	for i, c := range columns {
		cells[i] = c.Header
	}
	b.WriteString(strings.Join(cells, "\t"))
	b.WriteString(lineSeparator)
	for _, row := range rows {
		for i, c := range columns {
			cells[i] = c.Value(row)
		}
		b.WriteString(strings.Join(cells, "\t"))
		b.WriteString(lineSeparator)
	}
	return b.String()
}

// SortInfo orders rows by one column.
type SortInfo struct {
	Column     string `json:"column"`
	Descending bool   `json:"descending,omitempty"`
}

// Criteria selects and orders a page of rows. Filters maps column
// identifiers to case-insensitive substrings. A Limit of zero or less
// returns every row from Offset on.
type Criteria struct {
	Filters map[string]string `json:"filters,omitempty"`
	Custom  *CustomFilter     `json:"custom,omitempty"`
	Sort    *SortInfo         `json:"sort,omitempty"`
	Offset  int               `json:"offset,omitempty"`
	Limit   int               `json:"limit,omitempty"`
}

// Page is a slice of the matching rows and the number of all matching rows.
type Page[T any] struct {
	Rows       []T
	TotalCount int
	Offset     int
}

// Apply filters, sorts and pages rows. rows is not modified.
func Apply[T any](ctx context.Context, rows []T, columns []ColumnDef[T], c Criteria) (Page[T], error) {
	byID := make(map[string]ColumnDef[T], len(columns))
	for _, col := range columns {
		byID[col.Identifier] = col
	}
	matched := make([]T, 0, len(rows))
	for _, row := range rows {
		if matchesColumnFilters(row, byID, c.Filters) {
			matched = append(matched, row)
		}
	}
	if c.Custom != nil && strings.TrimSpace(c.Custom.Expression) != "" {
		var err error
		if matched, err = applyCustomFilter(ctx, matched, columns, *c.Custom); err != nil {
			return Page[T]{}, err
		}
	}
	if c.Sort != nil {
		if col, ok := byID[c.Sort.Column]; ok {
			sortRows(matched, col, c.Sort.Descending)
		}
	}
	total := len(matched)
	offset := min(max(c.Offset, 0), total)
	end := total
	if c.Limit > 0 {
		end = min(offset+c.Limit, total)
	}
	return Page[T]{Rows: matched[offset:end], TotalCount: total, Offset: offset}, nil
}

func matchesColumnFilters[T any](row T, byID map[string]ColumnDef[T], filters map[string]string) bool {
	for id, pattern := range filters {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		col, ok := byID[id]
		if !ok {
			continue
		}
		if !strings.Contains(strings.ToLower(col.Value(row)), strings.ToLower(pattern)) {
			return false
		}
	}
	return true
}

// sortRows orders by the column value, numerically when both values are numbers.
func sortRows[T any](rows []T, col ColumnDef[T], descending bool) {
	slices.SortStableFunc(rows, func(a, b T) int {
		r := compareValues(col.Value(a), col.Value(b))
		if descending {
			return -r
		}
		return r
	})
}

func compareValues(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return cmp.Compare(fa, fb)
	}
	return cmp.Compare(strings.ToLower(a), strings.ToLower(b))
}
