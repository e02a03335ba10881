package grid

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"openbis/pkg/domain"
)

func indexColumns(n int) []ColumnDef[[]string] {
	cols := make([]ColumnDef[[]string], n)
	for i := range cols {
		idx := i
		cols[i] = ColumnDef[[]string]{
			Identifier: string(rune('A' + i)),
			Header:     "h" + string(rune('0'+i)),
			Value:      func(row []string) string { return row[idx] },
		}
	}
	return cols
}

func TestRenderTSV(t *testing.T) {
	rows := [][]string{{"x", "y"}, {"a", "b"}}
	if got := RenderTSV(rows, indexColumns(2), "#"); got != "h0\th1#x\ty#a\tb#" {
		t.Fatalf("unexpected table %q", got)
	}
	if got := RenderTSV(nil, indexColumns(2), "\n"); got != "h0\th1\n" {
		t.Fatalf("unexpected empty table %q", got)
	}
}

var people = [][]string{
	{"alice", "10", "Zurich"},
	{"bob", "9", "Basel"},
	{"carol", "100", "zurich"},
	{"dave", "n/a", "Bern"},
}

func codes(rows [][]string) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r[0])
	}
	return out
}

func TestApply(t *testing.T) {
	cols := indexColumns(3)
	cases := []struct {
		name  string
		c     Criteria
		want  []string
		total int
	}{
		{"everything", Criteria{}, []string{"alice", "bob", "carol", "dave"}, 4},
		{"column filter ignores case", Criteria{Filters: map[string]string{"C": "ZUR"}}, []string{"alice", "carol"}, 2},
		{"unknown column filter is ignored", Criteria{Filters: map[string]string{"X": "q"}}, []string{"alice", "bob", "carol", "dave"}, 4},
		{"numeric sort", Criteria{Sort: &SortInfo{Column: "B"}}, []string{"bob", "alice", "carol", "dave"}, 4},
		{"descending", Criteria{Sort: &SortInfo{Column: "A", Descending: true}}, []string{"dave", "carol", "bob", "alice"}, 4},
		{"page", Criteria{Sort: &SortInfo{Column: "A"}, Offset: 1, Limit: 2}, []string{"bob", "carol"}, 4},
		{"offset past end", Criteria{Offset: 10, Limit: 2}, []string{}, 4},
		{"custom filter", Criteria{Custom: &CustomFilter{Expression: `num("B") >= ${min} && strings.HasPrefix(col("C"), "Z")`, Parameters: map[string]string{"min": "10"}}},
			[]string{"alice"}, 1},
		{"custom filter on row", Criteria{Custom: &CustomFilter{Expression: `row["A"] == "dave" || math.Abs(num("B")) > 50`}},
			[]string{"carol", "dave"}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := Apply(context.Background(), people, cols, tc.c)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if diff := cmp.Diff(tc.want, codes(page.Rows)); diff != "" {
				t.Fatalf("rows mismatch (-want +got):\n%s", diff)
			}
			if page.TotalCount != tc.total {
				t.Fatalf("expected total %d, got %d", tc.total, page.TotalCount)
			}
		})
	}
}

func TestCustomFilterRejectsUnsafeExpressions(t *testing.T) {
	for _, expr := range []string{
		`func() bool { return true }()`,
		`os.Getenv("HOME") != ""`,
		`col("A") ==`,
		`len(strings.Repeat(col("A"), 1<<40)) > 0`,
		`len(make([]byte, 1<<40)) > 0`,
		`strings.Join(nil, "") == ""`,
		`(col("A")).Len() > 0`,
		`col("A") == "` + strings.Repeat("x", MaxFilterExpressionLength) + `"`,
	} {
		_, err := Apply(context.Background(), people, indexColumns(3), Criteria{Custom: &CustomFilter{Expression: expr}})
		var uf domain.UserFailureError
		if !errors.As(err, &uf) || !strings.HasPrefix(uf.Message, "Invalid filter expression") {
			t.Fatalf("%s: expected user failure, got %v", expr, err)
		}
	}
}

func TestSubstituteParameters(t *testing.T) {
	got := SubstituteParameters("${a} + ${b} + ${a}", map[string]string{"a": "1", "b": "${a}"})
	if got != "1 + ${a} + 1" {
		t.Fatalf("unexpected substitution %q", got)
	}
	if got := SubstituteParameters("${missing}", nil); got != "${missing}" {
		t.Fatalf("unknown parameters stay, got %q", got)
	}
}
