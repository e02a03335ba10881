package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPredicates(t *testing.T) {
	cases := []struct {
		name string
		pred func(string) bool
		in   string
		want bool
	}{
		{"internal child", InternalImportForbidden, "openbis/internal/core", true},
		{"internal root", InternalImportForbidden, "openbis/internal", true},
		{"public", InternalImportForbidden, "openbis/pkg/api", false},
		{"prefix itself", PrefixForbidden("openbis/pkg/api"), "openbis/pkg/api", true},
		{"prefix child", PrefixForbidden("openbis/pkg/api"), "openbis/pkg/api/v2", true},
		{"prefix sibling", PrefixForbidden("openbis/pkg/api"), "openbis/pkg/apix", false},
		{"any", AnyForbidden(PrefixForbidden("a"), PrefixForbidden("b")), "b/c", true},
		{"any none", AnyForbidden(), "b/c", false},
	}
	for _, c := range cases {
		if got := c.pred(c.in); got != c.want {
			t.Errorf("%s: pred(%q)=%v want %v", c.name, c.in, got, c.want)
		}
	}
}

type recorder struct{ msg string }

func (r *recorder) Fatalf(format string, _ ...any) { r.msg = format }

func writeFile(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package tmp\nimport (\n\t\"fmt\"\n\t\"openbis/internal/core\"\n)\nvar _ = fmt.Sprint\nvar _ core.Service\n")
	writeFile(t, dir, "a_test.go", "package tmp\nimport \"openbis/internal/bo\"\n")
	writeFile(t, dir, "notes.txt", "import \"openbis/internal/grid\"")

	viols, err := directImportViolations(dir, InternalImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "openbis/internal/core (in a.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}

	rec := &recorder{}
	failIfViolations(rec, "reason", viols)
	if !strings.Contains(rec.msg, "forbidden imports") {
		t.Fatalf("expected failure, got %q", rec.msg)
	}
	rec = &recorder{}
	failIfViolations(rec, "reason", nil)
	if rec.msg != "" {
		t.Fatalf("unexpected failure %q", rec.msg)
	}
}

func TestAssertNoDirectImportsPassesCleanPackage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x.go", "package tmp\nimport \"fmt\"\nfunc X() { fmt.Println(1) }\n")
	AssertNoDirectImports(t, dir, InternalImportForbidden, "none")
}

func TestAssertNoDirectImportsReportsParseErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.go", "package\n")
	if _, err := directImportViolations(dir, InternalImportForbidden); err == nil {
		t.Fatalf("expected parse error")
	}
}
