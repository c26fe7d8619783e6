package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

func TestPredicates(t *testing.T) {
	cases := []struct {
		name string
		pred func(string) bool
		in   string
		want bool
	}{
		{"internal", InternalImportForbidden, "growbook/internal/core", true},
		{"internal pkg", InternalImportForbidden, "growbook/pkg/domain", false},
		{"infra", InfraImportForbidden, "growbook/internal/infra/docstore/redis", true},
		{"infra contract", InfraImportForbidden, "growbook/internal/docstore", false},
		{"app", AppImportForbidden, "growbook/internal/app", true},
		{"cmd", AppImportForbidden, "growbook/cmd/growbook", true},
		{"app prefix", AppImportForbidden, "growbook/internal/apple", false},
		{"sdk root", StorageSDKForbidden, "modernc.org/sqlite", true},
		{"sdk sub", StorageSDKForbidden, "github.com/jackc/pgx/v5/stdlib", true},
		{"sdk lookalike", StorageSDKForbidden, "github.com/redis/go-redisx", false},
		{"any", Any(InfraImportForbidden, StorageSDKForbidden), "github.com/aws/aws-sdk-go-v2/service/s3", true},
		{"any none", Any(), "fmt", false},
	}
	for _, c := range cases {
		if got := c.pred(c.in); got != c.want {
			t.Fatalf("%s: pred(%q)=%v want %v", c.name, c.in, got, c.want)
		}
	}
}

type recorder struct{ msg string }

func (r *recorder) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.go":      "package tmp\nimport (\n\t\"fmt\"\n\t\"growbook/internal/infra/docstore/memory\"\n)\nvar _ = fmt.Sprint\nvar _ = memory.NewStore\n",
		"a_test.go": "package tmp\nimport \"growbook/internal/app\"\nvar _ = app.DefaultConfig\n",
		"notes.txt": "import \"growbook/internal/app\"",
	}
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	viols, err := directImportViolations(dir, Any(InfraImportForbidden, AppImportForbidden))
	if err != nil {
		t.Fatalf("directImportViolations: %v", err)
	}
	if len(viols) != 1 || !strings.Contains(viols[0], "a.go") {
		t.Fatalf("expected only the non-test infra import, got %v", viols)
	}

	r := &recorder{}
	failIfViolations(r, "forbidden direct imports", "layering", viols)
	if !strings.Contains(r.msg, "layering") || !strings.Contains(r.msg, "memory") {
		t.Fatalf("unexpected failure message %q", r.msg)
	}
	AssertNoDirectImports(t, dir, func(string) bool { return false }, "none")
}

func TestDirectImportViolationsBadDir(t *testing.T) {
	if _, err := directImportViolations(filepath.Join(t.TempDir(), "missing"), InfraImportForbidden); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestTransitiveDependencyViolationsWithStubLoader(t *testing.T) {
	orig := loadPackages
	t.Cleanup(func() { loadPackages = orig })

	sdk := &packages.Package{PkgPath: "modernc.org/sqlite", Imports: map[string]*packages.Package{}}
	infra := &packages.Package{PkgPath: "growbook/internal/infra/docstore/sqlite", Imports: map[string]*packages.Package{"modernc.org/sqlite": sdk}}
	root := &packages.Package{PkgPath: "growbook/internal/app", Imports: map[string]*packages.Package{
		"growbook/internal/infra/docstore/sqlite": infra,
		"modernc.org/sqlite":                      sdk,
	}}
	loadPackages = func(string) ([]*packages.Package, error) { return []*packages.Package{root}, nil }

	viols, err := transitiveDependencyViolations("growbook/internal/app", Any(InfraImportForbidden, StorageSDKForbidden))
	if err != nil {
		t.Fatalf("transitiveDependencyViolations: %v", err)
	}
	if strings.Join(viols, ",") != "growbook/internal/infra/docstore/sqlite,modernc.org/sqlite" {
		t.Fatalf("unexpected violations %v", viols)
	}

	loadPackages = func(string) ([]*packages.Package, error) { return nil, errors.New("boom") }
	if _, err := transitiveDependencyViolations("x", InfraImportForbidden); err == nil {
		t.Fatalf("expected loader error")
	}
	loadPackages = func(string) ([]*packages.Package, error) { return nil, nil }
	if _, err := transitiveDependencyViolations("x", InfraImportForbidden); err == nil {
		t.Fatalf("expected error for empty match")
	}
	broken := &packages.Package{PkgPath: "growbook/x", Errors: []packages.Error{{Msg: "no Go files"}}}
	loadPackages = func(string) ([]*packages.Package, error) { return []*packages.Package{broken}, nil }
	if _, err := transitiveDependencyViolations("growbook/x", InfraImportForbidden); err == nil {
		t.Fatalf("expected package load errors surfaced")
	}
}

func TestAssertNoTransitiveDependencyOnDomain(t *testing.T) {
	AssertNoTransitiveDependency(t, ModulePath+"/pkg/domain", InternalImportForbidden, "domain stays free of internal packages")
}
