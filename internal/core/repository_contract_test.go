package core

import (
	"fmt"
	"go/ast"
	"go/types"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"

	"golang.org/x/tools/go/packages"
)

const corePkgPath = "growbook/internal/core"

func TestRepositoryStructContract(t *testing.T) {
	pkg := loadCorePackage(t)

	obj := pkg.Types.Scope().Lookup("repository")
	if obj == nil {
		t.Fatalf("repository type not found in package")
	}
	structType, ok := obj.Type().Underlying().(*types.Struct)
	if !ok {
		t.Fatalf("repository is not a struct")
	}
	qualifier := func(p *types.Package) string {
		if p == nil {
			return ""
		}
		return p.Path()
	}
	fields := make(map[string]string, structType.NumFields())
	for i := 0; i < structType.NumFields(); i++ {
		field := structType.Field(i)
		fields[field.Name()] = types.TypeString(field.Type(), qualifier)
	}

	required := map[string]string{
		"store":    "growbook/internal/docstore.Store",
		"resolver": "growbook/internal/principal.Resolver",
		"opts":     corePkgPath + ".repositoryOptions",
	}
	var problems []string
	for name, want := range required {
		got, ok := fields[name]
		switch {
		case !ok:
			problems = append(problems, "missing field "+name)
		case got != want:
			problems = append(problems, fmt.Sprintf("%s: want %s, got %s", name, want, got))
		}
	}
	for name := range fields {
		if _, ok := required[name]; !ok {
			problems = append(problems, "unexpected field "+name+" (repositories hold no state between calls)")
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		_, file, line, _ := runtime.Caller(0)
		t.Fatalf("repository struct contract violated (%s:%d): %s", filepath.Base(file), line, strings.Join(problems, "; "))
	}
}

func TestRepositoryMethodsUseRun(t *testing.T) {
	pkg := loadCorePackage(t)

	var violations []string
	checked := 0
	for _, target := range []struct{ file, recv string }{
		{"environments.go", "EnvironmentRepository"},
		{"plants.go", "PlantRepository"},
	} {
		file := findFile(t, pkg, target.file)
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Body == nil || !ast.IsExported(fn.Name.Name) {
				continue
			}
			recvName, ok := receiverName(fn, target.recv)
			if !ok || !methodReturnsError(fn) {
				continue
			}
			checked++
			if methodCalls(fn, recvName, "run") {
				continue
			}
			pos := pkg.Fset.Position(fn.Pos())
			violations = append(violations, fmt.Sprintf("%s:%d %s.%s", filepath.Base(pos.Filename), pos.Line, target.recv, fn.Name.Name))
		}
	}
	if checked < 13 {
		t.Fatalf("expected at least 13 repository operations, found %d", checked)
	}
	if len(violations) > 0 {
		t.Fatalf("repository operations must delegate to run:\n%s", strings.Join(violations, "\n"))
	}
}

func TestMutationsAreAudited(t *testing.T) {
	for _, op := range []string{
		OpCreateEnvironment, OpUpdateEnvironment, OpDeleteEnvironment,
		OpCreatePlant, OpUpdatePlant, OpDeletePlant,
	} {
		if _, ok := auditedOperations[op]; !ok {
			t.Fatalf("mutation %s is not audited", op)
		}
	}
	for _, op := range []string{OpGetEnvironment, OpListEnvironments, OpGetPlant, OpGetPlantByQRCode, OpGetOwnedPlant, OpListPlants, OpListPlantsByRoom} {
		if _, ok := auditedOperations[op]; ok {
			t.Fatalf("read %s must not be audited", op)
		}
	}
}

func TestDefaultOptionsAreSafe(t *testing.T) {
	o := applyOptions([]Option{nil, WithLogger(nil), WithClock(nil), WithMetricsRecorder(nil), WithTracer(nil), WithAuditRecorder(nil)})
	if o.logger == nil || o.clock == nil || o.metrics == nil || o.tracer == nil || o.audit == nil {
		t.Fatalf("nil options must keep defaults: %#v", o)
	}
	o.logger.Debug("debug", "key", "value")
	o.logger.Info("info")
	o.logger.Warn("warn")
	o.logger.Error("error")
	if o.clock.Now().Location().String() != "UTC" {
		t.Fatalf("default clock must report UTC")
	}
}

var (
	corePkgOnce sync.Once
	corePkg     *packages.Package
	corePkgErr  error
)

func loadCorePackage(t *testing.T) *packages.Package {
	t.Helper()

	corePkgOnce.Do(func() {
		cfg := &packages.Config{
			Mode: packages.NeedName | packages.NeedTypes | packages.NeedSyntax | packages.NeedCompiledGoFiles | packages.NeedFiles,
		}
		pkgs, err := packages.Load(cfg, corePkgPath)
		if err != nil {
			corePkgErr = fmt.Errorf("load core package: %w", err)
			return
		}
		for _, pkg := range pkgs {
			if len(pkg.Errors) > 0 {
				corePkgErr = fmt.Errorf("package load errors: %v", pkg.Errors)
				return
			}
			if pkg.PkgPath == corePkgPath {
				corePkg = pkg
				return
			}
		}
		corePkgErr = fmt.Errorf("core package not found in load results")
	})

	if corePkgErr != nil {
		t.Fatalf("core package load: %v", corePkgErr)
	}
	return corePkg
}

func findFile(t *testing.T, pkg *packages.Package, target string) *ast.File {
	t.Helper()
	for _, file := range pkg.Syntax {
		if filepath.Base(pkg.Fset.Position(file.Pos()).Filename) == target {
			return file
		}
	}
	t.Fatalf("failed to locate %s in package", target)
	return nil
}

func receiverName(fn *ast.FuncDecl, typeName string) (string, bool) {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return "", false
	}
	recv := fn.Recv.List[0]
	expr := recv.Type
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	ident, ok := expr.(*ast.Ident)
	if !ok || ident.Name != typeName || len(recv.Names) == 0 {
		return "", false
	}
	return recv.Names[0].Name, true
}

func methodReturnsError(fn *ast.FuncDecl) bool {
	if fn.Type.Results == nil {
		return false
	}
	for _, res := range fn.Type.Results.List {
		if ident, ok := res.Type.(*ast.Ident); ok && ident.Name == "error" {
			return true
		}
	}
	return false
}

func methodCalls(fn *ast.FuncDecl, receiver, method string) bool {
	found := false
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return !found
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || sel.Sel.Name != method {
			return true
		}
		if ident, ok := sel.X.(*ast.Ident); ok && ident.Name == receiver {
			found = true
		}
		return !found
	})
	return found
}
