package solver_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/open-edge-platform/os-package-fetcher/internal/solver"
	"github.com/open-edge-platform/os-package-fetcher/internal/solver/solvertest"
)

func TestPool(t *testing.T) {
	solvertest.RunSolverTests(t, "pool", func() solvertest.Solver {
		return solver.NewPool(nil)
	})
}

func TestDependenciesBeforeDependents(t *testing.T) {
	p := solver.NewPool(nil)
	add := func(pkg solver.Package) {
		if err := p.AddPackage(pkg); err != nil {
			t.Fatalf("AddPackage: %v", err)
		}
	}
	add(solver.Package{ID: "app", Name: "app", Version: "1", Requires: [][]solver.Relation{{{Name: "libfoo"}}, {{Name: "libbar"}}}})
	add(solver.Package{ID: "libfoo", Name: "libfoo", Version: "1", Requires: [][]solver.Relation{{{Name: "libc"}}}})
	add(solver.Package{ID: "libbar", Name: "libbar", Version: "1", Requires: [][]solver.Relation{{{Name: "libc"}}}})
	add(solver.Package{ID: "libc", Name: "libc", Version: "1"})

	got, err := p.SolveInstall([]string{"app"})
	if err != nil {
		t.Fatalf("SolveInstall: %v", err)
	}
	want := []string{"libc", "libfoo", "libbar", "app"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}

	again, _ := p.SolveInstall([]string{"app"})
	if !reflect.DeepEqual(got, again) {
		t.Errorf("solve is not deterministic: %v vs %v", got, again)
	}
}

func TestVersionedRequires(t *testing.T) {
	p := solver.NewPool(nil)
	for _, pkg := range []solver.Package{
		{ID: "openssl-3.0.7", Name: "openssl-libs", Version: "3.0.7"},
		{ID: "openssl-1.1.1", Name: "openssl-libs", Version: "1.1.1"},
		{ID: "app", Name: "app", Version: "1", Requires: [][]solver.Relation{{{Name: "openssl-libs", Op: "<", Version: "3"}}}},
	} {
		if err := p.AddPackage(pkg); err != nil {
			t.Fatal(err)
		}
	}

	got, err := p.SolveInstall([]string{"app"})
	if err != nil {
		t.Fatalf("SolveInstall: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"openssl-1.1.1", "app"}) {
		t.Errorf("unexpected closure %v", got)
	}
}

func TestUnversionedProvideSatisfiesConstraint(t *testing.T) {
	p := solver.NewPool(nil)
	_ = p.AddPackage(solver.Package{ID: "shadow", Name: "shadow-utils", Version: "4.9", Provides: []solver.Relation{{Name: "/usr/sbin/useradd"}}})
	_ = p.AddPackage(solver.Package{ID: "app", Name: "app", Version: "1", Requires: [][]solver.Relation{{{Name: "/usr/sbin/useradd", Op: ">=", Version: "1"}}}})

	got, err := p.SolveInstall([]string{"app"})
	if err != nil {
		t.Fatalf("SolveInstall: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("unexpected closure %v", got)
	}
}

func TestOneVersionPerName(t *testing.T) {
	p := solver.NewPool(nil)
	_ = p.AddPackage(solver.Package{ID: "lib-1", Name: "lib", Version: "1", Arch: "x86_64"})
	_ = p.AddPackage(solver.Package{ID: "lib-2", Name: "lib", Version: "2", Arch: "x86_64"})
	_ = p.AddPackage(solver.Package{ID: "a", Name: "a", Version: "1", Requires: [][]solver.Relation{{{Name: "lib", Op: "=", Version: "1"}}}})
	_ = p.AddPackage(solver.Package{ID: "b", Name: "b", Version: "1", Requires: [][]solver.Relation{{{Name: "lib", Op: "=", Version: "2"}}}})

	_, err := p.SolveInstall([]string{"a", "b"})
	var unsat *solver.UnsatisfiableError
	if !errors.As(err, &unsat) {
		t.Fatalf("expected UnsatisfiableError, got %v", err)
	}
	if unsat.OnlyNothingProvides() {
		t.Errorf("expected a same-name problem, got %v", unsat.Problems)
	}
}

func TestObsoletesCheckedBothWays(t *testing.T) {
	p := solver.NewPool(nil)
	_ = p.AddPackage(solver.Package{ID: "new", Name: "new", Version: "2", Obsoletes: []solver.Relation{{Name: "old", Op: "<", Version: "2"}}})
	_ = p.AddPackage(solver.Package{ID: "old", Name: "old", Version: "1"})

	for _, roots := range [][]string{{"new", "old"}, {"old", "new"}} {
		_, err := p.SolveInstall(roots)
		var unsat *solver.UnsatisfiableError
		if !errors.As(err, &unsat) || unsat.Problems[0].Kind != solver.ProblemObsoletes {
			t.Errorf("roots %v: expected obsoletes problem, got %v", roots, err)
		}
	}
}

func TestMissingDependencyNamesRequirer(t *testing.T) {
	p := solver.NewPool(nil)
	_ = p.AddPackage(solver.Package{ID: "xrdp", Name: "xrdp", Version: "1", Requires: [][]solver.Relation{{{Name: "default-logind"}, {Name: "logind"}}}})

	_, err := p.SolveInstall([]string{"xrdp"})
	var unsat *solver.UnsatisfiableError
	if !errors.As(err, &unsat) {
		t.Fatalf("expected UnsatisfiableError, got %v", err)
	}
	if len(unsat.Problems) != 1 {
		t.Fatalf("expected one problem, got %v", unsat.Problems)
	}
	pr := unsat.Problems[0]
	if pr.Dependency != "default-logind | logind" || pr.Package != "xrdp" {
		t.Errorf("unexpected problem %+v", pr)
	}
}

func TestSearchLimit(t *testing.T) {
	p := solver.NewPool(nil)
	p.SetMaxSteps(1)
	_ = p.AddPackage(solver.Package{ID: "a", Name: "a", Version: "1", Requires: [][]solver.Relation{{{Name: "b"}}}})
	_ = p.AddPackage(solver.Package{ID: "b", Name: "b", Version: "1"})

	_, err := p.SolveInstall([]string{"a"})
	var unsat *solver.UnsatisfiableError
	if !errors.As(err, &unsat) || unsat.Problems[len(unsat.Problems)-1].Kind != solver.ProblemSearchLimit {
		t.Fatalf("expected search limit problem, got %v", err)
	}
}

func TestDuplicateID(t *testing.T) {
	p := solver.NewPool(nil)
	if err := p.AddPackage(solver.Package{ID: "a", Name: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := p.AddPackage(solver.Package{ID: "a", Name: "a"}); err == nil {
		t.Error("expected duplicate id error")
	}
}

func TestPlainVersions(t *testing.T) {
	v := solver.PlainVersions{}
	if v.Compare("1.10", "1.9") != 1 || v.Compare("1.0", "1.0") != 0 || v.Compare("1.0", "1.0.1") != -1 {
		t.Error("unexpected PlainVersions ordering")
	}
	if !v.Satisfies("2.0", ">=", "1.5") || v.Satisfies("2.0", "<", "1.5") {
		t.Error("unexpected Satisfies result")
	}
}
