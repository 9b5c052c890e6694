// Package solvertest holds a shared table of install-closure cases that any
// implementation of the solving capability can be driven through.
package solvertest

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/open-edge-platform/os-package-fetcher/internal/solver"
)

// Solver is the contract both the in-process pool and any external binding
// satisfy.
type Solver interface {
	AddPackage(pkg solver.Package) error
	SolveInstall(roots []string) ([]string, error)
}

func pkg(name, version string, requires ...string) solver.Package {
	p := solver.Package{ID: name + "-" + version, Name: name, Version: version, Arch: "x86_64"}
	for _, r := range requires {
		p.Requires = append(p.Requires, []solver.Relation{{Name: r}})
	}
	return p
}

func provides(p solver.Package, names ...string) solver.Package {
	for _, n := range names {
		p.Provides = append(p.Provides, solver.Relation{Name: n})
	}
	return p
}

func conflicts(p solver.Package, rels ...solver.Relation) solver.Package {
	p.Conflicts = append(p.Conflicts, rels...)
	return p
}

// TestCases is the shared table. Want lists the expected identities sorted;
// WantOnlyMissing expects an UnsatisfiableError made only of missing
// providers.
var TestCases = []struct {
	Name            string
	All             []solver.Package
	Roots           []string
	Want            []string
	WantErr         bool
	WantOnlyMissing bool
}{
	{
		Name: "SimpleChain",
		All: []solver.Package{
			pkg("C", "1"),
			pkg("B", "1", "C"),
			pkg("A", "1", "B"),
		},
		Roots: []string{"A"},
		Want:  []string{"A-1", "B-1", "C-1"},
	},
	{
		Name: "MultipleProviders",
		All: []solver.Package{
			pkg("Y", "1"),
			provides(pkg("P1", "1"), "X"),
			provides(pkg("P2", "1", "Y"), "X"),
			pkg("A", "1", "X"),
		},
		Roots: []string{"A"},
		Want:  []string{"A-1", "P1-1"},
	},
	{
		Name: "HighestVersionWins",
		All: []solver.Package{
			pkg("lib", "1.2"),
			pkg("lib", "1.10"),
			pkg("app", "1", "lib"),
		},
		Roots: []string{"app"},
		Want:  []string{"app-1", "lib-1.10"},
	},
	{
		Name: "NoDependencies",
		All: []solver.Package{
			pkg("X", "1"),
		},
		Roots: []string{"X"},
		Want:  []string{"X-1"},
	},
	{
		Name: "Cycle",
		All: []solver.Package{
			pkg("A", "1", "B"),
			pkg("B", "1", "A"),
		},
		Roots: []string{"A"},
		Want:  []string{"A-1", "B-1"},
	},
	{
		Name: "MissingRequested",
		All: []solver.Package{
			pkg("A", "1"),
		},
		Roots:           []string{"B"},
		WantErr:         true,
		WantOnlyMissing: true,
	},
	{
		Name: "MissingDeepDependency",
		All: []solver.Package{
			pkg("A", "1", "B"),
			pkg("B", "1", "C"),
		},
		Roots:           []string{"A"},
		WantErr:         true,
		WantOnlyMissing: true,
	},
	{
		Name: "ConflictForcesAlternative",
		All: []solver.Package{
			conflicts(provides(pkg("mta-a", "1"), "mta"), solver.Relation{Name: "base"}),
			provides(pkg("mta-b", "1"), "mta"),
			pkg("base", "1"),
			pkg("app", "1", "base", "mta"),
		},
		Roots: []string{"app"},
		Want:  []string{"app-1", "base-1", "mta-b-1"},
	},
	{
		Name: "ConflictUnsatisfiable",
		All: []solver.Package{
			conflicts(pkg("A", "1"), solver.Relation{Name: "B"}),
			pkg("B", "1"),
		},
		Roots:   []string{"A", "B"},
		WantErr: true,
	},
}

func names(ids []string) []string {
	out := append([]string{}, ids...)
	sort.Strings(out)
	return out
}

// RunSolverTests drives a fresh solver from newSolver through the table.
func RunSolverTests(t *testing.T, prefix string, newSolver func() Solver) {
	t.Helper()
	for _, tc := range TestCases {
		t.Run(prefix+"/"+tc.Name, func(t *testing.T) {
			s := newSolver()
			for _, p := range tc.All {
				if err := s.AddPackage(p); err != nil {
					t.Fatalf("AddPackage(%s): %v", p.ID, err)
				}
			}

			got, err := s.SolveInstall(tc.Roots)
			if (err != nil) != tc.WantErr {
				t.Fatalf("err = %v, wantErr? %v", err, tc.WantErr)
			}
			if tc.WantErr {
				var unsat *solver.UnsatisfiableError
				if !errors.As(err, &unsat) {
					t.Fatalf("expected *solver.UnsatisfiableError, got %T", err)
				}
				if tc.WantOnlyMissing != unsat.OnlyNothingProvides() {
					t.Errorf("OnlyNothingProvides() = %v for %v", unsat.OnlyNothingProvides(), unsat.Problems)
				}
				return
			}
			if !reflect.DeepEqual(names(got), tc.Want) {
				t.Errorf("SolveInstall [%v] = %v; want %v", tc.Name, names(got), tc.Want)
			}
		})
	}
}
