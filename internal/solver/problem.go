package solver

import (
	"fmt"
	"strings"
)

// ProblemKind classifies why a job could not be satisfied.
type ProblemKind int

const (
	// ProblemNothingProvides: no package in the pool matches a dependency.
	ProblemNothingProvides ProblemKind = iota
	// ProblemConflict: a candidate conflicts with a selected package.
	ProblemConflict
	// ProblemObsoletes: a candidate obsoletes, or is obsoleted by, a selected package.
	ProblemObsoletes
	// ProblemSameName: another version of the same name and arch is already selected.
	ProblemSameName
	// ProblemSearchLimit: the search budget was exhausted.
	ProblemSearchLimit
)

// Problem is one reason a solve failed.
type Problem struct {
	Kind       ProblemKind
	Dependency string // the dependency or conflict expression
	Package    string // the package that needs or owns Dependency; empty for a job
	Other      string // the package on the other side of a conflict
}

func (p Problem) String() string {
	switch p.Kind {
	case ProblemNothingProvides:
		if p.Package == "" {
			return fmt.Sprintf("nothing provides requested %s", p.Dependency)
		}
		return fmt.Sprintf("nothing provides %s needed by %s", p.Dependency, p.Package)
	case ProblemConflict:
		return fmt.Sprintf("package %s conflicts with %s provided by %s", p.Package, p.Dependency, p.Other)
	case ProblemObsoletes:
		return fmt.Sprintf("package %s obsoletes %s provided by %s", p.Package, p.Dependency, p.Other)
	case ProblemSameName:
		return fmt.Sprintf("cannot install both %s and %s", p.Package, p.Other)
	case ProblemSearchLimit:
		return fmt.Sprintf("search limit of %s steps exceeded", p.Dependency)
	}
	return fmt.Sprintf("problem(%d)", int(p.Kind))
}

// UnsatisfiableError is returned by SolveInstall when no install set exists.
type UnsatisfiableError struct {
	Problems []Problem
}

func (e *UnsatisfiableError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.String())
	}
	return "unsatisfiable: " + strings.Join(msgs, "; ")
}

// OnlyNothingProvides reports whether every problem is a missing provider.
func (e *UnsatisfiableError) OnlyNothingProvides() bool {
	if len(e.Problems) == 0 {
		return false
	}
	for _, p := range e.Problems {
		if p.Kind != ProblemNothingProvides {
			return false
		}
	}
	return true
}
