package solver

import "strings"

// Relation is a named capability with an optional version constraint.
type Relation struct {
	Name    string
	Op      string // "", "=", "<", "<=", ">", ">="
	Version string
}

func (r Relation) String() string {
	if r.Op == "" {
		return r.Name
	}
	return r.Name + " " + r.Op + " " + r.Version
}

// Package is one solvable added to a Pool. Requires is a conjunction of
// OR-groups: every group must be satisfied by at least one alternative.
type Package struct {
	ID        string
	Name      string
	Version   string
	Arch      string
	Requires  [][]Relation
	Provides  []Relation
	Conflicts []Relation
	Obsoletes []Relation
}

func groupString(group []Relation) string {
	parts := make([]string, 0, len(group))
	for _, r := range group {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, " | ")
}
