// Package solver computes install closures over a pool of packages of one
// ecosystem. The search is a deterministic depth-first backtracking over
// requirement groups, in the spirit of libsolv's install jobs.
package solver

import (
	"fmt"
	"sort"
	"strconv"
)

// DefaultMaxSteps bounds the number of candidate selections per solve.
const DefaultMaxSteps = 200000

const maxReportedProblems = 20

// Pool holds the packages of one ecosystem.
type Pool struct {
	scheme    VersionScheme
	maxSteps  int
	pkgs      []*Package
	byID      map[string]*Package
	byName    map[string][]*Package
	byProvide map[string][]*Package
	cands     map[Relation][]*Package
}

// NewPool returns an empty pool ordering versions with scheme. A nil scheme
// selects PlainVersions.
func NewPool(scheme VersionScheme) *Pool {
	if scheme == nil {
		scheme = PlainVersions{}
	}
	return &Pool{
		scheme:    scheme,
		maxSteps:  DefaultMaxSteps,
		byID:      make(map[string]*Package),
		byName:    make(map[string][]*Package),
		byProvide: make(map[string][]*Package),
	}
}

// SetMaxSteps overrides the search budget.
func (p *Pool) SetMaxSteps(n int) {
	if n > 0 {
		p.maxSteps = n
	}
}

// Len is the number of packages in the pool.
func (p *Pool) Len() int {
	return len(p.pkgs)
}

// AddPackage adds pkg. IDs must be unique within the pool.
func (p *Pool) AddPackage(pkg Package) error {
	if pkg.ID == "" || pkg.Name == "" {
		return fmt.Errorf("package needs an id and a name: %+v", pkg)
	}
	if _, ok := p.byID[pkg.ID]; ok {
		return fmt.Errorf("duplicate package id %q", pkg.ID)
	}
	stored := pkg
	p.pkgs = append(p.pkgs, &stored)
	p.byID[stored.ID] = &stored
	p.byName[stored.Name] = append(p.byName[stored.Name], &stored)

	seen := make(map[string]bool)
	for _, prov := range stored.Provides {
		if prov.Name == stored.Name || seen[prov.Name] {
			continue
		}
		seen[prov.Name] = true
		p.byProvide[prov.Name] = append(p.byProvide[prov.Name], &stored)
	}
	p.cands = nil
	return nil
}

// matchesName reports whether pkg satisfies rel through its own name.
func (p *Pool) matchesName(pkg *Package, rel Relation) bool {
	return pkg.Name == rel.Name && (rel.Op == "" || p.scheme.Satisfies(pkg.Version, rel.Op, rel.Version))
}

// matchesProvide reports whether one of pkg's provides satisfies rel. An
// unversioned provide satisfies any constraint.
func (p *Pool) matchesProvide(pkg *Package, rel Relation) bool {
	for _, prov := range pkg.Provides {
		if prov.Name != rel.Name {
			continue
		}
		if rel.Op == "" || prov.Version == "" || p.scheme.Satisfies(prov.Version, rel.Op, rel.Version) {
			return true
		}
	}
	return false
}

func (p *Pool) matches(pkg *Package, rel Relation) bool {
	return p.matchesName(pkg, rel) || p.matchesProvide(pkg, rel)
}

// candidates returns the packages satisfying rel: exact name matches first,
// then providers, each by descending version and then by id.
func (p *Pool) candidates(rel Relation) []*Package {
	if p.cands == nil {
		p.cands = make(map[Relation][]*Package)
	}
	if c, ok := p.cands[rel]; ok {
		return c
	}

	var exact, provided []*Package
	for _, pkg := range p.byName[rel.Name] {
		if p.matchesName(pkg, rel) {
			exact = append(exact, pkg)
		} else if p.matchesProvide(pkg, rel) {
			provided = append(provided, pkg)
		}
	}
	for _, pkg := range p.byProvide[rel.Name] {
		if pkg.Name != rel.Name && p.matchesProvide(pkg, rel) {
			provided = append(provided, pkg)
		}
	}
	p.sortCandidates(exact)
	p.sortCandidates(provided)

	out := append(exact, provided...)
	p.cands[rel] = out
	return out
}

func (p *Pool) sortCandidates(pkgs []*Package) {
	sort.SliceStable(pkgs, func(i, j int) bool {
		if c := p.scheme.Compare(pkgs[i].Version, pkgs[j].Version); c != 0 {
			return c > 0
		}
		return pkgs[i].ID < pkgs[j].ID
	})
}

func (p *Pool) groupCandidates(group []Relation) []*Package {
	var out []*Package
	seen := make(map[*Package]bool)
	for _, rel := range group {
		for _, c := range p.candidates(rel) {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// brokenPackages finds packages that can never be installed because some
// requirement group has no installable candidate in the whole pool. The
// result maps each such package to the missing dependency at the bottom of
// the chain.
func (p *Pool) brokenPackages() map[*Package]Problem {
	broken := make(map[*Package]Problem)
	for changed := true; changed; {
		changed = false
		for _, pkg := range p.pkgs {
			if _, ok := broken[pkg]; ok {
				continue
			}
			for _, group := range pkg.Requires {
				alive := false
				var reason *Problem
				for _, c := range p.groupCandidates(group) {
					r, isBroken := broken[c]
					if !isBroken {
						alive = true
						break
					}
					if reason == nil {
						reason = &r
					}
				}
				if alive {
					continue
				}
				if reason == nil {
					reason = &Problem{Kind: ProblemNothingProvides, Dependency: groupString(group), Package: pkg.ID}
				}
				broken[pkg] = *reason
				changed = true
				break
			}
		}
	}
	return broken
}

// SolveInstall computes an install set containing every root, by name or
// provide, and all of its requirements. Identities are returned with
// dependencies before their dependents; cycles are broken at the point
// they are detected.
func (p *Pool) SolveInstall(roots []string) ([]string, error) {
	s := &search{
		pool:   p,
		broken: p.brokenPackages(),
		slot:   make(map[string]*Package),
		chosen: make(map[*Package]bool),
		seen:   make(map[string]bool),
	}
	for _, root := range roots {
		s.goals = append(s.goals, goal{group: []Relation{{Name: root}}})
	}

	if !s.solve(0) {
		if s.exhausted {
			s.problems = append(s.problems, Problem{Kind: ProblemSearchLimit, Dependency: strconv.Itoa(p.maxSteps)})
		}
		return nil, &UnsatisfiableError{Problems: s.problems}
	}
	return s.order(roots), nil
}

type goal struct {
	group      []Relation
	requiredBy *Package
}

type search struct {
	pool      *Pool
	broken    map[*Package]Problem
	goals     []goal
	selected  []*Package
	chosen    map[*Package]bool
	slot      map[string]*Package // name.arch -> selected package
	steps     int
	exhausted bool
	problems  []Problem
	seen      map[string]bool
}

func (s *search) addProblem(pr Problem) {
	key := pr.String()
	if s.seen[key] || len(s.problems) >= maxReportedProblems {
		return
	}
	s.seen[key] = true
	s.problems = append(s.problems, pr)
}

func slotKey(pkg *Package) string {
	return pkg.Name + "." + pkg.Arch
}

func (s *search) satisfied(group []Relation) bool {
	for _, rel := range group {
		for _, c := range s.pool.candidates(rel) {
			if s.chosen[c] {
				return true
			}
		}
	}
	return false
}

func (s *search) solve(i int) bool {
	if i == len(s.goals) {
		return true
	}
	g := s.goals[i]
	if s.satisfied(g.group) {
		return s.solve(i + 1)
	}

	requiredBy := ""
	if g.requiredBy != nil {
		requiredBy = g.requiredBy.ID
	}

	var installable []*Package
	for _, c := range s.pool.groupCandidates(g.group) {
		if r, ok := s.broken[c]; ok {
			s.addProblem(r)
			continue
		}
		installable = append(installable, c)
	}
	if len(installable) == 0 {
		if len(s.pool.groupCandidates(g.group)) == 0 {
			s.addProblem(Problem{Kind: ProblemNothingProvides, Dependency: groupString(g.group), Package: requiredBy})
		}
		return false
	}

	for _, c := range installable {
		if s.steps >= s.pool.maxSteps {
			s.exhausted = true
			return false
		}
		s.steps++

		if pr, ok := s.clash(c); ok {
			s.addProblem(pr)
			continue
		}

		mark := len(s.goals)
		s.install(c)
		for _, group := range c.Requires {
			s.goals = append(s.goals, goal{group: group, requiredBy: c})
		}
		if s.solve(i + 1) {
			return true
		}
		s.uninstall(c)
		s.goals = s.goals[:mark]
		if s.exhausted {
			return false
		}
	}
	return false
}

func (s *search) install(c *Package) {
	s.selected = append(s.selected, c)
	s.chosen[c] = true
	s.slot[slotKey(c)] = c
}

func (s *search) uninstall(c *Package) {
	s.selected = s.selected[:len(s.selected)-1]
	delete(s.chosen, c)
	delete(s.slot, slotKey(c))
}

// clash checks c against the selected set in both directions.
func (s *search) clash(c *Package) (Problem, bool) {
	if other, ok := s.slot[slotKey(c)]; ok && other != c {
		return Problem{Kind: ProblemSameName, Package: c.ID, Other: other.ID}, true
	}
	for _, q := range s.selected {
		for _, rel := range c.Conflicts {
			if q != c && s.pool.matches(q, rel) {
				return Problem{Kind: ProblemConflict, Package: c.ID, Dependency: rel.String(), Other: q.ID}, true
			}
		}
		for _, rel := range q.Conflicts {
			if q != c && s.pool.matches(c, rel) {
				return Problem{Kind: ProblemConflict, Package: q.ID, Dependency: rel.String(), Other: c.ID}, true
			}
		}
		for _, rel := range c.Obsoletes {
			if q != c && q.Name != c.Name && s.pool.matchesName(q, rel) {
				return Problem{Kind: ProblemObsoletes, Package: c.ID, Dependency: rel.String(), Other: q.ID}, true
			}
		}
		for _, rel := range q.Obsoletes {
			if q != c && q.Name != c.Name && s.pool.matchesName(c, rel) {
				return Problem{Kind: ProblemObsoletes, Package: q.ID, Dependency: rel.String(), Other: c.ID}, true
			}
		}
	}
	return Problem{}, false
}

// order walks the selected graph from the roots and emits packages in
// post-order.
func (s *search) order(roots []string) []string {
	var out []string
	state := make(map[*Package]int) // 1 visiting, 2 done

	var visit func(pkg *Package)
	visit = func(pkg *Package) {
		if state[pkg] != 0 {
			return
		}
		state[pkg] = 1
		for _, group := range pkg.Requires {
			if dep := s.satisfier(group); dep != nil && dep != pkg {
				visit(dep)
			}
		}
		state[pkg] = 2
		out = append(out, pkg.ID)
	}

	for _, root := range roots {
		if pkg := s.satisfier([]Relation{{Name: root}}); pkg != nil {
			visit(pkg)
		}
	}
	for _, pkg := range s.selected {
		visit(pkg)
	}
	return out
}

func (s *search) satisfier(group []Relation) *Package {
	for _, rel := range group {
		for _, c := range s.pool.candidates(rel) {
			if s.chosen[c] {
				return c
			}
		}
	}
	return nil
}
