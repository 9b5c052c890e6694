// Package resolver turns catalog records into the input of a dependency
// solving capability and maps the resulting transaction back to package
// identities. It holds no satisfiability logic of its own.
package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage/catalog"
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage/debutils"
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage/rpmutils"
	"github.com/open-edge-platform/os-package-fetcher/internal/solver"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/logger"
)

// Capability is the solving contract. One instance holds the packages of a
// single ecosystem.
type Capability interface {
	AddPackage(pkg solver.Package) error
	SolveInstall(roots []string) ([]string, error)
}

// Factory creates an empty capability for an ecosystem.
type Factory func(eco ospackage.Ecosystem) Capability

// DefaultFactory returns an in-process solver pool ordering versions the
// way the ecosystem does.
func DefaultFactory(eco ospackage.Ecosystem) Capability {
	return solver.NewPool(VersionScheme(eco))
}

type rpmVersions struct{}

func (rpmVersions) Compare(a, b string) int              { return rpmutils.CompareEVR(a, b) }
func (rpmVersions) Satisfies(have, op, want string) bool { return rpmutils.Satisfies(have, op, want) }

type debVersions struct{}

func (debVersions) Compare(a, b string) int              { return debutils.CompareVersion(a, b) }
func (debVersions) Satisfies(have, op, want string) bool { return debutils.Satisfies(have, op, want) }

// VersionScheme returns the version ordering of eco.
func VersionScheme(eco ospackage.Ecosystem) solver.VersionScheme {
	switch eco {
	case ospackage.RPM:
		return rpmVersions{}
	case ospackage.DEB:
		return debVersions{}
	}
	return solver.PlainVersions{}
}

// Resolver drives one capability per ecosystem.
type Resolver struct {
	Factory Factory
}

// New returns a resolver; a nil factory selects DefaultFactory.
func New(factory Factory) *Resolver {
	if factory == nil {
		factory = DefaultFactory
	}
	return &Resolver{Factory: factory}
}

// Resolve computes the transaction for roots over the enabled ecosystems.
// Results are concatenated in the fixed ecosystem order and deduplicated.
func (r *Resolver) Resolve(cat *catalog.Catalog, roots []string, enabled []ospackage.Ecosystem) ([]ospackage.PackageRef, error) {
	log := logger.Logger()

	if len(roots) == 0 {
		return nil, fmt.Errorf("no packages requested")
	}

	active := make(map[ospackage.Ecosystem]bool)
	for _, eco := range enabled {
		active[eco] = true
	}

	var missing []string
	for _, root := range roots {
		found := false
		for _, eco := range ospackage.Ecosystems {
			if active[eco] && len(cat.ByName(eco, root)) > 0 {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, root)
		}
	}
	if len(missing) > 0 {
		return nil, &ospackage.MissingProviderError{Names: missing}
	}

	var tx []ospackage.PackageRef
	seen := make(map[ospackage.PackageRef]bool)
	for _, eco := range ospackage.Ecosystems {
		if !active[eco] {
			continue
		}
		var ecoRoots []string
		for _, root := range roots {
			if len(cat.ByName(eco, root)) > 0 {
				ecoRoots = append(ecoRoots, root)
			}
		}
		if len(ecoRoots) == 0 {
			log.Debugf("no requested package present in %s repositories", eco)
			continue
		}

		refs, err := r.solveEcosystem(cat, eco, ecoRoots)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			if !seen[ref] {
				seen[ref] = true
				tx = append(tx, ref)
			}
		}
	}
	return tx, nil
}

func (r *Resolver) solveEcosystem(cat *catalog.Catalog, eco ospackage.Ecosystem, roots []string) ([]ospackage.PackageRef, error) {
	log := logger.Logger()

	capability := r.Factory(eco)
	records := cat.Records(eco)
	ids := make(map[string]ospackage.PackageRef, len(records))
	for _, rec := range records {
		pkg := ToSolverPackage(rec)
		if err := capability.AddPackage(pkg); err != nil {
			return nil, fmt.Errorf("adding %s to %s solver: %w", pkg.ID, eco, err)
		}
		ids[pkg.ID] = rec.Ref()
	}

	log.Infof("solving %s for %s against %d packages", eco, strings.Join(roots, ", "), len(records))
	result, err := capability.SolveInstall(roots)
	if err != nil {
		return nil, translate(eco, err, ids)
	}

	refs := make([]ospackage.PackageRef, 0, len(result))
	for _, id := range result {
		ref, ok := ids[id]
		if !ok {
			return nil, fmt.Errorf("%s solver returned unknown package %q: %w", eco, id, ospackage.ErrInconsistentTransaction)
		}
		refs = append(refs, ref)
	}
	log.Infof("%s transaction has %d packages", eco, len(refs))
	return refs, nil
}

func translate(eco ospackage.Ecosystem, err error, ids map[string]ospackage.PackageRef) error {
	var unsat *solver.UnsatisfiableError
	if !errors.As(err, &unsat) {
		return fmt.Errorf("%s solve failed: %w", eco, err)
	}

	details := make([]string, 0, len(unsat.Problems))
	for _, p := range unsat.Problems {
		details = append(details, p.String())
	}

	if unsat.OnlyNothingProvides() {
		first := unsat.Problems[0]
		requiredBy := "the request"
		if ref, ok := ids[first.Package]; ok {
			requiredBy = fmt.Sprintf("%s-%s.%s", ref.Name, ref.Version, ref.Arch)
		} else if first.Package != "" {
			requiredBy = first.Package
		}
		return &ospackage.UnresolvedDependencyError{
			Ecosystem:  eco,
			Dependency: first.Dependency,
			RequiredBy: requiredBy,
			Details:    details,
		}
	}
	return &ospackage.UnsatisfiableError{Ecosystem: eco, Explanation: strings.Join(details, "; ")}
}

// ToSolverPackage converts a catalog record into solver input. DEB
// architecture qualifiers are not carried over.
func ToSolverPackage(rec *ospackage.PackageRecord) solver.Package {
	pkg := solver.Package{
		ID:        rec.Ref().String(),
		Name:      rec.Name,
		Version:   rec.Version,
		Arch:      rec.Arch,
		Provides:  relations(rec.Provides),
		Conflicts: relations(rec.Conflicts),
		Obsoletes: relations(rec.Obsoletes),
	}
	for _, group := range rec.RequireGroups() {
		pkg.Requires = append(pkg.Requires, relations(group))
	}
	return pkg
}

func relations(deps []ospackage.Dependency) []solver.Relation {
	if len(deps) == 0 {
		return nil
	}
	out := make([]solver.Relation, 0, len(deps))
	for _, d := range deps {
		out = append(out, solver.Relation{Name: d.Name, Op: d.Op, Version: d.Version})
	}
	return out
}
