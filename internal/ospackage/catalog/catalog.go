// Package catalog holds the merged set of package records from every
// enabled repository.
package catalog

import (
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/logger"
)

// Catalog maps PackageRef to record. When two repositories publish the same
// ref the record added first is kept, so repositories should be added in
// their configured order.
type Catalog struct {
	records map[ospackage.PackageRef]*ospackage.PackageRecord
	order   []ospackage.PackageRef
	byName  map[ospackage.Ecosystem]map[string][]*ospackage.PackageRecord
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		records: make(map[ospackage.PackageRef]*ospackage.PackageRecord),
		byName:  make(map[ospackage.Ecosystem]map[string][]*ospackage.PackageRecord),
	}
}

// Add inserts records and returns how many were new.
func (c *Catalog) Add(records ...*ospackage.PackageRecord) int {
	log := logger.Logger()
	added := 0
	for _, rec := range records {
		if rec == nil {
			continue
		}
		ref := rec.Ref()
		if existing, ok := c.records[ref]; ok {
			if existing.RepoURL != rec.RepoURL {
				log.Debugf("duplicate %s from %s ignored, keeping %s", ref, rec.RepoURL, existing.RepoURL)
			}
			continue
		}
		c.records[ref] = rec
		c.order = append(c.order, ref)
		names := c.byName[ref.Ecosystem]
		if names == nil {
			names = make(map[string][]*ospackage.PackageRecord)
			c.byName[ref.Ecosystem] = names
		}
		names[ref.Name] = append(names[ref.Name], rec)
		added++
	}
	return added
}

// Get looks up a record by identity.
func (c *Catalog) Get(ref ospackage.PackageRef) (*ospackage.PackageRecord, bool) {
	rec, ok := c.records[ref]
	return rec, ok
}

// ByName returns every record named name in ecosystem eco, in insertion order.
func (c *Catalog) ByName(eco ospackage.Ecosystem, name string) []*ospackage.PackageRecord {
	return c.byName[eco][name]
}

// Has reports whether any ecosystem carries a package named name.
func (c *Catalog) Has(name string) bool {
	for _, names := range c.byName {
		if len(names[name]) > 0 {
			return true
		}
	}
	return false
}

// Records returns all records of ecosystem eco in insertion order. An empty
// eco returns every record.
func (c *Catalog) Records(eco ospackage.Ecosystem) []*ospackage.PackageRecord {
	out := make([]*ospackage.PackageRecord, 0, len(c.order))
	for _, ref := range c.order {
		if eco == "" || ref.Ecosystem == eco {
			out = append(out, c.records[ref])
		}
	}
	return out
}

// Ecosystems returns the ecosystems present, in the fixed processing order.
func (c *Catalog) Ecosystems() []ospackage.Ecosystem {
	var out []ospackage.Ecosystem
	for _, eco := range ospackage.Ecosystems {
		if len(c.byName[eco]) > 0 {
			out = append(out, eco)
		}
	}
	return out
}

// Len is the number of distinct records.
func (c *Catalog) Len() int {
	return len(c.order)
}

// CountByEcosystem returns record counts per ecosystem.
func (c *Catalog) CountByEcosystem() map[ospackage.Ecosystem]int {
	counts := make(map[ospackage.Ecosystem]int)
	for _, ref := range c.order {
		counts[ref.Ecosystem]++
	}
	return counts
}
