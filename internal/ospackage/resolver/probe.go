package resolver

import (
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage/catalog"
)

// ProbeMatch is one catalog record that could serve a probed name.
type ProbeMatch struct {
	Query string
	Ref   ospackage.PackageRef
	Via   string // "name" or the matching provide
}

// Probe lists, for each name, the records that carry it as a package name
// and, on the RPM side, as a provide. Nothing is solved.
func Probe(cat *catalog.Catalog, names []string, enabled []ospackage.Ecosystem) []ProbeMatch {
	active := make(map[ospackage.Ecosystem]bool)
	for _, eco := range enabled {
		active[eco] = true
	}

	var out []ProbeMatch
	for _, name := range names {
		for _, eco := range ospackage.Ecosystems {
			if !active[eco] {
				continue
			}
			for _, rec := range cat.ByName(eco, name) {
				out = append(out, ProbeMatch{Query: name, Ref: rec.Ref(), Via: "name"})
			}
			if eco != ospackage.RPM {
				continue
			}
			for _, rec := range cat.Records(eco) {
				if rec.Name == name {
					continue
				}
				for _, prov := range rec.Provides {
					if prov.Name == name {
						out = append(out, ProbeMatch{Query: name, Ref: rec.Ref(), Via: prov.String()})
						break
					}
				}
			}
		}
	}
	return out
}
