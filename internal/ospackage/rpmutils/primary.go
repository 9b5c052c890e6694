package rpmutils

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/logger"
)

type rpmEntry struct {
	Name  string `xml:"name,attr"`
	Flags string `xml:"flags,attr"`
	Epoch string `xml:"epoch,attr"`
	Ver   string `xml:"ver,attr"`
	Rel   string `xml:"rel,attr"`
	Pre   string `xml:"pre,attr"`
}

type primaryPackage struct {
	Type    string `xml:"type,attr"`
	Name    string `xml:"name"`
	Arch    string `xml:"arch"`
	Version *struct {
		Epoch string `xml:"epoch,attr"`
		Ver   string `xml:"ver,attr"`
		Rel   string `xml:"rel,attr"`
	} `xml:"version"`
	Checksum struct {
		Type  string `xml:"type,attr"`
		Value string `xml:",chardata"`
	} `xml:"checksum"`
	Size struct {
		Package int64 `xml:"package,attr"`
	} `xml:"size"`
	Location struct {
		Href string `xml:"href,attr"`
		Base string `xml:"base,attr"`
	} `xml:"location"`
	Format struct {
		Provides  []rpmEntry `xml:"provides>entry"`
		Requires  []rpmEntry `xml:"requires>entry"`
		Conflicts []rpmEntry `xml:"conflicts>entry"`
		Obsoletes []rpmEntry `xml:"obsoletes>entry"`
		Files     []string   `xml:"file"`
	} `xml:"format"`
}

var flagOps = map[string]string{
	"EQ": "=",
	"LT": "<",
	"LE": "<=",
	"GT": ">",
	"GE": ">=",
}

// ParsePrimary decodes a primary.xml stream into package records whose
// locations resolve against repoURL. Source packages are skipped.
func ParsePrimary(r io.Reader, source, repoURL string) ([]*ospackage.PackageRecord, error) {
	dec := xml.NewDecoder(r)
	repoURL = ospackage.EnsureTrailingSlash(repoURL)

	var records []*ospackage.PackageRecord
	index := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &ospackage.MalformedMetadataError{Source: source, Reason: err.Error()}
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "package" {
			continue
		}
		index++

		var p primaryPackage
		if err := dec.DecodeElement(&p, &se); err != nil {
			return nil, &ospackage.MalformedMetadataError{Source: source, Reason: fmt.Sprintf("package #%d: %v", index, err)}
		}
		if p.Arch == "src" || p.Arch == "nosrc" {
			continue
		}
		rec, err := p.toRecord(repoURL)
		if err != nil {
			return nil, &ospackage.MalformedMetadataError{Source: source, Reason: fmt.Sprintf("package #%d: %v", index, err)}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (p *primaryPackage) toRecord(repoURL string) (*ospackage.PackageRecord, error) {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return nil, errors.New("missing name")
	case strings.TrimSpace(p.Arch) == "":
		return nil, fmt.Errorf("%s: missing arch", p.Name)
	case p.Version == nil || p.Version.Ver == "":
		return nil, fmt.Errorf("%s: missing version", p.Name)
	case p.Location.Href == "":
		return nil, fmt.Errorf("%s: missing location href", p.Name)
	}

	evr := FormatEVR(p.Version.Epoch, p.Version.Ver, p.Version.Rel)
	rec := &ospackage.PackageRecord{
		PackageRef: ospackage.PackageRef{
			Ecosystem: ospackage.RPM,
			Name:      strings.TrimSpace(p.Name),
			Version:   evr,
			Arch:      strings.TrimSpace(p.Arch),
		},
		Location: p.Location.Href,
		RepoURL:  repoURL,
		Checksum: ospackage.Checksum{
			Algorithm: ospackage.NormalizeAlgorithm(p.Checksum.Type),
			Value:     strings.ToLower(strings.TrimSpace(p.Checksum.Value)),
		},
		Size: p.Size.Package,
	}
	if p.Location.Base != "" {
		rec.RepoURL = ospackage.EnsureTrailingSlash(p.Location.Base)
	}

	var err error
	if rec.Provides, err = convertEntries(p.Format.Provides, false); err != nil {
		return nil, fmt.Errorf("%s provides: %w", p.Name, err)
	}
	for _, f := range p.Format.Files {
		if f = strings.TrimSpace(f); f != "" {
			rec.Provides = append(rec.Provides, ospackage.Dependency{Name: f})
		}
	}
	if rec.Requires, err = convertEntries(p.Format.Requires, true); err != nil {
		return nil, fmt.Errorf("%s requires: %w", p.Name, err)
	}
	if rec.Conflicts, err = convertEntries(p.Format.Conflicts, false); err != nil {
		return nil, fmt.Errorf("%s conflicts: %w", p.Name, err)
	}
	if rec.Obsoletes, err = convertEntries(p.Format.Obsoletes, false); err != nil {
		return nil, fmt.Errorf("%s obsoletes: %w", p.Name, err)
	}
	return rec, nil
}

// convertEntries turns rpm:entry elements into dependencies. Each requires
// entry is its own group, except boolean "or" expressions whose operands
// share one; rpmlib() requirements are satisfied by rpm itself and dropped.
func convertEntries(entries []rpmEntry, requires bool) ([]ospackage.Dependency, error) {
	log := logger.Logger()

	var deps []ospackage.Dependency
	seen := make(map[string]bool)
	add := func(alts []ospackage.Dependency) {
		keys := make([]string, len(alts))
		for i, d := range alts {
			keys[i] = d.String()
		}
		key := strings.Join(keys, " | ")
		if seen[key] {
			return
		}
		seen[key] = true
		group := 0
		if len(deps) > 0 {
			group = deps[len(deps)-1].Group + 1
		}
		for _, d := range alts {
			if requires {
				d.Group = group
			}
			deps = append(deps, d)
		}
	}

	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, errors.New("entry without name")
		}
		if requires && strings.HasPrefix(name, "rpmlib(") {
			continue
		}

		if strings.HasPrefix(name, "(") {
			if !requires {
				log.Debugf("ignoring boolean relation %s", name)
				continue
			}
			node, err := parseRich(name)
			if err != nil {
				log.Warnf("ignoring unparsable boolean dependency %s: %v", name, err)
				continue
			}
			groups, complete := node.requireGroups()
			if !complete {
				log.Debugf("boolean dependency %s is only partly enforced", name)
			}
			for _, g := range groups {
				add(g)
			}
			continue
		}

		dep := ospackage.Dependency{Name: name}
		if e.Flags != "" {
			op, ok := flagOps[e.Flags]
			if !ok {
				return nil, fmt.Errorf("entry %s: unknown flags %q", name, e.Flags)
			}
			if e.Ver == "" {
				return nil, fmt.Errorf("entry %s: flags %s without version", name, e.Flags)
			}
			dep.Op = op
			dep.Version = FormatEVR(e.Epoch, e.Ver, e.Rel)
		}
		add([]ospackage.Dependency{dep})
	}
	return deps, nil
}

// FormatEVR renders [epoch:]version[-release]; a zero or absent epoch is omitted.
func FormatEVR(epoch, ver, rel string) string {
	s := ver
	if rel != "" {
		s += "-" + rel
	}
	if e, err := strconv.Atoi(strings.TrimSpace(epoch)); err == nil && e > 0 {
		s = strconv.Itoa(e) + ":" + s
	}
	return s
}
