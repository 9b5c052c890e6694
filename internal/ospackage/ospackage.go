package ospackage

import (
	"fmt"
	"path"
	"strings"
)

// Ecosystem names the packaging family a record came from.
type Ecosystem string

const (
	RPM Ecosystem = "rpm"
	DEB Ecosystem = "deb"
)

// Ecosystems lists the supported ecosystems in their fixed processing order.
var Ecosystems = []Ecosystem{RPM, DEB}

// PackageRef is the identity of one package build. It is comparable and is
// used as the catalog key.
type PackageRef struct {
	Ecosystem Ecosystem // e.g. "rpm"
	Name      string    // e.g. "xrdp"
	Version   string    // e.g. "1:0.9.24-1.el9" or "0.9.21.1-1"
	Arch      string    // e.g. "x86_64", "noarch", "amd64", "all"
}

func (r PackageRef) String() string {
	return fmt.Sprintf("%s:%s-%s.%s", r.Ecosystem, r.Name, r.Version, r.Arch)
}

// Dependency is one relation expression. Requires entries that belong to
// the same OR-group (DEB alternatives) share a Group id.
type Dependency struct {
	Name          string
	Op            string // "", "=", "<", "<=", ">", ">="
	Version       string
	Group         int
	ArchQualifier string // DEB ":any", ":native", ...
}

func (d Dependency) String() string {
	s := d.Name
	if d.ArchQualifier != "" {
		s += ":" + d.ArchQualifier
	}
	if d.Op != "" {
		s += " " + d.Op + " " + d.Version
	}
	return s
}

// Checksum holds the algorithm and value of a checksum.
type Checksum struct {
	Algorithm string // "sha256", "sha512", "sha1", "md5"
	Value     string // lowercase hex digest
}

func (c Checksum) String() string {
	return c.Algorithm + ":" + c.Value
}

// IsZero reports whether no checksum was declared.
func (c Checksum) IsZero() bool {
	return c.Algorithm == "" || c.Value == ""
}

// PackageRecord holds everything needed to resolve, fetch and verify one
// artifact. Records are built once by an index parser and not modified
// afterwards.
type PackageRecord struct {
	PackageRef
	Requires  []Dependency
	Provides  []Dependency
	Conflicts []Dependency
	Obsoletes []Dependency
	Location  string // relative to RepoURL, e.g. "Packages/x/xrdp-0.9.24-1.el9.x86_64.rpm"
	RepoURL   string // base URL Location resolves against, always with a trailing slash
	Checksum  Checksum
	Size      int64
}

// Ref returns the identity of the record.
func (p *PackageRecord) Ref() PackageRef {
	return p.PackageRef
}

// FileName is the artifact name under the destination directory.
func (p *PackageRecord) FileName() string {
	return path.Base(p.Location)
}

// DownloadURL resolves Location against RepoURL.
func (p *PackageRecord) DownloadURL() string {
	return EnsureTrailingSlash(p.RepoURL) + strings.TrimLeft(p.Location, "/")
}

// RequireGroups returns Requires split into OR-groups, in declaration order.
func (p *PackageRecord) RequireGroups() [][]Dependency {
	var groups [][]Dependency
	index := make(map[int]int)
	for _, dep := range p.Requires {
		i, ok := index[dep.Group]
		if !ok {
			i = len(groups)
			index[dep.Group] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], dep)
	}
	return groups
}

// EnsureTrailingSlash appends "/" to u unless already present.
func EnsureTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
