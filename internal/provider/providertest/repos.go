package providertest

import (
	"fmt"
	"strings"
)

// RPM describes one package of a fake repomd repository. Relations are
// written "name" or "name op [epoch:]version[-release]".
type RPM struct {
	Name     string
	Epoch    string
	Version  string
	Release  string
	Arch     string
	Requires []string
	Provides []string
	Payload  []byte
}

// FileName is the package file name.
func (p RPM) FileName() string {
	return fmt.Sprintf("%s-%s-%s.%s.rpm", p.Name, p.Version, p.Release, p.Arch)
}

// Location is the package path relative to the repository base.
func (p RPM) Location() string {
	return fmt.Sprintf("Packages/%s/%s", strings.ToLower(p.Name[:1]), p.FileName())
}

var rpmFlags = map[string]string{"=": "EQ", "<": "LT", "<=": "LE", ">": "GT", ">=": "GE"}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func rpmEntry(rel string) string {
	if strings.HasPrefix(rel, "(") {
		return fmt.Sprintf(`<rpm:entry name="%s"/>`, xmlEscaper.Replace(rel))
	}
	f := strings.Fields(rel)
	if len(f) != 3 {
		return fmt.Sprintf(`<rpm:entry name="%s"/>`, rel)
	}
	epoch, ver, relse := "0", f[2], ""
	if e, v, ok := strings.Cut(ver, ":"); ok {
		epoch, ver = e, v
	}
	if v, r, ok := strings.Cut(ver, "-"); ok {
		ver, relse = v, r
	}
	out := fmt.Sprintf(`<rpm:entry name="%s" flags="%s" epoch="%s" ver="%s"`, f[0], rpmFlags[f[1]], epoch, ver)
	if relse != "" {
		out += fmt.Sprintf(` rel="%s"`, relse)
	}
	return out + "/>"
}

// PrimaryXML renders the primary package list of pkgs.
func PrimaryXML(pkgs []RPM) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<metadata xmlns="http://linux.duke.edu/metadata/common" xmlns:rpm="http://linux.duke.edu/metadata/rpm" packages="%d">`+"\n", len(pkgs))
	for _, p := range pkgs {
		epoch := p.Epoch
		if epoch == "" {
			epoch = "0"
		}
		b.WriteString(`<package type="rpm">` + "\n")
		fmt.Fprintf(&b, "  <name>%s</name>\n  <arch>%s</arch>\n", p.Name, p.Arch)
		fmt.Fprintf(&b, `  <version epoch="%s" ver="%s" rel="%s"/>`+"\n", epoch, p.Version, p.Release)
		fmt.Fprintf(&b, `  <checksum type="sha256" pkgid="YES">%s</checksum>`+"\n", Sha256(p.Payload))
		fmt.Fprintf(&b, `  <size package="%d"/>`+"\n", len(p.Payload))
		fmt.Fprintf(&b, `  <location href="%s"/>`+"\n", p.Location())
		b.WriteString("  <format>\n    <rpm:provides>\n")
		fmt.Fprintf(&b, `      <rpm:entry name="%s" flags="EQ" epoch="%s" ver="%s" rel="%s"/>`+"\n", p.Name, epoch, p.Version, p.Release)
		for _, prov := range p.Provides {
			b.WriteString("      " + rpmEntry(prov) + "\n")
		}
		b.WriteString("    </rpm:provides>\n    <rpm:requires>\n")
		for _, req := range p.Requires {
			b.WriteString("      " + rpmEntry(req) + "\n")
		}
		b.WriteString("    </rpm:requires>\n  </format>\n</package>\n")
	}
	b.WriteString("</metadata>\n")
	return []byte(b.String())
}

// RepomdXML renders a repomd.xml pointing at primaryGz, the gzip
// compressed form of primary.
func RepomdXML(primaryHref string, primary, primaryGz []byte) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<repomd xmlns="http://linux.duke.edu/metadata/repo">
  <revision>1</revision>
  <data type="primary">
    <checksum type="sha256">%s</checksum>
    <open-checksum type="sha256">%s</open-checksum>
    <location href="%s"/>
    <size>%d</size>
  </data>
</repomd>
`, Sha256(primaryGz), Sha256(primary), primaryHref, len(primaryGz)))
}

// PublishRPMRepo publishes repodata and payloads under dir (e.g.
// "/rocky/9/AppStream/x86_64/os/") and returns the repository URL.
func (s *Server) PublishRPMRepo(dir string, pkgs []RPM) string {
	primary := PrimaryXML(pkgs)
	primaryGz := Gzip(primary)
	href := "repodata/" + Sha256(primaryGz)[:12] + "-primary.xml.gz"
	s.Put(dir+href, primaryGz)
	s.Put(dir+"repodata/repomd.xml", RepomdXML(href, primary, primaryGz))
	for _, p := range pkgs {
		s.Put(dir+p.Location(), p.Payload)
	}
	return s.URL + dir
}

// Deb describes one package of a fake Debian archive.
type Deb struct {
	Name    string
	Version string
	Arch    string
	Depends string
	Payload []byte
}

// Filename is the pool path of the package.
func (p Deb) Filename(component string) string {
	return fmt.Sprintf("pool/%s/%s/%s/%s_%s_%s.deb", component, p.Name[:1], p.Name, p.Name, p.Version, p.Arch)
}

// PackagesIndex renders a Packages file for pkgs.
func PackagesIndex(component string, pkgs []Deb) []byte {
	var b strings.Builder
	for i, p := range pkgs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Package: %s\nVersion: %s\nArchitecture: %s\n", p.Name, p.Version, p.Arch)
		if p.Depends != "" {
			fmt.Fprintf(&b, "Depends: %s\n", p.Depends)
		}
		fmt.Fprintf(&b, "Filename: %s\nSize: %d\nSHA256: %s\n", p.Filename(component), len(p.Payload), Sha256(p.Payload))
		fmt.Fprintf(&b, "Description: %s package\n", p.Name)
	}
	return []byte(b.String())
}

// PublishDebRepo publishes dists/<suite>/<component>/binary-<arch>/Packages.gz
// below root (e.g. "/debian/") plus the pool files, and returns the URL of
// the binary index directory.
func (s *Server) PublishDebRepo(root, suite, component, arch string, pkgs []Deb) string {
	indexDir := fmt.Sprintf("%sdists/%s/%s/binary-%s/", root, suite, component, arch)
	s.Put(indexDir+"Packages.gz", Gzip(PackagesIndex(component, pkgs)))
	for _, p := range pkgs {
		s.Put(root+p.Filename(component), p.Payload)
	}
	return s.URL + indexDir
}
