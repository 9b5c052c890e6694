package debutils

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/logger"
)

// IndexNames lists the Packages index variants in preference order.
var IndexNames = []string{"Packages.xz", "Packages.gz", "Packages"}

// IndexCandidates returns the URLs to try for a binary Packages index
// rooted at indexDir (".../dists/<suite>/<component>/binary-<arch>").
func IndexCandidates(indexDir string) []string {
	base := ospackage.EnsureTrailingSlash(indexDir)
	urls := make([]string, 0, len(IndexNames))
	for _, name := range IndexNames {
		urls = append(urls, base+name)
	}
	return urls
}

// RepoBaseURL returns the mirror root that Filename fields are relative to:
// everything before "/dists/". URLs without a dists component are returned
// with a trailing slash.
func RepoBaseURL(indexURL string) string {
	if i := strings.Index(indexURL, "/dists/"); i >= 0 {
		return indexURL[:i+1]
	}
	return ospackage.EnsureTrailingSlash(indexURL)
}

// checksum fields in preference order
var checksumFields = []struct {
	field     string
	algorithm string
}{
	{"SHA256", "sha256"},
	{"SHA512", "sha512"},
	{"SHA1", "sha1"},
	{"MD5sum", "md5"},
}

// ParsePackages parses a decompressed Packages index into records whose
// RepoURL is baseURL. Provides is deliberately left empty: virtual package
// names are not registered in the catalog.
func ParsePackages(r io.Reader, source, baseURL string) ([]*ospackage.PackageRecord, error) {
	log := logger.Logger()

	stanzas, err := ParseStanzas(r, source)
	if err != nil {
		return nil, err
	}

	records := make([]*ospackage.PackageRecord, 0, len(stanzas))
	for _, st := range stanzas {
		rec, err := toRecord(st, source, baseURL)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	log.Debugf("parsed %d packages from %s", len(records), source)
	return records, nil
}

// ParsePackagesBytes is ParsePackages over an in-memory index.
func ParsePackagesBytes(data []byte, source, baseURL string) ([]*ospackage.PackageRecord, error) {
	return ParsePackages(bytes.NewReader(data), source, baseURL)
}

func toRecord(st *Stanza, source, baseURL string) (*ospackage.PackageRecord, error) {
	malformed := func(format string, args ...interface{}) error {
		return &ospackage.MalformedMetadataError{Source: source, Line: st.Line, Reason: fmt.Sprintf(format, args...)}
	}

	for _, field := range []string{"Package", "Version", "Architecture", "Filename"} {
		if st.Get(field) == "" {
			return nil, malformed("stanza missing %s", field)
		}
	}

	rec := &ospackage.PackageRecord{
		PackageRef: ospackage.PackageRef{
			Ecosystem: ospackage.DEB,
			Name:      st.Get("Package"),
			Version:   st.Get("Version"),
			Arch:      st.Get("Architecture"),
		},
		Location: st.Get("Filename"),
		RepoURL:  baseURL,
	}

	group := 0
	for _, field := range []string{"Pre-Depends", "Depends"} {
		deps, err := ParseDepends(st.Get(field), group)
		if err != nil {
			return nil, malformed("package %s: %s: %v", rec.Name, field, err)
		}
		if len(deps) > 0 {
			group = deps[len(deps)-1].Group + 1
		}
		rec.Requires = append(rec.Requires, deps...)
	}

	for _, field := range []string{"Conflicts", "Breaks"} {
		deps, err := ParseDepends(st.Get(field), 0)
		if err != nil {
			return nil, malformed("package %s: %s: %v", rec.Name, field, err)
		}
		rec.Conflicts = append(rec.Conflicts, deps...)
	}

	for _, c := range checksumFields {
		if v := st.Get(c.field); v != "" {
			rec.Checksum = ospackage.Checksum{Algorithm: c.algorithm, Value: strings.ToLower(v)}
			break
		}
	}

	if size := st.Get("Size"); size != "" {
		n, err := strconv.ParseInt(size, 10, 64)
		if err != nil {
			return nil, malformed("package %s: invalid Size %q", rec.Name, size)
		}
		rec.Size = n
	}
	return rec, nil
}
