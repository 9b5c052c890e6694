package rpmutils

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
)

const repomdXML = `<?xml version="1.0" encoding="UTF-8"?>
<repomd xmlns="http://linux.duke.edu/metadata/repo" xmlns:rpm="http://linux.duke.edu/metadata/rpm">
  <revision>1718000000</revision>
  <data type="filelists">
    <checksum type="sha256">1111</checksum>
    <location href="repodata/1111-filelists.xml.gz"/>
  </data>
  <data type="primary">
    <checksum type="sha256">ABCDEF0123</checksum>
    <open-checksum type="sha256">9999</open-checksum>
    <location href="repodata/abcdef-primary.xml.zst"/>
    <size>4242</size>
  </data>
</repomd>`

const primaryXML = `<?xml version="1.0" encoding="UTF-8"?>
<metadata xmlns="http://linux.duke.edu/metadata/common" xmlns:rpm="http://linux.duke.edu/metadata/rpm" packages="3">
<package type="rpm">
  <name>xrdp</name>
  <arch>x86_64</arch>
  <version epoch="1" ver="0.9.24" rel="1.el9"/>
  <checksum type="sha256" pkgid="YES">AAAA</checksum>
  <size package="463215" installed="2043204" archive="2052340"/>
  <location href="Packages/x/xrdp-0.9.24-1.el9.x86_64.rpm"/>
  <format>
    <rpm:license>ASL 2.0</rpm:license>
    <rpm:provides>
      <rpm:entry name="xrdp" flags="EQ" epoch="1" ver="0.9.24" rel="1.el9"/>
      <rpm:entry name="xrdp(x86-64)" flags="EQ" epoch="1" ver="0.9.24" rel="1.el9"/>
    </rpm:provides>
    <rpm:requires>
      <rpm:entry name="/bin/sh" pre="1"/>
      <rpm:entry name="libc.so.6()(64bit)"/>
      <rpm:entry name="openssl-libs" flags="GE" epoch="1" ver="3.0"/>
      <rpm:entry name="rpmlib(CompressedFileNames)" flags="LE" epoch="0" ver="3.0.4" rel="1"/>
      <rpm:entry name="libc.so.6()(64bit)"/>
    </rpm:requires>
    <rpm:obsoletes>
      <rpm:entry name="xrdp-legacy" flags="LT" epoch="0" ver="0.9"/>
    </rpm:obsoletes>
    <file>/usr/sbin/xrdp</file>
  </format>
</package>
<package type="rpm">
  <name>xrdp</name>
  <arch>src</arch>
  <version epoch="1" ver="0.9.24" rel="1.el9"/>
  <location href="Source/x/xrdp-0.9.24-1.el9.src.rpm"/>
</package>
<package type="rpm">
  <name>glibc</name>
  <arch>x86_64</arch>
  <version ver="2.34" rel="100.el9"/>
  <checksum type="sha">BBBB</checksum>
  <location href="Packages/g/glibc-2.34-100.el9.x86_64.rpm" xml:base="https://mirror.example.com/rocky/9/"/>
  <format>
    <rpm:provides>
      <rpm:entry name="libc.so.6()(64bit)"/>
    </rpm:provides>
    <rpm:conflicts>
      <rpm:entry name="kernel" flags="LT" ver="2.6.32"/>
    </rpm:conflicts>
  </format>
</package>
</metadata>`

func TestParseRepomd(t *testing.T) {
	d, err := ParseRepomd(strings.NewReader(repomdXML), "repomd.xml")
	if err != nil {
		t.Fatalf("ParseRepomd: %v", err)
	}
	if d.Href != "repodata/abcdef-primary.xml.zst" {
		t.Errorf("unexpected href %q", d.Href)
	}
	if d.Checksum.Algorithm != "sha256" || d.Checksum.Value != "ABCDEF0123" {
		t.Errorf("unexpected checksum %v", d.Checksum)
	}
	if d.Size != 4242 {
		t.Errorf("unexpected size %d", d.Size)
	}
	if d.OpenChecksum != (ospackage.Checksum{Algorithm: "sha256", Value: "9999"}) {
		t.Errorf("unexpected open-checksum %v", d.OpenChecksum)
	}
}

func TestParseRepomdWithoutPrimary(t *testing.T) {
	_, err := ParseRepomd(strings.NewReader(`<repomd><data type="other"><location href="x"/></data></repomd>`), "repomd.xml")
	var malformed *ospackage.MalformedMetadataError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedMetadataError, got %v", err)
	}
}

func TestParsePrimary(t *testing.T) {
	records, err := ParsePrimary(strings.NewReader(primaryXML), "primary.xml", "https://dl.example.com/9/BaseOS/x86_64/os")
	if err != nil {
		t.Fatalf("ParsePrimary: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 binary records, got %d", len(records))
	}

	xrdp := records[0]
	wantRef := ospackage.PackageRef{Ecosystem: ospackage.RPM, Name: "xrdp", Version: "1:0.9.24-1.el9", Arch: "x86_64"}
	if xrdp.PackageRef != wantRef {
		t.Errorf("unexpected ref %v", xrdp.PackageRef)
	}
	if xrdp.RepoURL != "https://dl.example.com/9/BaseOS/x86_64/os/" {
		t.Errorf("unexpected repo URL %q", xrdp.RepoURL)
	}
	if xrdp.Checksum != (ospackage.Checksum{Algorithm: "sha256", Value: "aaaa"}) {
		t.Errorf("unexpected checksum %v", xrdp.Checksum)
	}
	if xrdp.Size != 463215 {
		t.Errorf("unexpected size %d", xrdp.Size)
	}

	var reqNames []string
	for _, r := range xrdp.Requires {
		reqNames = append(reqNames, r.String())
	}
	wantReqs := []string{"/bin/sh", "libc.so.6()(64bit)", "openssl-libs >= 1:3.0"}
	if !reflect.DeepEqual(reqNames, wantReqs) {
		t.Errorf("requires = %v, want %v", reqNames, wantReqs)
	}
	if len(xrdp.RequireGroups()) != 3 {
		t.Errorf("each RPM requirement must be its own group")
	}

	var provides []string
	for _, p := range xrdp.Provides {
		provides = append(provides, p.Name)
	}
	wantProvides := []string{"xrdp", "xrdp(x86-64)", "/usr/sbin/xrdp"}
	if !reflect.DeepEqual(provides, wantProvides) {
		t.Errorf("provides = %v, want %v", provides, wantProvides)
	}
	if len(xrdp.Obsoletes) != 1 || xrdp.Obsoletes[0].Op != "<" || xrdp.Obsoletes[0].Version != "0.9" {
		t.Errorf("unexpected obsoletes %v", xrdp.Obsoletes)
	}

	glibc := records[1]
	if glibc.Version != "2.34-100.el9" {
		t.Errorf("absent epoch should be omitted, got %q", glibc.Version)
	}
	if glibc.Checksum.Algorithm != "sha1" {
		t.Errorf("expected sha to normalise to sha1, got %q", glibc.Checksum.Algorithm)
	}
	if glibc.RepoURL != "https://mirror.example.com/rocky/9/" {
		t.Errorf("xml:base should override the repo URL, got %q", glibc.RepoURL)
	}
	if len(glibc.Conflicts) != 1 || glibc.Conflicts[0].Name != "kernel" {
		t.Errorf("unexpected conflicts %v", glibc.Conflicts)
	}
}

const richPrimaryXML = `<metadata xmlns="http://linux.duke.edu/metadata/common" xmlns:rpm="http://linux.duke.edu/metadata/rpm" packages="1">
<package type="rpm">
  <name>gdm</name>
  <arch>x86_64</arch>
  <version epoch="1" ver="40.1" rel="3.el9"/>
  <checksum type="sha256">CCCC</checksum>
  <location href="Packages/g/gdm-40.1-3.el9.x86_64.rpm"/>
  <format>
    <rpm:provides>
      <rpm:entry name="gdm"/>
      <rpm:entry name="(gdm-theme if gnome-shell)"/>
    </rpm:provides>
    <rpm:requires>
      <rpm:entry name="(pam or linux-pam)"/>
      <rpm:entry name="(libX11 and libXfixes &gt;= 5.0)"/>
      <rpm:entry name="(selinux-policy if selinux-policy-targeted)"/>
      <rpm:entry name="(glibc-langpack-en with glibc)"/>
      <rpm:entry name="(perl(Foo::Bar) or (bar &gt;= 2 or baz))"/>
      <rpm:entry name="(broken or"/>
      <rpm:entry name="pam"/>
      <rpm:entry name="(pam or linux-pam)"/>
    </rpm:requires>
  </format>
</package>
</metadata>`

func TestParsePrimaryRichDependencies(t *testing.T) {
	records, err := ParsePrimary(strings.NewReader(richPrimaryXML), "primary.xml", "https://example.com/")
	if err != nil {
		t.Fatalf("ParsePrimary: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	var got [][]string
	for _, group := range records[0].RequireGroups() {
		var alts []string
		for _, d := range group {
			alts = append(alts, d.String())
		}
		got = append(got, alts)
	}
	want := [][]string{
		{"pam", "linux-pam"},
		{"libX11"},
		{"libXfixes >= 5.0"},
		{"glibc-langpack-en"},
		{"perl(Foo::Bar)", "bar >= 2", "baz"},
		{"pam"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("require groups = %v, want %v", got, want)
	}

	if len(records[0].Provides) != 1 || records[0].Provides[0].Name != "gdm" {
		t.Errorf("boolean provides should be ignored, got %v", records[0].Provides)
	}
}

func TestParseRich(t *testing.T) {
	testCases := []struct {
		expr    string
		wantErr bool
	}{
		{expr: "(a or b or c)"},
		{expr: "(a >= 1.0-2 and (b or c))"},
		{expr: "(a if b else c)"},
		{expr: "((a))"},
		{expr: "(font(:lang=en) or d)"},
		{expr: "(a or b and c)", wantErr: true},
		{expr: "(a or b", wantErr: true},
		{expr: "(a >= )", wantErr: true},
		{expr: "(or a)", wantErr: true},
		{expr: "(a or b) c", wantErr: true},
		{expr: "a or b", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			_, err := parseRich(tc.expr)
			if tc.wantErr && err == nil {
				t.Errorf("expected an error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestRichRequireGroups(t *testing.T) {
	testCases := []struct {
		expr         string
		want         []string
		wantComplete bool
	}{
		{"(a or b)", []string{"a|b"}, true},
		{"(a and (b or c))", []string{"a", "b|c"}, true},
		{"(a or (b and c))", nil, false},
		{"(a unless b)", nil, false},
		{"(a if b else c)", nil, false},
		{"(a without b)", []string{"a"}, false},
		{"(a and (b if c))", []string{"a"}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			node, err := parseRich(tc.expr)
			if err != nil {
				t.Fatalf("parseRich: %v", err)
			}
			groups, complete := node.requireGroups()
			var got []string
			for _, g := range groups {
				var names []string
				for _, d := range g {
					names = append(names, d.Name)
				}
				got = append(got, strings.Join(names, "|"))
			}
			if !reflect.DeepEqual(got, tc.want) || complete != tc.wantComplete {
				t.Errorf("got %v complete=%v, want %v complete=%v", got, complete, tc.want, tc.wantComplete)
			}
		})
	}
}

func TestParsePrimaryIsDeterministic(t *testing.T) {
	first, err := ParsePrimary(strings.NewReader(primaryXML), "primary.xml", "https://example.com/")
	if err != nil {
		t.Fatalf("ParsePrimary: %v", err)
	}
	second, err := ParsePrimary(strings.NewReader(primaryXML), "primary.xml", "https://example.com/")
	if err != nil {
		t.Fatalf("ParsePrimary: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("parsing identical bytes twice produced different records")
	}
}

func TestParsePrimaryMissingRequired(t *testing.T) {
	testCases := []struct {
		name string
		xml  string
	}{
		{"missing name", `<metadata><package type="rpm"><arch>x86_64</arch><version ver="1"/><location href="a.rpm"/></package></metadata>`},
		{"missing arch", `<metadata><package type="rpm"><name>a</name><version ver="1"/><location href="a.rpm"/></package></metadata>`},
		{"missing version", `<metadata><package type="rpm"><name>a</name><arch>x86_64</arch><location href="a.rpm"/></package></metadata>`},
		{"missing location", `<metadata><package type="rpm"><name>a</name><arch>x86_64</arch><version ver="1"/></package></metadata>`},
		{"bad flags", `<metadata><package type="rpm"><name>a</name><arch>x86_64</arch><version ver="1"/><location href="a.rpm"/><format><rpm:requires><rpm:entry name="b" flags="XX" ver="1"/></rpm:requires></format></package></metadata>`},
		{"truncated", `<metadata><package type="rpm"><name>a</name>`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePrimary(strings.NewReader(tc.xml), "primary.xml", "https://example.com/")
			var malformed *ospackage.MalformedMetadataError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedMetadataError, got %v", err)
			}
		})
	}
}

func TestCompareEVR(t *testing.T) {
	testCases := []struct {
		a, b     string
		expected int
	}{
		{"1.0-1", "1.0-1", 0},
		{"1:1.0-1", "2.0-1", 1},
		{"0.9.24-1.el9", "0.9.24-2.el9", -1},
		{"1.45.2-1", "1.45.10-1", -1},
		{"2.34", "2.34-100.el9", 0},
	}

	for _, tc := range testCases {
		if got := CompareEVR(tc.a, tc.b); got != tc.expected {
			t.Errorf("CompareEVR(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.expected)
		}
	}
}

func TestSatisfies(t *testing.T) {
	testCases := []struct {
		have, op, want string
		expected       bool
	}{
		{"1.2.3-4", ">=", "1.2", true},
		{"1:0.9.24-1.el9", "=", "1:0.9.24", true},
		{"1:0.9.24-1.el9", "=", "0.9.24", false},
		{"1.0-1", "<", "1.0-2", true},
		{"1.0-2", "<=", "1.0-1", false},
		{"3.1", ">", "3.0", true},
		{"3.0", "", "", true},
	}

	for _, tc := range testCases {
		if got := Satisfies(tc.have, tc.op, tc.want); got != tc.expected {
			t.Errorf("Satisfies(%q %s %q) = %v, want %v", tc.have, tc.op, tc.want, got, tc.expected)
		}
	}
}

func TestLoadRepoConfig(t *testing.T) {
	repo := `# Rocky BaseOS
[baseos]
name=Rocky Linux 9 - BaseOS
baseurl=https://dl.rockylinux.org/pub/rocky/9/BaseOS/x86_64/os/
  https://mirror.example.com/rocky/9/BaseOS/x86_64/os/
gpgcheck=1
repo_gpgcheck=1
enabled=1
gpgkey=https://dl.rockylinux.org/pub/rocky/RPM-GPG-KEY-Rocky-9

[appstream]
baseurl=https://ignored.example.com/
`
	cfg, err := LoadRepoConfig(strings.NewReader(repo))
	if err != nil {
		t.Fatalf("LoadRepoConfig: %v", err)
	}
	if cfg.Section != "baseos" || cfg.Name != "Rocky Linux 9 - BaseOS" {
		t.Errorf("unexpected section/name %q/%q", cfg.Section, cfg.Name)
	}
	if cfg.URL != "https://dl.rockylinux.org/pub/rocky/9/BaseOS/x86_64/os/" {
		t.Errorf("unexpected baseurl %q", cfg.URL)
	}
	if !cfg.RepoGPGCheck || !cfg.Enabled {
		t.Error("expected repo_gpgcheck and enabled")
	}
	if cfg.GPGKey != "https://dl.rockylinux.org/pub/rocky/RPM-GPG-KEY-Rocky-9" {
		t.Errorf("unexpected gpgkey %q", cfg.GPGKey)
	}
}

func TestVerifyRepomdSignature(t *testing.T) {
	signer, err := openpgp.NewEntity("Repo Signer", "test", "repo@example.com", nil)
	if err != nil {
		t.Fatalf("NewEntity: %v", err)
	}

	var sig bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&sig, signer, strings.NewReader(repomdXML), nil); err != nil {
		t.Fatalf("ArmoredDetachSign: %v", err)
	}

	keyring := openpgp.EntityList{signer}
	if err := VerifyRepomdSignature(keyring, []byte(repomdXML), sig.Bytes()); err != nil {
		t.Fatalf("expected valid signature: %v", err)
	}

	tampered := strings.Replace(repomdXML, "ABCDEF0123", "ABCDEF0124", 1)
	if err := VerifyRepomdSignature(keyring, []byte(tampered), sig.Bytes()); err == nil {
		t.Fatal("expected tampered repomd.xml to fail verification")
	}
}

func TestRepomdDataVerify(t *testing.T) {
	raw := []byte("compressed bytes")
	data := []byte("<metadata/>")
	d := RepomdData{
		Checksum:     ospackage.Checksum{Algorithm: "sha256", Value: "1111"},
		OpenChecksum: ospackage.Checksum{Algorithm: "sha256", Value: "0000"},
		Size:         int64(len(raw)),
	}

	var malformed *ospackage.MalformedMetadataError
	sizeOnly := RepomdData{Size: d.Size}
	if err := sizeOnly.VerifyDownload("primary.xml.gz", raw[:4]); !errors.As(err, &malformed) {
		t.Errorf("expected a size error for a truncated file, got %v", err)
	}
	var integrity *ospackage.IntegrityError
	if err := d.VerifyDownload("primary.xml.gz", raw); !errors.As(err, &integrity) {
		t.Errorf("expected IntegrityError for the wrong checksum, got %v", err)
	}
	if err := d.VerifyOpen("primary.xml.gz", data); !errors.As(err, &integrity) {
		t.Errorf("expected IntegrityError for the wrong open-checksum, got %v", err)
	}

	if err := sizeOnly.VerifyDownload("primary.xml.gz", raw); err != nil {
		t.Errorf("matching size rejected: %v", err)
	}
	if err := (RepomdData{}).VerifyDownload("primary.xml.gz", raw); err != nil {
		t.Errorf("nothing declared, nothing to check: %v", err)
	}
	if err := (RepomdData{}).VerifyOpen("primary.xml.gz", data); err != nil {
		t.Errorf("nothing declared, nothing to check: %v", err)
	}
}
