package catalog

import (
	"testing"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
)

func record(eco ospackage.Ecosystem, name, version, arch, repo string) *ospackage.PackageRecord {
	return &ospackage.PackageRecord{
		PackageRef: ospackage.PackageRef{Ecosystem: eco, Name: name, Version: version, Arch: arch},
		RepoURL:    repo,
		Location:   name + ".pkg",
	}
}

func TestFirstRepositoryWins(t *testing.T) {
	c := New()
	first := record(ospackage.RPM, "xrdp", "1:0.9.24-1.el9", "x86_64", "https://a/")
	second := record(ospackage.RPM, "xrdp", "1:0.9.24-1.el9", "x86_64", "https://b/")

	if n := c.Add(first); n != 1 {
		t.Fatalf("expected 1 added, got %d", n)
	}
	if n := c.Add(second); n != 0 {
		t.Fatalf("expected duplicate to be ignored, got %d", n)
	}

	got, ok := c.Get(first.Ref())
	if !ok || got.RepoURL != "https://a/" {
		t.Errorf("expected record from first repo, got %+v", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestAddIsIdempotent(t *testing.T) {
	recs := []*ospackage.PackageRecord{
		record(ospackage.RPM, "xrdp", "1:0.9.24-1.el9", "x86_64", "https://a/"),
		record(ospackage.RPM, "openssl-libs", "1:3.0.7-27.el9", "x86_64", "https://a/"),
		record(ospackage.DEB, "xrdp", "0.9.21.1-1", "amd64", "http://d/"),
	}

	c := New()
	c.Add(recs...)
	before := c.Records("")
	c.Add(recs...)
	after := c.Records("")

	if len(before) != len(after) {
		t.Fatalf("re-adding changed the catalog: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("record %d changed", i)
		}
	}
}

func TestLookups(t *testing.T) {
	c := New()
	c.Add(
		record(ospackage.DEB, "xrdp", "0.9.21.1-1", "amd64", "http://d/"),
		record(ospackage.RPM, "xrdp", "1:0.9.24-1.el9", "x86_64", "https://a/"),
		record(ospackage.RPM, "xrdp", "1:0.9.23-1.el9", "x86_64", "https://a/"),
	)

	if got := c.ByName(ospackage.RPM, "xrdp"); len(got) != 2 {
		t.Errorf("ByName(rpm, xrdp) returned %d records", len(got))
	}
	if !c.Has("xrdp") || c.Has("nonexistent") {
		t.Error("unexpected Has result")
	}

	ecos := c.Ecosystems()
	if len(ecos) != 2 || ecos[0] != ospackage.RPM || ecos[1] != ospackage.DEB {
		t.Errorf("Ecosystems() = %v", ecos)
	}
	counts := c.CountByEcosystem()
	if counts[ospackage.RPM] != 2 || counts[ospackage.DEB] != 1 {
		t.Errorf("CountByEcosystem() = %v", counts)
	}
	if got := c.Records(ospackage.DEB); len(got) != 1 || got[0].Arch != "amd64" {
		t.Errorf("Records(deb) = %v", got)
	}
}
