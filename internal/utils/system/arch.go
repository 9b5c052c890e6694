// Package system maps machine architecture names between the naming
// schemes of the package ecosystems and the Go runtime.
package system

import (
	"fmt"
	"runtime"
	"strings"
)

// archAliases lists the spellings of one machine architecture: the RPM
// name, the DEB name and any other common alias.
type archAliases struct {
	rpm     string
	deb     string
	aliases []string
}

var archTable = []archAliases{
	{rpm: "x86_64", deb: "amd64"},
	{rpm: "aarch64", deb: "arm64"},
	{rpm: "armv7hl", deb: "armhf", aliases: []string{"armv7l", "armv7", "arm"}},
	{rpm: "i686", deb: "i386", aliases: []string{"386"}},
	{rpm: "riscv64", deb: "riscv64"},
	{rpm: "ppc64le", deb: "ppc64el"},
	{rpm: "s390x", deb: "s390x"},
}

func lookupArch(name string) (archAliases, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, a := range archTable {
		if name == a.rpm || name == a.deb {
			return a, true
		}
		for _, alias := range a.aliases {
			if name == alias {
				return a, true
			}
		}
	}
	return archAliases{}, false
}

// RPMArch returns the RPM spelling of arch, e.g. "x86_64" for "amd64".
func RPMArch(arch string) (string, error) {
	a, ok := lookupArch(arch)
	if !ok {
		return "", fmt.Errorf("unsupported architecture: %s", arch)
	}
	return a.rpm, nil
}

// DEBArch returns the DEB spelling of arch, e.g. "arm64" for "aarch64".
func DEBArch(arch string) (string, error) {
	a, ok := lookupArch(arch)
	if !ok {
		return "", fmt.Errorf("unsupported architecture: %s", arch)
	}
	return a.deb, nil
}

// HostArch returns the RPM name of the architecture this binary runs on.
func HostArch() string {
	if a, err := RPMArch(runtime.GOARCH); err == nil {
		return a
	}
	return runtime.GOARCH
}
