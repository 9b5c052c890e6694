package debutils

import (
	"fmt"
	"strings"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
)

// debian operators -> canonical operators. The single-character forms are
// the deprecated dpkg spellings of <= and >=.
var debOps = map[string]string{
	"<<": "<",
	"<=": "<=",
	"=":  "=",
	">=": ">=",
	">>": ">",
	"<":  "<=",
	">":  ">=",
}

// ParseDepends parses a Depends-style field. Every comma separated segment
// becomes one group; "|" alternatives within a segment share the group id.
// firstGroup offsets the ids so several fields can be concatenated.
func ParseDepends(field string, firstGroup int) ([]ospackage.Dependency, error) {
	var deps []ospackage.Dependency
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, nil
	}

	group := firstGroup
	for _, segment := range strings.Split(field, ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			return nil, fmt.Errorf("empty dependency group in %q", field)
		}
		for _, alt := range strings.Split(segment, "|") {
			dep, err := parseAlternative(alt)
			if err != nil {
				return nil, err
			}
			dep.Group = group
			deps = append(deps, dep)
		}
		group++
	}
	return deps, nil
}

// parseAlternative parses "name[:arch] [(op version)] [[arch list]] [<profile>]".
func parseAlternative(s string) (ospackage.Dependency, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ospackage.Dependency{}, fmt.Errorf("empty alternative")
	}

	// architecture restrictions and build profiles do not apply to binary
	// Packages indices but are tolerated
	if i := strings.IndexAny(s, "[<"); i >= 0 && !strings.Contains(s[:i], "(") {
		s = strings.TrimSpace(s[:i])
	}

	var dep ospackage.Dependency
	name := s
	if i := strings.Index(s, "("); i >= 0 {
		name = strings.TrimSpace(s[:i])
		rest := s[i+1:]
		j := strings.Index(rest, ")")
		if j < 0 {
			return dep, fmt.Errorf("unterminated version constraint in %q", s)
		}
		if tail := strings.TrimSpace(rest[j+1:]); tail != "" && tail[0] != '[' && tail[0] != '<' {
			return dep, fmt.Errorf("unexpected text after constraint in %q", s)
		}
		op, ver, err := splitConstraint(strings.TrimSpace(rest[:j]))
		if err != nil {
			return dep, fmt.Errorf("%q: %w", s, err)
		}
		dep.Op, dep.Version = op, ver
	}

	if strings.ContainsAny(name, " \t()") {
		return dep, fmt.Errorf("invalid package name %q", name)
	}
	if n, arch, ok := strings.Cut(name, ":"); ok {
		if n == "" || arch == "" {
			return dep, fmt.Errorf("invalid architecture qualifier in %q", name)
		}
		name, dep.ArchQualifier = n, arch
	}
	if name == "" {
		return dep, fmt.Errorf("missing package name in %q", s)
	}
	dep.Name = name
	return dep, nil
}

func splitConstraint(c string) (string, string, error) {
	for _, op := range []string{"<<", "<=", ">=", ">>", "=", "<", ">"} {
		if strings.HasPrefix(c, op) {
			ver := strings.TrimSpace(c[len(op):])
			if ver == "" || strings.ContainsAny(ver, " \t") {
				return "", "", fmt.Errorf("invalid version in constraint %q", c)
			}
			return debOps[op], ver, nil
		}
	}
	return "", "", fmt.Errorf("unknown operator in constraint %q", c)
}
