package rpmutils

import (
	"strconv"
	"strings"

	rpm "github.com/sassoftware/go-rpmutils"
)

// EVR is a parsed epoch:version-release triple.
type EVR struct {
	Epoch   int
	Version string
	Release string
}

// ParseEVR splits "[epoch:]version[-release]".
func ParseEVR(s string) EVR {
	var evr EVR
	if i := strings.Index(s, ":"); i >= 0 {
		if e, err := strconv.Atoi(s[:i]); err == nil {
			evr.Epoch = e
		}
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "-"); i >= 0 {
		evr.Version, evr.Release = s[:i], s[i+1:]
	} else {
		evr.Version = s
	}
	return evr
}

// CompareEVR orders two RPM version strings: -1, 0 or 1.
func CompareEVR(a, b string) int {
	return compareParsed(ParseEVR(a), ParseEVR(b), true)
}

func compareParsed(a, b EVR, withRelease bool) int {
	if a.Epoch != b.Epoch {
		if a.Epoch < b.Epoch {
			return -1
		}
		return 1
	}
	if c := rpm.Vercmp(a.Version, b.Version); c != 0 {
		return c
	}
	if !withRelease || a.Release == "" || b.Release == "" {
		return 0
	}
	return rpm.Vercmp(a.Release, b.Release)
}

// Satisfies reports whether a package or provide at version have fulfils
// "op want". A requirement without a release matches any release.
func Satisfies(have, op, want string) bool {
	if op == "" {
		return true
	}
	w := ParseEVR(want)
	c := compareParsed(ParseEVR(have), w, w.Release != "")
	switch op {
	case "=":
		return c == 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}
