package debutils

import (
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/logger"
	"pault.ag/go/debian/version"
)

// CompareVersion orders two Debian versions: -1, 0 or 1. Unparsable
// versions fall back to a plain string comparison.
func CompareVersion(a, b string) int {
	va, errA := version.Parse(a)
	vb, errB := version.Parse(b)
	if errA != nil || errB != nil {
		logger.Logger().Debugf("comparing unparsable debian versions %q and %q", a, b)
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	}
	c := version.Compare(va, vb)
	switch {
	case c < 0:
		return -1
	case c > 0:
		return 1
	}
	return 0
}

// Satisfies reports whether version have fulfils "op want".
func Satisfies(have, op, want string) bool {
	if op == "" {
		return true
	}
	c := CompareVersion(have, want)
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
