package solver

import (
	"strings"
	"unicode"
)

// VersionScheme orders versions of one packaging ecosystem.
type VersionScheme interface {
	Compare(a, b string) int
	Satisfies(have, op, want string) bool
}

// PlainVersions compares dotted versions segment by segment, numerically
// where both segments are numeric. It is used when no ecosystem scheme is
// configured.
type PlainVersions struct{}

func (PlainVersions) Compare(a, b string) int {
	as := splitVersion(a)
	bs := splitVersion(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

func (v PlainVersions) Satisfies(have, op, want string) bool {
	return SatisfiesWith(v.Compare, have, op, want)
}

// SatisfiesWith evaluates "have op want" using compare.
func SatisfiesWith(compare func(a, b string) int, have, op, want string) bool {
	if op == "" {
		return true
	}
	c := compare(have, want)
	switch op {
	case "=", "==":
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

func splitVersion(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == '.' || r == '-' || r == '_' || r == '+' || r == '~' || r == ':'
	})
}

func compareSegment(a, b string) int {
	if isNumeric(a) && isNumeric(b) {
		a = strings.TrimLeft(a, "0")
		b = strings.TrimLeft(b, "0")
		if len(a) != len(b) {
			if len(a) < len(b) {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(a, b)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
