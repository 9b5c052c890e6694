package slice

// Contains reports whether item is present in slice.
func Contains[T comparable](slice []T, item T) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// Unique returns the elements of slice without repetitions, keeping the
// first occurrence of each in order.
func Unique[T comparable](slice []T) []T {
	seen := make(map[T]bool, len(slice))
	out := make([]T, 0, len(slice))
	for _, s := range slice {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// NonEmpty drops empty strings.
func NonEmpty(slice []string) []string {
	out := make([]string, 0, len(slice))
	for _, s := range slice {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
