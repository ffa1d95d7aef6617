package diary

// Label sets are small, so they are kept as ordered string slices rather than
// maps. Order matters: it is the order rules matched in.

// Contains reports whether set holds label.
func Contains(set []string, label string) bool {
	for _, s := range set {
		if s == label {
			return true
		}
	}
	return false
}

// ContainsAny reports whether set holds at least one of labels.
func ContainsAny(set []string, labels ...string) bool {
	for _, l := range labels {
		if Contains(set, l) {
			return true
		}
	}
	return false
}

// Overlaps reports whether a and b share at least one label.
func Overlaps(a, b []string) bool {
	return ContainsAny(a, b...)
}

// Intersect returns the labels of a that are also in b, in a's order.
func Intersect(a, b []string) []string {
	var out []string
	for _, s := range a {
		if Contains(b, s) && !Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// AppendUnique appends each label not already present in set.
func AppendUnique(set []string, labels ...string) []string {
	for _, l := range labels {
		if !Contains(set, l) {
			set = append(set, l)
		}
	}
	return set
}
