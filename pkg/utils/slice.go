package utils

// ContainString will return true when slice of string contain string
func ContainString(arr []string, str string) bool {
	for _, a := range arr {
		if a == str {
			return true
		}
	}
	return false
}

// IntersectString will return strings present in both slices,
// keeping the order of the first slice
func IntersectString(a []string, b []string) []string {
	inB := map[string]bool{}
	for _, s := range b {
		inB[s] = true
	}
	out := []string{}
	for _, s := range a {
		if inB[s] {
			out = append(out, s)
		}
	}
	return out
}
