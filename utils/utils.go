package utils

// StringsDiff returns the elements of a that are not in b.
func StringsDiff(a []string, b []string) []string {
	exclude := map[string]bool{}
	for _, s := range b {
		exclude[s] = true
	}
	res := []string{}
	for _, s := range a {
		if !exclude[s] {
			res = append(res, s)
		}
	}
	return res
}
