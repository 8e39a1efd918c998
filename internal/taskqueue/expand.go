package taskqueue

import "sort"

// ExpandMembers resolves queue member names into concrete task names.
// Family names are expanded recursively through descendants, so members of
// sub-families are included. Names that are not families are taken to be
// task names. Family cycles are tolerated.
func ExpandMembers(members []string, descendants map[string][]string) []string {
	seen := make(map[string]struct{})
	visited := make(map[string]struct{})

	var walk func(name string)
	walk = func(name string) {
		children, isFamily := descendants[name]
		if !isFamily {
			seen[name] = struct{}{}
			return
		}
		if _, done := visited[name]; done {
			return
		}
		visited[name] = struct{}{}
		for _, c := range children {
			walk(c)
		}
	}
	for _, m := range members {
		walk(m)
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
