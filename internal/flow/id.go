package flow

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ID is a flow identifier: a sorted set of atoms without duplicates. The
// empty ID means "no flow".
type ID []int

// NewID builds an ID from atoms in any order.
func NewID(atoms ...int) ID {
	if len(atoms) == 0 {
		return nil
	}
	id := slices.Clone(atoms)
	slices.Sort(id)
	return ID(slices.Compact(id))
}

// ParseID parses the comma-separated form produced by String.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	atoms := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid flow atom %q", p)
		}
		atoms = append(atoms, n)
	}
	return NewID(atoms...), nil
}

// IsEmpty reports whether the ID belongs to no flow.
func (id ID) IsEmpty() bool { return len(id) == 0 }

// Contains reports whether atom is part of the ID.
func (id ID) Contains(atom int) bool {
	_, ok := slices.BinarySearch(id, atom)
	return ok
}

// Equal reports set equality.
func (id ID) Equal(other ID) bool { return slices.Equal(id, other) }

// String renders the atoms as "1,2,5".
func (id ID) String() string {
	parts := make([]string, len(id))
	for i, a := range id {
		parts[i] = strconv.Itoa(a)
	}
	return strings.Join(parts, ",")
}

// Merge returns a unchanged if the two are equal, otherwise the union of
// both atom sets.
func Merge(a, b ID) ID {
	if a.Equal(b) {
		return a
	}
	out := make([]int, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return NewID(out...)
}

// Match reports whether a and b share at least one atom, i.e. belong to the
// same lineage.
func Match(a, b ID) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			return true
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return false
}

// Common returns the atoms present in every ID. It returns nil for no IDs.
func Common(ids []ID) ID {
	if len(ids) == 0 {
		return nil
	}
	common := slices.Clone(ids[0])
	for _, id := range ids[1:] {
		common = slices.DeleteFunc(common, func(a int) bool { return !id.Contains(a) })
	}
	return common
}

// without returns id minus the given atoms, always in a fresh slice.
func (id ID) without(atoms ID) ID {
	out := make(ID, 0, len(id))
	for _, a := range id {
		if !atoms.Contains(a) {
			out = append(out, a)
		}
	}
	return out
}
