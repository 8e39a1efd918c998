package pool

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// ErrBadSelector is returned for task selectors that cannot be parsed.
var ErrBadSelector = errors.New("invalid task selector")

const globChars = "*?[{"

// Selector matches task instances. It is parsed from one of
//
//	point/name[:status]
//	name.point[:status]
//	name[:status]
//
// where point and name may be glob patterns and a bare name matches every
// cycle point.
type Selector struct {
	Raw    string
	Point  string
	Name   string
	Status Status

	pointGlob glob.Glob
	nameGlob  glob.Glob
}

// ParseSelector parses and compiles a task selector.
func ParseSelector(item string) (*Selector, error) {
	raw := strings.TrimSpace(item)
	rest := raw
	var status Status
	if i := strings.LastIndex(rest, ":"); i >= 0 {
		status = Status(rest[i+1:])
		rest = rest[:i]
		if !status.IsValid() {
			return nil, fmt.Errorf("%w %q: unknown status %q", ErrBadSelector, raw, status)
		}
	}

	var point, name string
	switch {
	case strings.Contains(rest, "/"):
		point, name, _ = strings.Cut(rest, "/")
	case strings.Contains(rest, "."):
		name, point, _ = strings.Cut(rest, ".")
	default:
		name, point = rest, "*"
	}
	if name == "" || point == "" {
		return nil, fmt.Errorf("%w %q", ErrBadSelector, raw)
	}

	s := &Selector{Raw: raw, Point: point, Name: name, Status: status}
	var err error
	if s.pointGlob, err = glob.Compile(point); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrBadSelector, raw, err)
	}
	if s.nameGlob, err = glob.Compile(name); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrBadSelector, raw, err)
	}
	return s, nil
}

// ParseSelectors parses every item, failing on the first bad one.
func ParseSelectors(items []string) ([]*Selector, error) {
	out := make([]*Selector, 0, len(items))
	for _, item := range items {
		s, err := ParseSelector(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Match reports whether t is selected.
func (s *Selector) Match(t *TaskProxy) bool {
	if s.Status != "" && t.status != s.Status {
		return false
	}
	return s.pointGlob.Match(t.point) && s.nameGlob.Match(t.name)
}

// IsExact reports whether the selector names a single instance, which is
// required to spawn a task that is not in the pool.
func (s *Selector) IsExact() bool {
	return s.Status == "" &&
		!strings.ContainsAny(s.Point, globChars) &&
		!strings.ContainsAny(s.Name, globChars)
}
