package selection

import (
	"maps"
	"slices"
)

// weekSet is an unordered set of positive week indices.
type weekSet map[int]struct{}

func newWeekSet(ws ...int) weekSet {
	s := make(weekSet, len(ws))
	s.add(ws...)
	return s
}

// interval returns {lo..hi} inclusive, whichever order a and b come in.
func interval(a, b int) weekSet {
	lo, hi := min(a, b), max(a, b)
	s := make(weekSet, hi-lo+1)
	for w := lo; w <= hi; w++ {
		s[w] = struct{}{}
	}
	return s
}

// add inserts the positive weeks of ws and reports whether the set grew.
func (s weekSet) add(ws ...int) bool {
	grew := false
	for _, w := range ws {
		if w < 1 {
			continue
		}
		if _, ok := s[w]; !ok {
			s[w] = struct{}{}
			grew = true
		}
	}
	return grew
}

func (s weekSet) remove(w int) bool {
	if _, ok := s[w]; !ok {
		return false
	}
	delete(s, w)
	return true
}

func (s weekSet) has(w int) bool {
	_, ok := s[w]
	return ok
}

func (s weekSet) equal(o weekSet) bool {
	return maps.Equal(s, o)
}

func (s weekSet) clone() weekSet {
	return maps.Clone(s)
}

// sorted returns the members in ascending order, never nil.
func (s weekSet) sorted() []int {
	out := slices.Collect(maps.Keys(s))
	if out == nil {
		out = []int{}
	}
	slices.Sort(out)
	return out
}
