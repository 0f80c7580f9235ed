package visibility

import "sort"

const spanEpsilon = 1e-9

type span struct {
	lo, hi float64
}

// clipRegion is the occluded part of the screen: sorted, disjoint spans of
// normalized screen x in [-1, 1].
type clipRegion struct {
	spans []span
}

func (c *clipRegion) reset() { c.spans = c.spans[:0] }

// full reports whether the whole screen is occluded.
func (c *clipRegion) full() bool {
	return len(c.spans) == 1 && c.spans[0].lo <= -1+spanEpsilon && c.spans[0].hi >= 1-spanEpsilon
}

// covered reports whether [lo, hi] lies entirely inside one occluded span.
func (c *clipRegion) covered(lo, hi float64) bool {
	i := sort.Search(len(c.spans), func(i int) bool { return c.spans[i].hi >= hi-spanEpsilon })
	return i < len(c.spans) && c.spans[i].lo <= lo+spanEpsilon
}

// add marks [lo, hi] occluded, merging touching spans.
func (c *clipRegion) add(lo, hi float64) {
	if hi <= lo {
		return
	}
	// First span that could touch the new one.
	i := sort.Search(len(c.spans), func(i int) bool { return c.spans[i].hi >= lo-spanEpsilon })
	j := i
	for j < len(c.spans) && c.spans[j].lo <= hi+spanEpsilon {
		lo = min(lo, c.spans[j].lo)
		hi = max(hi, c.spans[j].hi)
		j++
	}
	if i == j {
		c.spans = append(c.spans, span{})
		copy(c.spans[i+1:], c.spans[i:])
		c.spans[i] = span{lo, hi}
		return
	}
	c.spans[i] = span{lo, hi}
	c.spans = append(c.spans[:i+1], c.spans[j:]...)
}
