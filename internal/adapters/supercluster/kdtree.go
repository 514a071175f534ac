package supercluster

import "sort"

// kdTree is a static 2-d tree over a flat slice of coordinates. Leaves hold
// up to nodeSize points; inner ranges are split at the median, alternating
// axes. Returned ids are positions in the slice the tree was built from.
type kdTree struct {
	ids      []int
	xs       []float64
	ys       []float64
	nodeSize int
}

type kdFrame struct {
	left, right, axis int
}

func newKDTree(entries []entry, nodeSize int) *kdTree {
	if nodeSize < 1 {
		nodeSize = 1
	}
	n := len(entries)
	t := &kdTree{
		ids:      make([]int, n),
		xs:       make([]float64, n),
		ys:       make([]float64, n),
		nodeSize: nodeSize,
	}
	for i, e := range entries {
		t.ids[i] = i
		t.xs[i] = e.x
		t.ys[i] = e.y
	}
	t.build(0, n-1, 0)
	return t
}

func (t *kdTree) build(left, right, axis int) {
	if right-left <= t.nodeSize {
		return
	}
	sort.Sort(axisSorter{t: t, lo: left, n: right - left + 1, axis: axis})
	m := (left + right) >> 1
	t.build(left, m-1, 1-axis)
	t.build(m+1, right, 1-axis)
}

// Range returns ids of all points inside the box, edges included.
func (t *kdTree) Range(minX, minY, maxX, maxY float64) []int {
	var result []int
	stack := []kdFrame{{0, len(t.ids) - 1, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.right-f.left <= t.nodeSize {
			for i := f.left; i <= f.right; i++ {
				if t.xs[i] >= minX && t.xs[i] <= maxX && t.ys[i] >= minY && t.ys[i] <= maxY {
					result = append(result, t.ids[i])
				}
			}
			continue
		}

		m := (f.left + f.right) >> 1
		x, y := t.xs[m], t.ys[m]
		if x >= minX && x <= maxX && y >= minY && y <= maxY {
			result = append(result, t.ids[m])
		}
		if (f.axis == 0 && minX <= x) || (f.axis == 1 && minY <= y) {
			stack = append(stack, kdFrame{f.left, m - 1, 1 - f.axis})
		}
		if (f.axis == 0 && maxX >= x) || (f.axis == 1 && maxY >= y) {
			stack = append(stack, kdFrame{m + 1, f.right, 1 - f.axis})
		}
	}
	return result
}

// Within returns ids of all points at most r away from (qx, qy).
func (t *kdTree) Within(qx, qy, r float64) []int {
	var result []int
	r2 := r * r
	stack := []kdFrame{{0, len(t.ids) - 1, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.right-f.left <= t.nodeSize {
			for i := f.left; i <= f.right; i++ {
				if sqDist(t.xs[i], t.ys[i], qx, qy) <= r2 {
					result = append(result, t.ids[i])
				}
			}
			continue
		}

		m := (f.left + f.right) >> 1
		x, y := t.xs[m], t.ys[m]
		if sqDist(x, y, qx, qy) <= r2 {
			result = append(result, t.ids[m])
		}
		if (f.axis == 0 && qx-r <= x) || (f.axis == 1 && qy-r <= y) {
			stack = append(stack, kdFrame{f.left, m - 1, 1 - f.axis})
		}
		if (f.axis == 0 && qx+r >= x) || (f.axis == 1 && qy+r >= y) {
			stack = append(stack, kdFrame{m + 1, f.right, 1 - f.axis})
		}
	}
	return result
}

func sqDist(ax, ay, bx, by float64) float64 {
	dx := ax - bx
	dy := ay - by
	return dx*dx + dy*dy
}

// axisSorter orders a sub-range of the tree by one axis. Ties are broken by
// id so the layout does not depend on the sort algorithm.
type axisSorter struct {
	t    *kdTree
	lo   int
	n    int
	axis int
}

func (s axisSorter) Len() int { return s.n }

func (s axisSorter) Less(i, j int) bool {
	i, j = s.lo+i, s.lo+j
	var a, b float64
	if s.axis == 0 {
		a, b = s.t.xs[i], s.t.xs[j]
	} else {
		a, b = s.t.ys[i], s.t.ys[j]
	}
	if a != b {
		return a < b
	}
	return s.t.ids[i] < s.t.ids[j]
}

func (s axisSorter) Swap(i, j int) {
	i, j = s.lo+i, s.lo+j
	s.t.ids[i], s.t.ids[j] = s.t.ids[j], s.t.ids[i]
	s.t.xs[i], s.t.xs[j] = s.t.xs[j], s.t.xs[i]
	s.t.ys[i], s.t.ys[j] = s.t.ys[j], s.t.ys[i]
}
