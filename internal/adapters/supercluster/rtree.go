package supercluster

import (
	"github.com/dhconnelly/rtreego"
)

// rectTolerance pads point rectangles; rtreego rejects zero-length sides.
const rectTolerance = 1e-12

// rItem is one index entry stored in the R-tree.
type rItem struct {
	id   int
	x, y float64
	rect rtreego.Rect
}

func (it *rItem) Bounds() rtreego.Rect {
	return it.rect
}

// rTree answers the same queries as kdTree on top of rtreego. Candidate
// hits are re-checked exactly so both backends return identical ids.
type rTree struct {
	tree *rtreego.Rtree
}

func newRTree(entries []entry, nodeSize int) *rTree {
	maxChildren := nodeSize
	if maxChildren < 4 {
		maxChildren = 4
	}
	objs := make([]rtreego.Spatial, len(entries))
	for i, e := range entries {
		objs[i] = &rItem{
			id:   i,
			x:    e.x,
			y:    e.y,
			rect: rtreego.Point{e.x, e.y}.ToRect(rectTolerance),
		}
	}
	return &rTree{tree: rtreego.NewTree(2, maxChildren/2, maxChildren, objs...)}
}

func (t *rTree) search(minX, minY, maxX, maxY float64) []*rItem {
	w := maxX - minX + 2*rectTolerance
	h := maxY - minY + 2*rectTolerance
	rect, err := rtreego.NewRect(rtreego.Point{minX - rectTolerance, minY - rectTolerance}, []float64{w, h})
	if err != nil {
		return nil
	}
	hits := t.tree.SearchIntersect(rect)
	items := make([]*rItem, 0, len(hits))
	for _, h := range hits {
		items = append(items, h.(*rItem))
	}
	return items
}

// Range returns ids of all points inside the box, edges included.
func (t *rTree) Range(minX, minY, maxX, maxY float64) []int {
	var result []int
	for _, it := range t.search(minX, minY, maxX, maxY) {
		if it.x >= minX && it.x <= maxX && it.y >= minY && it.y <= maxY {
			result = append(result, it.id)
		}
	}
	return result
}

// Within returns ids of all points at most r away from (qx, qy).
func (t *rTree) Within(qx, qy, r float64) []int {
	var result []int
	r2 := r * r
	for _, it := range t.search(qx-r, qy-r, qx+r, qy+r) {
		if sqDist(it.x, it.y, qx, qy) <= r2 {
			result = append(result, it.id)
		}
	}
	return result
}
