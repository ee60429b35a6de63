package spatial

import (
	"math"
	"slices"

	"github.com/paulmach/orb"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
)

// Entry is one parcel as seen by the spatial index.
type Entry struct {
	ID       string
	Centroid core.Point
	Outline  core.Polygon
}

// BBox is an axis-aligned rectangle in projected metres.
type BBox struct {
	Min core.Point
	Max core.Point
}

func bboxOf(b orb.Bound) BBox {
	return BBox{Min: core.PointFromOrb(b.Min), Max: core.PointFromOrb(b.Max)}
}

// Orb returns b as an orb bound.
func (b BBox) Orb() orb.Bound {
	return orb.Bound{Min: b.Min.Orb(), Max: b.Max.Orb()}
}

// Contains reports whether p lies inside or on the box.
func (b BBox) Contains(p core.Point) bool {
	return b.Orb().Contains(p.Orb())
}

// Expand grows the box by m metres on every side.
func (b BBox) Expand(m float64) BBox {
	return bboxOf(b.Orb().Pad(m))
}

type kdNode struct {
	e  Entry
	ax int // 0:x, 1:y
	l  *kdNode
	r  *kdNode
}

// Index is an immutable 2-D tree over parcel centroids.
// All methods are safe for concurrent use.
type Index struct {
	root      *kdNode
	n         int
	bounds    BBox
	maxReachM float64
}

// Build constructs an Index. The entries slice is not retained.
func Build(entries []Entry) *Index {
	es := slices.Clone(entries)
	idx := &Index{n: len(es)}
	if len(es) == 0 {
		return idx
	}
	bound := es[0].Centroid.Orb().Bound()
	for _, e := range es {
		bound = bound.Extend(e.Centroid.Orb())
		for _, ring := range e.Outline.Rings {
			for _, p := range ring {
				idx.maxReachM = math.Max(idx.maxReachM, p.DistanceTo(e.Centroid))
			}
		}
	}
	idx.bounds = bboxOf(bound)
	idx.root = buildKD(es, 0)
	return idx
}

func buildKD(es []Entry, depth int) *kdNode {
	if len(es) == 0 {
		return nil
	}
	ax := depth % 2
	mid := len(es) / 2
	selectNth(es, mid, ax)
	node := &kdNode{e: es[mid], ax: ax}
	node.l = buildKD(es[:mid], depth+1)
	node.r = buildKD(es[mid+1:], depth+1)
	return node
}

// selectNth partially orders es in place so es[n] holds the n-th smallest on ax.
func selectNth(es []Entry, n int, ax int) {
	lo, hi := 0, len(es)-1
	for lo < hi {
		p := partition(es, lo, hi, (lo+hi)/2, ax)
		if p == n {
			return
		}
		if n < p {
			hi = p - 1
		} else {
			lo = p + 1
		}
	}
}

func partition(es []Entry, lo, hi, pivot, ax int) int {
	pv := es[pivot]
	es[pivot], es[hi] = es[hi], es[pivot]
	i := lo
	for j := lo; j < hi; j++ {
		if less(es[j], pv, ax) {
			es[i], es[j] = es[j], es[i]
			i++
		}
	}
	es[i], es[hi] = es[hi], es[i]
	return i
}

// less breaks coordinate ties by ID so the tree shape is input-order independent.
func less(a, b Entry, ax int) bool {
	ka, kb := key(a.Centroid, ax), key(b.Centroid, ax)
	if ka != kb {
		return ka < kb
	}
	return a.ID < b.ID
}

func key(p core.Point, ax int) float64 {
	if ax == 0 {
		return p.X
	}
	return p.Y
}

// Len returns the number of indexed parcels.
func (idx *Index) Len() int {
	return idx.n
}

// Bounds returns the bounding box of all centroids.
func (idx *Index) Bounds() BBox {
	return idx.bounds
}

// Covers reports whether p lies within marginM of the indexed region.
// An empty index covers nothing.
func (idx *Index) Covers(p core.Point, marginM float64) bool {
	if idx.n == 0 {
		return false
	}
	return idx.bounds.Expand(marginM).Contains(p)
}

// QueryRadius returns IDs of parcels whose centroid lies within radiusM of
// center, sorted ascending.
func (idx *Index) QueryRadius(center core.Point, radiusM float64) []string {
	var out []string
	idx.visit(func(n *kdNode) int {
		d := key(center, n.ax) - key(n.e.Centroid, n.ax)
		if n.e.Centroid.DistanceTo(center) <= radiusM {
			out = append(out, n.e.ID)
		}
		return side(d, radiusM)
	})
	slices.Sort(out)
	return out
}

// QueryBBox returns IDs of parcels whose centroid lies in box, sorted ascending.
func (idx *Index) QueryBBox(box BBox) []string {
	var out []string
	idx.visit(func(n *kdNode) int {
		if box.Contains(n.e.Centroid) {
			out = append(out, n.e.ID)
		}
		v := key(n.e.Centroid, n.ax)
		lo, hi := key(box.Min, n.ax), key(box.Max, n.ax)
		switch {
		case hi < v:
			return visitLeft
		case lo > v:
			return visitRight
		}
		return visitBoth
	})
	slices.Sort(out)
	return out
}

// Locate returns the ID of the parcel whose outline contains p.
// Parcels indexed without an outline are never located.
func (idx *Index) Locate(p core.Point) (string, bool) {
	if idx.maxReachM == 0 {
		return "", false
	}
	var hits []string
	idx.visit(func(n *kdNode) int {
		d := key(p, n.ax) - key(n.e.Centroid, n.ax)
		if n.e.Centroid.DistanceTo(p) <= idx.maxReachM && n.e.Outline.Contains(p) {
			hits = append(hits, n.e.ID)
		}
		return side(d, idx.maxReachM)
	})
	if len(hits) == 0 {
		return "", false
	}
	slices.Sort(hits)
	return hits[0], true
}

const (
	visitLeft = 1 << iota
	visitRight
	visitBoth = visitLeft | visitRight
)

// side prunes a subtree when the splitting plane lies farther than r from the query.
func side(d, r float64) int {
	switch {
	case d < -r:
		return visitLeft
	case d > r:
		return visitRight
	}
	return visitBoth
}

func (idx *Index) visit(fn func(n *kdNode) int) {
	var dfs func(n *kdNode)
	dfs = func(n *kdNode) {
		if n == nil {
			return
		}
		which := fn(n)
		if which&visitLeft != 0 {
			dfs(n.l)
		}
		if which&visitRight != 0 {
			dfs(n.r)
		}
	}
	dfs(idx.root)
}
