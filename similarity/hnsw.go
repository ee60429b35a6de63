package similarity

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync"
)

// hnswGraph is a navigable small-world graph over unit vectors, stored as
// struct-of-arrays. It is written once by Build and only read afterwards.
//
// For node i:
//   - neighborsOff[i] points to (level+1)*M slots in neighborsArena
//   - countsOff[i] points to (level+1) counts in countsArena
type hnswGraph struct {
	m               int
	efConstruction  int
	levelMultiplier float64
	dims            int
	vectors         []float32

	nodeLevel      []uint16
	neighborsArena []uint32
	neighborsOff   []int32
	countsArena    []uint16
	countsOff      []int32

	entryPoint uint32
	hasEntry   bool
	maxLevel   int

	visitedPool sync.Pool
	heapPool    sync.Pool
}

type visitedGenState struct {
	gen []uint16
	cur uint16
}

func newGraph(cfg Config, dims int, vectors []float32) *hnswGraph {
	g := &hnswGraph{
		m:               cfg.M,
		efConstruction:  cfg.EfConstruction,
		levelMultiplier: 1.0 / math.Log(float64(cfg.M)),
		dims:            dims,
		vectors:         vectors,
	}
	g.initPools()
	return g
}

func (g *hnswGraph) initPools() {
	g.visitedPool.New = func() any {
		return &visitedGenState{}
	}
	g.heapPool.New = func() any {
		return &distHeap{}
	}
}

func (g *hnswGraph) vectorAt(id uint32) []float32 {
	off := int(id) * g.dims
	return g.vectors[off : off+g.dims]
}

func (g *hnswGraph) dist(query []float32, id uint32) float32 {
	v := g.vectorAt(id)
	var dot float32
	for i := range query {
		dot += query[i] * v[i]
	}
	return 1 - dot
}

// insert links node id (whose vector is already in g.vectors) into the graph.
func (g *hnswGraph) insert(id uint32, rng *rand.Rand) {
	level := int(-math.Log(1-rng.Float64()) * g.levelMultiplier)
	vec := g.vectorAt(id)

	g.nodeLevel = append(g.nodeLevel, uint16(level))
	g.neighborsOff = append(g.neighborsOff, int32(len(g.neighborsArena)))
	g.neighborsArena = append(g.neighborsArena, make([]uint32, (level+1)*g.m)...)
	g.countsOff = append(g.countsOff, int32(len(g.countsArena)))
	g.countsArena = append(g.countsArena, make([]uint16, level+1)...)

	if !g.hasEntry {
		g.entryPoint = id
		g.hasEntry = true
		g.maxLevel = level
		return
	}

	ep := g.entryPoint
	for l := g.maxLevel; l > level; l-- {
		ep = g.searchLayerSingle(vec, ep, l)
	}

	for l := min(level, g.maxLevel); l >= 0; l-- {
		candidates := g.searchLayer(vec, ep, g.efConstruction, l)
		neighbors := g.selectNeighbors(vec, idsOf(candidates), g.m)
		g.setNeighbors(id, l, neighbors)
		for _, n := range neighbors {
			g.addNeighbor(n, l, id)
		}
		if len(candidates) > 0 {
			ep = candidates[0].id
		}
	}

	if level > g.maxLevel {
		g.entryPoint = id
		g.maxLevel = level
	}
}

// search returns up to ef nearest nodes, closest first.
func (g *hnswGraph) search(query []float32, ef int) []distItem {
	if !g.hasEntry {
		return nil
	}
	ep := g.entryPoint
	for l := g.maxLevel; l > 0; l-- {
		ep = g.searchLayerSingle(query, ep, l)
	}
	return g.searchLayer(query, ep, ef, 0)
}

func (g *hnswGraph) searchLayerSingle(query []float32, entry uint32, level int) uint32 {
	current := entry
	currentDist := g.dist(query, current)
	for {
		changed := false
		for _, n := range g.neighbors(current, level) {
			d := g.dist(query, n)
			if d < currentDist || (d == currentDist && n < current) {
				current, currentDist = n, d
				changed = true
			}
		}
		if !changed {
			return current
		}
	}
}

func (g *hnswGraph) searchLayer(query []float32, entry uint32, ef int, level int) []distItem {
	n := len(g.nodeLevel)
	visited := g.visitedPool.Get().(*visitedGenState)
	defer g.visitedPool.Put(visited)
	if len(visited.gen) < n {
		oldLen := len(visited.gen)
		if cap(visited.gen) < n {
			next := make([]uint16, n, 2*n)
			copy(next, visited.gen)
			visited.gen = next
		} else {
			visited.gen = visited.gen[:n]
			clear(visited.gen[oldLen:])
		}
	}
	visited.cur++
	if visited.cur == 0 {
		clear(visited.gen)
		visited.cur = 1
	}
	cur := visited.cur
	visited.gen[entry] = cur

	candidates := g.heapPool.Get().(*distHeap)
	candidates.Reset(false, ef*2)
	defer g.heapPool.Put(candidates)
	results := g.heapPool.Get().(*distHeap)
	results.Reset(true, ef*2)
	defer g.heapPool.Put(results)

	d := g.dist(query, entry)
	candidates.Push(distItem{id: entry, dist: d})
	results.Push(distItem{id: entry, dist: d})

	for candidates.Len() > 0 {
		closest := candidates.Pop()
		if results.Len() >= ef && closest.dist > results.Peek().dist {
			break
		}
		for _, nb := range g.neighbors(closest.id, level) {
			if visited.gen[nb] == cur {
				continue
			}
			visited.gen[nb] = cur
			d := g.dist(query, nb)
			if results.Len() < ef || d < results.Peek().dist {
				candidates.Push(distItem{id: nb, dist: d})
				results.Push(distItem{id: nb, dist: d})
				if results.Len() > ef {
					results.Pop()
				}
			}
		}
	}

	out := make([]distItem, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = results.Pop()
	}
	return out
}

func (g *hnswGraph) selectNeighbors(query []float32, candidates []uint32, m int) []uint32 {
	items := make([]distItem, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, distItem{id: c, dist: g.dist(query, c)})
	}
	slices.SortFunc(items, func(a, b distItem) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		}
		return int(a.id) - int(b.id)
	})
	if len(items) > m {
		items = items[:m]
	}
	return idsOf(items)
}

// validate checks that a decoded graph over n nodes stays inside its arenas,
// so searches cannot index out of range.
func (g *hnswGraph) validate(n int) error {
	if len(g.nodeLevel) != n || len(g.neighborsOff) != n || len(g.countsOff) != n {
		return fmt.Errorf("graph tables hold %d/%d/%d nodes for %d ids",
			len(g.nodeLevel), len(g.neighborsOff), len(g.countsOff), n)
	}
	if n == 0 {
		if g.hasEntry {
			return fmt.Errorf("entry point set on an empty graph")
		}
		return nil
	}
	if !g.hasEntry || int(g.entryPoint) >= n {
		return fmt.Errorf("entry point %d outside %d nodes", g.entryPoint, n)
	}
	if g.maxLevel < 0 || g.maxLevel > int(g.nodeLevel[g.entryPoint]) {
		return fmt.Errorf("max level %d does not match entry point level %d", g.maxLevel, g.nodeLevel[g.entryPoint])
	}
	for i := range n {
		levels := int(g.nodeLevel[i]) + 1
		nOff, cOff := int(g.neighborsOff[i]), int(g.countsOff[i])
		if nOff < 0 || nOff+levels*g.m > len(g.neighborsArena) {
			return fmt.Errorf("node %d neighbor slots [%d,%d) outside arena of %d", i, nOff, nOff+levels*g.m, len(g.neighborsArena))
		}
		if cOff < 0 || cOff+levels > len(g.countsArena) {
			return fmt.Errorf("node %d counts [%d,%d) outside arena of %d", i, cOff, cOff+levels, len(g.countsArena))
		}
		for l := range levels {
			cnt := int(g.countsArena[cOff+l])
			if cnt > g.m {
				return fmt.Errorf("node %d level %d has %d neighbors, limit %d", i, l, cnt, g.m)
			}
			base := nOff + l*g.m
			for _, nb := range g.neighborsArena[base : base+cnt] {
				if int(nb) >= n {
					return fmt.Errorf("node %d level %d links to missing node %d", i, l, nb)
				}
			}
		}
	}
	return nil
}

func (g *hnswGraph) neighbors(id uint32, level int) []uint32 {
	if level > int(g.nodeLevel[id]) {
		return nil
	}
	base := int(g.neighborsOff[id]) + level*g.m
	cnt := int(g.countsArena[int(g.countsOff[id])+level])
	return g.neighborsArena[base : base+cnt]
}

func (g *hnswGraph) setNeighbors(id uint32, level int, neighbors []uint32) {
	base := int(g.neighborsOff[id]) + level*g.m
	copy(g.neighborsArena[base:base+g.m], neighbors)
	g.countsArena[int(g.countsOff[id])+level] = uint16(len(neighbors))
}

func (g *hnswGraph) addNeighbor(id uint32, level int, newID uint32) {
	if level > int(g.nodeLevel[id]) {
		return
	}
	base := int(g.neighborsOff[id]) + level*g.m
	ci := int(g.countsOff[id]) + level
	cnt := int(g.countsArena[ci])
	if cnt < g.m {
		g.neighborsArena[base+cnt] = newID
		g.countsArena[ci] = uint16(cnt + 1)
		return
	}
	// Full: keep the best M among existing + new.
	all := append(slices.Clone(g.neighborsArena[base:base+g.m]), newID)
	g.setNeighbors(id, level, g.selectNeighbors(g.vectorAt(id), all, g.m))
}

func idsOf(items []distItem) []uint32 {
	out := make([]uint32, len(items))
	for i, it := range items {
		out[i] = it.id
	}
	return out
}
