package index

import (
	"slices"
	"strings"
	"time"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/embedding"
	"github.com/MarcinSar/moja-dzialka-sub000/similarity"
	"github.com/MarcinSar/moja-dzialka-sub000/spatial"
)

// Generation is one frozen, queryable snapshot of the parcel set: the
// enriched parcels plus the spatial and similarity indices built over them.
// Nothing in a Generation changes after it is returned by Builder.Build or
// Load, so any number of queries may read it concurrently.
type Generation struct {
	SnapshotID         string
	SchemaVersion      string
	SchemaFingerprint  string
	ContentFingerprint string
	BuiltAt            time.Time
	Schema             embedding.Schema

	seq        uint64
	ids        []string
	parcels    map[string]*core.Parcel
	gminas     map[string]int
	spatial    *spatial.Index
	similarity *similarity.Index
	rejections []core.Rejection
}

func newGeneration(schema embedding.Schema, parcels []*core.Parcel, sim *similarity.Index) *Generation {
	g := &Generation{
		SchemaVersion:     schema.Version,
		SchemaFingerprint: schema.Fingerprint(),
		Schema:            schema,
		ids:               make([]string, 0, len(parcels)),
		parcels:           make(map[string]*core.Parcel, len(parcels)),
		gminas:            make(map[string]int),
		similarity:        sim,
	}
	entries := make([]spatial.Entry, 0, len(parcels))
	for _, p := range parcels {
		g.ids = append(g.ids, p.ID)
		g.parcels[p.ID] = p
		if gm := normalizeGmina(p.Administrative.Gmina); gm != "" {
			g.gminas[gm]++
		}
		entries = append(entries, spatial.Entry{ID: p.ID, Centroid: p.Centroid, Outline: p.Geometry})
	}
	slices.Sort(g.ids)
	g.spatial = spatial.Build(entries)
	return g
}

func normalizeGmina(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Seq is the publication sequence number assigned by Handle.Publish.
// It is zero for a generation that was never published.
func (g *Generation) Seq() uint64 {
	return g.seq
}

// Len returns the number of indexed parcels.
func (g *Generation) Len() int {
	return len(g.ids)
}

// IDs returns every indexed parcel ID in ascending order.
func (g *Generation) IDs() []string {
	return slices.Clone(g.ids)
}

// Parcel returns the indexed parcel with the given ID.
// The returned value is shared and must not be modified.
func (g *Generation) Parcel(id string) (*core.Parcel, bool) {
	p, ok := g.parcels[id]
	return p, ok
}

// Parcels returns every indexed parcel ordered by ID.
func (g *Generation) Parcels() []*core.Parcel {
	out := make([]*core.Parcel, len(g.ids))
	for i, id := range g.ids {
		out[i] = g.parcels[id]
	}
	return out
}

// HasGmina reports whether at least one indexed parcel lies in the named gmina.
// Matching ignores case and surrounding space.
func (g *Generation) HasGmina(name string) bool {
	return g.gminas[normalizeGmina(name)] > 0
}

// Gminas returns the indexed gmina names in ascending order.
func (g *Generation) Gminas() []string {
	out := make([]string, 0, len(g.gminas))
	for gm := range g.gminas {
		out = append(out, gm)
	}
	slices.Sort(out)
	return out
}

// Spatial returns the centroid index.
func (g *Generation) Spatial() *spatial.Index {
	return g.spatial
}

// Similarity returns the embedding index.
func (g *Generation) Similarity() *similarity.Index {
	return g.similarity
}

// Rejections lists the parcels left out of this generation and why.
func (g *Generation) Rejections() []core.Rejection {
	return slices.Clone(g.rejections)
}
