package similarity

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

const snapshotFormatVersion = "1.0.0"

// snapshot is the serializable form of an Index, vectors included.
type snapshot struct {
	Version        string    `msgpack:"version"`
	Config         Config    `msgpack:"config"`
	Dimensions     int       `msgpack:"dimensions"`
	IDs            []string  `msgpack:"ids"`
	Vectors        []float32 `msgpack:"vectors"`
	HasGraph       bool      `msgpack:"has_graph"`
	NodeLevel      []uint16  `msgpack:"node_level"`
	NeighborsArena []uint32  `msgpack:"neighbors_arena"`
	NeighborsOff   []int32   `msgpack:"neighbors_off"`
	CountsArena    []uint16  `msgpack:"counts_arena"`
	CountsOff      []int32   `msgpack:"counts_off"`
	EntryPoint     uint32    `msgpack:"entry_point"`
	HasEntry       bool      `msgpack:"has_entry"`
	MaxLevel       int       `msgpack:"max_level"`
}

// EncodeMsgpack writes the index so that a decoded copy answers every query
// identically.
func (idx *Index) EncodeMsgpack(enc *msgpack.Encoder) error {
	snap := snapshot{
		Version:    snapshotFormatVersion,
		Config:     idx.cfg,
		Dimensions: idx.dims,
		IDs:        idx.ids,
		Vectors:    idx.vectors,
	}
	if g := idx.graph; g != nil {
		snap.HasGraph = true
		snap.NodeLevel = g.nodeLevel
		snap.NeighborsArena = g.neighborsArena
		snap.NeighborsOff = g.neighborsOff
		snap.CountsArena = g.countsArena
		snap.CountsOff = g.countsOff
		snap.EntryPoint = g.entryPoint
		snap.HasEntry = g.hasEntry
		snap.MaxLevel = g.maxLevel
	}
	return enc.Encode(&snap)
}

// DecodeMsgpack restores an index written by EncodeMsgpack.
func (idx *Index) DecodeMsgpack(dec *msgpack.Decoder) error {
	var snap snapshot
	if err := dec.Decode(&snap); err != nil {
		return err
	}
	if snap.Version != snapshotFormatVersion {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, snap.Version)
	}
	if snap.Dimensions <= 0 || len(snap.Vectors) != len(snap.IDs)*snap.Dimensions {
		return fmt.Errorf("%w: %d vectors for %d ids", ErrDimensionMismatch, len(snap.Vectors), len(snap.IDs))
	}
	if err := snap.Config.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	byID := make(map[string]uint32, len(snap.IDs))
	for i, id := range snap.IDs {
		if _, dup := byID[id]; dup {
			return fmt.Errorf("%w: %w: %s", ErrCorruptSnapshot, ErrDuplicateID, id)
		}
		byID[id] = uint32(i)
	}

	var graph *hnswGraph
	if snap.HasGraph {
		graph = newGraph(snap.Config, snap.Dimensions, snap.Vectors)
		graph.nodeLevel = snap.NodeLevel
		graph.neighborsArena = snap.NeighborsArena
		graph.neighborsOff = snap.NeighborsOff
		graph.countsArena = snap.CountsArena
		graph.countsOff = snap.CountsOff
		graph.entryPoint = snap.EntryPoint
		graph.hasEntry = snap.HasEntry
		graph.maxLevel = snap.MaxLevel
		if err := graph.validate(len(snap.IDs)); err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
		}
	}

	*idx = Index{
		cfg:     snap.Config,
		dims:    snap.Dimensions,
		ids:     snap.IDs,
		byID:    byID,
		vectors: snap.Vectors,
		graph:   graph,
	}
	return nil
}

// Save writes the index to w in msgpack form.
func (idx *Index) Save(w io.Writer) error {
	return msgpack.NewEncoder(w).Encode(idx)
}

// Load reads an index written by Save.
func Load(r io.Reader) (*Index, error) {
	idx := &Index{}
	if err := msgpack.NewDecoder(r).Decode(idx); err != nil {
		return nil, err
	}
	return idx, nil
}
