package index

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/embedding"
	"github.com/MarcinSar/moja-dzialka-sub000/similarity"
)

const artifactFormatVersion = "1.0.0"

// Header describes an exported generation. It is written first so a reader
// can check compatibility before decoding the bulk of the artifact.
type Header struct {
	Format             string           `msgpack:"format"`
	SnapshotID         string           `msgpack:"snapshot_id"`
	SchemaVersion      string           `msgpack:"schema_version"`
	SchemaFingerprint  string           `msgpack:"schema_fingerprint"`
	ContentFingerprint string           `msgpack:"content_fingerprint"`
	BuiltAt            time.Time        `msgpack:"built_at"`
	ParcelCount        int              `msgpack:"parcel_count"`
	Schema             embedding.Schema `msgpack:"schema"`
}

// HeaderOf returns the header Export writes for gen.
func HeaderOf(gen *Generation) Header {
	return Header{
		Format:             artifactFormatVersion,
		SnapshotID:         gen.SnapshotID,
		SchemaVersion:      gen.SchemaVersion,
		SchemaFingerprint:  gen.SchemaFingerprint,
		ContentFingerprint: gen.ContentFingerprint,
		BuiltAt:            gen.BuiltAt,
		ParcelCount:        gen.Len(),
		Schema:             gen.Schema,
	}
}

// Export writes gen to w: the header, the parcels in ID order, then the
// similarity index.
func Export(w io.Writer, gen *Generation) error {
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(HeaderOf(gen)); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if err := enc.Encode(gen.Parcels()); err != nil {
		return fmt.Errorf("encode parcels: %w", err)
	}
	if err := enc.Encode(gen.similarity); err != nil {
		return fmt.Errorf("encode similarity index: %w", err)
	}
	return nil
}

// ExportFile writes gen to path. The file is written beside path and renamed
// into place, so a reader never sees a partial artifact.
func ExportFile(path string, gen *Generation) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = Export(bw, gen); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadHeader decodes only the artifact header.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header
	if err := msgpack.NewDecoder(r).Decode(&h); err != nil {
		return Header{}, fmt.Errorf("decode header: %w", err)
	}
	if h.Format != artifactFormatVersion {
		return Header{}, fmt.Errorf("%w: %q", ErrUnsupportedArtifact, h.Format)
	}
	return h, nil
}

// Load reads an artifact written by Export. It fails with
// core.ErrConfiguration when the artifact was built with a schema other
// than schema, before reading any parcel, and with core.ErrIndexUnavailable
// when the parcel records and the similarity index disagree.
func Load(r io.Reader, schema embedding.Schema) (*Generation, error) {
	dec := msgpack.NewDecoder(r)

	var h Header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("%w: decode header: %w", core.ErrIndexUnavailable, err)
	}
	if h.Format != artifactFormatVersion {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedArtifact, h.Format)
	}
	if err := schema.CheckCompatible(h.SchemaVersion, h.SchemaFingerprint); err != nil {
		return nil, err
	}

	var parcels []*core.Parcel
	if err := dec.Decode(&parcels); err != nil {
		return nil, fmt.Errorf("%w: decode parcels: %w", core.ErrIndexUnavailable, err)
	}
	sim := &similarity.Index{}
	if err := dec.Decode(sim); err != nil {
		return nil, fmt.Errorf("%w: decode similarity index: %w", core.ErrIndexUnavailable, err)
	}
	if sim.Len() != len(parcels) || sim.Dimensions() != schema.Dimensions {
		return nil, fmt.Errorf("%w: artifact holds %d parcels but %d vectors of %d dimensions",
			core.ErrIndexUnavailable, len(parcels), sim.Len(), sim.Dimensions())
	}
	seen := make(map[string]bool, len(parcels))
	for _, p := range parcels {
		if p == nil {
			return nil, fmt.Errorf("%w: artifact holds an empty parcel record", core.ErrIndexUnavailable)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("%w: %w: %s", core.ErrIndexUnavailable, ErrDuplicateParcel, p.ID)
		}
		seen[p.ID] = true
		if _, ok := sim.Vector(p.ID); !ok {
			return nil, fmt.Errorf("%w: parcel %s has no vector in the similarity index", core.ErrIndexUnavailable, p.ID)
		}
	}

	gen := newGeneration(schema, parcels, sim)
	gen.SnapshotID = h.SnapshotID
	gen.BuiltAt = h.BuiltAt
	gen.ContentFingerprint = h.ContentFingerprint
	return gen, nil
}

// LoadFile opens path and calls Load.
func LoadFile(path string, schema embedding.Schema) (*Generation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
	}
	defer f.Close()
	return Load(bufio.NewReader(f), schema)
}
