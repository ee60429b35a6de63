package labels

import (
	"context"
	"slices"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
)

// Label is what an external source knows about one parcel.
// Empty fields are unknown.
type Label struct {
	Ownership    core.OwnershipType
	ZoningSymbol string
	Purposes     []string
	Gmina        string
}

// IsEmpty reports whether the label carries nothing to apply.
func (l Label) IsEmpty() bool {
	return (l.Ownership == "" || l.Ownership == core.OwnershipUnknown) &&
		l.ZoningSymbol == "" && len(l.Purposes) == 0 && l.Gmina == ""
}

// Source looks up labels for parcels.
type Source interface {
	// Labels returns the labels known for ids. IDs the source has no
	// record of are absent from the result.
	Labels(ctx context.Context, ids []string) (map[string]Label, error)

	// Close releases the source's resources.
	Close(ctx context.Context) error
}

// Apply merges l into p and reports whether p changed.
// Values already present on the parcel win.
func Apply(p *core.Parcel, l Label) bool {
	changed := false
	if (p.Ownership == "" || p.Ownership == core.OwnershipUnknown) &&
		l.Ownership != "" && l.Ownership != core.OwnershipUnknown {
		p.Ownership = l.Ownership
		changed = true
	}
	if p.Administrative.Gmina == "" && l.Gmina != "" {
		p.Administrative.Gmina = l.Gmina
		changed = true
	}
	switch {
	case p.Zoning == nil && (l.ZoningSymbol != "" || len(l.Purposes) > 0):
		p.Zoning = &core.Zoning{Symbol: l.ZoningSymbol, Purposes: slices.Clone(l.Purposes)}
		changed = true
	case p.Zoning != nil:
		if p.Zoning.Symbol == "" && l.ZoningSymbol != "" {
			p.Zoning.Symbol = l.ZoningSymbol
			changed = true
		}
		if len(p.Zoning.Purposes) == 0 && len(l.Purposes) > 0 {
			p.Zoning.Purposes = slices.Clone(l.Purposes)
			changed = true
		}
	}
	return changed
}

// Static is a Source backed by a fixed map.
type Static map[string]Label

var _ Source = Static(nil)

// Labels implements Source.
func (s Static) Labels(ctx context.Context, ids []string) (map[string]Label, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]Label)
	for _, id := range ids {
		if l, ok := s[id]; ok {
			out[id] = l
		}
	}
	return out, nil
}

// Close implements Source.
func (s Static) Close(context.Context) error {
	return nil
}
