package filter

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
)

// Constraint names reported in Verdict.Matched and Verdict.RejectedBy.
const (
	NameGmina         = "gmina"
	NameZoningSymbol  = "zoning_symbol"
	NameZoningPurpose = "zoning_purpose"
	NameBuildable     = "buildable"
	NameOwnership     = "ownership"
	NameArea          = "area"
	NameQuietness     = "quietness_category"
	NameNature        = "nature_category"
	NameAccessibility = "accessibility_category"
	NameSize          = "size_category"
	NameRadius        = "radius"
)

// Constraints is a conjunction of categorical and range predicates.
// Zero-valued fields impose nothing, so an empty Constraints passes every parcel.
type Constraints struct {
	Gmina         string
	ZoningSymbols []string
	ZoningPurpose string
	BuildableOnly bool
	Ownership     []core.OwnershipType
	Area          *core.AreaRange
	Quietness     []core.QuietnessBucket
	Nature        []core.NatureBucket
	Accessibility []core.AccessibilityBucket
	Size          []core.SizeBucket
}

// IsEmpty reports whether no constraint is set.
func (c *Constraints) IsEmpty() bool {
	return c.Gmina == "" && len(c.ZoningSymbols) == 0 && c.ZoningPurpose == "" && !c.BuildableOnly &&
		len(c.Ownership) == 0 && c.Area == nil && len(c.Quietness) == 0 && len(c.Nature) == 0 &&
		len(c.Accessibility) == 0 && len(c.Size) == 0
}

// Verdict is the outcome of evaluating Constraints against one parcel.
type Verdict struct {
	Passed     bool
	Matched    []string
	RejectedBy string
}

// Filter evaluates Constraints using a zoning symbol table.
// It is immutable and safe for concurrent use.
type Filter struct {
	purposes PurposeTable
}

// New returns a Filter. A nil table falls back to DefaultPurposeTable.
func New(purposes PurposeTable) *Filter {
	if purposes == nil {
		purposes = DefaultPurposeTable()
	}
	return &Filter{purposes: purposes}
}

// Purposes returns the symbol table in use.
func (f *Filter) Purposes() PurposeTable {
	return f.purposes
}

type predicate struct {
	name  string
	set   bool
	check func(p *core.Parcel) bool
}

// Evaluate checks every set constraint in a fixed order and stops at the first
// rejection.
func (f *Filter) Evaluate(p *core.Parcel, c *Constraints) Verdict {
	v := Verdict{Passed: true}
	if c == nil {
		return v
	}
	for _, pr := range f.predicates(c) {
		if !pr.set {
			continue
		}
		if !pr.check(p) {
			return Verdict{Passed: false, Matched: v.Matched, RejectedBy: pr.name}
		}
		v.Matched = append(v.Matched, pr.name)
	}
	return v
}

func (f *Filter) predicates(c *Constraints) []predicate {
	return []predicate{
		{NameGmina, c.Gmina != "", func(p *core.Parcel) bool {
			return strings.EqualFold(p.Administrative.Gmina, c.Gmina)
		}},
		{NameZoningSymbol, len(c.ZoningSymbols) > 0, func(p *core.Parcel) bool {
			return p.Zoning != nil && slices.ContainsFunc(c.ZoningSymbols, func(s string) bool {
				return strings.EqualFold(s, p.Zoning.Symbol)
			})
		}},
		{NameZoningPurpose, c.ZoningPurpose != "", func(p *core.Parcel) bool {
			return f.purposes.Permits(p.Zoning, c.ZoningPurpose)
		}},
		{NameBuildable, c.BuildableOnly, func(p *core.Parcel) bool {
			return p.IsBuildable()
		}},
		{NameOwnership, len(c.Ownership) > 0, func(p *core.Parcel) bool {
			return slices.Contains(c.Ownership, p.Ownership)
		}},
		{NameArea, c.Area != nil, func(p *core.Parcel) bool {
			return c.Area.Contains(p.AreaM2)
		}},
		{NameQuietness, len(c.Quietness) > 0, func(p *core.Parcel) bool {
			return slices.Contains(c.Quietness, p.Category.Quietness)
		}},
		{NameNature, len(c.Nature) > 0, func(p *core.Parcel) bool {
			return slices.Contains(c.Nature, p.Category.Nature)
		}},
		{NameAccessibility, len(c.Accessibility) > 0, func(p *core.Parcel) bool {
			return slices.Contains(c.Accessibility, p.Category.Accessibility)
		}},
		{NameSize, len(c.Size) > 0, func(p *core.Parcel) bool {
			return slices.Contains(c.Size, p.Category.Size)
		}},
	}
}

// ValidateArea rejects empty, non-positive, non-finite or inverted bounds.
func ValidateArea(a *core.AreaRange) error {
	if a == nil {
		return nil
	}
	if a.MinM2 == nil && a.MaxM2 == nil {
		return fmt.Errorf("%w: area range needs min_m2 or max_m2", core.ErrInvalidRequest)
	}
	for _, b := range []struct {
		name string
		v    *float64
	}{{"min_m2", a.MinM2}, {"max_m2", a.MaxM2}} {
		if b.v != nil && (!(*b.v > 0) || math.IsInf(*b.v, 1)) {
			return fmt.Errorf("%w: area %s must be a positive number, got %v", core.ErrInvalidRequest, b.name, *b.v)
		}
	}
	if a.MinM2 != nil && a.MaxM2 != nil && *a.MinM2 > *a.MaxM2 {
		return fmt.Errorf("%w: area min %.0f exceeds max %.0f", core.ErrInvalidRequest, *a.MinM2, *a.MaxM2)
	}
	return nil
}
