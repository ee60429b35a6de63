package filter

import (
	"slices"
	"strings"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
)

// PurposeTable maps a zoning plan symbol onto the permitted-use profiles it implies.
type PurposeTable map[string][]string

// DefaultPurposeTable covers the symbols used by Polish local land-use plans.
func DefaultPurposeTable() PurposeTable {
	return PurposeTable{
		"MN":   {core.PurposeResidentialSingle},
		"MW":   {core.PurposeResidentialMulti},
		"MN/U": {core.PurposeResidentialSingle, core.PurposeServices, core.PurposeMixedUse},
		"MW/U": {core.PurposeResidentialMulti, core.PurposeServices, core.PurposeMixedUse},
		"M":    {core.PurposeMixedUse, core.PurposeResidentialSingle, core.PurposeResidentialMulti},
		"U":    {core.PurposeServices},
		"RM":   {core.PurposeAgricultural, core.PurposeResidentialSingle},
		"R":    {core.PurposeAgricultural},
		"ZL":   {core.PurposeForest},
		"P":    {core.PurposeIndustrial},
		"P/U":  {core.PurposeIndustrial, core.PurposeServices},
	}
}

// Lookup returns the purposes for a symbol, matching case-insensitively.
func (t PurposeTable) Lookup(symbol string) []string {
	return t[strings.ToUpper(strings.TrimSpace(symbol))]
}

// Permits reports whether zoning allows purpose, either explicitly or through
// its symbol. Unzoned parcels permit nothing.
func (t PurposeTable) Permits(z *core.Zoning, purpose string) bool {
	if z == nil {
		return false
	}
	return slices.Contains(z.Purposes, purpose) || slices.Contains(t.Lookup(z.Symbol), purpose)
}

// Expand fills empty Purposes from the symbol so the embedding sees them.
func (t PurposeTable) Expand(z *core.Zoning) {
	if z == nil || len(z.Purposes) > 0 {
		return
	}
	z.Purposes = slices.Clone(t.Lookup(z.Symbol))
}
