package labels

import (
	"context"
	"testing"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name        string
		parcel      core.Parcel
		label       Label
		wantChanged bool
		check       func(t *testing.T, p *core.Parcel)
	}{
		{
			name:        "fills unknown ownership",
			parcel:      core.Parcel{Ownership: core.OwnershipUnknown},
			label:       Label{Ownership: core.OwnershipMunicipal},
			wantChanged: true,
			check: func(t *testing.T, p *core.Parcel) {
				assert.Equal(t, core.OwnershipMunicipal, p.Ownership)
			},
		},
		{
			name:   "keeps known ownership",
			parcel: core.Parcel{Ownership: core.OwnershipPrivate},
			label:  Label{Ownership: core.OwnershipState},
			check: func(t *testing.T, p *core.Parcel) {
				assert.Equal(t, core.OwnershipPrivate, p.Ownership)
			},
		},
		{
			name:        "creates zoning for unzoned parcel",
			parcel:      core.Parcel{},
			label:       Label{ZoningSymbol: "MN", Purposes: []string{core.PurposeResidentialSingle}},
			wantChanged: true,
			check: func(t *testing.T, p *core.Parcel) {
				require.NotNil(t, p.Zoning)
				assert.Equal(t, "MN", p.Zoning.Symbol)
				assert.Equal(t, []string{core.PurposeResidentialSingle}, p.Zoning.Purposes)
			},
		},
		{
			name:        "fills purposes but keeps symbol",
			parcel:      core.Parcel{Zoning: &core.Zoning{Symbol: "MN/U", MaxHeightM: 12}},
			label:       Label{ZoningSymbol: "U", Purposes: []string{core.PurposeServices}},
			wantChanged: true,
			check: func(t *testing.T, p *core.Parcel) {
				assert.Equal(t, "MN/U", p.Zoning.Symbol)
				assert.Equal(t, 12.0, p.Zoning.MaxHeightM)
				assert.Equal(t, []string{core.PurposeServices}, p.Zoning.Purposes)
			},
		},
		{
			name:        "fills gmina",
			parcel:      core.Parcel{},
			label:       Label{Gmina: "Sopot"},
			wantChanged: true,
			check: func(t *testing.T, p *core.Parcel) {
				assert.Equal(t, "Sopot", p.Administrative.Gmina)
			},
		},
		{
			name:   "empty label",
			parcel: core.Parcel{Ownership: core.OwnershipUnknown},
			label:  Label{},
			check: func(t *testing.T, p *core.Parcel) {
				assert.Nil(t, p.Zoning)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.parcel
			assert.Equal(t, tt.wantChanged, Apply(&p, tt.label))
			tt.check(t, &p)
		})
	}
}

func TestApplyDoesNotAliasPurposes(t *testing.T) {
	l := Label{Purposes: []string{core.PurposeServices}}
	var p core.Parcel
	Apply(&p, l)
	p.Zoning.Purposes[0] = core.PurposeIndustrial
	assert.Equal(t, core.PurposeServices, l.Purposes[0])
}

func TestLabelIsEmpty(t *testing.T) {
	assert.True(t, Label{}.IsEmpty())
	assert.True(t, Label{Ownership: core.OwnershipUnknown}.IsEmpty())
	assert.False(t, Label{Gmina: "Gdańsk"}.IsEmpty())
}

func TestStatic(t *testing.T) {
	src := Static{
		"a": {Ownership: core.OwnershipState},
		"b": {Gmina: "Gdańsk"},
	}
	got, err := src.Labels(context.Background(), []string{"a", "missing"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, core.OwnershipState, got["a"].Ownership)
	assert.NoError(t, src.Close(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Labels(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}
