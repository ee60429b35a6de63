package core

import (
	"errors"
	"math"
	"testing"
)

func validParcel() *Parcel {
	return &Parcel{
		ID:       "146502_8.0001.12/3",
		Geometry: Rectangle(Point{X: 470000, Y: 720000}, 30, 35),
		AreaM2:   1050,
		Distances: map[POIKind]float64{
			POIForest: 240,
		},
	}
}

func TestValidateParcel(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Parcel)
		wantErr error
	}{
		{
			name:    "valid parcel",
			mutate:  func(p *Parcel) {},
			wantErr: nil,
		},
		{
			name: "valid parcel with scores and no raw features",
			mutate: func(p *Parcel) {
				p.Distances = nil
				p.Scores = &Scores{Quietness: 80, Nature: 40, Accessibility: 55}
			},
			wantErr: nil,
		},
		{
			name:    "empty id",
			mutate:  func(p *Parcel) { p.ID = "" },
			wantErr: ErrEmptyID,
		},
		{
			name:    "missing geometry",
			mutate:  func(p *Parcel) { p.Geometry = Polygon{} },
			wantErr: ErrMissingGeometry,
		},
		{
			name: "degenerate ring",
			mutate: func(p *Parcel) {
				p.Geometry = Polygon{Rings: [][]Point{{{X: 0, Y: 0}, {X: 1, Y: 1}}}}
			},
			wantErr: ErrMissingGeometry,
		},
		{
			name:    "zero area",
			mutate:  func(p *Parcel) { p.AreaM2 = 0 },
			wantErr: ErrNonPositiveArea,
		},
		{
			name:    "NaN area",
			mutate:  func(p *Parcel) { p.AreaM2 = math.NaN() },
			wantErr: ErrNonPositiveArea,
		},
		{
			name:    "negative distance",
			mutate:  func(p *Parcel) { p.Distances[POIWater] = -3 },
			wantErr: ErrInvalidDistance,
		},
		{
			name: "coverage above one",
			mutate: func(p *Parcel) {
				p.BufferCoverage = map[CoverKind]float64{CoverForest: 1.2}
			},
			wantErr: ErrInvalidCoverage,
		},
		{
			name:    "score out of range",
			mutate:  func(p *Parcel) { p.Scores = &Scores{Quietness: 101} },
			wantErr: ErrScoreOutOfRange,
		},
		{
			name:    "no scores and no raw features",
			mutate:  func(p *Parcel) { p.Distances = nil },
			wantErr: ErrMissingScores,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParcel()
			tt.mutate(p)
			err := ValidateParcel(p)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateParcel() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateParcel() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidParcel) {
				t.Errorf("ValidateParcel() error = %v, should wrap ErrInvalidParcel", err)
			}
		})
	}
}

func TestValidateParcelNil(t *testing.T) {
	if err := ValidateParcel(nil); !errors.Is(err, ErrInvalidParcel) {
		t.Errorf("ValidateParcel(nil) error = %v, want ErrInvalidParcel", err)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(ErrIndexUnavailable) {
		t.Error("ErrIndexUnavailable should be retryable")
	}
	for _, err := range []error{ErrConfiguration, ErrInvalidRequest, ErrNoCoverage, nil} {
		if IsRetryable(err) {
			t.Errorf("%v should not be retryable", err)
		}
	}
}
