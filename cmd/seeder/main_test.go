package main

import (
	"bytes"
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/features"
	"github.com/MarcinSar/moja-dzialka-sub000/ingestion"
	"github.com/MarcinSar/moja-dzialka-sub000/storage/badger"
)

func TestParcelsAreValidAndUnique(t *testing.T) {
	seen := make(map[string]bool)
	for p := range parcels(300, 7) {
		require.NoError(t, core.ValidateParcel(p), p.ID)
		assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
	}
	assert.Len(t, seen, 300)
}

func TestParcelsAreDeterministic(t *testing.T) {
	a := slices.Collect(parcels(50, 3))
	b := slices.Collect(parcels(50, 3))
	assert.Equal(t, a, b)

	c := slices.Collect(parcels(50, 4))
	assert.NotEqual(t, a, c)
}

func TestWriteJSONLines(t *testing.T) {
	var buf bytes.Buffer
	n, err := writeJSONLines(&buf, parcels(25, 1))
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	decoded, rejected, err := ingestion.DecodeJSONLines(&buf)
	require.NoError(t, err)
	assert.Empty(t, rejected)
	assert.Len(t, decoded, 25)
}

func TestIngestBatched(t *testing.T) {
	repo, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	scorer, err := features.NewScorer(features.DefaultConfig())
	require.NoError(t, err)
	pipeline, err := ingestion.NewPipeline(repo, scorer)
	require.NoError(t, err)
	defer pipeline.Release()

	accepted, rejected, err := ingestBatched(context.Background(), pipeline, parcels(23, 9), 5)
	require.NoError(t, err)
	assert.Equal(t, 23, accepted)
	assert.Zero(t, rejected)

	stored, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 23, stored)
}
