package dzialka

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarcinSar/moja-dzialka-sub000/config"
	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/features"
	"github.com/MarcinSar/moja-dzialka-sub000/labels"
	"github.com/MarcinSar/moja-dzialka-sub000/rebuild"
)

func testParcel(i int) *core.Parcel {
	x, y := 477000+float64(i%8)*60, 720000+float64(i/8)*60
	return &core.Parcel{
		ID:             fmt.Sprintf("2261011.%04d", i),
		Geometry:       core.Rectangle(core.Point{X: x, Y: y}, 30, 30+float64(i%5)),
		AreaM2:         900 + float64(i%5)*30,
		Administrative: core.Administrative{Gmina: "Gdańsk"},
		Zoning:         &core.Zoning{Symbol: "MN"},
		Distances: map[core.POIKind]float64{
			core.POIForest:   float64(50 + (i*37)%3000),
			core.POIWater:    float64(200 + (i*53)%2000),
			core.POISchool:   float64(300 + (i*17)%1500),
			core.POIBusStop:  float64(100 + (i*29)%900),
			core.POIMainRoad: float64(150 + (i*41)%1200),
		},
		BufferCoverage: map[core.CoverKind]float64{core.CoverForest: float64(i%10) / 10},
	}
}

func testParcels(n int) []*core.Parcel {
	out := make([]*core.Parcel, n)
	for i := range out {
		out[i] = testParcel(i)
	}
	return out
}

func memoryConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Storage.InMemory = true
	cfg.Storage.Path = ""
	return cfg
}

func TestOpen(t *testing.T) {
	t.Run("in memory", func(t *testing.T) {
		e, err := Open(context.Background(), memoryConfig())
		require.NoError(t, err)
		defer e.Close()

		assert.NotNil(t, e.ParcelRepository())
		assert.NotNil(t, e.SnapshotRepository())
		assert.NotNil(t, e.Searcher())
		assert.NotNil(t, e.Metrics())

		_, err = e.Handle().Current()
		assert.ErrorIs(t, err, core.ErrIndexUnavailable)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.Query.DefaultLimit = 0
		_, err := Open(context.Background(), cfg)
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})

	t.Run("storage path is a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(path, []byte("test"), 0o644))
		cfg := config.Defaults()
		cfg.Storage.Path = path
		e, err := Open(context.Background(), cfg)
		assert.Error(t, err)
		assert.Nil(t, e)
	})
}

func TestIngestRebuildSearch(t *testing.T) {
	ctx := context.Background()
	src := labels.Static{"2261011.0003": {Ownership: core.OwnershipMunicipal}}
	e, err := Open(ctx, memoryConfig(), WithLabelSource(src))
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Rebuild(ctx, io.Discard)
	assert.ErrorIs(t, err, rebuild.ErrNoParcels)

	pipeline, err := e.NewIngestionPipeline()
	require.NoError(t, err)
	defer pipeline.Release()

	parcels := testParcels(24)
	parcels = append(parcels, &core.Parcel{ID: "broken"})
	report, err := pipeline.Ingest(ctx, parcels)
	require.NoError(t, err)
	assert.Len(t, report.Accepted, 24)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, "broken", report.Rejected[0].ID)
	assert.Equal(t, 24.0, testutil.ToFloat64(e.Metrics().IngestedTotal.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics().IngestedTotal.WithLabelValues("rejected")))

	stored, err := e.ParcelRepository().GetParcel(ctx, "2261011.0003")
	require.NoError(t, err)
	assert.Equal(t, core.OwnershipMunicipal, stored.Ownership)

	gen, err := e.Rebuild(ctx, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 24, gen.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics().GenerationSwaps))
	assert.Equal(t, 24.0, testutil.ToFloat64(e.Metrics().GenerationParcels))

	snap, err := e.SnapshotRepository().LoadSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, gen.SnapshotID, snap.ID)

	resp, err := e.Search(ctx, &core.PreferenceQuery{
		Location:  &core.Location{Gmina: "Gdańsk"},
		Ownership: []core.OwnershipType{core.OwnershipMunicipal},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "2261011.0003", resp.Results[0].ParcelID)
	assert.True(t, resp.NarrowingSuggested)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics().QueriesTotal.WithLabelValues("sparse")))
}

func TestRebuildAppliesRetunedScoring(t *testing.T) {
	ctx := context.Background()
	cfg := config.Defaults()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "db")

	e, err := Open(ctx, cfg)
	require.NoError(t, err)
	pipeline, err := e.NewIngestionPipeline()
	require.NoError(t, err)
	_, err = pipeline.Ingest(ctx, testParcels(8))
	require.NoError(t, err)
	pipeline.Release()
	gen, err := e.Rebuild(ctx, io.Discard)
	require.NoError(t, err)
	p, ok := gen.Parcel("2261011.0000")
	require.True(t, ok)
	require.NotNil(t, p.Scores)
	assert.Equal(t, 40, p.Scores.Nature)
	require.NoError(t, e.Close())

	cfg.Features.Nature.Forest = features.StepFunction{Steps: []features.Step{{Below: 100, Points: 0}}}
	e, err = Open(ctx, cfg)
	require.NoError(t, err)
	defer e.Close()

	gen, err = e.Rebuild(ctx, io.Discard)
	require.NoError(t, err)
	p, ok = gen.Parcel("2261011.0000")
	require.True(t, ok)
	assert.Equal(t, 10, p.Scores.Nature)
}

func TestRestoreFromArtifact(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Storage.Path = filepath.Join(dir, "db")
	cfg.Rebuild.ArtifactPath = filepath.Join(dir, "generation.msgpack")

	e, err := Open(ctx, cfg)
	require.NoError(t, err)
	pipeline, err := e.NewIngestionPipeline()
	require.NoError(t, err)
	_, err = pipeline.Ingest(ctx, testParcels(16))
	require.NoError(t, err)
	pipeline.Release()
	built, err := e.Rebuild(ctx, io.Discard)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	e, err = Open(ctx, cfg)
	require.NoError(t, err)
	defer e.Close()

	restored, err := e.Restore(ctx, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, built.SnapshotID, restored.SnapshotID)
	assert.Equal(t, built.ContentFingerprint, restored.ContentFingerprint)

	current, err := e.Handle().Current()
	require.NoError(t, err)
	assert.Equal(t, built.SnapshotID, current.SnapshotID)
}

func TestRestoreRejectsSchemaMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Storage.Path = filepath.Join(dir, "db")
	cfg.Rebuild.ArtifactPath = filepath.Join(dir, "generation.msgpack")

	e, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, e.ParcelRepository().AddParcels(ctx, testParcels(12)...))
	_, err = e.Rebuild(ctx, io.Discard)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	before, err := os.ReadFile(cfg.Rebuild.ArtifactPath)
	require.NoError(t, err)

	cfg.Embedding.MaxDistanceM = 5000
	e, err = Open(ctx, cfg)
	require.NoError(t, err)
	defer e.Close()

	gen, err := e.Restore(ctx, io.Discard)
	assert.ErrorIs(t, err, core.ErrConfiguration)
	assert.Nil(t, gen)

	_, err = e.Handle().Current()
	assert.ErrorIs(t, err, core.ErrIndexUnavailable)

	after, err := os.ReadFile(cfg.Rebuild.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRestoreRebuildsOverCorruptArtifact(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Storage.Path = filepath.Join(dir, "db")
	cfg.Rebuild.ArtifactPath = filepath.Join(dir, "generation.msgpack")

	e, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, e.ParcelRepository().AddParcels(ctx, testParcels(12)...))
	_, err = e.Rebuild(ctx, io.Discard)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	require.NoError(t, os.WriteFile(cfg.Rebuild.ArtifactPath, []byte("garbage"), 0o644))

	e, err = Open(ctx, cfg)
	require.NoError(t, err)
	defer e.Close()

	gen, err := e.Restore(ctx, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 12, gen.Len())
}

func TestRestoreFallsBackToRebuild(t *testing.T) {
	ctx := context.Background()
	e, err := Open(ctx, memoryConfig())
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.ParcelRepository().AddParcels(ctx, testParcels(8)...))
	gen, err := e.Restore(ctx, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 8, gen.Len())
}

func TestNewServer(t *testing.T) {
	e, err := Open(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer e.Close()

	s, err := e.NewServer()
	require.NoError(t, err)
	assert.NotNil(t, s.Routes())
}
