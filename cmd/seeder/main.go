package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"

	dzialka "github.com/MarcinSar/moja-dzialka-sub000"
	"github.com/MarcinSar/moja-dzialka-sub000/config"
	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/ingestion"
	"github.com/MarcinSar/moja-dzialka-sub000/spatial"
)

// gmina is a seeding area: parcels scatter around its centre.
type gmina struct {
	name     string
	powiat   string
	lat, lon float64
	spreadM  float64
	urban    float64 // 0 rural .. 1 dense city
}

var gminas = []gmina{
	{"Gdańsk", "Gdańsk", 54.352, 18.646, 6000, 0.9},
	{"Sopot", "Sopot", 54.441, 18.560, 1500, 0.8},
	{"Gdynia", "Gdynia", 54.518, 18.531, 5000, 0.8},
	{"Pruszcz Gdański", "gdański", 54.262, 18.636, 2500, 0.5},
	{"Kolbudy", "gdański", 54.268, 18.468, 4000, 0.2},
	{"Żukowo", "kartuski", 54.342, 18.361, 4500, 0.25},
}

var zoningSymbols = []string{"MN", "MN", "MN", "MN/U", "MW", "U", "R", "ZL"}

var ownerships = []core.OwnershipType{
	core.OwnershipPrivate, core.OwnershipPrivate, core.OwnershipPrivate,
	core.OwnershipMunicipal, core.OwnershipState, core.OwnershipChurch, core.OwnershipUnknown,
}

var (
	count     = flag.Int("n", 2000, "number of parcels to generate")
	seed      = flag.Uint64("seed", 42, "random seed")
	outFile   = flag.String("out", "", "write JSON Lines here instead of stdout")
	dbPath    = flag.String("db", "", "ingest into this database and rebuild the index instead of writing JSON Lines")
	batchSize = flag.Int("batch", 500, "parcels per ingestion batch")
)

func init() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// parcels returns an iterator over n synthetic parcels. The same seed
// always yields the same parcels.
func parcels(n int, seed uint64) iter.Seq[*core.Parcel] {
	return func(yield func(*core.Parcel) bool) {
		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		for i := range n {
			if !yield(parcel(rng, i)) {
				return
			}
		}
	}
}

func parcel(rng *rand.Rand, i int) *core.Parcel {
	g := gminas[i%len(gminas)]
	centre := spatial.FromWGS84(g.lat, g.lon)
	angle := rng.Float64() * 2 * math.Pi
	r := g.spreadM * math.Sqrt(rng.Float64())
	sw := core.Point{X: centre.X + r*math.Cos(angle), Y: centre.Y + r*math.Sin(angle)}

	width := 18 + rng.Float64()*40
	depth := 25 + rng.Float64()*70
	if rng.Float64() < 0.1 {
		depth *= 4
	}

	// Rural parcels sit closer to forest and further from services.
	rural := 1 - g.urban
	jitter := func(base float64) float64 {
		return math.Round(base * (0.3 + rng.Float64()*1.4))
	}
	distances := map[core.POIKind]float64{
		core.POIForest:     jitter(200 + 1800*g.urban),
		core.POIWater:      jitter(900),
		core.POISchool:     jitter(400 + 2500*rural),
		core.POIShop:       jitter(250 + 2000*rural),
		core.POIHospital:   jitter(1500 + 6000*rural),
		core.POIBusStop:    jitter(120 + 900*rural),
		core.POIMainRoad:   jitter(300),
		core.POIIndustrial: jitter(800 + 3000*rural),
	}
	if rng.Float64() < 0.05 {
		delete(distances, core.POIHospital)
	}

	forest := math.Min(rng.Float64()*0.6*(1.2-g.urban), 0.9)
	buildings := math.Min(rng.Float64()*0.5*g.urban, 1-forest)
	coverage := map[core.CoverKind]float64{
		core.CoverForest:    round3(forest),
		core.CoverBuildings: round3(buildings),
		core.CoverMeadows:   round3((1 - forest - buildings) * rng.Float64() * 0.5),
	}

	symbol := zoningSymbols[rng.IntN(len(zoningSymbols))]
	var zoning *core.Zoning
	if rng.Float64() < 0.85 {
		zoning = &core.Zoning{Symbol: symbol}
		if symbol == "MN" || symbol == "MN/U" {
			zoning.MaxFootprintRatio = 0.3
			zoning.MaxHeightM = 9 + float64(rng.IntN(3))
			zoning.MaxFloorAreaRatio = 0.6
			zoning.MinGreenRatio = 0.5
		}
	}

	return &core.Parcel{
		ID:       fmt.Sprintf("2261%03d_1.%04d.%d", i%len(gminas)+1, i/len(gminas), rng.IntN(400)+1),
		Geometry: core.Rectangle(sw, width, depth),
		AreaM2:   math.Round(width * depth),
		Administrative: core.Administrative{
			Gmina:  g.name,
			Powiat: g.powiat,
		},
		Ownership:      ownerships[rng.IntN(len(ownerships))],
		Zoning:         zoning,
		Distances:      distances,
		BufferCoverage: coverage,
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// writeJSONLines writes one parcel per line.
func writeJSONLines(w io.Writer, source iter.Seq[*core.Parcel]) (int, error) {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	n := 0
	for p := range source {
		if err := enc.Encode(p); err != nil {
			return n, err
		}
		n++
	}
	return n, bw.Flush()
}

// ingestBatched reads from a source iterator and ingests parcels in batches.
func ingestBatched(ctx context.Context, pipeline *ingestion.Pipeline, source iter.Seq[*core.Parcel], batchSize int) (accepted, rejected int, err error) {
	batch := make([]*core.Parcel, 0, batchSize)
	flush := func() error {
		report, err := pipeline.Ingest(ctx, batch)
		if err != nil {
			return err
		}
		accepted += len(report.Accepted)
		rejected += len(report.Rejected)
		batch = batch[:0]
		return nil
	}

	for p := range source {
		batch = append(batch, p)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return accepted, rejected, err
			}
		}
	}

	// Process any remaining parcels
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return accepted, rejected, err
		}
	}
	return accepted, rejected, nil
}

func seedDatabase(ctx context.Context, path string, source iter.Seq[*core.Parcel]) error {
	cfg := config.Defaults()
	cfg.Storage.Path = path
	engine, err := dzialka.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	ingester, err := engine.NewIngestionPipeline()
	if err != nil {
		return err
	}
	defer ingester.Release()

	accepted, rejected, err := ingestBatched(ctx, ingester, source, max(*batchSize, 1))
	if err != nil {
		return err
	}
	slog.Info("seeded parcels", "accepted", accepted, "rejected", rejected, "db", path)

	_, err = engine.Rebuild(ctx, os.Stderr)
	return err
}

func main() {
	flag.Parse()
	ctx := context.Background()
	source := parcels(*count, *seed)

	if *dbPath != "" {
		if err := seedDatabase(ctx, *dbPath, source); err != nil {
			panic(err)
		}
		return
	}

	var w io.Writer = os.Stdout
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			panic(err)
		}
		defer f.Close()
		w = f
	}
	n, err := writeJSONLines(w, source)
	if err != nil {
		panic(err)
	}
	slog.Info("wrote parcels", "count", n)
}
