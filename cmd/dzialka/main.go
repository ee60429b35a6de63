// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	dzialka "github.com/MarcinSar/moja-dzialka-sub000"
	"github.com/MarcinSar/moja-dzialka-sub000/config"
	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/index"
	"github.com/MarcinSar/moja-dzialka-sub000/rebuild"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "dzialka",
		Usage: "Hybrid preference search over land parcels",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file (defaults apply when missing)",
				Value:   "dzialka.toml",
				EnvVars: []string{"DZIALKA_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); overrides [log] level",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Validate, enrich and store parcels from a JSON Lines file",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "JSON Lines file with one parcel per line, - for stdin",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "rebuild",
						Usage: "Rebuild the index after ingesting",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Parcels enriched and written per batch (0 keeps the configured value)",
					},
				},
			},
			{
				Name:   "rebuild",
				Usage:  "Build a new index generation from every stored parcel",
				Action: rebuildCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "artifact",
						Usage: "Export the generation to this path (overrides [rebuild] artifact_path)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of parcels to read in each batch (0 keeps the configured value)",
					},
				},
			},
			{
				Name:   "export",
				Usage:  "Write the current generation to an artifact file",
				Action: exportCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "out",
						Aliases:  []string{"o"},
						Usage:    "Artifact path",
						Required: true,
					},
				},
			},
			{
				Name:   "query",
				Usage:  "Run one preference query and print the JSON response",
				Action: queryCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "JSON query file, - for stdin; other query flags are ignored",
					},
					&cli.StringFlag{
						Name:  "gmina",
						Usage: "Restrict results to a gmina",
					},
					&cli.Float64Flag{
						Name:  "lat",
						Usage: "Latitude of the search centre",
					},
					&cli.Float64Flag{
						Name:  "lon",
						Usage: "Longitude of the search centre",
					},
					&cli.Float64Flag{
						Name:  "radius",
						Usage: "Search radius in metres around --lat/--lon",
					},
					&cli.StringSliceFlag{
						Name:    "weight",
						Aliases: []string{"w"},
						Usage:   "Preference weight as key=value, e.g. forest=0.9 (repeatable)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum results (0 uses the default)",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "Listen address (overrides [server] listen)",
					},
				},
			},
		},
	}
}

// setup loads the config and configures the default logger from it.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = strings.ToLower(lvl)
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", cfg.Log.Level)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func loadedConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.Defaults()
}

func openEngine(ctx context.Context, c *cli.Context) (*dzialka.Engine, error) {
	engine, err := dzialka.Open(ctx, loadedConfig(c))
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func ingestCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := loadedConfig(c)
	if n := c.Int("batch-size"); n > 0 {
		cfg.Ingestion.BatchSize = n
	}

	in, closeIn, err := openInput(c.String("file"))
	if err != nil {
		return err
	}
	defer closeIn()

	engine, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer engine.Close()

	pipeline, err := engine.NewIngestionPipeline()
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	report, err := pipeline.IngestJSONLines(ctx, in)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	for _, r := range report.Rejected {
		fmt.Fprintf(os.Stderr, "rejected %s: %s\n", r.ID, r.Reason)
	}
	fmt.Fprintf(os.Stderr, "Ingested %d parcels, rejected %d\n", len(report.Accepted), len(report.Rejected))

	if !c.Bool("rebuild") {
		return nil
	}
	if _, err := engine.Rebuild(ctx, os.Stderr); err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	return nil
}

func rebuildCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := loadedConfig(c)
	if path := c.String("artifact"); path != "" {
		cfg.Rebuild.ArtifactPath = path
	}
	if n := c.Int("batch-size"); n > 0 {
		cfg.Rebuild.BatchSize = n
	}

	engine, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(os.Stderr, "Database: %s\n", cfg.Storage.Path)
	fmt.Fprintln(os.Stderr)

	if _, err := engine.Rebuild(ctx, os.Stderr); err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	return nil
}

func exportCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	engine, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer engine.Close()

	gen, err := engine.Restore(ctx, os.Stderr)
	if err != nil {
		return fmt.Errorf("no generation to export: %w", err)
	}
	out := c.String("out")
	if err := index.ExportFile(out, gen); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	h := index.HeaderOf(gen)
	fmt.Fprintf(os.Stderr, "Exported snapshot %s (%d parcels, schema %s) to %s\n",
		h.SnapshotID, h.ParcelCount, h.SchemaVersion, out)
	return nil
}

func queryCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	q, err := buildQuery(c)
	if err != nil {
		return err
	}

	engine, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if _, err := engine.Restore(ctx, io.Discard); err != nil {
		return fmt.Errorf("no generation available: %w", err)
	}
	resp, err := engine.Search(ctx, q)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func serveCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := loadedConfig(c)
	if addr := c.String("listen"); addr != "" {
		cfg.Server.Listen = addr
	}

	engine, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if _, err := engine.Restore(ctx, os.Stderr); err != nil {
		if !errors.Is(err, rebuild.ErrNoParcels) {
			return fmt.Errorf("failed to load index: %w", err)
		}
		slog.Warn("no parcels stored; serving without an index until the next rebuild")
	}

	srv, err := engine.NewServer()
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, cfg.Server.Listen)
}

// buildQuery reads a query from --file or assembles one from flags.
func buildQuery(c *cli.Context) (*core.PreferenceQuery, error) {
	if path := c.String("file"); path != "" {
		in, closeIn, err := openInput(path)
		if err != nil {
			return nil, err
		}
		defer closeIn()
		var q core.PreferenceQuery
		if err := json.NewDecoder(in).Decode(&q); err != nil {
			return nil, fmt.Errorf("%w: decode query: %v", core.ErrInvalidRequest, err)
		}
		return &q, nil
	}

	weights, err := parseWeights(c.StringSlice("weight"))
	if err != nil {
		return nil, err
	}
	q := &core.PreferenceQuery{Weights: weights, Limit: c.Int("limit")}
	if c.IsSet("lat") != c.IsSet("lon") {
		return nil, fmt.Errorf("%w: --lat and --lon must be given together", core.ErrInvalidRequest)
	}
	if gmina := c.String("gmina"); gmina != "" || c.IsSet("lat") {
		q.Location = &core.Location{Gmina: gmina, RadiusM: c.Float64("radius")}
		if c.IsSet("lat") {
			q.Location.Point = &core.LatLon{Lat: c.Float64("lat"), Lon: c.Float64("lon")}
		}
	}
	return q, nil
}

// parseWeights parses key=value pairs into a weight map.
func parseWeights(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	weights := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("%w: weight %q is not key=value", core.ErrInvalidRequest, pair)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: weight %q: %v", core.ErrInvalidRequest, pair, err)
		}
		weights[strings.TrimSpace(key)] = w
	}
	return weights, nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}
