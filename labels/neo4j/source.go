// Package neo4j reads parcel labels from a Neo4j land registry graph.
package neo4j

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/labels"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// DefaultQuery returns one row per parcel and zone. It expects parcels as
// (:Parcel {id}) nodes linked to their gmina, ownership class and plan zone.
const DefaultQuery = `UNWIND $ids AS id
MATCH (p:Parcel {id: id})
OPTIONAL MATCH (p)-[:IN_GMINA]->(g:Gmina)
OPTIONAL MATCH (p)-[:HAS_OWNERSHIP]->(o:OwnershipType)
OPTIONAL MATCH (p)-[:IN_ZONE]->(z:PlanZone)
RETURN p.id AS id, g.name AS gmina, o.name AS ownership, z.symbol AS zoning_symbol, z.purposes AS purposes
ORDER BY id`

const defaultBatchSize = 1000

// Config locates the graph.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Source is a labels.Source backed by a Neo4j driver.
type Source struct {
	driver    neo4j.DriverWithContext
	database  string
	query     string
	batchSize int
	logger    *slog.Logger
}

var _ labels.Source = (*Source)(nil)

// Option configures a Source.
type Option func(*Source) error

// WithQuery replaces DefaultQuery. The query receives $ids and must return
// the columns id, gmina, ownership, zoning_symbol and purposes.
func WithQuery(query string) Option {
	return func(s *Source) error {
		if strings.TrimSpace(query) == "" {
			return fmt.Errorf("%w: empty label query", core.ErrConfiguration)
		}
		s.query = query
		return nil
	}
}

// WithBatchSize sets how many IDs are sent per query.
// Default is 1000.
func WithBatchSize(n int) Option {
	return func(s *Source) error {
		if n < 1 {
			return fmt.Errorf("%w: label batch size must be positive", core.ErrConfiguration)
		}
		s.batchSize = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// Open connects to the graph and verifies connectivity.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Source, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("%w: neo4j uri required", core.ErrConfiguration)
	}
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", labels.ErrSourceUnavailable, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("%w: %v", labels.ErrSourceUnavailable, err)
	}
	s, err := New(driver, cfg.Database, opts...)
	if err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

// New wraps an existing driver. The Source takes ownership of it.
func New(driver neo4j.DriverWithContext, database string, opts ...Option) (*Source, error) {
	s := &Source{
		driver:    driver,
		database:  database,
		query:     DefaultQuery,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "labels", "source", "neo4j")
	return s, nil
}

// Labels implements labels.Source.
func (s *Source) Labels(ctx context.Context, ids []string) (map[string]labels.Label, error) {
	out := make(map[string]labels.Label, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
	defer func() { _ = session.Close(ctx) }()

	for lo := 0; lo < len(ids); lo += s.batchSize {
		batch := ids[lo:min(lo+s.batchSize, len(ids))]
		_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, s.query, map[string]any{"ids": batch})
			if err != nil {
				return nil, err
			}
			for res.Next(ctx) {
				id, l, ok := decodeRecord(res.Record())
				if !ok {
					continue
				}
				out[id] = merge(out[id], l)
			}
			return nil, res.Err()
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", labels.ErrSourceUnavailable, err)
		}
	}
	s.logger.Debug("labels fetched", "requested", len(ids), "found", len(out))
	return out, nil
}

// Close implements labels.Source.
func (s *Source) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// decodeRecord turns one result row into a label. Rows without an id are skipped.
func decodeRecord(rec *neo4j.Record) (string, labels.Label, bool) {
	if rec == nil {
		return "", labels.Label{}, false
	}
	id := stringValue(rec, "id")
	if id == "" {
		return "", labels.Label{}, false
	}
	l := labels.Label{
		Gmina:        stringValue(rec, "gmina"),
		ZoningSymbol: stringValue(rec, "zoning_symbol"),
	}
	if o := stringValue(rec, "ownership"); o != "" {
		l.Ownership = core.ParseOwnership(o)
	}
	if v, ok := rec.Get("purposes"); ok {
		if list, ok := v.([]any); ok {
			for _, item := range list {
				if p, ok := item.(string); ok && core.IsKnownPurpose(p) {
					l.Purposes = append(l.Purposes, p)
				}
			}
		}
	}
	return id, l, true
}

func stringValue(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// merge combines rows for the same parcel; the first non-empty value wins.
func merge(a, b labels.Label) labels.Label {
	if a.Ownership == "" || a.Ownership == core.OwnershipUnknown {
		a.Ownership = b.Ownership
	}
	if a.Gmina == "" {
		a.Gmina = b.Gmina
	}
	if a.ZoningSymbol == "" {
		a.ZoningSymbol = b.ZoningSymbol
	}
	if len(a.Purposes) == 0 {
		a.Purposes = b.Purposes
	}
	return a
}
