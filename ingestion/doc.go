// Package ingestion accepts enriched parcel records from the external feature
// pipeline and stores the ones fit for indexing.
//
// Each record is validated first; records missing geometry, a positive area,
// or both scores and the raw features to compute them are rejected with a
// reason and never stored. Accepted records are optionally merged with labels
// from a labels.Source, have zoning purposes expanded from the plan symbol,
// get scores and quality buckets from the feature scorer, and are written to
// the parcel repository in batches on a worker pool.
//
// Ingestion does not touch the live index. A rebuild picks the stored
// parcels up.
package ingestion
