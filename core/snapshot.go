package core

import "time"

// Snapshot records a published index generation so a restarted process can
// tell which parcel set and embedding schema it last served.
type Snapshot struct {
	ID                 string    `json:"snapshot_id" msgpack:"id"`
	SchemaVersion      string    `json:"schema_version" msgpack:"schema_version"`
	SchemaFingerprint  string    `json:"schema_fingerprint" msgpack:"schema_fingerprint"`
	ContentFingerprint string    `json:"content_fingerprint" msgpack:"content_fingerprint"`
	ParcelCount        int       `json:"parcel_count" msgpack:"parcel_count"`
	RejectedCount      int       `json:"rejected_count" msgpack:"rejected_count"`
	BuiltAt            time.Time `json:"built_at" msgpack:"built_at"`
	PublishedAt        time.Time `json:"published_at" msgpack:"published_at"`
	ArtifactPath       string    `json:"artifact_path,omitempty" msgpack:"artifact_path"`
}
