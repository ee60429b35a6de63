package badger

import (
	"strings"
)

// Key prefixes for different data types
const (
	parcelPrefix      = "parcel"
	parcelGminaPrefix = "parcelg"
	snapshotKey       = "snapshot:current"
)

// makeParcelKey generates a key for a parcel by ID.
// Format: parcel:id
func makeParcelKey(id string) []byte {
	return []byte(parcelPrefix + ":" + id)
}

// parcelKeyPrefix matches every primary parcel key.
func parcelKeyPrefix() []byte {
	return []byte(parcelPrefix + ":")
}

// makeParcelGminaKey generates a composite key for the gmina index.
// Format: parcelg:gmina:id
func makeParcelGminaKey(gmina, id string) []byte {
	return []byte(parcelGminaPrefix + ":" + normalizeGmina(gmina) + ":" + id)
}

// makePartialParcelGminaKey generates a partial key for gmina queries.
// Format: parcelg:gmina:
func makePartialParcelGminaKey(gmina string) []byte {
	return []byte(parcelGminaPrefix + ":" + normalizeGmina(gmina) + ":")
}

// normalizeGmina lowercases and trims a gmina name so lookups ignore case.
// Colons are replaced because they delimit the key.
func normalizeGmina(gmina string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(gmina)), ":", "_")
}
