package badger

// NewMemoryRepositories creates in-memory parcel and snapshot repositories for testing.
// Returns parcelRepo, snapshotRepo, backend, and error.
// Caller must close the backend when done.
func NewMemoryRepositories() (*ParcelRepository, *SnapshotRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}
	return NewParcelRepository(backend), NewSnapshotRepository(backend), backend, nil
}
