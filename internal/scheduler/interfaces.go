package scheduler

// PriceSyncerInterface defines the contract for market data sync operations
// Used by scheduler jobs to enable testing with mocks
type PriceSyncerInterface interface {
	SyncPrices() (int, error)
}

// CachePrunerInterface defines the contract for cache pruning
type CachePrunerInterface interface {
	Prune() (int64, error)
}

// SnapshotterInterface defines the contract for portfolio snapshots
type SnapshotterInterface interface {
	TakeSnapshot() error
}
