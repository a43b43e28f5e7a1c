package persist

import "time"

// CacheRow is one stored result-cache entry. Data is opaque to the store.
type CacheRow struct {
	Kind      string
	Key       string
	Data      []byte
	CreatedAt time.Time
}

// QuotaState is the persisted daily counter of the metered primary source.
type QuotaState struct {
	Used      int
	ResetDate string // YYYY-MM-DD
}

// scanner interface for both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}
