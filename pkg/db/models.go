package db

import "time"

// Import is a provenance record for one imported data file.
type Import struct {
	ID          int64
	Path        string
	Format      string
	RecordCount int
	ImportedAt  time.Time
}
