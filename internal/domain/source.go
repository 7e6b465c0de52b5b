package domain

import "time"

// Source is a deck directory or git repository cards were imported from.
// LastImported is zero when the source was never imported.
type Source struct {
	Path         string    `json:"path"`
	Kind         string    `json:"kind"`
	LastImported time.Time `json:"last_imported"`
}
