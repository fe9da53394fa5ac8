package storage

import "time"

// Collection is one stored key/value row.
type Collection struct {
	Key       string
	Size      int
	UpdatedAt time.Time
}
