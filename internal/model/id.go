package model

import "github.com/oklog/ulid/v2"

// NewID generates a new ULID string used to correlate one pipeline run
// across log lines and responses.
func NewID() string {
	return ulid.Make().String()
}
