// Package system provides the default ports.Clock and ports.IDGenerator
// wired in production: wall-clock time and google/uuid. The in-memory test
// module and the memory store tests use these same implementations.
package system

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Clock returns the real wall clock, always normalized to UTC.
type Clock struct{}

func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// IDGenerator mints random UUIDv4 strings via google/uuid.
type IDGenerator struct{}

func (IDGenerator) NewID(_ context.Context) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
