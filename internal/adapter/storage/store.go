// Package storage persists raster artifacts and analysis outputs behind a
// backend-agnostic Store interface. Local disk is the default backend;
// S3-compatible object storage and an in-memory store (tests, ephemeral
// deployments) are also provided.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load and Delete when no artifact exists under
// the given name.
var ErrNotFound = errors.New("storage: artifact not found")

// Store saves and retrieves named artifact payloads. Names are flat; the
// artifact naming scheme encodes provenance, so no hierarchy is needed.
type Store interface {
	// Save writes the payload under name, overwriting any previous
	// version, and returns a backend-specific location string for logs.
	Save(ctx context.Context, name string, data []byte) (string, error)
	Load(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
}
