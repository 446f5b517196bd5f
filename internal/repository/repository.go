// Package repository declares the persistence interfaces. Implementations
// live in sub-packages (sqlite).
package repository

import "context"

// PreferenceRepository stores UI preferences as opaque string values.
// Get returns an error wrapping apperror.ErrNotFound for an unknown key.
type PreferenceRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
