package domain

import "context"

// Database defines lifecycle operations for the underlying store.
// The store handle is constructed at startup and injected into every
// component that needs it; nothing holds a package-level connection.
type Database interface {
	Migrate(ctx context.Context) error
	Close() error
}
