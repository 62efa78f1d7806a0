package store

import "context"

// Well-known keys.
const (
	// KeyAppVersion holds the last application version the user has been
	// shown release notes for. It only ever advances.
	KeyAppVersion = "app_version"
)

// KV is a minimal durable key-value contract used for application state that
// must survive restarts. Values are opaque strings keyed by name.
//
// Get reports ok=false when the key has never been written; that is not an
// error. Set overwrites any previous value.
type KV interface {
	EnsureSchema(ctx context.Context) error
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Close() error
}
