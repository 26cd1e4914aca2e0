package servers

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a server id resolves to nothing.
var ErrNotFound = errors.New("server not found")

type Provider interface {
	// Resolve a server row by its id.
	ResolveServerByID(ctx context.Context, id string) (Server, error)
	ListServers(ctx context.Context) ([]Server, error)
	// Decrypted admin credentials for the server.
	AdminCredentials(ctx context.Context, id string) (Credentials, error)
	// Upsert a server with its admin password and optional notification SMTP
	// password (both encrypted at rest). Returns the server id.
	UpsertServer(ctx context.Context, s Server, password, notifyPassword string) (string, error)

	// NotifyPassword returns the persisted SMTP password for the notification
	// settings rewrite; the panel never returns it on fetch.
	NotifyPassword(ctx context.Context, id string) (string, error)
	SetNotifyPassword(ctx context.Context, id, password string) error

	// Last updater bookkeeping backing the concurrent-modification warning.
	LastUpdater(ctx context.Context, id string) (string, error)
	RecordUpdater(ctx context.Context, id, actor string) error
}
