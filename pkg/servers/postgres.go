// pkg/servers/postgres.go
package servers

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgProvider implements Provider backed by PostgreSQL.
type pgProvider struct {
	dbPool *pgxpool.Pool      // Connection pool to PostgreSQL
	log    *zap.SugaredLogger // Logger for diagnostic output
	key    []byte             // symmetric key for secrets at rest
}

// NewPostgresProvider constructs a PostgreSQL-backed server registry.
func NewPostgresProvider(dbPool *pgxpool.Pool, log *zap.SugaredLogger, encryptionKey string) Provider {
	var k []byte
	if encryptionKey != "" {
		k = []byte(encryptionKey)
	}
	return &pgProvider{dbPool: dbPool, log: log, key: k}
}

// EnsureSchema creates required tables if they do not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS panel_servers (
  id uuid PRIMARY KEY,
  name text UNIQUE,
  base_url text NOT NULL,
  username text NOT NULL,
  password_encrypted bytea,
  notify_password_encrypted bytea,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS panel_sync_state (
  server_id uuid PRIMARY KEY REFERENCES panel_servers(id) ON DELETE CASCADE,
  last_updated_by text,
  last_updated_at timestamptz NOT NULL DEFAULT NOW()
);
-- Backfill / ensure new columns exist (for upgrades)
ALTER TABLE panel_servers ADD COLUMN IF NOT EXISTS notify_password_encrypted bytea;
`)
	return err
}

func (p *pgProvider) ResolveServerByID(ctx context.Context, id string) (Server, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT id,COALESCE(name,''),base_url,username FROM panel_servers WHERE id=$1`, id)
	var s Server
	if err := row.Scan(&s.ID, &s.Name, &s.BaseURL, &s.Username); err != nil {
		return Server{}, ErrNotFound
	}
	return s, nil
}

func (p *pgProvider) ListServers(ctx context.Context) ([]Server, error) {
	rows, err := p.dbPool.Query(ctx, `SELECT id,COALESCE(name,''),base_url,username FROM panel_servers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Server
	for rows.Next() {
		var s Server
		if err := rows.Scan(&s.ID, &s.Name, &s.BaseURL, &s.Username); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (p *pgProvider) AdminCredentials(ctx context.Context, id string) (Credentials, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT username, password_encrypted FROM panel_servers WHERE id=$1`, id)
	var user string
	var enc []byte
	if err := row.Scan(&user, &enc); err != nil {
		return Credentials{}, ErrNotFound
	}
	pw, err := decryptSecret(enc, p.key)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Username: user, Password: pw}, nil
}

func (p *pgProvider) UpsertServer(ctx context.Context, s Server, password, notifyPassword string) (string, error) {
	id := strings.TrimSpace(s.ID)
	if id == "" {
		id = uuid.NewString()
	}
	enc, err := encryptSecret(password, p.key)
	if err != nil {
		return "", err
	}
	var notifyEnc []byte
	if notifyPassword != "" {
		if notifyEnc, err = encryptSecret(notifyPassword, p.key); err != nil {
			return "", err
		}
	}
	_, err = p.dbPool.Exec(ctx, `
		INSERT INTO panel_servers(id,name,base_url,username,password_encrypted,notify_password_encrypted)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET
		  name=EXCLUDED.name,
		  base_url=EXCLUDED.base_url,
		  username=EXCLUDED.username,
		  password_encrypted=COALESCE(EXCLUDED.password_encrypted, panel_servers.password_encrypted),
		  notify_password_encrypted=COALESCE(EXCLUDED.notify_password_encrypted, panel_servers.notify_password_encrypted),
		  updated_at=NOW()
	`, id, nullIfEmpty(s.Name), s.BaseURL, s.Username, enc, notifyEnc)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *pgProvider) NotifyPassword(ctx context.Context, id string) (string, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT notify_password_encrypted FROM panel_servers WHERE id=$1`, id)
	var enc []byte
	if err := row.Scan(&enc); err != nil {
		return "", ErrNotFound
	}
	if len(enc) == 0 {
		return "", nil
	}
	return decryptSecret(enc, p.key)
}

func (p *pgProvider) SetNotifyPassword(ctx context.Context, id, password string) error {
	enc, err := encryptSecret(password, p.key)
	if err != nil {
		return err
	}
	_, err = p.dbPool.Exec(ctx, `UPDATE panel_servers SET notify_password_encrypted=$1, updated_at=NOW() WHERE id=$2`, enc, id)
	return err
}

func (p *pgProvider) LastUpdater(ctx context.Context, id string) (string, error) {
	var actor string
	// Missing row means nobody has written yet; not an error.
	_ = p.dbPool.QueryRow(ctx, `SELECT COALESCE(last_updated_by,'') FROM panel_sync_state WHERE server_id=$1`, id).Scan(&actor)
	return actor, nil
}

func (p *pgProvider) RecordUpdater(ctx context.Context, id, actor string) error {
	_, err := p.dbPool.Exec(ctx, `
		INSERT INTO panel_sync_state(server_id, last_updated_by, last_updated_at)
		VALUES ($1,$2,NOW())
		ON CONFLICT (server_id) DO UPDATE SET last_updated_by=EXCLUDED.last_updated_by, last_updated_at=NOW()
	`, id, actor)
	return err
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
