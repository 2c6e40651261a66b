package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/folio/pkg/storage/sqlstore"
)

// ErrKeyNotFound is returned when no key matches
var ErrKeyNotFound = errors.New("api key not found")

// KeyStore persists API keys
type KeyStore interface {
	CreateKey(ctx context.Context, key *APIKey) error
	GetKeyByHash(ctx context.Context, hash string) (*APIKey, error)
	TouchKey(ctx context.Context, id string, at time.Time) error
	RevokeKey(ctx context.Context, organizationID, id string, at time.Time) error
	ListKeys(ctx context.Context, organizationID string) ([]*APIKey, error)
}

// DB is the subset of *sql.DB the key store uses
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// APIKeysTable returns the api_keys DDL for the dialect
func APIKeysTable(d sqlstore.Dialect) string {
	ts := "TIMESTAMPTZ"
	if d == sqlstore.SQLite {
		ts = "TIMESTAMP"
	}
	return strings.ReplaceAll(`CREATE TABLE IF NOT EXISTS api_keys (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	name TEXT NOT NULL,
	key_hash TEXT NOT NULL UNIQUE,
	key_prefix TEXT NOT NULL,
	scopes TEXT NOT NULL,
	expires_at {{ts}},
	last_used_at {{ts}},
	created_at {{ts}} NOT NULL,
	revoked_at {{ts}}
)`, "{{ts}}", ts)
}

const keyColumns = "id, organization_id, name, key_hash, key_prefix, scopes, expires_at, last_used_at, created_at, revoked_at"

// SQLKeyStore stores keys in the api_keys table
type SQLKeyStore struct {
	db DB
	d  sqlstore.Dialect
}

// NewSQLKeyStore creates a key store for the dialect
func NewSQLKeyStore(db DB, d sqlstore.Dialect) *SQLKeyStore {
	return &SQLKeyStore{db: db, d: d}
}

func (s *SQLKeyStore) p(n int) string { return s.d.Placeholder(n) }

func (s *SQLKeyStore) timeArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return s.d.TimeArg(*t)
}

// CreateKey inserts a key
func (s *SQLKeyStore) CreateKey(ctx context.Context, key *APIKey) error {
	scopes, err := json.Marshal(key.Scopes)
	if err != nil {
		return fmt.Errorf("failed to marshal scopes: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO api_keys (id, organization_id, name, key_hash, key_prefix, scopes, expires_at, created_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`, s.p(1), s.p(2), s.p(3), s.p(4), s.p(5), s.p(6), s.p(7), s.p(8))
	_, err = s.db.ExecContext(ctx, query,
		key.ID, key.OrganizationID, key.Name, key.KeyHash, key.KeyPrefix, string(scopes),
		s.timeArg(key.ExpiresAt), s.d.TimeArg(key.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert api key: %w", err)
	}
	return nil
}

// GetKeyByHash loads the key with the given hash
func (s *SQLKeyStore) GetKeyByHash(ctx context.Context, hash string) (*APIKey, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+keyColumns+" FROM api_keys WHERE key_hash = "+s.p(1), hash)
	key, err := scanKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	return key, err
}

// TouchKey records the last use of a key
func (s *SQLKeyStore) TouchKey(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = "+s.p(1)+" WHERE id = "+s.p(2), s.d.TimeArg(at), id)
	if err != nil {
		return fmt.Errorf("failed to update api key usage: %w", err)
	}
	return nil
}

// RevokeKey marks a key of the organization revoked
func (s *SQLKeyStore) RevokeKey(ctx context.Context, organizationID, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE api_keys SET revoked_at = "+s.p(1)+" WHERE id = "+s.p(2)+" AND organization_id = "+s.p(3)+" AND revoked_at IS NULL",
		s.d.TimeArg(at), id, organizationID)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	if n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// ListKeys lists an organization's keys, newest first
func (s *SQLKeyStore) ListKeys(ctx context.Context, organizationID string) ([]*APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+keyColumns+" FROM api_keys WHERE organization_id = "+s.p(1)+" ORDER BY created_at DESC, id DESC", organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*APIKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	return keys, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanKey(row scanner) (*APIKey, error) {
	var (
		key                          APIKey
		scopes                       string
		expires, lastUsed, revokedAt sql.NullTime
	)
	err := row.Scan(&key.ID, &key.OrganizationID, &key.Name, &key.KeyHash, &key.KeyPrefix, &scopes,
		&expires, &lastUsed, &key.CreatedAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	} else if err != nil {
		return nil, fmt.Errorf("failed to scan api key: %w", err)
	}
	if err := json.Unmarshal([]byte(scopes), &key.Scopes); err != nil {
		return nil, fmt.Errorf("failed to decode scopes of key %s: %w", key.ID, err)
	}
	key.ExpiresAt = nullTime(expires)
	key.LastUsedAt = nullTime(lastUsed)
	key.RevokedAt = nullTime(revokedAt)
	key.CreatedAt = key.CreatedAt.UTC()
	return &key, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
