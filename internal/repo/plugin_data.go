package repo

import (
	"context"
	"database/sql"
	"errors"
)

// PluginDataRepo is a wholesale key/value store. Values are JSON documents
// read and written in full; there is no partial update.
type PluginDataRepo struct {
	db *sql.DB
}

// NewPluginDataRepo returns a new PluginDataRepo.
func NewPluginDataRepo(db *sql.DB) *PluginDataRepo {
	return &PluginDataRepo{db: db}
}

// Get returns the stored value for key, or nil when the key has never been written.
func (r *PluginDataRepo) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM plugin_data WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set replaces the value stored under key.
func (r *PluginDataRepo) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO plugin_data (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	return err
}
