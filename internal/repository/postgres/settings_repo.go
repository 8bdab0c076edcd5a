package postgres

import "context"

type settingsRepo struct{ q querier }

func (r *settingsRepo) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := r.q.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, key).Scan(&v)
	return v, mapErr(err)
}

func (r *settingsRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.q.Exec(ctx, `
INSERT INTO settings(key, value) VALUES($1,$2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	return err
}
