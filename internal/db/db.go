package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"memberbot/internal/config"
)

// NewPool construye y devuelve un pool de conexiones configurado.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

const membersSchema = `
	CREATE TABLE IF NOT EXISTS members (
		id               BIGSERIAL PRIMARY KEY,
		external_user_id TEXT NOT NULL UNIQUE,
		display_name     TEXT NOT NULL DEFAULT '',
		phone            TEXT NOT NULL DEFAULT '',
		card_number      TEXT NOT NULL DEFAULT '',
		photo_url        TEXT NOT NULL DEFAULT '',
		qr_code_url      TEXT NOT NULL DEFAULT '',
		state            SMALLINT NOT NULL DEFAULT 1,
		pending_phone    TEXT,
		created_at       TIMESTAMPTZ NOT NULL,
		last_active_at   TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS members_state_last_active_idx ON members (state, last_active_at);
`

// EnsureSchema crea la tabla de miembros si todavia no existe.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, membersSchema)
	return err
}

// Ping verifica conectividad con la base de datos.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	return pool.Ping(ctx)
}
