package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/worlddriven/worlddriven/internal/logfields"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	defMaxPoolSize        = 10
	defConnectMaxDuration = 2 * time.Minute
)

// Postgres is a Store backed by a PostgreSQL database.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres connects to the database, retrying with an exponential backoff
// until the connection succeeds or defConnectMaxDuration expired, and
// applies the schema migrations.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	logger := zap.L().Named("store")

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database dsn failed: %w", err)
	}
	poolCfg.MaxConns = defMaxPoolSize

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxElapsedTime = defConnectMaxDuration

	var pool *pgxpool.Pool
	var tryCnt uint
	err = backoff.Retry(func() error {
		tryCnt++

		p, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return err
		}

		if err := p.Ping(ctx); err != nil {
			p.Close()
			logger.Info(
				"connecting to database failed, retrying",
				logfields.Event("db_connect_failed"),
				zap.Uint("try_count", tryCnt),
				zap.Error(err),
			)
			return err
		}

		pool = p
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, fmt.Errorf("connecting to database failed: %w", err)
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("database connection established", logfields.Event("db_connected"))

	return &Postgres{pool: pool, logger: logger}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting migration dialect failed: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("applying database migrations failed: %w", err)
	}

	return nil
}

// Close closes all database connections.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) FindRepositoryByOwnerRepo(ctx context.Context, owner, repo string) (*Repository, error) {
	row := p.pool.QueryRow(ctx, `
SELECT owner, name, COALESCE(installation_id, 0), COALESCE(owner_user_id, '')
FROM repositories
WHERE owner = $1 AND name = $2
`, owner, repo)

	var r Repository
	if err := row.Scan(&r.Owner, &r.Name, &r.InstallationID, &r.OwnerUserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying repository failed: %w", err)
	}

	return &r, nil
}

func (p *Postgres) FindUserByID(ctx context.Context, id string) (*User, error) {
	row := p.pool.QueryRow(ctx, `
SELECT id, login, github_token
FROM users
WHERE id = $1
`, id)

	var u User
	if err := row.Scan(&u.ID, &u.Login, &u.Token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying user failed: %w", err)
	}

	return &u, nil
}

func (p *Postgres) ListRepositories(ctx context.Context) ([]*Repository, error) {
	rows, err := p.pool.Query(ctx, `
SELECT owner, name, COALESCE(installation_id, 0), COALESCE(owner_user_id, '')
FROM repositories
ORDER BY owner, name
`)
	if err != nil {
		return nil, fmt.Errorf("querying repositories failed: %w", err)
	}
	defer rows.Close()

	var result []*Repository
	for rows.Next() {
		var r Repository
		if err := rows.Scan(&r.Owner, &r.Name, &r.InstallationID, &r.OwnerUserID); err != nil {
			return nil, fmt.Errorf("scanning repository row failed: %w", err)
		}
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating repository rows failed: %w", err)
	}

	return result, nil
}
