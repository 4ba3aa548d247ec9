package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"stellariq/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EnsureSchema creates the favorites table if it is missing. Idempotent,
// safe to run at every startup.
func EnsureSchema(ctx context.Context, pool PgxPool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS favorites (
			id               BIGSERIAL PRIMARY KEY,
			user_id          BIGINT NOT NULL,
			symbol           TEXT NOT NULL,
			asset_type       TEXT NOT NULL,
			name             TEXT NOT NULL DEFAULT '',
			alert_enabled    BOOLEAN NOT NULL DEFAULT FALSE,
			last_alert_state TEXT NOT NULL DEFAULT '',
			last_alert_at    TIMESTAMPTZ,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, symbol, asset_type)
		)`)
	return err
}

type FavoriteRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewFavoriteRepository(pool PgxPool, tracer trace.Tracer) *FavoriteRepository {
	return &FavoriteRepository{pool: pool, tracer: tracer}
}

func (r *FavoriteRepository) Add(ctx context.Context, fav domain.Favorite) (*domain.Favorite, error) {
	_, span := r.tracer.Start(ctx, "favorite-repo.add")
	defer span.End()

	row := r.pool.QueryRow(ctx,
		`INSERT INTO favorites (user_id, symbol, asset_type, name, alert_enabled)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, symbol, asset_type) DO UPDATE SET
		     name = EXCLUDED.name,
		     alert_enabled = EXCLUDED.alert_enabled
		 RETURNING id, created_at`,
		fav.UserID,
		strings.ToUpper(fav.Symbol),
		string(fav.AssetType),
		fav.Name,
		fav.AlertEnabled,
	)

	out := fav
	out.Symbol = strings.ToUpper(fav.Symbol)
	if err := row.Scan(&out.ID, &out.CreatedAt); err != nil {
		return nil, err
	}
	out.CreatedAt = out.CreatedAt.UTC()
	return &out, nil
}

func (r *FavoriteRepository) Remove(ctx context.Context, userID int64, symbol string, assetType domain.AssetType) error {
	_, span := r.tracer.Start(ctx, "favorite-repo.remove")
	defer span.End()

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND symbol = $2 AND asset_type = $3`,
		userID, strings.ToUpper(symbol), string(assetType),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *FavoriteRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Favorite, error) {
	_, span := r.tracer.Start(ctx, "favorite-repo.list-by-user")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, symbol, asset_type, name, alert_enabled,
		        last_alert_state, last_alert_at, created_at
		 FROM favorites
		 WHERE user_id = $1
		 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFavorites(rows)
}

// ListAlertEnabled returns every favorite with alerting on, across all
// users. The market monitor polls this set.
func (r *FavoriteRepository) ListAlertEnabled(ctx context.Context) ([]domain.Favorite, error) {
	_, span := r.tracer.Start(ctx, "favorite-repo.list-alert-enabled")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, symbol, asset_type, name, alert_enabled,
		        last_alert_state, last_alert_at, created_at
		 FROM favorites
		 WHERE alert_enabled = TRUE
		 ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFavorites(rows)
}

func (r *FavoriteRepository) Get(ctx context.Context, userID int64, symbol string, assetType domain.AssetType) (*domain.Favorite, error) {
	_, span := r.tracer.Start(ctx, "favorite-repo.get")
	defer span.End()

	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, symbol, asset_type, name, alert_enabled,
		        last_alert_state, last_alert_at, created_at
		 FROM favorites
		 WHERE user_id = $1 AND symbol = $2 AND asset_type = $3`,
		userID, strings.ToUpper(symbol), string(assetType),
	)

	fav, err := scanFavorite(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fav, nil
}

func (r *FavoriteRepository) SetAlertEnabled(ctx context.Context, userID int64, symbol string, assetType domain.AssetType, enabled bool) error {
	_, span := r.tracer.Start(ctx, "favorite-repo.set-alert-enabled")
	defer span.End()

	tag, err := r.pool.Exec(ctx,
		`UPDATE favorites SET alert_enabled = $4
		 WHERE user_id = $1 AND symbol = $2 AND asset_type = $3`,
		userID, strings.ToUpper(symbol), string(assetType), enabled,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateAlertState records the last condition an alert fired for,
// backing the monitor's change detection and cooldown.
func (r *FavoriteRepository) UpdateAlertState(ctx context.Context, id int64, state string, at time.Time) error {
	_, span := r.tracer.Start(ctx, "favorite-repo.update-alert-state")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`UPDATE favorites SET last_alert_state = $2, last_alert_at = $3 WHERE id = $1`,
		id, state, at.UTC(),
	)
	return err
}

func scanFavorites(rows pgx.Rows) ([]domain.Favorite, error) {
	var favorites []domain.Favorite
	for rows.Next() {
		fav, err := scanFavorite(rows)
		if err != nil {
			return nil, err
		}
		favorites = append(favorites, *fav)
	}
	return favorites, rows.Err()
}

func scanFavorite(row pgx.Row) (*domain.Favorite, error) {
	var f domain.Favorite
	var assetType string
	var lastAlertAt *time.Time
	if err := row.Scan(
		&f.ID, &f.UserID, &f.Symbol, &assetType, &f.Name, &f.AlertEnabled,
		&f.LastAlertState, &lastAlertAt, &f.CreatedAt,
	); err != nil {
		return nil, err
	}
	f.AssetType = domain.AssetType(assetType)
	f.CreatedAt = f.CreatedAt.UTC()
	if lastAlertAt != nil {
		t := lastAlertAt.UTC()
		f.LastAlertAt = &t
	}
	return &f, nil
}
