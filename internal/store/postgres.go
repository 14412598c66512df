package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hypolab/internal/db"
	"github.com/sells-group/hypolab/internal/model"
)

// migrationLockID serializes concurrent migrate runs across processes.
const migrationLockID = 7340021

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. The caller owns its lifecycle.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS videos (
	id            TEXT PRIMARY KEY,
	owner_id      TEXT NOT NULL,
	video_name    TEXT NOT NULL DEFAULT '',
	session_id    TEXT NOT NULL DEFAULT '',
	ad_id         TEXT NOT NULL DEFAULT '',
	live_id       TEXT NOT NULL DEFAULT '',
	extra_metrics JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_videos_owner ON videos(owner_id);
CREATE INDEX IF NOT EXISTS idx_videos_owner_session ON videos(owner_id, lower(session_id));
CREATE INDEX IF NOT EXISTS idx_videos_owner_name ON videos(owner_id, lower(video_name));
`

// Migrate creates the videos table and every registry metric column.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store.migrate"))

	if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return eris.Wrap(err, "postgres: acquire migration advisory lock")
	}
	defer func() {
		if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			log.Warn("postgres: failed to release migration advisory lock", zap.Error(err))
		}
	}()

	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return s.EnsureColumns(ctx, model.DefaultRegistry.Columns())
}

// EnsureColumns adds any missing metric columns. Running it repeatedly is a
// no-op once the columns exist.
func (s *PostgresStore) EnsureColumns(ctx context.Context, fields []*model.MetricField) error {
	if len(fields) == 0 {
		return nil
	}
	clauses := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		clauses = append(clauses, fmt.Sprintf("ADD COLUMN IF NOT EXISTS %s %s", db.QuoteIdent(f.Name), postgresType(f.Type)))
	}
	clauses = append(clauses, fmt.Sprintf("ADD COLUMN IF NOT EXISTS %s JSONB NOT NULL DEFAULT '{}'::jsonb", db.QuoteIdent(model.ExtraColumn)))

	sql := fmt.Sprintf("ALTER TABLE %s %s", db.SanitizeTable(VideosTable), strings.Join(clauses, ", "))
	if _, err := s.pool.Exec(ctx, sql); err != nil {
		return eris.Wrap(err, "postgres: ensure metric columns")
	}
	return nil
}

func postgresType(t model.FieldType) string {
	switch t {
	case model.FieldInt:
		return "BIGINT"
	case model.FieldFloat:
		return "DOUBLE PRECISION"
	case model.FieldJSON:
		return "JSONB"
	default:
		return "TEXT"
	}
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListVideos(ctx context.Context, ownerID string) ([]model.Video, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT * FROM videos WHERE owner_id = $1 ORDER BY created_at, id`,
		ownerID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list videos for %s", ownerID)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: collect videos")
	}

	videos := make([]model.Video, 0, len(maps))
	for _, m := range maps {
		v, err := decodeVideo(m)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, nil
}

func (s *PostgresStore) GetVideo(ctx context.Context, ownerID, videoID string) (*model.Video, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT * FROM videos WHERE owner_id = $1 AND id = $2`,
		ownerID, videoID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get video %s", videoID)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: collect video %s", videoID)
	}
	if len(maps) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "postgres: video %s", videoID)
	}
	v, err := decodeVideo(maps[0])
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *PostgresStore) InsertVideo(ctx context.Context, v *model.Video) error {
	cols, vals, err := insertColumns(v)
	if err != nil {
		return err
	}
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if c == model.ExtraColumn {
			placeholders[i] += "::jsonb"
		}
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		db.SanitizeTable(VideosTable), db.QuoteAndJoin(cols), strings.Join(placeholders, ", "))
	if _, err := s.pool.Exec(ctx, sql, vals...); err != nil {
		return eris.Wrapf(err, "postgres: insert video %s", v.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteVideo(ctx context.Context, ownerID, videoID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM videos WHERE id = $1 AND owner_id = $2`,
		videoID, ownerID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete video %s", videoID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: video %s", videoID)
	}
	return nil
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&postgresTx{tx: tx})
	})
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) UpdateVideo(ctx context.Context, ownerID, videoID string, set []model.Assignment) (int64, error) {
	if len(set) == 0 {
		return 0, nil
	}
	clauses := make([]string, 0, len(set)+1)
	args := make([]any, 0, len(set)+2)
	for i, a := range set {
		placeholder := fmt.Sprintf("$%d", i+1)
		if a.Column == model.ExtraColumn {
			placeholder += "::jsonb"
		}
		clauses = append(clauses, db.QuoteIdent(a.Column)+" = "+placeholder)
		args = append(args, a.Value)
	}
	clauses = append(clauses, `"updated_at" = now()`)
	args = append(args, videoID, ownerID)

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d AND owner_id = $%d",
		db.SanitizeTable(VideosTable), strings.Join(clauses, ", "), len(set)+1, len(set)+2)
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: update video %s", videoID)
	}
	return tag.RowsAffected(), nil
}
