package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/hypolab/internal/db"
	"github.com/sells-group/hypolab/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: conn}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS videos (
	id            TEXT PRIMARY KEY,
	owner_id      TEXT NOT NULL,
	video_name    TEXT NOT NULL DEFAULT '',
	session_id    TEXT NOT NULL DEFAULT '',
	ad_id         TEXT NOT NULL DEFAULT '',
	live_id       TEXT NOT NULL DEFAULT '',
	extra_metrics TEXT NOT NULL DEFAULT '{}',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_videos_owner ON videos(owner_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return s.EnsureColumns(ctx, model.DefaultRegistry.Columns())
}

// EnsureColumns diffs PRAGMA table_info against the wanted fields and adds
// only the missing columns.
func (s *SQLiteStore) EnsureColumns(ctx context.Context, fields []*model.MetricField) error {
	existing, err := s.tableColumns(ctx)
	if err != nil {
		return err
	}

	want := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		if !existing[f.Name] {
			want = append(want, fmt.Sprintf("%s %s", db.QuoteIdent(f.Name), sqliteType(f.Type)))
		}
	}
	if !existing[model.ExtraColumn] {
		want = append(want, fmt.Sprintf("%s TEXT NOT NULL DEFAULT '{}'", db.QuoteIdent(model.ExtraColumn)))
	}

	for _, def := range want {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", db.QuoteIdent(VideosTable), def)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrapf(err, "sqlite: add column (%s)", def)
		}
		zap.L().Info("sqlite: added column", zap.String("definition", def))
	}
	return nil
}

func (s *SQLiteStore) tableColumns(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, VideosTable)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: table info")
	}
	defer rows.Close() //nolint:errcheck

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan table info")
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func sqliteType(t model.FieldType) string {
	switch t {
	case model.FieldInt:
		return "INTEGER"
	case model.FieldFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListVideos(ctx context.Context, ownerID string) ([]model.Video, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT * FROM videos WHERE owner_id = ? ORDER BY created_at, id`,
		ownerID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list videos for %s", ownerID)
	}
	defer rows.Close() //nolint:errcheck
	return collectVideos(rows)
}

func (s *SQLiteStore) GetVideo(ctx context.Context, ownerID, videoID string) (*model.Video, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT * FROM videos WHERE owner_id = ? AND id = ?`,
		ownerID, videoID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get video %s", videoID)
	}
	defer rows.Close() //nolint:errcheck

	videos, err := collectVideos(rows)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: video %s", videoID)
	}
	return &videos[0], nil
}

func collectVideos(rows *sql.Rows) ([]model.Video, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: columns")
	}

	var videos []model.Video
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan video")
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		v, err := decodeVideo(row)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (s *SQLiteStore) InsertVideo(ctx context.Context, v *model.Video) error {
	cols, vals, err := insertColumns(v)
	if err != nil {
		return err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		db.QuoteIdent(VideosTable), db.QuoteAndJoin(cols), placeholders)
	if _, err := s.db.ExecContext(ctx, stmt, vals...); err != nil {
		return eris.Wrapf(err, "sqlite: insert video %s", v.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteVideo(ctx context.Context, ownerID, videoID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM videos WHERE id = ? AND owner_id = ?`,
		videoID, ownerID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete video %s", videoID)
	}
	return checkRowsAffected(res, videoID)
}

func (s *SQLiteStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(&sqliteTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			zap.L().Warn("sqlite: rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit tx")
	}
	return nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) UpdateVideo(ctx context.Context, ownerID, videoID string, set []model.Assignment) (int64, error) {
	if len(set) == 0 {
		return 0, nil
	}
	clauses := make([]string, 0, len(set)+1)
	args := make([]any, 0, len(set)+3)
	for _, a := range set {
		clauses = append(clauses, db.QuoteIdent(a.Column)+" = ?")
		args = append(args, a.Value)
	}
	clauses = append(clauses, `"updated_at" = ?`)
	args = append(args, time.Now().UTC(), videoID, ownerID)

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? AND owner_id = ?",
		db.QuoteIdent(VideosTable), strings.Join(clauses, ", "))
	res, err := t.tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: update video %s", videoID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return n, nil
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: video %s", id)
	}
	return nil
}
