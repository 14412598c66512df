package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/hypolab/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("InsertAndGetVideo", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		v := &model.Video{
			OwnerID:   "owner-1",
			Name:      "Hook test A",
			SessionID: "S-100",
			Metrics:   map[string]any{"views": int64(1000), "clicks": int64(50), "ctr": 0.05, "video_type": "organic"},
			Extra:     map[string]any{"reach": float64(800)},
		}
		require.NoError(t, s.InsertVideo(ctx, v))
		assert.NotEmpty(t, v.ID)

		got, err := s.GetVideo(ctx, "owner-1", v.ID)
		require.NoError(t, err)
		assert.Equal(t, "Hook test A", got.Name)
		assert.Equal(t, "S-100", got.SessionID)
		assert.InDelta(t, 1000, got.Float("views"), 0)
		assert.InDelta(t, 0.05, got.Float("ctr"), 1e-12)
		assert.Equal(t, "organic", got.VideoType())
		assert.Equal(t, map[string]any{"reach": float64(800)}, got.Extra)
	})

	t.Run("GetVideo scoped by owner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		v := &model.Video{OwnerID: "owner-1", Name: "private"}
		require.NoError(t, s.InsertVideo(ctx, v))

		_, err := s.GetVideo(ctx, "owner-2", v.ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("ListVideos ordered and scoped", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, name := range []string{"first", "second", "third"} {
			require.NoError(t, s.InsertVideo(ctx, &model.Video{
				OwnerID:   "owner-1",
				Name:      name,
				CreatedAt: base.Add(time.Duration(i) * time.Hour),
			}))
		}
		require.NoError(t, s.InsertVideo(ctx, &model.Video{OwnerID: "owner-2", Name: "other"}))

		videos, err := s.ListVideos(ctx, "owner-1")
		require.NoError(t, err)
		require.Len(t, videos, 3)
		assert.Equal(t, "first", videos[0].Name)
		assert.Equal(t, "third", videos[2].Name)
	})

	t.Run("UpdateVideo in committed transaction", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		v := &model.Video{OwnerID: "owner-1", Name: "vid"}
		require.NoError(t, s.InsertVideo(ctx, v))

		err := s.InTx(ctx, func(tx Tx) error {
			n, err := tx.UpdateVideo(ctx, "owner-1", v.ID, []model.Assignment{
				{Column: "clicks", Value: int64(70)},
				{Column: model.ExtraColumn, Value: `{"reach":10}`},
			})
			assert.Equal(t, int64(1), n)
			return err
		})
		require.NoError(t, err)

		got, err := s.GetVideo(ctx, "owner-1", v.ID)
		require.NoError(t, err)
		assert.InDelta(t, 70, got.Float("clicks"), 0)
		assert.Equal(t, map[string]any{"reach": float64(10)}, got.Extra)
	})

	t.Run("InTx rolls back on error", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		v := &model.Video{OwnerID: "owner-1", Name: "vid", Metrics: map[string]any{"views": int64(5)}}
		require.NoError(t, s.InsertVideo(ctx, v))

		boom := errors.New("boom")
		err := s.InTx(ctx, func(tx Tx) error {
			if _, err := tx.UpdateVideo(ctx, "owner-1", v.ID, []model.Assignment{{Column: "views", Value: int64(999)}}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		got, err := s.GetVideo(ctx, "owner-1", v.ID)
		require.NoError(t, err)
		assert.InDelta(t, 5, got.Float("views"), 0)
	})

	t.Run("UpdateVideo wrong owner affects nothing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		v := &model.Video{OwnerID: "owner-1", Name: "vid"}
		require.NoError(t, s.InsertVideo(ctx, v))

		err := s.InTx(ctx, func(tx Tx) error {
			n, err := tx.UpdateVideo(ctx, "owner-2", v.ID, []model.Assignment{{Column: "views", Value: int64(1)}})
			assert.Zero(t, n)
			return err
		})
		require.NoError(t, err)
	})

	t.Run("DeleteVideo", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		v := &model.Video{OwnerID: "owner-1", Name: "vid"}
		require.NoError(t, s.InsertVideo(ctx, v))
		require.NoError(t, s.DeleteVideo(ctx, "owner-1", v.ID))

		err := s.DeleteVideo(ctx, "owner-1", v.ID)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("EnsureColumns is idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		extra := []*model.MetricField{{Name: "retention_3s", Type: model.FieldFloat, Column: true}}
		require.NoError(t, s.EnsureColumns(ctx, extra))
		require.NoError(t, s.EnsureColumns(ctx, extra))
		require.NoError(t, s.EnsureColumns(ctx, model.DefaultRegistry.Columns()))

		v := &model.Video{OwnerID: "owner-1", Name: "vid", Metrics: map[string]any{"retention_3s": 0.42}}
		require.NoError(t, s.InsertVideo(ctx, v))
		got, err := s.GetVideo(ctx, "owner-1", v.ID)
		require.NoError(t, err)
		assert.InDelta(t, 0.42, got.Float("retention_3s"), 1e-12)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestSQLite_MigrateTwice(t *testing.T) {
	st := newTestSQLite(t)
	require.NoError(t, st.Migrate(context.Background()))

	s := st.(*SQLiteStore)
	cols, err := s.tableColumns(context.Background())
	require.NoError(t, err)
	for _, f := range model.DefaultRegistry.Columns() {
		assert.True(t, cols[f.Name], "missing column %s", f.Name)
	}
	assert.True(t, cols[model.ExtraColumn])
}

func TestInsertVideo_RequiresOwner(t *testing.T) {
	st := newTestSQLite(t)
	err := st.InsertVideo(context.Background(), &model.Video{Name: "orphan"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner id is required")
}
