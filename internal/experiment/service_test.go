package experiment

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/hypolab/internal/model"
	"github.com/sells-group/hypolab/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "experiment.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return NewService(st, newTestEngine()), st
}

func TestService_Compare(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	a := &model.Video{OwnerID: "o", Name: "A", Metrics: map[string]any{"clicks": int64(50), "views": int64(1000)}}
	b := &model.Video{OwnerID: "o", Name: "B", Metrics: map[string]any{"clicks": int64(150), "views": int64(1000)}}
	require.NoError(t, st.InsertVideo(ctx, a))
	require.NoError(t, st.InsertVideo(ctx, b))

	res, err := svc.Compare(ctx, "o", a.ID, b.ID, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, a.ID, res.VideoAID)
	assert.Equal(t, b.ID, res.VideoBID)
	assert.Equal(t, WinnerB, res.Decision)
}

func TestService_CompareMissingVideo(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	a := &model.Video{OwnerID: "o", Name: "A"}
	require.NoError(t, st.InsertVideo(ctx, a))

	_, err := svc.Compare(ctx, "o", a.ID, "missing", DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	_, err = svc.Compare(ctx, "someone-else", a.ID, a.ID, DefaultConfig())
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestService_CompareInvalidConfig(t *testing.T) {
	svc, _ := newTestService(t)

	cfg := DefaultConfig()
	cfg.Alpha = 2
	_, err := svc.Compare(context.Background(), "o", "a", "b", cfg)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = svc.Compare(context.Background(), "o", "", "b", DefaultConfig())
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestService_Volume(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	for _, sid := range []string{"S-1", "S-1", "S-2"} {
		require.NoError(t, st.InsertVideo(ctx, &model.Video{OwnerID: "o", SessionID: sid}))
	}
	require.NoError(t, st.InsertVideo(ctx, &model.Video{OwnerID: "other", SessionID: "S-3"}))

	snap, err := svc.Volume(ctx, "o", "sessions", 2)
	require.NoError(t, err)
	assert.InDelta(t, 2, snap.Current, 0)
	assert.Equal(t, 3, snap.CountSamples)
	assert.True(t, snap.MeetsMinimum)

	_, err = svc.Volume(ctx, "o", "videos", -1)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
