// Package store persists video metric rows for the reconciliation and
// experiment packages.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hypolab/internal/model"
)

// VideosTable is the table holding canonical video metric rows.
const VideosTable = "videos"

// ErrNotFound is returned when a video does not exist for the owner.
var ErrNotFound = eris.New("store: video not found")

// Store is the typed repository over the videos table. Select, insert,
// update and delete are distinct operations; updates only happen inside InTx.
type Store interface {
	// Videos
	ListVideos(ctx context.Context, ownerID string) ([]model.Video, error)
	GetVideo(ctx context.Context, ownerID, videoID string) (*model.Video, error)
	InsertVideo(ctx context.Context, v *model.Video) error
	DeleteVideo(ctx context.Context, ownerID, videoID string) error

	// Transactions
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Schema
	EnsureColumns(ctx context.Context, fields []*model.MetricField) error
	Migrate(ctx context.Context) error
	Close() error
}

// Tx is the write surface available inside a transaction.
type Tx interface {
	// UpdateVideo applies the assignments to one video scoped by id and
	// owner and returns the number of rows affected.
	UpdateVideo(ctx context.Context, ownerID, videoID string, set []model.Assignment) (int64, error)
}
