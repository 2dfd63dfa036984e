package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a video id is not in the catalog.
var ErrNotFound = errors.New("video not found")

const selectAssets = `
	SELECT v.video_id, v.path, v.extension, v.available, v.updated_at,
		COALESCE(i.title, ''), COALESCE(i.duration, 0), COALESCE(i.width, 0), COALESCE(i.height, 0),
		COALESCE(i.has_720p, 0), COALESCE(i.has_1080p, 0)
	FROM videos v
	LEFT JOIN video_info i ON i.video_id = v.video_id
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAsset(row rowScanner) (*MediaAsset, error) {
	var a MediaAsset
	var updatedAt int64

	err := row.Scan(
		&a.VideoID, &a.Path, &a.Extension, &a.Available, &updatedAt,
		&a.Title, &a.Duration, &a.Width, &a.Height,
		&a.Has720p, &a.Has1080p,
	)
	if err != nil {
		return nil, err
	}
	a.UpdatedAt = time.Unix(updatedAt, 0)
	return &a, nil
}

// UpsertVideo inserts a new video or refreshes an existing one. The title
// is only set on insert; stream metadata is only overwritten with non-zero
// values; variant flags are never touched.
func (d *Database) UpsertVideo(ctx context.Context, asset *MediaAsset) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_video", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	err = upsertVideoTx(ctx, tx, asset)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	err = tx.Commit()
	return err
}

func upsertVideoTx(ctx context.Context, tx *sql.Tx, asset *MediaAsset) error {
	_, err := tx.ExecContext(ctx, `
	INSERT INTO videos (video_id, extension, path, available, updated_at)
	VALUES (?, ?, ?, 1, strftime('%s', 'now'))
	ON CONFLICT(video_id) DO UPDATE SET
		extension = excluded.extension,
		path = excluded.path,
		available = 1,
		updated_at = strftime('%s', 'now')
	`, asset.VideoID, asset.Extension, asset.Path)
	if err != nil {
		return fmt.Errorf("failed to upsert video %s: %w", asset.VideoID, err)
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO video_info (video_id, title, duration, width, height)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(video_id) DO UPDATE SET
		duration = CASE WHEN excluded.duration > 0 THEN excluded.duration ELSE video_info.duration END,
		width = CASE WHEN excluded.width > 0 THEN excluded.width ELSE video_info.width END,
		height = CASE WHEN excluded.height > 0 THEN excluded.height ELSE video_info.height END
	`, asset.VideoID, asset.Title, asset.Duration, asset.Width, asset.Height)
	if err != nil {
		return fmt.Errorf("failed to upsert video info %s: %w", asset.VideoID, err)
	}
	return nil
}

// MarkMissing flags a video whose source file is gone as unavailable.
func (d *Database) MarkMissing(ctx context.Context, videoID string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("mark_missing", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx,
		"UPDATE videos SET available = 0, updated_at = strftime('%s', 'now') WHERE video_id = ?",
		videoID,
	)
	return err
}

// ListVideos returns every cataloged video ordered by path, or only the
// video with videoID when it is non-empty.
func (d *Database) ListVideos(ctx context.Context, videoID string) ([]*MediaAsset, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_videos", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := selectAssets
	var args []interface{}
	if videoID != "" {
		query += " WHERE v.video_id = ?"
		args = append(args, videoID)
	}
	query += " ORDER BY v.path"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*MediaAsset
	for rows.Next() {
		var a *MediaAsset
		a, err = scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	err = rows.Err()
	return assets, err
}

// GetVideo returns one video, or ErrNotFound.
func (d *Database) GetVideo(ctx context.Context, videoID string) (*MediaAsset, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_video", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	asset, err := scanAsset(d.db.QueryRowContext(ctx, selectAssets+" WHERE v.video_id = ?", videoID))
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, ErrNotFound
	}
	return asset, err
}

// MarkVariant records that the height variant of a video exists. Only 720
// and 1080 are persisted; other heights are a no-op.
func (d *Database) MarkVariant(ctx context.Context, videoID string, height int) error {
	var column string
	switch height {
	case 1080:
		column = "has_1080p"
	case 720:
		column = "has_720p"
	default:
		return nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("mark_variant", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx, "UPDATE video_info SET "+column+" = 1 WHERE video_id = ?", videoID)
	if err != nil {
		return err
	}
	if n, rowsErr := res.RowsAffected(); rowsErr == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// LibraryStats counts videos and persisted variants.
func (d *Database) LibraryStats(ctx context.Context) (LibraryStats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("library_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats LibraryStats
	err = d.db.QueryRowContext(ctx, `
	SELECT
		COUNT(*),
		COALESCE(SUM(v.available), 0),
		COALESCE(SUM(i.has_1080p), 0),
		COALESCE(SUM(i.has_720p), 0)
	FROM videos v
	LEFT JOIN video_info i ON i.video_id = v.video_id
	`).Scan(&stats.TotalVideos, &stats.AvailableVideos, &stats.With1080p, &stats.With720p)
	return stats, err
}
