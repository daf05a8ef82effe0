package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var ErrStatusNotFound = errors.New("status not found")

const statusColumns = `id, user_id, content, content_type, expires_at, created_at`

// StatusRepository abstracts ephemeral-post persistence.
type StatusRepository interface {
	CreateStatus(ctx context.Context, status models.Status) (models.Status, error)
	GetStatus(ctx context.Context, statusID int) (models.Status, error)
	ListActive(ctx context.Context, now time.Time) ([]models.Status, error)
	AddViewer(ctx context.Context, statusID, viewerID int) error
	ListViewers(ctx context.Context, statusID int) ([]models.UserInfo, error)
	DeleteStatus(ctx context.Context, statusID int) error
}

// StatusRepo is a sqlx-backed repository.
type StatusRepo struct {
	db *sqlx.DB
}

// NewStatusRepo constructs StatusRepo.
func NewStatusRepo(db *sqlx.DB) *StatusRepo {
	return &StatusRepo{db: db}
}

// CreateStatus stores an ephemeral post.
func (r *StatusRepo) CreateStatus(ctx context.Context, status models.Status) (models.Status, error) {
	var created models.Status
	err := r.db.GetContext(ctx, &created, `INSERT INTO statuses (user_id, content, content_type, expires_at)
        VALUES ($1, $2, $3, $4) RETURNING `+statusColumns,
		status.UserID, status.Content, status.ContentType, status.ExpiresAt)
	return created, err
}

// GetStatus fetches a status by id.
func (r *StatusRepo) GetStatus(ctx context.Context, statusID int) (models.Status, error) {
	var status models.Status
	err := r.db.GetContext(ctx, &status, `SELECT `+statusColumns+` FROM statuses WHERE id=$1`, statusID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Status{}, ErrStatusNotFound
	}
	return status, err
}

// ListActive returns unexpired statuses, newest first. Expired rows are
// filtered here rather than swept by a background job.
func (r *StatusRepo) ListActive(ctx context.Context, now time.Time) ([]models.Status, error) {
	var statuses []models.Status
	err := r.db.SelectContext(ctx, &statuses, `SELECT `+statusColumns+` FROM statuses WHERE expires_at > $1 ORDER BY created_at DESC`, now)
	return statuses, err
}

// AddViewer records a view at most once per viewer.
func (r *StatusRepo) AddViewer(ctx context.Context, statusID, viewerID int) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO status_viewers (status_id, user_id) VALUES ($1, $2)
        ON CONFLICT (status_id, user_id) DO NOTHING`, statusID, viewerID)
	return err
}

// ListViewers returns the viewer set with display fields.
func (r *StatusRepo) ListViewers(ctx context.Context, statusID int) ([]models.UserInfo, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT u.id, u.username, u.profile_picture, u.is_online, u.last_seen
        FROM status_viewers sv JOIN users u ON u.id = sv.user_id
        WHERE sv.status_id=$1 ORDER BY sv.viewed_at ASC`, statusID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var viewers []models.UserInfo
	for rows.Next() {
		var viewer models.UserInfo
		if err := rows.Scan(&viewer.ID, &viewer.Username, &viewer.Avatar, &viewer.IsOnline, &viewer.LastSeen); err != nil {
			return nil, err
		}
		viewers = append(viewers, viewer)
	}
	return viewers, rows.Err()
}

// DeleteStatus hard-deletes a status and its viewer rows.
func (r *StatusRepo) DeleteStatus(ctx context.Context, statusID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM statuses WHERE id=$1`, statusID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrStatusNotFound
	}
	return nil
}
