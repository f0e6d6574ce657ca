package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/bursary/core/notification"
	"github.com/trezcool/bursary/storage/database"
)

// notificationRow converts to and from notification.Notification.
type notificationRow struct {
	ID        string    `db:"id"`
	StudentID string    `db:"student_id"`
	Type      string    `db:"type"`
	Message   string    `db:"message"`
	IsRead    bool      `db:"is_read"`
	CreatedAt time.Time `db:"created_at"`
}

type notificationRepository struct {
	repo
}

func NewNotificationRepository(db *database.DB) notification.Repository {
	return &notificationRepository{repo{db: db}}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	n.ID = newID()
	q := `INSERT INTO notifications (id, student_id, type, message, is_read, created_at)
		VALUES (:id, :student_id, :type, :message, :is_read, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, notificationRow(n)); err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, studentID string, unreadOnly bool) ([]notification.Notification, error) {
	var rows []notificationRow
	q := `SELECT id, student_id, type, message, is_read, created_at FROM notifications
		WHERE student_id::text = $1 AND (NOT $2 OR NOT is_read) ORDER BY created_at DESC`
	if err := sqlx.SelectContext(ctx, repo.ext(ctx), &rows, q, studentID, unreadOnly); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notes := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		notes = append(notes, notification.Notification(row))
	}
	return notes, nil
}

func (repo *notificationRepository) MarkRead(ctx context.Context, studentID, id string) error {
	q := "UPDATE notifications SET is_read = true WHERE id::text = $1 AND student_id::text = $2"
	res, err := repo.ext(ctx).ExecContext(ctx, q, id, studentID)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notification.ErrNotFound
	}
	return nil
}
