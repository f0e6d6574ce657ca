package inmemdb

import (
	"context"

	"github.com/trezcool/bursary/core/notification"
)

type notificationRepository struct {
	db *DB
}

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	err := repo.db.write(ctx, func() error {
		n.ID = newID()
		repo.db.notifications = append(repo.db.notifications, n)
		return nil
	})
	return n, err
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, studentID string, unreadOnly bool) ([]notification.Notification, error) {
	notes := make([]notification.Notification, 0)
	repo.db.read(ctx, func() {
		for i := len(repo.db.notifications) - 1; i >= 0; i-- {
			n := repo.db.notifications[i]
			if n.StudentID == studentID && !(unreadOnly && n.IsRead) {
				notes = append(notes, n)
			}
		}
	})
	return notes, nil
}

func (repo *notificationRepository) MarkRead(ctx context.Context, studentID, id string) error {
	return repo.db.write(ctx, func() error {
		for i, n := range repo.db.notifications {
			if n.ID == id && n.StudentID == studentID {
				repo.db.notifications[i].IsRead = true
				return nil
			}
		}
		return notification.ErrNotFound
	})
}
