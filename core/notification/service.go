package notification

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/user"
)

// Types
const (
	TypeEnrollment       = "ENROLLMENT"
	TypeEnrollmentDrop   = "ENROLLMENT_DROPPED"
	TypePaymentReceived  = "PAYMENT_RECEIVED"
	TypePaymentSubmitted = "PAYMENT_SUBMITTED"
	TypePaymentVerified  = "PAYMENT_VERIFIED"
	TypePaymentRejected  = "PAYMENT_REJECTED"
	TypePenalty          = "PENALTY"
)

var (
	ErrNotFound = core.NewNotFoundError("notification not found")

	subjects = map[string]string{
		TypeEnrollment:       "Enrollment confirmed",
		TypeEnrollmentDrop:   "Course dropped",
		TypePaymentReceived:  "Payment received",
		TypePaymentSubmitted: "Payment submitted for verification",
		TypePaymentVerified:  "Payment verified",
		TypePaymentRejected:  "Payment rejected",
		TypePenalty:          "Penalty applied",
	}
)

type Notification struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		// QueryNotifications returns the notifications of a student, newest first.
		QueryNotifications(ctx context.Context, studentID string, unreadOnly bool) ([]Notification, error)
		// MarkRead returns ErrNotFound unless the notification belongs to the student.
		MarkRead(ctx context.Context, studentID, id string) error
	}

	UserFinder interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo    Repository
		users   UserFinder
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(repo Repository, users UserFinder, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, users: users, mailSvc: mailSvc, logger: logger}
}

// Record stores a notification; call it inside the unit of work of the change it reports.
func (svc *Service) Record(ctx context.Context, studentID, typ, message string) (Notification, error) {
	n, err := svc.repo.CreateNotification(ctx, Notification{
		StudentID: studentID,
		Type:      typ,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
	return n, errors.Wrap(err, "creating notification")
}

// Dispatch emails committed notifications to their students.
// Delivery is best effort: failures are logged, never returned.
func (svc *Service) Dispatch(ctx context.Context, notifications ...Notification) {
	msgs := make([]*core.EmailMessage, 0, len(notifications))
	for _, n := range notifications {
		usr, err := svc.users.GetByID(ctx, n.StudentID)
		if err != nil {
			svc.logger.Warn("notification recipient lookup failed", errors.Wrap(err, n.StudentID))
			continue
		}
		if usr.Email == "" {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: usr.DisplayName(), Address: usr.Email}},
			Subject:      subject(n.Type),
			BodyStr:      n.Message,
			TemplateName: "notification",
			TemplateData: map[string]string{"Name": usr.DisplayName(), "Message": n.Message},
		})
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
}

func (svc *Service) Query(ctx context.Context, studentID string, unreadOnly bool) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, studentID, unreadOnly)
}

func (svc *Service) MarkRead(ctx context.Context, studentID, id string) error {
	return svc.repo.MarkRead(ctx, studentID, id)
}

func subject(typ string) string {
	if s, ok := subjects[typ]; ok {
		return s
	}
	return "Account update"
}
