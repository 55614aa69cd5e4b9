package service

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/repository"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/circuit_breaker"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/kafka"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/metrics"
)

type NotificationService struct {
	log  *zap.Logger
	repo repository.NotificationRepository
	now  Clock
}

func NewNotificationService(repo repository.NotificationRepository, log *zap.Logger, opts ...Option) *NotificationService {
	o := newOptions(opts)
	return &NotificationService{
		log:  log.Named("notification"),
		repo: repo,
		now:  o.now,
	}
}

func (s *NotificationService) ListByUser(ctx context.Context, userID int) ([]model.Notification, error) {
	return s.repo.ListNotifications(ctx, userID, false)
}

func (s *NotificationService) ListUnread(ctx context.Context, userID int) ([]model.Notification, error) {
	return s.repo.ListNotifications(ctx, userID, true)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID int) error {
	return s.repo.MarkNotificationRead(ctx, id, userID, s.now())
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID int) (int, error) {
	return s.repo.MarkAllNotificationsRead(ctx, userID, s.now())
}

func (s *NotificationService) Delete(ctx context.Context, id, userID int) error {
	return s.repo.DeleteNotification(ctx, id, userID)
}

// Notifier publishes committed notifications as events. Publishing is best effort:
// the notification row is already stored when Deliver runs.
type Notifier struct {
	log     *zap.Logger
	pub     Publisher
	metrics *metrics.Metrics
}

var _ repository.NotificationSink = (*Notifier)(nil)

func NewNotifier(pub Publisher, m *metrics.Metrics, log *zap.Logger) *Notifier {
	return &Notifier{
		log:     log.Named("notifier"),
		pub:     pub,
		metrics: m,
	}
}

func (n *Notifier) Deliver(_ context.Context, notes []model.Notification) {
	for _, note := range notes {
		ev := model.NotificationEvent{
			EventID:        uuid.NewString(),
			NotificationID: note.ID,
			UserID:         note.UserID,
			ReservationID:  note.ReservationID,
			Type:           note.Type,
			Message:        note.Message,
			CreatedAt:      note.CreatedAt,
		}
		outcome := "ok"
		if err := n.pub.Enqueue(kafka.NotificationsTopic, strconv.Itoa(note.UserID), ev); err != nil {
			outcome = "error"
			if errors.Is(err, circuit_breaker.ErrOpenCB) {
				outcome = "rejected"
			}
			n.log.Warn("publish notification",
				zap.Int("notification_id", note.ID),
				zap.String("type", string(note.Type)),
				zap.Error(err))
		}
		if n.metrics != nil {
			n.metrics.Published.WithLabelValues(kafka.NotificationsTopic, outcome).Inc()
		}
	}
}
