package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/service"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/circuit_breaker"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/kafka"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/metrics"

	repo_mocks "github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/repository/mocks"
	service_mocks "github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/service/mocks"
)

func TestNotifier_Deliver(t *testing.T) {
	t.Parallel()
	c := gomock.NewController(t)
	defer c.Finish()

	resID := 5
	notes := []model.Notification{
		{ID: 1, UserID: 7, ReservationID: &resID, Type: model.NotificationQueueAvailable, Message: "disponible"},
		{ID: 2, UserID: 8, Type: model.NotificationFineCreated, Message: "multa"},
		{ID: 3, UserID: 9, Type: model.NotificationReturned, Message: "devuelto"},
	}

	pub := service_mocks.NewMockPublisher(c)
	var events []model.NotificationEvent
	record := func(_, _ string, v interface{}) error {
		events = append(events, v.(model.NotificationEvent))
		return nil
	}
	gomock.InOrder(
		pub.EXPECT().Enqueue(kafka.NotificationsTopic, "7", gomock.Any()).DoAndReturn(record),
		pub.EXPECT().Enqueue(kafka.NotificationsTopic, "8", gomock.Any()).Return(errors.New("broker down")),
		pub.EXPECT().Enqueue(kafka.NotificationsTopic, "9", gomock.Any()).Return(circuit_breaker.ErrOpenCB),
	)

	m := metrics.New()
	n := service.NewNotifier(pub, m, zap.NewNop())
	n.Deliver(context.Background(), notes)

	require.Len(t, events, 1)
	require.NotEmpty(t, events[0].EventID)
	require.Equal(t, 1, events[0].NotificationID)
	require.Equal(t, &resID, events[0].ReservationID)
	require.Equal(t, model.NotificationQueueAvailable, events[0].Type)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Published.WithLabelValues(kafka.NotificationsTopic, "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Published.WithLabelValues(kafka.NotificationsTopic, "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Published.WithLabelValues(kafka.NotificationsTopic, "rejected")))
}

func TestNotificationService_MarkRead(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	c := gomock.NewController(t)
	defer c.Finish()
	repo := repo_mocks.NewMockNotificationRepository(c)
	repo.EXPECT().MarkNotificationRead(gomock.Any(), 3, 7, now).Return(nil)
	repo.EXPECT().MarkAllNotificationsRead(gomock.Any(), 7, now).Return(4, nil)

	svc := service.NewNotificationService(repo, zap.NewNop(), fixedClock(now))
	require.NoError(t, svc.MarkRead(context.Background(), 3, 7))
	n, err := svc.MarkAllRead(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 4, n)
}
