package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/config"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/errs"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/service"

	repo_mocks "github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/repository/mocks"
)

func newReservationService(repo *repo_mocks.MockRepository, now time.Time) *service.ReservationService {
	policy := config.DefaultPolicy()
	log := zap.NewNop()
	fines := service.NewFineService(repo, policy.Fines, nil, log, fixedClock(now))
	return service.NewReservationService(repo, fines, policy, log, fixedClock(now))
}

func ruleMessage(t *testing.T, err error) string {
	t.Helper()
	var re *errs.RuleError
	require.True(t, errors.As(err, &re), "expected a rule error, got %v", err)
	return re.Message
}

func TestReservationService_CreateReservation(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)

	type mockBehavior func(r *repo_mocks.MockRepository, req model.CreateReservationRequest)
	tests := []struct {
		name         string
		req          model.CreateReservationRequest
		mockBehavior mockBehavior
		wantStatus   model.ReservationStatus
		wantMessage  string
	}{
		{
			name: "queued while holding another reservation",
			req:  model.CreateReservationRequest{UserID: 1, BookID: 10, Type: model.ReservationTypeQueue},
			mockBehavior: func(r *repo_mocks.MockRepository, req model.CreateReservationRequest) {
				r.EXPECT().ListPendingFinesByUser(gomock.Any(), 1).Return(nil, nil)
				r.EXPECT().CreateReservation(gomock.Any(), req, now, 2).
					Return(model.Reservation{ID: 5, UserID: 1, BookID: 10, Status: model.ReservationQueued, Type: model.ReservationTypeQueue}, nil)
			},
			wantStatus: model.ReservationQueued,
		},
		{
			name: "pickup held",
			req:  model.CreateReservationRequest{UserID: 1, BookID: 10, Type: model.ReservationTypePickup},
			mockBehavior: func(r *repo_mocks.MockRepository, req model.CreateReservationRequest) {
				r.EXPECT().ListPendingFinesByUser(gomock.Any(), 1).Return(nil, nil)
				r.EXPECT().HasActiveReservation(gomock.Any(), 1).Return(false, nil)
				r.EXPECT().CreateReservation(gomock.Any(), req, now, 2).
					Return(model.Reservation{ID: 6, Status: model.ReservationPending, Type: model.ReservationTypePickup}, nil)
			},
			wantStatus: model.ReservationPending,
		},
		{
			name: "empty type joins the queue",
			req:  model.CreateReservationRequest{UserID: 1, BookID: 10},
			mockBehavior: func(r *repo_mocks.MockRepository, req model.CreateReservationRequest) {
				r.EXPECT().ListPendingFinesByUser(gomock.Any(), 1).Return(nil, nil)
				req.Type = model.ReservationTypeQueue
				r.EXPECT().CreateReservation(gomock.Any(), req, now, 2).
					Return(model.Reservation{ID: 7, Status: model.ReservationQueued}, nil)
			},
			wantStatus: model.ReservationQueued,
		},
		{
			name: "pending fines block with count and total",
			req:  model.CreateReservationRequest{UserID: 1, BookID: 10, Type: model.ReservationTypeQueue},
			mockBehavior: func(r *repo_mocks.MockRepository, req model.CreateReservationRequest) {
				r.EXPECT().ListPendingFinesByUser(gomock.Any(), 1).Return([]model.Fine{
					{ID: 1, Amount: dec("3.50"), Status: model.FinePending},
					{ID: 2, Amount: dec("1.00"), Status: model.FinePending},
				}, nil)
			},
			wantMessage: "No puedes reservar libros porque tienes 2 multa(s) pendiente(s) por un total de S/ 4.50. " +
				"Por favor, paga tus multas antes de realizar una nueva reserva.",
		},
		{
			name: "second pickup refused",
			req:  model.CreateReservationRequest{UserID: 1, BookID: 10, Type: model.ReservationTypePickup},
			mockBehavior: func(r *repo_mocks.MockRepository, req model.CreateReservationRequest) {
				r.EXPECT().ListPendingFinesByUser(gomock.Any(), 1).Return(nil, nil)
				r.EXPECT().HasActiveReservation(gomock.Any(), 1).Return(true, nil)
			},
			wantMessage: "El usuario ya tiene una reserva activa",
		},
		{
			name:         "missing user",
			req:          model.CreateReservationRequest{UserID: 0, BookID: 10},
			mockBehavior: func(r *repo_mocks.MockRepository, req model.CreateReservationRequest) {},
			wantMessage:  "Usuario y libro son requeridos",
		},
		{
			name:         "missing book",
			req:          model.CreateReservationRequest{UserID: 1, BookID: -3},
			mockBehavior: func(r *repo_mocks.MockRepository, req model.CreateReservationRequest) {},
			wantMessage:  "Usuario y libro son requeridos",
		},
		{
			name:         "unknown type",
			req:          model.CreateReservationRequest{UserID: 1, BookID: 10, Type: "Domicilio"},
			mockBehavior: func(r *repo_mocks.MockRepository, req model.CreateReservationRequest) {},
			wantMessage:  "Tipo de reserva inválido",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			repo := repo_mocks.NewMockRepository(c)
			tt.mockBehavior(repo, tt.req)

			res, err := newReservationService(repo, now).CreateReservation(context.Background(), tt.req)
			if tt.wantMessage != "" {
				require.Equal(t, tt.wantMessage, ruleMessage(t, err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantStatus, res.Status)
		})
	}
}

func TestReservationService_ChangeType(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		newType model.ReservationType
		valid   bool
	}{
		{name: "queue", newType: "ColaEspera", valid: true},
		{name: "pickup", newType: "Retiro", valid: true},
		{name: "empty", newType: ""},
		{name: "lower case", newType: "retiro"},
		{name: "other", newType: "Prestamo"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			repo := repo_mocks.NewMockRepository(c)
			if tt.valid {
				repo.EXPECT().ChangeReservationType(gomock.Any(), 4, tt.newType, now, 2).Return(nil)
			}

			err := newReservationService(repo, now).ChangeType(context.Background(), 4, tt.newType)
			if !tt.valid {
				require.Equal(t, "Tipo de reserva inválido", ruleMessage(t, err))
				require.ErrorIs(t, err, errs.ErrValidation)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestReservationService_Approve(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)

	type mockBehavior func(r *repo_mocks.MockRepository)
	tests := []struct {
		name         string
		mockBehavior mockBehavior
		want         model.ApproveResult
		wantErr      error
	}{
		{
			name: "professor gets professor loan days",
			mockBehavior: func(r *repo_mocks.MockRepository) {
				r.EXPECT().GetReservation(gomock.Any(), 3).Return(model.Reservation{ID: 3, UserID: 8, Status: model.ReservationPending}, nil)
				r.EXPECT().GetUser(gomock.Any(), 8).Return(model.User{ID: 8, Role: model.RoleProfessor}, nil)
				r.EXPECT().ApproveReservation(gomock.Any(), 3, 1, 14, now).Return(model.ApproveResult{ReservationID: 3, LoanID: 40}, nil)
			},
			want: model.ApproveResult{ReservationID: 3, LoanID: 40},
		},
		{
			name: "no copy free approves without loan",
			mockBehavior: func(r *repo_mocks.MockRepository) {
				r.EXPECT().GetReservation(gomock.Any(), 3).Return(model.Reservation{ID: 3, UserID: 8, Status: model.ReservationQueued}, nil)
				r.EXPECT().GetUser(gomock.Any(), 8).Return(model.User{ID: 8, Role: model.RoleStudent}, nil)
				r.EXPECT().ApproveReservation(gomock.Any(), 3, 1, 7, now).Return(model.ApproveResult{ReservationID: 3}, nil)
			},
			want: model.ApproveResult{ReservationID: 3},
		},
		{
			name: "missing",
			mockBehavior: func(r *repo_mocks.MockRepository) {
				r.EXPECT().GetReservation(gomock.Any(), 3).Return(model.Reservation{}, errs.ErrNotFound)
			},
			wantErr: errs.ErrNotFound,
		},
		{
			name: "already cancelled",
			mockBehavior: func(r *repo_mocks.MockRepository) {
				r.EXPECT().GetReservation(gomock.Any(), 3).Return(model.Reservation{ID: 3, Status: model.ReservationCancelled}, nil)
			},
			wantErr: errs.ErrInvalidState,
		},
		{
			name: "approved with a lent copy is not lent twice",
			mockBehavior: func(r *repo_mocks.MockRepository) {
				copyID := 21
				r.EXPECT().GetReservation(gomock.Any(), 3).
					Return(model.Reservation{ID: 3, UserID: 8, Status: model.ReservationApproved, CopyID: &copyID}, nil)
			},
			wantErr: errs.ErrInvalidState,
		},
		{
			name: "approved while no copy was free is retried",
			mockBehavior: func(r *repo_mocks.MockRepository) {
				r.EXPECT().GetReservation(gomock.Any(), 3).Return(model.Reservation{ID: 3, UserID: 8, Status: model.ReservationApproved}, nil)
				r.EXPECT().GetUser(gomock.Any(), 8).Return(model.User{ID: 8, Role: model.RoleStudent}, nil)
				r.EXPECT().ApproveReservation(gomock.Any(), 3, 1, 7, now).Return(model.ApproveResult{ReservationID: 3, LoanID: 41}, nil)
			},
			want: model.ApproveResult{ReservationID: 3, LoanID: 41},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			repo := repo_mocks.NewMockRepository(c)
			tt.mockBehavior(repo)

			got, err := newReservationService(repo, now).Approve(context.Background(), 3, 1)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestReservationService_Cancel(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)
	c := gomock.NewController(t)
	defer c.Finish()
	repo := repo_mocks.NewMockRepository(c)
	repo.EXPECT().CancelReservation(gomock.Any(), 9, 2, false, now, 2).Return(errs.ErrForbidden)

	svc := newReservationService(repo, now)
	require.ErrorIs(t, svc.Cancel(context.Background(), 9, 2, false), errs.ErrForbidden)
	require.ErrorIs(t, svc.Cancel(context.Background(), 0, 2, false), errs.ErrValidation)
}

func TestReservationService_GetQueuePosition(t *testing.T) {
	t.Parallel()
	c := gomock.NewController(t)
	defer c.Finish()
	repo := repo_mocks.NewMockRepository(c)
	repo.EXPECT().QueuePosition(gomock.Any(), 10, 5).Return(2, nil)

	got, err := newReservationService(repo, time.Now()).GetQueuePosition(context.Background(), 10, 5)
	require.NoError(t, err)
	require.Equal(t, model.QueuePosition{BookID: 10, ReservationID: 5, Position: 2}, got)
}

func TestReservationService_ExpireOverduePickups(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)
	c := gomock.NewController(t)
	defer c.Finish()
	repo := repo_mocks.NewMockRepository(c)
	repo.EXPECT().ListExpiredPickups(gomock.Any(), now).Return([]model.Reservation{{ID: 1}, {ID: 2}, {ID: 3}}, nil)
	repo.EXPECT().ExpireReservation(gomock.Any(), 1, now, 2).Return(nil)
	repo.EXPECT().ExpireReservation(gomock.Any(), 2, now, 2).Return(errors.Wrap(errs.ErrInvalidState, "reservation 2 is Completada"))
	repo.EXPECT().ExpireReservation(gomock.Any(), 3, now, 2).Return(errors.New("db down"))

	got := newReservationService(repo, now).ExpireOverduePickups(context.Background())
	require.Equal(t, model.BatchResult{
		Job:      model.JobExpirePickups,
		Scanned:  3,
		Affected: 1,
		Skipped:  1,
		Errors:   []string{"reservation 3: db down"},
	}, got)
}
