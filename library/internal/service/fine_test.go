package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/config"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/errs"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/service"

	repo_mocks "github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/repository/mocks"
	service_mocks "github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/service/mocks"
)

func fixedClock(t time.Time) service.Option {
	return service.WithClock(func() time.Time { return t })
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestFineService_GenerateAutomaticFines(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)
	today := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	type want struct {
		result  model.BatchResult
		amounts []string
		days    []int
	}
	type mockBehavior func(r *repo_mocks.MockFineRepository, l *service_mocks.MockLocker, created *[]model.Fine)

	capture := func(created *[]model.Fine, err error) func(context.Context, model.Fine) (model.Fine, error) {
		return func(_ context.Context, f model.Fine) (model.Fine, error) {
			if err != nil {
				return model.Fine{}, err
			}
			*created = append(*created, f)
			return f, nil
		}
	}

	tests := []struct {
		name         string
		policy       config.Fines
		mockBehavior mockBehavior
		want         want
	}{
		{
			name:   "daily rate times whole days late",
			policy: config.Fines{DailyRate: dec("2.50")},
			mockBehavior: func(r *repo_mocks.MockFineRepository, l *service_mocks.MockLocker, created *[]model.Fine) {
				l.EXPECT().TryLock(gomock.Any(), "fines:generate", gomock.Any()).
					Return(func(context.Context) error { return nil }, true, nil)
				r.EXPECT().ListOverdueLoans(gomock.Any(), today).Return([]model.Loan{
					{ID: 1, UserID: 9, DueAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Status: model.LoanActive},
				}, nil)
				r.EXPECT().CreateFine(gomock.Any(), gomock.Any()).DoAndReturn(capture(created, nil))
			},
			want: want{
				result:  model.BatchResult{Job: model.JobGenerateFines, Scanned: 1, Affected: 1},
				amounts: []string{"10.00"},
				days:    []int{4},
			},
		},
		{
			name:   "amount capped",
			policy: config.Fines{DailyRate: dec("2.50"), MaxAmount: dec("5")},
			mockBehavior: func(r *repo_mocks.MockFineRepository, l *service_mocks.MockLocker, created *[]model.Fine) {
				l.EXPECT().TryLock(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(func(context.Context) error { return nil }, true, nil)
				r.EXPECT().ListOverdueLoans(gomock.Any(), today).Return([]model.Loan{
					{ID: 1, UserID: 9, DueAt: time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)},
				}, nil)
				r.EXPECT().CreateFine(gomock.Any(), gomock.Any()).DoAndReturn(capture(created, nil))
			},
			want: want{
				result:  model.BatchResult{Job: model.JobGenerateFines, Scanned: 1, Affected: 1},
				amounts: []string{"5.00"},
				days:    []int{4},
			},
		},
		{
			name:   "existing pending fine is skipped",
			policy: config.Fines{DailyRate: dec("2")},
			mockBehavior: func(r *repo_mocks.MockFineRepository, l *service_mocks.MockLocker, created *[]model.Fine) {
				l.EXPECT().TryLock(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(func(context.Context) error { return nil }, true, nil)
				r.EXPECT().ListOverdueLoans(gomock.Any(), today).Return([]model.Loan{
					{ID: 1, UserID: 9, DueAt: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
					{ID: 2, UserID: 9, DueAt: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)},
				}, nil)
				gomock.InOrder(
					r.EXPECT().CreateFine(gomock.Any(), gomock.Any()).
						DoAndReturn(capture(created, errors.Wrap(errs.ErrConflict, "fines_one_pending_per_loan"))),
					r.EXPECT().CreateFine(gomock.Any(), gomock.Any()).DoAndReturn(capture(created, nil)),
				)
			},
			want: want{
				result:  model.BatchResult{Job: model.JobGenerateFines, Scanned: 2, Affected: 1, Skipped: 1},
				amounts: []string{"2.00"},
				days:    []int{1},
			},
		},
		{
			name:   "failure on one loan does not stop the run",
			policy: config.Fines{DailyRate: dec("1")},
			mockBehavior: func(r *repo_mocks.MockFineRepository, l *service_mocks.MockLocker, created *[]model.Fine) {
				l.EXPECT().TryLock(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(func(context.Context) error { return nil }, true, nil)
				r.EXPECT().ListOverdueLoans(gomock.Any(), today).Return([]model.Loan{
					{ID: 1, UserID: 9, DueAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
					{ID: 2, UserID: 8, DueAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
				}, nil)
				gomock.InOrder(
					r.EXPECT().CreateFine(gomock.Any(), gomock.Any()).DoAndReturn(capture(created, errors.New("db down"))),
					r.EXPECT().CreateFine(gomock.Any(), gomock.Any()).DoAndReturn(capture(created, nil)),
				)
			},
			want: want{
				result: model.BatchResult{
					Job: model.JobGenerateFines, Scanned: 2, Affected: 1,
					Errors: []string{"loan 1: db down"},
				},
				amounts: []string{"3.00"},
				days:    []int{3},
			},
		},
		{
			name:   "listing failure is reported",
			policy: config.Fines{DailyRate: dec("1")},
			mockBehavior: func(r *repo_mocks.MockFineRepository, l *service_mocks.MockLocker, created *[]model.Fine) {
				l.EXPECT().TryLock(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(func(context.Context) error { return nil }, true, nil)
				r.EXPECT().ListOverdueLoans(gomock.Any(), today).Return(nil, errors.New("db down"))
			},
			want: want{
				result: model.BatchResult{Job: model.JobGenerateFines, Errors: []string{"db down"}},
			},
		},
		{
			name:   "another run holds the lock",
			policy: config.Fines{DailyRate: dec("1")},
			mockBehavior: func(r *repo_mocks.MockFineRepository, l *service_mocks.MockLocker, created *[]model.Fine) {
				l.EXPECT().TryLock(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, false, nil)
			},
			want: want{
				result: model.BatchResult{Job: model.JobGenerateFines, AlreadyRunning: true},
			},
		},
		{
			name:   "lock backend down still runs",
			policy: config.Fines{DailyRate: dec("1")},
			mockBehavior: func(r *repo_mocks.MockFineRepository, l *service_mocks.MockLocker, created *[]model.Fine) {
				l.EXPECT().TryLock(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, false, errors.New("redis: connection refused"))
				r.EXPECT().ListOverdueLoans(gomock.Any(), today).Return(nil, nil)
			},
			want: want{
				result: model.BatchResult{Job: model.JobGenerateFines},
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()

			repo := repo_mocks.NewMockFineRepository(c)
			locker := service_mocks.NewMockLocker(c)
			var created []model.Fine
			tt.mockBehavior(repo, locker, &created)

			svc := service.NewFineService(repo, tt.policy, locker, zap.NewNop(), fixedClock(now))
			got := svc.GenerateAutomaticFines(context.Background())

			require.Equal(t, tt.want.result, got)
			require.Len(t, created, len(tt.want.amounts))
			for i, f := range created {
				require.Equal(t, tt.want.amounts[i], f.Amount.StringFixed(2))
				require.NotNil(t, f.DaysLate)
				require.Equal(t, tt.want.days[i], *f.DaysLate)
				require.NotNil(t, f.Reason)
				require.Equal(t, model.LateReturnReason(tt.want.days[i]), *f.Reason)
			}
		})
	}
}

func TestFineService_GenerateAutomaticFinesUTCDates(t *testing.T) {
	t.Parallel()
	c := gomock.NewController(t)
	defer c.Finish()

	// 2024-01-05 01:00 at UTC+5 is still 2024-01-04 in UTC
	now := time.Date(2024, 1, 5, 1, 0, 0, 0, time.FixedZone("UTC+5", 5*60*60))
	today := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)

	repo := repo_mocks.NewMockFineRepository(c)
	repo.EXPECT().ListOverdueLoans(gomock.Any(), today).Return([]model.Loan{
		{ID: 1, UserID: 9, DueAt: time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)},
	}, nil)
	var created []model.Fine
	repo.EXPECT().CreateFine(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, f model.Fine) (model.Fine, error) {
		created = append(created, f)
		return f, nil
	})

	svc := service.NewFineService(repo, config.Fines{DailyRate: dec("1")}, nil, zap.NewNop(), fixedClock(now))
	got := svc.GenerateAutomaticFines(context.Background())

	require.Equal(t, model.BatchResult{Job: model.JobGenerateFines, Scanned: 1, Affected: 1}, got)
	require.Len(t, created, 1)
	require.Equal(t, 3, *created[0].DaysLate)
	require.Equal(t, "3.00", created[0].Amount.StringFixed(2))
}

func TestFineService_GenerateAutomaticFines_Idempotent(t *testing.T) {
	t.Parallel()
	c := gomock.NewController(t)
	defer c.Finish()

	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	repo := repo_mocks.NewMockFineRepository(c)
	loan := model.Loan{ID: 4, UserID: 2, DueAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}

	// the second run no longer sees the loan: it already carries a pending fine
	gomock.InOrder(
		repo.EXPECT().ListOverdueLoans(gomock.Any(), gomock.Any()).Return([]model.Loan{loan}, nil),
		repo.EXPECT().CreateFine(gomock.Any(), gomock.Any()).Return(model.Fine{ID: 1}, nil),
		repo.EXPECT().ListOverdueLoans(gomock.Any(), gomock.Any()).Return(nil, nil),
	)

	svc := service.NewFineService(repo, config.Fines{DailyRate: dec("2")}, nil, zap.NewNop(), fixedClock(now))
	require.Equal(t, 1, svc.GenerateAutomaticFines(context.Background()).Affected)
	require.Equal(t, 0, svc.GenerateAutomaticFines(context.Background()).Affected)
}

func TestFineService_Pay(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	notes := "efectivo"

	type mockBehavior func(r *repo_mocks.MockFineRepository)
	tests := []struct {
		name         string
		fineID       int
		mockBehavior mockBehavior
		wantErr      error
	}{
		{
			name:   "ok",
			fineID: 3,
			mockBehavior: func(r *repo_mocks.MockFineRepository) {
				r.EXPECT().GetFine(gomock.Any(), 3).Return(model.Fine{ID: 3, Status: model.FinePending}, nil)
				r.EXPECT().PayFine(gomock.Any(), 3, &notes, now).Return(nil)
			},
		},
		{
			name:   "already paid is left untouched",
			fineID: 7,
			mockBehavior: func(r *repo_mocks.MockFineRepository) {
				r.EXPECT().GetFine(gomock.Any(), 7).Return(model.Fine{ID: 7, Status: model.FinePaid}, nil)
			},
			wantErr: errs.ErrInvalidState,
		},
		{
			name:   "missing",
			fineID: 8,
			mockBehavior: func(r *repo_mocks.MockFineRepository) {
				r.EXPECT().GetFine(gomock.Any(), 8).Return(model.Fine{}, errs.ErrNotFound)
			},
			wantErr: errs.ErrNotFound,
		},
		{
			name:         "non positive id",
			fineID:       0,
			mockBehavior: func(r *repo_mocks.MockFineRepository) {},
			wantErr:      errs.ErrValidation,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			repo := repo_mocks.NewMockFineRepository(c)
			tt.mockBehavior(repo)

			svc := service.NewFineService(repo, config.Fines{DailyRate: dec("2")}, nil, zap.NewNop(), fixedClock(now))
			err := svc.Pay(context.Background(), tt.fineID, &notes)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestFineService_Create(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		req     model.CreateFineRequest
		wantErr bool
	}{
		{name: "ok", req: model.CreateFineRequest{LoanID: 1, UserID: 2, Amount: dec("3.456")}},
		{name: "no loan", req: model.CreateFineRequest{LoanID: 0, UserID: 2, Amount: dec("3")}, wantErr: true},
		{name: "no user", req: model.CreateFineRequest{LoanID: 1, UserID: -1, Amount: dec("3")}, wantErr: true},
		{name: "zero amount", req: model.CreateFineRequest{LoanID: 1, UserID: 2, Amount: decimal.Zero}, wantErr: true},
		{name: "negative amount", req: model.CreateFineRequest{LoanID: 1, UserID: 2, Amount: dec("-1")}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			repo := repo_mocks.NewMockFineRepository(c)
			if !tt.wantErr {
				repo.EXPECT().CreateFine(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, f model.Fine) (model.Fine, error) {
						require.Equal(t, "3.46", f.Amount.StringFixed(2))
						f.ID, f.Status = 11, model.FinePending
						return f, nil
					})
			}

			svc := service.NewFineService(repo, config.Fines{DailyRate: dec("2")}, nil, zap.NewNop())
			fine, err := svc.Create(context.Background(), tt.req)
			if tt.wantErr {
				require.ErrorIs(t, err, errs.ErrValidation)
				return
			}
			require.NoError(t, err)
			require.Equal(t, model.FinePending, fine.Status)
		})
	}
}

func TestFineService_PendingTotals(t *testing.T) {
	t.Parallel()
	c := gomock.NewController(t)
	defer c.Finish()
	repo := repo_mocks.NewMockFineRepository(c)
	repo.EXPECT().ListPendingFinesByUser(gomock.Any(), 5).Return([]model.Fine{
		{ID: 1, Amount: dec("3.50"), Status: model.FinePending},
		{ID: 2, Amount: dec("1.00"), Status: model.FinePending},
	}, nil)

	svc := service.NewFineService(repo, config.Fines{DailyRate: dec("2")}, nil, zap.NewNop())
	n, total, err := svc.PendingTotals(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "4.50", total.StringFixed(2))
}

func TestFineService_CorrectFinesForReturnedLoans(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	c := gomock.NewController(t)
	defer c.Finish()
	repo := repo_mocks.NewMockFineRepository(c)
	gomock.InOrder(
		repo.EXPECT().CorrectFinesForReturnedLoans(gomock.Any(), now).Return(2, nil),
		repo.EXPECT().CorrectFinesForReturnedLoans(gomock.Any(), now).Return(0, errors.New("db down")),
	)

	svc := service.NewFineService(repo, config.Fines{DailyRate: dec("2")}, nil, zap.NewNop(), fixedClock(now))
	require.Equal(t, model.BatchResult{Job: model.JobCorrectFines, Affected: 2}, svc.CorrectFinesForReturnedLoans(context.Background()))
	require.Equal(t, model.BatchResult{Job: model.JobCorrectFines, Errors: []string{"db down"}}, svc.CorrectFinesForReturnedLoans(context.Background()))
}
