package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/config"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/errs"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/repository"
)

const (
	generateLockKey = "fines:generate"
	generateLockTTL = 10 * time.Minute
)

type FineService struct {
	log    *zap.Logger
	repo   repository.FineRepository
	policy config.Fines
	locker Locker
	now    Clock
}

// NewFineService builds the fine service. locker may be nil, in which case
// concurrent generation runs are only kept apart by the one-pending-fine-per-loan index.
func NewFineService(repo repository.FineRepository, policy config.Fines, locker Locker, log *zap.Logger, opts ...Option) *FineService {
	o := newOptions(opts)
	return &FineService{
		log:    log.Named("fine"),
		repo:   repo,
		policy: policy,
		locker: locker,
		now:    o.now,
	}
}

func (s *FineService) ListByUser(ctx context.Context, userID int) ([]model.Fine, error) {
	return s.repo.ListFinesByUser(ctx, userID)
}

func (s *FineService) ListPending(ctx context.Context) ([]model.Fine, error) {
	return s.repo.ListPendingFines(ctx)
}

func (s *FineService) ListPendingByUser(ctx context.Context, userID int) ([]model.Fine, error) {
	return s.repo.ListPendingFinesByUser(ctx, userID)
}

func (s *FineService) GetSummary(ctx context.Context, userID int) (model.FineSummary, error) {
	return s.repo.FineSummary(ctx, userID)
}

func (s *FineService) Create(ctx context.Context, req model.CreateFineRequest) (model.Fine, error) {
	if req.LoanID <= 0 || req.UserID <= 0 || !req.Amount.IsPositive() {
		return model.Fine{}, errors.Wrap(errs.ErrValidation, "loanId, userId and amount must be positive")
	}
	return s.repo.CreateFine(ctx, model.Fine{
		LoanID:   req.LoanID,
		UserID:   req.UserID,
		Amount:   req.Amount.Round(2),
		Reason:   req.Reason,
		DaysLate: req.DaysLate,
	})
}

// Pay settles a pending fine. Missing or already settled fines are left untouched.
func (s *FineService) Pay(ctx context.Context, fineID int, notes *string) error {
	if fineID <= 0 {
		return errors.Wrap(errs.ErrValidation, "fineId must be positive")
	}
	fine, err := s.repo.GetFine(ctx, fineID)
	if err != nil {
		return errors.Wrapf(err, "fine %d", fineID)
	}
	if fine.Status != model.FinePending {
		return errors.Wrapf(errs.ErrInvalidState, "fine %d is %s", fineID, fine.Status)
	}
	return s.repo.PayFine(ctx, fineID, notes, s.now())
}

func (s *FineService) HasPending(ctx context.Context, userID int) (bool, error) {
	n, _, err := s.PendingTotals(ctx, userID)
	return n > 0, err
}

// PendingTotals returns how many pending fines the user has and what they add up to.
func (s *FineService) PendingTotals(ctx context.Context, userID int) (int, decimal.Decimal, error) {
	fines, err := s.repo.ListPendingFinesByUser(ctx, userID)
	if err != nil {
		return 0, decimal.Zero, err
	}
	total := decimal.Zero
	for _, f := range fines {
		total = total.Add(f.Amount)
	}
	return len(fines), total, nil
}

// Amount is the fine owed for daysLate days at the configured rate.
func (s *FineService) Amount(daysLate int) decimal.Decimal {
	amount := s.policy.DailyRate.Mul(decimal.NewFromInt(int64(daysLate)))
	if s.policy.MaxAmount.IsPositive() && amount.GreaterThan(s.policy.MaxAmount) {
		amount = s.policy.MaxAmount
	}
	return amount.Round(2)
}

// GenerateAutomaticFines fines every active loan that was due before today and has no pending fine.
// It never fails as a whole: problems with single loans are logged and reported in the result.
func (s *FineService) GenerateAutomaticFines(ctx context.Context) model.BatchResult {
	res := model.BatchResult{Job: model.JobGenerateFines}

	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx, generateLockKey, generateLockTTL)
		switch {
		case err != nil:
			s.log.Warn("generation lock unavailable, relying on the pending fine index", zap.Error(err))
		case !ok:
			s.log.Info("fine generation already running")
			res.AlreadyRunning = true
			return res
		default:
			defer func() {
				if err := unlock(context.WithoutCancel(ctx)); err != nil {
					s.log.Warn("release generation lock", zap.Error(err))
				}
			}()
		}
	}

	today := startOfDay(s.now())
	loans, err := s.repo.ListOverdueLoans(ctx, today)
	if err != nil {
		s.log.Error("list overdue loans", zap.Error(err))
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	res.Scanned = len(loans)

	for _, loan := range loans {
		daysLate := daysBetween(loan.DueAt, today)
		if daysLate <= 0 {
			res.Skipped++
			continue
		}
		reason := model.LateReturnReason(daysLate)
		_, err := s.repo.CreateFine(ctx, model.Fine{
			LoanID:   loan.ID,
			UserID:   loan.UserID,
			Amount:   s.Amount(daysLate),
			Reason:   &reason,
			DaysLate: &daysLate,
		})
		switch {
		case errors.Is(err, errs.ErrConflict):
			res.Skipped++
		case err != nil:
			s.log.Error("create fine", zap.Int("loan_id", loan.ID), zap.Error(err))
			res.Errors = append(res.Errors, fmt.Sprintf("loan %d: %v", loan.ID, err))
		default:
			res.Affected++
		}
	}

	s.log.Info("fines generated",
		zap.Int("scanned", res.Scanned),
		zap.Int("created", res.Affected),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", len(res.Errors)))
	return res
}

// CorrectFinesForReturnedLoans settles pending fines of loans that were returned since. Idempotent.
func (s *FineService) CorrectFinesForReturnedLoans(ctx context.Context) model.BatchResult {
	res := model.BatchResult{Job: model.JobCorrectFines}
	n, err := s.repo.CorrectFinesForReturnedLoans(ctx, s.now())
	if err != nil {
		s.log.Error("correct fines", zap.Error(err))
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	res.Affected = n
	if n > 0 {
		s.log.Info("fines corrected", zap.Int("corrected", n))
	}
	return res
}
