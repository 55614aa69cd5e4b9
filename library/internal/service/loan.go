package service

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/config"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/errs"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/repository"
)

const msgRenewWithFine = "No se puede renovar un préstamo con una multa pendiente"

type LoanService struct {
	log    *zap.Logger
	repo   repository.Repository
	policy config.Policy
	now    Clock
}

func NewLoanService(repo repository.Repository, policy config.Policy, log *zap.Logger, opts ...Option) *LoanService {
	o := newOptions(opts)
	return &LoanService{
		log:    log.Named("loan"),
		repo:   repo,
		policy: policy,
		now:    o.now,
	}
}

// CreateLoan lends a copy directly. Days zero takes the default length for the borrower's role.
func (s *LoanService) CreateLoan(ctx context.Context, req model.CreateLoanRequest) (model.Loan, error) {
	if req.CopyID <= 0 || req.UserID <= 0 || req.Days < 0 || req.Days > s.policy.Loans.MaxLoanDays {
		return model.Loan{}, errors.Wrapf(errs.ErrValidation, "copyId and userId must be positive, days within 0..%d", s.policy.Loans.MaxLoanDays)
	}
	user, err := s.repo.GetUser(ctx, req.UserID)
	if err != nil {
		return model.Loan{}, err
	}
	if req.Days == 0 {
		req.Days = s.policy.Loans.DaysForRole(string(user.Role))
	}

	if max := s.policy.Loans.MaxLoansForRole(string(user.Role)); max > 0 {
		active, err := s.repo.CountActiveLoans(ctx, user.ID)
		if err != nil {
			return model.Loan{}, err
		}
		if active >= max {
			return model.Loan{}, errs.NewRule(errs.ErrConflict,
				fmt.Sprintf("El usuario ya tiene el máximo de %d préstamo(s) activo(s)", max))
		}
	}

	loan, err := s.repo.CreateLoan(ctx, req, s.now())
	if err != nil {
		return model.Loan{}, err
	}
	s.log.Info("loan created", zap.Int("id", loan.ID), zap.Int("copy_id", loan.CopyID), zap.Int("user_id", loan.UserID))
	return loan, nil
}

func (s *LoanService) Get(ctx context.Context, loanID int) (model.Loan, error) {
	return s.repo.GetLoan(ctx, loanID)
}

func (s *LoanService) ReturnLoan(ctx context.Context, loanID int, notes *string) (model.Loan, error) {
	if loanID <= 0 {
		return model.Loan{}, errors.Wrap(errs.ErrValidation, "loanId must be positive")
	}
	return s.repo.ReturnLoan(ctx, loanID, notes, s.now(), s.policy.Reservations.PickupDays)
}

func (s *LoanService) RenewLoan(ctx context.Context, loanID, days int) (model.Loan, error) {
	if loanID <= 0 || days <= 0 || days > s.policy.Loans.MaxRenewDays {
		return model.Loan{}, errors.Wrapf(errs.ErrValidation, "days must be within 1..%d", s.policy.Loans.MaxRenewDays)
	}
	loan, err := s.repo.GetLoan(ctx, loanID)
	if err != nil {
		return model.Loan{}, errors.Wrapf(err, "loan %d", loanID)
	}
	if loan.Status != model.LoanActive {
		return model.Loan{}, errors.Wrapf(errs.ErrInvalidState, "loan %d is %s", loanID, loan.Status)
	}
	if loan.Renewals >= s.policy.Loans.MaxRenewals {
		return model.Loan{}, errs.NewRule(errs.ErrInvalidState,
			fmt.Sprintf("El préstamo ya alcanzó el máximo de %d renovación(es)", s.policy.Loans.MaxRenewals))
	}
	fined, err := s.repo.HasPendingFineForLoan(ctx, loanID)
	if err != nil {
		return model.Loan{}, err
	}
	if fined {
		return model.Loan{}, errs.NewRule(errs.ErrInvalidState, msgRenewWithFine)
	}
	return s.repo.RenewLoan(ctx, loanID, days, s.policy.Loans.MaxRenewals)
}

func (s *LoanService) ListActive(ctx context.Context) ([]model.LoanView, error) {
	return s.repo.ListActiveLoans(ctx)
}

func (s *LoanService) ListByUser(ctx context.Context, userID int, activeOnly bool) ([]model.LoanView, error) {
	return s.repo.ListLoansByUser(ctx, userID, activeOnly)
}

func (s *LoanService) ListOverdue(ctx context.Context) ([]model.LoanView, error) {
	return s.repo.ListOverdueLoanViews(ctx, s.now())
}
