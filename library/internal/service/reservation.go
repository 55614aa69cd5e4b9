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

const (
	msgUserAndBookRequired = "Usuario y libro son requeridos"
	msgActiveReservation   = "El usuario ya tiene una reserva activa"
	msgInvalidType         = "Tipo de reserva inválido"
)

func pendingFinesMessage(count int, total string) string {
	return fmt.Sprintf("No puedes reservar libros porque tienes %d multa(s) pendiente(s) por un total de S/ %s. "+
		"Por favor, paga tus multas antes de realizar una nueva reserva.", count, total)
}

type ReservationService struct {
	log    *zap.Logger
	repo   repository.Repository
	fines  FineChecker
	policy config.Policy
	now    Clock
}

func NewReservationService(repo repository.Repository, fines FineChecker, policy config.Policy, log *zap.Logger, opts ...Option) *ReservationService {
	o := newOptions(opts)
	return &ReservationService{
		log:    log.Named("reservation"),
		repo:   repo,
		fines:  fines,
		policy: policy,
		now:    o.now,
	}
}

// CreateReservation checks the borrower rules and lets the repository place the reservation:
// held for pickup when a copy is free, otherwise at the end of the book's waiting line.
func (s *ReservationService) CreateReservation(ctx context.Context, req model.CreateReservationRequest) (model.Reservation, error) {
	if req.UserID <= 0 || req.BookID <= 0 {
		return model.Reservation{}, errs.NewRule(errs.ErrValidation, msgUserAndBookRequired)
	}
	if req.Type == "" {
		req.Type = model.ReservationTypeQueue
	}
	if !req.Type.Valid() {
		return model.Reservation{}, errs.NewRule(errs.ErrValidation, msgInvalidType)
	}

	count, total, err := s.fines.PendingTotals(ctx, req.UserID)
	if err != nil {
		return model.Reservation{}, errors.Wrap(err, "pending fines")
	}
	if count > 0 {
		return model.Reservation{}, errs.NewRule(errs.ErrForbidden, pendingFinesMessage(count, total.StringFixed(2)))
	}

	if req.Type == model.ReservationTypePickup {
		active, err := s.repo.HasActiveReservation(ctx, req.UserID)
		if err != nil {
			return model.Reservation{}, errors.Wrap(err, "active reservations")
		}
		if active {
			return model.Reservation{}, errs.NewRule(errs.ErrConflict, msgActiveReservation)
		}
	}

	res, err := s.repo.CreateReservation(ctx, req, s.now(), s.policy.Reservations.PickupDays)
	if err != nil {
		return model.Reservation{}, err
	}
	s.log.Info("reservation created",
		zap.Int("id", res.ID),
		zap.Int("user_id", res.UserID),
		zap.Int("book_id", res.BookID),
		zap.String("status", string(res.Status)))
	return res, nil
}

func (s *ReservationService) ListByUser(ctx context.Context, userID int) ([]model.ReservationView, error) {
	return s.repo.ListReservationsByUser(ctx, userID)
}

func (s *ReservationService) ListForPickup(ctx context.Context) ([]model.ReservationView, error) {
	return s.repo.ListReservationsForPickup(ctx)
}

func (s *ReservationService) ListWaiting(ctx context.Context) ([]model.ReservationView, error) {
	return s.repo.ListWaitingReservations(ctx)
}

// Cancel closes a reservation. Only its owner or staff may do so.
func (s *ReservationService) Cancel(ctx context.Context, reservationID, userID int, isAdmin bool) error {
	if reservationID <= 0 {
		return errors.Wrap(errs.ErrValidation, "reservationId must be positive")
	}
	return s.repo.CancelReservation(ctx, reservationID, userID, isAdmin, s.now(), s.policy.Reservations.PickupDays)
}

func (s *ReservationService) ChangeType(ctx context.Context, reservationID int, t model.ReservationType) error {
	if !t.Valid() {
		return errs.NewRule(errs.ErrValidation, msgInvalidType)
	}
	return s.repo.ChangeReservationType(ctx, reservationID, t, s.now(), s.policy.Reservations.PickupDays)
}

func (s *ReservationService) MarkCompleted(ctx context.Context, reservationID int) error {
	return s.repo.CompleteReservation(ctx, reservationID)
}

func (s *ReservationService) Expire(ctx context.Context, reservationID int) error {
	return s.repo.ExpireReservation(ctx, reservationID, s.now(), s.policy.Reservations.PickupDays)
}

// Approve lends a copy to the reservation owner for the loan length of their role.
// ApproveResult.LoanID is zero when no copy was free.
func (s *ReservationService) Approve(ctx context.Context, reservationID, adminID int) (model.ApproveResult, error) {
	if reservationID <= 0 || adminID <= 0 {
		return model.ApproveResult{}, errors.Wrap(errs.ErrValidation, "reservationId and adminId must be positive")
	}
	res, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return model.ApproveResult{}, errors.Wrapf(err, "reservation %d", reservationID)
	}
	if res.Status.IsFinal() {
		return model.ApproveResult{}, errors.Wrapf(errs.ErrInvalidState, "reservation %d is %s", reservationID, res.Status)
	}
	if res.Status == model.ReservationApproved && res.CopyID != nil {
		return model.ApproveResult{}, errors.Wrapf(errs.ErrInvalidState, "reservation %d already lent copy %d", reservationID, *res.CopyID)
	}
	user, err := s.repo.GetUser(ctx, res.UserID)
	if err != nil {
		return model.ApproveResult{}, err
	}
	days := s.policy.Loans.DaysForRole(string(user.Role))

	out, err := s.repo.ApproveReservation(ctx, reservationID, adminID, days, s.now())
	if err != nil {
		return model.ApproveResult{}, err
	}
	s.log.Info("reservation approved",
		zap.Int("id", reservationID),
		zap.Int("admin_id", adminID),
		zap.Int("loan_id", out.LoanID))
	return out, nil
}

func (s *ReservationService) GetQueuePosition(ctx context.Context, bookID, reservationID int) (model.QueuePosition, error) {
	pos, err := s.repo.QueuePosition(ctx, bookID, reservationID)
	if err != nil {
		return model.QueuePosition{}, err
	}
	return model.QueuePosition{BookID: bookID, ReservationID: reservationID, Position: pos}, nil
}

func (s *ReservationService) ProcessQueue(ctx context.Context, bookID int) (bool, error) {
	return s.repo.ProcessQueue(ctx, bookID, s.now(), s.policy.Reservations.PickupDays)
}

// ExpireOverduePickups expires held reservations whose pickup deadline passed.
func (s *ReservationService) ExpireOverduePickups(ctx context.Context) model.BatchResult {
	res := model.BatchResult{Job: model.JobExpirePickups}
	now := s.now()
	list, err := s.repo.ListExpiredPickups(ctx, now)
	if err != nil {
		s.log.Error("list expired pickups", zap.Error(err))
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	res.Scanned = len(list)
	for _, r := range list {
		err := s.repo.ExpireReservation(ctx, r.ID, now, s.policy.Reservations.PickupDays)
		switch {
		case errors.Is(err, errs.ErrInvalidState):
			res.Skipped++
		case err != nil:
			s.log.Error("expire reservation", zap.Int("reservation_id", r.ID), zap.Error(err))
			res.Errors = append(res.Errors, fmt.Sprintf("reservation %d: %v", r.ID, err))
		default:
			res.Affected++
		}
	}
	return res
}
