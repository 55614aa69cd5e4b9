package handler

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type FineService interface {
	ListByUser(ctx context.Context, userID int) ([]model.Fine, error)
	ListPending(ctx context.Context) ([]model.Fine, error)
	ListPendingByUser(ctx context.Context, userID int) ([]model.Fine, error)
	GetSummary(ctx context.Context, userID int) (model.FineSummary, error)
	Create(ctx context.Context, req model.CreateFineRequest) (model.Fine, error)
	Pay(ctx context.Context, fineID int, notes *string) error
	PendingTotals(ctx context.Context, userID int) (int, decimal.Decimal, error)
	GenerateAutomaticFines(ctx context.Context) model.BatchResult
	CorrectFinesForReturnedLoans(ctx context.Context) model.BatchResult
}

type ReservationService interface {
	CreateReservation(ctx context.Context, req model.CreateReservationRequest) (model.Reservation, error)
	ListByUser(ctx context.Context, userID int) ([]model.ReservationView, error)
	ListForPickup(ctx context.Context) ([]model.ReservationView, error)
	ListWaiting(ctx context.Context) ([]model.ReservationView, error)
	Cancel(ctx context.Context, reservationID, userID int, isAdmin bool) error
	ChangeType(ctx context.Context, reservationID int, t model.ReservationType) error
	MarkCompleted(ctx context.Context, reservationID int) error
	Expire(ctx context.Context, reservationID int) error
	Approve(ctx context.Context, reservationID, adminID int) (model.ApproveResult, error)
	GetQueuePosition(ctx context.Context, bookID, reservationID int) (model.QueuePosition, error)
	ExpireOverduePickups(ctx context.Context) model.BatchResult
}

type LoanService interface {
	CreateLoan(ctx context.Context, req model.CreateLoanRequest) (model.Loan, error)
	Get(ctx context.Context, loanID int) (model.Loan, error)
	ReturnLoan(ctx context.Context, loanID int, notes *string) (model.Loan, error)
	RenewLoan(ctx context.Context, loanID, days int) (model.Loan, error)
	ListActive(ctx context.Context) ([]model.LoanView, error)
	ListByUser(ctx context.Context, userID int, activeOnly bool) ([]model.LoanView, error)
	ListOverdue(ctx context.Context) ([]model.LoanView, error)
}

type NotificationService interface {
	ListByUser(ctx context.Context, userID int) ([]model.Notification, error)
	ListUnread(ctx context.Context, userID int) ([]model.Notification, error)
	MarkRead(ctx context.Context, id, userID int) error
	MarkAllRead(ctx context.Context, userID int) (int, error)
	Delete(ctx context.Context, id, userID int) error
}

var (
	_ FineService         = (*service.FineService)(nil)
	_ ReservationService  = (*service.ReservationService)(nil)
	_ LoanService         = (*service.LoanService)(nil)
	_ NotificationService = (*service.NotificationService)(nil)
)
