package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type FineStatus string

const (
	FinePending FineStatus = "Pendiente"
	FinePaid    FineStatus = "Pagada"
)

type Fine struct {
	ID        int             `json:"id" db:"id"`
	LoanID    int             `json:"loanId" db:"loan_id"`
	UserID    int             `json:"userId" db:"user_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Status    FineStatus      `json:"status" db:"status"`
	Reason    *string         `json:"reason,omitempty" db:"reason"`
	DaysLate  *int            `json:"daysLate,omitempty" db:"days_late"`
	ChargedAt *time.Time      `json:"chargedAt,omitempty" db:"charged_at"`
	Notes     *string         `json:"notes,omitempty" db:"notes"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

type FineSummary struct {
	Total         int             `json:"totalFines" db:"total"`
	Pending       int             `json:"pendingFines" db:"pending"`
	Paid          int             `json:"paidFines" db:"paid"`
	PendingAmount decimal.Decimal `json:"pendingAmount" db:"pending_amount"`
	PaidAmount    decimal.Decimal `json:"paidAmount" db:"paid_amount"`
	TotalAmount   decimal.Decimal `json:"totalAmount" db:"total_amount"`
}

type CreateFineRequest struct {
	LoanID   int             `json:"loanId"`
	UserID   int             `json:"userId"`
	Amount   decimal.Decimal `json:"amount"`
	Reason   *string         `json:"reason"`
	DaysLate *int            `json:"daysLate"`
}

type PayFineRequest struct {
	Notes *string `json:"notes"`
}
