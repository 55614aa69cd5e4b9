package model

import "time"

type LoanStatus string

const (
	LoanActive   LoanStatus = "Prestado"
	LoanReturned LoanStatus = "Devuelto"
)

type Loan struct {
	ID         int        `json:"id" db:"id"`
	CopyID     int        `json:"copyId" db:"copy_id"`
	UserID     int        `json:"userId" db:"user_id"`
	LoanedAt   time.Time  `json:"loanedAt" db:"loaned_at"`
	DueAt      time.Time  `json:"dueAt" db:"due_at"`
	ReturnedAt *time.Time `json:"returnedAt,omitempty" db:"returned_at"`
	Status     LoanStatus `json:"status" db:"status"`
	Renewals   int        `json:"renewals" db:"renewals"`
	Notes      *string    `json:"notes,omitempty" db:"notes"`
}

// LoanView is a loan joined with its copy, book and borrower.
type LoanView struct {
	Loan
	BookID      int    `json:"bookId" db:"book_id"`
	BookTitle   string `json:"bookTitle" db:"book_title"`
	CopyBarcode string `json:"copyBarcode" db:"copy_barcode"`
	UserName    string `json:"userName" db:"user_name"`
	UserCode    string `json:"userCode" db:"user_code"`
}

type CreateLoanRequest struct {
	CopyID int `json:"copyId" validate:"required,gt=0"`
	UserID int `json:"userId"`
	// Days zero means the default for the borrower role.
	Days int `json:"days" validate:"gte=0"`
}

type RenewLoanRequest struct {
	Days int `json:"days" validate:"required,gt=0"`
}

type ReturnLoanRequest struct {
	Notes *string `json:"notes"`
}

// ReturnEvent is published by self-service kiosks on the returns topic.
type ReturnEvent struct {
	LoanID int       `json:"loanId"`
	Notes  *string   `json:"notes,omitempty"`
	At     time.Time `json:"at"`
}
