package model

import "time"

type ReservationStatus string

const (
	ReservationQueued    ReservationStatus = "ColaEspera"
	ReservationPending   ReservationStatus = "PorAprobar"
	ReservationApproved  ReservationStatus = "Aprobada"
	ReservationCompleted ReservationStatus = "Completada"
	ReservationCancelled ReservationStatus = "Cancelada"
	ReservationExpired   ReservationStatus = "Expirada"
	ReservationNotified  ReservationStatus = "Notificada"
)

// IsFinal reports the terminal states.
func (s ReservationStatus) IsFinal() bool {
	switch s {
	case ReservationCompleted, ReservationCancelled, ReservationExpired:
		return true
	}
	return false
}

// ActiveReservationStatuses are the states that hold a claim on a book.
var ActiveReservationStatuses = []ReservationStatus{ReservationQueued, ReservationPending, ReservationApproved}

type ReservationType string

const (
	ReservationTypeQueue  ReservationType = "ColaEspera"
	ReservationTypePickup ReservationType = "Retiro"
)

func (t ReservationType) Valid() bool {
	return t == ReservationTypeQueue || t == ReservationTypePickup
}

type Reservation struct {
	ID                 int               `json:"id" db:"id"`
	UserID             int               `json:"userId" db:"user_id"`
	BookID             int               `json:"bookId" db:"book_id"`
	CopyID             *int              `json:"copyId,omitempty" db:"copy_id"`
	CreatedAt          time.Time         `json:"createdAt" db:"created_at"`
	Status             ReservationStatus `json:"status" db:"status"`
	Type               ReservationType   `json:"type" db:"type"`
	NotificationStatus *string           `json:"notificationStatus,omitempty" db:"notification_status"`
	PickupDeadline     *time.Time        `json:"pickupDeadline,omitempty" db:"pickup_deadline"`
	QueuePriority      *int              `json:"queuePriority,omitempty" db:"queue_priority"`
}

// ReservationView is a reservation joined with book, borrower and copy,
// plus its current place in the book's waiting queue.
type ReservationView struct {
	Reservation
	BookTitle     string  `json:"bookTitle" db:"book_title"`
	BookISBN      *string `json:"bookIsbn,omitempty" db:"book_isbn"`
	UserName      string  `json:"userName" db:"user_name"`
	UserCode      string  `json:"userCode" db:"user_code"`
	CopyNumber    *int    `json:"copyNumber,omitempty" db:"copy_number"`
	CopyBarcode   *string `json:"copyBarcode,omitempty" db:"copy_barcode"`
	QueuePosition *int    `json:"queuePosition,omitempty" db:"queue_position"`
}

type CreateReservationRequest struct {
	UserID int             `json:"userId"`
	BookID int             `json:"bookId"`
	Type   ReservationType `json:"type"`
	CopyID *int            `json:"copyId"`
}

type ChangeTypeRequest struct {
	Type ReservationType `json:"type" validate:"required"`
}

// ApproveResult carries the loan created on approval; LoanID is zero
// when no copy was free and the reservation was approved without a loan.
type ApproveResult struct {
	ReservationID int `json:"reservationId"`
	LoanID        int `json:"loanId"`
}

type QueuePosition struct {
	BookID        int `json:"bookId"`
	ReservationID int `json:"reservationId"`
	Position      int `json:"position"`
}
