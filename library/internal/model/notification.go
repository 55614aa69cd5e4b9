package model

import "time"

type NotificationType string

const (
	NotificationFineCreated    NotificationType = "MultaGenerada"
	NotificationReserved       NotificationType = "ReservaCreada"
	NotificationQueued         NotificationType = "ReservaColaEspera"
	NotificationRejected       NotificationType = "ReservaRechazada"
	NotificationQueueAvailable NotificationType = "LibroDisponibleCola"
	NotificationLoanCreated    NotificationType = "PrestamoCreado"
	NotificationApproved       NotificationType = "ReservaAprobada"
	NotificationExpired        NotificationType = "ReservaExpirada"
	NotificationReturned       NotificationType = "Devolucion"
)

const (
	NotificationUnread = "Pendiente"
	NotificationRead   = "Leida"
)

type Notification struct {
	ID            int              `json:"id" db:"id"`
	ReservationID *int             `json:"reservationId,omitempty" db:"reservation_id"`
	UserID        int              `json:"userId" db:"user_id"`
	Type          NotificationType `json:"type" db:"type"`
	Message       string           `json:"message" db:"message"`
	CreatedAt     time.Time        `json:"createdAt" db:"created_at"`
	ReadAt        *time.Time       `json:"readAt,omitempty" db:"read_at"`
	Status        string           `json:"status" db:"status"`
}

// NotificationEvent is the kafka payload for a stored notification.
type NotificationEvent struct {
	EventID        string           `json:"eventId"`
	NotificationID int              `json:"notificationId"`
	UserID         int              `json:"userId"`
	ReservationID  *int             `json:"reservationId,omitempty"`
	Type           NotificationType `json:"type"`
	Message        string           `json:"message"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Overview is the signed-in user's dashboard.
type Overview struct {
	Fines         FineSummary       `json:"fines"`
	Reservations  []ReservationView `json:"reservations"`
	Loans         []LoanView        `json:"loans"`
	Notifications []Notification    `json:"notifications"`
}
