package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	stampLayout  = "2006-01-02 15:04"
	untitledBook = "Libro"

	ExpiredMessage = "Tu reserva ha expirado por no ser recogida a tiempo."
)

func titleOr(title string) string {
	if strings.TrimSpace(title) == "" {
		return untitledBook
	}
	return title
}

func FineCreatedMessage(amount decimal.Decimal, reason *string, daysLate *int, title string) string {
	var b strings.Builder
	b.WriteString("Se te ha generado una multa de $")
	b.WriteString(amount.StringFixed(2))
	if reason != nil && *reason != "" {
		b.WriteString(" por: ")
		b.WriteString(*reason)
	}
	if daysLate != nil && *daysLate > 0 {
		fmt.Fprintf(&b, " (%d día(s) de atraso)", *daysLate)
	}
	if title != "" {
		b.WriteString(" - Libro: ")
		b.WriteString(title)
	}
	return b.String()
}

func LateReturnReason(daysLate int) string {
	return fmt.Sprintf("Retraso en devolución - %d día(s) de atraso", daysLate)
}

func ReservationCreatedMessage(t ReservationType, title string) string {
	if t == ReservationTypeQueue {
		return fmt.Sprintf("Tu reserva del libro '%s' ha sido agregada a la cola de espera. Te notificaremos cuando esté disponible.", titleOr(title))
	}
	return fmt.Sprintf("Tu reserva del libro '%s' ha sido creada.", titleOr(title))
}

func ReservationRejectedMessage(title string) string {
	return fmt.Sprintf("Tu reserva del libro '%s' ha sido rechazada por el administrador. Por favor, contacta con la biblioteca para más información.", titleOr(title))
}

func QueueAvailableMessage(title string, at time.Time) string {
	return fmt.Sprintf("¡Buenas noticias! El libro '%s' que tenías en cola de espera ya está disponible. Fecha/Hora: %s", titleOr(title), at.Format(stampLayout))
}

func LoanCreatedMessage(title string, at time.Time) string {
	return fmt.Sprintf("Se ha creado tu préstamo del ejemplar %s. Fecha/Hora: %s", titleOr(title), at.Format(stampLayout))
}

func ReservationApprovedMessage(title string, at time.Time) string {
	return fmt.Sprintf("Tu reserva fue aprobada para el libro %s. Fecha/Hora: %s", titleOr(title), at.Format(stampLayout))
}

func LoanReturnedMessage(title string, at time.Time) string {
	return fmt.Sprintf("Se registró la devolución de tu préstamo del ejemplar %s. Fecha/Hora: %s", titleOr(title), at.Format(stampLayout))
}
