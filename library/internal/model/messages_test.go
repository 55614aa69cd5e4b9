package model_test

import (
	"testing"
	"time"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFineCreatedMessage(t *testing.T) {
	t.Parallel()
	reason := model.LateReturnReason(4)
	days := 4
	tests := []struct {
		name     string
		amount   decimal.Decimal
		reason   *string
		daysLate *int
		title    string
		want     string
	}{
		{
			name:   "amount only",
			amount: decimal.RequireFromString("3.5"),
			want:   "Se te ha generado una multa de $3.50",
		},
		{
			name:     "full",
			amount:   decimal.RequireFromString("10"),
			reason:   &reason,
			daysLate: &days,
			title:    "Cálculo I",
			want:     "Se te ha generado una multa de $10.00 por: Retraso en devolución - 4 día(s) de atraso (4 día(s) de atraso) - Libro: Cálculo I",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, model.FineCreatedMessage(tt.amount, tt.reason, tt.daysLate, tt.title))
		})
	}
}

func TestReservationMessages(t *testing.T) {
	t.Parallel()
	at := time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)

	require.Equal(t,
		"Tu reserva del libro 'Redes' ha sido agregada a la cola de espera. Te notificaremos cuando esté disponible.",
		model.ReservationCreatedMessage(model.ReservationTypeQueue, "Redes"))
	require.Equal(t,
		"Tu reserva del libro 'Libro' ha sido creada.",
		model.ReservationCreatedMessage(model.ReservationTypePickup, ""))
	require.Equal(t,
		"¡Buenas noticias! El libro 'Redes' que tenías en cola de espera ya está disponible. Fecha/Hora: 2024-01-05 09:30",
		model.QueueAvailableMessage("Redes", at))
}

func TestReservationStatus_IsFinal(t *testing.T) {
	t.Parallel()
	final := map[model.ReservationStatus]bool{
		model.ReservationQueued:    false,
		model.ReservationPending:   false,
		model.ReservationApproved:  false,
		model.ReservationNotified:  false,
		model.ReservationCompleted: true,
		model.ReservationCancelled: true,
		model.ReservationExpired:   true,
	}
	for status, want := range final {
		require.Equal(t, want, status.IsFinal(), status)
	}
	require.True(t, model.ReservationTypeQueue.Valid())
	require.True(t, model.ReservationTypePickup.Valid())
	require.False(t, model.ReservationType("retiro").Valid())
}
