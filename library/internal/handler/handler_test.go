package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/errs"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/handler"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/auth"

	service_mocks "github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/handler/mocks"
)

type mocks struct {
	fines         *service_mocks.MockFineService
	reservations  *service_mocks.MockReservationService
	loans         *service_mocks.MockLoanService
	notifications *service_mocks.MockNotificationService
}

type caller struct {
	userID int
	role   string
}

var (
	student   = caller{userID: 3, role: "Estudiante"}
	librarian = caller{userID: 1, role: auth.RoleLibrarian}
	anonymous = caller{}
)

type response struct {
	expectedCode int
	expectedBody string
}

func newMocks(c *gomock.Controller) mocks {
	return mocks{
		fines:         service_mocks.NewMockFineService(c),
		reservations:  service_mocks.NewMockReservationService(c),
		loans:         service_mocks.NewMockLoanService(c),
		notifications: service_mocks.NewMockNotificationService(c),
	}
}

func serve(t *testing.T, m mocks, who caller, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := handler.New(handler.Services{
		Fines:         m.fines,
		Reservations:  m.reservations,
		Loans:         m.loans,
		Notifications: m.notifications,
	}, zap.NewNop())

	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if who.userID > 0 {
		r.Header.Set(auth.XUserIDHeader, strconv.Itoa(who.userID))
		r.Header.Set(auth.XUserRoleHeader, who.role)
	}
	w := httptest.NewRecorder()
	h.NewRouter().ServeHTTP(w, r)
	return w
}

func TestHandler_CreateReservation(t *testing.T) {
	t.Parallel()
	type mockBehavior func(m mocks)

	var tests = []struct {
		name         string
		who          caller
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok. borrower reserves for self",
			who:  student,
			body: `{"userId":99,"bookId":9,"type":"ColaEspera"}`,
			mockBehavior: func(m mocks) {
				m.reservations.EXPECT().
					CreateReservation(gomock.Any(), model.CreateReservationRequest{UserID: 3, BookID: 9, Type: model.ReservationTypeQueue}).
					Return(model.Reservation{ID: 5, UserID: 3, BookID: 9, Status: model.ReservationQueued, Type: model.ReservationTypeQueue}, nil)
			},
			response: response{
				expectedCode: http.StatusCreated,
				expectedBody: `{"id":5,"userId":3,"bookId":9,"createdAt":"0001-01-01T00:00:00Z","status":"ColaEspera","type":"ColaEspera"}`,
			},
		},
		{
			name: "ok. staff reserves on behalf",
			who:  librarian,
			body: `{"userId":7,"bookId":9,"type":"Retiro"}`,
			mockBehavior: func(m mocks) {
				m.reservations.EXPECT().
					CreateReservation(gomock.Any(), model.CreateReservationRequest{UserID: 7, BookID: 9, Type: model.ReservationTypePickup}).
					Return(model.Reservation{ID: 6, UserID: 7, BookID: 9, Status: model.ReservationPending, Type: model.ReservationTypePickup}, nil)
			},
			response: response{
				expectedCode: http.StatusCreated,
				expectedBody: `{"id":6,"userId":7,"bookId":9,"createdAt":"0001-01-01T00:00:00Z","status":"PorAprobar","type":"Retiro"}`,
			},
		},
		{
			name: "err. rule message is shown as is",
			who:  student,
			body: `{"bookId":9,"type":"Retiro"}`,
			mockBehavior: func(m mocks) {
				m.reservations.EXPECT().
					CreateReservation(gomock.Any(), gomock.Any()).
					Return(model.Reservation{}, errs.NewRule(errs.ErrConflict, "El usuario ya tiene una reserva activa"))
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"El usuario ya tiene una reserva activa"}`,
			},
		},
		{
			name:         "err. no identity",
			who:          anonymous,
			body:         `{"bookId":9}`,
			mockBehavior: func(m mocks) {},
			response: response{
				expectedCode: http.StatusUnauthorized,
				expectedBody: `{"message":"user-id is empty or invalid"}`,
			},
		},
		{
			name: "err. internal",
			who:  student,
			body: `{"bookId":9}`,
			mockBehavior: func(m mocks) {
				m.reservations.EXPECT().
					CreateReservation(gomock.Any(), gomock.Any()).
					Return(model.Reservation{}, errors.New("db internal"))
			},
			response: response{
				expectedCode: http.StatusInternalServerError,
				expectedBody: `{"message":"Internal Server Error"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			m := newMocks(c)
			tt.mockBehavior(m)

			w := serve(t, m, tt.who, http.MethodPost, "/api/v1/reservations", tt.body)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_ReservationAdmin(t *testing.T) {
	t.Parallel()
	type mockBehavior func(m mocks)

	var tests = []struct {
		name         string
		who          caller
		method       string
		target       string
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name:   "approve",
			who:    librarian,
			method: http.MethodPost,
			target: "/api/v1/reservations/5/approve",
			mockBehavior: func(m mocks) {
				m.reservations.EXPECT().Approve(gomock.Any(), 5, 1).
					Return(model.ApproveResult{ReservationID: 5, LoanID: 11}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"reservationId":5,"loanId":11}`,
			},
		},
		{
			name:         "approve. borrower is refused",
			who:          student,
			method:       http.MethodPost,
			target:       "/api/v1/reservations/5/approve",
			mockBehavior: func(m mocks) {},
			response: response{
				expectedCode: http.StatusForbidden,
				expectedBody: `{"message":"admin role required"}`,
			},
		},
		{
			name:   "reject cancels as staff",
			who:    librarian,
			method: http.MethodPost,
			target: "/api/v1/reservations/5/reject",
			mockBehavior: func(m mocks) {
				m.reservations.EXPECT().Cancel(gomock.Any(), 5, 1, true).Return(nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"message":"Reserva rechazada"}`,
			},
		},
		{
			name:   "change type on final reservation",
			who:    librarian,
			method: http.MethodPost,
			target: "/api/v1/reservations/5/type",
			body:   `{"type":"Retiro"}`,
			mockBehavior: func(m mocks) {
				m.reservations.EXPECT().ChangeType(gomock.Any(), 5, model.ReservationTypePickup).
					Return(errors.Wrap(errs.ErrInvalidState, "reservation 5 is Cancelada"))
			},
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"reservation 5 is Cancelada: invalid state"}`,
			},
		},
		{
			name:         "bad id",
			who:          librarian,
			method:       http.MethodPost,
			target:       "/api/v1/reservations/abc/expire",
			mockBehavior: func(m mocks) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"id is invalid"}`,
			},
		},
		{
			name:   "expire overdue pickups",
			who:    librarian,
			method: http.MethodPost,
			target: "/api/v1/reservations/expire-overdue",
			mockBehavior: func(m mocks) {
				m.reservations.EXPECT().ExpireOverduePickups(gomock.Any()).
					Return(model.BatchResult{Job: model.JobExpirePickups, Scanned: 2, Affected: 2})
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"job":"expire_pickups","scanned":2,"affected":2,"skipped":0}`,
			},
		},
		{
			name:   "borrower cancels own reservation",
			who:    student,
			method: http.MethodDelete,
			target: "/api/v1/reservations/8",
			mockBehavior: func(m mocks) {
				m.reservations.EXPECT().Cancel(gomock.Any(), 8, 3, false).Return(nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"message":"Reserva cancelada"}`,
			},
		},
		{
			name:   "borrower cancels someone else's reservation",
			who:    student,
			method: http.MethodDelete,
			target: "/api/v1/reservations/8",
			mockBehavior: func(m mocks) {
				m.reservations.EXPECT().Cancel(gomock.Any(), 8, 3, false).Return(errs.ErrForbidden)
			},
			response: response{
				expectedCode: http.StatusForbidden,
				expectedBody: `{"message":"forbidden"}`,
			},
		},
		{
			name:   "queue position",
			who:    student,
			method: http.MethodGet,
			target: "/api/v1/reservations/queue/9/8",
			mockBehavior: func(m mocks) {
				m.reservations.EXPECT().GetQueuePosition(gomock.Any(), 9, 8).
					Return(model.QueuePosition{BookID: 9, ReservationID: 8, Position: 2}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"bookId":9,"reservationId":8,"position":2}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			m := newMocks(c)
			tt.mockBehavior(m)

			w := serve(t, m, tt.who, tt.method, tt.target, tt.body)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_PayFine(t *testing.T) {
	t.Parallel()
	type mockBehavior func(m mocks)

	var tests = []struct {
		name         string
		who          caller
		target       string
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name:   "ok",
			who:    librarian,
			target: "/api/v1/fines/4/pay",
			body:   `{"notes":"efectivo"}`,
			mockBehavior: func(m mocks) {
				m.fines.EXPECT().Pay(gomock.Any(), 4, gomock.Any()).Return(nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"message":"Multa pagada correctamente"}`,
			},
		},
		{
			name:   "not found",
			who:    librarian,
			target: "/api/v1/fines/4/pay",
			mockBehavior: func(m mocks) {
				m.fines.EXPECT().Pay(gomock.Any(), 4, nil).Return(errors.Wrap(errs.ErrNotFound, "fine 4"))
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"fine 4: not found"}`,
			},
		},
		{
			name:         "borrower is refused",
			who:          student,
			target:       "/api/v1/fines/4/pay",
			mockBehavior: func(m mocks) {},
			response: response{
				expectedCode: http.StatusForbidden,
				expectedBody: `{"message":"admin role required"}`,
			},
		},
		{
			name:         "bad id",
			who:          librarian,
			target:       "/api/v1/fines/0/pay",
			mockBehavior: func(m mocks) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"id is invalid"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			m := newMocks(c)
			tt.mockBehavior(m)

			w := serve(t, m, tt.who, http.MethodPost, tt.target, tt.body)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_RenewLoan(t *testing.T) {
	t.Parallel()
	type mockBehavior func(m mocks)

	var tests = []struct {
		name         string
		who          caller
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "owner renews",
			who:  student,
			body: `{"days":7}`,
			mockBehavior: func(m mocks) {
				m.loans.EXPECT().Get(gomock.Any(), 12).Return(model.Loan{ID: 12, UserID: 3, Status: model.LoanActive}, nil)
				m.loans.EXPECT().RenewLoan(gomock.Any(), 12, 7).Return(model.Loan{ID: 12, CopyID: 2, UserID: 3, Status: model.LoanActive, Renewals: 1}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"id":12,"copyId":2,"userId":3,"loanedAt":"0001-01-01T00:00:00Z","dueAt":"0001-01-01T00:00:00Z","status":"Prestado","renewals":1}`,
			},
		},
		{
			name: "someone else's loan",
			who:  student,
			body: `{"days":7}`,
			mockBehavior: func(m mocks) {
				m.loans.EXPECT().Get(gomock.Any(), 12).Return(model.Loan{ID: 12, UserID: 8}, nil)
			},
			response: response{
				expectedCode: http.StatusForbidden,
				expectedBody: `{"message":"loan belongs to another user"}`,
			},
		},
		{
			name: "staff skips the owner check",
			who:  librarian,
			body: `{"days":7}`,
			mockBehavior: func(m mocks) {
				m.loans.EXPECT().RenewLoan(gomock.Any(), 12, 7).
					Return(model.Loan{}, errs.NewRule(errs.ErrInvalidState, "No se puede renovar un préstamo con una multa pendiente"))
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"No se puede renovar un préstamo con una multa pendiente"}`,
			},
		},
		{
			name:         "days required",
			who:          student,
			body:         `{}`,
			mockBehavior: func(m mocks) {},
			response: response{
				expectedCode: http.StatusBadRequest,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			m := newMocks(c)
			tt.mockBehavior(m)

			w := serve(t, m, tt.who, http.MethodPut, "/api/v1/loans/12/renew", tt.body)

			require.Equal(t, tt.response.expectedCode, w.Code)
			if tt.response.expectedBody != "" {
				require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
			}
		})
	}
}

func TestHandler_Notifications(t *testing.T) {
	t.Parallel()

	t.Run("mark all read", func(t *testing.T) {
		t.Parallel()
		c := gomock.NewController(t)
		defer c.Finish()
		m := newMocks(c)
		m.notifications.EXPECT().MarkAllRead(gomock.Any(), 3).Return(4, nil)

		w := serve(t, m, student, http.MethodPost, "/api/v1/notifications/read-all", "")

		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, `{"updated":4}`, strings.Trim(w.Body.String(), "\n"))
	})

	t.Run("delete someone else's", func(t *testing.T) {
		t.Parallel()
		c := gomock.NewController(t)
		defer c.Finish()
		m := newMocks(c)
		m.notifications.EXPECT().Delete(gomock.Any(), 10, 3).Return(errors.Wrap(errs.ErrNotFound, "notification 10"))

		w := serve(t, m, student, http.MethodDelete, "/api/v1/notifications/10", "")

		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()
		c := gomock.NewController(t)
		defer c.Finish()
		m := newMocks(c)
		m.notifications.EXPECT().Delete(gomock.Any(), 10, 3).Return(nil)

		w := serve(t, m, student, http.MethodDelete, "/api/v1/notifications/10", "")

		require.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestHandler_Overview(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		c := gomock.NewController(t)
		defer c.Finish()
		m := newMocks(c)
		m.fines.EXPECT().GetSummary(gomock.Any(), 3).Return(model.FineSummary{Total: 1, Paid: 1}, nil)
		m.reservations.EXPECT().ListByUser(gomock.Any(), 3).Return([]model.ReservationView{}, nil)
		m.loans.EXPECT().ListByUser(gomock.Any(), 3, true).Return([]model.LoanView{}, nil)
		m.notifications.EXPECT().ListUnread(gomock.Any(), 3).Return([]model.Notification{}, nil)

		w := serve(t, m, student, http.MethodGet, "/api/v1/me/overview", "")

		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), `"totalFines":1`)
		require.Contains(t, w.Body.String(), `"loans":[]`)
	})

	t.Run("one part fails", func(t *testing.T) {
		t.Parallel()
		c := gomock.NewController(t)
		defer c.Finish()
		m := newMocks(c)
		m.fines.EXPECT().GetSummary(gomock.Any(), 3).Return(model.FineSummary{}, nil).AnyTimes()
		m.reservations.EXPECT().ListByUser(gomock.Any(), 3).Return(nil, errors.New("db internal")).AnyTimes()
		m.loans.EXPECT().ListByUser(gomock.Any(), 3, true).Return(nil, nil).AnyTimes()
		m.notifications.EXPECT().ListUnread(gomock.Any(), 3).Return(nil, nil).AnyTimes()

		w := serve(t, m, student, http.MethodGet, "/api/v1/me/overview", "")

		require.Equal(t, http.StatusInternalServerError, w.Code)
		require.Equal(t, `{"message":"Internal Server Error"}`, strings.Trim(w.Body.String(), "\n"))
		require.NotContains(t, w.Body.String(), "db internal")
	})
}

func TestHandler_Health(t *testing.T) {
	t.Parallel()
	c := gomock.NewController(t)
	defer c.Finish()

	w := serve(t, newMocks(c), anonymous, http.MethodGet, "/manage/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "OK", w.Body.String())
}

func TestHandler_SwaggerDoc(t *testing.T) {
	t.Parallel()
	c := gomock.NewController(t)
	defer c.Finish()

	w := serve(t, newMocks(c), anonymous, http.MethodGet, "/swagger/doc.json", "")

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"/reservations/{id}/approve"`)
}
