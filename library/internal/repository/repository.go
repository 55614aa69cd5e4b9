package repository

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/errs"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
)

//go:generate go run github.com/golang/mock/mockgen -source=repository.go -destination=mocks/mock.go

type FineRepository interface {
	ListFinesByUser(ctx context.Context, userID int) ([]model.Fine, error)
	ListPendingFines(ctx context.Context) ([]model.Fine, error)
	ListPendingFinesByUser(ctx context.Context, userID int) ([]model.Fine, error)
	FineSummary(ctx context.Context, userID int) (model.FineSummary, error)
	GetFine(ctx context.Context, id int) (model.Fine, error)
	CreateFine(ctx context.Context, fine model.Fine) (model.Fine, error)
	PayFine(ctx context.Context, id int, notes *string, paidAt time.Time) error
	HasPendingFineForLoan(ctx context.Context, loanID int) (bool, error)
	ListOverdueLoans(ctx context.Context, before time.Time) ([]model.Loan, error)
	CorrectFinesForReturnedLoans(ctx context.Context, at time.Time) (int, error)
}

type ReservationRepository interface {
	HasActiveReservation(ctx context.Context, userID int) (bool, error)
	CreateReservation(ctx context.Context, req model.CreateReservationRequest, now time.Time, pickupDays int) (model.Reservation, error)
	GetReservation(ctx context.Context, id int) (model.Reservation, error)
	ListReservationsByUser(ctx context.Context, userID int) ([]model.ReservationView, error)
	ListReservationsForPickup(ctx context.Context) ([]model.ReservationView, error)
	ListWaitingReservations(ctx context.Context) ([]model.ReservationView, error)
	CancelReservation(ctx context.Context, id, actorID int, isAdmin bool, now time.Time, pickupDays int) error
	ChangeReservationType(ctx context.Context, id int, t model.ReservationType, now time.Time, pickupDays int) error
	CompleteReservation(ctx context.Context, id int) error
	ExpireReservation(ctx context.Context, id int, now time.Time, pickupDays int) error
	ApproveReservation(ctx context.Context, id, adminID, loanDays int, now time.Time) (model.ApproveResult, error)
	QueuePosition(ctx context.Context, bookID, reservationID int) (int, error)
	ProcessQueue(ctx context.Context, bookID int, now time.Time, pickupDays int) (bool, error)
	ListExpiredPickups(ctx context.Context, now time.Time) ([]model.Reservation, error)
}

type LoanRepository interface {
	GetUser(ctx context.Context, id int) (model.User, error)
	CountActiveLoans(ctx context.Context, userID int) (int, error)
	CreateLoan(ctx context.Context, req model.CreateLoanRequest, now time.Time) (model.Loan, error)
	GetLoan(ctx context.Context, id int) (model.Loan, error)
	ReturnLoan(ctx context.Context, id int, notes *string, now time.Time, pickupDays int) (model.Loan, error)
	RenewLoan(ctx context.Context, id, days, maxRenewals int) (model.Loan, error)
	ListActiveLoans(ctx context.Context) ([]model.LoanView, error)
	ListLoansByUser(ctx context.Context, userID int, activeOnly bool) ([]model.LoanView, error)
	ListOverdueLoanViews(ctx context.Context, now time.Time) ([]model.LoanView, error)
}

type NotificationRepository interface {
	ListNotifications(ctx context.Context, userID int, unreadOnly bool) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID int, at time.Time) error
	MarkAllNotificationsRead(ctx context.Context, userID int, at time.Time) (int, error)
	DeleteNotification(ctx context.Context, id, userID int) error
}

type Repository interface {
	FineRepository
	ReservationRepository
	LoanRepository
	NotificationRepository
}

// NotificationSink receives the notifications written by a transaction after it commits.
type NotificationSink interface {
	Deliver(ctx context.Context, notes []model.Notification)
}

type Option func(r *repository)

func WithNotificationSink(sink NotificationSink) Option {
	return func(r *repository) {
		r.sink = sink
	}
}

type repository struct {
	db   *pgxpool.Pool
	log  *zap.Logger
	sink NotificationSink
}

func NewRepository(db *pgxpool.Pool, log *zap.Logger, opts ...Option) (*repository, error) {
	r := &repository{
		db:  db,
		log: log.Named("repo"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

const (
	usersTableName         = `users`
	booksTableName         = `books`
	copiesTableName        = `copies`
	loansTableName         = `loans`
	finesTableName         = `fines`
	reservationsTableName  = `reservations`
	notificationsTableName = `notifications`
)

// advisory lock namespaces, first key of pg_advisory_xact_lock(int, int)
const (
	lockBookQueue = 1001
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type outbox struct {
	notes []model.Notification
}

// inTx runs fn in a transaction and hands the notifications it wrote to the sink once committed.
func (r *repository) inTx(ctx context.Context, fn func(tx pgx.Tx, out *outbox) error) error {
	out := &outbox{}
	err := pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(tx, out)
	})
	if err != nil {
		return classify(err)
	}
	if r.sink != nil && len(out.notes) > 0 {
		r.sink.Deliver(ctx, out.notes)
	}
	return nil
}

func lockBook(ctx context.Context, tx pgx.Tx, bookID int) error {
	_, err := tx.Exec(ctx, `select pg_advisory_xact_lock($1, $2)`, lockBookQueue, bookID)
	return errors.Wrap(err, "lock book queue")
}

func (r *repository) notify(ctx context.Context, tx pgx.Tx, out *outbox, n model.Notification) error {
	q := `
insert into notifications (reservation_id, user_id, type, message, status)
values (@reservation_id, @user_id, @type, @message, @status)
returning ` + columnList(notificationColumns)
	args := pgx.NamedArgs{
		"reservation_id": n.ReservationID,
		"user_id":        n.UserID,
		"type":           string(n.Type),
		"message":        n.Message,
		"status":         model.NotificationUnread,
	}
	rows, err := tx.Query(ctx, q, args)
	if err != nil {
		return errors.Wrap(err, "insert notification")
	}
	note, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Notification])
	if err != nil {
		return errors.Wrap(err, "insert notification")
	}
	out.notes = append(out.notes, note)
	return nil
}

func bookTitle(ctx context.Context, q querier, bookID int) (string, error) {
	query, args, err := qb.Select("title").From(booksTableName).Where(sq.Eq{"id": bookID}).ToSql()
	if err != nil {
		return "", err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return "", err
	}
	title, err := pgx.CollectOneRow(rows, pgx.RowTo[string])
	if err != nil {
		return "", classify(err)
	}
	return title, nil
}

// classify maps driver errors onto the errs sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return errors.Wrap(errs.ErrConflict, pgErr.ConstraintName)
		case pgerrcode.CheckViolation:
			return errors.Wrap(errs.ErrValidation, pgErr.ConstraintName)
		case pgerrcode.ForeignKeyViolation:
			return errors.Wrap(errs.ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}

func affected(tag pgconn.CommandTag, err error) (int, error) {
	if err != nil {
		return 0, classify(err)
	}
	return int(tag.RowsAffected()), nil
}

func columnList(cols []string) string {
	return strings.Join(cols, ", ")
}

func prefixed(alias string, cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, alias+"."+c)
	}
	return out
}

func statuses[T ~string](vals ...T) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		out = append(out, string(v))
	}
	return out
}
