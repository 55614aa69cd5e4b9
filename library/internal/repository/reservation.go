package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/errs"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
)

const (
	msgActiveForBook = "Ya existe una reserva activa para este libro."
	msgCopyMismatch  = "El ejemplar especificado no existe o no pertenece al libro seleccionado."

	msgNoCopyForPickup = "No hay ejemplares disponibles para retiro."
)

var (
	reservationColumns = []string{"id", "user_id", "book_id", "copy_id", "created_at", "status", "type", "notification_status", "pickup_deadline", "queue_priority"}
	copyColumns        = []string{"id", "book_id", "number", "barcode", "location", "status", "created_at"}
)

// waiting line of a book: queued reservations ordered by priority, then arrival, then id.
const (
	queueOrder = "queue_priority asc nulls last, created_at, id"
	queueCTE   = `with queue as (
    select id, row_number() over (partition by book_id order by ` + queueOrder + `) as pos
    from reservations
    where status = 'ColaEspera' and type = 'ColaEspera')`
)

func activeStatuses() []string {
	return statuses(model.ActiveReservationStatuses...)
}

func (r *repository) HasActiveReservation(ctx context.Context, userID int) (bool, error) {
	query, args, err := qb.Select("1").
		Prefix("select exists (").
		From(reservationsTableName).
		Where(sq.Eq{"user_id": userID, "status": activeStatuses()}).
		Limit(1).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return pgx.CollectOneRow(rows, pgx.RowTo[bool])
}

// CreateReservation places the reservation under the book's queue lock. A free copy is held
// for pickup right away; otherwise the reservation joins the end of the waiting line.
func (r *repository) CreateReservation(ctx context.Context, req model.CreateReservationRequest, now time.Time, pickupDays int) (model.Reservation, error) {
	var created model.Reservation
	err := r.inTx(ctx, func(tx pgx.Tx, out *outbox) error {
		if err := lockBook(ctx, tx, req.BookID); err != nil {
			return err
		}
		title, err := bookTitle(ctx, tx, req.BookID)
		if err != nil {
			return errors.Wrapf(err, "book %d", req.BookID)
		}

		dup, err := exists(ctx, tx, qb.Select("1").
			From(reservationsTableName).
			Where(sq.Eq{"user_id": req.UserID, "book_id": req.BookID, "status": activeStatuses()}))
		if err != nil {
			return err
		}
		if dup {
			return errs.NewRule(errs.ErrConflict, msgActiveForBook)
		}

		var held *model.Copy
		if req.CopyID != nil {
			c, err := copyForUpdate(ctx, tx, *req.CopyID)
			if errors.Is(err, errs.ErrNotFound) || (err == nil && c.BookID != req.BookID) {
				return errs.NewRule(errs.ErrValidation, msgCopyMismatch)
			}
			if err != nil {
				return err
			}
			if c.Status == model.CopyAvailable {
				held = &c
			}
		} else {
			held, err = firstAvailableCopy(ctx, tx, req.BookID)
			if err != nil {
				return err
			}
		}

		res := model.Reservation{
			UserID:    req.UserID,
			BookID:    req.BookID,
			CreatedAt: now,
		}
		if held != nil {
			if err = setCopyStatus(ctx, tx, held.ID, model.CopyReserved); err != nil {
				return err
			}
			deadline := now.AddDate(0, 0, pickupDays)
			res.CopyID = &held.ID
			res.Status = model.ReservationPending
			res.Type = model.ReservationTypePickup
			res.PickupDeadline = &deadline
		} else {
			prio, err := nextQueuePriority(ctx, tx, req.BookID)
			if err != nil {
				return err
			}
			res.Status = model.ReservationQueued
			res.Type = model.ReservationTypeQueue
			res.QueuePriority = &prio
		}

		created, err = insertReservation(ctx, tx, res)
		if err != nil {
			return err
		}
		kind := model.NotificationReserved
		if created.Type == model.ReservationTypeQueue {
			kind = model.NotificationQueued
		}
		return r.notify(ctx, tx, out, model.Notification{
			ReservationID: &created.ID,
			UserID:        created.UserID,
			Type:          kind,
			Message:       model.ReservationCreatedMessage(created.Type, title),
		})
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return created, nil
}

func (r *repository) GetReservation(ctx context.Context, id int) (model.Reservation, error) {
	return getReservation(ctx, r.db, id, false)
}

func (r *repository) ListReservationsByUser(ctx context.Context, userID int) ([]model.ReservationView, error) {
	return r.listReservationViews(ctx, sq.Eq{"r.user_id": userID}, "r.created_at desc", "r.id desc")
}

// ListReservationsForPickup lists reservations held for a borrower, oldest first.
func (r *repository) ListReservationsForPickup(ctx context.Context) ([]model.ReservationView, error) {
	where := sq.And{
		sq.Or{
			sq.Eq{"r.type": string(model.ReservationTypePickup)},
			sq.Eq{"r.status": statuses(model.ReservationPending, model.ReservationApproved)},
		},
		sq.NotEq{"r.status": statuses(model.ReservationQueued, model.ReservationCompleted, model.ReservationCancelled, model.ReservationExpired)},
	}
	return r.listReservationViews(ctx, where, "r.created_at", "r.id")
}

func (r *repository) ListWaitingReservations(ctx context.Context) ([]model.ReservationView, error) {
	where := sq.Eq{"r.status": string(model.ReservationQueued), "r.type": string(model.ReservationTypeQueue)}
	return r.listReservationViews(ctx, where, "r.book_id", "q.pos")
}

func (r *repository) CancelReservation(ctx context.Context, id, actorID int, isAdmin bool, now time.Time, pickupDays int) error {
	return r.withLockedReservation(ctx, id, func(tx pgx.Tx, out *outbox, res model.Reservation) error {
		if !isAdmin && res.UserID != actorID {
			return errors.Wrapf(errs.ErrForbidden, "reservation %d", id)
		}
		if err := r.closeReservation(ctx, tx, res, model.ReservationCancelled); err != nil {
			return err
		}
		if isAdmin && res.UserID != actorID {
			title, err := bookTitle(ctx, tx, res.BookID)
			if err != nil {
				return err
			}
			if err = r.notify(ctx, tx, out, model.Notification{
				ReservationID: &res.ID,
				UserID:        res.UserID,
				Type:          model.NotificationRejected,
				Message:       model.ReservationRejectedMessage(title),
			}); err != nil {
				return err
			}
		}
		return r.advanceQueue(ctx, tx, out, res.BookID, now, pickupDays)
	})
}

// ChangeReservationType moves a reservation between the waiting line and the pickup counter.
// A pickup reservation holds a copy and gets a fresh deadline; a queued one gives its copy back
// and rejoins the line. The book's queue is renumbered and served in the same transaction.
func (r *repository) ChangeReservationType(ctx context.Context, id int, t model.ReservationType, now time.Time, pickupDays int) error {
	return r.withLockedReservation(ctx, id, func(tx pgx.Tx, out *outbox, res model.Reservation) error {
		if res.Type == t {
			return nil
		}
		if res.Status == model.ReservationApproved && res.CopyID != nil {
			return errors.Wrapf(errs.ErrInvalidState, "reservation %d already lent copy %d", id, *res.CopyID)
		}

		b := qb.Update(reservationsTableName).
			Set("type", string(t)).
			Where(sq.Eq{"id": res.ID})
		switch t {
		case model.ReservationTypePickup:
			held, err := heldCopy(ctx, tx, res)
			if err != nil {
				return err
			}
			if held == nil {
				return errs.NewRule(errs.ErrConflict, msgNoCopyForPickup)
			}
			if err = setCopyStatus(ctx, tx, held.ID, model.CopyReserved); err != nil {
				return err
			}
			status := res.Status
			if status == model.ReservationQueued {
				status = model.ReservationPending
			}
			b = b.Set("status", string(status)).
				Set("copy_id", held.ID).
				Set("pickup_deadline", now.AddDate(0, 0, pickupDays)).
				Set("queue_priority", nil)
		default:
			if err := releaseCopy(ctx, tx, res); err != nil {
				return err
			}
			prio, err := nextQueuePriority(ctx, tx, res.BookID)
			if err != nil {
				return err
			}
			b = b.Set("status", string(model.ReservationQueued)).
				Set("copy_id", nil).
				Set("pickup_deadline", nil).
				Set("queue_priority", prio)
		}

		query, args, err := b.ToSql()
		if err != nil {
			return err
		}
		if _, err = tx.Exec(ctx, query, args...); err != nil {
			return err
		}
		return r.advanceQueue(ctx, tx, out, res.BookID, now, pickupDays)
	})
}

// heldCopy returns the copy the reservation already holds, else the first free copy of its book.
func heldCopy(ctx context.Context, tx pgx.Tx, res model.Reservation) (*model.Copy, error) {
	if res.CopyID != nil {
		c, err := copyForUpdate(ctx, tx, *res.CopyID)
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		if err == nil && (c.Status == model.CopyReserved || c.Status == model.CopyAvailable) {
			return &c, nil
		}
	}
	return firstAvailableCopy(ctx, tx, res.BookID)
}

func (r *repository) CompleteReservation(ctx context.Context, id int) error {
	return r.withLockedReservation(ctx, id, func(tx pgx.Tx, _ *outbox, res model.Reservation) error {
		if err := updateReservationStatus(ctx, tx, res.ID, model.ReservationCompleted); err != nil {
			return err
		}
		if res.Type == model.ReservationTypeQueue {
			return renumberQueue(ctx, tx, res.BookID)
		}
		return nil
	})
}

func (r *repository) ExpireReservation(ctx context.Context, id int, now time.Time, pickupDays int) error {
	return r.withLockedReservation(ctx, id, func(tx pgx.Tx, out *outbox, res model.Reservation) error {
		if err := r.closeReservation(ctx, tx, res, model.ReservationExpired); err != nil {
			return err
		}
		if err := r.notify(ctx, tx, out, model.Notification{
			ReservationID: &res.ID,
			UserID:        res.UserID,
			Type:          model.NotificationExpired,
			Message:       model.ExpiredMessage,
		}); err != nil {
			return err
		}
		return r.advanceQueue(ctx, tx, out, res.BookID, now, pickupDays)
	})
}

// ApproveReservation lends the held copy, or the first free one, to the reservation owner.
// Without any free copy the reservation is approved and LoanID stays zero.
func (r *repository) ApproveReservation(ctx context.Context, id, adminID, loanDays int, now time.Time) (model.ApproveResult, error) {
	result := model.ApproveResult{ReservationID: id}
	err := r.withLockedReservation(ctx, id, func(tx pgx.Tx, out *outbox, res model.Reservation) error {
		if res.Status == model.ReservationApproved && res.CopyID != nil {
			return errors.Wrapf(errs.ErrInvalidState, "reservation %d already lent copy %d", id, *res.CopyID)
		}
		title, err := bookTitle(ctx, tx, res.BookID)
		if err != nil {
			return err
		}

		lend, err := heldCopy(ctx, tx, res)
		if err != nil {
			return err
		}

		if lend == nil {
			if err = updateReservationStatus(ctx, tx, res.ID, model.ReservationApproved); err != nil {
				return err
			}
			return r.notify(ctx, tx, out, model.Notification{
				ReservationID: &res.ID,
				UserID:        res.UserID,
				Type:          model.NotificationApproved,
				Message:       model.ReservationApprovedMessage(title, now),
			})
		}

		notes := fmt.Sprintf("Reserva #%d aprobada por %d", res.ID, adminID)
		loan, err := insertLoan(ctx, tx, model.Loan{
			CopyID:   lend.ID,
			UserID:   res.UserID,
			LoanedAt: now,
			DueAt:    now.AddDate(0, 0, loanDays),
			Notes:    &notes,
		})
		if err != nil {
			return err
		}
		if err = setCopyStatus(ctx, tx, lend.ID, model.CopyLoaned); err != nil {
			return err
		}

		query, args, err := qb.Update(reservationsTableName).
			Set("status", string(model.ReservationApproved)).
			Set("copy_id", lend.ID).
			Set("queue_priority", nil).
			Where(sq.Eq{"id": res.ID}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err = tx.Exec(ctx, query, args...); err != nil {
			return err
		}
		if res.Type == model.ReservationTypeQueue {
			if err = renumberQueue(ctx, tx, res.BookID); err != nil {
				return err
			}
		}

		result.LoanID = loan.ID
		return r.notify(ctx, tx, out, model.Notification{
			ReservationID: &res.ID,
			UserID:        res.UserID,
			Type:          model.NotificationLoanCreated,
			Message:       model.LoanCreatedMessage(title, now),
		})
	})
	if err != nil {
		return model.ApproveResult{}, err
	}
	return result, nil
}

// QueuePosition is the 1-based place of a queued reservation in its book's line, 0 when not queued.
func (r *repository) QueuePosition(ctx context.Context, bookID, reservationID int) (int, error) {
	const q = `
select coalesce((
    select pos
    from (select id, row_number() over (order by ` + queueOrder + `) as pos
          from reservations
          where book_id = @book_id and status = 'ColaEspera' and type = 'ColaEspera') q
    where q.id = @reservation_id), 0)`
	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"book_id": bookID, "reservation_id": reservationID})
	if err != nil {
		return 0, err
	}
	return pgx.CollectOneRow(rows, pgx.RowTo[int])
}

func (r *repository) ProcessQueue(ctx context.Context, bookID int, now time.Time, pickupDays int) (bool, error) {
	var moved int
	err := r.inTx(ctx, func(tx pgx.Tx, out *outbox) error {
		if err := lockBook(ctx, tx, bookID); err != nil {
			return err
		}
		var err error
		moved, err = r.processQueue(ctx, tx, out, bookID, now, pickupDays)
		return err
	})
	if err != nil {
		return false, err
	}
	return moved > 0, nil
}

// ListExpiredPickups returns held reservations whose pickup deadline passed.
func (r *repository) ListExpiredPickups(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	query, args, err := qb.Select(reservationColumns...).
		From(reservationsTableName).
		Where(sq.Eq{"status": string(model.ReservationPending), "type": string(model.ReservationTypePickup)}).
		Where(sq.Lt{"pickup_deadline": now}).
		OrderBy("pickup_deadline", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Reservation])
	if err != nil {
		return nil, fmt.Errorf("pgx.CollectRows: %w", err)
	}
	return res, nil
}

// withLockedReservation takes the book queue lock and the reservation row, refusing final reservations.
func (r *repository) withLockedReservation(ctx context.Context, id int, fn func(tx pgx.Tx, out *outbox, res model.Reservation) error) error {
	probe, err := r.GetReservation(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "reservation %d", id)
	}
	return r.inTx(ctx, func(tx pgx.Tx, out *outbox) error {
		if err := lockBook(ctx, tx, probe.BookID); err != nil {
			return err
		}
		res, err := getReservation(ctx, tx, id, true)
		if err != nil {
			return errors.Wrapf(err, "reservation %d", id)
		}
		if res.Status.IsFinal() {
			return errors.Wrapf(errs.ErrInvalidState, "reservation %d is %s", id, res.Status)
		}
		return fn(tx, out, res)
	})
}

// closeReservation moves a reservation to a final state and gives back a copy held for it.
func (r *repository) closeReservation(ctx context.Context, tx pgx.Tx, res model.Reservation, status model.ReservationStatus) error {
	if err := updateReservationStatus(ctx, tx, res.ID, status); err != nil {
		return err
	}
	return releaseCopy(ctx, tx, res)
}

// releaseCopy makes a copy reserved for res available again.
func releaseCopy(ctx context.Context, tx pgx.Tx, res model.Reservation) error {
	if res.CopyID == nil || res.Status == model.ReservationQueued {
		return nil
	}
	query, args, err := qb.Update(copiesTableName).
		Set("status", string(model.CopyAvailable)).
		Where(sq.Eq{"id": *res.CopyID, "status": string(model.CopyReserved)}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, query, args...)
	return err
}

func (r *repository) advanceQueue(ctx context.Context, tx pgx.Tx, out *outbox, bookID int, now time.Time, pickupDays int) error {
	if err := renumberQueue(ctx, tx, bookID); err != nil {
		return err
	}
	moved, err := r.processQueue(ctx, tx, out, bookID, now, pickupDays)
	if err != nil {
		return err
	}
	if moved > 0 {
		r.log.Debug("queue advanced", zap.Int("book_id", bookID), zap.Int("moved", moved))
	}
	return nil
}

// processQueue hands every free copy of the book to the head of its waiting line.
// The caller holds the book queue lock.
func (r *repository) processQueue(ctx context.Context, tx pgx.Tx, out *outbox, bookID int, now time.Time, pickupDays int) (int, error) {
	var title string
	moved := 0
	for {
		free, err := firstAvailableCopy(ctx, tx, bookID)
		if err != nil {
			return moved, err
		}
		if free == nil {
			break
		}
		head, err := queueHead(ctx, tx, bookID)
		if err != nil {
			return moved, err
		}
		if head == nil {
			break
		}

		deadline := now.AddDate(0, 0, pickupDays)
		query, args, err := qb.Update(reservationsTableName).
			Set("status", string(model.ReservationPending)).
			Set("type", string(model.ReservationTypePickup)).
			Set("copy_id", free.ID).
			Set("pickup_deadline", deadline).
			Set("queue_priority", nil).
			Where(sq.Eq{"id": head.ID}).
			ToSql()
		if err != nil {
			return moved, err
		}
		if _, err = tx.Exec(ctx, query, args...); err != nil {
			return moved, err
		}
		if err = setCopyStatus(ctx, tx, free.ID, model.CopyReserved); err != nil {
			return moved, err
		}
		if title == "" {
			if title, err = bookTitle(ctx, tx, bookID); err != nil {
				return moved, err
			}
		}
		if err = r.notify(ctx, tx, out, model.Notification{
			ReservationID: &head.ID,
			UserID:        head.UserID,
			Type:          model.NotificationQueueAvailable,
			Message:       model.QueueAvailableMessage(title, now),
		}); err != nil {
			return moved, err
		}
		moved++
	}
	if moved > 0 {
		return moved, renumberQueue(ctx, tx, bookID)
	}
	return 0, nil
}

// renumberQueue rewrites priorities of the book's waiting line as 1..n by arrival.
func renumberQueue(ctx context.Context, tx pgx.Tx, bookID int) error {
	const q = `
update reservations r
    set queue_priority = q.pos
from (select id, row_number() over (order by created_at, id) as pos
      from reservations
      where book_id = @book_id and status = 'ColaEspera' and type = 'ColaEspera') q
where r.id = q.id and r.queue_priority is distinct from q.pos`
	_, err := tx.Exec(ctx, q, pgx.NamedArgs{"book_id": bookID})
	return errors.Wrap(err, "renumber queue")
}

func nextQueuePriority(ctx context.Context, tx pgx.Tx, bookID int) (int, error) {
	const q = `
select coalesce(max(queue_priority), 0) + 1
from reservations
where book_id = @book_id and status = 'ColaEspera' and type = 'ColaEspera'`
	rows, err := tx.Query(ctx, q, pgx.NamedArgs{"book_id": bookID})
	if err != nil {
		return 0, err
	}
	return pgx.CollectOneRow(rows, pgx.RowTo[int])
}

func queueHead(ctx context.Context, tx pgx.Tx, bookID int) (*model.Reservation, error) {
	query, args, err := qb.Select(reservationColumns...).
		From(reservationsTableName).
		Where(sq.Eq{"book_id": bookID, "status": string(model.ReservationQueued), "type": string(model.ReservationTypeQueue)}).
		OrderBy(queueOrder).
		Limit(1).
		Suffix("for update").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Reservation])
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func getReservation(ctx context.Context, q querier, id int, forUpdate bool) (model.Reservation, error) {
	b := qb.Select(reservationColumns...).
		From(reservationsTableName).
		Where(sq.Eq{"id": id}).
		Limit(1)
	if forUpdate {
		b = b.Suffix("for update")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return model.Reservation{}, err
	}
	res, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Reservation])
	if err != nil {
		return model.Reservation{}, classify(err)
	}
	return res, nil
}

func insertReservation(ctx context.Context, tx pgx.Tx, res model.Reservation) (model.Reservation, error) {
	q := `
insert into reservations (user_id, book_id, copy_id, created_at, status, type, pickup_deadline, queue_priority)
values (@user_id, @book_id, @copy_id, @created_at, @status, @type, @pickup_deadline, @queue_priority)
returning ` + columnList(reservationColumns)
	args := pgx.NamedArgs{
		"user_id":         res.UserID,
		"book_id":         res.BookID,
		"copy_id":         res.CopyID,
		"created_at":      res.CreatedAt,
		"status":          string(res.Status),
		"type":            string(res.Type),
		"pickup_deadline": res.PickupDeadline,
		"queue_priority":  res.QueuePriority,
	}
	rows, err := tx.Query(ctx, q, args)
	if err != nil {
		return model.Reservation{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Reservation])
}

func updateReservationStatus(ctx context.Context, tx pgx.Tx, id int, status model.ReservationStatus) error {
	b := qb.Update(reservationsTableName).
		Set("status", string(status)).
		Where(sq.Eq{"id": id})
	if status != model.ReservationQueued {
		b = b.Set("queue_priority", nil)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, query, args...)
	return err
}

func copyForUpdate(ctx context.Context, tx pgx.Tx, id int) (model.Copy, error) {
	query, args, err := qb.Select(copyColumns...).
		From(copiesTableName).
		Where(sq.Eq{"id": id}).
		Suffix("for update").
		ToSql()
	if err != nil {
		return model.Copy{}, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return model.Copy{}, err
	}
	c, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Copy])
	if err != nil {
		return model.Copy{}, classify(err)
	}
	return c, nil
}

// firstAvailableCopy returns the oldest free copy of the book, or nil.
func firstAvailableCopy(ctx context.Context, tx pgx.Tx, bookID int) (*model.Copy, error) {
	query, args, err := qb.Select(copyColumns...).
		From(copiesTableName).
		Where(sq.Eq{"book_id": bookID, "status": string(model.CopyAvailable)}).
		OrderBy("created_at", "id").
		Limit(1).
		Suffix("for update skip locked").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Copy])
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func setCopyStatus(ctx context.Context, tx pgx.Tx, id int, status model.CopyStatus) error {
	query, args, err := qb.Update(copiesTableName).
		Set("status", string(status)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, query, args...)
	return err
}

func exists(ctx context.Context, q querier, b sq.SelectBuilder) (bool, error) {
	query, args, err := b.Limit(1).Prefix("select exists (").Suffix(")").ToSql()
	if err != nil {
		return false, err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return pgx.CollectOneRow(rows, pgx.RowTo[bool])
}

func (r *repository) listReservationViews(ctx context.Context, where sq.Sqlizer, orderBy ...string) ([]model.ReservationView, error) {
	cols := append(prefixed("r", reservationColumns),
		"b.title as book_title",
		"b.isbn as book_isbn",
		"u.name as user_name",
		"u.code as user_code",
		"c.number as copy_number",
		"c.barcode as copy_barcode",
		"q.pos as queue_position",
	)
	query, args, err := qb.Select(cols...).
		Prefix(queueCTE).
		From(reservationsTableName + " r").
		Join(booksTableName + " b on b.id = r.book_id").
		Join(usersTableName + " u on u.id = r.user_id").
		LeftJoin(copiesTableName + " c on c.id = r.copy_id").
		LeftJoin("queue q on q.id = r.id").
		Where(where).
		OrderBy(orderBy...).
		ToSql()
	if err != nil {
		return nil, err
	}
	r.log.Debug("listReservationViews", zap.String("query", query), zap.Any("args", args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.ReservationView])
	if err != nil {
		return nil, fmt.Errorf("pgx.CollectRows: %w", err)
	}
	return views, nil
}
