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

var loanColumns = []string{"id", "copy_id", "user_id", "loaned_at", "due_at", "returned_at", "status", "renewals", "notes"}

func (r *repository) GetUser(ctx context.Context, id int) (model.User, error) {
	query, args, err := qb.Select("id", "code", "name", "email", "role").
		From(usersTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.User{}, err
	}
	u, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
	if err != nil {
		return model.User{}, errors.Wrapf(classify(err), "user %d", id)
	}
	return u, nil
}

func (r *repository) CountActiveLoans(ctx context.Context, userID int) (int, error) {
	query, args, err := qb.Select("count(*)").
		From(loansTableName).
		Where(sq.Eq{"user_id": userID, "status": string(model.LoanActive)}).
		ToSql()
	if err != nil {
		return 0, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return pgx.CollectOneRow(rows, pgx.RowTo[int])
}

// CreateLoan lends a copy for req.Days days. The copy must be free, or held for a pickup
// reservation of the same borrower, which is then completed.
func (r *repository) CreateLoan(ctx context.Context, req model.CreateLoanRequest, now time.Time) (model.Loan, error) {
	var created model.Loan
	err := r.inTx(ctx, func(tx pgx.Tx, _ *outbox) error {
		bookID, err := copyBook(ctx, tx, req.CopyID)
		if err != nil {
			return errors.Wrapf(err, "copy %d", req.CopyID)
		}
		if err = lockBook(ctx, tx, bookID); err != nil {
			return err
		}
		c, err := copyForUpdate(ctx, tx, req.CopyID)
		if err != nil {
			return err
		}

		switch c.Status {
		case model.CopyAvailable:
		case model.CopyReserved:
			held, err := heldReservation(ctx, tx, c.ID, req.UserID)
			if err != nil {
				return err
			}
			if held == nil {
				return errors.Wrapf(errs.ErrInvalidState, "copy %d is held for another reservation", c.ID)
			}
			if err = updateReservationStatus(ctx, tx, held.ID, model.ReservationCompleted); err != nil {
				return err
			}
		default:
			return errors.Wrapf(errs.ErrInvalidState, "copy %d is %s", c.ID, c.Status)
		}

		created, err = insertLoan(ctx, tx, model.Loan{
			CopyID:   c.ID,
			UserID:   req.UserID,
			LoanedAt: now,
			DueAt:    now.AddDate(0, 0, req.Days),
		})
		if err != nil {
			return err
		}
		return setCopyStatus(ctx, tx, c.ID, model.CopyLoaned)
	})
	if err != nil {
		return model.Loan{}, err
	}
	return created, nil
}

func (r *repository) GetLoan(ctx context.Context, id int) (model.Loan, error) {
	return getLoan(ctx, r.db, id, false)
}

// ReturnLoan closes an active loan, frees its copy and hands it to the book's waiting line.
func (r *repository) ReturnLoan(ctx context.Context, id int, notes *string, now time.Time, pickupDays int) (model.Loan, error) {
	probe, err := r.GetLoan(ctx, id)
	if err != nil {
		return model.Loan{}, errors.Wrapf(err, "loan %d", id)
	}
	var returned model.Loan
	err = r.inTx(ctx, func(tx pgx.Tx, out *outbox) error {
		bookID, err := copyBook(ctx, tx, probe.CopyID)
		if err != nil {
			return err
		}
		if err = lockBook(ctx, tx, bookID); err != nil {
			return err
		}
		c, err := copyForUpdate(ctx, tx, probe.CopyID)
		if err != nil {
			return err
		}
		loan, err := getLoan(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if loan.Status != model.LoanActive {
			return errors.Wrapf(errs.ErrInvalidState, "loan %d is %s", id, loan.Status)
		}

		q := `
update loans
    set status = @status, returned_at = @now, notes = coalesce(@notes, notes)
where id = @id
returning ` + columnList(loanColumns)
		rows, err := tx.Query(ctx, q, pgx.NamedArgs{
			"status": string(model.LoanReturned),
			"now":    now,
			"notes":  notes,
			"id":     id,
		})
		if err != nil {
			return err
		}
		if returned, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Loan]); err != nil {
			return err
		}
		if err = setCopyStatus(ctx, tx, c.ID, model.CopyAvailable); err != nil {
			return err
		}

		title, err := bookTitle(ctx, tx, c.BookID)
		if err != nil {
			return err
		}
		if err = r.notify(ctx, tx, out, model.Notification{
			UserID:  loan.UserID,
			Type:    model.NotificationReturned,
			Message: model.LoanReturnedMessage(title, now),
		}); err != nil {
			return err
		}
		moved, err := r.processQueue(ctx, tx, out, c.BookID, now, pickupDays)
		if err != nil {
			return err
		}
		if moved > 0 {
			r.log.Info("returned copy handed to queue", zap.Int("loan_id", id), zap.Int("book_id", c.BookID))
		}
		return nil
	})
	if err != nil {
		return model.Loan{}, err
	}
	return returned, nil
}

// RenewLoan pushes the due date of an active loan that has renewals left.
func (r *repository) RenewLoan(ctx context.Context, id, days, maxRenewals int) (model.Loan, error) {
	q := `
update loans
    set due_at = due_at + make_interval(days => @days), renewals = renewals + 1
where id = @id and status = 'Prestado' and renewals < @max_renewals
returning ` + columnList(loanColumns)
	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"id": id, "days": days, "max_renewals": maxRenewals})
	if err != nil {
		return model.Loan{}, err
	}
	loan, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Loan])
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err = r.GetLoan(ctx, id); err != nil {
			return model.Loan{}, errors.Wrapf(err, "loan %d", id)
		}
		return model.Loan{}, errors.Wrapf(errs.ErrInvalidState, "loan %d cannot be renewed", id)
	}
	if err != nil {
		return model.Loan{}, classify(err)
	}
	return loan, nil
}

func (r *repository) ListActiveLoans(ctx context.Context) ([]model.LoanView, error) {
	return r.listLoanViews(ctx, sq.Eq{"l.status": string(model.LoanActive)}, "l.due_at", "l.id")
}

func (r *repository) ListLoansByUser(ctx context.Context, userID int, activeOnly bool) ([]model.LoanView, error) {
	where := sq.Eq{"l.user_id": userID}
	if activeOnly {
		where["l.status"] = string(model.LoanActive)
	}
	return r.listLoanViews(ctx, where, "l.loaned_at desc", "l.id desc")
}

func (r *repository) ListOverdueLoanViews(ctx context.Context, now time.Time) ([]model.LoanView, error) {
	where := sq.And{
		sq.Eq{"l.status": string(model.LoanActive)},
		sq.Lt{"l.due_at": now},
	}
	return r.listLoanViews(ctx, where, "l.due_at", "l.id")
}

func (r *repository) listLoanViews(ctx context.Context, where sq.Sqlizer, orderBy ...string) ([]model.LoanView, error) {
	cols := append(prefixed("l", loanColumns),
		"c.book_id",
		"b.title as book_title",
		"c.barcode as copy_barcode",
		"u.name as user_name",
		"u.code as user_code",
	)
	query, args, err := qb.Select(cols...).
		From(loansTableName + " l").
		Join(copiesTableName + " c on c.id = l.copy_id").
		Join(booksTableName + " b on b.id = c.book_id").
		Join(usersTableName + " u on u.id = l.user_id").
		Where(where).
		OrderBy(orderBy...).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.LoanView])
	if err != nil {
		return nil, fmt.Errorf("pgx.CollectRows: %w", err)
	}
	return views, nil
}

// copyBook resolves the book of a copy without locking it, so callers can take the book lock first.
func copyBook(ctx context.Context, q querier, copyID int) (int, error) {
	query, args, err := qb.Select("book_id").From(copiesTableName).Where(sq.Eq{"id": copyID}).ToSql()
	if err != nil {
		return 0, err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := pgx.CollectOneRow(rows, pgx.RowTo[int])
	if err != nil {
		return 0, classify(err)
	}
	return id, nil
}

func getLoan(ctx context.Context, q querier, id int, forUpdate bool) (model.Loan, error) {
	b := qb.Select(loanColumns...).
		From(loansTableName).
		Where(sq.Eq{"id": id})
	if forUpdate {
		b = b.Suffix("for update")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return model.Loan{}, err
	}
	loan, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Loan])
	if err != nil {
		return model.Loan{}, classify(err)
	}
	return loan, nil
}

func insertLoan(ctx context.Context, tx pgx.Tx, loan model.Loan) (model.Loan, error) {
	q := `
insert into loans (copy_id, user_id, loaned_at, due_at, status, notes)
values (@copy_id, @user_id, @loaned_at, @due_at, @status, @notes)
returning ` + columnList(loanColumns)
	rows, err := tx.Query(ctx, q, pgx.NamedArgs{
		"copy_id":   loan.CopyID,
		"user_id":   loan.UserID,
		"loaned_at": loan.LoanedAt,
		"due_at":    loan.DueAt,
		"status":    string(model.LoanActive),
		"notes":     loan.Notes,
	})
	if err != nil {
		return model.Loan{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Loan])
}

// heldReservation finds the borrower's open pickup reservation holding the copy, or nil.
func heldReservation(ctx context.Context, tx pgx.Tx, copyID, userID int) (*model.Reservation, error) {
	query, args, err := qb.Select(reservationColumns...).
		From(reservationsTableName).
		Where(sq.Eq{
			"copy_id": copyID,
			"user_id": userID,
			"status":  statuses(model.ReservationPending, model.ReservationApproved),
		}).
		OrderBy("created_at").
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
