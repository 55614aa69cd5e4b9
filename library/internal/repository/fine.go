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

var fineColumns = []string{"id", "loan_id", "user_id", "amount", "status", "reason", "days_late", "charged_at", "notes", "created_at"}

const reconciledNote = "Corregida automáticamente: préstamo devuelto"

func (r *repository) listFines(ctx context.Context, where sq.Sqlizer) ([]model.Fine, error) {
	query, args, err := qb.Select(fineColumns...).
		From(finesTableName).
		Where(where).
		OrderBy("created_at desc", "id desc").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fines, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Fine])
	if err != nil {
		return nil, fmt.Errorf("pgx.CollectRows: %w", err)
	}
	return fines, nil
}

func (r *repository) ListFinesByUser(ctx context.Context, userID int) ([]model.Fine, error) {
	return r.listFines(ctx, sq.Eq{"user_id": userID})
}

func (r *repository) ListPendingFines(ctx context.Context) ([]model.Fine, error) {
	return r.listFines(ctx, sq.Eq{"status": string(model.FinePending)})
}

func (r *repository) ListPendingFinesByUser(ctx context.Context, userID int) ([]model.Fine, error) {
	return r.listFines(ctx, sq.Eq{"user_id": userID, "status": string(model.FinePending)})
}

func (r *repository) FineSummary(ctx context.Context, userID int) (model.FineSummary, error) {
	const q = `
select count(*)                                                     as total,
       count(*) filter (where status = 'Pendiente')                 as pending,
       count(*) filter (where status = 'Pagada')                    as paid,
       coalesce(sum(amount) filter (where status = 'Pendiente'), 0) as pending_amount,
       coalesce(sum(amount) filter (where status = 'Pagada'), 0)    as paid_amount,
       coalesce(sum(amount), 0)                                     as total_amount
from fines
where user_id = @user_id`
	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"user_id": userID})
	if err != nil {
		return model.FineSummary{}, err
	}
	summary, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.FineSummary])
	if err != nil {
		return model.FineSummary{}, fmt.Errorf("pgx.CollectOneRow: %w", err)
	}
	return summary, nil
}

func (r *repository) GetFine(ctx context.Context, id int) (model.Fine, error) {
	query, args, err := qb.Select(fineColumns...).
		From(finesTableName).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Fine{}, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.Fine{}, err
	}
	fine, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Fine])
	if err != nil {
		return model.Fine{}, classify(err)
	}
	return fine, nil
}

// CreateFine stores a pending fine and notifies the borrower in the same transaction.
// A second pending fine for the same loan is refused with errs.ErrConflict.
func (r *repository) CreateFine(ctx context.Context, fine model.Fine) (model.Fine, error) {
	var created model.Fine
	err := r.inTx(ctx, func(tx pgx.Tx, out *outbox) error {
		q := `
insert into fines (loan_id, user_id, amount, status, reason, days_late)
values (@loan_id, @user_id, @amount, @status, @reason, @days_late)
returning ` + columnList(fineColumns)
		args := pgx.NamedArgs{
			"loan_id":   fine.LoanID,
			"user_id":   fine.UserID,
			"amount":    fine.Amount,
			"status":    string(model.FinePending),
			"reason":    fine.Reason,
			"days_late": fine.DaysLate,
		}
		rows, err := tx.Query(ctx, q, args)
		if err != nil {
			return err
		}
		created, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Fine])
		if err != nil {
			return err
		}

		title, err := loanBookTitle(ctx, tx, fine.LoanID)
		if err != nil {
			return err
		}
		return r.notify(ctx, tx, out, model.Notification{
			UserID:  created.UserID,
			Type:    model.NotificationFineCreated,
			Message: model.FineCreatedMessage(created.Amount, created.Reason, created.DaysLate, title),
		})
	})
	if err != nil {
		return model.Fine{}, errors.Wrapf(err, "create fine for loan %d", fine.LoanID)
	}
	return created, nil
}

// PayFine settles a pending fine. A fine that is no longer pending is left untouched.
func (r *repository) PayFine(ctx context.Context, id int, notes *string, paidAt time.Time) error {
	const q = `
update fines
    set status = 'Pagada', charged_at = @paid_at, notes = coalesce(@notes, notes)
where id = @id and status = 'Pendiente'`
	n, err := affected(r.db.Exec(ctx, q, pgx.NamedArgs{"id": id, "notes": notes, "paid_at": paidAt}))
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(errs.ErrInvalidState, "fine %d is not pending", id)
	}
	return nil
}

func (r *repository) HasPendingFineForLoan(ctx context.Context, loanID int) (bool, error) {
	const q = `select exists(select 1 from fines where loan_id = @loan_id and status = 'Pendiente')`
	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"loan_id": loanID})
	if err != nil {
		return false, err
	}
	return pgx.CollectOneRow(rows, pgx.RowTo[bool])
}

// ListOverdueLoans returns active loans due before the given instant that carry no pending fine.
func (r *repository) ListOverdueLoans(ctx context.Context, before time.Time) ([]model.Loan, error) {
	query, args, err := qb.Select(prefixed("l", loanColumns)...).
		From(loansTableName + " l").
		Where(sq.Eq{"l.status": string(model.LoanActive)}).
		Where(sq.Lt{"l.due_at": before}).
		Where(`not exists (select 1 from fines f where f.loan_id = l.id and f.status = 'Pendiente')`).
		OrderBy("l.due_at", "l.id").
		ToSql()
	if err != nil {
		return nil, err
	}
	r.log.Debug("ListOverdueLoans", zap.String("query", query), zap.Any("args", args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loans, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Loan])
	if err != nil {
		return nil, fmt.Errorf("pgx.CollectRows: %w", err)
	}
	return loans, nil
}

// CorrectFinesForReturnedLoans settles pending fines whose loan was already returned.
func (r *repository) CorrectFinesForReturnedLoans(ctx context.Context, at time.Time) (int, error) {
	const q = `
update fines f
    set status = 'Pagada', charged_at = @at, notes = coalesce(f.notes, @note)
from loans l
where l.id = f.loan_id and f.status = 'Pendiente' and l.status = 'Devuelto'`
	return affected(r.db.Exec(ctx, q, pgx.NamedArgs{"at": at, "note": reconciledNote}))
}

func loanBookTitle(ctx context.Context, q querier, loanID int) (string, error) {
	const query = `
select b.title
from loans l
    join copies c on c.id = l.copy_id
    join books b on b.id = c.book_id
where l.id = $1`
	rows, err := q.Query(ctx, query, loanID)
	if err != nil {
		return "", err
	}
	title, err := pgx.CollectOneRow(rows, pgx.RowTo[string])
	if err != nil {
		return "", classify(err)
	}
	return title, nil
}
