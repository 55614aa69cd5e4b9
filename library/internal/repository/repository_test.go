package repository_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/errs"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/repository"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/migrations"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/postgres"
)

const pickupDays = 2

var (
	dbOnce sync.Once
	dbPool *pgxpool.Pool
	dbErr  error
	stopDB = func() {}
)

func TestMain(m *testing.M) {
	code := m.Run()
	stopDB()
	os.Exit(code)
}

func startPostgres(ctx context.Context) (pool *pgxpool.Pool, err error) {
	container, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("library"),
		tcpostgres.WithUsername("program"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	if err != nil {
		return nil, fmt.Errorf("tcpostgres.RunContainer: %w", err)
	}
	stopDB = func() { _ = container.Terminate(context.Background()) }

	host, err := container.Host(ctx)
	if err != nil {
		return nil, err
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, err
	}
	cfg := &postgres.DB{
		Host:     host,
		Port:     port.Int(),
		Username: "program",
		Password: "test",
		NameDB:   "library",
		SSLMode:  "disable",
		MaxConns: 4,
	}
	pool, err = postgres.NewPostgresDB(ctx, cfg, migrations.MigrationFiles)
	if err != nil {
		return nil, err
	}
	stop := stopDB
	stopDB = func() {
		pool.Close()
		stop()
	}
	return pool, nil
}

// newTestRepository returns a repository over an empty, migrated database.
func newTestRepository(t *testing.T) (repository.Repository, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres tests are skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	dbOnce.Do(func() { dbPool, dbErr = startPostgres(ctx) })
	require.NoError(t, dbErr)

	_, err := dbPool.Exec(ctx, `truncate table notifications, reservations, fines, loans, copies, books, users restart identity cascade`)
	require.NoError(t, err)

	repo, err := repository.NewRepository(dbPool, zap.NewNop())
	require.NoError(t, err)
	return repo, dbPool
}

func seedUser(t *testing.T, db *pgxpool.Pool, code string) int {
	t.Helper()
	var id int
	err := db.QueryRow(context.Background(),
		`insert into users (code, name, email, role) values ($1, $2, $3, 'Estudiante') returning id`,
		code, "User "+code, code+"@uni.edu.pe").Scan(&id)
	require.NoError(t, err)
	return id
}

func seedBook(t *testing.T, db *pgxpool.Pool, title string) int {
	t.Helper()
	var id int
	err := db.QueryRow(context.Background(), `insert into books (title) values ($1) returning id`, title).Scan(&id)
	require.NoError(t, err)
	return id
}

func seedCopy(t *testing.T, db *pgxpool.Pool, bookID, number int, status model.CopyStatus) int {
	t.Helper()
	var id int
	err := db.QueryRow(context.Background(),
		`insert into copies (book_id, number, barcode, status) values ($1, $2, $3, $4) returning id`,
		bookID, number, fmt.Sprintf("B%d-%d", bookID, number), string(status)).Scan(&id)
	require.NoError(t, err)
	return id
}

func seedLoan(t *testing.T, db *pgxpool.Pool, copyID, userID int, due time.Time, status model.LoanStatus) int {
	t.Helper()
	var id int
	err := db.QueryRow(context.Background(),
		`insert into loans (copy_id, user_id, loaned_at, due_at, status) values ($1, $2, $3, $4, $5) returning id`,
		copyID, userID, due.AddDate(0, 0, -7), due, string(status)).Scan(&id)
	require.NoError(t, err)
	return id
}

func setCopyStatus(t *testing.T, db *pgxpool.Pool, copyID int, status model.CopyStatus) {
	t.Helper()
	_, err := db.Exec(context.Background(), `update copies set status = $1 where id = $2`, string(status), copyID)
	require.NoError(t, err)
}

func copyStatus(t *testing.T, db *pgxpool.Pool, copyID int) model.CopyStatus {
	t.Helper()
	var status string
	err := db.QueryRow(context.Background(), `select status from copies where id = $1`, copyID).Scan(&status)
	require.NoError(t, err)
	return model.CopyStatus(status)
}

func positions(t *testing.T, repo repository.Repository, bookID int, ids ...int) []int {
	t.Helper()
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		pos, err := repo.QueuePosition(context.Background(), bookID, id)
		require.NoError(t, err)
		out = append(out, pos)
	}
	return out
}

func TestRepository_QueueOrder(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)

	book := seedBook(t, db, "Cálculo I")
	copyID := seedCopy(t, db, book, 1, model.CopyLoaned)

	var ids []int
	for _, code := range []string{"u1", "u2", "u3"} {
		user := seedUser(t, db, code)
		res, err := repo.CreateReservation(ctx, model.CreateReservationRequest{UserID: user, BookID: book}, now, pickupDays)
		require.NoError(t, err)
		require.Equal(t, model.ReservationQueued, res.Status)
		require.NotNil(t, res.QueuePriority)
		ids = append(ids, res.ID)
	}
	require.Equal(t, []int{1, 2, 3}, positions(t, repo, book, ids...))

	t.Run("same priority and arrival fall back to id", func(t *testing.T) {
		_, err := db.Exec(ctx, `update reservations set queue_priority = 1 where book_id = $1`, book)
		require.NoError(t, err)
		require.Equal(t, []int{1, 2, 3}, positions(t, repo, book, ids...))
	})

	t.Run("earlier arrival wins a priority tie", func(t *testing.T) {
		_, err := db.Exec(ctx, `update reservations set created_at = $1 where id = $2`, now.Add(-time.Hour), ids[2])
		require.NoError(t, err)
		require.Equal(t, []int{2, 3, 1}, positions(t, repo, book, ids...))
	})

	t.Run("missing priority goes last", func(t *testing.T) {
		_, err := db.Exec(ctx, `update reservations set queue_priority = null where id = $1`, ids[2])
		require.NoError(t, err)
		require.Equal(t, []int{1, 2, 3}, positions(t, repo, book, ids...))

		waiting, err := repo.ListWaitingReservations(ctx)
		require.NoError(t, err)
		require.Len(t, waiting, 3)
		for i, v := range waiting {
			require.Equal(t, ids[i], v.ID)
			require.NotNil(t, v.QueuePosition)
			require.Equal(t, i+1, *v.QueuePosition)
		}
	})

	t.Run("freed copy goes to the head", func(t *testing.T) {
		setCopyStatus(t, db, copyID, model.CopyAvailable)
		moved, err := repo.ProcessQueue(ctx, book, now, pickupDays)
		require.NoError(t, err)
		require.True(t, moved)

		head, err := repo.GetReservation(ctx, ids[0])
		require.NoError(t, err)
		require.Equal(t, model.ReservationPending, head.Status)
		require.Equal(t, model.ReservationTypePickup, head.Type)
		require.NotNil(t, head.CopyID)
		require.Equal(t, copyID, *head.CopyID)
		require.NotNil(t, head.PickupDeadline)
		require.True(t, now.AddDate(0, 0, pickupDays).Equal(*head.PickupDeadline))
		require.Equal(t, model.CopyReserved, copyStatus(t, db, copyID))

		// the rest of the line is renumbered by arrival
		require.Equal(t, []int{0, 2, 1}, positions(t, repo, book, ids...))
	})
}

func TestRepository_CreateFine(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()
	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	user := seedUser(t, db, "u1")
	book := seedBook(t, db, "Física II")
	loan := seedLoan(t, db, seedCopy(t, db, book, 1, model.CopyLoaned), user, due, model.LoanActive)

	days := 3
	fine := model.Fine{LoanID: loan, UserID: user, Amount: decimal.RequireFromString("6.00"), DaysLate: &days}
	created, err := repo.CreateFine(ctx, fine)
	require.NoError(t, err)
	require.Equal(t, model.FinePending, created.Status)

	_, err = repo.CreateFine(ctx, fine)
	require.ErrorIs(t, err, errs.ErrConflict)

	pending, err := repo.ListPendingFinesByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	notes, err := repo.ListNotifications(ctx, user, false)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, model.NotificationFineCreated, notes[0].Type)

	require.NoError(t, repo.PayFine(ctx, created.ID, nil, due))
	require.ErrorIs(t, repo.PayFine(ctx, created.ID, nil, due), errs.ErrInvalidState)

	_, err = repo.CreateFine(ctx, fine)
	require.NoError(t, err)
}

func TestRepository_CorrectFinesForReturnedLoans(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()
	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	at := time.Date(2024, 1, 10, 2, 0, 0, 0, time.UTC)

	user := seedUser(t, db, "u1")
	book := seedBook(t, db, "Química")
	returned := seedLoan(t, db, seedCopy(t, db, book, 1, model.CopyAvailable), user, due, model.LoanReturned)
	active := seedLoan(t, db, seedCopy(t, db, book, 2, model.CopyLoaned), user, due, model.LoanActive)

	for _, loan := range []int{returned, active} {
		_, err := repo.CreateFine(ctx, model.Fine{LoanID: loan, UserID: user, Amount: decimal.RequireFromString("2.50")})
		require.NoError(t, err)
	}

	n, err := repo.CorrectFinesForReturnedLoans(ctx, at)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = repo.CorrectFinesForReturnedLoans(ctx, at)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	fines, err := repo.ListFinesByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, fines, 2)
	for _, f := range fines {
		if f.LoanID == returned {
			require.Equal(t, model.FinePaid, f.Status)
			require.NotNil(t, f.ChargedAt)
			require.True(t, at.Equal(*f.ChargedAt))
			require.NotNil(t, f.Notes)
			continue
		}
		require.Equal(t, model.FinePending, f.Status)
	}

	summary, err := repo.FineSummary(ctx, user)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Total)
	require.Equal(t, 1, summary.Pending)
	require.Equal(t, 1, summary.Paid)
	require.Equal(t, "5.00", summary.TotalAmount.StringFixed(2))
}

func TestRepository_ApproveReservation(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)

	user := seedUser(t, db, "u1")
	admin := seedUser(t, db, "admin")
	book := seedBook(t, db, "Álgebra")
	copyID := seedCopy(t, db, book, 1, model.CopyAvailable)

	res, err := repo.CreateReservation(ctx, model.CreateReservationRequest{UserID: user, BookID: book, Type: model.ReservationTypePickup}, now, pickupDays)
	require.NoError(t, err)
	require.Equal(t, model.ReservationPending, res.Status)
	require.Equal(t, model.CopyReserved, copyStatus(t, db, copyID))

	out, err := repo.ApproveReservation(ctx, res.ID, admin, 7, now)
	require.NoError(t, err)
	require.NotZero(t, out.LoanID)
	require.Equal(t, model.CopyLoaned, copyStatus(t, db, copyID))

	_, err = repo.ApproveReservation(ctx, res.ID, admin, 7, now)
	require.ErrorIs(t, err, errs.ErrInvalidState)

	var loans int
	require.NoError(t, db.QueryRow(ctx, `select count(*) from loans where user_id = $1`, user).Scan(&loans))
	require.Equal(t, 1, loans)
}

func TestRepository_ChangeReservationType(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)

	book := seedBook(t, db, "Estadística")
	copyID := seedCopy(t, db, book, 1, model.CopyLoaned)
	first, err := repo.CreateReservation(ctx, model.CreateReservationRequest{UserID: seedUser(t, db, "u1"), BookID: book}, now, pickupDays)
	require.NoError(t, err)
	second, err := repo.CreateReservation(ctx, model.CreateReservationRequest{UserID: seedUser(t, db, "u2"), BookID: book}, now.Add(time.Minute), pickupDays)
	require.NoError(t, err)

	t.Run("pickup needs a copy", func(t *testing.T) {
		err := repo.ChangeReservationType(ctx, second.ID, model.ReservationTypePickup, now, pickupDays)
		require.ErrorIs(t, err, errs.ErrConflict)
		require.Equal(t, []int{1, 2}, positions(t, repo, book, first.ID, second.ID))
	})

	later := now.Add(time.Hour)
	t.Run("pickup holds the copy with a fresh deadline", func(t *testing.T) {
		setCopyStatus(t, db, copyID, model.CopyAvailable)
		require.NoError(t, repo.ChangeReservationType(ctx, second.ID, model.ReservationTypePickup, later, pickupDays))

		res, err := repo.GetReservation(ctx, second.ID)
		require.NoError(t, err)
		require.Equal(t, model.ReservationPending, res.Status)
		require.Equal(t, model.ReservationTypePickup, res.Type)
		require.NotNil(t, res.CopyID)
		require.Equal(t, copyID, *res.CopyID)
		require.NotNil(t, res.PickupDeadline)
		require.True(t, later.AddDate(0, 0, pickupDays).Equal(*res.PickupDeadline))
		require.Nil(t, res.QueuePriority)
		require.Equal(t, model.CopyReserved, copyStatus(t, db, copyID))

		require.Equal(t, []int{1, 0}, positions(t, repo, book, first.ID, second.ID))
	})

	t.Run("queue gives the copy back to the head of the line", func(t *testing.T) {
		require.NoError(t, repo.ChangeReservationType(ctx, second.ID, model.ReservationTypeQueue, later, pickupDays))

		res, err := repo.GetReservation(ctx, second.ID)
		require.NoError(t, err)
		require.Equal(t, model.ReservationQueued, res.Status)
		require.Equal(t, model.ReservationTypeQueue, res.Type)
		require.Nil(t, res.CopyID)
		require.Nil(t, res.PickupDeadline)

		head, err := repo.GetReservation(ctx, first.ID)
		require.NoError(t, err)
		require.Equal(t, model.ReservationPending, head.Status)
		require.NotNil(t, head.CopyID)
		require.Equal(t, copyID, *head.CopyID)
		require.Equal(t, model.CopyReserved, copyStatus(t, db, copyID))

		require.Equal(t, []int{0, 1}, positions(t, repo, book, first.ID, second.ID))
	})

	t.Run("same type is a no-op", func(t *testing.T) {
		require.NoError(t, repo.ChangeReservationType(ctx, second.ID, model.ReservationTypeQueue, later, pickupDays))
		require.Equal(t, []int{0, 1}, positions(t, repo, book, first.ID, second.ID))
	})
}
