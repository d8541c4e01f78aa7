package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"settlement-service/models"
	"settlement-service/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return gormDB, mock
}

// ---- payments ----

func TestPaymentCreate_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepository(gormDB)

	id := uuid.New()
	payment := &models.Payment{
		EntityType: models.EntityRegistration,
		EntityID:   uuid.New(),
		UserID:     uuid.New(),
		Amount:     decimal.NewFromInt(1000),
		Status:     models.PaymentStatusPending,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "payments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), payment))
	assert.Equal(t, id, payment.ID)
}

func TestPaymentFindByID_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "payments" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{}))

	p, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Nil(t, p)
}

func TestPaymentFindByIDForUpdate_LocksRow(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepository(gormDB)

	id := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "entity_type", "entity_id", "user_id", "amount", "status"}).
		AddRow(id.String(), "booking", uuid.NewString(), uuid.NewString(), "4200.00", models.PaymentStatusPending)
	mock.ExpectQuery(`SELECT \* FROM "payments" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(rows)

	p, err := repo.FindByIDForUpdate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.EntityBooking, p.EntityType)
	assert.Equal(t, "4200", p.Amount.String())
}

func TestPaymentListPaidByWorkshop_ExcludesOtherEntities(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepository(gormDB)

	workshopID := uuid.New()
	completed := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "entity_type", "workshop_id", "amount", "status", "completed_at"}).
		AddRow(uuid.NewString(), "registration", workshopID.String(), "1000.00", "paid", completed).
		AddRow(uuid.NewString(), "registration", workshopID.String(), "1500.00", "paid", completed.Add(time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "payments" WHERE workshop_id = $1 AND entity_type = $2 AND status = $3 ORDER BY completed_at ASC`)).
		WithArgs(workshopID, "registration", "paid").
		WillReturnRows(rows)

	payments, err := repo.ListPaidByWorkshop(context.Background(), workshopID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "1500", payments[1].Amount.String())
}

// ---- registrations ----

func TestRegistrationAssignNumber_RetriesOnCollision(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	store := repository.NewGormStore(gormDB)

	id := uuid.New()
	candidates := []string{"WS-2025-200123AB", "WS-2025-9F31C0DE"}
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SAVEPOINT registration_number`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "registrations" SET "registration_number"=$1 WHERE id = $2`)).
		WithArgs(candidates[0], id).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "registrations_registration_number_key"})
	mock.ExpectExec(regexp.QuoteMeta(`ROLLBACK TO SAVEPOINT registration_number`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`SAVEPOINT registration_number`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "registrations" SET "registration_number"=$1 WHERE id = $2`)).
		WithArgs(candidates[1], id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var (
		number string
		calls  int
	)
	err := store.Transaction(context.Background(), func(tx repository.Store) error {
		var err error
		number, err = tx.Registrations().AssignNumber(context.Background(), id, func() string {
			calls++
			return candidates[calls-1]
		})
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, "WS-2025-9F31C0DE", number)
	assert.Equal(t, 2, calls)
}

func TestRegistrationAssignNumber_OtherErrorsAbort(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormRegistrationRepository(gormDB)

	mock.ExpectExec(regexp.QuoteMeta(`SAVEPOINT registration_number`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "registrations" SET "registration_number"=$1 WHERE id = $2`)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.AssignNumber(context.Background(), uuid.New(), func() string { return "WS-2025-00000000" })
	assert.ErrorContains(t, err, "connection reset")
}

// ---- workshops ----

func TestWorkshopListDueForRelease(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormWorkshopRepository(gormDB)

	cutoff := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "creator_id", "title", "end_time", "revenue_released", "payment_hold"}).
		AddRow(uuid.NewString(), uuid.NewString(), "Implant Basics", cutoff.Add(-2*time.Hour), false, false)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "workshops" WHERE end_time <= $1 AND revenue_released = $2 AND payment_hold = $3 AND revenue_checked_at IS NULL ORDER BY end_time ASC LIMIT`)).
		WillReturnRows(rows)

	workshops, err := repo.ListDueForRelease(context.Background(), cutoff, 50)
	require.NoError(t, err)
	require.Len(t, workshops, 1)
	assert.Equal(t, "Implant Basics", workshops[0].Title)
	assert.True(t, workshops[0].EligibleForAutomaticRelease(cutoff))
}

func TestWorkshopUpdate_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormWorkshopRepository(gormDB)

	w := &models.Workshop{ID: uuid.New(), CreatorID: uuid.New(), Title: "Endo", PaymentHold: true, HoldReason: "dispute"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "workshops"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.Update(context.Background(), w))
}

// ---- payouts ----

func TestPayoutMarkSuperseded(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"active payout", 1, nil},
		{"already superseded", 0, gorm.ErrRecordNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock := setupMockDB(t)
			repo := repository.NewGormPayoutRepository(gormDB)

			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta(`UPDATE "payouts" SET`)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			mock.ExpectCommit()

			err := repo.MarkSuperseded(context.Background(), uuid.New(), uuid.New(), time.Now())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPayoutList_FiltersByCreator(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPayoutRepository(gormDB)

	creatorID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "payouts" WHERE creator_id = $1`)).
		WithArgs(creatorID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "payouts" WHERE creator_id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "creator_id", "net_amount", "status"}).
			AddRow(uuid.NewString(), creatorID.String(), "2904.00", models.PayoutStatusReleased))

	payouts, total, err := repo.List(context.Background(), repository.PayoutFilter{CreatorID: &creatorID}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, payouts, 1)
	assert.Equal(t, "2904", payouts[0].NetAmount.String())
}

// ---- outbox ----

func TestOutboxClaimBatch_SkipsLockedRows(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOutboxRepository(gormDB)

	mock.ExpectQuery(`SELECT \* FROM "outbox_messages" WHERE processed_at IS NULL AND attempts < \$1 ORDER BY created_at ASC LIMIT .* FOR UPDATE SKIP LOCKED`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "aggregate_type", "aggregate_id", "event_type", "payload"}).
			AddRow(uuid.NewString(), "payment", uuid.NewString(), models.EventPaymentSettled, []byte(`{}`)))

	messages, err := repo.ClaimBatch(context.Background(), 100, 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, models.EventPaymentSettled, messages[0].EventType)
}

func TestOutboxMarkFailed_IncrementsAttempts(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOutboxRepository(gormDB)

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "outbox_messages" SET "attempts"=attempts + 1,"last_error"=$1 WHERE id = $2`)).
		WithArgs("broker unavailable", id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.MarkFailed(context.Background(), id, "broker unavailable"))
}

// ---- notifications ----

func TestNotificationExistsInApp(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormNotificationRepository(gormDB)

	userID, relatedID, days := uuid.New(), uuid.New(), 7
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "notifications" WHERE (user_id = $1 AND type = $2 AND related_id = $3) AND days_remaining = $4`)).
		WithArgs(userID, "subscription_expiry", relatedID, days).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.ExistsInApp(context.Background(), userID, "subscription_expiry", relatedID, &days)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNotificationRequeueFailedEmails(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormNotificationRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "email_queue" SET "status"=$1 WHERE status = $2 AND retry_count < $3`)).
		WithArgs(models.EmailStatusPending, models.EmailStatusFailed, 3).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	n, err := repo.RequeueFailedEmails(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

// ---- store ----

func TestStoreTransaction_RollsBackOnError(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	store := repository.NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "payouts" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.Transaction(context.Background(), func(tx repository.Store) error {
		return tx.Payouts().MarkSuperseded(context.Background(), uuid.New(), uuid.New(), time.Now())
	})
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}
