package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modaline/store-api/internal/models"
)

func newMockRepo(t *testing.T) (*PaymentRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	db := sqlx.NewDb(mockDB, "sqlmock")
	return NewPaymentRepository(db), mock
}

func sessionColumns() []string {
	return []string{
		"id", "conversation_id", "order_number", "status", "payment_id",
		"amount", "currency", "redirect_html", "failure_code", "failure_message",
		"created_at", "redirected_at", "last_callback_at", "completed_at", "updated_at",
	}
}

func TestGetSessionByConversationID(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM payment_sessions WHERE conversation_id = \$1`).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows(sessionColumns()).AddRow(
			1, "conv-1", "ORD-100", "INITIALIZED", "12345",
			149.90, "TRY", nil, nil, nil,
			now, nil, nil, nil, now,
		))

	session, err := repo.GetSessionByConversationID("conv-1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "conv-1", session.ConversationID)
	assert.Equal(t, models.SessionInitialized, session.Status)
	require.NotNil(t, session.PaymentID)
	assert.Equal(t, "12345", *session.PaymentID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSessionByConversationID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT \* FROM payment_sessions WHERE conversation_id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	session, err := repo.GetSessionByConversationID("missing")
	assert.NoError(t, err)
	assert.Nil(t, session)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSession(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectPrepare(`INSERT INTO payment_sessions`)
	mock.ExpectQuery(`INSERT INTO payment_sessions`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	session := &models.PaymentSession{
		ConversationID: "conv-7",
		OrderNumber:    "ORD-7",
		Status:         models.SessionInitialized,
		Amount:         50,
		Currency:       "TRY",
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, repo.UpsertSession(session))
	assert.Equal(t, 7, session.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSession_TerminalRowUntouched(t *testing.T) {
	repo, mock := newMockRepo(t)

	// The conflict guard skips terminal rows, so RETURNING yields no row.
	mock.ExpectPrepare(`INSERT INTO payment_sessions`)
	mock.ExpectQuery(`INSERT INTO payment_sessions`).
		WillReturnError(sql.ErrNoRows)

	session := &models.PaymentSession{
		ConversationID: "conv-done",
		OrderNumber:    "ORD-9",
		Status:         models.SessionCallbackReceived,
		CreatedAt:      time.Now(),
	}
	assert.NoError(t, repo.UpsertSession(session))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransactionRecord(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	mock.ExpectPrepare(`INSERT INTO transaction_records`)
	mock.ExpectQuery(`INSERT INTO transaction_records`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(42, now))

	rec := &models.TransactionRecord{
		ConversationID: "conv-1",
		Operation:      models.OpInitialize,
		Status:         models.RecordSuccess,
		DurationMs:     120,
	}
	require.NoError(t, repo.CreateTransactionRecord(rec))
	assert.Equal(t, int64(42), rec.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStaleSessions(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	mock.ExpectPrepare(`SELECT \* FROM payment_sessions`)
	mock.ExpectQuery(`SELECT \* FROM payment_sessions`).
		WillReturnRows(sqlmock.NewRows(sessionColumns()).AddRow(
			3, "conv-3", "ORD-3", "REDIRECTED", "999",
			10.0, "TRY", nil, nil, nil,
			now.Add(-time.Hour), &now, nil, nil, now.Add(-10*time.Minute),
		))

	sessions, err := repo.ListStaleSessions(2*time.Minute, 24*time.Hour, 50)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, models.SessionRedirected, sessions[0].Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}
