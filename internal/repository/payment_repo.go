package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/modaline/store-api/internal/models"
)

// PaymentRepository provides access to payment sessions and the audit tables.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// UpsertSession inserts a session or updates the existing row for the same
// conversation_id. Rows already in a terminal status are never overwritten;
// the state machine enforces ordering, this guard backs it at the database.
func (r *PaymentRepository) UpsertSession(session *models.PaymentSession) error {
	const q = `
		INSERT INTO payment_sessions (
			conversation_id, order_number, status, payment_id, amount, currency,
			redirect_html, failure_code, failure_message,
			created_at, redirected_at, last_callback_at, completed_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		ON CONFLICT (conversation_id) DO UPDATE SET
			status = EXCLUDED.status,
			payment_id = COALESCE(EXCLUDED.payment_id, payment_sessions.payment_id),
			redirect_html = COALESCE(EXCLUDED.redirect_html, payment_sessions.redirect_html),
			failure_code = EXCLUDED.failure_code,
			failure_message = EXCLUDED.failure_message,
			redirected_at = COALESCE(EXCLUDED.redirected_at, payment_sessions.redirected_at),
			last_callback_at = COALESCE(EXCLUDED.last_callback_at, payment_sessions.last_callback_at),
			completed_at = COALESCE(EXCLUDED.completed_at, payment_sessions.completed_at),
			updated_at = EXCLUDED.updated_at
		WHERE payment_sessions.status NOT IN ('COMPLETED', 'FAILED')
		RETURNING id`
	stmt, err := r.db.Preparex(q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	err = stmt.QueryRow(
		session.ConversationID,
		session.OrderNumber,
		session.Status,
		session.PaymentID,
		session.Amount,
		session.Currency,
		session.RedirectHTML,
		session.FailureCode,
		session.FailureMessage,
		session.CreatedAt,
		session.RedirectedAt,
		session.LastCallbackAt,
		session.CompletedAt,
		session.UpdatedAt,
	).Scan(&session.ID)
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict row was terminal and the update guard skipped it.
		return nil
	}
	return err
}

// GetSessionByConversationID returns the session for a conversation, or
// (nil, nil) when none exists.
func (r *PaymentRepository) GetSessionByConversationID(conversationID string) (*models.PaymentSession, error) {
	const q = `SELECT * FROM payment_sessions WHERE conversation_id = $1`
	var session models.PaymentSession
	if err := r.db.Get(&session, q, conversationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// GetSessionByPaymentID returns the session holding a gateway payment id, or
// (nil, nil) when none exists.
func (r *PaymentRepository) GetSessionByPaymentID(paymentID string) (*models.PaymentSession, error) {
	const q = `SELECT * FROM payment_sessions WHERE payment_id = $1 ORDER BY created_at DESC LIMIT 1`
	var session models.PaymentSession
	if err := r.db.Get(&session, q, paymentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// ListStaleSessions returns non-terminal sessions that have not moved for at
// least staleAfter and are younger than maxAge, oldest first.
func (r *PaymentRepository) ListStaleSessions(staleAfter, maxAge time.Duration, limit int) ([]models.PaymentSession, error) {
	const q = `
		SELECT * FROM payment_sessions
		WHERE status IN ('REDIRECTED', 'CALLBACK_RECEIVED')
		  AND updated_at <= $1
		  AND created_at >= $2
		ORDER BY updated_at ASC
		LIMIT $3`
	now := time.Now()
	stmt, err := r.db.Preparex(q)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	var sessions []models.PaymentSession
	if err := stmt.Select(&sessions, now.Add(-staleAfter), now.Add(-maxAge), limit); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListSessions returns sessions for the admin panel, newest first.
func (r *PaymentRepository) ListSessions(limit, offset int) ([]models.PaymentSession, error) {
	const q = `SELECT * FROM payment_sessions ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	stmt, err := r.db.Preparex(q)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	var sessions []models.PaymentSession
	if err := stmt.Select(&sessions, limit, offset); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CountSessions returns the total number of sessions.
func (r *PaymentRepository) CountSessions() (int, error) {
	var count int
	if err := r.db.Get(&count, `SELECT COUNT(*) FROM payment_sessions`); err != nil {
		return 0, err
	}
	return count, nil
}

// CreateTransactionRecord inserts an audit row for one gateway call attempt.
func (r *PaymentRepository) CreateTransactionRecord(rec *models.TransactionRecord) error {
	const q = `
		INSERT INTO transaction_records (
			conversation_id, order_number, payment_id, operation, status,
			request, response, gateway_status, gateway_error_code, gateway_error_message,
			duration_ms, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW()
		)
		RETURNING id, created_at`
	stmt, err := r.db.Preparex(q)
	if err != nil {
		return err
	}
	defer stmt.Close()
	return stmt.QueryRow(
		rec.ConversationID,
		rec.OrderNumber,
		rec.PaymentID,
		rec.Operation,
		rec.Status,
		rec.Request,
		rec.Response,
		rec.GatewayStatus,
		rec.GatewayErrorCode,
		rec.GatewayErrorMessage,
		rec.DurationMs,
	).Scan(&rec.ID, &rec.CreatedAt)
}

// ListTransactionRecords returns the audit rows for a conversation ordered by
// creation time.
func (r *PaymentRepository) ListTransactionRecords(conversationID string) ([]models.TransactionRecord, error) {
	const q = `SELECT * FROM transaction_records WHERE conversation_id = $1 ORDER BY created_at ASC`
	stmt, err := r.db.Preparex(q)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	var records []models.TransactionRecord
	if err := stmt.Select(&records, conversationID); err != nil {
		return nil, err
	}
	return records, nil
}

// CreateDebugEvent inserts a diagnostic event.
func (r *PaymentRepository) CreateDebugEvent(ev *models.DebugEvent) error {
	const q = `
		INSERT INTO debug_events (type, severity, conversation_id, context, data, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at`
	stmt, err := r.db.Preparex(q)
	if err != nil {
		return err
	}
	defer stmt.Close()
	return stmt.QueryRow(
		ev.Type,
		ev.Severity,
		ev.ConversationID,
		ev.Context,
		ev.Data,
	).Scan(&ev.ID, &ev.CreatedAt)
}

// ListDebugEvents returns the diagnostic trail for a conversation, oldest
// first.
func (r *PaymentRepository) ListDebugEvents(conversationID string, limit int) ([]models.DebugEvent, error) {
	const q = `SELECT * FROM debug_events WHERE conversation_id = $1 ORDER BY created_at ASC LIMIT $2`
	stmt, err := r.db.Preparex(q)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	var events []models.DebugEvent
	if err := stmt.Select(&events, conversationID, limit); err != nil {
		return nil, err
	}
	return events, nil
}
