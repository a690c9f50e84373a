package models

import (
	"encoding/json"
	"time"
)

type SessionStatus string
type OperationType string
type RecordStatus string

// PaymentSession lifecycle states. Transitions only move forward; COMPLETED
// and FAILED are terminal.
const (
	SessionInitialized      SessionStatus = "INITIALIZED"
	SessionRedirected       SessionStatus = "REDIRECTED"
	SessionCallbackReceived SessionStatus = "CALLBACK_RECEIVED"
	SessionCompleted        SessionStatus = "COMPLETED"
	SessionFailed           SessionStatus = "FAILED"
)

// Gateway operation types, one per API call kind.
const (
	OpInitialize     OperationType = "initialize"
	OpComplete       OperationType = "complete"
	OpDetail         OperationType = "detail"
	OpTokenComplete  OperationType = "token_complete"
	OpConnectionTest OperationType = "connection_test"
)

// TransactionRecord outcome statuses.
const (
	RecordSuccess RecordStatus = "success"
	RecordFailure RecordStatus = "failure"
	RecordError   RecordStatus = "error"
)

var sessionRank = map[SessionStatus]int{
	SessionInitialized:      1,
	SessionRedirected:       2,
	SessionCallbackReceived: 3,
	SessionCompleted:        4,
	SessionFailed:           4,
}

// IsTerminal reports whether the status allows no further transitions.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// CanAdvanceTo reports whether the transition s -> next is legal: strictly
// forward, never out of a terminal state.
func (s SessionStatus) CanAdvanceTo(next SessionStatus) bool {
	if s.IsTerminal() {
		return false
	}
	return sessionRank[next] > sessionRank[s]
}

// PaymentSession tracks one 3DS payment attempt keyed by conversationId.
// Created on initiate, mutated only by the payment state machine, immutable
// once terminal.
type PaymentSession struct {
	ID             int            `db:"id" json:"-"`
	ConversationID string         `db:"conversation_id" json:"conversationId"`
	OrderNumber    string         `db:"order_number" json:"orderNumber"`
	Status         SessionStatus  `db:"status" json:"status"`
	PaymentID      *string        `db:"payment_id" json:"paymentId,omitempty"`
	Amount         float64        `db:"amount" json:"amount"`
	Currency       string         `db:"currency" json:"currency"`
	RedirectHTML   *string        `db:"redirect_html" json:"-"`
	FailureCode    *string        `db:"failure_code" json:"failureCode,omitempty"`
	FailureMessage *string        `db:"failure_message" json:"failureMessage,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	RedirectedAt   *time.Time     `db:"redirected_at" json:"redirectedAt,omitempty"`
	LastCallbackAt *time.Time     `db:"last_callback_at" json:"lastCallbackAt,omitempty"`
	CompletedAt    *time.Time     `db:"completed_at" json:"completedAt,omitempty"`
	UpdatedAt      time.Time      `db:"updated_at" json:"-"`
}

// TransactionRecord is the append-only audit row written once per gateway API
// call attempt. Request and Response hold the masked payloads, never the wire
// values.
type TransactionRecord struct {
	ID                  int64           `db:"id" json:"id"`
	ConversationID      string          `db:"conversation_id" json:"conversationId"`
	OrderNumber         *string         `db:"order_number" json:"orderNumber,omitempty"`
	PaymentID           *string         `db:"payment_id" json:"paymentId,omitempty"`
	Operation           OperationType   `db:"operation" json:"operation"`
	Status              RecordStatus    `db:"status" json:"status"`
	Request             json.RawMessage `db:"request" json:"request,omitempty"`
	Response            json.RawMessage `db:"response" json:"response,omitempty"`
	GatewayStatus       *string         `db:"gateway_status" json:"gatewayStatus,omitempty"`
	GatewayErrorCode    *string         `db:"gateway_error_code" json:"gatewayErrorCode,omitempty"`
	GatewayErrorMessage *string         `db:"gateway_error_message" json:"gatewayErrorMessage,omitempty"`
	DurationMs          int64           `db:"duration_ms" json:"durationMs"`
	CreatedAt           time.Time       `db:"created_at" json:"createdAt"`
}

type DebugSeverity string

const (
	SeverityInfo    DebugSeverity = "INFO"
	SeverityWarning DebugSeverity = "WARNING"
	SeverityError   DebugSeverity = "ERROR"
)

// DebugEvent is one entry in the append-only diagnostic trail.
type DebugEvent struct {
	ID             int64           `db:"id" json:"id"`
	Type           string          `db:"type" json:"type"`
	Severity       DebugSeverity   `db:"severity" json:"severity"`
	ConversationID *string         `db:"conversation_id" json:"conversationId,omitempty"`
	Context        string          `db:"context" json:"context"`
	Data           json.RawMessage `db:"data" json:"data,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
}
