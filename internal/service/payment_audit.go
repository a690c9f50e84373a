package service

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/modaline/store-api/internal/models"
	"github.com/modaline/store-api/pkg/iyzico"
)

// AuditStore is the append-only log sink for transaction records and debug
// events. Implemented by the payment audit repository; tests plug in an
// in-memory fake.
type AuditStore interface {
	CreateTransactionRecord(rec *models.TransactionRecord) error
	CreateDebugEvent(ev *models.DebugEvent) error
}

// Attempt describes one gateway API call attempt for the audit trail. Request
// and Response must already be masked by the caller.
type Attempt struct {
	ConversationID string
	OrderNumber    *string
	PaymentID      *string
	Operation      models.OperationType
	Status         models.RecordStatus
	Request        any
	Response       any
	GatewayStatus  string
	ErrorCode      string
	ErrorMessage   string
	Duration       time.Duration
}

// AuditEmitter writes the audit trail. Sink failures are logged and swallowed:
// a broken log store must never alter the payment flow, and every masked
// record still lands in the structured log.
type AuditEmitter struct {
	store AuditStore
}

// NewAuditEmitter constructs an AuditEmitter.
func NewAuditEmitter(store AuditStore) *AuditEmitter {
	return &AuditEmitter{store: store}
}

// RecordAttempt persists one TransactionRecord for a gateway call attempt.
func (a *AuditEmitter) RecordAttempt(att Attempt) {
	rec := &models.TransactionRecord{
		ConversationID: att.ConversationID,
		OrderNumber:    att.OrderNumber,
		PaymentID:      att.PaymentID,
		Operation:      att.Operation,
		Status:         att.Status,
		Request:        marshalRaw(att.Request),
		Response:       marshalRaw(att.Response),
		DurationMs:     att.Duration.Milliseconds(),
	}
	if att.GatewayStatus != "" {
		rec.GatewayStatus = &att.GatewayStatus
	}
	if att.ErrorCode != "" {
		rec.GatewayErrorCode = &att.ErrorCode
	}
	if att.ErrorMessage != "" {
		rec.GatewayErrorMessage = &att.ErrorMessage
	}

	log.Info().
		Str("conversationId", att.ConversationID).
		Str("operation", string(att.Operation)).
		Str("status", string(att.Status)).
		Int64("durationMs", rec.DurationMs).
		Msg("payment gateway attempt")

	if err := a.store.CreateTransactionRecord(rec); err != nil {
		log.Error().Err(err).Str("conversationId", att.ConversationID).Msg("failed to create transaction record")
	}
}

// Emit appends a DebugEvent to the diagnostic trail.
func (a *AuditEmitter) Emit(eventType string, severity models.DebugSeverity, conversationID, context string, data any) {
	ev := &models.DebugEvent{
		Type:     eventType,
		Severity: severity,
		Context:  context,
		Data:     marshalRaw(data),
	}
	if conversationID != "" {
		ev.ConversationID = &conversationID
	}

	evt := log.Debug()
	if severity == models.SeverityWarning {
		evt = log.Warn()
	} else if severity == models.SeverityError {
		evt = log.Error()
	}
	evt.Str("type", eventType).Str("conversationId", conversationID).Str("context", context).Msg("payment debug event")

	if err := a.store.CreateDebugEvent(ev); err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("failed to create debug event")
	}
}

// marshalRaw serializes v for storage, returning nil for nil input.
func marshalRaw(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{"_error":"unserializable"}`)
	}
	return json.RawMessage(data)
}

// MaskInitRequest returns a copy of the initialize request with the PAN
// reduced to its last 4 digits and the CVC redacted. The original value is
// untouched and remains what goes over the wire; only the copy may reach a
// log sink. The redaction enumerates the known sensitive fields explicitly
// rather than round-tripping through JSON.
func MaskInitRequest(req *iyzico.InitThreeDSRequest) *iyzico.InitThreeDSRequest {
	if req == nil {
		return nil
	}
	masked := *req
	masked.PaymentCard.CardNumber = iyzico.MaskPAN(masked.PaymentCard.CardNumber)
	masked.PaymentCard.CVC = "***"
	return &masked
}
