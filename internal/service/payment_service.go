package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/modaline/store-api/internal/config"
	"github.com/modaline/store-api/internal/models"
	"github.com/modaline/store-api/internal/utils"
	"github.com/modaline/store-api/pkg/iyzico"
)

// SessionStore persists payment sessions. GetSession* return (nil, nil) when
// no session matches.
type SessionStore interface {
	UpsertSession(session *models.PaymentSession) error
	GetSessionByConversationID(conversationID string) (*models.PaymentSession, error)
	GetSessionByPaymentID(paymentID string) (*models.PaymentSession, error)
}

// SessionSnapshots is the optional hot cache in front of the session store.
type SessionSnapshots interface {
	Put(ctx context.Context, session *models.PaymentSession) error
	Get(ctx context.Context, conversationID string) (*models.PaymentSession, error)
}

// PaymentResult is the uniform outcome value of every public payment
// operation. Operations never surface a Go error across this boundary;
// failures are encoded here after being audited.
type PaymentResult struct {
	Success        bool                 `json:"success"`
	ConversationID string               `json:"conversationId,omitempty"`
	PaymentID      string               `json:"paymentId,omitempty"`
	Status         models.SessionStatus `json:"status,omitempty"`
	PaymentStatus  string               `json:"paymentStatus,omitempty"`
	RedirectHTML   string               `json:"redirectHtml,omitempty"`
	ErrorCode      string               `json:"errorCode,omitempty"`
	ErrorMessage   string               `json:"errorMessage,omitempty"`
}

// Error codes for failures produced by this layer rather than the gateway.
const (
	codeTransportError  = "TRANSPORT_ERROR"
	codeProtocolError   = "PROTOCOL_ERROR"
	codeSigningError    = "SIGNING_ERROR"
	codeSessionNotFound = "SESSION_NOT_FOUND"
	codeNotCompleted    = "PAYMENT_NOT_COMPLETED"
)

// minCompletionTokenLength routes CheckStatus: a browser-supplied token at
// least this long goes to the token-based completion endpoint.
const minCompletionTokenLength = 24

// PaymentService orchestrates the 3DS payment lifecycle:
// initialize -> redirect -> callback -> complete. It is an explicitly
// constructed instance; the resolved configuration is read-only after
// construction and safe to share across concurrent calls.
type PaymentService struct {
	gateway *iyzico.Client
	builder *RequestBuilder
	audit   *AuditEmitter
	store   SessionStore
	cache   SessionSnapshots // optional, may be nil
	cfg     config.IyzicoConfig
	locale  string

	// completionLocks serializes completion calls per conversation so two
	// concurrent completes for the same payment cannot race each other to the
	// provider.
	completionLocks *conversationLocks
}

// NewPaymentService constructs the payment service. cache may be nil.
func NewPaymentService(gateway *iyzico.Client, builder *RequestBuilder, audit *AuditEmitter, store SessionStore, cache SessionSnapshots, cfg config.IyzicoConfig) *PaymentService {
	return &PaymentService{
		gateway:         gateway,
		builder:         builder,
		audit:           audit,
		store:           store,
		cache:           cache,
		cfg:             cfg,
		locale:          "tr",
		completionLocks: newConversationLocks(),
	}
}

// TestConnection validates credentials and signing with a harmless
// installment lookup that charges nothing.
func (s *PaymentService) TestConnection(ctx context.Context) *PaymentResult {
	start := time.Now()
	conversationID := uuid.New().String()

	req := &iyzico.InstallmentInfoRequest{
		Locale:         s.locale,
		ConversationID: conversationID,
		BinNumber:      "554960",
		Price:          "100.00",
	}

	resp, err := s.gateway.InstallmentInfo(ctx, req)
	if err != nil {
		code, msg := classifyCallError(err)
		s.audit.RecordAttempt(Attempt{
			ConversationID: conversationID,
			Operation:      models.OpConnectionTest,
			Status:         models.RecordError,
			Request:        req,
			ErrorCode:      code,
			ErrorMessage:   msg,
			Duration:       time.Since(start),
		})
		return &PaymentResult{ConversationID: conversationID, ErrorCode: code, ErrorMessage: msg}
	}

	status := models.RecordSuccess
	if !iyzico.IsSuccess(resp.Status) {
		status = models.RecordFailure
	}
	s.audit.RecordAttempt(Attempt{
		ConversationID: conversationID,
		Operation:      models.OpConnectionTest,
		Status:         status,
		Request:        req,
		Response:       resp,
		GatewayStatus:  resp.Status,
		ErrorCode:      resp.ErrorCode,
		ErrorMessage:   resp.ErrorMessage,
		Duration:       time.Since(start),
	})
	return &PaymentResult{
		Success:        status == models.RecordSuccess,
		ConversationID: conversationID,
		ErrorCode:      resp.ErrorCode,
		ErrorMessage:   resp.ErrorMessage,
	}
}

// Initiate3DS starts a 3DS payment. A fresh conversationId is generated for
// every attempt and never reused. On gateway success the session is created
// in INITIALIZED with the redirect artifact; on any failure the session ends
// in FAILED and never advances past INITIALIZED.
func (s *PaymentService) Initiate3DS(ctx context.Context, req *CreatePaymentRequest) *PaymentResult {
	start := time.Now()
	conversationID := uuid.New().String()
	orderNumber := req.OrderNumber

	callbackURL := ""
	if !s.cfg.SkipCallbackURL {
		callbackURL = req.CallbackURL
		if callbackURL == "" {
			callbackURL = s.cfg.CallbackURL
		}
	}

	wire, err := s.builder.BuildInitRequest(conversationID, req, callbackURL)
	if err != nil {
		// Rejected before any network call.
		s.audit.RecordAttempt(Attempt{
			ConversationID: conversationID,
			OrderNumber:    &orderNumber,
			Operation:      models.OpInitialize,
			Status:         models.RecordError,
			ErrorCode:      err.Error(),
			ErrorMessage:   "request rejected by validation",
			Duration:       time.Since(start),
		})
		return &PaymentResult{ConversationID: conversationID, ErrorCode: err.Error(), ErrorMessage: "request rejected by validation"}
	}
	masked := MaskInitRequest(wire)

	resp, callErr := s.gateway.InitThreeDS(ctx, wire)
	duration := time.Since(start)

	session := &models.PaymentSession{
		ConversationID: conversationID,
		OrderNumber:    orderNumber,
		Amount:         req.Amount,
		Currency:       wire.Currency,
		CreatedAt:      time.Now(),
	}

	if callErr != nil {
		code, msg := classifyCallError(callErr)
		s.audit.Emit("gateway_call", models.SeverityError, conversationID, "initialize",
			map[string]any{"error": callErr.Error()})
		session.Status = models.SessionFailed
		session.FailureCode = &code
		session.FailureMessage = &msg
		s.saveSession(ctx, session)
		s.audit.RecordAttempt(Attempt{
			ConversationID: conversationID,
			OrderNumber:    &orderNumber,
			Operation:      models.OpInitialize,
			Status:         models.RecordError,
			Request:        masked,
			ErrorCode:      code,
			ErrorMessage:   msg,
			Duration:       duration,
		})
		return &PaymentResult{ConversationID: conversationID, Status: models.SessionFailed, ErrorCode: code, ErrorMessage: msg}
	}

	if !iyzico.IsSuccess(resp.Status) {
		// Declared business failure: the gateway's own code and message are
		// preserved verbatim.
		session.Status = models.SessionFailed
		if resp.ErrorCode != "" {
			code := resp.ErrorCode
			session.FailureCode = &code
		}
		if resp.ErrorMessage != "" {
			msg := resp.ErrorMessage
			session.FailureMessage = &msg
		}
		s.saveSession(ctx, session)
		s.audit.RecordAttempt(Attempt{
			ConversationID: conversationID,
			OrderNumber:    &orderNumber,
			Operation:      models.OpInitialize,
			Status:         models.RecordFailure,
			Request:        masked,
			Response:       resp,
			GatewayStatus:  resp.Status,
			ErrorCode:      resp.ErrorCode,
			ErrorMessage:   resp.ErrorMessage,
			Duration:       duration,
		})
		return &PaymentResult{
			ConversationID: conversationID,
			Status:         models.SessionFailed,
			ErrorCode:      resp.ErrorCode,
			ErrorMessage:   resp.ErrorMessage,
		}
	}

	session.Status = models.SessionInitialized
	if resp.PaymentID != "" {
		paymentID := resp.PaymentID
		session.PaymentID = &paymentID
	}
	if resp.ThreeDSHTMLContent != "" {
		html := resp.ThreeDSHTMLContent
		session.RedirectHTML = &html
	}
	s.saveSession(ctx, session)
	s.audit.Emit("redirect", models.SeverityInfo, conversationID, "initialize",
		map[string]any{"paymentId": resp.PaymentID})
	s.audit.RecordAttempt(Attempt{
		ConversationID: conversationID,
		OrderNumber:    &orderNumber,
		PaymentID:      session.PaymentID,
		Operation:      models.OpInitialize,
		Status:         models.RecordSuccess,
		Request:        masked,
		Response:       resp,
		GatewayStatus:  resp.Status,
		Duration:       duration,
	})

	return &PaymentResult{
		Success:        true,
		ConversationID: conversationID,
		PaymentID:      resp.PaymentID,
		Status:         models.SessionInitialized,
		RedirectHTML:   resp.ThreeDSHTMLContent,
	}
}

// MarkRedirected records that the redirect artifact was handed to the
// cardholder's browser.
func (s *PaymentService) MarkRedirected(ctx context.Context, conversationID string) {
	session := s.loadSession(ctx, conversationID)
	if session == nil || !session.Status.CanAdvanceTo(models.SessionRedirected) {
		return
	}
	now := time.Now()
	session.Status = models.SessionRedirected
	session.RedirectedAt = &now
	s.saveSession(ctx, session)
	s.audit.Emit("redirect_delivered", models.SeverityInfo, conversationID, "redirect", nil)
}

// HandleCallback processes the browser's return from the issuing bank. The
// raw payload is persisted for audit, but a browser-delivered callback could
// be forged, so it never confirms success on its own; the server-to-server
// completion call is the authoritative step.
func (s *PaymentService) HandleCallback(ctx context.Context, payload *iyzico.CallbackPayload) *PaymentResult {
	conversationID := payload.ConversationID
	s.audit.Emit("callback_received", models.SeverityInfo, conversationID, "callback", payload)

	session := s.loadSession(ctx, conversationID)
	if session == nil {
		s.audit.Emit("callback_orphan", models.SeverityWarning, conversationID, "callback", nil)
		return &PaymentResult{ConversationID: conversationID, ErrorCode: codeSessionNotFound, ErrorMessage: "no session for callback"}
	}

	if session.Status.IsTerminal() {
		s.audit.Emit("callback_after_terminal", models.SeverityWarning, conversationID, "callback",
			map[string]any{"status": session.Status})
		return &PaymentResult{
			Success:        session.Status == models.SessionCompleted,
			ConversationID: conversationID,
			PaymentID:      derefStr(session.PaymentID),
			Status:         session.Status,
		}
	}

	if payload.MdStatus != "" && payload.MdStatus != "1" {
		s.audit.Emit("callback_md_status", models.SeverityWarning, conversationID, "callback",
			map[string]any{"mdStatus": payload.MdStatus})
	}

	if session.Status.CanAdvanceTo(models.SessionCallbackReceived) {
		now := time.Now()
		session.Status = models.SessionCallbackReceived
		session.LastCallbackAt = &now
		if session.PaymentID == nil && payload.PaymentID != "" {
			paymentID := payload.PaymentID
			session.PaymentID = &paymentID
		}
		s.saveSession(ctx, session)
	}

	return &PaymentResult{
		Success:        true,
		ConversationID: conversationID,
		PaymentID:      derefStr(session.PaymentID),
		Status:         session.Status,
	}
}

// Complete3DS runs the server-to-server completion call for a payment that
// returned from the issuing bank. A declared success moves the session to
// COMPLETED; a declared failure moves it to FAILED with the gateway's error
// preserved. A transport failure leaves the session where it is: the charge
// state is unknown and blind re-issuing risks double processing.
func (s *PaymentService) Complete3DS(ctx context.Context, paymentID string) *PaymentResult {
	start := time.Now()

	if paymentID == "" {
		return &PaymentResult{ErrorCode: utils.ErrMissingPaymentID.Error(), ErrorMessage: "paymentId is required"}
	}

	session, err := s.store.GetSessionByPaymentID(paymentID)
	if err != nil {
		log.Error().Err(err).Str("paymentId", paymentID).Msg("session lookup failed")
	}
	if session == nil {
		s.audit.RecordAttempt(Attempt{
			PaymentID:    &paymentID,
			Operation:    models.OpComplete,
			Status:       models.RecordError,
			ErrorCode:    codeSessionNotFound,
			ErrorMessage: "no session for paymentId",
			Duration:     time.Since(start),
		})
		return &PaymentResult{PaymentID: paymentID, ErrorCode: codeSessionNotFound, ErrorMessage: "no session for paymentId"}
	}
	conversationID := session.ConversationID

	unlock := s.completionLocks.acquire(conversationID)
	defer unlock()

	// Re-read under the lock: a concurrent completion may have settled the
	// session while we waited.
	if fresh := s.loadSession(ctx, conversationID); fresh != nil {
		session = fresh
	}
	if session.Status.IsTerminal() {
		s.audit.Emit("complete_skipped_terminal", models.SeverityInfo, conversationID, "complete",
			map[string]any{"status": session.Status})
		return &PaymentResult{
			Success:        session.Status == models.SessionCompleted,
			ConversationID: conversationID,
			PaymentID:      paymentID,
			Status:         session.Status,
			ErrorCode:      derefStr(session.FailureCode),
			ErrorMessage:   derefStr(session.FailureMessage),
		}
	}

	wire := &iyzico.CompleteThreeDSRequest{
		Locale:         s.locale,
		ConversationID: conversationID,
		PaymentID:      paymentID,
	}
	resp, callErr := s.gateway.CompleteThreeDS(ctx, wire)
	duration := time.Since(start)

	if callErr != nil {
		code, msg := classifyCallError(callErr)
		s.audit.RecordAttempt(Attempt{
			ConversationID: conversationID,
			OrderNumber:    &session.OrderNumber,
			PaymentID:      &paymentID,
			Operation:      models.OpComplete,
			Status:         models.RecordError,
			Request:        wire,
			ErrorCode:      code,
			ErrorMessage:   msg,
			Duration:       duration,
		})
		return &PaymentResult{ConversationID: conversationID, PaymentID: paymentID, Status: session.Status, ErrorCode: code, ErrorMessage: msg}
	}

	if iyzico.IsSuccess(resp.Status) && resp.PaymentStatus == iyzico.PaymentStatusSuccess {
		now := time.Now()
		session.Status = models.SessionCompleted
		session.CompletedAt = &now
		s.saveSession(ctx, session)
		s.audit.RecordAttempt(Attempt{
			ConversationID: conversationID,
			OrderNumber:    &session.OrderNumber,
			PaymentID:      &paymentID,
			Operation:      models.OpComplete,
			Status:         models.RecordSuccess,
			Request:        wire,
			Response:       resp,
			GatewayStatus:  resp.Status,
			Duration:       duration,
		})
		return &PaymentResult{
			Success:        true,
			ConversationID: conversationID,
			PaymentID:      paymentID,
			Status:         models.SessionCompleted,
			PaymentStatus:  resp.PaymentStatus,
		}
	}

	if iyzico.IsSuccess(resp.Status) {
		// 2xx success without an authorized paymentStatus: schema violation.
		s.audit.Emit("protocol", models.SeverityError, conversationID, "complete",
			map[string]any{"paymentStatus": resp.PaymentStatus})
		s.audit.RecordAttempt(Attempt{
			ConversationID: conversationID,
			OrderNumber:    &session.OrderNumber,
			PaymentID:      &paymentID,
			Operation:      models.OpComplete,
			Status:         models.RecordError,
			Request:        wire,
			Response:       resp,
			GatewayStatus:  resp.Status,
			ErrorCode:      codeProtocolError,
			ErrorMessage:   "success response missing authorized paymentStatus",
			Duration:       duration,
		})
		return &PaymentResult{ConversationID: conversationID, PaymentID: paymentID, Status: session.Status, ErrorCode: codeProtocolError, ErrorMessage: "unexpected gateway response"}
	}

	session.Status = models.SessionFailed
	if resp.ErrorCode != "" {
		code := resp.ErrorCode
		session.FailureCode = &code
	}
	if resp.ErrorMessage != "" {
		msg := resp.ErrorMessage
		session.FailureMessage = &msg
	}
	s.saveSession(ctx, session)
	s.audit.RecordAttempt(Attempt{
		ConversationID: conversationID,
		OrderNumber:    &session.OrderNumber,
		PaymentID:      &paymentID,
		Operation:      models.OpComplete,
		Status:         models.RecordFailure,
		Request:        wire,
		Response:       resp,
		GatewayStatus:  resp.Status,
		ErrorCode:      resp.ErrorCode,
		ErrorMessage:   resp.ErrorMessage,
		Duration:       duration,
	})
	return &PaymentResult{
		ConversationID: conversationID,
		PaymentID:      paymentID,
		Status:         models.SessionFailed,
		ErrorCode:      resp.ErrorCode,
		ErrorMessage:   resp.ErrorMessage,
	}
}

// CheckStatus queries the gateway for the current state of a payment. A
// sufficiently long browser-supplied token routes to the token-based
// completion endpoint; otherwise the detail endpoint is queried, where both
// full success and an already-authorized 3DS callback count as terminal
// success.
func (s *PaymentService) CheckStatus(ctx context.Context, paymentID, token, conversationID string) *PaymentResult {
	start := time.Now()

	var session *models.PaymentSession
	if conversationID != "" {
		session = s.loadSession(ctx, conversationID)
	} else if paymentID != "" {
		if found, err := s.store.GetSessionByPaymentID(paymentID); err == nil {
			session = found
		}
	}
	if session != nil {
		conversationID = session.ConversationID
	}
	if conversationID == "" {
		// Query-only call without a known session still needs a correlation id.
		conversationID = uuid.New().String()
	}

	var (
		op      models.OperationType
		wire    any
		resp    *iyzico.PaymentResponse
		callErr error
	)
	if len(token) >= minCompletionTokenLength {
		op = models.OpTokenComplete
		req := &iyzico.RetrieveByTokenRequest{Locale: s.locale, ConversationID: conversationID, Token: token}
		wire = req
		resp, callErr = s.gateway.RetrieveByToken(ctx, req)
	} else {
		op = models.OpDetail
		req := &iyzico.RetrievePaymentRequest{
			Locale:                s.locale,
			ConversationID:        conversationID,
			PaymentID:             paymentID,
			PaymentConversationID: conversationID,
		}
		wire = req
		resp, callErr = s.gateway.RetrievePayment(ctx, req)
	}
	duration := time.Since(start)

	if callErr != nil {
		code, msg := classifyCallError(callErr)
		s.audit.RecordAttempt(Attempt{
			ConversationID: conversationID,
			PaymentID:      optStr(paymentID),
			Operation:      op,
			Status:         models.RecordError,
			Request:        wire,
			ErrorCode:      code,
			ErrorMessage:   msg,
			Duration:       duration,
		})
		return &PaymentResult{ConversationID: conversationID, PaymentID: paymentID, ErrorCode: code, ErrorMessage: msg}
	}

	if !iyzico.IsSuccess(resp.Status) {
		if session != nil && session.Status.CanAdvanceTo(models.SessionFailed) {
			session.Status = models.SessionFailed
			if resp.ErrorCode != "" {
				code := resp.ErrorCode
				session.FailureCode = &code
			}
			if resp.ErrorMessage != "" {
				msg := resp.ErrorMessage
				session.FailureMessage = &msg
			}
			s.saveSession(ctx, session)
		}
		s.audit.RecordAttempt(Attempt{
			ConversationID: conversationID,
			PaymentID:      optStr(paymentID),
			Operation:      op,
			Status:         models.RecordFailure,
			Request:        wire,
			Response:       resp,
			GatewayStatus:  resp.Status,
			ErrorCode:      resp.ErrorCode,
			ErrorMessage:   resp.ErrorMessage,
			Duration:       duration,
		})
		return &PaymentResult{ConversationID: conversationID, PaymentID: paymentID, ErrorCode: resp.ErrorCode, ErrorMessage: resp.ErrorMessage}
	}

	if iyzico.IsTerminalPaymentSuccess(resp.PaymentStatus) {
		if session != nil && session.Status.CanAdvanceTo(models.SessionCompleted) {
			now := time.Now()
			session.Status = models.SessionCompleted
			session.CompletedAt = &now
			if session.PaymentID == nil && resp.PaymentID != "" {
				pid := resp.PaymentID
				session.PaymentID = &pid
			}
			s.saveSession(ctx, session)
		}
		s.audit.RecordAttempt(Attempt{
			ConversationID: conversationID,
			PaymentID:      optStr(paymentID),
			Operation:      op,
			Status:         models.RecordSuccess,
			Request:        wire,
			Response:       resp,
			GatewayStatus:  resp.Status,
			Duration:       duration,
		})
		return &PaymentResult{
			Success:        true,
			ConversationID: conversationID,
			PaymentID:      firstNonEmpty(resp.PaymentID, paymentID),
			Status:         models.SessionCompleted,
			PaymentStatus:  resp.PaymentStatus,
		}
	}

	// Query succeeded but the payment is not settled yet.
	s.audit.RecordAttempt(Attempt{
		ConversationID: conversationID,
		PaymentID:      optStr(paymentID),
		Operation:      op,
		Status:         models.RecordFailure,
		Request:        wire,
		Response:       resp,
		GatewayStatus:  resp.Status,
		ErrorCode:      codeNotCompleted,
		ErrorMessage:   "payment not in a terminal success state",
		Duration:       duration,
	})
	return &PaymentResult{
		ConversationID: conversationID,
		PaymentID:      paymentID,
		PaymentStatus:  resp.PaymentStatus,
		ErrorCode:      codeNotCompleted,
		ErrorMessage:   "payment not in a terminal success state",
	}
}

// GetSession exposes session lookup for handlers and the sweeper.
func (s *PaymentService) GetSession(ctx context.Context, conversationID string) *models.PaymentSession {
	return s.loadSession(ctx, conversationID)
}

// loadSession reads a session, cache first, store as fallback.
func (s *PaymentService) loadSession(ctx context.Context, conversationID string) *models.PaymentSession {
	if s.cache != nil {
		if session, err := s.cache.Get(ctx, conversationID); err == nil && session != nil {
			return session
		}
	}
	session, err := s.store.GetSessionByConversationID(conversationID)
	if err != nil {
		log.Error().Err(err).Str("conversationId", conversationID).Msg("session lookup failed")
		return nil
	}
	return session
}

// saveSession upserts the session in the store and refreshes the cache.
// Persistence failures are logged, not surfaced: audit completeness is
// best-effort against a broken store, the payment outcome is already decided.
func (s *PaymentService) saveSession(ctx context.Context, session *models.PaymentSession) {
	session.UpdatedAt = time.Now()
	if err := s.store.UpsertSession(session); err != nil {
		log.Error().Err(err).Str("conversationId", session.ConversationID).Msg("failed to upsert session")
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, session); err != nil {
			log.Warn().Err(err).Str("conversationId", session.ConversationID).Msg("failed to cache session")
		}
	}
}

// classifyCallError maps gateway client errors to result codes.
func classifyCallError(err error) (code, message string) {
	switch e := err.(type) {
	case *iyzico.TransportError:
		return codeTransportError, e.Error()
	case *iyzico.ProtocolError:
		return codeProtocolError, e.Error()
	default:
		if errors.Is(err, iyzico.ErrEmptySecretKey) {
			return codeSigningError, err.Error()
		}
		return codeTransportError, err.Error()
	}
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// conversationLocks is a keyed mutex set guarding per-conversation critical
// sections. Entries are reference counted and removed once released.
type conversationLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the lock for key is held and returns the release func.
func (l *conversationLocks) acquire(key string) func() {
	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}
