package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/modaline/store-api/internal/models"
	"github.com/modaline/store-api/internal/repository"
	"github.com/modaline/store-api/internal/service"
)

const sweepBatchSize = 50

// StatusSweepWorker periodically re-checks sessions stuck between redirect
// and completion by querying the gateway's read-only detail endpoint. The
// detail query never re-issues a charge, so sweeping cannot double-process
// a payment.
type StatusSweepWorker struct {
	paymentRepo *repository.PaymentRepository
	payments    *service.PaymentService
	interval    time.Duration
	staleAfter  time.Duration // how long a session must sit still before re-checking
	maxAge      time.Duration // sessions older than this are left to manual review
}

// NewStatusSweepWorker constructs a StatusSweepWorker.
func NewStatusSweepWorker(
	paymentRepo *repository.PaymentRepository,
	payments *service.PaymentService,
	interval time.Duration,
	staleAfter time.Duration,
	maxAge time.Duration,
) *StatusSweepWorker {
	return &StatusSweepWorker{
		paymentRepo: paymentRepo,
		payments:    payments,
		interval:    interval,
		staleAfter:  staleAfter,
		maxAge:      maxAge,
	}
}

// Start begins the periodic sweep loop until context is canceled.
func (w *StatusSweepWorker) Start(ctx context.Context) {
	log.Info().
		Dur("interval", w.interval).
		Dur("stale_after", w.staleAfter).
		Dur("max_age", w.maxAge).
		Msg("Starting status sweep worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Status sweep worker stopped")
			return
		}
	}
}

func (w *StatusSweepWorker) run(ctx context.Context) {
	stale, err := w.paymentRepo.ListStaleSessions(w.staleAfter, w.maxAge, sweepBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list stale payment sessions")
		return
	}
	if len(stale) == 0 {
		return
	}

	log.Info().Int("count", len(stale)).Msg("Re-checking stale payment sessions")

	for i := range stale {
		select {
		case <-ctx.Done():
			return
		default:
			w.checkSession(ctx, &stale[i])
		}
	}
}

func (w *StatusSweepWorker) checkSession(ctx context.Context, session *models.PaymentSession) {
	paymentID := ""
	if session.PaymentID != nil {
		paymentID = *session.PaymentID
	}
	if paymentID == "" {
		log.Debug().
			Str("conversation_id", session.ConversationID).
			Msg("Stale session has no payment id, skipping")
		return
	}

	result := w.payments.CheckStatus(ctx, paymentID, "", session.ConversationID)

	log.Info().
		Str("conversation_id", session.ConversationID).
		Str("payment_id", paymentID).
		Bool("settled", result.Success).
		Str("payment_status", result.PaymentStatus).
		Str("error_code", result.ErrorCode).
		Msg("Stale session re-checked")
}
