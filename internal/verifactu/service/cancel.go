package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/smallbiznis/ancloraflow/internal/observability/logger"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const cancellationMessage = "Invoice cancelled in Verifactu"

// CancelInvoice cancels a registered invoice. The invoice keeps its chain position.
func (s *Service) CancelInvoice(ctx context.Context, invoiceID, userID uuid.UUID, reason string) (result domain.CancellationResult, err error) {
	if err := validateIDs(invoiceID, userID); err != nil {
		return domain.CancellationResult{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.CancellationResult{}, domain.ErrInvalidReason
	}

	ctx, span := s.startSpan(ctx, "verifactu.CancelInvoice", invoiceID, userID)
	defer func() { endSpan(span, err) }()

	var payload *domain.CancellationPayload
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		payload, txErr = s.cancelTx(ctx, tx, invoiceID, userID, reason)
		return txErr
	})
	s.metrics.ObserveCancellation(err)

	log := logger.WithContext(ctx, s.log).With(
		zap.String("invoice_id", invoiceID.String()),
		zap.String("user_id", userID.String()),
	)
	if err != nil {
		log.Warn("verifactu cancellation failed", zap.Error(err))
		var request any
		if payload != nil {
			request = payload
		}
		s.recordFailure(ctx, domain.LogActionCancel, invoiceID, userID, request, err, false)
		return domain.CancellationResult{}, err
	}

	log.Info("verifactu cancellation succeeded")
	return domain.CancellationResult{Success: true, Message: cancellationMessage}, nil
}

func (s *Service) cancelTx(ctx context.Context, tx *gorm.DB, invoiceID, userID uuid.UUID, reason string) (*domain.CancellationPayload, error) {
	inv, err := s.repo.FindInvoice(ctx, tx, invoiceID, userID, true)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrInvoiceNotFound
	}
	if inv.VerifactuStatus != domain.StatusRegistered {
		return nil, domain.ErrNotRegistered
	}

	cfg, err := s.repo.FindConfig(ctx, tx, userID, false)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, domain.ErrConfigNotEnabled
	}

	payload := domain.CancellationPayload{
		ExternalID:    deref(inv.VerifactuID),
		InvoiceNumber: inv.InvoiceNumber,
		Reason:        reason,
	}
	receipt, err := s.authorities.ForConfig(*cfg).SubmitCancellation(ctx, payload)
	if err != nil {
		return &payload, err
	}

	now := s.clock.Now()
	if err := s.repo.MarkCancelled(ctx, tx, inv.ID, userID, now); err != nil {
		return &payload, err
	}

	entry := s.newLog(inv.ID, userID, domain.LogActionCancel, domain.LogStatusSuccess, payload, receipt, now)
	if err := s.repo.InsertLog(ctx, tx, entry); err != nil {
		return &payload, err
	}
	return &payload, nil
}
