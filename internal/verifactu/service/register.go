package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/ancloraflow/internal/config"
	"github.com/smallbiznis/ancloraflow/internal/observability/logger"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/chain"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultOperationType      = "national"
	defaultOperationCode      = "01"
	defaultDestinationCountry = "ES"
	defaultGoodsOrServices    = "services"
)

// CheckRegistrable rejects invoices whose business status forbids registration.
func (s *Service) CheckRegistrable(ctx context.Context, invoiceID, userID uuid.UUID) error {
	if err := validateIDs(invoiceID, userID); err != nil {
		return err
	}

	inv, err := s.repo.FindInvoice(ctx, s.db, invoiceID, userID, false)
	if err != nil {
		return err
	}
	if inv == nil {
		return domain.ErrInvoiceNotFound
	}

	switch inv.Status {
	case domain.InvoiceStatusDraft:
		return domain.ErrInvoiceDraft
	case domain.InvoiceStatusCancelled:
		return domain.ErrInvoiceCancelled
	}
	return nil
}

func (s *Service) RegisterInvoice(ctx context.Context, invoiceID, userID uuid.UUID) (result domain.RegistrationResult, err error) {
	if err := validateIDs(invoiceID, userID); err != nil {
		return domain.RegistrationResult{}, err
	}

	ctx, span := s.startSpan(ctx, "verifactu.RegisterInvoice", invoiceID, userID)
	defer func() { endSpan(span, err) }()

	started := time.Now()
	settings := s.settings.Get()

	var payload *domain.RegistrationPayload
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, payload, txErr = s.registerTx(ctx, tx, invoiceID, userID, settings)
		return txErr
	})
	s.metrics.ObserveRegistration(time.Since(started), err)

	log := logger.WithContext(ctx, s.log).With(
		zap.String("invoice_id", invoiceID.String()),
		zap.String("user_id", userID.String()),
	)
	if err != nil {
		log.Warn("verifactu registration failed", zap.Error(err))
		var request any
		if payload != nil {
			request = payload
		}
		s.recordFailure(ctx, domain.LogActionRegister, invoiceID, userID, request, err, !isStateRejection(err))
		return domain.RegistrationResult{}, err
	}

	log.Info("verifactu registration succeeded",
		zap.Int64("chain_index", result.ChainIndex),
		zap.String("verifactu_id", result.ExternalID),
	)
	return result, nil
}

func (s *Service) registerTx(ctx context.Context, tx *gorm.DB, invoiceID, userID uuid.UUID, settings config.VerifactuSettings) (domain.RegistrationResult, *domain.RegistrationPayload, error) {
	cfg, err := s.repo.FindConfig(ctx, tx, userID, true)
	if err != nil {
		return domain.RegistrationResult{}, nil, err
	}
	if cfg == nil || !cfg.Enabled {
		return domain.RegistrationResult{}, nil, domain.ErrConfigNotEnabled
	}

	inv, err := s.repo.FindInvoice(ctx, tx, invoiceID, userID, true)
	if err != nil {
		return domain.RegistrationResult{}, nil, err
	}
	if inv == nil {
		return domain.RegistrationResult{}, nil, domain.ErrInvoiceNotFound
	}
	switch {
	case inv.VerifactuStatus == domain.StatusRegistered:
		return domain.RegistrationResult{}, nil, domain.ErrAlreadyRegistered
	case inv.VerifactuStatus == domain.StatusCancelled:
		return domain.RegistrationResult{}, nil, domain.ErrInvoiceCancelled
	case inv.VerifactuChainIndex != nil:
		return domain.RegistrationResult{}, nil, domain.ErrAlreadyRegistered
	}

	previousHash := chain.GenesisHash(userID)
	if cfg.LastChainHash != nil && *cfg.LastChainHash != "" {
		previousHash = chain.Hash(*cfg.LastChainHash)
	}
	chainIndex := cfg.LastChainIndex + 1

	hash, err := chain.InvoiceHash(chain.InputFromInvoice(*inv), previousHash, chainIndex)
	if err != nil {
		return domain.RegistrationResult{}, nil, err
	}

	auth := s.authorities.ForConfig(*cfg)
	signature, err := auth.Sign(ctx, *inv)
	if err != nil {
		return domain.RegistrationResult{}, nil, err
	}
	qrCode, err := chain.DeriveQR(settings.VerificationBaseURL, hash)
	if err != nil {
		return domain.RegistrationResult{}, nil, err
	}
	csv := chain.DeriveCSV(hash)

	payload := buildRegistrationPayload(*inv, *cfg, settings, hash, previousHash, chainIndex, signature)
	receipt, err := auth.SubmitRegistration(ctx, payload)
	if err != nil {
		return domain.RegistrationResult{}, &payload, err
	}

	now := s.clock.Now()
	registeredAt := receipt.Timestamp
	if registeredAt.IsZero() {
		registeredAt = now
	}
	status := receipt.Status
	if status == "" {
		status = domain.StatusRegistered
	}

	marked, err := s.repo.MarkRegistered(ctx, tx, domain.InvoiceRegistration{
		InvoiceID:       inv.ID,
		UserID:          userID,
		Status:          status,
		ExternalID:      receipt.ExternalID,
		CSV:             csv,
		QRCode:          qrCode,
		Signature:       signature,
		Hash:            string(hash),
		PreviousHash:    string(previousHash),
		ChainIndex:      chainIndex,
		RegisteredAt:    registeredAt,
		URL:             receipt.URL,
		SoftwareNIF:     payload.SoftwareNIF,
		SoftwareName:    payload.SoftwareName,
		SoftwareVersion: payload.SoftwareVersion,
	})
	if err != nil {
		return domain.RegistrationResult{}, &payload, err
	}
	if !marked {
		return domain.RegistrationResult{}, &payload, domain.ErrAlreadyRegistered
	}

	advanced, err := s.repo.AdvanceChain(ctx, tx, userID, cfg.LastChainIndex, chainIndex, string(hash), now)
	if err != nil {
		return domain.RegistrationResult{}, &payload, err
	}
	if !advanced {
		return domain.RegistrationResult{}, &payload, domain.ErrChainConflict
	}

	entry := s.newLog(inv.ID, userID, domain.LogActionRegister, domain.LogStatusSuccess, payload, receipt, now)
	if err := s.repo.InsertLog(ctx, tx, entry); err != nil {
		return domain.RegistrationResult{}, &payload, err
	}

	return domain.RegistrationResult{
		Success:    true,
		ExternalID: receipt.ExternalID,
		CSV:        csv,
		QRCode:     qrCode,
		URL:        receipt.URL,
		Hash:       string(hash),
		ChainIndex: chainIndex,
	}, &payload, nil
}

func buildRegistrationPayload(inv domain.Invoice, cfg domain.Config, settings config.VerifactuSettings, hash, previousHash chain.Hash, chainIndex int64, signature string) domain.RegistrationPayload {
	return domain.RegistrationPayload{
		InvoiceID:          inv.ID,
		InvoiceNumber:      inv.InvoiceNumber,
		IssueDate:          chain.FormatDate(inv.IssueDate),
		Total:              inv.Total,
		Hash:               string(hash),
		PreviousHash:       string(previousHash),
		ChainIndex:         chainIndex,
		Signature:          signature,
		SoftwareNIF:        orDefault(cfg.SoftwareNIF, settings.DefaultSoftwareNIF),
		SoftwareName:       orDefault(cfg.SoftwareName, settings.DefaultSoftwareName),
		SoftwareVersion:    orDefault(cfg.SoftwareVersion, settings.DefaultSoftwareVersion),
		OperationType:      orDefault(inv.OperationType, defaultOperationType),
		OperationCode:      orDefault(inv.VerifactuOperationCode, defaultOperationCode),
		VatExemptionReason: inv.VatExemptionReason,
		ReverseCharge:      inv.ReverseCharge,
		ClientVatNumber:    inv.ClientVatNumber,
		DestinationCountry: orDefault(inv.DestinationCountryCode, defaultDestinationCountry),
		GoodsOrServices:    orDefault(inv.GoodsOrServices, defaultGoodsOrServices),
	}
}

// BatchRegister registers each invoice in order. One failure never stops the rest.
func (s *Service) BatchRegister(ctx context.Context, invoiceIDs []uuid.UUID, userID uuid.UUID) domain.BatchResult {
	batch := domain.BatchResult{
		Total:   len(invoiceIDs),
		Results: make([]domain.BatchItemResult, 0, len(invoiceIDs)),
	}

	for _, invoiceID := range invoiceIDs {
		item := domain.BatchItemResult{InvoiceID: invoiceID}

		result, err := s.RegisterInvoice(ctx, invoiceID, userID)
		if err != nil {
			item.Error = err.Error()
			batch.Failed++
		} else {
			item.Success = true
			item.Result = &result
			batch.Successful++
		}
		batch.Results = append(batch.Results, item)
	}

	return batch
}

// RegisterPending batch-registers every pending invoice when auto registration is on.
func (s *Service) RegisterPending(ctx context.Context, userID uuid.UUID) (domain.BatchResult, error) {
	if userID == uuid.Nil {
		return domain.BatchResult{}, domain.ErrInvalidUser
	}

	cfg, err := s.repo.FindConfig(ctx, s.db, userID, false)
	if err != nil {
		return domain.BatchResult{}, err
	}
	if cfg == nil || !cfg.Enabled {
		return domain.BatchResult{}, domain.ErrConfigNotEnabled
	}
	if !cfg.AutoRegister {
		return domain.BatchResult{}, domain.ErrAutoRegisterOff
	}

	pending, err := s.repo.ListPending(ctx, s.db, userID)
	if err != nil {
		return domain.BatchResult{}, err
	}

	ids := make([]uuid.UUID, 0, len(pending))
	for _, inv := range pending {
		ids = append(ids, inv.ID)
	}
	return s.BatchRegister(ctx, ids, userID), nil
}
