package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/smallbiznis/ancloraflow/internal/observability/logger"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/chain"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
	"go.uber.org/zap"
)

// VerifyChain walks the user's chain in index order and checks every backward link.
// Without Strict a row whose own fields were edited in place still verifies.
func (s *Service) VerifyChain(ctx context.Context, userID uuid.UUID, opts domain.VerifyOptions) (report domain.ChainVerification, err error) {
	if userID == uuid.Nil {
		return domain.ChainVerification{}, domain.ErrInvalidUser
	}

	ctx, span := s.startSpan(ctx, "verifactu.VerifyChain", uuid.Nil, userID)
	defer func() { endSpan(span, err) }()

	items, err := s.repo.ListChain(ctx, s.db, userID)
	if err != nil {
		return domain.ChainVerification{}, err
	}

	report = domain.ChainVerification{
		Valid:         true,
		Strict:        opts.Strict,
		TotalInvoices: len(items),
		Details:       make([]domain.ChainDetail, 0, len(items)),
	}

	expected := chain.GenesisHash(userID)
	for _, inv := range items {
		detail := domain.ChainDetail{
			InvoiceID:            inv.ID,
			InvoiceNumber:        inv.InvoiceNumber,
			ChainIndex:           *inv.VerifactuChainIndex,
			Status:               inv.VerifactuStatus,
			Hash:                 deref(inv.VerifactuHash),
			PreviousHash:         deref(inv.VerifactuPreviousHash),
			ExpectedPreviousHash: string(expected),
		}
		detail.Valid = detail.PreviousHash == detail.ExpectedPreviousHash

		if opts.Strict {
			recomputed, hashErr := chain.InvoiceHash(chain.InputFromInvoice(inv), chain.Hash(detail.PreviousHash), detail.ChainIndex)
			hashValid := hashErr == nil && string(recomputed) == detail.Hash
			detail.HashValid = &hashValid
			detail.Valid = detail.Valid && hashValid
		}

		if !detail.Valid {
			report.Valid = false
		}
		report.Details = append(report.Details, detail)
		expected = chain.Hash(detail.Hash)
	}

	s.metrics.ObserveChainVerification(report.Valid, report.TotalInvoices)
	if !report.Valid {
		logger.WithContext(ctx, s.log).Warn("verifactu chain broken",
			zap.String("user_id", userID.String()),
			zap.Int("total_invoices", report.TotalInvoices),
			zap.Bool("strict", opts.Strict),
		)
	}
	return report, nil
}
