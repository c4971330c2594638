package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/masking"
	dbpkg "github.com/smallbiznis/ancloraflow/pkg/db"
	"github.com/smallbiznis/ancloraflow/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) GetConfig(ctx context.Context, userID uuid.UUID) (domain.Config, error) {
	if userID == uuid.Nil {
		return domain.Config{}, domain.ErrInvalidUser
	}

	cfg, err := s.repo.FindConfig(ctx, s.db, userID, false)
	if err != nil {
		return domain.Config{}, err
	}
	if cfg == nil {
		return domain.Config{}, domain.ErrConfigNotFound
	}
	return *cfg, nil
}

// UpdateConfig applies the allow-listed settings, creating the row on first use.
// Chain head columns are never writable from here.
func (s *Service) UpdateConfig(ctx context.Context, userID uuid.UUID, update domain.ConfigUpdate) (domain.Config, error) {
	if userID == uuid.Nil {
		return domain.Config{}, domain.ErrInvalidUser
	}
	if update.IsEmpty() {
		return domain.Config{}, domain.ErrNoUpdatableFields
	}

	var updated domain.Config
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		existing, err := s.repo.FindConfig(ctx, tx, userID, true)
		if err != nil {
			return err
		}

		if existing == nil {
			cfg := &domain.Config{
				UserID:    userID,
				TestMode:  true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			applyConfigUpdate(cfg, update)
			if err := s.repo.InsertConfig(ctx, tx, cfg); err != nil {
				return err
			}
		} else {
			fields := configUpdateFields(update)
			fields["updated_at"] = now
			if err := s.repo.UpdateConfig(ctx, tx, userID, fields); err != nil {
				return err
			}
		}

		cfg, err := s.repo.FindConfig(ctx, tx, userID, false)
		if err != nil {
			return err
		}
		if cfg == nil {
			return domain.ErrConfigNotFound
		}
		updated = *cfg
		return nil
	})
	if err != nil {
		if dbpkg.IsDuplicateKeyErr(err) {
			// Lost the race to create the row; apply as an update instead.
			return s.UpdateConfig(ctx, userID, update)
		}
		return domain.Config{}, err
	}

	changes, maskErr := masking.MaskJSON(update)
	if maskErr != nil {
		changes = nil
	}
	s.log.Info("verifactu config updated",
		zap.String("user_id", userID.String()),
		zap.ByteString("changes", changes),
	)
	return updated, nil
}

func applyConfigUpdate(cfg *domain.Config, update domain.ConfigUpdate) {
	if update.Enabled != nil {
		cfg.Enabled = *update.Enabled
	}
	if update.AutoRegister != nil {
		cfg.AutoRegister = *update.AutoRegister
	}
	if update.TestMode != nil {
		cfg.TestMode = *update.TestMode
	}
	if update.CertificatePath != nil {
		cfg.CertificatePath = stringPtr(*update.CertificatePath)
	}
	if update.CertificatePassword != nil {
		cfg.CertificatePassword = stringPtr(*update.CertificatePassword)
	}
	if update.SoftwareNIF != nil {
		cfg.SoftwareNIF = stringPtr(*update.SoftwareNIF)
	}
	if update.SoftwareName != nil {
		cfg.SoftwareName = stringPtr(*update.SoftwareName)
	}
	if update.SoftwareVersion != nil {
		cfg.SoftwareVersion = stringPtr(*update.SoftwareVersion)
	}
	if update.SoftwareLicense != nil {
		cfg.SoftwareLicense = stringPtr(*update.SoftwareLicense)
	}
}

func configUpdateFields(update domain.ConfigUpdate) map[string]any {
	fields := map[string]any{}
	if update.Enabled != nil {
		fields["enabled"] = *update.Enabled
	}
	if update.AutoRegister != nil {
		fields["auto_register"] = *update.AutoRegister
	}
	if update.TestMode != nil {
		fields["test_mode"] = *update.TestMode
	}
	if update.CertificatePath != nil {
		fields["certificate_path"] = *update.CertificatePath
	}
	if update.CertificatePassword != nil {
		fields["certificate_password"] = *update.CertificatePassword
	}
	if update.SoftwareNIF != nil {
		fields["software_nif"] = *update.SoftwareNIF
	}
	if update.SoftwareName != nil {
		fields["software_name"] = *update.SoftwareName
	}
	if update.SoftwareVersion != nil {
		fields["software_version"] = *update.SoftwareVersion
	}
	if update.SoftwareLicense != nil {
		fields["software_license"] = *update.SoftwareLicense
	}
	return fields
}

func (s *Service) GetLogs(ctx context.Context, userID uuid.UUID, req domain.ListLogsRequest) (domain.ListLogsResponse, error) {
	if userID == uuid.Nil {
		return domain.ListLogsResponse{}, domain.ErrInvalidUser
	}

	settings := s.settings.Get()
	limit := req.PageSize
	if limit <= 0 {
		limit = settings.LogsDefaultLimit
	}
	if limit > settings.LogsMaxLimit {
		limit = settings.LogsMaxLimit
	}

	cursor, err := decodeLogCursor(req.PageToken)
	if err != nil {
		return domain.ListLogsResponse{}, err
	}

	items, err := s.repo.ListLogs(ctx, s.db, domain.LogFilter{
		UserID:    userID,
		InvoiceID: req.InvoiceID,
		Action:    strings.TrimSpace(req.Action),
		Cursor:    cursor,
		Limit:     limit,
	})
	if err != nil {
		return domain.ListLogsResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, limit, func(l *domain.Log) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        l.ID.String(),
			CreatedAt: l.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	logs := make([]domain.Log, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}

	resp := domain.ListLogsResponse{Logs: logs}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func decodeLogCursor(token string) (*domain.LogCursor, error) {
	cursor, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	if cursor == nil {
		return nil, nil
	}

	id, err := strconv.ParseInt(cursor.ID, 10, 64)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	return &domain.LogCursor{ID: id, CreatedAt: createdAt}, nil
}

func (s *Service) GetInvoiceStatus(ctx context.Context, invoiceID, userID uuid.UUID) (domain.InvoiceStatusView, error) {
	if err := validateIDs(invoiceID, userID); err != nil {
		return domain.InvoiceStatusView{}, err
	}

	inv, err := s.repo.FindInvoice(ctx, s.db, invoiceID, userID, false)
	if err != nil {
		return domain.InvoiceStatusView{}, err
	}
	if inv == nil {
		return domain.InvoiceStatusView{}, domain.ErrInvoiceNotFound
	}

	return domain.InvoiceStatusView{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Status:        inv.VerifactuStatus,
		ExternalID:    inv.VerifactuID,
		CSV:           inv.VerifactuCSV,
		QRCode:        inv.VerifactuQRCode,
		URL:           inv.VerifactuURL,
		Hash:          inv.VerifactuHash,
		ChainIndex:    inv.VerifactuChainIndex,
		RegisteredAt:  inv.VerifactuRegisteredAt,
		ErrorMessage:  inv.VerifactuErrorMessage,
	}, nil
}

func (s *Service) GetStatistics(ctx context.Context, userID uuid.UUID) (domain.Statistics, error) {
	if userID == uuid.Nil {
		return domain.Statistics{}, domain.ErrInvalidUser
	}
	return s.repo.Statistics(ctx, s.db, userID)
}

func (s *Service) ListPending(ctx context.Context, userID uuid.UUID) ([]domain.Invoice, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrInvalidUser
	}
	return s.repo.ListPending(ctx, s.db, userID)
}

func (s *Service) ListRegistered(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Invoice, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrInvalidUser
	}

	settings := s.settings.Get()
	if limit <= 0 {
		limit = settings.RegisteredDefaultLimit
	}
	if limit > settings.LogsMaxLimit {
		limit = settings.LogsMaxLimit
	}
	return s.repo.ListRegistered(ctx, s.db, userID, limit)
}

// RenderReceipt renders the registration receipt of a chained invoice.
func (s *Service) RenderReceipt(ctx context.Context, invoiceID, userID uuid.UUID) (domain.Receipt, error) {
	if err := validateIDs(invoiceID, userID); err != nil {
		return domain.Receipt{}, err
	}
	if s.receipts == nil {
		return domain.Receipt{}, domain.ErrReceiptUnavailable
	}

	inv, err := s.repo.FindInvoice(ctx, s.db, invoiceID, userID, false)
	if err != nil {
		return domain.Receipt{}, err
	}
	if inv == nil {
		return domain.Receipt{}, domain.ErrInvoiceNotFound
	}
	if !inv.IsChained() {
		return domain.Receipt{}, domain.ErrReceiptUnavailable
	}
	if inv.VerifactuStatus != domain.StatusRegistered && inv.VerifactuStatus != domain.StatusCancelled {
		return domain.Receipt{}, domain.ErrReceiptUnavailable
	}

	return s.receipts.Render(ctx, *inv)
}
