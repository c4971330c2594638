package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
	dbpkg "github.com/smallbiznis/ancloraflow/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindConfig(ctx context.Context, db *gorm.DB, userID uuid.UUID, forUpdate bool) (*domain.Config, error) {
	query := `SELECT * FROM verifactu_config WHERE user_id = ?`
	if forUpdate {
		query += dbpkg.LockClause(db)
	}

	var cfg domain.Config
	if err := db.WithContext(ctx).Raw(query, userID).Scan(&cfg).Error; err != nil {
		return nil, err
	}
	if cfg.UserID == uuid.Nil {
		return nil, nil
	}
	return &cfg, nil
}

func (r *repo) InsertConfig(ctx context.Context, db *gorm.DB, cfg *domain.Config) error {
	if cfg == nil {
		return nil
	}
	return db.WithContext(ctx).Create(cfg).Error
}

func (r *repo) UpdateConfig(ctx context.Context, db *gorm.DB, userID uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.Config{}).
		Where("user_id = ?", userID).
		Updates(fields).Error
}

// AdvanceChain moves the chain head only if nobody advanced it since expectedIndex was read.
func (r *repo) AdvanceChain(ctx context.Context, db *gorm.DB, userID uuid.UUID, expectedIndex, newIndex int64, newHash string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE verifactu_config
		SET last_chain_index = ?, last_chain_hash = ?, updated_at = ?
		WHERE user_id = ? AND last_chain_index = ?`,
		newIndex,
		newHash,
		now,
		userID,
		expectedIndex,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) FindInvoice(ctx context.Context, db *gorm.DB, invoiceID, userID uuid.UUID, forUpdate bool) (*domain.Invoice, error) {
	query := `SELECT * FROM invoices WHERE id = ? AND user_id = ?`
	if forUpdate {
		query += dbpkg.LockClause(db)
	}

	var inv domain.Invoice
	if err := db.WithContext(ctx).Raw(query, invoiceID, userID).Scan(&inv).Error; err != nil {
		return nil, err
	}
	if inv.ID == uuid.Nil {
		return nil, nil
	}
	return &inv, nil
}

// MarkRegistered writes the registration columns. Chain position is only ever written here,
// and only while it is still unset.
func (r *repo) MarkRegistered(ctx context.Context, db *gorm.DB, reg domain.InvoiceRegistration) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE invoices SET
			verifactu_enabled = ?,
			verifactu_status = ?,
			verifactu_id = ?,
			verifactu_csv = ?,
			verifactu_qr_code = ?,
			verifactu_signature = ?,
			verifactu_hash = ?,
			verifactu_previous_hash = ?,
			verifactu_chain_index = ?,
			verifactu_registered_at = ?,
			verifactu_url = ?,
			verifactu_software_nif = ?,
			verifactu_software_name = ?,
			verifactu_software_version = ?,
			verifactu_error_message = NULL,
			updated_at = ?
		WHERE id = ? AND user_id = ? AND verifactu_chain_index IS NULL`,
		true,
		reg.Status,
		reg.ExternalID,
		reg.CSV,
		reg.QRCode,
		reg.Signature,
		reg.Hash,
		reg.PreviousHash,
		reg.ChainIndex,
		reg.RegisteredAt,
		reg.URL,
		reg.SoftwareNIF,
		reg.SoftwareName,
		reg.SoftwareVersion,
		reg.RegisteredAt,
		reg.InvoiceID,
		reg.UserID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) MarkCancelled(ctx context.Context, db *gorm.DB, invoiceID, userID uuid.UUID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices
		SET verifactu_status = ?, status = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND verifactu_status = ?`,
		domain.StatusCancelled,
		domain.InvoiceStatusCancelled,
		now,
		invoiceID,
		userID,
		domain.StatusRegistered,
	).Error
}

// AnnotateError records a failed attempt. Registered and cancelled invoices are never downgraded.
func (r *repo) AnnotateError(ctx context.Context, db *gorm.DB, invoiceID, userID uuid.UUID, message string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices
		SET verifactu_status = ?, verifactu_error_message = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND verifactu_status NOT IN (?, ?)`,
		domain.StatusError,
		message,
		now,
		invoiceID,
		userID,
		domain.StatusRegistered,
		domain.StatusCancelled,
	).Error
}

func (r *repo) ListChain(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]domain.Invoice, error) {
	var items []domain.Invoice
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("verifactu_chain_index IS NOT NULL").
		Where("verifactu_status IN ?", []domain.VerifactuStatus{domain.StatusRegistered, domain.StatusCancelled}).
		Order("verifactu_chain_index ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListPending(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]domain.Invoice, error) {
	var items []domain.Invoice
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("verifactu_enabled = ?", true).
		Where("verifactu_status = ?", domain.StatusPending).
		Where("status NOT IN ?", []domain.InvoiceStatus{domain.InvoiceStatusDraft, domain.InvoiceStatusCancelled}).
		Order("issue_date ASC, invoice_number ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListRegistered(ctx context.Context, db *gorm.DB, userID uuid.UUID, limit int) ([]domain.Invoice, error) {
	var items []domain.Invoice
	stmt := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("verifactu_status = ?", domain.StatusRegistered).
		Order("verifactu_chain_index DESC")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

type statisticsRow struct {
	TotalEnabled    int64
	TotalRegistered int64
	TotalPending    int64
	TotalErrors     int64
	TotalCancelled  int64
	LastChainIndex  int64
}

type lastRegistrationRow struct {
	VerifactuRegisteredAt *time.Time
}

func (r *repo) Statistics(ctx context.Context, db *gorm.DB, userID uuid.UUID) (domain.Statistics, error) {
	var row statisticsRow
	err := db.WithContext(ctx).Raw(
		`SELECT
			COALESCE(SUM(CASE WHEN verifactu_enabled = ? THEN 1 ELSE 0 END), 0) AS total_enabled,
			COALESCE(SUM(CASE WHEN verifactu_status = ? THEN 1 ELSE 0 END), 0) AS total_registered,
			COALESCE(SUM(CASE WHEN verifactu_status = ? THEN 1 ELSE 0 END), 0) AS total_pending,
			COALESCE(SUM(CASE WHEN verifactu_status = ? THEN 1 ELSE 0 END), 0) AS total_errors,
			COALESCE(SUM(CASE WHEN verifactu_status = ? THEN 1 ELSE 0 END), 0) AS total_cancelled,
			COALESCE(MAX(verifactu_chain_index), 0) AS last_chain_index
		FROM invoices
		WHERE user_id = ?`,
		true,
		domain.StatusRegistered,
		domain.StatusPending,
		domain.StatusError,
		domain.StatusCancelled,
		userID,
	).Scan(&row).Error
	if err != nil {
		return domain.Statistics{}, err
	}

	var last lastRegistrationRow
	err = db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Select("verifactu_registered_at").
		Where("user_id = ? AND verifactu_registered_at IS NOT NULL", userID).
		Order("verifactu_registered_at DESC").
		Limit(1).
		Scan(&last).Error
	if err != nil {
		return domain.Statistics{}, err
	}

	return domain.Statistics{
		TotalEnabled:     row.TotalEnabled,
		TotalRegistered:  row.TotalRegistered,
		TotalPending:     row.TotalPending,
		TotalErrors:      row.TotalErrors,
		TotalCancelled:   row.TotalCancelled,
		LastChainIndex:   row.LastChainIndex,
		LastRegistration: last.VerifactuRegisteredAt,
	}, nil
}

func (r *repo) InsertLog(ctx context.Context, db *gorm.DB, entry *domain.Log) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) ListLogs(ctx context.Context, db *gorm.DB, filter domain.LogFilter) ([]*domain.Log, error) {
	var logs []*domain.Log
	stmt := db.WithContext(ctx).
		Table("verifactu_logs AS l").
		Select("l.*, i.invoice_number").
		Joins("LEFT JOIN invoices i ON i.id = l.invoice_id").
		Where("l.user_id = ?", filter.UserID)

	if filter.InvoiceID != nil {
		stmt = stmt.Where("l.invoice_id = ?", *filter.InvoiceID)
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		stmt = stmt.Where("l.action = ?", action)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(l.created_at < ?) OR (l.created_at = ? AND l.id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("l.created_at DESC, l.id DESC")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
