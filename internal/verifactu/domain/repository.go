package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists Verifactu state. Every method runs on the handle it is given,
// so callers choose between the root connection and an open transaction.
type Repository interface {
	FindConfig(ctx context.Context, db *gorm.DB, userID uuid.UUID, forUpdate bool) (*Config, error)
	InsertConfig(ctx context.Context, db *gorm.DB, cfg *Config) error
	UpdateConfig(ctx context.Context, db *gorm.DB, userID uuid.UUID, fields map[string]any) error
	AdvanceChain(ctx context.Context, db *gorm.DB, userID uuid.UUID, expectedIndex, newIndex int64, newHash string, now time.Time) (bool, error)

	FindInvoice(ctx context.Context, db *gorm.DB, invoiceID, userID uuid.UUID, forUpdate bool) (*Invoice, error)
	MarkRegistered(ctx context.Context, db *gorm.DB, reg InvoiceRegistration) (bool, error)
	MarkCancelled(ctx context.Context, db *gorm.DB, invoiceID, userID uuid.UUID, now time.Time) error
	AnnotateError(ctx context.Context, db *gorm.DB, invoiceID, userID uuid.UUID, message string, now time.Time) error
	ListChain(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]Invoice, error)
	ListPending(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]Invoice, error)
	ListRegistered(ctx context.Context, db *gorm.DB, userID uuid.UUID, limit int) ([]Invoice, error)
	Statistics(ctx context.Context, db *gorm.DB, userID uuid.UUID) (Statistics, error)

	InsertLog(ctx context.Context, db *gorm.DB, entry *Log) error
	ListLogs(ctx context.Context, db *gorm.DB, filter LogFilter) ([]*Log, error)
}

// InvoiceRegistration is the full set of columns written by a successful registration.
type InvoiceRegistration struct {
	InvoiceID       uuid.UUID
	UserID          uuid.UUID
	Status          VerifactuStatus
	ExternalID      string
	CSV             string
	QRCode          string
	Signature       string
	Hash            string
	PreviousHash    string
	ChainIndex      int64
	RegisteredAt    time.Time
	URL             string
	SoftwareNIF     string
	SoftwareName    string
	SoftwareVersion string
}

type LogCursor struct {
	ID        int64
	CreatedAt time.Time
}

type LogFilter struct {
	UserID    uuid.UUID
	InvoiceID *uuid.UUID
	Action    string
	Cursor    *LogCursor
	Limit     int
}
