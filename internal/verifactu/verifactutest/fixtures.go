// Package verifactutest provides database fixtures shared by Verifactu tests.
package verifactutest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/ancloraflow/internal/migration"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
	"github.com/smallbiznis/ancloraflow/pkg/db"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB opens an isolated in-memory database with the Verifactu schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

// SeedConfig stores an enabled test-mode configuration for userID.
func SeedConfig(t *testing.T, conn *gorm.DB, userID uuid.UUID, opts ...func(*domain.Config)) *domain.Config {
	t.Helper()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := &domain.Config{
		UserID:    userID,
		Enabled:   true,
		TestMode:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	require.NoError(t, conn.Create(cfg).Error)
	return cfg
}

// SeedInvoice stores a sent, pending invoice for userID.
func SeedInvoice(t *testing.T, conn *gorm.DB, userID uuid.UUID, number string, total string, opts ...func(*domain.Invoice)) *domain.Invoice {
	t.Helper()

	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	inv := &domain.Invoice{
		ID:               uuid.New(),
		UserID:           userID,
		InvoiceNumber:    number,
		IssueDate:        time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Total:            decimal.RequireFromString(total),
		Currency:         "EUR",
		Status:           domain.InvoiceStatusSent,
		VerifactuEnabled: true,
		VerifactuStatus:  domain.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for _, opt := range opts {
		opt(inv)
	}
	require.NoError(t, conn.Create(inv).Error)
	return inv
}

// LoadInvoice reads the current row for id.
func LoadInvoice(t *testing.T, conn *gorm.DB, id uuid.UUID) domain.Invoice {
	t.Helper()

	var inv domain.Invoice
	require.NoError(t, conn.Where("id = ?", id).First(&inv).Error)
	return inv
}

// LoadConfig reads the current configuration row for userID.
func LoadConfig(t *testing.T, conn *gorm.DB, userID uuid.UUID) domain.Config {
	t.Helper()

	var cfg domain.Config
	require.NoError(t, conn.Where("user_id = ?", userID).First(&cfg).Error)
	return cfg
}

// Logs returns every log row for userID, oldest first.
func Logs(t *testing.T, conn *gorm.DB, userID uuid.UUID) []domain.Log {
	t.Helper()

	var logs []domain.Log
	require.NoError(t, conn.Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&logs).Error)
	return logs
}

// Number formats sequential invoice numbers.
func Number(i int) string {
	return fmt.Sprintf("F-2025-%03d", i)
}
