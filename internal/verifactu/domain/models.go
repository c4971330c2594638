// Package domain contains persistence models and contracts for Verifactu registration.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// VerifactuStatus is the fiscal registration state of an invoice.
type VerifactuStatus string

const (
	StatusPending    VerifactuStatus = "pending"
	StatusRegistered VerifactuStatus = "registered"
	StatusCancelled  VerifactuStatus = "cancelled"
	StatusError      VerifactuStatus = "error"
)

// InvoiceStatus is the business lifecycle state owned by the invoicing layer.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Invoice is the subset of the invoices table this engine reads and writes.
// Chain index and previous hash are written once, by the registration update.
type Invoice struct {
	ID            uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	UserID        uuid.UUID       `gorm:"type:char(36);not null;index;uniqueIndex:ux_invoices_user_chain_index,priority:1" json:"userId"`
	ClientID      *uuid.UUID      `gorm:"type:char(36)" json:"clientId,omitempty"`
	InvoiceNumber string          `gorm:"type:varchar(50);not null" json:"invoiceNumber"`
	IssueDate     time.Time       `gorm:"type:date;not null" json:"issueDate"`
	Total         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	Currency      string          `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`
	Status        InvoiceStatus   `gorm:"type:varchar(20);not null;default:'draft'" json:"status"`

	OperationType          *string `gorm:"type:varchar(30)" json:"operationType,omitempty"`
	VerifactuOperationCode *string `gorm:"column:verifactu_operation_code;type:varchar(10)" json:"operationCode,omitempty"`
	VatExemptionReason     *string `gorm:"type:varchar(255)" json:"vatExemptionReason,omitempty"`
	ReverseCharge          bool    `gorm:"not null" json:"reverseCharge"`
	ClientVatNumber        *string `gorm:"type:varchar(30)" json:"clientVatNumber,omitempty"`
	DestinationCountryCode *string `gorm:"type:varchar(2)" json:"destinationCountryCode,omitempty"`
	GoodsOrServices        *string `gorm:"type:varchar(20)" json:"goodsOrServices,omitempty"`

	VerifactuEnabled         bool            `gorm:"not null" json:"verifactuEnabled"`
	VerifactuStatus          VerifactuStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"verifactuStatus"`
	VerifactuID              *string         `gorm:"column:verifactu_id;type:varchar(100)" json:"verifactuId,omitempty"`
	VerifactuHash            *string         `gorm:"column:verifactu_hash;type:varchar(64)" json:"verifactuHash,omitempty"`
	VerifactuPreviousHash    *string         `gorm:"column:verifactu_previous_hash;type:varchar(64)" json:"verifactuPreviousHash,omitempty"`
	VerifactuChainIndex      *int64          `gorm:"column:verifactu_chain_index;uniqueIndex:ux_invoices_user_chain_index,priority:2" json:"verifactuChainIndex,omitempty"`
	VerifactuCSV             *string         `gorm:"column:verifactu_csv;type:varchar(16)" json:"verifactuCsv,omitempty"`
	VerifactuQRCode          *string         `gorm:"column:verifactu_qr_code;type:text" json:"verifactuQrCode,omitempty"`
	VerifactuSignature       *string         `gorm:"column:verifactu_signature;type:text" json:"verifactuSignature,omitempty"`
	VerifactuRegisteredAt    *time.Time      `gorm:"column:verifactu_registered_at" json:"verifactuRegisteredAt,omitempty"`
	VerifactuURL             *string         `gorm:"column:verifactu_url;type:text" json:"verifactuUrl,omitempty"`
	VerifactuSoftwareNIF     *string         `gorm:"column:verifactu_software_nif;type:varchar(20)" json:"verifactuSoftwareNif,omitempty"`
	VerifactuSoftwareName    *string         `gorm:"column:verifactu_software_name;type:varchar(100)" json:"verifactuSoftwareName,omitempty"`
	VerifactuSoftwareVersion *string         `gorm:"column:verifactu_software_version;type:varchar(20)" json:"verifactuSoftwareVersion,omitempty"`
	VerifactuErrorMessage    *string         `gorm:"column:verifactu_error_message;type:text" json:"verifactuErrorMessage,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// IsChained reports whether the invoice occupies a position in its user's chain.
func (i Invoice) IsChained() bool {
	return i.VerifactuChainIndex != nil && i.VerifactuHash != nil && i.VerifactuPreviousHash != nil
}

// Config is the per-user Verifactu configuration and chain head.
type Config struct {
	UserID              uuid.UUID `gorm:"type:char(36);primaryKey"`
	Enabled             bool      `gorm:"not null"`
	AutoRegister        bool      `gorm:"not null"`
	TestMode            bool      `gorm:"not null"`
	SoftwareNIF         *string   `gorm:"column:software_nif;type:varchar(20)"`
	SoftwareName        *string   `gorm:"type:varchar(100)"`
	SoftwareVersion     *string   `gorm:"type:varchar(20)"`
	SoftwareLicense     *string   `gorm:"type:varchar(100)"`
	CertificatePath     *string   `gorm:"type:text"`
	CertificatePassword *string   `gorm:"type:text"`
	LastChainIndex      int64     `gorm:"not null;default:0"`
	LastChainHash       *string   `gorm:"type:varchar(64)"`
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (Config) TableName() string { return "verifactu_config" }

// HasCertificate reports whether a production certificate has been configured.
func (c Config) HasCertificate() bool {
	return c.CertificatePath != nil && *c.CertificatePath != ""
}

// LogAction identifies the operation recorded in a log row.
type LogAction string

const (
	LogActionRegister LogAction = "register_attempt"
	LogActionCancel   LogAction = "cancel_attempt"
)

// LogStatus is the outcome recorded in a log row.
type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusError   LogStatus = "error"
)

// Log is an append-only record of one registration or cancellation attempt.
type Log struct {
	ID           snowflake.ID   `gorm:"primaryKey" json:"id"`
	InvoiceID    uuid.UUID      `gorm:"type:char(36);not null;index" json:"invoiceId"`
	UserID       uuid.UUID      `gorm:"type:char(36);not null;index" json:"userId"`
	Action       LogAction      `gorm:"type:varchar(50);not null" json:"action"`
	Status       LogStatus      `gorm:"type:varchar(20);not null" json:"status"`
	RequestData  datatypes.JSON `json:"requestData,omitempty"`
	ResponseData datatypes.JSON `json:"responseData,omitempty"`
	ErrorMessage *string        `gorm:"type:text" json:"errorMessage,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;index" json:"createdAt"`

	InvoiceNumber string `gorm:"->;-:migration" json:"invoiceNumber,omitempty"`
}

// TableName sets the database table name.
func (Log) TableName() string { return "verifactu_logs" }
