package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/ancloraflow/pkg/db/pagination"
)

// Service is the Verifactu registration engine.
type Service interface {
	CheckRegistrable(ctx context.Context, invoiceID, userID uuid.UUID) error
	RegisterInvoice(ctx context.Context, invoiceID, userID uuid.UUID) (RegistrationResult, error)
	BatchRegister(ctx context.Context, invoiceIDs []uuid.UUID, userID uuid.UUID) BatchResult
	RegisterPending(ctx context.Context, userID uuid.UUID) (BatchResult, error)
	CancelInvoice(ctx context.Context, invoiceID, userID uuid.UUID, reason string) (CancellationResult, error)
	VerifyChain(ctx context.Context, userID uuid.UUID, opts VerifyOptions) (ChainVerification, error)

	GetConfig(ctx context.Context, userID uuid.UUID) (Config, error)
	UpdateConfig(ctx context.Context, userID uuid.UUID, update ConfigUpdate) (Config, error)
	GetLogs(ctx context.Context, userID uuid.UUID, req ListLogsRequest) (ListLogsResponse, error)
	GetInvoiceStatus(ctx context.Context, invoiceID, userID uuid.UUID) (InvoiceStatusView, error)
	GetStatistics(ctx context.Context, userID uuid.UUID) (Statistics, error)
	ListPending(ctx context.Context, userID uuid.UUID) ([]Invoice, error)
	ListRegistered(ctx context.Context, userID uuid.UUID, limit int) ([]Invoice, error)
	RenderReceipt(ctx context.Context, invoiceID, userID uuid.UUID) (Receipt, error)
}

// RegistrationPayload is the record submitted to the verification authority.
type RegistrationPayload struct {
	InvoiceID          uuid.UUID       `json:"invoiceId"`
	InvoiceNumber      string          `json:"invoiceNumber"`
	IssueDate          string          `json:"issueDate"`
	Total              decimal.Decimal `json:"total"`
	Hash               string          `json:"hash"`
	PreviousHash       string          `json:"previousHash"`
	ChainIndex         int64           `json:"chainIndex"`
	Signature          string          `json:"signature"`
	SoftwareNIF        string          `json:"softwareNIF"`
	SoftwareName       string          `json:"softwareName"`
	SoftwareVersion    string          `json:"softwareVersion"`
	OperationType      string          `json:"operationType"`
	OperationCode      string          `json:"operationCode"`
	VatExemptionReason *string         `json:"vatExemptionReason"`
	ReverseCharge      bool            `json:"reverseCharge"`
	ClientVatNumber    *string         `json:"clientVatNumber"`
	DestinationCountry string          `json:"destinationCountry"`
	GoodsOrServices    string          `json:"goodsOrServices"`
}

// RegistrationReceipt is the authority's answer to a registration.
type RegistrationReceipt struct {
	Status     VerifactuStatus `json:"status"`
	ExternalID string          `json:"verifactuId"`
	URL        string          `json:"url"`
	Timestamp  time.Time       `json:"timestamp"`
}

// CancellationPayload is the record submitted to cancel a registration.
type CancellationPayload struct {
	ExternalID    string `json:"verifactuId"`
	InvoiceNumber string `json:"invoiceNumber"`
	Reason        string `json:"reason"`
}

// CancellationReceipt is the authority's answer to a cancellation.
type CancellationReceipt struct {
	Status    VerifactuStatus `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
}

type RegistrationResult struct {
	Success    bool   `json:"success"`
	ExternalID string `json:"verifactuId"`
	CSV        string `json:"csv"`
	QRCode     string `json:"qrCode"`
	URL        string `json:"url"`
	Hash       string `json:"hash"`
	ChainIndex int64  `json:"chainIndex"`
}

type CancellationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type BatchItemResult struct {
	InvoiceID uuid.UUID           `json:"invoiceId"`
	Success   bool                `json:"success"`
	Result    *RegistrationResult `json:"result,omitempty"`
	Error     string              `json:"error,omitempty"`
}

type BatchResult struct {
	Total      int               `json:"total"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Results    []BatchItemResult `json:"results"`
}

// VerifyOptions tunes chain verification. Strict also recomputes each row's own hash.
type VerifyOptions struct {
	Strict bool
}

type ChainDetail struct {
	InvoiceID            uuid.UUID       `json:"invoiceId"`
	InvoiceNumber        string          `json:"invoiceNumber"`
	ChainIndex           int64           `json:"chainIndex"`
	Status               VerifactuStatus `json:"status"`
	Hash                 string          `json:"hash"`
	PreviousHash         string          `json:"previousHash"`
	ExpectedPreviousHash string          `json:"expectedPreviousHash"`
	Valid                bool            `json:"valid"`
	HashValid            *bool           `json:"hashValid,omitempty"`
}

type ChainVerification struct {
	Valid         bool          `json:"valid"`
	Strict        bool          `json:"strict"`
	TotalInvoices int           `json:"totalInvoices"`
	Details       []ChainDetail `json:"details"`
}

// ConfigUpdate carries the user-editable settings. Nil fields are left unchanged.
type ConfigUpdate struct {
	Enabled             *bool   `json:"enabled"`
	AutoRegister        *bool   `json:"auto_register"`
	CertificatePath     *string `json:"certificate_path"`
	CertificatePassword *string `json:"certificate_password"`
	SoftwareNIF         *string `json:"software_nif"`
	SoftwareName        *string `json:"software_name"`
	SoftwareVersion     *string `json:"software_version"`
	SoftwareLicense     *string `json:"software_license"`
	TestMode            *bool   `json:"test_mode"`
}

// IsEmpty reports whether no allow-listed field is set.
func (u ConfigUpdate) IsEmpty() bool {
	return u.Enabled == nil &&
		u.AutoRegister == nil &&
		u.CertificatePath == nil &&
		u.CertificatePassword == nil &&
		u.SoftwareNIF == nil &&
		u.SoftwareName == nil &&
		u.SoftwareVersion == nil &&
		u.SoftwareLicense == nil &&
		u.TestMode == nil
}

type ListLogsRequest struct {
	pagination.Pagination
	InvoiceID *uuid.UUID
	Action    string
}

type ListLogsResponse struct {
	pagination.PageInfo
	Logs []Log `json:"logs"`
}

type InvoiceStatusView struct {
	InvoiceID     uuid.UUID       `json:"invoiceId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	Status        VerifactuStatus `json:"status"`
	ExternalID    *string         `json:"verifactuId,omitempty"`
	CSV           *string         `json:"csv,omitempty"`
	QRCode        *string         `json:"qrCode,omitempty"`
	URL           *string         `json:"url,omitempty"`
	Hash          *string         `json:"hash,omitempty"`
	ChainIndex    *int64          `json:"chainIndex,omitempty"`
	RegisteredAt  *time.Time      `json:"registeredAt,omitempty"`
	ErrorMessage  *string         `json:"errorMessage,omitempty"`
}

type Statistics struct {
	TotalEnabled     int64      `json:"totalEnabled"`
	TotalRegistered  int64      `json:"totalRegistered"`
	TotalPending     int64      `json:"totalPending"`
	TotalErrors      int64      `json:"totalErrors"`
	TotalCancelled   int64      `json:"totalCancelled"`
	LastChainIndex   int64      `json:"lastChainIndex"`
	LastRegistration *time.Time `json:"lastRegistration,omitempty"`
}

// ReceiptRenderer turns a chained invoice into a printable registration receipt.
type ReceiptRenderer interface {
	Render(ctx context.Context, inv Invoice) (Receipt, error)
}

// Receipt is a rendered registration receipt document.
type Receipt struct {
	Filename    string
	ContentType string
	Body        []byte
}
