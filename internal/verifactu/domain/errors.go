package domain

import "errors"

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidInvoiceID    = errors.New("invalid_invoice_id")
	ErrConfigNotEnabled    = errors.New("verifactu_not_enabled")
	ErrConfigNotFound      = errors.New("verifactu_config_not_found")
	ErrAutoRegisterOff     = errors.New("auto_register_disabled")
	ErrNoUpdatableFields   = errors.New("no_updatable_fields")
	ErrInvoiceNotFound     = errors.New("invoice_not_found")
	ErrInvoiceDraft        = errors.New("invoice_is_draft")
	ErrInvoiceCancelled    = errors.New("invoice_is_cancelled")
	ErrAlreadyRegistered   = errors.New("invoice_already_registered")
	ErrNotRegistered       = errors.New("invoice_not_registered")
	ErrInvalidReason       = errors.New("invalid_cancellation_reason")
	ErrInvalidInvoiceData  = errors.New("invalid_invoice_data")
	ErrCertificateRequired = errors.New("certificate_required")
	ErrChainConflict       = errors.New("chain_conflict")
	ErrReceiptUnavailable  = errors.New("receipt_unavailable")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
)
