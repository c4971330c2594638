// Package chain holds the pure hash-chain primitives used to link invoices.
package chain

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
)

const (
	genesisPrefix  = "GENESIS_"
	fieldSeparator = "|"
	csvLength      = 16
	dateLayout     = "2006-01-02"
)

// Hash is a lowercase hex SHA-256 digest.
type Hash string

func (h Hash) String() string { return string(h) }

// HashInput is the subset of invoice fields covered by the chain hash.
type HashInput struct {
	InvoiceNumber string
	IssueDate     time.Time
	Total         decimal.Decimal
	UserID        uuid.UUID
}

// InputFromInvoice extracts the hashed fields from an invoice row.
func InputFromInvoice(inv domain.Invoice) HashInput {
	return HashInput{
		InvoiceNumber: inv.InvoiceNumber,
		IssueDate:     inv.IssueDate,
		Total:         inv.Total,
		UserID:        inv.UserID,
	}
}

// GenesisHash is the synthetic predecessor of a user's first invoice.
func GenesisHash(userID uuid.UUID) Hash {
	return digest(genesisPrefix + userID.String())
}

// InvoiceHash links an invoice to its predecessor at the given chain position.
func InvoiceHash(in HashInput, previousHash Hash, chainIndex int64) (Hash, error) {
	if err := in.validate(); err != nil {
		return "", err
	}
	if strings.TrimSpace(string(previousHash)) == "" {
		return "", invalid("previous_hash")
	}
	if chainIndex < 1 {
		return "", invalid("chain_index")
	}

	data := strings.Join([]string{
		in.InvoiceNumber,
		FormatDate(in.IssueDate),
		FormatAmount(in.Total),
		string(previousHash),
		strconv.FormatInt(chainIndex, 10),
		in.UserID.String(),
	}, fieldSeparator)

	return digest(data), nil
}

// DeriveCSV returns the secure verification code shown on the invoice.
func DeriveCSV(hash Hash) string {
	value := string(hash)
	if len(value) > csvLength {
		value = value[:csvLength]
	}
	return strings.ToUpper(value)
}

// SignInput is what the test-mode signature covers.
type SignInput struct {
	InvoiceNumber string
	Total         decimal.Decimal
}

// Sign produces the simulated signature used when no certificate is involved.
func Sign(in SignInput) string {
	sum := sha256.Sum256([]byte(in.InvoiceNumber + "_" + FormatAmount(in.Total)))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// FormatDate renders the calendar date as stored, without shifting zones.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// FormatAmount renders a currency amount with two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func (in HashInput) validate() error {
	switch {
	case strings.TrimSpace(in.InvoiceNumber) == "":
		return invalid("invoice_number")
	case in.IssueDate.IsZero():
		return invalid("issue_date")
	case in.UserID == uuid.Nil:
		return invalid("user_id")
	case in.Total.IsNegative():
		return invalid("total")
	}
	return nil
}

func digest(data string) Hash {
	sum := sha256.Sum256([]byte(data))
	return Hash(hex.EncodeToString(sum[:]))
}

func invalid(field string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInvoiceData, field)
}
