package chain

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

// DefaultVerificationBaseURL is the tax agency lookup page used when no base URL is configured.
const DefaultVerificationBaseURL = "https://sede.agenciatributaria.gob.es/verifactu"

const (
	qrSize          = 256
	qrDataURIPrefix = "data:image/png;base64,"
)

// VerificationURL is the public lookup address encoded in the invoice QR code.
func VerificationURL(baseURL string, hash Hash) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultVerificationBaseURL
	}
	return fmt.Sprintf("%s?id=%s", baseURL, hash)
}

// DeriveQR renders the verification URL as a PNG QR code data URI.
func DeriveQR(baseURL string, hash Hash) (string, error) {
	img, err := QRPNG(VerificationURL(baseURL, hash))
	if err != nil {
		return "", err
	}
	return qrDataURIPrefix + base64.StdEncoding.EncodeToString(img), nil
}

// QRPNG encodes content as a square PNG QR code.
func QRPNG(content string) ([]byte, error) {
	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	code, err = barcode.Scale(code, qrSize, qrSize)
	if err != nil {
		return nil, fmt.Errorf("scale qr: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeQRDataURI returns the PNG bytes of a data URI produced by DeriveQR.
func DecodeQRDataURI(uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, qrDataURIPrefix) {
		return nil, fmt.Errorf("unsupported qr data uri")
	}
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, qrDataURIPrefix))
}
