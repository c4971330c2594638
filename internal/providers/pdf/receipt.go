package pdf

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gosimple/slug"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/chain"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
	"go.uber.org/zap"
)

// Render builds the registration receipt for a chained invoice.
func (p *PDFProvider) Render(ctx context.Context, inv domain.Invoice) (domain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return domain.Receipt{}, err
	}
	if !inv.IsChained() {
		return domain.Receipt{}, domain.ErrReceiptUnavailable
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Verifactu registration receipt", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, statusLabel(inv.VerifactuStatus), props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
			Top:   3,
		}),
	)

	m.AddRow(30,
		col.New(8).Add(
			text.New("Invoice number: "+inv.InvoiceNumber, props.Text{Top: 0}),
			text.New("Issue date: "+chain.FormatDate(inv.IssueDate), props.Text{Top: 5}),
			text.New("Total: "+chain.FormatAmount(inv.Total)+" "+inv.Currency, props.Text{Top: 10}),
			text.New("Registered at: "+formatTime(inv.VerifactuRegisteredAt), props.Text{Top: 15}),
		),
		p.qrCol(inv),
	)

	rows := [][2]string{
		{"Verifactu ID", deref(inv.VerifactuID)},
		{"CSV", deref(inv.VerifactuCSV)},
		{"Chain index", strconv.FormatInt(*inv.VerifactuChainIndex, 10)},
		{"Hash", deref(inv.VerifactuHash)},
		{"Previous hash", deref(inv.VerifactuPreviousHash)},
		{"Software", fmt.Sprintf("%s %s (%s)", deref(inv.VerifactuSoftwareName), deref(inv.VerifactuSoftwareVersion), deref(inv.VerifactuSoftwareNIF))},
		{"Verification URL", deref(inv.VerifactuURL)},
	}
	for _, row := range rows {
		m.AddRow(8,
			text.NewCol(3, row[0], props.Text{Style: fontstyle.Bold, Size: 9}),
			text.NewCol(9, row[1], props.Text{Size: 8}),
		)
	}

	m.AddRow(10,
		text.NewCol(12, "Generated "+p.clock.Now().UTC().Format(time.RFC3339), props.Text{
			Size:  7,
			Align: align.Right,
			Top:   4,
		}),
	)

	doc, err := m.Generate()
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("generate receipt: %w", err)
	}

	return domain.Receipt{
		Filename:    receiptFilename(inv.InvoiceNumber),
		ContentType: contentType,
		Body:        doc.GetBytes(),
	}, nil
}

// qrCol prefers the QR image stored at registration and redraws it from the hash otherwise.
func (p *PDFProvider) qrCol(inv domain.Invoice) core.Col {
	rect := props.Rect{Center: true, Percent: 90}
	if inv.VerifactuQRCode != nil {
		img, err := chain.DecodeQRDataURI(*inv.VerifactuQRCode)
		if err == nil {
			return image.NewFromBytesCol(4, img, extension.Png, rect)
		}
		p.log.Warn("stored qr code unreadable, redrawing", zap.String("invoice_id", inv.ID.String()), zap.Error(err))
	}
	return code.NewQrCol(4, chain.VerificationURL(chain.DefaultVerificationBaseURL, chain.Hash(deref(inv.VerifactuHash))), rect)
}

func receiptFilename(invoiceNumber string) string {
	name := slug.Make("verifactu-receipt-" + invoiceNumber)
	return name + ".pdf"
}

func statusLabel(status domain.VerifactuStatus) string {
	switch status {
	case domain.StatusCancelled:
		return "CANCELLED"
	case domain.StatusRegistered:
		return "REGISTERED"
	default:
		return string(status)
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
