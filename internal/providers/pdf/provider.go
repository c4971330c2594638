// Package pdf renders printable Verifactu documents.
package pdf

import (
	"github.com/smallbiznis/ancloraflow/internal/clock"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const contentType = "application/pdf"

type Params struct {
	fx.In

	Log   *zap.Logger
	Clock clock.Clock `optional:"true"`
}

// PDFProvider renders registration receipts with maroto.
type PDFProvider struct {
	log   *zap.Logger
	clock clock.Clock
}

func New(p Params) *PDFProvider {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	c := p.Clock
	if c == nil {
		c = clock.NewSystemClock()
	}
	return &PDFProvider{log: log.Named("pdf.provider"), clock: c}
}

var _ domain.ReceiptRenderer = (*PDFProvider)(nil)

var Module = fx.Module("pdf.provider",
	fx.Provide(
		New,
		func(p *PDFProvider) domain.ReceiptRenderer { return p },
	),
)
