// Package authority models the government verification authority that receives registrations.
package authority

import (
	"context"

	"github.com/smallbiznis/ancloraflow/internal/clock"
	"github.com/smallbiznis/ancloraflow/internal/config"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Authority signs invoices and submits registrations and cancellations.
type Authority interface {
	Sign(ctx context.Context, inv domain.Invoice) (string, error)
	SubmitRegistration(ctx context.Context, payload domain.RegistrationPayload) (domain.RegistrationReceipt, error)
	SubmitCancellation(ctx context.Context, payload domain.CancellationPayload) (domain.CancellationReceipt, error)
}

// Selector picks the Authority matching a user's configuration.
type Selector interface {
	ForConfig(cfg domain.Config) Authority
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Settings *config.VerifactuConfigHolder `optional:"true"`
}

type selector struct {
	log      *zap.Logger
	clock    clock.Clock
	settings *config.VerifactuConfigHolder
}

func NewSelector(p Params) Selector {
	return &selector{
		log:      p.Log.Named("verifactu.authority"),
		clock:    p.Clock,
		settings: p.Settings,
	}
}

// ForConfig returns the test authority when test mode is on, production otherwise.
func (s *selector) ForConfig(cfg domain.Config) Authority {
	settings := s.settings.Get()
	if cfg.TestMode {
		return NewTestAuthority(s.clock, settings.TestLatency, settings.TestRegistrationBaseURL)
	}
	return NewProductionAuthority(s.log, cfg)
}

var Module = fx.Module("verifactu.authority",
	fx.Provide(NewSelector),
)
