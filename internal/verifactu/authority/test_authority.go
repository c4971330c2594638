package authority

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/ancloraflow/internal/clock"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/chain"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
)

const (
	testExternalIDPrefix        = "VTEST-"
	DefaultTestRegistrationBase = "https://sede.agenciatributaria.gob.es/verifactu/test"
)

// TestAuthority simulates the authority: it always accepts after a fixed latency.
type TestAuthority struct {
	clock   clock.Clock
	latency time.Duration
	baseURL string
}

func NewTestAuthority(c clock.Clock, latency time.Duration, baseURL string) *TestAuthority {
	if c == nil {
		c = clock.NewSystemClock()
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultTestRegistrationBase
	}
	return &TestAuthority{clock: c, latency: latency, baseURL: baseURL}
}

func (a *TestAuthority) Sign(ctx context.Context, inv domain.Invoice) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return chain.Sign(chain.SignInput{InvoiceNumber: inv.InvoiceNumber, Total: inv.Total}), nil
}

func (a *TestAuthority) SubmitRegistration(ctx context.Context, payload domain.RegistrationPayload) (domain.RegistrationReceipt, error) {
	if err := a.wait(ctx); err != nil {
		return domain.RegistrationReceipt{}, err
	}
	now := a.clock.Now()
	return domain.RegistrationReceipt{
		Status:     domain.StatusRegistered,
		ExternalID: testExternalIDPrefix + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		URL:        fmt.Sprintf("%s/%s", a.baseURL, payload.Hash),
		Timestamp:  now,
	}, nil
}

func (a *TestAuthority) SubmitCancellation(ctx context.Context, payload domain.CancellationPayload) (domain.CancellationReceipt, error) {
	if err := a.wait(ctx); err != nil {
		return domain.CancellationReceipt{}, err
	}
	return domain.CancellationReceipt{
		Status:    domain.StatusCancelled,
		Timestamp: a.clock.Now(),
	}, nil
}

func (a *TestAuthority) wait(ctx context.Context) error {
	if a.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(a.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Authority = (*TestAuthority)(nil)
