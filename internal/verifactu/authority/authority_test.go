package authority

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/ancloraflow/internal/clock"
	"github.com/smallbiznis/ancloraflow/internal/config"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func TestTestAuthorityRegistration(t *testing.T) {
	a := NewTestAuthority(clock.NewFakeClock(fixedNow), 0, "")

	receipt, err := a.SubmitRegistration(context.Background(), domain.RegistrationPayload{Hash: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRegistered, receipt.Status)
	assert.True(t, strings.HasPrefix(receipt.ExternalID, "VTEST-"))
	assert.Equal(t, "https://sede.agenciatributaria.gob.es/verifactu/test/abc123", receipt.URL)
	assert.Equal(t, fixedNow, receipt.Timestamp)

	other, err := a.SubmitRegistration(context.Background(), domain.RegistrationPayload{Hash: "abc123"})
	require.NoError(t, err)
	assert.NotEqual(t, receipt.ExternalID, other.ExternalID)
}

func TestTestAuthorityCancellation(t *testing.T) {
	a := NewTestAuthority(clock.NewFakeClock(fixedNow), 0, "https://example.test/")

	receipt, err := a.SubmitCancellation(context.Background(), domain.CancellationPayload{ExternalID: "VTEST-1", Reason: "duplicate"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, receipt.Status)
	assert.Equal(t, fixedNow, receipt.Timestamp)
}

func TestTestAuthorityHonoursCancellation(t *testing.T) {
	a := NewTestAuthority(clock.NewFakeClock(fixedNow), time.Hour, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.SubmitRegistration(ctx, domain.RegistrationPayload{Hash: "abc"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTestAuthoritySign(t *testing.T) {
	a := NewTestAuthority(nil, 0, "")
	sig, err := a.Sign(context.Background(), domain.Invoice{InvoiceNumber: "F-2025-001", Total: decimal.RequireFromString("121")})
	require.NoError(t, err)
	assert.Equal(t, "NgWkKlFQPGRO1NCdAD8J7ZTL7UHwLwtRpcDp7LvUIRs=", sig)
}

func TestProductionAuthorityWithoutCertificate(t *testing.T) {
	a := NewProductionAuthority(zap.NewNop(), domain.Config{UserID: uuid.New()})

	_, err := a.Sign(context.Background(), domain.Invoice{})
	assert.ErrorIs(t, err, domain.ErrCertificateRequired)

	_, err = a.SubmitRegistration(context.Background(), domain.RegistrationPayload{})
	assert.ErrorIs(t, err, domain.ErrCertificateRequired)

	_, err = a.SubmitCancellation(context.Background(), domain.CancellationPayload{})
	assert.ErrorIs(t, err, domain.ErrCertificateRequired)
}

func TestProductionAuthorityWithUnreadableCertificate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cert.p12")
	require.NoError(t, os.WriteFile(path, []byte("not a pkcs12 bundle"), 0o600))

	a := NewProductionAuthority(zap.NewNop(), domain.Config{CertificatePath: &path})
	_, err := a.SubmitRegistration(context.Background(), domain.RegistrationPayload{})
	require.ErrorIs(t, err, domain.ErrCertificateRequired)
	assert.Contains(t, err.Error(), "decode certificate")

	missing := filepath.Join(t.TempDir(), "missing.p12")
	a = NewProductionAuthority(zap.NewNop(), domain.Config{CertificatePath: &missing})
	_, err = a.SubmitRegistration(context.Background(), domain.RegistrationPayload{})
	require.ErrorIs(t, err, domain.ErrCertificateRequired)
	assert.Contains(t, err.Error(), "read certificate")
}

func TestSelectorForConfig(t *testing.T) {
	settings := config.DefaultVerifactuSettings()
	settings.TestLatency = 0
	s := NewSelector(Params{
		Log:      zap.NewNop(),
		Clock:    clock.NewFakeClock(fixedNow),
		Settings: config.NewStaticVerifactuConfigHolder(settings),
	})

	assert.IsType(t, &TestAuthority{}, s.ForConfig(domain.Config{TestMode: true}))
	assert.IsType(t, &ProductionAuthority{}, s.ForConfig(domain.Config{TestMode: false}))
}
