package authority

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
	"go.uber.org/zap"
	"golang.org/x/crypto/pkcs12"
)

// ProductionAuthority is the extension point for live AEAT submission.
// Submission is not implemented, so every call fails with ErrCertificateRequired.
type ProductionAuthority struct {
	log    *zap.Logger
	config domain.Config
}

func NewProductionAuthority(log *zap.Logger, cfg domain.Config) *ProductionAuthority {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductionAuthority{log: log, config: cfg}
}

func (a *ProductionAuthority) Sign(ctx context.Context, inv domain.Invoice) (string, error) {
	return "", a.unavailable("sign")
}

func (a *ProductionAuthority) SubmitRegistration(ctx context.Context, payload domain.RegistrationPayload) (domain.RegistrationReceipt, error) {
	return domain.RegistrationReceipt{}, a.unavailable("submit_registration")
}

func (a *ProductionAuthority) SubmitCancellation(ctx context.Context, payload domain.CancellationPayload) (domain.CancellationReceipt, error) {
	return domain.CancellationReceipt{}, a.unavailable("submit_cancellation")
}

// unavailable reports precisely why the call cannot proceed.
func (a *ProductionAuthority) unavailable(op string) error {
	if !a.config.HasCertificate() {
		return fmt.Errorf("%w: no certificate configured", domain.ErrCertificateRequired)
	}
	if err := a.loadCertificate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCertificateRequired, err)
	}
	a.log.Warn("production submission requested but not implemented", zap.String("operation", op))
	return fmt.Errorf("%w: production submission is not available", domain.ErrCertificateRequired)
}

func (a *ProductionAuthority) loadCertificate() error {
	path := strings.TrimSpace(*a.config.CertificatePath)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read certificate: %w", err)
	}
	password := ""
	if a.config.CertificatePassword != nil {
		password = *a.config.CertificatePassword
	}
	if _, _, err := pkcs12.Decode(data, password); err != nil {
		return fmt.Errorf("decode certificate: %w", err)
	}
	return nil
}

var _ Authority = (*ProductionAuthority)(nil)
