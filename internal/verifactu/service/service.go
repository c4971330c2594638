package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/ancloraflow/internal/clock"
	"github.com/smallbiznis/ancloraflow/internal/config"
	"github.com/smallbiznis/ancloraflow/internal/observability/logger"
	"github.com/smallbiznis/ancloraflow/internal/observability/metrics"
	"github.com/smallbiznis/ancloraflow/internal/observability/tracing"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/authority"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/masking"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("ancloraflow/verifactu")

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	Authorities authority.Selector
	Clock       clock.Clock
	Settings    *config.VerifactuConfigHolder `optional:"true"`
	Metrics     *metrics.VerifactuMetrics     `optional:"true"`
	Receipts    domain.ReceiptRenderer        `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID       *snowflake.Node
	repo        domain.Repository
	authorities authority.Selector
	clock       clock.Clock
	settings    *config.VerifactuConfigHolder
	metrics     *metrics.VerifactuMetrics
	receipts    domain.ReceiptRenderer
}

func NewService(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.NewSystemClock()
	}
	return &Service{
		db:  p.DB,
		log: p.Log.Named("verifactu.service"),

		genID:       p.GenID,
		repo:        p.Repo,
		authorities: p.Authorities,
		clock:       c,
		settings:    p.Settings,
		metrics:     p.Metrics,
		receipts:    p.Receipts,
	}
}

func validateIDs(invoiceID, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return domain.ErrInvalidUser
	}
	if invoiceID == uuid.Nil {
		return domain.ErrInvalidInvoiceID
	}
	return nil
}

// isStateRejection reports rejections decided from the invoice's own state.
// They are logged like any failed attempt but never annotate the invoice.
func isStateRejection(err error) bool {
	return errors.Is(err, domain.ErrInvoiceNotFound) ||
		errors.Is(err, domain.ErrAlreadyRegistered) ||
		errors.Is(err, domain.ErrInvoiceCancelled) ||
		errors.Is(err, domain.ErrNotRegistered)
}

func (s *Service) newLog(invoiceID, userID uuid.UUID, action domain.LogAction, status domain.LogStatus, request, response any, now time.Time) *domain.Log {
	return &domain.Log{
		ID:           s.genID.Generate(),
		InvoiceID:    invoiceID,
		UserID:       userID,
		Action:       action,
		Status:       status,
		RequestData:  s.maskedJSON(request),
		ResponseData: s.maskedJSON(response),
		CreatedAt:    now,
	}
}

func (s *Service) maskedJSON(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	raw, err := masking.MaskJSON(v)
	if err != nil {
		s.log.Warn("failed to encode log payload", zap.Error(err))
		return nil
	}
	if string(raw) == "null" {
		return nil
	}
	return datatypes.JSON(raw)
}

// recordFailure appends the error log row and, when annotate is set, flags the invoice.
// Both writes run after the transaction rolled back and never replace the original error.
func (s *Service) recordFailure(ctx context.Context, action domain.LogAction, invoiceID, userID uuid.UUID, request any, cause error, annotate bool) {
	ctx = context.WithoutCancel(ctx)
	log := logger.WithContext(ctx, s.log).With(
		zap.String("invoice_id", invoiceID.String()),
		zap.String("action", string(action)),
	)

	now := s.clock.Now()
	message := cause.Error()
	entry := s.newLog(invoiceID, userID, action, domain.LogStatusError, request, nil, now)
	entry.ErrorMessage = &message
	if err := s.repo.InsertLog(ctx, s.db, entry); err != nil {
		log.Warn("failed to write error log", zap.Error(err), zap.NamedError("cause", cause))
	}

	if !annotate {
		return
	}
	if err := s.repo.AnnotateError(ctx, s.db, invoiceID, userID, message, now); err != nil {
		log.Warn("failed to annotate invoice error", zap.Error(err), zap.NamedError("cause", cause))
	}
}

func (s *Service) startSpan(ctx context.Context, name string, invoiceID, userID uuid.UUID) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("verifactu.user_id", userID.String())}
	if invoiceID != uuid.Nil {
		attrs = append(attrs, attribute.String("verifactu.invoice_id", invoiceID.String()))
	}
	return tracer.Start(ctx, name, trace.WithAttributes(tracing.SafeAttributes(attrs...)...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		if safe := tracing.SafeError(err); safe != nil {
			span.RecordError(safe)
			span.SetStatus(codes.Error, safe.Error())
		}
	}
	span.End()
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func stringPtr(value string) *string {
	return &value
}

func orDefault(value *string, fallback string) string {
	if value != nil && *value != "" {
		return *value
	}
	return fallback
}
