package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultValid   = "valid"
	ResultInvalid = "invalid"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonDB                   = "db"
	ReasonBusinessRule         = "business_rule"
)

// VerifactuMetrics captures registration, cancellation and chain health signals.
type VerifactuMetrics struct {
	registrations        *prometheus.CounterVec
	registrationErrors   *prometheus.CounterVec
	cancellations        *prometheus.CounterVec
	registrationDuration prometheus.Histogram
	chainVerifications   *prometheus.CounterVec
	chainLength          prometheus.Gauge
}

var (
	verifactuMetricsOnce sync.Once
	verifactuMetrics     *VerifactuMetrics
)

// Verifactu returns the process-wide metrics registered on the default registerer.
func Verifactu(cfg Config) *VerifactuMetrics {
	verifactuMetricsOnce.Do(func() {
		verifactuMetrics = NewVerifactuMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return verifactuMetrics
}

// ResetVerifactuMetricsForTest resets the singleton for tests.
func ResetVerifactuMetricsForTest() {
	verifactuMetricsOnce = sync.Once{}
	verifactuMetrics = nil
}

// NewVerifactuMetrics registers the instruments on registerer.
func NewVerifactuMetrics(registerer prometheus.Registerer, cfg Config) *VerifactuMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "ancloraflow"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &VerifactuMetrics{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "verifactu_registrations_total",
			Help:        "Invoice registration attempts by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		registrationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "verifactu_registration_errors_total",
			Help:        "Failed registrations by low-cardinality reason.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "verifactu_cancellations_total",
			Help:        "Invoice cancellation attempts by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		registrationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "verifactu_registration_duration_seconds",
			Help:        "End-to-end registration latency including the authority round trip.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 2, 5, 10},
			ConstLabels: constLabels,
		}),
		chainVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "verifactu_chain_verifications_total",
			Help:        "Chain verification runs by outcome.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		chainLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "verifactu_chain_length",
			Help:        "Number of chained invoices seen by the last verification.",
			ConstLabels: constLabels,
		}),
	}

	m.registrations = registerCollector(registerer, m.registrations).(*prometheus.CounterVec)
	m.registrationErrors = registerCollector(registerer, m.registrationErrors).(*prometheus.CounterVec)
	m.cancellations = registerCollector(registerer, m.cancellations).(*prometheus.CounterVec)
	m.registrationDuration = registerCollector(registerer, m.registrationDuration).(prometheus.Histogram)
	m.chainVerifications = registerCollector(registerer, m.chainVerifications).(*prometheus.CounterVec)
	m.chainLength = registerCollector(registerer, m.chainLength).(prometheus.Gauge)
	return m
}

func registerCollector(registerer prometheus.Registerer, collector prometheus.Collector) prometheus.Collector {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector
		}
		panic(err)
	}
	return collector
}

// ObserveRegistration records the outcome and latency of one registration attempt.
func (m *VerifactuMetrics) ObserveRegistration(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.registrationDuration.Observe(duration.Seconds())
	if err == nil {
		m.registrations.WithLabelValues(ResultSuccess).Inc()
		return
	}
	m.registrations.WithLabelValues(ResultError).Inc()
	m.registrationErrors.WithLabelValues(ClassifyErrorReason(err)).Inc()
}

// ObserveCancellation records the outcome of one cancellation attempt.
func (m *VerifactuMetrics) ObserveCancellation(err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.cancellations.WithLabelValues(result).Inc()
}

// ObserveChainVerification records a verification run and the chain length it covered.
func (m *VerifactuMetrics) ObserveChainVerification(valid bool, total int) {
	if m == nil {
		return
	}
	result := ResultValid
	if !valid {
		result = ResultInvalid
	}
	m.chainVerifications.WithLabelValues(result).Inc()
	m.chainLength.Set(float64(total))
}

// ClassifyErrorReason maps err to a low-cardinality label value.
func ClassifyErrorReason(err error) string {
	if err == nil {
		return ReasonBusinessRule
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ReasonDeadlineExceeded
	}
	if isDBLockTimeout(err) {
		return ReasonDBLockTimeout
	}
	if isSerializationFailure(err) {
		return ReasonSerializationFailure
	}
	if isUniqueViolation(err) {
		return ReasonUniqueViolation
	}
	if isDBError(err) {
		return ReasonDB
	}
	return ReasonBusinessRule
}

func isDBLockTimeout(err error) bool {
	return hasPGCode(err, "55P03")
}

func isSerializationFailure(err error) bool {
	return hasPGCode(err, "40001")
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return hasPGCode(err, "23505")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrUnsupportedDriver) ||
		errors.Is(err, gorm.ErrInvalidValue) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
