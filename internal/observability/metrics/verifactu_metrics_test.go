package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyErrorReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: ReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: ReasonDBLockTimeout},
		{name: "serialization_failure", err: fmt.Errorf("advance chain: %w", &pgconn.PgError{Code: "40001"}), want: ReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: ReasonUniqueViolation},
		{name: "other_pg", err: &pgconn.PgError{Code: "42P01"}, want: ReasonDB},
		{name: "business", err: errors.New("already_registered"), want: ReasonBusinessRule},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyErrorReason(tc.err))
		})
	}
}

func TestObserveRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewVerifactuMetrics(registry, Config{ServiceName: "ancloraflow", Environment: "test"})

	m.ObserveRegistration(120*time.Millisecond, nil)
	m.ObserveRegistration(80*time.Millisecond, &pgconn.PgError{Code: "55P03"})
	m.ObserveRegistration(10*time.Millisecond, errors.New("config_not_enabled"))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.registrations.WithLabelValues(ResultSuccess)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.registrations.WithLabelValues(ResultError)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.registrationErrors.WithLabelValues(ReasonDBLockTimeout)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.registrationErrors.WithLabelValues(ReasonBusinessRule)))
}

func TestObserveChainVerification(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewVerifactuMetrics(registry, Config{})

	m.ObserveChainVerification(true, 3)
	m.ObserveChainVerification(false, 4)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.chainVerifications.WithLabelValues(ResultValid)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.chainVerifications.WithLabelValues(ResultInvalid)))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.chainLength))
}

func TestNewVerifactuMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewVerifactuMetrics(registry, Config{})
	second := NewVerifactuMetrics(registry, Config{})

	first.ObserveCancellation(nil)
	second.ObserveCancellation(nil)

	assert.Equal(t, float64(2), testutil.ToFloat64(first.cancellations.WithLabelValues(ResultSuccess)))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *VerifactuMetrics
	m.ObserveRegistration(time.Second, nil)
	m.ObserveCancellation(errors.New("boom"))
	m.ObserveChainVerification(true, 1)
}
