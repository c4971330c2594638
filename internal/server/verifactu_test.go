package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smallbiznis/ancloraflow/internal/clock"
	"github.com/smallbiznis/ancloraflow/internal/config"
	"github.com/smallbiznis/ancloraflow/internal/observability"
	"github.com/smallbiznis/ancloraflow/internal/providers/pdf"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/authority"
	verifactudomain "github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/repository"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/service"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/verifactutest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockVerifactuService struct {
	mock.Mock
}

func (m *mockVerifactuService) CheckRegistrable(ctx context.Context, invoiceID, userID uuid.UUID) error {
	return m.Called(ctx, invoiceID, userID).Error(0)
}

func (m *mockVerifactuService) RegisterInvoice(ctx context.Context, invoiceID, userID uuid.UUID) (verifactudomain.RegistrationResult, error) {
	args := m.Called(ctx, invoiceID, userID)
	return args.Get(0).(verifactudomain.RegistrationResult), args.Error(1)
}

func (m *mockVerifactuService) BatchRegister(ctx context.Context, invoiceIDs []uuid.UUID, userID uuid.UUID) verifactudomain.BatchResult {
	return m.Called(ctx, invoiceIDs, userID).Get(0).(verifactudomain.BatchResult)
}

func (m *mockVerifactuService) RegisterPending(ctx context.Context, userID uuid.UUID) (verifactudomain.BatchResult, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(verifactudomain.BatchResult), args.Error(1)
}

func (m *mockVerifactuService) CancelInvoice(ctx context.Context, invoiceID, userID uuid.UUID, reason string) (verifactudomain.CancellationResult, error) {
	args := m.Called(ctx, invoiceID, userID, reason)
	return args.Get(0).(verifactudomain.CancellationResult), args.Error(1)
}

func (m *mockVerifactuService) VerifyChain(ctx context.Context, userID uuid.UUID, opts verifactudomain.VerifyOptions) (verifactudomain.ChainVerification, error) {
	args := m.Called(ctx, userID, opts)
	return args.Get(0).(verifactudomain.ChainVerification), args.Error(1)
}

func (m *mockVerifactuService) GetConfig(ctx context.Context, userID uuid.UUID) (verifactudomain.Config, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(verifactudomain.Config), args.Error(1)
}

func (m *mockVerifactuService) UpdateConfig(ctx context.Context, userID uuid.UUID, update verifactudomain.ConfigUpdate) (verifactudomain.Config, error) {
	args := m.Called(ctx, userID, update)
	return args.Get(0).(verifactudomain.Config), args.Error(1)
}

func (m *mockVerifactuService) GetLogs(ctx context.Context, userID uuid.UUID, req verifactudomain.ListLogsRequest) (verifactudomain.ListLogsResponse, error) {
	args := m.Called(ctx, userID, req)
	return args.Get(0).(verifactudomain.ListLogsResponse), args.Error(1)
}

func (m *mockVerifactuService) GetInvoiceStatus(ctx context.Context, invoiceID, userID uuid.UUID) (verifactudomain.InvoiceStatusView, error) {
	args := m.Called(ctx, invoiceID, userID)
	return args.Get(0).(verifactudomain.InvoiceStatusView), args.Error(1)
}

func (m *mockVerifactuService) GetStatistics(ctx context.Context, userID uuid.UUID) (verifactudomain.Statistics, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(verifactudomain.Statistics), args.Error(1)
}

func (m *mockVerifactuService) ListPending(ctx context.Context, userID uuid.UUID) ([]verifactudomain.Invoice, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]verifactudomain.Invoice), args.Error(1)
}

func (m *mockVerifactuService) ListRegistered(ctx context.Context, userID uuid.UUID, limit int) ([]verifactudomain.Invoice, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]verifactudomain.Invoice), args.Error(1)
}

func (m *mockVerifactuService) RenderReceipt(ctx context.Context, invoiceID, userID uuid.UUID) (verifactudomain.Receipt, error) {
	args := m.Called(ctx, invoiceID, userID)
	return args.Get(0).(verifactudomain.Receipt), args.Error(1)
}

func newTestServer(svc verifactudomain.Service) *Server {
	gin.SetMode(gin.TestMode)
	engine := NewEngine(observability.Config{}, nil)
	return NewServer(ServerParams{
		Gin:          engine,
		Cfg:          config.Config{Environment: "test"},
		Log:          zap.NewNop(),
		VerifactuSvc: svc,
	})
}

func doRequest(t *testing.T, srv *Server, method, path string, userID uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		req.Header.Set(HeaderUserID, userID.String())
	}
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestRoutesRequireUser(t *testing.T) {
	srv := newTestServer(&mockVerifactuService{})

	rec := doRequest(t, srv, http.MethodGet, "/api/verifactu/statistics", uuid.Nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/verifactu/statistics", nil)
	req.Header.Set(HeaderUserID, "not-a-uuid")
	rec = httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterInvoiceMapsDomainErrors(t *testing.T) {
	userID := uuid.New()
	invoiceID := uuid.New()

	cases := []struct {
		name    string
		err     error
		status  int
		errType string
	}{
		{name: "not_found", err: verifactudomain.ErrInvoiceNotFound, status: http.StatusNotFound, errType: "not_found"},
		{name: "already_registered", err: verifactudomain.ErrAlreadyRegistered, status: http.StatusConflict, errType: "conflict"},
		{name: "chain_conflict", err: verifactudomain.ErrChainConflict, status: http.StatusConflict, errType: "conflict"},
		{name: "not_enabled", err: verifactudomain.ErrConfigNotEnabled, status: http.StatusUnprocessableEntity, errType: "precondition_failed"},
		{name: "certificate", err: verifactudomain.ErrCertificateRequired, status: http.StatusUnprocessableEntity, errType: "precondition_failed"},
		{name: "internal", err: errors.New("boom"), status: http.StatusInternalServerError, errType: "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockVerifactuService{}
			svc.On("CheckRegistrable", mock.Anything, invoiceID, userID).Return(nil)
			svc.On("RegisterInvoice", mock.Anything, invoiceID, userID).
				Return(verifactudomain.RegistrationResult{}, tc.err)

			rec := doRequest(t, newTestServer(svc), http.MethodPost, "/api/verifactu/register/"+invoiceID.String(), userID, nil)

			assert.Equal(t, tc.status, rec.Code)
			payload := decodeError(t, rec)
			assert.Equal(t, tc.errType, payload.Type)
			if tc.status < http.StatusInternalServerError {
				assert.Equal(t, tc.err.Error(), payload.Message)
			} else {
				assert.NotContains(t, payload.Message, "boom")
			}
		})
	}
}

func TestRegisterInvoiceRejectsDraft(t *testing.T) {
	userID := uuid.New()
	invoiceID := uuid.New()
	svc := &mockVerifactuService{}
	svc.On("CheckRegistrable", mock.Anything, invoiceID, userID).Return(verifactudomain.ErrInvoiceDraft)

	rec := doRequest(t, newTestServer(svc), http.MethodPost, "/api/verifactu/register/"+invoiceID.String(), userID, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invoice_is_draft", payload.Errors[0].Code)
	svc.AssertNotCalled(t, "RegisterInvoice", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterInvoiceRejectsMalformedID(t *testing.T) {
	rec := doRequest(t, newTestServer(&mockVerifactuService{}), http.MethodPost, "/api/verifactu/register/123", uuid.New(), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_invoice_id", payload.Errors[0].Code)
}

func TestBatchRegisterValidatesBody(t *testing.T) {
	userID := uuid.New()
	srv := newTestServer(&mockVerifactuService{})

	rec := doRequest(t, srv, http.MethodPost, "/api/verifactu/batch-register", userID, batchRegisterRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/verifactu/batch-register", userID, batchRegisterRequest{InvoiceIDs: []string{"nope"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyChainParsesStrict(t *testing.T) {
	userID := uuid.New()
	svc := &mockVerifactuService{}
	svc.On("VerifyChain", mock.Anything, userID, verifactudomain.VerifyOptions{Strict: true}).
		Return(verifactudomain.ChainVerification{Valid: true, Strict: true}, nil)
	srv := newTestServer(svc)

	rec := doRequest(t, srv, http.MethodGet, "/api/verifactu/verify-chain?strict=true", userID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)

	rec = doRequest(t, srv, http.MethodGet, "/api/verifactu/verify-chain?strict=maybe", userID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetConfigHidesSecrets(t *testing.T) {
	userID := uuid.New()
	path := "/secure/cert.p12"
	password := "hunter22-long-password"
	svc := &mockVerifactuService{}
	svc.On("GetConfig", mock.Anything, userID).Return(verifactudomain.Config{
		UserID:              userID,
		Enabled:             true,
		CertificatePath:     &path,
		CertificatePassword: &password,
	}, nil)

	rec := doRequest(t, newTestServer(svc), http.MethodGet, "/api/verifactu/config", userID, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), password)
	assert.NotContains(t, rec.Body.String(), path)
	assert.Contains(t, rec.Body.String(), `"has_certificate":true`)
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	rec := doRequest(t, newTestServer(&mockVerifactuService{}), http.MethodGet, "/nope", uuid.Nil, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}

func newIntegrationServer(t *testing.T) (*Server, *gorm.DB) {
	t.Helper()

	conn := verifactutest.NewDB(t)
	fc := clock.NewFakeClock(time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	settings := config.DefaultVerifactuSettings()
	settings.TestLatency = 0
	holder := config.NewStaticVerifactuConfigHolder(settings)

	svc := service.NewService(service.Params{
		DB:          conn,
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        repository.Provide(),
		Authorities: authority.NewSelector(authority.Params{Log: zap.NewNop(), Clock: fc, Settings: holder}),
		Clock:       fc,
		Settings:    holder,
		Receipts:    pdf.New(pdf.Params{Log: zap.NewNop(), Clock: fc}),
	})
	return newTestServer(svc), conn
}

func TestRegistrationFlowOverHTTP(t *testing.T) {
	srv, conn := newIntegrationServer(t)
	userID := uuid.New()
	enabled := true

	rec := doRequest(t, srv, http.MethodPut, "/api/verifactu/config", userID, verifactudomain.ConfigUpdate{Enabled: &enabled})
	require.Equal(t, http.StatusOK, rec.Code)

	a := verifactutest.SeedInvoice(t, conn, userID, "F-1", "100.00")
	b := verifactutest.SeedInvoice(t, conn, userID, "F-2", "50.00")

	rec = doRequest(t, srv, http.MethodPost, "/api/verifactu/register/"+a.ID.String(), userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/verifactu/register/"+a.ID.String(), userID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/verifactu/batch-register", userID, batchRegisterRequest{
		InvoiceIDs: []string{b.ID.String(), uuid.NewString()},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var batch struct {
		Data verifactudomain.BatchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batch))
	assert.Equal(t, 1, batch.Data.Successful)
	assert.Equal(t, 1, batch.Data.Failed)

	rec = doRequest(t, srv, http.MethodPost, "/api/verifactu/cancel/"+a.ID.String(), userID, cancelInvoiceRequest{Reason: "typo"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/verifactu/verify-chain?strict=true", userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report struct {
		Data verifactudomain.ChainVerification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Data.Valid)
	assert.Equal(t, 2, report.Data.TotalInvoices)

	rec = doRequest(t, srv, http.MethodGet, "/api/verifactu/receipt/"+a.ID.String(), userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "verifactu-receipt-f-1.pdf")

	rec = doRequest(t, srv, http.MethodGet, "/api/verifactu/logs?page_size=2", userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs struct {
		Data     []verifactudomain.Log `json:"data"`
		PageInfo struct {
			HasMore bool `json:"has_more"`
		} `json:"page_info"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	assert.Len(t, logs.Data, 2)
	assert.True(t, logs.PageInfo.HasMore)

	rec = doRequest(t, srv, http.MethodGet, "/api/verifactu/statistics", userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalCancelled":1`)
}
