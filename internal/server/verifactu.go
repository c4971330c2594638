package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	verifactudomain "github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
)

// configView never exposes the certificate path or password.
type configView struct {
	Enabled         bool      `json:"enabled"`
	AutoRegister    bool      `json:"auto_register"`
	TestMode        bool      `json:"test_mode"`
	SoftwareNIF     *string   `json:"software_nif,omitempty"`
	SoftwareName    *string   `json:"software_name,omitempty"`
	SoftwareVersion *string   `json:"software_version,omitempty"`
	SoftwareLicense *string   `json:"software_license,omitempty"`
	HasCertificate  bool      `json:"has_certificate"`
	LastChainIndex  int64     `json:"last_chain_index"`
	LastChainHash   *string   `json:"last_chain_hash,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func newConfigView(cfg verifactudomain.Config) configView {
	return configView{
		Enabled:         cfg.Enabled,
		AutoRegister:    cfg.AutoRegister,
		TestMode:        cfg.TestMode,
		SoftwareNIF:     cfg.SoftwareNIF,
		SoftwareName:    cfg.SoftwareName,
		SoftwareVersion: cfg.SoftwareVersion,
		SoftwareLicense: cfg.SoftwareLicense,
		HasCertificate:  cfg.HasCertificate(),
		LastChainIndex:  cfg.LastChainIndex,
		LastChainHash:   cfg.LastChainHash,
		CreatedAt:       cfg.CreatedAt,
		UpdatedAt:       cfg.UpdatedAt,
	}
}

type batchRegisterRequest struct {
	InvoiceIDs []string `json:"invoiceIds"`
}

type cancelInvoiceRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) GetVerifactuConfig(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	cfg, err := s.verifactuSvc.GetConfig(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newConfigView(cfg)})
}

func (s *Server) UpdateVerifactuConfig(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req verifactudomain.ConfigUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	cfg, err := s.verifactuSvc.UpdateConfig(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newConfigView(cfg)})
}

func (s *Server) RegisterInvoice(c *gin.Context) {
	userID, invoiceID, ok := invoiceRequestIDs(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := s.verifactuSvc.CheckRegistrable(ctx, invoiceID, userID); err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.verifactuSvc.RegisterInvoice(ctx, invoiceID, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) BatchRegister(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req batchRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.InvoiceIDs) == 0 {
		AbortWithError(c, newValidationError("invoiceIds", "required", "invoiceIds is required"))
		return
	}

	invoiceIDs := make([]uuid.UUID, 0, len(req.InvoiceIDs))
	for _, raw := range req.InvoiceIDs {
		invoiceID, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil || invoiceID == uuid.Nil {
			AbortWithError(c, newValidationError("invoiceIds", "invalid_invoice_id", "invalid invoice id: "+raw))
			return
		}
		invoiceIDs = append(invoiceIDs, invoiceID)
	}

	result := s.verifactuSvc.BatchRegister(c.Request.Context(), invoiceIDs, userID)
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) RegisterPending(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	result, err := s.verifactuSvc.RegisterPending(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) CancelInvoice(c *gin.Context) {
	userID, invoiceID, ok := invoiceRequestIDs(c)
	if !ok {
		return
	}

	var req cancelInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.verifactuSvc.CancelInvoice(c.Request.Context(), invoiceID, userID, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) GetInvoiceStatus(c *gin.Context) {
	userID, invoiceID, ok := invoiceRequestIDs(c)
	if !ok {
		return
	}

	status, err := s.verifactuSvc.GetInvoiceStatus(c.Request.Context(), invoiceID, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status})
}

func (s *Server) GetReceipt(c *gin.Context) {
	userID, invoiceID, ok := invoiceRequestIDs(c)
	if !ok {
		return
	}

	receipt, err := s.verifactuSvc.RenderReceipt(c.Request.Context(), invoiceID, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", receipt.Filename))
	c.Data(http.StatusOK, receipt.ContentType, receipt.Body)
}

func (s *Server) GetStatistics(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	stats, err := s.verifactuSvc.GetStatistics(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (s *Server) ListPending(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	items, err := s.verifactuSvc.ListPending(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) ListRegistered(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil || (limit != nil && *limit < 0) {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	value := 0
	if limit != nil {
		value = *limit
	}
	items, err := s.verifactuSvc.ListRegistered(c.Request.Context(), userID, value)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) ListLogs(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req verifactudomain.ListLogsRequest
	if err := c.ShouldBindQuery(&req.Pagination); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.PageSize < 0 {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "invalid page size"))
		return
	}

	invoiceID, err := parseOptionalUUID(c.Query("invoice_id"))
	if err != nil {
		AbortWithError(c, newValidationError("invoice_id", "invalid_invoice_id", "invalid invoice id"))
		return
	}
	req.InvoiceID = invoiceID
	req.Action = strings.TrimSpace(c.Query("action"))

	resp, err := s.verifactuSvc.GetLogs(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Logs,
		"page_info": resp.PageInfo,
	})
}

func (s *Server) VerifyChain(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	strict, err := parseOptionalBool(c.Query("strict"))
	if err != nil {
		AbortWithError(c, newValidationError("strict", "invalid_strict", "invalid strict flag"))
		return
	}

	opts := verifactudomain.VerifyOptions{}
	if strict != nil {
		opts.Strict = *strict
	}

	report, err := s.verifactuSvc.VerifyChain(c.Request.Context(), userID, opts)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

func invoiceRequestIDs(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}

	invoiceID, err := uuid.Parse(strings.TrimSpace(c.Param("invoiceId")))
	if err != nil || invoiceID == uuid.Nil {
		AbortWithError(c, newValidationError("invoiceId", "invalid_invoice_id", "invalid invoice id"))
		return uuid.Nil, uuid.Nil, false
	}
	return userID, invoiceID, true
}
