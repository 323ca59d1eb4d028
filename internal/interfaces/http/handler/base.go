package handler

import (
	"errors"
	"net/http"

	"github.com/erp/setoff/internal/domain/finance"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/logger"
	"github.com/erp/setoff/internal/interfaces/http/dto"
	"github.com/erp/setoff/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// BindError answers a failed ShouldBind call: field level details for
// validation failures, a plain 400 for malformed bodies.
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	if details := middleware.ValidationDetails(err); details != nil {
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
			"Request validation failed", middleware.GetRequestID(c), details))
		return
	}
	h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Malformed request body or query")
}

// HandleError converts an application error into a response. Domain errors
// keep their message; infrastructure failures are reported as retryable 503
// without driver detail; anything else is a 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	requestID := middleware.GetRequestID(c)

	if errors.Is(err, shared.ErrInfrastructure) {
		logger.L(c.Request.Context()).Error("request failed on infrastructure", zap.Error(err))
		code := dto.NormalizeErrorCode(shared.ErrInfrastructure.Code)
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, shared.ErrInfrastructure.Message, requestID))
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		resp := dto.NewErrorResponseWithRequestID(domainErr.Code, err.Error(), requestID)
		resp.Error.Context = errorContext(err)
		var verr *shared.ValidationError
		if errors.As(err, &verr) && verr.Field != "" {
			resp.Error.Details = []dto.ValidationDetail{{Field: verr.Field, Message: verr.Message}}
		}
		c.JSON(dto.GetHTTPStatus(resp.Error.Code), resp)
		return
	}

	logger.L(c.Request.Context()).Error("unexpected error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}

// errorContext exposes the amounts behind a business rejection
func errorContext(err error) map[string]any {
	var over *finance.OverSettlementError
	if errors.As(err, &over) {
		return map[string]any{
			"source_kind": over.Line.Kind(),
			"source_id":   over.Line.LineID(),
			"requested":   over.Requested,
			"outstanding": over.Outstanding,
		}
	}
	var unbalanced *finance.UnbalancedDocumentError
	if errors.As(err, &unbalanced) {
		return map[string]any{
			"side":      unbalanced.Side,
			"funds":     unbalanced.Funds,
			"allocated": unbalanced.Allocated,
		}
	}
	var insufficient *finance.InsufficientCreditError
	if errors.As(err, &insufficient) {
		return map[string]any{
			"prepayment_id": insufficient.PrepaymentID,
			"requested":     insufficient.Requested,
			"available":     insufficient.Available,
		}
	}
	return nil
}

// tenantID returns the tenant resolved by the auth middleware, answering 401
// when it is missing
func (h *BaseHandler) tenantID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.GetTenantID(c)
	if !ok {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Tenant context required")
	}
	return id, ok
}

// uuidParam parses a UUID path parameter, answering 400 when malformed
func (h *BaseHandler) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// accountParam parses the :kind/:id pair of ledger routes
func (h *BaseHandler) accountParam(c *gin.Context) (finance.AccountRef, bool) {
	ref, err := finance.ParseAccountRef(c.Param("kind"), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return finance.AccountRef{}, false
	}
	return ref, true
}
