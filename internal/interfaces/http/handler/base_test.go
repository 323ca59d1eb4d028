package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func handleError(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	(&BaseHandler{}).HandleError(c, err)
	return w
}

func TestHandleError(t *testing.T) {
	t.Run("infrastructure hides driver detail", func(t *testing.T) {
		w := handleError(t, shared.WrapInfrastructure("find line", errors.New("dial tcp 10.0.0.3:5432: refused")))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		info := errorOf(t, w)
		assert.Equal(t, dto.ErrCodeUnavailable, info.Code)
		assert.True(t, info.Retryable)
		assert.NotContains(t, info.Message, "10.0.0.3")
	})

	t.Run("concurrency conflict", func(t *testing.T) {
		w := handleError(t, shared.NewConcurrencyConflictError("source line", uuid.New()))
		assert.Equal(t, http.StatusConflict, w.Code)
		info := errorOf(t, w)
		assert.Equal(t, dto.ErrCodeConcurrencyConflict, info.Code)
		assert.False(t, info.Retryable)
	})

	t.Run("validation carries field", func(t *testing.T) {
		w := handleError(t, shared.NewValidationError("code", "too long"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		info := errorOf(t, w)
		assert.Equal(t, "code", info.Details[0].Field)
	})

	t.Run("unknown error", func(t *testing.T) {
		w := handleError(t, context.DeadlineExceeded)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, dto.ErrCodeInternal, errorOf(t, w).Code)
	})
}
