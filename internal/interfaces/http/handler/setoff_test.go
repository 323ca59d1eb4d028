package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	appfinance "github.com/erp/setoff/internal/application/finance"
	"github.com/erp/setoff/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *apiFixture) registerLine(t *testing.T, kind string, partyID uuid.UUID, amount string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	w := f.do(t, http.MethodPost, "/source-lines", gin.H{
		"source_kind":     kind,
		"source_id":       id,
		"party_id":        partyID,
		"original_amount": amount,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return id
}

func documentBody(partyID, lineID uuid.UUID, paid, settled string) gin.H {
	return gin.H{
		"direction":     "RECEIVABLE",
		"document_date": "2024-03-01T00:00:00Z",
		"company_id":    uuid.New(),
		"party_id":      partyID,
		"payments":      []gin.H{{"amount": paid, "allowance": "0"}},
		"details": []gin.H{{
			"source_kind": "DELIVERY_LINE",
			"source_id":   lineID,
			"settled":     settled,
			"allowance":   "0",
		}},
	}
}

func TestSetoffHandler_CreateGetVoid(t *testing.T) {
	f := newAPIFixture(t)
	partyID := uuid.New()
	lineID := f.registerLine(t, "DELIVERY_LINE", partyID, "1000")

	w := f.do(t, http.MethodPost, "/setoff-documents", documentBody(partyID, lineID, "600", "600"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var doc appfinance.SetoffDocumentResponse
	assert.True(t, decode(t, w, &doc).Success)
	assert.Equal(t, "ACTIVE", doc.Status)
	assert.True(t, decimal.NewFromInt(600).Equal(doc.TotalAmount))

	w = f.do(t, http.MethodGet, "/setoff-documents/"+doc.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stored appfinance.SetoffDocumentResponse
	decode(t, w, &stored)
	assert.Equal(t, doc.Code, stored.Code)

	w = f.do(t, http.MethodGet, "/source-lines/DELIVERY_LINE/"+lineID.String()+"/outstanding", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view appfinance.SourceLineResponse
	decode(t, w, &view)
	assert.True(t, decimal.NewFromInt(400).Equal(view.Outstanding))

	w = f.do(t, http.MethodPost, "/setoff-documents/"+doc.ID.String()+"/void", gin.H{"reason": "entered twice"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var voided appfinance.SetoffDocumentResponse
	decode(t, w, &voided)
	assert.Equal(t, "VOIDED", voided.Status)
	assert.Equal(t, "entered twice", voided.VoidReason)

	w = f.do(t, http.MethodPost, "/setoff-documents/"+doc.ID.String()+"/void", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidState, errorOf(t, w).Code)
}

func TestSetoffHandler_Create_Validation(t *testing.T) {
	f := newAPIFixture(t)
	body := documentBody(uuid.New(), uuid.New(), "-5", "0")

	w := f.do(t, http.MethodPost, "/setoff-documents", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	info := errorOf(t, w)
	assert.Equal(t, dto.ErrCodeValidation, info.Code)
	require.NotEmpty(t, info.Details)
	assert.Equal(t, "payments[0].amount", info.Details[0].Field)
}

func TestSetoffHandler_Create_MalformedBody(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/setoff-documents", nil)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", f.tenantID.String())
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidJSON, errorOf(t, w).Code)
}

func TestSetoffHandler_Create_BusinessRejections(t *testing.T) {
	f := newAPIFixture(t)
	partyID := uuid.New()
	lineID := f.registerLine(t, "DELIVERY_LINE", partyID, "100")

	t.Run("over settlement", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/setoff-documents", documentBody(partyID, lineID, "150", "150"))
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		info := errorOf(t, w)
		assert.Equal(t, dto.ErrCodeOverSettlement, info.Code)
		assertDecimalField(t, "100", info.Context["outstanding"])
		assertDecimalField(t, "150", info.Context["requested"])
		assert.False(t, info.Retryable)
	})

	t.Run("unbalanced", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/setoff-documents", documentBody(partyID, lineID, "50", "60"))
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		info := errorOf(t, w)
		assert.Equal(t, dto.ErrCodeUnbalancedDocument, info.Code)
		assert.Equal(t, "CASH", info.Context["side"])
	})

	t.Run("unknown line", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/setoff-documents", documentBody(partyID, uuid.New(), "10", "10"))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, errorOf(t, w).Code)
	})
}

func TestSetoffHandler_List(t *testing.T) {
	f := newAPIFixture(t)
	partyID := uuid.New()
	lineID := f.registerLine(t, "DELIVERY_LINE", partyID, "1000")
	for range 3 {
		w := f.do(t, http.MethodPost, "/setoff-documents", documentBody(partyID, lineID, "100", "100"))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := f.do(t, http.MethodGet, "/setoff-documents?party_id="+partyID.String()+"&page=1&page_size=2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var items []appfinance.SetoffDocumentResponse
	resp := decode(t, w, &items)
	assert.Len(t, items, 2)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(3), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.TotalPages)

	w = f.do(t, http.MethodGet, "/setoff-documents?status=DRAFT", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetoffHandler_BadPathAndTenant(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/setoff-documents/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/setoff-documents/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/setoff-documents", nil)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func assertDecimalField(t *testing.T, expected string, actual any) {
	t.Helper()
	s, ok := actual.(string)
	require.True(t, ok, "expected decimal string, got %v", actual)
	assert.True(t, decimal.RequireFromString(expected).Equal(decimal.RequireFromString(s)), "expected %s, got %s", expected, s)
}
