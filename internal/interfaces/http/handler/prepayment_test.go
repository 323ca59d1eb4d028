package handler

import (
	"net/http"
	"testing"

	appfinance "github.com/erp/setoff/internal/application/finance"
	"github.com/erp/setoff/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepaymentHandler_Lifecycle(t *testing.T) {
	f := newAPIFixture(t)
	partyID := uuid.New()

	w := f.do(t, http.MethodPost, "/prepayments", gin.H{
		"party_id":    partyID,
		"direction":   "RECEIVABLE",
		"amount":      "500",
		"source_code": "PP-001",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var prep appfinance.PrepaymentResponse
	decode(t, w, &prep)
	assert.True(t, decimal.NewFromInt(500).Equal(prep.Available))

	w = f.do(t, http.MethodPost, "/prepayments/"+prep.ID.String()+"/usages", gin.H{
		"document_id": uuid.New(),
		"amount":      "200",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var usage appfinance.PrepaymentUsageResponse
	decode(t, w, &usage)

	w = f.do(t, http.MethodGet, "/prepayments/"+prep.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &prep)
	assert.True(t, decimal.NewFromInt(300).Equal(prep.Available))

	w = f.do(t, http.MethodGet, "/prepayments/"+prep.ID.String()+"/verify", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var check appfinance.PrepaymentCheckResponse
	decode(t, w, &check)
	assert.True(t, check.Consistent)

	w = f.do(t, http.MethodPost, "/prepayment-usages/"+usage.ID.String()+"/reverse", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/prepayment-usages/"+usage.ID.String()+"/reverse", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeAlreadyReversed, errorOf(t, w).Code)

	w = f.do(t, http.MethodGet, "/prepayments?party_id="+partyID.String()+"&only_available=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []appfinance.PrepaymentResponse
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.True(t, decimal.NewFromInt(500).Equal(list[0].Available))
}

func TestPrepaymentHandler_InsufficientCredit(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodPost, "/prepayments", gin.H{
		"party_id":    uuid.New(),
		"direction":   "PAYABLE",
		"amount":      "100",
		"source_code": "PP-002",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var prep appfinance.PrepaymentResponse
	decode(t, w, &prep)

	w = f.do(t, http.MethodPost, "/prepayments/"+prep.ID.String()+"/usages", gin.H{
		"document_id": uuid.New(),
		"amount":      "150",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	info := errorOf(t, w)
	assert.Equal(t, dto.ErrCodeInsufficientCredit, info.Code)
	assert.Equal(t, prep.ID.String(), info.Context["prepayment_id"])
	assertDecimalField(t, "100", info.Context["available"])
}

func TestPrepaymentHandler_Validation(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/prepayments", gin.H{
		"party_id":    uuid.New(),
		"direction":   "SIDEWAYS",
		"amount":      "0",
		"source_code": "PP-003",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := map[string]bool{}
	for _, d := range errorOf(t, w).Details {
		fields[d.Field] = true
	}
	assert.True(t, fields["direction"])
	assert.True(t, fields["amount"])

	w = f.do(t, http.MethodGet, "/prepayments", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
