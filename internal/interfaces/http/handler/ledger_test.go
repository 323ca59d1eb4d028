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

func TestLedgerHandler_RecordReverseAndQuery(t *testing.T) {
	f := newAPIFixture(t)
	accountID := uuid.New()
	account := "/ledger/accounts/COMPANY_CASH/" + accountID.String()

	var first appfinance.LedgerEntryResponse
	for _, amount := range []string{"100", "-30"} {
		w := f.do(t, http.MethodPost, "/ledger/entries", gin.H{
			"account_kind":     "COMPANY_CASH",
			"account_id":       accountID,
			"amount":           amount,
			"type":             "ADJUSTMENT",
			"transaction_date": "2024-03-01T00:00:00Z",
			"source_type":      "MANUAL",
			"source_id":        uuid.New(),
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		if first.ID == uuid.Nil {
			decode(t, w, &first)
		}
	}

	w := f.do(t, http.MethodGet, account+"/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var balance appfinance.AccountBalanceResponse
	decode(t, w, &balance)
	assert.True(t, decimal.NewFromInt(70).Equal(balance.Balance))
	assert.Equal(t, int64(2), balance.Sequence)

	w = f.do(t, http.MethodPost, "/ledger/entries/"+first.ID.String()+"/reverse", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var pair appfinance.ReversalPairResponse
	decode(t, w, &pair)
	assert.True(t, pair.Net.IsZero())
	assert.Equal(t, "REVERSAL", pair.Reversal.Type)

	w = f.do(t, http.MethodPost, "/ledger/entries/"+first.ID.String()+"/reverse", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeAlreadyReversed, errorOf(t, w).Code)

	w = f.do(t, http.MethodGet, "/ledger/entries/"+first.ID.String()+"/reversal", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, account+"/entries?page=1&page_size=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []appfinance.LedgerEntryResponse
	resp := decode(t, w, &entries)
	assert.Len(t, entries, 2)
	assert.Equal(t, int64(3), resp.Meta.Total)

	w = f.do(t, http.MethodGet, account+"/verify", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var check appfinance.ChainCheckResponse
	decode(t, w, &check)
	assert.True(t, check.Intact)
	assert.Equal(t, 3, check.Entries)

	w = f.do(t, http.MethodPost, account+"/statements", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var export appfinance.StatementExportResponse
	decode(t, w, &export)
	assert.Equal(t, 3, export.Entries)
	_, ok := f.objects.Get(export.Key)
	assert.True(t, ok)
}

func TestLedgerHandler_Rejects(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("unknown account kind", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/ledger/accounts/WALLET/"+uuid.NewString()+"/balance", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, errorOf(t, w).Code)
	})

	t.Run("reversal type cannot be posted", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/ledger/entries", gin.H{
			"account_kind": "PARTY",
			"account_id":   uuid.New(),
			"amount":       "10",
			"type":         "REVERSAL",
			"source_type":  "MANUAL",
			"source_id":    uuid.New(),
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "type", errorOf(t, w).Details[0].Field)
	})

	t.Run("unknown entry", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/ledger/entries/"+uuid.NewString()+"/reverse", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
