package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	appfinance "github.com/erp/setoff/internal/application/finance"
	"github.com/erp/setoff/internal/infrastructure/event"
	"github.com/erp/setoff/internal/infrastructure/persistence"
	"github.com/erp/setoff/internal/infrastructure/persistence/models"
	"github.com/erp/setoff/internal/infrastructure/storage"
	"github.com/erp/setoff/internal/interfaces/http/dto"
	"github.com/erp/setoff/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := middleware.SetupValidator(); err != nil {
		panic(err)
	}
}

type apiFixture struct {
	engine   *gin.Engine
	db       *gorm.DB
	objects  *storage.MemoryObjectStorage
	tenantID uuid.UUID
}

// newAPIFixture mounts every handler on real services over in-memory sqlite.
// The tenant comes from X-Tenant-ID.
func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	scope := persistence.NewGormTransactionScope(db, event.NewSetoffEventSerializer())
	log := zap.NewNop()
	ledger := appfinance.NewLedgerService(scope, log)
	prepayments := appfinance.NewPrepaymentService(scope, log)
	setoff := appfinance.NewSetoffService(scope, ledger, prepayments, log)
	objects := storage.NewMemoryObjectStorage()

	documents := NewSetoffHandler(setoff)
	lines := NewSourceLineHandler(appfinance.NewSourceLineService(scope, log), setoff)
	credit := NewPrepaymentHandler(prepayments)
	entries := NewLedgerHandler(ledger, appfinance.NewStatementService(scope, objects, log))
	tax := NewTaxHandler(appfinance.NewTaxService())

	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.Auth(middleware.AuthConfig{Disabled: true}))
	api := engine.Group("/api/v1")
	api.POST("/setoff-documents", documents.Create)
	api.GET("/setoff-documents", documents.List)
	api.GET("/setoff-documents/:id", documents.Get)
	api.POST("/setoff-documents/:id/void", documents.Void)
	api.POST("/source-lines", lines.Register)
	api.GET("/source-lines/outstanding", lines.ListOutstanding)
	api.GET("/source-lines/:kind/:id/outstanding", lines.Outstanding)
	api.POST("/prepayments", credit.Create)
	api.GET("/prepayments", credit.List)
	api.GET("/prepayments/:id", credit.Get)
	api.GET("/prepayments/:id/verify", credit.Verify)
	api.POST("/prepayments/:id/usages", credit.ApplyUsage)
	api.POST("/prepayment-usages/:id/reverse", credit.ReverseUsage)
	api.POST("/ledger/entries", entries.Record)
	api.POST("/ledger/entries/:id/reverse", entries.Reverse)
	api.GET("/ledger/entries/:id/reversal", entries.GetReversal)
	api.GET("/ledger/accounts/:kind/:id/balance", entries.Balance)
	api.GET("/ledger/accounts/:kind/:id/entries", entries.Entries)
	api.GET("/ledger/accounts/:kind/:id/verify", entries.Verify)
	api.POST("/ledger/accounts/:kind/:id/statements", entries.ExportStatement)
	api.POST("/tax/calculate", tax.Calculate)

	return &apiFixture{engine: engine, db: db, objects: objects, tenantID: uuid.New()}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequestWithContext(context.Background(), method, "/api/v1"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.TenantHeaderKey, f.tenantID.String())
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

// decode unmarshals the envelope and its data into out
func decode(t *testing.T, w *httptest.ResponseRecorder, out any) dto.Response {
	t.Helper()
	var envelope struct {
		dto.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, out), w.Body.String())
	}
	return envelope.Response
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	resp := decode(t, w, nil)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error, w.Body.String())
	return resp.Error
}
