package finance_test

import (
	"context"
	"testing"
	"time"

	appfinance "github.com/erp/setoff/internal/application/finance"
	"github.com/erp/setoff/internal/domain/finance"
	"github.com/erp/setoff/internal/infrastructure/event"
	"github.com/erp/setoff/internal/infrastructure/persistence"
	"github.com/erp/setoff/internal/infrastructure/persistence/models"
	"github.com/erp/setoff/internal/infrastructure/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fixture struct {
	db          *gorm.DB
	setoff      *appfinance.SetoffService
	ledger      *appfinance.LedgerService
	prepayments *appfinance.PrepaymentService
	lines       *appfinance.SourceLineService
	statements  *appfinance.StatementService
	storage     *storage.MemoryObjectStorage
	tenantID    uuid.UUID
	companyID   uuid.UUID
	partyID     uuid.UUID
}

func newFixture(t *testing.T) *fixture {
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
	objects := storage.NewMemoryObjectStorage()

	return &fixture{
		db:          db,
		setoff:      appfinance.NewSetoffService(scope, ledger, prepayments, log),
		ledger:      ledger,
		prepayments: prepayments,
		lines:       appfinance.NewSourceLineService(scope, log),
		statements:  appfinance.NewStatementService(scope, objects, log),
		storage:     objects,
		tenantID:    uuid.New(),
		companyID:   uuid.New(),
		partyID:     uuid.New(),
	}
}

func (f *fixture) registerLine(t *testing.T, kind finance.SourceKind, amount int64) finance.SourceRef {
	t.Helper()
	ref, err := finance.NewSourceRef(kind, uuid.New())
	require.NoError(t, err)
	_, err = f.lines.RegisterSourceLine(context.Background(), f.tenantID, appfinance.RegisterSourceLineRequest{
		SourceKind:     string(kind),
		SourceID:       ref.LineID(),
		PartyID:        f.partyID,
		OriginalAmount: decimal.NewFromInt(amount),
	})
	require.NoError(t, err)
	return ref
}

func (f *fixture) outstanding(t *testing.T, ref finance.SourceRef) decimal.Decimal {
	t.Helper()
	view, err := f.setoff.GetOutstandingBalance(context.Background(), f.tenantID, ref)
	require.NoError(t, err)
	return view.Outstanding
}

func (f *fixture) cashAccount() finance.AccountRef {
	return finance.AccountRef{Kind: finance.AccountKindCompanyCash, ID: f.companyID}
}

func (f *fixture) cashBalance(t *testing.T) decimal.Decimal {
	t.Helper()
	bal, err := f.ledger.GetBalance(context.Background(), f.tenantID, f.cashAccount())
	require.NoError(t, err)
	return bal.Balance
}

func (f *fixture) createPrepayment(t *testing.T, direction finance.Direction, amount int64) uuid.UUID {
	t.Helper()
	p, err := f.prepayments.CreatePrepayment(context.Background(), f.tenantID, appfinance.CreatePrepaymentRequest{
		PartyID:    f.partyID,
		Direction:  string(direction),
		Amount:     decimal.NewFromInt(amount),
		SourceCode: "PP-001",
	})
	require.NoError(t, err)
	return p.ID
}

// documentRequest is a receivable document dated 2024-03-01 for the fixture party
func (f *fixture) documentRequest() appfinance.CreateSetoffDocumentRequest {
	return appfinance.CreateSetoffDocumentRequest{
		Direction:    string(finance.DirectionReceivable),
		DocumentDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		CompanyID:    f.companyID,
		PartyID:      f.partyID,
	}
}

func allocation(ref finance.SourceRef, settled, allowance int64) appfinance.AllocationRequest {
	return appfinance.AllocationRequest{
		SourceKind: string(ref.Kind()),
		SourceID:   ref.LineID(),
		Settled:    decimal.NewFromInt(settled),
		Allowance:  decimal.NewFromInt(allowance),
	}
}

func cash(amount, allowance int64) appfinance.PaymentLineRequest {
	return appfinance.PaymentLineRequest{
		Amount:    decimal.NewFromInt(amount),
		Allowance: decimal.NewFromInt(allowance),
	}
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual)
}

func (f *fixture) countOutbox(t *testing.T, eventType string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.OutboxEntryModel{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}
