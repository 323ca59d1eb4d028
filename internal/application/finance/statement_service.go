package finance

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/erp/setoff/internal/domain/finance"
	"github.com/erp/setoff/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ObjectStorage stores exported files
type ObjectStorage interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

var statementHeader = []string{
	"sequence", "transaction_date", "type", "amount", "balance_before", "balance_after",
	"currency", "foreign_amount", "exchange_rate", "source_type", "source_id",
	"transaction_id", "reversal_of_id", "reversed_by_id", "remark",
}

// StatementService renders account statements and uploads them
type StatementService struct {
	scope   TransactionScope
	storage ObjectStorage
	observer
}

// NewStatementService creates a new StatementService
func NewStatementService(scope TransactionScope, storage ObjectStorage, logger *zap.Logger) *StatementService {
	return &StatementService{scope: scope, storage: storage, observer: newObserver(logger)}
}

// SetMetrics sets the metrics recorder
func (s *StatementService) SetMetrics(m *telemetry.SetoffMetrics) {
	s.metrics = m
}

// ExportStatement writes the account's entries in the period as CSV and
// returns the object key
func (s *StatementService) ExportStatement(ctx context.Context, tenantID uuid.UUID, account finance.AccountRef, req ExportStatementRequest) (resp *StatementExportResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "statement", "export",
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrAccount, account.String(),
	)
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "statement.export", start, err) }()

	entries, _, err := s.scope.Reader().Transactions().FindByAccount(ctx, tenantID, account, finance.EntryFilter{
		From: req.From,
		To:   req.To,
	})
	if err != nil {
		return nil, err
	}

	body, err := RenderStatement(entries)
	if err != nil {
		return nil, err
	}
	key := StatementKey(tenantID, account, start)
	if err := s.storage.Put(ctx, key, body, "text/csv"); err != nil {
		return nil, err
	}

	s.log(ctx).Info("statement exported",
		zap.String("account", account.String()),
		zap.String("key", key),
		zap.Int("entries", len(entries)),
	)
	return &StatementExportResponse{Key: key, Entries: len(entries), Bytes: len(body)}, nil
}

// StatementKey is the object key of a statement exported at t
func StatementKey(tenantID uuid.UUID, account finance.AccountRef, t time.Time) string {
	return fmt.Sprintf("statements/%s/%s/%s/%s.csv",
		tenantID, account.Kind, account.ID, t.UTC().Format("20060102T150405Z"))
}

// RenderStatement writes entries as CSV with a header row
func RenderStatement(entries []*finance.FinancialTransaction) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(statementHeader); err != nil {
		return nil, err
	}
	for _, e := range entries {
		row := ToLedgerEntryResponse(e)
		record := []string{
			strconv.FormatInt(row.Sequence, 10),
			row.TransactionDate.Format("2006-01-02"),
			row.Type,
			row.Amount.StringFixed(2),
			row.BalanceBefore.StringFixed(2),
			row.BalanceAfter.StringFixed(2),
			row.Currency,
			"",
			"",
			row.SourceType,
			row.SourceID.String(),
			row.ID.String(),
			optionalID(row.ReversalOfID),
			optionalID(row.ReversedByID),
			row.Remark,
		}
		if row.ForeignAmount != nil {
			record[7] = row.ForeignAmount.StringFixed(2)
		}
		if row.ExchangeRate != nil {
			record[8] = row.ExchangeRate.StringFixed(6)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func optionalID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
