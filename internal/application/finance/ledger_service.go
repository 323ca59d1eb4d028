package finance

import (
	"context"
	"time"

	"github.com/erp/setoff/internal/domain/finance"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerService appends financial transactions to account balance chains
// and reverses them. Entries are never updated or deleted apart from the
// reversed_by link.
type LedgerService struct {
	scope TransactionScope
	observer
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(scope TransactionScope, logger *zap.Logger) *LedgerService {
	return &LedgerService{scope: scope, observer: newObserver(logger)}
}

// SetMetrics sets the metrics recorder
func (s *LedgerService) SetMetrics(m *telemetry.SetoffMetrics) {
	s.metrics = m
}

// Record posts a manual entry to an account
func (s *LedgerService) Record(ctx context.Context, tenantID uuid.UUID, req RecordEntryRequest) (resp *LedgerEntryResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "record",
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrAccount, req.AccountKind+":"+req.AccountID.String(),
	)
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "ledger.record", start, err) }()

	if req.SourceType == finance.DocumentTypeSetoff {
		return nil, shared.NewValidationError("source_type", "setoff document entries are posted by committing the document")
	}
	account := finance.AccountRef{Kind: finance.AccountKind(req.AccountKind), ID: req.AccountID}
	foreign, err := parseForeign(req.Currency, req.ForeignAmount, req.ExchangeRate)
	if err != nil {
		return nil, err
	}
	posting := finance.PostingRequest{
		Account:         account,
		Amount:          req.Amount,
		Type:            finance.TransactionType(req.Type),
		TransactionDate: req.TransactionDate,
		Source:          finance.DocumentRef{Type: req.SourceType, ID: req.SourceID},
		Foreign:         foreign,
		Remark:          req.Remark,
	}

	var entry *finance.FinancialTransaction
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var postErr error
		entry, postErr = s.post(ctx, repos, tenantID, posting, nil)
		return postErr
	})
	if err != nil {
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrAmount, entry.Amount.String())
	s.log(ctx).Info("ledger entry recorded",
		zap.String("account", account.String()),
		zap.Int64("sequence", entry.Sequence),
		zap.String("amount", entry.Amount.String()),
	)
	out := ToLedgerEntryResponse(entry)
	return &out, nil
}

// Reverse cancels an entry by appending its negation. An entry can be
// reversed once, and a reversal cannot itself be reversed. Entries posted by
// a setoff document are only reversed by voiding that document.
func (s *LedgerService) Reverse(ctx context.Context, tenantID, transactionID uuid.UUID) (resp *ReversalPairResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "reverse",
		telemetry.SpanAttrTenantID, tenantID.String(),
		"ledger.transaction_id", transactionID.String(),
	)
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "ledger.reverse", start, err) }()

	var pair finance.ReversalPair
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var revErr error
		pair, revErr = s.reverse(ctx, repos, tenantID, transactionID)
		return revErr
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx).Info("ledger entry reversed",
		zap.String("transaction_id", transactionID.String()),
		zap.String("reversal_id", pair.Reversal.ID.String()),
	)
	out := toReversalPairResponse(pair)
	return &out, nil
}

// GetBalance returns the running balance of an account
func (s *LedgerService) GetBalance(ctx context.Context, tenantID uuid.UUID, account finance.AccountRef) (*AccountBalanceResponse, error) {
	head, err := s.scope.Reader().Balances().Find(ctx, tenantID, account)
	if err != nil {
		return nil, err
	}
	return &AccountBalanceResponse{
		AccountKind: string(account.Kind),
		AccountID:   account.ID,
		Balance:     head.Balance,
		Sequence:    head.Sequence,
	}, nil
}

// ListAccountEntries returns an account statement in sequence order
func (s *LedgerService) ListAccountEntries(ctx context.Context, tenantID uuid.UUID, account finance.AccountRef, filter EntryListFilter) (*shared.Paginated[LedgerEntryResponse], error) {
	page := shared.PageRequest{Page: filter.Page, PageSize: filter.PageSize}.Normalize()
	entries, total, err := s.scope.Reader().Transactions().FindByAccount(ctx, tenantID, account, finance.EntryFilter{
		PageRequest: page,
		From:        filter.From,
		To:          filter.To,
	})
	if err != nil {
		return nil, err
	}
	items := make([]LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, ToLedgerEntryResponse(e))
	}
	result := shared.NewPaginated(items, total, page)
	return &result, nil
}

// GetReversalPair returns an entry together with the entry that reversed it.
// Either side of the pair may be passed.
func (s *LedgerService) GetReversalPair(ctx context.Context, tenantID, transactionID uuid.UUID) (*ReversalPairResponse, error) {
	repo := s.scope.Reader().Transactions()
	entry, err := repo.FindByID(ctx, tenantID, transactionID)
	if err != nil {
		return nil, err
	}

	var original, reversal *finance.FinancialTransaction
	switch {
	case entry.IsReversal():
		reversal = entry
		if original, err = repo.FindByID(ctx, tenantID, *entry.ReversalOfID); err != nil {
			return nil, err
		}
	case entry.IsReversed():
		original = entry
		if reversal, err = repo.FindByID(ctx, tenantID, *entry.ReversedByID); err != nil {
			return nil, err
		}
	default:
		return nil, shared.NewInvalidStateError("financial transaction %s has not been reversed", transactionID)
	}

	pair, err := finance.NewReversalPair(original, reversal)
	if err != nil {
		return nil, err
	}
	out := toReversalPairResponse(pair)
	return &out, nil
}

// VerifyAccountChain replays every entry of an account and reports the first
// broken link, if any
func (s *LedgerService) VerifyAccountChain(ctx context.Context, tenantID uuid.UUID, account finance.AccountRef) (*ChainCheckResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "verify_chain",
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrAccount, account.String(),
	)
	defer span.End()

	reader := s.scope.Reader()
	entries, _, err := reader.Transactions().FindByAccount(ctx, tenantID, account, finance.EntryFilter{})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	head, err := reader.Balances().Find(ctx, tenantID, account)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	resp := &ChainCheckResponse{
		AccountKind: string(account.Kind),
		AccountID:   account.ID,
		Entries:     len(entries),
		Balance:     head.Balance,
		Intact:      true,
	}
	brk := finance.VerifyChain(entries)
	if brk == nil && len(entries) > 0 {
		last := entries[len(entries)-1]
		if last.Sequence != head.Sequence || !last.BalanceAfter.Equal(head.Balance) {
			brk = &finance.ChainBreak{TransactionID: last.ID, Sequence: last.Sequence, Reason: "account head does not match last entry"}
		}
	}
	if brk != nil {
		resp.Intact = false
		resp.BreakAt = &brk.Sequence
		resp.BreakID = &brk.TransactionID
		resp.Reason = brk.Reason
		s.log(ctx).Warn("ledger chain broken",
			zap.String("account", account.String()),
			zap.Int64("sequence", brk.Sequence),
			zap.String("reason", brk.Reason),
		)
	}
	return resp, nil
}

// post appends one entry under the account head lock. reversalOf is set only
// when posting the negation of an existing entry.
func (s *LedgerService) post(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, req finance.PostingRequest, reversalOf *uuid.UUID) (*finance.FinancialTransaction, error) {
	if reversalOf == nil {
		if err := req.Validate(); err != nil {
			return nil, err
		}
	}

	head, err := repos.Balances().FindForUpdate(ctx, tenantID, req.Account)
	if err != nil {
		return nil, err
	}
	entry := head.Post(req)
	entry.ReversalOfID = reversalOf

	if err := repos.Transactions().Create(ctx, entry); err != nil {
		return nil, err
	}
	if err := repos.Balances().SaveWithLock(ctx, head); err != nil {
		return nil, err
	}
	s.metrics.LedgerPosted(ctx, string(entry.Type))
	return entry, nil
}

func (s *LedgerService) reverse(ctx context.Context, repos TransactionalRepositories, tenantID, transactionID uuid.UUID) (finance.ReversalPair, error) {
	original, err := repos.Transactions().FindByIDForUpdate(ctx, tenantID, transactionID)
	if err != nil {
		return finance.ReversalPair{}, err
	}
	if original.Source.Type == finance.DocumentTypeSetoff {
		return finance.ReversalPair{}, shared.NewInvalidStateError(
			"transaction %s was posted by setoff document %s, void the document instead", original.ID, original.Source.ID)
	}
	return s.reverseEntry(ctx, repos, original)
}

// reverseEntry reverses an entry that is already locked by the caller
func (s *LedgerService) reverseEntry(ctx context.Context, repos TransactionalRepositories, original *finance.FinancialTransaction) (finance.ReversalPair, error) {
	req, err := original.ReversalRequest()
	if err != nil {
		return finance.ReversalPair{}, err
	}
	originalID := original.ID
	reversal, err := s.post(ctx, repos, original.TenantID, req, &originalID)
	if err != nil {
		return finance.ReversalPair{}, err
	}
	if err := original.MarkReversedBy(reversal.ID); err != nil {
		return finance.ReversalPair{}, err
	}
	if err := repos.Transactions().MarkReversed(ctx, original); err != nil {
		return finance.ReversalPair{}, err
	}
	return finance.NewReversalPair(original, reversal)
}

func toReversalPairResponse(pair finance.ReversalPair) ReversalPairResponse {
	return ReversalPairResponse{
		Original: ToLedgerEntryResponse(pair.Original),
		Reversal: ToLedgerEntryResponse(pair.Reversal),
		Net:      pair.Net(),
	}
}
