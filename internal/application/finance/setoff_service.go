package finance

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/erp/setoff/internal/domain/finance"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCodePrefix starts generated setoff document codes
const DefaultCodePrefix = "SO"

// SetoffService commits and voids setoff documents. The caller chooses the
// allocation; the service checks it against the locked source lines and the
// document equation and applies its effects in one transaction.
type SetoffService struct {
	scope       TransactionScope
	ledger      *LedgerService
	prepayments *PrepaymentService
	codePrefix  string
	observer
}

// NewSetoffService creates a new SetoffService
func NewSetoffService(scope TransactionScope, ledger *LedgerService, prepayments *PrepaymentService, logger *zap.Logger) *SetoffService {
	return &SetoffService{
		scope:       scope,
		ledger:      ledger,
		prepayments: prepayments,
		codePrefix:  DefaultCodePrefix,
		observer:    newObserver(logger),
	}
}

// SetMetrics sets the metrics recorder
func (s *SetoffService) SetMetrics(m *telemetry.SetoffMetrics) {
	s.metrics = m
}

// SetCodePrefix sets the prefix of generated document codes
func (s *SetoffService) SetCodePrefix(prefix string) {
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		s.codePrefix = prefix
	}
}

// CreateSetoffDocument validates and commits a setoff document
func (s *SetoffService) CreateSetoffDocument(ctx context.Context, tenantID uuid.UUID, req CreateSetoffDocumentRequest) (resp *SetoffDocumentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "setoff", "create",
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrDirection, req.Direction,
	)
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "setoff.create", start, err) }()

	doc, err := s.buildDocument(tenantID, req)
	if err != nil {
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentID, doc.ID.String(),
		telemetry.SpanAttrDocumentCode, doc.Code,
		telemetry.SpanAttrAmount, doc.TotalAmount.String(),
	)

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return s.commit(ctx, repos, doc)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.DocumentCreated(ctx, string(doc.Direction))
	s.log(ctx).Info("setoff document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("code", doc.Code),
		zap.String("direction", string(doc.Direction)),
		zap.String("total_amount", doc.TotalAmount.String()),
		zap.Int("details", len(doc.Details)),
	)
	out := ToSetoffDocumentResponse(doc)
	return &out, nil
}

// buildDocument assembles and seals the document from the request
func (s *SetoffService) buildDocument(tenantID uuid.UUID, req CreateSetoffDocumentRequest) (*finance.SetoffDocument, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = s.generateCode(req.DocumentDate)
	}
	doc, err := finance.NewSetoffDocument(tenantID, code, finance.Direction(req.Direction),
		req.DocumentDate, req.CompanyID, req.PartyID, req.Remark)
	if err != nil {
		return nil, err
	}

	for _, p := range req.Payments {
		foreign, err := parseForeign(p.Currency, p.ForeignAmount, p.ExchangeRate)
		if err != nil {
			return nil, err
		}
		if err := doc.AddPayment(finance.PaymentInput{
			Amount:        p.Amount,
			Allowance:     p.Allowance,
			BankAccountID: p.BankAccountID,
			PaymentMethod: p.PaymentMethod,
			Foreign:       foreign,
		}); err != nil {
			return nil, err
		}
	}
	for i, d := range req.Details {
		ref, err := finance.NewSourceRef(finance.SourceKind(d.SourceKind), d.SourceID)
		if err != nil {
			return nil, shared.NewValidationError(fmt.Sprintf("details[%d].source_kind", i), err.Error())
		}
		if err := doc.AddDetail(ref, d.Settled, d.Allowance); err != nil {
			return nil, err
		}
	}
	for _, u := range req.PrepaymentUsages {
		if err := doc.AddUsage(u.PrepaymentID, u.Amount); err != nil {
			return nil, err
		}
	}
	for _, np := range req.NewPrepayments {
		if _, err := doc.AddPrepayment(np.Amount, np.SourceCode); err != nil {
			return nil, err
		}
	}

	if err := doc.Seal(); err != nil {
		return nil, err
	}
	return doc, nil
}

// commit applies a sealed document. Locks are taken in a fixed order:
// source lines by kind and id, then prepayments by id, then account heads.
func (s *SetoffService) commit(ctx context.Context, repos TransactionalRepositories, doc *finance.SetoffDocument) error {
	exists, err := repos.Documents().ExistsByCode(ctx, doc.TenantID, doc.Code)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("setoff document code %s: %w", doc.Code, shared.ErrAlreadyExists)
	}

	refs := doc.SourceRefs()
	lines, err := repos.SourceLines().FindByRefsForUpdate(ctx, doc.TenantID, refs)
	if err != nil {
		return err
	}
	totals, err := repos.SourceLines().ActiveTotals(ctx, doc.TenantID, refs, nil)
	if err != nil {
		return err
	}
	byKey := make(map[string]*finance.SourceLine, len(lines))
	for _, line := range lines {
		byKey[finance.SourceKey(line.Ref)] = line
	}
	for i, det := range doc.Details {
		key := finance.SourceKey(det.Source)
		line := byKey[key]
		if line.PartyID != doc.PartyID {
			return shared.NewValidationError(fmt.Sprintf("details[%d].source", i),
				"source line "+key+" belongs to another party")
		}
		if err := line.CheckAllocation(totals[key], det.CurrentSettled, det.CurrentAllowance); err != nil {
			return err
		}
	}
	for _, line := range lines {
		line.MarkAllocated()
		if err := repos.SourceLines().SaveWithLock(ctx, line); err != nil {
			return err
		}
	}

	usages := slices.Clone(doc.Usages)
	slices.SortFunc(usages, func(a, b *finance.SetoffPrepaymentUsage) int {
		return strings.Compare(a.PrepaymentID.String(), b.PrepaymentID.String())
	})
	for _, u := range usages {
		p, err := repos.Prepayments().FindByIDForUpdate(ctx, doc.TenantID, u.PrepaymentID)
		if err != nil {
			return err
		}
		if p.PartyID != doc.PartyID || p.Direction != doc.Direction {
			return shared.NewValidationError("prepayment_usages",
				"prepayment "+p.ID.String()+" does not belong to the document's party and direction")
		}
		if err := s.prepayments.consume(ctx, repos, p, u.Amount); err != nil {
			return err
		}
	}

	doc.Commit(totals)
	if err := repos.Documents().Create(ctx, doc); err != nil {
		return err
	}
	for _, u := range doc.Usages {
		if err := repos.Usages().Create(ctx, u); err != nil {
			return err
		}
	}
	for _, posting := range doc.LedgerPostings() {
		if _, err := s.ledger.post(ctx, repos, doc.TenantID, posting, nil); err != nil {
			return err
		}
	}
	for _, p := range doc.CreatedPrepayments {
		if err := repos.Prepayments().Create(ctx, p); err != nil {
			return err
		}
		if err := publishEvents(ctx, repos, p); err != nil {
			return err
		}
	}
	return publishEvents(ctx, repos, doc)
}

// VoidSetoffDocument undoes every effect of a document and marks it voided
func (s *SetoffService) VoidSetoffDocument(ctx context.Context, tenantID, id uuid.UUID, req VoidSetoffDocumentRequest) (resp *SetoffDocumentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "setoff", "void",
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrDocumentID, id.String(),
	)
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "setoff.void", start, err) }()

	var doc *finance.SetoffDocument
	reversed := 0
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		locked, findErr := repos.Documents().FindByIDForUpdate(ctx, tenantID, id)
		if findErr != nil {
			return findErr
		}
		doc = locked
		var voidErr error
		reversed, voidErr = s.void(ctx, repos, doc, req.Reason)
		return voidErr
	})
	if err != nil {
		return nil, err
	}

	s.metrics.DocumentVoided(ctx, string(doc.Direction))
	s.log(ctx).Info("setoff document voided",
		zap.String("document_id", doc.ID.String()),
		zap.String("code", doc.Code),
		zap.Int("reversed_entries", reversed),
	)
	out := ToSetoffDocumentResponse(doc)
	return &out, nil
}

// void applies the compensations of a locked document. It returns the number
// of ledger entries reversed.
func (s *SetoffService) void(ctx context.Context, repos TransactionalRepositories, doc *finance.SetoffDocument, reason string) (int, error) {
	if err := doc.Void(reason); err != nil {
		return 0, err
	}

	lines, err := repos.SourceLines().FindByRefsForUpdate(ctx, doc.TenantID, doc.SourceRefs())
	if err != nil {
		return 0, err
	}
	for _, line := range lines {
		line.MarkAllocated()
		if err := repos.SourceLines().SaveWithLock(ctx, line); err != nil {
			return 0, err
		}
	}

	usages := slices.Clone(doc.Usages)
	slices.SortFunc(usages, func(a, b *finance.SetoffPrepaymentUsage) int {
		return strings.Compare(a.PrepaymentID.String(), b.PrepaymentID.String())
	})
	for _, u := range usages {
		if u.Reversed {
			continue
		}
		locked, err := repos.Usages().FindByIDForUpdate(ctx, doc.TenantID, u.ID)
		if err != nil {
			return 0, err
		}
		if err := s.prepayments.reverseUsage(ctx, repos, locked); err != nil {
			return 0, err
		}
		*u = *locked
	}

	created := slices.Clone(doc.CreatedPrepayments)
	slices.SortFunc(created, func(a, b *finance.SetoffPrepayment) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	for _, p := range created {
		locked, err := repos.Prepayments().FindByIDForUpdate(ctx, doc.TenantID, p.ID)
		if err != nil {
			return 0, err
		}
		if err := locked.Void(); err != nil {
			return 0, err
		}
		if err := repos.Prepayments().SaveWithLock(ctx, locked); err != nil {
			return 0, err
		}
		*p = *locked
	}

	entries, err := repos.Transactions().FindBySource(ctx, doc.TenantID,
		finance.DocumentRef{Type: finance.DocumentTypeSetoff, ID: doc.ID})
	if err != nil {
		return 0, err
	}
	slices.SortFunc(entries, func(a, b *finance.FinancialTransaction) int {
		return strings.Compare(a.Account.String(), b.Account.String())
	})
	reversed := 0
	for _, e := range entries {
		if e.IsReversal() || e.IsReversed() {
			continue
		}
		locked, err := repos.Transactions().FindByIDForUpdate(ctx, doc.TenantID, e.ID)
		if err != nil {
			return 0, err
		}
		if _, err := s.ledger.reverseEntry(ctx, repos, locked); err != nil {
			return 0, err
		}
		reversed++
	}

	if err := repos.Documents().UpdateStatus(ctx, doc); err != nil {
		return 0, err
	}
	return reversed, publishEvents(ctx, repos, doc)
}

// GetSetoffDocument returns a document with its children
func (s *SetoffService) GetSetoffDocument(ctx context.Context, tenantID, id uuid.UUID) (*SetoffDocumentResponse, error) {
	doc, err := s.scope.Reader().Documents().FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	out := ToSetoffDocumentResponse(doc)
	return &out, nil
}

// ListSetoffDocuments returns a page of documents, newest first
func (s *SetoffService) ListSetoffDocuments(ctx context.Context, tenantID uuid.UUID, filter SetoffDocumentListFilter) (*shared.Paginated[SetoffDocumentResponse], error) {
	page := shared.PageRequest{Page: filter.Page, PageSize: filter.PageSize}.Normalize()
	docs, total, err := s.scope.Reader().Documents().FindAll(ctx, tenantID, finance.DocumentFilter{
		PageRequest: page,
		PartyID:     filter.PartyID,
		Direction:   finance.Direction(filter.Direction),
		Status:      finance.DocumentStatus(filter.Status),
		DateFrom:    filter.DateFrom,
		DateTo:      filter.DateTo,
	})
	if err != nil {
		return nil, err
	}
	items := make([]SetoffDocumentResponse, 0, len(docs))
	for _, d := range docs {
		items = append(items, ToSetoffDocumentResponse(d))
	}
	result := shared.NewPaginated(items, total, page)
	return &result, nil
}

// GetOutstandingBalance returns what is still open on a source line
func (s *SetoffService) GetOutstandingBalance(ctx context.Context, tenantID uuid.UUID, ref finance.SourceRef) (*SourceLineResponse, error) {
	return lineView(ctx, s.scope.Reader(), tenantID, ref)
}

func (s *SetoffService) generateCode(date time.Time) string {
	if date.IsZero() {
		date = time.Now()
	}
	return fmt.Sprintf("%s-%s-%s", s.codePrefix, date.Format("20060102"), uuid.New().String()[:8])
}
