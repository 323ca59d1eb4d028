package finance

import (
	"context"
	"errors"
	"time"

	"github.com/erp/setoff/internal/domain/finance"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SourceLineService keeps the registry of settleable lines owned by the
// sales and purchasing modules
type SourceLineService struct {
	scope TransactionScope
	observer
}

// NewSourceLineService creates a new SourceLineService
func NewSourceLineService(scope TransactionScope, logger *zap.Logger) *SourceLineService {
	return &SourceLineService{scope: scope, observer: newObserver(logger)}
}

// SetMetrics sets the metrics recorder
func (s *SourceLineService) SetMetrics(m *telemetry.SetoffMetrics) {
	s.metrics = m
}

// RegisterSourceLine creates a line or reprices an existing one. Repeating a
// registration with the same amount changes nothing.
func (s *SourceLineService) RegisterSourceLine(ctx context.Context, tenantID uuid.UUID, req RegisterSourceLineRequest) (resp *SourceLineResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "source_line", "register",
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrSourceLine, req.SourceKind+":"+req.SourceID.String(),
	)
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "source_line.register", start, err) }()

	ref, err := finance.NewSourceRef(finance.SourceKind(req.SourceKind), req.SourceID)
	if err != nil {
		return nil, shared.NewValidationError("source_kind", err.Error())
	}

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		lines, findErr := repos.SourceLines().FindByRefsForUpdate(ctx, tenantID, []finance.SourceRef{ref})
		if errors.Is(findErr, shared.ErrNotFound) {
			line, newErr := finance.NewSourceLine(tenantID, ref, req.PartyID, req.OriginalAmount)
			if newErr != nil {
				return newErr
			}
			if createErr := repos.SourceLines().Create(ctx, line); createErr != nil {
				return createErr
			}
			resp = ptr(toSourceLineResponse(line, finance.ZeroLineTotals()))
			return nil
		}
		if findErr != nil {
			return findErr
		}

		line := lines[0]
		if line.PartyID != req.PartyID {
			return shared.NewValidationError("party_id", "source line "+finance.SourceKey(ref)+" is registered to another party")
		}
		totals, totalsErr := repos.SourceLines().ActiveTotals(ctx, tenantID, []finance.SourceRef{ref}, nil)
		if totalsErr != nil {
			return totalsErr
		}
		before := line.Version
		if repriceErr := line.Reprice(req.OriginalAmount, totals[finance.SourceKey(ref)]); repriceErr != nil {
			return repriceErr
		}
		if line.Version != before {
			if saveErr := repos.SourceLines().SaveWithLock(ctx, line); saveErr != nil {
				return saveErr
			}
		}
		resp = ptr(toSourceLineResponse(line, totals[finance.SourceKey(ref)]))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx).Debug("source line registered",
		zap.String("source_line", finance.SourceKey(ref)),
		zap.String("original_amount", resp.OriginalAmount.String()),
	)
	return resp, nil
}

// GetSourceLine returns a registered line with its settlement totals
func (s *SourceLineService) GetSourceLine(ctx context.Context, tenantID uuid.UUID, ref finance.SourceRef) (*SourceLineResponse, error) {
	return lineView(ctx, s.scope.Reader(), tenantID, ref)
}

// ListOutstanding returns a party's lines that still have something open
func (s *SourceLineService) ListOutstanding(ctx context.Context, tenantID uuid.UUID, filter OutstandingListFilter) (*shared.Paginated[SourceLineResponse], error) {
	page := shared.PageRequest{Page: filter.Page, PageSize: filter.PageSize}.Normalize()
	repo := s.scope.Reader().SourceLines()
	lines, total, err := repo.FindOpenByParty(ctx, tenantID, filter.PartyID, finance.Direction(filter.Direction), page)
	if err != nil {
		return nil, err
	}

	refs := make([]finance.SourceRef, 0, len(lines))
	for _, l := range lines {
		refs = append(refs, l.Ref)
	}
	totals, err := repo.ActiveTotals(ctx, tenantID, refs, nil)
	if err != nil {
		return nil, err
	}
	items := make([]SourceLineResponse, 0, len(lines))
	for _, l := range lines {
		items = append(items, toSourceLineResponse(l, totals[finance.SourceKey(l.Ref)]))
	}
	result := shared.NewPaginated(items, total, page)
	return &result, nil
}

func lineView(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, ref finance.SourceRef) (*SourceLineResponse, error) {
	line, err := repos.SourceLines().FindByRef(ctx, tenantID, ref)
	if err != nil {
		return nil, err
	}
	totals, err := repos.SourceLines().ActiveTotals(ctx, tenantID, []finance.SourceRef{ref}, nil)
	if err != nil {
		return nil, err
	}
	out := toSourceLineResponse(line, totals[finance.SourceKey(ref)])
	return &out, nil
}

func ptr[T any](v T) *T {
	return &v
}
