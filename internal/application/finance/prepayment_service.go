package finance

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/erp/setoff/internal/domain/finance"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultUsageRetryMaxElapsed bounds the conflict retries of a standalone usage
const DefaultUsageRetryMaxElapsed = 2 * time.Second

// PrepaymentService manages standing credit and its consumption
type PrepaymentService struct {
	scope           TransactionScope
	retryMaxElapsed time.Duration
	observer
}

// NewPrepaymentService creates a new PrepaymentService
func NewPrepaymentService(scope TransactionScope, logger *zap.Logger) *PrepaymentService {
	return &PrepaymentService{
		scope:           scope,
		retryMaxElapsed: DefaultUsageRetryMaxElapsed,
		observer:        newObserver(logger),
	}
}

// SetMetrics sets the metrics recorder
func (s *PrepaymentService) SetMetrics(m *telemetry.SetoffMetrics) {
	s.metrics = m
}

// SetRetryMaxElapsed sets how long ApplyUsage retries version conflicts
func (s *PrepaymentService) SetRetryMaxElapsed(d time.Duration) {
	if d > 0 {
		s.retryMaxElapsed = d
	}
}

// CreatePrepayment opens a credit record with nothing used
func (s *PrepaymentService) CreatePrepayment(ctx context.Context, tenantID uuid.UUID, req CreatePrepaymentRequest) (resp *PrepaymentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "prepayment", "create",
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "prepayment.create", start, err) }()

	p, err := finance.NewSetoffPrepayment(tenantID, req.PartyID, finance.Direction(req.Direction), req.Amount, req.SourceCode, nil)
	if err != nil {
		return nil, err
	}
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.Prepayments().Create(ctx, p); err != nil {
			return err
		}
		return publishEvents(ctx, repos, p)
	})
	if err != nil {
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrPrepaymentID, p.ID.String())
	s.log(ctx).Info("prepayment created",
		zap.String("prepayment_id", p.ID.String()),
		zap.String("party_id", p.PartyID.String()),
		zap.String("amount", p.Amount.String()),
	)
	out := ToPrepaymentResponse(p)
	return &out, nil
}

// ApplyUsage consumes credit on behalf of a document. Version conflicts are
// retried with exponential backoff; business errors are returned at once.
func (s *PrepaymentService) ApplyUsage(ctx context.Context, tenantID, prepaymentID uuid.UUID, req ApplyUsageRequest) (resp *PrepaymentUsageResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "prepayment", "apply_usage",
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrPrepaymentID, prepaymentID.String(),
		telemetry.SpanAttrDocumentID, req.DocumentID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "prepayment.apply_usage", start, err) }()

	var usage *finance.SetoffPrepaymentUsage
	attempt := 0
	operation := func() error {
		attempt++
		txErr := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			if ownErr := ensureNotSetoffDocument(ctx, repos, tenantID, req.DocumentID); ownErr != nil {
				return ownErr
			}
			var useErr error
			usage, useErr = s.applyUsage(ctx, repos, tenantID, prepaymentID, req.DocumentID, req.Amount)
			return useErr
		})
		if txErr != nil && !errors.Is(txErr, shared.ErrConcurrencyConflict) {
			return backoff.Permanent(txErr)
		}
		return txErr
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxElapsedTime = s.retryMaxElapsed
	err = backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), func(retryErr error, wait time.Duration) {
		s.log(ctx).Debug("prepayment usage conflicted, retrying",
			zap.String("prepayment_id", prepaymentID.String()),
			zap.Duration("wait", wait),
			zap.Error(retryErr),
		)
	})
	if err != nil {
		return nil, err
	}

	telemetry.SetAttributes(span, "retry.attempts", attempt)
	out := ToPrepaymentUsageResponse(usage)
	return &out, nil
}

// ReverseUsage gives a usage's credit back to its prepayment. The usage row
// is kept with its reversed flag set.
func (s *PrepaymentService) ReverseUsage(ctx context.Context, tenantID, usageID uuid.UUID) (resp *PrepaymentUsageResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "prepayment", "reverse_usage",
		telemetry.SpanAttrTenantID, tenantID.String(),
		"prepayment.usage_id", usageID.String(),
	)
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "prepayment.reverse_usage", start, err) }()

	var usage *finance.SetoffPrepaymentUsage
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		locked, findErr := repos.Usages().FindByIDForUpdate(ctx, tenantID, usageID)
		if findErr != nil {
			return findErr
		}
		usage = locked
		if ownErr := ensureNotSetoffDocument(ctx, repos, tenantID, usage.DocumentID); ownErr != nil {
			return ownErr
		}
		return s.reverseUsage(ctx, repos, usage)
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx).Info("prepayment usage reversed",
		zap.String("usage_id", usage.ID.String()),
		zap.String("prepayment_id", usage.PrepaymentID.String()),
	)
	out := ToPrepaymentUsageResponse(usage)
	return &out, nil
}

// ensureNotSetoffDocument refuses standalone usage operations against a
// setoff document. Its usages follow the document's commit and void.
func ensureNotSetoffDocument(ctx context.Context, repos TransactionalRepositories, tenantID, documentID uuid.UUID) error {
	owned, err := repos.Documents().ExistsByID(ctx, tenantID, documentID)
	if err != nil {
		return err
	}
	if owned {
		return shared.NewInvalidStateError("document %s is a setoff document, void the document instead", documentID)
	}
	return nil
}

// GetPrepayment returns one credit record
func (s *PrepaymentService) GetPrepayment(ctx context.Context, tenantID, id uuid.UUID) (*PrepaymentResponse, error) {
	p, err := s.scope.Reader().Prepayments().FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	out := ToPrepaymentResponse(p)
	return &out, nil
}

// ListPrepayments returns a party's credit records
func (s *PrepaymentService) ListPrepayments(ctx context.Context, tenantID uuid.UUID, filter PrepaymentListFilter) ([]PrepaymentResponse, error) {
	prepayments, err := s.scope.Reader().Prepayments().FindByParty(ctx, tenantID, filter.PartyID, filter.OnlyAvailable)
	if err != nil {
		return nil, err
	}
	out := make([]PrepaymentResponse, 0, len(prepayments))
	for _, p := range prepayments {
		out = append(out, ToPrepaymentResponse(p))
	}
	return out, nil
}

// VerifyPrepayment compares the used amount with the sum of non-reversed usages
func (s *PrepaymentService) VerifyPrepayment(ctx context.Context, tenantID, id uuid.UUID) (*PrepaymentCheckResponse, error) {
	reader := s.scope.Reader()
	p, err := reader.Prepayments().FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	usages, err := reader.Usages().FindByPrepayment(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	rec := finance.PrepaymentReconciliation{PrepaymentID: p.ID, UsedAmount: p.UsedAmount}
	for _, u := range usages {
		if !u.Reversed {
			rec.UsageTotal = rec.UsageTotal.Add(u.Amount)
		}
	}
	if !rec.Consistent() {
		s.log(ctx).Warn("prepayment usage total does not match used amount",
			zap.String("prepayment_id", p.ID.String()),
			zap.String("used_amount", rec.UsedAmount.String()),
			zap.String("usage_total", rec.UsageTotal.String()),
		)
	}
	return &PrepaymentCheckResponse{
		PrepaymentID: rec.PrepaymentID,
		UsedAmount:   rec.UsedAmount,
		UsageTotal:   rec.UsageTotal,
		Consistent:   rec.Consistent(),
	}, nil
}

// applyUsage draws credit inside the caller's transaction
func (s *PrepaymentService) applyUsage(ctx context.Context, repos TransactionalRepositories, tenantID, prepaymentID, documentID uuid.UUID, amount decimal.Decimal) (*finance.SetoffPrepaymentUsage, error) {
	p, err := repos.Prepayments().FindByIDForUpdate(ctx, tenantID, prepaymentID)
	if err != nil {
		return nil, err
	}
	usage, err := finance.NewSetoffPrepaymentUsage(tenantID, prepaymentID, documentID, amount)
	if err != nil {
		return nil, err
	}
	if err := s.consume(ctx, repos, p, usage.Amount); err != nil {
		return nil, err
	}
	if err := repos.Usages().Create(ctx, usage); err != nil {
		return nil, err
	}
	return usage, nil
}

// consume takes amount from a prepayment already locked by the caller
func (s *PrepaymentService) consume(ctx context.Context, repos TransactionalRepositories, p *finance.SetoffPrepayment, amount decimal.Decimal) error {
	if err := p.Use(amount); err != nil {
		return err
	}
	if err := repos.Prepayments().SaveWithLock(ctx, p); err != nil {
		return err
	}
	s.metrics.PrepaymentUsed(ctx)
	return nil
}

// reverseUsage flags a locked usage reversed and releases its credit
func (s *PrepaymentService) reverseUsage(ctx context.Context, repos TransactionalRepositories, usage *finance.SetoffPrepaymentUsage) error {
	if err := usage.MarkReversed(); err != nil {
		return err
	}
	if err := repos.Usages().MarkReversed(ctx, usage); err != nil {
		return err
	}
	p, err := repos.Prepayments().FindByIDForUpdate(ctx, usage.TenantID, usage.PrepaymentID)
	if err != nil {
		return err
	}
	if err := p.Release(usage.Amount); err != nil {
		return err
	}
	return repos.Prepayments().SaveWithLock(ctx, p)
}
