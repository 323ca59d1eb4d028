package finance

import (
	"context"
	"time"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/logger"
	"github.com/erp/setoff/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// observer carries the metrics and logger shared by the finance services
type observer struct {
	metrics *telemetry.SetoffMetrics
	logger  *zap.Logger
}

func newObserver(logger *zap.Logger) observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return observer{logger: logger}
}

// log returns the service logger enriched with request correlation fields
func (o observer) log(ctx context.Context) *zap.Logger {
	return logger.Enrich(ctx, o.logger)
}

// finish closes out an operation: business rejections are counted,
// infrastructure failures are logged, and the duration is recorded.
func (o observer) finish(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	if err != nil {
		telemetry.RecordError(span, err)
		code := shared.CodeOf(err)
		if code == "" || code == shared.ErrInfrastructure.Code {
			o.log(ctx).Error("finance operation failed",
				zap.String("operation", operation),
				zap.Error(err),
			)
		} else {
			o.metrics.Rejected(ctx, operation, code)
			o.log(ctx).Debug("finance operation rejected",
				zap.String("operation", operation),
				zap.String("code", code),
				zap.Error(err),
			)
		}
	}
	o.metrics.ObserveOperation(ctx, operation, start, err)
}

// publishEvents hands the aggregate's pending events to the outbox of the
// current transaction and clears them.
func publishEvents(ctx context.Context, repos TransactionalRepositories, agg interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}) error {
	events := agg.GetDomainEvents()
	if len(events) == 0 {
		return nil
	}
	if err := repos.Events().Publish(ctx, events...); err != nil {
		return err
	}
	agg.ClearDomainEvents()
	return nil
}
