package persistence

import (
	"context"
	"slices"

	"github.com/erp/setoff/internal/domain/finance"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/persistence/models"
	"github.com/erp/setoff/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormSourceLineRepository implements SourceLineRepository using GORM
type GormSourceLineRepository struct {
	db *gorm.DB
}

// NewGormSourceLineRepository creates a new GormSourceLineRepository
func NewGormSourceLineRepository(db *gorm.DB) *GormSourceLineRepository {
	return &GormSourceLineRepository{db: db}
}

// FindByRef finds a registered source line
func (r *GormSourceLineRepository) FindByRef(ctx context.Context, tenantID uuid.UUID, ref finance.SourceRef) (*finance.SourceLine, error) {
	var model models.SourceLineModel
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Where("source_kind = ? AND source_id = ?", ref.Kind(), ref.LineID()).
		First(&model).Error
	if err != nil {
		return nil, translate("find source line", "source line", key(finance.SourceKey(ref)), err)
	}
	return model.ToDomain()
}

// FindByRefsForUpdate locks each line with its own statement, in the order
// given, so that concurrent documents acquire locks in the same sequence.
func (r *GormSourceLineRepository) FindByRefsForUpdate(ctx context.Context, tenantID uuid.UUID, refs []finance.SourceRef) ([]*finance.SourceLine, error) {
	lines := make([]*finance.SourceLine, 0, len(refs))
	for _, ref := range refs {
		var model models.SourceLineModel
		err := r.db.WithContext(ctx).
			Scopes(tenant.Scope(tenantID), tenant.ForUpdate()).
			Where("source_kind = ? AND source_id = ?", ref.Kind(), ref.LineID()).
			First(&model).Error
		if err != nil {
			return nil, translate("lock source line", "source line", key(finance.SourceKey(ref)), err)
		}
		line, err := model.ToDomain()
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// FindOpenByParty returns the party's lines with something left to settle.
// Outstanding depends on derived totals, so paging happens after filtering.
func (r *GormSourceLineRepository) FindOpenByParty(ctx context.Context, tenantID, partyID uuid.UUID, direction finance.Direction, page shared.PageRequest) ([]*finance.SourceLine, int64, error) {
	query := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Where("party_id = ?", partyID)
	if direction != "" {
		query = query.Where("direction = ?", direction)
	}

	var rows []models.SourceLineModel
	if err := query.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, 0, wrap("list source lines", err)
	}

	lines := make([]*finance.SourceLine, 0, len(rows))
	refs := make([]finance.SourceRef, 0, len(rows))
	for i := range rows {
		line, err := rows[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		lines = append(lines, line)
		refs = append(refs, line.Ref)
	}

	totals, err := r.ActiveTotals(ctx, tenantID, refs, nil)
	if err != nil {
		return nil, 0, err
	}
	open := slices.DeleteFunc(lines, func(l *finance.SourceLine) bool {
		return !l.Outstanding(totals[finance.SourceKey(l.Ref)]).IsPositive()
	})

	total := int64(len(open))
	page = page.Normalize()
	start := min(page.Offset(), len(open))
	end := min(start+page.PageSize, len(open))
	return open[start:end], total, nil
}

// Create registers a source line
func (r *GormSourceLineRepository) Create(ctx context.Context, line *finance.SourceLine) error {
	var model models.SourceLineModel
	model.FromDomain(line)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrap("create source line", err)
	}
	return nil
}

// SaveWithLock writes the line guarded by its version
func (r *GormSourceLineRepository) SaveWithLock(ctx context.Context, line *finance.SourceLine) error {
	result := r.db.WithContext(ctx).
		Model(&models.SourceLineModel{}).
		Scopes(tenant.Scope(line.TenantID)).
		Where("id = ? AND version = ?", line.ID, line.Version-1).
		Updates(map[string]any{
			"original_amount": line.OriginalAmount,
			"version":         line.Version,
			"updated_at":      line.UpdatedAt,
		})
	if result.Error != nil {
		return wrap("save source line", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConcurrencyConflictError("source line", key(finance.SourceKey(line.Ref)))
	}
	return nil
}

type detailTotalsRow struct {
	SourceKind       finance.SourceKind
	SourceID         uuid.UUID
	CurrentSettled   decimal.Decimal
	CurrentAllowance decimal.Decimal
}

// ActiveTotals sums the details of ACTIVE documents per line. Sums are done
// here rather than in SQL so that every driver returns exact decimals.
func (r *GormSourceLineRepository) ActiveTotals(ctx context.Context, tenantID uuid.UUID, refs []finance.SourceRef, excludeDocumentID *uuid.UUID) (map[string]finance.LineTotals, error) {
	totals := make(map[string]finance.LineTotals, len(refs))
	if len(refs) == 0 {
		return totals, nil
	}
	ids := make([]uuid.UUID, 0, len(refs))
	for _, ref := range refs {
		totals[finance.SourceKey(ref)] = finance.ZeroLineTotals()
		ids = append(ids, ref.LineID())
	}

	query := r.db.WithContext(ctx).
		Table("setoff_product_details AS d").
		Select("d.source_kind, d.source_id, d.current_settled, d.current_allowance").
		Joins("JOIN setoff_documents AS doc ON doc.id = d.document_id").
		Where("d.tenant_id = ? AND doc.tenant_id = ?", tenantID, tenantID).
		Where("doc.status = ?", finance.DocumentStatusActive).
		Where("d.source_id IN ?", ids)
	if excludeDocumentID != nil {
		query = query.Where("doc.id <> ?", *excludeDocumentID)
	}

	var rows []detailTotalsRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, wrap("sum source line totals", err)
	}
	for _, row := range rows {
		ref, err := finance.NewSourceRef(row.SourceKind, row.SourceID)
		if err != nil {
			return nil, err
		}
		k := finance.SourceKey(ref)
		current, ok := totals[k]
		if !ok {
			// same id under another kind
			continue
		}
		totals[k] = current.Add(row.CurrentSettled, row.CurrentAllowance)
	}
	return totals, nil
}

var _ finance.SourceLineRepository = (*GormSourceLineRepository)(nil)
