package persistence

import (
	"context"

	"github.com/erp/setoff/internal/domain/finance"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/persistence/models"
	"github.com/erp/setoff/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPrepaymentRepository implements PrepaymentRepository using GORM
type GormPrepaymentRepository struct {
	db *gorm.DB
}

// NewGormPrepaymentRepository creates a new GormPrepaymentRepository
func NewGormPrepaymentRepository(db *gorm.DB) *GormPrepaymentRepository {
	return &GormPrepaymentRepository{db: db}
}

// FindByID finds a prepayment by ID
func (r *GormPrepaymentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*finance.SetoffPrepayment, error) {
	var model models.SetoffPrepaymentModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).First(&model, "id = ?", id).Error; err != nil {
		return nil, translate("find prepayment", "prepayment", id, err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a prepayment and locks its row
func (r *GormPrepaymentRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*finance.SetoffPrepayment, error) {
	var model models.SetoffPrepaymentModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID), tenant.ForUpdate()).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translate("lock prepayment", "prepayment", id, err)
	}
	return model.ToDomain(), nil
}

// FindByParty lists a party's prepayments, oldest first
func (r *GormPrepaymentRepository) FindByParty(ctx context.Context, tenantID, partyID uuid.UUID, onlyAvailable bool) ([]*finance.SetoffPrepayment, error) {
	query := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("party_id = ?", partyID)
	if onlyAvailable {
		query = query.Where("status = ? AND used_amount < amount", finance.PrepaymentStatusActive)
	}
	var rows []models.SetoffPrepaymentModel
	if err := query.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, wrap("list prepayments", err)
	}
	return prepaymentsToDomain(rows), nil
}

// FindByOriginDocument lists the prepayments a setoff document created
func (r *GormPrepaymentRepository) FindByOriginDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]*finance.SetoffPrepayment, error) {
	var rows []models.SetoffPrepaymentModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Where("origin_document_id = ?", documentID).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, wrap("list prepayments by document", err)
	}
	return prepaymentsToDomain(rows), nil
}

func prepaymentsToDomain(rows []models.SetoffPrepaymentModel) []*finance.SetoffPrepayment {
	out := make([]*finance.SetoffPrepayment, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out
}

// Create inserts a prepayment
func (r *GormPrepaymentRepository) Create(ctx context.Context, p *finance.SetoffPrepayment) error {
	var model models.SetoffPrepaymentModel
	model.FromDomain(p)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrap("create prepayment", err)
	}
	return nil
}

// SaveWithLock writes used amount and status guarded by the version
func (r *GormPrepaymentRepository) SaveWithLock(ctx context.Context, p *finance.SetoffPrepayment) error {
	result := r.db.WithContext(ctx).
		Model(&models.SetoffPrepaymentModel{}).
		Scopes(tenant.Scope(p.TenantID)).
		Where("id = ? AND version = ?", p.ID, p.Version-1).
		Updates(map[string]any{
			"used_amount": p.UsedAmount,
			"status":      p.Status,
			"voided_at":   p.VoidedAt,
			"version":     p.Version,
			"updated_at":  p.UpdatedAt,
		})
	if result.Error != nil {
		return wrap("save prepayment", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConcurrencyConflictError("prepayment", p.ID)
	}
	return nil
}

// GormPrepaymentUsageRepository implements PrepaymentUsageRepository using GORM
type GormPrepaymentUsageRepository struct {
	db *gorm.DB
}

// NewGormPrepaymentUsageRepository creates a new GormPrepaymentUsageRepository
func NewGormPrepaymentUsageRepository(db *gorm.DB) *GormPrepaymentUsageRepository {
	return &GormPrepaymentUsageRepository{db: db}
}

// FindByID finds a usage by ID
func (r *GormPrepaymentUsageRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*finance.SetoffPrepaymentUsage, error) {
	var model models.SetoffPrepaymentUsageModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).First(&model, "id = ?", id).Error; err != nil {
		return nil, translate("find prepayment usage", "prepayment usage", id, err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a usage and locks its row
func (r *GormPrepaymentUsageRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*finance.SetoffPrepaymentUsage, error) {
	var model models.SetoffPrepaymentUsageModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID), tenant.ForUpdate()).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translate("lock prepayment usage", "prepayment usage", id, err)
	}
	return model.ToDomain(), nil
}

// FindByDocument lists the usages of a setoff document
func (r *GormPrepaymentUsageRepository) FindByDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]*finance.SetoffPrepaymentUsage, error) {
	return r.findBy(ctx, tenantID, "document_id = ?", documentID)
}

// FindByPrepayment lists every usage of a prepayment, reversed ones included
func (r *GormPrepaymentUsageRepository) FindByPrepayment(ctx context.Context, tenantID, prepaymentID uuid.UUID) ([]*finance.SetoffPrepaymentUsage, error) {
	return r.findBy(ctx, tenantID, "prepayment_id = ?", prepaymentID)
}

func (r *GormPrepaymentUsageRepository) findBy(ctx context.Context, tenantID uuid.UUID, cond string, id uuid.UUID) ([]*finance.SetoffPrepaymentUsage, error) {
	var rows []models.SetoffPrepaymentUsageModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Where(cond, id).
		Order("created_at, id").
		Find(&rows).Error; err != nil {
		return nil, wrap("list prepayment usages", err)
	}
	out := make([]*finance.SetoffPrepaymentUsage, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// Create inserts a usage
func (r *GormPrepaymentUsageRepository) Create(ctx context.Context, u *finance.SetoffPrepaymentUsage) error {
	if err := r.db.WithContext(ctx).Create(models.SetoffPrepaymentUsageModelFromDomain(u)).Error; err != nil {
		return wrap("create prepayment usage", err)
	}
	return nil
}

// MarkReversed flips the reversed flag only while it is still unset
func (r *GormPrepaymentUsageRepository) MarkReversed(ctx context.Context, u *finance.SetoffPrepaymentUsage) error {
	result := r.db.WithContext(ctx).
		Model(&models.SetoffPrepaymentUsageModel{}).
		Scopes(tenant.Scope(u.TenantID)).
		Where("id = ? AND reversed = ?", u.ID, false).
		Updates(map[string]any{
			"reversed":    true,
			"reversed_at": u.ReversedAt,
		})
	if result.Error != nil {
		return wrap("reverse prepayment usage", result.Error)
	}
	if result.RowsAffected == 0 {
		return &finance.AlreadyReversedError{Resource: "prepayment usage", ID: u.ID}
	}
	return nil
}

var (
	_ finance.PrepaymentRepository      = (*GormPrepaymentRepository)(nil)
	_ finance.PrepaymentUsageRepository = (*GormPrepaymentUsageRepository)(nil)
)
