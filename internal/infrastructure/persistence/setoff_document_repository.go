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

// GormSetoffDocumentRepository implements SetoffDocumentRepository using GORM
type GormSetoffDocumentRepository struct {
	db *gorm.DB
}

// NewGormSetoffDocumentRepository creates a new GormSetoffDocumentRepository
func NewGormSetoffDocumentRepository(db *gorm.DB) *GormSetoffDocumentRepository {
	return &GormSetoffDocumentRepository{db: db}
}

func orderByLineNo(db *gorm.DB) *gorm.DB {
	return db.Order("line_no")
}

// FindByID loads a document with payments, details, usages and created prepayments
func (r *GormSetoffDocumentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*finance.SetoffDocument, error) {
	return r.find(ctx, tenantID, id, false)
}

// FindByIDForUpdate loads a document and locks its header row
func (r *GormSetoffDocumentRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*finance.SetoffDocument, error) {
	return r.find(ctx, tenantID, id, true)
}

func (r *GormSetoffDocumentRepository) find(ctx context.Context, tenantID, id uuid.UUID, lock bool) (*finance.SetoffDocument, error) {
	query := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID))
	if lock {
		query = query.Scopes(tenant.ForUpdate())
	}

	var model models.SetoffDocumentModel
	if err := query.First(&model, "id = ?", id).Error; err != nil {
		return nil, translate("find setoff document", "setoff document", id, err)
	}
	if err := r.db.WithContext(ctx).Scopes(orderByLineNo).
		Where("document_id = ?", id).Find(&model.Payments).Error; err != nil {
		return nil, wrap("load setoff payments", err)
	}
	if err := r.db.WithContext(ctx).Scopes(orderByLineNo).
		Where("document_id = ?", id).Find(&model.Details).Error; err != nil {
		return nil, wrap("load setoff details", err)
	}

	doc, err := model.ToDomain()
	if err != nil {
		return nil, err
	}

	var usages []models.SetoffPrepaymentUsageModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).
		Where("document_id = ?", id).Order("created_at, id").Find(&usages).Error; err != nil {
		return nil, wrap("load prepayment usages", err)
	}
	for i := range usages {
		doc.Usages = append(doc.Usages, usages[i].ToDomain())
	}

	var created []models.SetoffPrepaymentModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).
		Where("origin_document_id = ?", id).Order("created_at, id").Find(&created).Error; err != nil {
		return nil, wrap("load created prepayments", err)
	}
	for i := range created {
		doc.CreatedPrepayments = append(doc.CreatedPrepayments, created[i].ToDomain())
	}
	return doc, nil
}

// FindAll lists document headers matching filter, newest first
func (r *GormSetoffDocumentRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter finance.DocumentFilter) ([]*finance.SetoffDocument, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SetoffDocumentModel{}).Scopes(tenant.Scope(tenantID))
	if filter.PartyID != nil {
		query = query.Where("party_id = ?", *filter.PartyID)
	}
	if filter.Direction != "" {
		query = query.Where("direction = ?", filter.Direction)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.DateFrom != nil {
		query = query.Where("document_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("document_date <= ?", *filter.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrap("count setoff documents", err)
	}

	page := filter.PageRequest.Normalize()
	var rows []models.SetoffDocumentModel
	if err := query.Order("document_date DESC, created_at DESC").
		Offset(page.Offset()).Limit(page.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, wrap("list setoff documents", err)
	}

	docs := make([]*finance.SetoffDocument, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	return docs, total, nil
}

// ExistsByCode checks whether a document code is taken in the tenant
func (r *GormSetoffDocumentRepository) ExistsByCode(ctx context.Context, tenantID uuid.UUID, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SetoffDocumentModel{}).
		Scopes(tenant.Scope(tenantID)).
		Where("code = ?", code).
		Count(&count).Error
	if err != nil {
		return false, wrap("check setoff document code", err)
	}
	return count > 0, nil
}

// ExistsByID reports whether id names a setoff document in the tenant
func (r *GormSetoffDocumentRepository) ExistsByID(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SetoffDocumentModel{}).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, wrap("check setoff document id", err)
	}
	return count > 0, nil
}

// Create inserts the header, payments and details
func (r *GormSetoffDocumentRepository) Create(ctx context.Context, doc *finance.SetoffDocument) error {
	var model models.SetoffDocumentModel
	model.FromDomain(doc)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrap("create setoff document", err)
	}
	return nil
}

// UpdateStatus writes the status fields guarded by the version check
func (r *GormSetoffDocumentRepository) UpdateStatus(ctx context.Context, doc *finance.SetoffDocument) error {
	result := r.db.WithContext(ctx).
		Model(&models.SetoffDocumentModel{}).
		Scopes(tenant.Scope(doc.TenantID)).
		Where("id = ? AND version = ?", doc.ID, doc.Version-1).
		Updates(map[string]any{
			"status":      doc.Status,
			"voided_at":   doc.VoidedAt,
			"void_reason": doc.VoidReason,
			"version":     doc.Version,
			"updated_at":  doc.UpdatedAt,
		})
	if result.Error != nil {
		return wrap("update setoff document status", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConcurrencyConflictError("setoff document", doc.ID)
	}
	return nil
}

var _ finance.SetoffDocumentRepository = (*GormSetoffDocumentRepository)(nil)
