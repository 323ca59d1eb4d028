package persistence

import (
	"context"
	"errors"

	"github.com/erp/setoff/internal/domain/finance"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/persistence/models"
	"github.com/erp/setoff/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormFinancialTransactionRepository implements FinancialTransactionRepository using GORM
type GormFinancialTransactionRepository struct {
	db *gorm.DB
}

// NewGormFinancialTransactionRepository creates a new GormFinancialTransactionRepository
func NewGormFinancialTransactionRepository(db *gorm.DB) *GormFinancialTransactionRepository {
	return &GormFinancialTransactionRepository{db: db}
}

// FindByID finds a ledger entry by ID
func (r *GormFinancialTransactionRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*finance.FinancialTransaction, error) {
	var model models.FinancialTransactionModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).First(&model, "id = ?", id).Error; err != nil {
		return nil, translate("find financial transaction", "financial transaction", id, err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a ledger entry and locks its row
func (r *GormFinancialTransactionRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*finance.FinancialTransaction, error) {
	var model models.FinancialTransactionModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID), tenant.ForUpdate()).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translate("lock financial transaction", "financial transaction", id, err)
	}
	return model.ToDomain(), nil
}

// FindBySource lists the entries a business document produced
func (r *GormFinancialTransactionRepository) FindBySource(ctx context.Context, tenantID uuid.UUID, source finance.DocumentRef) ([]*finance.FinancialTransaction, error) {
	var rows []models.FinancialTransactionModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Where("source_type = ? AND source_id = ?", source.Type, source.ID).
		Order("created_at, account_kind, account_id, sequence").
		Find(&rows).Error; err != nil {
		return nil, wrap("list financial transactions by source", err)
	}
	return transactionsToDomain(rows), nil
}

// FindByAccount returns an account's entries in sequence order
func (r *GormFinancialTransactionRepository) FindByAccount(ctx context.Context, tenantID uuid.UUID, account finance.AccountRef, filter finance.EntryFilter) ([]*finance.FinancialTransaction, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.FinancialTransactionModel{}).
		Scopes(tenant.Scope(tenantID)).
		Where("account_kind = ? AND account_id = ?", account.Kind, account.ID)
	if filter.From != nil {
		query = query.Where("transaction_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("transaction_date <= ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrap("count financial transactions", err)
	}

	query = query.Order("sequence")
	if filter.PageSize > 0 {
		page := filter.PageRequest.Normalize()
		query = query.Offset(page.Offset()).Limit(page.PageSize)
	}
	var rows []models.FinancialTransactionModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, wrap("list financial transactions", err)
	}
	return transactionsToDomain(rows), total, nil
}

func transactionsToDomain(rows []models.FinancialTransactionModel) []*finance.FinancialTransaction {
	out := make([]*finance.FinancialTransaction, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out
}

// Create appends a ledger entry
func (r *GormFinancialTransactionRepository) Create(ctx context.Context, tx *finance.FinancialTransaction) error {
	if err := r.db.WithContext(ctx).Create(models.FinancialTransactionModelFromDomain(tx)).Error; err != nil {
		return wrap("create financial transaction", err)
	}
	return nil
}

// MarkReversed links an entry to its reversal while reversed_by_id is still empty
func (r *GormFinancialTransactionRepository) MarkReversed(ctx context.Context, tx *finance.FinancialTransaction) error {
	if tx.ReversedByID == nil {
		return shared.NewInvalidStateError("financial transaction %s has no reversal to link", tx.ID)
	}
	result := r.db.WithContext(ctx).
		Model(&models.FinancialTransactionModel{}).
		Scopes(tenant.Scope(tx.TenantID)).
		Where("id = ? AND reversed_by_id IS NULL", tx.ID).
		Update("reversed_by_id", *tx.ReversedByID)
	if result.Error != nil {
		return wrap("mark financial transaction reversed", result.Error)
	}
	if result.RowsAffected == 0 {
		return &finance.AlreadyReversedError{Resource: "financial transaction", ID: tx.ID}
	}
	return nil
}

// GormAccountBalanceRepository implements AccountBalanceRepository using GORM
type GormAccountBalanceRepository struct {
	db *gorm.DB
}

// NewGormAccountBalanceRepository creates a new GormAccountBalanceRepository
func NewGormAccountBalanceRepository(db *gorm.DB) *GormAccountBalanceRepository {
	return &GormAccountBalanceRepository{db: db}
}

func accountScope(tenantID uuid.UUID, account finance.AccountRef) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Scopes(tenant.Scope(tenantID)).
			Where("account_kind = ? AND account_id = ?", account.Kind, account.ID)
	}
}

// Find returns the chain head, or an empty head when nothing was posted yet
func (r *GormAccountBalanceRepository) Find(ctx context.Context, tenantID uuid.UUID, account finance.AccountRef) (*finance.AccountBalance, error) {
	var model models.AccountBalanceModel
	err := r.db.WithContext(ctx).Scopes(accountScope(tenantID, account)).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return finance.NewAccountBalance(tenantID, account), nil
	}
	if err != nil {
		return nil, wrap("find account balance", err)
	}
	return model.ToDomain(), nil
}

// FindForUpdate locks the chain head, inserting an empty head on first use.
// Racing inserts collapse through ON CONFLICT DO NOTHING and both callers
// then queue on the same row lock.
func (r *GormAccountBalanceRepository) FindForUpdate(ctx context.Context, tenantID uuid.UUID, account finance.AccountRef) (*finance.AccountBalance, error) {
	var model models.AccountBalanceModel
	err := r.db.WithContext(ctx).Scopes(accountScope(tenantID, account), tenant.ForUpdate()).First(&model).Error
	if err == nil {
		return model.ToDomain(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, wrap("lock account balance", err)
	}

	head := models.AccountBalanceModelFromDomain(finance.NewAccountBalance(tenantID, account))
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(head).Error; err != nil {
		return nil, wrap("create account balance", err)
	}
	model = models.AccountBalanceModel{}
	if err := r.db.WithContext(ctx).Scopes(accountScope(tenantID, account), tenant.ForUpdate()).First(&model).Error; err != nil {
		return nil, wrap("lock account balance", err)
	}
	return model.ToDomain(), nil
}

// SaveWithLock advances the chain head guarded by its version
func (r *GormAccountBalanceRepository) SaveWithLock(ctx context.Context, b *finance.AccountBalance) error {
	result := r.db.WithContext(ctx).
		Model(&models.AccountBalanceModel{}).
		Scopes(accountScope(b.TenantID, b.Account)).
		Where("version = ?", b.Version-1).
		Updates(map[string]any{
			"balance":             b.Balance,
			"last_transaction_id": b.LastTransactionID,
			"sequence":            b.Sequence,
			"version":             b.Version,
			"updated_at":          b.UpdatedAt,
		})
	if result.Error != nil {
		return wrap("save account balance", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConcurrencyConflictError("account balance", key(b.Account.String()))
	}
	return nil
}

var (
	_ finance.FinancialTransactionRepository = (*GormFinancialTransactionRepository)(nil)
	_ finance.AccountBalanceRepository       = (*GormAccountBalanceRepository)(nil)
)
