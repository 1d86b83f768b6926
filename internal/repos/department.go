package repos

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperr "github.com/yungbote/helpdesk-backend/internal/pkg/errors"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

type DepartmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, dept *types.Department) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Department, error)
	GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Department, error)
	ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Department, error)
	EnsureDefaults(ctx context.Context, tx *gorm.DB, defaults []*types.Department) error
}

type departmentRepo struct {
	db *gorm.DB
}

func NewDepartmentRepo(db *gorm.DB) DepartmentRepo {
	return &departmentRepo{db: db}
}

func (r *departmentRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *departmentRepo) Create(ctx context.Context, tx *gorm.DB, dept *types.Department) error {
	if dept.ID == uuid.Nil {
		dept.ID = uuid.New()
	}
	if err := r.conn(tx).WithContext(ctx).Create(dept).Error; err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

func (r *departmentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Department, error) {
	var dept types.Department
	err := r.conn(tx).WithContext(ctx).First(&dept, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get department %s: %w", id, err)
	}
	return &dept, nil
}

func (r *departmentRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Department, error) {
	var dept types.Department
	err := r.conn(tx).WithContext(ctx).First(&dept, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get department %q: %w", name, err)
	}
	return &dept, nil
}

func (r *departmentRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Department, error) {
	var depts []*types.Department
	err := r.conn(tx).WithContext(ctx).
		Where("is_active = ?", true).Order("name ASC").Find(&depts).Error
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return depts, nil
}

// EnsureDefaults seeds the routing departments on first boot. Existing rows
// are left untouched.
func (r *departmentRepo) EnsureDefaults(ctx context.Context, tx *gorm.DB, defaults []*types.Department) error {
	for _, dept := range defaults {
		_, err := r.GetByName(ctx, tx, dept.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		if err := r.Create(ctx, tx, dept); err != nil {
			return err
		}
	}
	return nil
}
