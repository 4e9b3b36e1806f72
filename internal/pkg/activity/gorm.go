package activity

import (
	"context"

	"gorm.io/gorm"

	"github.com/yetuga/portal/internal/models"
	"github.com/yetuga/portal/internal/pkg/pagination"
	"github.com/yetuga/portal/internal/pkg/response"
)

// GormRepository stores activity in the user_activity table.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (g *GormRepository) Create(ctx context.Context, row *models.ActivityModel) error {
	return g.db.WithContext(ctx).Create(row).Error
}

func (g *GormRepository) List(ctx context.Context, f Filter, q pagination.Query) ([]Record, response.Pagination, error) {
	tx := g.db.WithContext(ctx).Model(&models.ActivityModel{})
	if f.UserID != 0 {
		tx = tx.Where("user_id = ?", f.UserID)
	}
	if f.Action != "" {
		tx = tx.Where("action = ?", f.Action)
	}
	tx = tx.Order("created_at DESC")

	var rows []models.ActivityModel
	meta, err := pagination.Paginate(tx, q, &rows)
	if err != nil {
		return nil, response.Pagination{}, err
	}
	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = toRecord(row)
	}
	return out, meta, nil
}

func (g *GormRepository) Recent(ctx context.Context, limit int) ([]Record, error) {
	var rows []models.ActivityModel
	err := g.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = toRecord(row)
	}
	return out, nil
}
