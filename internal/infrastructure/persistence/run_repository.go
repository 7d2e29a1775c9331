package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/trafficsim/backend/internal/domain/shared"
	"github.com/trafficsim/backend/internal/domain/simulation"
	"github.com/trafficsim/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormRunRepository implements RunRepository using GORM
type GormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository creates a new GormRunRepository
func NewGormRunRepository(db *gorm.DB) *GormRunRepository {
	return &GormRunRepository{db: db}
}

// FindByID finds a run by ID
func (r *GormRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*simulation.Run, error) {
	var model models.SimulationRunModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByName finds the most recent run with the given name
func (r *GormRunRepository) FindByName(ctx context.Context, name string) (*simulation.Run, error) {
	var model models.SimulationRunModel
	if err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindRecent finds the most recently created runs, newest first
func (r *GormRunRepository) FindRecent(ctx context.Context, limit int) ([]simulation.Run, error) {
	var runModels []models.SimulationRunModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&runModels).Error; err != nil {
		return nil, err
	}

	runs := make([]simulation.Run, len(runModels))
	for i, model := range runModels {
		runs[i] = *model.ToDomain()
	}
	return runs, nil
}

// FindByStatus finds runs in the given status, newest first
func (r *GormRunRepository) FindByStatus(ctx context.Context, status simulation.RunStatus, limit int) ([]simulation.Run, error) {
	var runModels []models.SimulationRunModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_at DESC").
		Limit(limit).
		Find(&runModels).Error; err != nil {
		return nil, err
	}

	runs := make([]simulation.Run, len(runModels))
	for i, model := range runModels {
		runs[i] = *model.ToDomain()
	}
	return runs, nil
}

// Save saves a run (insert or update)
func (r *GormRunRepository) Save(ctx context.Context, run *simulation.Run) error {
	model := models.SimulationRunModelFromDomain(run)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete deletes a run by ID
func (r *GormRunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.SimulationRunModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormRunRepository implements RunRepository
var _ simulation.RunRepository = (*GormRunRepository)(nil)
