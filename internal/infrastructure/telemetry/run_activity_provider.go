// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormRunActivityProvider implements RunActivityProvider using GORM.
// It queries the simulation_runs table directly for aggregated counts.
type GormRunActivityProvider struct {
	db *gorm.DB
}

// NewGormRunActivityProvider creates a new GormRunActivityProvider.
func NewGormRunActivityProvider(db *gorm.DB) *GormRunActivityProvider {
	return &GormRunActivityProvider{db: db}
}

// CountRunsByStatus returns the number of runs per lifecycle status.
func (p *GormRunActivityProvider) CountRunsByStatus(ctx context.Context) (map[string]int64, error) {
	type result struct {
		Status string `gorm:"column:status"`
		Count  int64  `gorm:"column:count"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("simulation_runs").
		Select("status, COUNT(*) as count").
		Group("status").
		Find(&results).Error

	if err != nil {
		return nil, err
	}

	m := make(map[string]int64, len(results))
	for _, r := range results {
		m[r.Status] = r.Count
	}

	return m, nil
}
