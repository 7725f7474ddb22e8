package storage

import (
	"context"

	"github.com/skalibog/ndra/pkg/models"
)

// Noop хранилище-заглушка для запусков без персистентности
type Noop struct{}

func (Noop) SaveSeries(ctx context.Context, settlementID string, series []models.SeriesPoint) error {
	return nil
}

func (Noop) SaveSummary(ctx context.Context, summary *models.SettlementSummary) error {
	return nil
}

func (Noop) Close() {}
