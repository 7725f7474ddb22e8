package storage

import (
	"context"
	"fmt"

	"github.com/skalibog/ndra/internal/config"
	"github.com/skalibog/ndra/pkg/models"
)

// Storage интерфейс для сохранения результатов анализа
type Storage interface {
	// SaveSeries сохраняет очищенный ряд с трендом и остатками
	SaveSeries(ctx context.Context, settlementID string, series []models.SeriesPoint) error
	// SaveSummary сохраняет итоговую запись по поселению
	SaveSummary(ctx context.Context, summary *models.SettlementSummary) error
	Close()
}

// New создает хранилище по конфигурации. Пустой тип или "none"
// отключают сохранение: пайплайн работает только на файловый вывод.
func New(cfg config.StorageConfig, runID string) (Storage, error) {
	switch cfg.Type {
	case "", "none":
		return Noop{}, nil
	case "influxdb":
		return NewInfluxDBStorage(cfg, runID)
	default:
		return nil, fmt.Errorf("неизвестный тип хранилища: %s", cfg.Type)
	}
}
