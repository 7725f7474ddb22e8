package storage

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/jpillora/backoff"
	"github.com/skalibog/ndra/internal/config"
	"github.com/skalibog/ndra/pkg/models"
)

// InfluxDBStorage реализует интерфейс Storage с использованием InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	org      string
	bucket   string
	runID    string
}

// NewInfluxDBStorage создает новое хранилище InfluxDB.
// Каждый запуск помечается тегом run, чтобы повторные прогоны не смешивались.
func NewInfluxDBStorage(cfg config.StorageConfig, runID string) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Проверка соединения с повторами
	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
	}
	var lastErr error
	for attempt := 0; attempt < 4; attempt++ {
		health, err := client.Health(context.Background())
		if err == nil && health != nil && health.Status == "pass" {
			lastErr = nil
			break
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
		}
		time.Sleep(b.Duration())
	}
	if lastErr != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", lastErr)
	}

	return &InfluxDBStorage{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Organization, cfg.Bucket),
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
		runID:    runID,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() {
	s.writeAPI.Flush()
	s.client.Close()
}

// SaveSeries сохраняет очищенный ряд с трендом и остатками
func (s *InfluxDBStorage) SaveSeries(ctx context.Context, settlementID string, series []models.SeriesPoint) error {
	for _, p := range series {
		point := influxdb2.NewPoint(
			"ntl_series",
			map[string]string{
				"settlement": settlementID,
				"run":        s.runID,
			},
			map[string]interface{}{
				"observed": p.Observed,
				"trend":    p.Trend,
				"residual": p.Residual,
			},
			p.Timestamp,
		)
		s.writeAPI.WritePoint(point)
	}

	s.writeAPI.Flush()
	return nil
}

// SaveSummary сохраняет итоговую запись по поселению
func (s *InfluxDBStorage) SaveSummary(ctx context.Context, summary *models.SettlementSummary) error {
	fields := map[string]interface{}{
		"recovery_type": summary.Recovery.Type.String(),
		"full_cycle":    summary.Recovery.FullCycle,
		"strength":      summary.Strength,
	}

	// Отсутствующие результаты не записываются вовсе, чтобы не
	// подменять "нет нарушения" нулевыми значениями
	if summary.Disturbance != nil {
		fields["disturbance_date"] = summary.Disturbance.Point.Timestamp.Format("2006-01-02")
		fields["drop_magnitude"] = summary.Disturbance.DropMagnitude
		fields["probability"] = summary.Disturbance.Point.Probability
	}
	if summary.Significance != nil {
		fields["t_statistic"] = summary.Significance.TStatistic
		fields["p_value"] = summary.Significance.PValue
		fields["cohens_d"] = summary.Significance.CohensD
		fields["significant"] = summary.Significance.Significant
	}
	if summary.Recovery.Timestamp != nil {
		fields["recovery_date"] = summary.Recovery.Timestamp.Format("2006-01-02")
	}
	if summary.Recovery.Metric != nil {
		fields["recovery_metric"] = *summary.Recovery.Metric
	}

	point := influxdb2.NewPoint(
		"disturbance_summary",
		map[string]string{
			"settlement": summary.SettlementID,
			"run":        s.runID,
		},
		fields,
		summary.ProcessedAt,
	)

	s.writeAPI.WritePoint(point)
	s.writeAPI.Flush()

	return nil
}
