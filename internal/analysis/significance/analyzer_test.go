package significance

import (
	"testing"
	"time"

	"github.com/skalibog/ndra/internal/config"
	"github.com/skalibog/ndra/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig() config.SignificanceConfig {
	return config.SignificanceConfig{
		Threshold:       0.05,
		LookbackDays:    60,
		LookforwardDays: 60,
		MinObservations: 2,
	}
}

// buildSeries строит дневной ряд остатков вокруг нарушения на distIdx
func buildSeries(residuals []float64) []models.SeriesPoint {
	series := make([]models.SeriesPoint, len(residuals))
	for i, r := range residuals {
		series[i] = models.SeriesPoint{
			Timestamp: base.AddDate(0, 0, i),
			Observed:  10 + r,
			Trend:     10,
			Residual:  r,
		}
	}
	return series
}

func disturbanceAt(series []models.SeriesPoint, idx int) *models.DisturbanceEvent {
	return &models.DisturbanceEvent{
		Point: models.ChangePoint{
			Index:       idx,
			Timestamp:   series[idx].Timestamp,
			Probability: 0.9,
		},
		DropMagnitude: -5,
	}
}

func TestTestIdenticalSamples(t *testing.T) {
	analyzer := NewAnalyzer(testConfig())

	// Одинаковое распределение остатков до и после: эффект нулевой
	residuals := []float64{1, 2, 3, 4, 0, 1, 2, 3, 4}
	series := buildSeries(residuals)

	got := analyzer.Test(series, disturbanceAt(series, 4))

	require.NotNil(t, got)
	assert.InDelta(t, 0, got.TStatistic, 1e-9)
	assert.InDelta(t, 1, got.PValue, 1e-9)
	assert.InDelta(t, 0, got.CohensD, 1e-9)
}

func TestTestSeparatedSamples(t *testing.T) {
	analyzer := NewAnalyzer(testConfig())

	residuals := []float64{5, 6, 7, 8, 0, 0, 1, 0, 1}
	series := buildSeries(residuals)

	got := analyzer.Test(series, disturbanceAt(series, 4))

	require.NotNil(t, got)
	// pre выше post: t положительный, d отрицательный
	assert.Greater(t, got.TStatistic, 0.0)
	assert.Less(t, got.CohensD, 0.0)
	assert.Less(t, got.PValue, 0.05)
	// Флаг политики выставляет вызывающий, не тест
	assert.False(t, got.Significant)
}

// Сценарий: одно наблюдение до нарушения - тест не рассчитывается
func TestTestInsufficientPreWindow(t *testing.T) {
	analyzer := NewAnalyzer(testConfig())

	residuals := []float64{1, 0, 2, 1, 2, 1, 2}
	series := buildSeries(residuals)

	got := analyzer.Test(series, disturbanceAt(series, 1))
	assert.Nil(t, got)
}

func TestTestZeroVariance(t *testing.T) {
	analyzer := NewAnalyzer(testConfig())

	residuals := []float64{1, 1, 1, 0, 1, 1, 1}
	series := buildSeries(residuals)

	// Нулевая стандартная ошибка: результат "не рассчитано", а не Inf
	got := analyzer.Test(series, disturbanceAt(series, 3))
	assert.Nil(t, got)
}

func TestTestNilDisturbance(t *testing.T) {
	analyzer := NewAnalyzer(testConfig())
	series := buildSeries([]float64{1, 2, 3, 4, 5})

	assert.Nil(t, analyzer.Test(series, nil))
}

func TestTestBoundedLookback(t *testing.T) {
	cfg := testConfig()
	cfg.LookbackDays = 2
	cfg.LookforwardDays = 2
	analyzer := NewAnalyzer(cfg)

	// Далекие от нарушения остатки не должны влиять на окна
	residuals := []float64{100, 100, 1, 2, 0, 1, 2, 100, 100}
	series := buildSeries(residuals)

	got := analyzer.Test(series, disturbanceAt(series, 4))

	require.NotNil(t, got)
	// Окна из {1,2} с обеих сторон: эффект нулевой
	assert.InDelta(t, 0, got.TStatistic, 1e-9)
	assert.InDelta(t, 0, got.CohensD, 1e-9)
}
