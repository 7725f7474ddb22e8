package recovery

import (
	"testing"
	"time"

	"github.com/skalibog/ndra/internal/config"
	"github.com/skalibog/ndra/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig() config.RecoveryConfig {
	return config.RecoveryConfig{
		MinRise:         0.003,
		HorizonDays:     0,
		SlopeWindowDays: 30,
		SlopeThreshold:  0.001,
	}
}

func makeSeries(trend []float64) []models.SeriesPoint {
	series := make([]models.SeriesPoint, len(trend))
	for i, v := range trend {
		series[i] = models.SeriesPoint{
			Timestamp: base.AddDate(0, 0, i),
			Observed:  v,
			Trend:     v,
		}
	}
	return series
}

// flatAfterDrop тренд 10, падение до 5 на dropIdx, дальше без изменений
func flatAfterDrop(length, dropIdx int) []float64 {
	trend := make([]float64, length)
	for i := range trend {
		if i <= dropIdx {
			trend[i] = 10
		} else {
			trend[i] = 5
		}
	}
	return trend
}

func disturbanceAt(series []models.SeriesPoint, idx int) *models.DisturbanceEvent {
	return &models.DisturbanceEvent{
		Point: models.ChangePoint{
			Index:       idx,
			Timestamp:   series[idx].Timestamp,
			Probability: 0.9,
		},
		DropMagnitude: series[idx+1].Trend - series[idx].Trend,
	}
}

func changePointAt(series []models.SeriesPoint, idx int) models.ChangePoint {
	return models.ChangePoint{
		Index:       idx,
		Timestamp:   series[idx].Timestamp,
		Probability: 0.8,
	}
}

func TestAssessNoRecovery(t *testing.T) {
	analyzer := NewAnalyzer(testConfig())

	series := makeSeries(flatAfterDrop(60, 10))
	dist := disturbanceAt(series, 10)

	got := analyzer.Assess(series, []models.ChangePoint{dist.Point}, dist)

	assert.Equal(t, models.RecoveryNone, got.Type)
	assert.False(t, got.FullCycle)
	assert.Nil(t, got.Timestamp)
	assert.Nil(t, got.Metric)
}

func TestAssessChangePointRebound(t *testing.T) {
	analyzer := NewAnalyzer(testConfig())

	// Падение на 10, восходящая точка смены тренда на 30 (рост на 4)
	trend := flatAfterDrop(60, 10)
	for i := 31; i < len(trend); i++ {
		trend[i] = 9
	}
	series := makeSeries(trend)
	dist := disturbanceAt(series, 10)
	rebound := changePointAt(series, 30)

	got := analyzer.Assess(series, []models.ChangePoint{dist.Point, rebound}, dist)

	assert.Equal(t, models.RecoveryChangePoint, got.Type)
	assert.True(t, got.FullCycle)
	require.NotNil(t, got.Timestamp)
	assert.Equal(t, rebound.Timestamp, *got.Timestamp)
	require.NotNil(t, got.Metric)
	assert.InDelta(t, 4, *got.Metric, 1e-9)
}

// Точка смены тренда приоритетнее наклона, даже когда наклон тоже проходит
func TestAssessChangePointPrecedesSlope(t *testing.T) {
	analyzer := NewAnalyzer(testConfig())

	trend := make([]float64, 80)
	for i := range trend {
		switch {
		case i <= 10:
			trend[i] = 10
		case i <= 30:
			trend[i] = 5 + 0.01*float64(i-10)
		default:
			trend[i] = 9 + 0.01*float64(i-30)
		}
	}
	series := makeSeries(trend)
	dist := disturbanceAt(series, 10)
	rebound := changePointAt(series, 30)

	got := analyzer.Assess(series, []models.ChangePoint{dist.Point, rebound}, dist)

	assert.Equal(t, models.RecoveryChangePoint, got.Type)
}

func TestAssessSlopeRebound(t *testing.T) {
	analyzer := NewAnalyzer(testConfig())

	// Небольшое падение, затем устойчивый рост 0.05 в сутки без новых
	// точек смены тренда. Окно наклона начинается с точки нарушения.
	trend := make([]float64, 80)
	for i := range trend {
		if i <= 10 {
			trend[i] = 10
		} else {
			trend[i] = 9.8 + 0.05*float64(i-11)
		}
	}
	series := makeSeries(trend)
	dist := disturbanceAt(series, 10)

	got := analyzer.Assess(series, []models.ChangePoint{dist.Point}, dist)

	assert.Equal(t, models.RecoverySlope, got.Type)
	assert.True(t, got.FullCycle)
	assert.Nil(t, got.Timestamp)
	require.NotNil(t, got.Metric)
	assert.Greater(t, *got.Metric, 0.001)
	assert.InDelta(t, 0.05, *got.Metric, 0.01)
}

// Разреженный после чистки выбросов ряд: окно наклона считается по датам,
// а не по числу отсчетов
func TestAssessSlopeReboundSparseSeries(t *testing.T) {
	analyzer := NewAnalyzer(testConfig())

	// Наблюдения раз в двое суток: 30 отсчетов покрывают 58 суток
	series := make([]models.SeriesPoint, 30)
	for i := range series {
		v := 10.0
		if i > 5 {
			v = 9.8 + 0.1*float64(i-6)
		}
		series[i] = models.SeriesPoint{
			Timestamp: base.AddDate(0, 0, 2*i),
			Observed:  v,
			Trend:     v,
		}
	}
	dist := disturbanceAt(series, 5)

	got := analyzer.Assess(series, []models.ChangePoint{dist.Point}, dist)

	assert.Equal(t, models.RecoverySlope, got.Type)
	require.NotNil(t, got.Metric)
	assert.Greater(t, *got.Metric, 0.001)
}

func TestAssessHorizonBoundsRebound(t *testing.T) {
	cfg := testConfig()
	cfg.HorizonDays = 10
	cfg.SlopeWindowDays = 0
	analyzer := NewAnalyzer(cfg)

	trend := flatAfterDrop(60, 10)
	for i := 31; i < len(trend); i++ {
		trend[i] = 9
	}
	series := makeSeries(trend)
	dist := disturbanceAt(series, 10)

	// Точка восстановления через 20 суток - за горизонтом
	rebound := changePointAt(series, 30)

	got := analyzer.Assess(series, []models.ChangePoint{dist.Point, rebound}, dist)
	assert.Equal(t, models.RecoveryNone, got.Type)
}

func TestAssessMinRiseFiltersWeakRebound(t *testing.T) {
	cfg := testConfig()
	cfg.SlopeWindowDays = 0
	analyzer := NewAnalyzer(cfg)

	trend := flatAfterDrop(60, 10)
	for i := 31; i < len(trend); i++ {
		trend[i] = 5.002
	}
	series := makeSeries(trend)
	dist := disturbanceAt(series, 10)
	rebound := changePointAt(series, 30)

	// Рост 0.002 меньше минимума 0.003
	got := analyzer.Assess(series, []models.ChangePoint{dist.Point, rebound}, dist)
	assert.Equal(t, models.RecoveryNone, got.Type)
}

func TestAssessShortSeriesSkipsSlope(t *testing.T) {
	analyzer := NewAnalyzer(testConfig())

	series := makeSeries(flatAfterDrop(20, 10))
	dist := disturbanceAt(series, 10)

	got := analyzer.Assess(series, []models.ChangePoint{dist.Point}, dist)
	assert.Equal(t, models.RecoveryNone, got.Type)
}

func TestAssessNilDisturbance(t *testing.T) {
	analyzer := NewAnalyzer(testConfig())
	series := makeSeries(flatAfterDrop(60, 10))

	got := analyzer.Assess(series, nil, nil)
	assert.Equal(t, models.RecoveryNone, got.Type)
	assert.False(t, got.FullCycle)
}
