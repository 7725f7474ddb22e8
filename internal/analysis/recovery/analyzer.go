package recovery

import (
	"time"

	"github.com/markcheno/go-talib"
	"github.com/skalibog/ndra/internal/config"
	"github.com/skalibog/ndra/pkg/models"
)

// Analyzer определяет, восстановилось ли поселение после нарушения и как
type Analyzer struct {
	config config.RecoveryConfig
}

// NewAnalyzer создает новый анализатор восстановления
func NewAnalyzer(cfg config.RecoveryConfig) *Analyzer {
	return &Analyzer{
		config: cfg,
	}
}

// Assess классифицирует восстановление. Правила в порядке приоритета:
// восходящая точка смены тренда после нарушения, затем устойчивый
// положительный наклон тренда, иначе восстановления нет.
func (a *Analyzer) Assess(series []models.SeriesPoint, points []models.ChangePoint, dist *models.DisturbanceEvent) models.RecoveryAssessment {
	if dist == nil {
		return models.RecoveryAssessment{Type: models.RecoveryNone}
	}

	if assessment, ok := a.changePointRebound(series, points, dist); ok {
		return assessment
	}
	if assessment, ok := a.slopeRebound(series, dist); ok {
		return assessment
	}

	return models.RecoveryAssessment{Type: models.RecoveryNone}
}

// changePointRebound ищет первую восходящую точку смены тренда строго после
// нарушения. Горизонт поиска по умолчанию не ограничен (horizon_days = 0).
func (a *Analyzer) changePointRebound(series []models.SeriesPoint, points []models.ChangePoint, dist *models.DisturbanceEvent) (models.RecoveryAssessment, bool) {
	horizon := time.Duration(a.config.HorizonDays) * 24 * time.Hour

	for _, cp := range points {
		if cp.Index <= dist.Point.Index {
			continue
		}
		if horizon > 0 && cp.Timestamp.Sub(dist.Point.Timestamp) > horizon {
			break
		}
		if cp.Index+1 >= len(series) {
			continue
		}

		rise := series[cp.Index+1].Trend - series[cp.Index].Trend
		if rise > a.config.MinRise && rise > 0 {
			ts := cp.Timestamp
			metric := rise
			return models.RecoveryAssessment{
				Type:      models.RecoveryChangePoint,
				Timestamp: &ts,
				Metric:    &metric,
				FullCycle: true,
			}, true
		}
	}

	return models.RecoveryAssessment{}, false
}

// slopeRebound оценивает наклон тренда на окне после нарушения.
// Окно отсчитывается по датам, как окна теста значимости: после чистки
// выбросов ряд бывает разреженным, и счет по отсчетам растягивал бы окно.
// Ряд, не дотягивающийся до конца окна, не ошибка: проверка пропускается.
func (a *Analyzer) slopeRebound(series []models.SeriesPoint, dist *models.DisturbanceEvent) (models.RecoveryAssessment, bool) {
	if a.config.SlopeWindowDays < 2 {
		return models.RecoveryAssessment{}, false
	}

	deadline := dist.Point.Timestamp.Add(time.Duration(a.config.SlopeWindowDays) * 24 * time.Hour)
	if series[len(series)-1].Timestamp.Before(deadline) {
		return models.RecoveryAssessment{}, false
	}

	var segment []float64
	for _, p := range series[dist.Point.Index:] {
		if p.Timestamp.After(deadline) {
			break
		}
		segment = append(segment, p.Trend)
	}
	if len(segment) < 2 {
		return models.RecoveryAssessment{}, false
	}

	// Наклон линейной регрессии по всему окну, в единицах радиометрии на отсчет
	slopes := talib.LinearRegSlope(segment, len(segment))
	slope := slopes[len(slopes)-1]

	if slope > a.config.SlopeThreshold {
		metric := slope
		return models.RecoveryAssessment{
			Type:      models.RecoverySlope,
			Metric:    &metric,
			FullCycle: true,
		}, true
	}

	return models.RecoveryAssessment{}, false
}
