package significance

import (
	"math"
	"time"

	"github.com/skalibog/ndra/internal/config"
	"github.com/skalibog/ndra/pkg/models"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Analyzer проверяет статистическую значимость нарушения по остаткам pre/post
type Analyzer struct {
	config config.SignificanceConfig
}

// NewAnalyzer создает новый анализатор значимости
func NewAnalyzer(cfg config.SignificanceConfig) *Analyzer {
	return &Analyzer{
		config: cfg,
	}
}

// Test выполняет t-тест Уэлча и считает размер эффекта Коэна для остатков
// до и после нарушения. Возвращает nil ("не рассчитано"), если в одном из
// окон меньше минимума наблюдений или разброс вырожден. Флаг значимости
// здесь не выставляется: пороговая политика принадлежит вызывающему.
func (a *Analyzer) Test(series []models.SeriesPoint, dist *models.DisturbanceEvent) *models.SignificanceResult {
	if dist == nil {
		return nil
	}

	pre, post := a.partition(series, dist.Point.Timestamp)
	if len(pre) < a.config.MinObservations || len(post) < a.config.MinObservations {
		return nil
	}

	meanPre := stat.Mean(pre, nil)
	meanPost := stat.Mean(post, nil)
	varPre := stat.Variance(pre, nil)
	varPost := stat.Variance(post, nil)
	n1 := float64(len(pre))
	n2 := float64(len(post))

	// t-тест Уэлча для выборок с неравными дисперсиями
	se := math.Sqrt(varPre/n1 + varPost/n2)
	if se == 0 {
		return nil
	}
	tStat := (meanPre - meanPost) / se

	// Степени свободы по Уэлчу-Саттертуэйту
	df := math.Pow(varPre/n1+varPost/n2, 2) /
		(math.Pow(varPre/n1, 2)/(n1-1) + math.Pow(varPost/n2, 2)/(n2-1))

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	pValue := 2 * tDist.CDF(-math.Abs(tStat))

	return &models.SignificanceResult{
		TStatistic: tStat,
		PValue:     pValue,
		CohensD:    cohensD(pre, post, meanPre, meanPost),
	}
}

// partition разбивает остатки на окна строго до и строго после нарушения,
// ограниченные настроенной глубиной взгляда назад и вперед
func (a *Analyzer) partition(series []models.SeriesPoint, at time.Time) (pre, post []float64) {
	lookback := time.Duration(a.config.LookbackDays) * 24 * time.Hour
	lookforward := time.Duration(a.config.LookforwardDays) * 24 * time.Hour

	for _, p := range series {
		switch {
		case p.Timestamp.Before(at):
			if at.Sub(p.Timestamp) <= lookback {
				pre = append(pre, p.Residual)
			}
		case p.Timestamp.After(at):
			if p.Timestamp.Sub(at) <= lookforward {
				post = append(post, p.Residual)
			}
		}
	}
	return pre, post
}

// cohensD считает размер эффекта (mean(post) - mean(pre)) / pooled std.
// Пулинг равновесный по популяционным дисперсиям обеих выборок.
func cohensD(pre, post []float64, meanPre, meanPost float64) float64 {
	pooled := math.Sqrt((popVariance(pre, meanPre) + popVariance(post, meanPost)) / 2)
	if pooled == 0 {
		return 0
	}
	return (meanPost - meanPre) / pooled
}

// popVariance популяционная дисперсия выборки
func popVariance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += (v - mean) * (v - mean)
	}
	return sum / float64(len(values))
}
