package disturbance

import (
	"time"

	"github.com/skalibog/ndra/pkg/models"
)

// Analyzer выбирает точку смены тренда, представляющую нарушение от события
type Analyzer struct {
	eventDate time.Time
}

// NewAnalyzer создает новый селектор нарушения
func NewAnalyzer(eventDate time.Time) *Analyzer {
	return &Analyzer{
		eventDate: eventDate,
	}
}

// candidate кандидат с рассчитанной величиной падения тренда
type candidate struct {
	point models.ChangePoint
	drop  float64
}

// Select выбирает среди кандидатов нарушение с наибольшим падением тренда.
// Кандидаты без падения (drop >= 0) отбрасываются: рост не является нарушением.
// Возвращает nil, если ни один кандидат не пережил фильтр по падению.
func (a *Analyzer) Select(candidates []models.ChangePoint, trend []float64) *models.DisturbanceEvent {
	var best *candidate
	for _, cp := range candidates {
		if cp.Index < 0 || cp.Index+1 >= len(trend) {
			// На краю ряда скачок тренда не определен
			continue
		}
		drop := trend[cp.Index+1] - trend[cp.Index]
		if drop >= 0 {
			continue
		}
		c := candidate{point: cp, drop: drop}
		if best == nil || a.better(c, *best) {
			best = &c
		}
	}

	if best == nil {
		return nil
	}

	return &models.DisturbanceEvent{
		Point:         best.point,
		DropMagnitude: best.drop,
	}
}

// better задает полный порядок на кандидатах ради воспроизводимости выбора:
// большее падение, затем близость к дате события, затем вероятность,
// затем более ранняя метка времени
func (a *Analyzer) better(x, y candidate) bool {
	if x.drop != y.drop {
		return x.drop < y.drop
	}
	dx, dy := a.distance(x.point.Timestamp), a.distance(y.point.Timestamp)
	if dx != dy {
		return dx < dy
	}
	if x.point.Probability != y.point.Probability {
		return x.point.Probability > y.point.Probability
	}
	return x.point.Timestamp.Before(y.point.Timestamp)
}

// distance абсолютное удаление метки времени от даты события
func (a *Analyzer) distance(ts time.Time) time.Duration {
	diff := ts.Sub(a.eventDate)
	if diff < 0 {
		diff = -diff
	}
	return diff
}
