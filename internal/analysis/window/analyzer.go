package window

import (
	"time"

	"github.com/skalibog/ndra/pkg/models"
)

// Analyzer отбирает точки смены тренда вблизи даты опорного события
type Analyzer struct {
	eventDate time.Time
	window    time.Duration
}

// NewAnalyzer создает новый фильтр кандидатов.
// Окно симметрично: [eventDate - windowDays, eventDate + windowDays].
func NewAnalyzer(eventDate time.Time, windowDays int) *Analyzer {
	return &Analyzer{
		eventDate: eventDate,
		window:    time.Duration(windowDays) * 24 * time.Hour,
	}
}

// Filter возвращает кандидатов внутри окна события, сохраняя порядок оценщика.
// Пустой результат не ошибка: он означает отсутствие сигнала, связанного с событием.
func (a *Analyzer) Filter(points []models.ChangePoint) []models.ChangePoint {
	var candidates []models.ChangePoint
	for _, cp := range points {
		if a.inWindow(cp.Timestamp) {
			candidates = append(candidates, cp)
		}
	}
	return candidates
}

// inWindow проверяет попадание метки времени в окно события
func (a *Analyzer) inWindow(ts time.Time) bool {
	diff := ts.Sub(a.eventDate)
	if diff < 0 {
		diff = -diff
	}
	return diff <= a.window
}
