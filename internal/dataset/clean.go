package dataset

import (
	"errors"
	"fmt"
	"math"

	"github.com/skalibog/ndra/internal/config"
)

// ErrDataQuality означает, что ряд поселения непригоден для анализа.
// Такое поселение пропускается и не попадает в итоговую сводку.
var ErrDataQuality = errors.New("недостаточное качество данных")

// Prepare упорядочивает ряд, убирает выбросы и проверяет пороги качества
func Prepare(obs []Observation, quality config.QualityConfig) ([]Observation, error) {
	sorted, err := SortByDate(obs)
	if err != nil {
		return nil, err
	}

	cleaned := RemoveOutliers(sorted, quality.OutlierZScore)

	if len(cleaned) < quality.MinPoints {
		return nil, fmt.Errorf("%w: %d наблюдений после очистки (требуется %d)",
			ErrDataQuality, len(cleaned), quality.MinPoints)
	}

	if mean(cleaned) < quality.MinMeanRadiance {
		return nil, fmt.Errorf("%w: средняя радиометрия %.4f ниже порога %.4f",
			ErrDataQuality, mean(cleaned), quality.MinMeanRadiance)
	}

	return cleaned, nil
}

// RemoveOutliers отбрасывает наблюдения с |z-score| выше порога.
// При нулевом разбросе ряд возвращается без изменений.
func RemoveOutliers(obs []Observation, threshold float64) []Observation {
	if len(obs) < 2 || threshold <= 0 {
		return obs
	}

	m := mean(obs)
	variance := 0.0
	for _, o := range obs {
		variance += (o.Value - m) * (o.Value - m)
	}
	std := math.Sqrt(variance / float64(len(obs)))
	if std == 0 {
		return obs
	}

	result := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if math.Abs((o.Value-m)/std) < threshold {
			result = append(result, o)
		}
	}

	return result
}

// mean среднее значение ряда
func mean(obs []Observation) float64 {
	if len(obs) == 0 {
		return 0
	}
	sum := 0.0
	for _, o := range obs {
		sum += o.Value
	}
	return sum / float64(len(obs))
}
