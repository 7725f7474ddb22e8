package estimator

import (
	"fmt"
	"math"
	"sort"

	"github.com/markcheno/go-talib"
	"github.com/skalibog/ndra/internal/config"
)

// BinSeg реализует оценку кусочно-линейного тренда бинарной сегментацией
type BinSeg struct {
	config config.EstimatorConfig
}

// NewBinSeg создает новый сегментационный оценщик тренда
func NewBinSeg(cfg config.EstimatorConfig) *BinSeg {
	return &BinSeg{
		config: cfg,
	}
}

// segment полуинтервал [lo, hi) входного ряда
type segment struct {
	lo, hi int
}

// split кандидат на разбиение сегмента
type split struct {
	seg  segment
	at   int     // первый индекс правого сегмента
	gain float64 // относительное снижение ошибки аппроксимации
}

// Estimate оценивает тренд и точки его смены
func (b *BinSeg) Estimate(values []float64) (*TrendResult, error) {
	if len(values) < 2 {
		return nil, fmt.Errorf("ряд слишком короткий для оценки тренда: %d точек", len(values))
	}

	smoothed := b.smooth(values)

	// Жадная бинарная сегментация: на каждом шаге разбивается сегмент
	// с наибольшим относительным выигрышем
	segments := []segment{{lo: 0, hi: len(smoothed)}}
	var breaks []Breakpoint

	for len(breaks) < b.config.MaxChangePoints {
		best, ok := b.bestSplit(smoothed, segments)
		if !ok || best.gain < b.config.MinGain {
			break
		}

		newSegments := make([]segment, 0, len(segments)+1)
		for _, seg := range segments {
			if seg == best.seg {
				newSegments = append(newSegments, segment{lo: seg.lo, hi: best.at}, segment{lo: best.at, hi: seg.hi})
			} else {
				newSegments = append(newSegments, seg)
			}
		}
		segments = newSegments

		breaks = append(breaks, Breakpoint{
			Index:       best.at - 1,
			Probability: b.probability(best.gain),
		})
	}

	// Тренд собирается из линейных аппроксимаций итоговых сегментов
	trend := make([]float64, len(smoothed))
	for _, seg := range segments {
		slope, intercept, _ := linearFit(smoothed, seg.lo, seg.hi)
		for i := seg.lo; i < seg.hi; i++ {
			trend[i] = intercept + slope*float64(i-seg.lo)
		}
	}

	sort.Slice(breaks, func(i, j int) bool {
		return breaks[i].Index < breaks[j].Index
	})

	return &TrendResult{
		Trend:       trend,
		Breakpoints: breaks,
	}, nil
}

// smooth сглаживает ряд скользящим средним перед сегментацией
func (b *BinSeg) smooth(values []float64) []float64 {
	window := b.config.SmoothWindow
	if window < 2 || len(values) < window {
		return values
	}

	sma := talib.Sma(values, window)
	// talib оставляет нули до накопления окна
	smoothed := make([]float64, len(values))
	for i := range values {
		if i < window-1 {
			smoothed[i] = values[i]
		} else {
			smoothed[i] = sma[i]
		}
	}
	return smoothed
}

// Порог суммы квадратов остатков на один отсчет, ниже которого ошибка
// аппроксимации считается машинным шумом, а не сигналом
const sseNoiseFloor = 1e-9

// bestSplit ищет лучшее разбиение среди текущих сегментов
func (b *BinSeg) bestSplit(values []float64, segments []segment) (split, bool) {
	minSeg := b.config.MinSegment
	if minSeg < 2 {
		minSeg = 2
	}

	best := split{gain: -1}
	for _, seg := range segments {
		if seg.hi-seg.lo < 2*minSeg {
			continue
		}

		// Относительный выигрыш на шумовой ошибке был бы делением
		// погрешности округления на погрешность округления
		_, _, total := linearFit(values, seg.lo, seg.hi)
		if total <= sseNoiseFloor*float64(seg.hi-seg.lo) {
			continue
		}

		for at := seg.lo + minSeg; at <= seg.hi-minSeg; at++ {
			_, _, left := linearFit(values, seg.lo, at)
			_, _, right := linearFit(values, at, seg.hi)
			gain := (total - left - right) / total
			if gain > best.gain {
				best = split{seg: seg, at: at, gain: gain}
			}
		}
	}

	return best, best.gain >= 0
}

// probability переводит выигрыш разбиения в условную вероятность точки смены
func (b *BinSeg) probability(gain float64) float64 {
	p := gain / (4 * b.config.MinGain)
	return math.Min(1, math.Max(0, p))
}

// linearFit подбирает прямую методом наименьших квадратов на [lo, hi)
// и возвращает наклон, свободный член и сумму квадратов остатков
func linearFit(values []float64, lo, hi int) (slope, intercept, sse float64) {
	n := float64(hi - lo)
	if n < 1 {
		return 0, 0, 0
	}
	if n == 1 {
		return 0, values[lo], 0
	}

	sumX := 0.0
	sumY := 0.0
	sumXY := 0.0
	sumXX := 0.0
	for i := lo; i < hi; i++ {
		x := float64(i - lo)
		y := values[i]
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		slope = 0
	} else {
		slope = (n*sumXY - sumX*sumY) / denom
	}
	intercept = (sumY - slope*sumX) / n

	for i := lo; i < hi; i++ {
		resid := values[i] - (intercept + slope*float64(i-lo))
		sse += resid * resid
	}

	return slope, intercept, sse
}
