package estimator

// Breakpoint представляет найденную точку смены тренда.
// Индекс указывает на последнее наблюдение уходящего сегмента,
// так что скачок тренда виден как trend[Index+1] - trend[Index].
type Breakpoint struct {
	Index       int
	Probability float64
}

// TrendResult представляет оценку тренда для одного ряда.
// Кривая тренда выровнена по входному ряду, точки смены упорядочены по индексу.
type TrendResult struct {
	Trend       []float64
	Breakpoints []Breakpoint
}

// Estimator оценивает тренд и точки его смены по очищенному ряду.
// Интерфейс позволяет подменить встроенную сегментацию любым другим
// оценщиком (например, байесовским), соблюдающим тот же контракт.
type Estimator interface {
	Estimate(values []float64) (*TrendResult, error)
}
