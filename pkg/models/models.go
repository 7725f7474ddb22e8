package models

import (
	"time"
)

// SeriesPoint представляет одно наблюдение очищенного ряда NTL
type SeriesPoint struct {
	Timestamp time.Time
	Observed  float64
	Trend     float64
	Residual  float64
}

// ChangePoint представляет точку смены тренда от оценщика
type ChangePoint struct {
	Index       int
	Timestamp   time.Time
	Probability float64
}

// DisturbanceEvent представляет выбранное нарушение, связанное с событием.
// Отсутствие нарушения кодируется nil-указателем, а не нулевой структурой.
type DisturbanceEvent struct {
	Point         ChangePoint
	DropMagnitude float64
}

// SignificanceResult представляет результат теста значимости pre/post.
// "Не рассчитано" кодируется nil-указателем.
type SignificanceResult struct {
	TStatistic  float64
	PValue      float64
	CohensD     float64
	Significant bool
}

// RecoveryType тип восстановления после нарушения
type RecoveryType int

const (
	RecoveryNone RecoveryType = iota
	RecoveryChangePoint
	RecoverySlope
)

// String возвращает текстовую метку типа восстановления
func (t RecoveryType) String() string {
	switch t {
	case RecoveryChangePoint:
		return "CP"
	case RecoverySlope:
		return "slope"
	default:
		return "none"
	}
}

// RecoveryAssessment представляет оценку восстановления
type RecoveryAssessment struct {
	Type      RecoveryType
	Timestamp *time.Time
	Metric    *float64
	FullCycle bool
}

// SettlementSummary представляет итоговую запись по одному поселению
type SettlementSummary struct {
	SettlementID string
	ProcessedAt  time.Time
	Disturbance  *DisturbanceEvent
	Significance *SignificanceResult
	Recovery     RecoveryAssessment
	// Категория силы нарушения пока не классифицируется
	Strength string
}
