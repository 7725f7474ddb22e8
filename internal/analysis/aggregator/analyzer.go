package aggregator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/skalibog/ndra/internal/analysis/disturbance"
	"github.com/skalibog/ndra/internal/analysis/recovery"
	"github.com/skalibog/ndra/internal/analysis/significance"
	"github.com/skalibog/ndra/internal/analysis/window"
	"github.com/skalibog/ndra/internal/config"
	"github.com/skalibog/ndra/internal/dataset"
	"github.com/skalibog/ndra/internal/estimator"
	"github.com/skalibog/ndra/internal/export"
	"github.com/skalibog/ndra/internal/storage"
	"github.com/skalibog/ndra/pkg/logger"
	"github.com/skalibog/ndra/pkg/models"
)

// Analyzer объединяет все аналитические компоненты и владеет сводкой пакета
type Analyzer struct {
	config    config.AnalysisConfig
	output    config.OutputConfig
	eventDate time.Time
	store     storage.Storage
	est       estimator.Estimator

	windowAnal       *window.Analyzer
	disturbanceAnal  *disturbance.Analyzer
	significanceAnal *significance.Analyzer
	recoveryAnal     *recovery.Analyzer

	mu        sync.Mutex
	summaries []*models.SettlementSummary
	seen      map[string]bool
	skipped   int
}

// NewAnalyzer создает новый анализатор пакета поселений
func NewAnalyzer(cfg *config.Config, store storage.Storage, est estimator.Estimator) (*Analyzer, error) {
	eventDate, err := cfg.Event.ParsedDate()
	if err != nil {
		return nil, err
	}

	return &Analyzer{
		config:           cfg.Analysis,
		output:           cfg.Output,
		eventDate:        eventDate,
		store:            store,
		est:              est,
		windowAnal:       window.NewAnalyzer(eventDate, cfg.Event.WindowDays),
		disturbanceAnal:  disturbance.NewAnalyzer(eventDate),
		significanceAnal: significance.NewAnalyzer(cfg.Analysis.Significance),
		recoveryAnal:     recovery.NewAnalyzer(cfg.Analysis.Recovery),
		seen:             make(map[string]bool),
	}, nil
}

// ProcessAll обрабатывает все поселения ограниченным пулом воркеров.
// Проблемы отдельных поселений логируются и не прерывают пакет; фатальна
// только повторная обработка одного идентификатора.
func (a *Analyzer) ProcessAll(ctx context.Context, settlements []string, data map[string][]dataset.Observation, progress func(*models.SettlementSummary)) error {
	workers := a.config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, settlementID := range settlements {
		settlementID := settlementID
		g.Go(func() error {
			// Отмена пакета проверяется между поселениями
			if err := ctx.Err(); err != nil {
				return err
			}

			obs, ok := data[settlementID]
			if !ok {
				logger.Warn("Поселение отсутствует в таблице NTL", zap.String("settlement", settlementID))
				a.markSkipped()
				return nil
			}

			summary, err := a.ProcessSettlement(ctx, settlementID, obs)
			if err != nil {
				if errors.Is(err, dataset.ErrDataQuality) {
					logger.Warn("Поселение пропущено",
						zap.String("settlement", settlementID), zap.Error(err))
				} else {
					logger.Error("Ошибка обработки поселения",
						zap.String("settlement", settlementID), zap.Error(err))
				}
				a.markSkipped()
				return nil
			}

			if err := a.append(summary); err != nil {
				return err
			}
			if progress != nil {
				progress(summary)
			}
			return nil
		})
	}

	return g.Wait()
}

// ProcessSettlement выполняет полный пайплайн для одного поселения.
// Вычисление чистое и синхронное; все побочные эффекты (хранилище,
// файловый вывод) безопасны к отказу и не влияют на результат.
func (a *Analyzer) ProcessSettlement(ctx context.Context, settlementID string, obs []dataset.Observation) (*models.SettlementSummary, error) {
	cleaned, err := dataset.Prepare(obs, a.config.Quality)
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(cleaned))
	for i, o := range cleaned {
		values[i] = o.Value
	}

	result, err := a.est.Estimate(values)
	if err != nil {
		return nil, fmt.Errorf("ошибка оценки тренда: %w", err)
	}

	// Ряд обрезается по длине тренда, остаток = наблюдение - тренд
	n := len(cleaned)
	if len(result.Trend) < n {
		n = len(result.Trend)
	}
	series := make([]models.SeriesPoint, n)
	trend := make([]float64, n)
	for i := 0; i < n; i++ {
		series[i] = models.SeriesPoint{
			Timestamp: cleaned[i].Timestamp,
			Observed:  cleaned[i].Value,
			Trend:     result.Trend[i],
			Residual:  cleaned[i].Value - result.Trend[i],
		}
		trend[i] = result.Trend[i]
	}

	changePoints := make([]models.ChangePoint, 0, len(result.Breakpoints))
	for _, bp := range result.Breakpoints {
		if bp.Index < 0 || bp.Index >= n {
			continue
		}
		changePoints = append(changePoints, models.ChangePoint{
			Index:       bp.Index,
			Timestamp:   series[bp.Index].Timestamp,
			Probability: bp.Probability,
		})
	}

	candidates := a.windowAnal.Filter(changePoints)
	dist := a.disturbanceAnal.Select(candidates, trend)

	summary := &models.SettlementSummary{
		SettlementID: settlementID,
		ProcessedAt:  time.Now(),
		Disturbance:  dist,
		Recovery:     models.RecoveryAssessment{Type: models.RecoveryNone},
		Strength:     "none",
	}

	if dist == nil {
		// Отсутствие нарушения - штатный исход, запись остается в сводке
		logger.Debug("Нет точки смены тренда в окне события",
			zap.String("settlement", settlementID),
			zap.Int("candidates", len(candidates)))
		a.persist(ctx, summary, series, changePoints)
		return summary, nil
	}

	logger.Debug("Выбрано нарушение",
		zap.String("settlement", settlementID),
		zap.String("date", dist.Point.Timestamp.Format("2006-01-02")),
		zap.Float64("drop", dist.DropMagnitude))

	if sig := a.significanceAnal.Test(series, dist); sig != nil {
		// Пороговая политика отделена от самого теста
		sig.Significant = sig.PValue < a.config.Significance.Threshold
		summary.Significance = sig
	} else {
		logger.Debug("Тест значимости не рассчитан: мало наблюдений",
			zap.String("settlement", settlementID))
	}

	summary.Recovery = a.recoveryAnal.Assess(series, changePoints, dist)

	a.persist(ctx, summary, series, changePoints)
	return summary, nil
}

// persist сохраняет результаты в хранилище и файловый вывод.
// Отказ персистентности не считается отказом обработки.
func (a *Analyzer) persist(ctx context.Context, summary *models.SettlementSummary, series []models.SeriesPoint, points []models.ChangePoint) {
	if err := a.store.SaveSeries(ctx, summary.SettlementID, series); err != nil {
		logger.Warn("Не удалось сохранить ряд в хранилище",
			zap.String("settlement", summary.SettlementID), zap.Error(err))
	}
	if err := a.store.SaveSummary(ctx, summary); err != nil {
		logger.Warn("Не удалось сохранить сводку в хранилище",
			zap.String("settlement", summary.SettlementID), zap.Error(err))
	}

	if a.output.PerSettlement && summary.Disturbance != nil {
		if err := export.WriteSettlementSeries(a.output.Dir, summary.SettlementID, series, points); err != nil {
			logger.Warn("Не удалось записать файлы поселения",
				zap.String("settlement", summary.SettlementID), zap.Error(err))
		}
	}
}

// append добавляет запись в сводку пакета. Повторный идентификатор
// означает ошибку конфигурации и фатален для запуска.
func (a *Analyzer) append(summary *models.SettlementSummary) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.seen[summary.SettlementID] {
		return fmt.Errorf("поселение %s уже добавлено в сводку", summary.SettlementID)
	}
	a.seen[summary.SettlementID] = true
	a.summaries = append(a.summaries, summary)
	return nil
}

// markSkipped учитывает пропущенное поселение
func (a *Analyzer) markSkipped() {
	a.mu.Lock()
	a.skipped++
	a.mu.Unlock()
}

// Finalize возвращает сводку пакета в порядке добавления записей
func (a *Analyzer) Finalize() []*models.SettlementSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := make([]*models.SettlementSummary, len(a.summaries))
	copy(result, a.summaries)
	return result
}

// Stats возвращает счетчики обработанных и пропущенных поселений
func (a *Analyzer) Stats() (processed, skipped int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.summaries), a.skipped
}
