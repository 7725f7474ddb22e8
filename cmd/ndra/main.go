package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skalibog/ndra/internal/analysis/aggregator"
	"github.com/skalibog/ndra/internal/config"
	"github.com/skalibog/ndra/internal/dataset"
	"github.com/skalibog/ndra/internal/estimator"
	"github.com/skalibog/ndra/internal/export"
	"github.com/skalibog/ndra/internal/storage"
	"github.com/skalibog/ndra/internal/ui"
	"github.com/skalibog/ndra/pkg/logger"
	"github.com/skalibog/ndra/pkg/models"
)

func main() {
	logger.Init()
	defer logger.GetLogger().Sync()

	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	flag.Parse()

	// Проверяем наличие файла конфигурации
	logger.Info("Проверка наличия файла конфигурации", zap.String("path", *configPath))
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		logger.Fatal("Файл конфигурации не найден", zap.String("path", *configPath))
	}

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Ошибка загрузки конфигурации", zap.Error(err))
	}

	// Создаем контекст с возможностью отмены через горутину
	ctx, cancel := context.WithCancel(context.Background())

	// Настраиваем обработку сигналов завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nЗавершение работы...")
		cancel()
		time.Sleep(2 * time.Second) // Даем воркерам время на завершение
		os.Exit(0)
	}()

	// Идентификатор запуска для тегирования результатов в хранилище
	runID := uuid.NewString()
	logger.Info("Запуск пакетного анализа", zap.String("run", runID),
		zap.String("event_date", cfg.Event.Date), zap.Int("window_days", cfg.Event.WindowDays))

	// Инициализируем хранилище
	store, err := storage.New(cfg.Storage, runID)
	if err != nil {
		logger.Fatal("Ошибка инициализации хранилища", zap.Error(err))
	}
	defer store.Close()

	// Загружаем входные данные
	data, err := dataset.LoadNTLTable(cfg.Data.NTLFile)
	if err != nil {
		logger.Fatal("Ошибка загрузки таблицы NTL", zap.Error(err))
	}
	settlements, err := dataset.LoadSettlementList(cfg.Data.SettlementList)
	if err != nil {
		logger.Fatal("Ошибка загрузки списка поселений", zap.Error(err))
	}
	logger.Info("Входные данные загружены",
		zap.Int("settlements", len(settlements)), zap.Int("series", len(data)))

	// Создаем агрегатор аналитики со встроенным оценщиком тренда
	analyzer, err := aggregator.NewAnalyzer(cfg, store, estimator.NewBinSeg(cfg.Analysis.Estimator))
	if err != nil {
		logger.Fatal("Ошибка инициализации анализатора", zap.Error(err))
	}

	if cfg.UI.Enabled {
		runWithUI(ctx, cfg, analyzer, settlements, data)
	} else {
		runHeadless(ctx, cfg, analyzer, settlements, data)
	}
}

// runHeadless выполняет пакет без интерфейса и пишет сводку в CSV
func runHeadless(ctx context.Context, cfg *config.Config, analyzer *aggregator.Analyzer, settlements []string, data map[string][]dataset.Observation) {
	err := analyzer.ProcessAll(ctx, settlements, data, func(s *models.SettlementSummary) {
		processed, skipped := analyzer.Stats()
		logger.Info("Поселение обработано",
			zap.String("settlement", s.SettlementID),
			zap.Int("processed", processed),
			zap.Int("skipped", skipped))
	})
	finishBatch(cfg, analyzer, err)
}

// runWithUI выполняет пакет в горутине, показывая прогресс в терминале
func runWithUI(ctx context.Context, cfg *config.Config, analyzer *aggregator.Analyzer, settlements []string, data map[string][]dataset.Observation) {
	userInterface, err := ui.NewTermUI(cfg.UI, len(settlements))
	if err != nil {
		logger.Fatal("Ошибка инициализации пользовательского интерфейса", zap.Error(err))
	}

	go func() {
		err := analyzer.ProcessAll(ctx, settlements, data, func(s *models.SettlementSummary) {
			processed, skipped := analyzer.Stats()
			userInterface.UpdateProgress(s, processed, skipped)
		})
		finishBatch(cfg, analyzer, err)
		processed, skipped := analyzer.Stats()
		userInterface.Finish(processed, skipped)
	}()

	// UI блокирует основной поток до выхода пользователя
	userInterface.Start()
}

// finishBatch завершает пакет: проверяет ошибку, пишет сводный CSV
func finishBatch(cfg *config.Config, analyzer *aggregator.Analyzer, err error) {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Пакет прерван")
		} else {
			logger.Fatal("Пакет завершился с ошибкой", zap.Error(err))
		}
	}

	summaries := analyzer.Finalize()
	summaryPath := filepath.Join(cfg.Output.Dir, cfg.Output.SummaryFile)
	if err := export.WriteBatchSummary(summaryPath, summaries); err != nil {
		logger.Fatal("Ошибка записи сводки", zap.Error(err))
	}

	processed, skipped := analyzer.Stats()
	fullCycles := 0
	for _, s := range summaries {
		if s.Recovery.FullCycle {
			fullCycles++
		}
	}
	logger.Info("Сводка сохранена",
		zap.String("path", summaryPath),
		zap.Int("processed", processed),
		zap.Int("skipped", skipped),
		zap.Int("full_cycles", fullCycles))
}
