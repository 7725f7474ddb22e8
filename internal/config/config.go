package config

import (
	"fmt"
	"os"
	"time"

	"github.com/skalibog/ndra/pkg/logger"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Data     DataConfig     `yaml:"data"`
	Event    EventConfig    `yaml:"event"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Storage  StorageConfig  `yaml:"storage"`
	Output   OutputConfig   `yaml:"output"`
	UI       UIConfig       `yaml:"ui"`
}

// DataConfig содержит пути к входным данным
type DataConfig struct {
	NTLFile        string `yaml:"ntl_file"`
	SettlementList string `yaml:"settlement_list"`
}

// EventConfig содержит параметры опорного события (циклона)
type EventConfig struct {
	Date       string `yaml:"date"`
	WindowDays int    `yaml:"window_days"`
}

// ParsedDate возвращает дату события как time.Time
func (e EventConfig) ParsedDate() (time.Time, error) {
	t, err := time.Parse("2006-01-02", e.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("некорректная дата события %q: %w", e.Date, err)
	}
	return t, nil
}

// AnalysisConfig содержит настройки аналитических модулей
type AnalysisConfig struct {
	Workers      int                `yaml:"workers"`
	Quality      QualityConfig      `yaml:"quality"`
	Estimator    EstimatorConfig    `yaml:"estimator"`
	Significance SignificanceConfig `yaml:"significance"`
	Recovery     RecoveryConfig     `yaml:"recovery"`
}

// QualityConfig пороги качества входного ряда
type QualityConfig struct {
	MinPoints       int     `yaml:"min_points"`
	MinMeanRadiance float64 `yaml:"min_mean_radiance"`
	OutlierZScore   float64 `yaml:"outlier_zscore"`
}

// EstimatorConfig настройки встроенного оценщика тренда
type EstimatorConfig struct {
	SmoothWindow    int     `yaml:"smooth_window"`
	MinSegment      int     `yaml:"min_segment"`
	MaxChangePoints int     `yaml:"max_change_points"`
	MinGain         float64 `yaml:"min_gain"`
}

// SignificanceConfig настройки теста значимости pre/post
type SignificanceConfig struct {
	Threshold       float64 `yaml:"threshold"`
	LookbackDays    int     `yaml:"lookback_days"`
	LookforwardDays int     `yaml:"lookforward_days"`
	MinObservations int     `yaml:"min_observations"`
}

// RecoveryConfig настройки анализа восстановления
type RecoveryConfig struct {
	MinRise         float64 `yaml:"min_rise"`
	HorizonDays     int     `yaml:"horizon_days"`
	SlopeWindowDays int     `yaml:"slope_window_days"`
	SlopeThreshold  float64 `yaml:"slope_threshold"`
}

// StorageConfig настройки хранения результатов
type StorageConfig struct {
	Type         string `yaml:"type"`
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// OutputConfig настройки файлового вывода
type OutputConfig struct {
	Dir           string `yaml:"dir"`
	SummaryFile   string `yaml:"summary_file"`
	PerSettlement bool   `yaml:"per_settlement"`
}

// UIConfig настройки пользовательского интерфейса
type UIConfig struct {
	Enabled     bool `yaml:"enabled"`
	RefreshRate int  `yaml:"refresh_rate_ms"`
}

// Load загружает конфигурацию из файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	logger.Debug("Загружена конфигурация", zap.String("path", path), zap.Any("config", config))

	return &config, nil
}

// applyDefaults подставляет значения по умолчанию для незаданных параметров
func (c *Config) applyDefaults() {
	if c.Event.WindowDays == 0 {
		c.Event.WindowDays = 60
	}
	if c.Analysis.Quality.MinPoints == 0 {
		c.Analysis.Quality.MinPoints = 100
	}
	if c.Analysis.Quality.MinMeanRadiance == 0 {
		c.Analysis.Quality.MinMeanRadiance = 0.5
	}
	if c.Analysis.Quality.OutlierZScore == 0 {
		c.Analysis.Quality.OutlierZScore = 3.5
	}
	if c.Analysis.Estimator.SmoothWindow == 0 {
		c.Analysis.Estimator.SmoothWindow = 7
	}
	if c.Analysis.Estimator.MinSegment == 0 {
		c.Analysis.Estimator.MinSegment = 14
	}
	if c.Analysis.Estimator.MaxChangePoints == 0 {
		c.Analysis.Estimator.MaxChangePoints = 12
	}
	if c.Analysis.Estimator.MinGain == 0 {
		c.Analysis.Estimator.MinGain = 0.05
	}
	if c.Analysis.Significance.Threshold == 0 {
		c.Analysis.Significance.Threshold = 0.05
	}
	if c.Analysis.Significance.LookbackDays == 0 {
		c.Analysis.Significance.LookbackDays = c.Event.WindowDays
	}
	if c.Analysis.Significance.LookforwardDays == 0 {
		c.Analysis.Significance.LookforwardDays = c.Event.WindowDays
	}
	if c.Analysis.Significance.MinObservations == 0 {
		c.Analysis.Significance.MinObservations = 2
	}
	if c.Analysis.Recovery.SlopeWindowDays == 0 {
		c.Analysis.Recovery.SlopeWindowDays = c.Event.WindowDays
	}
	if c.Analysis.Recovery.SlopeThreshold == 0 {
		c.Analysis.Recovery.SlopeThreshold = 0.001
	}
	if c.Output.SummaryFile == "" {
		c.Output.SummaryFile = "NDRA_Full_Cycle_Summary_All.csv"
	}
	if c.UI.RefreshRate == 0 {
		c.UI.RefreshRate = 500
	}
}

// validate проверяет структурную корректность конфигурации.
// Ошибки здесь фатальны для запуска, в отличие от проблем отдельных поселений.
func (c *Config) validate() error {
	if _, err := c.Event.ParsedDate(); err != nil {
		return err
	}
	if c.Event.WindowDays < 0 {
		return fmt.Errorf("event.window_days не может быть отрицательным: %d", c.Event.WindowDays)
	}
	if c.Analysis.Significance.MinObservations < 2 {
		return fmt.Errorf("significance.min_observations не может быть меньше 2: %d",
			c.Analysis.Significance.MinObservations)
	}
	if c.Analysis.Recovery.HorizonDays < 0 {
		return fmt.Errorf("recovery.horizon_days не может быть отрицательным: %d", c.Analysis.Recovery.HorizonDays)
	}
	if c.Data.NTLFile == "" {
		return fmt.Errorf("не задан путь к файлу NTL (data.ntl_file)")
	}
	if c.Data.SettlementList == "" {
		return fmt.Errorf("не задан путь к списку поселений (data.settlement_list)")
	}
	return nil
}
