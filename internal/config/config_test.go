package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const minimalConfig = `
data:
  ntl_file: data/ntl.csv
  settlement_list: data/settlements.csv
event:
  date: "2022-02-05"
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Event.WindowDays)
	assert.Equal(t, 100, cfg.Analysis.Quality.MinPoints)
	assert.InDelta(t, 0.5, cfg.Analysis.Quality.MinMeanRadiance, 1e-9)
	assert.InDelta(t, 3.5, cfg.Analysis.Quality.OutlierZScore, 1e-9)
	assert.Equal(t, 7, cfg.Analysis.Estimator.SmoothWindow)
	assert.Equal(t, 14, cfg.Analysis.Estimator.MinSegment)
	assert.Equal(t, 12, cfg.Analysis.Estimator.MaxChangePoints)
	assert.InDelta(t, 0.05, cfg.Analysis.Significance.Threshold, 1e-9)
	assert.Equal(t, 2, cfg.Analysis.Significance.MinObservations)
	assert.InDelta(t, 0.001, cfg.Analysis.Recovery.SlopeThreshold, 1e-9)
	assert.Equal(t, "NDRA_Full_Cycle_Summary_All.csv", cfg.Output.SummaryFile)
	assert.Equal(t, 500, cfg.UI.RefreshRate)

	// Окна значимости и наклона наследуют ширину окна события
	assert.Equal(t, 60, cfg.Analysis.Significance.LookbackDays)
	assert.Equal(t, 60, cfg.Analysis.Significance.LookforwardDays)
	assert.Equal(t, 60, cfg.Analysis.Recovery.SlopeWindowDays)
}

func TestLoadExplicitValues(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, `
data:
  ntl_file: data/ntl.csv
  settlement_list: data/settlements.csv
event:
  date: "2019-03-14"
  window_days: 90
analysis:
  workers: 4
  recovery:
    min_rise: 0.003
    horizon_days: 120
`))
	require.NoError(t, err)

	assert.Equal(t, 90, cfg.Event.WindowDays)
	assert.Equal(t, 4, cfg.Analysis.Workers)
	assert.InDelta(t, 0.003, cfg.Analysis.Recovery.MinRise, 1e-9)
	assert.Equal(t, 120, cfg.Analysis.Recovery.HorizonDays)
	assert.Equal(t, 90, cfg.Analysis.Recovery.SlopeWindowDays)

	date, err := cfg.Event.ParsedDate()
	require.NoError(t, err)
	assert.Equal(t, "2019-03-14", date.Format("2006-01-02"))
}

func TestLoadInvalidDate(t *testing.T) {
	_, err := Load(writeTempConfig(t, `
data:
  ntl_file: data/ntl.csv
  settlement_list: data/settlements.csv
event:
  date: "05.02.2022"
`))
	assert.Error(t, err)
}

func TestLoadMissingDataPaths(t *testing.T) {
	_, err := Load(writeTempConfig(t, `
event:
  date: "2022-02-05"
`))
	assert.Error(t, err)
}

func TestLoadMinObservationsTooLow(t *testing.T) {
	_, err := Load(writeTempConfig(t, `
data:
  ntl_file: data/ntl.csv
  settlement_list: data/settlements.csv
event:
  date: "2022-02-05"
analysis:
  significance:
    min_observations: 1
`))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
