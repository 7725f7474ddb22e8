package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/skalibog/ndra/pkg/models"
)

// Сентинель для отсутствующих значений в табличном выводе
const na = "NA"

// WriteBatchSummary записывает итоговую сводку по всем поселениям в CSV.
// Отсутствующие результаты выводятся как NA, а не как нули.
func WriteBatchSummary(path string, summaries []*models.SettlementSummary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("ошибка создания каталога вывода: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ошибка создания файла сводки: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Settlement ID", "Disturbance Date", "Drop (dNTL)",
		"T Statistic", "P Value", "Cohens D", "Significant",
		"Recovery Type", "Recovery Date", "Recovery Metric",
		"Full Cycle", "Disturbance Strength",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("ошибка записи заголовка: %w", err)
	}

	for _, s := range summaries {
		if err := writer.Write(summaryRecord(s)); err != nil {
			return fmt.Errorf("ошибка записи строки сводки: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// summaryRecord собирает одну строку сводки
func summaryRecord(s *models.SettlementSummary) []string {
	disturbanceDate := na
	drop := na
	if s.Disturbance != nil {
		disturbanceDate = s.Disturbance.Point.Timestamp.Format("2006-01-02")
		drop = round(s.Disturbance.DropMagnitude, 4)
	}

	tStat, pValue, cohensD, significant := na, na, na, na
	if s.Significance != nil {
		tStat = round(s.Significance.TStatistic, 4)
		pValue = round(s.Significance.PValue, 6)
		cohensD = round(s.Significance.CohensD, 4)
		significant = strconv.FormatBool(s.Significance.Significant)
	}

	recoveryDate := na
	if s.Recovery.Timestamp != nil {
		recoveryDate = s.Recovery.Timestamp.Format("2006-01-02")
	}
	recoveryMetric := na
	if s.Recovery.Metric != nil {
		recoveryMetric = round(*s.Recovery.Metric, 4)
	}

	return []string{
		s.SettlementID,
		disturbanceDate,
		drop,
		tStat,
		pValue,
		cohensD,
		significant,
		s.Recovery.Type.String(),
		recoveryDate,
		recoveryMetric,
		strconv.FormatBool(s.Recovery.FullCycle),
		s.Strength,
	}
}

// WriteSettlementSeries записывает ряд поселения с трендом и остатками,
// а также отдельный файл с точками смены тренда
func WriteSettlementSeries(dir, settlementID string, series []models.SeriesPoint, points []models.ChangePoint) error {
	settlementDir := filepath.Join(dir, settlementID)
	if err := os.MkdirAll(settlementDir, 0755); err != nil {
		return fmt.Errorf("ошибка создания каталога поселения: %w", err)
	}

	if err := writeSeriesFile(filepath.Join(settlementDir, fmt.Sprintf("NDRA_NTL_%s.csv", settlementID)), series); err != nil {
		return err
	}
	return writeChangePointsFile(filepath.Join(settlementDir, fmt.Sprintf("%s_changepoints.csv", settlementID)), points)
}

func writeSeriesFile(path string, series []models.SeriesPoint) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ошибка создания файла ряда: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"Date", "NTLmean", "Trend", "Deviation"}); err != nil {
		return fmt.Errorf("ошибка записи заголовка ряда: %w", err)
	}
	for _, p := range series {
		record := []string{
			p.Timestamp.Format("2006-01-02"),
			round(p.Observed, 4),
			round(p.Trend, 4),
			round(p.Residual, 4),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("ошибка записи строки ряда: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeChangePointsFile(path string, points []models.ChangePoint) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ошибка создания файла точек смены: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"ChangePoint_Index", "Date", "Probability"}); err != nil {
		return fmt.Errorf("ошибка записи заголовка точек смены: %w", err)
	}
	for _, cp := range points {
		record := []string{
			strconv.Itoa(cp.Index),
			cp.Timestamp.Format("2006-01-02"),
			round(cp.Probability, 4),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("ошибка записи точки смены: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// round форматирует число с фиксированным количеством знаков после запятой
func round(value float64, places int32) string {
	return decimal.NewFromFloat(value).Round(places).String()
}
