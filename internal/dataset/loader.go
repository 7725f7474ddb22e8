package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/skalibog/ndra/pkg/logger"
	"go.uber.org/zap"
)

// Observation представляет одно сырое наблюдение радиометрии
type Observation struct {
	Timestamp time.Time
	Value     float64
}

// LoadNTLTable загружает таблицу NTL и группирует наблюдения по поселениям.
// Ожидаемые колонки: settl_pcod, YYYY_MM_DD, NTLmean (лишние колонки игнорируются).
func LoadNTLTable(path string) (map[string][]Observation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла NTL: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("файл NTL пуст или содержит только заголовок: %s", path)
	}

	idCol, dateCol, valueCol, err := resolveColumns(records[0])
	if err != nil {
		return nil, err
	}

	result := make(map[string][]Observation)
	for i, record := range records[1:] {
		line := i + 2
		maxCol := idCol
		if dateCol > maxCol {
			maxCol = dateCol
		}
		if valueCol > maxCol {
			maxCol = valueCol
		}
		if len(record) <= maxCol {
			logger.Warn("Пропущена неполная строка NTL", zap.String("file", path), zap.Int("line", line))
			continue
		}

		id := strings.TrimSpace(record[idCol])
		if id == "" {
			continue
		}

		ts, err := time.Parse("2006-01-02", strings.TrimSpace(record[dateCol]))
		if err != nil {
			logger.Warn("Пропущена строка с нераспознанной датой",
				zap.String("file", path), zap.Int("line", line), zap.Error(err))
			continue
		}

		// Нечисловые значения радиометрии считаются нулями
		value, err := strconv.ParseFloat(strings.TrimSpace(record[valueCol]), 64)
		if err != nil {
			value = 0
		}

		result[id] = append(result[id], Observation{Timestamp: ts, Value: value})
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("в файле NTL не найдено ни одного наблюдения: %s", path)
	}

	return result, nil
}

// LoadSettlementList загружает список идентификаторов поселений.
// Ожидаемая колонка: settle_pcod; дубликаты схлопываются с сохранением порядка.
func LoadSettlementList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия списка поселений: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка поселений: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("список поселений пуст: %s", path)
	}

	idCol := -1
	for i, name := range records[0] {
		if strings.EqualFold(strings.TrimSpace(name), "settle_pcod") {
			idCol = i
			break
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("в списке поселений нет колонки settle_pcod: %s", path)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, record := range records[1:] {
		if len(record) <= idCol {
			continue
		}
		id := strings.TrimSpace(record[idCol])
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("список поселений не содержит идентификаторов: %s", path)
	}

	return ids, nil
}

// SortByDate упорядочивает наблюдения по дате и проверяет отсутствие дубликатов.
// Дубликат метки времени означает испорченный вход и ведет к пропуску поселения.
func SortByDate(obs []Observation) ([]Observation, error) {
	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Timestamp.Equal(sorted[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: дубликат метки времени %s",
				ErrDataQuality, sorted[i].Timestamp.Format("2006-01-02"))
		}
	}

	return sorted, nil
}

// resolveColumns находит индексы обязательных колонок по заголовку
func resolveColumns(header []string) (idCol, dateCol, valueCol int, err error) {
	idCol, dateCol, valueCol = -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "settl_pcod":
			idCol = i
		case "yyyy_mm_dd":
			dateCol = i
		case "ntlmean":
			valueCol = i
		}
	}
	if idCol < 0 || dateCol < 0 || valueCol < 0 {
		return 0, 0, 0, fmt.Errorf("заголовок не содержит обязательных колонок settl_pcod/YYYY_MM_DD/NTLmean: %v", header)
	}
	return idCol, dateCol, valueCol, nil
}
