package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/skalibog/ndra/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadNTLTable(t *testing.T) {
	path := writeTempCSV(t, `settl_pcod,YYYY_MM_DD,NTLmean,extra
MOZ001,2022-01-01,1.5,x
MOZ001,2022-01-02,2.5,x
MOZ002,2022-01-01,0.7,x
`)

	got, err := LoadNTLTable(path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Len(t, got["MOZ001"], 2)
	assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), got["MOZ001"][0].Timestamp)
	assert.InDelta(t, 1.5, got["MOZ001"][0].Value, 1e-9)
	assert.InDelta(t, 2.5, got["MOZ001"][1].Value, 1e-9)
	require.Len(t, got["MOZ002"], 1)
}

func TestLoadNTLTableTolerance(t *testing.T) {
	// Нечисловое значение становится нулем, битая дата отбрасывает строку
	path := writeTempCSV(t, `settl_pcod,YYYY_MM_DD,NTLmean
MOZ001,2022-01-01,NA
MOZ001,not-a-date,2.5
MOZ001,2022-01-03,3.5
`)

	got, err := LoadNTLTable(path)
	require.NoError(t, err)

	obs := got["MOZ001"]
	require.Len(t, obs, 2)
	assert.InDelta(t, 0, obs[0].Value, 1e-9)
	assert.InDelta(t, 3.5, obs[1].Value, 1e-9)
}

func TestLoadNTLTableMissingColumns(t *testing.T) {
	path := writeTempCSV(t, `id,date,value
MOZ001,2022-01-01,1.5
`)

	_, err := LoadNTLTable(path)
	assert.Error(t, err)
}

func TestLoadSettlementList(t *testing.T) {
	path := writeTempCSV(t, `name,settle_pcod
Beira,MOZ001
Dondo,MOZ002
Beira,MOZ001
`)

	got, err := LoadSettlementList(path)
	require.NoError(t, err)

	// Дубликаты схлопнуты, порядок первых вхождений сохранен
	assert.Equal(t, []string{"MOZ001", "MOZ002"}, got)
}

func TestLoadSettlementListEmpty(t *testing.T) {
	path := writeTempCSV(t, "settle_pcod\n")

	_, err := LoadSettlementList(path)
	assert.Error(t, err)
}

func TestSortByDate(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2022, 1, d, 0, 0, 0, 0, time.UTC)
	}
	obs := []Observation{
		{Timestamp: day(3), Value: 3},
		{Timestamp: day(1), Value: 1},
		{Timestamp: day(2), Value: 2},
	}

	got, err := SortByDate(obs)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, []float64{got[0].Value, got[1].Value, got[2].Value})

	// Исходный срез не меняется
	assert.InDelta(t, 3, obs[0].Value, 1e-9)
}

func TestSortByDateDuplicateTimestamp(t *testing.T) {
	ts := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := []Observation{
		{Timestamp: ts, Value: 1},
		{Timestamp: ts, Value: 2},
	}

	_, err := SortByDate(obs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataQuality))
}

func TestRemoveOutliers(t *testing.T) {
	obs := make([]Observation, 0, 21)
	for i := 0; i < 20; i++ {
		obs = append(obs, Observation{
			Timestamp: time.Date(2022, 1, 1+i, 0, 0, 0, 0, time.UTC),
			Value:     1,
		})
	}
	obs = append(obs, Observation{
		Timestamp: time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC),
		Value:     1000,
	})

	got := RemoveOutliers(obs, 3.5)

	require.Len(t, got, 20)
	for _, o := range got {
		assert.InDelta(t, 1, o.Value, 1e-9)
	}
}

func TestRemoveOutliersDisabled(t *testing.T) {
	obs := []Observation{
		{Timestamp: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), Value: 1},
		{Timestamp: time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC), Value: 1000},
	}

	assert.Len(t, RemoveOutliers(obs, 0), 2)
}

func TestPrepareQualityGates(t *testing.T) {
	quality := config.QualityConfig{MinPoints: 5, MinMeanRadiance: 0.5, OutlierZScore: 3.5}

	day := func(d int) time.Time {
		return time.Date(2022, 1, 1+d, 0, 0, 0, 0, time.UTC)
	}

	// Мало точек
	short := []Observation{{Timestamp: day(0), Value: 1}, {Timestamp: day(1), Value: 1}}
	_, err := Prepare(short, quality)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataQuality))

	// Слишком тусклый ряд
	dim := make([]Observation, 10)
	for i := range dim {
		dim[i] = Observation{Timestamp: day(i), Value: 0.1}
	}
	_, err = Prepare(dim, quality)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataQuality))

	// Пригодный ряд проходит и остается упорядоченным
	good := make([]Observation, 10)
	for i := range good {
		good[i] = Observation{Timestamp: day(9 - i), Value: 1}
	}
	got, err := Prepare(good, quality)
	require.NoError(t, err)
	require.Len(t, got, 10)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Timestamp.Before(got[i].Timestamp))
	}
}
