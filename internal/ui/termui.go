package ui

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/skalibog/ndra/internal/config"
	"github.com/skalibog/ndra/pkg/logger"
	"github.com/skalibog/ndra/pkg/models"
	"go.uber.org/zap"
)

// Стили UI
var (
	// Основные цвета
	primaryColor   = lipgloss.Color("#0077cc")
	secondaryColor = lipgloss.Color("#333333")
	errorColor     = lipgloss.Color("#cc3300")
	successColor   = lipgloss.Color("#33cc33")
	warningColor   = lipgloss.Color("#cccc00")
	// Главный контейнер
	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)
	// Заголовок
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1).
			Align(lipgloss.Center)
	// Секция результатов
	resultsHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#ffffff")).
				Background(secondaryColor).
				Padding(0, 1)
	resultsSectionStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(secondaryColor).
				Padding(0, 1)
	// Секция логов
	logsHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(secondaryColor).
			Padding(0, 1)
	logsSectionStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(secondaryColor).
				Padding(0, 1)
	// Футер
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999")).
			Padding(0, 1)
)

// Сколько последних записей показывать на экране
const maxVisibleSummaries = 15

// TermUI представляет терминальный интерфейс пакетного анализа
type TermUI struct {
	summaries      []*models.SettlementSummary
	summariesMutex sync.RWMutex
	processed      int
	skipped        int
	total          int
	done           bool
	logs           []string
	logsMutex      sync.RWMutex
	config         config.UIConfig
	program        *tea.Program
	width          int
	height         int
	logFile        string
}

// Сообщения для обновления UI
type refreshMsg struct{}
type doneMsg struct{}

// bubbleModel - модель для bubbletea
type bubbleModel struct {
	ui *TermUI
}

func NewTermUI(cfg config.UIConfig, total int) (*TermUI, error) {
	ui := &TermUI{
		total:   total,
		logs:    []string{"NDRA запущен. Обработка поселений..."},
		config:  cfg,
		width:   120,
		height:  40,
		logFile: "ndra.json.log",
	}

	if err := ui.loadLogsFromFile(); err != nil {
		ui.logs = append(ui.logs, fmt.Sprintf("Ошибка загрузки логов: %v", err))
	}

	// Таймер для периодической подгрузки логов
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.RefreshRate) * time.Millisecond)
		defer ticker.Stop()

		for range ticker.C {
			if err := ui.loadLogsFromFile(); err != nil {
				logger.Warn("Ошибка загрузки логов", zap.Error(err))
			}
			if ui.program != nil {
				ui.program.Send(refreshMsg{})
			}
		}
	}()

	return ui, nil
}

func (ui *TermUI) Start() {
	model := bubbleModel{ui: ui}
	ui.program = tea.NewProgram(model, tea.WithAltScreen())

	if _, err := ui.program.Run(); err != nil {
		fmt.Printf("Ошибка запуска UI: %v\n", err)
	}
}

// UpdateProgress добавляет обработанное поселение на экран
func (ui *TermUI) UpdateProgress(summary *models.SettlementSummary, processed, skipped int) {
	ui.summariesMutex.Lock()
	ui.summaries = append(ui.summaries, summary)
	if len(ui.summaries) > maxVisibleSummaries {
		ui.summaries = ui.summaries[len(ui.summaries)-maxVisibleSummaries:]
	}
	ui.processed = processed
	ui.skipped = skipped
	ui.summariesMutex.Unlock()

	if ui.program != nil {
		ui.program.Send(refreshMsg{})
	}
}

// Finish помечает пакет завершенным; экран остается открытым до выхода
func (ui *TermUI) Finish(processed, skipped int) {
	ui.summariesMutex.Lock()
	ui.processed = processed
	ui.skipped = skipped
	ui.done = true
	ui.summariesMutex.Unlock()

	if ui.program != nil {
		ui.program.Send(doneMsg{})
	}
}

// Чтение логов zap из JSON-файла
func (ui *TermUI) loadLogsFromFile() error {
	file, err := os.Open(ui.logFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var logs []string

	// Регулярное выражение для удаления ANSI-цветов
	ansiRegex := regexp.MustCompile(`\x1b\[[0-9;]*m`)

	for scanner.Scan() {
		line := scanner.Text()

		var zapLog map[string]interface{}
		if err := json.Unmarshal([]byte(line), &zapLog); err == nil {
			level, _ := zapLog["level"].(string)
			ts, _ := zapLog["ts"].(string)
			msg, _ := zapLog["msg"].(string)

			level = ansiRegex.ReplaceAllString(level, "")

			timestamp := ""
			if t, err := time.Parse("02.01.2006 - 15:04:05.999999999Z07:00", ts); err == nil {
				timestamp = t.Format("15:04:05")
			}

			formattedMsg := fmt.Sprintf("[%s] [%s] %s", timestamp, level, msg)

			for k, v := range zapLog {
				if k != "level" && k != "ts" && k != "msg" && k != "caller" {
					formattedMsg += fmt.Sprintf(" (%s: %v)", k, v)
				}
			}

			logs = append(logs, formattedMsg)
		} else {
			logs = append(logs, line)
		}

		if len(logs) > 50 {
			logs = logs[1:]
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	ui.logsMutex.Lock()
	defer ui.logsMutex.Unlock()

	if len(logs) > 0 {
		ui.logs = logs
		if len(ui.logs) > 50 {
			ui.logs = ui.logs[len(ui.logs)-50:]
		}
	}

	return nil
}

// Методы для bubbletea
func (m bubbleModel) Init() tea.Cmd {
	return nil
}

func (m bubbleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.ui.width = msg.Width
		m.ui.height = msg.Height

	case refreshMsg, doneMsg:
		// Просто обновляем UI
	}

	return m, nil
}

func (m bubbleModel) View() string {
	m.ui.summariesMutex.RLock()
	m.ui.logsMutex.RLock()
	defer m.ui.summariesMutex.RUnlock()
	defer m.ui.logsMutex.RUnlock()

	title := titleStyle.Render("NDRA - NTL Disturbance & Recovery Analyzer")
	progress := renderProgressLine(m.ui.processed, m.ui.skipped, m.ui.total, m.ui.done)
	results := renderResultsSection(m.ui.summaries)
	logs := renderLogsSection(m.ui.logs)
	footer := footerStyle.Render("Клавиши: Q - выход")

	return appStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			title,
			"\n",
			progress,
			"\n",
			results,
			"\n",
			logs,
			"\n",
			footer,
		),
	)
}

// renderProgressLine строка прогресса пакета
func renderProgressLine(processed, skipped, total int, done bool) string {
	status := "обработка"
	style := lipgloss.NewStyle().Foreground(warningColor)
	if done {
		status = "завершено"
		style = lipgloss.NewStyle().Foreground(successColor)
	}

	return fmt.Sprintf("  Статус: %s | Обработано: %d | Пропущено: %d | Всего: %d",
		style.Render(status), processed, skipped, total)
}

// renderResultsSection секция с последними результатами
func renderResultsSection(summaries []*models.SettlementSummary) string {
	header := resultsHeaderStyle.Render("РЕЗУЛЬТАТЫ")
	content := strings.Builder{}

	if len(summaries) == 0 {
		content.WriteString("  Ожидание результатов...\n")
	} else {
		for _, s := range summaries {
			content.WriteString("  " + formatSummaryLine(s) + "\n")
		}
	}

	return resultsSectionStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header,
			content.String(),
		),
	)
}

// formatSummaryLine одна строка результата с цветовой пометкой
func formatSummaryLine(s *models.SettlementSummary) string {
	if s.Disturbance == nil {
		label := lipgloss.NewStyle().Foreground(warningColor).Render("нет нарушения")
		return fmt.Sprintf("%s: %s", s.SettlementID, label)
	}

	var label string
	switch s.Recovery.Type {
	case models.RecoveryChangePoint, models.RecoverySlope:
		label = lipgloss.NewStyle().Foreground(successColor).
			Render(fmt.Sprintf("восстановление (%s)", s.Recovery.Type))
	default:
		label = lipgloss.NewStyle().Foreground(errorColor).Bold(true).Render("без восстановления")
	}

	line := fmt.Sprintf("%s: нарушение %s (Δ=%.4f) %s",
		s.SettlementID,
		s.Disturbance.Point.Timestamp.Format("2006-01-02"),
		s.Disturbance.DropMagnitude,
		label)

	if s.Significance != nil {
		line += fmt.Sprintf(" p=%.4f d=%.2f", s.Significance.PValue, s.Significance.CohensD)
	}

	return line
}

func renderLogsSection(logs []string) string {
	header := logsHeaderStyle.Render("ЛОГИ")
	content := strings.Builder{}

	maxLogsToShow := 10
	if logsSectionStyle.GetHeight() > 12 {
		maxLogsToShow = logsSectionStyle.GetHeight() - 2
	}

	start := 0
	if len(logs) > maxLogsToShow {
		start = len(logs) - maxLogsToShow
	}

	for i := start; i < len(logs); i++ {
		log := logs[i]

		// Выделение по уровню логирования
		if strings.Contains(log, "[ERROR]") {
			log = lipgloss.NewStyle().Foreground(errorColor).Render(log)
		} else if strings.Contains(log, "[INFO]") {
			log = lipgloss.NewStyle().Foreground(successColor).Render(log)
		} else if strings.Contains(log, "[WARN]") {
			log = lipgloss.NewStyle().Foreground(warningColor).Render(log)
		} else if strings.Contains(log, "[DEBUG]") {
			log = lipgloss.NewStyle().Foreground(lipgloss.Color("#9999ff")).Render(log)
		}

		content.WriteString("  " + log + "\n")
	}

	return logsSectionStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header,
			content.String(),
		),
	)
}
