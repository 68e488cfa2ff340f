package utils

import (
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// NewLogger builds the process logger. Unknown levels fall back to info.
func NewLogger(level string, w io.Writer) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           ParseLevel(level),
	})
	logger.SetStyles(styles())
	return logger
}

func ParseLevel(level string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

func styles() *log.Styles {
	s := log.DefaultStyles()
	s.Levels[log.DebugLevel] = lipgloss.NewStyle().
		SetString("DEBUG").
		Padding(0, 1, 0, 1).
		Foreground(lipgloss.Color("#808080FF"))

	s.Levels[log.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO🌟").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("#90EE9080")).
		Foreground(lipgloss.Color("#006400FF")).Bold(true)

	s.Levels[log.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN⚠️").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("#FFD700FF")).
		Foreground(lipgloss.Color("#000000FF")).Bold(true)

	s.Levels[log.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR🔥").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("#FF0000FF")).
		Foreground(lipgloss.Color("#00FFFF00")).Bold(true)

	s.Levels[log.FatalLevel] = lipgloss.NewStyle().
		SetString("FATAL⚡️").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("#000000FF")).
		Foreground(lipgloss.Color("#00FFFF00")).Bold(true)

	// 牌局相关字段高亮
	s.Keys["table"] = lipgloss.NewStyle().Foreground(lipgloss.Color("#00BFFF"))
	s.Keys["player"] = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	s.Keys["err"] = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	return s
}
