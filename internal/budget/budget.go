// Package budget caps what the service may spend on generation per UTC day.
// The cap keeps a runaway demo deployment from burning model credits; when
// it is hit, generation is refused until the day rolls over.
package budget

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/foodanalyzer/food-analyzer/internal/cost"
	"github.com/foodanalyzer/food-analyzer/internal/domain"
)

type AlertLevel string

const (
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
	AlertLevelExceeded AlertLevel = "exceeded"
)

type Alert struct {
	Level      AlertLevel
	BudgetUSD  float64
	CurrentUSD float64
	Percentage float64
	Timestamp  time.Time
}

type AlertHandler func(alert Alert)

type Thresholds struct {
	Warning  float64
	Critical float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Warning: 0.8, Critical: 0.95}
}

// Monitor compares the tracked daily spend against a fixed USD cap. A cap of
// zero disables the monitor entirely.
type Monitor struct {
	mu            sync.Mutex
	tracker       cost.Tracker
	budgetUSD     float64
	thresholds    Thresholds
	alertHandlers []AlertHandler
	lastAlert     AlertLevel
}

func NewMonitor(tracker cost.Tracker, budgetUSD float64, thresholds Thresholds) *Monitor {
	return &Monitor{
		tracker:    tracker,
		budgetUSD:  budgetUSD,
		thresholds: thresholds,
	}
}

func (m *Monitor) OnAlert(handler AlertHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alertHandlers = append(m.alertHandlers, handler)
}

// Allow returns domain.ErrBudgetExceeded when today's spend has reached the
// cap.
func (m *Monitor) Allow(ctx context.Context) error {
	if m.budgetUSD <= 0 {
		return nil
	}

	current, err := m.tracker.TotalCost(ctx, startOfDay())
	if err != nil {
		return err
	}

	if current >= m.budgetUSD {
		return domain.ErrBudgetExceeded
	}
	return nil
}

// Check evaluates the current spend against the alert thresholds and fires
// handlers once per level transition.
func (m *Monitor) Check(ctx context.Context) (*Alert, error) {
	if m.budgetUSD <= 0 {
		return nil, nil
	}

	current, err := m.tracker.TotalCost(ctx, startOfDay())
	if err != nil {
		return nil, err
	}

	percentage := current / m.budgetUSD

	var level AlertLevel
	switch {
	case percentage >= 1.0:
		level = AlertLevelExceeded
	case percentage >= m.thresholds.Critical:
		level = AlertLevelCritical
	case percentage >= m.thresholds.Warning:
		level = AlertLevelWarning
	default:
		m.mu.Lock()
		m.lastAlert = ""
		m.mu.Unlock()
		return nil, nil
	}

	m.mu.Lock()
	if m.lastAlert == level {
		m.mu.Unlock()
		return nil, nil
	}
	m.lastAlert = level
	handlers := make([]AlertHandler, len(m.alertHandlers))
	copy(handlers, m.alertHandlers)
	m.mu.Unlock()

	alert := &Alert{
		Level:      level,
		BudgetUSD:  m.budgetUSD,
		CurrentUSD: current,
		Percentage: percentage * 100,
		Timestamp:  time.Now(),
	}

	for _, handler := range handlers {
		handler(*alert)
	}

	return alert, nil
}

func startOfDay() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

func LogAlertHandler(alert Alert) {
	slog.Warn("generation budget alert",
		"level", alert.Level,
		"budget_usd", alert.BudgetUSD,
		"current_usd", alert.CurrentUSD,
		"percentage", alert.Percentage,
	)
}
