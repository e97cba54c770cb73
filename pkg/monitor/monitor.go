package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mingkeli/devagent/pkg/metrics"
	"github.com/mingkeli/devagent/pkg/resilience"
	"github.com/mingkeli/devagent/pkg/utils"
)

// HealthState classifies an overall score.
type HealthState string

const (
	StateHealthy  HealthState = "healthy"
	StateDegraded HealthState = "degraded"
	StateCritical HealthState = "critical"
)

// Report is one health assessment.
type Report struct {
	Score    int         `json:"score"` // 0-100
	State    HealthState `json:"state"`
	Problems []string    `json:"problems,omitempty"`
	Time     time.Time   `json:"time"`
}

// Monitor aggregates health over the metrics collector and the resilience
// manager's breakers.
type Monitor struct {
	collector  *metrics.Collector
	resilience *resilience.Manager
	logger     *utils.Logger
	stopped    atomic.Bool
}

// New creates a monitor.
func New(collector *metrics.Collector, res *resilience.Manager, logger *utils.Logger) *Monitor {
	return &Monitor{collector: collector, resilience: res, logger: logger}
}

// Check scores current health: the session success rate carries most of the
// weight, every open breaker costs points.
func (m *Monitor) Check() Report {
	report := Report{Score: 100, State: StateHealthy, Time: time.Now()}

	stats := m.collector.Stats()
	if stats.TotalOperations > 0 {
		rate := stats.SuccessRate()
		if rate < 0.9 {
			penalty := int((0.9 - rate) * 100)
			report.Score -= penalty
			report.Problems = append(report.Problems,
				fmt.Sprintf("成功率偏低: %.1f%%", rate*100))
		}
	}

	for op, state := range m.resilience.BreakerStates() {
		switch state {
		case resilience.BreakerOpen:
			report.Score -= 30
			report.Problems = append(report.Problems, fmt.Sprintf("熔断器打开: %s", op))
		case resilience.BreakerHalfOpen:
			report.Score -= 10
			report.Problems = append(report.Problems, fmt.Sprintf("熔断器半开: %s", op))
		}
	}

	if report.Score < 0 {
		report.Score = 0
	}
	switch {
	case report.Score >= 80:
		report.State = StateHealthy
	case report.Score >= 50:
		report.State = StateDegraded
	default:
		report.State = StateCritical
	}
	return report
}

// FormatReport renders a report for the diagnostic node.
func (m *Monitor) FormatReport() string {
	report := m.Check()
	var b strings.Builder
	icon := "✅"
	if report.State == StateDegraded {
		icon = "⚠️"
	} else if report.State == StateCritical {
		icon = "🚨"
	}
	b.WriteString(fmt.Sprintf("%s 系统健康度: %d/100 (%s)", icon, report.Score, report.State))
	for _, p := range report.Problems {
		b.WriteString("\n  - " + p)
	}
	return b.String()
}

// Start runs periodic health checks until Stop or context cancellation.
// The stop flag is polled in 1-second slices so shutdown stays responsive
// even with long intervals.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	go func() {
		for {
			remaining := interval
			for remaining > 0 {
				if m.stopped.Load() || ctx.Err() != nil {
					return
				}
				slice := time.Second
				if remaining < slice {
					slice = remaining
				}
				time.Sleep(slice)
				remaining -= slice
			}
			report := m.Check()
			if report.State != StateHealthy && m.logger != nil {
				m.logger.Warnf("health check: score=%d state=%s problems=%v",
					report.Score, report.State, report.Problems)
			}
		}
	}()
}

// Stop signals the background loop to exit.
func (m *Monitor) Stop() {
	m.stopped.Store(true)
}
