package workers

import (
	"context"
	"courier/contract"
	"courier/observability"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*MonitoringWorker)(nil)

// MonitoringWorker samples the server process and refreshes the delivery
// statistics every interval.
type MonitoringWorker struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	interval   time.Duration
}

func NewMonitoringWorker(log *slog.Logger, monitoring *observability.MonitoringManager, interval time.Duration) *MonitoringWorker {
	return &MonitoringWorker{log: log, monitoring: monitoring, interval: interval}
}

func (w *MonitoringWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping monitoring")
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "error", err)
				continue
			}
			stats := w.monitoring.Update(rss, cpu)
			w.log.Debug("Stats updated",
				"connections", stats.Connections,
				"messages_per_second", stats.MessagesPerSecond,
				"pushed_live", stats.PushedLive,
				"routed_offline", stats.RoutedOffline,
				"rss_mb", stats.RSSMb,
			)
		}
	}
}

func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpu, nil
}
