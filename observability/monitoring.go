package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Stats is a point-in-time view of the server, served on /health and
// logged by the monitoring worker.
type Stats struct {
	MessagesAppended  uint64  `json:"messages_appended"`
	PushedLive        uint64  `json:"pushed_live"`
	RoutedOffline     uint64  `json:"routed_offline"`
	PushFailures      uint64  `json:"push_failures"`
	ReceiptsWritten   uint64  `json:"receipts_written"`
	Connections       int64   `json:"connections"`
	ActivityDropped   uint64  `json:"activity_dropped"`
	MessagesPerSecond float64 `json:"messages_per_second"`
	AllocMemMb        uint64  `json:"alloc_mem_mb"`
	NumGC             uint32  `json:"num_gc"`
	NumGoroutine      int     `json:"num_goroutine"`
	RSSMb             uint64  `json:"rss_mb"`
	CPUPercent        float64 `json:"cpu_percent"`
}

// MonitoringManager aggregates delivery counters. Counters are atomics so
// the hot path never takes the lock.
type MonitoringManager struct {
	log         *slog.Logger
	mu          sync.RWMutex
	latestStats Stats
	lastCheck   time.Time
	lastCount   uint64

	messagesAppended uint64
	pushedLive       uint64
	routedOffline    uint64
	pushFailures     uint64
	receiptsWritten  uint64
	activityDropped  uint64
	connections      int64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log, lastCheck: time.Now()}
}

func (mm *MonitoringManager) IncrMessagesAppended() { atomic.AddUint64(&mm.messagesAppended, 1) }

func (mm *MonitoringManager) IncrPushedLive() { atomic.AddUint64(&mm.pushedLive, 1) }

func (mm *MonitoringManager) IncrRoutedOffline() { atomic.AddUint64(&mm.routedOffline, 1) }

func (mm *MonitoringManager) IncrPushFailures() { atomic.AddUint64(&mm.pushFailures, 1) }

func (mm *MonitoringManager) IncrReceiptsWritten() { atomic.AddUint64(&mm.receiptsWritten, 1) }

func (mm *MonitoringManager) IncrActivityDropped() { atomic.AddUint64(&mm.activityDropped, 1) }

func (mm *MonitoringManager) ConnectionOpened() { atomic.AddInt64(&mm.connections, 1) }

func (mm *MonitoringManager) ConnectionClosed() { atomic.AddInt64(&mm.connections, -1) }

// Update refreshes the snapshot with the counters, the Go runtime and the
// process figures sampled by the caller.
func (mm *MonitoringManager) Update(rssBytes uint64, cpuPercent float64) Stats {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	now := time.Now()
	appended := atomic.LoadUint64(&mm.messagesAppended)
	if elapsed := now.Sub(mm.lastCheck).Seconds(); elapsed > 0 {
		mm.latestStats.MessagesPerSecond = float64(appended-mm.lastCount) / elapsed
	}
	mm.lastCheck = now
	mm.lastCount = appended

	mm.latestStats.MessagesAppended = appended
	mm.latestStats.PushedLive = atomic.LoadUint64(&mm.pushedLive)
	mm.latestStats.RoutedOffline = atomic.LoadUint64(&mm.routedOffline)
	mm.latestStats.PushFailures = atomic.LoadUint64(&mm.pushFailures)
	mm.latestStats.ReceiptsWritten = atomic.LoadUint64(&mm.receiptsWritten)
	mm.latestStats.ActivityDropped = atomic.LoadUint64(&mm.activityDropped)
	mm.latestStats.Connections = atomic.LoadInt64(&mm.connections)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	mm.latestStats.AllocMemMb = m.Alloc / 1024 / 1024
	mm.latestStats.NumGC = m.NumGC
	mm.latestStats.NumGoroutine = runtime.NumGoroutine()
	mm.latestStats.RSSMb = rssBytes / 1024 / 1024
	mm.latestStats.CPUPercent = cpuPercent

	return mm.latestStats
}

func (mm *MonitoringManager) GetLatest() Stats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	stats := mm.latestStats
	stats.Connections = atomic.LoadInt64(&mm.connections)
	return stats
}
