package observability

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMonitoringManager_Counters(t *testing.T) {
	req := require.New(t)
	mm := NewMonitoringManager(slog.Default())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mm.IncrMessagesAppended()
			mm.IncrPushedLive()
		}()
	}
	wg.Wait()
	mm.ConnectionOpened()
	mm.ConnectionOpened()
	mm.ConnectionClosed()
	mm.IncrRoutedOffline()

	stats := mm.Update(64*1024*1024, 1.5)
	req.Equal(uint64(100), stats.MessagesAppended)
	req.Equal(uint64(100), stats.PushedLive)
	req.Equal(uint64(1), stats.RoutedOffline)
	req.Equal(int64(1), stats.Connections)
	req.Equal(uint64(64), stats.RSSMb)
	req.Equal(stats.MessagesAppended, mm.GetLatest().MessagesAppended)
}
