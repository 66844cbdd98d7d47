package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingGauge 记录每次上报的在线客户端数
type recordingGauge struct {
	mu     sync.Mutex
	counts []int
}

func (g *recordingGauge) UpdateWebSocketClients(count int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counts = append(g.counts, count)
}

func (g *recordingGauge) last() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.counts) == 0 {
		return -1
	}
	return g.counts[len(g.counts)-1]
}

func TestHubReportsClientCount(t *testing.T) {
	gauge := &recordingGauge{}
	hub := NewHub([]string{"*"}, nil, zap.NewNop())
	hub.SetClientGauge(gauge)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	c1 := &Client{ID: "c1", send: make(chan []byte, 1)}
	c2 := &Client{ID: "c2", send: make(chan []byte, 1)}

	hub.register <- c1
	hub.register <- c2
	require.Eventually(t, func() bool { return gauge.last() == 2 },
		time.Second, 10*time.Millisecond)

	hub.unregister <- c1
	require.Eventually(t, func() bool { return gauge.last() == 1 },
		time.Second, 10*time.Millisecond)

	// 重复注销不再上报
	hub.unregister <- c1
	hub.register <- c2 // 让 hub 处理完前一条消息
	require.Eventually(t, func() bool { return gauge.last() == 1 },
		time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 0, gauge.last())
}
