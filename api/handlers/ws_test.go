package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/batchflow/sink"
)

// =============================================================================
// 🧪 ObserveHandler 测试
// =============================================================================

func newObserveServer(t *testing.T, broadcast *sink.BroadcastSink) string {
	t.Helper()
	h := NewObserveHandler(broadcast, nil, zaptest.NewLogger(t))
	srv := httptest.NewServer(http.HandlerFunc(h.HandleObserve))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestObserveHandler_StreamsSamples(t *testing.T) {
	broadcast := sink.NewBroadcastSink()
	url := newObserveServer(t, broadcast)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// 等订阅建立后再发布
	require.Eventually(t, func() bool {
		return broadcast.Subscribers() == 1
	}, 2*time.Second, 10*time.Millisecond)

	want := sink.Sample{
		Timestamp:   time.Now(),
		AvgLatency:  120 * time.Millisecond,
		SampleCount: 5,
		Replicas:    2,
		Desired:     3,
		Direction:   "up",
		Reason:      "avg latency above threshold",
	}
	require.NoError(t, broadcast.Publish(ctx, want))

	var got sink.Sample
	require.NoError(t, wsjson.Read(ctx, conn, &got))

	assert.Equal(t, want.AvgLatency, got.AvgLatency)
	assert.Equal(t, want.Replicas, got.Replicas)
	assert.Equal(t, want.Desired, got.Desired)
	assert.Equal(t, "up", got.Direction)
}

func TestObserveHandler_ReplaysLastSample(t *testing.T) {
	broadcast := sink.NewBroadcastSink()

	// 先发布,后连接:客户端应立即收到最近样本
	seed := sink.Sample{
		Timestamp: time.Now(),
		Replicas:  4,
		Desired:   4,
		Direction: "hold",
		Reason:    "within dead band",
	}
	require.NoError(t, broadcast.Publish(context.Background(), seed))

	url := newObserveServer(t, broadcast)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	var got sink.Sample
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, 4, got.Replicas)
	assert.Equal(t, "hold", got.Direction)
}

func TestObserveHandler_UnsubscribesOnDisconnect(t *testing.T) {
	broadcast := sink.NewBroadcastSink()
	url := newObserveServer(t, broadcast)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return broadcast.Subscribers() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))

	assert.Eventually(t, func() bool {
		return broadcast.Subscribers() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
