package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/batchflow/sink"
)

// =============================================================================
// 🔌 WebSocket 观测 Handler
// =============================================================================

// writeTimeout 单条样本的发送超时,慢客户端超时即断开
const writeTimeout = 5 * time.Second

// ObserveHandler 通过 WebSocket 向客户端流式推送扩缩容观测样本。
// 连接建立后先补发最近一条样本,随后跟随控制循环实时转发。
type ObserveHandler struct {
	broadcast *sink.BroadcastSink
	origins   []string
	logger    *zap.Logger
}

// NewObserveHandler 创建观测流处理器。origins 为允许的跨域来源,
// 为空时只接受同源请求。
func NewObserveHandler(broadcast *sink.BroadcastSink, origins []string, logger *zap.Logger) *ObserveHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObserveHandler{
		broadcast: broadcast,
		origins:   origins,
		logger:    logger.With(zap.String("handler", "observe_ws")),
	}
}

// HandleObserve 处理 GET /api/v1/observe/ws 请求
// @Summary 观测流
// @Description 升级为 WebSocket 并流式推送扩缩容观测样本
// @Tags 观测
// @Success 101 "协议升级"
// @Router /api/v1/observe/ws [get]
func (h *ObserveHandler) HandleObserve(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	// 只写不读:CloseRead 在后台消费控制帧,客户端断开时取消 ctx
	ctx := conn.CloseRead(r.Context())

	samples, unsubscribe := h.broadcast.Subscribe()
	defer unsubscribe()

	h.logger.Debug("observer connected", zap.String("remote", r.RemoteAddr))

	// 补发最近样本,让客户端立即拿到当前状态
	if last, ok := h.broadcast.Last(); ok {
		if err := h.writeSample(ctx, conn, last); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "client disconnected")
			return
		case sample, ok := <-samples:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "broadcast closed")
				return
			}
			if err := h.writeSample(ctx, conn, sample); err != nil {
				h.logger.Debug("observer write failed", zap.Error(err))
				return
			}
		}
	}
}

func (h *ObserveHandler) writeSample(ctx context.Context, conn *websocket.Conn, sample sink.Sample) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, sample)
}
