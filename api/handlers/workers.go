package handlers

import (
	"net/http"

	"github.com/BaSui01/batchflow/orchestrator"
	"go.uber.org/zap"
)

// =============================================================================
// 👷 Worker Handler
// =============================================================================

// WorkersHandler worker 池检视处理器
type WorkersHandler struct {
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
}

// NewWorkersHandler 创建 worker 检视处理器
func NewWorkersHandler(orch *orchestrator.Orchestrator, logger *zap.Logger) *WorkersHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkersHandler{
		orch:   orch,
		logger: logger.With(zap.String("handler", "workers")),
	}
}

// HandleWorkers 处理 GET /api/v1/workers 请求
// @Summary Worker 快照
// @Description 返回全部存活 worker 的即时快照,含状态与已处理批次数
// @Tags 观测
// @Produce json
// @Success 200 {array} pool.Info "worker 列表"
// @Router /api/v1/workers [get]
func (h *WorkersHandler) HandleWorkers(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.orch.Workers())
}
