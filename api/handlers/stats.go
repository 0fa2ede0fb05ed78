package handlers

import (
	"net/http"

	"github.com/BaSui01/batchflow/orchestrator"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 统计 Handler
// =============================================================================

// StatsHandler 管线统计处理器
type StatsHandler struct {
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
}

// NewStatsHandler 创建统计处理器
func NewStatsHandler(orch *orchestrator.Orchestrator, logger *zap.Logger) *StatsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsHandler{
		orch:   orch,
		logger: logger.With(zap.String("handler", "stats")),
	}
}

// HandleStats 处理 GET /api/v1/stats 请求
// @Summary 管线统计
// @Description 返回批处理器、派发器、worker 池和扩缩容控制器的即时统计
// @Tags 观测
// @Produce json
// @Success 200 {object} orchestrator.Stats "统计快照"
// @Router /api/v1/stats [get]
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.orch.Stats())
}

// HandleSpec 处理 GET /api/v1/spec 请求
// @Summary 管线规格
// @Description 返回归一化后的管线规格
// @Tags 观测
// @Produce json
// @Success 200 {object} types.WorkflowSpec "管线规格"
// @Router /api/v1/spec [get]
func (h *StatsHandler) HandleSpec(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.orch.Spec())
}
