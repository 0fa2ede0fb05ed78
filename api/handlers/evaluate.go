package handlers

import (
	"net/http"

	"github.com/BaSui01/batchflow/api"
	"github.com/BaSui01/batchflow/orchestrator"
	"github.com/BaSui01/batchflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// ⚖️ 扩缩容评估 Handler
// =============================================================================

// EvaluateHandler 手动扩缩容评估处理器
type EvaluateHandler struct {
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
}

// NewEvaluateHandler 创建评估处理器
func NewEvaluateHandler(orch *orchestrator.Orchestrator, logger *zap.Logger) *EvaluateHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluateHandler{
		orch:   orch,
		logger: logger.With(zap.String("handler", "evaluate")),
	}
}

// HandleEvaluate 处理 POST /api/v1/evaluate 请求
// @Summary 立即评估
// @Description 跳过评估周期,立即执行一次扩缩容评估并返回决策
// @Tags 控制
// @Produce json
// @Success 200 {object} api.EvaluateResponse "评估结果"
// @Router /api/v1/evaluate [post]
func (h *EvaluateHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidSpec, "method not allowed", h.logger)
		return
	}

	decision := h.orch.EvaluateNow(r.Context())

	h.logger.Info("manual evaluation",
		zap.Int("desired", decision.Desired),
		zap.String("direction", decision.Direction.String()),
		zap.String("reason", decision.Reason),
	)

	WriteSuccess(w, api.EvaluateResponse{
		Desired:   decision.Desired,
		Direction: decision.Direction.String(),
		Reason:    decision.Reason,
		Replicas:  h.orch.Replicas(),
	})
}
