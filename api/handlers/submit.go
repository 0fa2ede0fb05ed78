package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/BaSui01/batchflow/api"
	"github.com/BaSui01/batchflow/orchestrator"
	"github.com/BaSui01/batchflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 📨 提交 Handler
// =============================================================================

// SubmitHandler 同步提交处理器。接收单个工作项,通过批处理管线
// 执行并等待结果。
type SubmitHandler struct {
	orch    *orchestrator.Orchestrator
	timeout time.Duration
	logger  *zap.Logger
}

// NewSubmitHandler 创建提交处理器。timeout 为单次提交的等待上限。
func NewSubmitHandler(orch *orchestrator.Orchestrator, timeout time.Duration, logger *zap.Logger) *SubmitHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SubmitHandler{
		orch:    orch,
		timeout: timeout,
		logger:  logger.With(zap.String("handler", "submit")),
	}
}

// HandleSubmit 处理 POST /api/v1/submit 请求
// @Summary 提交工作项
// @Description 提交单个工作项并同步等待批处理结果
// @Tags 提交
// @Accept json
// @Produce json
// @Param request body api.SubmitRequest true "提交请求"
// @Success 200 {object} api.SubmitResponse "执行结果"
// @Failure 429 {object} Response "管线过载,按 Retry-After 退避后重试"
// @Failure 503 {object} Response "管线停机中"
// @Failure 504 {object} Response "等待结果超时"
// @Router /api/v1/submit [post]
func (h *SubmitHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidSpec, "method not allowed", h.logger)
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.SubmitRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if len(req.Payload) == 0 {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidSpec, "payload must not be empty", h.logger)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.orch.SubmitWait(ctx, req.Payload)
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}

	WriteSuccess(w, api.SubmitResponse{
		ItemID:  result.ItemID,
		Output:  result.Output,
		Latency: result.Latency.String(),
	})
}

// writeSubmitError 将提交路径错误映射为 HTTP 响应。
func (h *SubmitHandler) writeSubmitError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		WriteErrorMessage(w, http.StatusGatewayTimeout, types.ErrWorkerExecutionFailed, "timed out waiting for batch result", h.logger)
		return
	}

	var apiErr *types.Error
	if errors.As(err, &apiErr) {
		WriteError(w, apiErr, h.logger)
		return
	}

	WriteErrorMessage(w, http.StatusInternalServerError, types.ErrWorkerExecutionFailed, err.Error(), h.logger)
}
