package handlers

import (
	"net/http"
	"strconv"

	"github.com/BaSui01/batchflow/api"
	"github.com/BaSui01/batchflow/journal"
	"github.com/BaSui01/batchflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 📜 扩缩容事件 Handler
// =============================================================================

// defaultEventsLimit 未指定 limit 参数时返回的事件数
const defaultEventsLimit = 50

// maxEventsLimit 单次查询的事件数上限
const maxEventsLimit = 500

// EventsHandler 扩缩容事件历史处理器,由 journal 支撑。
type EventsHandler struct {
	journal *journal.Journal
	logger  *zap.Logger
}

// NewEventsHandler 创建事件历史处理器
func NewEventsHandler(j *journal.Journal, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{
		journal: j,
		logger:  logger.With(zap.String("handler", "events")),
	}
}

// HandleRecent 处理 GET /api/v1/events 请求
// @Summary 最近事件
// @Description 返回最近的扩缩容评估记录,按时间倒序
// @Tags 观测
// @Produce json
// @Param limit query int false "返回条数,默认 50,上限 500"
// @Success 200 {array} journal.ScaleEvent "事件列表"
// @Router /api/v1/events [get]
func (h *EventsHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidSpec, "limit must be a positive integer", h.logger)
			return
		}
		limit = n
	}
	if limit > maxEventsLimit {
		limit = maxEventsLimit
	}

	events, err := h.journal.Recent(r.Context(), limit)
	if err != nil {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrScaleOperationFailed, "failed to query scale events", h.logger)
		return
	}

	WriteSuccess(w, events)
}

// HandleSummary 处理 GET /api/v1/events/summary 请求
// @Summary 事件汇总
// @Description 返回按方向聚合的扩缩容事件计数
// @Tags 观测
// @Produce json
// @Success 200 {object} api.EventsSummary "事件汇总"
// @Router /api/v1/events/summary [get]
func (h *EventsHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	counts, err := h.journal.Summary(r.Context())
	if err != nil {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrScaleOperationFailed, "failed to summarize scale events", h.logger)
		return
	}

	WriteSuccess(w, api.EventsSummary{Counts: counts})
}
