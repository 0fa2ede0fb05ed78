package api

import (
	"encoding/json"
)

// =============================================================================
// 提交类型
// =============================================================================

// SubmitRequest 代表一次工作项提交请求。
// @Description 工作项提交请求结构
type SubmitRequest struct {
	// 工作项负载,原样透传给批处理内核
	Payload json.RawMessage `json:"payload" binding:"required"`
}

// SubmitResponse 表示同步提交的执行结果。
// @Description 工作项提交响应结构
type SubmitResponse struct {
	// 工作项 ID
	ItemID string `json:"item_id" example:"9f2c1e4a-0b7d-4c3e-8f5a-6d1e2b3c4d5e"`
	// 内核返回的输出
	Output any `json:"output"`
	// 从提交到解析的端到端延迟
	Latency string `json:"latency" example:"12.4ms"`
}

// =============================================================================
// 控制面类型
// =============================================================================

// EvaluateResponse 表示一次手动扩缩容评估的结果。
// @Description 扩缩容评估响应结构
type EvaluateResponse struct {
	// 评估后的目标副本数
	Desired int `json:"desired" example:"3"`
	// 决策方向: up、down 或 hold
	Direction string `json:"direction" example:"up"`
	// 决策依据
	Reason string `json:"reason" example:"avg latency 312ms above threshold 200ms"`
	// 评估后的实际副本数
	Replicas int `json:"replicas" example:"3"`
}

// EventsSummary 按方向聚合的扩缩容事件计数。
// @Description 扩缩容事件汇总结构
type EventsSummary struct {
	// 各方向的事件数量
	Counts map[string]int64 `json:"counts"`
}
