// Package autoscale 实现带迟滞的副本数控制回路:周期性读取延迟窗口,
// 以 ±1 步长在配置边界内调整 worker 池。
package autoscale

import (
	"fmt"
	"time"
)

// Direction 表示一次评估的调整方向。
type Direction int

const (
	// Hold 维持现状
	Hold Direction = iota
	// Up 扩容一个副本
	Up
	// Down 缩容一个副本
	Down
)

// String 返回方向的可读描述
func (d Direction) String() string {
	switch d {
	case Hold:
		return "hold"
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "unknown"
	}
}

// DecisionContext 是策略评估的输入快照。
type DecisionContext struct {
	// AvgLatency 是窗口内的平均执行延迟,SampleCount 为 0 时无意义
	AvgLatency time.Duration

	// SampleCount 是窗口内的样本数
	SampleCount int

	// Replicas 是当前存活副本数
	Replicas int

	// Min 与 Max 是副本数边界
	Min int
	Max int
}

// Decision 是策略评估的输出。
type Decision struct {
	// Desired 是期望副本数,与当前值至多相差一
	Desired int `json:"desired"`

	// Direction 是调整方向
	Direction Direction `json:"direction"`

	// Reason 描述决策依据,用于观测与审计
	Reason string `json:"reason"`
}

// Policy 把观测快照映射为扩缩决策。实现必须无副作用,同一输入
// 恒产生同一输出。
type Policy interface {
	Evaluate(dc DecisionContext) Decision
}

// HysteresisPolicy 是双阈值 bang-bang 策略:均值越过上阈值时加一,
// 低于下阈值时减一,两者之间为死区。阈值拉开一倍的间距,避免在
// 目标值附近来回振荡。
type HysteresisPolicy struct {
	// ScaleUpThreshold 均值严格高于该值时扩容
	ScaleUpThreshold time.Duration

	// ScaleDownThreshold 均值严格低于该值时缩容
	ScaleDownThreshold time.Duration
}

// NewHysteresisPolicy 以目标延迟构造策略:上阈值取目标值,
// 下阈值取目标值的一半。
func NewHysteresisPolicy(target time.Duration) (*HysteresisPolicy, error) {
	if target <= 0 {
		return nil, fmt.Errorf("target latency must be positive, got %v", target)
	}
	return &HysteresisPolicy{
		ScaleUpThreshold:   target,
		ScaleDownThreshold: target / 2,
	}, nil
}

// Evaluate 实现 Policy。
func (p *HysteresisPolicy) Evaluate(dc DecisionContext) Decision {
	if dc.SampleCount == 0 {
		// 空窗不动作:没有证据就不猜
		return Decision{Desired: dc.Replicas, Direction: Hold, Reason: "empty window"}
	}

	switch {
	case dc.AvgLatency > p.ScaleUpThreshold:
		if dc.Replicas >= dc.Max {
			return Decision{Desired: dc.Replicas, Direction: Hold, Reason: "latency above target but at max replicas"}
		}
		return Decision{Desired: dc.Replicas + 1, Direction: Up, Reason: "avg latency above target"}

	case dc.AvgLatency < p.ScaleDownThreshold:
		if dc.Replicas <= dc.Min {
			return Decision{Desired: dc.Replicas, Direction: Hold, Reason: "latency below floor but at min replicas"}
		}
		return Decision{Desired: dc.Replicas - 1, Direction: Down, Reason: "avg latency below floor"}

	default:
		return Decision{Desired: dc.Replicas, Direction: Hold, Reason: "within dead band"}
	}
}
