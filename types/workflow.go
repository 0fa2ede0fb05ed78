package types

import (
	"fmt"
	"time"
)

// WorkflowSpec is the configuration surface of one pipeline. It is immutable
// after construction; the orchestrator normalizes a copy with WithDefaults
// and validates it before wiring any component.
type WorkflowSpec struct {
	// MinReplicas is the lower replica bound, enforced at construction and
	// by every scaling decision. Must be >= 1.
	MinReplicas int `json:"min_replicas" yaml:"min_replicas"`

	// MaxReplicas is the upper replica bound. Must be >= MinReplicas.
	MaxReplicas int `json:"max_replicas" yaml:"max_replicas"`

	// MaxBatchSize is the size trigger: a forming batch is sealed the moment
	// it holds this many items. Also bounds the pending buffer.
	MaxBatchSize int `json:"max_batch_size" yaml:"max_batch_size"`

	// FlushInterval is the time trigger: a forming batch is sealed this long
	// after its first item arrived, whichever trigger fires first.
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"`

	// TargetLatency is the SLO the autoscaler steers the average batch
	// latency toward. Scale-up threshold is TargetLatency, scale-down is
	// TargetLatency/2; the band between them is the hysteresis dead band.
	TargetLatency time.Duration `json:"target_latency" yaml:"target_latency"`

	// BacklogSize bounds the dispatcher's sealed-batch queue. A full backlog
	// rejects further batches with Overloaded.
	BacklogSize int `json:"backlog_size" yaml:"backlog_size"`

	// EvaluateInterval is the autoscaling controller's cycle cadence.
	EvaluateInterval time.Duration `json:"evaluate_interval" yaml:"evaluate_interval"`

	// WindowSize is the capacity of the latency sample ring buffer.
	WindowSize int `json:"window_size" yaml:"window_size"`
}

// DefaultWorkflowSpec returns a spec with conservative defaults suitable for
// local use.
func DefaultWorkflowSpec() WorkflowSpec {
	return WorkflowSpec{
		MinReplicas:      1,
		MaxReplicas:      4,
		MaxBatchSize:     8,
		FlushInterval:    100 * time.Millisecond,
		TargetLatency:    200 * time.Millisecond,
		BacklogSize:      16,
		EvaluateInterval: time.Second,
		WindowSize:       64,
	}
}

// WithDefaults returns a copy with zero-valued optional knobs replaced by
// defaults. Required knobs are left untouched for Validate to reject.
func (s WorkflowSpec) WithDefaults() WorkflowSpec {
	def := DefaultWorkflowSpec()
	if s.MinReplicas == 0 {
		s.MinReplicas = def.MinReplicas
	}
	if s.MaxReplicas == 0 {
		s.MaxReplicas = def.MaxReplicas
	}
	if s.MaxBatchSize == 0 {
		s.MaxBatchSize = def.MaxBatchSize
	}
	if s.FlushInterval == 0 {
		s.FlushInterval = def.FlushInterval
	}
	if s.TargetLatency == 0 {
		s.TargetLatency = def.TargetLatency
	}
	if s.BacklogSize == 0 {
		s.BacklogSize = def.BacklogSize
	}
	if s.EvaluateInterval == 0 {
		s.EvaluateInterval = def.EvaluateInterval
	}
	if s.WindowSize == 0 {
		s.WindowSize = def.WindowSize
	}
	return s
}

// Validate checks the spec invariants.
func (s WorkflowSpec) Validate() error {
	if s.MinReplicas < 1 {
		return NewInvalidSpecError(fmt.Sprintf("min_replicas must be >= 1, got %d", s.MinReplicas))
	}
	if s.MaxReplicas < s.MinReplicas {
		return NewInvalidSpecError(fmt.Sprintf("max_replicas %d must be >= min_replicas %d", s.MaxReplicas, s.MinReplicas))
	}
	if s.MaxBatchSize < 1 {
		return NewInvalidSpecError(fmt.Sprintf("max_batch_size must be >= 1, got %d", s.MaxBatchSize))
	}
	if s.FlushInterval <= 0 {
		return NewInvalidSpecError("flush_interval must be positive")
	}
	if s.TargetLatency <= 0 {
		return NewInvalidSpecError("target_latency must be positive")
	}
	if s.BacklogSize < 1 {
		return NewInvalidSpecError(fmt.Sprintf("backlog_size must be >= 1, got %d", s.BacklogSize))
	}
	if s.EvaluateInterval <= 0 {
		return NewInvalidSpecError("evaluate_interval must be positive")
	}
	if s.WindowSize < 1 {
		return NewInvalidSpecError(fmt.Sprintf("window_size must be >= 1, got %d", s.WindowSize))
	}
	return nil
}

// ScaleUpThreshold is the average latency above which the controller adds a
// replica.
func (s WorkflowSpec) ScaleUpThreshold() time.Duration {
	return s.TargetLatency
}

// ScaleDownThreshold is the average latency below which the controller
// removes a replica.
func (s WorkflowSpec) ScaleDownThreshold() time.Duration {
	return s.TargetLatency / 2
}
