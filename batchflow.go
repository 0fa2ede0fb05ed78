// Package batchflow provides a top-level convenience entry point for creating
// batching pipelines with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/batchflow"
//
//	p, err := batchflow.New(func(ctx context.Context, inputs []any) ([]any, error) {
//		return inputs, nil
//	})
//	p, err := batchflow.New(kernel, batchflow.WithMaxBatchSize(32))
//
// This is a thin wrapper around [quick.Pipeline]; both produce identical
// results. Use this package when you prefer the shorter import path.
package batchflow

import (
	"github.com/BaSui01/batchflow/orchestrator"
	"github.com/BaSui01/batchflow/pool"
	"github.com/BaSui01/batchflow/quick"
)

// Version is the library version, set at build time via ldflags for releases.
const Version = "0.1.0"

// Option configures the pipeline created by [New].
type Option = quick.Option

// New creates and starts an [orchestrator.Orchestrator] around the given
// kernel function. The caller owns Close.
func New(kernel pool.KernelFunc, opts ...Option) (*orchestrator.Orchestrator, error) {
	return quick.Pipeline(kernel, opts...)
}

// Re-export pipeline knobs so callers never need to import quick/.

// WithReplicas sets the replica bounds for autoscaling.
var WithReplicas = quick.WithReplicas

// WithMaxBatchSize sets the batch size trigger.
var WithMaxBatchSize = quick.WithMaxBatchSize

// WithFlushInterval sets the batch time trigger.
var WithFlushInterval = quick.WithFlushInterval

// WithTargetLatency sets the latency SLO the autoscaler steers toward.
var WithTargetLatency = quick.WithTargetLatency

// WithBacklogSize bounds the sealed-batch queue.
var WithBacklogSize = quick.WithBacklogSize

// WithSpec replaces the entire workflow spec.
var WithSpec = quick.WithSpec

// WithLogger sets a custom zap logger.
var WithLogger = quick.WithLogger

// WithObserver attaches a sample observer to the pipeline.
var WithObserver = quick.WithObserver
