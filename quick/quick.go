// =============================================================================
// Package quick — One-Line Pipeline Construction
// =============================================================================
// Provides a convenience entry point for creating a batching pipeline with
// minimal boilerplate. Delegates to orchestrator.New internally.
//
// Usage:
//
//	import "github.com/BaSui01/batchflow/quick"
//
//	p, err := quick.Pipeline(func(ctx context.Context, inputs []any) ([]any, error) {
//		return inputs, nil
//	})
//	p, err := quick.Pipeline(kernel, quick.WithMaxBatchSize(32), quick.WithReplicas(2, 8))
//
// =============================================================================
package quick

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/batchflow/orchestrator"
	"github.com/BaSui01/batchflow/pool"
	"github.com/BaSui01/batchflow/sink"
	"github.com/BaSui01/batchflow/types"
)

// Option configures the pipeline created by Pipeline.
type Option func(*options)

type options struct {
	spec     types.WorkflowSpec
	logger   *zap.Logger
	observer sink.Observer
}

// WithReplicas sets the replica bounds for autoscaling.
func WithReplicas(min, max int) Option {
	return func(o *options) {
		o.spec.MinReplicas = min
		o.spec.MaxReplicas = max
	}
}

// WithMaxBatchSize sets the batch size trigger.
func WithMaxBatchSize(n int) Option {
	return func(o *options) { o.spec.MaxBatchSize = n }
}

// WithFlushInterval sets the batch time trigger.
func WithFlushInterval(d time.Duration) Option {
	return func(o *options) { o.spec.FlushInterval = d }
}

// WithTargetLatency sets the latency SLO the autoscaler steers toward.
func WithTargetLatency(d time.Duration) Option {
	return func(o *options) { o.spec.TargetLatency = d }
}

// WithBacklogSize bounds the sealed-batch queue.
func WithBacklogSize(n int) Option {
	return func(o *options) { o.spec.BacklogSize = n }
}

// WithSpec replaces the entire spec. Knob options applied after this
// override individual fields.
func WithSpec(spec types.WorkflowSpec) Option {
	return func(o *options) { o.spec = spec }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithObserver attaches a sample observer to the pipeline.
func WithObserver(observer sink.Observer) Option {
	return func(o *options) { o.observer = observer }
}

// Pipeline creates and starts an orchestrator around the given kernel
// function with default settings. The returned orchestrator is already
// running; the caller owns Close.
func Pipeline(kernel pool.KernelFunc, opts ...Option) (*orchestrator.Orchestrator, error) {
	o := &options{
		spec: types.DefaultWorkflowSpec(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(o.logger),
	}
	if o.observer != nil {
		orchOpts = append(orchOpts, orchestrator.WithObserver(o.observer))
	}

	orch, err := orchestrator.New(o.spec, kernel, orchOpts...)
	if err != nil {
		return nil, err
	}
	if err := orch.Start(context.Background()); err != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Close(closeCtx)
		return nil, err
	}
	return orch, nil
}
