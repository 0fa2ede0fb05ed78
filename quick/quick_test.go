package quick

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/batchflow/sink"
	"github.com/BaSui01/batchflow/types"
)

func echoKernel(ctx context.Context, payloads []any) ([]any, error) {
	return payloads, nil
}

func TestPipeline_Defaults(t *testing.T) {
	p, err := Pipeline(echoKernel, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Close(ctx)
	})

	spec := p.Spec()
	assert.Equal(t, types.DefaultWorkflowSpec(), spec)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := p.SubmitWait(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Output)
}

func TestPipeline_Options(t *testing.T) {
	p, err := Pipeline(echoKernel,
		WithReplicas(2, 6),
		WithMaxBatchSize(32),
		WithFlushInterval(20*time.Millisecond),
		WithTargetLatency(500*time.Millisecond),
		WithBacklogSize(64),
		WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Close(ctx)
	})

	spec := p.Spec()
	assert.Equal(t, 2, spec.MinReplicas)
	assert.Equal(t, 6, spec.MaxReplicas)
	assert.Equal(t, 32, spec.MaxBatchSize)
	assert.Equal(t, 20*time.Millisecond, spec.FlushInterval)
	assert.Equal(t, 500*time.Millisecond, spec.TargetLatency)
	assert.Equal(t, 64, spec.BacklogSize)
	assert.Equal(t, 2, p.Replicas())
}

func TestPipeline_WithSpec(t *testing.T) {
	custom := types.WorkflowSpec{
		MinReplicas:  1,
		MaxReplicas:  2,
		MaxBatchSize: 4,
	}
	p, err := Pipeline(echoKernel, WithSpec(custom), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Close(ctx)
	})

	assert.Equal(t, 4, p.Spec().MaxBatchSize)
}

func TestPipeline_InvalidSpec(t *testing.T) {
	_, err := Pipeline(echoKernel, WithReplicas(4, 1))
	require.Error(t, err)
}

func TestPipeline_Observer(t *testing.T) {
	broadcast := sink.NewBroadcastSink()

	p, err := Pipeline(echoKernel,
		WithFlushInterval(10*time.Millisecond),
		WithObserver(broadcast),
		WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Close(ctx)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = p.SubmitWait(ctx, "observed")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, ok := broadcast.Last()
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}
