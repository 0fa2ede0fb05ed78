// =============================================================================
// 📦 测试规格工厂
// =============================================================================
// 预置的 WorkflowSpec 样例，覆盖常见测试场景
// =============================================================================
package fixtures

import (
	"time"

	"github.com/BaSui01/batchflow/types"
)

// SmallSpec 返回小容量规格:3 项批、50ms 刷新、1~5 副本
func SmallSpec() types.WorkflowSpec {
	return types.WorkflowSpec{
		MinReplicas:      1,
		MaxReplicas:      5,
		MaxBatchSize:     3,
		FlushInterval:    50 * time.Millisecond,
		TargetLatency:    150 * time.Millisecond,
		BacklogSize:      8,
		EvaluateInterval: 20 * time.Millisecond,
		WindowSize:       16,
	}
}

// FastFlushSpec 返回低延迟刷新规格,适合吞吐型测试
func FastFlushSpec() types.WorkflowSpec {
	spec := SmallSpec()
	spec.MaxBatchSize = 8
	spec.FlushInterval = 5 * time.Millisecond
	spec.BacklogSize = 32
	spec.WindowSize = 64
	return spec
}

// SingleReplicaSpec 返回固定单副本规格,用于排队与背压场景
func SingleReplicaSpec() types.WorkflowSpec {
	spec := SmallSpec()
	spec.MinReplicas = 1
	spec.MaxReplicas = 1
	spec.BacklogSize = 2
	return spec
}
