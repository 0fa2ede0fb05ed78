package autoscale

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func testPolicy() *HysteresisPolicy {
	return &HysteresisPolicy{
		ScaleUpThreshold:   100 * time.Millisecond,
		ScaleDownThreshold: 50 * time.Millisecond,
	}
}

// 从原始抽样构造一个边界一致的评估上下文:min <= replicas <= max
func contextFrom(avgMs, minReplicas, spread, offset, samples int) DecisionContext {
	max := minReplicas + spread
	replicas := minReplicas + offset%(spread+1)
	return DecisionContext{
		AvgLatency:  time.Duration(avgMs) * time.Millisecond,
		SampleCount: samples,
		Replicas:    replicas,
		Min:         minReplicas,
		Max:         max,
	}
}

func TestProperty_DesiredStaysWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("desired replica count never leaves [min, max]", prop.ForAll(
		func(avgMs, minReplicas, spread, offset int) bool {
			dc := contextFrom(avgMs, minReplicas, spread, offset, 10)
			decision := testPolicy().Evaluate(dc)

			if decision.Desired < dc.Min || decision.Desired > dc.Max {
				t.Logf("desired %d outside [%d, %d] for avg=%dms replicas=%d",
					decision.Desired, dc.Min, dc.Max, avgMs, dc.Replicas)
				return false
			}
			return true
		},
		gen.IntRange(0, 300),
		gen.IntRange(1, 5),
		gen.IntRange(0, 6),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_StepSizeNeverExceedsOne(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("a single evaluation moves by at most one replica", prop.ForAll(
		func(avgMs, minReplicas, spread, offset, samples int) bool {
			dc := contextFrom(avgMs, minReplicas, spread, offset, samples)
			decision := testPolicy().Evaluate(dc)

			diff := decision.Desired - dc.Replicas
			if diff < -1 || diff > 1 {
				t.Logf("step %d too large for avg=%dms replicas=%d", diff, avgMs, dc.Replicas)
				return false
			}
			return true
		},
		gen.IntRange(0, 300),
		gen.IntRange(1, 5),
		gen.IntRange(0, 6),
		gen.IntRange(0, 100),
		gen.IntRange(0, 32),
	))

	properties.TestingRun(t)
}

func TestProperty_DirectionMatchesDesired(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("direction and desired are always consistent", prop.ForAll(
		func(avgMs, minReplicas, spread, offset int) bool {
			dc := contextFrom(avgMs, minReplicas, spread, offset, 10)
			decision := testPolicy().Evaluate(dc)

			switch decision.Direction {
			case Up:
				return decision.Desired == dc.Replicas+1 &&
					dc.AvgLatency > testPolicy().ScaleUpThreshold &&
					dc.Replicas < dc.Max
			case Down:
				return decision.Desired == dc.Replicas-1 &&
					dc.AvgLatency < testPolicy().ScaleDownThreshold &&
					dc.Replicas > dc.Min
			case Hold:
				return decision.Desired == dc.Replicas
			default:
				t.Logf("unexpected direction %v", decision.Direction)
				return false
			}
		},
		gen.IntRange(0, 300),
		gen.IntRange(1, 5),
		gen.IntRange(0, 6),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_DeadBandAlwaysHolds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("averages inside the dead band never move replicas", prop.ForAll(
		func(avgMs, minReplicas, spread, offset int) bool {
			// [50ms, 100ms] 闭区间:两端均不触发
			dc := contextFrom(avgMs, minReplicas, spread, offset, 10)
			decision := testPolicy().Evaluate(dc)

			if decision.Direction != Hold || decision.Desired != dc.Replicas {
				t.Logf("dead band avg=%dms produced %s to %d", avgMs,
					decision.Direction.String(), decision.Desired)
				return false
			}
			return true
		},
		gen.IntRange(50, 100),
		gen.IntRange(1, 5),
		gen.IntRange(0, 6),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_EmptyWindowAlwaysHolds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("an empty window never triggers scaling", prop.ForAll(
		func(avgMs, minReplicas, spread, offset int) bool {
			dc := contextFrom(avgMs, minReplicas, spread, offset, 0)
			decision := testPolicy().Evaluate(dc)
			return decision.Direction == Hold && decision.Desired == dc.Replicas
		},
		gen.IntRange(0, 300),
		gen.IntRange(1, 5),
		gen.IntRange(0, 6),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_EvaluateIsDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("identical inputs yield identical decisions", prop.ForAll(
		func(avgMs, minReplicas, spread, offset, samples int) bool {
			dc := contextFrom(avgMs, minReplicas, spread, offset, samples)
			p := testPolicy()
			first := p.Evaluate(dc)
			second := p.Evaluate(dc)
			return first == second
		},
		gen.IntRange(0, 300),
		gen.IntRange(1, 5),
		gen.IntRange(0, 6),
		gen.IntRange(0, 100),
		gen.IntRange(0, 32),
	))

	properties.TestingRun(t)
}
