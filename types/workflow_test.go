package types

import (
	"testing"
	"time"
)

func TestWorkflowSpec_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*WorkflowSpec)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(s *WorkflowSpec) {}},
		{name: "zero min replicas", mutate: func(s *WorkflowSpec) { s.MinReplicas = 0 }, wantErr: true},
		{name: "max below min", mutate: func(s *WorkflowSpec) { s.MinReplicas = 3; s.MaxReplicas = 2 }, wantErr: true},
		{name: "zero batch size", mutate: func(s *WorkflowSpec) { s.MaxBatchSize = 0 }, wantErr: true},
		{name: "negative flush interval", mutate: func(s *WorkflowSpec) { s.FlushInterval = -time.Second }, wantErr: true},
		{name: "zero target latency", mutate: func(s *WorkflowSpec) { s.TargetLatency = 0 }, wantErr: true},
		{name: "zero backlog", mutate: func(s *WorkflowSpec) { s.BacklogSize = 0 }, wantErr: true},
		{name: "zero window", mutate: func(s *WorkflowSpec) { s.WindowSize = 0 }, wantErr: true},
		{name: "min equals max", mutate: func(s *WorkflowSpec) { s.MinReplicas = 2; s.MaxReplicas = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			spec := DefaultWorkflowSpec()
			tt.mutate(&spec)
			err := spec.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr && !IsCode(err, ErrInvalidSpec) {
				t.Fatalf("expected INVALID_SPEC code, got %v", err)
			}
		})
	}
}

func TestWorkflowSpec_WithDefaults(t *testing.T) {
	t.Parallel()

	spec := WorkflowSpec{MaxBatchSize: 3, FlushInterval: 50 * time.Millisecond}.WithDefaults()

	if spec.MaxBatchSize != 3 || spec.FlushInterval != 50*time.Millisecond {
		t.Fatalf("explicit knobs must survive defaulting: %+v", spec)
	}
	if spec.MinReplicas != 1 || spec.MaxReplicas != 4 {
		t.Fatalf("replica bounds not defaulted: %+v", spec)
	}
	if spec.WindowSize == 0 || spec.BacklogSize == 0 || spec.EvaluateInterval == 0 {
		t.Fatalf("optional knobs not defaulted: %+v", spec)
	}
	if err := spec.Validate(); err != nil {
		t.Fatalf("defaulted spec must validate: %v", err)
	}
}

func TestWorkflowSpec_Thresholds(t *testing.T) {
	t.Parallel()

	spec := WorkflowSpec{TargetLatency: 150 * time.Millisecond}
	if spec.ScaleUpThreshold() != 150*time.Millisecond {
		t.Fatalf("scale-up threshold must equal the target")
	}
	if spec.ScaleDownThreshold() != 75*time.Millisecond {
		t.Fatalf("scale-down threshold must be half the target")
	}
}
