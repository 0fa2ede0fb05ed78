package pool

import "context"

// Kernel is the compute capability one worker replica executes batches with.
// Process receives the payloads of a dispatched batch in order and must
// return exactly one output per payload, or an error for the batch as a
// whole. Implementations may block for the full inference duration; the pool
// never holds a lock across a Process call.
type Kernel interface {
	Process(ctx context.Context, payloads []any) ([]any, error)
}

// KernelFunc adapts a plain function to the Kernel interface.
type KernelFunc func(ctx context.Context, payloads []any) ([]any, error)

// Process implements Kernel.
func (f KernelFunc) Process(ctx context.Context, payloads []any) ([]any, error) {
	return f(ctx, payloads)
}

// Provisioner creates and tears down kernels as the pool scales. Provision is
// called once per new worker; an error aborts the scale-up attempt and is
// reported as a scale operation failure, to be retried on the controller's
// next cycle.
type Provisioner interface {
	Provision(ctx context.Context, workerID string) (Kernel, error)
	Teardown(ctx context.Context, workerID string, kernel Kernel) error
}

// StaticProvisioner hands every worker the same shared kernel and never
// fails. It suits kernels that are themselves stateless and reentrant.
type StaticProvisioner struct {
	kernel Kernel
}

// NewStaticProvisioner wraps a shared kernel.
func NewStaticProvisioner(kernel Kernel) *StaticProvisioner {
	return &StaticProvisioner{kernel: kernel}
}

// Provision implements Provisioner.
func (p *StaticProvisioner) Provision(ctx context.Context, workerID string) (Kernel, error) {
	return p.kernel, nil
}

// Teardown implements Provisioner.
func (p *StaticProvisioner) Teardown(ctx context.Context, workerID string, kernel Kernel) error {
	return nil
}
