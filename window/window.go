// Package window provides the bounded latency sample window the autoscaling
// loop reads its signal from.
package window

import (
	"sync"
	"time"
)

// Sample is one recorded batch latency.
type Sample struct {
	Value      time.Duration `json:"value"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// MetricsWindow is a fixed-capacity ring buffer of latency samples with FIFO
// eviction. Writers are the dispatcher's execution paths; the reader is the
// autoscaling controller. All methods are safe for concurrent use; the
// running sum keeps Record and Average O(1).
type MetricsWindow struct {
	mu      sync.Mutex
	samples []Sample
	head    int
	size    int
	sum     time.Duration
}

// New creates a window holding at most capacity samples. Capacity must be at
// least 1.
func New(capacity int) *MetricsWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &MetricsWindow{
		samples: make([]Sample, capacity),
	}
}

// Record appends a sample, evicting the oldest one when the window is full.
func (w *MetricsWindow) Record(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Sample{Value: d, RecordedAt: time.Now()}
	if w.size == len(w.samples) {
		w.sum -= w.samples[w.head].Value
		w.samples[w.head] = s
		w.head = (w.head + 1) % len(w.samples)
	} else {
		w.samples[(w.head+w.size)%len(w.samples)] = s
		w.size++
	}
	w.sum += d
}

// Average returns the moving average over the current contents. ok is false
// when the window holds no samples; callers must skip their cycle rather
// than treat zero as a measurement.
func (w *MetricsWindow) Average() (avg time.Duration, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size == 0 {
		return 0, false
	}
	return w.sum / time.Duration(w.size), true
}

// Len returns the current number of samples.
func (w *MetricsWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Cap returns the window capacity.
func (w *MetricsWindow) Cap() int {
	return len(w.samples)
}

// Snapshot returns a copy of the current samples, oldest first.
func (w *MetricsWindow) Snapshot() []Sample {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Sample, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.samples[(w.head+i)%len(w.samples)]
	}
	return out
}

// Stats is a point-in-time summary of the window.
type Stats struct {
	Count    int           `json:"count"`
	Capacity int           `json:"capacity"`
	Average  time.Duration `json:"average"`
	Min      time.Duration `json:"min"`
	Max      time.Duration `json:"max"`
}

// Stats computes a summary over the current contents.
func (w *MetricsWindow) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := Stats{Count: w.size, Capacity: len(w.samples)}
	if w.size == 0 {
		return st
	}
	st.Average = w.sum / time.Duration(w.size)
	st.Min = w.samples[w.head].Value
	for i := 0; i < w.size; i++ {
		v := w.samples[(w.head+i)%len(w.samples)].Value
		if v < st.Min {
			st.Min = v
		}
		if v > st.Max {
			st.Max = v
		}
	}
	return st
}
