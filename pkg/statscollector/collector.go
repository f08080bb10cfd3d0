// Package statscollector keeps a bounded, time-ordered history of memory
// readings and answers windowed questions about it.
package statscollector

import (
	"sync"
	"time"
)

// Sample represents a single timestamped reading.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Collector collects and stores reading history for one entity.
type Collector struct {
	samples []Sample
	lock    sync.RWMutex

	// maxSamples is the maximum number of samples to retain
	maxSamples int
}

// NewCollector creates a new Collector with a sample retention limit.
func NewCollector(maxSamples int) *Collector {
	if maxSamples <= 0 {
		maxSamples = 1
	}
	return &Collector{
		samples:    make([]Sample, 0),
		maxSamples: maxSamples,
	}
}

// Len returns the number of retained samples.
func (sc *Collector) Len() int {
	sc.lock.RLock()
	defer sc.lock.RUnlock()
	return len(sc.samples)
}
