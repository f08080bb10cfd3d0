package statscollector

import "time"

// AddSample records new sample.
func (sc *Collector) AddSample(ts time.Time, value float64) {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	sc.samples = append(sc.samples, Sample{
		Timestamp: ts,
		Value:     value,
	})

	if len(sc.samples) > sc.maxSamples {
		sc.samples = sc.samples[len(sc.samples)-sc.maxSamples:]
	}
}

// GetSamples returns all samples taken in the since window ending at now.
// Samples exactly at the cutoff are included.
func (sc *Collector) GetSamples(since time.Duration, now time.Time) []Sample {
	cutoff := now.Add(-since)

	sc.lock.RLock()
	defer sc.lock.RUnlock()

	var result []Sample
	for _, s := range sc.samples {
		if !s.Timestamp.Before(cutoff) && !s.Timestamp.After(now) {
			result = append(result, s)
		}
	}
	return result
}

// Average returns the mean value over the window, or 0 without samples.
func (sc *Collector) Average(since time.Duration, now time.Time) float64 {
	samples := sc.GetSamples(since, now)
	if len(samples) == 0 {
		return 0
	}

	var total float64
	for _, s := range samples {
		total += s.Value
	}
	return total / float64(len(samples))
}

// Peak returns the first sample holding the highest value in the window.
func (sc *Collector) Peak(since time.Duration, now time.Time) (Sample, bool) {
	samples := sc.GetSamples(since, now)
	if len(samples) == 0 {
		return Sample{}, false
	}

	peak := samples[0]
	for _, s := range samples[1:] {
		if s.Value > peak.Value {
			peak = s
		}
	}
	return peak, true
}
