// Package resample reduces time series to a bounded number of points for
// plotting while keeping their shape.
package resample

import (
	"github.com/voluzi/memwatch/pkg/logparser"
)

// DefaultMaxPoints is used when a non-positive limit is given.
const DefaultMaxPoints = 100

// Resample returns at most maxPoints points of s, in order:
//
//  1. a flat series collapses to its first and last points;
//  2. a series within the limit is returned as is;
//  3. otherwise the first point, the last point and every change point are
//     kept, and if that is still over the limit the result is split into
//     ceil(n/maxPoints) sized chunks of which only the maximum survives.
//
// The chunking step can drop the original first and last points.
func Resample(s logparser.Series, maxPoints int) logparser.Series {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	if len(s) <= 1 {
		return clone(s)
	}

	if flat(s) {
		return logparser.Series{s[0], s[len(s)-1]}
	}
	if len(s) <= maxPoints {
		return clone(s)
	}

	filtered := changePoints(s)
	if len(filtered) <= maxPoints {
		return filtered
	}
	return chunkMax(filtered, maxPoints)
}

// Peak returns the first point holding the maximum value.
func Peak(s logparser.Series) (logparser.Point, bool) {
	if len(s) == 0 {
		return logparser.Point{}, false
	}
	peak := s[0]
	for _, p := range s[1:] {
		if p.Value > peak.Value {
			peak = p
		}
	}
	return peak, true
}

func flat(s logparser.Series) bool {
	for _, p := range s[1:] {
		if p.Value != s[0].Value {
			return false
		}
	}
	return true
}

func changePoints(s logparser.Series) logparser.Series {
	out := logparser.Series{s[0]}
	for i := 1; i < len(s)-1; i++ {
		if s[i].Value != s[i-1].Value || s[i].Value != s[i+1].Value {
			out = append(out, s[i])
		}
	}
	return append(out, s[len(s)-1])
}

func chunkMax(s logparser.Series, maxPoints int) logparser.Series {
	size := (len(s) + maxPoints - 1) / maxPoints
	out := make(logparser.Series, 0, maxPoints)
	for start := 0; start < len(s); start += size {
		end := min(start+size, len(s))
		peak, _ := Peak(s[start:end])
		out = append(out, peak)
	}
	return out
}

func clone(s logparser.Series) logparser.Series {
	if s == nil {
		return nil
	}
	out := make(logparser.Series, len(s))
	copy(out, s)
	return out
}
