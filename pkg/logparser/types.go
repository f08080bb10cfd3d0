package logparser

import (
	"sort"
	"strconv"
	"time"

	"github.com/voluzi/memwatch/pkg/record"
)

// Mode selects which kind of log is being read.
type Mode string

const (
	ModeProcess Mode = "process"
	ModeSystem  Mode = "system"
)

func (m Mode) Valid() bool {
	return m == ModeProcess || m == ModeSystem
}

// Point is a single (timestamp, value) sample.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Series is ordered by the position of its records in the log.
type Series []Point

func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Record is one decoded data line together with the timestamp of the block
// it belongs to. Exactly one of Process and System is set.
type Record struct {
	Time    time.Time
	Process *record.Process
	System  *record.System
}

// ProcessSeries holds the samples of one PID. Descriptive fields are taken
// from the first record seen for that PID.
type ProcessSeries struct {
	PID      string
	User     string
	Command  string
	FilePath string
	Memory   Series
	CPU      Series
}

type ProcessResult struct {
	Processes map[string]*ProcessSeries
	Skipped   []*LineError
}

// PIDs returns the keys of Processes, numerically ordered where possible.
func (r *ProcessResult) PIDs() []string {
	pids := make([]string, 0, len(r.Processes))
	for pid := range r.Processes {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool {
		a, errA := strconv.Atoi(pids[i])
		b, errB := strconv.Atoi(pids[j])
		if errA == nil && errB == nil && a != b {
			return a < b
		}
		return pids[i] < pids[j]
	})
	return pids
}

func (r *ProcessResult) Empty() bool {
	return len(r.Processes) == 0
}

type SystemResult struct {
	Memory  Series
	TotalMB Series
	UsedMB  Series
	Skipped []*LineError
}

func (r *SystemResult) Empty() bool {
	return len(r.Memory) == 0
}
