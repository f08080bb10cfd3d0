package sampler

import (
	"time"

	"github.com/voluzi/memwatch/pkg/logparser"
)

const (
	DefaultInterval = time.Second
	DefaultTopK     = 20
)

func defaultOptions() *Options {
	return &Options{
		Mode:         logparser.ModeProcess,
		Interval:     DefaultInterval,
		TopK:         DefaultTopK,
		ColumnHeader: true,
		Clock:        time.Now,
		Location:     time.Local,
	}
}

type Options struct {
	Mode         logparser.Mode
	Interval     time.Duration
	TopK         int
	ColumnHeader bool
	Clock        func() time.Time
	Location     *time.Location
	Processes    ProcessLister
	Memory       MemoryReader
}

type Option func(*Options)

func WithMode(mode logparser.Mode) Option {
	return func(opts *Options) {
		opts.Mode = mode
	}
}

func WithInterval(d time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = d
	}
}

func WithTopK(k int) Option {
	return func(opts *Options) {
		opts.TopK = k
	}
}

// WithColumnHeader controls the PID/USER/... header echoed after each
// timestamp in process mode.
func WithColumnHeader(enabled bool) Option {
	return func(opts *Options) {
		opts.ColumnHeader = enabled
	}
}

func WithClock(clock func() time.Time) Option {
	return func(opts *Options) {
		opts.Clock = clock
	}
}

// WithLocation sets the zone block timestamps are written in. Readers of
// the log must parse it with the same zone.
func WithLocation(loc *time.Location) Option {
	return func(opts *Options) {
		opts.Location = loc
	}
}

func WithProcessLister(lister ProcessLister) Option {
	return func(opts *Options) {
		opts.Processes = lister
	}
}

func WithMemoryReader(reader MemoryReader) Option {
	return func(opts *Options) {
		opts.Memory = reader
	}
}
