package archive

import (
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/klauspost/pgzip"
)

const (
	DefaultBlockSize    = "1MB"
	DefaultBlocks       = 4
	DefaultReportPeriod = 5 * time.Second
)

// Options configures log compression.
type Options struct {
	Level        int
	BlockSize    datasize.ByteSize
	Blocks       int
	Truncate     bool
	ReportPeriod time.Duration
}

func defaultOptions() *Options {
	return &Options{
		Level:        pgzip.DefaultCompression,
		BlockSize:    datasize.MustParseString(DefaultBlockSize),
		Blocks:       DefaultBlocks,
		ReportPeriod: DefaultReportPeriod,
	}
}

// Option is a functional option for configuring compression.
type Option func(*Options)

// WithLevel sets the gzip compression level.
func WithLevel(level int) Option {
	return func(o *Options) {
		o.Level = level
	}
}

// WithBlockSize sets the size of the blocks compressed in parallel, e.g. "512KB".
func WithBlockSize(size string) Option {
	return func(o *Options) {
		o.BlockSize = datasize.MustParseString(size)
	}
}

// WithBlocks sets how many blocks may be compressed concurrently.
func WithBlocks(blocks int) Option {
	return func(o *Options) {
		o.Blocks = blocks
	}
}

// WithTruncate empties the source log once its archive is complete.
func WithTruncate(truncate bool) Option {
	return func(o *Options) {
		o.Truncate = truncate
	}
}

// WithReportPeriod sets how often progress is logged.
func WithReportPeriod(period time.Duration) Option {
	return func(o *Options) {
		o.ReportPeriod = period
	}
}
