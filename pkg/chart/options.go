package chart

import (
	"time"

	"gonum.org/v1/plot/vg"
)

const (
	DefaultOutputDir = "img"
	DefaultWidth     = 12 * vg.Inch
	DefaultHeight    = 6 * vg.Inch
)

func defaultOptions() *Options {
	return &Options{
		OutputDir: DefaultOutputDir,
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		Location:  time.Local,
	}
}

type Options struct {
	OutputDir     string
	FontPath      string
	Width         vg.Length
	Height        vg.Length
	Location      *time.Location
	SkipUnchanged bool
}

type Option func(*Options)

func WithOutputDir(dir string) Option {
	return func(opts *Options) {
		opts.OutputDir = dir
	}
}

// WithFontPath loads a TrueType/OpenType font for every text on the chart.
// Needed for titles containing characters the bundled fonts lack.
func WithFontPath(path string) Option {
	return func(opts *Options) {
		opts.FontPath = path
	}
}

func WithSize(width, height vg.Length) Option {
	return func(opts *Options) {
		opts.Width = width
		opts.Height = height
	}
}

// WithLocation sets the time zone used for tick labels.
func WithLocation(loc *time.Location) Option {
	return func(opts *Options) {
		opts.Location = loc
	}
}

// WithSkipUnchanged avoids redrawing a file whose data did not change since
// it was last rendered by this Renderer.
func WithSkipUnchanged(skip bool) Option {
	return func(opts *Options) {
		opts.SkipUnchanged = skip
	}
}
