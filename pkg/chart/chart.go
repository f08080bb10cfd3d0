// Package chart renders memory usage series as PNG line charts.
package chart

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"emperror.dev/errors"
	"github.com/mitchellh/hashstructure/v2"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/voluzi/memwatch/pkg/logparser"
	"github.com/voluzi/memwatch/pkg/record"
	"github.com/voluzi/memwatch/pkg/resample"
	"github.com/voluzi/memwatch/pkg/timerange"
)

const (
	TickLayout = record.TimeLayout
	YLabel     = "Memory usage (%)"
	XLabel     = "Time"
)

var ErrEmptySeries = errors.Sentinel("nothing to plot")

type Renderer struct {
	cfg  *Options
	font *font.Font

	mu     sync.Mutex
	hashes map[string]uint64
}

func NewRenderer(opts ...Option) (*Renderer, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.Location == nil {
		options.Location = time.Local
	}
	if options.OutputDir == "" {
		options.OutputDir = DefaultOutputDir
	}

	r := &Renderer{
		cfg:    options,
		hashes: make(map[string]uint64),
	}
	if options.FontPath != "" {
		fnt, err := loadFont(options.FontPath)
		if err != nil {
			return nil, err
		}
		r.font = &fnt
	}
	return r, nil
}

func (r *Renderer) OutputDir() string {
	return r.cfg.OutputDir
}

// ProcessFileName returns the chart file name of one process for window.
func ProcessFileName(command, pid string, window timerange.Window) string {
	return fmt.Sprintf("memory_usage_%s_%s_%s_%s.png",
		fileToken(command), fileToken(pid),
		window.Start.Format(record.FileStampLayout), window.End.Format(record.FileStampLayout))
}

// SystemFileName returns the chart file name of the host memory for window.
func SystemFileName(window timerange.Window) string {
	return fmt.Sprintf("server_memory_usage_%s_%s.png",
		window.Start.Format(record.FileStampLayout), window.End.Format(record.FileStampLayout))
}

// RenderProcess draws the memory series of one process and returns the
// written path.
func (r *Renderer) RenderProcess(ps *logparser.ProcessSeries, series logparser.Series, window timerange.Window) (string, error) {
	title := fmt.Sprintf("%s - PID: %s, Program: %s", window, ps.PID, ps.Command)
	path := filepath.Join(r.cfg.OutputDir, ProcessFileName(ps.Command, ps.PID, window))
	return r.render(path, title, series)
}

// RenderSystem draws the host memory series and returns the written path.
func (r *Renderer) RenderSystem(series logparser.Series, window timerange.Window) (string, error) {
	path := filepath.Join(r.cfg.OutputDir, SystemFileName(window))
	return r.render(path, window.String(), series)
}

func (r *Renderer) render(path, title string, series logparser.Series) (string, error) {
	if len(series) == 0 {
		return "", errors.WithDetails(ErrEmptySeries, "path", path)
	}

	if r.cfg.SkipUnchanged {
		sum, err := fingerprint(title, series)
		if err != nil {
			return "", err
		}
		if r.unchanged(path, sum) {
			log.WithField("path", path).Debug("chart unchanged, skipping")
			return path, nil
		}
		defer r.remember(path, sum)
	}

	p, err := r.newPlot(title, series)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.cfg.OutputDir, 0755); err != nil {
		return "", errors.Wrapf(err, "creating image directory %s", r.cfg.OutputDir)
	}
	if err := p.Save(r.cfg.Width, r.cfg.Height, path); err != nil {
		return "", errors.Wrapf(err, "saving chart %s", path)
	}

	log.WithFields(map[string]interface{}{
		"path":   path,
		"points": len(series),
	}).Info("chart saved")
	return path, nil
}

func (r *Renderer) newPlot(title string, series logparser.Series) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = XLabel
	p.Y.Label.Text = YLabel
	loc := r.cfg.Location
	p.X.Tick.Marker = plot.TimeTicks{
		Format: TickLayout,
		Time: func(t float64) time.Time {
			return time.Unix(0, int64(t*float64(time.Second))).In(loc)
		},
	}
	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(series))
	for i, pt := range series {
		xys[i].X = unixSeconds(pt.Time)
		xys[i].Y = pt.Value
	}

	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return nil, errors.Wrap(err, "building line")
	}
	line.LineStyle.Width = vg.Points(1)
	line.LineStyle.Color = color.RGBA{B: 200, A: 255}
	points.Shape = draw.CircleGlyph{}
	points.Color = color.RGBA{B: 200, A: 255}
	p.Add(line, points)

	peak, _ := resample.Peak(series)
	labels, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    plotter.XYs{{X: unixSeconds(peak.Time), Y: peak.Value}},
		Labels: []string{fmt.Sprintf("%.2f%%", peak.Value)},
	})
	if err != nil {
		return nil, errors.Wrap(err, "building peak label")
	}
	labels.Offset = vg.Point{X: vg.Points(4), Y: vg.Points(6)}
	p.Add(labels)

	// Leave room above the peak for its label.
	p.Y.Min = 0
	if p.Y.Max < peak.Value*1.1 {
		p.Y.Max = peak.Value * 1.1
	}

	if r.font != nil {
		setFont(&p.Title.TextStyle.Font, *r.font)
		setFont(&p.X.Label.TextStyle.Font, *r.font)
		setFont(&p.Y.Label.TextStyle.Font, *r.font)
		setFont(&p.X.Tick.Label.Font, *r.font)
		setFont(&p.Y.Tick.Label.Font, *r.font)
		for i := range labels.TextStyle {
			setFont(&labels.TextStyle[i].Font, *r.font)
		}
	}
	return p, nil
}

func (r *Renderer) unchanged(path string, sum uint64) bool {
	r.mu.Lock()
	prev, ok := r.hashes[path]
	r.mu.Unlock()
	if !ok || prev != sum {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func (r *Renderer) remember(path string, sum uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hashes[path] = sum
}

type chartData struct {
	Title  string
	Times  []int64
	Values []float64
}

func fingerprint(title string, series logparser.Series) (uint64, error) {
	data := chartData{
		Title:  title,
		Times:  make([]int64, len(series)),
		Values: series.Values(),
	}
	for i, pt := range series {
		data.Times[i] = pt.Time.UnixNano()
	}
	return hashstructure.Hash(data, hashstructure.FormatV2, nil)
}

func setFont(dst *font.Font, fnt font.Font) {
	size := dst.Size
	*dst = fnt
	dst.Size = size
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// fileToken makes s safe to embed in a file name.
func fileToken(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, s)
	if s == "" {
		return "unknown"
	}
	return s
}
