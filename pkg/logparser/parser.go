// Package logparser reconstructs per-entity time series from the text logs
// written by the sampler.
package logparser

import (
	"bufio"
	"io"
	"os"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"

	"github.com/voluzi/memwatch/pkg/timerange"
)

const maxLineSize = 1024 * 1024

type Parser struct {
	loc    *time.Location
	strict bool
}

type Option func(*Parser)

// WithLocation sets the time zone log timestamps are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		p.loc = loc
	}
}

// WithStrict makes the first malformed line abort the parse instead of
// being skipped with a warning.
func WithStrict(strict bool) Option {
	return func(p *Parser) {
		p.strict = strict
	}
}

func New(opts ...Option) *Parser {
	p := &Parser{loc: time.Local}
	for _, opt := range opts {
		opt(p)
	}
	if p.loc == nil {
		p.loc = time.Local
	}
	return p
}

// ParseProcesses reads a process log and returns the samples of every PID
// recorded inside window.
func (p *Parser) ParseProcesses(path string, window timerange.Window) (*ProcessResult, error) {
	r, err := open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	result, err := p.ParseProcessesReader(r, window)
	if err != nil {
		return nil, errors.WithDetails(err, "path", path)
	}
	return result, nil
}

func (p *Parser) ParseProcessesReader(r io.Reader, window timerange.Window) (*ProcessResult, error) {
	result := &ProcessResult{Processes: make(map[string]*ProcessSeries)}

	skipped, err := p.scan(r, ModeProcess, window, func(rec *Record) {
		proc := rec.Process
		series, ok := result.Processes[proc.PID]
		if !ok {
			series = &ProcessSeries{
				PID:      proc.PID,
				User:     proc.User,
				Command:  proc.Command,
				FilePath: proc.FilePath,
			}
			result.Processes[proc.PID] = series
		}
		series.Memory = append(series.Memory, Point{Time: rec.Time, Value: proc.MemPercent})
		series.CPU = append(series.CPU, Point{Time: rec.Time, Value: proc.CPUPercent})
	})
	if err != nil {
		return nil, err
	}
	result.Skipped = skipped
	return result, nil
}

// ParseSystem reads a system log and returns the memory usage recorded
// inside window.
func (p *Parser) ParseSystem(path string, window timerange.Window) (*SystemResult, error) {
	r, err := open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	result, err := p.ParseSystemReader(r, window)
	if err != nil {
		return nil, errors.WithDetails(err, "path", path)
	}
	return result, nil
}

func (p *Parser) ParseSystemReader(r io.Reader, window timerange.Window) (*SystemResult, error) {
	result := &SystemResult{}

	skipped, err := p.scan(r, ModeSystem, window, func(rec *Record) {
		result.Memory = append(result.Memory, Point{Time: rec.Time, Value: rec.System.Percent})
		result.TotalMB = append(result.TotalMB, Point{Time: rec.Time, Value: rec.System.TotalMB})
		result.UsedMB = append(result.UsedMB, Point{Time: rec.Time, Value: rec.System.UsedMB})
	})
	if err != nil {
		return nil, err
	}
	result.Skipped = skipped
	return result, nil
}

func (p *Parser) scan(r io.Reader, mode Mode, window timerange.Window, add func(*Record)) ([]*LineError, error) {
	var skipped []*LineError
	decoder := NewDecoder(mode, &window, p.loc)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		rec, err := decoder.Decode(scanner.Text())
		if err != nil {
			var lineErr *LineError
			if !errors.As(err, &lineErr) || p.strict {
				return nil, err
			}
			log.WithFields(map[string]interface{}{
				"line":   lineErr.Line,
				"reason": lineErr.Reason,
			}).Warn("skipping malformed log line")
			skipped = append(skipped, lineErr)
			continue
		}
		if rec != nil {
			add(rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading line %d", decoder.Line()+1)
	}
	return skipped, nil
}

type gzipFile struct {
	*pgzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	return errors.Combine(g.Reader.Close(), g.f.Close())
}

// open returns a reader over path, decompressing archives ending in .gz.
func open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &noDataError{path: path, err: err}
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}

	gz, err := pgzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "opening compressed log %s", path)
	}
	return &gzipFile{Reader: gz, f: f}, nil
}
