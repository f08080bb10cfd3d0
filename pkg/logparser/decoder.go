package logparser

import (
	"time"

	"emperror.dev/errors"

	"github.com/voluzi/memwatch/pkg/record"
	"github.com/voluzi/memwatch/pkg/timerange"
)

// Decoder turns log lines into records, one line at a time. It tracks the
// timestamp of the current block; while that timestamp is unset (no header
// yet, or the last header was unreadable or outside the window) data lines
// are dropped.
type Decoder struct {
	mode    Mode
	window  *timerange.Window
	loc     *time.Location
	current *time.Time
	line    int
}

// NewDecoder returns a decoder for mode. A nil window accepts every block.
func NewDecoder(mode Mode, window *timerange.Window, loc *time.Location) *Decoder {
	if loc == nil {
		loc = time.Local
	}
	return &Decoder{
		mode:   mode,
		window: window,
		loc:    loc,
	}
}

// Line returns the number of lines decoded so far.
func (d *Decoder) Line() int {
	return d.line
}

// Decode consumes one line. It returns a nil record for lines that carry no
// sample and a *LineError for lines that cannot be decoded.
func (d *Decoder) Decode(line string) (*Record, error) {
	d.line++

	switch record.Classify(line) {
	case record.KindBlank, record.KindHeader, record.KindError:
		return nil, nil

	case record.KindTimestamp:
		d.current = nil
		ts, err := record.ParseTimestamp(line, d.loc)
		if err != nil {
			return nil, d.lineError(line, err)
		}
		if d.window == nil || d.window.Contains(ts) {
			d.current = &ts
		}
		return nil, nil
	}

	if d.current == nil {
		return nil, nil
	}

	switch d.mode {
	case ModeProcess:
		p, err := record.ParseProcess(line)
		if err != nil {
			return nil, d.lineError(line, err)
		}
		return &Record{Time: *d.current, Process: &p}, nil
	case ModeSystem:
		s, err := record.ParseSystem(line)
		if err != nil {
			return nil, d.lineError(line, err)
		}
		return &Record{Time: *d.current, System: &s}, nil
	default:
		return nil, errors.Errorf("unknown mode %q", d.mode)
	}
}

func (d *Decoder) lineError(line string, err error) *LineError {
	return &LineError{
		Line:   d.line,
		Text:   line,
		Reason: err,
	}
}
