package sampler

import (
	"io"
	"os"
	"path/filepath"

	"emperror.dev/errors"
)

// Sink receives the text blocks produced by the sampler.
type Sink interface {
	io.Writer
	String() string
}

// ConsoleSink writes to an already open stream, usually stdout.
type ConsoleSink struct {
	w io.Writer
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSink{w: w}
}

func (s *ConsoleSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s *ConsoleSink) String() string {
	return "console"
}

// FileSink appends to a log file. The file is opened and closed on every
// write so readers always see complete blocks and no handle is kept between
// ticks.
type FileSink struct {
	path string
}

func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "creating log directory %s", dir)
		}
	}
	return &FileSink{path: path}, nil
}

func (s *FileSink) Write(p []byte) (int, error) {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return 0, errors.Wrapf(err, "opening %s", s.path)
	}
	n, err := f.Write(p)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

func (s *FileSink) String() string {
	return s.path
}
