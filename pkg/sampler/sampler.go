// Package sampler periodically captures process or system memory usage and
// writes it as text blocks to a sink.
package sampler

import (
	"context"
	"sort"
	"strings"
	"time"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"

	"github.com/voluzi/memwatch/pkg/logparser"
	"github.com/voluzi/memwatch/pkg/record"
)

type Sampler struct {
	sink Sink
	cfg  *Options
}

func New(sink Sink, opts ...Option) (*Sampler, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	if sink == nil {
		return nil, errors.New("sink is required")
	}
	if !options.Mode.Valid() {
		return nil, errors.Errorf("unknown sampling mode %q", options.Mode)
	}
	if options.Interval <= 0 {
		return nil, errors.Errorf("interval must be positive, got %s", options.Interval)
	}
	if options.TopK <= 0 {
		return nil, errors.Errorf("top-k must be positive, got %d", options.TopK)
	}
	if options.Location == nil {
		options.Location = time.Local
	}
	if options.Processes == nil {
		options.Processes = HostProcesses()
	}
	if options.Memory == nil {
		options.Memory = HostMemory
	}

	return &Sampler{sink: sink, cfg: options}, nil
}

// Run samples once immediately and then on every interval until ctx is
// cancelled. Failures never stop the loop.
func (s *Sampler) Run(ctx context.Context) error {
	log.WithFields(map[string]interface{}{
		"mode":     s.cfg.Mode,
		"interval": s.cfg.Interval,
		"sink":     s.sink.String(),
	}).Info("sampler started")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx); err != nil {
			log.Errorf("error writing sample to %s: %v", s.sink, err)
		}

		select {
		case <-ctx.Done():
			log.Info("sampler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick captures and writes one block. A capture failure is written to the
// sink as an error line; only a failing sink is returned.
func (s *Sampler) Tick(ctx context.Context) error {
	now := s.cfg.Clock().In(s.cfg.Location)

	block, err := s.capture(ctx, now)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		log.WithField("mode", s.cfg.Mode).Warnf("capture failed: %v", err)
		block = record.FormatTimestamp(now) + "\n" + record.FormatError(err) + "\n\n"
	}

	if _, err := s.sink.Write([]byte(block)); err != nil {
		return err
	}
	return nil
}

func (s *Sampler) capture(ctx context.Context, now time.Time) (string, error) {
	var b strings.Builder
	b.WriteString(record.FormatTimestamp(now))
	b.WriteByte('\n')

	switch s.cfg.Mode {
	case logparser.ModeSystem:
		m, err := s.cfg.Memory(ctx)
		if err != nil {
			return "", errors.Wrap(err, "reading system memory")
		}
		b.WriteString(record.FormatSystem(m.record()))
		b.WriteByte('\n')

	default:
		procs, err := s.cfg.Processes(ctx)
		if err != nil {
			return "", errors.Wrap(err, "listing processes")
		}
		if s.cfg.ColumnHeader {
			b.WriteString(record.ColumnHeader)
			b.WriteByte('\n')
		}
		for _, p := range TopByMemory(procs, s.cfg.TopK) {
			b.WriteString(record.FormatProcess(p.record()))
			b.WriteByte('\n')
		}
	}

	b.WriteByte('\n')
	return b.String(), nil
}

// TopByMemory returns the k processes using the most memory. Equal values
// keep the order they were listed in.
func TopByMemory(procs []ProcessInfo, k int) []ProcessInfo {
	sorted := make([]ProcessInfo, len(procs))
	copy(sorted, procs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MemPercent > sorted[j].MemPercent
	})
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}
