package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/voluzi/memwatch/internal/environ"
	"github.com/voluzi/memwatch/pkg/follow"
	"github.com/voluzi/memwatch/pkg/logparser"
	"github.com/voluzi/memwatch/pkg/record"
	"github.com/voluzi/memwatch/pkg/statscollector"
)

var (
	fromStart   bool
	statsWindow time.Duration
	maxSamples  int
)

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Prints samples as they are appended to the log, with rolling average and peak",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := follow.New(logFile, mode, location, fromStart)
		if err != nil {
			return err
		}
		go f.Start()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			if err := f.Stop(); err != nil {
				log.Errorf("failed to stop following %s: %v", logFile, err)
			}
		}()

		stats := newRollingStats(statsWindow, maxSamples)
		for ev := range f.Records {
			if ev.Err != nil {
				log.WithField("log", logFile).Warnf("skipping line: %v", ev.Err)
				continue
			}
			stats.print(cmd.OutOrStdout(), ev.Record)
		}
		return nil
	},
}

// rollingStats keeps one collector per entity; the system uses the empty key.
type rollingStats struct {
	window     time.Duration
	maxSamples int
	entities   map[string]*statscollector.Collector
}

func newRollingStats(window time.Duration, maxSamples int) *rollingStats {
	return &rollingStats{
		window:     window,
		maxSamples: maxSamples,
		entities:   make(map[string]*statscollector.Collector),
	}
}

func (r *rollingStats) add(key string, ts time.Time, value float64) (avg, peak float64) {
	c, ok := r.entities[key]
	if !ok {
		c = statscollector.NewCollector(r.maxSamples)
		r.entities[key] = c
	}
	c.AddSample(ts, value)
	if p, ok := c.Peak(r.window, ts); ok {
		peak = p.Value
	}
	return c.Average(r.window, ts), peak
}

func (r *rollingStats) print(w io.Writer, rec *logparser.Record) {
	stamp := rec.Time.Format(record.TimeLayout)
	switch {
	case rec.System != nil:
		avg, peak := r.add("", rec.Time, rec.System.Percent)
		fmt.Fprintf(w, "%s used=%.2fMB/%.2fMB mem=%.2f%% avg=%.2f%% peak=%.2f%%\n",
			stamp, rec.System.UsedMB, rec.System.TotalMB, rec.System.Percent, avg, peak)
	case rec.Process != nil:
		p := rec.Process
		avg, peak := r.add(p.PID, rec.Time, p.MemPercent)
		fmt.Fprintf(w, "%s pid=%s command=%s cpu=%.2f%% mem=%.2f%% avg=%.2f%% peak=%.2f%%\n",
			stamp, p.PID, p.Command, p.CPUPercent, p.MemPercent, avg, peak)
	}
}

func init() {
	followCmd.Flags().BoolVar(&fromStart, "from-start",
		environ.GetBool("FROM_START", false),
		"Replay the existing log before following new samples",
	)
	followCmd.Flags().DurationVar(&statsWindow, "stats-window",
		environ.GetDuration("STATS_WINDOW", time.Minute),
		"Window of the rolling average and peak",
	)
	followCmd.Flags().IntVar(&maxSamples, "max-samples",
		environ.GetInt("MAX_SAMPLES", 3600),
		"Samples kept per entity for the rolling statistics",
	)

	rootCmd.AddCommand(followCmd)
}
