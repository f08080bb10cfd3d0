package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voluzi/memwatch/internal/environ"
	"github.com/voluzi/memwatch/pkg/sampler"
)

var (
	toStdout     bool
	interval     time.Duration
	topK         int
	columnHeader bool
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Samples memory usage into the log until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var sink sampler.Sink
		if toStdout {
			sink = sampler.NewConsoleSink(cmd.OutOrStdout())
		} else {
			fileSink, err := sampler.NewFileSink(logFile)
			if err != nil {
				return err
			}
			sink = fileSink
		}

		s, err := sampler.New(sink,
			sampler.WithMode(mode),
			sampler.WithInterval(interval),
			sampler.WithTopK(topK),
			sampler.WithColumnHeader(columnHeader),
			sampler.WithLocation(location),
		)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return s.Run(ctx)
	},
}

func init() {
	sampleCmd.Flags().BoolVar(&toStdout, "stdout",
		environ.GetBool("STDOUT", false),
		"Write samples to stdout instead of the log file",
	)
	sampleCmd.Flags().DurationVar(&interval, "interval",
		environ.GetDuration("INTERVAL", sampler.DefaultInterval),
		"Time between samples",
	)
	sampleCmd.Flags().IntVar(&topK, "top",
		environ.GetInt("TOP", sampler.DefaultTopK),
		"Number of processes recorded per sample, highest memory first",
	)
	sampleCmd.Flags().BoolVar(&columnHeader, "column-header",
		environ.GetBool("COLUMN_HEADER", true),
		"Repeat the column header after each timestamp in process mode",
	)

	rootCmd.AddCommand(sampleCmd)
}
