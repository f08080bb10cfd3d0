package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/voluzi/memwatch/internal/environ"
	"github.com/voluzi/memwatch/pkg/chart"
	"github.com/voluzi/memwatch/pkg/logparser"
	"github.com/voluzi/memwatch/pkg/report"
	"github.com/voluzi/memwatch/pkg/resample"
	"github.com/voluzi/memwatch/pkg/timerange"
	"github.com/voluzi/memwatch/pkg/utils"
	"github.com/voluzi/memwatch/pkg/watch"
)

var (
	plotWindow windowFlags
	imageDir   string
	fontPath   string
	maxPoints  int
	strict     bool
	watchLog   bool
	debounce   time.Duration
)

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Renders one chart per process, or one for the system, from the log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		window, rolling, err := plotWindow.resolve(cmd.InOrStdin(), cmd.OutOrStdout(), time.Now(), location)
		if err != nil {
			return err
		}

		renderer, err := chart.NewRenderer(
			chart.WithOutputDir(imageDir),
			chart.WithFontPath(fontPath),
			chart.WithLocation(location),
			chart.WithSkipUnchanged(watchLog),
		)
		if err != nil {
			return err
		}
		gen := &report.Generator{
			Parser:    newParser(),
			Renderer:  renderer,
			MaxPoints: maxPoints,
		}

		render := func(w timerange.Window) error {
			paths, err := gen.Generate(mode, logFile, w)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no samples between %s\n", w)
				return nil
			}
			printSaved(cmd.OutOrStdout(), paths, renderer.OutputDir())
			return nil
		}

		if !watchLog {
			return render(window)
		}

		span := window.Duration()
		watcher, err := watch.New(logFile, func(context.Context) error {
			if rolling {
				window = timerange.Last(span, time.Now().In(location))
			}
			return render(window)
		}, watch.WithDebounce(debounce), watch.WithRunOnStart(true))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return watcher.Run(ctx)
	},
}

// printSaved lists the written charts followed by the total size of the
// image directory.
func printSaved(w io.Writer, paths []string, dir string) {
	for _, p := range paths {
		fmt.Fprintf(w, "saved chart: %s\n", p)
	}
	size, err := utils.DirSize(dir)
	if err != nil {
		log.WithError(err).WithField("dir", dir).Warn("could not measure image directory")
		return
	}
	fmt.Fprintf(w, "image directory: %s (%s)\n", dir, size.HumanReadable())
}

func newParser() *logparser.Parser {
	return logparser.New(
		logparser.WithLocation(location),
		logparser.WithStrict(strict),
	)
}

func init() {
	plotWindow.register(plotCmd)
	plotCmd.Flags().StringVar(&imageDir, "image-dir",
		environ.GetString("IMAGE_DIR", chart.DefaultOutputDir),
		"Directory the charts are written to",
	)
	plotCmd.Flags().StringVar(&fontPath, "font",
		environ.GetString("FONT", ""),
		"TrueType font used for chart text, needed for CJK command names",
	)
	plotCmd.Flags().IntVar(&maxPoints, "max-points",
		environ.GetInt("MAX_POINTS", resample.DefaultMaxPoints),
		"Maximum number of points drawn per chart",
	)
	plotCmd.Flags().BoolVar(&strict, "strict",
		environ.GetBool("STRICT", false),
		"Fail on the first malformed log line instead of skipping it",
	)
	plotCmd.Flags().BoolVar(&watchLog, "watch",
		environ.GetBool("WATCH", false),
		"Keep running and redraw the charts whenever the log changes",
	)
	plotCmd.Flags().DurationVar(&debounce, "debounce",
		environ.GetDuration("DEBOUNCE", watch.DefaultDebounce),
		"Quiet period after the last log write before charts are redrawn",
	)

	rootCmd.AddCommand(plotCmd)
}
