package cmd

import (
	"io"
	"os"
	"time"

	"emperror.dev/errors"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/voluzi/memwatch/internal/environ"
	"github.com/voluzi/memwatch/pkg/report"
	"github.com/voluzi/memwatch/pkg/resample"
)

var (
	exportWindow    windowFlags
	exportOutput    string
	exportMaxPoints int
	exportPretty    bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Writes the resampled series of the selected window as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		window, _, err := exportWindow.resolve(cmd.InOrStdin(), cmd.ErrOrStderr(), time.Now(), location)
		if err != nil {
			return err
		}

		gen := &report.Generator{Parser: newParser(), MaxPoints: exportMaxPoints}
		rep, err := gen.Collect(mode, logFile, window)
		if err != nil {
			return err
		}

		var data []byte
		if exportPretty {
			data, err = json.MarshalIndent(rep, "", "  ")
		} else {
			data, err = json.Marshal(rep)
		}
		if err != nil {
			return err
		}
		data = append(data, '\n')

		return writeExport(exportOutput, data, cmd.OutOrStdout())
	},
}

// writeExport writes data to path, or to stdout when path is empty or "-".
// A failed close is returned like a failed write.
func writeExport(path string, data []byte, stdout io.Writer) (err error) {
	if path == "" || path == "-" {
		_, err = stdout.Write(data)
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating export file")
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = errors.Wrapf(closeErr, "closing export file %s", path)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return errors.Wrapf(err, "writing export file %s", path)
	}
	return nil
}

func init() {
	exportWindow.register(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o",
		environ.GetString("EXPORT_OUTPUT", "-"),
		"File to write, - for stdout",
	)
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points",
		environ.GetInt("MAX_POINTS", resample.DefaultMaxPoints),
		"Maximum number of points per series",
	)
	exportCmd.Flags().BoolVar(&exportPretty, "pretty",
		environ.GetBool("EXPORT_PRETTY", false),
		"Indent the JSON output",
	)
	exportCmd.Flags().BoolVar(&strict, "strict",
		environ.GetBool("STRICT", false),
		"Fail on the first malformed log line instead of skipping it",
	)

	rootCmd.AddCommand(exportCmd)
}
