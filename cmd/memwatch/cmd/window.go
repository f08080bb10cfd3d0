package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/voluzi/memwatch/internal/environ"
	"github.com/voluzi/memwatch/pkg/timerange"
)

// windowFlags select the charted time range. With none of them set the
// operator is asked through the interactive menu.
type windowFlags struct {
	option string
	custom string
	last   time.Duration
}

func (wf *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&wf.option, "option",
		environ.GetString("OPTION", ""),
		"Menu option (1-9 presets, 10 custom) instead of the interactive menu",
	)
	cmd.Flags().StringVar(&wf.custom, "range",
		environ.GetString("RANGE", ""),
		"Custom range YYYYMMDDHHMMSS-YYYYMMDDHHMMSS",
	)
	cmd.Flags().DurationVar(&wf.last, "last",
		environ.GetDuration("LAST", 0),
		"Chart the given duration ending now, e.g. 45m",
	)
	cmd.MarkFlagsMutuallyExclusive("option", "range", "last")
}

// resolve returns the selected window and whether it is anchored to the
// current time, in which case it can be recomputed later.
func (wf *windowFlags) resolve(in io.Reader, out io.Writer, now time.Time, loc *time.Location) (timerange.Window, bool, error) {
	now = now.In(loc)

	switch {
	case wf.custom != "":
		w, err := timerange.ParseCustom(wf.custom, loc)
		return w, false, err
	case wf.last > 0:
		return timerange.Last(wf.last, now), true, nil
	case wf.last < 0:
		return timerange.Window{}, false, fmt.Errorf("--last must be positive, got %s", wf.last)
	}

	reader := bufio.NewReader(in)
	option := wf.option
	if option == "" {
		fmt.Fprint(out, timerange.Menu())
		fmt.Fprint(out, "Option: ")
		line, err := readLine(reader)
		if err != nil {
			return timerange.Window{}, false, err
		}
		option = line
	}

	prompt := func() (string, error) {
		fmt.Fprint(out, "Custom range (YYYYMMDDHHMMSS-YYYYMMDDHHMMSS): ")
		return readLine(reader)
	}
	w, err := timerange.FromOption(option, now, loc, prompt)
	if err != nil {
		return timerange.Window{}, false, err
	}
	return w, strings.TrimSpace(option) != timerange.CustomOption, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
