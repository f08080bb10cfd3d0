// Package timerange resolves the inclusive time windows used to select log
// records for charting.
package timerange

import (
	"fmt"
	"strings"
	"time"

	"emperror.dev/errors"
)

const (
	ErrInvalidOption = errors.Sentinel("invalid option")
	ErrInvalidRange  = errors.Sentinel("invalid time range")
)

// CustomLayout is the layout of each half of a custom range.
const CustomLayout = "20060102150405"

// CustomOption selects a user supplied range instead of a preset.
const CustomOption = "10"

// Window is an inclusive [Start, End] range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Last returns the window of length d ending at now.
func Last(d time.Duration, now time.Time) Window {
	return Window{Start: now.Add(-d), End: now}
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func (w Window) String() string {
	return fmt.Sprintf("%s - %s", w.Start.Format(time.DateTime), w.End.Format(time.DateTime))
}

type Preset struct {
	Option   string
	Label    string
	Duration time.Duration
}

var Presets = []Preset{
	{Option: "1", Label: "last 30 seconds", Duration: 30 * time.Second},
	{Option: "2", Label: "last 1 minute", Duration: time.Minute},
	{Option: "3", Label: "last 5 minutes", Duration: 5 * time.Minute},
	{Option: "4", Label: "last 30 minutes", Duration: 30 * time.Minute},
	{Option: "5", Label: "last 1 hour", Duration: time.Hour},
	{Option: "6", Label: "last 3 hours", Duration: 3 * time.Hour},
	{Option: "7", Label: "last 6 hours", Duration: 6 * time.Hour},
	{Option: "8", Label: "last 12 hours", Duration: 12 * time.Hour},
	{Option: "9", Label: "last 24 hours", Duration: 24 * time.Hour},
}

// Menu returns the numbered option list shown to the operator.
func Menu() string {
	var b strings.Builder
	b.WriteString("Select the time range for the charts:\n")
	for _, p := range Presets {
		fmt.Fprintf(&b, "%s: %s\n", p.Option, p.Label)
	}
	fmt.Fprintf(&b, "%s: custom range (%s-%s)\n", CustomOption, "YYYYMMDDHHMMSS", "YYYYMMDDHHMMSS")
	return b.String()
}

// FromOption resolves a menu option. The custom option calls promptCustom to
// obtain the range text.
func FromOption(option string, now time.Time, loc *time.Location, promptCustom func() (string, error)) (Window, error) {
	option = strings.TrimSpace(option)
	for _, p := range Presets {
		if p.Option == option {
			return Last(p.Duration, now), nil
		}
	}

	if option != CustomOption {
		return Window{}, errors.WithDetails(errors.Wrapf(ErrInvalidOption, "%q", option), "option", option)
	}
	if promptCustom == nil {
		return Window{}, errors.Wrap(ErrInvalidRange, "no custom range provided")
	}
	text, err := promptCustom()
	if err != nil {
		return Window{}, errors.Wrap(err, "reading custom range")
	}
	return ParseCustom(text, loc)
}

// ParseCustom parses "YYYYMMDDHHMMSS-YYYYMMDDHHMMSS" in loc.
func ParseCustom(text string, loc *time.Location) (Window, error) {
	text = strings.TrimSpace(text)
	parts := strings.Split(text, "-")
	if len(parts) != 2 {
		return Window{}, errors.Wrapf(ErrInvalidRange, "expected %s-%s, got %q", "YYYYMMDDHHMMSS", "YYYYMMDDHHMMSS", text)
	}

	start, err := time.ParseInLocation(CustomLayout, strings.TrimSpace(parts[0]), loc)
	if err != nil {
		return Window{}, errors.Wrapf(ErrInvalidRange, "start %q", parts[0])
	}
	end, err := time.ParseInLocation(CustomLayout, strings.TrimSpace(parts[1]), loc)
	if err != nil {
		return Window{}, errors.Wrapf(ErrInvalidRange, "end %q", parts[1])
	}
	if start.After(end) {
		return Window{}, errors.Wrapf(ErrInvalidRange, "start %s is after end %s", start.Format(time.DateTime), end.Format(time.DateTime))
	}
	return Window{Start: start, End: end}, nil
}
