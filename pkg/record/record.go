// Package record defines the line-oriented text format shared by the sampler,
// which writes it, and the log parser, which reads it back.
package record

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
)

const (
	// TimestampPrefix starts the header line of every block.
	TimestampPrefix = "监控时间:"
	// ErrorPrefix starts a line recording a failed capture.
	ErrorPrefix = "监控错误:"
	// HeaderPrefix starts the column header echo of process blocks.
	HeaderPrefix = "PID"

	TimeLayout      = "2006-01-02 15:04:05"
	FileStampLayout = "20060102150405"

	// NotAvailable replaces fields that could not be read.
	NotAvailable = "N/A"

	ColumnHeader = "PID\tUSER\t%CPU\t%MEM\tCOMMAND\tFILE_PATH\tCMDLINE"

	totalKey   = "总内存"
	usedKey    = "已用内存"
	percentKey = "使用率"
)

// SystemPrefix starts the summary line of system blocks.
const SystemPrefix = totalKey + ":"

// ErrMalformed is wrapped by every parse failure of this package.
const ErrMalformed = errors.Sentinel("malformed record")

// Kind classifies a single log line.
type Kind int

const (
	KindBlank Kind = iota
	KindTimestamp
	KindHeader
	KindError
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindTimestamp:
		return "timestamp"
	case KindHeader:
		return "header"
	case KindError:
		return "error"
	default:
		return "data"
	}
}

// Classify returns the kind of line. Lines are matched by prefix, without
// trimming, the same way they are written.
func Classify(line string) Kind {
	switch {
	case strings.TrimSpace(line) == "":
		return KindBlank
	case strings.HasPrefix(line, TimestampPrefix):
		return KindTimestamp
	case strings.HasPrefix(line, HeaderPrefix):
		return KindHeader
	case strings.HasPrefix(line, ErrorPrefix):
		return KindError
	default:
		return KindData
	}
}

// Process is one per-process line of a process block.
type Process struct {
	PID        string
	User       string
	CPUPercent float64
	MemPercent float64
	Command    string
	FilePath   string
	Cmdline    string
}

// System is the summary line of a system block.
type System struct {
	TotalMB float64
	UsedMB  float64
	Percent float64
}

func FormatTimestamp(t time.Time) string {
	return TimestampPrefix + " " + t.Format(TimeLayout)
}

func ParseTimestamp(line string, loc *time.Location) (time.Time, error) {
	if !strings.HasPrefix(line, TimestampPrefix) {
		return time.Time{}, errors.Wrapf(ErrMalformed, "missing %q prefix", TimestampPrefix)
	}
	value := strings.TrimSpace(strings.TrimPrefix(line, TimestampPrefix))
	t, err := time.ParseInLocation(TimeLayout, value, loc)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrMalformed, "timestamp %q", value)
	}
	return t, nil
}

func FormatError(err error) string {
	return ErrorPrefix + " " + singleLine(err.Error())
}

// FormatProcess renders p as a tab separated line. Every field but the
// command line is collapsed to a single whitespace-free token so that the
// line can be split on whitespace again.
func FormatProcess(p Process) string {
	return fmt.Sprintf("%s\t%s\t%.2f\t%.2f\t%s\t%s\t%s",
		Token(p.PID),
		Token(p.User),
		p.CPUPercent,
		p.MemPercent,
		Token(p.Command),
		Token(p.FilePath),
		orNotAvailable(singleLine(p.Cmdline)),
	)
}

// ParseProcess splits a process line on whitespace. At least the PID, user,
// CPU, memory and command fields are required; the executable path defaults
// to N/A and everything after it is the command line.
func ParseProcess(line string) (Process, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Process{}, errors.Wrapf(ErrMalformed, "expected at least 5 fields, got %d", len(fields))
	}

	cpu, err := parseFinite(fields[2])
	if err != nil {
		return Process{}, errors.Wrapf(ErrMalformed, "cpu value %q", fields[2])
	}
	mem, err := parseFinite(fields[3])
	if err != nil {
		return Process{}, errors.Wrapf(ErrMalformed, "memory value %q", fields[3])
	}

	p := Process{
		PID:        fields[0],
		User:       fields[1],
		CPUPercent: cpu,
		MemPercent: mem,
		Command:    fields[4],
		FilePath:   NotAvailable,
		Cmdline:    NotAvailable,
	}
	if len(fields) > 5 {
		p.FilePath = fields[5]
	}
	if len(fields) > 6 {
		p.Cmdline = strings.Join(fields[6:], " ")
	}
	return p, nil
}

func FormatSystem(s System) string {
	return fmt.Sprintf("%s: %.2f MB, %s: %.2f MB, %s: %.2f%%",
		totalKey, s.TotalMB,
		usedKey, s.UsedMB,
		percentKey, s.Percent,
	)
}

// ParseSystem reads the three "key: value" segments of a system line.
func ParseSystem(line string) (System, error) {
	segments := strings.Split(strings.TrimSpace(line), ",")
	if len(segments) != 3 {
		return System{}, errors.Wrapf(ErrMalformed, "expected 3 segments, got %d", len(segments))
	}

	keys := []string{totalKey, usedKey, percentKey}
	suffixes := []string{"MB", "MB", "%"}
	values := make([]float64, 3)
	for i, segment := range segments {
		key, value, ok := strings.Cut(segment, ":")
		if !ok {
			return System{}, errors.Wrapf(ErrMalformed, "segment %q has no value", segment)
		}
		if strings.TrimSpace(key) != keys[i] {
			return System{}, errors.Wrapf(ErrMalformed, "unexpected key %q", strings.TrimSpace(key))
		}
		value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), suffixes[i]))
		v, err := parseFinite(value)
		if err != nil {
			return System{}, errors.Wrapf(ErrMalformed, "%s value %q", keys[i], value)
		}
		values[i] = v
	}

	return System{
		TotalMB: values[0],
		UsedMB:  values[1],
		Percent: values[2],
	}, nil
}

// Token collapses whitespace inside s to underscores and maps the empty
// string to N/A.
func Token(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return NotAvailable
	}
	return strings.Join(fields, "_")
}

// parseFinite parses a sampled number. NaN and infinities, including
// overflowing literals such as 1e400, are rejected.
func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Errorf("value %q is not finite", s)
	}
	return v, nil
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func orNotAvailable(s string) string {
	if s == "" {
		return NotAvailable
	}
	return s
}
