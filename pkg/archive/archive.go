// Package archive compresses memory logs so they can be rotated without
// losing history. The log parser reads the resulting .gz files directly.
package archive

import (
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"
)

// Result describes a finished archive.
type Result struct {
	Source         string            `json:"source"`
	Destination    string            `json:"destination"`
	Size           datasize.ByteSize `json:"size"`
	CompressedSize datasize.ByteSize `json:"compressed_size"`
	Truncated      bool              `json:"truncated"`
}

// DefaultDestination returns the archive name used when none is given:
// the source path with the time of archiving and a .gz suffix appended.
func DefaultDestination(src string, now time.Time) string {
	return src + "." + now.Format("20060102150405") + ".gz"
}

// Compress writes a gzip copy of src to dst. The partially written archive
// is removed on failure.
func Compress(src, dst string, opts ...Option) (*Result, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if dst == "" {
		dst = DefaultDestination(src, time.Now())
	}
	if filepath.Clean(src) == filepath.Clean(dst) {
		return nil, errors.New("archive destination must differ from the source")
	}

	in, err := os.Open(src)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", src)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", src)
	}
	totalSize := datasize.ByteSize(info.Size())

	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "creating %s", dir)
		}
	}
	out, err := os.Create(dst)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", dst)
	}

	log.WithFields(map[string]interface{}{
		"source":      src,
		"destination": dst,
		"size":        totalSize.HumanReadable(),
	}).Info("compressing log")

	var bytesRead atomic.Int64
	stop := make(chan struct{})
	go reportProgress(options.ReportPeriod, &bytesRead, totalSize, stop)

	err = compress(newReaderWithBytesCounter(in, &bytesRead), out, options)
	close(stop)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return nil, errors.WrapWithDetails(err, "compressing log", "source", src)
	}

	archived, err := os.Stat(dst)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Source:         src,
		Destination:    dst,
		Size:           datasize.ByteSize(bytesRead.Load()),
		CompressedSize: datasize.ByteSize(archived.Size()),
	}

	if options.Truncate {
		if err := os.Truncate(src, 0); err != nil {
			return result, errors.Wrapf(err, "truncating %s", src)
		}
		result.Truncated = true
	}

	log.WithFields(map[string]interface{}{
		"destination": dst,
		"size":        result.Size.HumanReadable(),
		"compressed":  result.CompressedSize.HumanReadable(),
		"truncated":   result.Truncated,
	}).Info("log archived")
	return result, nil
}

func compress(r io.Reader, w io.Writer, opts *Options) error {
	gz, err := pgzip.NewWriterLevel(w, opts.Level)
	if err != nil {
		return errors.Wrap(err, "pgzip writer failed")
	}
	if err := gz.SetConcurrency(int(opts.BlockSize.Bytes()), opts.Blocks); err != nil {
		return errors.Wrap(err, "configuring pgzip")
	}
	if _, err := io.Copy(gz, r); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

func reportProgress(period time.Duration, read *atomic.Int64, total datasize.ByteSize, stop <-chan struct{}) {
	if period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			log.WithFields(map[string]interface{}{
				"compressed": datasize.ByteSize(read.Load()).HumanReadable(),
				"total":      total.HumanReadable(),
			}).Info("compression progress")
		}
	}
}
