package utils

import (
	"io/fs"
	"os"
	"path/filepath"

	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
)

// DirSize sums the sizes of the regular files below path. Files removed
// while walking are ignored.
func DirSize(path string) (datasize.ByteSize, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		size += info.Size()
		return nil
	})
	return datasize.ByteSize(size), err
}
