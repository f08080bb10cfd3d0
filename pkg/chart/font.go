package chart

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"emperror.dev/errors"
	"golang.org/x/image/font/opentype"
	"gonum.org/v1/plot/font"
)

var registerMu sync.Mutex

// loadFont parses the font file at path and registers it with the plot font
// cache under a typeface named after the file.
func loadFont(path string) (font.Font, error) {
	typeface := font.Typeface(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	fnt := font.Font{Typeface: typeface}

	registerMu.Lock()
	defer registerMu.Unlock()

	if font.DefaultCache.Has(fnt) {
		return fnt, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return font.Font{}, errors.Wrapf(err, "reading font %s", path)
	}
	face, err := opentype.Parse(data)
	if err != nil {
		return font.Font{}, errors.Wrapf(err, "parsing font %s", path)
	}

	font.DefaultCache.Add(font.Collection{{Font: fnt, Face: face}})
	return fnt, nil
}
