// Package report runs the parse, resample and render pipeline for one log
// and window.
package report

import (
	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"

	"github.com/voluzi/memwatch/pkg/logparser"
	"github.com/voluzi/memwatch/pkg/resample"
	"github.com/voluzi/memwatch/pkg/timerange"
)

// Renderer draws resampled series. *chart.Renderer implements it.
type Renderer interface {
	RenderProcess(ps *logparser.ProcessSeries, series logparser.Series, window timerange.Window) (string, error)
	RenderSystem(series logparser.Series, window timerange.Window) (string, error)
}

type Generator struct {
	Parser    *logparser.Parser
	Renderer  Renderer
	MaxPoints int
}

// Entity is one resampled series ready for export.
type Entity struct {
	PID      string           `json:"pid,omitempty"`
	User     string           `json:"user,omitempty"`
	Command  string           `json:"command,omitempty"`
	FilePath string           `json:"file_path,omitempty"`
	Samples  int              `json:"samples"`
	Peak     *logparser.Point `json:"peak,omitempty"`
	Series   logparser.Series `json:"series"`
}

// Report is the result of collecting every entity of a log for a window.
type Report struct {
	Mode     logparser.Mode   `json:"mode"`
	Window   timerange.Window `json:"window"`
	Entities []*Entity        `json:"entities"`
	Skipped  int              `json:"skipped_lines"`
}

// Collect parses the log at path and resamples every entity seen in window.
// Process entities are ordered by numeric PID.
func (g *Generator) Collect(mode logparser.Mode, path string, window timerange.Window) (*Report, error) {
	parser := g.Parser
	if parser == nil {
		parser = logparser.New()
	}

	rep := &Report{Mode: mode, Window: window}
	switch mode {
	case logparser.ModeProcess:
		result, err := parser.ParseProcesses(path, window)
		if err != nil {
			return nil, err
		}
		rep.Skipped = len(result.Skipped)
		for _, pid := range result.PIDs() {
			ps := result.Processes[pid]
			rep.Entities = append(rep.Entities, g.entity(ps.Memory, &Entity{
				PID:      ps.PID,
				User:     ps.User,
				Command:  ps.Command,
				FilePath: ps.FilePath,
			}))
		}

	case logparser.ModeSystem:
		result, err := parser.ParseSystem(path, window)
		if err != nil {
			return nil, err
		}
		rep.Skipped = len(result.Skipped)
		if !result.Empty() {
			rep.Entities = append(rep.Entities, g.entity(result.Memory, &Entity{}))
		}

	default:
		return nil, errors.Errorf("unknown mode %q", mode)
	}
	return rep, nil
}

// Generate renders one chart per entity and returns the written paths.
func (g *Generator) Generate(mode logparser.Mode, path string, window timerange.Window) ([]string, error) {
	if g.Renderer == nil {
		return nil, errors.New("no renderer configured")
	}

	rep, err := g.Collect(mode, path, window)
	if err != nil {
		return nil, err
	}
	if len(rep.Entities) == 0 {
		log.WithFields(map[string]interface{}{
			"log":    path,
			"window": window.String(),
		}).Warn("no samples in the selected window")
		return nil, nil
	}

	paths := make([]string, 0, len(rep.Entities))
	for _, e := range rep.Entities {
		var (
			out string
			err error
		)
		if mode == logparser.ModeSystem {
			out, err = g.Renderer.RenderSystem(e.Series, window)
		} else {
			out, err = g.Renderer.RenderProcess(&logparser.ProcessSeries{
				PID:      e.PID,
				User:     e.User,
				Command:  e.Command,
				FilePath: e.FilePath,
			}, e.Series, window)
		}
		if err != nil {
			return paths, errors.WrapIfWithDetails(err, "rendering chart", "pid", e.PID)
		}
		paths = append(paths, out)
	}
	return paths, nil
}

func (g *Generator) entity(raw logparser.Series, e *Entity) *Entity {
	e.Samples = len(raw)
	e.Series = resample.Resample(raw, g.MaxPoints)
	if peak, ok := resample.Peak(e.Series); ok {
		e.Peak = &peak
	}
	return e
}
