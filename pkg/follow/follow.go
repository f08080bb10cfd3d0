// Package follow tails a memory log as the sampler appends to it and emits
// the decoded records.
package follow

import (
	"io"
	"sync"
	"time"

	"github.com/nxadm/tail"

	"github.com/voluzi/memwatch/pkg/logparser"
)

type Follower struct {
	tail    *tail.Tail
	decoder *logparser.Decoder
	stop    chan struct{}
	once    sync.Once
	Records chan *Event
}

// Event carries either a decoded record or the error hit while reading or
// decoding a line.
type Event struct {
	Record *logparser.Record
	Err    error
}

// New starts tailing path. Unless fromStart is set only lines appended after
// the call are reported. The file is reopened if it is rotated or recreated.
func New(path string, mode logparser.Mode, loc *time.Location, fromStart bool) (*Follower, error) {
	cfg := tail.Config{
		ReOpen:    true,
		Follow:    true,
		MustExist: false,
		Logger:    tail.DiscardingLogger,
	}
	if !fromStart {
		cfg.Location = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}

	t, err := tail.TailFile(path, cfg)
	if err != nil {
		return nil, err
	}

	return &Follower{
		tail:    t,
		decoder: logparser.NewDecoder(mode, nil, loc),
		stop:    make(chan struct{}),
		Records: make(chan *Event),
	}, nil
}

func (f *Follower) Stop() error {
	f.once.Do(func() {
		close(f.stop)
	})
	return f.tail.Stop()
}

// Start forwards records until the tail is stopped, then closes Records.
func (f *Follower) Start() {
	defer close(f.Records)

	for line := range f.tail.Lines {
		var ev *Event
		if line.Err != nil {
			ev = &Event{Err: line.Err}
		} else {
			rec, err := f.decoder.Decode(line.Text)
			switch {
			case err != nil:
				ev = &Event{Err: err}
			case rec != nil:
				ev = &Event{Record: rec}
			default:
				continue
			}
		}

		select {
		case f.Records <- ev:
		case <-f.stop:
			return
		}
	}
}
