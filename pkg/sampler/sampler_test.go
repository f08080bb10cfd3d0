package sampler

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voluzi/memwatch/pkg/logparser"
	"github.com/voluzi/memwatch/pkg/timerange"
)

var fixed = time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)

func clock() time.Time {
	return fixed
}

func staticProcesses(infos ...ProcessInfo) ProcessLister {
	return func(context.Context) ([]ProcessInfo, error) {
		return infos, nil
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type failingSink struct{}

func (failingSink) Write([]byte) (int, error) { return 0, errors.New("disk full") }
func (failingSink) String() string           { return "failing" }

func TestNewValidatesOptions(t *testing.T) {
	sink := NewConsoleSink(&bytes.Buffer{})

	_, err := New(nil)
	assert.Error(t, err)
	_, err = New(sink, WithMode("disk"))
	assert.Error(t, err)
	_, err = New(sink, WithInterval(0))
	assert.Error(t, err)
	_, err = New(sink, WithTopK(0))
	assert.Error(t, err)

	s, err := New(sink)
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, s.cfg.Interval)
	assert.Equal(t, DefaultTopK, s.cfg.TopK)
	assert.Equal(t, logparser.ModeProcess, s.cfg.Mode)
}

func TestTickProcessBlock(t *testing.T) {
	var out bytes.Buffer
	s, err := New(NewConsoleSink(&out),
		WithClock(clock),
		WithTopK(2),
		WithProcessLister(staticProcesses(
			ProcessInfo{PID: 1, User: "root", MemPercent: 0.5, Name: "init", Exe: "/sbin/init", Cmdline: "/sbin/init"},
			ProcessInfo{PID: 100, User: "root", CPUPercent: 3, MemPercent: 5, Name: "postgres", Exe: "/usr/bin/postgres", Cmdline: "postgres -D /data"},
			ProcessInfo{PID: 200, User: "N/A", MemPercent: 9, Name: "Web Content", Exe: "N/A", Cmdline: "N/A"},
		)),
	)
	require.NoError(t, err)
	require.NoError(t, s.Tick(context.Background()))

	expected := "监控时间: 2024-01-01 10:00:00\n" +
		"PID\tUSER\t%CPU\t%MEM\tCOMMAND\tFILE_PATH\tCMDLINE\n" +
		"200\tN/A\t0.00\t9.00\tWeb_Content\tN/A\tN/A\n" +
		"100\troot\t3.00\t5.00\tpostgres\t/usr/bin/postgres\tpostgres -D /data\n" +
		"\n"
	assert.Equal(t, expected, out.String())
}

func TestTickWithoutColumnHeader(t *testing.T) {
	var out bytes.Buffer
	s, err := New(NewConsoleSink(&out),
		WithClock(clock),
		WithColumnHeader(false),
		WithProcessLister(staticProcesses(ProcessInfo{PID: 7, User: "u", MemPercent: 1, Name: "sh"})),
	)
	require.NoError(t, err)
	require.NoError(t, s.Tick(context.Background()))
	assert.NotContains(t, out.String(), "PID\t")
}

func TestTickSystemBlock(t *testing.T) {
	var out bytes.Buffer
	s, err := New(NewConsoleSink(&out),
		WithClock(clock),
		WithMode(logparser.ModeSystem),
		WithMemoryReader(func(context.Context) (SystemMemory, error) {
			return SystemMemory{Total: 16 * datasize.GB, Used: 4 * datasize.GB, UsedPercent: 25}, nil
		}),
	)
	require.NoError(t, err)
	require.NoError(t, s.Tick(context.Background()))

	expected := "监控时间: 2024-01-01 10:00:00\n" +
		"总内存: 16384.00 MB, 已用内存: 4096.00 MB, 使用率: 25.00%\n" +
		"\n"
	assert.Equal(t, expected, out.String())
}

func TestTickUsesLocation(t *testing.T) {
	var out bytes.Buffer
	s, err := New(NewConsoleSink(&out),
		WithClock(func() time.Time { return time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC) }),
		WithLocation(time.FixedZone("UTC+8", 8*60*60)),
		WithMode(logparser.ModeSystem),
		WithMemoryReader(func(context.Context) (SystemMemory, error) {
			return SystemMemory{Total: datasize.GB, Used: datasize.GB / 2, UsedPercent: 50}, nil
		}),
	)
	require.NoError(t, err)
	require.NoError(t, s.Tick(context.Background()))
	assert.True(t, strings.HasPrefix(out.String(), "监控时间: 2024-01-01 18:00:00\n"), out.String())
}

func TestTickCaptureErrorIsLogged(t *testing.T) {
	var out bytes.Buffer
	s, err := New(NewConsoleSink(&out),
		WithClock(clock),
		WithMode(logparser.ModeSystem),
		WithMemoryReader(func(context.Context) (SystemMemory, error) {
			return SystemMemory{}, errors.New("permission denied")
		}),
	)
	require.NoError(t, err)
	require.NoError(t, s.Tick(context.Background()))

	assert.Equal(t, "监控时间: 2024-01-01 10:00:00\n监控错误: reading system memory: permission denied\n\n", out.String())

	result, err := logparser.New().ParseSystemReader(strings.NewReader(out.String()),
		timerange.Window{Start: fixed, End: fixed})
	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.Empty(t, result.Skipped)
}

func TestTickSinkError(t *testing.T) {
	s, err := New(failingSink{},
		WithProcessLister(staticProcesses()),
	)
	require.NoError(t, err)
	assert.Error(t, s.Tick(context.Background()))
}

func TestRunStopsOnCancel(t *testing.T) {
	out := &syncBuffer{}
	s, err := New(NewConsoleSink(out),
		WithInterval(10*time.Millisecond),
		WithMode(logparser.ModeSystem),
		WithMemoryReader(func(context.Context) (SystemMemory, error) {
			return SystemMemory{Total: datasize.GB, Used: datasize.GB / 2, UsedPercent: 50}, nil
		}),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		return strings.Count(out.String(), "监控时间:") >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sampler did not stop after cancel")
	}
}

func TestRunContinuesAfterSinkError(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	s, err := New(failingSink{},
		WithInterval(5*time.Millisecond),
		WithProcessLister(func(context.Context) ([]ProcessInfo, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			return nil, nil
		}),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, calls, 1)
}

func TestTopByMemory(t *testing.T) {
	procs := []ProcessInfo{
		{PID: 1, MemPercent: 1},
		{PID: 2, MemPercent: 3},
		{PID: 3, MemPercent: 3},
		{PID: 4, MemPercent: 2},
		{PID: 5, MemPercent: 3},
	}

	top := TopByMemory(procs, 4)
	pids := make([]int32, len(top))
	for i, p := range top {
		pids[i] = p.PID
	}
	assert.Equal(t, []int32{2, 3, 5, 4}, pids)
	assert.Equal(t, int32(1), procs[0].PID, "input is not reordered")

	assert.Len(t, TopByMemory(procs, 20), 5)
	assert.Empty(t, TopByMemory(nil, 20))
}
