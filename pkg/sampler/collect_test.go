package sampler

import (
	"context"
	"os"
	"testing"

	"github.com/shirou/gopsutil/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleCacheRefresh(t *testing.T) {
	cache := newHandleCache()

	first := []*process.Process{{Pid: 1}, nil, {Pid: 2}}
	got := cache.refresh(first)
	require.Len(t, got, 2)
	assert.Same(t, first[0], got[0])
	assert.Same(t, first[2], got[1])

	second := []*process.Process{{Pid: 2}, {Pid: 3}}
	got = cache.refresh(second)
	require.Len(t, got, 2)
	assert.Same(t, first[2], got[0], "known PID keeps its handle")
	assert.Same(t, second[1], got[1])
	assert.NotContains(t, cache.handles, int32(1))

	third := []*process.Process{{Pid: 1}}
	got = cache.refresh(third)
	assert.Same(t, third[0], got[0], "forgotten PID starts over")
}

func TestHostProcessesMeasuresBetweenCalls(t *testing.T) {
	list := HostProcesses()
	ctx := context.Background()
	self := int32(os.Getpid())

	find := func(infos []ProcessInfo) *ProcessInfo {
		for i := range infos {
			if infos[i].PID == self {
				return &infos[i]
			}
		}
		return nil
	}

	infos, err := list(ctx)
	require.NoError(t, err)
	first := find(infos)
	if first == nil {
		t.Skip("own process is not visible")
	}
	assert.Zero(t, first.CPUPercent)

	// Burn some CPU so the second sample has something to measure.
	x := 0
	for i := 0; i < 50_000_000; i++ {
		x += i
	}
	_ = x

	infos, err = list(ctx)
	require.NoError(t, err)
	second := find(infos)
	require.NotNil(t, second)
	assert.GreaterOrEqual(t, second.CPUPercent, 0.0)
	assert.Positive(t, second.MemPercent)
}
