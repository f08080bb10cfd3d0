package sampler

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/jellydator/ttlcache/v3"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"

	"github.com/voluzi/memwatch/pkg/record"
)

const usernameTTL = time.Minute

// ProcessInfo is what the sampler needs to know about one process.
type ProcessInfo struct {
	PID        int32
	User       string
	CPUPercent float64
	MemPercent float64
	Name       string
	Exe        string
	Cmdline    string
}

func (p ProcessInfo) record() record.Process {
	return record.Process{
		PID:        strconv.Itoa(int(p.PID)),
		User:       p.User,
		CPUPercent: p.CPUPercent,
		MemPercent: p.MemPercent,
		Command:    p.Name,
		FilePath:   p.Exe,
		Cmdline:    p.Cmdline,
	}
}

// SystemMemory is a whole-host memory snapshot.
type SystemMemory struct {
	Total       datasize.ByteSize
	Used        datasize.ByteSize
	UsedPercent float64
}

func (m SystemMemory) record() record.System {
	return record.System{
		TotalMB: m.Total.MBytes(),
		UsedMB:  m.Used.MBytes(),
		Percent: m.UsedPercent,
	}
}

// ProcessLister enumerates the visible processes. Processes that cannot be
// read are left out rather than reported as errors.
type ProcessLister func(ctx context.Context) ([]ProcessInfo, error)

type MemoryReader func(ctx context.Context) (SystemMemory, error)

// HostProcesses returns a ProcessLister backed by gopsutil. Usernames are
// cached per PID since resolving them is the most expensive lookup.
//
// CPU usage is measured between consecutive calls: process handles are kept
// across calls so gopsutil can diff their CPU times. A process reports 0 the
// first time it is seen.
func HostProcesses() ProcessLister {
	users := ttlcache.New[int32, string](
		ttlcache.WithTTL[int32, string](usernameTTL),
	)
	handles := newHandleCache()

	return func(ctx context.Context) ([]ProcessInfo, error) {
		users.DeleteExpired()

		processes, err := process.ProcessesWithContext(ctx)
		if err != nil {
			return nil, err
		}
		processes = handles.refresh(processes)

		infos := make([]ProcessInfo, 0, len(processes))
		for _, proc := range processes {
			// A process that exited or denies access to its memory or name
			// is dropped for this tick.
			memPercent, err := proc.MemoryPercentWithContext(ctx)
			if err != nil {
				continue
			}
			name, err := proc.NameWithContext(ctx)
			if err != nil {
				continue
			}

			// A reused PID inherits the previous owner's CPU times for one
			// tick, which can yield a negative delta.
			cpu, err := proc.PercentWithContext(ctx, 0)
			if err != nil || cpu < 0 {
				cpu = 0
			}

			infos = append(infos, ProcessInfo{
				PID:        proc.Pid,
				User:       username(ctx, users, proc),
				CPUPercent: cpu,
				MemPercent: float64(memPercent),
				Name:       name,
				Exe:        optional(proc.ExeWithContext(ctx)),
				Cmdline:    cmdline(ctx, proc),
			})
		}
		return infos, nil
	}
}

// handleCache keeps one gopsutil handle per live PID.
type handleCache struct {
	mu      sync.Mutex
	handles map[int32]*process.Process
}

func newHandleCache() *handleCache {
	return &handleCache{handles: make(map[int32]*process.Process)}
}

// refresh swaps listed processes for their cached handles, caches new ones
// and forgets PIDs that are no longer listed.
func (c *handleCache) refresh(listed []*process.Process) []*process.Process {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := make(map[int32]*process.Process, len(listed))
	result := make([]*process.Process, 0, len(listed))
	for _, proc := range listed {
		if proc == nil {
			continue
		}
		if cached, ok := c.handles[proc.Pid]; ok {
			proc = cached
		}
		current[proc.Pid] = proc
		result = append(result, proc)
	}
	c.handles = current
	return result
}

// HostMemory reads the host's virtual memory statistics with gopsutil.
func HostMemory(ctx context.Context) (SystemMemory, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return SystemMemory{}, err
	}
	return SystemMemory{
		Total:       datasize.ByteSize(v.Total),
		Used:        datasize.ByteSize(v.Used),
		UsedPercent: v.UsedPercent,
	}, nil
}

func username(ctx context.Context, cache *ttlcache.Cache[int32, string], proc *process.Process) string {
	if item := cache.Get(proc.Pid); item != nil {
		return item.Value()
	}
	user := optional(proc.UsernameWithContext(ctx))
	cache.Set(proc.Pid, user, ttlcache.DefaultTTL)
	return user
}

func cmdline(ctx context.Context, proc *process.Process) string {
	args, err := proc.CmdlineSliceWithContext(ctx)
	if err != nil || len(args) == 0 {
		return record.NotAvailable
	}
	return strings.Join(args, " ")
}

func optional(value string, err error) string {
	if err != nil || value == "" {
		return record.NotAvailable
	}
	return value
}
