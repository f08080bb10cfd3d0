package e2e

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/gomega"

	"github.com/voluzi/memwatch/pkg/sampler"
)

var base = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

// steppingClock returns base, base+1s, base+2s, ... on successive calls.
func steppingClock() func() time.Time {
	n := 0
	return func() time.Time {
		t := base.Add(time.Duration(n) * time.Second)
		n++
		return t
	}
}

// scriptedProcesses returns one process list per call, repeating the last.
func scriptedProcesses(script ...[]sampler.ProcessInfo) sampler.ProcessLister {
	n := 0
	return func(context.Context) ([]sampler.ProcessInfo, error) {
		procs := script[n]
		if n < len(script)-1 {
			n++
		}
		return procs, nil
	}
}

func tickN(s *sampler.Sampler, n int) {
	for i := 0; i < n; i++ {
		Expect(s.Tick(context.Background())).To(Succeed())
	}
}

func readFile(path string) string {
	data, err := os.ReadFile(path)
	Expect(err).NotTo(HaveOccurred())
	return string(data)
}
