package e2e

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/voluzi/memwatch/pkg/archive"
	"github.com/voluzi/memwatch/pkg/chart"
	"github.com/voluzi/memwatch/pkg/logparser"
	"github.com/voluzi/memwatch/pkg/report"
	"github.com/voluzi/memwatch/pkg/sampler"
	"github.com/voluzi/memwatch/pkg/timerange"
)

func postgres(mem float64) sampler.ProcessInfo {
	return sampler.ProcessInfo{
		PID:        100,
		User:       "postgres",
		CPUPercent: 1.5,
		MemPercent: mem,
		Name:       "postgres",
		Exe:        "/usr/bin/postgres",
		Cmdline:    "postgres -D /var/lib/postgresql",
	}
}

var _ = Describe("Process pipeline", func() {
	var (
		logPath  string
		imageDir string
		window   timerange.Window
	)

	BeforeEach(func() {
		logPath = filepath.Join(workDir, "check.log")
		imageDir = filepath.Join(workDir, "img")

		sink, err := sampler.NewFileSink(logPath)
		Expect(err).NotTo(HaveOccurred())
		s, err := sampler.New(sink,
			sampler.WithClock(steppingClock()),
			sampler.WithProcessLister(scriptedProcesses(
				[]sampler.ProcessInfo{postgres(5)},
				[]sampler.ProcessInfo{postgres(5)},
				[]sampler.ProcessInfo{postgres(9)},
			)),
		)
		Expect(err).NotTo(HaveOccurred())
		tickN(s, 3)

		window, err = timerange.ParseCustom("20240101100000-20240101100002", time.UTC)
		Expect(err).NotTo(HaveOccurred())
	})

	It("keeps all three samples and annotates the peak", func() {
		gen := &report.Generator{Parser: logparser.New(logparser.WithLocation(time.UTC))}
		rep, err := gen.Collect(logparser.ModeProcess, logPath, window)
		Expect(err).NotTo(HaveOccurred())
		Expect(rep.Entities).To(HaveLen(1))

		entity := rep.Entities[0]
		Expect(entity.PID).To(Equal("100"))
		Expect(entity.Series.Values()).To(Equal([]float64{5, 5, 9}))
		Expect(entity.Peak).NotTo(BeNil())
		Expect(entity.Peak.Time).To(BeTemporally("==", base.Add(2*time.Second)))
		Expect(entity.Peak.Value).To(Equal(9.0))
	})

	It("renders one chart per process", func() {
		renderer, err := chart.NewRenderer(chart.WithOutputDir(imageDir), chart.WithLocation(time.UTC))
		Expect(err).NotTo(HaveOccurred())

		gen := &report.Generator{
			Parser:   logparser.New(logparser.WithLocation(time.UTC)),
			Renderer: renderer,
		}
		paths, err := gen.Generate(logparser.ModeProcess, logPath, window)
		Expect(err).NotTo(HaveOccurred())
		Expect(paths).To(ConsistOf(
			filepath.Join(imageDir, "memory_usage_postgres_100_20240101100000_20240101100002.png"),
		))
		Expect(paths[0]).To(BeAnExistingFile())
	})

	It("produces no chart for a window without samples", func() {
		renderer, err := chart.NewRenderer(chart.WithOutputDir(imageDir))
		Expect(err).NotTo(HaveOccurred())

		gen := &report.Generator{
			Parser:   logparser.New(logparser.WithLocation(time.UTC)),
			Renderer: renderer,
		}
		paths, err := gen.Generate(logparser.ModeProcess, logPath, timerange.Last(time.Minute, base.Add(time.Hour)))
		Expect(err).NotTo(HaveOccurred())
		Expect(paths).To(BeEmpty())
		Expect(imageDir).NotTo(BeADirectory())
	})

	It("reads the same samples back from an archive", func() {
		result, err := archive.Compress(logPath, "", archive.WithTruncate(true))
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Truncated).To(BeTrue())
		Expect(readFile(logPath)).To(BeEmpty())

		parsed, err := logparser.New(logparser.WithLocation(time.UTC)).ParseProcesses(result.Destination, window)
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed.Processes).To(HaveKey("100"))
		Expect(parsed.Processes["100"].Memory.Values()).To(Equal([]float64{5, 5, 9}))
	})
})

var _ = Describe("System pipeline", func() {
	It("reduces a flat series to its first and last points", func() {
		logPath := filepath.Join(workDir, "server_memory.log")
		sink, err := sampler.NewFileSink(logPath)
		Expect(err).NotTo(HaveOccurred())
		s, err := sampler.New(sink,
			sampler.WithMode(logparser.ModeSystem),
			sampler.WithClock(steppingClock()),
			sampler.WithMemoryReader(func(context.Context) (sampler.SystemMemory, error) {
				return sampler.SystemMemory{Total: 16 * datasize.GB, Used: 8 * datasize.GB, UsedPercent: 50}, nil
			}),
		)
		Expect(err).NotTo(HaveOccurred())
		tickN(s, 5)

		renderer, err := chart.NewRenderer(chart.WithOutputDir(filepath.Join(workDir, "img")))
		Expect(err).NotTo(HaveOccurred())
		gen := &report.Generator{Parser: logparser.New(logparser.WithLocation(time.UTC)), Renderer: renderer}

		window := timerange.Window{Start: base, End: base.Add(4 * time.Second)}
		rep, err := gen.Collect(logparser.ModeSystem, logPath, window)
		Expect(err).NotTo(HaveOccurred())
		Expect(rep.Entities).To(HaveLen(1))
		Expect(rep.Entities[0].Samples).To(Equal(5))
		Expect(rep.Entities[0].Series).To(HaveLen(2))
		Expect(rep.Entities[0].Series[0].Time).To(BeTemporally("==", base))
		Expect(rep.Entities[0].Series[1].Time).To(BeTemporally("==", base.Add(4*time.Second)))

		paths, err := gen.Generate(logparser.ModeSystem, logPath, window)
		Expect(err).NotTo(HaveOccurred())
		Expect(paths).To(HaveLen(1))
		Expect(filepath.Base(paths[0])).To(Equal("server_memory_usage_20240101100000_20240101100004.png"))
	})

	It("skips malformed and error lines", func() {
		logPath := filepath.Join(workDir, "server_memory.log")
		content := strings.Join([]string{
			"监控时间: 2024-01-01 10:00:00",
			"总内存: 1000.00 MB, 已用内存: 400.00 MB, 使用率: 40.00%",
			"",
			"监控时间: 2024-01-01 10:00:01",
			"监控错误: reading system memory: permission denied",
			"",
			"监控时间: 2024-01-01 10:00:02",
			"garbage",
			"",
			"监控时间: 2024-01-01 10:00:03",
			"总内存: 1000.00 MB, 已用内存: 600.00 MB, 使用率: 60.00%",
			"",
		}, "\n")
		Expect(os.WriteFile(logPath, []byte(content), 0644)).To(Succeed())

		result, err := logparser.New(logparser.WithLocation(time.UTC)).ParseSystem(logPath,
			timerange.Window{Start: base, End: base.Add(time.Minute)})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Memory.Values()).To(Equal([]float64{40, 60}))
		Expect(result.Skipped).To(HaveLen(1))
		Expect(result.Skipped[0].Line).To(Equal(8))

		_, err = logparser.New(logparser.WithLocation(time.UTC), logparser.WithStrict(true)).ParseSystem(logPath,
			timerange.Window{Start: base, End: base.Add(time.Minute)})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Time windows", func() {
	It("parses a custom range", func() {
		w, err := timerange.ParseCustom("20240101000000-20240101000005", time.UTC)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Start).To(BeTemporally("==", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
		Expect(w.End).To(BeTemporally("==", time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC)))
	})

	It("rejects a malformed range", func() {
		_, err := timerange.ParseCustom("20240101000000", time.UTC)
		Expect(err).To(MatchError(timerange.ErrInvalidRange))
	})
})
