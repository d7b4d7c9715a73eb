package dashboard

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"marketview/logger"
)

// hostSample is one reading of host and process utilisation.
type hostSample struct {
	Timestamp     time.Time `json:"timestamp"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryUsed    uint64    `json:"memory_used"`
	MemoryPercent float64   `json:"memory_percent"`
	DiskPercent   float64   `json:"disk_percent"`
	HeapAlloc     uint64    `json:"heap_alloc"`
	Goroutines    int       `json:"goroutines"`
}

var (
	cpuPercentFn = func(ctx context.Context, interval time.Duration) ([]float64, error) {
		return cpu.PercentWithContext(ctx, interval, false)
	}
	memoryStatsFn = mem.VirtualMemoryWithContext
	diskUsageFn   = disk.UsageWithContext
)

// resourceSampler keeps the last limit host samples. The CPU reading itself
// blocks for interval, which paces the loop.
type resourceSampler struct {
	mu       sync.RWMutex
	samples  []hostSample
	limit    int
	interval time.Duration
	diskPath string
	log      *logger.Log

	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup
}

func newResourceSampler(limit int, interval time.Duration, log *logger.Log) *resourceSampler {
	if limit <= 0 {
		limit = 120
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &resourceSampler{limit: limit, interval: interval, diskPath: "/", log: log}
}

func (s *resourceSampler) start(ctx context.Context) {
	if s.running.Swap(true) {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

func (s *resourceSampler) stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.running.Store(false)
}

func (s *resourceSampler) snapshot() []hostSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]hostSample(nil), s.samples...)
}

// latest returns the most recent sample, if any.
func (s *resourceSampler) latest() (hostSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.samples) == 0 {
		return hostSample{}, false
	}
	return s.samples[len(s.samples)-1], true
}

func (s *resourceSampler) record(sample hostSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	if len(s.samples) > s.limit {
		s.samples = append([]hostSample(nil), s.samples[len(s.samples)-s.limit:]...)
	}
}

func (s *resourceSampler) run(ctx context.Context) {
	log := s.log.WithComponent("resource_sampler")
	for ctx.Err() == nil {
		sample, err := s.sample(ctx)
		if err != nil {
			log.WithError(err).Debug("failed to sample host resources")
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.interval):
			}
			continue
		}
		s.record(sample)
	}
}

func (s *resourceSampler) sample(ctx context.Context) (hostSample, error) {
	cpuSamples, err := cpuPercentFn(ctx, s.interval)
	if err != nil {
		return hostSample{}, err
	}
	vm, err := memoryStatsFn(ctx)
	if err != nil {
		return hostSample{}, err
	}
	du, err := diskUsageFn(ctx, s.diskPath)
	if err != nil {
		return hostSample{}, err
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	out := hostSample{
		Timestamp:     time.Now(),
		MemoryUsed:    vm.Used,
		MemoryPercent: vm.UsedPercent,
		DiskPercent:   du.UsedPercent,
		HeapAlloc:     ms.HeapAlloc,
		Goroutines:    runtime.NumGoroutine(),
	}
	if len(cpuSamples) > 0 {
		out.CPUPercent = cpuSamples[0]
	}
	return out, nil
}
