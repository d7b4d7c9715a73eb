package logger

import (
	"context"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type streamStat struct {
	messages     int64
	bytes        int64
	decodeErrors int64
	reconnects   int64
}

var (
	warnCount  int64
	errorCount int64
	streams    sync.Map // map[string]*streamStat
)

func recordWarn(component string) {
	if component != "" {
		atomic.AddInt64(&warnCount, 1)
	}
}

func recordError(component string) {
	if component != "" {
		atomic.AddInt64(&errorCount, 1)
	}
}

func statFor(name string) *streamStat {
	v, _ := streams.LoadOrStore(name, &streamStat{})
	return v.(*streamStat)
}

// RecordStreamMessage counts one inbound payload of size bytes on a stream.
func RecordStreamMessage(name string, size int) {
	st := statFor(name)
	atomic.AddInt64(&st.messages, 1)
	atomic.AddInt64(&st.bytes, int64(size))
}

// RecordDecodeError counts one rejected payload on a stream.
func RecordDecodeError(name string) {
	atomic.AddInt64(&statFor(name).decodeErrors, 1)
}

// RecordReconnect counts one scheduled reconnect on a stream.
func RecordReconnect(name string) {
	atomic.AddInt64(&statFor(name).reconnects, 1)
}

// StreamReport is a point-in-time copy of the counters for one stream.
type StreamReport struct {
	Messages     int64 `json:"messages"`
	Bytes        int64 `json:"bytes"`
	DecodeErrors int64 `json:"decode_errors"`
	Reconnects   int64 `json:"reconnects"`
}

// StreamReports returns the counters of every stream seen so far.
func StreamReports() map[string]StreamReport {
	out := map[string]StreamReport{}
	streams.Range(func(k, v any) bool {
		st := v.(*streamStat)
		out[k.(string)] = StreamReport{
			Messages:     atomic.LoadInt64(&st.messages),
			Bytes:        atomic.LoadInt64(&st.bytes),
			DecodeErrors: atomic.LoadInt64(&st.decodeErrors),
			Reconnects:   atomic.LoadInt64(&st.reconnects),
		}
		return true
	})
	return out
}

// StartReport logs a runtime report every interval until ctx is cancelled.
// When CloudWatch was initialised the same values are published there.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPct := 0.0
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		cpuPct = pct[0]
	}
	memUsed := uint64(0)
	if vm, err := mem.VirtualMemory(); err == nil {
		memUsed = vm.Used
	}

	reports := StreamReports()
	names := make([]string, 0, len(reports))
	for name := range reports {
		names = append(names, name)
	}
	sort.Strings(names)

	log.WithComponent("report").WithFields(Fields{
		"warns":       atomic.LoadInt64(&warnCount),
		"errors":      atomic.LoadInt64(&errorCount),
		"goroutines":  runtime.NumGoroutine(),
		"cpu_percent": cpuPct,
		"memory_mb":   int64(memUsed) / 1024 / 1024,
		"streams":     reports,
	}).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memUsed) / 1024 / 1024)},
		{MetricName: aws.String("Warnings"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&warnCount)))},
		{MetricName: aws.String("Errors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorCount)))},
	}
	for _, name := range names {
		st := reports[name]
		dims := []cwtypes.Dimension{{Name: aws.String("Stream"), Value: aws.String(strings.ToLower(name))}}
		data = append(data,
			cwtypes.MetricDatum{MetricName: aws.String("StreamMessages"), Unit: cwtypes.StandardUnitCount, Dimensions: dims, Value: aws.Float64(float64(st.Messages))},
			cwtypes.MetricDatum{MetricName: aws.String("StreamBytes"), Unit: cwtypes.StandardUnitBytes, Dimensions: dims, Value: aws.Float64(float64(st.Bytes))},
			cwtypes.MetricDatum{MetricName: aws.String("StreamDecodeErrors"), Unit: cwtypes.StandardUnitCount, Dimensions: dims, Value: aws.Float64(float64(st.DecodeErrors))},
			cwtypes.MetricDatum{MetricName: aws.String("StreamReconnects"), Unit: cwtypes.StandardUnitCount, Dimensions: dims, Value: aws.Float64(float64(st.Reconnects))},
		)
	}

	publishMetrics(ctx, data)
}
