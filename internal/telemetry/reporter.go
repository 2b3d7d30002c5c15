// Package telemetry samples registry statistics and writes them to a
// time-series store.
//
// Each sample produces one "device_io" point per attached device (tagged
// by identity, handle and permission) and one "registry" point with
// occupancy. Counters are cumulative since the device was attached, so a
// re-attach shows up as a reset.
package telemetry

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/pseudodev/internal/device"
)

// Measurement names.
const (
	MeasurementDeviceIO = "device_io"
	MeasurementRegistry = "registry"
)

// defaultInterval is used when the reporter is built with a non-positive interval.
const defaultInterval = 10 * time.Second

// PointWriter accepts points. *influxdb.Client satisfies it.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time)
}

// StatsSource provides registry statistics. *device.Registry satisfies it.
type StatsSource interface {
	Stats() device.Stats
}

// Reporter periodically writes registry statistics.
type Reporter struct {
	source   StatsSource
	writer   PointWriter
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	samples uint64
}

// NewReporter creates a reporter sampling source every interval.
func NewReporter(source StatsSource, writer PointWriter, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Reporter{
		source:   source,
		writer:   writer,
		interval: interval,
		now:      time.Now,
	}
}

// Interval returns the sampling period.
func (r *Reporter) Interval() time.Duration {
	return r.interval
}

// Samples returns how many samples have been written.
func (r *Reporter) Samples() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples
}

// Run samples on every tick until ctx is cancelled, then writes a final
// sample so the last counters before shutdown are not lost.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sample()
		case <-ctx.Done():
			r.Sample()
			return
		}
	}
}

// Sample writes one set of points for the current statistics.
func (r *Reporter) Sample() {
	stats := r.source.Stats()
	at := r.now().UTC()

	for _, d := range stats.Devices {
		r.writer.WritePointWithTime(MeasurementDeviceIO, deviceTags(d), deviceFields(d), at)
	}
	r.writer.WritePointWithTime(MeasurementRegistry,
		nil,
		map[string]interface{}{
			"size":     int64(stats.Size),
			"attached": int64(stats.Attached),
			"free":     int64(stats.Size - stats.Attached),
		},
		at,
	)

	r.mu.Lock()
	r.samples++
	r.mu.Unlock()
}

func deviceTags(d device.SlotStats) map[string]string {
	return map[string]string{
		"identity":   d.Identity,
		"handle":     strconv.Itoa(int(d.Handle)),
		"permission": d.Permission.String(),
	}
}

//nolint:gosec // counters never approach MaxInt64
func deviceFields(d device.SlotStats) map[string]interface{} {
	return map[string]interface{}{
		"capacity":      int64(d.Capacity),
		"generation":    int64(d.Generation),
		"reads":         int64(d.Reads),
		"writes":        int64(d.Writes),
		"seeks":         int64(d.Seeks),
		"bytes_read":    int64(d.BytesRead),
		"bytes_written": int64(d.BytesWritten),
		"faults":        int64(d.Faults),
		"denied":        int64(d.Denied),
		"open_sessions": d.OpenSessions,
	}
}
