package collector

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"emporia-vue-exporter/internal/vue"
)

// The usage endpoint lags real time slightly; ask for a point far enough in
// the past that the minute bucket is populated.
const usageInstantLag = 15 * time.Second

// Poller periodically fetches usage from the Emporia API and owns the
// snapshot of converted readings. The snapshot is replaced wholesale on a
// successful poll and left untouched on a failed one, so scrapes always see
// one consistent poll's worth of data.
type Poller struct {
	mu            sync.RWMutex
	client        vue.Client
	logger        *slog.Logger
	interval      time.Duration
	retryInterval time.Duration
	nameOverrides map[string]string // device gid (as string) -> display name

	readings    []Reading
	lastPoll    time.Time
	lastSuccess time.Time
	lastErr     error
	polls       float64
	failures    float64

	stopCh    chan struct{}
	stoppedCh chan struct{}
	stopOnce  sync.Once
	now       func() time.Time
}

// NewPoller creates a poller. nameOverrides may be nil.
func NewPoller(client vue.Client, nameOverrides map[string]string, interval time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		client:        client,
		logger:        logger,
		interval:      interval,
		retryInterval: 5 * time.Second,
		nameOverrides: nameOverrides,
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
		now:           time.Now,
	}
}

// Start runs the poll loop until the context is canceled or Stop is called.
// The first poll happens immediately; a failed poll is retried after a short
// delay instead of waiting out the full interval.
func (p *Poller) Start(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	defer close(p.stoppedCh)

	p.logger.Info("Usage poller started", "interval", p.interval)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Usage poller stopping")
			return
		case <-p.stopCh:
			p.logger.Info("Usage poller stopping")
			return
		case <-timer.C:
			if err := p.poll(ctx); err != nil {
				p.logger.Error("Poll failed", "error", err)
				p.logger.Info("Serving previous snapshot until retry", "delay", p.retryInterval)
				timer.Reset(p.retryInterval)
			} else {
				timer.Reset(p.interval)
			}
		}
	}
}

// Stop stops the poller (safe to call multiple times).
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	<-p.stoppedCh
}

// poll fetches the device list and current usage, converts it, and replaces
// the snapshot. Any error leaves the previous snapshot in place.
func (p *Poller) poll(ctx context.Context) error {
	start := p.now()

	devices, err := p.client.GetDevices(ctx)
	if err != nil {
		p.recordFailure(start, err)
		return err
	}

	gids := make([]int, 0, len(devices))
	names := make(map[int]string)
	for _, device := range devices {
		gids = append(gids, device.DeviceGID)
		collectNames(device, names)
	}
	for gidStr, name := range p.nameOverrides {
		if gid, err := strconv.Atoi(gidStr); err == nil {
			names[gid] = name
		}
	}
	p.logger.Debug("Listed devices", "count", len(devices))

	usages, err := p.client.GetDeviceListUsage(ctx, gids, start.Add(-usageInstantLag), vue.Scale1Min, vue.UnitKilowattHours)
	if err != nil {
		p.recordFailure(start, err)
		return err
	}

	readings := flattenUsage(usages, names)

	p.mu.Lock()
	p.readings = readings
	p.lastPoll = start
	p.lastSuccess = start
	p.lastErr = nil
	p.polls++
	p.mu.Unlock()

	p.logger.Info("Poll complete", "devices", len(usages), "channels", len(readings))
	return nil
}

func (p *Poller) recordFailure(start time.Time, err error) {
	p.mu.Lock()
	p.lastPoll = start
	p.lastErr = err
	p.polls++
	p.failures++
	p.mu.Unlock()
}

// collectNames records the display names of a device and everything nested
// under it.
func collectNames(device vue.Device, names map[int]string) {
	if device.DeviceName != "" {
		names[device.DeviceGID] = device.DeviceName
	}
	for _, nested := range device.Devices {
		collectNames(nested, names)
	}
}

// Snapshot returns a copy of the latest readings (thread-safe for scrapes).
func (p *Poller) Snapshot() []Reading {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Reading, len(p.readings))
	copy(out, p.readings)
	return out
}

// Status returns the timestamps of the last poll attempt and last success,
// and the last error (nil after a successful poll).
func (p *Poller) Status() (lastPoll, lastSuccess time.Time, lastErr error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastPoll, p.lastSuccess, p.lastErr
}

// Counters returns the total number of poll attempts and failures.
func (p *Poller) Counters() (polls, failures float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.polls, p.failures
}
