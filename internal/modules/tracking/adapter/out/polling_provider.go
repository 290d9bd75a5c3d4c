package out

import (
	"context"
	"fmt"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"arrivalwatch/internal/modules/tracking/domain"
	trackingout "arrivalwatch/internal/modules/tracking/port/out"
	"arrivalwatch/internal/platform/geo"
	"arrivalwatch/internal/platform/logging"
)

const (
	ScopeForeground = "foreground"
	ScopeBackground = "background"
)

// FixSource produces one-shot fixes. PollingProvider turns it into the
// subscription model the orchestrator expects.
type FixSource interface {
	Permission(ctx context.Context, scope string) (domain.Permission, error)
	Fix(ctx context.Context) (domain.LocationSample, error)
}

// PollingProvider emulates platform location services by polling a
// FixSource on its own goroutines and dispatching through a TaskRegistry.
// Region monitoring is derived from the polled fixes.
type PollingProvider struct {
	source         FixSource
	tasks          trackingout.TaskRegistry
	regionInterval time.Duration
	minInterval    time.Duration
	logger         hclog.Logger

	base   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	watches map[string]context.CancelFunc
}

func NewPollingProvider(source FixSource, tasks trackingout.TaskRegistry, pollInterval time.Duration, logger hclog.Logger) *PollingProvider {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	base, cancel := context.WithCancel(context.Background())
	return &PollingProvider{
		source:         source,
		tasks:          tasks,
		regionInterval: pollInterval,
		minInterval:    pollInterval / 4,
		logger:         logging.OrNull(logger).Named("location"),
		base:           base,
		cancel:         cancel,
		watches:        map[string]context.CancelFunc{},
	}
}

var _ trackingout.LocationProvider = (*PollingProvider)(nil)

func (p *PollingProvider) RequestForegroundPermission(ctx context.Context) (domain.Permission, error) {
	return p.source.Permission(ctx, ScopeForeground)
}

func (p *PollingProvider) RequestBackgroundPermission(ctx context.Context) (domain.Permission, error) {
	return p.source.Permission(ctx, ScopeBackground)
}

func (p *PollingProvider) CurrentLocation(ctx context.Context) (domain.LocationSample, error) {
	return p.source.Fix(ctx)
}

func (p *PollingProvider) StartRegionMonitoring(_ context.Context, task string, regions []domain.Region) error {
	if len(regions) == 0 {
		return fmt.Errorf("start region monitoring: no regions")
	}
	regions = append([]domain.Region(nil), regions...)
	inside := make([]bool, len(regions))
	known := false
	p.watch(task, p.regionInterval, func(ctx context.Context) {
		sample, err := p.source.Fix(ctx)
		if err != nil {
			p.deliver(ctx, task, domain.TaskData{Err: err})
			return
		}
		for i, region := range regions {
			now := geo.DistanceM(sample.Latitude, sample.Longitude, region.Center.Latitude, region.Center.Longitude) <= region.RadiusM
			was := inside[i]
			inside[i] = now
			switch {
			case now && (!was || !known) && region.NotifyOnEnter:
				p.deliver(ctx, task, domain.TaskData{Region: &domain.RegionEvent{Identifier: region.Identifier, Kind: domain.RegionEnter}})
			case !now && was && known && region.NotifyOnExit:
				p.deliver(ctx, task, domain.TaskData{Region: &domain.RegionEvent{Identifier: region.Identifier, Kind: domain.RegionExit}})
			}
		}
		known = true
	})
	return nil
}

func (p *PollingProvider) StopRegionMonitoring(_ context.Context, task string) error {
	p.unwatch(task)
	return nil
}

func (p *PollingProvider) StartLocationUpdates(_ context.Context, task string, options domain.UpdateOptions) error {
	interval := options.TimeInterval
	if interval < p.minInterval {
		interval = p.minInterval
	}
	var last *domain.LocationSample
	p.watch(task, interval, func(ctx context.Context) {
		sample, err := p.source.Fix(ctx)
		if err != nil {
			p.deliver(ctx, task, domain.TaskData{Err: err})
			return
		}
		if last != nil && options.DistanceIntervalM > 0 &&
			geo.DistanceM(last.Latitude, last.Longitude, sample.Latitude, sample.Longitude) < options.DistanceIntervalM {
			return
		}
		last = &sample
		p.deliver(ctx, task, domain.TaskData{Locations: []domain.LocationSample{sample}})
	})
	return nil
}

func (p *PollingProvider) StopLocationUpdates(_ context.Context, task string) error {
	p.unwatch(task)
	return nil
}

// Close stops every subscription. It does not wait for in-flight deliveries.
func (p *PollingProvider) Close() error {
	p.mu.Lock()
	for task, cancel := range p.watches {
		cancel()
		delete(p.watches, task)
	}
	p.mu.Unlock()
	p.cancel()
	return nil
}

// watch replaces any subscription of task with a loop calling poll once
// right away and then every interval.
func (p *PollingProvider) watch(task string, interval time.Duration, poll func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(p.base)
	p.mu.Lock()
	if previous, ok := p.watches[task]; ok {
		previous()
	}
	p.watches[task] = cancel
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if ctx.Err() != nil {
				return
			}
			poll(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (p *PollingProvider) unwatch(task string) {
	p.mu.Lock()
	if cancel, ok := p.watches[task]; ok {
		cancel()
		delete(p.watches, task)
	}
	p.mu.Unlock()
}

// deliver drops data once watch is cancelled. The handler gets the
// provider's base context so that tearing down this very subscription from
// inside the handler leaves it a usable ctx.
func (p *PollingProvider) deliver(watch context.Context, task string, data domain.TaskData) {
	if watch.Err() != nil {
		return
	}
	if err := p.tasks.Dispatch(p.base, task, data); err != nil {
		p.logger.Warn("dispatch task", "task", task, "error", err)
	}
}
