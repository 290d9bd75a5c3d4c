package service

import (
	"context"
	"errors"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"arrivalwatch/internal/modules/checkpoint/domain"
	"arrivalwatch/internal/modules/checkpoint/dto"
	checkpointin "arrivalwatch/internal/modules/checkpoint/port/in"
	checkpointout "arrivalwatch/internal/modules/checkpoint/port/out"
	"arrivalwatch/internal/platform/besteffort"
	"arrivalwatch/internal/platform/clock"
	apperrors "arrivalwatch/internal/platform/errors"
	"arrivalwatch/internal/platform/logging"
)

type Persister struct {
	clock  clock.Clock
	store  checkpointout.Store
	runner besteffort.Runner
	policy domain.Policy
	logger hclog.Logger

	mu          sync.Mutex
	pointsSince int
	lastWriteAt time.Time
}

func NewPersister(clk clock.Clock, store checkpointout.Store, runner besteffort.Runner, policy domain.Policy, logger hclog.Logger) *Persister {
	return &Persister{
		clock:       clk,
		store:       store,
		runner:      runner,
		policy:      policy,
		logger:      logging.OrNull(logger),
		lastWriteAt: clk.Now(),
	}
}

var _ checkpointin.Usecase = (*Persister)(nil)

func (p *Persister) MaybeCheckpoint(snapshot func() (dto.CheckpointInput, bool)) bool {
	now := p.clock.Now()
	p.mu.Lock()
	p.pointsSince++
	if !p.policy.Due(p.pointsSince, now.Sub(p.lastWriteAt)) {
		p.mu.Unlock()
		return false
	}
	p.pointsSince = 0
	p.lastWriteAt = now
	p.mu.Unlock()

	input, ok := snapshot()
	if !ok {
		return false
	}
	record := domain.Record{
		AlarmID:           input.AlarmID,
		Route:             toDomainPoints(input.Route),
		TraveledDistanceM: input.TraveledDistanceM,
		LastCheckpointAt:  now,
		Active:            true,
	}
	if err := record.Validate(); err != nil {
		p.logger.Warn("skipping invalid checkpoint", "alarm_id", input.AlarmID, "error", err)
		return false
	}
	p.runner.Submit("checkpoint", func(ctx context.Context) error {
		return p.store.Upsert(ctx, record)
	})
	return true
}

func (p *Persister) Reset() {
	p.mu.Lock()
	p.pointsSince = 0
	p.lastWriteAt = p.clock.Now()
	p.mu.Unlock()
}

func (p *Persister) Finalize(alarmID string) {
	if alarmID == "" {
		return
	}
	p.runner.Submit("finalize checkpoint", func(ctx context.Context) error {
		return p.store.Deactivate(ctx, alarmID)
	})
}

// Recover returns the active checkpoint of alarmID, if any. Read errors are
// logged and treated as absence.
func (p *Persister) Recover(ctx context.Context, alarmID string) (dto.CheckpointOutput, bool) {
	record, err := p.store.Get(ctx, alarmID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			p.logger.Warn("checkpoint recovery failed", "alarm_id", alarmID, "error", err)
		}
		return dto.CheckpointOutput{}, false
	}
	if !record.Active {
		return dto.CheckpointOutput{}, false
	}
	return toOutput(record), true
}

func (p *Persister) Get(ctx context.Context, alarmID string) (dto.CheckpointOutput, error) {
	record, err := p.store.Get(ctx, alarmID)
	if err != nil {
		return dto.CheckpointOutput{}, err
	}
	return toOutput(record), nil
}

func toDomainPoints(in []dto.Point) []domain.Point {
	out := make([]domain.Point, 0, len(in))
	for _, pt := range in {
		out = append(out, domain.Point{Latitude: pt.Latitude, Longitude: pt.Longitude, Timestamp: pt.Timestamp})
	}
	return out
}

func toOutput(record domain.Record) dto.CheckpointOutput {
	route := make([]dto.Point, 0, len(record.Route))
	for _, pt := range record.Route {
		route = append(route, dto.Point{Latitude: pt.Latitude, Longitude: pt.Longitude, Timestamp: pt.Timestamp})
	}
	return dto.CheckpointOutput{
		AlarmID:           record.AlarmID,
		Route:             route,
		PointCount:        len(route),
		TraveledDistanceM: record.TraveledDistanceM,
		LastCheckpointAt:  record.LastCheckpointAt,
		Active:            record.Active,
	}
}
