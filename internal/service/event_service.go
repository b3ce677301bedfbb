package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/school-sim/scheduling-api/pkg/config"
)

// ScheduleEventType labels a schedule change notification.
type ScheduleEventType string

const (
	ScheduleEventCreated  ScheduleEventType = "schedule.created"
	ScheduleEventUpdated  ScheduleEventType = "schedule.updated"
	ScheduleEventDeleted  ScheduleEventType = "schedule.deleted"
	ScheduleEventResolved ScheduleEventType = "schedule.resolved"
	ScheduleEventArchived ScheduleEventType = "schedule.archived"
)

// ScheduleEvent describes one committed schedule change.
type ScheduleEvent struct {
	ID           string            `json:"id"`
	Type         ScheduleEventType `json:"type"`
	ScheduleID   string            `json:"schedule_id,omitempty"`
	AcademicYear string            `json:"academic_year"`
	Semester     int               `json:"semester,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

// EventHandler consumes schedule events, e.g. to drop cached timetables.
type EventHandler func(context.Context, ScheduleEvent) error

// EventDispatcher fans schedule change events out to subscribers through a
// small in-memory worker pool. Publishing is best effort: a full buffer drops
// the event rather than blocking the request path.
type EventDispatcher struct {
	workers  int
	handlers []EventHandler
	logger   *zap.Logger

	events  chan ScheduleEvent
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewEventDispatcher builds a dispatcher from the events configuration.
func NewEventDispatcher(cfg config.EventsConfig, logger *zap.Logger) *EventDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventDispatcher{
		workers: cfg.Workers,
		logger:  logger,
		events:  make(chan ScheduleEvent, cfg.BufferSize),
	}
}

// Subscribe registers a handler. Must be called before Start.
func (d *EventDispatcher) Subscribe(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.handlers = append(d.handlers, handler)
}

// Start begins worker consumption. Safe to call once.
func (d *EventDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.started = true
	d.logger.Sugar().Infow("event dispatcher started", "workers", d.workers, "handlers", len(d.handlers))
}

// Stop cancels workers and waits for them to exit.
func (d *EventDispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.cancel()
	d.mu.Unlock()
	d.wg.Wait()
	d.logger.Sugar().Infow("event dispatcher stopped")
}

// Publish enqueues an event without blocking the caller. Events published
// before Start or against a full buffer are dropped with a warning.
func (d *EventDispatcher) Publish(event ScheduleEvent) {
	if d == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	d.mu.Lock()
	started := d.started
	d.mu.Unlock()
	if !started {
		d.logger.Sugar().Warnw("event dropped, dispatcher not started", "type", event.Type, "schedule_id", event.ScheduleID)
		return
	}

	select {
	case d.events <- event:
	default:
		d.logger.Sugar().Warnw("event dropped, buffer full", "type", event.Type, "schedule_id", event.ScheduleID)
	}
}

func (d *EventDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case event := <-d.events:
			for _, handler := range d.handlers {
				if err := handler(d.ctx, event); err != nil {
					d.logger.Sugar().Errorw("event handler failed", "type", event.Type, "event_id", event.ID, "error", err)
				}
			}
		}
	}
}
