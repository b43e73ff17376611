package worker

import (
	"context"
	"errors"
	"time"

	"github.com/maumercado/jobrunner-go/internal/events"
	"github.com/maumercado/jobrunner-go/internal/logger"
	"github.com/maumercado/jobrunner-go/internal/metrics"
	"github.com/maumercado/jobrunner-go/internal/task"
)

// TaskStore is the slice of the task repository the processor needs.
type TaskStore interface {
	GetByID(ctx context.Context, id uint) (*task.Task, error)
	Claim(ctx context.Context, id uint) error
	IsCancelled(ctx context.Context, id uint) (bool, error)
	Complete(ctx context.Context, id uint, result string) error
	Fail(ctx context.Context, id uint, result string) error
}

// Processor runs the execution state machine for a single stream entry:
// load, claim, cooperative work loop, finalize. A nil return means the entry
// is safe to acknowledge; an error leaves it in the PEL for reclaim.
type Processor struct {
	store    TaskStore
	events   events.Publisher
	consumer string
	handlers map[string]ResultFunc
	tick     time.Duration
	now      func() time.Time
}

func NewProcessor(store TaskStore, publisher events.Publisher, consumer string, handlers map[string]ResultFunc) *Processor {
	if handlers == nil {
		handlers = DefaultHandlers()
	}
	return &Processor{
		store:    store,
		events:   publisher,
		consumer: consumer,
		handlers: handlers,
		tick:     time.Second,
		now:      time.Now,
	}
}

// Process executes one task end to end.
func (p *Processor) Process(ctx context.Context, taskID uint) error {
	log := logger.WithTask(taskID)

	t, err := p.store.GetByID(ctx, taskID)
	if errors.Is(err, task.ErrTaskNotFound) {
		// Deleted after enqueue; the entry is a dangling reference.
		log.Info().Msg("task row absent, acking entry")
		metrics.EntriesRedelivered.Inc()
		return nil
	}
	if err != nil {
		return err
	}

	if t.Status.IsTerminal() {
		// Redelivery, or cancelled while still Pending. No work to do.
		log.Debug().Str("status", t.Status.String()).Msg("task already terminal, acking entry")
		metrics.EntriesRedelivered.Inc()
		return nil
	}

	if err := p.store.Claim(ctx, taskID); err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			// Raced to terminal between load and claim.
			metrics.EntriesRedelivered.Inc()
			return nil
		}
		return err
	}
	start := p.now()

	p.publish(ctx, events.EventTaskStarted, taskID, task.StatusProcessing, nil)
	log.Info().
		Str("task_type", t.TaskType).
		Int("timeout_s", t.MaxExecutionTime).
		Int("duration_s", t.SimulatedDuration).
		Msg("processing task")

	outcome, err := p.workLoop(ctx, t, start)
	if err != nil {
		return err
	}

	elapsed := p.now().Sub(start).Seconds()
	switch outcome {
	case workDeleted:
		// Row deleted mid-flight; nothing left to report on.
		log.Info().Msg("task row deleted during execution, acking entry")
		metrics.EntriesRedelivered.Inc()
	case workCancelled:
		// The API owns the Cancelled transition; the worker only abandons.
		log.Info().Msg("task cancelled, abandoning")
		metrics.RecordTaskFinished(t.TaskType, task.StatusCancelled.String(), elapsed)
		p.publish(ctx, events.EventTaskCancelled, taskID, task.StatusCancelled, nil)
	case workTimedOut:
		log.Warn().Msg("task exceeded max execution time")
		if err := p.store.Fail(ctx, taskID, "Timed Out"); err != nil {
			return err
		}
		metrics.RecordTaskFinished(t.TaskType, task.StatusFailed.String(), elapsed)
		p.publish(ctx, events.EventTaskFailed, taskID, task.StatusFailed, map[string]interface{}{
			"result": "Timed Out",
		})
	default:
		result := p.result(t)
		if err := p.store.Complete(ctx, taskID, result); err != nil {
			return err
		}
		log.Info().Msg("task completed")
		metrics.RecordTaskFinished(t.TaskType, task.StatusCompleted.String(), elapsed)
		p.publish(ctx, events.EventTaskCompleted, taskID, task.StatusCompleted, map[string]interface{}{
			"result": result,
		})
	}

	return nil
}

// workOutcome is how a work loop ended. Completion is the zero value.
type workOutcome int

const (
	workCompleted workOutcome = iota
	workCancelled
	workTimedOut
	workDeleted
)

// workLoop simulates the work one tick at a time. Check order per tick:
// cancellation flag first, then wall-clock timeout, then sleep. Completion
// wins at the boundary because the loop condition is evaluated before the
// timeout check of the next iteration.
func (p *Processor) workLoop(ctx context.Context, t *task.Task, start time.Time) (workOutcome, error) {
	for elapsed := 0; elapsed < t.SimulatedDuration; elapsed++ {
		isCancelled, err := p.store.IsCancelled(ctx, t.ID)
		if errors.Is(err, task.ErrTaskNotFound) {
			return workDeleted, nil
		}
		if err != nil {
			return workCompleted, err
		}
		if isCancelled {
			return workCancelled, nil
		}

		if p.now().Sub(start).Seconds() > float64(t.MaxExecutionTime) {
			return workTimedOut, nil
		}

		select {
		case <-ctx.Done():
			return workCompleted, ctx.Err()
		case <-time.After(p.tick):
		}
	}
	return workCompleted, nil
}

func (p *Processor) result(t *task.Task) string {
	handler, ok := p.handlers[t.TaskType]
	if !ok {
		handler = p.handlers[task.DefaultTaskType]
	}
	return handler(p.consumer, t)
}

func (p *Processor) publish(ctx context.Context, eventType events.EventType, taskID uint, status task.Status, extra map[string]interface{}) {
	if p.events == nil {
		return
	}
	event := events.NewEvent(eventType, events.TaskEventData(taskID, status.String(), extra))
	if err := p.events.Publish(ctx, event); err != nil {
		logger.Warn().Err(err).Uint("task_id", taskID).Msg("failed to publish task event")
	}
}
