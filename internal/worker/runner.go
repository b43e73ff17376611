package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/maumercado/jobrunner-go/internal/config"
	"github.com/maumercado/jobrunner-go/internal/logger"
	"github.com/maumercado/jobrunner-go/internal/metrics"
	"github.com/maumercado/jobrunner-go/internal/queue"
)

// Stream is the slice of the dispatch queue the runner needs.
type Stream interface {
	ReadNew(ctx context.Context, consumer string) (*queue.Entry, error)
	AutoClaim(ctx context.Context, consumer string) ([]queue.Entry, error)
	Ack(ctx context.Context, entryID string) error
}

// EntryProcessor executes the state machine for one entry. Nil means the
// entry may be acknowledged.
type EntryProcessor interface {
	Process(ctx context.Context, taskID uint) error
}

// Runner is the dispatch loop: one blocking read for new work, then one
// autoclaim sweep for work stalled on dead peers. Every live worker sweeps;
// the consumer group guarantees an entry goes to at most one claimer.
type Runner struct {
	stream    Stream
	processor EntryProcessor
	consumer  string
	backoff   time.Duration
}

func NewRunner(stream Stream, processor EntryProcessor, cfg *config.WorkerConfig) *Runner {
	return &Runner{
		stream:    stream,
		processor: processor,
		consumer:  ConsumerName(cfg),
		backoff:   cfg.ErrorBackoff,
	}
}

// ConsumerName resolves the stable consumer identity: configured name, else
// hostname (sufficient when replicas are containerized), else a uuid.
func ConsumerName(cfg *config.WorkerConfig) string {
	if cfg.ConsumerName != "" {
		return cfg.ConsumerName
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fmt.Sprintf("worker-%s", uuid.New().String()[:8])
}

// Consumer returns the resolved consumer name.
func (r *Runner) Consumer() string {
	return r.consumer
}

// Run executes the dispatch loop until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	log := logger.WithConsumer(r.consumer)
	log.Info().Msg("worker started, waiting for tasks")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker stopping")
			return nil
		default:
		}

		// Primary read: one new entry delivered exclusively to us.
		entry, err := r.stream.ReadNew(ctx, r.consumer)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("stream read failed")
			metrics.DispatchErrors.Inc()
			r.sleep(ctx)
			continue
		}
		if entry != nil {
			r.handle(ctx, log, *entry)
		}

		// Reclaim sweep: steal entries idle past the claim threshold.
		claimed, err := r.stream.AutoClaim(ctx, r.consumer)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("autoclaim failed")
			metrics.DispatchErrors.Inc()
			r.sleep(ctx)
			continue
		}
		for _, e := range claimed {
			log.Warn().Uint("task_id", e.TaskID).Str("entry_id", e.ID).Msg("claimed stalled entry")
			metrics.EntriesReclaimed.Inc()
			r.handle(ctx, log, e)
		}
	}
}

// handle runs the state machine and acks only on success. A failed entry
// stays in the PEL and comes back through autoclaim, trading duplicate
// execution for no lost work.
func (r *Runner) handle(ctx context.Context, log zerolog.Logger, entry queue.Entry) {
	if err := r.processor.Process(ctx, entry.TaskID); err != nil {
		log.Error().Err(err).
			Uint("task_id", entry.TaskID).
			Str("entry_id", entry.ID).
			Msg("processing failed, leaving entry for reclaim")
		return
	}
	if err := r.stream.Ack(ctx, entry.ID); err != nil {
		log.Error().Err(err).Str("entry_id", entry.ID).Msg("failed to ack entry")
		metrics.DispatchErrors.Inc()
	}
}

func (r *Runner) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(r.backoff):
	}
}
