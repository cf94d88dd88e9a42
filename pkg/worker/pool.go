// Package worker provides an asynchronous worker pool for recording
// finished conversation turns in the transcript store and publishing
// them to the configured event stream.
//
// The pool decouples bookkeeping from the interactive streaming path so
// that prompt redraw latency never waits on a transcript write or a
// broker round trip.
package worker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atlaschat/atlas/pkg/chat"
	"github.com/atlaschat/atlas/pkg/eventstream"
	"github.com/atlaschat/atlas/pkg/transcript"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is one finished conversation turn for the pool to record.
type Job struct {
	SessionID   string
	UserMessage string
	Reply       chat.Message
	Source      eventstream.EventSource
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Transcripts is the store finished turns are appended to.
	Transcripts transcript.Store

	// Publisher is the optional event stream sink for turn events.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool records turn jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("turn queued",
			zap.String("session_id", job.SessionID),
			zap.String("phase", job.Reply.Phase.String()),
		)
		return true
	default:
		p.logger.Error("turn not queued, queue full, job dropped",
			zap.String("session_id", job.SessionID),
			zap.String("phase", job.Reply.Phase.String()),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the last turn has finished.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("turn worker stopped", zap.Uint("worker_id", id))
}

// processJob records a turn in the transcript store and publishes it to
// the event stream if one is configured.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	if err := p.recordTurn(ctx, job); err != nil {
		p.logger.Error("async transcript write failed",
			zap.String("session_id", job.SessionID),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("turn recorded",
		zap.String("session_id", job.SessionID),
		zap.String("phase", job.Reply.Phase.String()),
	)

	if p.config.Publisher != nil {
		event := eventstream.NewTurnCompletedEvent(job.Source, job.UserMessage, job.Reply)
		if err := p.config.Publisher.PublishTurn(ctx, event); err != nil {
			// Publishing is best effort; the transcript entry already landed.
			p.logger.Warn("failed to publish turn event",
				zap.String("session_id", job.SessionID),
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
			return
		}

		p.logger.Debug("published turn event",
			zap.String("event_id", event.EventID),
		)
	}
}

// recordTurn appends the user message and the assistant reply as one
// transcript exchange. The user entry is backdated by the reply's
// elapsed time so the pair reads in submission order.
func (p *Pool) recordTurn(ctx context.Context, job Job) error {
	completedAt := time.Now()

	err := p.config.Transcripts.Append(ctx, job.SessionID, transcript.Entry{
		Role: transcript.RoleUser,
		Text: job.UserMessage,
		At:   completedAt.Add(-job.Reply.Elapsed),
	})
	if err != nil {
		return fmt.Errorf("recording user message: %w", err)
	}

	err = p.config.Transcripts.Append(ctx, job.SessionID, transcript.Entry{
		Role:      transcript.RoleAssistant,
		Text:      job.Reply.Text,
		Reasoning: job.Reply.Reasoning,
		Phase:     job.Reply.Phase,
		Stats:     job.Reply.Stats,
		At:        completedAt,
	})
	if err != nil {
		return fmt.Errorf("recording assistant reply: %w", err)
	}

	return nil
}
