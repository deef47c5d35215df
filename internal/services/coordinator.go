// Package services – Coordinator
//
// This file implements the generation coordinator: a pool of independent
// workers that drive PENDING ledger rows through the external generator,
// write cache entries, resolve same-emoji races, and finalize request
// status. Each PENDING row is processed by exactly one worker invocation.
//
// Protocol per row:
//  1. Call the generator with the emoji (bounded by GenTimeout).
//  2. On failure or timeout, finalize the row FAILED. No retry here; a retry
//     is a new submission, never a resurrection of the old row.
//  3. On success with text T, insert-if-absent into the cache.
//  4. If this worker won the insert, finalize EXPLAINED with T.
//  5. If it lost, discard T and finalize EXPLAINED with the winner's text,
//     so cache and ledger never diverge for a completed request.
//
// The cache's unique index is the sole serialization point; workers share no
// other mutable state and may run in separate processes.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-emoji-backend/internal/domain"
	"github.com/tbourn/go-emoji-backend/internal/generator"
	"github.com/tbourn/go-emoji-backend/internal/repo"
)

var (
	// genOutcomes counts coordinator results by terminal outcome.
	genOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_outcomes_total",
			Help: "Total generation attempts by outcome (explained, explained_race_lost, failed).",
		},
		[]string{"outcome"},
	)

	// genQueueDepth gauges jobs waiting for a worker.
	genQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "generation_queue_depth",
			Help: "Number of pending generation jobs waiting in the queue.",
		},
	)
)

func init() {
	prometheus.MustRegister(genOutcomes, genQueueDepth)
}

// genJob is one unit of coordinator work: a PENDING ledger row.
type genJob struct {
	RequestID uint
	Emoji     string
}

// Coordinator drains the generation queue with a fixed pool of workers.
type Coordinator struct {
	DB        *gorm.DB
	Generator generator.Generator

	// GenTimeout bounds each generator call; a deadline hit is a FAILED
	// outcome, not a crash.
	GenTimeout time.Duration

	jobs chan genJob
	wg   sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewCoordinator builds a coordinator with the given worker count and queue
// capacity. Start must be called before Enqueue.
func NewCoordinator(db *gorm.DB, gen generator.Generator, workers, queueSize int, genTimeout time.Duration) *Coordinator {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	if genTimeout <= 0 {
		genTimeout = 30 * time.Second
	}
	c := &Coordinator{
		DB:         db,
		Generator:  gen,
		GenTimeout: genTimeout,
		jobs:       make(chan genJob, queueSize),
	}
	c.startWorkers(workers)
	return c
}

// startWorkers launches the pool. Workers exit when the queue is closed.
func (c *Coordinator) startWorkers(n int) {
	c.startOnce.Do(func() {
		for i := 0; i < n; i++ {
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				for j := range c.jobs {
					genQueueDepth.Dec()
					c.Process(context.Background(), j.RequestID, j.Emoji)
				}
			}()
		}
	})
}

// Enqueue hands one PENDING row to the pool. It blocks while the queue is at
// capacity, which backpressures Submit instead of dropping work.
func (c *Coordinator) Enqueue(requestID uint, emoji string) {
	genQueueDepth.Inc()
	c.jobs <- genJob{RequestID: requestID, Emoji: emoji}
}

// Stop closes the queue and waits for in-flight and queued jobs to finish.
// Call it only after the transport has stopped accepting submissions.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.jobs)
	})
	c.wg.Wait()
}

// Process drives one PENDING row to a terminal state. It is invoked once per
// row by the pool, and exported so tests can run the protocol synchronously.
func (c *Coordinator) Process(ctx context.Context, requestID uint, emoji string) {
	tr := otel.Tracer("services/Coordinator")
	ctx, span := tr.Start(ctx, "Process",
		trace.WithAttributes(
			attribute.Int64("request.id", int64(requestID)),
			attribute.String("emoji", emoji),
		),
	)
	defer span.End()

	genCtx, cancel := context.WithTimeout(ctx, c.GenTimeout)
	text, err := c.Generator.Generate(genCtx, emoji)
	cancel()
	if err != nil {
		genOutcomes.WithLabelValues("failed").Inc()
		log.Warn().
			Uint("request_id", requestID).
			Str("emoji", emoji).
			Err(err).
			Msg("generation failed")
		c.finalize(ctx, requestID, domain.StatusFailed, nil)
		return
	}

	winner, inserted, err := repo.InsertExplanationIfAbsent(ctx, c.DB, emoji, text)
	if err != nil {
		genOutcomes.WithLabelValues("failed").Inc()
		log.Error().
			Uint("request_id", requestID).
			Str("emoji", emoji).
			Err(err).
			Msg("cache write failed")
		c.finalize(ctx, requestID, domain.StatusFailed, nil)
		return
	}

	if inserted {
		genOutcomes.WithLabelValues("explained").Inc()
	} else {
		// Lost the same-emoji race: the generated text is discarded and the
		// ledger takes the canonical cached text.
		genOutcomes.WithLabelValues("explained_race_lost").Inc()
	}
	span.SetAttributes(attribute.Bool("cache.inserted", inserted))
	c.finalize(ctx, requestID, domain.StatusExplained, &winner.Explanation)
}

// finalize applies the terminal transition and logs defensive failures. An
// already-terminal row means a duplicate delivery; it is logged, not raised.
func (c *Coordinator) finalize(ctx context.Context, requestID uint, status domain.RequestStatus, explanation *string) {
	err := repo.FinalizeRequest(ctx, c.DB, requestID, status, explanation)
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrTerminal):
		log.Error().
			Uint("request_id", requestID).
			Str("status", string(status)).
			Msg("finalize on terminal row (duplicate delivery?)")
	default:
		log.Error().
			Uint("request_id", requestID).
			Str("status", string(status)).
			Err(err).
			Msg("finalize failed")
	}
}
