package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/traffic-safety-pipeline/internal/common"
	"github.com/i474232898/traffic-safety-pipeline/internal/pipeline"
)

// Scheduler periodically runs the accumulation pipeline over a trailing
// fetch window.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	pipeline   *pipeline.Pipeline
	interval   time.Duration
	windowDays int
	runTimeout time.Duration
}

// New creates a new Scheduler.
func New(p *pipeline.Pipeline, interval time.Duration, windowDays int, runTimeout time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler:  s,
		pipeline:   p,
		interval:   interval,
		windowDays: windowDays,
		runTimeout: runTimeout,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		window := common.TrailingWindow(s.windowDays, time.Now())
		start, end := window.Format()
		log.Printf("scheduler: running accumulation for %s to %s", start, end)

		ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
		defer cancel()

		report := s.pipeline.RunAll(ctx, window)
		if report.Failed() {
			log.Printf("scheduler: run %s completed with failures", report.ID)
			return
		}
		log.Printf("scheduler: run %s completed", report.ID)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
