package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/crop-advisory/internal/weather"
)

// Refresher re-fetches weather for a coordinate and overwrites its cache entry.
type Refresher interface {
	Refresh(ctx context.Context, coords weather.Coordinates) (weather.Snapshot, error)
}

type job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

// Scheduler periodically refreshes the weather cache for configured
// coordinates so requests for them rarely pay for an upstream call. Expired
// entries elsewhere in the cache are left alone. Extra jobs can be attached
// with Every before Start.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	locations []weather.Coordinates
	interval  time.Duration
	timeout   time.Duration
	extra     []job
}

// New creates a new Scheduler.
func New(locations []weather.Coordinates, interval time.Duration, refresher Refresher) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		refresher: refresher,
		locations: locations,
		interval:  interval,
		timeout:   30 * time.Second,
	}
}

// Every registers fn to run on its own interval once the scheduler starts.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(ctx context.Context) error) {
	s.extra = append(s.extra, job{name: name, interval: interval, run: fn})
}

// Start schedules the periodic jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	scheduled := 0

	if len(s.locations) > 0 {
		interval := s.interval
		if interval <= 0 {
			interval = 15 * time.Minute
		}
		if _, err := s.scheduler.Every(interval).Do(s.RunOnce); err != nil {
			return err
		}
		scheduled++
	} else {
		log.Println("scheduler: no warm locations configured")
	}

	for _, j := range s.extra {
		if j.interval <= 0 {
			log.Printf("WARN: scheduler: job %s has no interval; skipping", j.name)
			continue
		}
		if _, err := s.scheduler.Every(j.interval).WaitForSchedule().Do(s.runJob, j); err != nil {
			return err
		}
		scheduled++
	}

	if scheduled == 0 {
		log.Println("scheduler: nothing to schedule")
		return nil
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce refreshes every configured location concurrently and waits for all
// of them. Failures are logged and do not stop the others.
func (s *Scheduler) RunOnce() {
	log.Println("scheduler: running weather warm job")

	var wg sync.WaitGroup
	for _, loc := range s.locations {
		loc := loc
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()

			if _, err := s.refresher.Refresh(ctx, loc); err != nil {
				log.Printf("scheduler: refresh failed for %s: %v", loc.Key(), err)
			}
		}()
	}
	wg.Wait()
	log.Println("scheduler: completed weather warm job")
}

func (s *Scheduler) runJob(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := j.run(ctx); err != nil {
		log.Printf("scheduler: job %s failed: %v", j.name, err)
		return
	}
	log.Printf("DEBUG: scheduler: job %s completed", j.name)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
