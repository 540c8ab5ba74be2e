// Package scheduler runs organize jobs on an interval or at a fixed
// time of day.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// JobFunc does the actual work of a job. The returned error is recorded
// in the job's run history.
type JobFunc func(ctx context.Context) error

// Job is one scheduled task. Exactly one of Every and DailyAt is set.
type Job struct {
	Name    string
	Every   time.Duration // interval mode
	DailyAt string        // "15:04" clock time, daily mode
	Run     JobFunc
}

// RunRecord is one completed execution of a job.
type RunRecord struct {
	Started  time.Time
	Finished time.Time
	Err      string // empty on success
}

// maxRunHistory bounds per-job run history.
const maxRunHistory = 10

type jobState struct {
	job    Job
	paused bool
	runs   []RunRecord
}

// Scheduler owns a set of jobs and drives them until stopped.
type Scheduler struct {
	mu   sync.Mutex
	jobs map[string]*jobState

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{jobs: make(map[string]*jobState)}
}

// Add registers a job. Fails on duplicate names, on jobs with neither
// or both trigger modes, and on unparseable DailyAt times.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("job needs a name")
	}
	if (job.Every > 0) == (job.DailyAt != "") {
		return fmt.Errorf("job %s must set exactly one of an interval or a daily time", job.Name)
	}
	if job.DailyAt != "" {
		if _, err := time.Parse("15:04", job.DailyAt); err != nil {
			return fmt.Errorf("job %s has a bad daily time %q: %w", job.Name, job.DailyAt, err)
		}
	}
	if job.Run == nil {
		return fmt.Errorf("job %s has no work", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[job.Name]; dup {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	if s.started {
		return fmt.Errorf("cannot add job %s to a running scheduler", job.Name)
	}
	s.jobs[job.Name] = &jobState{job: job}
	return nil
}

// Start launches one goroutine per job. Stop with Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for name, state := range s.jobs {
		s.wg.Add(1)
		go s.drive(ctx, name, state.job)
	}
}

// Stop cancels all jobs and waits for running work to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) drive(ctx context.Context, name string, job Job) {
	defer s.wg.Done()

	for {
		wait := s.nextWait(job, time.Now())
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if s.isPaused(name) {
			continue
		}
		s.execute(ctx, name, job)
	}
}

// nextWait computes how long until the job's next firing.
func (s *Scheduler) nextWait(job Job, now time.Time) time.Duration {
	if job.Every > 0 {
		return job.Every
	}
	at, _ := time.Parse("15:04", job.DailyAt)
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// execute runs the job once and records the outcome. One transient
// failure gets a single retry after a short backoff; persistent
// failures wait for the next scheduled firing.
func (s *Scheduler) execute(ctx context.Context, name string, job Job) {
	record := RunRecord{Started: time.Now()}

	err := job.Run(ctx)
	if err != nil && ctx.Err() == nil {
		log.Printf("job %s failed, retrying once: %v", name, err)
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
			err = job.Run(ctx)
		}
	}

	record.Finished = time.Now()
	if err != nil {
		record.Err = err.Error()
		log.Printf("job %s failed: %v", name, err)
	}

	s.mu.Lock()
	state := s.jobs[name]
	state.runs = append(state.runs, record)
	if len(state.runs) > maxRunHistory {
		state.runs = state.runs[len(state.runs)-maxRunHistory:]
	}
	s.mu.Unlock()
}

// RunNow executes one job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	state, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no job named %s", name)
	}
	s.execute(ctx, name, state.job)

	s.mu.Lock()
	defer s.mu.Unlock()
	last := state.runs[len(state.runs)-1]
	if last.Err != "" {
		return fmt.Errorf("job %s: %s", name, last.Err)
	}
	return nil
}

// RunAllNow executes every job immediately, in registration-map order.
func (s *Scheduler) RunAllNow(ctx context.Context) {
	s.mu.Lock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	s.mu.Unlock()

	for _, name := range names {
		if err := s.RunNow(ctx, name); err != nil {
			log.Printf("%v", err)
		}
	}
}

// Pause stops a job firing without removing it.
func (s *Scheduler) Pause(name string) {
	s.setPaused(name, true)
}

// Resume lets a paused job fire again.
func (s *Scheduler) Resume(name string) {
	s.setPaused(name, false)
}

func (s *Scheduler) setPaused(name string, paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.jobs[name]; ok {
		state.paused = paused
	}
}

func (s *Scheduler) isPaused(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.jobs[name]
	return ok && state.paused
}

// Runs returns a job's recorded executions, oldest first.
func (s *Scheduler) Runs(name string) []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.jobs[name]
	if !ok {
		return nil
	}
	out := make([]RunRecord, len(state.runs))
	copy(out, state.runs)
	return out
}

// Names returns the registered job names.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}
