// Package server runs optimization jobs in the background and exposes them
// over HTTP, with per-iteration progress streamed as server-sent events.
package server

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/optdemo/internal/config"
	"github.com/cwbudde/optdemo/internal/objective"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// JobConfig is the request body of POST /api/v1/jobs. Zero fields keep the
// server's configured defaults.
type JobConfig struct {
	Problem       string    `json:"problem"`
	Method        string    `json:"method,omitempty"`
	Start         []float64 `json:"start,omitempty"`
	MaxIterations int       `json:"maxIterations,omitempty"`
	Tau           float64   `json:"tau,omitempty"`
	Eps           float64   `json:"eps,omitempty"`
	Beta          float64   `json:"beta,omitempty"`
	Tol           float64   `json:"tol,omitempty"`
	GradTol       float64   `json:"gradTol,omitempty"`
	Patience      int       `json:"patience,omitempty"`
	StallThresh   float64   `json:"stallThreshold,omitempty"`
	Seed          int64     `json:"seed,omitempty"`

	// Noise is a pointer so an explicit 0 selects noiseless data
	Noise     *float64 `json:"noise,omitempty"`
	WarmStart bool     `json:"warmStart,omitempty"`
}

// apply overlays the request on a copy of base.
func (jc JobConfig) apply(base *config.Config) *config.Config {
	c := *base
	c.Run.Start = nil
	if jc.Method != "" {
		c.Run.Method = jc.Method
	}
	if len(jc.Start) > 0 {
		c.Run.Start = objective.Clone(jc.Start)
	}
	if jc.MaxIterations > 0 {
		c.Run.MaxIterations = jc.MaxIterations
	}
	if jc.Tau > 0 {
		c.Run.Tau = jc.Tau
	}
	if jc.Eps > 0 {
		c.Run.Eps = jc.Eps
	}
	if jc.Beta > 0 {
		c.Run.Beta = jc.Beta
	}
	if jc.Tol > 0 {
		c.Run.Tol = jc.Tol
	}
	if jc.GradTol > 0 {
		c.Run.GradTol = jc.GradTol
	}
	if jc.Patience > 0 {
		c.Run.Patience = jc.Patience
	}
	if jc.StallThresh > 0 {
		c.Run.StallThreshold = jc.StallThresh
	}
	if jc.Seed != 0 {
		c.Run.Seed = jc.Seed
	}
	if jc.Noise != nil {
		c.Run.Noise = *jc.Noise
	}
	if jc.WarmStart {
		c.Run.WarmStart = true
	}
	return &c
}

// Job represents an optimization job
type Job struct {
	ID     string    `json:"id"`
	State  JobState  `json:"state"`
	Config JobConfig `json:"config"`

	// Method is the resolved solver, filled in when the job starts
	Method string `json:"method,omitempty"`

	Point      []float64  `json:"point,omitempty"`
	Value      float64    `json:"value"`
	Iterations int        `json:"iterations"`
	Status     string     `json:"status,omitempty"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	Error      string     `json:"error,omitempty"`
}

func (j *Job) clone() *Job {
	cp := *j
	cp.Point = objective.Clone(j.Point)
	cp.Config.Start = objective.Clone(j.Config.Start)
	if j.EndTime != nil {
		end := *j.EndTime
		cp.EndTime = &end
	}
	return &cp
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
}

func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob registers a pending job. Its ID doubles as the run ID in the
// store.
func (jm *JobManager) CreateJob(config JobConfig) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	return job.clone()
}

// GetJob returns a snapshot of the job.
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return nil, false
	}
	return job.clone(), true
}

// ListJobs returns snapshots of all jobs, oldest first.
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job.clone())
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].StartTime.Before(jobs[k].StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	running := make([]*Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			running = append(running, job.clone())
		}
	}
	return running
}
