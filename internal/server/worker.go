package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/optdemo/internal/config"
	"github.com/cwbudde/optdemo/internal/demo"
	"github.com/cwbudde/optdemo/internal/store"
	"github.com/cwbudde/optdemo/internal/trace"
)

// progressRecorder mirrors every iteration into the job and its SSE
// subscribers.
type progressRecorder struct {
	jm    *JobManager
	jobID string
}

func (p *progressRecorder) Record(entry trace.Entry) error {
	err := p.jm.UpdateJob(p.jobID, func(j *Job) {
		j.Iterations = entry.Iteration
		j.Point = entry.Point
		j.Value = entry.Value
	})
	if err != nil {
		return err
	}

	p.jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     p.jobID,
		State:     StateRunning,
		Iteration: entry.Iteration,
		Point:     entry.Point,
		Value:     entry.Value,
		Timestamp: entry.Timestamp,
	})
	return nil
}

// runJob executes a job to completion. If runStore is not nil the result
// is saved as a run record under the job ID, together with its trajectory.
func runJob(ctx context.Context, jm *JobManager, base *config.Config, runStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	p, ok := demo.Lookup(job.Config.Problem)
	if !ok {
		err := fmt.Errorf("unknown problem: %q", job.Config.Problem)
		markJobFailed(jm, jobID, err)
		return err
	}

	c := job.Config.apply(base)
	params, err := demo.BuildParams(p, c, job.Config.Method != "", job.Config.Noise != nil)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
		j.Method = params.Method
		j.Point = params.Start
	}); err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "problem", p.Name, "method", params.Method)

	progress := &progressRecorder{jm: jm, jobID: jobID}
	params.Recorder = progress

	var writer *trace.Writer
	if runStore != nil {
		writer, err = trace.NewWriter(runStore.RunDir(jobID), false)
		if err != nil {
			slog.Warn("Trajectory will not be stored", "job_id", jobID, "error", err)
		} else {
			params.Recorder = trace.Multi{progress, writer}
		}
	}

	start := time.Now()
	out, err := p.Solve(params)
	if writer != nil {
		if cerr := writer.Close(); cerr != nil {
			slog.Warn("Failed to close trace writer", "job_id", jobID, "error", cerr)
		}
	}
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}
	elapsed := time.Since(start)

	if runStore != nil {
		record := store.NewRunRecord(p.Name, params.Method, params.Start)
		record.ID = jobID
		record.Settings = params.Settings()
		record.HasTrace = writer != nil
		record.Finish(out.Final, out.Value, out.Iterations, out.Status)
		if err := runStore.SaveRun(record); err != nil {
			slog.Error("Failed to save run", "job_id", jobID, "error", err)
		}
	}

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Point = out.Final
		j.Value = out.Value
		j.Iterations = out.Iterations
		j.Status = out.Status
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"iterations", out.Iterations,
		"value", out.Value,
		"status", out.Status,
	)

	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     StateCompleted,
		Iteration: out.Iterations,
		Point:     out.Final,
		Value:     out.Value,
		Status:    out.Status,
		Timestamp: endTime,
	})
	return nil
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	jm.broadcaster.Broadcast(ProgressEvent{JobID: jobID, State: StateFailed, Timestamp: endTime})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	jm.broadcaster.Broadcast(ProgressEvent{JobID: jobID, State: StateCancelled, Timestamp: endTime})
	slog.Info("Job cancelled", "job_id", jobID)
}
