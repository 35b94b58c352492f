package cron

import (
	"context"
	"time"
)

// Job is one step of a cron cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order; payment reconciliation must run
// before pending expiry so a paid order is never expired.
type Registry struct {
	jobs    []Job
	timeout time.Duration
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// WithJobTimeout bounds each job run. Zero disables the bound.
func (r *Registry) WithJobTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

func (r *Registry) jobContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}
