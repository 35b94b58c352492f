package cron

import (
	"context"
	"testing"
	"time"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndSkipsNil(t *testing.T) {
	reconcile := &stubJob{name: "payment-reconcile"}
	expiry := &stubJob{name: "pending-expiry"}
	registry := NewRegistry(reconcile, nil)
	registry.Register(nil)
	registry.Register(expiry)

	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != reconcile || jobs[1] != expiry {
		t.Fatalf("jobs returned out of order")
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryJobContext(t *testing.T) {
	ctx, cancel := NewRegistry().jobContext(context.Background())
	defer cancel()
	if _, ok := ctx.Deadline(); ok {
		t.Fatalf("unexpected deadline without a timeout")
	}

	ctx, cancel = NewRegistry().WithJobTimeout(time.Second).jobContext(context.Background())
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Fatalf("expected a deadline")
	}
}
