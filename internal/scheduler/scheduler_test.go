package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdd_InvalidSpec(t *testing.T) {
	s := New(time.Minute, testLogger())
	if err := s.Add("bad", "not a cron spec", func(context.Context) error { return nil }); err == nil {
		t.Fatal("Add() error = nil, want error for invalid spec")
	}
}

func TestAdd_JobRunsWithDeadline(t *testing.T) {
	s := New(time.Minute, testLogger())

	var gotDeadline bool
	err := s.Add("probe", "* * * * *", func(ctx context.Context) error {
		_, gotDeadline = ctx.Deadline()
		return nil
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	entries := s.cron.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	entries[0].Job.Run()

	if !gotDeadline {
		t.Error("job context has no deadline, want run timeout applied")
	}
}

func TestAdd_JobErrorDoesNotPanic(t *testing.T) {
	s := New(time.Minute, testLogger())
	if err := s.Add("failing", "* * * * *", func(context.Context) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	s.cron.Entries()[0].Job.Run()
}
