package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeQuestions struct {
	calls    int
	err      error
	deadline bool
}

func (f *fakeQuestions) MarkDietQuestionsDue(ctx context.Context) ([]uint, error) {
	f.calls++
	_, f.deadline = ctx.Deadline()
	return []uint{4, 9}, f.err
}

type fakeReminders struct{ calls int }

func (f *fakeReminders) SendDailyReminders(context.Context) (int, error) {
	f.calls++
	return 3, nil
}

func TestJobs(t *testing.T) {
	q := &fakeQuestions{}
	r := &fakeReminders{}
	jobs := NewJobs(q, r, time.Minute)

	jobs.SweepDietQuestions()
	jobs.RemindDietPlans()
	if q.calls != 1 || r.calls != 1 || !q.deadline {
		t.Fatalf("calls = %d/%d deadline=%v", q.calls, r.calls, q.deadline)
	}

	q.err = errors.New("db down")
	jobs.SweepDietQuestions()
	if q.calls != 2 {
		t.Fatal("failed sweep should still have run")
	}
}

func TestStart_RegistersDailyJobs(t *testing.T) {
	s, err := Start(DefaultConfig(), NewJobs(&fakeQuestions{}, &fakeReminders{}, time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	if got := len(s.Jobs()); got != 2 {
		t.Fatalf("jobs = %d, want 2", got)
	}
}

func TestStart_RejectsBadTime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SweepAt = "25:99"
	if _, err := Start(cfg, NewJobs(&fakeQuestions{}, &fakeReminders{}, time.Minute)); err == nil {
		t.Fatal("expected invalid time error")
	}
}
