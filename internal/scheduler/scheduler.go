package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
)

// DietQuestions flags patients whose diet questionnaire fell due.
type DietQuestions interface {
	MarkDietQuestionsDue(ctx context.Context) ([]uint, error)
}

// DietReminders notifies patients with a plan dated today.
type DietReminders interface {
	SendDailyReminders(ctx context.Context) (int, error)
}

type Config struct {
	Location    *time.Location
	SweepAt     string // HH:MM
	RemindAt    string // HH:MM
	TaskTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{Location: time.Local, SweepAt: "00:05", RemindAt: "07:00", TaskTimeout: 5 * time.Minute}
}

// Jobs only notifies; no request path waits on it.
type Jobs struct {
	questions DietQuestions
	reminders DietReminders
	timeout   time.Duration
}

func NewJobs(questions DietQuestions, reminders DietReminders, timeout time.Duration) *Jobs {
	return &Jobs{questions: questions, reminders: reminders, timeout: timeout}
}

func (j *Jobs) SweepDietQuestions() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	ids, err := j.questions.MarkDietQuestionsDue(ctx)
	if err != nil {
		log.Error().Err(err).Msg("diet question sweep failed")
		return
	}
	log.Info().Int("patients", len(ids)).Msg("diet question sweep done")
}

func (j *Jobs) RemindDietPlans() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	n, err := j.reminders.SendDailyReminders(ctx)
	if err != nil {
		log.Error().Err(err).Msg("diet plan reminders failed")
		return
	}
	log.Info().Int("patients", n).Msg("diet plan reminders sent")
}

// Start registers the daily jobs and runs them in the background.
// The caller stops the returned scheduler on shutdown.
func Start(cfg Config, jobs *Jobs) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(cfg.Location)
	s.SingletonModeAll()

	if _, err := s.Every(1).Day().At(cfg.SweepAt).Tag("diet-question-sweep").Do(jobs.SweepDietQuestions); err != nil {
		return nil, err
	}
	if _, err := s.Every(1).Day().At(cfg.RemindAt).Tag("diet-plan-reminder").Do(jobs.RemindDietPlans); err != nil {
		return nil, err
	}
	s.StartAsync()
	log.Info().Str("sweep_at", cfg.SweepAt).Str("remind_at", cfg.RemindAt).Msg("scheduler started")
	return s, nil
}
