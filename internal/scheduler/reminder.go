// Package scheduler runs the daily loan reminder.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"libraryapi/internal/notify"
)

const (
	// DefaultReminderAddress receives the daily reminder when none is configured.
	DefaultReminderAddress = "iago@tddcourse.com"
	// DefaultReminderSchedule fires at every local midnight.
	DefaultReminderSchedule = "0 0 * * *"
)

// ReminderJob sends one reminder through its gateway on each tick of its
// cron schedule.
type ReminderJob struct {
	gateway  notify.Gateway
	address  string
	schedule cron.Schedule
	location *time.Location
}

// NewReminderJob builds a job for address on a standard five-field cron
// expression. A blank address or expression falls back to
// DefaultReminderAddress or DefaultReminderSchedule.
func NewReminderJob(gateway notify.Gateway, address, expr string) (*ReminderJob, error) {
	if gateway == nil {
		return nil, errors.New("reminder gateway is required")
	}
	address = strings.TrimSpace(address)
	if address == "" {
		address = DefaultReminderAddress
	}
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = DefaultReminderSchedule
	}
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("reminder schedule %q: %w", expr, err)
	}
	return &ReminderJob{
		gateway:  gateway,
		address:  address,
		schedule: schedule,
		location: time.Local,
	}, nil
}

// Next reports when the job fires after t.
func (j *ReminderJob) Next(t time.Time) time.Time {
	return j.schedule.Next(t.In(j.location))
}

// Run blocks until ctx is cancelled, then waits for an in-flight send to
// finish. A failed send is logged and the job waits for the next tick.
func (j *ReminderJob) Run(ctx context.Context) error {
	logger := cronLogger{slog.Default().With("job", "reminder")}
	c := cron.New(
		cron.WithLocation(j.location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(j.schedule, cron.FuncJob(func() { j.fire(ctx) }))
	c.Start()
	slog.Info("reminder scheduled", "next", j.Next(time.Now()).Format(time.RFC3339), "address", j.address)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (j *ReminderJob) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := j.gateway.SendReminder(ctx, j.address); err != nil {
		slog.Error("reminder failed", "address", j.address, "err", err)
	}
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "err", err)...)
}
