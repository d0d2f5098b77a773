package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/locvowork/employee_directory/internal/logger"
)

// Daily invokes a job once a day at a fixed local wall-clock time.
type Daily struct {
	hour, minute int
	loc          *time.Location
	job          func(ctx context.Context) error

	now   func() time.Time
	after func(d time.Duration) <-chan time.Time
}

// NewDaily parses at as "HH:MM".
func NewDaily(at string, loc *time.Location, job func(ctx context.Context) error) (*Daily, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return nil, fmt.Errorf("invalid daily time %q: %w", at, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Daily{
		hour:   t.Hour(),
		minute: t.Minute(),
		loc:    loc,
		job:    job,
		now:    time.Now,
		after:  time.After,
	}, nil
}

// Next returns the first trigger strictly after from.
func (d *Daily) Next(from time.Time) time.Time {
	from = from.In(d.loc)
	next := time.Date(from.Year(), from.Month(), from.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until ctx is done. Job errors are logged and the schedule
// continues with the next day.
func (d *Daily) Run(ctx context.Context) error {
	for {
		next := d.Next(d.now())
		logger.InfoLog(ctx, "Next scheduled sync at %s", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.after(time.Until(next)):
		}

		if err := d.job(ctx); err != nil {
			logger.ErrorLog(ctx, "Scheduled job failed: %v", err)
		}
	}
}
