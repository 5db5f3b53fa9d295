// Package schedule runs a job on a cron expression.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// parser uses standard 5-field cron expressions (minute, hour, dom, month, dow)
// and descriptors such as "@hourly" or "@every 30m".
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Parse validates a cron expression.
func Parse(expr string) (cron.Schedule, error) {
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule: parse %q: %w", expr, err)
	}
	return s, nil
}

// Next returns the duration from now until the next fire time of expr.
func Next(expr string, now time.Time) (time.Duration, error) {
	s, err := Parse(expr)
	if err != nil {
		return 0, err
	}
	return max(0, s.Next(now).Sub(now)), nil
}

// Options tune Run.
type Options struct {
	Logger *zerolog.Logger
	// RunNow fires the job once immediately before waiting for the schedule.
	RunNow bool
	// Location for the schedule; UTC when nil.
	Location *time.Location
}

// Run fires job on expr until ctx is cancelled. Fires that arrive while the
// previous job is still running are skipped. Job errors are logged and do not
// stop the loop. Run returns after the running job, if any, has finished.
func Run(ctx context.Context, expr string, job Job, opt Options) error {
	sched, err := Parse(expr)
	if err != nil {
		return err
	}
	log := zerolog.Nop()
	if opt.Logger != nil {
		log = *opt.Logger
	}
	loc := opt.Location
	if loc == nil {
		loc = time.UTC
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithParser(parser),
		cron.WithLogger(cronLogger{log}),
		cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
	)
	c.Schedule(sched, cron.FuncJob(func() { runOnce(ctx, job, log) }))

	if opt.RunNow {
		runOnce(ctx, job, log)
	}
	c.Start()
	log.Info().Str("cron", expr).Time("next", sched.Next(time.Now().In(loc))).Msg("schedule started")

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info().Msg("schedule stopped")
	return nil
}

func runOnce(ctx context.Context, job Job, log zerolog.Logger) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := job(ctx); err != nil {
		log.Error().Err(err).Dur("took", time.Since(start)).Msg("scheduled job failed")
		return
	}
	log.Debug().Dur("took", time.Since(start)).Msg("scheduled job finished")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ log zerolog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
