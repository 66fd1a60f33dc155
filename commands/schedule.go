package commands

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Runs collect on the configured cron schedule until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a := current

		engine := cron.New(cron.WithLocation(a.loc), cron.WithChain(jobChain(a)...))
		if _, err := engine.AddJob(a.cfg.Schedule, &collectJob{ctx: ctx, app: a}); err != nil {
			return err
		}

		a.log.Logger.Info("scheduler started", zap.String("schedule", a.cfg.Schedule), zap.String("timezone", a.loc.String()))
		engine.Start()

		<-ctx.Done()
		a.log.Logger.Info("scheduler stopping")
		<-engine.Stop().Done()
		return nil
	},
}

// jobChain keeps the scheduler alive when a run panics.
func jobChain(a *app) []cron.JobWrapper {
	return []cron.JobWrapper{cron.Recover(cronLogger{a.log.SugaredLogger})}
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, zap.Error(err))...)
}

// collectJob is one scheduled collection. A failed run is logged and the
// next tick runs as usual.
type collectJob struct {
	ctx context.Context
	app *app
}

func (j *collectJob) Run() {
	if _, err := j.app.collectOnce(j.ctx); err != nil {
		j.app.log.Logger.Error("scheduled collection failed", zap.Error(err))
	}
}
