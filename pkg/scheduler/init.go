package scheduler

import (
	"sync"

	"github.com/Meesho/BharatMLStack/weaver/internal/configs"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

var initSchedulerOnce sync.Once

// Init schedules the given task using the configured cron expression.
// The scheduler is skipped entirely when no expression is configured.
func Init(config configs.Configs, task func()) {
	initSchedulerOnce.Do(func() {
		c := cron.New(cron.WithSeconds())

		cronExpression := config.ScheduledCronExpression
		if cronExpression == "" {
			log.Warn().Msg("SCHEDULED_CRON_EXPRESSION not found in the config, skipping scheduler")
			return
		}

		if task == nil {
			log.Fatal().Msg("Failed to initialize scheduled task")
			return
		}

		_, err := c.AddFunc(cronExpression, task)
		if err != nil {
			log.Error().Err(err).Msg("Failed to schedule the task")
			return
		}

		c.Start()
		log.Info().Msgf("Scheduler started with cron expression %s", cronExpression)
	})
}
