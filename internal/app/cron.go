package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vibecodingwiki/core/internal/modules/graph"
	"github.com/vibecodingwiki/core/internal/modules/ingestion"
	pkgcron "github.com/vibecodingwiki/core/internal/pkg/cron"
	"go.uber.org/zap"
)

// registerCronJobs registers all scheduled background jobs.
func (a *App) registerCronJobs(graphSvc *graph.Service, ingestSvc *ingestion.Service) {
	cronLogger := a.logger.Named("CronService")

	a.sched.Register(pkgcron.Job{
		Name:        "rebuild_link_graph",
		Description: "Rebuild the wiki link graph from approved revisions",
		Interval:    6 * time.Hour,
		Fn: func(ctx context.Context) error {
			pages, edges, err := graphSvc.RebuildAll()
			if err != nil {
				cronLogger.Warn("link graph rebuild failed", zap.Error(err))
				return err
			}
			cronLogger.Info(fmt.Sprintf("link graph rebuilt: %d pages, %d edges", pages, edges))
			return nil
		},
	})

	a.sched.Register(pkgcron.Job{
		Name:        "refresh_popularity",
		Description: "Recompute popularity scores from backlinks and views",
		Interval:    time.Hour,
		Fn: func(ctx context.Context) error {
			updated, err := graphSvc.RefreshPopularity()
			if err != nil {
				cronLogger.Warn("popularity refresh failed", zap.Error(err))
				return err
			}
			cronLogger.Info(fmt.Sprintf("popularity refreshed for %d pages", updated))
			return nil
		},
	})

	a.sched.Register(pkgcron.Job{
		Name:        "poll_ingestion_jobs",
		Description: "Run queued URL ingestion jobs and reap wedged ones",
		Interval:    time.Minute,
		Fn: func(ctx context.Context) error {
			result, err := ingestSvc.Poll(ctx)
			if err != nil {
				cronLogger.Warn("ingestion poll failed", zap.Error(err))
				return err
			}
			if result.Started > 0 || result.TimedOut > 0 {
				cronLogger.Info(fmt.Sprintf("ingestion poll: %d started, %d timed out",
					result.Started, result.TimedOut))
			}
			return nil
		},
	})
}
