package alert

import (
	"context"

	"go.uber.org/zap"

	"github.com/and161185/phishtrack/internal/jobs"
	"github.com/and161185/phishtrack/internal/metrics"
)

// Submitter is the job executor surface used for alerts.
type Submitter interface {
	Submit(name string, fn jobs.Func) (string, error)
}

// JobDispatcher runs alerts on an in-process job executor.
type JobDispatcher struct {
	jobs   Submitter
	engine *Engine
	log    *zap.Logger
}

// NewJobDispatcher constructs a dispatcher bound to an executor and engine.
func NewJobDispatcher(jobs Submitter, engine *Engine, log *zap.Logger) *JobDispatcher {
	return &JobDispatcher{jobs: jobs, engine: engine, log: log}
}

// Dispatch enqueues a; a full or stopped executor drops it with a warning.
func (d *JobDispatcher) Dispatch(a Alert) {
	id, err := d.jobs.Submit("raise_alert", func(ctx context.Context) error {
		return d.engine.Raise(ctx, a)
	})
	if err != nil {
		metrics.Alerts.WithLabelValues("dropped").Inc()
		d.log.Warn("alert dropped", zap.Error(err), zap.Int64("campaign_id", a.CampaignID), zap.String("text", a.Text))
		return
	}
	metrics.Alerts.WithLabelValues("dispatched").Inc()
	d.log.Debug("alert scheduled", zap.String("job", id), zap.Int64("campaign_id", a.CampaignID))
}
