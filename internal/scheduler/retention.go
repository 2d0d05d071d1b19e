package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Pruner is the slice of the history store the retention job needs.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Retention prunes old history records on a cron schedule.
type Retention struct {
	cron   *cron.Cron
	store  Pruner
	maxAge time.Duration
	spec   string
	logger *zap.Logger
}

func NewRetention(store Pruner, spec string, maxAge time.Duration, logger *zap.Logger) *Retention {
	return &Retention{
		cron:   cron.New(),
		store:  store,
		maxAge: maxAge,
		spec:   spec,
		logger: logger,
	}
}

func (r *Retention) Start() error {
	if _, err := r.cron.AddFunc(r.spec, r.prune); err != nil {
		return err
	}
	r.cron.Start()
	r.logger.Info("History retention scheduled",
		zap.String("spec", r.spec),
		zap.Duration("max_age", r.maxAge))
	return nil
}

func (r *Retention) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-r.maxAge)
	pruned, err := r.store.PruneBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error("History pruning failed", zap.Error(err))
		return
	}
	if pruned > 0 {
		r.logger.Info("Pruned old history records",
			zap.Int64("count", pruned),
			zap.Time("cutoff", cutoff))
	}
}

func (r *Retention) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("History retention stopped")
}
