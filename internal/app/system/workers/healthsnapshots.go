// internal/app/system/workers/healthsnapshots.go
package workers

import (
	"context"
	"sync"
	"time"

	groupstore "github.com/dalemusser/flockhub/internal/app/store/groups"
	snapshotstore "github.com/dalemusser/flockhub/internal/app/store/snapshots"
	"github.com/dalemusser/flockhub/internal/app/system/analytics"
	"github.com/dalemusser/flockhub/internal/app/system/groupdata"
	"github.com/dalemusser/flockhub/internal/app/system/metrics"
	"github.com/dalemusser/flockhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// HealthSnapshots is a background worker that recomputes the health score
// of every active group and stores it as that group's snapshot.
type HealthSnapshots struct {
	groups     *groupstore.Store
	snapshots  *snapshotstore.Store
	loader     *groupdata.Loader
	weights    analytics.HealthWeights
	periodDays int
	metrics    *metrics.Metrics
	log        *zap.Logger
	interval   time.Duration
	now        func() time.Time
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewHealthSnapshots creates a new health snapshot worker.
//
// Parameters:
//   - db: the application database
//   - weights: health weights from config
//   - periodDays: lookback period of each score (e.g., 90)
//   - interval: how often to sweep (e.g., 1 hour)
//   - m: metrics sink, may be nil
func NewHealthSnapshots(db *mongo.Database, weights analytics.HealthWeights, periodDays int, interval time.Duration, m *metrics.Metrics, logger *zap.Logger) *HealthSnapshots {
	return &HealthSnapshots{
		groups:     groupstore.New(db),
		snapshots:  snapshotstore.New(db),
		loader:     groupdata.NewLoader(db),
		weights:    weights,
		periodDays: periodDays,
		metrics:    m,
		log:        logger,
		interval:   interval,
		now:        func() time.Time { return time.Now().UTC() },
		stopCh:     make(chan struct{}),
	}
}

// Start runs one sweep right away and then one per interval.
func (w *HealthSnapshots) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("health snapshot worker started",
		zap.Duration("interval", w.interval),
		zap.Int("period_days", w.periodDays))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *HealthSnapshots) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("health snapshot worker stopped")
}

func (w *HealthSnapshots) run() {
	defer w.wg.Done()

	w.sweep()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *HealthSnapshots) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Batch())
	defer cancel()

	// Stop cancels an in-flight sweep.
	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := w.RunOnce(ctx); err != nil {
		w.log.Error("health snapshot sweep failed", zap.Error(err))
	}
}

// RunOnce scores every active group once. It returns how many snapshots
// were written. Failures on single groups are logged and skipped; the
// error is only set when the group list itself could not be read.
func (w *HealthSnapshots) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	groups, err := w.groups.ListActive(ctx, nil)
	if err != nil {
		w.metrics.ObserveSnapshotRun("failed", time.Since(start))
		return 0, err
	}

	now := w.now()
	written, failed := 0, 0
	for _, g := range groups {
		if ctx.Err() != nil {
			failed += len(groups) - written - failed
			break
		}
		rep, err := w.loader.Health(ctx, g.ID, w.weights, now, w.periodDays)
		if err == nil {
			err = w.snapshots.Upsert(ctx, groupdata.Snapshot(g, rep, now))
		}
		if err != nil {
			failed++
			w.log.Warn("group health snapshot failed",
				zap.String("group_id", g.ID.Hex()),
				zap.String("church_id", g.ChurchID.Hex()),
				zap.Error(err))
			continue
		}
		w.metrics.ObserveHealthScore(rep.Score.Score)
		written++
	}

	result := "ok"
	if failed > 0 {
		result = "partial"
	}
	w.metrics.ObserveSnapshotRun(result, time.Since(start))
	w.log.Info("health snapshots written",
		zap.Int("groups", len(groups)),
		zap.Int("written", written),
		zap.Int("failed", failed),
		zap.Duration("took", time.Since(start)))
	return written, nil
}
