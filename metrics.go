package infraplug

import (
	"context"
	"sync"
	"time"

	"github.com/nirosys/infraplug/data"

	log "github.com/sirupsen/logrus"
)

// RunMetrics tracks what a single run collected, for debug logging.
type RunMetrics struct {
	CollectorsRun    uint    `json:"collectors_run"`
	CollectorsFailed uint    `json:"collectors_failed"`
	MetricSets       int     `json:"metric_sets"`
	InventoryItems   int     `json:"inventory_items"`
	DurationSecs     float64 `json:"duration_sec"`

	runID       string
	metricsLock sync.Mutex
}

func NewRunMetrics() *RunMetrics {
	return &RunMetrics{}
}

func (r *RunMetrics) Metrics() data.MetricCollection {
	r.metricsLock.Lock()
	defer r.metricsLock.Unlock()

	return data.MetricCollection{
		"run":               r.runID,
		"collectors_run":    r.CollectorsRun,
		"collectors_failed": r.CollectorsFailed,
		"metric_sets":       r.MetricSets,
		"inventory_items":   r.InventoryItems,
		"duration_sec":      r.DurationSecs,
	}
}

func (r *RunMetrics) RunBegin(ctx context.Context) {
	log := log.WithField("op", "infraplug:metrics.runbegin")

	r.metricsLock.Lock()
	defer r.metricsLock.Unlock()

	if id, ok := IDFromContext(ctx); ok {
		r.runID = id
	} else {
		log.Warn("run started without an id")
	}
}

func (r *RunMetrics) CollectorDone() {
	r.metricsLock.Lock()
	defer r.metricsLock.Unlock()
	r.CollectorsRun += 1
}

func (r *RunMetrics) CollectorFailed() {
	r.metricsLock.Lock()
	defer r.metricsLock.Unlock()
	r.CollectorsFailed += 1
}

func (r *RunMetrics) RunEnd(ctx context.Context, pd *data.PluginData) {
	log := log.WithField("op", "infraplug:metrics.runend")
	end := time.Now()

	r.metricsLock.Lock()
	defer r.metricsLock.Unlock()

	r.MetricSets = len(pd.Metrics)
	r.InventoryItems = len(pd.Inventory)

	start, ok := StartTimeFromContext(ctx)
	if !ok {
		log.WithField("run", r.runID).Error("run ending without record of start")
		return
	}
	r.DurationSecs = end.Sub(start).Seconds()
}
