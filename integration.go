package infraplug

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/nirosys/infraplug/cache"
	"github.com/nirosys/infraplug/data"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var ErrorDuplicateCollector error = errors.New("collector already registered")
var ErrorInvalidCollector error = errors.New("invalid collector")

const DefaultProtocolVersion = "1"

type Config struct {
	Name            string `validate:"required"`
	ProtocolVersion string `validate:"required,numeric"`
	PluginVersion   string `validate:"required"`

	Verbose   bool
	Pretty    bool
	Metrics   bool // Only run metrics collectors, unless Inventory is also set.
	Inventory bool // Only run inventory collectors, unless Metrics is also set.

	CacheDir string
	Fs       afero.Fs
}

var DefaultConfig = &Config{
	ProtocolVersion: DefaultProtocolVersion,
	CacheDir:        cache.DefaultDir,
}

// All reports whether every kind of collector should run.
func (c *Config) All() bool {
	return !c.Metrics && !c.Inventory
}

func (c *Config) wants(kind CollectorKind) bool {
	if c.All() {
		return true
	}
	switch kind {
	case KindMetrics:
		return c.Metrics
	case KindInventory:
		return c.Inventory
	}
	return false
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("invalid config: %s failed on '%s'", e.Field(), e.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

type registration struct {
	name      string
	kind      CollectorKind
	collector Collector
}

// Integration owns the plugin data for one run, the collectors that fill it
// and the cache backing derived metrics.
type Integration struct {
	Data *data.PluginData

	config     *Config
	cache      *cache.Cache
	collectors []registration
	names      map[string]struct{}
	metrics    *RunMetrics
	mux        sync.Mutex
}

func NewIntegration(cfg *Config) (*Integration, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Integration{
		Data:    data.NewPluginData(cfg.Name, cfg.ProtocolVersion, cfg.PluginVersion),
		config:  cfg,
		cache:   cache.Open(fs, cfg.CacheDir, cfg.Name),
		names:   map[string]struct{}{},
		metrics: NewRunMetrics(),
	}, nil
}

// Register a collector. Names are case-insensitive and must be unique.
func (i *Integration) RegisterCollector(name string, kind CollectorKind, c Collector) error {
	if c == nil {
		return ErrorInvalidCollector
	}
	nameKey := strings.ToUpper(name)

	i.mux.Lock()
	defer i.mux.Unlock()
	if _, exists := i.names[nameKey]; exists {
		return ErrorDuplicateCollector
	}
	i.names[nameKey] = struct{}{}
	i.collectors = append(i.collectors, registration{name: name, kind: kind, collector: c})
	return nil
}

// NewMetricSet starts a metric record backed by the integration's cache.
func (i *Integration) NewMetricSet(eventType string, provider string) *data.MetricSet {
	return i.Data.NewMetricSet(eventType, provider, i.cache)
}

// Run executes every selected collector, in registration order.
func (i *Integration) Run(ctx context.Context) error {
	ctx = NewRunContext(ctx)
	runID, _ := IDFromContext(ctx)

	log := log.WithField("op", "infraplug:integration.run").WithField("run", runID)
	i.metrics.RunBegin(ctx)

	for _, reg := range i.collectors {
		if !i.config.wants(reg.kind) {
			log.WithField("collector", reg.name).Debug("collector not selected, skipping")
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		log.WithField("collector", reg.name).WithField("kind", reg.kind).Debug("running collector")
		if err := reg.collector.Collect(ctx, i); err != nil {
			i.metrics.CollectorFailed()
			return fmt.Errorf("collector %s: %w", reg.name, err)
		}
		i.metrics.CollectorDone()
	}

	i.metrics.RunEnd(ctx, i.Data)
	return nil
}

// Publish writes the plugin data as one JSON document followed by a newline,
// then saves the cache. The plugin data is cleared afterwards. A cache that
// cannot be saved is logged and does not fail the publish.
func (i *Integration) Publish(w io.Writer) error {
	output, err := i.Data.JSON(i.config.Pretty)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(output, '\n')); err != nil {
		return err
	}

	i.Data.Clear()
	i.saveCache()
	return nil
}

// PublishDot writes the envelope shape as Graphviz instead of JSON.
func (i *Integration) PublishDot(w io.Writer) error {
	if err := i.Data.WriteDot(w); err != nil {
		return err
	}
	i.Data.Clear()
	i.saveCache()
	return nil
}

func (i *Integration) saveCache() {
	if err := i.cache.Save(); err != nil {
		log.WithField("op", "infraplug:integration.publish").
			WithField("path", i.cache.Path()).
			WithField("err", err.Error()).
			Warn("unable to save cache, derived metrics restart next run")
	}
}

// EmitMetrics logs the run and cache counters as a single debug entry.
func (i *Integration) EmitMetrics() {
	metrics := data.MergeMetrics(i.metrics, i.cache)
	log.WithField("op", "infraplug:metrics").WithFields(log.Fields(metrics)).Debug("run metrics")
}
