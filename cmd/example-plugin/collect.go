package main

import (
	"context"
	"math/rand"

	"github.com/nirosys/infraplug"
	"github.com/nirosys/infraplug/data"

	log "github.com/sirupsen/logrus"
)

const (
	eventType = "DatastoreSample"
	provider  = "ExampleServer"

	maxValue = 100
)

// Metric names specific to a provider go prefixed with the provider namespace.
var metricKeys = []string{"provider.valueOne", "provider.valueTwo", "provider.valueThree"}

var (
	inventoryItems = []string{"item1", "item2", "item3"}
	inventoryKeys  = []string{"valueOne", "valueTwo", "valueThree"}
)

type collector struct {
	environment string
	rng         *rand.Rand
}

// randomValue returns an integer in [0, maxValue].
func (c *collector) randomValue() int {
	return c.rng.Intn(maxValue + 1)
}

func (c *collector) collectMetrics(ctx context.Context, i *infraplug.Integration) error {
	runID, _ := infraplug.IDFromContext(ctx)
	log := log.WithField("op", "example:collect.metrics").WithField("run", runID)

	ms := i.NewMetricSet(eventType, provider)

	if c.environment != "" {
		if err := ms.SetMetric(data.EnvironmentKey, c.environment, data.ATTRIBUTE); err != nil {
			return err
		}
	}

	for _, key := range metricKeys {
		value := c.randomValue()
		if err := ms.SetMetric(key, value, data.GAUGE); err != nil {
			return err
		}
		log.WithField("metric", key).WithField("value", value).Debug("adding metric")
	}
	return nil
}

func (c *collector) collectInventory(ctx context.Context, i *infraplug.Integration) error {
	runID, _ := infraplug.IDFromContext(ctx)
	log := log.WithField("op", "example:collect.inventory").WithField("run", runID)

	for _, item := range inventoryItems {
		for _, key := range inventoryKeys {
			value := c.randomValue()
			i.Data.AddInventory(item, key, value)
			log.WithField("item", item).WithField("key", key).WithField("value", value).Debug("set inventory key")
		}
	}
	return nil
}
