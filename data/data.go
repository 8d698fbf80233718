package data

import (
	"encoding/json"
	"fmt"
)

const (
	StatusOK = "OK"

	jsonIndent = "    "
)

// Record is a single metric sample as emitted to the agent.
type Record map[string]interface{}

// InventoryItem holds the attributes reported for one inventory item.
type InventoryItem map[string]interface{}

// Inventory maps item names to their attributes.
type Inventory map[string]InventoryItem

// SetItem stores value under inventory[item][key], creating the item on first use.
func (i Inventory) SetItem(item string, key string, value interface{}) {
	if _, ok := i[item]; !ok {
		i[item] = InventoryItem{}
	}
	i[item][key] = value
}

// Event is the data type for single shot events.
type Event map[string]interface{}

// PluginData is the envelope a plugin writes to the agent. Its exported
// fields are the whole of the JSON document. Use NewPluginData so empty
// sections encode as {} and [] rather than null.
type PluginData struct {
	Name            string    `json:"name"`
	ProtocolVersion string    `json:"protocol_version"`
	PluginVersion   string    `json:"plugin_version"`
	Status          string    `json:"status"`
	Inventory       Inventory `json:"inventory"`
	Metrics         []Record  `json:"metrics"`
	Events          []Event   `json:"events"`
}

func NewPluginData(name, protocolVersion, pluginVersion string) *PluginData {
	return &PluginData{
		Name:            name,
		ProtocolVersion: protocolVersion,
		PluginVersion:   pluginVersion,
		Status:          StatusOK,
		Inventory:       Inventory{},
		Metrics:         []Record{},
		Events:          []Event{},
	}
}

func (p *PluginData) AddInventory(item string, key string, value interface{}) {
	if p.Inventory == nil {
		p.Inventory = Inventory{}
	}
	p.Inventory.SetItem(item, key, value)
}

// AddMetric appends a record as is. Callers are responsible for setting
// event_type and provider.
func (p *PluginData) AddMetric(r Record) {
	p.Metrics = append(p.Metrics, r)
}

func (p *PluginData) AddEvent(e Event) {
	p.Events = append(p.Events, e)
}

// NewMetricSet starts a new metric record for eventType/provider, appends it
// to the envelope and returns a builder writing into it.
func (p *PluginData) NewMetricSet(eventType string, provider string, store ValueStore) *MetricSet {
	ms := NewMetricSet(eventType, provider, store)
	p.AddMetric(ms.Record)
	return ms
}

// Clear re-initializes inventory, metrics and events so the envelope can be
// reused after publishing.
func (p *PluginData) Clear() {
	p.Inventory = Inventory{}
	p.Metrics = []Record{}
	p.Events = []Event{}
}

// JSON returns the envelope as a JSON document. Pretty output is indented
// with four spaces.
func (p *PluginData) JSON(pretty bool) ([]byte, error) {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(p, "", jsonIndent)
	} else {
		output, err = json.Marshal(p)
	}
	if err != nil {
		return nil, fmt.Errorf("error marshalling plugin data: %w", err)
	}
	return output, nil
}
