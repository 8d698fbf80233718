package data

import (
	"fmt"
	"io"
	"sort"

	"github.com/emicklei/dot"
)

// WriteDot renders the shape of the envelope (inventory items and their keys,
// metric records and their fields) as a Graphviz digraph.
func (p *PluginData) WriteDot(w io.Writer) error {
	dg := dot.NewGraph(dot.Directed)
	root := dg.Node(p.Name)

	if len(p.Inventory) > 0 {
		inv := dg.Node("inventory")
		dg.Edge(root, inv)
		for _, item := range sortedKeys(p.Inventory) {
			itemNode := dg.Node("inventory/" + item).Label(item)
			dg.Edge(inv, itemNode)
			for _, key := range sortedKeys(p.Inventory[item]) {
				keyID := fmt.Sprintf("inventory/%s/%s", item, key)
				dg.Edge(itemNode, dg.Node(keyID).Label(key))
			}
		}
	}

	if len(p.Metrics) > 0 {
		metrics := dg.Node("metrics")
		dg.Edge(root, metrics)
		for i, r := range p.Metrics {
			setID := fmt.Sprintf("metrics/%d", i)
			setNode := dg.Node(setID).Label(fmt.Sprintf("%v", r[EventTypeKey]))
			dg.Edge(metrics, setNode)
			for _, field := range sortedKeys(r) {
				dg.Edge(setNode, dg.Node(setID+"/"+field).Label(field))
			}
		}
	}

	_, err := w.Write([]byte(dg.String()))
	return err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
