package infraplug

import (
	"context"
	"fmt"
)

type CollectorKind uint

const (
	KindMetrics   CollectorKind = 1
	KindInventory CollectorKind = 2
)

func (k CollectorKind) String() string {
	switch k {
	case KindMetrics:
		return "metrics"
	case KindInventory:
		return "inventory"
	}
	return fmt.Sprintf("CollectorKind(%d)", uint(k))
}

// Collector fills the integration's plugin data.
type Collector interface {
	Collect(context.Context, *Integration) error
}

type CollectorFunc func(context.Context, *Integration) error

func (f CollectorFunc) Collect(ctx context.Context, i *Integration) error {
	return f(ctx, i)
}
