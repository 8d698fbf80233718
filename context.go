package infraplug

import (
	"context"
	"time"

	"github.com/rs/xid"
)

type ctxKey struct{}

// runInfo identifies one collection run.
type runInfo struct {
	id    string
	start time.Time
}

// NewRunContext marks the start of a run. A run id already present on ctx is
// kept so callers can correlate their own logs; otherwise a new xid is used.
func NewRunContext(ctx context.Context) context.Context {
	id, ok := IDFromContext(ctx)
	if !ok {
		id = xid.New().String()
	}
	return context.WithValue(ctx, ctxKey{}, runInfo{id: id, start: time.Now()})
}

func runFromContext(ctx context.Context) (runInfo, bool) {
	ri, ok := ctx.Value(ctxKey{}).(runInfo)
	return ri, ok
}

func IDFromContext(ctx context.Context) (string, bool) {
	ri, ok := runFromContext(ctx)
	return ri.id, ok
}

func StartTimeFromContext(ctx context.Context) (time.Time, bool) {
	ri, ok := runFromContext(ctx)
	return ri.start, ok
}
