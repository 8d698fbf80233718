package data

import (
	"errors"
	"fmt"
	"math"
	"time"
)

type SourceType uint

const (
	GAUGE     SourceType = iota // Value reported as is.
	ATTRIBUTE                   // String value reported as is.
	DELTA                       // Difference from the previous sample.
	RATE                        // Difference from the previous sample per second.
)

const (
	EventTypeKey   = "event_type"
	ProviderKey    = "provider"
	EnvironmentKey = "environment"
)

var (
	ErrInvalidValue    = errors.New("invalid value for source type")
	ErrInvalidType     = errors.New("invalid source type")
	ErrNoStore         = errors.New("no value store for derived metric")
	ErrNoPreviousValue = errors.New("no previous value")
	ErrNegativeDelta   = errors.New("source was reset, negative delta")
	ErrNoElapsedTime   = errors.New("no time elapsed since previous sample")
)

func (t SourceType) String() string {
	switch t {
	case GAUGE:
		return "gauge"
	case ATTRIBUTE:
		return "attribute"
	case DELTA:
		return "delta"
	case RATE:
		return "rate"
	}
	return fmt.Sprintf("SourceType(%d)", uint(t))
}

// ValueStore keeps the previous sample of DELTA and RATE metrics between runs.
type ValueStore interface {
	Get(key string) (float64, time.Time, bool)
	Set(key string, value float64, ts time.Time)
}

// MetricSet builds a single metric Record.
type MetricSet struct {
	Record Record

	store ValueStore
	now   func() time.Time
}

func NewMetricSet(eventType string, provider string, store ValueStore) *MetricSet {
	return &MetricSet{
		Record: Record{
			EventTypeKey: eventType,
			ProviderKey:  provider,
		},
		store: store,
		now:   time.Now,
	}
}

// SetMetric stores value under name, converted according to st. DELTA and
// RATE values are computed against the previous sample in the store; when
// there is none, the current sample is remembered and ErrNoPreviousValue is
// returned without touching the record.
func (ms *MetricSet) SetMetric(name string, value interface{}, st SourceType) error {
	switch st {
	case ATTRIBUTE:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s %q: %w", st, name, ErrInvalidValue)
		}
		ms.Record[name] = s
		return nil
	case GAUGE:
		f, err := asFloat(value)
		if err != nil {
			return fmt.Errorf("%s %q: %w", st, name, err)
		}
		ms.Record[name] = f
		return nil
	case DELTA, RATE:
		f, err := asFloat(value)
		if err != nil {
			return fmt.Errorf("%s %q: %w", st, name, err)
		}
		derived, err := ms.derive(name, f, st)
		if err != nil {
			return fmt.Errorf("%s %q: %w", st, name, err)
		}
		ms.Record[name] = derived
		return nil
	}
	return fmt.Errorf("%q: %w", name, ErrInvalidType)
}

func (ms *MetricSet) derive(name string, value float64, st SourceType) (float64, error) {
	if ms.store == nil {
		return 0, ErrNoStore
	}
	key := ms.storeKey(name)
	now := ms.now()

	prev, prevTime, ok := ms.store.Get(key)
	ms.store.Set(key, value, now)
	if !ok {
		return 0, ErrNoPreviousValue
	}

	delta := value - prev
	if delta < 0 {
		return 0, ErrNegativeDelta
	}
	if st == DELTA {
		return delta, nil
	}

	elapsed := now.Sub(prevTime).Seconds()
	if elapsed <= 0 {
		return 0, ErrNoElapsedTime
	}
	return delta / elapsed, nil
}

func (ms *MetricSet) storeKey(name string) string {
	return fmt.Sprintf("%v::%v::%s", ms.Record[EventTypeKey], ms.Record[ProviderKey], name)
}

// asFloat converts numeric values to float64. NaN and infinities are
// rejected since they cannot be encoded as JSON.
func asFloat(value interface{}) (float64, error) {
	f, err := toFloat(value)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidValue
	}
	return f, nil
}

func toFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	}
	return 0, ErrInvalidValue
}
