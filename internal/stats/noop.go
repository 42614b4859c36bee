package stats

// Noop discards every metric. Caches without a configured collector use it.
type Noop struct{}

var _ Collector = Noop{}

// NewNoop returns a collector that discards every metric.
func NewNoop() Noop {
	return Noop{}
}

func (Noop) IncCounter(string, string, int64)         {}
func (Noop) SetGauge(string, string, int64)           {}
func (Noop) ObserveHistogram(string, string, float64) {}

// Multi forwards every metric to each of its collectors in order.
type Multi []Collector

var _ Collector = Multi(nil)

// Tee returns a collector forwarding to every non-nil collector in cs.
// With a single collector it is returned as is.
func Tee(cs ...Collector) Collector {
	var m Multi
	for _, c := range cs {
		if c != nil {
			m = append(m, c)
		}
	}
	switch len(m) {
	case 0:
		return Noop{}
	case 1:
		return m[0]
	}
	return m
}

func (m Multi) IncCounter(name, label string, delta int64) {
	for _, c := range m {
		c.IncCounter(name, label, delta)
	}
}

func (m Multi) SetGauge(name, label string, value int64) {
	for _, c := range m {
		c.SetGauge(name, label, value)
	}
}

func (m Multi) ObserveHistogram(name, label string, value float64) {
	for _, c := range m {
		c.ObserveHistogram(name, label, value)
	}
}
