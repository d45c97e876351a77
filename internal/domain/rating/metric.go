package rating

import (
	"fmt"
	"strings"
)

// Metric names one of the fixed comparison axes.
type Metric string

// The four metrics every story is rated on.
const (
	Impact        Metric = "impact"
	EstimatedTime Metric = "estimatedTime"
	Risk          Metric = "risk"
	Visibility    Metric = "visibility"
)

// Metrics returns all metrics in display order.
func Metrics() []Metric {
	return []Metric{Impact, EstimatedTime, Risk, Visibility}
}

// Valid reports whether m is one of the four known metrics.
func (m Metric) Valid() bool {
	switch m {
	case Impact, EstimatedTime, Risk, Visibility:
		return true
	}
	return false
}

func (m Metric) String() string { return string(m) }

// ParseMetric maps a request string onto a Metric. Matching is exact apart
// from surrounding whitespace; metric names are case sensitive on the wire.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.TrimSpace(s))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
	return m, nil
}
