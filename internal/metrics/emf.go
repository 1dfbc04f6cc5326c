// Package metrics reports enhancement outcomes.
//
// The server exposes Prometheus collectors. Lambda has no scrape target, so
// it writes CloudWatch Embedded Metric Format (EMF) lines to stdout instead
// and lets CloudWatch Logs extract the metrics.
//
// See: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/CloudWatch_Embedded_Metric_Format_Specification.html
package metrics

import (
	"encoding/json"
	"io"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
)

// CloudWatch metric units used by the observers.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
)

type unitDef struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

type metricDirective struct {
	Namespace  string     `json:"Namespace"`
	Dimensions [][]string `json:"Dimensions"`
	Metrics    []unitDef  `json:"Metrics"`
}

type awsMetadata struct {
	Timestamp         int64             `json:"Timestamp"`
	CloudWatchMetrics []metricDirective `json:"CloudWatchMetrics"`
}

// Recorder builds one EMF line. Use one per event; it is not safe for
// concurrent use.
type Recorder struct {
	out        io.Writer
	now        func() time.Time
	namespace  string
	dimensions map[string]string
	units      map[string]string
	values     map[string]float64
	properties map[string]any
}

// NewRecorder returns a Recorder writing to stdout. Inside Lambda the
// FunctionName dimension is set from the runtime environment.
func NewRecorder(namespace string) *Recorder {
	return newRecorder(os.Stdout, namespace, os.Getenv("AWS_LAMBDA_FUNCTION_NAME"))
}

func newRecorder(out io.Writer, namespace, functionName string) *Recorder {
	r := &Recorder{
		out:        out,
		now:        time.Now,
		namespace:  namespace,
		dimensions: map[string]string{},
		units:      map[string]string{},
		values:     map[string]float64{},
		properties: map[string]any{},
	}
	if functionName != "" {
		r.dimensions["FunctionName"] = functionName
	}
	return r
}

// Dimension sets an indexed dimension.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric sets a metric value and its unit.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	r.units[name] = unit
	r.values[name] = value
	return r
}

// Count records name=1.
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Property sets a searchable field that does not become a metric.
func (r *Recorder) Property(key string, value any) *Recorder {
	r.properties[key] = value
	return r
}

// Flush writes the line. A Recorder without metrics writes nothing.
func (r *Recorder) Flush() {
	if len(r.values) == 0 {
		return
	}

	names := slices.Sorted(maps.Keys(r.units))
	defs := make([]unitDef, 0, len(names))
	for _, name := range names {
		defs = append(defs, unitDef{Name: name, Unit: r.units[name]})
	}

	// Later writes win: dimensions and values override same-named properties.
	line := maps.Clone(r.properties)
	for k, v := range r.dimensions {
		line[k] = v
	}
	for k, v := range r.values {
		line[k] = v
	}
	line["_aws"] = awsMetadata{
		Timestamp: r.now().UnixMilli(),
		CloudWatchMetrics: []metricDirective{{
			Namespace:  r.namespace,
			Dimensions: [][]string{slices.Sorted(maps.Keys(r.dimensions))},
			Metrics:    defs,
		}},
	}

	data, err := json.Marshal(line)
	if err != nil {
		log.Warn().Err(err).Str("namespace", r.namespace).Msg("Failed to encode EMF line")
		return
	}
	r.out.Write(append(data, '\n'))
}
