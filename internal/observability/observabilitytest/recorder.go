// Package observabilitytest provides an in-memory Observability for tests.
package observabilitytest

import (
	"sort"
	"strings"
	"sync"

	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
)

// Recorder counts metric samples and keeps log lines. Spans are discarded.
type Recorder struct {
	mu       sync.Mutex
	counters map[string]float64
	observed map[string]int
	entries  []Entry
}

type Entry struct {
	Level  string
	Msg    string
	Fields map[string]any
}

func New() *Recorder {
	return &Recorder{
		counters: make(map[string]float64),
		observed: make(map[string]int),
	}
}

func (r *Recorder) Tracer() observability.Tracer   { return observability.NopTracer() }
func (r *Recorder) Logger() observability.Logger   { return &logger{rec: r} }
func (r *Recorder) Metrics() observability.Metrics { return metrics{rec: r} }

// Count returns the accumulated value of a counter for the given labels, matched exactly.
func (r *Recorder) Count(name observability.MetricKey, labels ...observability.Label) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[key(name, labels)]
}

// Observations returns how many samples a histogram received for the given labels.
func (r *Recorder) Observations(name observability.MetricKey, labels ...observability.Label) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.observed[key(name, labels)]
}

// Entries returns logged lines with the given message.
func (r *Recorder) Entries(msg string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		if e.Msg == msg {
			out = append(out, e)
		}
	}
	return out
}

func key(name observability.MetricKey, labels []observability.Label) string {
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l.Key+"="+l.Value)
	}
	sort.Strings(parts)
	return string(name) + "{" + strings.Join(parts, ",") + "}"
}

type metrics struct{ rec *Recorder }

func (m metrics) Counter(name observability.MetricKey) observability.Counter {
	return counter{rec: m.rec, name: name}
}

func (m metrics) Histogram(name observability.MetricKey) observability.Histogram {
	return histogram{rec: m.rec, name: name}
}

type counter struct {
	rec  *Recorder
	name observability.MetricKey
}

func (c counter) Add(delta float64, labels ...observability.Label) {
	c.rec.mu.Lock()
	c.rec.counters[key(c.name, labels)] += delta
	c.rec.mu.Unlock()
}

type histogram struct {
	rec  *Recorder
	name observability.MetricKey
}

func (h histogram) Observe(_ float64, labels ...observability.Label) {
	h.rec.mu.Lock()
	h.rec.observed[key(h.name, labels)]++
	h.rec.mu.Unlock()
}

type logger struct {
	rec    *Recorder
	fields []observability.Field
}

func (l *logger) With(fields ...observability.Field) observability.Logger {
	merged := append(append([]observability.Field(nil), l.fields...), fields...)
	return &logger{rec: l.rec, fields: merged}
}

func (l *logger) Debug(msg string, fields ...observability.Field) { l.write("debug", msg, fields) }
func (l *logger) Info(msg string, fields ...observability.Field)  { l.write("info", msg, fields) }
func (l *logger) Warn(msg string, fields ...observability.Field)  { l.write("warn", msg, fields) }
func (l *logger) Error(msg string, fields ...observability.Field) { l.write("error", msg, fields) }

func (l *logger) write(level, msg string, fields []observability.Field) {
	e := Entry{Level: level, Msg: msg, Fields: make(map[string]any, len(l.fields)+len(fields))}
	for _, f := range l.fields {
		e.Fields[f.Key] = f.Value
	}
	for _, f := range fields {
		e.Fields[f.Key] = f.Value
	}
	l.rec.mu.Lock()
	l.rec.entries = append(l.rec.entries, e)
	l.rec.mu.Unlock()
}
