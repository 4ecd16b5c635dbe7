// Package telemetry records HTTP and ward activity metrics and serves them in
// the Prometheus text exposition format at /metrics.
package telemetry

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/noemisales1009/Round-Juju/internal/platform/websocket"
)

var defaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// ---------------------------------------------------------------------------
// Histogram
// ---------------------------------------------------------------------------

// histogram keeps non-cumulative bucket counts; cumulative counts are
// computed at export time.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64
	count        int64
	sum          uint64 // math.Float64bits, updated with CAS
	mu           sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	for {
		old := atomic.LoadUint64(&h.sum)
		next := math.Float64bits(math.Float64frombits(old) + v)
		if atomic.CompareAndSwapUint64(&h.sum, old, next) {
			break
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			return
		}
	}
}

func (h *histogram) Count() int64 {
	return atomic.LoadInt64(&h.count)
}

func (h *histogram) Sum() float64 {
	return math.Float64frombits(atomic.LoadUint64(&h.sum))
}

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	cum := make([]int64, len(h.bucketCounts))
	var running int64
	for i, c := range h.bucketCounts {
		running += c
		cum[i] = running
	}
	return cum
}

// ---------------------------------------------------------------------------
// Provider
// ---------------------------------------------------------------------------

type gaugeFunc struct {
	name, help string
	fn         func() float64
}

// Provider holds every metric the server exports.
type Provider struct {
	service string
	version string

	mu        sync.RWMutex
	requests  map[string]int64      // method|route|status
	durations map[string]*histogram // route
	events    map[string]int64      // event type
	gauges    []gaugeFunc

	active int64
}

func NewProvider(service, version string) *Provider {
	return &Provider{
		service:   service,
		version:   version,
		requests:  make(map[string]int64),
		durations: make(map[string]*histogram),
		events:    make(map[string]int64),
	}
}

// LabelsKey joins request labels into the key used by the request counter.
func LabelsKey(method, route, status string) string {
	return method + "|" + route + "|" + status
}

// GaugeFunc registers a gauge whose value is read from fn at scrape time.
func (p *Provider) GaugeFunc(name, help string, fn func() float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gauges = append(p.gauges, gaugeFunc{name: name, help: help, fn: fn})
}

func (p *Provider) RequestCount(method, route, status string) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.requests[LabelsKey(method, route, status)]
}

func (p *Provider) EventCount(eventType string) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.events[eventType]
}

func (p *Provider) ActiveRequests() int64 {
	return atomic.LoadInt64(&p.active)
}

func (p *Provider) observeRequest(method, route, status string, seconds float64) {
	p.mu.Lock()
	p.requests[LabelsKey(method, route, status)]++
	h, ok := p.durations[route]
	if !ok {
		h = newHistogram(defaultDurationBuckets)
		p.durations[route] = h
	}
	p.mu.Unlock()
	h.Observe(seconds)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// Middleware records request count and latency labelled by route template,
// so /tasks/:id is one series regardless of the ID.
func (p *Provider) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&p.active, 1)
			start := time.Now()

			err := next(c)

			atomic.AddInt64(&p.active, -1)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil && !c.Response().Committed {
				status = http.StatusInternalServerError
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			p.observeRequest(c.Request().Method, route, strconv.Itoa(status), time.Since(start).Seconds())
			return err
		}
	}
}

// ---------------------------------------------------------------------------
// Domain events
// ---------------------------------------------------------------------------

type countingPublisher struct {
	p    *Provider
	next websocket.EventPublisher
}

// CountEvents wraps next so that every published ward event is counted by
// type before being forwarded. next may be nil.
func (p *Provider) CountEvents(next websocket.EventPublisher) websocket.EventPublisher {
	return &countingPublisher{p: p, next: next}
}

func (cp *countingPublisher) Publish(ctx context.Context, ev websocket.Event) error {
	cp.p.mu.Lock()
	cp.p.events[ev.Type]++
	cp.p.mu.Unlock()
	if cp.next == nil {
		return nil
	}
	return cp.next.Publish(ctx, ev)
}

// ---------------------------------------------------------------------------
// Prometheus exposition
// ---------------------------------------------------------------------------

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Handler serves every metric in the Prometheus text format. Series are
// sorted so that the output is stable between scrapes.
func (p *Provider) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		fmt.Fprintf(&b, "# HELP rounds_build_info Build information.\n# TYPE rounds_build_info gauge\n")
		fmt.Fprintf(&b, "rounds_build_info{service=%q,version=%q} 1\n\n", p.service, p.version)

		p.mu.RLock()
		b.WriteString("# HELP http_requests_total HTTP requests by method, route and status.\n")
		b.WriteString("# TYPE http_requests_total counter\n")
		for _, key := range sortedKeys(p.requests) {
			parts := strings.SplitN(key, "|", 3)
			fmt.Fprintf(&b, "http_requests_total{method=%q,route=%q,status=%q} %d\n",
				parts[0], parts[1], parts[2], p.requests[key])
		}
		b.WriteByte('\n')

		b.WriteString("# HELP http_request_duration_seconds HTTP request latency by route.\n")
		b.WriteString("# TYPE http_request_duration_seconds histogram\n")
		for _, route := range sortedKeys(p.durations) {
			writeHistogram(&b, "http_request_duration_seconds", fmt.Sprintf("route=%q", route), p.durations[route])
		}
		b.WriteByte('\n')

		b.WriteString("# HELP rounds_events_total Ward events published by type.\n")
		b.WriteString("# TYPE rounds_events_total counter\n")
		for _, typ := range sortedKeys(p.events) {
			fmt.Fprintf(&b, "rounds_events_total{type=%q} %d\n", typ, p.events[typ])
		}
		b.WriteByte('\n')
		gauges := append([]gaugeFunc(nil), p.gauges...)
		p.mu.RUnlock()

		b.WriteString("# HELP http_active_requests HTTP requests in flight.\n# TYPE http_active_requests gauge\n")
		fmt.Fprintf(&b, "http_active_requests %d\n", p.ActiveRequests())
		for _, g := range gauges {
			fmt.Fprintf(&b, "\n# HELP %s %s\n# TYPE %s gauge\n", g.name, g.help, g.name)
			fmt.Fprintf(&b, "%s %s\n", g.name, strconv.FormatFloat(g.fn(), 'g', -1, 64))
		}

		return c.Blob(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
	}
}

func writeHistogram(b *strings.Builder, name, labels string, h *histogram) {
	cum := h.cumulativeBuckets()
	for i, bound := range h.boundaries {
		fmt.Fprintf(b, "%s_bucket{%s,le=%q} %d\n", name, labels, strconv.FormatFloat(bound, 'g', -1, 64), cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, h.Count())
	fmt.Fprintf(b, "%s_sum{%s} %s\n", name, labels, strconv.FormatFloat(h.Sum(), 'g', -1, 64))
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, h.Count())
}
