// Package metrics 提供 Prometheus 文本格式的监控指标
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/paiban/pharmashift/pkg/model"
)

// 指标名称
const (
	HTTPRequestsTotal       = "pharmashift_http_requests_total"
	HTTPRequestDuration     = "pharmashift_http_request_duration_seconds"
	ScheduleRunsTotal       = "pharmashift_schedule_runs_total"
	ScheduleRunDuration     = "pharmashift_schedule_run_duration_seconds"
	ScheduleConflictsTotal  = "pharmashift_schedule_conflicts_total"
	ScheduleScore           = "pharmashift_schedule_score"
	ScheduleCoverage        = "pharmashift_schedule_coverage_ratio"
	ScheduleBudgetExhausted = "pharmashift_schedule_budget_exhausted_total"
)

// Registry 指标注册表
type Registry struct {
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	mu         sync.RWMutex
}

// Counter 计数器
type Counter struct {
	Name   string
	Help   string
	Labels []string
	values map[string]float64
	mu     sync.RWMutex
}

// Gauge 仪表盘
type Gauge struct {
	Name   string
	Help   string
	Labels []string
	values map[string]float64
	mu     sync.RWMutex
}

// Histogram 直方图
type Histogram struct {
	Name    string
	Help    string
	Labels  []string
	Buckets []float64
	counts  map[string][]int
	sums    map[string]float64
	mu      sync.RWMutex
}

var (
	registry *Registry
	once     sync.Once
)

// GetRegistry 获取全局注册表
func GetRegistry() *Registry {
	once.Do(func() {
		registry = NewRegistry()
		registerDefaults(registry)
	})
	return registry
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

func registerDefaults(r *Registry) {
	r.NewCounter(HTTPRequestsTotal, "HTTP请求总数", []string{"method", "path", "status"})
	r.NewHistogram(HTTPRequestDuration, "HTTP请求延迟",
		[]string{"method", "path"},
		[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0})

	r.NewCounter(ScheduleRunsTotal, "排班运行次数", []string{"status"})
	r.NewHistogram(ScheduleRunDuration, "排班运行耗时",
		[]string{},
		[]float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0})
	r.NewCounter(ScheduleConflictsTotal, "排班冲突数", []string{"kind", "severity"})
	r.NewCounter(ScheduleBudgetExhausted, "迭代预算耗尽次数", []string{})
	r.NewGauge(ScheduleScore, "最近一次排班的全局得分", []string{"site_id"})
	r.NewGauge(ScheduleCoverage, "最近一次排班的满员时段比例", []string{"site_id"})
}

// NewCounter 创建计数器
func (r *Registry) NewCounter(name, help string, labels []string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	counter := &Counter{Name: name, Help: help, Labels: labels, values: make(map[string]float64)}
	r.counters[name] = counter
	return counter
}

// NewGauge 创建仪表盘
func (r *Registry) NewGauge(name, help string, labels []string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	gauge := &Gauge{Name: name, Help: help, Labels: labels, values: make(map[string]float64)}
	r.gauges[name] = gauge
	return gauge
}

// NewHistogram 创建直方图
func (r *Registry) NewHistogram(name, help string, labels []string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	histogram := &Histogram{
		Name:    name,
		Help:    help,
		Labels:  labels,
		Buckets: buckets,
		counts:  make(map[string][]int),
		sums:    make(map[string]float64),
	}
	r.histograms[name] = histogram
	return histogram
}

// GetCounter 获取计数器
func (r *Registry) GetCounter(name string) *Counter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// GetGauge 获取仪表盘
func (r *Registry) GetGauge(name string) *Gauge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gauges[name]
}

// GetHistogram 获取直方图
func (r *Registry) GetHistogram(name string) *Histogram {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.histograms[name]
}

// Inc 增加计数
func (c *Counter) Inc(labelValues ...string) {
	c.Add(1, labelValues...)
}

// Add 增加指定值
func (c *Counter) Add(value float64, labelValues ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[labelKey(labelValues)] += value
}

// Value 返回指定标签的当前值
func (c *Counter) Value(labelValues ...string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[labelKey(labelValues)]
}

// Set 设置值
func (g *Gauge) Set(value float64, labelValues ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[labelKey(labelValues)] = value
}

// Value 返回指定标签的当前值
func (g *Gauge) Value(labelValues ...string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.values[labelKey(labelValues)]
}

// Observe 记录观测值
func (h *Histogram) Observe(value float64, labelValues ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := labelKey(labelValues)
	if _, exists := h.counts[key]; !exists {
		h.counts[key] = make([]int, len(h.Buckets)+1)
	}

	// counts[i] 记录落在第 i 个区间的次数，输出时再累加
	idx := sort.SearchFloat64s(h.Buckets, value)
	h.counts[key][idx]++
	h.sums[key] += value
}

// labelKey 标签值用 \x1f 连接，避免与值中的逗号冲突
func labelKey(labels []string) string {
	return strings.Join(labels, "\x1f")
}

// Handler 返回 Prometheus 格式的指标 HTTP 处理器
func Handler() http.Handler {
	return GetRegistry().Handler()
}

// Handler 返回输出本注册表的 HTTP 处理器
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WriteTo(w)
	})
}

// WriteTo 按名称顺序输出全部指标
func (r *Registry) WriteTo(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedKeys(r.counters) {
		c := r.counters[name]
		c.mu.RLock()
		writeSamples(w, c.Name, c.Help, "counter", c.Labels, c.values)
		c.mu.RUnlock()
	}

	for _, name := range sortedKeys(r.gauges) {
		g := r.gauges[name]
		g.mu.RLock()
		writeSamples(w, g.Name, g.Help, "gauge", g.Labels, g.values)
		g.mu.RUnlock()
	}

	for _, name := range sortedKeys(r.histograms) {
		h := r.histograms[name]
		h.mu.RLock()
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", h.Name, h.Help, h.Name)
		for _, key := range sortedKeys(h.counts) {
			counts := h.counts[key]
			labels := formatLabels(h.Labels, key)
			cumulative := 0
			for i, bucket := range h.Buckets {
				cumulative += counts[i]
				fmt.Fprintf(w, "%s_bucket{%s} %d\n", h.Name, joinLabels(labels, "le=\""+formatFloat(bucket)+"\""), cumulative)
			}
			cumulative += counts[len(h.Buckets)]
			fmt.Fprintf(w, "%s_bucket{%s} %d\n", h.Name, joinLabels(labels, `le="+Inf"`), cumulative)
			fmt.Fprintf(w, "%s_sum%s %s\n", h.Name, braces(labels), formatFloat(h.sums[key]))
			fmt.Fprintf(w, "%s_count%s %d\n", h.Name, braces(labels), cumulative)
		}
		h.mu.RUnlock()
	}
}

func writeSamples(w io.Writer, name, help, typ string, labelNames []string, values map[string]float64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, typ)
	for _, key := range sortedKeys(values) {
		fmt.Fprintf(w, "%s%s %s\n", name, braces(formatLabels(labelNames, key)), formatFloat(values[key]))
	}
}

// formatLabels 格式化标签，例如 kind="hour_overrun",severity="high"
func formatLabels(names []string, key string) string {
	if len(names) == 0 {
		return ""
	}
	vals := strings.Split(key, "\x1f")
	parts := make([]string, len(names))
	for i, name := range names {
		val := ""
		if i < len(vals) {
			val = vals[i]
		}
		parts[i] = name + "=" + strconv.Quote(val)
	}
	return strings.Join(parts, ",")
}

func joinLabels(labels, extra string) string {
	if labels == "" {
		return extra
	}
	return labels + "," + extra
}

func braces(labels string) string {
	if labels == "" {
		return ""
	}
	return "{" + labels + "}"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RecordRequestMetrics 记录请求指标
func RecordRequestMetrics(method, path string, status int, duration time.Duration) {
	r := GetRegistry()
	r.GetCounter(HTTPRequestsTotal).Inc(method, path, strconv.Itoa(status))
	r.GetHistogram(HTTPRequestDuration).Observe(duration.Seconds(), method, path)
}

// RecordScheduleRun 记录一次排班运行的结果
func RecordScheduleRun(result *model.RunResult) {
	r := GetRegistry()
	r.GetCounter(ScheduleRunsTotal).Inc("success")
	r.GetHistogram(ScheduleRunDuration).Observe(result.ExecutionTime.Seconds())

	site := result.SiteID.String()
	r.GetGauge(ScheduleScore).Set(result.GlobalScore, site)
	r.GetGauge(ScheduleCoverage).Set(result.Breakdown.Coverage, site)

	conflicts := r.GetCounter(ScheduleConflictsTotal)
	for _, c := range result.Conflicts {
		conflicts.Inc(string(c.Kind), string(c.Severity))
	}
	if result.Metadata.BudgetExhausted {
		r.GetCounter(ScheduleBudgetExhausted).Inc()
	}
}

// RecordScheduleFailure 记录一次因输入无效而失败的排班运行
func RecordScheduleFailure() {
	GetRegistry().GetCounter(ScheduleRunsTotal).Inc("invalid")
}
