// Package metrics 提供Prometheus监控指标
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace 默认指标命名空间
const DefaultNamespace = "sloty"

// Registry 指标注册表
type Registry struct {
	reg *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	evaluations *prometheus.CounterVec
	activeRuns  prometheus.Gauge

	points       *prometheus.GaugeVec
	qualityGap   *prometheus.GaugeVec
	qualityRatio *prometheus.GaugeVec
	pointsGini   *prometheus.GaugeVec
	conflicts    *prometheus.CounterVec

	checkpointSaves *prometheus.CounterVec
	dbConnections   *prometheus.GaugeVec
}

var (
	registry *Registry
	once     sync.Once
)

// Init 使用指定命名空间初始化全局注册表，只有第一次调用生效
func Init(namespace string) *Registry {
	once.Do(func() {
		registry = NewRegistry(namespace)
	})
	return registry
}

// GetRegistry 获取全局注册表
func GetRegistry() *Registry {
	return Init(DefaultNamespace)
}

// NewRegistry 创建独立的注册表，测试中使用以避免全局状态
func NewRegistry(namespace string) *Registry {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	auto := promauto.With(reg)

	r := &Registry{reg: reg}

	// HTTP
	r.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP请求总数",
	}, []string{"method", "path", "status"})
	r.httpDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP请求延迟",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"method", "path"})

	// 分配运行
	r.runs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "allocation",
		Name:      "runs_total",
		Help:      "分配运行次数",
	}, []string{"strategy", "status"})
	r.runDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "allocation",
		Name:      "run_duration_seconds",
		Help:      "单个学科分配耗时",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 300.0},
	}, []string{"strategy"})
	r.evaluations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "allocation",
		Name:      "evaluations_total",
		Help:      "适应度评估次数",
	}, []string{"strategy"})
	r.activeRuns = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "allocation",
		Name:      "active_runs",
		Help:      "当前正在运行的分配任务数",
	})

	// 结果质量
	r.points = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "allocation",
		Name:      "points",
		Help:      "最近一次分配的总分",
	}, []string{"discipline", "strategy"})
	r.qualityGap = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "allocation",
		Name:      "quality_gap",
		Help:      "上界与实际总分之差",
	}, []string{"discipline", "strategy"})
	r.qualityRatio = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "allocation",
		Name:      "quality_ratio",
		Help:      "实际总分占上界的比例",
	}, []string{"discipline", "strategy"})
	r.pointsGini = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "allocation",
		Name:      "points_gini",
		Help:      "作者得分基尼系数",
	}, []string{"discipline"})
	r.conflicts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "allocation",
		Name:      "conflicts_total",
		Help:      "结果校验发现的冲突数",
	}, []string{"type", "severity"})

	r.checkpointSaves = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkpoint",
		Name:      "saves_total",
		Help:      "断点保存次数",
	}, []string{"status"})
	r.dbConnections = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections",
		Help:      "数据库连接数",
	}, []string{"state"})

	return r
}

// Handler 返回Prometheus格式的指标HTTP处理器
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// RecordRequest 记录请求指标
func (r *Registry) RecordRequest(method, path string, status int, duration time.Duration) {
	r.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RunStarted 标记分配任务开始，返回的函数在结束时调用
func (r *Registry) RunStarted() func() {
	r.activeRuns.Inc()
	return r.activeRuns.Dec
}

// RecordRun 记录分配运行指标
func (r *Registry) RecordRun(strategy string, success bool, duration time.Duration, evaluations int64) {
	status := "success"
	if !success {
		status = "failure"
	}
	r.runs.WithLabelValues(strategy, status).Inc()
	r.runDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	if evaluations > 0 {
		r.evaluations.WithLabelValues(strategy).Add(float64(evaluations))
	}
}

// RecordConflict 记录结果校验冲突
func (r *Registry) RecordConflict(conflictType, severity string) {
	r.conflicts.WithLabelValues(conflictType, severity).Inc()
}

// SetQuality 设置学科分配质量
func (r *Registry) SetQuality(discipline, strategy string, points, gap, ratio, gini float64) {
	r.points.WithLabelValues(discipline, strategy).Set(points)
	r.qualityGap.WithLabelValues(discipline, strategy).Set(gap)
	r.qualityRatio.WithLabelValues(discipline, strategy).Set(ratio)
	r.pointsGini.WithLabelValues(discipline).Set(gini)
}

// RecordCheckpointSave 记录断点保存结果
func (r *Registry) RecordCheckpointSave(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	r.checkpointSaves.WithLabelValues(status).Inc()
}

// SetDBConnections 设置数据库连接数
func (r *Registry) SetDBConnections(open, inUse, idle int) {
	r.dbConnections.WithLabelValues("open").Set(float64(open))
	r.dbConnections.WithLabelValues("in_use").Set(float64(inUse))
	r.dbConnections.WithLabelValues("idle").Set(float64(idle))
}

// Handler 返回全局注册表的指标处理器
func Handler() http.Handler {
	return GetRegistry().Handler()
}

// RecordRequestMetrics 记录请求指标
func RecordRequestMetrics(method, path string, status int, duration time.Duration) {
	GetRegistry().RecordRequest(method, path, status, duration)
}
