// Package metrics 提供监控指标功能.
// 支持Prometheus标准，收集应用和系统指标.
//
// Example:
//
//	import "github.com/yeisme/chest/pkg/metrics"
//
//	err := metrics.InitMetrics(config.Metrics)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// 记录指标
//	metrics.RequestCounter.WithLabelValues("GET", "/api/v1/chest/objects/:id", "200").Inc()
//	metrics.ObjectsCommitted.WithLabelValues("new").Inc()
package metrics

import (
	"fmt"
	"net/http"
	_ "net/http/pprof" // 自动注册pprof端点
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/chest/pkg/configs"
)

// 全局指标变量.
var (
	// RequestCounter HTTP请求计数器.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration HTTP请求持续时间.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// InFlightRequests 正在处理的请求数.
	InFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests being served",
		},
	)

	// ObjectsCommitted 提交的对象数，result=new|dedup.
	ObjectsCommitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chest",
			Name:      "objects_committed_total",
			Help:      "Number of committed objects by result",
		},
		[]string{"result"},
	)

	// ObjectsEvicted 因容量淘汰的对象数.
	ObjectsEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chest",
			Name:      "objects_evicted_total",
			Help:      "Number of objects evicted to honour the size budget",
		},
	)

	// StoreBytes 当前索引内的字节数与容量上限，kind=total|max.
	StoreBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "chest",
			Name:      "store_bytes",
			Help:      "Indexed bytes and configured size budget",
		},
		[]string{"kind"},
	)

	// MissingRequests 发出的缺失对象广播数，source=sweep|negotiation|client.
	MissingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chest",
			Name:      "missing_requests_total",
			Help:      "Number of missing-file-needed broadcasts",
		},
		[]string{"source"},
	)

	// NegotiationResults 协商结果，result=resolved|exhausted|canceled.
	NegotiationResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chest",
			Name:      "negotiation_results_total",
			Help:      "Outcome of missing object negotiations",
		},
		[]string{"result"},
	)

	// SweepDuration 周期任务耗时.
	SweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chest",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of replication sweeps",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"sweep"},
	)

	// registry Prometheus注册表.
	registry = prometheus.NewRegistry()

	initialized atomic.Bool
)

// InitMetrics 注册指标，Labels 作为常量标签附加到所有指标上，重复调用只注册一次.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled || !initialized.CompareAndSwap(false, true) {
		return nil
	}

	reg := prometheus.WrapRegistererWith(prometheus.Labels(config.Labels), registry)

	if config.RuntimeMetrics {
		if err := registerAll(reg,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		); err != nil {
			return err
		}
	}

	return registerAll(reg,
		RequestCounter, RequestDuration, InFlightRequests,
		ObjectsCommitted, ObjectsEvicted, StoreBytes,
		MissingRequests, NegotiationResults, SweepDuration,
	)
}

func registerAll(reg prometheus.Registerer, cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register collector: %w", err)
		}
	}

	return nil
}

// StartMetricsServer 在主路由上挂载指标端点，开启 Pprof 时同时挂载 /debug/pprof.
func StartMetricsServer(config configs.MetricsConfig, engine *gin.Engine) error {
	if !config.Enabled {
		return nil
	}

	engine.GET(config.Path, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))

	if config.Pprof {
		engine.GET("/debug/pprof/*any", gin.WrapH(http.DefaultServeMux))
	}

	return nil
}
