// Package metrics 定义 jvsan 的 Prometheus 指标
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jvsan"

// 结果标签取值
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	// 远程命令
	remoteCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "commands_total",
			Help:      "Total number of remote commands by operation and result",
		},
		[]string{"operation", "result"},
	)

	remoteCommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "command_duration_seconds",
			Help:      "Duration of remote commands in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms 到约 25s
		},
		[]string{"operation"},
	)

	// 部署阶段
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provision",
			Name:      "stage_duration_seconds",
			Help:      "Duration of provisioning stages in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s 到约 68min
		},
		[]string{"stage", "result"},
	)

	clustersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provision",
			Name:      "clusters_total",
			Help:      "Total number of cluster provisioning runs by layout and result",
		},
		[]string{"layout", "result"},
	)

	nodeBootDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provision",
			Name:      "node_boot_duration_seconds",
			Help:      "Time from VM start until the storage address is reported by the guest",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 8), // 5s 到约 10min
		},
	)
)

// Registry jvsan 使用的指标注册表
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		remoteCommandsTotal,
		remoteCommandDuration,
		stageDuration,
		clustersTotal,
		nodeBootDuration,
	)
}

// Handler 返回 /metrics 处理器
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Result 根据 err 返回结果标签
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// ObserveRemoteCommand 记录一次远程命令
func ObserveRemoteCommand(operation string, err error, elapsed time.Duration) {
	remoteCommandsTotal.WithLabelValues(operation, Result(err)).Inc()
	remoteCommandDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveStage 记录一个部署阶段
func ObserveStage(stage string, err error, elapsed time.Duration) {
	stageDuration.WithLabelValues(stage, Result(err)).Observe(elapsed.Seconds())
}

// ObserveCluster 记录一次集群部署
func ObserveCluster(layout string, err error) {
	clustersTotal.WithLabelValues(layout, Result(err)).Inc()
}

// ObserveNodeBoot 记录节点启动耗时
func ObserveNodeBoot(elapsed time.Duration) {
	nodeBootDuration.Observe(elapsed.Seconds())
}
