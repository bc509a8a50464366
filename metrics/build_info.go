package metrics

import (
	"runtime"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
)

// RegisterBuildInfo 注册值恒为 1 的 build_info 指标，只有首次调用生效。
// version 为空时回退到模块构建信息中的版本。
func (m *Metrics) RegisterBuildInfo(serviceName, version string) {
	if m == nil || m.BuildInfo != nil {
		return
	}
	if version == "" {
		version = moduleVersion()
	}

	m.BuildInfo = m.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Service build information, always 1",
	}, []string{"service", "version", "go_version"})
	m.BuildInfo.WithLabelValues(orUnknown(serviceName), orUnknown(version), runtime.Version()).Set(1)
}

func moduleVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return ""
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
