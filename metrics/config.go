package metrics

// Config 指标配置
//
//	metrics:
//	  enabled: true
//	  service_name: "shardis"
//	  port: 9090
//	  path: "/metrics"
type Config struct {
	// Enabled 为 false 时 New 返回 noop Meter
	Enabled bool `mapstructure:"enabled"`

	// ServiceName/Version 写入 OpenTelemetry Resource
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`

	// Port 大于 0 时启动 Prometheus HTTP 服务
	Port int `mapstructure:"port"`

	// Path Prometheus 采集路径，默认 /metrics
	Path string `mapstructure:"path"`
}

func (c *Config) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "shardis"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}
