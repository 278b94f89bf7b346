package config

import (
	"time"

	"gopkg.in/yaml.v2"
)

// 默认值，与线上部署保持一致
const (
	DefaultTickInterval      = 2 * time.Second
	DefaultCycle             = 22
	DefaultEmergencyDuration = 20
	DefaultBaseGreen         = 10
	DefaultDensityFactor     = 3
	DefaultPredictTimeout    = 500 * time.Millisecond
	DefaultCacheTTL          = 30 * time.Second
	DefaultHTTPAddr          = ":5000"
	DefaultAdvisorTimeout    = 15 * time.Second
)

// RuntimeConfig 运行时配置
// 功能：存储填充默认值之后的配置信息
// 说明：All保留原始配置，其余字段为各模块实际使用的配置
type RuntimeConfig struct {
	All Config     // 全部配置
	C   Control    // 控制循环配置
	E   Congestion // 拥堵估计配置
	S   Server     // HTTP接口配置
	A   Advisor    // 智能问答配置
	O   Output     // 输出配置
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：创建运行时配置对象，为未填写的字段补充默认值
// 参数：config-原始配置对象
// 返回：初始化的运行时配置指针
func NewRuntimeConfig(config Config) *RuntimeConfig {
	rc := &RuntimeConfig{
		All: config,
		C:   config.Control,
		E:   config.Congestion,
		S:   config.Server,
		A:   config.Advisor,
		O:   config.Output,
	}

	if rc.C.TickInterval <= 0 {
		rc.C.TickInterval = DefaultTickInterval
	}
	if rc.C.DefaultCycle <= 0 {
		rc.C.DefaultCycle = DefaultCycle
	}
	if rc.C.EmergencyDuration <= 0 {
		rc.C.EmergencyDuration = DefaultEmergencyDuration
	}
	if rc.C.BaseGreen <= 0 {
		rc.C.BaseGreen = DefaultBaseGreen
	}
	if rc.C.DensityFactor <= 0 {
		rc.C.DensityFactor = DefaultDensityFactor
	}
	if len(rc.C.InitialDensities) == 0 {
		rc.C.InitialDensities = map[string]int{"NORTH": 4, "SOUTH": 1, "EAST": 0, "WEST": 2}
	}
	if len(rc.C.InitialCounts) == 0 {
		rc.C.InitialCounts = map[string]int{"NORTH": 7, "SOUTH": 3, "EAST": 1, "WEST": 5}
	}
	if rc.E.Timeout <= 0 {
		rc.E.Timeout = DefaultPredictTimeout
	}
	if rc.E.CacheTTL <= 0 {
		rc.E.CacheTTL = DefaultCacheTTL
	}
	if rc.S.HTTP == "" {
		rc.S.HTTP = DefaultHTTPAddr
	}
	if len(rc.S.CorsOrigins) == 0 {
		rc.S.CorsOrigins = []string{"*"}
	}
	if rc.A.APIKeyEnv == "" {
		rc.A.APIKeyEnv = "GEMINI_API_KEY"
	}
	if rc.A.Temperature == 0 {
		rc.A.Temperature = 0.3
	}
	if rc.A.MaxOutputTokens <= 0 {
		rc.A.MaxOutputTokens = 300
	}
	if rc.A.Timeout <= 0 {
		rc.A.Timeout = DefaultAdvisorTimeout
	}
	if rc.O.DB == "" {
		rc.O.DB = "signal"
	}
	if rc.O.Col == "" {
		rc.O.Col = "ticks"
	}
	return rc
}

// Parse 严格解析YAML配置
// 功能：解析配置文件内容，出现未知字段时报错
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}
