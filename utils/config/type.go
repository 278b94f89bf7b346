package config

import "time"

// Control 信号控制配置
// 功能：定义路口控制循环的核心参数
// 说明：绿灯时长按 base_green + density_factor * density 计算
type Control struct {
	TickInterval      time.Duration  `yaml:"tick_interval"`               // 控制循环周期
	JunctionID        int32          `yaml:"junction_id"`                 // 对外RPC中报告的路口ID
	DefaultCycle      int32          `yaml:"default_cycle"`               // 周期重置时长（秒）
	EmergencyDuration int32          `yaml:"emergency_duration"`          // 紧急模式时长（秒）
	BaseGreen         int32          `yaml:"base_green"`                  // 基础绿灯时长（秒）
	DensityFactor     int32          `yaml:"density_factor"`              // 每单位密度增加的绿灯时长（秒）
	Seed              uint64         `yaml:"seed,omitempty"`              // 模拟采样的随机种子
	InitialDensities  map[string]int `yaml:"initial_densities,omitempty"` // 初始车道密度
	InitialCounts     map[string]int `yaml:"initial_counts,omitempty"`    // 初始车道车辆数
}

// Congestion 拥堵估计配置
// 功能：指定拥堵分类模型的来源与调用约束
type Congestion struct {
	ModelFile    string        `yaml:"model_file,omitempty"`    // 本地模型文件（JSON随机森林）
	PredictorURL string        `yaml:"predictor_url,omitempty"` // 远程预测服务，设置后优先于本地模型
	Timeout      time.Duration `yaml:"timeout"`                 // 单次预测超时
	CacheTTL     time.Duration `yaml:"cache_ttl"`               // 预测结果缓存时长
	Watch        bool          `yaml:"watch,omitempty"`         // 监听模型文件变化并热加载
}

// Server HTTP接口配置
type Server struct {
	HTTP        string   `yaml:"http"`                   // 监听地址
	CorsOrigins []string `yaml:"cors_origins,omitempty"` // 允许的跨域来源
}

// Advisor 智能问答配置
// 功能：定义外部文本生成服务的调用参数
// 说明：URL为空时问答功能返回固定的不可用提示
type Advisor struct {
	URL             string        `yaml:"url,omitempty"`
	APIKeyEnv       string        `yaml:"api_key_env,omitempty"` // 保存API Key的环境变量名
	Temperature     float64       `yaml:"temperature"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
}

// Output 输出配置（MongoDB）
type Output struct {
	URI string `yaml:"uri,omitempty"` // MongoDB连接字符串，为空则不记录
	DB  string `yaml:"db,omitempty"`  // 数据库名
	Col string `yaml:"col,omitempty"` // 集合名
}

// Config YAML配置文件的根结构
// 功能：定义整个信号控制服务的配置结构
type Config struct {
	Control    Control    `yaml:"control"`
	Congestion Congestion `yaml:"congestion"`
	Server     Server     `yaml:"server"`
	Advisor    Advisor    `yaml:"advisor"`
	Output     Output     `yaml:"output"`
}
