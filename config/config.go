package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Upload   UploadConfig   `mapstructure:"upload"`
	GrabCut  GrabCutConfig  `mapstructure:"grabcut"`
	Animator AnimatorConfig `mapstructure:"animator"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// GrabCutConfig 抠图流水线参数
type GrabCutConfig struct {
	LineWidth       int    `mapstructure:"line_width"`
	Iterations      int    `mapstructure:"iterations"`
	BlurKernel      int    `mapstructure:"blur_kernel"`
	TargetSize      int    `mapstructure:"target_size"`
	KeepLargestOnly bool   `mapstructure:"keep_largest_only"`
	Debug           bool   `mapstructure:"debug"`
	DebugDir        string `mapstructure:"debug_dir"`
	OutputDir       string `mapstructure:"output_dir"`
	MaxConcurrent   int    `mapstructure:"max_concurrent"`
	QueueTimeout    int    `mapstructure:"queue_timeout"`
}

// AnimatorConfig 选区蚂蚁线动画参数
type AnimatorConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	DashLength   float64       `mapstructure:"dash_length"`
	PhaseRate    float64       `mapstructure:"phase_rate"`
	StrokeWidth  float64       `mapstructure:"stroke_width"`
}

// Load 从 YAML 文件加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		// 如果加载失败，返回默认配置
		return Default()
	}
	return cfg
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	g := c.GrabCut
	if g.LineWidth <= 0 {
		return fmt.Errorf("grabcut.line_width must be positive, got %d", g.LineWidth)
	}
	if g.Iterations <= 0 {
		return fmt.Errorf("grabcut.iterations must be positive, got %d", g.Iterations)
	}
	if g.BlurKernel < 1 || g.BlurKernel%2 == 0 {
		return fmt.Errorf("grabcut.blur_kernel must be a positive odd number, got %d", g.BlurKernel)
	}
	if g.MaxConcurrent <= 0 {
		return fmt.Errorf("grabcut.max_concurrent must be positive, got %d", g.MaxConcurrent)
	}
	a := c.Animator
	if a.TickInterval <= 0 {
		return fmt.Errorf("animator.tick_interval must be positive, got %s", a.TickInterval)
	}
	if a.DashLength <= 0 {
		return fmt.Errorf("animator.dash_length must be positive, got %v", a.DashLength)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)

	v.SetDefault("upload.max_size", d.Upload.MaxSize)
	v.SetDefault("upload.allowed_types", d.Upload.AllowedTypes)

	v.SetDefault("grabcut.line_width", d.GrabCut.LineWidth)
	v.SetDefault("grabcut.iterations", d.GrabCut.Iterations)
	v.SetDefault("grabcut.blur_kernel", d.GrabCut.BlurKernel)
	v.SetDefault("grabcut.target_size", d.GrabCut.TargetSize)
	v.SetDefault("grabcut.keep_largest_only", d.GrabCut.KeepLargestOnly)
	v.SetDefault("grabcut.debug", d.GrabCut.Debug)
	v.SetDefault("grabcut.debug_dir", d.GrabCut.DebugDir)
	v.SetDefault("grabcut.output_dir", d.GrabCut.OutputDir)
	v.SetDefault("grabcut.max_concurrent", d.GrabCut.MaxConcurrent)
	v.SetDefault("grabcut.queue_timeout", d.GrabCut.QueueTimeout)

	v.SetDefault("animator.tick_interval", d.Animator.TickInterval)
	v.SetDefault("animator.dash_length", d.Animator.DashLength)
	v.SetDefault("animator.phase_rate", d.Animator.PhaseRate)
	v.SetDefault("animator.stroke_width", d.Animator.StrokeWidth)
}

// Default 返回内置默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:      10 * 1024 * 1024,
			AllowedTypes: []string{"image/jpeg", "image/png", "image/jpg"},
		},
		GrabCut: GrabCutConfig{
			LineWidth:     30,
			Iterations:    5,
			BlurKernel:    3,
			TargetSize:    1080,
			DebugDir:      "./debug",
			OutputDir:     "./cutouts",
			MaxConcurrent: 3,
			QueueTimeout:  30,
		},
		Animator: AnimatorConfig{
			TickInterval: 17 * time.Millisecond,
			DashLength:   20,
			PhaseRate:    40,
			StrokeWidth:  2,
		},
	}
}
