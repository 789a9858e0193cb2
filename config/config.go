package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Backends BackendsConfig `mapstructure:"backends"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	DryRun   bool           `mapstructure:"dry_run"`
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

type StorageConfig struct {
	DataDir       string `mapstructure:"data_dir"`
	MaxUploadSize int64  `mapstructure:"max_upload_size"`
}

// BackendsConfig 下游模型服务地址与超时配置
type BackendsConfig struct {
	GenerationURL   string        `mapstructure:"generation_url"`
	Segment2DURL    string        `mapstructure:"segment2d_url"`
	Segment3DURL    string        `mapstructure:"segment3d_url"`
	SAM3DURL        string        `mapstructure:"sam3d_url"`
	GenerateTimeout time.Duration `mapstructure:"generate_timeout"`
	SegmentTimeout  time.Duration `mapstructure:"segment_timeout"`
}

// OpenAIConfig 聊天/视觉模型配置
// BaseURL 必须是完整的 API 根地址（如 https://api.openai.com/v1），不做后缀猜测
type OpenAIConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	ChatModel   string        `mapstructure:"chat_model"`
	VisionModel string        `mapstructure:"vision_model"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Load 从 YAML 文件加载配置，环境变量 PHIDIAS_* 可覆盖同名配置项
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 设置默认值
	setDefaults(v)

	v.SetEnvPrefix("PHIDIAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		// 如果加载失败，返回默认配置
		return getDefaultConfig()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.max_upload_size", 20*1024*1024)

	v.SetDefault("backends.generation_url", "http://localhost:8000")
	v.SetDefault("backends.segment2d_url", "http://localhost:8002")
	v.SetDefault("backends.segment3d_url", "http://localhost:5001")
	v.SetDefault("backends.sam3d_url", "http://localhost:8001")
	v.SetDefault("backends.generate_timeout", 10*time.Minute)
	v.SetDefault("backends.segment_timeout", 60*time.Second)

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.chat_model", "gpt-4o")
	v.SetDefault("openai.vision_model", "gpt-4o")
	v.SetDefault("openai.timeout", 60*time.Second)

	v.SetDefault("dry_run", false)
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Storage: StorageConfig{
			DataDir:       "./data",
			MaxUploadSize: 20 * 1024 * 1024,
		},
		Backends: BackendsConfig{
			GenerationURL:   "http://localhost:8000",
			Segment2DURL:    "http://localhost:8002",
			Segment3DURL:    "http://localhost:5001",
			SAM3DURL:        "http://localhost:8001",
			GenerateTimeout: 10 * time.Minute,
			SegmentTimeout:  60 * time.Second,
		},
		OpenAI: OpenAIConfig{
			BaseURL:     "https://api.openai.com/v1",
			APIKey:      "",
			ChatModel:   "gpt-4o",
			VisionModel: "gpt-4o",
			Timeout:     60 * time.Second,
		},
		DryRun: false,
	}
}
