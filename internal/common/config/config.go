package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Consul   ConsulConfig   `json:"consul"`
	Jaeger   JaegerConfig   `json:"jaeger"`
	MQTT     MQTTConfig     `json:"mqtt"`
	Auth     AuthConfig     `json:"auth"`
	Booking  BookingConfig  `json:"booking"`
	Log      LogConfig      `json:"log"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Name     string `json:"name"`      // 服务名称
	Host     string `json:"host"`      // 服务地址
	HTTPPort int    `json:"http_port"` // HTTP端口
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string `json:"driver"`   // 数据库驱动
	Host     string `json:"host"`     // 数据库地址
	Port     int    `json:"port"`     // 数据库端口
	User     string `json:"user"`     // 用户名
	Password string `json:"password"` // 密码
	Database string `json:"database"` // 数据库名
	MaxIdle  int    `json:"max_idle"` // 最大空闲连接
	MaxOpen  int    `json:"max_open"` // 最大打开连接
}

// RedisConfig Redis配置（报表统计缓存）
type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// ConsulConfig Consul配置
type ConsulConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// JaegerConfig Jaeger配置
type JaegerConfig struct {
	Endpoint string  `json:"endpoint"`
	Sampler  float64 `json:"sampler"` // 采样率 0.0-1.0
}

// MQTTConfig 领域事件发布配置（外部通知方订阅用）
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`       // 例如 tcp://localhost:1883
	ClientID    string `json:"client_id"`    // 客户端标识
	TopicPrefix string `json:"topic_prefix"` // 主题前缀，例如 fleet/bookings
	Username    string `json:"username"`
	Password    string `json:"password"`
}

// AuthConfig JWT鉴权配置
type AuthConfig struct {
	Enabled      bool   `json:"enabled"`
	JWTSecret    string `json:"jwt_secret"`
	Issuer       string `json:"issuer"`
	Audience     string `json:"audience"`
	TokenTTLHour int    `json:"token_ttl_hour"` // token有效期（小时）
}

// BookingConfig 预订引擎配置
type BookingConfig struct {
	MaintenanceIntervalKM int64 `json:"maintenance_interval_km"` // 保养里程间隔（公里）
	LockWaitMS            int   `json:"lock_wait_ms"`            // 车辆锁最长等待（毫秒）
	SweepIntervalMinutes  int   `json:"sweep_interval_minutes"`  // 后台巡检间隔（分钟）
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, file
	Path   string `json:"path"`   // 日志文件路径
}

var (
	globalConfig *Config
	configOnce   sync.Once
)

// LoadConfig 加载配置
func LoadConfig(configPath string) (*Config, error) {
	var err error
	configOnce.Do(func() {
		globalConfig = &Config{}
		// 如果配置文件不存在，使用默认配置
		if _, err = os.Stat(configPath); os.IsNotExist(err) {
			logrus.Warnf("Config file not found: %s, using default config", configPath)
			globalConfig = defaultConfig()
			err = nil
			return
		}

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file: %w", readErr)
			return
		}

		if unmarshalErr := json.Unmarshal(data, globalConfig); unmarshalErr != nil {
			err = fmt.Errorf("failed to parse config file: %w", unmarshalErr)
			return
		}

		applyBookingDefaults(globalConfig)
	})

	if err != nil {
		return nil, err
	}

	return globalConfig, nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	if globalConfig == nil {
		return defaultConfig()
	}
	return globalConfig
}

// applyBookingDefaults 对预订引擎相关的缺省字段兜底
func applyBookingDefaults(cfg *Config) {
	if cfg.Booking.MaintenanceIntervalKM <= 0 {
		cfg.Booking.MaintenanceIntervalKM = 10000
	}
	if cfg.Booking.LockWaitMS <= 0 {
		cfg.Booking.LockWaitMS = 3000
	}
	if cfg.Booking.SweepIntervalMinutes <= 0 {
		cfg.Booking.SweepIntervalMinutes = 60 * 24
	}
	if cfg.Auth.TokenTTLHour <= 0 {
		cfg.Auth.TokenTTLHour = 24
	}
}

// defaultConfig 默认配置（开发环境）
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:     "booking-service",
			Host:     "0.0.0.0",
			HTTPPort: 8080,
		},
		Database: DatabaseConfig{
			Driver:   "mysql",
			Host:     "localhost",
			Port:     3306,
			User:     "root",
			Password: "root",
			Database: "fleetlinkbook",
			MaxIdle:  10,
			MaxOpen:  100,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Consul: ConsulConfig{
			Host: "localhost",
			Port: 8500,
		},
		Jaeger: JaegerConfig{
			Endpoint: "localhost:6831",
			Sampler:  1.0,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Broker:      "tcp://localhost:1883",
			ClientID:    "booking-service",
			TopicPrefix: "fleet/bookings",
		},
		Auth: AuthConfig{
			Enabled:      true,
			JWTSecret:    "dev-secret-change-me",
			Issuer:       "fleetlinkbook",
			TokenTTLHour: 24,
		},
		Booking: BookingConfig{
			MaintenanceIntervalKM: 10000,
			LockWaitMS:            3000,
			SweepIntervalMinutes:  60 * 24,
		},
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
			Output: "stdout",
			Path:   "logs/app.log",
		},
	}
}
