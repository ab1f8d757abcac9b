package config

import (
	"fmt"
	"time"

	"tasknotes/internal/dates"
	"tasknotes/pkg/config"
)

type Config struct {
	DB      config.DBConfig      `yaml:"db"`
	Redis   config.RedisConfig   `yaml:"redis"`
	MQ      config.MQConfig      `yaml:"mq"`
	JWT     config.JWTConfig     `yaml:"jwt"`
	Server  config.ServerConfig  `yaml:"server"`
	Storage config.StorageConfig `yaml:"storage"`
	Dates   config.DatesConfig   `yaml:"dates"`
	Otel    config.OtelConfig    `yaml:"otel"`
	Log     config.LogConfig     `yaml:"log"`
}

// Load reads config/<CONFIG_ENV>.yaml over config/base.yaml (directory overridable
// with CONFIG_DIR), applies environment overrides and fills defaults.
func Load() (*Config, error) {
	var cfg Config
	dir := config.GetEnv("CONFIG_DIR", "config")
	if err := config.Decode(config.GetConfigEnv(), dir, &cfg); err != nil {
		return nil, err
	}

	// 环境变量覆盖
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideStorageFromEnv(&cfg.Storage)
	config.OverrideOtelFromEnv(&cfg.Otel)

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.JWT.TTL <= 0 {
		c.JWT.TTL = 24 * time.Hour
	}
	if c.Storage.Root == "" {
		c.Storage.Root = "storage"
	}
	if c.Storage.MaxFileKB <= 0 {
		c.Storage.MaxFileKB = 10240
	}
	if c.Storage.ReconcileEvery <= 0 {
		c.Storage.ReconcileEvery = time.Minute
	}
	if c.Storage.MaxCleanupTries <= 0 {
		c.Storage.MaxCleanupTries = 5
	}
	if c.Storage.OrphanGrace <= 0 {
		c.Storage.OrphanGrace = 15 * time.Minute
	}
	if c.Dates.InputLayout == "" {
		c.Dates.InputLayout = dates.DefaultLayout
		c.Dates.DisplayFormat = dates.DefaultDisplay
	}
	if c.DB.SlowQueryMS <= 0 {
		c.DB.SlowQueryMS = 200
	}
	if c.Otel.ServiceName == "" {
		c.Otel.ServiceName = "tasknotes-api"
	}
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required (set JWT_SECRET)")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	return nil
}
