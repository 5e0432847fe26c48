package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port int `json:"port"`
	// MetricsPort serves prometheus metrics on its own listener;
	// 0 disables it.
	MetricsPort int              `json:"metrics_port"`
	Database    DatabaseConfig   `json:"database"`
	LogConfig   logger.LogConfig `json:"log_config"`
	FileStore   FileStoreConfig  `json:"file_store"`
	AI          AIConfig         `json:"ai"`
	Chat        ChatConfig       `json:"chat"`
	Process     ProcessConfig    `json:"process"`
	Upload      UploadConfig     `json:"upload"`
	CORSAllow   []string         `json:"cors_allow"`
	EmbedCache  EmbedCacheConfig `json:"embed_cache"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIConfig struct {
	Provider      string      `json:"provider"`
	Model         string      `json:"model"`
	EmbedModel    string      `json:"embed_model"`
	MaxInputChars int         `json:"max_input_chars"`
	Timeout       int         `json:"timeout"`
	Data          interface{} `json:"data"`
}

type ChatConfig struct {
	TopK           int     `json:"top_k"`
	ScoreThreshold float64 `json:"score_threshold"`
	MaxHistory     int     `json:"max_history"`
}

type ProcessConfig struct {
	CronSpec  string `json:"cron_spec"`
	BatchSize int    `json:"batch_size"`
}

type UploadConfig struct {
	MaxBytes     int64   `json:"max_bytes"`
	RatePerMin   int     `json:"rate_per_min"`
	UploadDir    string  `json:"upload_dir"`
	MaxSegmentCh int     `json:"max_segment_chars"`
	OverlapCh    int     `json:"overlap_chars"`
	MinSegmentCh int     `json:"min_segment_chars"`
	StaleHours   float64 `json:"stale_hours"`
}

type EmbedCacheConfig struct {
	Size     int `json:"size"`
	TTLHours int `json:"ttl_hours"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.Upload.UploadDir == "" {
		cfg.Upload.UploadDir = "data/uploads"
	}
	// The local store takes its directory from upload.upload_dir unless
	// file_store.data overrides it.
	if cfg.FileStore.Type == "local" && cfg.FileStore.Data == nil {
		cfg.FileStore.Data = map[string]interface{}{"dir": cfg.Upload.UploadDir}
	}
	if cfg.AI.MaxInputChars == 0 {
		cfg.AI.MaxInputChars = 100000
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60
	}
	if cfg.Chat.TopK == 0 {
		cfg.Chat.TopK = 3
	}
	if cfg.Chat.ScoreThreshold == 0 {
		cfg.Chat.ScoreThreshold = 0.5
	}
	if cfg.Chat.MaxHistory == 0 {
		cfg.Chat.MaxHistory = 5
	}
	if cfg.Process.CronSpec == "" {
		cfg.Process.CronSpec = "* * * * *"
	}
	if cfg.Process.BatchSize == 0 {
		cfg.Process.BatchSize = 5
	}
	if cfg.Upload.MaxBytes == 0 {
		cfg.Upload.MaxBytes = 20 * 1024 * 1024
	}
	if cfg.Upload.RatePerMin == 0 {
		cfg.Upload.RatePerMin = 30
	}
	if cfg.Upload.MaxSegmentCh == 0 {
		cfg.Upload.MaxSegmentCh = 500
	}
	if cfg.Upload.OverlapCh == 0 {
		cfg.Upload.OverlapCh = 50
	}
	if cfg.Upload.MinSegmentCh == 0 {
		cfg.Upload.MinSegmentCh = 100
	}
	if cfg.Upload.StaleHours == 0 {
		cfg.Upload.StaleHours = 24
	}
	if cfg.EmbedCache.Size == 0 {
		cfg.EmbedCache.Size = 10000
	}
	if cfg.EmbedCache.TTLHours == 0 {
		cfg.EmbedCache.TTLHours = 2
	}
	return &cfg, nil
}
