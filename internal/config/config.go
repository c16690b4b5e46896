package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/franckalain/cropguard/internal/history"
	"github.com/franckalain/cropguard/internal/kv"
)

// Config holds all application configuration
type Config struct {
	Server struct {
		Port      string `json:"port" yaml:"port"`
		StaticDir string `json:"static_dir" yaml:"static_dir"`
		Debug     bool   `json:"debug" yaml:"debug"`
	} `json:"server" yaml:"server"`

	Storage kv.Config `json:"storage" yaml:"storage"`

	History struct {
		Capacity        int    `json:"capacity" yaml:"capacity"`
		TimestampLayout string `json:"timestamp_layout" yaml:"timestamp_layout"`
	} `json:"history" yaml:"history"`

	ML struct {
		Type       string `json:"type" yaml:"type"` // "local", "google" or "gemini"
		ConfigPath string `json:"config_path" yaml:"config_path"`
	} `json:"ml" yaml:"ml"`
}

// LoadConfig loads configuration from a JSON or YAML file, applies
// CROPGUARD_* environment overrides and fills defaults.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	// Handle missing values
	if config.Server.Port == "" {
		return nil, fmt.Errorf("server port is not set in config file")
	}
	if config.Server.StaticDir == "" {
		config.Server.StaticDir = "./static"
	}
	if config.Storage.Backend == "" {
		config.Storage.Backend = "sqlite"
	}
	if config.Storage.Path == "" {
		switch config.Storage.Backend {
		case "sqlite":
			config.Storage.Path = "cropguard.db"
		case "file":
			config.Storage.Path = "cropguard.json"
		}
	}
	if config.History.Capacity <= 0 {
		config.History.Capacity = history.DefaultCapacity
	}
	if config.History.TimestampLayout == "" {
		config.History.TimestampLayout = history.DefaultTimestampLayout
	}
	if config.ML.Type == "" {
		config.ML.Type = "local"
	}

	return &config, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"CROPGUARD_PORT":            &c.Server.Port,
		"CROPGUARD_STATIC_DIR":      &c.Server.StaticDir,
		"CROPGUARD_STORAGE_BACKEND": &c.Storage.Backend,
		"CROPGUARD_STORAGE_PATH":    &c.Storage.Path,
		"CROPGUARD_ML_TYPE":         &c.ML.Type,
		"CROPGUARD_ML_CONFIG":       &c.ML.ConfigPath,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("CROPGUARD_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CROPGUARD_DEBUG: %w", err)
		}
		c.Server.Debug = debug
	}
	if v := os.Getenv("CROPGUARD_HISTORY_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CROPGUARD_HISTORY_CAPACITY: %w", err)
		}
		c.History.Capacity = n
	}
	return nil
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	// First try environment variable
	if path := os.Getenv("CROPGUARD_CONFIG"); path != "" {
		return path
	}

	// Then try config directory
	configDir := "config"
	if _, err := os.Stat(configDir); err == nil {
		return filepath.Join(configDir, "config.json")
	}

	// Finally, try current directory
	return "config.json"
}
