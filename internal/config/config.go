package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	GoTrue   GoTrueConfig   `yaml:"gotrue"`
	Proxmox  ProxmoxConfig  `yaml:"proxmox"`
	CORS     CORSConfig     `yaml:"cors"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"`
}

type DatabaseConfig struct {
	Type   string       `yaml:"type"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	MySQL  MySQLConfig  `yaml:"mysql"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Charset  string `yaml:"charset"`
}

type GoTrueConfig struct {
	URL       string `yaml:"url"`
	JWTSecret string `yaml:"jwt_secret"`
	Timeout   string `yaml:"timeout"`
}

// RequestTimeout parses the configured timeout, defaulting to 10 seconds
func (c GoTrueConfig) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

type ProxmoxConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Node        string `yaml:"node"`
	TokenID     string `yaml:"token_id"`
	TokenSecret string `yaml:"token_secret"`
	VerifySSL   bool   `yaml:"verify_ssl"`
	Timeout     string `yaml:"timeout"`
	VMIDs       []int  `yaml:"vm_ids"`
}

// RequestTimeout parses the configured timeout, defaulting to 15 seconds
func (c ProxmoxConfig) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads the configuration file and environment variables
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables
	if jwtSecret := os.Getenv("VMPANEL_GOTRUE_JWT_SECRET"); jwtSecret != "" {
		cfg.GoTrue.JWTSecret = jwtSecret
	}

	if gotrueURL := os.Getenv("VMPANEL_GOTRUE_URL"); gotrueURL != "" {
		cfg.GoTrue.URL = gotrueURL
	}

	if dbType := os.Getenv("VMPANEL_DB_TYPE"); dbType != "" {
		cfg.Database.Type = dbType
	}

	if dbPath := os.Getenv("VMPANEL_DB_PATH"); dbPath != "" {
		cfg.Database.SQLite.Path = dbPath
	}

	if mysqlHost := os.Getenv("VMPANEL_MYSQL_HOST"); mysqlHost != "" {
		cfg.Database.MySQL.Host = mysqlHost
	}

	if mysqlUser := os.Getenv("VMPANEL_MYSQL_USER"); mysqlUser != "" {
		cfg.Database.MySQL.Username = mysqlUser
	}

	if mysqlPass := os.Getenv("VMPANEL_MYSQL_PASSWORD"); mysqlPass != "" {
		cfg.Database.MySQL.Password = mysqlPass
	}

	if mysqlDB := os.Getenv("VMPANEL_MYSQL_DATABASE"); mysqlDB != "" {
		cfg.Database.MySQL.Database = mysqlDB
	}

	if pveHost := os.Getenv("VMPANEL_PROXMOX_HOST"); pveHost != "" {
		cfg.Proxmox.Host = pveHost
	}

	if pvePort := os.Getenv("VMPANEL_PROXMOX_PORT"); pvePort != "" {
		if port, err := strconv.Atoi(pvePort); err == nil {
			cfg.Proxmox.Port = port
		}
	}

	if pveNode := os.Getenv("VMPANEL_PROXMOX_NODE"); pveNode != "" {
		cfg.Proxmox.Node = pveNode
	}

	if tokenID := os.Getenv("VMPANEL_PROXMOX_TOKEN_ID"); tokenID != "" {
		cfg.Proxmox.TokenID = tokenID
	}

	if tokenSecret := os.Getenv("VMPANEL_PROXMOX_TOKEN_SECRET"); tokenSecret != "" {
		cfg.Proxmox.TokenSecret = tokenSecret
	}

	cfg.applyDefaults()

	// Ensure data directory exists for SQLite
	if cfg.Database.Type == "sqlite" {
		dataDir := filepath.Dir(cfg.Database.SQLite.Path)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// Validate MySQL configuration if MySQL is selected
	if cfg.Database.Type == "mysql" {
		if cfg.Database.MySQL.Username == "" {
			return nil, fmt.Errorf("MySQL username is required")
		}
		if cfg.Database.MySQL.Database == "" {
			return nil, fmt.Errorf("MySQL database name is required")
		}
	}

	if cfg.GoTrue.URL == "" {
		return nil, fmt.Errorf("GoTrue URL is required")
	}
	if cfg.GoTrue.JWTSecret == "" {
		return nil, fmt.Errorf("GoTrue JWT secret is required")
	}
	if cfg.Proxmox.Host == "" {
		return nil, fmt.Errorf("Proxmox host is required")
	}

	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Proxmox.Port == 0 {
		cfg.Proxmox.Port = 8006
	}
	if cfg.Proxmox.Node == "" {
		cfg.Proxmox.Node = "pve"
	}
	if len(cfg.Proxmox.VMIDs) == 0 {
		cfg.Proxmox.VMIDs = []int{106, 103, 101, 102}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
