package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Remote    RemoteConfig    `yaml:"remote"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Auth      AuthConfig      `yaml:"auth"`
	Users     []User          `yaml:"users"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ExtractorConfig points at the vision/chat extraction API.
type ExtractorConfig struct {
	APIURL     string `yaml:"api_url"`
	APIToken   string `yaml:"api_token"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// RemoteConfig describes the shared redis ledger. An empty Addr means the
// session runs in local mode.
type RemoteConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type SnapshotConfig struct {
	DBPath string `yaml:"db_path"`
}

// MonitorConfig carries the change-detection tunables. The defaults mirror
// the values the operators have been running with; none of them is derived
// from a hard requirement.
type MonitorConfig struct {
	IntervalSec    int     `yaml:"interval_sec"`
	GridSize       int     `yaml:"grid_size"`
	PixelThreshold int     `yaml:"pixel_threshold"`
	MinChangePct   float64 `yaml:"min_change_pct"`
	SnapshotURL    string  `yaml:"snapshot_url"`
	LogLines       int     `yaml:"log_lines"`
}

func (m *MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalSec) * time.Second
}

// LedgerConfig carries the dedup recency windows.
type LedgerConfig struct {
	OrderWindowMin   int `yaml:"order_window_min"`
	ProductWindowMin int `yaml:"product_window_min"`
}

func (l *LedgerConfig) OrderWindow() time.Duration {
	return time.Duration(l.OrderWindowMin) * time.Minute
}

func (l *LedgerConfig) ProductWindow() time.Duration {
	return time.Duration(l.ProductWindowMin) * time.Minute
}

// ArchiveConfig enables object-storage archival of analyzed frames.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

// User is an operator account. Seller is the display name forwarded to the
// extractor so it can tell seller posts from buyer messages.
type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Seller   string `yaml:"seller"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Extractor.TimeoutSec == 0 {
		cfg.Extractor.TimeoutSec = 60
	}
	if cfg.Remote.KeyPrefix == "" {
		cfg.Remote.KeyPrefix = "groupbuy"
	}
	if cfg.Snapshot.DBPath == "" {
		cfg.Snapshot.DBPath = "ledger.db"
	}
	if cfg.Monitor.IntervalSec == 0 {
		cfg.Monitor.IntervalSec = 15
	}
	if cfg.Monitor.GridSize == 0 {
		cfg.Monitor.GridSize = 50
	}
	if cfg.Monitor.PixelThreshold == 0 {
		cfg.Monitor.PixelThreshold = 30
	}
	if cfg.Monitor.MinChangePct == 0 {
		cfg.Monitor.MinChangePct = 2.0
	}
	if cfg.Monitor.LogLines == 0 {
		cfg.Monitor.LogLines = 10
	}
	if cfg.Ledger.OrderWindowMin == 0 {
		cfg.Ledger.OrderWindowMin = 10
	}
	if cfg.Ledger.ProductWindowMin == 0 {
		cfg.Ledger.ProductWindowMin = 60
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}

	GlobalConfig = &cfg
	return &cfg, nil
}

// FindUser finds an operator account by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
