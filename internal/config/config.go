package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/infra/security"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port      int           `yaml:"port"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// SourceConfig selects where raw product records come from.
type SourceConfig struct {
	Kind     string        `yaml:"kind"` // file|postgres|sqlite
	Path     string        `yaml:"path"` // items file for kind=file
	Table    string        `yaml:"table"`
	CacheTTL time.Duration `yaml:"cache_ttl"` // 0 disables the cache decorator
}

type RoutingConfig struct {
	ReferenceInputUnits map[model.TaskType]int `yaml:"reference_input_units"`
}

type RetryConfig struct {
	BaseDelay           time.Duration `yaml:"base_delay"`
	RateLimitMultiplier int           `yaml:"rate_limit_multiplier"`
	MaxDelay            time.Duration `yaml:"max_delay"`
}

type SchedulerConfig struct {
	Workers     int    `yaml:"workers"`
	Cron        string `yaml:"cron"`
	WatchSource bool   `yaml:"watch_source"`
}

type PublisherConfig struct {
	Kind             string        `yaml:"kind"` // http|log
	URL              string        `yaml:"url"`
	Token            string        `yaml:"token"`
	Timeout          time.Duration `yaml:"timeout"`
	TitleLimit       int           `yaml:"title_limit"`
	DescriptionLimit int           `yaml:"description_limit"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type Config struct {
	Log       LogConfig              `yaml:"log"`
	Admin     AdminConfig            `yaml:"admin"`
	Database  DatabaseConfig         `yaml:"database"`
	SQLite    SQLiteConfig           `yaml:"sqlite"`
	Redis     RedisConfig            `yaml:"redis"`
	Source    SourceConfig           `yaml:"source"`
	Providers []model.ProviderConfig `yaml:"providers"`
	Limits    model.CostLimits       `yaml:"limits"`
	Routing   RoutingConfig          `yaml:"routing"`
	Retry     RetryConfig            `yaml:"retry"`
	Scheduler SchedulerConfig        `yaml:"scheduler"`
	Publisher PublisherConfig        `yaml:"publisher"`
	Telegram  TelegramConfig         `yaml:"telegram"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the yaml file at path. ${VAR} references are expanded from
// the process environment before parsing.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %v: %w", err, domain.ErrConfig)
	}
	if err := cfg.openSecrets(os.Getenv(security.KeyEnv)); err != nil {
		return nil, fmt.Errorf("config secrets: %v: %w", err, domain.ErrConfig)
	}
	cfg.applyDefaults()
	cfg.Runtime.Dev = dev
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// openSecrets replaces "enc:" values with their plaintext.
func (c *Config) openSecrets(key string) error {
	fields := []*string{&c.Admin.JWTSecret, &c.Redis.Password, &c.Database.URL, &c.Publisher.Token, &c.Telegram.Token}
	for i := range c.Providers {
		fields = append(fields, &c.Providers[i].APIKey)
	}
	return security.OpenAll(key, fields...)
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Admin.Port <= 0 {
		c.Admin.Port = 8080
	}
	if c.Admin.TokenTTL <= 0 {
		c.Admin.TokenTTL = 24 * time.Hour
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 4
	}
	c.Redis.TTL = normalizeTTL(c.Redis.TTL)
	if c.Source.Kind == "" {
		c.Source.Kind = "file"
	}
	if c.Source.Table == "" {
		c.Source.Table = "products"
	}
	if c.Scheduler.Workers <= 0 {
		c.Scheduler.Workers = 4
	}
	if c.Publisher.Kind == "" {
		c.Publisher.Kind = "log"
	}
	if c.Publisher.Timeout <= 0 {
		c.Publisher.Timeout = 30 * time.Second
	}
	if c.Publisher.TitleLimit <= 0 {
		c.Publisher.TitleLimit = 70
	}
	if c.Publisher.DescriptionLimit <= 0 {
		c.Publisher.DescriptionLimit = 170
	}
	for i := range c.Providers {
		c.Providers[i].Name = model.NormalizeProviderName(c.Providers[i].Name)
		c.Providers[i].Kind = strings.ToLower(strings.TrimSpace(c.Providers[i].Kind))
	}
}

// Validate reports the first problem found. Errors wrap domain.ErrConfig.
func (c *Config) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("config: "+format+": %w", append(args, domain.ErrConfig)...)
	}
	if len(c.Providers) == 0 {
		return bad("no providers configured")
	}
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return bad("providers[%d]: name is required", i)
		}
		if seen[p.Name] {
			return bad("duplicate provider %q", p.Name)
		}
		seen[p.Name] = true
		if p.Kind == "" {
			return bad("provider %q: kind is required", p.Name)
		}
		if p.Category != "" && !p.Category.Valid() {
			return bad("provider %q: category %q", p.Name, p.Category)
		}
		if p.MaxOutputTokens < 0 {
			return bad("provider %q: negative max_output_tokens", p.Name)
		}
		if p.Pricing.InputPer1KMicros < 0 || p.Pricing.OutputPer1KMicros < 0 || p.Pricing.PerCallMicros < 0 {
			return bad("provider %q: negative pricing", p.Name)
		}
	}
	if err := c.Limits.Validate(); err != nil {
		return err
	}
	for task, units := range c.Routing.ReferenceInputUnits {
		if !task.Valid() || units < 0 {
			return bad("routing.reference_input_units[%s]=%d", task, units)
		}
	}
	switch c.Source.Kind {
	case "file":
		if c.Source.Path == "" {
			return bad("source.path is required for kind=file")
		}
	case "postgres":
		if c.Database.URL == "" {
			return bad("database.url is required for source kind=postgres")
		}
	case "sqlite":
		if c.SQLite.Path == "" {
			return bad("sqlite.path is required for source kind=sqlite")
		}
	default:
		return bad("unknown source kind %q", c.Source.Kind)
	}
	switch c.Publisher.Kind {
	case "log":
	case "http":
		if c.Publisher.URL == "" {
			return bad("publisher.url is required for kind=http")
		}
	default:
		return bad("unknown publisher kind %q", c.Publisher.Kind)
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		return bad("telegram.chat_id is required with a token")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
