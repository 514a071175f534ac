package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samirrijal/marketmap/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig             `mapstructure:"server"`
	Log        LogConfig                `mapstructure:"log"`
	Database   DatabaseConfig           `mapstructure:"database"`
	NATS       NATSConfig               `mapstructure:"nats"`
	Valkey     ValkeyConfig             `mapstructure:"valkey"`
	Telemetry  TelemetryConfig          `mapstructure:"telemetry"`
	Temporal   TemporalConfig           `mapstructure:"temporal"`
	USDA       USDAConfig               `mapstructure:"usda"`
	Clustering ClusteringConfig         `mapstructure:"clustering"`
	Profiles   map[string]ProfileConfig `mapstructure:"profiles"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort     string        `mapstructure:"host_port"`
	Namespace    string        `mapstructure:"namespace"`
	TaskQueue    string        `mapstructure:"task_queue"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
}

// USDAConfig configures the USDA Local Food Portal client.
type USDAConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	Burst          int           `mapstructure:"burst"`
	SampleFallback bool          `mapstructure:"sample_fallback"`
	States         []string      `mapstructure:"states"`
}

type ClusteringConfig struct {
	Backend         string `mapstructure:"backend"`
	IndexCacheSize  int    `mapstructure:"index_cache_size"`
	DefaultPlatform string `mapstructure:"default_platform"`
}

// ProfileConfig overrides the default performance profile for a platform.
// Zero values keep the default.
type ProfileConfig struct {
	Radius            float64             `mapstructure:"radius"`
	Extent            float64             `mapstructure:"extent"`
	NodeSize          int                 `mapstructure:"node_size"`
	MinPoints         int                 `mapstructure:"min_points"`
	MinZoom           int                 `mapstructure:"min_zoom"`
	MaxZoom           int                 `mapstructure:"max_zoom"`
	Budgets           domain.RenderBudget `mapstructure:"budgets"`
	Debounce          time.Duration       `mapstructure:"debounce"`
	FallbackSpan      float64             `mapstructure:"fallback_span"`
	DisableClustering bool                `mapstructure:"disable_clustering"`
}

func setProfileDefaults(v *viper.Viper, name string, radius float64, low, medium, high int, debounce time.Duration) {
	p := domain.DefaultProfile(name)
	key := "profiles." + name + "."
	v.SetDefault(key+"radius", radius)
	v.SetDefault(key+"extent", p.Extent)
	v.SetDefault(key+"node_size", p.NodeSize)
	v.SetDefault(key+"min_points", p.MinPoints)
	v.SetDefault(key+"min_zoom", p.MinZoom)
	v.SetDefault(key+"max_zoom", p.MaxZoom)
	v.SetDefault(key+"budgets.low", low)
	v.SetDefault(key+"budgets.medium", medium)
	v.SetDefault(key+"budgets.high", high)
	v.SetDefault(key+"debounce", debounce)
	v.SetDefault(key+"fallback_span", p.FallbackSpan)
	v.SetDefault(key+"disable_clustering", false)
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "marketmap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "marketmap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "catalog-sync")
	v.SetDefault("temporal.sync_interval", 24*time.Hour)
	v.SetDefault("usda.base_url", "https://www.usdalocalfoodportal.com/api/farmersmarket/")
	v.SetDefault("usda.api_key", "")
	v.SetDefault("usda.timeout", 15*time.Second)
	v.SetDefault("usda.rate_per_second", 2.0)
	v.SetDefault("usda.burst", 2)
	v.SetDefault("usda.sample_fallback", true)
	v.SetDefault("usda.states", []string{"CA", "NY", "TX", "FL", "IL"})
	v.SetDefault("clustering.backend", "kdtree")
	v.SetDefault("clustering.index_cache_size", 128)
	v.SetDefault("clustering.default_platform", "ios")
	setProfileDefaults(v, "ios", 40, 150, 250, 400, 150*time.Millisecond)
	setProfileDefaults(v, "android", 50, 100, 200, 300, 250*time.Millisecond)
	setProfileDefaults(v, "web", 40, 300, 500, 800, 100*time.Millisecond)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: MARKETMAP_DATABASE_HOST → database.host
	v.SetEnvPrefix("MARKETMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Profile returns the performance profile for a platform. Unknown platforms
// get the default platform's profile; ok reports whether name was known.
func (c *Config) Profile(name string) (profile domain.PerformanceProfile, ok bool) {
	name = strings.ToLower(name)
	pc, ok := c.Profiles[name]
	if !ok {
		name = c.Clustering.DefaultPlatform
		pc = c.Profiles[name]
	}

	p := domain.DefaultProfile(name)
	if pc.Radius != 0 {
		p.Radius = pc.Radius
	}
	if pc.Extent != 0 {
		p.Extent = pc.Extent
	}
	if pc.NodeSize != 0 {
		p.NodeSize = pc.NodeSize
	}
	if pc.MinPoints != 0 {
		p.MinPoints = pc.MinPoints
	}
	if pc.MinZoom != 0 {
		p.MinZoom = pc.MinZoom
	}
	if pc.MaxZoom != 0 {
		p.MaxZoom = pc.MaxZoom
	}
	if pc.Budgets != (domain.RenderBudget{}) {
		p.Budgets = pc.Budgets
	}
	if pc.Debounce != 0 {
		p.Debounce = pc.Debounce
	}
	if pc.FallbackSpan != 0 {
		p.FallbackSpan = pc.FallbackSpan
	}
	p.DisableClustering = pc.DisableClustering
	return p, ok
}

// Platforms returns the configured platform names, sorted.
func (c *Config) Platforms() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.USDA.BaseURL == "" {
		errs = append(errs, "usda.base_url is required")
	}
	if c.USDA.RatePerSecond <= 0 {
		errs = append(errs, "usda.rate_per_second must be positive")
	}

	switch c.Clustering.Backend {
	case "kdtree", "rtree":
	default:
		errs = append(errs, fmt.Sprintf("clustering.backend must be kdtree or rtree, got %q", c.Clustering.Backend))
	}
	if _, ok := c.Profiles[c.Clustering.DefaultPlatform]; !ok {
		errs = append(errs, fmt.Sprintf("clustering.default_platform %q has no profile", c.Clustering.DefaultPlatform))
	}

	for _, name := range c.Platforms() {
		p, _ := c.Profile(name)
		key := "profiles." + name
		if p.Radius <= 0 {
			errs = append(errs, key+".radius must be positive")
		}
		if p.Extent <= 0 {
			errs = append(errs, key+".extent must be positive")
		}
		if p.NodeSize < 1 {
			errs = append(errs, key+".node_size must be at least 1")
		}
		if p.MinZoom < 0 || p.MaxZoom < p.MinZoom || p.MaxZoom > 30 {
			errs = append(errs, fmt.Sprintf("%s zoom range %d-%d must lie within 0-30", key, p.MinZoom, p.MaxZoom))
		}
		if p.Debounce < 0 {
			errs = append(errs, key+".debounce must not be negative")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
