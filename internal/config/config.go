// Package config loads familyxp configuration from built-in defaults, an
// optional TOML file, and FAMILYXP_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration.
type Config struct {
	Server     Server     `toml:"server"`
	Database   Database   `toml:"database"`
	Approval   Approval   `toml:"approval"`
	Exchange   Exchange   `toml:"exchange"`
	Tiers      []Tier     `toml:"tiers"`
	Milestones Milestones `toml:"milestones"`
	Effort     Effort     `toml:"effort"`
	Backup     Backup     `toml:"backup"`
}

type Server struct {
	Port     string `toml:"port"`
	LogLevel string `toml:"log-level"`
	// Timezone defines calendar days for submissions and weeks for
	// weekly purchase limits.
	Timezone       string   `toml:"timezone"`
	AllowedOrigins []string `toml:"allowed-origins"`
}

type Database struct {
	Path string `toml:"path"`
}

type Approval struct {
	// AutoApproveAfter is the review window for parent-approved tasks.
	AutoApproveAfter time.Duration `toml:"auto-approve-after"`
	// UseRequestTTL bounds how long a screen-time use request may wait.
	UseRequestTTL time.Duration `toml:"use-request-ttl"`
	SweepInterval time.Duration `toml:"sweep-interval"`
}

type Exchange struct {
	// Rates lists the allowed "$1 equals N points" values.
	Rates        []int  `toml:"rates"`
	Default      int    `toml:"default"`
	Currency     string `toml:"currency"`
	DailyAverage int    `toml:"daily-average"`
}

// Tier is one row of the size classification table. Points up to and
// including Upper belong to the tier; Upper == 0 marks the unbounded top tier.
type Tier struct {
	Name  string `toml:"name"`
	Label string `toml:"label"`
	Stars int    `toml:"stars"`
	Icon  string `toml:"icon"`
	Min   int    `toml:"min"`
	Max   int    `toml:"max"`
	Upper int    `toml:"upper"`
}

type Milestones struct {
	Thresholds []int `toml:"thresholds"`
}

type Effort struct {
	DailyTaskPoints   int `toml:"daily-task-points"`
	SpecialTaskPoints int `toml:"special-task-points"`
}

// Backup points at S3-compatible storage for encrypted database snapshots.
// Secrets are normally supplied through the environment.
type Backup struct {
	Endpoint   string `toml:"endpoint"`
	Bucket     string `toml:"bucket"`
	Region     string `toml:"region"`
	Prefix     string `toml:"prefix"`
	AccessKey  string `toml:"access-key"`
	SecretKey  string `toml:"secret-key"`
	Passphrase string `toml:"passphrase"`
}

// Enabled reports whether enough is set to upload a snapshot.
func (b Backup) Enabled() bool {
	return b.Bucket != "" && b.AccessKey != "" && b.SecretKey != "" && b.Passphrase != ""
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Port:     "8080",
			LogLevel: "info",
			Timezone: "UTC",
		},
		Database: Database{Path: "familyxp.db"},
		Approval: Approval{
			AutoApproveAfter: 24 * time.Hour,
			UseRequestTTL:    24 * time.Hour,
			SweepInterval:    time.Hour,
		},
		Exchange: Exchange{
			Rates:        []int{10, 20, 50, 100, 200},
			Default:      100,
			Currency:     "USD",
			DailyAverage: 220,
		},
		Tiers: []Tier{
			{Name: "small", Label: "Small", Stars: 1, Icon: "🌱", Min: 100, Max: 200, Upper: 200},
			{Name: "medium", Label: "Medium", Stars: 2, Icon: "🌿", Min: 200, Max: 400, Upper: 400},
			{Name: "large", Label: "Large", Stars: 3, Icon: "🌳", Min: 400, Max: 1000, Upper: 1000},
			{Name: "xl", Label: "Epic", Stars: 4, Icon: "🏆", Min: 1000, Max: 3000},
		},
		Milestones: Milestones{Thresholds: []int{25, 50, 75}},
		Effort: Effort{
			DailyTaskPoints:   50,
			SpecialTaskPoints: 150,
		},
		Backup: Backup{Region: "auto", Prefix: "familyxp"},
	}
}

// Load builds the configuration. A missing file at path is not an error;
// an empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		default:
			if err := decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data string, cfg *Config) error {
	var file Config
	meta, err := toml.Decode(data, &file)
	if err != nil {
		return err
	}

	if meta.IsDefined("server", "port") {
		cfg.Server.Port = file.Server.Port
	}
	if meta.IsDefined("server", "log-level") {
		cfg.Server.LogLevel = file.Server.LogLevel
	}
	if meta.IsDefined("server", "timezone") {
		cfg.Server.Timezone = file.Server.Timezone
	}
	if meta.IsDefined("server", "allowed-origins") {
		cfg.Server.AllowedOrigins = file.Server.AllowedOrigins
	}
	if meta.IsDefined("database", "path") {
		cfg.Database.Path = file.Database.Path
	}
	if meta.IsDefined("approval", "auto-approve-after") {
		cfg.Approval.AutoApproveAfter = file.Approval.AutoApproveAfter
	}
	if meta.IsDefined("approval", "use-request-ttl") {
		cfg.Approval.UseRequestTTL = file.Approval.UseRequestTTL
	}
	if meta.IsDefined("approval", "sweep-interval") {
		cfg.Approval.SweepInterval = file.Approval.SweepInterval
	}
	if meta.IsDefined("exchange", "rates") {
		cfg.Exchange.Rates = file.Exchange.Rates
	}
	if meta.IsDefined("exchange", "default") {
		cfg.Exchange.Default = file.Exchange.Default
	}
	if meta.IsDefined("exchange", "currency") {
		cfg.Exchange.Currency = file.Exchange.Currency
	}
	if meta.IsDefined("exchange", "daily-average") {
		cfg.Exchange.DailyAverage = file.Exchange.DailyAverage
	}
	if meta.IsDefined("tiers") {
		cfg.Tiers = file.Tiers
	}
	if meta.IsDefined("milestones", "thresholds") {
		cfg.Milestones.Thresholds = file.Milestones.Thresholds
	}
	if meta.IsDefined("effort", "daily-task-points") {
		cfg.Effort.DailyTaskPoints = file.Effort.DailyTaskPoints
	}
	if meta.IsDefined("effort", "special-task-points") {
		cfg.Effort.SpecialTaskPoints = file.Effort.SpecialTaskPoints
	}
	backupKeys := []struct {
		key      string
		dst, src *string
	}{
		{"endpoint", &cfg.Backup.Endpoint, &file.Backup.Endpoint},
		{"bucket", &cfg.Backup.Bucket, &file.Backup.Bucket},
		{"region", &cfg.Backup.Region, &file.Backup.Region},
		{"prefix", &cfg.Backup.Prefix, &file.Backup.Prefix},
		{"access-key", &cfg.Backup.AccessKey, &file.Backup.AccessKey},
		{"secret-key", &cfg.Backup.SecretKey, &file.Backup.SecretKey},
		{"passphrase", &cfg.Backup.Passphrase, &file.Backup.Passphrase},
	}
	for _, k := range backupKeys {
		if meta.IsDefined("backup", k.key) {
			*k.dst = *k.src
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("FAMILYXP_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("FAMILYXP_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := os.Getenv("FAMILYXP_TIMEZONE"); v != "" {
		cfg.Server.Timezone = v
	}
	if v := os.Getenv("FAMILYXP_ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.AllowedOrigins = origins
	}
	if v := os.Getenv("FAMILYXP_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	backupEnv := []struct {
		key string
		dst *string
	}{
		{"FAMILYXP_BACKUP_ENDPOINT", &cfg.Backup.Endpoint},
		{"FAMILYXP_BACKUP_BUCKET", &cfg.Backup.Bucket},
		{"FAMILYXP_BACKUP_REGION", &cfg.Backup.Region},
		{"FAMILYXP_BACKUP_ACCESS_KEY", &cfg.Backup.AccessKey},
		{"FAMILYXP_BACKUP_SECRET_KEY", &cfg.Backup.SecretKey},
		{"FAMILYXP_BACKUP_PASSPHRASE", &cfg.Backup.Passphrase},
	}
	for _, e := range backupEnv {
		if v := os.Getenv(e.key); v != "" {
			*e.dst = v
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"FAMILYXP_AUTO_APPROVE_AFTER", &cfg.Approval.AutoApproveAfter},
		{"FAMILYXP_USE_REQUEST_TTL", &cfg.Approval.UseRequestTTL},
		{"FAMILYXP_SWEEP_INTERVAL", &cfg.Approval.SweepInterval},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

// Validate checks the tables and durations are internally consistent.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Server.Timezone, err)
	}
	if c.Approval.AutoApproveAfter <= 0 {
		return errors.New("approval auto-approve-after must be positive")
	}
	if c.Approval.UseRequestTTL <= 0 {
		return errors.New("approval use-request-ttl must be positive")
	}
	if c.Approval.SweepInterval <= 0 {
		return errors.New("approval sweep-interval must be positive")
	}

	if len(c.Exchange.Rates) == 0 {
		return errors.New("exchange rates must not be empty")
	}
	for _, r := range c.Exchange.Rates {
		if r <= 0 {
			return fmt.Errorf("exchange rate %d must be positive", r)
		}
	}
	if !slices.Contains(c.Exchange.Rates, c.Exchange.Default) {
		return fmt.Errorf("default exchange rate %d is not one of %v", c.Exchange.Default, c.Exchange.Rates)
	}

	if len(c.Tiers) == 0 {
		return errors.New("tier table must not be empty")
	}
	prev := 0
	for i, t := range c.Tiers {
		if t.Name == "" {
			return fmt.Errorf("tier %d has no name", i)
		}
		last := i == len(c.Tiers)-1
		if last && t.Upper != 0 {
			return fmt.Errorf("top tier %q must be unbounded (upper = 0)", t.Name)
		}
		if !last && t.Upper <= prev {
			return fmt.Errorf("tier %q upper bound %d must exceed %d", t.Name, t.Upper, prev)
		}
		if t.Min > t.Max {
			return fmt.Errorf("tier %q range %d-%d is inverted", t.Name, t.Min, t.Max)
		}
		prev = t.Upper
	}

	prev = 0
	for _, pct := range c.Milestones.Thresholds {
		if pct <= prev || pct >= 100 {
			return fmt.Errorf("milestone thresholds must be ascending within 1-99, got %v", c.Milestones.Thresholds)
		}
		prev = pct
	}

	if c.Effort.DailyTaskPoints <= 0 || c.Effort.SpecialTaskPoints <= 0 {
		return errors.New("effort task points must be positive")
	}
	return nil
}

// Location returns the configured timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
