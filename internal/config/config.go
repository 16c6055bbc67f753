package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"ReloadPilot/internal/model"
)

// Card is one reload entry as written in the YAML file.
type Card struct {
	Name         string    `yaml:"name"`
	Credentials  string    `yaml:"credentials"`
	Card         string    `yaml:"card"`
	Purchases    int       `yaml:"purchases"`
	AmountLimits []float64 `yaml:"amount_limits"`
	DayLimits    []int     `yaml:"day_limits"`
	Burst        bool      `yaml:"burst"`
}

// Config holds all application configuration.
type Config struct {
	Cards []Card `yaml:"cards"`
	State struct {
		Backend string `yaml:"backend"`
		File    string `yaml:"file"`
	} `yaml:"state"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Schedule struct {
		Cron string `yaml:"cron"`
	} `yaml:"schedule"`
	Executor struct {
		Kind       string `yaml:"kind"`
		BaseURL    string `yaml:"base_url"`
		APIKey     string `yaml:"api_key"`
		RatePerSec int    `yaml:"rate_per_sec"`
	} `yaml:"executor"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Default day range; day 28 exists in every month.
var DefaultDays = model.DayRange{Min: 1, Max: 28}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// LoadFiles reads every file and flattens their cards into one Config. All other
// sections come from the first file.
func LoadFiles(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("read config: no file given")
	}
	cfg, err := Load(paths[0])
	if err != nil {
		return nil, err
	}
	for _, path := range paths[1:] {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		var extra struct {
			Cards []Card `yaml:"cards"`
		}
		if err := yaml.Unmarshal(data, &extra); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.Cards = append(cfg.Cards, extra.Cards...)
	}
	return cfg, nil
}

// Parse decodes YAML bytes and applies environment overrides and defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("RELOAD_STATE_BACKEND"); v != "" {
		cfg.State.Backend = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("RELOAD_BASE_URL"); v != "" {
		cfg.Executor.BaseURL = v
	}
	if v := os.Getenv("RELOAD_API_KEY"); v != "" {
		cfg.Executor.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CRON_SCHEDULE"); v != "" {
		cfg.Schedule.Cron = v
	}

	// Defaults
	if cfg.State.Backend == "" {
		cfg.State.Backend = "file"
	}
	if cfg.State.File == "" {
		cfg.State.File = "data/reload_state.json"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/reload.db"
	}
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = "0 0 9 * * *"
	}
	if cfg.Executor.Kind == "" {
		cfg.Executor.Kind = "http"
	}
	if cfg.Executor.RatePerSec <= 0 {
		cfg.Executor.RatePerSec = 1
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}

// Validate checks the whole file, including every card.
func (c *Config) Validate() error {
	if len(c.Cards) == 0 {
		return fmt.Errorf("cards: at least one card is required")
	}
	seen := make(map[string]bool, len(c.Cards))
	for i, card := range c.Cards {
		if _, err := card.Account(); err != nil {
			return fmt.Errorf("cards[%d]: %w", i, err)
		}
		if seen[card.Name] {
			return fmt.Errorf("cards[%d]: duplicate name %q", i, card.Name)
		}
		seen[card.Name] = true
	}
	switch c.State.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("state.backend must be file or sqlite, got %q", c.State.Backend)
	}
	switch c.Executor.Kind {
	case "http":
		if c.Executor.BaseURL == "" {
			return fmt.Errorf("executor.base_url is required for the http executor")
		}
	case "dryrun":
	default:
		return fmt.Errorf("executor.kind must be http or dryrun, got %q", c.Executor.Kind)
	}
	return nil
}

// Accounts converts every card into a validated model.AccountConfig.
func (c *Config) Accounts() ([]model.AccountConfig, error) {
	accounts := make([]model.AccountConfig, 0, len(c.Cards))
	for i, card := range c.Cards {
		acc, err := card.Account()
		if err != nil {
			return nil, fmt.Errorf("cards[%d]: %w", i, err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

// Account validates the card and converts it.
func (c Card) Account() (model.AccountConfig, error) {
	if strings.TrimSpace(c.Name) == "" {
		return model.AccountConfig{}, fmt.Errorf("name is required")
	}
	user, pass, ok := strings.Cut(c.Credentials, ":")
	if !ok || user == "" || pass == "" {
		return model.AccountConfig{}, fmt.Errorf("%s: credentials must be in user:password form", c.Name)
	}
	if c.Card == "" {
		return model.AccountConfig{}, fmt.Errorf("%s: card is required", c.Name)
	}
	if c.Purchases < 1 {
		return model.AccountConfig{}, fmt.Errorf("%s: purchases must be >= 1", c.Name)
	}

	if len(c.AmountLimits) != 2 {
		return model.AccountConfig{}, fmt.Errorf("%s: amount_limits must be [min, max]", c.Name)
	}
	amounts := model.AmountRange{Min: c.AmountLimits[0], Max: c.AmountLimits[1]}
	if amounts.Min < model.MinAmount {
		return model.AccountConfig{}, fmt.Errorf("%s: amount_limits min must be >= %.2f", c.Name, model.MinAmount)
	}
	if amounts.Min > amounts.Max {
		return model.AccountConfig{}, fmt.Errorf("%s: amount_limits min must be <= max", c.Name)
	}
	if !hasWholeCent(amounts) {
		return model.AccountConfig{}, fmt.Errorf("%s: amount_limits must contain at least one whole cent", c.Name)
	}

	days := DefaultDays
	if len(c.DayLimits) > 0 {
		if len(c.DayLimits) != 2 {
			return model.AccountConfig{}, fmt.Errorf("%s: day_limits must be [min, max]", c.Name)
		}
		days = model.DayRange{Min: c.DayLimits[0], Max: c.DayLimits[1]}
	}
	if days.Min < 1 || days.Max > 31 || days.Min > days.Max {
		return model.AccountConfig{}, fmt.Errorf("%s: day_limits must satisfy 1 <= min <= max <= 31", c.Name)
	}

	return model.AccountConfig{
		Name:        c.Name,
		Credentials: model.Credentials{Username: user, Password: pass},
		Card:        c.Card,
		Purchases:   c.Purchases,
		Amounts:     amounts,
		Days:        days,
		Burst:       c.Burst,
	}, nil
}
