package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ServerConfig points the client at the portal backend.
type ServerConfig struct {
	// BaseURL is the root URL of the backend (e.g. https://fees.example.edu).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// APIPrefix is prepended to every REST path.
	APIPrefix string `mapstructure:"api_prefix" yaml:"api_prefix"`

	// PushPath is the websocket path for the notification push channel.
	PushPath string `mapstructure:"push_path" yaml:"push_path"`
}

// PaymentConfig bounds the payment-confirmation poll.
type PaymentConfig struct {
	// PollIntervalSec is the fixed re-fetch interval while a payment
	// confirmation is outstanding.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// PollWindowSec is the hard wall-clock ceiling on the whole poll.
	PollWindowSec int `mapstructure:"poll_window_sec" yaml:"poll_window_sec"`
}

// NotificationConfig controls the notifications view.
type NotificationConfig struct {
	PageSize int `mapstructure:"page_size" yaml:"page_size"`
}

// DisplayConfig holds UI preferences, including the two persisted sidebar
// booleans. Absence of the file is not an error; defaults apply.
type DisplayConfig struct {
	Theme            string `mapstructure:"theme" yaml:"theme"`
	Currency         string `mapstructure:"currency" yaml:"currency"`
	SidebarOpen      bool   `mapstructure:"sidebar_open" yaml:"sidebar_open"`
	SidebarCollapsed bool   `mapstructure:"sidebar_collapsed" yaml:"sidebar_collapsed"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Environment   string             `mapstructure:"environment" yaml:"environment"`
	Server        ServerConfig       `mapstructure:"server" yaml:"server"`
	Payment       PaymentConfig      `mapstructure:"payment" yaml:"payment"`
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
	Display       DisplayConfig      `mapstructure:"display" yaml:"display"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/studentportal/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "studentportal", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Environment: "production",
		Server: ServerConfig{
			BaseURL:   "http://localhost:4000",
			APIPrefix: "/api/v1",
			PushPath:  "/ws/notifications",
		},
		Payment: PaymentConfig{
			PollIntervalSec: 5,
			PollWindowSec:   30,
		},
		Notifications: NotificationConfig{PageSize: 20},
		Display: DisplayConfig{
			Theme:       "default",
			Currency:    "GH₵",
			SidebarOpen: true,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("environment", "production")
	v.SetDefault("server.base_url", "http://localhost:4000")
	v.SetDefault("server.api_prefix", "/api/v1")
	v.SetDefault("server.push_path", "/ws/notifications")
	v.SetDefault("payment.poll_interval_sec", 5)
	v.SetDefault("payment.poll_window_sec", 30)
	v.SetDefault("notifications.page_size", 20)
	v.SetDefault("display.theme", "default")
	v.SetDefault("display.currency", "GH₵")
	v.SetDefault("display.sidebar_open", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed. Used to persist the sidebar
// preference booleans; failures are best-effort for callers.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("environment", cfg.Environment)
	v.Set("server", cfg.Server)
	v.Set("payment", cfg.Payment)
	v.Set("notifications", cfg.Notifications)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
