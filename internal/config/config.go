package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8080
	DefaultBufSize         = 100
	DefaultWebhookPath     = "/chat/events"
	DefaultDepartment      = "Finance"
	DefaultSessionTTL      = "24h"
	DefaultSweepEvery      = "10m"
	DefaultLedgerTimeout   = 30
	DefaultBudgetTab       = "Budget"
	DefaultActualsTab      = "Actuals"
	DefaultBudgetHeaders   = 1
	DefaultActualsHeaders  = 3
	DefaultNotifyRetries   = 3
	DefaultNotifyTimeoutMs = 10000
)

type Config struct {
	Gateway  GatewayConfig  `json:"gateway"`
	Channels ChannelsConfig `json:"channels"`
	Ledger   LedgerConfig   `json:"ledger"`
	Notify   NotifyConfig   `json:"notify"`
	Intake   IntakeConfig   `json:"intake"`
	Session  SessionConfig  `json:"session"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type ChannelsConfig struct {
	GoogleChat GoogleChatConfig `json:"googleChat"`
	Telegram   TelegramConfig   `json:"telegram"`
}

type GoogleChatConfig struct {
	Enabled           bool     `json:"enabled"`
	Path              string   `json:"path,omitempty"`
	VerificationToken string   `json:"verificationToken,omitempty"`
	AllowFrom         []string `json:"allowFrom,omitempty"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom,omitempty"`
	Proxy     string   `json:"proxy,omitempty"`
	// IdentityMap maps a Telegram user ID to the budget identity (email)
	// the intake flow keys sessions and roles by. Unmapped users get a
	// synthetic "<id>@telegram" identity and fall into the default role.
	IdentityMap map[string]string `json:"identityMap,omitempty"`
}

// LedgerConfig describes the Google Sheet holding the budget and actuals
// tabs, including where each column lives. Column indexes are zero-based.
type LedgerConfig struct {
	ServiceAccountPath string         `json:"serviceAccountPath"`
	SpreadsheetID      string         `json:"spreadsheetId"`
	BudgetTab          string         `json:"budgetTab"`
	ActualsTab         string         `json:"actualsTab"`
	BudgetHeaderRows   int            `json:"budgetHeaderRows"`
	ActualsHeaderRows  int            `json:"actualsHeaderRows"`
	Budget             BudgetColumns  `json:"budgetColumns"`
	Actuals            ActualsColumns `json:"actualsColumns"`
	TimeoutSeconds     int            `json:"timeoutSeconds,omitempty"`
}

type BudgetColumns struct {
	Account    int `json:"account"`
	Department int `json:"department"`
	CostItem   int `json:"costItem"`
	Tracking   int `json:"tracking"`
	// FinanceRef is a second reference column some ledgers carry next to
	// tracking. Set to -1 when the sheet has no such column.
	FinanceRef int `json:"financeRef"`
	Total      int `json:"total"`
}

type ActualsColumns struct {
	Account    int `json:"account"`
	Amount     int `json:"amount"`
	Department int `json:"department"`
}

func (c LedgerConfig) Validate() error {
	if c.SpreadsheetID == "" {
		return fmt.Errorf("ledger: spreadsheetId is required")
	}
	if c.ServiceAccountPath == "" {
		return fmt.Errorf("ledger: serviceAccountPath is required")
	}
	if c.BudgetTab == "" || c.ActualsTab == "" {
		return fmt.Errorf("ledger: budgetTab and actualsTab are required")
	}
	return nil
}

func (c LedgerConfig) Timeout() time.Duration {
	secs := c.TimeoutSeconds
	if secs <= 0 {
		secs = DefaultLedgerTimeout
	}
	return time.Duration(secs) * time.Second
}

type NotifyConfig struct {
	// WebhookURL is a Google Chat incoming-webhook for the procurement
	// space. Empty disables the chat leg.
	WebhookURL string     `json:"webhookUrl,omitempty"`
	SMTP       SMTPConfig `json:"smtp"`
	Retries    int        `json:"retries,omitempty"`
	TimeoutMs  int        `json:"timeoutMs,omitempty"`
}

type SMTPConfig struct {
	Host     string   `json:"host,omitempty"`
	Port     int      `json:"port,omitempty"`
	From     string   `json:"from,omitempty"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"`
	To       []string `json:"to,omitempty"`
}

func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && len(c.To) > 0
}

// IntakeConfig is the static vocabulary of the conversation: greeting
// triggers, the department enumeration and the sender-role maps.
type IntakeConfig struct {
	Triggers          []string          `json:"triggers"`
	Departments       []string          `json:"departments"`
	Admins            []string          `json:"admins"`
	DeptBound         map[string]string `json:"deptBound"`
	DefaultDepartment string            `json:"defaultDepartment"`
}

type SessionConfig struct {
	TTL        string `json:"ttl"`
	SweepEvery string `json:"sweepEvery"`
}

func (c SessionConfig) TTLDuration() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultSessionTTL)
	}
	return d
}

func (c SessionConfig) SweepInterval() time.Duration {
	d, err := time.ParseDuration(c.SweepEvery)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultSweepEvery)
	}
	return d
}

func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Channels: ChannelsConfig{
			GoogleChat: GoogleChatConfig{
				Enabled: true,
				Path:    DefaultWebhookPath,
			},
		},
		Ledger: LedgerConfig{
			BudgetTab:         DefaultBudgetTab,
			ActualsTab:        DefaultActualsTab,
			BudgetHeaderRows:  DefaultBudgetHeaders,
			ActualsHeaderRows: DefaultActualsHeaders,
			Budget: BudgetColumns{
				Account:    0,
				Department: 1,
				CostItem:   3,
				Tracking:   4,
				FinanceRef: 5,
				Total:      17,
			},
			Actuals: ActualsColumns{
				Account:    1,
				Amount:     10,
				Department: 14,
			},
		},
		Notify: NotifyConfig{
			Retries:   DefaultNotifyRetries,
			TimeoutMs: DefaultNotifyTimeoutMs,
		},
		Intake: IntakeConfig{
			Triggers: []string{"hi", "hello", "hey", "howzit", "salam"},
			Departments: []string{
				"Clubhouse", "Facilities", "Finance", "Front Office",
				"Human Capital", "Management", "Marketing", "Sponsorship", "Sports",
			},
			DeptBound:         map[string]string{},
			DefaultDepartment: DefaultDepartment,
		},
		Session: SessionConfig{
			TTL:        DefaultSessionTTL,
			SweepEvery: DefaultSweepEvery,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".pobot")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	return loadConfigFrom(ConfigPath())
}

func loadConfigFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Intake.DefaultDepartment == "" {
		cfg.Intake.DefaultDepartment = DefaultDepartment
	}
	if len(cfg.Intake.Triggers) == 0 {
		cfg.Intake.Triggers = DefaultConfig().Intake.Triggers
	}
	if len(cfg.Intake.Departments) == 0 {
		cfg.Intake.Departments = DefaultConfig().Intake.Departments
	}
	if cfg.Channels.GoogleChat.Path == "" {
		cfg.Channels.GoogleChat.Path = DefaultWebhookPath
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POBOT_SPREADSHEET_ID"); v != "" {
		cfg.Ledger.SpreadsheetID = v
	}
	if v := os.Getenv("POBOT_SERVICE_ACCOUNT"); v != "" {
		cfg.Ledger.ServiceAccountPath = v
	}
	if v := os.Getenv("POBOT_BUDGET_TAB"); v != "" {
		cfg.Ledger.BudgetTab = v
	}
	if v := os.Getenv("POBOT_ACTUALS_TAB"); v != "" {
		cfg.Ledger.ActualsTab = v
	}
	if v := os.Getenv("POBOT_TELEGRAM_TOKEN"); v != "" {
		cfg.Channels.Telegram.Token = v
	}
	if v := os.Getenv("POBOT_CHAT_TOKEN"); v != "" {
		cfg.Channels.GoogleChat.VerificationToken = v
	}
	if v := os.Getenv("POBOT_NOTIFY_WEBHOOK"); v != "" {
		cfg.Notify.WebhookURL = v
	}
	if v := os.Getenv("POBOT_SMTP_PASSWORD"); v != "" {
		cfg.Notify.SMTP.Password = v
	}
	if v := os.Getenv("POBOT_DEFAULT_DEPARTMENT"); v != "" {
		cfg.Intake.DefaultDepartment = v
	}
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
