package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the engine.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Sender   SenderConfig   `mapstructure:"sender"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Gmail    GmailConfig    `mapstructure:"gmail"`
	IMAP     IMAPConfig     `mapstructure:"imap"`
	Outreach OutreachConfig `mapstructure:"outreach"`
	Daemon   DaemonConfig   `mapstructure:"daemon"`
}

// ServerConfig holds HTTP server configuration for the daemon.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration. Driver is either
// "sqlite" (Path) or "mysql" (Host/Port/User/Password/DBName).
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// SenderConfig identifies the person the outreach is sent on behalf of.
type SenderConfig struct {
	Name    string `mapstructure:"name"`
	Email   string `mapstructure:"email"`
	Phone   string `mapstructure:"phone"`
	Company string `mapstructure:"company"`
}

// SMTPConfig holds SMTP transport configuration.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// GmailConfig holds Gmail API transport configuration.
type GmailConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	UserEmail    string `mapstructure:"user_email"`
}

// IMAPConfig holds the mailbox used for reply detection.
type IMAPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Lookback int    `mapstructure:"lookback_days"`
}

// OutreachConfig holds the qualification, scheduling and pacing policy.
type OutreachConfig struct {
	MinScore           int           `mapstructure:"min_score"`
	SecondaryThreshold int           `mapstructure:"secondary_threshold"`
	CooldownDays       int           `mapstructure:"cooldown_days"`
	SendWindowStart    string        `mapstructure:"send_window_start"`
	SendWindowEnd      string        `mapstructure:"send_window_end"`
	SendDays           []string      `mapstructure:"send_days"`
	MinSendDelay       time.Duration `mapstructure:"min_send_delay"`
	MaxSendsPerRun     int           `mapstructure:"max_sends_per_run"`
	Followup1Days      int           `mapstructure:"followup_1_days"`
	Followup2Days      int           `mapstructure:"followup_2_days"`
	MaxFollowups       int           `mapstructure:"max_followups"`
	RequireApproval    bool          `mapstructure:"require_approval"`
	DryRun             bool          `mapstructure:"dry_run"`
	TestRecipient      string        `mapstructure:"test_recipient"`
	ResolverURL        string        `mapstructure:"resolver_url"`
	SummaryEmail       string        `mapstructure:"summary_email"`
	Warmup             WarmupConfig  `mapstructure:"warmup"`
}

// WarmupConfig holds the daily caps applied while the sending identity
// ramps up. Week thresholds are fixed at 7/14/21/28 days of age.
type WarmupConfig struct {
	Week1Limit int `mapstructure:"week_1_limit"`
	Week2Limit int `mapstructure:"week_2_limit"`
	Week3Limit int `mapstructure:"week_3_limit"`
	Week4Limit int `mapstructure:"week_4_limit"`
}

// DaemonConfig holds scheduling for the long-running mode.
type DaemonConfig struct {
	RunSpec   string `mapstructure:"run_spec"`
	ReplySpec string `mapstructure:"reply_spec"`
	IntakeDir string `mapstructure:"intake_dir"`
}

// Load reads configuration from config.yaml and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", "data/outreach.db")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)

	viper.SetDefault("smtp.host", "smtp.gmail.com")
	viper.SetDefault("smtp.port", 587)

	viper.SetDefault("imap.host", "imap.gmail.com")
	viper.SetDefault("imap.port", 993)
	viper.SetDefault("imap.lookback_days", 14)

	viper.SetDefault("outreach.min_score", 40)
	viper.SetDefault("outreach.secondary_threshold", 60)
	viper.SetDefault("outreach.cooldown_days", 30)
	viper.SetDefault("outreach.send_window_start", "09:00")
	viper.SetDefault("outreach.send_window_end", "17:00")
	viper.SetDefault("outreach.send_days", []string{"Mon", "Tue", "Wed", "Thu", "Fri"})
	viper.SetDefault("outreach.min_send_delay", "120s")
	viper.SetDefault("outreach.max_sends_per_run", 0)
	viper.SetDefault("outreach.followup_1_days", 7)
	viper.SetDefault("outreach.followup_2_days", 14)
	viper.SetDefault("outreach.max_followups", 2)
	viper.SetDefault("outreach.warmup.week_1_limit", 5)
	viper.SetDefault("outreach.warmup.week_2_limit", 15)
	viper.SetDefault("outreach.warmup.week_3_limit", 30)
	viper.SetDefault("outreach.warmup.week_4_limit", 50)

	viper.SetDefault("daemon.run_spec", "0 0 9 * * MON-FRI")
	viper.SetDefault("daemon.reply_spec", "0 */30 * * * *")
	viper.SetDefault("daemon.intake_dir", "data/intake")
}

func bindEnvVars() {
	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("database.driver", "DB_DRIVER")
	viper.BindEnv("database.path", "DB_PATH")
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")

	viper.BindEnv("sender.name", "OUTREACH_SENDER_NAME")
	viper.BindEnv("sender.email", "OUTREACH_SENDER_EMAIL")
	viper.BindEnv("sender.phone", "OUTREACH_SENDER_PHONE")
	viper.BindEnv("sender.company", "OUTREACH_SENDER_COMPANY")

	viper.BindEnv("smtp.host", "OUTREACH_SMTP_HOST")
	viper.BindEnv("smtp.port", "OUTREACH_SMTP_PORT")
	viper.BindEnv("smtp.user", "OUTREACH_SMTP_USER")
	viper.BindEnv("smtp.password", "OUTREACH_SMTP_PASSWORD")

	viper.BindEnv("gmail.enabled", "OUTREACH_GMAIL_ENABLED")
	viper.BindEnv("gmail.client_id", "GMAIL_CLIENT_ID")
	viper.BindEnv("gmail.client_secret", "GMAIL_CLIENT_SECRET")
	viper.BindEnv("gmail.refresh_token", "GMAIL_REFRESH_TOKEN")
	viper.BindEnv("gmail.user_email", "GMAIL_USER_EMAIL")

	viper.BindEnv("imap.enabled", "OUTREACH_IMAP_ENABLED")
	viper.BindEnv("imap.host", "OUTREACH_IMAP_HOST")
	viper.BindEnv("imap.port", "OUTREACH_IMAP_PORT")
	viper.BindEnv("imap.user", "OUTREACH_IMAP_USER")
	viper.BindEnv("imap.password", "OUTREACH_IMAP_PASSWORD")

	viper.BindEnv("outreach.min_score", "OUTREACH_MIN_SCORE")
	viper.BindEnv("outreach.cooldown_days", "OUTREACH_COMPANY_COOLDOWN")
	viper.BindEnv("outreach.send_window_start", "OUTREACH_SEND_START")
	viper.BindEnv("outreach.send_window_end", "OUTREACH_SEND_END")
	viper.BindEnv("outreach.min_send_delay", "OUTREACH_SEND_DELAY")
	viper.BindEnv("outreach.max_sends_per_run", "OUTREACH_MAX_SENDS")
	viper.BindEnv("outreach.require_approval", "OUTREACH_REQUIRE_APPROVAL")
	viper.BindEnv("outreach.dry_run", "OUTREACH_DRY_RUN")
	viper.BindEnv("outreach.test_recipient", "OUTREACH_TEST_RECIPIENT")
	viper.BindEnv("outreach.resolver_url", "OUTREACH_RESOLVER_URL")
	viper.BindEnv("outreach.summary_email", "OUTREACH_SUMMARY_TO")
}

// DSN returns the MySQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate checks configuration needed before any work can start. Missing
// transport credentials are not fatal here: qualification and batching must
// proceed without them, so they are reported by ValidateTransport instead.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case "mysql":
		if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("database host, user, and dbname are required for mysql")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Outreach.MaxFollowups < 0 {
		return fmt.Errorf("max_followups must not be negative")
	}
	if _, err := ParseClock(c.Outreach.SendWindowStart); err != nil {
		return fmt.Errorf("invalid send_window_start: %w", err)
	}
	if _, err := ParseClock(c.Outreach.SendWindowEnd); err != nil {
		return fmt.Errorf("invalid send_window_end: %w", err)
	}
	return nil
}

// ValidateTransport reports what is missing for an actual transmission.
func (c *Config) ValidateTransport() []string {
	var errs []string
	if c.Sender.Email == "" {
		errs = append(errs, "sender.email not set")
	}
	if c.Gmail.Enabled {
		if c.Gmail.ClientID == "" || c.Gmail.ClientSecret == "" || c.Gmail.RefreshToken == "" {
			errs = append(errs, "gmail credentials incomplete")
		}
	} else {
		if c.SMTP.User == "" || c.SMTP.Password == "" {
			errs = append(errs, "smtp credentials not set")
		}
	}
	return errs
}

// ParseClock parses an "HH:MM" time-of-day value into minutes from midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
