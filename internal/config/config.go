package config

import "time"

// Config is loaded once at startup and treated as read-only afterwards.
type Config struct {
	Target   TargetConfig    `yaml:"target" mapstructure:"target"`
	Browser  BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Email    EmailConfig     `yaml:"email" mapstructure:"email"`
	Channels []ChannelConfig `yaml:"channels" mapstructure:"channels"`
	Schedule ScheduleConfig  `yaml:"schedule" mapstructure:"schedule"`
	Log      LogConfig       `yaml:"log" mapstructure:"log"`
}

type TargetConfig struct {
	Name             string   `yaml:"name" mapstructure:"name" envconfig:"TARGET_NAME"`
	URL              string   `yaml:"url" mapstructure:"url" envconfig:"TARGET_URL"`
	StartLabel       string   `yaml:"start_label" mapstructure:"start_label" envconfig:"TARGET_START_LABEL"`
	Service          string   `yaml:"service" mapstructure:"service" envconfig:"TARGET_SERVICE"`
	ServiceFallbacks []string `yaml:"service_fallbacks" mapstructure:"service_fallbacks" envconfig:"TARGET_SERVICE_FALLBACKS"`
	ServiceSelector  string   `yaml:"service_selector" mapstructure:"service_selector" envconfig:"TARGET_SERVICE_SELECTOR"`
	UnitSelector     string   `yaml:"unit_selector" mapstructure:"unit_selector" envconfig:"TARGET_UNIT_SELECTOR"`
	Location         string   `yaml:"location" mapstructure:"location" envconfig:"TARGET_LOCATION"`
}

type BrowserConfig struct {
	Driver         string        `yaml:"driver" mapstructure:"driver" envconfig:"BROWSER_DRIVER"`
	Headless       bool          `yaml:"headless" mapstructure:"headless" envconfig:"BROWSER_HEADLESS"`
	NoSandbox      bool          `yaml:"no_sandbox" mapstructure:"no_sandbox" envconfig:"BROWSER_NO_SANDBOX"`
	ExecPath       string        `yaml:"exec_path" mapstructure:"exec_path" envconfig:"BROWSER_EXEC_PATH"`
	UserAgent      string        `yaml:"user_agent" mapstructure:"user_agent" envconfig:"BROWSER_USER_AGENT"`
	PageTimeout    time.Duration `yaml:"page_timeout" mapstructure:"page_timeout" envconfig:"BROWSER_PAGE_TIMEOUT"`
	VisibleTimeout time.Duration `yaml:"visible_timeout" mapstructure:"visible_timeout" envconfig:"BROWSER_VISIBLE_TIMEOUT"`
	SettleDelay    time.Duration `yaml:"settle_delay" mapstructure:"settle_delay" envconfig:"BROWSER_SETTLE_DELAY"`
	Preflight      bool          `yaml:"preflight" mapstructure:"preflight" envconfig:"BROWSER_PREFLIGHT"`
}

type EmailConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled" envconfig:"EMAIL_ENABLED"`
	SMTPHost      string        `yaml:"smtp_host" mapstructure:"smtp_host" envconfig:"EMAIL_SMTP_HOST"`
	SMTPPort      int           `yaml:"smtp_port" mapstructure:"smtp_port" envconfig:"EMAIL_SMTP_PORT"`
	Username      string        `yaml:"username" mapstructure:"username" envconfig:"EMAIL_USERNAME"`
	Password      string        `yaml:"password" mapstructure:"password" envconfig:"EMAIL_PASSWORD"`
	From          string        `yaml:"from" mapstructure:"from" envconfig:"EMAIL_FROM"`
	To            []string      `yaml:"to" mapstructure:"to" envconfig:"EMAIL_TO"`
	Subject       string        `yaml:"subject" mapstructure:"subject" envconfig:"EMAIL_SUBJECT"`
	ImplicitTLS   bool          `yaml:"implicit_tls" mapstructure:"implicit_tls" envconfig:"EMAIL_IMPLICIT_TLS"`
	SkipVerifyTLS bool          `yaml:"skip_verify" mapstructure:"skip_verify" envconfig:"EMAIL_SKIP_VERIFY"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout" envconfig:"EMAIL_TIMEOUT"`
}

// ChannelConfig describes an extra notification channel: webhook, discord or smtp2go.
type ChannelConfig struct {
	Type     string        `yaml:"type" mapstructure:"type"`
	Name     string        `yaml:"name" mapstructure:"name"`
	URL      string        `yaml:"url" mapstructure:"url"`
	Username string        `yaml:"username" mapstructure:"username"`
	APIKey   string        `yaml:"api_key" mapstructure:"api_key"`
	Sender   string        `yaml:"sender" mapstructure:"sender"`
	To       []string      `yaml:"to" mapstructure:"to"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval" mapstructure:"interval" envconfig:"CHECK_INTERVAL"`
	Cron     string        `yaml:"cron" mapstructure:"cron" envconfig:"CHECK_SCHEDULE"`
}

type LogConfig struct {
	Level     string `yaml:"level" mapstructure:"level" envconfig:"LOG_LEVEL"`
	Format    string `yaml:"format" mapstructure:"format" envconfig:"LOG_FORMAT"`
	File      string `yaml:"file" mapstructure:"file" envconfig:"LOG_FILE"`
	DebugFile string `yaml:"debug_file" mapstructure:"debug_file" envconfig:"LOG_DEBUG_FILE"`
}
