package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const (
	DriverChrome = "chrome"
	DriverStatic = "static"

	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Load builds the configuration from defaults, an optional YAML file, a .env
// file and finally the process environment.
func Load(path string) (*Config, error) {
	if err := ReadEnv(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		data = []byte(os.ExpandEnv(string(data)))
		v.SetConfigType("yaml")
		if err := v.ReadConfig(bytes.NewBuffer(data)); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target.name", "dmv")
	v.SetDefault("target.url", "https://skiptheline.ncdot.gov/Webapp/Appointment/Index/a7ade79b-996d-4971-8766-97feb75254de")
	v.SetDefault("target.start_label", "Make an Appointment")
	v.SetDefault("target.service", "Driver License - First Time new driver over 18, new N.C. resident Real ID")
	v.SetDefault("target.service_fallbacks", []string{"Driver License", "First Time"})
	v.SetDefault("target.service_selector", "[class*='service']")
	v.SetDefault("target.unit_selector", "div[class*='Activate-Unit']")
	v.SetDefault("target.location", "Avent Ferry Shopping Center")

	v.SetDefault("browser.driver", DriverChrome)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", DefaultUserAgent)
	v.SetDefault("browser.page_timeout", 30*time.Second)
	v.SetDefault("browser.visible_timeout", 3*time.Second)
	v.SetDefault("browser.settle_delay", 3*time.Second)

	v.SetDefault("email.enabled", true)
	v.SetDefault("email.smtp_host", "smtp.gmail.com")
	v.SetDefault("email.smtp_port", 465)
	v.SetDefault("email.implicit_tls", true)
	v.SetDefault("email.timeout", 10*time.Second)

	v.SetDefault("schedule.interval", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "appointment_checker.log")
	v.SetDefault("log.debug_file", "debug_log.txt")
}

var bareSeconds = regexp.MustCompile(`^\s*\d+\s*$`)

func applyEnvOverrides(cfg *Config) error {
	clearEmptyEnv()
	// Plain integers are seconds, as in older deployments.
	for _, key := range []string{"CHECK_INTERVAL", "BROWSER_PAGE_TIMEOUT", "BROWSER_VISIBLE_TIMEOUT", "BROWSER_SETTLE_DELAY", "EMAIL_TIMEOUT"} {
		if val, ok := os.LookupEnv(key); ok && bareSeconds.MatchString(val) {
			_ = os.Setenv(key, strings.TrimSpace(val)+"s")
		}
	}
	if _, ok := os.LookupEnv("EMAIL_PASSWORD"); !ok {
		if legacy, ok := os.LookupEnv("GMAIL_APP_PASSWORD"); ok {
			cfg.Email.Password = legacy
		}
	}

	for _, target := range []any{&cfg.Target, &cfg.Browser, &cfg.Email, &cfg.Schedule, &cfg.Log} {
		if err := envconfig.Process("", target); err != nil {
			return err
		}
	}
	return nil
}

// clearEmptyEnv drops blank override variables so they do not wipe file values.
func clearEmptyEnv() {
	for _, key := range envKeys() {
		if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) == "" {
			_ = os.Unsetenv(key)
		}
	}
}

func envKeys() []string {
	return []string{
		"TARGET_NAME", "TARGET_URL", "TARGET_START_LABEL", "TARGET_SERVICE", "TARGET_SERVICE_FALLBACKS",
		"TARGET_SERVICE_SELECTOR", "TARGET_UNIT_SELECTOR", "TARGET_LOCATION",
		"BROWSER_DRIVER", "BROWSER_HEADLESS", "BROWSER_NO_SANDBOX", "BROWSER_EXEC_PATH", "BROWSER_USER_AGENT",
		"BROWSER_PAGE_TIMEOUT", "BROWSER_VISIBLE_TIMEOUT", "BROWSER_SETTLE_DELAY", "BROWSER_PREFLIGHT",
		"EMAIL_ENABLED", "EMAIL_SMTP_HOST", "EMAIL_SMTP_PORT", "EMAIL_USERNAME", "EMAIL_PASSWORD", "EMAIL_FROM",
		"EMAIL_TO", "EMAIL_SUBJECT", "EMAIL_IMPLICIT_TLS", "EMAIL_SKIP_VERIFY", "EMAIL_TIMEOUT", "GMAIL_APP_PASSWORD",
		"CHECK_INTERVAL", "CHECK_SCHEDULE",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE", "LOG_DEBUG_FILE",
	}
}

func (c *Config) normalize() {
	c.Browser.Driver = strings.ToLower(strings.TrimSpace(c.Browser.Driver))
	c.Email.To = trimList(c.Email.To)
	c.Target.ServiceFallbacks = trimList(c.Target.ServiceFallbacks)
	if c.Email.Username == "" {
		c.Email.Username = c.Email.From
	}
	for i := range c.Channels {
		c.Channels[i].Type = strings.ToLower(strings.TrimSpace(c.Channels[i].Type))
		if c.Channels[i].Name == "" {
			c.Channels[i].Name = c.Channels[i].Type
		}
	}
}

// Validate reports the first setting that would make a probe or a send impossible.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Target.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("target url must be an absolute http(s) url, got %q", c.Target.URL)
	}
	if strings.TrimSpace(c.Target.Location) == "" {
		return fmt.Errorf("target location is required")
	}
	if strings.TrimSpace(c.Target.UnitSelector) == "" {
		return fmt.Errorf("target unit selector is required")
	}
	if strings.TrimSpace(c.Target.StartLabel) == "" {
		return fmt.Errorf("target start label is required")
	}

	switch c.Browser.Driver {
	case DriverChrome, DriverStatic:
	default:
		return fmt.Errorf("unknown browser driver %q", c.Browser.Driver)
	}
	if c.Browser.PageTimeout <= 0 {
		return fmt.Errorf("page timeout must be positive, got %s", c.Browser.PageTimeout)
	}
	if c.Schedule.Interval < 0 {
		return fmt.Errorf("check interval must not be negative, got %s", c.Schedule.Interval)
	}

	if c.Email.Enabled {
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("email smtp host is required when email is enabled")
		}
		if c.Email.From == "" {
			return fmt.Errorf("email from is required when email is enabled")
		}
		if len(c.Email.To) == 0 {
			return fmt.Errorf("email to is required when email is enabled")
		}
	}

	seen := make(map[string]bool)
	for i, ch := range c.Channels {
		switch ch.Type {
		case "webhook", "discord":
			if ch.URL == "" {
				return fmt.Errorf("channel %d (%s): url is required", i, ch.Name)
			}
		case "smtp2go":
			if ch.APIKey == "" || ch.Sender == "" || len(ch.To) == 0 {
				return fmt.Errorf("channel %d (%s): api_key, sender and to are required", i, ch.Name)
			}
		default:
			return fmt.Errorf("unknown channel type at index %d (name=%q): %q", i, ch.Name, ch.Type)
		}
		if seen[ch.Name] {
			return fmt.Errorf("duplicate channel name %q", ch.Name)
		}
		seen[ch.Name] = true
	}
	return nil
}

// MaskSecret keeps the last four characters of s.
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return "NOT SET"
	}
	return strings.Repeat("*", 12) + s[len(s)-4:]
}

func trimList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
