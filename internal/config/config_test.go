package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EMAIL_FROM", "checker@example.com")
	t.Setenv("EMAIL_TO", "me@example.com")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "Make an Appointment", cfg.Target.StartLabel)
	assert.Equal(t, []string{"Driver License", "First Time"}, cfg.Target.ServiceFallbacks)
	assert.Equal(t, "div[class*='Activate-Unit']", cfg.Target.UnitSelector)
	assert.Equal(t, DriverChrome, cfg.Browser.Driver)
	assert.Equal(t, 30*time.Second, cfg.Browser.PageTimeout)
	assert.Equal(t, 3*time.Second, cfg.Browser.VisibleTimeout)
	assert.Equal(t, "smtp.gmail.com", cfg.Email.SMTPHost)
	assert.Equal(t, 465, cfg.Email.SMTPPort)
	assert.True(t, cfg.Email.ImplicitTLS)
	assert.Equal(t, "checker@example.com", cfg.Email.Username)
	assert.Equal(t, time.Hour, cfg.Schedule.Interval)
	assert.Equal(t, "debug_log.txt", cfg.Log.DebugFile)
}

func TestLoadYAMLWithExpansion(t *testing.T) {
	t.Setenv("TEST_SMTP_SECRET", "app-password")
	path := writeConfig(t, `
target:
  url: https://booking.example.test/index
  location: Downtown Office
  service_fallbacks: ["Renewal"]
browser:
  driver: static
  settle_delay: 0s
email:
  from: checker@example.com
  to: ["a@example.com", " b@example.com "]
  password: ${TEST_SMTP_SECRET}
channels:
  - type: webhook
    url: https://hooks.example.test/notify
    timeout: 2s
schedule:
  cron: "*/15 * * * *"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Downtown Office", cfg.Target.Location)
	assert.Equal(t, []string{"Renewal"}, cfg.Target.ServiceFallbacks)
	assert.Equal(t, DriverStatic, cfg.Browser.Driver)
	assert.Zero(t, cfg.Browser.SettleDelay)
	assert.Equal(t, "app-password", cfg.Email.Password)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Email.To)
	require.Len(t, cfg.Channels, 1)
	assert.Equal(t, "webhook", cfg.Channels[0].Name)
	assert.Equal(t, 2*time.Second, cfg.Channels[0].Timeout)
	assert.Equal(t, "*/15 * * * *", cfg.Schedule.Cron)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
target:
  location: From File
email:
  enabled: false
browser:
  headless: true
`)
	t.Setenv("TARGET_LOCATION", "From Env")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("CHECK_INTERVAL", "600")
	t.Setenv("BROWSER_DRIVER", "")
	t.Setenv("GMAIL_APP_PASSWORD", "legacy-secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "From Env", cfg.Target.Location)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 10*time.Minute, cfg.Schedule.Interval)
	assert.Equal(t, DriverChrome, cfg.Browser.Driver, "blank variables must not wipe values")
	assert.Equal(t, "legacy-secret", cfg.Email.Password)
}

func TestBlankPasswordAliasKeepsFileValue(t *testing.T) {
	path := writeConfig(t, `
email:
  from: checker@example.com
  to: ["me@example.com"]
  password: from-file
`)
	t.Setenv("GMAIL_APP_PASSWORD", "")
	t.Setenv("EMAIL_PASSWORD", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Email.Password)
}

func TestSMTP2GOChannelWithSender(t *testing.T) {
	c := Config{
		Target:   TargetConfig{URL: "https://example.test", Location: "Cary", UnitSelector: "div.unit", StartLabel: "Book"},
		Browser:  BrowserConfig{Driver: DriverStatic, PageTimeout: time.Second},
		Channels: []ChannelConfig{{Type: "smtp2go", Name: "relay", APIKey: "key", Sender: "checker@example.test", To: []string{"me@example.test"}}},
	}
	assert.NoError(t, c.Validate())
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("EMAIL_ENABLED", "false")
	t.Setenv("EMAIL_SMTP_PORT", "not-a-port")

	_, err := Load("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Target:   TargetConfig{URL: "https://example.test", Location: "Cary", UnitSelector: "div.unit", StartLabel: "Book"},
			Browser:  BrowserConfig{Driver: DriverStatic, PageTimeout: time.Second},
			Schedule: ScheduleConfig{Interval: time.Minute},
		}
	}

	cases := map[string]func(c *Config){
		"relative url":     func(c *Config) { c.Target.URL = "/booking" },
		"missing location": func(c *Config) { c.Target.Location = " " },
		"unknown driver":   func(c *Config) { c.Browser.Driver = "firefox" },
		"zero timeout":     func(c *Config) { c.Browser.PageTimeout = 0 },
		"negative interval": func(c *Config) {
			c.Schedule.Interval = -time.Second
		},
		"email without recipients": func(c *Config) {
			c.Email = EmailConfig{Enabled: true, SMTPHost: "smtp.example.test", From: "a@example.test"}
		},
		"smtp2go without sender": func(c *Config) {
			c.Channels = []ChannelConfig{{Type: "smtp2go", Name: "relay", APIKey: "key", To: []string{"me@example.test"}}}
		},
		"unknown channel": func(c *Config) { c.Channels = []ChannelConfig{{Type: "pager", Name: "pager"}} },
		"duplicate channel": func(c *Config) {
			c.Channels = []ChannelConfig{
				{Type: "webhook", Name: "hook", URL: "https://a.test"},
				{Type: "discord", Name: "hook", URL: "https://b.test"},
			}
		},
	}

	base := valid()
	require.NoError(t, base.Validate())
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "NOT SET", MaskSecret(""))
	assert.Equal(t, "************wxyz", MaskSecret("abcdwxyz"))
}

func TestReadEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TARGET_LOCATION=from-dotenv\nTEST_ONLY_DOTENV=loaded\n"), 0o644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("ENV", "")
	t.Setenv("TARGET_LOCATION", "from-process")
	t.Setenv("TEST_ONLY_DOTENV", "")
	require.NoError(t, os.Unsetenv("TEST_ONLY_DOTENV"))

	require.NoError(t, ReadEnv())
	assert.Equal(t, "from-process", os.Getenv("TARGET_LOCATION"))
	assert.Equal(t, "loaded", os.Getenv("TEST_ONLY_DOTENV"))
}
