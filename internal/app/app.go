package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"appointment-checker/internal/browser"
	"appointment-checker/internal/browser/chrome"
	"appointment-checker/internal/browser/static"
	"appointment-checker/internal/checkers/appointment"
	httpcheck "appointment-checker/internal/checkers/http"
	"appointment-checker/internal/config"
	"appointment-checker/internal/core/check"
	"appointment-checker/internal/core/notify"
	"appointment-checker/internal/core/policy"
	"appointment-checker/internal/core/scheduler"
	"appointment-checker/internal/notifiers/discord"
	"appointment-checker/internal/notifiers/smtp"
	"appointment-checker/internal/notifiers/smtp2go"
	"appointment-checker/internal/notifiers/webhook"
	"appointment-checker/internal/utils/logger"
	"appointment-checker/internal/utils/trace"
)

type Options struct {
	ConfigPath string
	// Continuous keeps checking until the context is cancelled.
	Continuous bool
}

// App is one configured checker: a prober, a policy, its notifiers and a schedule.
type App struct {
	Checker   check.Checker
	Policy    policy.Policy
	Notifiers []notify.Notifier
	Scheduler scheduler.Scheduler
	Log       *logger.Logger
}

func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, closeLog, err := buildLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if closeLog != nil {
		defer closeLog()
	}
	if opts.ConfigPath != "" {
		log.Infof("config loaded: %s", opts.ConfigPath)
	}

	a, err := New(cfg, log, opts.Continuous)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

// New wires the components described by cfg.
func New(cfg *config.Config, log *logger.Logger, continuous bool) (*App, error) {
	driver, err := buildDriver(cfg.Browser)
	if err != nil {
		return nil, fmt.Errorf("build driver: %w", err)
	}
	log.Infof("browser driver: %s", driver.Name())

	notifiers, err := buildNotifiers(cfg)
	if err != nil {
		return nil, fmt.Errorf("build notifiers: %w", err)
	}
	for _, n := range notifiers {
		log.Infof("notifier ready: %s", n.Name())
	}

	return &App{
		Checker:   buildChecker(cfg, driver, log),
		Policy:    policy.NewSimplePolicy(cfg.Email.Subject, cfg.Target.Location, cfg.Target.URL),
		Notifiers: notifiers,
		Scheduler: buildScheduler(cfg.Schedule, continuous, log),
		Log:       log,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	return a.Scheduler.Run(ctx, a.runCycle)
}

func (a *App) runCycle(ctx context.Context) {
	id := uuid.NewString()
	log := a.Log.With("run", id)
	ctx = appointment.WithRunID(ctx, id)

	res := a.Checker.Check(ctx)
	if res.RunID == "" {
		res.RunID = id
	}
	logResult(log, res)

	n := a.Policy.Evaluate(res)
	if n == nil {
		return
	}
	if notify.Deliver(ctx, log, a.Notifiers, *n) {
		log.Infof("notification sent")
	} else {
		log.Errorf("failed to send notification")
	}
}

func logResult(log *logger.Logger, res check.Result) {
	switch res.Status() {
	case check.StatusAvailable:
		log.Infof("[%s] %s: appointment available", res.Status(), res.Name)
	case check.StatusError:
		log.Errorf("[%s] %s: %s", res.Status(), res.Name, res.Error)
	default:
		log.Infof("[%s] %s: %s", res.Status(), res.Name, res.Message)
	}
}

func buildLogger(cfg config.LogConfig) (*logger.Logger, func(), error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}

	if cfg.File == "" {
		return logger.New(logger.Config{Level: cfg.Level, Format: cfg.Format}), nil, nil
	}

	file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		_ = file.Close()
	}
	out := io.MultiWriter(os.Stdout, file)
	return logger.New(logger.Config{Level: cfg.Level, Format: cfg.Format, Output: out}), closeFn, nil
}

func buildDriver(cfg config.BrowserConfig) (browser.Driver, error) {
	switch cfg.Driver {
	case config.DriverChrome:
		return &chrome.Driver{
			Headless:  cfg.Headless,
			UserAgent: cfg.UserAgent,
			ExecPath:  cfg.ExecPath,
			NoSandbox: cfg.NoSandbox,
		}, nil
	case config.DriverStatic:
		return &static.Driver{Client: &http.Client{}, UserAgent: cfg.UserAgent}, nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
}

func buildChecker(cfg *config.Config, driver browser.Driver, log *logger.Logger) *appointment.Checker {
	t := cfg.Target

	var services []browser.Locator
	if t.Service != "" {
		services = append(services, browser.ByText(t.Service))
	}
	for _, fb := range t.ServiceFallbacks {
		services = append(services, browser.ByText(fb))
	}
	if t.ServiceSelector != "" {
		services = append(services, browser.ByCSS(t.ServiceSelector))
	}

	c := &appointment.Checker{
		NameValue:       t.Name,
		URL:             t.URL,
		StartLocator:    browser.ByRole(appointment.StartControls, t.StartLabel),
		ServiceLocators: services,
		UnitSelector:    t.UnitSelector,
		Location:        t.Location,
		PageTimeout:     cfg.Browser.PageTimeout,
		VisibleTimeout:  cfg.Browser.VisibleTimeout,
		SettleDelay:     cfg.Browser.SettleDelay,
		Driver:          driver,
		Trace:           trace.New(cfg.Log.DebugFile),
		Log:             log,
	}
	if cfg.Browser.Preflight {
		c.Preflight = &httpcheck.Checker{URL: t.URL, Timeout: cfg.Browser.PageTimeout, UserAgent: cfg.Browser.UserAgent}
	}
	return c
}

func buildNotifiers(cfg *config.Config) ([]notify.Notifier, error) {
	var notifiers []notify.Notifier
	if cfg.Email.Enabled {
		notifiers = append(notifiers, emailNotifier(cfg.Email))
	}

	for i, ch := range cfg.Channels {
		timeout := ch.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		switch ch.Type {
		case "webhook":
			notifiers = append(notifiers, &webhook.Notifier{NameValue: ch.Name, URL: ch.URL, Timeout: timeout})
		case "discord":
			notifiers = append(notifiers, &discord.Notifier{NameValue: ch.Name, URL: ch.URL, Username: ch.Username, Timeout: timeout})
		case "smtp2go":
			notifiers = append(notifiers, &smtp2go.Notifier{
				NameValue: ch.Name,
				APIKey:    ch.APIKey,
				Sender:    ch.Sender,
				To:        ch.To,
				BaseURL:   ch.URL,
				Timeout:   timeout,
			})
		default:
			return nil, fmt.Errorf("unsupported channel type at index %d: %s", i, ch.Type)
		}
	}
	return notifiers, nil
}

func emailNotifier(cfg config.EmailConfig) *smtp.Notifier {
	return &smtp.Notifier{
		NameValue:     "email",
		Host:          cfg.SMTPHost,
		Port:          cfg.SMTPPort,
		Username:      cfg.Username,
		Password:      cfg.Password,
		From:          cfg.From,
		To:            cfg.To,
		Timeout:       cfg.Timeout,
		ImplicitTLS:   cfg.ImplicitTLS,
		SkipVerifyTLS: cfg.SkipVerifyTLS,
	}
}

func buildScheduler(cfg config.ScheduleConfig, continuous bool, log *logger.Logger) scheduler.Scheduler {
	switch {
	case !continuous:
		return scheduler.Once{}
	case cfg.Cron != "":
		return scheduler.Cron{Spec: cfg.Cron, Log: log}
	default:
		return scheduler.Interval{Every: cfg.Interval, Log: log}
	}
}
