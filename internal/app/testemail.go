package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"appointment-checker/internal/config"
	"appointment-checker/internal/core/notify"
	"appointment-checker/internal/utils/logger"
)

const testEmailBody = "This is a test email from your appointment checker.\n\nIf you received this, your email configuration is working correctly!"

// SendTestEmail sends one fixed message through the configured SMTP relay and
// reports the addresses and the masked password to out.
func SendTestEmail(ctx context.Context, configPath string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: out})

	log.Infof("from: %s", cfg.Email.From)
	log.Infof("to: %v", cfg.Email.To)
	log.Infof("password: %s", config.MaskSecret(cfg.Email.Password))
	if cfg.Email.From == "" || len(cfg.Email.To) == 0 {
		return fmt.Errorf("email from and to must be set")
	}

	n := notify.Notification{
		Subject:   "Test Email - Appointment Checker",
		Body:      testEmailBody,
		Link:      cfg.Target.URL,
		Timestamp: time.Now(),
	}
	if err := emailNotifier(cfg.Email).Send(ctx, n); err != nil {
		log.Errorf("failed to send test email: %v", err)
		return err
	}
	log.Infof("test email sent to %v", cfg.Email.To)
	return nil
}
