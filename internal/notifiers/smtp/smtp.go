package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"appointment-checker/internal/core/notify"
	"appointment-checker/internal/notifiers/format"
)

type Notifier struct {
	NameValue     string
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	To            []string
	Timeout       time.Duration
	ImplicitTLS   bool
	SkipVerifyTLS bool
}

func (n *Notifier) Name() string {
	return n.NameValue
}

func (n *Notifier) Send(ctx context.Context, note notify.Notification) error {
	if n.Host == "" {
		return fmt.Errorf("smtp host is required")
	}
	if n.From == "" {
		return fmt.Errorf("smtp from is required")
	}
	if len(n.To) == 0 {
		return fmt.Errorf("smtp to is required")
	}
	port := n.Port
	if port == 0 {
		port = 465
	}

	rendered, err := format.Render(note)
	if err != nil {
		return fmt.Errorf("render notification: %w", err)
	}
	msg, err := buildMessage(n.From, n.To, rendered, note.Timestamp)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	addr := net.JoinHostPort(n.Host, fmt.Sprint(port))
	client, err := n.dialSMTP(ctx, addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer client.Close()

	if n.Username != "" {
		auth := smtp.PlainAuth("", n.Username, n.Password, n.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("auth as %s: %w", n.Username, err)
		}
	}
	if err := client.Mail(n.From); err != nil {
		return err
	}
	for _, to := range n.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("rcpt %s: %w", to, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (n *Notifier) dialSMTP(ctx context.Context, addr string) (*smtp.Client, error) {
	timeout := n.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	tlsConfig := &tls.Config{
		ServerName:         n.Host,
		InsecureSkipVerify: n.SkipVerifyTLS,
	}
	dialer := &net.Dialer{Timeout: timeout}

	var conn net.Conn
	var err error
	if n.ImplicitTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}
	// Bound the whole conversation; net/smtp has no context support.
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, n.Host)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if n.ImplicitTLS {
		return client, nil
	}
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(tlsConfig); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	return client, nil
}

// buildMessage renders a multipart/alternative message. The plain part is
// sent as 8bit so the body arrives byte for byte; the HTML part is quoted-printable.
func buildMessage(from string, to []string, r format.Rendered, at time.Time) ([]byte, error) {
	if at.IsZero() {
		at = time.Now()
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	plain, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=UTF-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := plain.Write([]byte(crlf(r.Plain))); err != nil {
		return nil, err
	}

	html, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/html; charset=UTF-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return nil, err
	}
	qp := quotedprintable.NewWriter(html)
	if _, err := qp.Write([]byte(r.HTML)); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	headers := []string{
		"From: " + from,
		"To: " + strings.Join(to, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", r.Subject),
		"Date: " + at.Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: multipart/alternative; boundary=" + mw.Boundary(),
	}
	return append([]byte(strings.Join(headers, "\r\n")+"\r\n\r\n"), body.Bytes()...), nil
}

func crlf(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
