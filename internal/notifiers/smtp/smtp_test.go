package smtp

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"appointment-checker/internal/core/notify"
	"appointment-checker/internal/notifiers/smtp/smtptest"
	"appointment-checker/internal/utils/logger"
)

func newNotifier(port int) *Notifier {
	return &Notifier{
		NameValue: "email",
		Host:      "127.0.0.1",
		Port:      port,
		Username:  "checker@example.test",
		Password:  "app-password",
		From:      "checker@example.test",
		To:        []string{"me@example.test", "you@example.test"},
		Timeout:   2 * time.Second,
	}
}

func TestSendDeliversBodyVerbatim(t *testing.T) {
	relay := smtptest.NewRelay(t, false)
	n := newNotifier(relay.Port())
	body := "Appointment available at Avent Ferry Shopping Center.\n\nRaleigh West, 3231 Avent Ferry Road = open"

	err := n.Send(context.Background(), notify.Notification{
		Subject:   "🚗 Appointment Available - Raleigh West!",
		Body:      body,
		Link:      "https://example.test/book",
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if !relay.Authed() {
		t.Fatalf("expected AUTH")
	}
	if rcpts := relay.Recipients(); len(rcpts) != 2 {
		t.Fatalf("expected 2 recipients, got %v", rcpts)
	}
	messages := relay.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	msg := messages[0]
	for _, want := range []string{
		body,
		"Content-Type: multipart/alternative; boundary=",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Type: text/html; charset=UTF-8",
		"To: me@example.test, you@example.test",
		"Subject: =?utf-8?q?",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestSendImplicitTLS(t *testing.T) {
	relay := smtptest.NewTLSRelay(t)
	n := newNotifier(relay.Port())
	n.ImplicitTLS = true
	n.SkipVerifyTLS = true
	body := "Appointment available at Avent Ferry Shopping Center."

	// The relay advertises STARTTLS but rejects it, so this only passes when the
	// connection is already encrypted and STARTTLS is skipped.
	if err := n.Send(context.Background(), notify.Notification{Subject: "Appointment Available", Body: body}); err != nil {
		t.Fatalf("send over implicit TLS: %v", err)
	}
	if !relay.Authed() {
		t.Fatalf("expected AUTH over TLS")
	}
	messages := relay.Messages()
	if len(messages) != 1 || !strings.Contains(messages[0], body) {
		t.Fatalf("expected one message with the body, got %v", messages)
	}
}

func TestSendImplicitTLSVerifiesCertificate(t *testing.T) {
	relay := smtptest.NewTLSRelay(t)
	n := newNotifier(relay.Port())
	n.ImplicitTLS = true

	if err := n.Send(context.Background(), notify.Notification{Subject: "s", Body: "b"}); err == nil {
		t.Fatalf("expected a certificate error for a self-signed relay")
	}
	if len(relay.Messages()) != 0 {
		t.Fatalf("no message should be sent without a trusted certificate")
	}
}

func TestSendAuthFailure(t *testing.T) {
	relay := smtptest.NewRelay(t, true)
	n := newNotifier(relay.Port())

	err := n.Send(context.Background(), notify.Notification{Subject: "s", Body: "b"})
	if err == nil {
		t.Fatalf("expected auth error")
	}
	if !strings.Contains(err.Error(), "535") {
		t.Fatalf("expected 535 in error, got %v", err)
	}
	if len(relay.Messages()) != 0 {
		t.Fatalf("no message should be accepted after auth failure")
	}
}

func TestDeliverSwallowsAuthFailure(t *testing.T) {
	relay := smtptest.NewRelay(t, true)
	n := newNotifier(relay.Port())

	ok := notify.Deliver(context.Background(), logger.Discard(), []notify.Notifier{n}, notify.Notification{Subject: "s", Body: "b"})
	if ok {
		t.Fatalf("expected delivery to report failure")
	}
}

func TestSendValidation(t *testing.T) {
	cases := []*Notifier{
		{From: "a@b", To: []string{"c@d"}},
		{Host: "127.0.0.1", To: []string{"c@d"}},
		{Host: "127.0.0.1", From: "a@b"},
	}
	for i, n := range cases {
		if err := n.Send(context.Background(), notify.Notification{}); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestSendDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	n := newNotifier(port)
	if err := n.Send(context.Background(), notify.Notification{Subject: "s", Body: "b"}); err == nil {
		t.Fatalf("expected dial error")
	} else if !strings.Contains(err.Error(), "127.0.0.1:"+strconv.Itoa(port)) {
		t.Fatalf("error should name the relay: %v", err)
	}
}
